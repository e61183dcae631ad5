// Package main is the entry point for the bringup binary.
package main

import (
	// Add non-default auth providers
	_ "k8s.io/client-go/plugin/pkg/client/auth"

	"github.com/rancher/wrangler/v2/pkg/signals"
	"github.com/sirupsen/logrus"

	cmds "github.com/buildmesh/bringup/internal/cmd/bringup"
)

func main() {
	ctx := signals.SetupSignalContext()
	cmd := cmds.App()
	if err := cmd.ExecuteContext(ctx); err != nil {
		logrus.Fatal(err)
	}
}
