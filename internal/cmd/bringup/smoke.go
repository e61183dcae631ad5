package bringup

import (
	"github.com/spf13/cobra"

	command "github.com/buildmesh/bringup/internal/cmd"
	"github.com/buildmesh/bringup/internal/gateway"
	"github.com/buildmesh/bringup/internal/smoketest"
)

// NewSmoke runs only the end-to-end build against an already-converged
// stack.
func NewSmoke() *cobra.Command {
	return command.Command(&Smoke{}, cobra.Command{
		Use:   "smoke",
		Short: "Run the smoke build against the resolved gateways",
	})
}

type Smoke struct {
	SmokeArgs
}

func (s *Smoke) Run(cmd *cobra.Command, _ []string) error {
	c, err := Client.Get()
	if err != nil {
		return err
	}

	addrs, err := gateway.New(c.Dynamic, c.Namespace).Resolve(cmd.Context())
	if err != nil {
		return err
	}

	runner := smoketest.NewRunner(s.BuildClient, s.Workspace, s.Target, s.Instance)
	return runner.Run(cmd.Context(), addrs)
}
