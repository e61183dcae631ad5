// Package testenv contains common helpers for the end-to-end tests.
package testenv

import (
	"os"
	"time"

	"github.com/buildmesh/bringup/e2e/testenv/cli"
)

// Timeout bounds a full bring-up against a live cluster, including the
// image-build pipeline.
const Timeout = 90 * time.Minute

type Env struct {
	Bringup cli.Command
	// Namespace the stack is deployed into
	Namespace string
	// Workspace holds the smoke-build target
	Workspace string
}

func New() *Env {
	env := &Env{
		Bringup:   cli.New("bringup", "buildmesh"),
		Namespace: "buildmesh",
		Workspace: ".",
	}
	env.getShellEnv()
	return env
}

func (e *Env) getShellEnv() {
	if val := os.Getenv("BRINGUP_E2E_BIN"); val != "" {
		e.Bringup = cli.New(val, e.Namespace)
	}
	if val := os.Getenv("BRINGUP_E2E_NS"); val != "" {
		e.Namespace = val
		e.Bringup = e.Bringup.Namespace(val)
	}
	if val := os.Getenv("BRINGUP_E2E_WORKSPACE"); val != "" {
		e.Workspace = val
	}
}
