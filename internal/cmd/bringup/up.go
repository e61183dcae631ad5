package bringup

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/buildmesh/bringup/internal/apply"
	"github.com/buildmesh/bringup/internal/bringup"
	command "github.com/buildmesh/bringup/internal/cmd"
	"github.com/buildmesh/bringup/internal/compose"
	"github.com/buildmesh/bringup/internal/gateway"
	"github.com/buildmesh/bringup/internal/poll"
	"github.com/buildmesh/bringup/internal/smoketest"
	"github.com/buildmesh/bringup/internal/topology"
)

// NewUp runs the whole pipeline: compose, submit, wait for convergence,
// resolve the gateways and drive the smoke build. Each stage must fully
// succeed before the next starts; the first failure ends the run.
func NewUp() *cobra.Command {
	return command.Command(&Up{}, cobra.Command{
		Use:   "up",
		Short: "Deploy the stack, wait for convergence and run the smoke test",
	})
}

type Up struct {
	ComposeArgs
	WaitArgs
	SmokeArgs
}

func (u *Up) Run(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	opts, err := u.ComposeArgs.Options()
	if err != nil {
		return err
	}

	deadlines, err := u.WaitArgs.Deadlines()
	if err != nil {
		return err
	}
	interval, err := u.WaitArgs.Interval()
	if err != nil {
		return err
	}

	c, err := Client.Get()
	if err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"namespace": c.Namespace,
		"overlay":   opts.Overlay,
		"commit":    opts.Commit,
	}).Info("composing manifest")

	desc := topology.Default(c.Namespace)
	manifest, err := compose.Compose(desc, opts.Patches())
	if err != nil {
		return err
	}
	objs, err := compose.Objects(manifest)
	if err != nil {
		return err
	}

	orch := bringup.New(
		apply.New(c.Apply, c.Namespace),
		poll.New(c.Dynamic, interval),
		c.Namespace,
		deadlines,
	)
	if err := orch.Run(ctx, objs); err != nil {
		return err
	}

	addrs, err := gateway.New(c.Dynamic, c.Namespace).Resolve(ctx)
	if err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"cas":       addrs.CAS,
		"scheduler": addrs.Scheduler,
	}).Info("gateways resolved")

	runner := smoketest.NewRunner(u.BuildClient, u.Workspace, u.Target, u.Instance)
	return runner.Run(ctx, addrs)
}
