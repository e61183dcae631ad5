// Package smoketest drives one real build through the converged stack. It
// is the single end-to-end correctness signal of a bring-up: job
// submission, caching and scheduler-to-worker dispatch are all exercised
// transitively.
package smoketest

import (
	"context"
	"fmt"
	"time"

	"github.com/buildmesh/bringup/internal/gateway"

	remoteexecution "github.com/bazelbuild/remote-apis/build/bazel/remote/execution/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ErrSmokeTestFailed is the terminal failure of the end-to-end build.
var ErrSmokeTestFailed = fmt.Errorf("smoke test failed")

const probeTimeout = 30 * time.Second

type Runner struct {
	// Client is the Bazel-compatible build client executable.
	Client string
	// Workdir is the workspace the build runs in.
	Workdir string
	// Target is the build target driven through the stack.
	Target string
	// InstanceName is the logical remote-execution instance the request is
	// issued under.
	InstanceName string

	log *logrus.Entry

	// dialOpts lets tests redirect the capability probes.
	dialOpts []grpc.DialOption
}

func NewRunner(client, workdir, target, instanceName string) *Runner {
	return &Runner{
		Client:       client,
		Workdir:      workdir,
		Target:       target,
		InstanceName: instanceName,
		log:          logrus.WithField("component", "smoketest"),
	}
}

// Run probes both gateways for remote-execution capabilities, then issues
// one real build routed through them.
func (r *Runner) Run(ctx context.Context, addrs gateway.Addresses) error {
	if err := r.probe(ctx, addrs); err != nil {
		return fmt.Errorf("%w: %s", ErrSmokeTestFailed, err)
	}

	cmd := NewBuildCommand(r.Client).
		Workdir(r.Workdir).
		RemoteCache(addrs.CAS).
		RemoteExecutor(addrs.Scheduler).
		InstanceName(r.InstanceName)

	r.log.WithField("target", r.Target).Info("starting smoke build")
	out, err := cmd.Build(ctx, r.Target)
	if err != nil {
		return fmt.Errorf("%w: %s: %s", ErrSmokeTestFailed, err, tail(out))
	}

	r.log.Info("smoke build succeeded")
	return nil
}

// probe checks that both gateways answer the Remote Execution API before
// any build bytes move, so a dead gateway fails fast with a precise error.
func (r *Runner) probe(ctx context.Context, addrs gateway.Addresses) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return r.capabilities(ctx, "cas", addrs.CAS)
	})
	eg.Go(func() error {
		return r.capabilities(ctx, "scheduler", addrs.Scheduler)
	})
	return eg.Wait()
}

func (r *Runner) capabilities(ctx context.Context, name, addr string) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}, r.dialOpts...)

	conn, err := grpc.DialContext(ctx, addr, opts...)
	if err != nil {
		return fmt.Errorf("failed to dial %s gateway at %s: %w", name, addr, err)
	}
	defer conn.Close()

	caps, err := remoteexecution.NewCapabilitiesClient(conn).GetCapabilities(ctx, &remoteexecution.GetCapabilitiesRequest{
		InstanceName: r.InstanceName,
	})
	if err != nil {
		return fmt.Errorf("%s gateway at %s did not report capabilities: %w", name, addr, err)
	}

	r.log.WithFields(logrus.Fields{
		"gateway": name,
		"cache":   caps.GetCacheCapabilities() != nil,
		"exec":    caps.GetExecutionCapabilities().GetExecEnabled(),
	}).Debug("gateway capabilities")
	return nil
}

func tail(out string) string {
	const max = 2048
	if len(out) <= max {
		return out
	}
	return "..." + out[len(out)-max:]
}
