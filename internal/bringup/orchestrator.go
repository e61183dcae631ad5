// Package bringup sequences the fixed list of readiness waits that turns an
// applied manifest into a converged stack. All-or-nothing: the first stage
// failure aborts the whole run, since a partially-ready cluster cannot
// safely serve the smoke test.
package bringup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/buildmesh/bringup/internal/poll"
	"github.com/buildmesh/bringup/internal/topology"

	"github.com/sirupsen/logrus"

	"k8s.io/apimachinery/pkg/runtime"
)

// StageError reports which stage aborted the run and what it was waiting
// on. When the cause is a missed deadline, this is the bring-up timeout the
// operator diagnoses from.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("bring-up failed at stage %s: %s", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// TimedOut reports whether the run aborted because a stage missed its
// deadline, as opposed to a terminal resource failure.
func TimedOut(err error) bool {
	var t *poll.TimedOutError
	return errors.As(err, &t)
}

// Applier submits the composed manifest.
type Applier interface {
	Apply(ctx context.Context, objs []runtime.Object) error
}

// Waiter blocks until a target satisfies a condition or a deadline passes.
type Waiter interface {
	WaitFor(ctx context.Context, target poll.Target, cond poll.Condition, deadline time.Duration) error
}

type Orchestrator struct {
	applier   Applier
	waiter    Waiter
	namespace string
	deadlines Deadlines
	log       *logrus.Entry
}

func New(applier Applier, waiter Waiter, namespace string, deadlines Deadlines) *Orchestrator {
	return &Orchestrator{
		applier:   applier,
		waiter:    waiter,
		namespace: namespace,
		deadlines: deadlines,
		log:       logrus.WithField("component", "bringup"),
	}
}

// Run drives the state machine from submission to the worker rollout.
func (o *Orchestrator) Run(ctx context.Context, objs []runtime.Object) error {
	for stage := StageSubmit; stage != stageDone; {
		o.log.WithField("stage", stage.String()).Info("entering stage")

		next, err := o.step(ctx, stage, objs)
		if err != nil {
			return &StageError{Stage: stage, Err: err}
		}
		if next <= stage {
			// The transition table only moves forward; anything else is a
			// programming error.
			return &StageError{Stage: stage, Err: fmt.Errorf("illegal transition %s -> %s", stage, next)}
		}
		stage = next
	}

	o.log.Info("stack converged")
	return nil
}

// step performs one stage and names its successor. One transition per
// state, no branches.
func (o *Orchestrator) step(ctx context.Context, stage Stage, objs []runtime.Object) (Stage, error) {
	var err error

	switch stage {
	case StageSubmit:
		err = o.applier.Apply(ctx, objs)
	case StageCoreReady:
		err = o.waiter.WaitFor(ctx, o.kustomization(topology.CoreKustomization), poll.Current, o.deadlines.CoreReady)
	case StagePipelineCreated:
		deadline := o.deadlines.PipelineCreated
		if o.deadlines.UnboundedPipelineWait {
			deadline = 0
		}
		err = o.waiter.WaitFor(ctx, poll.Target{
			Resource:   topology.PipelineRunGVR,
			Namespace:  o.namespace,
			NamePrefix: topology.PipelineRunPrefix,
		}, poll.Exists, deadline)
	case StagePipelineSucceeded:
		err = o.waiter.WaitFor(ctx, poll.Target{
			Resource:      topology.PipelineRunGVR,
			Namespace:     o.namespace,
			LabelSelector: topology.PipelineRunSelector,
		}, poll.Succeeded, o.deadlines.PipelineSucceeded)
	case StageConfigsReady:
		err = o.waiter.WaitFor(ctx, o.kustomization(topology.ConfigsKustomization), poll.Current, o.deadlines.ConfigsReady)
	case StageStackReady:
		err = o.waiter.WaitFor(ctx, o.kustomization(topology.StackKustomization), poll.Current, o.deadlines.StackReady)
	case StageStorageRollout:
		err = o.waiter.WaitFor(ctx, o.deployment(topology.StorageUnit), poll.Current, o.deadlines.Rollout)
	case StageSchedulerRollout:
		err = o.waiter.WaitFor(ctx, o.deployment(topology.SchedulerUnit), poll.Current, o.deadlines.Rollout)
	case StageWorkerRollout:
		err = o.waiter.WaitFor(ctx, o.deployment(topology.WorkerUnit), poll.Current, o.deadlines.Rollout)
	default:
		err = fmt.Errorf("unknown stage %d", stage)
	}

	if err != nil {
		return stage, err
	}
	return stage + 1, nil
}

func (o *Orchestrator) kustomization(name string) poll.Target {
	return poll.Target{
		Resource:  topology.KustomizationGVR,
		Namespace: o.namespace,
		Name:      name,
	}
}

func (o *Orchestrator) deployment(name string) poll.Target {
	return poll.Target{
		Resource:  topology.DeploymentGVR,
		Namespace: o.namespace,
		Name:      name,
	}
}
