package bringup

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/buildmesh/bringup/internal/poll"
	"github.com/buildmesh/bringup/internal/topology"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"k8s.io/apimachinery/pkg/runtime"
)

type fakeApplier struct {
	calls int
	err   error
}

func (f *fakeApplier) Apply(_ context.Context, _ []runtime.Object) error {
	f.calls++
	return f.err
}

type recordedWait struct {
	target   poll.Target
	deadline time.Duration
}

type fakeWaiter struct {
	waits []recordedWait
	fail  func(target poll.Target) error
}

func (f *fakeWaiter) WaitFor(_ context.Context, target poll.Target, _ poll.Condition, deadline time.Duration) error {
	f.waits = append(f.waits, recordedWait{target: target, deadline: deadline})
	if f.fail != nil {
		return f.fail(target)
	}
	return nil
}

func TestRunVisitsStagesInOrder(t *testing.T) {
	applier := &fakeApplier{}
	waiter := &fakeWaiter{}
	orch := New(applier, waiter, "buildmesh", DefaultDeadlines())

	err := orch.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, applier.calls)

	var visited []string
	for _, w := range waiter.waits {
		visited = append(visited, w.target.String())
	}
	assert.Equal(t, []string{
		"kustomizations buildmesh/buildmesh-core",
		"pipelineruns buildmesh/buildmesh-image-build-*",
		"pipelineruns buildmesh/tekton.dev/pipeline=buildmesh-image-build",
		"kustomizations buildmesh/buildmesh-configs",
		"kustomizations buildmesh/buildmesh",
		"deployments buildmesh/cas",
		"deployments buildmesh/scheduler",
		"deployments buildmesh/worker",
	}, visited)
}

func TestPipelineFailureAbortsBeforeConfigs(t *testing.T) {
	waiter := &fakeWaiter{
		fail: func(target poll.Target) error {
			if target.LabelSelector == topology.PipelineRunSelector {
				return &poll.ConditionFailedError{Name: "buildmesh-image-build-xj2kq", Reason: "PipelineRunFailed"}
			}
			return nil
		},
	}
	orch := New(&fakeApplier{}, waiter, "buildmesh", DefaultDeadlines())

	err := orch.Run(context.Background(), nil)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StagePipelineSucceeded, stageErr.Stage)
	assert.False(t, TimedOut(err), "a failed pipeline is not a timeout")

	for _, w := range waiter.waits {
		assert.NotEqual(t, topology.ConfigsKustomization, w.target.Name,
			"no stage after the pipeline failure may run")
	}
}

func TestStageTimeoutNamesTheStage(t *testing.T) {
	waiter := &fakeWaiter{
		fail: func(target poll.Target) error {
			if target.Name == topology.CoreKustomization {
				return &poll.TimedOutError{Target: target, Deadline: 15 * time.Minute}
			}
			return nil
		},
	}
	orch := New(&fakeApplier{}, waiter, "buildmesh", DefaultDeadlines())

	err := orch.Run(context.Background(), nil)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageCoreReady, stageErr.Stage)
	assert.True(t, TimedOut(err))
	assert.Contains(t, err.Error(), "core-ready")
	assert.Len(t, waiter.waits, 1, "a timed out stage ends the run")
}

func TestRejectedConfigurationStopsBeforeAnyWait(t *testing.T) {
	applier := &fakeApplier{err: fmt.Errorf("admission denied")}
	waiter := &fakeWaiter{}
	orch := New(applier, waiter, "buildmesh", DefaultDeadlines())

	err := orch.Run(context.Background(), nil)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageSubmit, stageErr.Stage)
	assert.Equal(t, 1, applier.calls, "a rejected configuration is not retried")
	assert.Empty(t, waiter.waits)
}

func TestPipelineExistenceWaitIsBoundedByDefault(t *testing.T) {
	waiter := &fakeWaiter{}
	orch := New(&fakeApplier{}, waiter, "buildmesh", DefaultDeadlines())
	require.NoError(t, orch.Run(context.Background(), nil))

	created := waiter.waits[1]
	assert.Equal(t, topology.PipelineRunPrefix, created.target.NamePrefix)
	assert.Equal(t, 30*time.Minute, created.deadline)
}

func TestUnboundedPipelineWaitIsExplicitOptIn(t *testing.T) {
	deadlines := DefaultDeadlines()
	deadlines.UnboundedPipelineWait = true

	waiter := &fakeWaiter{}
	orch := New(&fakeApplier{}, waiter, "buildmesh", deadlines)
	require.NoError(t, orch.Run(context.Background(), nil))

	created := waiter.waits[1]
	assert.Equal(t, time.Duration(0), created.deadline)
}

func TestStageNames(t *testing.T) {
	assert.Equal(t, "submit", StageSubmit.String())
	assert.Equal(t, "worker-rollout", StageWorkerRollout.String())
	assert.Equal(t, "unknown", Stage(99).String())
}

func TestTimedOutDetectsWrappedErrors(t *testing.T) {
	inner := &poll.TimedOutError{Deadline: time.Minute}
	err := &StageError{Stage: StageStackReady, Err: fmt.Errorf("wrapped: %w", inner)}
	assert.True(t, TimedOut(err))
	assert.False(t, TimedOut(errors.New("other")))
}
