package bringup

import "time"

// Stage enumerates the bring-up state machine. Stages run strictly in
// order; there are no backward transitions and an expired stage is never
// retried.
type Stage int

const (
	StageSubmit Stage = iota
	StageCoreReady
	StagePipelineCreated
	StagePipelineSucceeded
	StageConfigsReady
	StageStackReady
	StageStorageRollout
	StageSchedulerRollout
	StageWorkerRollout
	stageDone
)

var stageNames = map[Stage]string{
	StageSubmit:            "submit",
	StageCoreReady:         "core-ready",
	StagePipelineCreated:   "pipeline-created",
	StagePipelineSucceeded: "pipeline-succeeded",
	StageConfigsReady:      "configs-ready",
	StageStackReady:        "stack-ready",
	StageStorageRollout:    "storage-rollout",
	StageSchedulerRollout:  "scheduler-rollout",
	StageWorkerRollout:     "worker-rollout",
	stageDone:              "done",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}

// Deadlines bounds each waiting stage. Every wait is deadline-bound by
// default; only the pipeline existence wait can be made unbounded, and only
// by explicit opt-in, since its creation depends on an upstream trigger
// outside this orchestrator's control.
type Deadlines struct {
	CoreReady         time.Duration
	PipelineCreated   time.Duration
	PipelineSucceeded time.Duration
	ConfigsReady      time.Duration
	StackReady        time.Duration
	Rollout           time.Duration

	UnboundedPipelineWait bool
}

func DefaultDeadlines() Deadlines {
	return Deadlines{
		CoreReady:         15 * time.Minute,
		PipelineCreated:   30 * time.Minute,
		PipelineSucceeded: 45 * time.Minute,
		ConfigsReady:      15 * time.Minute,
		StackReady:        15 * time.Minute,
		Rollout:           10 * time.Minute,
	}
}
