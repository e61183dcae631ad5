package bringup

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/buildmesh/bringup/internal/poll"
	"github.com/buildmesh/bringup/internal/topology"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	dynamicfake "k8s.io/client-go/dynamic/fake"
	clienttesting "k8s.io/client-go/testing"
)

// fakeControlPlane reconciles resources into the fake cluster with small
// delays once the manifest has been submitted, imitating asynchronous
// convergence.
type fakeControlPlane struct {
	client     *dynamicfake.FakeDynamicClient
	namespace  string
	pipelineOK bool
	started    sync.Once
}

func newConvergenceClient() *dynamicfake.FakeDynamicClient {
	listKinds := map[schema.GroupVersionResource]string{
		topology.KustomizationGVR: "KustomizationList",
		topology.PipelineRunGVR:   "PipelineRunList",
		topology.DeploymentGVR:    "DeploymentList",
	}
	return dynamicfake.NewSimpleDynamicClientWithCustomListKinds(runtime.NewScheme(), listKinds)
}

// Apply satisfies Applier: submission schedules reconciliation, nothing
// more.
func (f *fakeControlPlane) Apply(_ context.Context, _ []runtime.Object) error {
	f.started.Do(func() {
		go f.reconcile()
	})
	return nil
}

func (f *fakeControlPlane) reconcile() {
	ctx := context.Background()
	step := 20 * time.Millisecond

	time.Sleep(step)
	f.createKustomization(ctx, topology.CoreKustomization, true)

	time.Sleep(step)
	f.createKustomization(ctx, topology.CoreKustomization, false)

	time.Sleep(step)
	f.createPipelineRun(ctx, "Unknown", "Running")

	time.Sleep(step)
	if f.pipelineOK {
		f.createPipelineRun(ctx, "True", "Succeeded")
	} else {
		f.createPipelineRun(ctx, "False", "PipelineRunFailed")
		return
	}

	time.Sleep(step)
	f.createKustomization(ctx, topology.ConfigsKustomization, false)
	f.createKustomization(ctx, topology.StackKustomization, false)

	time.Sleep(step)
	for _, unit := range []string{topology.StorageUnit, topology.SchedulerUnit, topology.WorkerUnit} {
		f.createDeployment(ctx, unit)
	}
}

func (f *fakeControlPlane) createKustomization(ctx context.Context, name string, reconciling bool) {
	obj := &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "kustomize.toolkit.fluxcd.io/v1",
		"kind":       "Kustomization",
		"metadata": map[string]interface{}{
			"name":      name,
			"namespace": f.namespace,
		},
	}}
	if reconciling {
		_ = unstructured.SetNestedSlice(obj.Object, []interface{}{
			map[string]interface{}{"type": "Reconciling", "status": "True", "reason": "Progressing"},
		}, "status", "conditions")
	}

	ri := f.client.Resource(topology.KustomizationGVR).Namespace(f.namespace)
	if _, err := ri.Create(ctx, obj, metav1.CreateOptions{}); err != nil {
		_, _ = ri.Update(ctx, obj, metav1.UpdateOptions{})
	}
}

func (f *fakeControlPlane) createPipelineRun(ctx context.Context, status, reason string) {
	obj := &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "tekton.dev/v1beta1",
		"kind":       "PipelineRun",
		"metadata": map[string]interface{}{
			"name":      topology.PipelineRunPrefix + "xj2kq",
			"namespace": f.namespace,
			"labels": map[string]interface{}{
				"tekton.dev/pipeline": topology.PipelineName,
			},
		},
		"status": map[string]interface{}{
			"conditions": []interface{}{
				map[string]interface{}{"type": "Succeeded", "status": status, "reason": reason},
			},
		},
	}}

	ri := f.client.Resource(topology.PipelineRunGVR).Namespace(f.namespace)
	if _, err := ri.Create(ctx, obj, metav1.CreateOptions{}); err != nil {
		_, _ = ri.Update(ctx, obj, metav1.UpdateOptions{})
	}
}

func (f *fakeControlPlane) createDeployment(ctx context.Context, name string) {
	obj := &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "apps/v1",
		"kind":       "Deployment",
		"metadata": map[string]interface{}{
			"name":       name,
			"namespace":  f.namespace,
			"generation": int64(1),
		},
		"spec": map[string]interface{}{
			"replicas": int64(1),
		},
		"status": map[string]interface{}{
			"observedGeneration": int64(1),
			"replicas":           int64(1),
			"updatedReplicas":    int64(1),
			"readyReplicas":      int64(1),
			"availableReplicas":  int64(1),
			"conditions": []interface{}{
				map[string]interface{}{"type": "Progressing", "status": "True", "reason": "NewReplicaSetAvailable"},
				map[string]interface{}{"type": "Available", "status": "True"},
			},
		},
	}}
	_, _ = f.client.Resource(topology.DeploymentGVR).Namespace(f.namespace).Create(ctx, obj, metav1.CreateOptions{})
}

func shortDeadlines() Deadlines {
	return Deadlines{
		CoreReady:         2 * time.Second,
		PipelineCreated:   2 * time.Second,
		PipelineSucceeded: 2 * time.Second,
		ConfigsReady:      2 * time.Second,
		StackReady:        2 * time.Second,
		Rollout:           2 * time.Second,
	}
}

func TestRunConvergesAgainstSimulatedControlPlane(t *testing.T) {
	cp := &fakeControlPlane{
		client:     newConvergenceClient(),
		namespace:  "buildmesh",
		pipelineOK: true,
	}
	poller := poll.New(cp.client, 5*time.Millisecond)
	orch := New(cp, poller, "buildmesh", shortDeadlines())

	err := orch.Run(context.Background(), nil)
	assert.NoError(t, err)
}

func TestRunAbortsWhenPipelineFails(t *testing.T) {
	cp := &fakeControlPlane{
		client:    newConvergenceClient(),
		namespace: "buildmesh",
	}

	var configsQueried bool
	cp.client.PrependReactor("get", "kustomizations", func(action clienttesting.Action) (bool, runtime.Object, error) {
		get, ok := action.(clienttesting.GetAction)
		if ok && get.GetName() == topology.ConfigsKustomization {
			configsQueried = true
		}
		return false, nil, nil
	})

	poller := poll.New(cp.client, 5*time.Millisecond)
	orch := New(cp, poller, "buildmesh", shortDeadlines())

	err := orch.Run(context.Background(), nil)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StagePipelineSucceeded, stageErr.Stage)

	var failed *poll.ConditionFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, "PipelineRunFailed", failed.Reason)

	assert.False(t, configsQueried, "nothing after the failed pipeline stage may be queried")
}
