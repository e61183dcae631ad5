package topology

import "k8s.io/apimachinery/pkg/runtime/schema"

const (
	DefaultNamespace = "buildmesh"

	StorageUnit   = "cas"
	SchedulerUnit = "scheduler"
	WorkerUnit    = "worker"

	CASPort       int32 = 50051
	SchedulerPort int32 = 50052
	WorkerPort    int32 = 50053

	GitRepositoryName    = "buildmesh"
	CoreKustomization    = "buildmesh-core"
	ConfigsKustomization = "buildmesh-configs"
	StackKustomization   = "buildmesh"

	PipelineName = "buildmesh-image-build"
	// PipelineRuns are created by an external trigger; only the prefix and
	// the pipeline label are known in advance.
	PipelineRunPrefix   = "buildmesh-image-build-"
	PipelineRunSelector = "tekton.dev/pipeline=" + PipelineName
	WorkerConfigMap     = "worker-config"

	CASGateway       = "cas-gateway"
	SchedulerGateway = "scheduler-gateway"
)

var (
	GitRepositoryGVR = schema.GroupVersionResource{
		Group: "source.toolkit.fluxcd.io", Version: "v1", Resource: "gitrepositories",
	}
	KustomizationGVR = schema.GroupVersionResource{
		Group: "kustomize.toolkit.fluxcd.io", Version: "v1", Resource: "kustomizations",
	}
	PipelineRunGVR = schema.GroupVersionResource{
		Group: "tekton.dev", Version: "v1beta1", Resource: "pipelineruns",
	}
	DeploymentGVR = schema.GroupVersionResource{
		Group: "apps", Version: "v1", Resource: "deployments",
	}
	GatewayGVR = schema.GroupVersionResource{
		Group: "gateway.networking.k8s.io", Version: "v1beta1", Resource: "gateways",
	}
)
