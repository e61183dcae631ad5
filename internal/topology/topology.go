// Package topology declares the deployable units of the buildmesh stack and
// renders them, together with the source-sync and gateway resources, into
// the base manifest the composer works on.
package topology

import (
	"fmt"
	"sort"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
)

const (
	DefaultRepoURL = "https://github.com/buildmesh/buildmesh"

	workerConfigPath = "/etc/buildmesh"
	workerStagingDir = "/staging"
)

// Unit is one deployable tier of the stack.
type Unit struct {
	Name     string
	Replicas int32
	Image    string
	// Env holds the unit's own bindings. Peer endpoints are not part of
	// Env; they are derived from the peer Service names during rendering so
	// that pod-level addresses can never leak into the wiring.
	Env map[string]string
}

// Descriptor is the static declaration of the three-tier stack.
type Descriptor struct {
	Namespace string
	Storage   Unit
	Scheduler Unit
	Worker    Unit
}

// Default returns the stock three-tier descriptor.
func Default(namespace string) Descriptor {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return Descriptor{
		Namespace: namespace,
		Storage: Unit{
			Name:     StorageUnit,
			Replicas: 1,
			Image:    "ghcr.io/buildmesh/cas:latest",
			Env: map[string]string{
				"CAS_LISTEN_ADDR": fmt.Sprintf("0.0.0.0:%d", CASPort),
			},
		},
		Scheduler: Unit{
			Name:     SchedulerUnit,
			Replicas: 1,
			Image:    "ghcr.io/buildmesh/scheduler:latest",
			Env: map[string]string{
				"SCHEDULER_LISTEN_ADDR": fmt.Sprintf("0.0.0.0:%d", SchedulerPort),
			},
		},
		Worker: Unit{
			Name:     WorkerUnit,
			Replicas: 3,
			Image:    "ghcr.io/buildmesh/worker:latest",
			Env: map[string]string{
				"WORKER_CONFIG": workerConfigPath + "/worker.json",
			},
		},
	}
}

// ServiceDNS returns the stable in-cluster address for a unit's Service.
// Peer wiring always goes through this, never through pod addresses.
func (d Descriptor) ServiceDNS(unit string, port int32) string {
	return fmt.Sprintf("%s.%s.svc.cluster.local:%d", unit, d.Namespace, port)
}

// Objects renders the descriptor into the ordered base manifest: namespace,
// source-sync resources, pipeline, the three units and their services, and
// the two gateways. Rendering is deterministic.
func (d Descriptor) Objects() []runtime.Object {
	objs := []runtime.Object{
		d.namespace(),
		d.gitRepository(),
		d.kustomization(CoreKustomization, "./base"),
		d.kustomization(ConfigsKustomization, "./configs"),
		d.kustomization(StackKustomization, "./overlays/lre"),
		d.pipeline(),
		d.workerConfigMap(),
	}
	objs = append(objs, d.deployment(d.Storage), d.service(d.Storage.Name, CASPort, false))
	objs = append(objs, d.deployment(d.Scheduler), d.service(d.Scheduler.Name, SchedulerPort, false))
	// The worker tier needs individual pod identity, so its service is
	// headless.
	objs = append(objs, d.deployment(d.Worker), d.service(d.Worker.Name, WorkerPort, true))
	objs = append(objs,
		d.gateway(CASGateway, CASPort, d.Storage.Name),
		d.gateway(SchedulerGateway, SchedulerPort, d.Scheduler.Name),
	)
	return objs
}

func (d Descriptor) namespace() runtime.Object {
	return &corev1.Namespace{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Namespace"},
		ObjectMeta: metav1.ObjectMeta{
			Name:   d.Namespace,
			Labels: commonLabels(""),
		},
	}
}

func (d Descriptor) gitRepository() runtime.Object {
	return &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "source.toolkit.fluxcd.io/v1",
		"kind":       "GitRepository",
		"metadata": map[string]interface{}{
			"name":      GitRepositoryName,
			"namespace": d.Namespace,
		},
		"spec": map[string]interface{}{
			"interval": "1m0s",
			"url":      DefaultRepoURL,
			"ref": map[string]interface{}{
				"branch": "main",
				"commit": "",
			},
		},
	}}
}

func (d Descriptor) kustomization(name, path string) runtime.Object {
	return &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "kustomize.toolkit.fluxcd.io/v1",
		"kind":       "Kustomization",
		"metadata": map[string]interface{}{
			"name":      name,
			"namespace": d.Namespace,
		},
		"spec": map[string]interface{}{
			"interval": "1m0s",
			"path":     path,
			"prune":    true,
			"sourceRef": map[string]interface{}{
				"kind": "GitRepository",
				"name": GitRepositoryName,
			},
		},
	}}
}

func (d Descriptor) pipeline() runtime.Object {
	return &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "tekton.dev/v1beta1",
		"kind":       "Pipeline",
		"metadata": map[string]interface{}{
			"name":      PipelineName,
			"namespace": d.Namespace,
		},
		"spec": map[string]interface{}{
			"params": []interface{}{
				map[string]interface{}{"name": "repoURL", "type": "string"},
				map[string]interface{}{"name": "revision", "type": "string"},
			},
			"tasks": []interface{}{
				map[string]interface{}{
					"name":    "build-images",
					"taskRef": map[string]interface{}{"name": "kaniko-multi-build"},
					"params": []interface{}{
						map[string]interface{}{"name": "repoURL", "value": "$(params.repoURL)"},
						map[string]interface{}{"name": "revision", "value": "$(params.revision)"},
					},
				},
			},
		},
	}}
}

func (d Descriptor) workerConfigMap() runtime.Object {
	return &corev1.ConfigMap{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "ConfigMap"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      WorkerConfigMap,
			Namespace: d.Namespace,
			Labels:    commonLabels(WorkerUnit),
		},
		Data: map[string]string{
			"worker.json": fmt.Sprintf(
				`{"cas":"grpc://%s","scheduler":"grpc://%s","runner":"%s/worker-runner"}`,
				d.ServiceDNS(d.Storage.Name, CASPort),
				d.ServiceDNS(d.Scheduler.Name, SchedulerPort),
				workerStagingDir,
			),
		},
	}
}

func (d Descriptor) deployment(u Unit) runtime.Object {
	replicas := u.Replicas
	dep := &appsv1.Deployment{
		TypeMeta: metav1.TypeMeta{APIVersion: "apps/v1", Kind: "Deployment"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      u.Name,
			Namespace: d.Namespace,
			Labels:    commonLabels(u.Name),
		},
		Spec: appsv1.DeploymentSpec{
			Replicas: &replicas,
			Selector: &metav1.LabelSelector{
				MatchLabels: map[string]string{"app": u.Name},
			},
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: commonLabels(u.Name),
				},
				Spec: corev1.PodSpec{
					Containers: []corev1.Container{{
						Name:  u.Name,
						Image: u.Image,
						Env:   d.unitEnv(u),
					}},
				},
			},
		},
	}

	if u.Name == WorkerUnit {
		d.addWorkerMounts(dep)
	}

	return dep
}

// unitEnv renders the unit's own bindings plus the derived peer endpoints.
// The peer endpoints always point at the stable Service DNS names.
func (d Descriptor) unitEnv(u Unit) []corev1.EnvVar {
	env := map[string]string{}
	for k, v := range u.Env {
		env[k] = v
	}

	switch u.Name {
	case SchedulerUnit:
		env["CAS_ENDPOINT"] = "grpc://" + d.ServiceDNS(d.Storage.Name, CASPort)
	case WorkerUnit:
		env["CAS_ENDPOINT"] = "grpc://" + d.ServiceDNS(d.Storage.Name, CASPort)
		env["SCHEDULER_ENDPOINT"] = "grpc://" + d.ServiceDNS(d.Scheduler.Name, SchedulerPort)
	}

	return sortedEnv(env)
}

func (d Descriptor) addWorkerMounts(dep *appsv1.Deployment) {
	podSpec := &dep.Spec.Template.Spec

	podSpec.Volumes = []corev1.Volume{
		{
			Name: "staging",
			VolumeSource: corev1.VolumeSource{
				EmptyDir: &corev1.EmptyDirVolumeSource{},
			},
		},
		{
			Name: "config",
			VolumeSource: corev1.VolumeSource{
				ConfigMap: &corev1.ConfigMapVolumeSource{
					LocalObjectReference: corev1.LocalObjectReference{Name: WorkerConfigMap},
				},
			},
		},
	}

	// The runner executable is staged into the shared ephemeral dir before
	// the worker process starts.
	podSpec.InitContainers = []corev1.Container{{
		Name:    "stage-runner",
		Image:   d.Worker.Image,
		Command: []string{"cp", "/usr/local/bin/worker-runner", workerStagingDir + "/worker-runner"},
		VolumeMounts: []corev1.VolumeMount{
			{Name: "staging", MountPath: workerStagingDir},
		},
	}}

	podSpec.Containers[0].VolumeMounts = []corev1.VolumeMount{
		{Name: "staging", MountPath: workerStagingDir},
		{Name: "config", MountPath: workerConfigPath, ReadOnly: true},
	}
}

func (d Descriptor) service(unit string, port int32, headless bool) runtime.Object {
	svc := &corev1.Service{
		TypeMeta: metav1.TypeMeta{APIVersion: "v1", Kind: "Service"},
		ObjectMeta: metav1.ObjectMeta{
			Name:      unit,
			Namespace: d.Namespace,
			Labels:    commonLabels(unit),
		},
		Spec: corev1.ServiceSpec{
			Selector: map[string]string{"app": unit},
			Ports: []corev1.ServicePort{{
				Name: "grpc",
				Port: port,
			}},
		},
	}
	if headless {
		svc.Spec.ClusterIP = corev1.ClusterIPNone
	}
	return svc
}

func (d Descriptor) gateway(name string, port int32, backend string) runtime.Object {
	return &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "gateway.networking.k8s.io/v1beta1",
		"kind":       "Gateway",
		"metadata": map[string]interface{}{
			"name":      name,
			"namespace": d.Namespace,
			"labels": map[string]interface{}{
				"app": backend,
			},
		},
		"spec": map[string]interface{}{
			"gatewayClassName": "istio",
			"listeners": []interface{}{
				map[string]interface{}{
					"name":     "grpc",
					"port":     int64(port),
					"protocol": "HTTP",
				},
			},
		},
	}}
}

func commonLabels(unit string) map[string]string {
	labels := map[string]string{
		"app.kubernetes.io/part-of": "buildmesh",
	}
	if unit != "" {
		labels["app"] = unit
	}
	return labels
}

func sortedEnv(env map[string]string) []corev1.EnvVar {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	vars := make([]corev1.EnvVar, 0, len(keys))
	for _, k := range keys {
		vars = append(vars, corev1.EnvVar{Name: k, Value: env[k]})
	}
	return vars
}
