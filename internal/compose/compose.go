// Package compose turns the topology descriptor plus a list of named patch
// operations into one finalized manifest. Composition is pure and
// deterministic: the same descriptor and patch list always produce
// byte-identical output.
package compose

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/buildmesh/bringup/internal/topology"

	wyaml "github.com/rancher/wrangler/v2/pkg/yaml"

	"k8s.io/apimachinery/pkg/api/meta"
	"k8s.io/apimachinery/pkg/runtime"
	"sigs.k8s.io/kustomize/api/krusty"
	"sigs.k8s.io/kustomize/api/types"
	"sigs.k8s.io/kustomize/kyaml/filesys"
	"sigs.k8s.io/kustomize/kyaml/resid"
	"sigs.k8s.io/yaml"
)

// ErrMalformedPatch is returned when a patch operation references a target
// resource or field path that does not exist in the base manifest.
var ErrMalformedPatch = fmt.Errorf("malformed patch")

// PatchOperation replaces one field of one base resource. Operations apply
// in list order; the last write to a field path wins.
type PatchOperation struct {
	Kind  string
	Name  string
	Path  string // JSON pointer, e.g. /spec/url
	Value string
}

// Options are the recognized environment-derived overrides.
type Options struct {
	Overlay string
	RepoURL string
	Branch  string
	Commit  string
	// Images maps a unit name to a container image reference.
	Images map[string]string
}

// Patches renders the options into patch operations in their fixed
// application order: overlay, repository URL, branch, commit, images.
func (o Options) Patches() []PatchOperation {
	var ops []PatchOperation

	if o.Overlay != "" {
		ops = append(ops, PatchOperation{
			Kind:  "Kustomization",
			Name:  topology.StackKustomization,
			Path:  "/spec/path",
			Value: "./overlays/" + o.Overlay,
		})
	}
	if o.RepoURL != "" {
		ops = append(ops, PatchOperation{
			Kind:  "GitRepository",
			Name:  topology.GitRepositoryName,
			Path:  "/spec/url",
			Value: o.RepoURL,
		})
	}
	if o.Branch != "" {
		ops = append(ops, PatchOperation{
			Kind:  "GitRepository",
			Name:  topology.GitRepositoryName,
			Path:  "/spec/ref/branch",
			Value: o.Branch,
		})
	}
	if o.Commit != "" {
		ops = append(ops, PatchOperation{
			Kind:  "GitRepository",
			Name:  topology.GitRepositoryName,
			Path:  "/spec/ref/commit",
			Value: o.Commit,
		})
	}

	units := make([]string, 0, len(o.Images))
	for unit := range o.Images {
		units = append(units, unit)
	}
	sort.Strings(units)
	for _, unit := range units {
		ops = append(ops, PatchOperation{
			Kind:  "Deployment",
			Name:  unit,
			Path:  "/spec/template/spec/containers/0/image",
			Value: o.Images[unit],
		})
	}

	return ops
}

// Compose renders the descriptor, applies the patch operations on top and
// returns the finalized multi-document manifest.
func Compose(desc topology.Descriptor, ops []PatchOperation) ([]byte, error) {
	objs := desc.Objects()

	if err := validate(objs, ops); err != nil {
		return nil, err
	}

	fs := filesys.MakeEmptyDirInMemory()
	kust := &types.Kustomization{
		TypeMeta: types.TypeMeta{
			APIVersion: types.KustomizationVersion,
			Kind:       types.KustomizationKind,
		},
	}

	for i, obj := range objs {
		data, err := yaml.Marshal(obj)
		if err != nil {
			return nil, fmt.Errorf("failed to render base object %d: %w", i, err)
		}
		name := fileName(i, obj)
		if err := fs.WriteFile(name, data); err != nil {
			return nil, err
		}
		kust.Resources = append(kust.Resources, name)
	}

	for _, op := range ops {
		patch, err := json.Marshal([]map[string]interface{}{{
			"op":    "replace",
			"path":  op.Path,
			"value": op.Value,
		}})
		if err != nil {
			return nil, err
		}
		kust.Patches = append(kust.Patches, types.Patch{
			Patch: string(patch),
			Target: &types.Selector{
				ResId: resid.ResId{
					Gvk:  resid.Gvk{Kind: op.Kind},
					Name: op.Name,
				},
			},
		})
	}

	data, err := yaml.Marshal(kust)
	if err != nil {
		return nil, err
	}
	if err := fs.WriteFile("kustomization.yaml", data); err != nil {
		return nil, err
	}

	k := krusty.MakeKustomizer(&krusty.Options{
		LoadRestrictions: types.LoadRestrictionsRootOnly,
		PluginConfig:     types.DisabledPluginConfig(),
	})
	resMap, err := k.Run(fs, ".")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedPatch, err)
	}

	return resMap.AsYaml()
}

// Objects parses a composed manifest back into applyable objects.
func Objects(manifest []byte) ([]runtime.Object, error) {
	return wyaml.ToObjects(bytes.NewReader(manifest))
}

// validate rejects patch operations whose target or field path is absent
// from the base manifest, before kustomize ever sees them.
func validate(objs []runtime.Object, ops []PatchOperation) error {
	for _, op := range ops {
		obj := find(objs, op.Kind, op.Name)
		if obj == nil {
			return fmt.Errorf("%w: no resource %s/%s in base manifest", ErrMalformedPatch, op.Kind, op.Name)
		}
		if !pathExists(obj, op.Path) {
			return fmt.Errorf("%w: resource %s/%s has no field %s", ErrMalformedPatch, op.Kind, op.Name, op.Path)
		}
	}
	return nil
}

func find(objs []runtime.Object, kind, name string) runtime.Object {
	for _, obj := range objs {
		gvk := obj.GetObjectKind().GroupVersionKind()
		if gvk.Kind != kind {
			continue
		}
		acc, err := meta.Accessor(obj)
		if err != nil {
			continue
		}
		if acc.GetName() == name {
			return obj
		}
	}
	return nil
}

func pathExists(obj runtime.Object, pointer string) bool {
	data, err := yaml.Marshal(obj)
	if err != nil {
		return false
	}
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return false
	}

	for _, seg := range strings.Split(strings.TrimPrefix(pointer, "/"), "/") {
		switch cur := doc.(type) {
		case map[string]interface{}:
			next, ok := cur[seg]
			if !ok {
				return false
			}
			doc = next
		case []interface{}:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(cur) {
				return false
			}
			doc = cur[i]
		default:
			return false
		}
	}
	return true
}

func fileName(i int, obj runtime.Object) string {
	gvk := obj.GetObjectKind().GroupVersionKind()
	name := "object"
	if acc, err := meta.Accessor(obj); err == nil {
		name = acc.GetName()
	}
	return fmt.Sprintf("%03d-%s-%s.yaml", i, strings.ToLower(gvk.Kind), name)
}
