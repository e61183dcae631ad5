// Package apply submits the composed manifest to the cluster control plane.
// Acceptance only means reconciliation has been scheduled, not that
// anything is running yet.
package apply

import (
	"context"
	"fmt"

	wapply "github.com/rancher/wrangler/v2/pkg/apply"

	"k8s.io/apimachinery/pkg/runtime"
)

// SetID labels everything the bring-up submits, so repeated runs against
// the same cluster converge on one object set.
const SetID = "buildmesh-bringup"

// ErrRejectedConfiguration is returned when the control plane refuses the
// submission at admission time. A rejected configuration will not become
// valid by retrying, so callers must not retry.
var ErrRejectedConfiguration = fmt.Errorf("configuration rejected by control plane")

type Applier struct {
	apply     wapply.Apply
	namespace string
}

func New(apply wapply.Apply, namespace string) *Applier {
	return &Applier{
		apply: apply.
			WithDynamicLookup().
			WithSetID(SetID).
			WithDefaultNamespace(namespace),
		namespace: namespace,
	}
}

func (a *Applier) Apply(ctx context.Context, objs []runtime.Object) error {
	if err := a.apply.WithContext(ctx).ApplyObjects(objs...); err != nil {
		return fmt.Errorf("%w: %s", ErrRejectedConfiguration, err)
	}
	return nil
}
