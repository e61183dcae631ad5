// Package gateway reads the dynamically assigned addresses of the two
// externally reachable gateways once the stack has converged.
package gateway

import (
	"context"
	"fmt"

	"github.com/buildmesh/bringup/internal/topology"

	"github.com/hashicorp/go-multierror"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/client-go/dynamic"
)

// UnresolvedError means the control plane has not assigned an address even
// though bring-up reported success. By that point every declared dependency
// is supposed to be satisfied, so this indicates environment
// misconfiguration and is not retried.
type UnresolvedError struct {
	Gateway string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("gateway %s has no assigned address", e.Gateway)
}

// Addresses are the resolved host:port entry points of the stack.
type Addresses struct {
	CAS       string
	Scheduler string
}

type Resolver struct {
	client    dynamic.Interface
	namespace string
}

func New(client dynamic.Interface, namespace string) *Resolver {
	return &Resolver{client: client, namespace: namespace}
}

// Resolve reads both gateway addresses. Failures for the two gateways are
// collected so a misconfigured pair surfaces as one report.
func (r *Resolver) Resolve(ctx context.Context) (Addresses, error) {
	var (
		addrs Addresses
		errs  *multierror.Error
	)

	cas, err := r.resolve(ctx, topology.CASGateway, topology.CASPort)
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	addrs.CAS = cas

	scheduler, err := r.resolve(ctx, topology.SchedulerGateway, topology.SchedulerPort)
	if err != nil {
		errs = multierror.Append(errs, err)
	}
	addrs.Scheduler = scheduler

	return addrs, errs.ErrorOrNil()
}

func (r *Resolver) resolve(ctx context.Context, name string, port int32) (string, error) {
	obj, err := r.client.Resource(topology.GatewayGVR).Namespace(r.namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to read gateway %s: %w", name, err)
	}

	addr := firstAddress(obj)
	if addr == "" {
		return "", &UnresolvedError{Gateway: name}
	}
	return fmt.Sprintf("%s:%d", addr, port), nil
}

func firstAddress(obj *unstructured.Unstructured) string {
	addresses, _, err := unstructured.NestedSlice(obj.Object, "status", "addresses")
	if err != nil {
		return ""
	}
	for _, a := range addresses {
		entry, ok := a.(map[string]interface{})
		if !ok {
			continue
		}
		if value, _ := entry["value"].(string); value != "" {
			return value
		}
	}
	return ""
}
