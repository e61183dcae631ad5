// Package client builds the control-plane clients used by the bring-up
// pipeline from a kubeconfig.
package client

import (
	"github.com/pkg/errors"

	"github.com/rancher/wrangler/v2/pkg/apply"
	"github.com/rancher/wrangler/v2/pkg/kubeconfig"

	"k8s.io/client-go/dynamic"
)

type Getter struct {
	Kubeconfig string
	Context    string
	Namespace  string
}

func NewGetter(kubeconfig, context, namespace string) *Getter {
	return &Getter{
		Kubeconfig: kubeconfig,
		Context:    context,
		Namespace:  namespace,
	}
}

func (g *Getter) Get() (*Client, error) {
	if g == nil {
		return nil, errors.New("client is not configured, please set client getter")
	}
	return newClient(g.Kubeconfig, g.Context, g.Namespace)
}

func (g *Getter) GetNamespace() string {
	return g.Namespace
}

type Client struct {
	Dynamic   dynamic.Interface
	Apply     apply.Apply
	Namespace string
}

func newClient(kubeConfig, context, namespace string) (*Client, error) {
	cc := kubeconfig.GetNonInteractiveClientConfigWithContext(kubeConfig, context)
	ns, _, err := cc.Namespace()
	if err != nil {
		return nil, err
	}

	if namespace != "" {
		ns = namespace
	}
	if ns == "" {
		ns = "default"
	}

	restConfig, err := cc.ClientConfig()
	if err != nil {
		return nil, err
	}

	dyn, err := dynamic.NewForConfig(restConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build dynamic client")
	}

	app, err := apply.NewForConfig(restConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build apply client")
	}

	return &Client{
		Dynamic:   dyn,
		Namespace: ns,
		Apply: app.
			WithDynamicLookup().
			WithDefaultNamespace(ns),
	}, nil
}
