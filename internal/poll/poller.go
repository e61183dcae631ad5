// Package poll is the readiness primitive every bring-up stage blocks on:
// query a resource at a fixed interval until a condition holds or the
// deadline elapses. There is no backoff; bring-up waits are bounded by
// wall-clock deadlines, not request volume.
package poll

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/dynamic"
)

const DefaultInterval = 5 * time.Second

// Target selects the resource a wait is about. Either Name or a
// list-based selection (LabelSelector and/or NamePrefix) is used.
type Target struct {
	Resource      schema.GroupVersionResource
	Namespace     string
	Name          string
	LabelSelector string
	NamePrefix    string
}

func (t Target) String() string {
	sel := t.Name
	if sel == "" {
		var parts []string
		if t.LabelSelector != "" {
			parts = append(parts, t.LabelSelector)
		}
		if t.NamePrefix != "" {
			parts = append(parts, t.NamePrefix+"*")
		}
		sel = strings.Join(parts, ",")
	}
	return fmt.Sprintf("%s %s/%s", t.Resource.Resource, t.Namespace, sel)
}

// Condition inspects a live resource. A true result ends the wait
// successfully. A non-nil error is terminal and ends the wait immediately;
// it is reserved for states that polling can never recover from, such as a
// pipeline reporting Failed.
type Condition func(obj *unstructured.Unstructured) (bool, error)

// TimedOutError reports which wait missed its deadline.
type TimedOutError struct {
	Target   Target
	Deadline time.Duration
}

func (e *TimedOutError) Error() string {
	return fmt.Sprintf("timed out after %s waiting for %s", e.Deadline, e.Target)
}

type Poller struct {
	client   dynamic.Interface
	interval time.Duration
}

func New(client dynamic.Interface, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Poller{client: client, interval: interval}
}

// WaitFor blocks until cond holds for the target, cond reports a terminal
// error, or the deadline elapses. A zero deadline disables the timeout;
// callers opt into that explicitly.
//
// "Not found yet" and transient query errors are normal intermediate
// states. They are retried at the fixed interval up to the deadline and
// never surfaced on their own.
func (p *Poller) WaitFor(ctx context.Context, target Target, cond Condition, deadline time.Duration) error {
	log := logrus.WithField("target", target.String())

	check := func(ctx context.Context) (bool, error) {
		obj, err := p.fetch(ctx, target)
		if err != nil {
			if apierrors.IsNotFound(err) {
				log.Debug("resource not found yet")
			} else {
				log.WithError(err).Debug("transient query error, retrying")
			}
			return false, nil
		}
		if obj == nil {
			log.Debug("no matching resource yet")
			return false, nil
		}
		return cond(obj)
	}

	var err error
	if deadline > 0 {
		err = wait.PollUntilContextTimeout(ctx, p.interval, deadline, true, check)
	} else {
		err = wait.PollUntilContextCancel(ctx, p.interval, true, check)
	}
	if err == nil {
		return nil
	}
	if wait.Interrupted(err) && ctx.Err() == nil {
		return &TimedOutError{Target: target, Deadline: deadline}
	}
	return err
}

// fetch returns the selected resource, or nil when a list-based selection
// matches nothing. List matches are resolved to the lexically first name so
// repeated polls observe the same resource.
func (p *Poller) fetch(ctx context.Context, target Target) (*unstructured.Unstructured, error) {
	ri := p.client.Resource(target.Resource).Namespace(target.Namespace)

	if target.Name != "" {
		return ri.Get(ctx, target.Name, metav1.GetOptions{})
	}

	list, err := ri.List(ctx, metav1.ListOptions{LabelSelector: target.LabelSelector})
	if err != nil {
		return nil, err
	}

	var matches []unstructured.Unstructured
	for _, item := range list.Items {
		if target.NamePrefix != "" && !strings.HasPrefix(item.GetName(), target.NamePrefix) {
			continue
		}
		matches = append(matches, item)
	}
	if len(matches) == 0 {
		return nil, nil
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].GetName() < matches[j].GetName()
	})
	return &matches[0], nil
}
