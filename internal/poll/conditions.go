package poll

import (
	"fmt"

	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"sigs.k8s.io/cli-utils/pkg/kstatus/status"
)

// ConditionFailedError reports a resource that reached a terminal failure
// state. Unlike a timeout, this can never resolve by waiting longer.
type ConditionFailedError struct {
	Name    string
	Reason  string
	Message string
}

func (e *ConditionFailedError) Error() string {
	return fmt.Sprintf("%s failed: %s %s", e.Name, e.Reason, e.Message)
}

// Exists succeeds as soon as the target resource is observed at all. The
// poller only evaluates conditions on fetched resources, so existence is
// trivially true here.
func Exists(_ *unstructured.Unstructured) (bool, error) {
	return true, nil
}

// Current computes kstatus for the resource: reconciliation objects that
// follow the kstatus conventions (Reconciling/Stalled, observedGeneration)
// and workload rollouts (replicas fully progressed) are both covered.
// A Failed status is terminal.
func Current(obj *unstructured.Unstructured) (bool, error) {
	result, err := status.Compute(obj)
	if err != nil {
		// Malformed status blocks; the next poll observes a fresh object.
		return false, nil
	}

	switch result.Status {
	case status.CurrentStatus:
		return true, nil
	case status.FailedStatus:
		return false, &ConditionFailedError{
			Name:    obj.GetName(),
			Message: result.Message,
		}
	default:
		return false, nil
	}
}

// Succeeded evaluates a Tekton-style Succeeded condition: True completes
// the wait, False is terminal, anything else keeps polling.
func Succeeded(obj *unstructured.Unstructured) (bool, error) {
	conditions, _, err := unstructured.NestedSlice(obj.Object, "status", "conditions")
	if err != nil {
		return false, nil
	}

	for _, c := range conditions {
		cond, ok := c.(map[string]interface{})
		if !ok {
			continue
		}
		if cond["type"] != "Succeeded" {
			continue
		}
		switch cond["status"] {
		case "True":
			return true, nil
		case "False":
			reason, _ := cond["reason"].(string)
			message, _ := cond["message"].(string)
			return false, &ConditionFailedError{
				Name:    obj.GetName(),
				Reason:  reason,
				Message: message,
			}
		}
	}

	return false, nil
}
