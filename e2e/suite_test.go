// Package e2e contains end-to-end tests that run the bringup CLI against a
// live cluster. The cluster needs Flux, Tekton and a Gateway API controller
// installed. Set BRINGUP_E2E=1 to enable the suite.
package e2e_test

import (
	"os"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/buildmesh/bringup/e2e/testenv"
)

var env *testenv.Env

func TestE2E(t *testing.T) {
	if os.Getenv("BRINGUP_E2E") == "" {
		t.Skip("BRINGUP_E2E is not set, skipping end-to-end suite")
	}
	RegisterFailHandler(Fail)
	RunSpecs(t, "E2E Suite for Bringup")
}

var _ = BeforeSuite(func() {
	SetDefaultEventuallyTimeout(testenv.Timeout)
	SetDefaultEventuallyPollingInterval(5 * time.Second)

	env = testenv.New()
})
