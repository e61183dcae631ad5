package e2e_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Compose", func() {
	var args []string

	BeforeEach(func() {
		args = []string{"--commit", "0000000000000000000000000000000000000000"}
	})

	It("renders the full stack manifest", func() {
		out, err := env.Bringup.Compose(args...)
		Expect(err).ToNot(HaveOccurred(), out)

		Expect(out).To(ContainSubstring("kind: GitRepository"))
		Expect(out).To(ContainSubstring("kind: Kustomization"))
		Expect(out).To(ContainSubstring("kind: Gateway"))
		Expect(out).To(ContainSubstring("name: cas"))
		Expect(out).To(ContainSubstring("name: scheduler"))
		Expect(out).To(ContainSubstring("name: worker"))
	})

	When("overriding an image", func() {
		BeforeEach(func() {
			args = append(args, "--image", "worker=ghcr.io/buildmesh/worker:e2e")
		})

		It("renders the patched image", func() {
			out, err := env.Bringup.Compose(args...)
			Expect(err).ToNot(HaveOccurred(), out)
			Expect(out).To(ContainSubstring("ghcr.io/buildmesh/worker:e2e"))
		})
	})
})
