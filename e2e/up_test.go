package e2e_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Up", Label("slow"), func() {
	It("brings up the stack and passes the smoke build", func() {
		out, err := env.Bringup.Stdout(true).Workdir(env.Workspace).Up(
			"--workspace", env.Workspace,
		)
		Expect(err).ToNot(HaveOccurred(), out)
		Expect(out).To(ContainSubstring("smoke build succeeded"))
	})

	It("resolves both gateway addresses", func() {
		out, err := env.Bringup.Resolve()
		Expect(err).ToNot(HaveOccurred(), out)
		Expect(out).To(MatchRegexp(`cas\s+\S+:50051`))
		Expect(out).To(MatchRegexp(`scheduler\s+\S+:50052`))
	})
})
