package acceptance_test

import (
	"os/exec"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("teamctl --help", func() {
	It("exits with code 0", func() {
		cmd := exec.Command(teamctlBinary, "--help")
		Expect(cmd.Run()).To(Succeed())
	})

	It("lists the operator subcommands", func() {
		cmd := exec.Command(teamctlBinary, "--help")
		output, err := cmd.CombinedOutput()
		Expect(err).NotTo(HaveOccurred())
		Expect(string(output)).To(ContainSubstring("Available Commands"))
		for _, name := range []string{"init", "status", "merge", "report", "validate", "version"} {
			Expect(string(output)).To(ContainSubstring(name))
		}
	})
})

var _ = Describe("teamctl version", func() {
	It("prints a version string", func() {
		cmd := exec.Command(teamctlBinary, "version")
		output, err := cmd.CombinedOutput()
		Expect(err).NotTo(HaveOccurred())
		Expect(string(output)).To(MatchRegexp(`teamctl \S+`))
	})
})

var _ = Describe("teambridge invocation contract", func() {
	It("fails startup validation when --config is missing", func() {
		cmd := exec.Command(teambridgeBinary)
		err := cmd.Run()
		Expect(err).To(HaveOccurred())
		exitErr, ok := err.(*exec.ExitError)
		Expect(ok).To(BeTrue())
		Expect(exitErr.ExitCode()).To(Equal(1))
	})

	It("fails startup validation when the config path resolves outside $HOME", func() {
		cmd := exec.Command(teambridgeBinary, "--config", "/etc/passwd")
		err := cmd.Run()
		Expect(err).To(HaveOccurred())
		exitErr, ok := err.(*exec.ExitError)
		Expect(ok).To(BeTrue())
		Expect(exitErr.ExitCode()).To(Equal(1))
	})
})
