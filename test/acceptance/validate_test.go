package acceptance_test

import (
	"os"
	"os/exec"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("teamctl validate", func() {
	var home string
	var worktreeDir string

	BeforeEach(func() {
		var err error
		home, err = os.MkdirTemp("", "teambridge-validate-*")
		Expect(err).NotTo(HaveOccurred())

		worktreeDir = filepath.Join(home, ".omc", "worktrees", "alpha", "w1")
		Expect(os.MkdirAll(filepath.Join(worktreeDir, ".git"), 0o755)).To(Succeed())
	})

	AfterEach(func() {
		os.RemoveAll(home)
	})

	It("accepts a well-formed BridgeConfig", func() {
		configPath := filepath.Join(home, ".claude", "teams", "alpha", "w1.bridge.json")
		writeFile(configPath, `{
			"teamName": "alpha",
			"workerName": "w1",
			"provider": "claude",
			"workingDirectory": "`+worktreeDir+`"
		}`)

		cmd := exec.Command(teamctlBinary, "validate", configPath)
		cmd.Env = append(os.Environ(), "HOME="+home)
		output, err := cmd.CombinedOutput()
		Expect(err).NotTo(HaveOccurred(), string(output))
		Expect(string(output)).To(ContainSubstring("valid"))
	})

	It("rejects a config with an unknown provider", func() {
		configPath := filepath.Join(home, ".claude", "teams", "alpha", "w1.bridge.json")
		writeFile(configPath, `{
			"teamName": "alpha",
			"workerName": "w1",
			"provider": "not-a-real-provider",
			"workingDirectory": "`+worktreeDir+`"
		}`)

		cmd := exec.Command(teamctlBinary, "validate", configPath)
		cmd.Env = append(os.Environ(), "HOME="+home)
		output, err := cmd.CombinedOutput()
		Expect(err).To(HaveOccurred())
		Expect(string(output)).To(ContainSubstring("not a known provider"))
	})

	It("rejects a config path that does not resolve under $HOME", func() {
		outside, err := os.MkdirTemp("", "teambridge-outside-*")
		Expect(err).NotTo(HaveOccurred())
		defer os.RemoveAll(outside)

		configPath := filepath.Join(outside, "w1.bridge.json")
		writeFile(configPath, `{"teamName":"alpha","workerName":"w1","provider":"claude","workingDirectory":"`+worktreeDir+`"}`)

		cmd := exec.Command(teamctlBinary, "validate", configPath)
		cmd.Env = append(os.Environ(), "HOME="+home)
		Expect(cmd.Run()).To(HaveOccurred())
	})
})
