package acceptance_test

import (
	"os"
	"os/exec"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/omcteam/teambridge/internal/heartbeat"
	"github.com/omcteam/teambridge/internal/registry"
	"github.com/omcteam/teambridge/internal/worktree"
)

// registerFakeWorker seeds the shadow registry and a fresh heartbeat so
// `teamctl merge`'s team.GetTeamMembers lookup sees a live worker, without
// needing a real tmux session or bridge daemon running.
func registerFakeWorker(teamsRoot, repoRoot, team, worker, cwd string) {
	reg := registry.New(teamsRoot, repoRoot)
	_, err := reg.RegisterMcpWorker(team, worker, "claude", "", "sess-1", cwd)
	ExpectWithOffset(1, err).NotTo(HaveOccurred())

	hb := heartbeat.New(teamsRoot)
	ExpectWithOffset(1, hb.WriteHeartbeat(team, worker, heartbeat.Record{
		Worker: worker, Status: "polling", LastPollAt: time.Now().UTC().Format(time.RFC3339), PID: os.Getpid(),
	})).To(Succeed())
}

var _ = Describe("teamctl merge", func() {
	var home string
	var repoDir string

	BeforeEach(func() {
		var err error
		home, err = os.MkdirTemp("", "teambridge-merge-*")
		Expect(err).NotTo(HaveOccurred())
		repoDir = filepath.Join(home, "repo")
		Expect(os.MkdirAll(repoDir, 0o755)).To(Succeed())
		initTestRepo(repoDir)
	})

	AfterEach(func() {
		cleanupTestRepo(repoDir, home)
	})

	// S6: a worker's worktree with one clean commit merges back to the
	// base branch with no conflicts, and the merge commit lands on main.
	It("merges a worker's clean commit back into the base branch", func() {
		teamsRoot := filepath.Join(home, ".claude", "teams")

		record, err := worktree.CreateWorkerWorktree(repoDir, "alpha", "w1", "main")
		Expect(err).NotTo(HaveOccurred())

		writeFile(filepath.Join(record.Path, "worker-file.ts"), "export const done = true;\n")
		runGit(record.Path, "add", "-A")
		runGit(record.Path, "commit", "-m", "worker change")

		registerFakeWorker(teamsRoot, repoDir, "alpha", "w1", record.Path)

		cmd := exec.Command(teamctlBinary, "merge", "alpha", "--project", repoDir)
		cmd.Env = append(os.Environ(), "HOME="+home)
		output, err := cmd.CombinedOutput()
		Expect(err).NotTo(HaveOccurred(), string(output))

		Expect(filepath.Join(repoDir, "worker-file.ts")).To(BeAnExistingFile())
		log := runGit(repoDir, "log", "--oneline", "-n", "2")
		Expect(log).To(ContainSubstring("Merge"))
	})

	It("reports a non-zero exit and leaves main untouched on conflict", func() {
		teamsRoot := filepath.Join(home, ".claude", "teams")

		// Conflicting change directly on main after the worktree was cut.
		record, err := worktree.CreateWorkerWorktree(repoDir, "alpha", "w1", "main")
		Expect(err).NotTo(HaveOccurred())
		writeFile(filepath.Join(record.Path, "README.md"), "worker version\n")
		runGit(record.Path, "add", "-A")
		runGit(record.Path, "commit", "-m", "worker edits README")

		writeFile(filepath.Join(repoDir, "README.md"), "main version\n")
		runGit(repoDir, "add", "-A")
		runGit(repoDir, "commit", "-m", "main edits README")

		registerFakeWorker(teamsRoot, repoDir, "alpha", "w1", record.Path)

		cmd := exec.Command(teamctlBinary, "merge", "alpha", "--project", repoDir)
		cmd.Env = append(os.Environ(), "HOME="+home)
		err = cmd.Run()
		Expect(err).To(HaveOccurred())

		head := runGit(repoDir, "rev-parse", "HEAD")
		Expect(head).NotTo(BeEmpty())
		status := runGit(repoDir, "status", "--porcelain")
		Expect(status).To(BeEmpty())
	})
})
