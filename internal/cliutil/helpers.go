package cliutil

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/omcteam/teambridge/internal/config"
)

// marshalConfig renders cfg as indented JSON for a human-editable config file.
func marshalConfig(cfg *config.BridgeConfig) ([]byte, error) {
	return json.MarshalIndent(cfg, "", "  ")
}

// findGitRoot walks up from dir looking for a .git entry, the same way the
// teacher's internal/cli locates the repository a config file belongs to.
func findGitRoot(dir string) string {
	for {
		if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
