package cliutil

import "github.com/omcteam/teambridge/internal/team"

// ANSI escape codes for terminal colors, the same palette as the teacher's
// internal/cli/colors.go.
const (
	ansiGreen  = "\033[32m"
	ansiYellow = "\033[33m"
	ansiRed    = "\033[31m"
	ansiDim    = "\033[2m"
	ansiReset  = "\033[0m"
)

// statusDisplay returns the symbol and color for a member's projected
// status, generalized from the teacher's stateDisplay (concern pipeline
// states) to team.Status (worker liveness states).
func statusDisplay(status team.Status) (symbol, color string) {
	switch status {
	case team.StatusActive:
		return "⟳", ansiYellow
	case team.StatusIdle:
		return "✓", ansiGreen
	case team.StatusQuarantined:
		return "✗", ansiRed
	case team.StatusDead:
		return "✗", ansiRed
	default:
		return "·", ansiDim
	}
}
