// Package team implements the unified membership view, capability-based
// task router, and message router (spec.md §4.12).
package team

import (
	"sort"
	"time"

	"github.com/omcteam/teambridge/internal/channels"
	"github.com/omcteam/teambridge/internal/heartbeat"
	"github.com/omcteam/teambridge/internal/registry"
)

// Status is a member's projected liveness/activity state.
type Status string

const (
	StatusActive      Status = "active"
	StatusIdle        Status = "idle"
	StatusDead        Status = "dead"
	StatusQuarantined Status = "quarantined"
	StatusUnknown     Status = "unknown"
)

// CapabilityGeneral is the wildcard capability: a worker offering it
// partially satisfies any required capability.
const CapabilityGeneral = "general"

// BackendClaudeNative is the registry backend kind for a lead's own
// directly-addressable team members (not MCP/tmux workers).
const BackendClaudeNative = "claude-native"

// MaxHeartbeatAge is the default staleness threshold (spec.md §5
// "Liveness... default 30s").
const MaxHeartbeatAge = 30 * time.Second

// Member is the unified, status-projected view of one team member.
type Member struct {
	registry.Member
	Status       Status
	Capabilities []string
}

// GetTeamMembers merges the canonical registry (excluding tmux/MCP rows, to
// avoid double counting against the shadow registry) with the shadow
// registry, deriving each shadow row's status from its heartbeat.
func GetTeamMembers(reg *registry.Registry, hb *heartbeat.Store, team string, maxAge time.Duration) ([]Member, error) {
	if maxAge <= 0 {
		maxAge = MaxHeartbeatAge
	}

	canonical, err := reg.ListCanonicalMembers(team)
	if err != nil {
		return nil, err
	}

	var out []Member
	for _, m := range canonical {
		if registry.IsMcpWorker(m) {
			continue
		}
		out = append(out, Member{Member: m, Status: StatusUnknown})
	}

	shadow, err := reg.ListShadowMembers()
	if err != nil {
		return nil, err
	}
	for _, m := range shadow {
		status, err := deriveStatus(hb, team, m.Name, maxAge)
		if err != nil {
			return nil, err
		}
		out = append(out, Member{Member: m, Status: status})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func deriveStatus(hb *heartbeat.Store, team, worker string, maxAge time.Duration) (Status, error) {
	rec, err := hb.ReadHeartbeat(team, worker)
	if err != nil {
		return StatusUnknown, err
	}
	if rec == nil {
		// Heartbeat absent is ambiguous: the tmux session may or may not
		// still exist. Project both directions to unknown rather than
		// guessing dead or alive.
		return StatusUnknown, nil
	}

	alive, err := hb.IsWorkerAlive(team, worker, maxAge)
	if err != nil {
		return StatusUnknown, err
	}
	if !alive {
		return StatusDead, nil
	}

	switch rec.Status {
	case "executing":
		return StatusActive, nil
	case "polling":
		return StatusIdle, nil
	case "quarantined":
		return StatusQuarantined, nil
	default:
		return StatusUnknown, nil
	}
}

// ScoreWorkerFitness scores worker's capability match against required: 1.0
// per present capability, 0.5 for a wildcard "general" capability covering
// an absent one, 0 otherwise; the sum is normalized by len(required). An
// empty required set scores 1.0 (unconditionally fit).
func ScoreWorkerFitness(capabilities, required []string) float64 {
	if len(required) == 0 {
		return 1.0
	}
	has := make(map[string]bool, len(capabilities))
	general := false
	for _, c := range capabilities {
		has[c] = true
		if c == CapabilityGeneral {
			general = true
		}
	}
	var sum float64
	for _, r := range required {
		switch {
		case has[r]:
			sum += 1.0
		case general:
			sum += 0.5
		}
	}
	return sum / float64(len(required))
}

// RouteDecision is one task's assignment outcome.
type RouteDecision struct {
	TaskID     string
	AssignedTo string
	Backend    string
	Reason     string
	Confidence float64
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// RouteTasks assigns each unassigned task id to the best-fit, non-dead,
// non-quarantined member, tracking a running per-worker load so that later
// tasks in the same batch are steered away from already-assigned workers.
// requiredByTaskID may be nil or missing entries (treated as no requirement,
// i.e. fitness 1.0 for every candidate). Ties are broken by insertion order
// (stable iteration over members, then over unassigned).
func RouteTasks(members []Member, unassigned []string, requiredByTaskID map[string][]string) []RouteDecision {
	var eligible []Member
	for _, m := range members {
		if m.Status == StatusDead || m.Status == StatusQuarantined {
			continue
		}
		eligible = append(eligible, m)
	}

	load := make(map[string]int, len(eligible))
	var decisions []RouteDecision

	for _, taskID := range unassigned {
		required := requiredByTaskID[taskID]

		bestIdx := -1
		bestScore := -1.0
		for i, m := range eligible {
			fitness := ScoreWorkerFitness(m.Capabilities, required)
			if fitness <= 0 {
				continue
			}
			idleBonus := 0.0
			if m.Status == StatusIdle {
				idleBonus = 0.1
			}
			final := clamp01(fitness - 0.2*float64(load[m.Name]) + idleBonus)
			if final > bestScore {
				bestScore = final
				bestIdx = i
			}
		}

		if bestIdx == -1 {
			decisions = append(decisions, RouteDecision{TaskID: taskID, Reason: "no_eligible_worker"})
			continue
		}

		chosen := eligible[bestIdx]
		load[chosen.Name]++
		decisions = append(decisions, RouteDecision{
			TaskID:     taskID,
			AssignedTo: chosen.Name,
			Backend:    chosen.BackendType,
			Reason:     "best_fit",
			Confidence: bestScore,
		})
	}

	return decisions
}

// RouteMessage decides how to deliver content to recipient: a native-backed
// recipient gets a hint for the caller to use the native send path; an
// MCP-backed recipient gets the message appended to its inbox directly.
func RouteMessage(ch *channels.Channels, team string, recipient Member, msgType, content string) (useNative bool, err error) {
	if recipient.BackendType == BackendClaudeNative {
		return true, nil
	}
	err = ch.AppendInbox(team, recipient.Name, channels.InboxMessage{
		Type:      msgType,
		Content:   content,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return false, err
}

// BroadcastResult splits a broadcast's recipients by backend.
type BroadcastResult struct {
	NativeRecipients []Member
	Delivered        []string
}

// BroadcastToTeam fans the message out to every MCP-backed recipient's
// inbox and returns the native-backed recipients for the caller to handle
// through its own send path.
func BroadcastToTeam(ch *channels.Channels, team string, recipients []Member, msgType, content string) (*BroadcastResult, error) {
	result := &BroadcastResult{}
	for _, m := range recipients {
		native, err := RouteMessage(ch, team, m, msgType, content)
		if err != nil {
			return nil, err
		}
		if native {
			result.NativeRecipients = append(result.NativeRecipients, m)
		} else {
			result.Delivered = append(result.Delivered, m.Name)
		}
	}
	return result, nil
}
