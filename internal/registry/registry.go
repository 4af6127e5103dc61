// Package registry implements the dual-backend worker registry: a
// canonical registry whose schema is owned by an external consumer, and a
// shadow registry this module always keeps authoritative, selected between
// by a per-project compatibility probe.
package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/omcteam/teambridge/internal/fsutil"
)

// Member is a worker registration record (spec.md §3 "Worker member
// record").
type Member struct {
	AgentID       string   `json:"agentId"`
	Name          string   `json:"name"`
	AgentType     string   `json:"agentType"`
	Model         string   `json:"model"`
	JoinedAt      int64    `json:"joinedAt"`
	SessionID     string   `json:"sessionId"`
	Cwd           string   `json:"cwd"`
	BackendType   string   `json:"backendType"`
	Subscriptions []string `json:"subscriptions,omitempty"`
}

// IsMcpWorker reports whether m was registered by this bridge (as opposed
// to a native backend the canonical registry also lists).
func IsMcpWorker(m Member) bool {
	return m.BackendType == "tmux"
}

// ProbeResult is the singleton per-project compatibility probe outcome.
type ProbeResult struct {
	ProbeResult string `json:"probeResult"`
	ProbedAt    string `json:"probedAt"`
	Version     string `json:"version"`
}

// StrategyCanonical and StrategyShadow are the two registration strategies
// GetRegistrationStrategy can select.
const (
	StrategyCanonical = "canonical"
	StrategyShadow    = "shadow"
)

// Registry is rooted at a user directory (holding the canonical
// per-team config.json files) and a project directory (holding the shadow
// registry and probe result under .omc/state).
type Registry struct {
	UserRoot    string
	ProjectRoot string
}

// New returns a Registry for the given user and project roots.
func New(userRoot, projectRoot string) *Registry {
	return &Registry{UserRoot: userRoot, ProjectRoot: projectRoot}
}

func (r *Registry) canonicalPath(team string) string {
	return filepath.Join(r.UserRoot, team, "config.json")
}

func (r *Registry) shadowPath() string {
	return filepath.Join(r.ProjectRoot, ".omc", "state", "team-mcp-workers.json")
}

func (r *Registry) probePath() string {
	return filepath.Join(r.ProjectRoot, ".omc", "state", "config-probe-result.json")
}

// GetProbeResult returns (nil, nil) if no probe has run yet.
func (r *Registry) GetProbeResult() (*ProbeResult, error) {
	var p ProbeResult
	err := fsutil.ReadJSON(r.probePath(), &p)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, nil
	}
	return &p, nil
}

// GetRegistrationStrategy reads the probe result; any value other than
// "pass" (including an absent probe) selects the shadow strategy.
func (r *Registry) GetRegistrationStrategy() (string, error) {
	p, err := r.GetProbeResult()
	if err != nil {
		return "", err
	}
	if p != nil && p.ProbeResult == "pass" {
		return StrategyCanonical, nil
	}
	return StrategyShadow, nil
}

type memberFile struct {
	Members []Member `json:"members"`
}

// readShadow never errors on a missing or malformed file; an empty
// registry is indistinguishable from one that has never been written.
func (r *Registry) readShadow() ([]Member, error) {
	var f memberFile
	err := fsutil.ReadJSON(r.shadowPath(), &f)
	if os.IsNotExist(err) || err != nil {
		return nil, nil
	}
	return f.Members, nil
}

func (r *Registry) writeShadow(members []Member) error {
	return fsutil.AtomicWriteJSON(r.shadowPath(), r.ProjectRoot, memberFile{Members: members}, fsutil.FileMode)
}

// readCanonicalRaw preserves every key the external schema owner may have
// written alongside "members", round-tripping through a raw map the same
// way internal/tasks preserves unknown task fields.
func (r *Registry) readCanonicalRaw(team string) (map[string]interface{}, []Member, error) {
	var raw map[string]interface{}
	err := fsutil.ReadJSON(r.canonicalPath(team), &raw)
	if os.IsNotExist(err) || err != nil {
		return map[string]interface{}{}, nil, nil
	}
	var members []Member
	if m, ok := raw["members"]; ok {
		data, err := json.Marshal(m)
		if err == nil {
			_ = json.Unmarshal(data, &members)
		}
	}
	return raw, members, nil
}

func (r *Registry) writeCanonical(team string, raw map[string]interface{}, members []Member) error {
	if raw == nil {
		raw = map[string]interface{}{}
	}
	raw["members"] = members
	return fsutil.AtomicWriteJSON(r.canonicalPath(team), r.UserRoot, raw, fsutil.FileMode)
}

func replaceByName(members []Member, m Member) []Member {
	out := make([]Member, 0, len(members)+1)
	for _, existing := range members {
		if existing.Name != m.Name {
			out = append(out, existing)
		}
	}
	return append(out, m)
}

func removeByName(members []Member, name string) []Member {
	out := make([]Member, 0, len(members))
	for _, existing := range members {
		if existing.Name != name {
			out = append(out, existing)
		}
	}
	return out
}

// RegisterMcpWorker constructs the member record, always writes it into
// the shadow registry, and additionally writes it into the canonical
// registry when the probe has declared compatibility. A canonical write
// failure is discarded and never fails the call — the shadow registry is
// the guaranteed source of truth.
func (r *Registry) RegisterMcpWorker(team, worker, provider, model, sessionID, cwd string) (*Member, error) {
	member := Member{
		AgentID:     worker + "@" + team,
		Name:        worker,
		AgentType:   "mcp-" + provider,
		Model:       model,
		JoinedAt:    time.Now().UnixMilli(),
		SessionID:   sessionID,
		Cwd:         cwd,
		BackendType: "tmux",
	}

	shadow, err := r.readShadow()
	if err != nil {
		return nil, err
	}
	if err := r.writeShadow(replaceByName(shadow, member)); err != nil {
		return nil, err
	}

	strategy, err := r.GetRegistrationStrategy()
	if err != nil {
		return &member, err
	}
	if strategy == StrategyCanonical {
		raw, canonMembers, err := r.readCanonicalRaw(team)
		if err == nil {
			_ = r.writeCanonical(team, raw, replaceByName(canonMembers, member))
		}
	}
	return &member, nil
}

// UnregisterMcpWorker removes worker from both registry backs.
func (r *Registry) UnregisterMcpWorker(team, worker string) error {
	shadow, err := r.readShadow()
	if err != nil {
		return err
	}
	if err := r.writeShadow(removeByName(shadow, worker)); err != nil {
		return err
	}

	raw, canonMembers, err := r.readCanonicalRaw(team)
	if err == nil && raw != nil {
		_ = r.writeCanonical(team, raw, removeByName(canonMembers, worker))
	}
	return nil
}

// ListCanonicalMembers returns the raw canonical registry rows for team,
// without merging in the shadow registry. Used by internal/team to exclude
// already-MCP rows before layering the shadow registry's status-bearing
// view on top.
func (r *Registry) ListCanonicalMembers(team string) ([]Member, error) {
	_, members, err := r.readCanonicalRaw(team)
	return members, err
}

// ListShadowMembers returns the raw shadow registry rows, without merging
// in the canonical registry.
func (r *Registry) ListShadowMembers() ([]Member, error) {
	return r.readShadow()
}

// ListMcpWorkers merges both backs; the shadow registry wins on a name
// collision, and both contribute names the other lacks.
func (r *Registry) ListMcpWorkers(team string) ([]Member, error) {
	shadow, err := r.readShadow()
	if err != nil {
		return nil, err
	}
	_, canonMembers, err := r.readCanonicalRaw(team)
	if err != nil {
		return nil, err
	}

	byName := map[string]Member{}
	for _, m := range canonMembers {
		byName[m.Name] = m
	}
	for _, m := range shadow {
		byName[m.Name] = m
	}

	out := make([]Member, 0, len(byName))
	for _, m := range byName {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
