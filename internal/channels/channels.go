// Package channels implements the per-worker inbox/outbox JSONL protocol and
// the shutdown/drain signal files: append-only message channels with
// byte-cursor reads, size- and line-based rotation, and level-triggered
// signal flags.
package channels

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/omcteam/teambridge/internal/fsutil"
)

// ReadChunkCap bounds a single cursor-advancing read (spec.md §4.4).
const ReadChunkCap = 10 * 1024 * 1024

// InboxMessage is a lead→worker channel entry.
type InboxMessage struct {
	Type      string `json:"type"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// OutboxMessage is a worker→lead channel entry.
type OutboxMessage struct {
	Type      string `json:"type"`
	TaskID    string `json:"taskId,omitempty"`
	Summary   string `json:"summary,omitempty"`
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	RequestID string `json:"requestId,omitempty"`
	Timestamp string `json:"timestamp"`
}

// SignalPayload is the body of a shutdown or drain signal file.
type SignalPayload struct {
	RequestID string `json:"requestId"`
	Reason    string `json:"reason"`
	Timestamp string `json:"timestamp"`
}

// Channels is rooted at the user-scoped teams directory
// (spec.md §3: "<home>/.claude/teams/").
type Channels struct {
	Root string
}

// New returns a Channels rooted at root.
func New(root string) *Channels {
	return &Channels{Root: root}
}

func (c *Channels) teamDir(team string) string {
	return filepath.Join(c.Root, team)
}

func (c *Channels) inboxPath(team, worker string) string {
	return filepath.Join(c.teamDir(team), "inbox", worker+".jsonl")
}

func (c *Channels) inboxOffsetPath(team, worker string) string {
	return filepath.Join(c.teamDir(team), "inbox", worker+".offset")
}

func (c *Channels) outboxPath(team, worker string) string {
	return filepath.Join(c.teamDir(team), "outbox", worker+".jsonl")
}

func (c *Channels) outboxOffsetPath(team, worker string) string {
	return filepath.Join(c.teamDir(team), "outbox", worker+".offset")
}

func (c *Channels) signalPath(team, worker, kind string) string {
	return filepath.Join(c.teamDir(team), "signals", worker+"."+kind)
}

type cursor struct {
	BytesRead int64 `json:"bytesRead"`
}

func (c *Channels) readCursor(offsetPath string) int64 {
	var cur cursor
	if err := fsutil.ReadJSON(offsetPath, &cur); err != nil {
		return 0
	}
	return cur.BytesRead
}

func (c *Channels) writeCursor(offsetPath string, bytesRead int64) error {
	return fsutil.AtomicWriteJSON(offsetPath, c.Root, cursor{BytesRead: bytesRead}, fsutil.FileMode)
}

// AppendInbox appends msg as one JSONL line to worker's inbox.
func (c *Channels) AppendInbox(team, worker string, msg InboxMessage) error {
	return appendLine(c.inboxPath(team, worker), c.Root, msg)
}

// AppendOutbox appends msg as one JSONL line to worker's outbox.
func (c *Channels) AppendOutbox(team, worker string, msg OutboxMessage) error {
	return appendLine(c.outboxPath(team, worker), c.Root, msg)
}

func appendLine(path, base string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return fsutil.AppendFileWithMode(path, base, data, fsutil.FileMode)
}

// ReadNewInboxMessages returns every complete, well-formed message appended
// since the last read, advancing the persisted cursor. It stops at the
// first malformed line without consuming it.
func (c *Channels) ReadNewInboxMessages(team, worker string) ([]InboxMessage, error) {
	return readNew(c, c.inboxPath(team, worker), c.inboxOffsetPath(team, worker), func(line []byte) (InboxMessage, error) {
		var m InboxMessage
		err := json.Unmarshal(line, &m)
		return m, err
	})
}

// ReadNewOutboxMessages mirrors ReadNewInboxMessages for the lead side
// reading a worker's outbox.
func (c *Channels) ReadNewOutboxMessages(team, worker string) ([]OutboxMessage, error) {
	return readNew(c, c.outboxPath(team, worker), c.outboxOffsetPath(team, worker), func(line []byte) (OutboxMessage, error) {
		var m OutboxMessage
		err := json.Unmarshal(line, &m)
		return m, err
	})
}

// ReadAllInboxMessages reads every line in the inbox file, bypassing the
// cursor entirely. Used for diagnostics (teamctl status), never by the
// bridge's own drain loop.
func (c *Channels) ReadAllInboxMessages(team, worker string) ([]InboxMessage, error) {
	data, err := os.ReadFile(c.inboxPath(team, worker))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []InboxMessage
	for _, line := range splitLines(data) {
		if len(line) == 0 {
			continue
		}
		var m InboxMessage
		if err := json.Unmarshal(line, &m); err != nil {
			break
		}
		out = append(out, m)
	}
	return out, nil
}

// ClearInbox truncates a worker's inbox file and resets its cursor.
func (c *Channels) ClearInbox(team, worker string) error {
	path := c.inboxPath(team, worker)
	if _, err := fsutil.ValidateResolvedPath(path, c.Root); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), fsutil.DirMode); err != nil {
		return err
	}
	if err := os.WriteFile(path, nil, fsutil.FileMode); err != nil {
		return fmt.Errorf("channels: truncating inbox %s: %w", path, err)
	}
	return c.writeCursor(c.inboxOffsetPath(team, worker), 0)
}

// readNew implements the byte-cursored read protocol shared by inbox and
// outbox channels (spec.md §4.4 steps 1-4).
func readNew[T any](c *Channels, path, offsetPath string, parse func([]byte) (T, error)) ([]T, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	fileSize := info.Size()

	origCursor := c.readCursor(offsetPath)
	start := origCursor
	if fileSize < start {
		start = 0
	}

	toRead := fileSize - start
	if toRead > ReadChunkCap {
		toRead = ReadChunkCap
	}
	if toRead <= 0 {
		if start != origCursor {
			if err := c.writeCursor(offsetPath, start); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}

	buf := make([]byte, toRead)
	if _, err := f.ReadAt(buf, start); err != nil {
		return nil, err
	}

	lastNL := bytes.LastIndexByte(buf, '\n')
	if lastNL < 0 {
		// No complete line in this span yet.
		if start != origCursor {
			if err := c.writeCursor(offsetPath, start); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}
	complete := buf[:lastNL+1]

	var results []T
	var consumed int
	for _, raw := range splitLinesKeepLength(complete) {
		line := bytes.TrimRight(raw.content, "\r")
		if len(bytes.TrimSpace(line)) == 0 {
			consumed += raw.byteLen
			continue
		}
		parsed, err := parse(line)
		if err != nil {
			break
		}
		results = append(results, parsed)
		consumed += raw.byteLen
	}

	if err := c.writeCursor(offsetPath, start+int64(consumed)); err != nil {
		return nil, err
	}
	return results, nil
}

type rawLine struct {
	content []byte
	byteLen int
}

// splitLinesKeepLength splits data on '\n', retaining each segment's
// original on-disk byte length (content + the trailing '\n') so callers can
// advance a byte cursor precisely even when they stop partway through.
func splitLinesKeepLength(data []byte) []rawLine {
	var out []rawLine
	start := 0
	for i, b := range data {
		if b == '\n' {
			out = append(out, rawLine{content: data[start:i], byteLen: i - start + 1})
			start = i + 1
		}
	}
	return out
}

func splitLines(data []byte) [][]byte {
	return bytes.Split(bytes.TrimRight(data, "\n"), []byte("\n"))
}

// RotateOutboxIfNeeded keeps only the most recent floor(maxLines/2) lines
// once the outbox exceeds maxLines, atomically. It returns whether rotation
// occurred.
func (c *Channels) RotateOutboxIfNeeded(team, worker string, maxLines int) (bool, error) {
	path := c.outboxPath(team, worker)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	lines := bytes.Split(bytes.TrimRight(data, "\n"), []byte("\n"))
	if len(data) == 0 || len(lines) <= maxLines {
		return false, nil
	}
	keep := maxLines / 2
	tail := lines[len(lines)-keep:]
	out := bytes.Join(tail, []byte("\n"))
	out = append(out, '\n')
	if err := fsutil.AtomicWriteBytes(path, c.Root, out, fsutil.FileMode); err != nil {
		return false, err
	}
	return true, nil
}

// RotateInboxIfNeeded rotates the inbox file once it exceeds maxBytes,
// keeping the tail and resetting the cursor to 0 (the surviving content no
// longer corresponds to any previously recorded offset).
func (c *Channels) RotateInboxIfNeeded(team, worker string, maxBytes int64) (bool, error) {
	path := c.inboxPath(team, worker)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if info.Size() <= maxBytes {
		return false, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	keepFrom := int64(len(data)) - maxBytes
	tail := data[keepFrom:]
	if nl := bytes.IndexByte(tail, '\n'); nl >= 0 {
		tail = tail[nl+1:]
	}
	if err := fsutil.AtomicWriteBytes(path, c.Root, tail, fsutil.FileMode); err != nil {
		return false, err
	}
	return true, c.writeCursor(c.inboxOffsetPath(team, worker), 0)
}

// WriteSignal atomically writes a shutdown or drain signal file.
func (c *Channels) WriteSignal(team, worker, kind string, payload SignalPayload) error {
	return fsutil.AtomicWriteJSON(c.signalPath(team, worker, kind), c.Root, payload, fsutil.FileMode)
}

// ReadSignal returns (nil, nil) if the signal file is absent.
func (c *Channels) ReadSignal(team, worker, kind string) (*SignalPayload, error) {
	var p SignalPayload
	err := fsutil.ReadJSON(c.signalPath(team, worker, kind), &p)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, nil
	}
	return &p, nil
}

// DeleteSignal removes a signal file; absence is not an error.
func (c *Channels) DeleteSignal(team, worker, kind string) error {
	err := os.Remove(c.signalPath(team, worker, kind))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// WriteShutdownSignal and its drain counterpart are thin, named
// conveniences over WriteSignal for the two signal kinds the bridge
// understands.
func (c *Channels) WriteShutdownSignal(team, worker string, payload SignalPayload) error {
	return c.WriteSignal(team, worker, "shutdown", payload)
}

func (c *Channels) ReadShutdownSignal(team, worker string) (*SignalPayload, error) {
	return c.ReadSignal(team, worker, "shutdown")
}

func (c *Channels) DeleteShutdownSignal(team, worker string) error {
	return c.DeleteSignal(team, worker, "shutdown")
}

func (c *Channels) WriteDrainSignal(team, worker string, payload SignalPayload) error {
	return c.WriteSignal(team, worker, "drain", payload)
}

func (c *Channels) ReadDrainSignal(team, worker string) (*SignalPayload, error) {
	return c.ReadSignal(team, worker, "drain")
}

func (c *Channels) DeleteDrainSignal(team, worker string) error {
	return c.DeleteSignal(team, worker, "drain")
}
