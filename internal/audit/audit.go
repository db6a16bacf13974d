// Package audit records what the analysis pipeline did and why.
//
// Events go to events.ndjson under the analysis audit directory, one
// JSON object per line. Prompt and raw-response captures are written as
// plain files next to it. Every write is best-effort: the audit trail
// explains runs, it never fails them.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"auspex/internal/logging"
	"auspex/internal/metrics"
	"auspex/internal/workspace"
)

// EventType classifies audit events.
type EventType string

const (
	EventTypeRunStart       EventType = "run_start"
	EventTypeRunComplete    EventType = "run_complete"
	EventTypeStageStart     EventType = "stage_start"
	EventTypeStageComplete  EventType = "stage_complete"
	EventTypeStageSkipped   EventType = "stage_skipped"
	EventTypeBlockDropped   EventType = "block_dropped"
	EventTypeProviderResult EventType = "provider_result"
	EventTypeLLMRequest     EventType = "llm_request"
	EventTypeValidationDrop EventType = "validation_drop"
	EventTypeRotation       EventType = "rotation"
	EventTypeError          EventType = "error"
)

// Event is a single audit log line.
type Event struct {
	Timestamp time.Time              `json:"timestamp"`
	Type      EventType              `json:"type"`
	RunID     string                 `json:"run_id"`
	Stage     string                 `json:"stage,omitempty"`
	Host      string                 `json:"host,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Trail writes audit events and supporting files for one workspace.
type Trail struct {
	dir      string
	maxBytes int64
	keep     int

	mutex  sync.Mutex
	runID  string
	file   *os.File
	writer *bufio.Writer
	size   int64

	log *logging.Logger
}

// New opens the audit trail in dir. The events file is appended to; it
// rotates once it grows past maxBytes, retaining keep rotated files.
func New(dir string, maxBytes int64, keep int) (*Trail, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	t := &Trail{
		dir:      dir,
		maxBytes: maxBytes,
		keep:     keep,
		log:      logging.GetLogger("audit"),
	}
	if err := t.open(); err != nil {
		return nil, err
	}
	return t, nil
}

// SetRunID stamps subsequent events with the given run identifier.
func (t *Trail) SetRunID(runID string) {
	if t == nil {
		return
	}
	t.mutex.Lock()
	t.runID = runID
	t.mutex.Unlock()
}

func (t *Trail) eventsPath() string {
	return filepath.Join(t.dir, "events.ndjson")
}

func (t *Trail) open() error {
	file, err := os.OpenFile(t.eventsPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("stat audit log: %w", err)
	}
	t.file = file
	t.writer = bufio.NewWriter(file)
	t.size = info.Size()
	return nil
}

// rotate shifts events.ndjson to events.1.ndjson and so on, dropping
// anything past the keep count. Called with the mutex held.
func (t *Trail) rotate() {
	_ = t.writer.Flush()
	_ = t.file.Close()

	oldest := filepath.Join(t.dir, fmt.Sprintf("events.%d.ndjson", t.keep))
	_ = os.Remove(oldest)
	for n := t.keep - 1; n >= 1; n-- {
		from := filepath.Join(t.dir, fmt.Sprintf("events.%d.ndjson", n))
		to := filepath.Join(t.dir, fmt.Sprintf("events.%d.ndjson", n+1))
		_ = os.Rename(from, to)
	}
	_ = os.Rename(t.eventsPath(), filepath.Join(t.dir, "events.1.ndjson"))

	if err := t.open(); err != nil {
		t.log.ErrorWithErr("audit log reopen after rotation failed", err)
	}
}

// Record writes one event. Failures are logged, never returned.
func (t *Trail) Record(eventType EventType, stage, host string, data map[string]interface{}) {
	if t == nil {
		return
	}
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if t.file == nil {
		return
	}

	line, err := json.Marshal(Event{
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		RunID:     t.runID,
		Stage:     stage,
		Host:      host,
		Data:      data,
	})
	if err != nil {
		t.log.ErrorWithErr("audit event marshal failed", err)
		return
	}
	line = append(line, '\n')

	if t.size+int64(len(line)) > t.maxBytes {
		t.rotate()
		if t.file == nil {
			return
		}
	}

	if _, err := t.writer.Write(line); err != nil {
		t.log.ErrorWithErr("audit event write failed", err)
		return
	}
	// flush per event so a crash loses nothing
	if err := t.writer.Flush(); err != nil {
		t.log.ErrorWithErr("audit event flush failed", err)
		return
	}
	t.size += int64(len(line))
}

// WriteFile stores supporting material (prompts, raw model replies)
// under the audit directory. Best-effort.
func (t *Trail) WriteFile(relPath string, data []byte) {
	if t == nil {
		return
	}
	workspace.WriteTextBestEffort(filepath.Join(t.dir, relPath), data)
}

// WriteJSON stores a JSON artifact under the audit directory. Best-effort.
func (t *Trail) WriteJSON(relPath string, v interface{}) {
	if t == nil {
		return
	}
	workspace.WriteJSONBestEffort(filepath.Join(t.dir, relPath), v)
}

// Path returns the absolute path of a file inside the audit directory.
func (t *Trail) Path(relPath string) string {
	return filepath.Join(t.dir, relPath)
}

// Close flushes and closes the events file.
func (t *Trail) Close() error {
	if t == nil {
		return nil
	}
	t.mutex.Lock()
	defer t.mutex.Unlock()
	if t.file == nil {
		return nil
	}
	if err := t.writer.Flush(); err != nil {
		_ = t.file.Close()
		t.file = nil
		return fmt.Errorf("flush audit log: %w", err)
	}
	err := t.file.Close()
	t.file = nil
	if err != nil {
		return fmt.Errorf("close audit log: %w", err)
	}
	return nil
}

// RunStart records the options a pipeline run began with.
func (t *Trail) RunStart(hosts []string, force bool) {
	t.Record(EventTypeRunStart, "", "", map[string]interface{}{
		"hosts": hosts,
		"force": force,
	})
}

// RunComplete records the outcome of a pipeline run.
func (t *Trail) RunComplete(outcome string, duration time.Duration) {
	t.Record(EventTypeRunComplete, "", "", map[string]interface{}{
		"outcome":     outcome,
		"duration_ms": duration.Milliseconds(),
	})
}

// StageStart records that a stage began work.
func (t *Trail) StageStart(stage string) {
	t.Record(EventTypeStageStart, stage, "", nil)
}

// StageComplete records stage completion and duration.
func (t *Trail) StageComplete(stage string, duration time.Duration, data map[string]interface{}) {
	if data == nil {
		data = map[string]interface{}{}
	}
	data["duration_ms"] = duration.Milliseconds()
	t.Record(EventTypeStageComplete, stage, "", data)
}

// StageSkipped records that a fresh artifact made recompute unnecessary.
func (t *Trail) StageSkipped(stage, reason string) {
	t.Record(EventTypeStageSkipped, stage, "", map[string]interface{}{"reason": reason})
}

// BlockDropped records a capture block the splitter refused.
func (t *Trail) BlockDropped(host, heading, reason string) {
	t.Record(EventTypeBlockDropped, "split", host, map[string]interface{}{
		"heading": truncate(heading, 200),
		"reason":  reason,
	})
}

// ProviderResult records which extraction tier answered for a command.
func (t *Trail) ProviderResult(host, cmdKey, provider string, ok bool) {
	t.Record(EventTypeProviderResult, "facts", host, map[string]interface{}{
		"cmd_key":  cmdKey,
		"provider": provider,
		"ok":       ok,
	})
}

// LLMRequest records one model call. The Prometheus counters are kept
// here so every call site that audits also counts.
func (t *Trail) LLMRequest(stage, host, provider, model string, charsIn, charsOut int, duration time.Duration, err error) {
	metrics.Default().LLMCall(stage, provider, charsIn, charsOut, err)
	data := map[string]interface{}{
		"provider":    provider,
		"model":       model,
		"chars_in":    charsIn,
		"chars_out":   charsOut,
		"duration_ms": duration.Milliseconds(),
	}
	if err != nil {
		data["error"] = err.Error()
	}
	t.Record(EventTypeLLMRequest, stage, host, data)
}

// ValidationDrop records an LLM claim rejected by evidence validation.
func (t *Trail) ValidationDrop(stage, host, kind, reason, detail string) {
	metrics.Default().Drop(stage, kind)
	t.Record(EventTypeValidationDrop, stage, host, map[string]interface{}{
		"kind":   kind,
		"reason": reason,
		"detail": truncate(detail, 300),
	})
}

// Rotation records artifacts quarantined for hosts that left the
// authoritative set.
func (t *Trail) Rotation(host, kind, dest string) {
	t.Record(EventTypeRotation, "facts", host, map[string]interface{}{
		"kind": kind,
		"dest": dest,
	})
}

// Error records a stage error.
func (t *Trail) Error(stage string, err error) {
	t.Record(EventTypeError, stage, "", map[string]interface{}{"error": err.Error()})
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "...[truncated]"
}
