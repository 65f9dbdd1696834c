// Package runlog records one CIP-Agent run's event stream and final
// artifacts to disk. It is the write-side mirror of the teacher's
// internal/logs/verbatim.go: that package parses Claude Code's own
// JSONL session transcripts entry-by-entry (LogEntry{Type, Timestamp,
// Message}); runlog writes JSONL instead of reading it, one Event
// ({ts, ts_iso, kind, data}) per line, producing
// <logging.dir>/<instance_id>/events.ndjson plus a
// <logging.dir>/<instance_id>/<name>.json dump per item in spec.md
// §6's Logs layout (understanding, plan, transactions, blackboard,
// failure_pattern, landmarks, candidates) and final_patch.txt, all
// directly under the run directory, with no intermediate subdirectory.
package runlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/daydemir/cip-agent/internal/utils"
)

// Event is one line of events.ndjson, per spec.md §6's logs layout:
// {ts, ts_iso, kind, data}.
type Event struct {
	TS     int64       `json:"ts"`
	TSISO  string      `json:"ts_iso"`
	Kind   string      `json:"kind"`
	Data   interface{} `json:"data,omitempty"`
}

// Logger appends Events to events.ndjson and writes named artifact
// dumps, both scoped under a single run's directory. Safe for
// concurrent use; the scheduler's PCBs and the Controller's step loop
// may log from goroutines sharing one Logger.
type Logger struct {
	mu   sync.Mutex
	dir  string
	file *os.File
	w    *bufio.Writer
}

// Open creates <dir>/<instanceID> and opens events.ndjson for
// appending. instanceID falls back to a timestamp-derived name when
// empty, so ad-hoc runs still get a distinct directory; when present
// it is slugified (the teacher's own phase-directory-naming idiom,
// internal/utils.Slugify) so a task JSON's instance_id can carry
// spaces or mixed case without producing a surprising directory name.
func Open(dir, instanceID string) (*Logger, error) {
	if instanceID == "" {
		instanceID = fmt.Sprintf("run-%d", time.Now().UnixNano())
	} else {
		instanceID = utils.Slugify(instanceID)
	}
	runDir := filepath.Join(dir, instanceID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("runlog: create %s: %w", runDir, err)
	}

	f, err := os.OpenFile(filepath.Join(runDir, "events.ndjson"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("runlog: open events.ndjson: %w", err)
	}

	return &Logger{dir: runDir, file: f, w: bufio.NewWriter(f)}, nil
}

// Emit appends one Event. kind is a short tag ("checkpoint",
// "candidate", "gate_result", "tnr_retry", ...); data is marshaled as
// the event's JSON payload.
func (l *Logger) Emit(kind string, data interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	event := Event{TS: now.Unix(), TSISO: now.Format(time.RFC3339Nano), Kind: kind, Data: data}
	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("runlog: marshal event %s: %w", kind, err)
	}
	if _, err := l.w.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("runlog: write event %s: %w", kind, err)
	}
	return l.w.Flush()
}

// WriteArtifact writes <dir>/<name>.json, pretty-printed. Controller.Run's
// result fields (understanding, plan, transactions, blackboard,
// failure_pattern, landmarks, candidates) are each written under their
// own name after a run completes; final_patch goes through WriteText.
func (l *Logger) WriteArtifact(name string, data interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("runlog: marshal artifact %s: %w", name, err)
	}
	path := filepath.Join(l.dir, name+".json")
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("runlog: write artifact %s: %w", name, err)
	}
	return nil
}

// WriteYAML writes <dir>/<name>.yaml, the teacher's own preferred
// rendering for operator-facing structured dumps (internal/state's
// human-readable YAML siblings of its JSON state files). This is a
// supplementary rendering alongside WriteArtifact's .json file, not a
// replacement for it — spec.md §6 names only .json/.txt/events.ndjson
// in the logs layout.
func (l *Logger) WriteYAML(name string, data interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("runlog: marshal yaml artifact %s: %w", name, err)
	}
	path := filepath.Join(l.dir, name+".yaml")
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("runlog: write yaml artifact %s: %w", name, err)
	}
	return nil
}

// WriteText writes <dir>/<name>.txt verbatim, for artifacts that are
// naturally plain text rather than JSON (final_patch's unified diff).
func (l *Logger) WriteText(name, content string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	path := filepath.Join(l.dir, name+".txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("runlog: write text artifact %s: %w", name, err)
	}
	return nil
}

// Dir returns the run's log directory, for callers (display, cli)
// that need to report where a run's logs landed.
func (l *Logger) Dir() string {
	return l.dir
}

// ReadEvents scans <dir>/events.ndjson line by line, mirroring the
// teacher's bufio.Scanner-based JSONL walk over Claude Code session
// files, and returns every decoded Event in file order.
func ReadEvents(dir string) ([]Event, error) {
	f, err := os.Open(filepath.Join(dir, "events.ndjson"))
	if err != nil {
		return nil, fmt.Errorf("runlog: open events.ndjson: %w", err)
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("runlog: decode event line: %w", err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("runlog: scan events.ndjson: %w", err)
	}
	return events, nil
}

// Close flushes and closes events.ndjson.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.w.Flush(); err != nil {
		l.file.Close()
		return fmt.Errorf("runlog: flush events.ndjson: %w", err)
	}
	return l.file.Close()
}
