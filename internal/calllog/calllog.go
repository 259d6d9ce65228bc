// Package calllog records every oracle call made during a run to an
// append-only JSONL file, for traceability and cost accounting.
package calllog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kinds of recorded oracle operations.
const (
	KindAsk    = "ask"
	KindVision = "vision"
)

// Call is one recorded oracle call.
type Call struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	LatencyMs int       `json:"latency_ms"`

	RunID  string `json:"run_id,omitempty"`
	Kind   string `json:"kind"`
	Client string `json:"client"`
	Model  string `json:"model,omitempty"`

	// Pages is the human-readable range the call covered, PageCount how
	// many pages it was responsible for.
	Pages     string `json:"pages,omitempty"`
	PageCount int    `json:"page_count,omitempty"`

	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// New builds a Call with identity and timing filled in. The caller times
// the oracle call and passes any error it returned.
func New(kind, client, model, pages string, pageCount int, latency time.Duration, err error) *Call {
	c := &Call{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		LatencyMs: int(latency.Milliseconds()),
		Kind:      kind,
		Client:    client,
		Model:     model,
		Pages:     pages,
		PageCount: pageCount,
		Success:   err == nil,
	}
	if err != nil {
		c.Error = err.Error()
	}
	return c
}

// Recorder appends calls to a JSONL file. Recording is best effort: a
// write failure is logged once and later records are dropped rather than
// failing the run. A nil *Recorder records nothing, so callers never need
// to guard their Record calls.
type Recorder struct {
	mu     sync.Mutex
	f      *os.File
	enc    *json.Encoder
	runID  string
	log    *slog.Logger
	broken bool
}

// NewRecorder opens (creating directories as needed) the JSONL file at
// path and stamps every record with runID.
func NewRecorder(path, runID string) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create call log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open call log: %w", err)
	}
	return &Recorder{
		f:     f,
		enc:   json.NewEncoder(f),
		runID: runID,
		log:   slog.With("component", "calllog"),
	}, nil
}

// Record appends one call.
func (r *Recorder) Record(call *Call) {
	if r == nil || call == nil {
		return
	}
	call.RunID = r.runID
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.broken {
		return
	}
	if err := r.enc.Encode(call); err != nil {
		r.broken = true
		r.log.Warn("call log write failed; further records dropped", "error", err)
	}
}

// Close flushes and closes the underlying file.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.f.Close()
}

// Read loads every record from a call log file, newest last.
func Read(path string) ([]Call, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open call log: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	var out []Call
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var c Call
		if err := json.Unmarshal(line, &c); err != nil {
			return nil, fmt.Errorf("parse call log line %d: %w", len(out)+1, err)
		}
		out = append(out, c)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read call log: %w", err)
	}
	return out, nil
}
