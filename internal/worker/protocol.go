package worker

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"matscout-engine/internal/domain"
)

const (
	KindProgress = "progress"
	KindComplete = "complete"
	KindFailed   = "failed"
)

// Message is one JSON line on the worker's stdout, the entire protocol
// between the detached process and the host.
type Message struct {
	Kind     string             `json:"kind"`
	RunID    string             `json:"run_id"`
	At       time.Time          `json:"at"`
	Icon     string             `json:"icon,omitempty"`
	Message  string             `json:"message,omitempty"`
	Severity string             `json:"severity,omitempty"`
	Summary  *domain.RunSummary `json:"summary,omitempty"`
	Error    string             `json:"error,omitempty"`
}

// emitter serializes messages onto the worker's stdout. The pipeline
// emits from several goroutines, so writes are locked to keep lines whole.
type emitter struct {
	mu    sync.Mutex
	out   io.Writer
	runID string
}

func newEmitter(out io.Writer, runID string) *emitter {
	return &emitter{out: out, runID: runID}
}

func (e *emitter) send(m Message) {
	m.RunID = e.runID
	m.At = time.Now().UTC()
	b, err := json.Marshal(m)
	if err != nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	_, _ = e.out.Write(append(b, '\n'))
}

func (e *emitter) progress(icon, msg, severity string) {
	e.send(Message{Kind: KindProgress, Icon: icon, Message: msg, Severity: severity})
}

func (e *emitter) complete(sum domain.RunSummary) {
	e.send(Message{Kind: KindComplete, Summary: &sum})
}

func (e *emitter) failed(errMsg string) {
	e.send(Message{Kind: KindFailed, Error: errMsg})
}
