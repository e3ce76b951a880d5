package events

import (
	"encoding/json"
	"time"
)

// Curation event types pushed over SSE. Version bumps when a payload
// shape changes.
const (
	TypeRunStarted   = "curation.run.started"
	TypeRunProgress  = "curation.run.progress"
	TypeRunCompleted = "curation.run.completed"
	TypeRunFailed    = "curation.run.failed"
)

type Event struct {
	Type      string          `json:"type"`
	Version   int             `json:"v"`
	At        time.Time       `json:"at"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func MakeEvent(reqID, typ string, v int, data any) string {
	var raw json.RawMessage
	if data != nil {
		b, _ := json.Marshal(data)
		raw = b
	}
	e := Event{
		Type:      typ,
		Version:   v,
		At:        time.Now().UTC(),
		RequestID: reqID,
		Data:      raw,
	}
	b, _ := json.Marshal(e)
	return string(b)
}

// RunStarted announces a dispatched run.
func RunStarted(runID, runType string) string {
	return MakeEvent("", TypeRunStarted, 1, map[string]string{
		"runId": runID, "runType": runType,
	})
}

// Progress relays one worker progress line to SSE clients.
func Progress(runID, icon, message, severity string) string {
	return MakeEvent("", TypeRunProgress, 1, map[string]string{
		"runId": runID, "icon": icon, "message": message, "severity": severity,
	})
}

// RunCompleted carries the final counters; summary is any JSON-shaped
// value and lands under data.summary.
func RunCompleted(runID string, summary any) string {
	return MakeEvent("", TypeRunCompleted, 1, map[string]any{
		"runId": runID, "summary": summary,
	})
}

func RunFailed(runID, errMsg string) string {
	return MakeEvent("", TypeRunFailed, 1, map[string]string{
		"runId": runID, "error": errMsg,
	})
}
