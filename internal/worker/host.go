package worker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"time"

	"matscout-engine/internal/curate"
	"matscout-engine/internal/domain"
	"matscout-engine/internal/events"
	"matscout-engine/internal/store"
)

// Host spawns the detached worker process for a run and supervises it:
// relaying progress to SSE, closing the run on a terminal message, and
// reconciling by force when the worker times out or dies silently.
type Host struct {
	orc        *curate.Orchestrator
	hub        *events.Hub
	timeout    time.Duration
	configPath string

	// OnClose fires once per run after the terminal close (completion
	// email, metrics). Optional.
	OnClose func(runID string, c store.RunClose)

	newCmd func(ctx context.Context, runID string) (*exec.Cmd, error)
}

func NewHost(orc *curate.Orchestrator, hub *events.Hub, timeout time.Duration, configPath string) *Host {
	h := &Host{orc: orc, hub: hub, timeout: timeout, configPath: configPath}
	h.newCmd = h.selfCommand
	return h
}

// selfCommand re-invokes this binary as its own worker.
func (h *Host) selfCommand(ctx context.Context, runID string) (*exec.Cmd, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}
	args := []string{"worker", "--run-id", runID}
	if h.configPath != "" {
		args = append(args, "--config", h.configPath)
	}
	return exec.CommandContext(ctx, exe, args...), nil
}

// Spawn runs the worker for runID to completion and blocks until the run
// row is closed one way or another. Callers put it on a goroutine.
func (h *Host) Spawn(ctx context.Context, runID string) {
	runCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	cmd, err := h.newCmd(runCtx, runID)
	if err != nil {
		h.fail(runID, fmt.Sprintf("worker setup failed: %v", err))
		return
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		h.fail(runID, fmt.Sprintf("worker stdout pipe: %v", err))
		return
	}
	cmd.Stderr = os.Stderr // worker logs land in the host log

	if err := cmd.Start(); err != nil {
		h.fail(runID, fmt.Sprintf("worker failed to start: %v", err))
		return
	}
	log.Printf("[worker] run %s spawned pid=%d timeout=%s", runID, cmd.Process.Pid, h.timeout)

	terminal := false
	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}

		var m Message
		if err := json.Unmarshal(line, &m); err != nil {
			log.Printf("[worker] run %s: skipping non-JSON line: %.120s", runID, line)
			continue
		}

		switch m.Kind {
		case KindProgress:
			h.hub.Publish(events.Progress(runID, m.Icon, m.Message, m.Severity))
		case KindComplete:
			terminal = true
			sum := domain.RunSummary{}
			if m.Summary != nil {
				sum = *m.Summary
			}
			h.close(runID, store.RunClose{
				Status:     domain.RunStatusCompleted,
				Analyzed:   sum.Analyzed,
				Added:      sum.Added,
				Rejected:   sum.Rejected,
				Duplicates: sum.Duplicates,
				QuotaUsed:  sum.QuotaUsed,
			})
			h.hub.Publish(events.RunCompleted(runID, sum))
		case KindFailed:
			terminal = true
			h.close(runID, store.RunClose{Status: domain.RunStatusFailed, Error: m.Error})
			h.hub.Publish(events.RunFailed(runID, m.Error))
		default:
			log.Printf("[worker] run %s: unknown message kind %q", runID, m.Kind)
		}
	}
	if err := sc.Err(); err != nil {
		log.Printf("[worker] run %s: stdout read: %v", runID, err)
	}

	err = cmd.Wait()

	if !terminal {
		reason := "worker exited without a completion message"
		if runCtx.Err() == context.DeadlineExceeded {
			reason = fmt.Sprintf("worker timed out after %s", h.timeout)
		} else if err != nil {
			reason = fmt.Sprintf("worker crashed: %v", err)
		}
		h.fail(runID, reason)
		return
	}
	if err != nil {
		// terminal message arrived, so the exit status is only noise
		log.Printf("[worker] run %s: process exit after terminal message: %v", runID, err)
	}
}

func (h *Host) fail(runID, reason string) {
	log.Printf("[worker] run %s failed: %s", runID, reason)
	h.close(runID, store.RunClose{Status: domain.RunStatusFailed, Error: reason})
	h.hub.Publish(events.RunFailed(runID, reason))
}

// close closes the run row on a fresh context: the run context is often
// already dead (timeout, shutdown) exactly when closing matters most.
func (h *Host) close(runID string, c store.RunClose) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h.orc.Complete(ctx, runID, c); err != nil {
		log.Printf("[worker] close run %s: %v", runID, err)
		return
	}
	if h.OnClose != nil {
		h.OnClose(runID, c)
	}
}
