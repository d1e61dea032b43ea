// Package audit journals analysis runs to disk. A single worker goroutine
// owns all file operations; callers only post actions to a channel.
package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/kmaier/quantlab/internal/logger"
)

const (
	actionBegin  = "begin_run"
	actionAppend = "append_entry"
	actionFinish = "finish_run"
)

// action is one operation posted to the journal worker
type action struct {
	Type  string
	RunID string
	Event string
	Data  interface{}
}

// RunHeader identifies an analysis run
type RunHeader struct {
	RunID     string    `json:"run_id"`
	Symbol    string    `json:"symbol"`
	Expiry    string    `json:"expiry,omitempty"`
	Strategy  string    `json:"strategy,omitempty"`
	StartTime time.Time `json:"start_time"`
}

// RunEntry is one timestamped event inside a run
type RunEntry struct {
	Timestamp string      `json:"timestamp"`
	Event     string      `json:"event"`
	Data      interface{} `json:"data"`
}

// RunFile is the on-disk structure of an archived run
type RunFile struct {
	Header  RunHeader  `json:"header"`
	Entries []RunEntry `json:"entries"`
}

// Journal records analysis runs under dir. Safe for concurrent use.
type Journal struct {
	dir  string
	ch   chan action
	done chan struct{}
}

// NewJournal starts the worker goroutine and returns the journal
func NewJournal(dir string) *Journal {
	if dir == "" {
		dir = "audits"
	}
	j := &Journal{
		dir:  dir,
		ch:   make(chan action, 100),
		done: make(chan struct{}),
	}
	go j.worker()
	return j
}

// Begin opens a new run and returns its ID
func (j *Journal) Begin(symbol, expiry, strategy string) string {
	runID := uuid.New().String()
	j.post(action{
		Type:  actionBegin,
		RunID: runID,
		Data: RunHeader{
			RunID:     runID,
			Symbol:    symbol,
			Expiry:    expiry,
			Strategy:  strategy,
			StartTime: time.Now(),
		},
	})
	return runID
}

// Append records one event on an open run
func (j *Journal) Append(runID, event string, data interface{}) {
	j.post(action{Type: actionAppend, RunID: runID, Event: event, Data: data})
}

// Finish archives the run to disk
func (j *Journal) Finish(runID string) {
	j.post(action{Type: actionFinish, RunID: runID})
}

// post never blocks a request path; a full channel drops the action
func (j *Journal) post(a action) {
	select {
	case j.ch <- a:
	default:
		logger.Warn.Printf("⚠️ AUDIT: channel full, dropping %s for run %s", a.Type, a.RunID)
	}
}

// Close drains pending actions and stops the worker
func (j *Journal) Close() {
	close(j.ch)
	<-j.done
}

// worker owns the open-run map and every file write
func (j *Journal) worker() {
	defer close(j.done)
	open := make(map[string]*RunFile)

	for a := range j.ch {
		switch a.Type {
		case actionBegin:
			header, ok := a.Data.(RunHeader)
			if !ok {
				logger.Warn.Printf("⚠️ AUDIT: begin without header for run %s", a.RunID)
				continue
			}
			open[a.RunID] = &RunFile{Header: header, Entries: []RunEntry{}}
			logger.Debug.Printf("📝 AUDIT: opened run %s for %s", a.RunID, header.Symbol)

		case actionAppend:
			run, ok := open[a.RunID]
			if !ok {
				logger.Warn.Printf("⚠️ AUDIT: append to unknown run %s", a.RunID)
				continue
			}
			run.Entries = append(run.Entries, RunEntry{
				Timestamp: time.Now().Format(time.RFC3339),
				Event:     a.Event,
				Data:      a.Data,
			})

		case actionFinish:
			run, ok := open[a.RunID]
			if !ok {
				logger.Warn.Printf("⚠️ AUDIT: finish for unknown run %s", a.RunID)
				continue
			}
			delete(open, a.RunID)
			j.archive(run)

		default:
			logger.Warn.Printf("⚠️ AUDIT: invalid action type %q", a.Type)
		}
	}
}

// archive writes the completed run under the journal directory
func (j *Journal) archive(run *RunFile) {
	if err := os.MkdirAll(j.dir, 0755); err != nil {
		logger.Warn.Printf("⚠️ AUDIT: failed to create %s: %v", j.dir, err)
		return
	}

	name := fmt.Sprintf("%s_%s_%s.json",
		run.Header.StartTime.Format("2006-01-02_15-04-05"),
		run.Header.Symbol,
		run.Header.RunID[:8])
	path := filepath.Join(j.dir, name)

	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		logger.Warn.Printf("⚠️ AUDIT: failed to marshal run %s: %v", run.Header.RunID, err)
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		logger.Warn.Printf("⚠️ AUDIT: failed to write %s: %v", path, err)
		return
	}
	logger.Verbose.Printf("📁 AUDIT: archived run to %s", path)
}
