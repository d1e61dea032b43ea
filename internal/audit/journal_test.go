package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestJournalArchivesRun(t *testing.T) {
	dir := t.TempDir()
	j := NewJournal(dir)

	runID := j.Begin("AAPL", "2026-09-18", "calls")
	if runID == "" {
		t.Fatal("expected a run ID")
	}
	j.Append(runID, "chain_fetched", map[string]interface{}{"contracts": 34})
	j.Append(runID, "solved", map[string]interface{}{"converged": 33})
	j.Finish(runID)
	j.Close()

	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 archived run, got %d", len(files))
	}

	data, err := os.ReadFile(filepath.Join(dir, files[0].Name()))
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}

	var run RunFile
	if err := json.Unmarshal(data, &run); err != nil {
		t.Fatalf("parse archive: %v", err)
	}
	if run.Header.Symbol != "AAPL" || run.Header.RunID != runID {
		t.Errorf("header mismatch: %+v", run.Header)
	}
	if len(run.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(run.Entries))
	}
	if run.Entries[0].Event != "chain_fetched" {
		t.Errorf("unexpected first event %s", run.Entries[0].Event)
	}
}

func TestAppendToUnknownRunIsIgnored(t *testing.T) {
	dir := t.TempDir()
	j := NewJournal(dir)

	j.Append("no-such-run", "orphan", nil)
	j.Finish("no-such-run")
	j.Close()

	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("expected no archives, got %d", len(files))
	}
}

func TestConcurrentRuns(t *testing.T) {
	dir := t.TempDir()
	j := NewJournal(dir)

	a := j.Begin("MSFT", "2026-09-18", "puts")
	b := j.Begin("NVDA", "2026-09-18", "calls")
	j.Append(a, "step", 1)
	j.Append(b, "step", 2)
	j.Finish(b)
	j.Finish(a)
	j.Close()

	files, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 archived runs, got %d", len(files))
	}
}
