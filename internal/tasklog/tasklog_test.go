package tasklog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// readEvents parses all JSONL lines from a file into a slice of Events.
func readEvents(t *testing.T, path string) []Event {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("readEvents: %v", err)
	}
	var events []Event
	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		var e Event
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("readEvents: unmarshal %q: %v", line, err)
		}
		events = append(events, e)
	}
	return events
}

// --- Registry.Open ---

func TestRegistry_Open_WritesAnalysisBegin(t *testing.T) {
	// Open creates the log directory and writes analysis_begin as the first JSONL line
	dir := t.TempDir()
	r := NewRegistry(filepath.Join(dir, "tasklogs"))
	tl := r.Open("proc1", "analyze revenue")
	if tl == nil {
		t.Fatal("expected non-nil TaskLog")
	}
	r.Close("proc1", "success")

	events := readEvents(t, filepath.Join(dir, "tasklogs", "proc1.jsonl"))
	if len(events) == 0 {
		t.Fatal("expected at least one event")
	}
	if events[0].Kind != KindAnalysisBegin {
		t.Errorf("first event kind = %q, want %q", events[0].Kind, KindAnalysisBegin)
	}
	if events[0].ProcessingID != "proc1" {
		t.Errorf("processing_id = %q, want %q", events[0].ProcessingID, "proc1")
	}
	if events[0].Query != "analyze revenue" {
		t.Errorf("query = %q, want %q", events[0].Query, "analyze revenue")
	}
}

func TestRegistry_Open_ReturnsExistingOnDuplicate(t *testing.T) {
	// Open returns the existing log without re-opening when called twice for the same ID
	dir := t.TempDir()
	r := NewRegistry(filepath.Join(dir, "tasklogs"))
	tl1 := r.Open("proc1", "query A")
	tl2 := r.Open("proc1", "query B")
	if tl1 != tl2 {
		t.Errorf("expected same *TaskLog pointer on second Open, got different pointers")
	}
	r.Close("proc1", "success")

	events := readEvents(t, filepath.Join(dir, "tasklogs", "proc1.jsonl"))
	beginCount := 0
	for _, e := range events {
		if e.Kind == KindAnalysisBegin {
			beginCount++
		}
	}
	if beginCount != 1 {
		t.Errorf("expected 1 analysis_begin, got %d", beginCount)
	}
}

func TestRegistry_Open_NilRegistryReturnsNil(t *testing.T) {
	var r *Registry
	if tl := r.Open("proc1", "q"); tl != nil {
		t.Errorf("expected nil TaskLog from nil registry")
	}
}

// --- Registry.Close ---

func TestRegistry_Close_WritesAnalysisEnd(t *testing.T) {
	// Close writes analysis_end with status and elapsed_ms as the last line
	dir := t.TempDir()
	r := NewRegistry(filepath.Join(dir, "tasklogs"))
	r.Open("proc1", "q")
	r.Close("proc1", "failed")

	events := readEvents(t, filepath.Join(dir, "tasklogs", "proc1.jsonl"))
	last := events[len(events)-1]
	if last.Kind != KindAnalysisEnd {
		t.Errorf("last event kind = %q, want %q", last.Kind, KindAnalysisEnd)
	}
	if last.Status != "failed" {
		t.Errorf("status = %q, want %q", last.Status, "failed")
	}
	if last.ElapsedMs < 0 {
		t.Errorf("elapsed_ms = %d, want >= 0", last.ElapsedMs)
	}
}

func TestRegistry_Close_WritesAccumulatedTokensAndAgentStats(t *testing.T) {
	// analysis_end carries total_tokens and per-agent stats
	dir := t.TempDir()
	r := NewRegistry(filepath.Join(dir, "tasklogs"))
	tl := r.Open("proc1", "q")
	tl.LLMCall("a Senior Financial Analyst", "sys", "user", "resp", 100, 50, 1)
	tl.LLMCall("a Senior Financial Analyst", "sys", "user", "resp", 200, 80, 2)
	r.Close("proc1", "success")

	events := readEvents(t, filepath.Join(dir, "tasklogs", "proc1.jsonl"))
	last := events[len(events)-1]
	if last.TotalTokens != 430 {
		t.Errorf("total_tokens = %d, want 430", last.TotalTokens)
	}
	if len(last.AgentStats) != 1 {
		t.Fatalf("agent_stats length = %d, want 1", len(last.AgentStats))
	}
	if last.AgentStats[0].Calls != 2 {
		t.Errorf("calls = %d, want 2", last.AgentStats[0].Calls)
	}
}

func TestRegistry_Close_NoopsForUnknown(t *testing.T) {
	// Close no-ops gracefully when the processing ID is not registered
	r := NewRegistry(t.TempDir())
	r.Close("nonexistent", "success")
}

func TestRegistry_Close_NilRegistryNoops(t *testing.T) {
	var r *Registry
	r.Close("proc1", "success")
}

// --- nil TaskLog safety ---

func TestTaskLog_NilReceiverNoops(t *testing.T) {
	// All TaskLog methods are no-ops when called on nil *TaskLog
	var tl *TaskLog
	tl.TaskBegin("analysis", "a Senior Financial Analyst")
	tl.TaskEnd("analysis", "completed")
	tl.LLMCall("agent", "sys", "user", "resp", 100, 50, 1)
	tl.ToolCall("read_financial_document", `{"path":"x"}`, "text", "", 12)
	if got := tl.TotalTokens(); got != 0 {
		t.Errorf("TotalTokens on nil = %d, want 0", got)
	}
	if stats := tl.Stats(); stats == nil || len(stats.Agents) != 0 {
		t.Errorf("Stats on nil = %+v, want empty", stats)
	}
}

// --- event stream ---

func TestTaskLog_WritesTaskAndToolEvents(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(filepath.Join(dir, "tasklogs"))
	tl := r.Open("proc1", "q")
	tl.TaskBegin("analysis", "a Senior Financial Analyst")
	tl.ToolCall("read_financial_document", `{"path":"doc.pdf"}`, "--- Page 1 ---", "", 40)
	tl.TaskEnd("analysis", "completed")
	r.Close("proc1", "success")

	events := readEvents(t, filepath.Join(dir, "tasklogs", "proc1.jsonl"))
	kinds := make([]EventKind, 0, len(events))
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	want := []EventKind{KindAnalysisBegin, KindTaskBegin, KindToolCall, KindTaskEnd, KindAnalysisEnd}
	if len(kinds) != len(want) {
		t.Fatalf("got %d events %v, want %d", len(kinds), kinds, len(want))
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("event %d kind = %q, want %q", i, kinds[i], want[i])
		}
	}
}

// --- Stats ---

func TestTaskLog_Stats_SortsAgentsByName(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(filepath.Join(dir, "tasklogs"))
	tl := r.Open("proc1", "q")
	tl.LLMCall("b verifier", "s", "u", "r", 10, 5, 1)
	tl.LLMCall("a analyst", "s", "u", "r", 20, 10, 1)
	defer r.Close("proc1", "success")

	stats := tl.Stats()
	if len(stats.Agents) != 2 {
		t.Fatalf("agents = %d, want 2", len(stats.Agents))
	}
	if stats.Agents[0].Agent != "a analyst" || stats.Agents[1].Agent != "b verifier" {
		t.Errorf("agents not sorted: %+v", stats.Agents)
	}
}

func TestTaskLog_Stats_AccumulatesToolMetrics(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(filepath.Join(dir, "tasklogs"))
	tl := r.Open("proc1", "q")
	tl.ToolCall("search_web", "{}", "out", "", 100)
	tl.ToolCall("read_financial_document", "{}", "", "file not found", 30)
	defer r.Close("proc1", "success")

	stats := tl.Stats()
	if stats.ToolCallCount != 2 {
		t.Errorf("tool_call_count = %d, want 2", stats.ToolCallCount)
	}
	if stats.ToolElapsedMs != 130 {
		t.Errorf("tool_elapsed_ms = %d, want 130", stats.ToolElapsedMs)
	}
}

// --- TotalTokens ---

func TestTaskLog_TotalTokens_AccumulatesAcrossLLMCalls(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(filepath.Join(dir, "tasklogs"))
	tl := r.Open("proc1", "q")
	tl.LLMCall("agent", "s", "u", "r", 100, 50, 1)
	tl.LLMCall("agent", "s", "u", "r", 200, 80, 2)
	if got := tl.TotalTokens(); got != 430 {
		t.Errorf("TotalTokens = %d, want 430", got)
	}
	r.Close("proc1", "success")
}
