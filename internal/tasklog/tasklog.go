// Package tasklog provides per-analysis structured logging for the crew
// pipeline.
//
// Each analysis gets one JSONL file named after its processing ID. Events
// capture every key stage: the crew tasks that ran, every LLM call (with full
// prompts and token usage), and every tool call. The log is what you read
// when an analysis came back wrong and you need to see exactly which prompt
// or tool output sent it sideways.
//
// Design constraints:
//   - All TaskLog methods are nil-safe (no-op on nil receiver) so the crew
//     doesn't need nil checks before every log call.
//   - Registry is the sole owner of JSONL persistence; the crew and the HTTP
//     handler never open files.
//   - The API handler opens a log via Registry.Open and closes it via
//     Registry.Close; the crew receives a *TaskLog as a parameter.
package tasklog

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// EventKind labels a single structured event in the analysis log.
type EventKind string

const (
	KindAnalysisBegin EventKind = "analysis_begin"
	KindAnalysisEnd   EventKind = "analysis_end"
	KindTaskBegin     EventKind = "task_begin"
	KindTaskEnd       EventKind = "task_end"
	KindLLMCall       EventKind = "llm_call"
	KindToolCall      EventKind = "tool_call"
)

// Event is one JSONL line in the analysis log.
// Fields are omitempty so each event only serialises relevant data.
type Event struct {
	Kind      EventKind `json:"kind"`
	Timestamp string    `json:"ts"`

	// analysis_begin / analysis_end
	ProcessingID string      `json:"processing_id,omitempty"`
	Query        string      `json:"query,omitempty"`
	Status       string      `json:"status,omitempty"` // "success" | "failed"
	ElapsedMs    int64       `json:"elapsed_ms,omitempty"`
	TotalTokens  int         `json:"total_tokens,omitempty"`
	AgentStats   []AgentStat `json:"agent_stats,omitempty"` // analysis_end only

	// task_begin / task_end
	Task  string `json:"task,omitempty"`
	Agent string `json:"agent,omitempty"`

	// llm_call
	SystemPrompt     string `json:"system_prompt,omitempty"`
	UserPrompt       string `json:"user_prompt,omitempty"`
	Response         string `json:"response,omitempty"`
	PromptTokens     int    `json:"prompt_tokens,omitempty"`
	CompletionTokens int    `json:"completion_tokens,omitempty"`
	Turn             int    `json:"turn,omitempty"` // 1-indexed tool-loop turn

	// tool_call
	Tool       string `json:"tool,omitempty"`
	ToolInput  string `json:"tool_input,omitempty"`
	ToolOutput string `json:"tool_output,omitempty"`
	ToolError  string `json:"tool_error,omitempty"`
}

// AnalysisStats aggregates all cost metrics for a completed analysis.
//
// Expectations:
//   - Agents is sorted by agent name
//   - ToolCallCount equals the total number of ToolCall invocations
//   - ToolElapsedMs equals the sum of all elapsed times passed to ToolCall
type AnalysisStats struct {
	Agents        []AgentStat `json:"agents"`
	ToolCallCount int         `json:"tool_call_count"`
	ToolElapsedMs int64       `json:"tool_elapsed_ms"`
}

// AgentStat summarises LLM usage for one agent across all calls in an analysis.
type AgentStat struct {
	Agent            string `json:"agent"`
	Calls            int    `json:"calls"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
}

// agentStat is the unexported per-agent accumulator stored inside a TaskLog.
type agentStat struct {
	calls            int
	promptTokens     int
	completionTokens int
}

// TaskLog is a handle for writing structured events for one analysis.
//
// Expectations:
//   - All methods are nil-safe (no-op when called on nil *TaskLog)
//   - Concurrent writes are safe (mutex-protected)
//   - TotalTokens returns the running sum of prompt+completion tokens across all LLMCall events
type TaskLog struct {
	processingID     string
	started          time.Time
	mu               sync.Mutex
	f                *os.File
	promptTokens     int
	completionTokens int
	agentStats       map[string]*agentStat
	toolCallCount    int
	toolElapsedMs    int64
}

// Registry maps processing IDs to open TaskLogs.
// It is the sole authority for creating and closing analysis log files.
//
// Expectations:
//   - Open creates the log directory if absent
//   - Open writes an analysis_begin event as the first JSONL line
//   - Open returns the existing log without re-opening when called twice for the same ID
//   - Close writes analysis_end with status, elapsed_ms, total_tokens before flushing
//   - Close removes the ID from the registry
//   - Close no-ops gracefully when the ID is not registered
type Registry struct {
	dir  string
	mu   sync.Mutex
	logs map[string]*TaskLog
}

// NewRegistry creates a Registry that writes one JSONL file per analysis under dir.
func NewRegistry(dir string) *Registry {
	return &Registry{
		dir:  dir,
		logs: make(map[string]*TaskLog),
	}
}

// Open creates a new TaskLog for processingID, writes an analysis_begin
// event, and registers it. Returns nil (safe for all TaskLog methods) when
// the log file cannot be created.
func (r *Registry) Open(processingID, query string) *TaskLog {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if tl, ok := r.logs[processingID]; ok {
		return tl
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		slog.Error("[TASKLOG] could not create dir", "dir", r.dir, "error", err)
		return nil
	}
	path := filepath.Join(r.dir, processingID+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		slog.Error("[TASKLOG] could not open log file", "path", path, "error", err)
		return nil
	}

	tl := &TaskLog{
		processingID: processingID,
		started:      time.Now(),
		f:            f,
		agentStats:   make(map[string]*agentStat),
	}
	r.logs[processingID] = tl
	tl.write(Event{
		Kind:         KindAnalysisBegin,
		ProcessingID: processingID,
		Query:        query,
	})
	return tl
}

// Close writes an analysis_end event, flushes and closes the file, and
// removes the entry from the registry. Safe to call on a nil *Registry or an
// unknown processingID.
func (r *Registry) Close(processingID, status string) {
	if r == nil {
		return
	}
	r.mu.Lock()
	tl, ok := r.logs[processingID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.logs, processingID)
	r.mu.Unlock()

	stats := tl.Stats()

	tl.mu.Lock()
	elapsed := time.Since(tl.started).Milliseconds()
	total := tl.promptTokens + tl.completionTokens
	tl.mu.Unlock()

	tl.write(Event{
		Kind:         KindAnalysisEnd,
		ProcessingID: processingID,
		Status:       status,
		ElapsedMs:    elapsed,
		TotalTokens:  total,
		AgentStats:   stats.Agents,
	})

	tl.mu.Lock()
	if tl.f != nil {
		_ = tl.f.Close()
		tl.f = nil
	}
	tl.mu.Unlock()
}

// TaskBegin writes a task_begin event for one crew task.
func (tl *TaskLog) TaskBegin(task, agent string) {
	if tl == nil {
		return
	}
	tl.write(Event{Kind: KindTaskBegin, Task: task, Agent: agent})
}

// TaskEnd writes a task_end event for one crew task.
func (tl *TaskLog) TaskEnd(task, status string) {
	if tl == nil {
		return
	}
	tl.write(Event{Kind: KindTaskEnd, Task: task, Status: status})
}

// LLMCall writes an llm_call event with full prompts, response, and token
// counts. turn is the 1-indexed tool-loop turn within the task.
func (tl *TaskLog) LLMCall(agent, systemPrompt, userPrompt, response string, promptToks, completionToks, turn int) {
	if tl == nil {
		return
	}
	tl.mu.Lock()
	tl.promptTokens += promptToks
	tl.completionTokens += completionToks
	as := tl.agentStats[agent]
	if as == nil {
		as = &agentStat{}
		tl.agentStats[agent] = as
	}
	as.calls++
	as.promptTokens += promptToks
	as.completionTokens += completionToks
	tl.mu.Unlock()
	tl.write(Event{
		Kind:             KindLLMCall,
		Agent:            agent,
		SystemPrompt:     systemPrompt,
		UserPrompt:       userPrompt,
		Response:         response,
		PromptTokens:     promptToks,
		CompletionTokens: completionToks,
		Turn:             turn,
	})
}

// ToolCall writes a tool_call event. toolError is empty on success.
// elapsedMs is the wall-clock milliseconds the tool execution took.
//
// Expectations:
//   - ToolCallCount increments by 1 per invocation
//   - ToolElapsedMs accumulates the sum of all elapsedMs values
//   - No-op on nil receiver
func (tl *TaskLog) ToolCall(tool, toolInput, toolOutput, toolError string, elapsedMs int64) {
	if tl == nil {
		return
	}
	tl.mu.Lock()
	tl.toolCallCount++
	tl.toolElapsedMs += elapsedMs
	tl.mu.Unlock()
	tl.write(Event{
		Kind:       KindToolCall,
		Tool:       tool,
		ToolInput:  toolInput,
		ToolOutput: toolOutput,
		ToolError:  toolError,
	})
}

// TotalTokens returns the running prompt+completion token sum.
func (tl *TaskLog) TotalTokens() int {
	if tl == nil {
		return 0
	}
	tl.mu.Lock()
	defer tl.mu.Unlock()
	return tl.promptTokens + tl.completionTokens
}

// Stats returns a snapshot of the per-agent and tool usage accumulated so far.
func (tl *TaskLog) Stats() *AnalysisStats {
	if tl == nil {
		return &AnalysisStats{}
	}
	tl.mu.Lock()
	defer tl.mu.Unlock()

	stats := &AnalysisStats{
		ToolCallCount: tl.toolCallCount,
		ToolElapsedMs: tl.toolElapsedMs,
	}
	for agent, as := range tl.agentStats {
		stats.Agents = append(stats.Agents, AgentStat{
			Agent:            agent,
			Calls:            as.calls,
			PromptTokens:     as.promptTokens,
			CompletionTokens: as.completionTokens,
		})
	}
	sort.Slice(stats.Agents, func(i, j int) bool { return stats.Agents[i].Agent < stats.Agents[j].Agent })
	return stats
}

func (tl *TaskLog) write(e Event) {
	if tl == nil {
		return
	}
	e.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	line, err := json.Marshal(e)
	if err != nil {
		slog.Warn("[TASKLOG] marshal event failed", "kind", e.Kind, "error", err)
		return
	}
	tl.mu.Lock()
	defer tl.mu.Unlock()
	if tl.f == nil {
		return
	}
	if _, err := tl.f.Write(append(line, '\n')); err != nil {
		slog.Warn("[TASKLOG] write failed", "error", err)
	}
}
