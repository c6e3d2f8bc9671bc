// Package crew runs a fixed, sequential list of LLM-backed agent tasks over
// an uploaded financial document. Each task is executed by one agent through
// a bounded tool-call loop; the output of task N is fed to task N+1 as
// context, and the final task's output is the analysis returned to the
// caller. There is no planner and no delegation — the pipeline is exactly
// the task list it was built with.
package crew

import (
	"context"
	"fmt"
	"log"
	"strings"

	"findoc/internal/llm"
	"findoc/internal/memory"
	"findoc/internal/tasklog"
)

const (
	defaultMaxIter = 3   // tool-call budget when an agent doesn't set one
	maxRecall      = 5   // prior episodes injected for memory-enabled agents
	summaryLimit   = 400 // characters of task output recorded as an episode
)

// Tool is one capability an agent may call during a task.
type Tool interface {
	Name() string
	Description() string
	Call(ctx context.Context, args map[string]string) (string, error)
}

// ChatClient is the LLM surface the crew needs. *llm.Client satisfies it.
type ChatClient interface {
	Chat(ctx context.Context, system, user string) (string, llm.Usage, error)
}

// Agent is one persona in the crew: a role with a goal, a backstory, and the
// tools it is allowed to call.
type Agent struct {
	Role      string
	Goal      string
	Backstory string
	Tools     []Tool
	MaxIter   int  // tool-call budget per task; defaultMaxIter when zero
	Memory    bool // inject recent episodes and record one after each task
}

// Task is one unit of work assigned to an agent. Description and
// ExpectedOutput may contain {placeholders} resolved from the Kickoff inputs.
// Tools, when non-empty, replaces the agent's tool list for this task.
type Task struct {
	Name           string
	Description    string
	ExpectedOutput string
	Agent          *Agent
	Tools          []Tool
}

// Crew executes its tasks in order against a shared LLM client.
type Crew struct {
	llm   ChatClient
	mem   *memory.Store // nil disables recall and recording
	tasks []Task
}

// New assembles a Crew. Every task must carry an agent.
func New(llmClient ChatClient, mem *memory.Store, tasks ...Task) (*Crew, error) {
	if llmClient == nil {
		return nil, fmt.Errorf("crew: nil LLM client")
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("crew: no tasks")
	}
	for _, t := range tasks {
		if t.Agent == nil {
			return nil, fmt.Errorf("crew: task %q has no agent", t.Name)
		}
	}
	return &Crew{llm: llmClient, mem: mem, tasks: tasks}, nil
}

// Kickoff runs all tasks sequentially and returns the final task's output.
// inputs resolves {placeholders} in task descriptions; by convention it
// carries "query", "file_path", and "processing_id".
//
// Expectations:
//   - Tasks run in the order given to New
//   - Task N+1 receives task N's output verbatim as context
//   - Returns the final task's output
//   - A failing task aborts the run with a wrapped error naming the task
func (c *Crew) Kickoff(ctx context.Context, inputs map[string]string, tlog *tasklog.TaskLog) (string, error) {
	var prev string
	for i, task := range c.tasks {
		log.Printf("[CREW] task %d/%d name=%q agent=%q", i+1, len(c.tasks), task.Name, task.Agent.Role)
		tlog.TaskBegin(task.Name, task.Agent.Role)

		out, err := c.runTask(ctx, task, inputs, prev, tlog)
		if err != nil {
			tlog.TaskEnd(task.Name, "failed")
			return "", fmt.Errorf("crew: task %q: %w", task.Name, err)
		}
		tlog.TaskEnd(task.Name, "completed")

		c.record(task, inputs, out)
		prev = out
	}
	return prev, nil
}

// record persists one episode for a memory-enabled agent's completed task.
func (c *Crew) record(task Task, inputs map[string]string, output string) {
	if c.mem == nil || !task.Agent.Memory {
		return
	}
	c.mem.Write(memory.Entry{
		TaskID:  inputs["processing_id"],
		Agent:   task.Agent.Role,
		Query:   inputs["query"],
		Summary: firstN(strings.TrimSpace(output), summaryLimit),
	})
}

// recallBlock formats recent episodes for prompt injection, or "" when the
// agent has no memory or nothing has been recorded yet.
func (c *Crew) recallBlock(a *Agent) string {
	if c.mem == nil || !a.Memory {
		return ""
	}
	entries, err := c.mem.Recent(maxRecall)
	if err != nil {
		log.Printf("[CREW] WARNING: memory recall failed: %v", err)
		return ""
	}
	if len(entries) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Prior analyses for background (most recent first). Use them for continuity only — never substitute them for evidence from the current document:\n")
	for _, e := range entries {
		fmt.Fprintf(&sb, "- query %q → %s\n", e.Query, firstN(e.Summary, 200))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// interpolate replaces every {key} placeholder with its value from inputs.
// Placeholders with no matching input are left as-is.
//
// Expectations:
//   - Replaces {query} and {file_path} style placeholders
//   - Replaces repeated occurrences of the same placeholder
//   - Leaves unknown placeholders untouched
//   - Returns s unchanged when inputs is empty
func interpolate(s string, inputs map[string]string) string {
	for k, v := range inputs {
		s = strings.ReplaceAll(s, "{"+k+"}", v)
	}
	return s
}

func firstN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
