package crew

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"findoc/internal/llm"
	"findoc/internal/tasklog"
)

const outputRules = `
Rules:
- Ground every claim in tool output; read the document before analyzing it.
- One tool call per turn; wait for the result before calling another.
- When the gathered evidence covers the expected output, emit the final answer immediately.
- The final answer must be the complete report text, not a summary of what you would do.
- No markdown code fences, no prose outside the JSON.

Output format — exactly one JSON object per turn:
Tool call:    {"action":"tool","tool":"<name>","args":{"<key>":"<value>"}}
Final answer: {"action":"final","output":"<the complete report text>"}`

// action is the single JSON object an agent emits each turn: either a tool
// call or the final answer, discriminated by Action.
type action struct {
	Action string            `json:"action"`
	Tool   string            `json:"tool,omitempty"`
	Args   map[string]string `json:"args,omitempty"`
	Output string            `json:"output,omitempty"`
}

// runTask drives one agent through one task: a bounded loop of LLM turns
// where each turn yields either a tool call (executed, result appended to the
// prompt) or the final answer.
func (c *Crew) runTask(ctx context.Context, task Task, inputs map[string]string, prevOutput string, tlog *tasklog.TaskLog) (string, error) {
	a := task.Agent
	budget := a.MaxIter
	if budget <= 0 {
		budget = defaultMaxIter
	}
	toolset := task.Tools
	if len(toolset) == 0 {
		toolset = a.Tools
	}

	system := systemPrompt(a, toolset)
	base := basePrompt(task, inputs, prevOutput, c.recallBlock(a))

	var lastSig string
	var results strings.Builder

	// budget tool calls plus one closing turn for the final answer.
	for turn := 1; turn <= budget+1; turn++ {
		prompt := base
		if results.Len() > 0 {
			prompt += "\n\nTool results so far:\n" + results.String() +
				"\nYou have the tool output above. Emit the final answer JSON now if it covers the expected output; only make another tool call if something essential is missing."
		}
		if turn == budget+1 {
			prompt += "\n\nTool budget exhausted — you MUST output the final answer JSON now."
		}

		raw, usage, err := c.llm.Chat(ctx, system, prompt)
		tlog.LLMCall(a.Role, system, prompt, raw, usage.PromptTokens, usage.CompletionTokens, turn)
		if err != nil {
			return "", fmt.Errorf("llm: %w", err)
		}
		raw = llm.StripFences(raw)
		log.Printf("[CREW] agent=%q turn=%d response: %s", a.Role, turn, firstN(raw, 200))

		var act action
		if err := json.Unmarshal([]byte(raw), &act); err != nil {
			return "", fmt.Errorf("parse agent output: %w (raw: %s)", err, firstN(raw, 200))
		}

		switch act.Action {
		case "final":
			if strings.TrimSpace(act.Output) == "" {
				return "", fmt.Errorf("agent %q returned an empty final answer", a.Role)
			}
			return act.Output, nil

		case "tool":
			if turn == budget+1 {
				return "", fmt.Errorf("agent %q exhausted its tool budget (%d) without a final answer", a.Role, budget)
			}
			sig := act.Tool + ":" + canonicalArgs(act.Args)
			// Loop detection: an identical consecutive call returns identical
			// output — skip execution and force a different next move.
			if sig == lastSig {
				log.Printf("[CREW] loop detected: identical call blocked (tool=%s turn=%d)", act.Tool, turn)
				fmt.Fprintf(&results,
					"\n[%s] DUPLICATE CALL BLOCKED: this exact call was already made and would return the same output. Either emit the final answer from what you have, or call a different tool / different args.\n",
					act.Tool)
				continue
			}
			lastSig = sig
			output := c.dispatch(ctx, toolset, act, tlog)
			fmt.Fprintf(&results, "\n[%s] %s\n", act.Tool, output)

		default:
			return "", fmt.Errorf("agent output has unknown action %q (raw: %s)", act.Action, firstN(raw, 200))
		}
	}

	return "", fmt.Errorf("agent %q exhausted its tool budget (%d) without a final answer", a.Role, budget)
}

// dispatch executes one tool call and returns its output text. Tool failures
// come back as "Error: ..." text instead of aborting the task, so the agent
// can see what went wrong and route around it.
func (c *Crew) dispatch(ctx context.Context, toolset []Tool, act action, tlog *tasklog.TaskLog) string {
	input, _ := json.Marshal(act.Args)

	tool := findTool(toolset, act.Tool)
	if tool == nil {
		msg := fmt.Sprintf("Error: unknown tool %q — available tools: %s", act.Tool, strings.Join(toolNames(toolset), ", "))
		tlog.ToolCall(act.Tool, string(input), "", msg, 0)
		return msg
	}

	start := time.Now()
	out, err := tool.Call(ctx, act.Args)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		log.Printf("[CREW] tool=%s failed: %v", act.Tool, err)
		tlog.ToolCall(act.Tool, string(input), "", err.Error(), elapsed)
		return "Error: " + err.Error()
	}
	tlog.ToolCall(act.Tool, string(input), out, "", elapsed)
	return out
}

// systemPrompt renders the agent's persona and the task's effective tool list.
func systemPrompt(a *Agent, toolset []Tool) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s.\n\nGoal: %s\n\nBackstory: %s\n", a.Role, a.Goal, a.Backstory)
	if len(toolset) > 0 {
		sb.WriteString("\nTools — call at most one per turn:\n")
		for i, t := range toolset {
			fmt.Fprintf(&sb, "%d. %s — %s\n", i+1, t.Name(), t.Description())
		}
	}
	sb.WriteString(outputRules)
	return sb.String()
}

// basePrompt renders the task description, expected output, previous-task
// context, and recalled memory into the user prompt every turn starts from.
func basePrompt(task Task, inputs map[string]string, prevOutput, recall string) string {
	var sb strings.Builder
	sb.WriteString("Task:\n")
	sb.WriteString(interpolate(task.Description, inputs))
	sb.WriteString("\n\nExpected output:\n")
	sb.WriteString(interpolate(task.ExpectedOutput, inputs))
	if prevOutput != "" {
		sb.WriteString("\n\nContext from the previous task:\n")
		sb.WriteString(prevOutput)
	}
	if recall != "" {
		sb.WriteString("\n\n")
		sb.WriteString(recall)
	}
	return sb.String()
}

func findTool(toolset []Tool, name string) Tool {
	for _, t := range toolset {
		if t.Name() == name {
			return t
		}
	}
	return nil
}

func toolNames(toolset []Tool) []string {
	names := make([]string, 0, len(toolset))
	for _, t := range toolset {
		names = append(names, t.Name())
	}
	return names
}

// canonicalArgs renders args as a deterministic "k=v" list so identical calls
// produce identical signatures regardless of map iteration order.
func canonicalArgs(args map[string]string) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+firstN(args[k], 60))
	}
	return strings.Join(parts, ",")
}
