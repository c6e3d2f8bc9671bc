package finance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"findoc/internal/crew"
	"findoc/internal/memory"
	"findoc/internal/tasklog"
)

// DefaultQuery is applied when the caller provides no analysis query.
const DefaultQuery = "Analyze this financial document for investment insights"

// ErrDocumentNotFound reports that the saved upload vanished before the crew
// could read it.
var ErrDocumentNotFound = errors.New("financial document not found")

// Service runs analysis crews over uploaded documents. One Service is shared
// by all requests; a fresh crew is assembled per request so agent state
// (recalled memory, tool budgets) never leaks between uploads.
type Service struct {
	llm  crew.ChatClient
	mem  *memory.Store
	logs *tasklog.Registry
}

// NewService wires the shared LLM client, episodic memory, and the analysis
// log registry. mem and logs may be nil (memory and logging disabled).
func NewService(llmClient crew.ChatClient, mem *memory.Store, logs *tasklog.Registry) *Service {
	return &Service{llm: llmClient, mem: mem, logs: logs}
}

// Analyze runs the selected pipelines over the document at filePath and
// returns the final report text.
//
// Expectations:
//   - A blank or whitespace query falls back to DefaultQuery
//   - Returns ErrDocumentNotFound when filePath does not exist
//   - An empty pipeline list defaults to [analysis]
//   - The analysis log is closed with "success" or "failed" accordingly
func (s *Service) Analyze(ctx context.Context, processingID, query, filePath string, pipelines []Pipeline) (string, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		query = DefaultQuery
	}

	if _, err := os.Stat(filePath); err != nil {
		return "", fmt.Errorf("%w at: %s", ErrDocumentNotFound, filePath)
	}

	if len(pipelines) == 0 {
		pipelines = []Pipeline{PipelineAnalysis}
	}
	tasks, err := buildTasks(pipelines)
	if err != nil {
		return "", fmt.Errorf("finance: %w", err)
	}

	cr, err := crew.New(s.llm, s.mem, tasks...)
	if err != nil {
		return "", fmt.Errorf("finance: assemble crew: %w", err)
	}

	tlog := s.logs.Open(processingID, query)
	log.Printf("[FIN] starting analysis processing_id=%s pipelines=%v query=%q", processingID, pipelines, query)

	inputs := map[string]string{
		"query":         query,
		"file_path":     filePath,
		"processing_id": processingID,
	}
	result, err := cr.Kickoff(ctx, inputs, tlog)
	if err != nil {
		s.logs.Close(processingID, "failed")
		return "", fmt.Errorf("finance: analysis failed: %w", err)
	}

	s.logs.Close(processingID, "success")
	log.Printf("[FIN] analysis completed processing_id=%s chars=%d", processingID, len(result))
	return result, nil
}
