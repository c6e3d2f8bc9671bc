package finance

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"findoc/internal/llm"
)

// finalLLM answers every task with a fixed final-answer JSON and records the
// user prompts it saw.
type finalLLM struct {
	output  string
	prompts []string
}

func (f *finalLLM) Chat(_ context.Context, _ string, user string) (string, llm.Usage, error) {
	f.prompts = append(f.prompts, user)
	out := fmt.Sprintf(`{"action":"final","output":%q}`, f.output)
	return out, llm.Usage{PromptTokens: 10, CompletionTokens: 5}, nil
}

func writeFakeDoc(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "financial_document_test.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// --- ParsePipelines ---

func TestParsePipelines_EmptyDefaultsToAnalysis(t *testing.T) {
	got, err := ParsePipelines("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != PipelineAnalysis {
		t.Errorf("got %v", got)
	}
}

func TestParsePipelines_TrimsAndLowercases(t *testing.T) {
	got, err := ParsePipelines(" Investment , RISK ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != PipelineInvestment || got[1] != PipelineRisk {
		t.Errorf("got %v", got)
	}
}

func TestParsePipelines_CollapsesDuplicatesPreservingOrder(t *testing.T) {
	got, err := ParsePipelines("risk,analysis,risk")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0] != PipelineRisk || got[1] != PipelineAnalysis {
		t.Errorf("got %v", got)
	}
}

func TestParsePipelines_ErrorOnUnknownName(t *testing.T) {
	_, err := ParsePipelines("analysis,astrology")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "astrology") {
		t.Errorf("expected offending name in error, got %q", err.Error())
	}
	if !strings.Contains(err.Error(), "verification") {
		t.Errorf("expected valid pipeline list in error, got %q", err.Error())
	}
}

func TestParsePipelines_OnlyCommasDefaultsToAnalysis(t *testing.T) {
	got, err := ParsePipelines(" , ,")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0] != PipelineAnalysis {
		t.Errorf("got %v", got)
	}
}

// --- buildTasks ---

func TestBuildTasks_MapsPipelinesInRequestOrder(t *testing.T) {
	tasks, err := buildTasks([]Pipeline{PipelineRisk, PipelineVerification, PipelineAnalysis})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantNames := []string{"risk", "verification", "analysis"}
	if len(tasks) != len(wantNames) {
		t.Fatalf("got %d tasks", len(tasks))
	}
	for i, want := range wantNames {
		if tasks[i].Name != want {
			t.Errorf("task %d name = %q, want %q", i, tasks[i].Name, want)
		}
	}
}

func TestBuildTasks_SharesOneAnalystAcrossItsTasks(t *testing.T) {
	// Analysis, investment, and risk must reuse the same analyst so its
	// episodic memory and role are consistent across the run
	tasks, err := buildTasks([]Pipeline{PipelineAnalysis, PipelineInvestment, PipelineRisk})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tasks[0].Agent != tasks[1].Agent || tasks[1].Agent != tasks[2].Agent {
		t.Error("expected the same *Agent across analyst tasks")
	}
}

func TestBuildTasks_VerificationUsesSeparateAgent(t *testing.T) {
	tasks, err := buildTasks([]Pipeline{PipelineAnalysis, PipelineVerification})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tasks[0].Agent == tasks[1].Agent {
		t.Error("expected distinct agents for analysis and verification")
	}
	if tasks[0].Agent.Role == tasks[1].Agent.Role {
		t.Errorf("expected distinct roles, both %q", tasks[0].Agent.Role)
	}
}

// --- Service.Analyze ---

func TestAnalyze_ReturnsFinalTaskOutput(t *testing.T) {
	f := &finalLLM{output: "the analysis report"}
	svc := NewService(f, nil, nil)
	got, err := svc.Analyze(context.Background(), "proc1", "q", writeFakeDoc(t), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "the analysis report" {
		t.Errorf("got %q", got)
	}
}

func TestAnalyze_BlankQueryFallsBackToDefault(t *testing.T) {
	// The prompt the agent sees carries DefaultQuery, not an empty string
	f := &finalLLM{output: "ok"}
	svc := NewService(f, nil, nil)
	if _, err := svc.Analyze(context.Background(), "proc1", "   ", writeFakeDoc(t), nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.prompts) == 0 || !strings.Contains(f.prompts[0], DefaultQuery) {
		t.Errorf("expected default query in prompt, got %q", f.prompts)
	}
}

func TestAnalyze_InterpolatesFilePathIntoPrompt(t *testing.T) {
	f := &finalLLM{output: "ok"}
	svc := NewService(f, nil, nil)
	path := writeFakeDoc(t)
	if _, err := svc.Analyze(context.Background(), "proc1", "q", path, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(f.prompts[0], path) {
		t.Errorf("expected %q in prompt, got %q", path, f.prompts[0])
	}
}

func TestAnalyze_ErrDocumentNotFoundForMissingFile(t *testing.T) {
	svc := NewService(&finalLLM{output: "ok"}, nil, nil)
	_, err := svc.Analyze(context.Background(), "proc1", "q", filepath.Join(t.TempDir(), "gone.pdf"), nil)
	if !errors.Is(err, ErrDocumentNotFound) {
		t.Errorf("err = %v, want ErrDocumentNotFound", err)
	}
}

func TestAnalyze_RunsOneLLMTaskPerPipeline(t *testing.T) {
	f := &finalLLM{output: "ok"}
	svc := NewService(f, nil, nil)
	pipelines := []Pipeline{PipelineAnalysis, PipelineRisk}
	if _, err := svc.Analyze(context.Background(), "proc1", "q", writeFakeDoc(t), pipelines); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.prompts) != 2 {
		t.Errorf("got %d LLM calls, want 2", len(f.prompts))
	}
}

// --- agents ---

func TestNewAnalystAgent_CarriesAllFourTools(t *testing.T) {
	a := NewAnalystAgent()
	if len(a.Tools) != 4 {
		t.Errorf("got %d tools, want 4", len(a.Tools))
	}
	if !a.Memory {
		t.Error("expected analyst memory enabled")
	}
}

func TestNewVerifierAgent_OnlyReadsDocuments(t *testing.T) {
	v := NewVerifierAgent()
	if len(v.Tools) != 1 {
		t.Fatalf("got %d tools, want 1", len(v.Tools))
	}
	if v.Tools[0].Name() != "read_financial_document" {
		t.Errorf("got tool %q", v.Tools[0].Name())
	}
}
