package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"github.com/musharrafhamraz/afterburner/internal/config"
	"github.com/musharrafhamraz/afterburner/internal/pipeline"
	"github.com/musharrafhamraz/afterburner/internal/state"
)

// mockGen returns canned replies and records prompts.
type mockGen struct {
	reply   string
	err     error
	prompts []string
}

func (m *mockGen) Generate(_ context.Context, p string) (string, error) {
	m.prompts = append(m.prompts, p)
	return m.reply, m.err
}

// fakeModel satisfies llms.Model.
type fakeModel struct {
	got []llms.MessageContent
}

func (f *fakeModel) GenerateContent(_ context.Context, msgs []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	f.got = msgs
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "fix: handle nil"}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, p string, opts ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, p, opts...)
}

func TestNew_Disabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
	}{
		{"none", config.Config{LLMProvider: "none"}},
		{"empty", config.Config{}},
		{"no key", config.Config{LLMProvider: "gemini", LLMModel: "gemini-2.0-flash"}},
		{"openai no key", config.Config{LLMProvider: "openai"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.cfg)
			if !errors.Is(err, ErrDisabled) {
				t.Errorf("expected ErrDisabled, got %v", err)
			}
		})
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(context.Background(), config.Config{LLMProvider: "groq", LLMAPIKey: "k"})
	if err == nil || errors.Is(err, ErrDisabled) {
		t.Errorf("expected unknown provider error, got %v", err)
	}
}

func TestClient_Generate(t *testing.T) {
	m := &fakeModel{}
	c := NewWithModel(m, 0)
	out, err := c.Generate(context.Background(), "write a message")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "fix: handle nil" {
		t.Errorf("unexpected output %q", out)
	}
	if len(m.got) != 1 || m.got[0].Role != schema.ChatMessageTypeHuman {
		t.Errorf("expected one human message, got %+v", m.got)
	}
}

func findings() []state.Finding {
	return []state.Finding{
		{Tool: "semgrep", Severity: "critical", File: "a.py", Line: 3, Message: "eval"},
		{Tool: "bandit", Severity: "warning", File: "b.py", Line: 9, Message: "md5"},
		{Tool: "gitleaks", Severity: "critical", File: "c.env", Message: "token"},
	}
}

func TestTriage(t *testing.T) {
	gen := &mockGen{reply: "```json\n" + `[
		{"index": 0, "severity": "info", "reason": "test fixture"},
		{"index": 1, "severity": "severe", "reason": "bad severity"},
		{"index": 7, "severity": "info", "reason": "out of range"},
		{"severity": "info", "reason": "no index"}
	]` + "\n```"}
	a := NewAgents(gen, "", nil)

	in := findings()
	out, err := a.Triage(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"info", "warning", "critical"}
	for i, f := range out {
		if f.Severity != want[i] {
			t.Errorf("finding %d: expected %s, got %s", i, want[i], f.Severity)
		}
	}
	if in[0].Severity != "critical" {
		t.Error("input findings must not be modified")
	}
	if !strings.Contains(gen.prompts[0], "[1] tool=bandit severity=warning file=b.py:9 message=md5") {
		t.Errorf("unexpected prompt:\n%s", gen.prompts[0])
	}
}

func TestTriage_Errors(t *testing.T) {
	a := NewAgents(&mockGen{reply: "I think they are all fine"}, "", nil)
	if _, err := a.Triage(context.Background(), findings()); err == nil {
		t.Error("expected parse error")
	}

	a = NewAgents(&mockGen{err: errors.New("quota")}, "", nil)
	if _, err := a.Triage(context.Background(), findings()); err == nil {
		t.Error("expected generator error")
	}
}

func TestTriage_NoFindingsSkipsModel(t *testing.T) {
	gen := &mockGen{}
	out, err := NewAgents(gen, "", nil).Triage(context.Background(), nil)
	if err != nil || len(out) != 0 || len(gen.prompts) != 0 {
		t.Errorf("expected no call, got %v %v %d", out, err, len(gen.prompts))
	}
}

func TestSuggest(t *testing.T) {
	gen := &mockGen{reply: "  --- a/app.py\n+++ b/app.py\n"}
	a := NewAgents(gen, "", nil)

	passing := []state.TestRunResult{{Framework: "pytest", Passed: 3}}
	out, err := a.Suggest(context.Background(), passing, []string{"app.py"}, 1)
	if err != nil || out != "" {
		t.Errorf("expected empty suggestion, got %q %v", out, err)
	}
	if len(gen.prompts) != 0 {
		t.Error("expected no model call for passing results")
	}

	failing := []state.TestRunResult{
		{Framework: "pytest", Passed: 3},
		{Framework: "vitest", Failed: 1, Errors: []string{"adds: expected 3"}, Output: "FAIL adds"},
	}
	out, err = a.Suggest(context.Background(), failing, []string{"app.ts"}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out, "Self-debug suggestion (iteration 2):\n--- a/app.py") {
		t.Errorf("unexpected suggestion %q", out)
	}
	if !strings.Contains(gen.prompts[0], "adds: expected 3") || !strings.Contains(gen.prompts[0], "FAIL adds") {
		t.Errorf("prompt missing failure context:\n%s", gen.prompts[0])
	}
}

func TestCommitMessage(t *testing.T) {
	gen := &mockGen{reply: "```\nfeat(auth): add login\n\nAdds a login form.\n```\n"}
	a := NewAgents(gen, "", nil)
	msg, err := a.CommitMessage(context.Background(), pipeline.CommitContext{
		DiffSummary:    "A login.py",
		Files:          []string{"login.py"},
		SecurityPassed: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg != "feat(auth): add login\n\nAdds a login form." {
		t.Errorf("unexpected message %q", msg)
	}
	if !strings.Contains(gen.prompts[0], "Security status: passed") || !strings.Contains(gen.prompts[0], "Test status: failed") {
		t.Errorf("unexpected prompt:\n%s", gen.prompts[0])
	}
}

func TestStripFences(t *testing.T) {
	tests := map[string]string{
		"plain":                  "plain",
		"```\nbody\n```":         "body",
		"```text\nbody\n```  ":   "body",
		"  spaced  ":             "spaced",
		"```":                    "",
	}
	for in, want := range tests {
		if got := stripFences(in); got != want {
			t.Errorf("stripFences(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestSuggest_TruncatesOutputOnRuneBoundary(t *testing.T) {
	gen := &mockGen{reply: "patch"}
	a := NewAgents(gen, "", nil)

	output := "é" + strings.Repeat("x", maxDebugOutput-1)
	failing := []state.TestRunResult{{Framework: "pytest", Failed: 1, Output: output}}
	if _, err := a.Suggest(context.Background(), failing, []string{"app.py"}, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !utf8.ValidString(gen.prompts[0]) {
		t.Error("expected prompt to be valid UTF-8")
	}
	if strings.Contains(gen.prompts[0], "é") {
		t.Error("expected the leading rune to be cut whole")
	}
}
