package deploy

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/musharrafhamraz/afterburner/internal/checks"
	"github.com/musharrafhamraz/afterburner/internal/state"
)

type mockCmd struct {
	program string
	args    []string
	stdout  string
	stderr  string
	code    int
	err     error
	block   bool
	calls   int
}

func (m *mockCmd) Run(ctx context.Context, dir string, env []string, program string, args ...string) (string, string, int, error) {
	m.calls++
	m.program, m.args = program, args
	if m.block {
		<-ctx.Done()
		return "", "", -1, ctx.Err()
	}
	return m.stdout, m.stderr, m.code, m.err
}

func TestVercel_Success(t *testing.T) {
	mock := &mockCmd{stdout: "Vercel CLI 33.0.0\nInspect: https://vercel.com/x\nhttps://app-abc.vercel.app\n"}
	res := NewVercel(checks.NewRunner(mock), "tok", nil).Deploy(context.Background(), t.TempDir())

	if res.Status != state.DeploySuccess || res.Target != "vercel" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.URL != "https://app-abc.vercel.app" {
		t.Errorf("expected last line as URL, got %q", res.URL)
	}
	want := []string{"--prod", "--yes", "--token", "tok"}
	if mock.program != "vercel" || !reflect.DeepEqual(mock.args, want) {
		t.Errorf("unexpected command %s %v", mock.program, mock.args)
	}
}

func TestVercel_NoTokenFlagWhenUnset(t *testing.T) {
	mock := &mockCmd{stdout: "https://x.vercel.app"}
	NewVercel(checks.NewRunner(mock), "", nil).Deploy(context.Background(), t.TempDir())
	if !reflect.DeepEqual(mock.args, []string{"--prod", "--yes"}) {
		t.Errorf("unexpected args %v", mock.args)
	}
}

func TestVercel_Failures(t *testing.T) {
	tests := []struct {
		name string
		mock *mockCmd
		logs string
	}{
		{"not installed", &mockCmd{err: fmt.Errorf("%w: vercel", checks.ErrNotInstalled)}, "Vercel CLI not found"},
		{"exit code", &mockCmd{stdout: "building", stderr: "Error: no project", code: 1}, "building\nError: no project"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewVercel(checks.NewRunner(tt.mock), "", nil).Deploy(context.Background(), t.TempDir())
			if res.Status != state.DeployFailed || res.URL != "" {
				t.Errorf("unexpected result %+v", res)
			}
			if !strings.Contains(res.Logs, tt.logs) {
				t.Errorf("expected logs to contain %q, got %q", tt.logs, res.Logs)
			}
		})
	}
}

func TestDocker_RequiresComposeFile(t *testing.T) {
	mock := &mockCmd{}
	res := NewDocker(checks.NewRunner(mock), nil).Deploy(context.Background(), t.TempDir())
	if res.Status != state.DeployFailed || !strings.Contains(res.Logs, "No docker-compose.yml") {
		t.Errorf("unexpected result %+v", res)
	}
	if mock.calls != 0 {
		t.Error("docker should not run without a compose file")
	}
}

func TestDocker_Success(t *testing.T) {
	repo := t.TempDir()
	os.WriteFile(filepath.Join(repo, ComposeFile), []byte("services: {}\n"), 0o644)
	mock := &mockCmd{stdout: "Container app  Started"}

	res := NewDocker(checks.NewRunner(mock), nil).Deploy(context.Background(), repo)
	if res.Status != state.DeploySuccess || res.URL != "http://localhost" {
		t.Errorf("unexpected result %+v", res)
	}
	want := []string{"compose", "-f", "docker-compose.yml", "up", "--build", "-d"}
	if mock.program != "docker" || !reflect.DeepEqual(mock.args, want) {
		t.Errorf("unexpected command %s %v", mock.program, mock.args)
	}
}

func TestCI_GenerateOnce(t *testing.T) {
	repo := t.TempDir()
	ci := NewCI()

	path, err := ci.Generate(repo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != filepath.Join(repo, ".github", "workflows", "afterburner.yml") {
		t.Errorf("unexpected path %q", path)
	}

	data, _ := os.ReadFile(path)
	var wf Workflow
	if err := yaml.Unmarshal(data, &wf); err != nil {
		t.Fatalf("generated workflow is not valid YAML: %v", err)
	}
	if wf.Name != "Afterburner CI/CD" {
		t.Errorf("unexpected name %q", wf.Name)
	}
	job, ok := wf.Jobs["afterburner"]
	if !ok || job.RunsOn != "ubuntu-latest" || len(job.Steps) == 0 {
		t.Fatalf("unexpected job %+v", job)
	}
	if !reflect.DeepEqual(wf.On.PullRequest.Branches, []string{"main", "master"}) {
		t.Errorf("unexpected PR branches %v", wf.On.PullRequest.Branches)
	}

	// existing workflow is left alone
	os.WriteFile(path, []byte("name: custom\n"), 0o644)
	if _, err := ci.Generate(repo); err != nil {
		t.Fatal(err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "name: custom\n" {
		t.Errorf("expected existing workflow kept, got %q", data)
	}
}

func TestMonitoring_Sentry(t *testing.T) {
	repo := t.TempDir()
	m := NewMonitoring()

	ok, err := m.SetupSentry(repo, "https://key@sentry.io/1")
	if err != nil || !ok {
		t.Fatalf("expected sentry configured, got %v %v", ok, err)
	}
	ok, err = m.SetupSentry(repo, "https://other@sentry.io/2")
	if err != nil || !ok {
		t.Fatalf("expected already configured to report true, got %v %v", ok, err)
	}
	data, _ := os.ReadFile(filepath.Join(repo, ".env"))
	if string(data) != "SENTRY_DSN=https://key@sentry.io/1\n" {
		t.Errorf("unexpected .env %q", data)
	}

	if ok, _ := m.SetupSentry(repo, ""); ok {
		t.Error("expected empty DSN to be a no-op")
	}
}

func TestMonitoring_Prometheus(t *testing.T) {
	repo := t.TempDir()
	path, err := NewMonitoring().SetupPrometheus(repo)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := os.ReadFile(path)
	var cfg promConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("invalid YAML: %v", err)
	}
	if len(cfg.ScrapeConfigs) != 1 || cfg.ScrapeConfigs[0].StaticConfigs[0].Targets[0] != "localhost:8000" {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestHealth_RetriesUntilHealthy(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h := &Health{Client: srv.Client(), Attempts: 3, Timeout: time.Second}
	res := h.Check(context.Background(), srv.URL)
	if !res.Healthy || res.StatusCode != 200 || res.Error != "" {
		t.Errorf("expected healthy, got %+v", res)
	}
	if hits.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", hits.Load())
	}
}

func TestHealth_Unhealthy(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	h := &Health{Client: srv.Client(), Attempts: 3, Timeout: time.Second}
	res := h.Check(context.Background(), srv.URL)
	if res.Healthy || res.StatusCode != 404 || res.Error != "HTTP 404" {
		t.Errorf("unexpected result %+v", res)
	}
	if hits.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", hits.Load())
	}
}

func TestHealth_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	h := &Health{Attempts: 1, Timeout: time.Second}
	res := h.Check(context.Background(), url)
	if res.Healthy || res.Error == "" {
		t.Errorf("expected connection error, got %+v", res)
	}
}
