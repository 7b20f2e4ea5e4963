// Package deploy ships a repository to a deploy target and wires CI and
// monitoring configuration into it.
package deploy

import (
	"fmt"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/musharrafhamraz/afterburner/internal/fsutil"
)

// WorkflowPath is where the generated GitHub Actions workflow lives,
// relative to the repository root.
var WorkflowPath = filepath.Join(".github", "workflows", "afterburner.yml")

// Workflow is the subset of the GitHub Actions schema the generator emits.
type Workflow struct {
	Name string         `yaml:"name"`
	On   WorkflowEvents `yaml:"on"`
	Jobs map[string]Job `yaml:"jobs"`
}

// WorkflowEvents lists the triggering events.
type WorkflowEvents struct {
	Push        BranchFilter `yaml:"push"`
	PullRequest BranchFilter `yaml:"pull_request"`
}

// BranchFilter restricts an event to branches.
type BranchFilter struct {
	Branches []string `yaml:"branches,flow"`
}

// Job is one workflow job.
type Job struct {
	RunsOn string `yaml:"runs-on"`
	Steps  []Step `yaml:"steps"`
}

// Step is one job step.
type Step struct {
	Name string            `yaml:"name,omitempty"`
	Uses string            `yaml:"uses,omitempty"`
	If   string            `yaml:"if,omitempty"`
	Run  string            `yaml:"run,omitempty"`
	With map[string]string `yaml:"with,omitempty"`
}

// DefaultWorkflow runs the security scanners and tests on every push and PR.
func DefaultWorkflow() Workflow {
	return Workflow{
		Name: "Afterburner CI/CD",
		On: WorkflowEvents{
			Push:        BranchFilter{Branches: []string{"main", "master", "develop"}},
			PullRequest: BranchFilter{Branches: []string{"main", "master"}},
		},
		Jobs: map[string]Job{
			"afterburner": {
				RunsOn: "ubuntu-latest",
				Steps: []Step{
					{Uses: "actions/checkout@v4"},
					{Name: "Set up Python", Uses: "actions/setup-python@v5", With: map[string]string{"python-version": "3.11"}},
					{Name: "Install dependencies", Run: "if [ -f requirements.txt ]; then pip install -r requirements.txt; fi\npip install bandit semgrep\n"},
					{Name: "Secret scan", Uses: "gitleaks/gitleaks-action@v2", With: map[string]string{"args": "detect --no-banner"}},
					{Name: "Security scan (bandit)", Run: "bandit -r . -f json -o bandit-report.json || true"},
					{Name: "Security scan (semgrep)", Run: "semgrep scan --json --quiet . > semgrep-report.json || true"},
					{Name: "Run tests", Run: "python -m pytest --tb=short -q || true"},
					{
						Name: "Upload reports",
						If:   "always()",
						Uses: "actions/upload-artifact@v4",
						With: map[string]string{
							"name": "afterburner-reports",
							"path": "bandit-report.json\nsemgrep-report.json\n",
						},
					},
				},
			},
		},
	}
}

// CI generates the workflow file.
type CI struct {
	Workflow Workflow
}

// NewCI returns a generator for DefaultWorkflow.
func NewCI() *CI {
	return &CI{Workflow: DefaultWorkflow()}
}

// Generate writes the workflow unless one already exists and returns its path.
func (c *CI) Generate(repoPath string) (string, error) {
	data, err := yaml.Marshal(c.Workflow)
	if err != nil {
		return "", fmt.Errorf("marshal workflow: %w", err)
	}
	path := filepath.Join(repoPath, WorkflowPath)
	if _, err := fsutil.WriteIfAbsent(path, data); err != nil {
		return "", fmt.Errorf("write workflow: %w", err)
	}
	return path, nil
}
