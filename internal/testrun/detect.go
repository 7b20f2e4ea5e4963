// Package testrun detects and runs a repository's test suites.
package testrun

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// Framework names.
const (
	Pytest     = "pytest"
	Vitest     = "vitest"
	Jest       = "jest"
	Cargo      = "cargo"
	Go         = "go"
	Playwright = "playwright"
)

// Detector finds test frameworks by their marker files.
type Detector struct{}

// Detect returns the frameworks present in repoPath, in a fixed order.
func (Detector) Detect(repoPath string) []string {
	var found []string
	if hasPytest(repoPath) {
		found = append(found, Pytest)
	}
	switch {
	case anyExists(repoPath, "vitest.config.ts", "vitest.config.js", "vitest.config.mts"):
		found = append(found, Vitest)
	case anyExists(repoPath, "jest.config.ts", "jest.config.js", "jest.config.mjs") || hasTestScript(repoPath):
		found = append(found, Jest)
	}
	if anyExists(repoPath, "Cargo.toml") {
		found = append(found, Cargo)
	}
	if anyExists(repoPath, "go.mod") {
		found = append(found, Go)
	}
	if anyExists(repoPath, "playwright.config.ts", "playwright.config.js") {
		found = append(found, Playwright)
	}
	return found
}

func hasPytest(repoPath string) bool {
	if anyExists(repoPath, "pytest.ini", "setup.cfg", "conftest.py") {
		return true
	}
	if data, err := os.ReadFile(filepath.Join(repoPath, "pyproject.toml")); err == nil && strings.Contains(string(data), "[tool.pytest") {
		return true
	}
	return isDir(filepath.Join(repoPath, "tests")) || isDir(filepath.Join(repoPath, "test"))
}

// hasTestScript reports whether package.json declares a real test script.
// npm init writes a placeholder that always fails.
func hasTestScript(repoPath string) bool {
	data, err := os.ReadFile(filepath.Join(repoPath, "package.json"))
	if err != nil {
		return false
	}
	var pkg struct {
		Scripts map[string]string `json:"scripts"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return false
	}
	script := pkg.Scripts["test"]
	return script != "" && !strings.Contains(script, "no test specified")
}

func anyExists(dir string, names ...string) bool {
	for _, n := range names {
		if _, err := os.Stat(filepath.Join(dir, n)); err == nil {
			return true
		}
	}
	return false
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
