package checks

import "github.com/musharrafhamraz/afterburner/internal/state"

// TestCounts is what a test parser extracts.
type TestCounts struct {
	Passed   int      `json:"passed"`
	Failed   int      `json:"failed"`
	Skipped  int      `json:"skipped"`
	Failures []string `json:"failures,omitempty"`
}

// ParseResult holds the normalized output from a parser. Security parsers
// fill Findings, test parsers fill Tests. Err is set when the output could
// not be understood.
type ParseResult struct {
	Passed   bool            `json:"passed"`
	Summary  string          `json:"summary"`
	Findings []state.Finding `json:"findings,omitempty"`
	Tests    TestCounts      `json:"tests"`
	Err      error           `json:"-"`
}

// Parser converts raw command output into a structured ParseResult.
type Parser interface {
	Parse(stdout string, stderr string, exitCode int) ParseResult
}
