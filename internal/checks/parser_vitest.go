package checks

import (
	"encoding/json"
	"fmt"
	"strings"
)

// VitestParser parses vitest/jest JSON reporter output.
type VitestParser struct{}

type vitestOutput struct {
	NumTotalTests   int                 `json:"numTotalTests"`
	NumPassedTests  int                 `json:"numPassedTests"`
	NumFailedTests  int                 `json:"numFailedTests"`
	NumPendingTests int                 `json:"numPendingTests"`
	TestResults     []vitestSuiteResult `json:"testResults"`
}

type vitestSuiteResult struct {
	Name             string                  `json:"name"`
	Status           string                  `json:"status"` // "passed" or "failed"
	AssertionResults []vitestAssertionResult `json:"assertionResults"`
}

type vitestAssertionResult struct {
	FullName        string   `json:"fullName"`
	Status          string   `json:"status"` // "passed", "failed"
	FailureMessages []string `json:"failureMessages"`
}

// maxFailureLen caps each failure message kept for self-debugging.
const maxFailureLen = 200

func (p *VitestParser) Parse(stdout string, stderr string, exitCode int) ParseResult {
	var raw vitestOutput
	if err := json.Unmarshal([]byte(stdout), &raw); err != nil {
		return ParseResult{
			Passed:  false,
			Summary: fmt.Sprintf("exit code %d (could not parse test JSON)", exitCode),
			Err:     fmt.Errorf("parse test JSON: %w", err),
		}
	}

	counts := TestCounts{
		Passed:  raw.NumPassedTests,
		Failed:  raw.NumFailedTests,
		Skipped: raw.NumPendingTests,
	}
	for _, suite := range raw.TestResults {
		for _, a := range suite.AssertionResults {
			if a.Status != "failed" {
				continue
			}
			msg := Tail(strings.Join(a.FailureMessages, "; "), maxFailureLen)
			counts.Failures = append(counts.Failures, fmt.Sprintf("%s: %s", a.FullName, msg))
		}
	}

	passed := exitCode == 0 && counts.Failed == 0
	summary := fmt.Sprintf("%d passed, %d failed, %d skipped out of %d", counts.Passed, counts.Failed, counts.Skipped, raw.NumTotalTests)

	return ParseResult{
		Passed:  passed,
		Summary: summary,
		Tests:   counts,
	}
}
