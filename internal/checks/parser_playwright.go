package checks

import (
	"encoding/json"
	"fmt"
)

// PlaywrightParser parses playwright --reporter=json output. Suites nest, so
// the tree is walked recursively.
type PlaywrightParser struct{}

type playwrightSuite struct {
	Title  string            `json:"title"`
	Specs  []playwrightSpec  `json:"specs"`
	Suites []playwrightSuite `json:"suites"`
}

type playwrightSpec struct {
	Title string `json:"title"`
	Tests []struct {
		Results []struct {
			Status string `json:"status"`
			Error  struct {
				Message string `json:"message"`
			} `json:"error"`
		} `json:"results"`
	} `json:"tests"`
}

type playwrightOutput struct {
	Suites []playwrightSuite `json:"suites"`
}

func (p *PlaywrightParser) Parse(stdout string, stderr string, exitCode int) ParseResult {
	var raw playwrightOutput
	if err := json.Unmarshal([]byte(stdout), &raw); err != nil {
		return ParseResult{
			Summary: fmt.Sprintf("exit code %d (could not parse playwright JSON)", exitCode),
			Err:     fmt.Errorf("parse playwright JSON: %w", err),
		}
	}

	var counts TestCounts
	for _, s := range raw.Suites {
		walkPlaywright(s, &counts)
	}

	passed := exitCode == 0 && counts.Failed == 0
	return ParseResult{
		Passed:  passed,
		Summary: fmt.Sprintf("%d passed, %d failed, %d skipped", counts.Passed, counts.Failed, counts.Skipped),
		Tests:   counts,
	}
}

func walkPlaywright(s playwrightSuite, counts *TestCounts) {
	for _, spec := range s.Specs {
		for _, t := range spec.Tests {
			for _, r := range t.Results {
				switch r.Status {
				case "passed":
					counts.Passed++
				case "failed", "timedOut":
					counts.Failed++
					msg := r.Error.Message
					if msg == "" {
						msg = "unknown error"
					}
					counts.Failures = append(counts.Failures, fmt.Sprintf("%s: %s", spec.Title, Tail(msg, maxFailureLen)))
				case "skipped":
					counts.Skipped++
				}
			}
		}
	}
	for _, child := range s.Suites {
		walkPlaywright(child, counts)
	}
}
