package checks

import "fmt"

// GenericParser is the fallback parser that only looks at the exit code.
type GenericParser struct{}

func (p *GenericParser) Parse(stdout string, stderr string, exitCode int) ParseResult {
	passed := exitCode == 0
	summary := fmt.Sprintf("exit code %d, stdout=%d bytes, stderr=%d bytes", exitCode, len(stdout), len(stderr))
	if passed {
		summary = "passed (exit code 0)"
	}
	return ParseResult{
		Passed:  passed,
		Summary: summary,
	}
}
