package checks

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// PytestParser parses pytest -q console output.
type PytestParser struct{}

var (
	pytestPassedRe  = regexp.MustCompile(`(\d+) passed`)
	pytestFailedRe  = regexp.MustCompile(`(\d+) failed`)
	pytestSkippedRe = regexp.MustCompile(`(\d+) skipped`)
	pytestErrorRe   = regexp.MustCompile(`(\d+) errors?\b`)
)

func (p *PytestParser) Parse(stdout string, stderr string, exitCode int) ParseResult {
	var counts TestCounts
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "FAILED ") || strings.HasPrefix(line, "ERROR ") {
			counts.Failures = append(counts.Failures, line)
			continue
		}
		if !strings.Contains(line, "passed") && !strings.Contains(line, "failed") && !strings.Contains(line, "error") {
			continue
		}
		if n, ok := firstInt(pytestPassedRe, line); ok {
			counts.Passed = n
		}
		if n, ok := firstInt(pytestFailedRe, line); ok {
			counts.Failed = n
		}
		if n, ok := firstInt(pytestSkippedRe, line); ok {
			counts.Skipped = n
		}
		if n, ok := firstInt(pytestErrorRe, line); ok {
			counts.Failed += n
		}
	}

	// exit code 5: no tests collected
	passed := (exitCode == 0 || exitCode == 5) && counts.Failed == 0
	var err error
	if !passed && counts.Failed == 0 {
		err = fmt.Errorf("pytest exited with code %d", exitCode)
	}

	return ParseResult{
		Passed:  passed,
		Summary: fmt.Sprintf("%d passed, %d failed, %d skipped", counts.Passed, counts.Failed, counts.Skipped),
		Tests:   counts,
		Err:     err,
	}
}

func firstInt(re *regexp.Regexp, s string) (int, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	return n, err == nil
}
