package checks

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// CargoTestParser parses cargo test console output. A workspace prints one
// "test result:" line per test binary; the counts are summed.
type CargoTestParser struct{}

var (
	cargoResultRe = regexp.MustCompile(`test result: \w+\. (\d+) passed; (\d+) failed; (\d+) ignored`)
	cargoFailedRe = regexp.MustCompile(`^test (\S+) \.\.\. FAILED$`)
)

func (p *CargoTestParser) Parse(stdout string, stderr string, exitCode int) ParseResult {
	var counts TestCounts
	sawResult := false
	for _, line := range strings.Split(Combined(stdout, stderr), "\n") {
		line = strings.TrimSpace(line)
		if m := cargoResultRe.FindStringSubmatch(line); m != nil {
			sawResult = true
			counts.Passed += atoi(m[1])
			counts.Failed += atoi(m[2])
			counts.Skipped += atoi(m[3])
			continue
		}
		if m := cargoFailedRe.FindStringSubmatch(line); m != nil {
			counts.Failures = append(counts.Failures, m[1])
		}
	}

	passed := exitCode == 0 && counts.Failed == 0
	var err error
	if !passed && counts.Failed == 0 {
		err = fmt.Errorf("cargo test exited with code %d", exitCode)
	}
	summary := fmt.Sprintf("%d passed, %d failed, %d ignored", counts.Passed, counts.Failed, counts.Skipped)
	if !sawResult {
		summary = fmt.Sprintf("exit code %d (no test result line)", exitCode)
	}

	return ParseResult{
		Passed:  passed,
		Summary: summary,
		Tests:   counts,
		Err:     err,
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
