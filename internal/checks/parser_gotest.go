package checks

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"
)

// GoTestParser parses go test -json event streams.
type GoTestParser struct{}

type goTestEvent struct {
	Action  string `json:"Action"`
	Package string `json:"Package"`
	Test    string `json:"Test"`
}

func (p *GoTestParser) Parse(stdout string, stderr string, exitCode int) ParseResult {
	var counts TestCounts
	events := 0

	sc := bufio.NewScanner(strings.NewReader(stdout))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var ev goTestEvent
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			continue
		}
		events++
		if ev.Test == "" {
			if ev.Action == "fail" {
				// package-level failure, e.g. a build error
				counts.Failures = append(counts.Failures, ev.Package+" [package failed]")
			}
			continue
		}
		switch ev.Action {
		case "pass":
			counts.Passed++
		case "fail":
			counts.Failed++
			counts.Failures = append(counts.Failures, ev.Package+"."+ev.Test)
		case "skip":
			counts.Skipped++
		}
	}

	passed := exitCode == 0 && counts.Failed == 0
	var err error
	if events == 0 && exitCode != 0 {
		err = fmt.Errorf("go test exited with code %d", exitCode)
	} else if !passed && counts.Failed == 0 && len(counts.Failures) == 0 {
		err = fmt.Errorf("go test exited with code %d", exitCode)
	}

	return ParseResult{
		Passed:  passed,
		Summary: fmt.Sprintf("%d passed, %d failed, %d skipped", counts.Passed, counts.Failed, counts.Skipped),
		Tests:   counts,
		Err:     err,
	}
}
