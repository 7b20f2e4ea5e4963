package github

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// codeownersPaths are checked in order; the first file found wins.
var codeownersPaths = []string{
	"CODEOWNERS",
	filepath.Join(".github", "CODEOWNERS"),
	filepath.Join("docs", "CODEOWNERS"),
}

// CodeOwners reads default reviewers from a CODEOWNERS file.
type CodeOwners struct{}

// Reviewers returns the individual @user owners, deduplicated in file
// order. Team handles (@org/team) cannot be requested as users and are
// skipped.
func (CodeOwners) Reviewers(repoPath string) []string {
	for _, p := range codeownersPaths {
		f, err := os.Open(filepath.Join(repoPath, p))
		if err != nil {
			continue
		}
		defer f.Close()
		return parseCodeOwners(f)
	}
	return nil
}

func parseCodeOwners(f *os.File) []string {
	seen := map[string]bool{}
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		for _, owner := range fields[1:] {
			if !strings.HasPrefix(owner, "@") || strings.Contains(owner, "/") {
				continue
			}
			name := strings.TrimPrefix(owner, "@")
			if name != "" && !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out
}
