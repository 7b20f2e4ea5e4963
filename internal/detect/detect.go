// Package detect finds and classifies the uncommitted changes in a git
// repository.
package detect

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"

	"github.com/musharrafhamraz/afterburner/internal/pipeline"
)

// Detector reads the worktree status with go-git.
type Detector struct{}

// Detect lists modified, added, deleted, renamed and untracked files.
func (Detector) Detect(ctx context.Context, repoPath string) (pipeline.ChangeSet, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return pipeline.ChangeSet{}, fmt.Errorf("open repository %s: %w", repoPath, err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return pipeline.ChangeSet{}, fmt.Errorf("worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return pipeline.ChangeSet{}, fmt.Errorf("status: %w", err)
	}

	codes := make(map[string]git.StatusCode, len(status))
	for path, fs := range status {
		code := fs.Staging
		if code == git.Unmodified {
			code = fs.Worktree
		}
		if code == git.Unmodified {
			continue
		}
		codes[path] = code
	}
	if err := ctx.Err(); err != nil {
		return pipeline.ChangeSet{}, err
	}

	files := make([]string, 0, len(codes))
	for path := range codes {
		files = append(files, path)
	}
	sort.Strings(files)

	return pipeline.ChangeSet{
		Files:   files,
		Summary: Summary(files, codes),
		Types:   Classify(files),
	}, nil
}

// Classify groups files by category.
func (Detector) Classify(files []string) map[string][]string {
	return Classify(files)
}

// Summary renders one "<code> <path>" line per file and a count.
func Summary(files []string, codes map[string]git.StatusCode) string {
	if len(files) == 0 {
		return "No changes detected"
	}
	var b strings.Builder
	for _, f := range files {
		fmt.Fprintf(&b, "%c %s\n", byte(codes[f]), f)
	}
	fmt.Fprintf(&b, "%d files changed", len(files))
	return b.String()
}

var extCategory = map[string]string{
	".py":         "python",
	".js":         "javascript",
	".jsx":        "javascript",
	".mjs":        "javascript",
	".cjs":        "javascript",
	".ts":         "typescript",
	".tsx":        "typescript",
	".rs":         "rust",
	".go":         "go",
	".java":       "java",
	".json":       "config",
	".yaml":       "config",
	".yml":        "config",
	".toml":       "config",
	".md":         "docs",
	".txt":        "docs",
	".html":       "web",
	".css":        "web",
	".scss":       "web",
	".dockerfile": "docker",
}

var dockerFiles = map[string]bool{
	"dockerfile":          true,
	"docker-compose.yml":  true,
	"docker-compose.yaml": true,
}

// Category returns the category for a single path.
func Category(path string) string {
	base := strings.ToLower(filepath.Base(path))
	if dockerFiles[base] {
		return "docker"
	}
	if c, ok := extCategory[strings.ToLower(filepath.Ext(base))]; ok {
		return c
	}
	return "other"
}

// Classify groups files by category, keeping input order within a group.
func Classify(files []string) map[string][]string {
	types := make(map[string][]string)
	for _, f := range files {
		c := Category(f)
		types[c] = append(types[c], f)
	}
	return types
}
