package security

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/zricethezav/gitleaks/v8/detect"

	"github.com/musharrafhamraz/afterburner/internal/state"
)

// maxSecretScanSize skips files too large to be source.
const maxSecretScanSize = 2 << 20

// Gitleaks scans changed files for hard-coded secrets in-process using the
// default gitleaks rule set. Every hit is critical.
type Gitleaks struct {
	once     sync.Once
	detector *detect.Detector
	initErr  error
}

// NewGitleaks returns the secret scanner. The rule set is compiled on first
// use.
func NewGitleaks() *Gitleaks {
	return &Gitleaks{}
}

func (g *Gitleaks) Name() string { return "gitleaks" }

func (g *Gitleaks) Applies(fileTypes map[string][]string) bool { return true }

func (g *Gitleaks) Scan(ctx context.Context, repoPath string, files []string, fileTypes map[string][]string) ([]state.Finding, error) {
	g.once.Do(func() {
		g.detector, g.initErr = detect.NewDetectorDefaultConfig()
	})
	if g.initErr != nil {
		return nil, fmt.Errorf("load gitleaks rules: %w", g.initErr)
	}

	var findings []state.Finding
	for _, f := range ExistingFiles(repoPath, files) {
		if err := ctx.Err(); err != nil {
			return findings, err
		}
		path := filepath.Join(repoPath, f)
		info, err := os.Stat(path)
		if err != nil || info.Size() > maxSecretScanSize {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return findings, fmt.Errorf("read %s: %w", f, err)
		}
		for _, hit := range g.detector.DetectString(string(data)) {
			findings = append(findings, state.Finding{
				Tool:     "gitleaks",
				Severity: state.SeverityCritical,
				File:     f,
				Line:     hit.StartLine,
				Message:  fmt.Sprintf("%s: %s", hit.Description, Redact(hit.Secret)),
				RuleID:   hit.RuleID,
			})
		}
	}
	return findings, nil
}

// Redact keeps the first four characters of a secret.
func Redact(secret string) string {
	if len(secret) <= 4 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:4] + strings.Repeat("*", min(len(secret)-4, 16))
}
