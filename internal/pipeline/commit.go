package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/musharrafhamraz/afterburner/internal/state"
)

// ProtectedBranches are never committed to directly; Commit branches off them.
var ProtectedBranches = map[string]bool{
	"main":    true,
	"master":  true,
	"develop": true,
	"dev":     true,
}

// PRLabels are attached to every pull request Afterburner opens.
var PRLabels = []string{"afterburner", "auto-generated"}

var nonSlugRe = regexp.MustCompile(`[^a-z0-9]+`)

// FallbackCommitMessage is used when no commit message writer is available
// or it fails.
func FallbackCommitMessage(files int) string {
	return fmt.Sprintf("chore: afterburner automated commit (%d files changed)", files)
}

// BranchName derives afterburner/{type}/{slug}-{timestamp} from the first
// line of a Conventional Commits message.
func BranchName(message string, now time.Time) string {
	first := firstLine(message)

	commitType := "feat"
	if strings.Contains(first, ":") {
		head := strings.SplitN(first, ":", 2)[0]
		head = strings.SplitN(head, "(", 2)[0]
		head = strings.TrimSuffix(strings.TrimSpace(head), "!")
		if t := strings.Trim(nonSlugRe.ReplaceAllString(strings.ToLower(head), "-"), "-"); t != "" {
			commitType = t
		}
	}

	desc := first
	if i := strings.LastIndex(first, ":"); i >= 0 {
		desc = first[i+1:]
	}
	desc = strings.ToLower(strings.TrimSpace(desc))
	desc = truncate(desc, 30)
	slug := strings.Trim(nonSlugRe.ReplaceAllString(desc, "-"), "-")
	if slug == "" {
		slug = "changes"
	}

	return fmt.Sprintf("afterburner/%s/%s-%s", commitType, slug, now.Format("20060102-150405"))
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

// Commit drafts a message, branches off protected branches, commits the
// changed files and, when remote publishing is configured, pushes and opens a
// pull request. Branch creation problems are logged and ignored; a failed
// commit is recorded in errors and ends the stage.
func (p *Stages) Commit(ctx context.Context, s *state.PipelineState) (state.Update, error) {
	if len(s.ChangedFiles) == 0 {
		p.log.Info("nothing to commit")
		return state.Update{}, nil
	}
	if p.deps.Git == nil {
		return state.Update{}, fmt.Errorf("no git collaborator configured")
	}

	message := p.commitMessage(ctx, s)
	branchName := p.prepareBranch(BranchName(message, p.deps.Now()))

	sha, err := p.deps.Git.Commit(s.ChangedFiles, message)
	if err != nil {
		p.log.Error("commit failed", zap.Error(err))
		return state.Update{Errors: []string{fmt.Sprintf("Git commit failed: %v", err)}}, nil
	}
	p.log.Info("committed", zap.String("sha", sha), zap.String("branch", branchName))

	u := state.Update{CommitSHA: state.String(sha)}
	if branchName != "" {
		u.BranchName = state.String(branchName)
	}

	if !p.cfg.RemotePublishEnabled() {
		p.log.Info("GitHub not configured, skipping push and PR")
		return u, nil
	}
	if branchName == "" {
		p.log.Warn("no branch to publish, skipping push and PR")
		return u, nil
	}

	if err := p.deps.Git.Push(ctx, branchName); err != nil {
		p.log.Warn("push failed", zap.Error(err))
		u.Errors = append(u.Errors, fmt.Sprintf("Git push failed: %v", err))
		return u, nil
	}
	if p.deps.PRs == nil {
		return u, nil
	}

	body := ""
	if p.deps.Renderer != nil {
		body = p.deps.Renderer.PRBody(s)
	}
	pr, err := p.deps.PRs.CreatePR(ctx, PRRequest{
		Title:     firstLine(message),
		Body:      body,
		Head:      branchName,
		Base:      p.cfg.GitBaseBranch,
		Labels:    PRLabels,
		Reviewers: p.reviewers(s.RepoPath),
	})
	if err != nil {
		p.log.Warn("PR creation failed", zap.Error(err))
		u.Errors = append(u.Errors, fmt.Sprintf("PR creation failed: %v", err))
		return u, nil
	}

	p.log.Info("PR created", zap.String("url", pr.URL), zap.Int("number", pr.Number))
	if pr.URL != "" {
		u.PRURL = state.String(pr.URL)
	}
	if pr.Number != 0 {
		u.PRNumber = state.Int(pr.Number)
	}
	return u, nil
}

func (p *Stages) commitMessage(ctx context.Context, s *state.PipelineState) string {
	fallback := FallbackCommitMessage(len(s.ChangedFiles))
	if p.deps.Messages == nil {
		return fallback
	}
	msg, err := p.deps.Messages.CommitMessage(ctx, CommitContext{
		DiffSummary:    s.DiffSummary,
		Files:          s.ChangedFiles,
		SecurityPassed: s.SecurityPassed,
		TestsPassed:    s.TestsPassed,
	})
	if err != nil || strings.TrimSpace(msg) == "" {
		p.log.Warn("commit message generation failed, using fallback", zap.Error(err))
		return fallback
	}
	return strings.TrimSpace(msg)
}

// prepareBranch returns the branch the commit will land on, or "" when it
// cannot be determined.
func (p *Stages) prepareBranch(candidate string) string {
	current, err := p.deps.Git.CurrentBranch()
	if err != nil {
		p.log.Warn("cannot determine current branch", zap.Error(err))
		return ""
	}
	if !ProtectedBranches[current] {
		return current
	}
	if err := p.deps.Git.CreateBranch(candidate); err != nil {
		p.log.Warn("branch creation failed", zap.String("branch", candidate), zap.Error(err))
		return ""
	}
	return candidate
}

func (p *Stages) reviewers(repoPath string) []string {
	if len(p.cfg.PRReviewers) > 0 {
		return p.cfg.PRReviewers
	}
	if p.deps.Reviewers != nil {
		return p.deps.Reviewers.Reviewers(repoPath)
	}
	return nil
}
