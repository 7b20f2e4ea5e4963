// Package github opens pull requests through the GitHub REST API and
// resolves default reviewers from CODEOWNERS.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	gh "github.com/google/go-github/v57/github"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/musharrafhamraz/afterburner/internal/pipeline"
)

// Client provides GitHub operations for one repository.
type Client struct {
	api   *gh.Client
	owner string
	repo  string
	log   *zap.Logger
}

// ParseRepo splits "owner/name".
func ParseRepo(full string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(full, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("invalid repository %q: expected owner/name", full)
	}
	return owner, name, nil
}

// NewClient creates a token-authenticated client for repo ("owner/name").
func NewClient(ctx context.Context, token, repo string, log *zap.Logger) (*Client, error) {
	if token == "" {
		return nil, errors.New("GitHub token not set")
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return newClient(gh.NewClient(oauth2.NewClient(ctx, ts)), repo, log)
}

func newClient(api *gh.Client, repo string, log *zap.Logger) (*Client, error) {
	owner, name, err := ParseRepo(repo)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{api: api, owner: owner, repo: name, log: log}, nil
}

// CreatePR opens a pull request, then applies labels and requests reviewers.
// Label and reviewer failures are logged, not returned. When a PR for the
// head branch already exists, that PR is returned.
func (c *Client) CreatePR(ctx context.Context, req pipeline.PRRequest) (pipeline.PRResult, error) {
	pr, resp, err := c.api.PullRequests.Create(ctx, c.owner, c.repo, &gh.NewPullRequest{
		Title: gh.String(req.Title),
		Body:  gh.String(req.Body),
		Head:  gh.String(req.Head),
		Base:  gh.String(req.Base),
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnprocessableEntity {
			if existing, ferr := c.FindPRByBranch(ctx, req.Head); ferr == nil && existing != nil {
				c.log.Info("pull request already exists", zap.String("url", existing.URL))
				return *existing, nil
			}
		}
		return pipeline.PRResult{}, fmt.Errorf("create PR: %w", err)
	}

	result := pipeline.PRResult{URL: pr.GetHTMLURL(), Number: pr.GetNumber()}

	if len(req.Labels) > 0 {
		if _, _, err := c.api.Issues.AddLabelsToIssue(ctx, c.owner, c.repo, result.Number, req.Labels); err != nil {
			c.log.Warn("could not add labels", zap.Int("pr", result.Number), zap.Error(err))
		}
	}
	if len(req.Reviewers) > 0 {
		_, _, err := c.api.PullRequests.RequestReviewers(ctx, c.owner, c.repo, result.Number, gh.ReviewersRequest{Reviewers: req.Reviewers})
		if err != nil {
			c.log.Warn("could not request reviewers", zap.Int("pr", result.Number), zap.Strings("reviewers", req.Reviewers), zap.Error(err))
		}
	}
	return result, nil
}

// FindPRByBranch returns the open PR whose head is branch, or nil.
func (c *Client) FindPRByBranch(ctx context.Context, branch string) (*pipeline.PRResult, error) {
	prs, _, err := c.api.PullRequests.List(ctx, c.owner, c.repo, &gh.PullRequestListOptions{
		State:       "open",
		Head:        c.owner + ":" + branch,
		ListOptions: gh.ListOptions{PerPage: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("find PR by branch: %w", err)
	}
	if len(prs) == 0 {
		return nil, nil
	}
	return &pipeline.PRResult{URL: prs[0].GetHTMLURL(), Number: prs[0].GetNumber()}, nil
}
