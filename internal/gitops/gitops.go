// Package gitops performs the local repository mutations of the commit stage
// with go-git: branching, staging, committing and pushing.
package gitops

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
)

// Default commit identity when git config has none.
const (
	DefaultAuthorName  = "Afterburner"
	DefaultAuthorEmail = "afterburner@localhost"
)

// Repo is a lazily opened repository.
type Repo struct {
	path  string
	token string
	now   func() time.Time
	repo  *git.Repository
}

// New returns a Repo for path. token authenticates pushes to origin.
func New(path, token string) *Repo {
	return &Repo{path: path, token: token, now: time.Now}
}

func (r *Repo) open() (*git.Repository, error) {
	if r.repo != nil {
		return r.repo, nil
	}
	repo, err := git.PlainOpen(r.path)
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", r.path, err)
	}
	r.repo = repo
	return repo, nil
}

// CurrentBranch returns the checked-out branch. An unborn branch in a fresh
// repository is reported by name.
func (r *Repo) CurrentBranch() (string, error) {
	repo, err := r.open()
	if err != nil {
		return "", err
	}
	head, err := repo.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return "", fmt.Errorf("read HEAD: %w", err)
	}
	if head.Type() == plumbing.SymbolicReference && head.Target().IsBranch() {
		return head.Target().Short(), nil
	}
	return "", errors.New("HEAD is detached")
}

// CreateBranch creates name from HEAD and checks it out, keeping local
// changes in the worktree.
func (r *Repo) CreateBranch(name string) error {
	repo, err := r.open()
	if err != nil {
		return err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("worktree: %w", err)
	}
	err = wt.Checkout(&git.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(name),
		Create: true,
		Keep:   true,
	})
	if err != nil {
		return fmt.Errorf("create branch %s: %w", name, err)
	}
	return nil
}

// Commit stages files (removing the deleted ones) and commits them.
func (r *Repo) Commit(files []string, message string) (string, error) {
	repo, err := r.open()
	if err != nil {
		return "", err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("worktree: %w", err)
	}

	for _, f := range files {
		if _, err := os.Lstat(filepath.Join(r.path, f)); errors.Is(err, os.ErrNotExist) {
			if _, err := wt.Remove(f); err != nil {
				return "", fmt.Errorf("stage removal of %s: %w", f, err)
			}
			continue
		}
		if _, err := wt.Add(f); err != nil {
			return "", fmt.Errorf("stage %s: %w", f, err)
		}
	}

	hash, err := wt.Commit(message, &git.CommitOptions{Author: r.signature(repo)})
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return hash.String(), nil
}

func (r *Repo) signature(repo *git.Repository) *object.Signature {
	sig := &object.Signature{Name: DefaultAuthorName, Email: DefaultAuthorEmail, When: r.now()}
	for _, scope := range []config.Scope{config.LocalScope, config.GlobalScope} {
		cfg, err := repo.ConfigScoped(scope)
		if err != nil || cfg.User.Name == "" || cfg.User.Email == "" {
			continue
		}
		sig.Name, sig.Email = cfg.User.Name, cfg.User.Email
		break
	}
	return sig
}

// Push pushes branch to origin. Already up to date is not an error.
func (r *Repo) Push(ctx context.Context, branch string) error {
	repo, err := r.open()
	if err != nil {
		return err
	}
	ref := plumbing.NewBranchReferenceName(branch)
	opts := &git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []config.RefSpec{config.RefSpec(ref.String() + ":" + ref.String())},
	}
	if r.token != "" {
		opts.Auth = &http.BasicAuth{Username: "x-access-token", Password: r.token}
	}
	err = repo.PushContext(ctx, opts)
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("push %s: %w", branch, err)
	}
	return nil
}
