package deploy

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/musharrafhamraz/afterburner/internal/checks"
	"github.com/musharrafhamraz/afterburner/internal/state"
)

const (
	VercelTimeout = 180 * time.Second
	DockerTimeout = 300 * time.Second

	maxLogLen = 1000
)

// ComposeFile is the Docker Compose file the docker target expects.
const ComposeFile = "docker-compose.yml"

// Vercel deploys with the Vercel CLI.
type Vercel struct {
	runner *checks.Runner
	token  string
	log    *zap.Logger
}

// NewVercel returns a Vercel target. token may be empty when the CLI is
// already logged in.
func NewVercel(runner *checks.Runner, token string, log *zap.Logger) *Vercel {
	return &Vercel{runner: runner, token: token, log: orNop(log)}
}

// Deploy runs a production deploy. The URL is the last line of stdout.
func (v *Vercel) Deploy(ctx context.Context, repoPath string) state.DeployResult {
	args := []string{"--prod", "--yes"}
	if v.token != "" {
		args = append(args, "--token", v.token)
	}
	res, err := v.runner.Run(ctx, repoPath, checks.Command{
		Name:    "vercel",
		Program: "vercel",
		Args:    args,
		Timeout: VercelTimeout,
	})
	out := state.DeployResult{Target: "vercel", Status: state.DeployFailed}
	switch {
	case errors.Is(err, checks.ErrNotInstalled):
		out.Logs = "Vercel CLI not found. Install with: npm i -g vercel"
	case err != nil:
		out.Logs = err.Error()
	case res.TimedOut:
		out.Logs = fmt.Sprintf("Vercel deploy timed out after %ds", int(VercelTimeout.Seconds()))
	case res.ExitCode != 0:
		v.log.Error("vercel deploy failed", zap.String("stderr", head(res.Stderr, 500)))
		out.Logs = head(checks.Combined(res.Stdout, res.Stderr), maxLogLen)
	default:
		out.Status = state.DeploySuccess
		out.URL = lastLine(res.Stdout)
		out.Logs = head(res.Stdout, maxLogLen)
	}
	return out
}

// Docker deploys locally with Docker Compose.
type Docker struct {
	runner *checks.Runner
	log    *zap.Logger
}

// NewDocker returns a Docker Compose target.
func NewDocker(runner *checks.Runner, log *zap.Logger) *Docker {
	return &Docker{runner: runner, log: orNop(log)}
}

// Deploy builds and starts the compose project detached.
func (d *Docker) Deploy(ctx context.Context, repoPath string) state.DeployResult {
	out := state.DeployResult{Target: "docker", Status: state.DeployFailed}
	if _, err := os.Stat(filepath.Join(repoPath, ComposeFile)); err != nil {
		out.Logs = fmt.Sprintf("No %s found in project root", ComposeFile)
		return out
	}

	res, err := d.runner.Run(ctx, repoPath, checks.Command{
		Name:    "docker-compose",
		Program: "docker",
		Args:    []string{"compose", "-f", ComposeFile, "up", "--build", "-d"},
		Timeout: DockerTimeout,
	})
	switch {
	case errors.Is(err, checks.ErrNotInstalled):
		out.Logs = "Docker not found. Install Docker Desktop."
	case err != nil:
		out.Logs = err.Error()
	case res.TimedOut:
		out.Logs = fmt.Sprintf("Docker Compose timed out after %ds", int(DockerTimeout.Seconds()))
	case res.ExitCode != 0:
		d.log.Error("docker compose failed", zap.String("stderr", head(res.Stderr, 500)))
		out.Logs = head(checks.Combined(res.Stdout, res.Stderr), maxLogLen)
	default:
		out.Status = state.DeploySuccess
		out.URL = "http://localhost"
		out.Logs = head(res.Stdout, maxLogLen)
	}
	return out
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func orNop(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}
