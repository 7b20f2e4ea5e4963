// Package mcpserver exposes the pipeline as MCP tools so editors and agents
// can trigger a run after writing code.
package mcpserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/musharrafhamraz/afterburner/internal/config"
	"github.com/musharrafhamraz/afterburner/internal/orchestrator"
	"github.com/musharrafhamraz/afterburner/internal/pipeline"
)

// Server serves the Afterburner tool set.
type Server struct {
	mcp  *mcp.Server
	orch *orchestrator.Orchestrator
	cfg  config.Config
	log  *zap.Logger
}

// New registers every tool on a fresh MCP server. Each tool call starts its
// own run through orch.
func New(cfg config.Config, orch *orchestrator.Orchestrator, version string, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		mcp:  mcp.NewServer(&mcp.Implementation{Name: "afterburner", Version: version}, nil),
		orch: orch,
		cfg:  cfg,
		log:  log,
	}
	s.registerTools()
	return s
}

// Run serves on stdin/stdout until the client disconnects or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("starting MCP server on stdio transport")
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}

type runInput struct {
	RepoPath   string `json:"repo_path" jsonschema:"Path to the repository to process"`
	SkipDeploy bool   `json:"skip_deploy,omitempty" jsonschema:"Skip the deployment stage"`
}

type repoInput struct {
	RepoPath string `json:"repo_path" jsonschema:"Path to the repository to process"`
}

type gitInput struct {
	RepoPath string `json:"repo_path" jsonschema:"Path to the repository to process"`
	NoPR     bool   `json:"no_pr,omitempty" jsonschema:"Commit locally without pushing or opening a pull request"`
}

type deployInput struct {
	RepoPath string `json:"repo_path" jsonschema:"Path to the repository to process"`
	Target   string `json:"target,omitempty" jsonschema:"Deploy target (vercel or docker); defaults to the configured target"`
}

type statusInput struct{}

// runOutput is the structured result of every pipeline tool.
type runOutput struct {
	RunID    string   `json:"run_id"`
	HardFail bool     `json:"hard_fail"`
	Errors   []string `json:"errors"`
	Summary  string   `json:"summary"`
}

type statusOutput struct {
	Config string `json:"config"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "run_afterburner",
		Description: "Run the full post-write pipeline: detect changes, security review, tests, commit and PR, deploy",
	}, s.handleRun)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "security_only",
		Description: "Detect changes and run only the security review",
	}, s.stageHandler(pipeline.StageSecurityReview))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "test_only",
		Description: "Detect changes and run only the test stage",
	}, s.stageHandler(pipeline.StageTestRun))

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "git_only",
		Description: "Detect changes and commit them, optionally opening a pull request",
	}, s.handleGit)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "deploy_only",
		Description: "Detect changes and run only the deployment stage",
	}, s.handleDeploy)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "get_status",
		Description: "Show the effective Afterburner configuration with secrets masked",
	}, s.handleStatus)
}

func (s *Server) handleRun(ctx context.Context, req *mcp.CallToolRequest, args runInput) (*mcp.CallToolResult, runOutput, error) {
	return s.run(ctx, orchestrator.RunOpts{RepoPath: args.RepoPath, SkipDeploy: args.SkipDeploy, Trigger: "mcp"})
}

func (s *Server) stageHandler(stage string) mcp.ToolHandlerFor[repoInput, runOutput] {
	return func(ctx context.Context, req *mcp.CallToolRequest, args repoInput) (*mcp.CallToolResult, runOutput, error) {
		return s.run(ctx, orchestrator.RunOpts{RepoPath: args.RepoPath, Stage: stage, Trigger: "mcp"})
	}
}

func (s *Server) handleGit(ctx context.Context, req *mcp.CallToolRequest, args gitInput) (*mcp.CallToolResult, runOutput, error) {
	return s.run(ctx, orchestrator.RunOpts{RepoPath: args.RepoPath, Stage: pipeline.StageCommit, NoPR: args.NoPR, Trigger: "mcp"})
}

func (s *Server) handleDeploy(ctx context.Context, req *mcp.CallToolRequest, args deployInput) (*mcp.CallToolResult, runOutput, error) {
	return s.run(ctx, orchestrator.RunOpts{RepoPath: args.RepoPath, Stage: pipeline.StageDeploy, DeployTarget: args.Target, Trigger: "mcp"})
}

func (s *Server) handleStatus(ctx context.Context, req *mcp.CallToolRequest, args statusInput) (*mcp.CallToolResult, statusOutput, error) {
	out, err := orchestrator.Status(s.cfg)
	if err != nil {
		return nil, statusOutput{}, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: out}},
	}, statusOutput{Config: out}, nil
}

func (s *Server) run(ctx context.Context, opts orchestrator.RunOpts) (*mcp.CallToolResult, runOutput, error) {
	if opts.RepoPath == "" {
		return nil, runOutput{}, fmt.Errorf("repo_path is required")
	}
	res, err := s.orch.Run(ctx, opts)
	if err != nil {
		s.log.Error("tool run failed", zap.String("repo", opts.RepoPath), zap.String("stage", opts.Stage), zap.Error(err))
		return nil, runOutput{}, err
	}
	out := runOutput{
		RunID:    res.RunID,
		HardFail: res.State.HardFail,
		Errors:   res.State.Errors,
		Summary:  res.State.FinalSummary,
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: out.Summary}},
	}, out, nil
}
