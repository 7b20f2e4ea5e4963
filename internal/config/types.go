package config

import (
	"net/url"
	"time"
)

// Config is the full Afterburner configuration. It is loaded once per process
// and handed to the pipeline by value; nothing writes to it afterwards.
type Config struct {
	// LLM
	LLMProvider string `koanf:"llm_provider" yaml:"llm_provider"`
	LLMModel    string `koanf:"llm_model" yaml:"llm_model"`
	LLMAPIKey   string `koanf:"llm_api_key" yaml:"llm_api_key"`
	LLMBaseURL  string `koanf:"llm_base_url" yaml:"llm_base_url"`

	// Git / GitHub
	GitHubToken   string   `koanf:"github_token" yaml:"github_token"`
	GitHubRepo    string   `koanf:"github_repo" yaml:"github_repo"`
	GitBaseBranch string   `koanf:"git_base_branch" yaml:"git_base_branch"`
	AutoPR        bool     `koanf:"auto_pr" yaml:"auto_pr"`
	PRReviewers   []string `koanf:"pr_reviewers" yaml:"pr_reviewers"`

	// Security
	EnableSemgrep        bool   `koanf:"enable_semgrep" yaml:"enable_semgrep"`
	EnableBandit         bool   `koanf:"enable_bandit" yaml:"enable_bandit"`
	EnableGitleaks       bool   `koanf:"enable_gitleaks" yaml:"enable_gitleaks"`
	SecurityBlockOn      string `koanf:"security_block_on" yaml:"security_block_on"`
	MaxReflectionRetries int    `koanf:"max_reflection_retries" yaml:"max_reflection_retries"`

	// Testing
	MaxTestDebugIterations int  `koanf:"max_test_debug_iterations" yaml:"max_test_debug_iterations"`
	EnablePlaywright       bool `koanf:"enable_playwright" yaml:"enable_playwright"`
	TestTimeoutSeconds     int  `koanf:"test_timeout_seconds" yaml:"test_timeout_seconds"`

	// Deployment
	DeployTarget     string `koanf:"deploy_target" yaml:"deploy_target"`
	SkipDeploy       bool   `koanf:"skip_deploy" yaml:"skip_deploy"`
	VercelToken      string `koanf:"vercel_token" yaml:"vercel_token"`
	SentryDSN        string `koanf:"sentry_dsn" yaml:"sentry_dsn"`
	EnablePrometheus bool   `koanf:"enable_prometheus" yaml:"enable_prometheus"`

	// Runtime
	Verbose     bool   `koanf:"verbose" yaml:"verbose"`
	LogFormat   string `koanf:"log_format" yaml:"log_format"`
	EventLog    string `koanf:"event_log" yaml:"event_log"`
	MetricsFile string `koanf:"metrics_file" yaml:"metrics_file"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		LLMProvider:            "gemini",
		LLMModel:               "gemini-2.0-flash",
		GitBaseBranch:          "main",
		AutoPR:                 true,
		PRReviewers:            []string{},
		EnableSemgrep:          true,
		EnableBandit:           true,
		EnableGitleaks:         true,
		SecurityBlockOn:        "critical",
		MaxReflectionRetries:   3,
		MaxTestDebugIterations: 4,
		TestTimeoutSeconds:     300,
		LogFormat:              "console",
	}
}

// TestTimeout is the per-framework test timeout.
func (c Config) TestTimeout() time.Duration {
	return time.Duration(c.TestTimeoutSeconds) * time.Second
}

// RemotePublishEnabled reports whether Commit may push and open a PR.
func (c Config) RemotePublishEnabled() bool {
	return c.AutoPR && c.GitHubToken != "" && c.GitHubRepo != ""
}

// DeployEnabled reports whether a deploy target is selected.
func (c Config) DeployEnabled() bool {
	return c.DeployTarget != "" && c.DeployTarget != "none"
}

// Redacted returns a copy with credentials masked, for display.
func (c Config) Redacted() Config {
	c.LLMAPIKey = mask(c.LLMAPIKey)
	c.GitHubToken = mask(c.GitHubToken)
	c.VercelToken = mask(c.VercelToken)
	c.SentryDSN = mask(c.SentryDSN)
	c.EventLog = maskDSN(c.EventLog)
	c.PRReviewers = append([]string{}, c.PRReviewers...)
	return c
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****"
}

// maskDSN hides the password of a URL-style DSN.
func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.User == nil {
		return dsn
	}
	return u.Redacted()
}
