package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a single validation issue with a config.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var recognizedProviders = map[string]bool{
	"gemini":    true,
	"openai":    true,
	"anthropic": true,
	"ollama":    true,
	"none":      true,
}

var recognizedTargets = map[string]bool{
	"":       true,
	"none":   true,
	"vercel": true,
	"docker": true,
}

// Validate checks a Config for semantic errors.
// It returns a slice of all validation errors found (empty if valid).
func Validate(cfg *Config) []ValidationError {
	var errs []ValidationError

	if !recognizedProviders[cfg.LLMProvider] {
		errs = append(errs, ValidationError{
			Field:   "llm_provider",
			Message: fmt.Sprintf("unrecognized provider %q", cfg.LLMProvider),
		})
	}

	if cfg.SecurityBlockOn != "critical" && cfg.SecurityBlockOn != "warning" {
		errs = append(errs, ValidationError{
			Field:   "security_block_on",
			Message: fmt.Sprintf("must be critical or warning, got %q", cfg.SecurityBlockOn),
		})
	}

	if cfg.MaxReflectionRetries < 0 {
		errs = append(errs, ValidationError{Field: "max_reflection_retries", Message: "must not be negative"})
	}
	if cfg.MaxTestDebugIterations < 1 {
		errs = append(errs, ValidationError{Field: "max_test_debug_iterations", Message: "must be at least 1"})
	}
	if cfg.TestTimeoutSeconds <= 0 {
		errs = append(errs, ValidationError{Field: "test_timeout_seconds", Message: "must be positive"})
	}

	if !recognizedTargets[cfg.DeployTarget] {
		errs = append(errs, ValidationError{
			Field:   "deploy_target",
			Message: fmt.Sprintf("unrecognized target %q", cfg.DeployTarget),
		})
	}

	if cfg.GitHubRepo != "" {
		parts := strings.Split(cfg.GitHubRepo, "/")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			errs = append(errs, ValidationError{
				Field:   "github_repo",
				Message: fmt.Sprintf("must be owner/name, got %q", cfg.GitHubRepo),
			})
		}
	}

	if cfg.LogFormat != "console" && cfg.LogFormat != "json" {
		errs = append(errs, ValidationError{
			Field:   "log_format",
			Message: fmt.Sprintf("must be console or json, got %q", cfg.LogFormat),
		})
	}

	for i, r := range cfg.PRReviewers {
		if strings.TrimSpace(r) == "" || strings.HasPrefix(r, "@") {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("pr_reviewers[%d]", i),
				Message: "must be a bare GitHub username",
			})
		}
	}

	return errs
}
