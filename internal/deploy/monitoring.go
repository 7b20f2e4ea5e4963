package deploy

import (
	"fmt"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/musharrafhamraz/afterburner/internal/fsutil"
)

// PrometheusConfigFile is written at the repository root.
const PrometheusConfigFile = "prometheus.yml"

type promConfig struct {
	Global        promGlobal     `yaml:"global"`
	ScrapeConfigs []scrapeConfig `yaml:"scrape_configs"`
}

type promGlobal struct {
	ScrapeInterval     string `yaml:"scrape_interval"`
	EvaluationInterval string `yaml:"evaluation_interval"`
}

type scrapeConfig struct {
	JobName       string         `yaml:"job_name"`
	MetricsPath   string         `yaml:"metrics_path,omitempty"`
	StaticConfigs []staticConfig `yaml:"static_configs"`
}

type staticConfig struct {
	Targets []string `yaml:"targets,flow"`
}

// Monitoring sets up Sentry and Prometheus for the deployed project.
type Monitoring struct {
	// ScrapeTarget is the host:port Prometheus scrapes.
	ScrapeTarget string
}

// NewMonitoring scrapes localhost:8000 by default.
func NewMonitoring() *Monitoring {
	return &Monitoring{ScrapeTarget: "localhost:8000"}
}

// SetupSentry records the DSN in the project's .env. It reports true when
// the DSN is configured afterwards, including when it already was.
func (m *Monitoring) SetupSentry(repoPath, dsn string) (bool, error) {
	if dsn == "" {
		return false, nil
	}
	if _, err := fsutil.EnsureKey(filepath.Join(repoPath, ".env"), "SENTRY_DSN", dsn); err != nil {
		return false, fmt.Errorf("configure sentry: %w", err)
	}
	return true, nil
}

// SetupPrometheus writes a scrape configuration unless one exists and
// returns its path.
func (m *Monitoring) SetupPrometheus(repoPath string) (string, error) {
	cfg := promConfig{
		Global: promGlobal{ScrapeInterval: "15s", EvaluationInterval: "15s"},
		ScrapeConfigs: []scrapeConfig{{
			JobName:       "app",
			MetricsPath:   "/metrics",
			StaticConfigs: []staticConfig{{Targets: []string{m.ScrapeTarget}}},
		}},
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal prometheus config: %w", err)
	}
	path := filepath.Join(repoPath, PrometheusConfigFile)
	if _, err := fsutil.WriteIfAbsent(path, data); err != nil {
		return "", fmt.Errorf("write prometheus config: %w", err)
	}
	return path, nil
}
