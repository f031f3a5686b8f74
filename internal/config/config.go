// Package config defines the evaluator configuration and its loading.
//
// Precedence (low -> high): defaults, YAML file named by EVAL_CONFIG,
// platform variables (DT_*, GITHUB_OUTPUT), then EVAL_* variables. The
// manifest directory's config.json only fills root_url and locations when no
// other source set them.
package config

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

var (
	metricName = regexp.MustCompile(`^[a-zA-Z_:][a-zA-Z0-9_:]*$`) //nolint:gochecknoglobals // compiled once
	labelName  = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)   //nolint:gochecknoglobals // compiled once
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// EnvironmentURL is the monitoring platform base URL.
	EnvironmentURL string `koanf:"environment_url"`
	// APIToken authenticates every platform call.
	APIToken string `koanf:"api_token"`
	// HTTPTimeout bounds a single platform request.
	HTTPTimeout time.Duration `koanf:"http_timeout"`

	// ManifestDir holds the endpoint manifests.
	ManifestDir string `koanf:"manifest_dir"`
	// RootURL prefixes manifest entries that are bare paths.
	RootURL string `koanf:"root_url"`
	// Locations new monitors run from.
	Locations []string `koanf:"locations"`
	// MonitorTag marks monitors owned by the evaluator.
	MonitorTag string `koanf:"monitor_tag"`

	BatchPollInterval     time.Duration `koanf:"batch_poll_interval"`
	SyncRetryDelay        time.Duration `koanf:"sync_retry_delay"`
	RunningPollInterval   time.Duration `koanf:"running_poll_interval"`
	ExecutionPollInterval time.Duration `koanf:"execution_poll_interval"`
	CreationSettleDelay   time.Duration `koanf:"creation_settle_delay"`

	// Retry budgets. Zero means unbounded.
	MaxSyncRetries    int `koanf:"max_sync_retries"`
	MaxBatchPolls     int `koanf:"max_batch_polls"`
	MaxExecutionPolls int `koanf:"max_execution_polls"`

	// PollConcurrency is the number of executions polled at once.
	PollConcurrency int `koanf:"poll_concurrency"`

	// Label thresholds for the report.
	WarningThreshold int `koanf:"warning_threshold"`
	FailThreshold    int `koanf:"fail_threshold"`

	// ReportFile receives the HTML table when set.
	ReportFile string `koanf:"report_file"`
	// GitHubOutput is the $GITHUB_OUTPUT file of a workflow step.
	GitHubOutput string `koanf:"github_output"`
	// OutputName is the step output that carries the HTML table.
	OutputName string `koanf:"output_name"`
	// MetricsFile receives a Prometheus textfile dump when set.
	MetricsFile string `koanf:"metrics_file"`
	// MetricsNamespace prefixes every metric name.
	MetricsNamespace string `koanf:"metrics_namespace"`
	// MetricsLabels are constant labels added to every series (YAML only).
	MetricsLabels map[string]string `koanf:"metrics_labels"`
	// HistoryDB is the SQLite score archive when set.
	HistoryDB string `koanf:"history_db"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		HTTPTimeout:           30 * time.Second,
		ManifestDir:           ".dynatrace",
		MonitorTag:            "git-action",
		BatchPollInterval:     30 * time.Second,
		SyncRetryDelay:        30 * time.Second,
		RunningPollInterval:   10 * time.Second,
		ExecutionPollInterval: 10 * time.Second,
		CreationSettleDelay:   60 * time.Second,
		MaxSyncRetries:        20,
		MaxBatchPolls:         360,
		MaxExecutionPolls:     90,
		PollConcurrency:       1,
		WarningThreshold:      80,
		FailThreshold:         50,
		OutputName:            "table_content",
		MetricsNamespace:      "endpointeval",
	}
}

// Validate reports every problem that would make a run fail before any
// remote call is made.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(c.EnvironmentURL) == "" {
		add("environment_url must be set (DT_ENVIRONMENT_URL)")
	}
	if strings.TrimSpace(c.APIToken) == "" {
		add("api_token must be set (DT_API_TOKEN)")
	}
	if strings.TrimSpace(c.ManifestDir) == "" {
		add("manifest_dir must not be empty")
	}
	if len(c.Locations) == 0 {
		add("locations must list at least one location (defaultLocations in config.json)")
	}
	if c.MonitorTag == "" {
		add("monitor_tag must not be empty")
	}

	for name, d := range map[string]time.Duration{
		"http_timeout":            c.HTTPTimeout,
		"batch_poll_interval":     c.BatchPollInterval,
		"sync_retry_delay":        c.SyncRetryDelay,
		"running_poll_interval":   c.RunningPollInterval,
		"execution_poll_interval": c.ExecutionPollInterval,
	} {
		if d <= 0 {
			add("%s must be positive, got %s", name, d)
		}
	}
	if c.CreationSettleDelay < 0 {
		add("creation_settle_delay must not be negative")
	}
	if c.MaxSyncRetries < 0 || c.MaxBatchPolls < 0 || c.MaxExecutionPolls < 0 {
		add("retry budgets must not be negative")
	}
	if c.PollConcurrency < 1 {
		add("poll_concurrency must be at least 1, got %d", c.PollConcurrency)
	}
	if c.FailThreshold < 0 || c.WarningThreshold > 100 || c.FailThreshold > c.WarningThreshold {
		add("thresholds must satisfy 0 <= fail_threshold <= warning_threshold <= 100")
	}

	if !metricName.MatchString(c.MetricsNamespace) {
		add("metrics_namespace %q is not a valid metric name prefix", c.MetricsNamespace)
	}
	for name := range c.MetricsLabels {
		if !labelName.MatchString(name) || strings.HasPrefix(name, "__") {
			add("metrics_labels key %q is not a valid label name", name)
		}
	}

	if len(problems) == 0 {
		return nil
	}
	// Map iteration order is random; keep messages stable.
	sort.Strings(problems)
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
}
