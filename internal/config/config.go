package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// ErrUnknownDeployment is returned when the selected deployment is not configured.
var ErrUnknownDeployment = errors.New("unknown deployment")

// Config is the root configuration.
type Config struct {
	Deployment  string                      `yaml:"deployment"`
	Items       ItemsConfig                 `yaml:"items"`
	Source      SourceConfig                `yaml:"source"`
	Schedule    ScheduleConfig              `yaml:"schedule"`
	Server      ServerConfig                `yaml:"server"`
	Notify      NotifyConfig                `yaml:"notify"`
	Log         LogConfig                   `yaml:"log"`
	Deployments map[string]DeploymentConfig `yaml:"deployments"`
}

// ItemsConfig configures the items asset.
type ItemsConfig struct {
	Count       int  `yaml:"count"`
	SkipUnknown bool `yaml:"skip_unknown"`
}

// SourceConfig selects and tunes the item source.
type SourceConfig struct {
	Kind    string `yaml:"kind"` // "live" or "stub"
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

// ParseTimeout returns the per-request timeout as time.Duration. An empty
// value yields the 5s default; Validate rejects anything else unparseable.
func (s SourceConfig) ParseTimeout() time.Duration {
	d, err := time.ParseDuration(s.Timeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// ScheduleConfig configures the daemon's run interval.
type ScheduleConfig struct {
	Interval string `yaml:"interval"`
}

// ParseInterval returns the run interval as time.Duration.
func (s ScheduleConfig) ParseInterval() time.Duration {
	d, err := time.ParseDuration(s.Interval)
	if err != nil {
		return time.Hour
	}
	return d
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// NotifyConfig configures run notifications.
type NotifyConfig struct {
	Webhook WebhookConfig `yaml:"webhook"`
	Slack   SlackConfig   `yaml:"slack"`
}

// SlackConfig for Slack webhook notifications.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook notifications.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// DeploymentConfig holds the resources bound to one deployment.
type DeploymentConfig struct {
	Warehouse WarehouseConfig `yaml:"warehouse"`
}

// WarehouseConfig addresses the database tables are written to.
type WarehouseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "postgres"
	DSN    string `yaml:"dsn"`
	Schema string `yaml:"schema"`
	// PasswordEnv names an environment variable holding the password,
	// injected into a URL-style DSN at resolve time.
	PasswordEnv string `yaml:"password_env"`
}

// ResolveDSN returns the DSN with the password from PasswordEnv applied.
func (w WarehouseConfig) ResolveDSN() (string, error) {
	if w.PasswordEnv == "" {
		return w.DSN, nil
	}
	password := os.Getenv(w.PasswordEnv)
	if password == "" {
		return "", fmt.Errorf("warehouse password: %s is not set", w.PasswordEnv)
	}
	u, err := url.Parse(w.DSN)
	if err != nil || u.Scheme == "" {
		return "", fmt.Errorf("warehouse password: dsn is not a URL")
	}
	user := ""
	if u.User != nil {
		user = u.User.Username()
	}
	u.User = url.UserPassword(user, password)
	return u.String(), nil
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Deployment: "local",
		Items:      ItemsConfig{Count: 100},
		Source: SourceConfig{
			Kind:    "live",
			BaseURL: "https://hacker-news.firebaseio.com/v0",
			Timeout: "5s",
		},
		Schedule: ScheduleConfig{Interval: "1h"},
		Server:   ServerConfig{Port: 8080},
		Log:      LogConfig{Level: "info"},
		Deployments: map[string]DeploymentConfig{
			"local": {
				Warehouse: WarehouseConfig{Driver: "sqlite", DSN: "./hnpipe.db"},
			},
			"production": {
				Warehouse: WarehouseConfig{
					Driver:      "postgres",
					DSN:         "postgres://hnpipe@localhost:5432/warehouse?sslmode=disable",
					Schema:      "hackernews",
					PasswordEnv: "HNPIPE_PROD_WAREHOUSE_PASSWORD",
				},
			},
		},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
// A non-empty deployment takes precedence over the file and HNPIPE_DEPLOYMENT,
// and deployment-scoped overrides are applied to it.
func Load(path, deployment string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	var env envOverrides
	if err := envconfig.Process("hnpipe", &env); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	env.apply(cfg)
	if deployment != "" {
		cfg.Deployment = deployment
	}
	env.applyDeployment(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envOverrides mirrors the settings that may be set from HNPIPE_* variables.
type envOverrides struct {
	Deployment    string `envconfig:"DEPLOYMENT"`
	ItemsCount    int    `envconfig:"ITEMS_COUNT"`
	SourceKind    string `envconfig:"SOURCE_KIND"`
	SourceBaseURL string `envconfig:"SOURCE_BASE_URL"`
	WarehouseDSN  string `envconfig:"WAREHOUSE_DSN"`
	WebhookURL    string `envconfig:"WEBHOOK_URL"`
	WebhookSecret string `envconfig:"WEBHOOK_SECRET"`
	SlackWebhook  string `envconfig:"SLACK_WEBHOOK_URL"`
	LogLevel      string `envconfig:"LOG_LEVEL"`
	SchedInterval string `envconfig:"SCHEDULE_INTERVAL"`
	ServerPort    int    `envconfig:"PORT"`
}

// apply overrides the settings that do not depend on the deployment.
func (env envOverrides) apply(cfg *Config) {
	if env.Deployment != "" {
		cfg.Deployment = env.Deployment
	}
	if env.ItemsCount != 0 {
		cfg.Items.Count = env.ItemsCount
	}
	if env.SourceKind != "" {
		cfg.Source.Kind = env.SourceKind
	}
	if env.SourceBaseURL != "" {
		cfg.Source.BaseURL = env.SourceBaseURL
	}
	if env.WebhookURL != "" {
		cfg.Notify.Webhook.URL = env.WebhookURL
		cfg.Notify.Webhook.Enabled = true
	}
	if env.WebhookSecret != "" {
		cfg.Notify.Webhook.Secret = env.WebhookSecret
	}
	if env.SlackWebhook != "" {
		cfg.Notify.Slack.WebhookURL = env.SlackWebhook
		cfg.Notify.Slack.Enabled = true
	}
	if env.LogLevel != "" {
		cfg.Log.Level = env.LogLevel
	}
	if env.SchedInterval != "" {
		cfg.Schedule.Interval = env.SchedInterval
	}
	if env.ServerPort != 0 {
		cfg.Server.Port = env.ServerPort
	}
}

// applyDeployment overrides the warehouse of the deployment that is finally
// selected, so it must run after the deployment is settled.
func (env envOverrides) applyDeployment(cfg *Config) {
	if env.WarehouseDSN == "" {
		return
	}
	if d, ok := cfg.Deployments[cfg.Deployment]; ok {
		d.Warehouse.DSN = env.WarehouseDSN
		cfg.Deployments[cfg.Deployment] = d
	}
}

// Validate checks values that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if c.Items.Count < 1 {
		return fmt.Errorf("items.count must be positive, got %d", c.Items.Count)
	}
	switch c.Source.Kind {
	case "live", "stub":
	default:
		return fmt.Errorf("source.kind must be live or stub, got %q", c.Source.Kind)
	}
	if err := checkDuration("source.timeout", c.Source.Timeout); err != nil {
		return err
	}
	if err := checkDuration("schedule.interval", c.Schedule.Interval); err != nil {
		return err
	}
	if _, err := c.Selected(); err != nil {
		return err
	}
	return nil
}

// checkDuration accepts an empty value, which falls back to the default.
func checkDuration(key, value string) error {
	if value == "" {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return fmt.Errorf("%s must be positive, got %s", key, value)
	}
	return nil
}

// Selected returns the configuration of the active deployment.
func (c *Config) Selected() (DeploymentConfig, error) {
	d, ok := c.Deployments[c.Deployment]
	if !ok {
		return DeploymentConfig{}, fmt.Errorf("%w %q (have: %s)",
			ErrUnknownDeployment, c.Deployment, strings.Join(c.DeploymentNames(), ", "))
	}
	return d, nil
}

// DeploymentNames lists configured deployments alphabetically.
func (c *Config) DeploymentNames() []string {
	names := make([]string, 0, len(c.Deployments))
	for name := range c.Deployments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
