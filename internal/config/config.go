// Package config loads bridge configuration from defaults, an optional
// YAML file and environment variables, in that order (env wins).
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/marcoreni/marathon-slack/internal/marathon"
)

// Config holds all bridge settings. The three list-valued options are kept
// as raw strings and resolved through the Resolved* accessors so the
// comma-split / single-value / absent-defaults semantics stay in one place.
type Config struct {
	MarathonHost     string `env:"MARATHON_HOST" yaml:"marathon_host"`
	MarathonPort     int    `env:"MARATHON_PORT" yaml:"marathon_port"`
	MarathonProtocol string `env:"MARATHON_PROTOCOL" yaml:"marathon_protocol"`

	SlackWebhookURL string `env:"SLACK_WEBHOOK_URL" yaml:"slack_webhook_url"`
	SlackChannel    string `env:"SLACK_CHANNEL" yaml:"slack_channel"`
	SlackBotName    string `env:"SLACK_BOT_NAME" yaml:"slack_bot_name"`
	SlackBotImage   string `env:"SLACK_BOT_IMAGE" yaml:"slack_bot_image"`

	EventTypes    string `env:"EVENT_TYPES" yaml:"event_types"`
	TaskStatuses  string `env:"TASK_STATUSES" yaml:"task_statuses"`
	AppIDPatterns string `env:"APP_ID_PATTERNS" yaml:"app_id_patterns"`
}

// Default returns the documented defaults.
func Default() Config {
	return Config{
		MarathonHost:     "localhost",
		MarathonPort:     8080,
		MarathonProtocol: "http",
		SlackBotName:     "Marathon",
	}
}

// Load builds the effective configuration: defaults, overlaid by the YAML
// file at path (if non-empty), overlaid by environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail at first use.
func (c Config) Validate() error {
	if c.SlackWebhookURL == "" {
		return fmt.Errorf("SLACK_WEBHOOK_URL is required")
	}
	u, err := url.Parse(c.SlackWebhookURL)
	if err != nil {
		return fmt.Errorf("invalid slack webhook URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("slack webhook URL must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("slack webhook URL must include a host")
	}
	if c.MarathonProtocol != "http" && c.MarathonProtocol != "https" {
		return fmt.Errorf("marathon protocol must be http or https, got %q", c.MarathonProtocol)
	}
	if c.MarathonPort <= 0 || c.MarathonPort > 65535 {
		return fmt.Errorf("marathon port out of range: %d", c.MarathonPort)
	}
	return nil
}

// ResolvedEventTypes returns the subscribed event types: the configured
// list or the 10 documented defaults when absent.
func (c Config) ResolvedEventTypes() []string {
	return resolveList(c.EventTypes, marathon.DefaultEventTypes())
}

// ResolvedTaskStatuses returns the status-update allow-list: the configured
// list or the 8 documented defaults when absent.
func (c Config) ResolvedTaskStatuses() []string {
	return resolveList(c.TaskStatuses, marathon.DefaultTaskStatuses())
}

// ResolvedAppIDPatterns returns the configured app-id patterns; absent
// means no filtering.
func (c Config) ResolvedAppIDPatterns() []string {
	return resolveList(c.AppIDPatterns, nil)
}

// resolveList implements the list-option resolution contract: a
// comma-containing string splits on comma, a single value wraps as a
// one-element list, an absent option falls back to the defaults.
func resolveList(raw string, defaults []string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaults
	}
	if !strings.Contains(raw, ",") {
		return []string{raw}
	}
	return splitCSV(raw)
}

// splitCSV splits a comma-separated string into trimmed, non-empty items.
func splitCSV(s string) []string {
	var result []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			result = append(result, item)
		}
	}
	return result
}
