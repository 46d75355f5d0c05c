// Package config loads the tool's configuration: compiled-in defaults for
// the agent suite's naming and paths, optionally overridden by a YAML file
// so test rigs and relocated installs don't need a rebuild.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where a privileged install keeps its overrides, if any.
const DefaultPath = "/usr/local/opsagent/launchdsync.yaml"

// Config is the tool configuration. Zero values in the YAML file fall back
// to the defaults.
type Config struct {
	DaemonsDir  string `yaml:"daemons_dir"`
	AgentsDir   string `yaml:"agents_dir"`
	LabelPrefix string `yaml:"label_prefix"`

	AppUsageAgentLabel  string `yaml:"app_usage_agent_label"`
	AppUsageDaemonLabel string `yaml:"app_usage_daemon_label"`
	TriggerLabelFamily  string `yaml:"trigger_label_family"`

	PrimaryProcess  string `yaml:"primary_process"`
	SessionLauncher string `yaml:"session_launcher"`

	LogFile             string `yaml:"log_file"`
	PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
}

// Default returns the compiled-in configuration.
func Default() *Config {
	return &Config{
		DaemonsDir:          "/Library/LaunchDaemons",
		AgentsDir:           "/Library/LaunchAgents",
		LabelPrefix:         "com.nixpig.opsagent.",
		AppUsageAgentLabel:  "com.nixpig.opsagent.app_usage_monitor",
		AppUsageDaemonLabel: "com.nixpig.opsagent.appusaged",
		TriggerLabelFamily:  "com.nixpig.opsagent.launchdsync",
		PrimaryProcess:      "agentupdate",
		SessionLauncher:     "loginwindow",
		LogFile:             "/var/log/opsagent/launchdsync.log",
		PollIntervalSeconds: 10,
	}
}

// Load returns the defaults merged with any overrides from the YAML file at
// path. A missing file is not an error; a malformed one is.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}

		return nil, fmt.Errorf("read config: %w", err)
	}

	overrides := &Config{}
	if err := yaml.Unmarshal(data, overrides); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	merge(cfg, overrides)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// PollInterval returns the primary-process poll interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

func (c *Config) validate() error {
	if c.LabelPrefix == "" {
		return errors.New("label_prefix cannot be empty")
	}

	if c.TriggerLabelFamily == "" {
		return errors.New("trigger_label_family cannot be empty")
	}

	if c.PrimaryProcess == "" {
		return errors.New("primary_process cannot be empty")
	}

	if c.PollIntervalSeconds < 1 {
		return errors.New("poll_interval_seconds must be at least 1")
	}

	if _, err := os.Stat(c.DaemonsDir); err != nil {
		return fmt.Errorf("failed to stat daemons_dir: %w", err)
	}

	if _, err := os.Stat(c.AgentsDir); err != nil {
		return fmt.Errorf("failed to stat agents_dir: %w", err)
	}

	return nil
}

func merge(base, overrides *Config) {
	if overrides.DaemonsDir != "" {
		base.DaemonsDir = overrides.DaemonsDir
	}

	if overrides.AgentsDir != "" {
		base.AgentsDir = overrides.AgentsDir
	}

	if overrides.LabelPrefix != "" {
		base.LabelPrefix = overrides.LabelPrefix
	}

	if overrides.AppUsageAgentLabel != "" {
		base.AppUsageAgentLabel = overrides.AppUsageAgentLabel
	}

	if overrides.AppUsageDaemonLabel != "" {
		base.AppUsageDaemonLabel = overrides.AppUsageDaemonLabel
	}

	if overrides.TriggerLabelFamily != "" {
		base.TriggerLabelFamily = overrides.TriggerLabelFamily
	}

	if overrides.PrimaryProcess != "" {
		base.PrimaryProcess = overrides.PrimaryProcess
	}

	if overrides.SessionLauncher != "" {
		base.SessionLauncher = overrides.SessionLauncher
	}

	if overrides.LogFile != "" {
		base.LogFile = overrides.LogFile
	}

	if overrides.PollIntervalSeconds != 0 {
		base.PollIntervalSeconds = overrides.PollIntervalSeconds
	}
}
