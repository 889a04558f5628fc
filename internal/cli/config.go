package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shivanshkc/llmstream/pkg/api"
	"github.com/shivanshkc/llmstream/pkg/httpx"
)

// Config is the optional YAML configuration file. Flags set on the command line win over it.
//
//	base_url: https://api.openai.com
//	model: gpt-4o
//	headers:
//	  Authorization: Bearer ${OPENAI_API_KEY}
//	retry:
//	  attempts: 5
//	  delay: 200ms
type Config struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	// Headers are sent with every request. Environment variables in values are expanded.
	Headers map[string]string `yaml:"headers"`
	Retry   RetryConfig       `yaml:"retry"`
}

type RetryConfig struct {
	Attempts int           `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
}

// defaultConfigPath returns ~/.llmstream/config.yaml.
func defaultConfigPath() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".llmstream", "config.yaml")
	}
	return filepath.FromSlash("./.llmstream/config.yaml")
}

// loadConfig reads the config file. A missing file is only an error if it was asked for explicitly.
func loadConfig(path string, explicit bool) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	for key, value := range cfg.Headers {
		cfg.Headers[key] = os.ExpandEnv(value)
	}
	return cfg, nil
}

// clientOptions converts the config into api.Client options.
func (c Config) clientOptions() []api.ClientOption {
	var opts []api.ClientOption
	for key, value := range c.Headers {
		opts = append(opts, api.WithHeader(key, value))
	}

	policy := httpx.DefaultRetryPolicy
	if c.Retry.Attempts > 0 {
		policy.MaxAttempts = c.Retry.Attempts
	}
	if c.Retry.Delay > 0 {
		policy.Delay = c.Retry.Delay
	}
	return append(opts, api.WithRetryPolicy(policy))
}
