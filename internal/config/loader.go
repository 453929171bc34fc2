package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/lumisage/chatscribe/pkg/claude"
	"github.com/lumisage/chatscribe/pkg/types"
)

// Environment variables consulted by [ApplyEnv] for credentials that
// should not live in the config file.
const (
	EnvDiscordToken = "DISCORD_TOKEN"
	EnvClaudeAPIKey = "ANTHROPIC_API_KEY"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, injects credentials from the
// environment, and validates the result. Useful in tests where configs are
// constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv fills credential fields from environment variables when the
// config file left them empty. File values take precedence so that tests
// and local overrides keep working.
func ApplyEnv(cfg *Config) {
	if cfg.Discord.Token == "" {
		cfg.Discord.Token = os.Getenv(EnvDiscordToken)
	}
	if cfg.Claude.APIKey == "" {
		cfg.Claude.APIKey = os.Getenv(EnvClaudeAPIKey)
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil {
		if tls.CertFile == "" || tls.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Credentials - missing values are warnings here because they may
	// arrive later via environment injection or a config reload.
	if cfg.Discord.Token == "" {
		slog.Warn("discord.token is empty; the bot will not be able to connect", "env", EnvDiscordToken)
	}
	if cfg.Claude.APIKey == "" {
		slog.Warn("claude.api_key is empty; summarization requests will fail", "env", EnvClaudeAPIKey)
	}

	// Claude
	if cfg.Claude.Model != "" && !claude.KnownModel(cfg.Claude.Model) {
		errs = append(errs, fmt.Errorf("claude.model %q is not a recognised model; known models: %v", cfg.Claude.Model, claude.Models()))
	}
	if cfg.Claude.MaxRetries != nil && *cfg.Claude.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("claude.max_retries %d must not be negative", *cfg.Claude.MaxRetries))
	}
	if cfg.Claude.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("claude.request_timeout %s must not be negative", cfg.Claude.RequestTimeout.Std()))
	}
	if cfg.Claude.MinRequestInterval < 0 {
		errs = append(errs, fmt.Errorf("claude.min_request_interval %s must not be negative", cfg.Claude.MinRequestInterval.Std()))
	}

	// Summaries
	if l := types.SummaryLength(cfg.Summaries.DefaultLength); l != "" && !l.IsValid() {
		errs = append(errs, fmt.Errorf("summaries.default_length %q is invalid; valid values: brief, detailed, comprehensive", cfg.Summaries.DefaultLength))
	}
	if cfg.Summaries.MinMessages < 0 {
		errs = append(errs, fmt.Errorf("summaries.min_messages %d must not be negative", cfg.Summaries.MinMessages))
	}
	if cfg.Summaries.MaxPromptTokens < 0 {
		errs = append(errs, fmt.Errorf("summaries.max_prompt_tokens %d must not be negative", cfg.Summaries.MaxPromptTokens))
	}
	if cfg.Summaries.BatchConcurrency < 0 {
		errs = append(errs, fmt.Errorf("summaries.batch_concurrency %d must not be negative", cfg.Summaries.BatchConcurrency))
	}
	if t := cfg.Summaries.Temperature; t != nil && (*t < 0 || *t > 2) {
		errs = append(errs, fmt.Errorf("summaries.temperature %.2f is out of range [0, 2]", *t))
	}

	// Cache
	if cfg.Cache.MaxEntries < 0 {
		errs = append(errs, fmt.Errorf("cache.max_entries %d must not be negative", cfg.Cache.MaxEntries))
	}
	if cfg.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("cache.ttl %s must not be negative", cfg.Cache.TTL.Std()))
	}
	if cfg.Cache.PermissionTTL < 0 {
		errs = append(errs, fmt.Errorf("cache.permission_ttl %s must not be negative", cfg.Cache.PermissionTTL.Std()))
	}
	if cfg.Cache.PermissionMaxSize < 0 {
		errs = append(errs, fmt.Errorf("cache.permission_max_size %d must not be negative", cfg.Cache.PermissionMaxSize))
	}

	// Storage
	if cfg.Storage.PostgresDSN == "" && len(cfg.Schedules) > 0 {
		slog.Warn("storage.postgres_dsn is empty; scheduled summaries will not be persisted")
	}

	// Schedules
	for i, sched := range cfg.Schedules {
		prefix := fmt.Sprintf("schedules[%d]", i)
		if sched.ChannelID == "" {
			errs = append(errs, fmt.Errorf("%s.channel_id is required", prefix))
		}
		if sched.GuildID == "" {
			errs = append(errs, fmt.Errorf("%s.guild_id is required", prefix))
		}
		if sched.Interval.Std() < time.Minute {
			errs = append(errs, fmt.Errorf("%s.interval %s must be at least 1m", prefix, sched.Interval.Std()))
		}
		if sched.Lookback < 0 {
			errs = append(errs, fmt.Errorf("%s.lookback %s must not be negative", prefix, sched.Lookback.Std()))
		}
		if l := types.SummaryLength(sched.Length); l != "" && !l.IsValid() {
			errs = append(errs, fmt.Errorf("%s.length %q is invalid; valid values: brief, detailed, comprehensive", prefix, sched.Length))
		}
	}

	return errors.Join(errs...)
}
