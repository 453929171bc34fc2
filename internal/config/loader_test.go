package config_test

import (
	"strings"
	"testing"

	"github.com/lumisage/chatscribe/internal/config"
)

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: bananas
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
}

func TestValidate_UnknownModel(t *testing.T) {
	t.Parallel()
	yaml := `
claude:
  api_key: sk-ant-test
  model: gpt-4o
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for unknown model, got nil")
	}
	if !strings.Contains(err.Error(), "gpt-4o") {
		t.Errorf("error should mention the model name, got: %v", err)
	}
}

func TestValidate_NegativeMaxRetries(t *testing.T) {
	t.Parallel()
	yaml := `
claude:
  api_key: sk-ant-test
  max_retries: -1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for negative max_retries, got nil")
	}
	if !strings.Contains(err.Error(), "max_retries") {
		t.Errorf("error should mention max_retries, got: %v", err)
	}
}

func TestValidate_TemperatureOutOfRange(t *testing.T) {
	t.Parallel()
	yaml := `
summaries:
  temperature: 2.5
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for out-of-range temperature, got nil")
	}
	if !strings.Contains(err.Error(), "temperature") {
		t.Errorf("error should mention temperature, got: %v", err)
	}
}

func TestValidate_ZeroTemperatureAllowed(t *testing.T) {
	t.Parallel()
	yaml := `
summaries:
  temperature: 0.0
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Summaries.Temperature == nil || *cfg.Summaries.Temperature != 0 {
		t.Errorf("temperature: got %v, want explicit 0", cfg.Summaries.Temperature)
	}
}

func TestValidate_InvalidDefaultLength(t *testing.T) {
	t.Parallel()
	yaml := `
summaries:
  default_length: verbose
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid default_length, got nil")
	}
	if !strings.Contains(err.Error(), "default_length") {
		t.Errorf("error should mention default_length, got: %v", err)
	}
}

func TestValidate_ScheduleRequiresIDs(t *testing.T) {
	t.Parallel()
	yaml := `
schedules:
  - interval: 24h
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for schedule without IDs, got nil")
	}
	if !strings.Contains(err.Error(), "channel_id") {
		t.Errorf("error should mention channel_id, got: %v", err)
	}
	if !strings.Contains(err.Error(), "guild_id") {
		t.Errorf("error should mention guild_id, got: %v", err)
	}
}

func TestValidate_ScheduleIntervalTooShort(t *testing.T) {
	t.Parallel()
	yaml := `
schedules:
  - channel_id: chan-1
    guild_id: guild-1
    interval: 30s
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for sub-minute interval, got nil")
	}
	if !strings.Contains(err.Error(), "at least 1m") {
		t.Errorf("error should mention the minimum interval, got: %v", err)
	}
}

func TestValidate_TLSRequiresBothFiles(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  tls:
    cert_file: /etc/chatscribe/tls.crt
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for TLS without key_file, got nil")
	}
	if !strings.Contains(err.Error(), "key_file") {
		t.Errorf("error should mention key_file, got: %v", err)
	}
}

func TestValidate_CollectsMultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: bananas
summaries:
  min_messages: -1
cache:
  max_entries: -5
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected joined validation errors, got nil")
	}
	for _, want := range []string{"log_level", "min_messages", "max_entries"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error should mention %s, got: %v", want, err)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load("/nonexistent/chatscribe.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
	if !strings.Contains(err.Error(), "open") {
		t.Errorf("error should mention open, got: %v", err)
	}
}
