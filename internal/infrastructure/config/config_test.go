package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, "HealthHarmony", cfg.App.Name)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "openai", cfg.AI.Provider)
	assert.Equal(t, 60*time.Second, cfg.AI.Timeout)
	assert.Equal(t, 300*time.Millisecond, cfg.Checks.SuggestionDebounce)
	assert.False(t, cfg.Profile.SeedDefaults)
	assert.True(t, cfg.DatabaseEnabled())
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("HEALTHHARMONY_AI_PROVIDER", "gemini")
	t.Setenv("HEALTHHARMONY_SERVER_PORT", "9191")
	t.Setenv("HEALTHHARMONY_PROFILE_SEED_DEFAULTS", "true")
	t.Setenv("HEALTHHARMONY_DATABASE_DRIVER", "none")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.AI.Provider)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.True(t, cfg.Profile.SeedDefaults)
	assert.False(t, cfg.DatabaseEnabled())
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app:
  log_level: debug
ai:
  provider: ollama
  ollama_model: llava:13b
`), 0o600))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, "ollama", cfg.AI.Provider)
	assert.Equal(t, "llava:13b", cfg.AI.OllamaModel)
}

func TestValidate(t *testing.T) {
	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown provider", func(c *Config) { c.AI.Provider = "cohere" }},
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"postgres without database", func(c *Config) { c.Database.Driver = "postgres"; c.Database.Database = "" }},
		{"production without secret", func(c *Config) { c.App.Environment = "production"; c.Auth.JWTSecret = "" }},
		{"sampling out of range", func(c *Config) { c.Monitoring.SamplingRate = 2 }},
		{"zero timeout", func(c *Config) { c.AI.Timeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *base
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app:\n  log_level: info\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	reloaded := make(chan *Config, 4)
	cfg.Watch(zaptest.NewLogger(t), func(next *Config) {
		select {
		case reloaded <- next:
		default:
		}
	})

	require.NoError(t, os.WriteFile(path, []byte("app:\n  log_level: debug\n"), 0o600))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case next := <-reloaded:
			if next.App.LogLevel == "debug" {
				return
			}
		case <-deadline:
			t.Fatal("config change was not observed")
		}
	}
}
