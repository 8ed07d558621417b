package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "/simulatedata", cfg.Trigger.Path)
	assert.Equal(t, 2*time.Minute, cfg.Scheduler.Interval)
	assert.Equal(t, 3, cfg.Scheduler.MaxRuns)
	assert.Equal(t, 10*time.Minute, cfg.Scheduler.MaxWindow)
	assert.Equal(t, 10*time.Minute, cfg.Scheduler.Cooldown)
	assert.Equal(t, StorageLocal, cfg.Storage.Backend)
	assert.Equal(t, DefaultSites, cfg.Generator.Sites)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("API_URL", "http://pipeline:9000/")
	t.Setenv("SIM_INTERVAL", "30s")
	t.Setenv("SIM_MAX_RUNS", "5")
	t.Setenv("SIM_COOLDOWN", "120")
	t.Setenv("SITE_IDS", "north, south,,east")
	t.Setenv("FRONTEND_URL", "https://energy.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://pipeline:9000", cfg.Trigger.APIURL)
	assert.Equal(t, 30*time.Second, cfg.Scheduler.Interval)
	assert.Equal(t, 5, cfg.Scheduler.MaxRuns)
	assert.Equal(t, 2*time.Minute, cfg.Scheduler.Cooldown)
	assert.Equal(t, []string{"north", "south", "east"}, cfg.Generator.Sites)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, []string{"https://energy.example.com"}, cfg.AllowedOrigins())
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"zero max runs", "SIM_MAX_RUNS", "0"},
		{"bad trigger path", "TRIGGER_PATH", "simulatedata"},
		{"unknown backend", "STORAGE_BACKEND", "ftp"},
		{"s3 without endpoint", "STORAGE_BACKEND", "s3"},
		{"empty sites", "SITE_IDS", " , "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
