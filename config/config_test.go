package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDefaults(t *testing.T) {
	cfg, err := New()
	assert.NoError(t, err)

	assert.Equal(t, ":8082", cfg.Address)
	assert.Equal(t, "slacord.db", cfg.DatabasePath)
	assert.Equal(t, 90, cfg.RetentionDays)
	assert.Equal(t, "http://localhost:3000", cfg.FrontendURL)
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv("ADDRESS", ":9090")
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-test")
	t.Setenv("RETENTION_DAYS", "30")

	cfg, err := New()
	assert.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Address)
	assert.Equal(t, "xoxb-test", cfg.SlackBotToken)
	assert.Equal(t, 30, cfg.RetentionDays)
}
