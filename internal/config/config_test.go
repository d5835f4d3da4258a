package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 5*time.Second, cfg.Integrity.HeartbeatInterval)
	assert.Equal(t, 5*time.Second, cfg.Integrity.MinAnswerTime)
	assert.Equal(t, 5, cfg.Integrity.MaxViolations)
	assert.Equal(t, 30.0, cfg.Integrity.TrustInvalidMax)
	assert.Equal(t, 60.0, cfg.Integrity.TrustSuspiciousMax)
	assert.Equal(t, 30, cfg.RateLimit.AnswerPerWindow)
	assert.Nil(t, cfg.AllowedOrigins)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HEARTBEAT_INTERVAL_SECONDS", "10")
	t.Setenv("MAX_VIOLATIONS", "3")
	t.Setenv("TRUST_INVALID_MAX", "25.5")
	t.Setenv("TRUST_SUSPICIOUS_MAX", "70")
	t.Setenv("ALLOWED_ORIGINS", "https://exam.example.com, https://admin.example.com")

	cfg := Load()

	assert.Equal(t, 10*time.Second, cfg.Integrity.HeartbeatInterval)
	assert.Equal(t, 3, cfg.Integrity.MaxViolations)
	assert.Equal(t, 25.5, cfg.Integrity.TrustInvalidMax)
	assert.Equal(t, 70.0, cfg.Integrity.TrustSuspiciousMax)
	assert.Equal(t, []string{"https://exam.example.com", "https://admin.example.com"}, cfg.AllowedOrigins)
}

func TestLoadMalformedValuesFallBack(t *testing.T) {
	t.Setenv("MAX_VIOLATIONS", "many")
	t.Setenv("TRUST_INVALID_MAX", "low")

	cfg := Load()

	assert.Equal(t, 5, cfg.Integrity.MaxViolations)
	assert.Equal(t, 30.0, cfg.Integrity.TrustInvalidMax)
}
