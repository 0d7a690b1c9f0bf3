package config

import (
	"testing"
	"time"

	"github.com/openmemory/engine/internal/embed"
	"github.com/stretchr/testify/assert"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, embed.TierHybrid, cfg.Tier)
	assert.Equal(t, "synthetic", cfg.Provider)
	assert.Equal(t, 120*time.Minute, cfg.DecayInterval)
	assert.Equal(t, 0.3, cfg.MinScore)
	assert.Equal(t, 0.75, cfg.WaypointThreshold)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("OPENMEMORY_TIER", "deep")
	t.Setenv("OPENMEMORY_PROVIDER", "openai")
	t.Setenv("OPENMEMORY_MIN_SCORE", "0.5")
	t.Setenv("OPENMEMORY_DECAY_INTERVAL_MINUTES", "30")

	cfg := FromEnv()
	assert.Equal(t, embed.TierDeep, cfg.Tier)
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, 0.5, cfg.MinScore)
	assert.Equal(t, 30*time.Minute, cfg.DecayInterval)
}

func TestFromEnv_InvalidFloatIgnored(t *testing.T) {
	t.Setenv("OPENMEMORY_MIN_SCORE", "not-a-number")
	cfg := FromEnv()
	assert.Equal(t, Default().MinScore, cfg.MinScore)
}
