package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "DB_DRIVER", "MATCH_THRESHOLD", "MAX_QUANTITY", "ALLOW_ORIGINS"} {
		t.Setenv(k, "")
	}
	cfg := Load()

	assert.Equal(t, 8082, cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, []string{"*"}, cfg.AllowOrigins)
	require.NoError(t, cfg.Validate())

	opts := cfg.ResolveOptions()
	assert.InDelta(t, 0.90, opts.MatchThreshold, 1e-9)
	assert.InDelta(t, 0.02, opts.AmbiguityDelta, 1e-9)
	assert.Equal(t, 1_000_000, opts.MaxQuantity)
	assert.Equal(t, 5, opts.MaxCandidates)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DB_DRIVER", "Memory")
	t.Setenv("MATCH_THRESHOLD", "0.8")
	t.Setenv("ALLOW_ORIGINS", "http://a.example, http://b.example")
	t.Setenv("MAX_QUANTITY", "not-a-number")

	cfg := Load()
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "memory", cfg.DBDriver)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.AllowOrigins)
	assert.InDelta(t, 0.8, cfg.ResolveOptions().MatchThreshold, 1e-9)
	assert.Equal(t, 1_000_000, cfg.MaxQuantity)
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr())
}

func TestValidate(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	base := Load()

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad driver", func(c *Config) { c.DBDriver = "mysql" }},
		{"threshold above one", func(c *Config) { c.MatchThreshold = 1.5 }},
		{"zero port", func(c *Config) { c.Port = 0 }},
		{"missing dsn", func(c *Config) { c.DBDSN = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := base
			tc.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}

	mem := base
	mem.DBDriver = "memory"
	mem.DBDSN = ""
	assert.NoError(t, mem.Validate())
}
