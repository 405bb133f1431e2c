package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{APIKey: "k"}.WithDefaults()

	assert.Equal(t, DefaultAddr, cfg.Addr)
	assert.Equal(t, "dev", cfg.Version)
	assert.Equal(t, DefaultReadHeaderTimeout, cfg.ReadHeaderTimeout)
	assert.Equal(t, DefaultIdleTimeout, cfg.IdleTimeout)
	assert.Equal(t, int64(DefaultMaxBodyBytes), cfg.MaxBodyBytes)
	assert.Equal(t, "k", cfg.APIKey, "an explicit key is kept")

	custom := Config{Addr: "127.0.0.1:8080", Version: "1.0.0"}.WithDefaults()
	assert.Equal(t, "127.0.0.1:8080", custom.Addr)
	assert.Equal(t, "1.0.0", custom.Version)
	assert.Empty(t, custom.APIKey, "no key is generated")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		errContains string
	}{
		{name: "valid", config: Config{Addr: ":3000", APIKey: "k"}},
		{name: "missing key", config: Config{Addr: ":3000"}, errContains: "API key is required"},
		{name: "missing addr", config: Config{APIKey: "k"}, errContains: "listen address is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.errContains == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.errContains)
		})
	}
}
