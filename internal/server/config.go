package server

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/teemow/gmailgate/internal/bulk"
)

const (
	// DefaultAddr is the default listen address of the API server.
	DefaultAddr = ":3000"

	// DefaultReadHeaderTimeout bounds how long a client may take to send headers.
	DefaultReadHeaderTimeout = 10 * time.Second

	// DefaultIdleTimeout is the keep-alive timeout of the API server.
	DefaultIdleTimeout = 120 * time.Second

	// DefaultMaxBodyBytes limits request bodies. Raw messages sent through
	// /api/messages/send are the largest payloads.
	DefaultMaxBodyBytes = 36 << 20

	// APIKeyPrefix prefixes generated API keys.
	APIKeyPrefix = "gmail-api-"
)

// Config configures the API server.
type Config struct {
	// Addr is the listen address (e.g. ":3000").
	Addr string

	// APIKey is the shared secret every /api route expects in x-api-key.
	APIKey string

	// Version is reported by the discovery route.
	Version string

	// Bulk tunes the bulk executor used by the batch and query routes.
	Bulk bulk.Config

	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
	MaxBodyBytes      int64
}

// WithDefaults returns a copy of c with empty fields set to their defaults.
// It does not generate an API key.
func (c Config) WithDefaults() Config {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.Version == "" {
		c.Version = "dev"
	}
	if c.ReadHeaderTimeout <= 0 {
		c.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = DefaultMaxBodyBytes
	}
	return c
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("API key is required")
	}
	if c.Addr == "" {
		return fmt.Errorf("listen address is required")
	}
	return nil
}

// GenerateAPIKey returns a fresh random API key.
func GenerateAPIKey() string {
	return APIKeyPrefix + uuid.NewString()
}
