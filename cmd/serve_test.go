package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/gmailgate/internal/bulk"
	"github.com/teemow/gmailgate/internal/server"
)

func envLookup(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	tests := []struct {
		name   string
		args   []string
		env    map[string]string
		flag   string
		expect string
	}{
		{
			name:   "env sets unchanged flag",
			env:    map[string]string{"GMAILGATE_ADDR": "127.0.0.1:4000"},
			flag:   "addr",
			expect: "127.0.0.1:4000",
		},
		{
			name:   "command line wins over env",
			args:   []string{"--addr", "127.0.0.1:5000"},
			env:    map[string]string{"GMAILGATE_ADDR": "127.0.0.1:4000"},
			flag:   "addr",
			expect: "127.0.0.1:5000",
		},
		{
			name:   "empty env value is ignored",
			env:    map[string]string{"GMAILGATE_ADDR": ""},
			flag:   "addr",
			expect: server.DefaultAddr,
		},
		{
			name:   "duration from env",
			env:    map[string]string{"GMAILGATE_MAX_DURATION": "90s"},
			flag:   "max-duration",
			expect: "1m30s",
		},
		{
			name:   "bool from env",
			env:    map[string]string{"METRICS_ENABLED": "false"},
			flag:   "metrics-enabled",
			expect: "false",
		},
		{
			name:   "log level from env",
			env:    map[string]string{"LOG_LEVEL": "debug"},
			flag:   "log-level",
			expect: "debug",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newServeCmd()
			require.NoError(t, cmd.Flags().Parse(tt.args))

			require.NoError(t, applyEnvOverrides(cmd.Flags(), envLookup(tt.env)))

			assert.Equal(t, tt.expect, cmd.Flags().Lookup(tt.flag).Value.String())
		})
	}
}

func TestApplyEnvOverrides_InvalidValue(t *testing.T) {
	cmd := newServeCmd()
	require.NoError(t, cmd.Flags().Parse(nil))

	err := applyEnvOverrides(cmd.Flags(), envLookup(map[string]string{"GMAILGATE_CHUNK_SIZE": "many"}))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "GMAILGATE_CHUNK_SIZE")
}

func TestServeFlagDefaults(t *testing.T) {
	cmd := newServeCmd()
	defaults := bulk.DefaultConfig()

	assert.Equal(t, server.DefaultAddr, cmd.Flags().Lookup("addr").DefValue)
	assert.Equal(t, "", cmd.Flags().Lookup("api-key").DefValue)
	assert.Equal(t, server.DefaultMetricsAddr, cmd.Flags().Lookup("metrics-addr").DefValue)
	assert.Equal(t, defaults.MaxDuration.String(), cmd.Flags().Lookup("max-duration").DefValue)
}

func TestServeOptions_BulkConfig(t *testing.T) {
	opts := serveOptions{
		chunkSize:        50,
		pageSize:         200,
		maxPages:         3,
		maxDuration:      time.Minute,
		maxFailureStreak: 2,
	}

	assert.Equal(t, bulk.Config{
		ChunkSize:        50,
		PageSize:         200,
		MaxIterations:    3,
		MaxDuration:      time.Minute,
		MaxFailureStreak: 2,
	}, opts.bulkConfig())
}

func TestServeOptions_CredentialPaths(t *testing.T) {
	opts := serveOptions{credentialsFile: "/tmp/keys.json"}

	paths := opts.credentialPaths()

	assert.Equal(t, "/tmp/keys.json", paths.CredentialsFile)
	assert.NotEmpty(t, paths.TokenFile)
}

func TestDisplayURL(t *testing.T) {
	assert.Equal(t, "http://localhost:3000", displayURL(":3000"))
	assert.Equal(t, "http://127.0.0.1:8080", displayURL("127.0.0.1:8080"))
}

func TestPrintBanner(t *testing.T) {
	t.Run("generated key is printed in full", func(t *testing.T) {
		var buf bytes.Buffer
		printBanner(&buf, ":3000", "gmail-api-abc", true, nil)

		out := buf.String()
		assert.Contains(t, out, "http://localhost:3000")
		assert.Contains(t, out, "gmail-api-abc (generated)")
		assert.Contains(t, out, server.APIKeyHeader)
		assert.NotContains(t, out, "Metrics:")
	})

	t.Run("configured key is masked", func(t *testing.T) {
		var buf bytes.Buffer
		printBanner(&buf, ":3000", "secret-value", false, nil)

		assert.NotContains(t, buf.String(), "secret-value")
		assert.Contains(t, buf.String(), "[token:12 chars]")
	})
}

func TestWriteAPIDocs(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeAPIDocs(&buf))

	out := buf.String()
	for _, ep := range server.Endpoints() {
		assert.Contains(t, out, "## POST "+ep.Path)
	}
	assert.Contains(t, out, "/api/messages/delete-by-query")
}
