package google

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const validToken = `{"access_token":"ya29.abc","refresh_token":"1//refresh","token_type":"Bearer","expiry_date":1700000000000}`

func TestLoadCredentials(t *testing.T) {
	tests := []struct {
		name        string
		credentials string
		token       string
		wantID      string
		wantRedir   string
		wantErr     string
	}{
		{
			name:        "installed section",
			credentials: `{"installed":{"client_id":"id-1","client_secret":"s","redirect_uris":["http://localhost"]}}`,
			token:       validToken,
			wantID:      "id-1",
			wantRedir:   "http://localhost",
		},
		{
			name:        "web section preferred",
			credentials: `{"web":{"client_id":"web-id","client_secret":"s","redirect_uris":["http://localhost:3000/cb","x"]},"installed":{"client_id":"other","client_secret":"s","redirect_uris":["y"]}}`,
			token:       validToken,
			wantID:      "web-id",
			wantRedir:   "http://localhost:3000/cb",
		},
		{
			name:        "missing section",
			credentials: `{"other":{}}`,
			token:       validToken,
			wantErr:     `missing "web" or "installed" section`,
		},
		{
			name:        "missing client secret",
			credentials: `{"installed":{"client_id":"id","redirect_uris":["x"]}}`,
			token:       validToken,
			wantErr:     "client_secret is required",
		},
		{
			name:        "missing redirect uri",
			credentials: `{"installed":{"client_id":"id","client_secret":"s","redirect_uris":[]}}`,
			token:       validToken,
			wantErr:     "redirect_uris is required",
		},
		{
			name:        "malformed credentials",
			credentials: `{not json`,
			token:       validToken,
			wantErr:     "malformed JSON",
		},
		{
			name:        "empty token",
			credentials: `{"installed":{"client_id":"id","client_secret":"s","redirect_uris":["x"]}}`,
			token:       `{}`,
			wantErr:     "access_token or refresh_token is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			paths := Paths{
				CredentialsFile: writeFile(t, dir, "keys.json", tt.credentials),
				TokenFile:       writeFile(t, dir, "token.json", tt.token),
			}

			handle, err := LoadCredentials(context.Background(), paths)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				var loadErr *CredentialLoadError
				assert.True(t, errors.As(err, &loadErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, handle.ClientID)
			assert.Equal(t, tt.wantRedir, handle.RedirectURL)
			assert.Equal(t, "ya29.abc", handle.Token.AccessToken)
		})
	}
}

func TestLoadCredentials_MissingFile(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadCredentials(context.Background(), Paths{
		CredentialsFile: filepath.Join(dir, "absent.json"),
		TokenFile:       filepath.Join(dir, "token.json"),
	})

	var loadErr *CredentialLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, filepath.Join(dir, "absent.json"), loadErr.Path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFileTokenProvider(t *testing.T) {
	t.Run("expiry_date in milliseconds", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "token.json", validToken)
		tok, err := NewFileTokenProvider(path).Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, time.UnixMilli(1700000000000), tok.Expiry)
		assert.Equal(t, "1//refresh", tok.RefreshToken)
	})

	t.Run("oauth2 layout", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "token.json",
			`{"access_token":"a","refresh_token":"r","expiry":"2030-01-02T03:04:05Z"}`)
		tok, err := NewFileTokenProvider(path).Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "Bearer", tok.TokenType)
		assert.Equal(t, 2030, tok.Expiry.Year())
	})

	t.Run("refresh token only forces refresh", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "token.json", `{"refresh_token":"r"}`)
		tok, err := NewFileTokenProvider(path).Token(context.Background())
		require.NoError(t, err)
		assert.Equal(t, time.Unix(1, 0), tok.Expiry)
	})
}

func TestPathsWithDefaults(t *testing.T) {
	p := Paths{TokenFile: "/tmp/custom.json"}.WithDefaults()
	assert.Equal(t, "/tmp/custom.json", p.TokenFile)
	assert.Equal(t, DefaultCredentialsFileName, filepath.Base(p.CredentialsFile))
	assert.Equal(t, DefaultConfigDirName, filepath.Base(filepath.Dir(p.CredentialsFile)))
}

func TestHTTPClientForcesHTTP1(t *testing.T) {
	h := &CredentialHandle{
		ClientID:     "id",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost",
		Token:        &oauth2.Token{AccessToken: "a", Expiry: time.Now().Add(time.Hour)},
	}

	client := h.HTTPClient(context.Background())
	transport, ok := client.Transport.(*oauth2.Transport)
	require.True(t, ok)
	base, ok := transport.Base.(*http.Transport)
	require.True(t, ok)
	assert.False(t, base.ForceAttemptHTTP2)
}
