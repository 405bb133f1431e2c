package google

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"golang.org/x/oauth2"
)

// TokenProvider supplies the stored OAuth token for the mailbox.
type TokenProvider interface {
	Token(ctx context.Context) (*oauth2.Token, error)
}

// FileTokenProvider reads the token from a JSON file on disk.
type FileTokenProvider struct {
	path string
}

// NewFileTokenProvider creates a token provider reading from path.
func NewFileTokenProvider(path string) *FileTokenProvider {
	return &FileTokenProvider{path: path}
}

// storedToken accepts both the googleapis layout (expiry_date in
// milliseconds) and the golang.org/x/oauth2 layout (expiry as RFC 3339).
type storedToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	Scope        string    `json:"scope"`
	ExpiryDate   int64     `json:"expiry_date"`
	Expiry       time.Time `json:"expiry"`
}

// Token reads and validates the token file.
func (p *FileTokenProvider) Token(_ context.Context) (*oauth2.Token, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return nil, &CredentialLoadError{Path: p.path, Reason: "cannot read file", Err: err}
	}

	var st storedToken
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, &CredentialLoadError{Path: p.path, Reason: "malformed JSON", Err: err}
	}
	if st.AccessToken == "" && st.RefreshToken == "" {
		return nil, &CredentialLoadError{Path: p.path, Reason: "access_token or refresh_token is required"}
	}

	token := &oauth2.Token{
		AccessToken:  st.AccessToken,
		RefreshToken: st.RefreshToken,
		TokenType:    st.TokenType,
		Expiry:       st.Expiry,
	}
	if token.TokenType == "" {
		token.TokenType = "Bearer"
	}
	if st.ExpiryDate > 0 {
		token.Expiry = time.UnixMilli(st.ExpiryDate)
	}
	if token.AccessToken == "" {
		// Force a refresh on first use.
		token.Expiry = time.Unix(1, 0)
	}
	return token, nil
}
