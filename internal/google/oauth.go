package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	// DefaultConfigDirName is the directory under the user's home holding both files.
	DefaultConfigDirName = ".gmail-mcp"

	// DefaultCredentialsFileName is the OAuth client credential file name.
	DefaultCredentialsFileName = "gcp-oauth.keys.json"

	// DefaultTokenFileName is the stored user token file name.
	DefaultTokenFileName = "credentials.json"
)

// ErrNoRedirectURI is returned when the client credential file lists no redirect URI.
var ErrNoRedirectURI = errors.New("no redirect URI configured")

// CredentialLoadError describes a failure to read or parse one of the
// credential files. The server maps it to an internal error response.
type CredentialLoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *CredentialLoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to load credentials from %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("failed to load credentials from %s: %s", e.Path, e.Reason)
}

func (e *CredentialLoadError) Unwrap() error {
	return e.Err
}

// Paths locates the credential and token files.
type Paths struct {
	CredentialsFile string
	TokenFile       string
}

// DefaultPaths returns the file locations under ~/.gmail-mcp.
func DefaultPaths() Paths {
	dir := filepath.Join(homeDir(), DefaultConfigDirName)
	return Paths{
		CredentialsFile: filepath.Join(dir, DefaultCredentialsFileName),
		TokenFile:       filepath.Join(dir, DefaultTokenFileName),
	}
}

// WithDefaults fills empty fields from DefaultPaths.
func (p Paths) WithDefaults() Paths {
	d := DefaultPaths()
	if p.CredentialsFile == "" {
		p.CredentialsFile = d.CredentialsFile
	}
	if p.TokenFile == "" {
		p.TokenFile = d.TokenFile
	}
	return p
}

// CredentialHandle is the loaded client identity plus the stored user token.
// It is created once per process and never reloaded.
type CredentialHandle struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Token        *oauth2.Token
}

// clientSecrets mirrors the JSON file downloaded from the Google Cloud console.
type clientSecrets struct {
	Web       *clientSection `json:"web"`
	Installed *clientSection `json:"installed"`
}

type clientSection struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret"`
	RedirectURIs []string `json:"redirect_uris"`
}

// LoadCredentials reads both files and builds a CredentialHandle.
func LoadCredentials(ctx context.Context, paths Paths) (*CredentialHandle, error) {
	paths = paths.WithDefaults()

	section, err := readClientSection(paths.CredentialsFile)
	if err != nil {
		return nil, err
	}

	token, err := NewFileTokenProvider(paths.TokenFile).Token(ctx)
	if err != nil {
		return nil, err
	}

	return &CredentialHandle{
		ClientID:     section.ClientID,
		ClientSecret: section.ClientSecret,
		RedirectURL:  section.RedirectURIs[0],
		Token:        token,
	}, nil
}

func readClientSection(path string) (*clientSection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &CredentialLoadError{Path: path, Reason: "cannot read file", Err: err}
	}

	var secrets clientSecrets
	if err := json.Unmarshal(data, &secrets); err != nil {
		return nil, &CredentialLoadError{Path: path, Reason: "malformed JSON", Err: err}
	}

	section := secrets.Web
	if section == nil {
		section = secrets.Installed
	}
	if section == nil {
		return nil, &CredentialLoadError{Path: path, Reason: `missing "web" or "installed" section`}
	}
	if section.ClientID == "" {
		return nil, &CredentialLoadError{Path: path, Reason: "client_id is required"}
	}
	if section.ClientSecret == "" {
		return nil, &CredentialLoadError{Path: path, Reason: "client_secret is required"}
	}
	if len(section.RedirectURIs) == 0 || section.RedirectURIs[0] == "" {
		return nil, &CredentialLoadError{Path: path, Reason: "redirect_uris is required", Err: ErrNoRedirectURI}
	}
	return section, nil
}

// OAuthConfig returns the oauth2 configuration for the loaded client.
func (h *CredentialHandle) OAuthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.ClientID,
		ClientSecret: h.ClientSecret,
		RedirectURL:  h.RedirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       DefaultScopes,
	}
}

// HTTPClient returns an HTTP client authorized with the stored token.
// The client is configured to use HTTP/1.1 to avoid HTTP/2 protocol errors.
func (h *CredentialHandle) HTTPClient(ctx context.Context) *http.Client {
	client := h.OAuthConfig().Client(ctx, h.Token)

	if transport, ok := client.Transport.(*oauth2.Transport); ok {
		transport.Base = &http.Transport{
			Proxy:             http.ProxyFromEnvironment,
			ForceAttemptHTTP2: false,
		}
	}
	return client
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return os.Getenv("HOME")
}
