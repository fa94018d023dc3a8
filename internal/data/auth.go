package data

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// DefaultAPIKeyHeader is the header used for api_key auth when none is configured.
const DefaultAPIKeyHeader = "X-API-KEY"

// AuthMode selects how requests to the remote automation service authenticate.
type AuthMode string

// Supported authentication modes.
const (
	AuthModeNone   AuthMode = "none"
	AuthModeAPIKey AuthMode = "api_key"
	AuthModeOAuth2 AuthMode = "oauth2"
)

// Valid reports whether the mode is one of the supported values.
func (m AuthMode) Valid() bool {
	switch m {
	case AuthModeNone, AuthModeAPIKey, AuthModeOAuth2:
		return true
	default:
		return false
	}
}

// UnmarshalText implements encoding.TextUnmarshaler to parse AuthMode from env or text.
func (m *AuthMode) UnmarshalText(text []byte) error {
	v := AuthMode(strings.ToLower(strings.TrimSpace(string(text))))
	if v == "" {
		v = AuthModeNone
	}
	if !v.Valid() {
		return fmt.Errorf("invalid auth mode: %q (valid options: none, api_key, oauth2)", string(text))
	}
	*m = v
	return nil
}

// AuthConfig holds credentials for the remote automation service.
type AuthConfig struct {
	Mode AuthMode

	// api_key mode
	APIKey       string
	APIKeyHeader string // defaults to DefaultAPIKeyHeader

	// oauth2 mode (client credentials grant)
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// apiKeyTransport injects a static credential header into every request.
type apiKeyTransport struct {
	base   http.RoundTripper
	header string
	key    string
}

func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// Clone before mutating; RoundTrippers must not modify the caller's request.
	clone := req.Clone(req.Context())
	clone.Header.Set(t.header, t.key)
	return t.base.RoundTrip(clone)
}

// NewAuthHTTPClient wraps base with the configured authentication mode.
// The base client's timeout is preserved; only the transport is decorated.
func NewAuthHTTPClient(base *http.Client, cfg AuthConfig) (*http.Client, error) {
	base = resolveHTTPClient(base)

	transport := base.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	switch cfg.Mode {
	case AuthModeNone, "":
		return base, nil

	case AuthModeAPIKey:
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, errors.New("api key is required for api_key auth")
		}
		header := cfg.APIKeyHeader
		if header == "" {
			header = DefaultAPIKeyHeader
		}
		clone := *base
		clone.Transport = &apiKeyTransport{base: transport, header: header, key: cfg.APIKey}
		return &clone, nil

	case AuthModeOAuth2:
		if cfg.TokenURL == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
			return nil, errors.New("token URL, client ID and client secret are required for oauth2 auth")
		}
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		// Token fetches go through the base client.
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		clone := *base
		clone.Transport = &oauth2.Transport{Source: cc.TokenSource(ctx), Base: transport}
		return &clone, nil

	default:
		return nil, fmt.Errorf("unknown auth mode: %s", cfg.Mode)
	}
}
