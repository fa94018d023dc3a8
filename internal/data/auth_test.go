package data

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthMode_Valid(t *testing.T) {
	assert.True(t, AuthModeNone.Valid())
	assert.True(t, AuthModeAPIKey.Valid())
	assert.True(t, AuthModeOAuth2.Valid())
	assert.False(t, AuthMode("basic").Valid())
	assert.False(t, AuthMode("").Valid())
}

func TestNewAuthHTTPClient_NonePassthrough(t *testing.T) {
	base := &http.Client{}

	client, err := NewAuthHTTPClient(base, AuthConfig{Mode: AuthModeNone})
	require.NoError(t, err)
	assert.Same(t, base, client)

	client, err = NewAuthHTTPClient(base, AuthConfig{})
	require.NoError(t, err)
	assert.Same(t, base, client)
}

func TestNewAuthHTTPClient_APIKeyHeader(t *testing.T) {
	t.Run("default header", func(t *testing.T) {
		var gotKey string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotKey = r.Header.Get(DefaultAPIKeyHeader)
		}))
		defer server.Close()

		client, err := NewAuthHTTPClient(nil, AuthConfig{Mode: AuthModeAPIKey, APIKey: "sekrit"})
		require.NoError(t, err)

		resp, err := client.Get(server.URL)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, "sekrit", gotKey)
	})

	t.Run("custom header", func(t *testing.T) {
		var gotKey string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotKey = r.Header.Get("X-N8N-API-KEY")
		}))
		defer server.Close()

		client, err := NewAuthHTTPClient(nil, AuthConfig{
			Mode:         AuthModeAPIKey,
			APIKey:       "sekrit",
			APIKeyHeader: "X-N8N-API-KEY",
		})
		require.NoError(t, err)

		resp, err := client.Get(server.URL)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, "sekrit", gotKey)
	})

	t.Run("does not mutate the original request", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		defer server.Close()

		client, err := NewAuthHTTPClient(nil, AuthConfig{Mode: AuthModeAPIKey, APIKey: "sekrit"})
		require.NoError(t, err)

		req, err := http.NewRequest(http.MethodGet, server.URL, nil)
		require.NoError(t, err)

		resp, err := client.Do(req)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Empty(t, req.Header.Get(DefaultAPIKeyHeader))
	})
}

func TestNewAuthHTTPClient_OAuth2ClientCredentials(t *testing.T) {
	var tokenRequests int
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenRequests++
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-1","token_type":"Bearer","expires_in":3600}`))
	}))
	defer tokenServer.Close()

	var gotAuthorization string
	apiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuthorization = r.Header.Get("Authorization")
	}))
	defer apiServer.Close()

	client, err := NewAuthHTTPClient(nil, AuthConfig{
		Mode:         AuthModeOAuth2,
		TokenURL:     tokenServer.URL + "/token",
		ClientID:     "client",
		ClientSecret: "secret",
	})
	require.NoError(t, err)

	resp, err := client.Get(apiServer.URL)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer tok-1", gotAuthorization)
	assert.Equal(t, 1, tokenRequests)

	// Cached token is reused for subsequent requests.
	resp, err = client.Get(apiServer.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 1, tokenRequests)
}

func TestNewAuthHTTPClient_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		cfg    AuthConfig
		errMsg string
	}{
		{
			name:   "api_key without key",
			cfg:    AuthConfig{Mode: AuthModeAPIKey},
			errMsg: "api key is required",
		},
		{
			name:   "oauth2 without token URL",
			cfg:    AuthConfig{Mode: AuthModeOAuth2, ClientID: "c", ClientSecret: "s"},
			errMsg: "token URL",
		},
		{
			name:   "oauth2 without client secret",
			cfg:    AuthConfig{Mode: AuthModeOAuth2, TokenURL: "http://t", ClientID: "c"},
			errMsg: "client secret",
		},
		{
			name:   "unknown mode",
			cfg:    AuthConfig{Mode: AuthMode("basic")},
			errMsg: "unknown auth mode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewAuthHTTPClient(nil, tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
