package config

import (
	"strings"
	"time"

	"github.com/flowpulse/flowpulse/internal/data"
	"github.com/flowpulse/flowpulse/internal/domain/model"
)

// RemoteConfig contains connection settings for the remote automation service.
type RemoteConfig struct {
	// APIBaseURL is the root of the remote execution API.
	APIBaseURL string `env:"API_BASE_URL"     envDefault:"http://localhost:5678"`

	// WebhookBaseURL is the root for webhook triggers.
	// Leave empty to trigger against APIBaseURL.
	WebhookBaseURL string `env:"WEBHOOK_BASE_URL" envDefault:""`

	// WebhookRoot is the path prefix for webhook endpoints.
	WebhookRoot string `env:"WEBHOOK_ROOT"     envDefault:"webhook"`

	// AuthMode selects outbound authentication: none, api_key, oauth2.
	AuthMode data.AuthMode `env:"AUTH_MODE" envDefault:"none"`

	// APIKey is the credential for api_key mode.
	APIKey string `env:"API_KEY"`

	// APIKeyHeader is the header the credential is sent in.
	APIKeyHeader string `env:"API_KEY_HEADER" envDefault:"X-API-KEY"`

	// OAuth client-credentials settings for oauth2 mode.
	OAuthTokenURL     string   `env:"OAUTH_TOKEN_URL"`
	OAuthClientID     string   `env:"OAUTH_CLIENT_ID"`
	OAuthClientSecret string   `env:"OAUTH_CLIENT_SECRET"`
	OAuthScopes       []string `env:"OAUTH_SCOPES"       envDefault:""`

	// HTTPTimeout bounds each remote call.
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"30s"`

	// JMESPath expressions for extracting fields from remote payloads.
	IDExpression     string `env:"ID_EXPRESSION"     envDefault:"executionId"`
	ResumeExpression string `env:"RESUME_EXPRESSION" envDefault:"resumeUrl"`
	StatusExpression string `env:"STATUS_EXPRESSION" envDefault:"status"`
	ErrorExpression  string `env:"ERROR_EXPRESSION"  envDefault:"error.message"`

	// CanceledKind is the status kind a remote "canceled" execution maps to.
	// Operators that cancel workflows routinely can set it to "success" so
	// cancellations do not surface as failures.
	CanceledKind model.StatusKind `env:"CANCELED_KIND" envDefault:"failed"`

	// MaxBodyBytes caps how much of a remote response body is read.
	MaxBodyBytes int64 `env:"MAX_BODY_BYTES" envDefault:"65536"`
}

// Sanitize applies guardrails to remote configuration values.
func (r *RemoteConfig) Sanitize() {
	r.APIBaseURL = strings.TrimSpace(r.APIBaseURL)
	r.WebhookBaseURL = strings.TrimSpace(r.WebhookBaseURL)
	if r.WebhookBaseURL == "" {
		r.WebhookBaseURL = r.APIBaseURL
	}
	if r.AuthMode == "" {
		r.AuthMode = data.AuthModeNone
	}
	if r.HTTPTimeout <= 0 {
		r.HTTPTimeout = 30 * time.Second
	}
	if !r.CanceledKind.Valid() {
		r.CanceledKind = model.StatusFailed
	}
	if r.MaxBodyBytes <= 0 {
		r.MaxBodyBytes = data.DefaultMaxBodyBytes
	}
}

// StatusKindOverrides maps the remote vocabulary settings onto the execution
// API's status kind table.
func (r *RemoteConfig) StatusKindOverrides() map[string]model.StatusKind {
	return map[string]model.StatusKind{
		"canceled": r.CanceledKind,
	}
}

// AuthConfig maps the remote settings onto the data layer's auth options.
func (r *RemoteConfig) AuthConfig() data.AuthConfig {
	return data.AuthConfig{
		Mode:         r.AuthMode,
		APIKey:       r.APIKey,
		APIKeyHeader: r.APIKeyHeader,
		TokenURL:     r.OAuthTokenURL,
		ClientID:     r.OAuthClientID,
		ClientSecret: r.OAuthClientSecret,
		Scopes:       r.OAuthScopes,
	}
}
