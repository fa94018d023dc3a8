package data

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/flowpulse/flowpulse/internal/core"
	"github.com/flowpulse/flowpulse/internal/domain/model"
	apperrors "github.com/flowpulse/flowpulse/internal/errors"
)

// Defaults for ExecutionAPIRepo options.
const (
	DefaultStatusExpr       = "status"
	DefaultErrorMessageExpr = "error.message"
)

// defaultStatusKinds maps the remote status vocabulary onto status kinds.
// Unlisted statuses are reported as StatusUnknown and keep the execution
// polling.
func defaultStatusKinds() map[string]model.StatusKind {
	return map[string]model.StatusKind{
		"running":  model.StatusRunning,
		"waiting":  model.StatusWaiting,
		"success":  model.StatusSuccess,
		"error":    model.StatusFailed,
		"failed":   model.StatusFailed,
		"crashed":  model.StatusFailed,
		"canceled": model.StatusFailed,
	}
}

// ExecutionAPIRepoOptions configures an ExecutionAPIRepo.
type ExecutionAPIRepoOptions struct {
	// BaseURL is the root of the remote automation service.
	BaseURL string

	// StatusExpr is the JMESPath used to extract the status string from the
	// execution payload; defaults to DefaultStatusExpr.
	StatusExpr string
	// ErrorMessageExpr is the JMESPath used to extract a failure message for
	// failed executions; defaults to DefaultErrorMessageExpr.
	ErrorMessageExpr string
	// StatusKinds overrides or extends the default remote status vocabulary.
	StatusKinds map[string]model.StatusKind

	// MaxBodyBytes caps response body reads; defaults to DefaultMaxBodyBytes.
	MaxBodyBytes int64

	// Optional dependency injections (useful for tests/decoupling)
	HTTPClient *http.Client
	Logger     *slog.Logger
	Time       TimeProvider
	Evaluator  JMESPathEvaluator
}

// ExecutionAPIRepo implements the StatusFetcher and ExecutionResumer
// interfaces against the remote automation service's execution API.
type ExecutionAPIRepo struct {
	baseURL    string
	statusExpr string
	errorExpr  string
	kinds      map[string]model.StatusKind
	bodyLimit  int64

	http   *http.Client
	logger *slog.Logger
	time   TimeProvider
	jems   JMESPathEvaluator
	group  singleflight.Group
}

var (
	_ core.StatusFetcher    = (*ExecutionAPIRepo)(nil)
	_ core.ExecutionResumer = (*ExecutionAPIRepo)(nil)
)

// NewExecutionAPIRepo validates options and constructs an ExecutionAPIRepo.
func NewExecutionAPIRepo(opts ExecutionAPIRepoOptions) (*ExecutionAPIRepo, error) {
	baseURL, err := validateBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}

	statusExpr := strings.TrimSpace(opts.StatusExpr)
	if statusExpr == "" {
		statusExpr = DefaultStatusExpr
	}
	errorExpr := strings.TrimSpace(opts.ErrorMessageExpr)
	if errorExpr == "" {
		errorExpr = DefaultErrorMessageExpr
	}

	jems := opts.Evaluator
	if jems == nil {
		jems = jmespathLibEvaluator{}
	}
	if err := jems.Validate(statusExpr); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid status expression")
	}
	if err := jems.Validate(errorExpr); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid error message expression")
	}

	kinds := defaultStatusKinds()
	for status, kind := range opts.StatusKinds {
		if !kind.Valid() {
			return nil, apperrors.Validationf("invalid status kind %q for remote status %q", kind, status)
		}
		kinds[strings.ToLower(strings.TrimSpace(status))] = kind
	}

	return &ExecutionAPIRepo{
		baseURL:    baseURL,
		statusExpr: statusExpr,
		errorExpr:  errorExpr,
		kinds:      kinds,
		bodyLimit:  resolveBodyLimit(opts.MaxBodyBytes),
		http:       resolveHTTPClient(opts.HTTPClient),
		logger:     resolveLogger(opts.Logger),
		time:       resolveTimeProvider(opts.Time),
		jems:       jems,
	}, nil
}

// FetchStatus reads the current remote state of an execution. Concurrent
// fetches of the same execution coalesce into one remote call.
func (r *ExecutionAPIRepo) FetchStatus(
	ctx context.Context,
	handle model.ExecutionHandle,
) (model.ExecutionState, error) {
	if err := handle.Validate(); err != nil {
		return model.ExecutionState{}, err
	}

	v, err, _ := r.group.Do(handle.ExecutionID, func() (any, error) {
		return r.fetchOnce(ctx, handle)
	})
	if err != nil {
		return model.ExecutionState{}, err
	}
	state, ok := v.(model.ExecutionState)
	if !ok {
		return model.ExecutionState{}, apperrors.Internal("unexpected status fetch result type")
	}
	return state, nil
}

func (r *ExecutionAPIRepo) fetchOnce(
	ctx context.Context,
	handle model.ExecutionHandle,
) (model.ExecutionState, error) {
	endpoint, err := joinBaseURL(r.baseURL, "api", "v1", "executions", handle.ExecutionID)
	if err != nil {
		return model.ExecutionState{}, apperrors.Wrap(err, apperrors.ErrCodeValidation, "build execution URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.ExecutionState{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "build request")
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return model.ExecutionState{}, apperrors.MapTransportError(err)
	}

	body, err := collectResponseBody(resp, r.bodyLimit)
	if err != nil {
		return model.ExecutionState{}, apperrors.Wrap(err, apperrors.ErrCodeTransient, "status response")
	}

	if resp.StatusCode == http.StatusNotFound {
		return model.ExecutionState{}, apperrors.Fatalf("execution %s not found on remote", handle.ExecutionID)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.ExecutionState{}, apperrors.MapStatus(resp.StatusCode, summarizeBody(body))
	}

	return r.decodeState(handle, body)
}

// decodeState maps a 2xx execution payload onto an ExecutionState. A body
// that is not JSON is fatal; a decodable body with an unrecognised status
// maps to StatusUnknown and keeps the execution polling.
func (r *ExecutionAPIRepo) decodeState(
	handle model.ExecutionHandle,
	body []byte,
) (model.ExecutionState, error) {
	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return model.ExecutionState{}, apperrors.MalformedPayload(err, "execution status")
	}

	remoteStatus, err := evaluateString(r.jems, r.statusExpr, data)
	if err != nil {
		return model.ExecutionState{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "evaluate status expression")
	}

	kind, known := r.kinds[strings.ToLower(remoteStatus)]
	if !known {
		kind = model.StatusUnknown
	}

	state := model.ExecutionState{
		ExecutionID:  handle.ExecutionID,
		Kind:         kind,
		ObservedAt:   r.time.Now(),
		Payload:      json.RawMessage(body),
		RemoteStatus: remoteStatus,
	}

	if kind == model.StatusFailed {
		msg, evalErr := evaluateString(r.jems, r.errorExpr, data)
		if evalErr == nil {
			state.ErrorMessage = msg
		}
	}

	return state, nil
}

// Resume posts external input to a waiting execution. The handle's resume URL
// is used when the trigger response provided one; otherwise the execution
// API's resume endpoint is derived from the base URL.
func (r *ExecutionAPIRepo) Resume(
	ctx context.Context,
	handle model.ExecutionHandle,
	input json.RawMessage,
) error {
	if err := handle.Validate(); err != nil {
		return err
	}

	endpoint := handle.ResumeURL
	if endpoint == "" {
		var err error
		endpoint, err = joinBaseURL(r.baseURL, "api", "v1", "executions", handle.ExecutionID, "resume")
		if err != nil {
			return apperrors.Wrap(err, apperrors.ErrCodeValidation, "build resume URL")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytesReader(input))
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return apperrors.MapTransportError(err)
	}

	body, err := collectResponseBody(resp, r.bodyLimit)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeTransient, "resume response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperrors.MapStatus(resp.StatusCode, summarizeBody(body))
	}

	r.logger.InfoContext(ctx, "execution resumed", "execution_id", handle.ExecutionID)
	return nil
}
