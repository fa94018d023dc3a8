package data

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/flowpulse/flowpulse/internal/core"
	"github.com/flowpulse/flowpulse/internal/domain/model"
	apperrors "github.com/flowpulse/flowpulse/internal/errors"
)

// Defaults for WebhookTriggerRepo options.
const (
	DefaultWebhookRoot       = "webhook"
	DefaultExecutionIDExpr   = "executionId"
	DefaultResumeURLExpr     = "resumeUrl"
	syntheticExecutionPrefix = "pending"
)

// WebhookTriggerRepoOptions configures a WebhookTriggerRepo.
type WebhookTriggerRepoOptions struct {
	// BaseURL is the root of the remote automation service, e.g. "https://automation.internal".
	BaseURL string
	// WebhookRoot is the path prefix for webhook endpoints; defaults to DefaultWebhookRoot.
	WebhookRoot string

	// ExecutionIDExpr is the JMESPath used to extract the execution ID from the
	// trigger response; defaults to DefaultExecutionIDExpr.
	ExecutionIDExpr string
	// ResumeURLExpr is the JMESPath used to extract an optional resume URL from
	// the trigger response; defaults to DefaultResumeURLExpr.
	ResumeURLExpr string

	// MaxBodyBytes caps response body reads; defaults to DefaultMaxBodyBytes.
	MaxBodyBytes int64

	// Optional dependency injections (useful for tests/decoupling)
	HTTPClient *http.Client
	Logger     *slog.Logger
	Time       TimeProvider
	Evaluator  JMESPathEvaluator
}

// WebhookTriggerRepo implements the WorkflowTrigger interface against the
// remote automation service's webhook endpoints.
type WebhookTriggerRepo struct {
	baseURL   string
	root      string
	idExpr    string
	urlExpr   string
	bodyLimit int64

	http   *http.Client
	logger *slog.Logger
	time   TimeProvider
	jems   JMESPathEvaluator
}

var _ core.WorkflowTrigger = (*WebhookTriggerRepo)(nil)

// NewWebhookTriggerRepo validates options and constructs a WebhookTriggerRepo.
func NewWebhookTriggerRepo(opts WebhookTriggerRepoOptions) (*WebhookTriggerRepo, error) {
	baseURL, err := validateBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}

	root := strings.Trim(opts.WebhookRoot, "/")
	if root == "" {
		root = DefaultWebhookRoot
	}

	idExpr := strings.TrimSpace(opts.ExecutionIDExpr)
	if idExpr == "" {
		idExpr = DefaultExecutionIDExpr
	}
	urlExpr := strings.TrimSpace(opts.ResumeURLExpr)
	if urlExpr == "" {
		urlExpr = DefaultResumeURLExpr
	}

	jems := opts.Evaluator
	if jems == nil {
		jems = jmespathLibEvaluator{}
	}
	if err := jems.Validate(idExpr); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid execution ID expression")
	}
	if err := jems.Validate(urlExpr); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid resume URL expression")
	}

	return &WebhookTriggerRepo{
		baseURL:   baseURL,
		root:      root,
		idExpr:    idExpr,
		urlExpr:   urlExpr,
		bodyLimit: resolveBodyLimit(opts.MaxBodyBytes),
		http:      resolveHTTPClient(opts.HTTPClient),
		logger:    resolveLogger(opts.Logger),
		time:      resolveTimeProvider(opts.Time),
		jems:      jems,
	}, nil
}

// Trigger fires the webhook for params.WebhookPath and builds an execution
// handle from the response. Responses that do not echo an execution ID yield
// a handle with a synthesized placeholder ID.
func (r *WebhookTriggerRepo) Trigger(
	ctx context.Context,
	params core.TriggerParams,
) (model.ExecutionHandle, error) {
	path := strings.Trim(params.WebhookPath, "/")
	if path == "" {
		return model.ExecutionHandle{}, apperrors.ValidationField("webhook_path", "webhook path is required")
	}

	endpoint, err := joinBaseURL(r.baseURL, r.root, path)
	if err != nil {
		return model.ExecutionHandle{}, apperrors.Wrap(err, apperrors.ErrCodeValidation, "build webhook URL")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytesReader(params.Payload))
	if err != nil {
		return model.ExecutionHandle{}, apperrors.Wrap(err, apperrors.ErrCodeInternal, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	triggeredAt := r.time.Now()
	resp, err := r.http.Do(req)
	if err != nil {
		return model.ExecutionHandle{}, apperrors.MapTransportError(err)
	}

	body, err := collectResponseBody(resp, r.bodyLimit)
	if err != nil {
		return model.ExecutionHandle{}, apperrors.Wrap(err, apperrors.ErrCodeTransient, "trigger response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return model.ExecutionHandle{}, apperrors.MapStatus(resp.StatusCode, summarizeBody(body))
	}

	handle := model.ExecutionHandle{
		WorkflowRef: path,
		TriggeredAt: triggeredAt,
	}
	handle.ExecutionID, handle.ResumeURL = r.extractHandleFields(body)

	if handle.ExecutionID == "" {
		// The remote accepted the trigger without echoing an ID back. Synthesize
		// a placeholder so the execution can still be referenced. Two triggers of
		// the same path in the same nanosecond would collide.
		handle.ExecutionID = r.synthesizeID(triggeredAt, path)
		handle.Synthesized = true
		r.logger.DebugContext(ctx, "trigger response did not echo an execution ID",
			"webhook_path", path, "request_id", requestID)
	}

	r.logger.InfoContext(ctx, "workflow triggered",
		"webhook_path", path,
		"execution_id", handle.ExecutionID,
		"synthesized", handle.Synthesized,
		"request_id", requestID)

	return handle, nil
}

// extractHandleFields pulls the execution ID and resume URL out of a trigger
// response body. A body that is not JSON yields empty fields rather than an
// error; webhook responses are application-defined.
func (r *WebhookTriggerRepo) extractHandleFields(body []byte) (executionID, resumeURL string) {
	if len(body) == 0 {
		return "", ""
	}

	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return "", ""
	}

	if res, err := r.jems.Evaluate(r.idExpr, data); err == nil {
		executionID = stringifyID(res)
	}
	if res, err := r.jems.Evaluate(r.urlExpr, data); err == nil {
		if s, ok := res.(string); ok {
			resumeURL = strings.TrimSpace(s)
		}
	}
	return executionID, resumeURL
}

func (r *WebhookTriggerRepo) synthesizeID(triggeredAt time.Time, path string) string {
	slug := strings.ReplaceAll(path, "/", "-")
	return syntheticExecutionPrefix + "-" + slug + "-" + r.time.FormatForID(triggeredAt)
}

// stringifyID converts a JMESPath result into an execution ID string.
// Remotes report IDs as strings or JSON numbers.
func stringifyID(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}
