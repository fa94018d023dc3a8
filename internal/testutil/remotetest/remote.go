// Package remotetest provides an in-memory fake of the remote automation
// service for end-to-end testing of the flowpulse tracking engine. It serves
// the webhook trigger endpoints and the execution status API over httptest,
// with script controls for advancing execution status and injecting
// failures.
package remotetest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/flowpulse/flowpulse/internal/testutil"
)

// DefaultAPIKeyHeader is the header checked when Options.APIKey is set.
const DefaultAPIKeyHeader = "X-API-KEY"

// Execution is the fake remote's record of one triggered execution.
type Execution struct {
	ID          string
	WebhookPath string
	Status      string
	Error       string
	TriggerBody json.RawMessage
	ResumeInput json.RawMessage
	Resumed     bool
}

// Options configures the fake remote's behavior.
type Options struct {
	// OmitExecutionID leaves the execution ID out of trigger responses,
	// forcing clients onto their synthesized-handle path.
	OmitExecutionID bool
	// IncludeResumeURL adds a resumeUrl field to trigger responses pointing
	// at this server's resume endpoint.
	IncludeResumeURL bool
	// APIKey, when set, must be presented on every request.
	APIKey string
	// APIKeyHeader overrides the header checked for APIKey; defaults to
	// DefaultAPIKeyHeader.
	APIKeyHeader string
	// InitialStatus is assigned to newly triggered executions; defaults to
	// "running".
	InitialStatus string
}

// Remote is a fake remote automation service backed by httptest.
type Remote struct {
	t    testutil.TestingTB
	ts   *httptest.Server
	opts Options

	mu          sync.Mutex
	executions  map[string]*Execution
	nextID      int
	statusCalls map[string]int
	failStatus  map[string]int
}

// NewRemote starts a fake remote. Close it when the test finishes.
func NewRemote(t testutil.TestingTB, opts Options) *Remote {
	t.Helper()

	if opts.InitialStatus == "" {
		opts.InitialStatus = "running"
	}
	if opts.APIKeyHeader == "" {
		opts.APIKeyHeader = DefaultAPIKeyHeader
	}

	r := &Remote{
		t:           t,
		opts:        opts,
		executions:  make(map[string]*Execution),
		statusCalls: make(map[string]int),
		failStatus:  make(map[string]int),
	}
	r.ts = httptest.NewServer(r.router())
	return r
}

// BaseURL returns the base URL of the fake remote. It serves both the
// webhook root and the execution API.
func (r *Remote) BaseURL() string {
	return r.ts.URL
}

// Close shuts the fake remote down.
func (r *Remote) Close() {
	r.ts.Close()
}

func (r *Remote) router() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook/{path...}", r.handleTrigger)
	mux.HandleFunc("GET /api/v1/executions/{id}", r.handleStatus)
	mux.HandleFunc("POST /api/v1/executions/{id}/resume", r.handleResume)
	return mux
}

func (r *Remote) handleTrigger(w http.ResponseWriter, req *http.Request) {
	if !r.authorized(w, req) {
		return
	}

	body, err := io.ReadAll(req.Body)
	if err != nil {
		http.Error(w, "read trigger body", http.StatusBadRequest)
		return
	}
	if len(body) > 0 && !json.Valid(body) {
		http.Error(w, "trigger body is not JSON", http.StatusBadRequest)
		return
	}

	r.mu.Lock()
	r.nextID++
	exec := &Execution{
		ID:          fmt.Sprintf("exec-%d", r.nextID),
		WebhookPath: strings.Trim(req.PathValue("path"), "/"),
		Status:      r.opts.InitialStatus,
		TriggerBody: json.RawMessage(body),
	}
	r.executions[exec.ID] = exec
	r.mu.Unlock()

	resp := map[string]any{}
	if !r.opts.OmitExecutionID {
		resp["executionId"] = exec.ID
	}
	if r.opts.IncludeResumeURL {
		resp["resumeUrl"] = r.ts.URL + "/api/v1/executions/" + exec.ID + "/resume"
	}
	r.writeJSON(w, http.StatusOK, resp)
}

func (r *Remote) handleStatus(w http.ResponseWriter, req *http.Request) {
	if !r.authorized(w, req) {
		return
	}

	id := req.PathValue("id")
	r.mu.Lock()
	exec, ok := r.executions[id]
	r.statusCalls[id]++
	failing := r.failStatus[id] > 0
	if failing {
		r.failStatus[id]--
	}
	var snapshot Execution
	if ok {
		snapshot = *exec
	}
	r.mu.Unlock()

	if failing {
		http.Error(w, "injected status failure", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "execution not found", http.StatusNotFound)
		return
	}

	resp := map[string]any{
		"id":     snapshot.ID,
		"status": snapshot.Status,
	}
	if snapshot.Error != "" {
		resp["error"] = map[string]any{"message": snapshot.Error}
	}
	r.writeJSON(w, http.StatusOK, resp)
}

func (r *Remote) handleResume(w http.ResponseWriter, req *http.Request) {
	if !r.authorized(w, req) {
		return
	}

	input, err := io.ReadAll(req.Body)
	if err != nil {
		http.Error(w, "read resume input", http.StatusBadRequest)
		return
	}

	id := req.PathValue("id")
	r.mu.Lock()
	exec, ok := r.executions[id]
	if ok {
		if exec.Status != "waiting" {
			r.mu.Unlock()
			http.Error(w, "execution is not waiting", http.StatusConflict)
			return
		}
		exec.Status = "running"
		exec.Resumed = true
		exec.ResumeInput = json.RawMessage(input)
	}
	r.mu.Unlock()

	if !ok {
		http.Error(w, "execution not found", http.StatusNotFound)
		return
	}
	r.writeJSON(w, http.StatusOK, map[string]any{"resumed": true})
}

func (r *Remote) authorized(w http.ResponseWriter, req *http.Request) bool {
	if r.opts.APIKey == "" {
		return true
	}
	if req.Header.Get(r.opts.APIKeyHeader) != r.opts.APIKey {
		http.Error(w, "missing or invalid api key", http.StatusUnauthorized)
		return false
	}
	return true
}

func (r *Remote) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		r.t.Logf("warning: encode fake remote response: %v", err)
	}
}

// Script controls

// SetStatus moves an execution to the given remote status. Unknown IDs fail
// the test.
func (r *Remote) SetStatus(id, status string) {
	r.t.Helper()

	r.mu.Lock()
	defer r.mu.Unlock()
	exec, ok := r.executions[id]
	if !ok {
		r.t.Fatalf("SetStatus: execution %s not found", id)
	}
	exec.Status = status
}

// SetError moves an execution to a failed status carrying an error message.
func (r *Remote) SetError(id, message string) {
	r.t.Helper()

	r.mu.Lock()
	defer r.mu.Unlock()
	exec, ok := r.executions[id]
	if !ok {
		r.t.Fatalf("SetError: execution %s not found", id)
	}
	exec.Status = "error"
	exec.Error = message
}

// FailStatusFetches makes the next n status fetches for an execution return
// HTTP 500 before serving real responses again.
func (r *Remote) FailStatusFetches(id string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failStatus[id] = n
}

// Execution returns a copy of the execution record, if it exists.
func (r *Remote) Execution(id string) (Execution, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	exec, ok := r.executions[id]
	if !ok {
		return Execution{}, false
	}
	return *exec, true
}

// StatusCalls reports how many status fetches an execution has served,
// including injected failures.
func (r *Remote) StatusCalls(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.statusCalls[id]
}

// Triggered reports how many executions have been created.
func (r *Remote) Triggered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.executions)
}
