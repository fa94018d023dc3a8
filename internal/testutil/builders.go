package testutil

import (
	"encoding/json"
	"time"

	"github.com/flowpulse/flowpulse/internal/domain/model"
)

// HandleBuilder provides a fluent interface for building ExecutionHandle objects for testing.
type HandleBuilder struct {
	handle model.ExecutionHandle
}

// NewHandle creates a new HandleBuilder with sensible defaults.
func NewHandle() *HandleBuilder {
	return &HandleBuilder{
		handle: model.ExecutionHandle{
			ExecutionID: "exec-test-1",
			WorkflowRef: "order-sync",
			TriggeredAt: TestTime(),
		},
	}
}

// WithExecutionID sets the execution ID.
func (b *HandleBuilder) WithExecutionID(id string) *HandleBuilder {
	b.handle.ExecutionID = id
	return b
}

// WithWorkflowRef sets the workflow reference.
func (b *HandleBuilder) WithWorkflowRef(ref string) *HandleBuilder {
	b.handle.WorkflowRef = ref
	return b
}

// WithTriggeredAt sets the trigger acceptance time.
func (b *HandleBuilder) WithTriggeredAt(t time.Time) *HandleBuilder {
	b.handle.TriggeredAt = t
	return b
}

// WithResumeURL sets the resume URL override.
func (b *HandleBuilder) WithResumeURL(url string) *HandleBuilder {
	b.handle.ResumeURL = url
	return b
}

// Synthesized marks the handle's execution ID as locally generated.
func (b *HandleBuilder) Synthesized() *HandleBuilder {
	b.handle.Synthesized = true
	return b
}

// Build returns the constructed ExecutionHandle.
func (b *HandleBuilder) Build() model.ExecutionHandle {
	return b.handle
}

// StateBuilder provides a fluent interface for building ExecutionState objects for testing.
type StateBuilder struct {
	state model.ExecutionState
}

// NewState creates a new StateBuilder with sensible defaults.
func NewState() *StateBuilder {
	return &StateBuilder{
		state: model.ExecutionState{
			ExecutionID:  "exec-test-1",
			Kind:         model.StatusRunning,
			RemoteStatus: "running",
			ObservedAt:   TestTime(),
		},
	}
}

// WithExecutionID sets the execution ID.
func (b *StateBuilder) WithExecutionID(id string) *StateBuilder {
	b.state.ExecutionID = id
	return b
}

// WithKind sets the status kind.
func (b *StateBuilder) WithKind(kind model.StatusKind) *StateBuilder {
	b.state.Kind = kind
	return b
}

// WithRemoteStatus sets the raw remote status string.
func (b *StateBuilder) WithRemoteStatus(status string) *StateBuilder {
	b.state.RemoteStatus = status
	return b
}

// WithSequence sets the sequence number.
func (b *StateBuilder) WithSequence(seq uint64) *StateBuilder {
	b.state.Sequence = seq
	return b
}

// WithObservedAt sets the observation time.
func (b *StateBuilder) WithObservedAt(t time.Time) *StateBuilder {
	b.state.ObservedAt = t
	return b
}

// WithPayload sets the state payload.
func (b *StateBuilder) WithPayload(payload json.RawMessage) *StateBuilder {
	b.state.Payload = payload
	return b
}

// WithPayloadString sets the state payload from a string.
func (b *StateBuilder) WithPayloadString(payload string) *StateBuilder {
	b.state.Payload = json.RawMessage(payload)
	return b
}

// WithErrorMessage sets the remote error message.
func (b *StateBuilder) WithErrorMessage(msg string) *StateBuilder {
	b.state.ErrorMessage = msg
	return b
}

// Build returns the constructed ExecutionState.
func (b *StateBuilder) Build() model.ExecutionState {
	return b.state
}

// Common test state presets

// RunningState creates a running state for the given execution.
func RunningState(executionID string) model.ExecutionState {
	return NewState().WithExecutionID(executionID).Build()
}

// WaitingState creates a waiting state for the given execution.
func WaitingState(executionID string) model.ExecutionState {
	return NewState().
		WithExecutionID(executionID).
		WithKind(model.StatusWaiting).
		WithRemoteStatus("waiting").
		Build()
}

// SucceededState creates a successful terminal state for the given execution.
func SucceededState(executionID string) model.ExecutionState {
	return NewState().
		WithExecutionID(executionID).
		WithKind(model.StatusSuccess).
		WithRemoteStatus("success").
		Build()
}

// FailedState creates a failed terminal state with an error message.
func FailedState(executionID, errorMsg string) model.ExecutionState {
	return NewState().
		WithExecutionID(executionID).
		WithKind(model.StatusFailed).
		WithRemoteStatus("error").
		WithErrorMessage(errorMsg).
		Build()
}

// SynthesizedHandle creates a handle whose execution ID was generated locally.
func SynthesizedHandle(workflowRef string) model.ExecutionHandle {
	return NewHandle().
		WithExecutionID("synthesized-" + workflowRef).
		WithWorkflowRef(workflowRef).
		Synthesized().
		Build()
}
