package model

import (
	"errors"
	"time"
)

// ExecutionHandle identifies one remote workflow execution. It is created by
// the trigger client and held, unchanged, by the caller for the lifetime of
// tracking.
type ExecutionHandle struct {
	// ExecutionID is the remote execution identifier, or a synthesized
	// placeholder when the trigger response did not echo one back.
	ExecutionID string `json:"execution_id"`
	// WorkflowRef names the workflow that was triggered (the webhook path).
	WorkflowRef string `json:"workflow_ref"`
	// TriggeredAt is the local time the trigger call was accepted.
	TriggeredAt time.Time `json:"triggered_at"`
	// ResumeURL, when present, overrides the API default for resume calls.
	ResumeURL string `json:"resume_url,omitempty"`
	// Synthesized marks handles whose ExecutionID was generated locally.
	// Such identifiers can collide across rapid triggers of the same
	// workflow and cannot be resolved against the remote execution API.
	Synthesized bool `json:"synthesized,omitempty"`
}

// Validate validates the ExecutionHandle fields.
func (h ExecutionHandle) Validate() error {
	if h.ExecutionID == "" {
		return errors.New("execution id is required")
	}
	if h.WorkflowRef == "" {
		return errors.New("workflow ref is required")
	}
	if h.TriggeredAt.IsZero() {
		return errors.New("triggered at is required")
	}
	return nil
}

// TriggerReceipt is the dedupe record stored for one trigger call. A
// duplicate trigger with the same idempotency key returns the stored handle
// instead of firing the webhook again.
type TriggerReceipt struct {
	IdempotencyKey string          `json:"idempotency_key"`
	Handle         ExecutionHandle `json:"handle"`
	StoredAt       time.Time       `json:"stored_at"`
}
