// Package model defines the core data types shared across the flowpulse tracking engine.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// StatusKind represents the remote-reported status of a workflow execution.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type StatusKind string

const (
	// StatusRunning indicates the remote execution is in progress.
	StatusRunning StatusKind = "running"
	// StatusWaiting indicates the remote execution is paused pending external input.
	StatusWaiting StatusKind = "waiting"
	// StatusSuccess indicates the remote execution finished successfully.
	StatusSuccess StatusKind = "success"
	// StatusFailed indicates the remote execution finished unsuccessfully.
	StatusFailed StatusKind = "failed"
	// StatusUnknown indicates the remote reported a status this client does not recognize.
	StatusUnknown StatusKind = "unknown"
)

// UnmarshalText implements encoding.TextUnmarshaler for StatusKind to allow env parsing.
func (k *StatusKind) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	sk := StatusKind(v)
	if sk.Valid() {
		*k = sk
		return nil
	}
	return fmt.Errorf("invalid StatusKind: %q", v)
}

// Valid returns true if the StatusKind is valid.
func (k StatusKind) Valid() bool {
	return k == StatusRunning || k == StatusWaiting || k == StatusSuccess ||
		k == StatusFailed || k == StatusUnknown
}

// Terminal returns true if no further progress is possible after this kind.
func (k StatusKind) Terminal() bool {
	return k == StatusSuccess || k == StatusFailed
}

// ExecutionState is a snapshot of remote status at one poll. States are never
// mutated after creation and are ordered by Sequence.
type ExecutionState struct {
	ExecutionID  string          `json:"execution_id"`
	Kind         StatusKind      `json:"kind"`
	Sequence     uint64          `json:"sequence"`
	ObservedAt   time.Time       `json:"observed_at"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	RemoteStatus string          `json:"remote_status,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
}

// Terminal returns true if this state ends the execution's lifecycle.
func (s ExecutionState) Terminal() bool {
	return s.Kind.Terminal()
}

// AttemptOutcome classifies how a single status-fetch try ended.
type AttemptOutcome string

const (
	// AttemptSuccess indicates the fetch returned a usable state.
	AttemptSuccess AttemptOutcome = "success"
	// AttemptTransient indicates the fetch failed in a retryable way.
	AttemptTransient AttemptOutcome = "transient_error"
	// AttemptFatal indicates the fetch failed in a way retrying cannot fix.
	AttemptFatal AttemptOutcome = "fatal_error"
)

// PollAttempt records one status-fetch try. It exists for the duration of one
// poll cycle and is consumed by the loop's retry decision and metrics.
type PollAttempt struct {
	Index    int            `json:"index"`
	Interval time.Duration  `json:"interval"`
	Outcome  AttemptOutcome `json:"outcome"`
}
