package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusKind_Valid(t *testing.T) {
	assert.True(t, StatusRunning.Valid())
	assert.True(t, StatusWaiting.Valid())
	assert.True(t, StatusSuccess.Valid())
	assert.True(t, StatusFailed.Valid())
	assert.True(t, StatusUnknown.Valid())
	assert.False(t, StatusKind("crashed").Valid())
}

func TestStatusKind_Terminal(t *testing.T) {
	assert.True(t, StatusSuccess.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusRunning.Terminal())
	assert.False(t, StatusWaiting.Terminal())
	assert.False(t, StatusUnknown.Terminal())
}

func TestStatusKind_UnmarshalText(t *testing.T) {
	var k StatusKind
	err := k.UnmarshalText([]byte(" Waiting "))
	require.NoError(t, err)
	assert.Equal(t, StatusWaiting, k)

	err = k.UnmarshalText([]byte("paused"))
	assert.Error(t, err)
}

func TestExecutionState_Terminal(t *testing.T) {
	running := ExecutionState{ExecutionID: "exec-1", Kind: StatusRunning, Sequence: 1}
	assert.False(t, running.Terminal())

	done := ExecutionState{ExecutionID: "exec-1", Kind: StatusSuccess, Sequence: 2}
	assert.True(t, done.Terminal())
}

func TestExecutionHandle_Validate(t *testing.T) {
	tests := []struct {
		name        string
		handle      ExecutionHandle
		expectError string
	}{
		{
			name: "valid handle",
			handle: ExecutionHandle{
				ExecutionID: "exec-1",
				WorkflowRef: "orders/refresh",
				TriggeredAt: time.Now(),
			},
		},
		{
			name: "missing execution id",
			handle: ExecutionHandle{
				WorkflowRef: "orders/refresh",
				TriggeredAt: time.Now(),
			},
			expectError: "execution id is required",
		},
		{
			name: "missing workflow ref",
			handle: ExecutionHandle{
				ExecutionID: "exec-1",
				TriggeredAt: time.Now(),
			},
			expectError: "workflow ref is required",
		},
		{
			name: "missing trigger time",
			handle: ExecutionHandle{
				ExecutionID: "exec-1",
				WorkflowRef: "orders/refresh",
			},
			expectError: "triggered at is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.handle.Validate()
			if tt.expectError == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}
