package mocks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/flowpulse/flowpulse/internal/core"
	"github.com/flowpulse/flowpulse/internal/domain/model"
	"github.com/flowpulse/flowpulse/internal/testutil"
)

// Ensure compile-time conformance to the core ports.
var (
	_ core.WorkflowTrigger  = (*MockWorkflowTrigger)(nil)
	_ core.StatusFetcher    = (*MockStatusFetcher)(nil)
	_ core.ExecutionResumer = (*MockExecutionResumer)(nil)
	_ core.CacheRepository  = (*MockCacheRepository)(nil)
)

func TestMockWorkflowTrigger_ReturnsConfiguredHandle(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	trigger := NewMockWorkflowTrigger(ctrl)

	params := core.TriggerParams{WebhookPath: "order-sync", IdempotencyKey: "order-77"}
	want := testutil.NewHandle().WithExecutionID("exec-1").Build()
	trigger.EXPECT().Trigger(ctx, params).Return(want, nil)

	got, err := trigger.Trigger(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestMockStatusFetcher_DoAndReturn(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	fetcher := NewMockStatusFetcher(ctrl)

	handle := testutil.NewHandle().WithExecutionID("exec-2").Build()
	fetcher.EXPECT().
		FetchStatus(gomock.Any(), gomock.AssignableToTypeOf(model.ExecutionHandle{})).
		DoAndReturn(func(_ context.Context, h model.ExecutionHandle) (model.ExecutionState, error) {
			assert.Equal(t, handle.ExecutionID, h.ExecutionID)
			return testutil.RunningState(h.ExecutionID), nil
		})

	state, err := fetcher.FetchStatus(ctx, handle)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRunning, state.Kind)
	assert.Equal(t, "exec-2", state.ExecutionID)
}

func TestMockExecutionResumer_PropagatesError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	resumer := NewMockExecutionResumer(ctrl)

	handle := testutil.NewHandle().WithExecutionID("exec-3").Build()
	input := json.RawMessage(`{"approved":true}`)
	wantErr := errors.New("execution is not waiting")
	resumer.EXPECT().Resume(ctx, handle, input).Return(wantErr)

	err := resumer.Resume(ctx, handle, input)
	require.ErrorIs(t, err, wantErr)
}

func TestMockCacheRepository_ExpectationFlow(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	cache := NewMockCacheRepository(ctrl)

	cache.EXPECT().SetIfNotExists(ctx, "flowpulse:trigger:key-1", gomock.Any(), time.Hour).Return(true, nil)
	cache.EXPECT().Get(ctx, "flowpulse:trigger:key-1").Return([]byte(`{"idempotency_key":"key-1"}`), nil)
	cache.EXPECT().Delete(ctx, "flowpulse:trigger:key-1").Return(true, nil)
	cache.EXPECT().Health(ctx).Return(nil)

	wasSet, err := cache.SetIfNotExists(ctx, "flowpulse:trigger:key-1", []byte(`{}`), time.Hour)
	require.NoError(t, err)
	assert.True(t, wasSet)

	raw, err := cache.Get(ctx, "flowpulse:trigger:key-1")
	require.NoError(t, err)
	assert.Contains(t, string(raw), "key-1")

	deleted, err := cache.Delete(ctx, "flowpulse:trigger:key-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	require.NoError(t, cache.Health(ctx))
}
