package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowpulse/flowpulse/internal/core"
	"github.com/flowpulse/flowpulse/internal/data"
	"github.com/flowpulse/flowpulse/internal/domain/model"
	apperrors "github.com/flowpulse/flowpulse/internal/errors"
)

// fakeCache is an in-memory CacheRepository with injectable failures.
type fakeCache struct {
	mu          sync.Mutex
	store       map[string][]byte
	ttls        map[string]time.Duration
	getErr      error
	setErr      error
	setNXErr    error
	deleteErr   error
	setNXResult *bool
	getCalls    int
	setCalls    int
	setNXCalls  int
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		store: make(map[string][]byte),
		ttls:  make(map[string]time.Duration),
	}
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setCalls++
	if c.setErr != nil {
		return c.setErr
	}
	c.store[key] = value
	c.ttls[key] = ttl
	return nil
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.getCalls++
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.store[key], nil
}

func (c *fakeCache) Delete(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deleteErr != nil {
		return false, c.deleteErr
	}
	_, ok := c.store[key]
	delete(c.store, key)
	delete(c.ttls, key)
	return ok, nil
}

func (c *fakeCache) SetIfNotExists(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setNXCalls++
	if c.setNXErr != nil {
		return false, c.setNXErr
	}
	if c.setNXResult != nil {
		return *c.setNXResult, nil
	}
	if _, exists := c.store[key]; exists {
		return false, nil
	}
	c.store[key] = value
	c.ttls[key] = ttl
	return true, nil
}

func (c *fakeCache) Health(context.Context) error { return nil }

func (c *fakeCache) storedKeys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.store))
	for k := range c.store {
		keys = append(keys, k)
	}
	return keys
}

// fakeTrigger records trigger calls and returns a canned handle.
type fakeTrigger struct {
	mu         sync.Mutex
	handle     model.ExecutionHandle
	err        error
	calls      int
	lastParams core.TriggerParams
}

func (f *fakeTrigger) Trigger(_ context.Context, params core.TriggerParams) (model.ExecutionHandle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastParams = params
	if f.err != nil {
		return model.ExecutionHandle{}, f.err
	}
	return f.handle, nil
}

func (f *fakeTrigger) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func triggeredHandle() model.ExecutionHandle {
	return model.ExecutionHandle{
		ExecutionID: "exec-77",
		WorkflowRef: "order-sync",
		TriggeredAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func newTestTriggerService(t *testing.T, trigger core.WorkflowTrigger, cache core.CacheRepository, now time.Time) *TriggerService {
	t.Helper()
	svc, err := NewTriggerService(TriggerServiceOptions{
		Trigger:      trigger,
		Cache:        cache,
		Config:       TriggerDedupeConfig{TTL: 2 * time.Hour},
		Logger:       discardLogger(),
		TimeProvider: data.NewFixedTimeProvider(now),
	})
	require.NoError(t, err)
	return svc
}

func TestTriggerService_DedupeHitSkipsWebhook(t *testing.T) {
	t.Parallel()

	stored := triggeredHandle()
	stored.ExecutionID = "exec-earlier"
	receipt, err := json.Marshal(model.TriggerReceipt{
		IdempotencyKey: "order-1",
		Handle:         stored,
		StoredAt:       time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	cache := newFakeCache()
	cache.store["flowpulse:trigger:order-1"] = receipt
	remote := &fakeTrigger{handle: triggeredHandle()}
	svc := newTestTriggerService(t, remote, cache, time.Now())

	handle, err := svc.Trigger(context.Background(), core.TriggerParams{
		WebhookPath:    "/webhook/order-sync",
		IdempotencyKey: "order-1",
	})
	require.NoError(t, err)
	assert.Equal(t, stored, handle)
	assert.Zero(t, remote.callCount(), "a dedupe hit must not fire the webhook")
}

func TestTriggerService_MissFiresAndStoresReceipt(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	cache := newFakeCache()
	remote := &fakeTrigger{handle: triggeredHandle()}
	svc := newTestTriggerService(t, remote, cache, now)

	handle, err := svc.Trigger(context.Background(), core.TriggerParams{
		WebhookPath:    "/webhook/order-sync",
		Payload:        json.RawMessage(`{"order_id":2}`),
		IdempotencyKey: "order-2",
	})
	require.NoError(t, err)
	assert.Equal(t, triggeredHandle(), handle)
	assert.Equal(t, 1, remote.callCount())

	raw := cache.store["flowpulse:trigger:order-2"]
	require.NotEmpty(t, raw, "receipt must be stored under the prefixed key")

	var receipt model.TriggerReceipt
	require.NoError(t, json.Unmarshal(raw, &receipt))
	assert.Equal(t, "order-2", receipt.IdempotencyKey)
	assert.Equal(t, handle, receipt.Handle)
	assert.True(t, receipt.StoredAt.Equal(now))
	assert.Equal(t, 2*time.Hour, cache.ttls["flowpulse:trigger:order-2"])
}

func TestTriggerService_LostReceiptRaceKeepsLocalHandle(t *testing.T) {
	t.Parallel()

	lost := false
	cache := newFakeCache()
	cache.setNXResult = &lost
	remote := &fakeTrigger{handle: triggeredHandle()}
	svc := newTestTriggerService(t, remote, cache, time.Now())

	// The webhook already fired by the time the claim is lost, so the local
	// handle is the truthful answer for this caller.
	handle, err := svc.Trigger(context.Background(), core.TriggerParams{
		WebhookPath:    "/webhook/order-sync",
		IdempotencyKey: "order-3",
	})
	require.NoError(t, err)
	assert.Equal(t, triggeredHandle(), handle)
	assert.Equal(t, 1, remote.callCount())
}

func TestTriggerService_CacheFailuresNeverBlockTrigger(t *testing.T) {
	t.Parallel()

	t.Run("lookup error", func(t *testing.T) {
		cache := newFakeCache()
		cache.getErr = apperrors.Transient("redis down")
		remote := &fakeTrigger{handle: triggeredHandle()}
		svc := newTestTriggerService(t, remote, cache, time.Now())

		handle, err := svc.Trigger(context.Background(), core.TriggerParams{
			WebhookPath:    "/webhook/order-sync",
			IdempotencyKey: "order-4",
		})
		require.NoError(t, err)
		assert.Equal(t, triggeredHandle(), handle)
		assert.Equal(t, 1, remote.callCount())
	})

	t.Run("store error", func(t *testing.T) {
		cache := newFakeCache()
		cache.setNXErr = apperrors.Transient("redis down")
		remote := &fakeTrigger{handle: triggeredHandle()}
		svc := newTestTriggerService(t, remote, cache, time.Now())

		handle, err := svc.Trigger(context.Background(), core.TriggerParams{
			WebhookPath:    "/webhook/order-sync",
			IdempotencyKey: "order-5",
		})
		require.NoError(t, err)
		assert.Equal(t, triggeredHandle(), handle)
		assert.Equal(t, 1, remote.callCount())
	})

	t.Run("store error on generated key", func(t *testing.T) {
		cache := newFakeCache()
		cache.setErr = apperrors.Transient("redis down")
		remote := &fakeTrigger{handle: triggeredHandle()}
		svc := newTestTriggerService(t, remote, cache, time.Now())

		handle, err := svc.Trigger(context.Background(), core.TriggerParams{
			WebhookPath: "/webhook/order-sync",
		})
		require.NoError(t, err)
		assert.Equal(t, triggeredHandle(), handle)
		assert.Equal(t, 1, remote.callCount())
	})
}

func TestTriggerService_GeneratedKeySkipsLookupButStoresReceipt(t *testing.T) {
	t.Parallel()

	cache := newFakeCache()
	remote := &fakeTrigger{handle: triggeredHandle()}
	svc := newTestTriggerService(t, remote, cache, time.Now())

	_, err := svc.Trigger(context.Background(), core.TriggerParams{
		WebhookPath: "/webhook/order-sync",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, remote.callCount())
	assert.Zero(t, cache.getCalls, "a generated key cannot have a prior receipt")

	keys := cache.storedKeys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(keys[0], "flowpulse:trigger:"))
	assert.NotEqual(t, "flowpulse:trigger:", keys[0], "generated key must not be blank")
	assert.Equal(t, 1, cache.setCalls, "generated keys are written without a claim")
	assert.Zero(t, cache.setNXCalls)
}

func TestTriggerService_ForgetDropsReceipt(t *testing.T) {
	t.Parallel()

	cache := newFakeCache()
	remote := &fakeTrigger{handle: triggeredHandle()}
	svc := newTestTriggerService(t, remote, cache, time.Now())

	_, err := svc.Trigger(context.Background(), core.TriggerParams{
		WebhookPath:    "/webhook/order-sync",
		IdempotencyKey: "order-8",
	})
	require.NoError(t, err)
	require.Len(t, cache.storedKeys(), 1)

	removed, err := svc.Forget(context.Background(), "order-8")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.Empty(t, cache.storedKeys())

	removed, err = svc.Forget(context.Background(), "order-8")
	require.NoError(t, err)
	assert.False(t, removed, "the receipt is already gone")

	// With the receipt gone the same key fires the webhook again.
	_, err = svc.Trigger(context.Background(), core.TriggerParams{
		WebhookPath:    "/webhook/order-sync",
		IdempotencyKey: "order-8",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, remote.callCount())
}

func TestTriggerService_ForgetRequiresKey(t *testing.T) {
	t.Parallel()

	svc := newTestTriggerService(t, &fakeTrigger{}, newFakeCache(), time.Now())

	_, err := svc.Forget(context.Background(), "   ")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestTriggerService_ForgetWithoutCache(t *testing.T) {
	t.Parallel()

	svc, err := NewTriggerService(TriggerServiceOptions{
		Trigger: &fakeTrigger{},
		Logger:  discardLogger(),
	})
	require.NoError(t, err)

	removed, err := svc.Forget(context.Background(), "order-9")
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestTriggerService_ForgetDeleteError(t *testing.T) {
	t.Parallel()

	cache := newFakeCache()
	cache.deleteErr = apperrors.Transient("redis down")
	svc := newTestTriggerService(t, &fakeTrigger{}, cache, time.Now())

	_, err := svc.Forget(context.Background(), "order-10")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "forget trigger receipt")
	assert.True(t, apperrors.IsTransient(err), "the cache error class survives wrapping")
}

func TestTriggerService_NoCachePassesThrough(t *testing.T) {
	t.Parallel()

	remote := &fakeTrigger{handle: triggeredHandle()}
	svc, err := NewTriggerService(TriggerServiceOptions{
		Trigger: remote,
		Logger:  discardLogger(),
	})
	require.NoError(t, err)

	handle, err := svc.Trigger(context.Background(), core.TriggerParams{
		WebhookPath:    "/webhook/order-sync",
		IdempotencyKey: "order-6",
	})
	require.NoError(t, err)
	assert.Equal(t, triggeredHandle(), handle)
	assert.Equal(t, 1, remote.callCount())
}

func TestTriggerService_WrapsTriggerError(t *testing.T) {
	t.Parallel()

	cache := newFakeCache()
	remote := &fakeTrigger{err: apperrors.Transient("502 from webhook")}
	svc := newTestTriggerService(t, remote, cache, time.Now())

	_, err := svc.Trigger(context.Background(), core.TriggerParams{
		WebhookPath:    "/webhook/order-sync",
		IdempotencyKey: "order-7",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trigger workflow")
	assert.True(t, apperrors.IsTransient(err), "the remote error class survives wrapping")
	assert.Empty(t, cache.storedKeys(), "failed triggers leave no receipt")
}

func TestNewTriggerService_RequiresTrigger(t *testing.T) {
	t.Parallel()

	_, err := NewTriggerService(TriggerServiceOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WorkflowTrigger is required")
}
