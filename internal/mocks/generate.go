// Package mocks provides mock implementations for testing the flowpulse tracking engine.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our port interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockFetcher := mocks.NewMockStatusFetcher(ctrl)
//	mockFetcher.EXPECT().FetchStatus(gomock.Any(), gomock.Any()).Return(state, nil)
package mocks

// Generate mock for WorkflowTrigger interface from internal/core package.
// This creates MockWorkflowTrigger with methods for all WorkflowTrigger interface methods:
// Trigger
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=workflow_trigger_mock.go github.com/flowpulse/flowpulse/internal/core WorkflowTrigger

// Generate mock for StatusFetcher interface from internal/core package.
// This creates MockStatusFetcher with methods for all StatusFetcher interface methods:
// FetchStatus
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=status_fetcher_mock.go github.com/flowpulse/flowpulse/internal/core StatusFetcher

// Generate mock for ExecutionResumer interface from internal/core package.
// This creates MockExecutionResumer with methods for all ExecutionResumer interface methods:
// Resume
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=execution_resumer_mock.go github.com/flowpulse/flowpulse/internal/core ExecutionResumer

// Generate mock for CacheRepository interface from internal/core package.
// This creates MockCacheRepository with methods for all CacheRepository interface methods:
// Set, Get, Delete, SetIfNotExists, Health
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=cache_repository_mock.go github.com/flowpulse/flowpulse/internal/core CacheRepository
