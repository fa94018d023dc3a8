package main

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flowpulse/flowpulse/internal/circuit"
	"github.com/flowpulse/flowpulse/internal/domain/retry"
)

func TestLoadPayload(t *testing.T) {
	payload, err := loadPayload(`{"order":42}`, "")
	require.NoError(t, err)
	require.JSONEq(t, `{"order":42}`, string(payload))

	payload, err = loadPayload("", "")
	require.NoError(t, err)
	require.Nil(t, payload)

	_, err = loadPayload(`{"a":1}`, "also-a-file.json")
	require.ErrorContains(t, err, "not both")

	_, err = loadPayload(`{"broken"`, "")
	require.ErrorContains(t, err, "not valid JSON")
}

func TestLoadPayloadFromFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "payload.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"customer":"acme"}`), 0o600))

	payload, err := loadPayload("", file)
	require.NoError(t, err)
	require.JSONEq(t, `{"customer":"acme"}`, string(payload))

	_, err = loadPayload("", filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorContains(t, err, "read payload file")
}

func TestValidateTriggerOptions(t *testing.T) {
	opts := triggerOptions{}
	require.ErrorContains(t, validateTriggerOptions(&opts), "one of -path or -workflow")

	opts = triggerOptions{Path: "orders", WorkflowFile: "wf.json"}
	require.ErrorContains(t, validateTriggerOptions(&opts), "not both")

	opts = triggerOptions{Path: "orders", Refire: true}
	require.ErrorContains(t, validateTriggerOptions(&opts), "-refire requires -idempotency-key")

	opts = triggerOptions{Path: "  orders  ", Timeout: -time.Second}
	require.NoError(t, validateTriggerOptions(&opts))
	require.Equal(t, "orders", opts.Path)
	require.Equal(t, defaultCommandTimeout, opts.Timeout)
}

func TestWebhookPathFromFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "workflow.json")
	definition := `{
		"name": "order-sync",
		"nodes": [
			{"id": "1", "name": "Webhook", "type": "webhook", "parameters": {"path": "order-sync"}, "position": [0, 0]}
		]
	}`
	require.NoError(t, os.WriteFile(file, []byte(definition), 0o600))

	path, err := webhookPathFromFile(file)
	require.NoError(t, err)
	require.Equal(t, "order-sync", path)
}

func TestWebhookPathFromFileRejectsInvalidDefinition(t *testing.T) {
	file := filepath.Join(t.TempDir(), "workflow.json")
	require.NoError(t, os.WriteFile(file, []byte(`{"name": "broken", "nodes": []}`), 0o600))

	_, err := webhookPathFromFile(file)
	require.ErrorContains(t, err, "invalid workflow definition")
}

func TestParseTrackFlags(t *testing.T) {
	opts, err := parseTrackFlags([]string{"-workflow-ref", "order-sync", "-deadline", "90s", "exec-1", "exec-2"})
	require.NoError(t, err)
	require.Equal(t, []string{"exec-1", "exec-2"}, opts.ExecutionIDs)
	require.Equal(t, "order-sync", opts.WorkflowRef)
	require.Equal(t, 90*time.Second, opts.Deadline)
	require.False(t, opts.Fast)

	_, err = parseTrackFlags(nil)
	require.ErrorContains(t, err, "at least one execution ID")
}

func TestTrackCallOptions(t *testing.T) {
	opts := trackOptions{Deadline: time.Minute}
	topts := opts.trackCallOptions()
	require.Equal(t, time.Minute, topts.Deadline)
	require.Nil(t, topts.Retry)

	opts.Fast = true
	topts = opts.trackCallOptions()
	require.NotNil(t, topts.Retry)
	require.Equal(t, retry.AggressiveOptions(), *topts.Retry)
}

func TestParseResumeFlagsRequiresID(t *testing.T) {
	_, err := parseResumeFlags([]string{"-input", `{"answer":1}`})
	require.ErrorContains(t, err, "-id is required")

	opts, err := parseResumeFlags([]string{"-id", " exec-9 "})
	require.NoError(t, err)
	require.Equal(t, "exec-9", opts.ExecutionID)
	require.Equal(t, "adhoc", opts.WorkflowRef)
	require.Equal(t, defaultCommandTimeout, opts.Timeout)
}

func TestPrintBreakerTable(t *testing.T) {
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)

	defer func() {
		os.Stdout = oldStdout
	}()

	os.Stdout = w

	openedAt := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	err = printBreakerTable([]circuit.Snapshot{
		{Endpoint: "remote", Phase: circuit.PhaseClosed, ConsecutiveFailures: 0, TrialBudget: 1},
		{Endpoint: "staging", Phase: circuit.PhaseOpen, ConsecutiveFailures: 5, TrialBudget: 1, OpenedAt: openedAt},
	})
	require.NoError(t, err)

	require.NoError(t, w.Close())
	os.Stdout = oldStdout

	output, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	outStr := string(output)
	require.Contains(t, outStr, "Endpoint")
	require.Contains(t, outStr, "remote")
	require.Contains(t, outStr, "closed")
	require.Contains(t, outStr, "2026-03-14 09:30:00 UTC")
}
