package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/flowpulse/flowpulse/internal/core"
	"github.com/flowpulse/flowpulse/internal/domain/model"
	"github.com/flowpulse/flowpulse/internal/domain/workflow"
)

const defaultCommandTimeout = 2 * time.Minute

type triggerOptions struct {
	Path           string
	WorkflowFile   string
	Payload        string
	PayloadFile    string
	IdempotencyKey string
	Refire         bool
	Timeout        time.Duration
}

type resumeOptions struct {
	ExecutionID string
	WorkflowRef string
	ResumeURL   string
	Input       string
	InputFile   string
	Timeout     time.Duration
}

func runTrigger(cmdCtx *commandContext, args []string) error {
	opts, err := parseTriggerFlags("trigger", args)
	if err != nil {
		return err
	}

	params, err := triggerParams(opts)
	if err != nil {
		return err
	}

	container, err := buildServices(cmdCtx)
	if err != nil {
		return err
	}
	defer closeServices(cmdCtx, container)

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	if opts.Refire {
		removed, err := container.Trigger.Forget(ctx, opts.IdempotencyKey)
		if err != nil {
			return err
		}
		if !removed {
			cmdCtx.Logger.Info("no stored receipt to drop", "idempotency_key", opts.IdempotencyKey)
		}
	}

	handle, err := container.Trigger.Trigger(ctx, params)
	if err != nil {
		return fmt.Errorf("trigger %s: %w", params.WebhookPath, err)
	}

	return json.NewEncoder(os.Stdout).Encode(handle)
}

func runResume(cmdCtx *commandContext, args []string) error {
	opts, err := parseResumeFlags(args)
	if err != nil {
		return err
	}

	input, err := loadPayload(opts.Input, opts.InputFile)
	if err != nil {
		return err
	}

	container, err := buildServices(cmdCtx)
	if err != nil {
		return err
	}
	defer closeServices(cmdCtx, container)

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, opts.Timeout)
	defer cancel()

	handle := model.ExecutionHandle{
		ExecutionID: opts.ExecutionID,
		WorkflowRef: opts.WorkflowRef,
		TriggeredAt: time.Now(),
		ResumeURL:   opts.ResumeURL,
	}
	if err := container.Resumer.Resume(ctx, handle, input); err != nil {
		return fmt.Errorf("resume execution %s: %w", opts.ExecutionID, err)
	}

	cmdCtx.Logger.Info("execution resumed", "execution_id", opts.ExecutionID)
	return nil
}

func parseTriggerFlags(name string, args []string) (triggerOptions, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts triggerOptions
	fs.StringVar(&opts.Path, "path", "", "Webhook path of the workflow to trigger")
	fs.StringVar(&opts.WorkflowFile, "workflow", "", "Workflow definition JSON file; its webhook path is used")
	fs.StringVar(&opts.Payload, "payload", "", "Inline JSON payload for the trigger")
	fs.StringVar(&opts.PayloadFile, "payload-file", "", "File containing the JSON payload")
	fs.StringVar(&opts.IdempotencyKey, "idempotency-key", "", "Key for trigger deduplication")
	fs.BoolVar(&opts.Refire, "refire", false, "Drop any stored receipt for the idempotency key before triggering")
	fs.DurationVar(&opts.Timeout, "timeout", defaultCommandTimeout, "Overall command timeout")

	if err := fs.Parse(args); err != nil {
		return triggerOptions{}, err
	}

	if err := validateTriggerOptions(&opts); err != nil {
		return triggerOptions{}, err
	}

	return opts, nil
}

func validateTriggerOptions(opts *triggerOptions) error {
	opts.Path = strings.TrimSpace(opts.Path)
	opts.WorkflowFile = strings.TrimSpace(opts.WorkflowFile)

	switch {
	case opts.Path == "" && opts.WorkflowFile == "":
		return errors.New("one of -path or -workflow is required")
	case opts.Path != "" && opts.WorkflowFile != "":
		return errors.New("provide either -path or -workflow, not both")
	}
	if opts.Refire && strings.TrimSpace(opts.IdempotencyKey) == "" {
		return errors.New("-refire requires -idempotency-key")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultCommandTimeout
	}
	return nil
}

// triggerParams resolves the webhook path (directly or from a workflow
// definition file) and the payload into trigger parameters.
func triggerParams(opts triggerOptions) (core.TriggerParams, error) {
	path := opts.Path
	if opts.WorkflowFile != "" {
		resolved, err := webhookPathFromFile(opts.WorkflowFile)
		if err != nil {
			return core.TriggerParams{}, err
		}
		path = resolved
	}

	payload, err := loadPayload(opts.Payload, opts.PayloadFile)
	if err != nil {
		return core.TriggerParams{}, err
	}

	return core.TriggerParams{
		WebhookPath:    path,
		Payload:        payload,
		IdempotencyKey: opts.IdempotencyKey,
	}, nil
}

func webhookPathFromFile(file string) (string, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("read workflow file: %w", err)
	}

	var def workflow.Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return "", fmt.Errorf("parse workflow definition: %w", err)
	}
	if err := def.Validate(); err != nil {
		return "", fmt.Errorf("invalid workflow definition: %w", err)
	}

	path, err := def.WebhookPath()
	if err != nil {
		return "", fmt.Errorf("resolve webhook path: %w", err)
	}
	return path, nil
}

func parseResumeFlags(args []string) (resumeOptions, error) {
	fs := flag.NewFlagSet("resume", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts resumeOptions
	fs.StringVar(&opts.ExecutionID, "id", "", "Execution ID to resume (required)")
	fs.StringVar(&opts.WorkflowRef, "workflow-ref", "adhoc", "Workflow reference recorded on the handle")
	fs.StringVar(&opts.ResumeURL, "resume-url", "", "Resume URL override from the trigger response")
	fs.StringVar(&opts.Input, "input", "", "Inline JSON input for the waiting execution")
	fs.StringVar(&opts.InputFile, "input-file", "", "File containing the JSON input")
	fs.DurationVar(&opts.Timeout, "timeout", defaultCommandTimeout, "Overall command timeout")

	if err := fs.Parse(args); err != nil {
		return resumeOptions{}, err
	}

	opts.ExecutionID = strings.TrimSpace(opts.ExecutionID)
	if opts.ExecutionID == "" {
		return resumeOptions{}, errors.New("-id is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultCommandTimeout
	}

	return opts, nil
}
