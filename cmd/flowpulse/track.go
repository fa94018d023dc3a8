package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/flowpulse/flowpulse/internal/domain/model"
	"github.com/flowpulse/flowpulse/internal/domain/retry"
	"github.com/flowpulse/flowpulse/internal/service"
)

type trackOptions struct {
	ExecutionIDs []string
	WorkflowRef  string
	Deadline     time.Duration
	Fast         bool
}

// trackCallOptions maps the command flags onto per-call tracking options.
func (o trackOptions) trackCallOptions() service.TrackOptions {
	topts := service.TrackOptions{Deadline: o.Deadline}
	if o.Fast {
		profile := retry.AggressiveOptions()
		topts.Retry = &profile
	}
	return topts
}

func runTrack(cmdCtx *commandContext, args []string) error {
	opts, err := parseTrackFlags(args)
	if err != nil {
		return err
	}

	container, err := buildServices(cmdCtx)
	if err != nil {
		return err
	}
	defer closeServices(cmdCtx, container)

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := newJSONLineWriter(os.Stdout)
	topts := opts.trackCallOptions()
	g, gctx := errgroup.WithContext(ctx)
	for _, id := range opts.ExecutionIDs {
		handle := model.ExecutionHandle{
			ExecutionID: id,
			WorkflowRef: opts.WorkflowRef,
			TriggeredAt: time.Now(),
		}
		g.Go(func() error {
			return trackExecution(gctx, container.Tracker, handle, topts, out)
		})
	}
	return g.Wait()
}

func runRun(cmdCtx *commandContext, args []string) error {
	opts, err := parseTriggerFlags("run", args)
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

	ctx, stop := signal.NotifyContext(cmdCtx.Ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	triggerCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	handle, err := container.Trigger.Trigger(triggerCtx, params)
	cancel()
	if err != nil {
		return fmt.Errorf("trigger workflow: %w", err)
	}

	out := newJSONLineWriter(os.Stdout)
	if err := out.Encode(handle); err != nil {
		return fmt.Errorf("write execution handle: %w", err)
	}
	if handle.Synthesized {
		cmdCtx.Logger.Warn("remote did not echo an execution id; tracking would poll a placeholder, stopping here",
			"execution_id", handle.ExecutionID,
			"webhook_path", params.WebhookPath,
		)
		return nil
	}

	return trackExecution(ctx, container.Tracker, handle, service.TrackOptions{}, out)
}

// trackExecution streams one execution's states to out until the stream
// completes. Cancellation of ctx is not an error from the stream's point of
// view, but the command still reports it so the shell sees the interruption.
func trackExecution(
	ctx context.Context,
	tracker *service.TrackerService,
	handle model.ExecutionHandle,
	topts service.TrackOptions,
	out *jsonLineWriter,
) error {
	stream, err := tracker.Track(ctx, handle, topts)
	if err != nil {
		return fmt.Errorf("track execution %s: %w", handle.ExecutionID, err)
	}
	defer stream.Cancel()

	for {
		state, err := stream.Next(ctx)
		switch {
		case err == nil:
			if encErr := out.Encode(state); encErr != nil {
				return fmt.Errorf("write execution state: %w", encErr)
			}
		case errors.Is(err, service.ErrStreamDone):
			return nil
		case errors.Is(err, service.ErrStreamCanceled):
			return ctx.Err()
		default:
			return fmt.Errorf("execution %s: %w", handle.ExecutionID, err)
		}
	}
}

func parseTrackFlags(args []string) (trackOptions, error) {
	fs := flag.NewFlagSet("track", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts trackOptions
	fs.StringVar(&opts.WorkflowRef, "workflow-ref", "adhoc", "Workflow reference recorded on the handles")
	fs.DurationVar(&opts.Deadline, "deadline", 0, "Per-execution tracking deadline; 0 uses the configured default")
	fs.BoolVar(&opts.Fast, "fast", false, "Use the aggressive retry profile for short-lived workflows")

	if err := fs.Parse(args); err != nil {
		return trackOptions{}, err
	}

	for _, arg := range fs.Args() {
		if id := strings.TrimSpace(arg); id != "" {
			opts.ExecutionIDs = append(opts.ExecutionIDs, id)
		}
	}
	if len(opts.ExecutionIDs) == 0 {
		return trackOptions{}, errors.New("at least one execution ID argument is required")
	}
	if opts.Deadline < 0 {
		return trackOptions{}, errors.New("-deadline must be >= 0")
	}

	return opts, nil
}
