package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/flowpulse/flowpulse/config"
	"github.com/flowpulse/flowpulse/internal/bootstrap"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
}

func main() {
	logger := bootstrap.InitLogger(config.LoggingConfig{})

	if len(os.Args) < 2 {
		if err := printUsage(); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}
	logger = bootstrap.InitLogger(cfg.Logging)

	cmdCtx := &commandContext{
		Ctx:    context.Background(),
		Logger: logger,
		Config: cfg,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"trigger": {
			name:        "trigger",
			description: "Fire a workflow webhook and print the execution handle",
			run:         runTrigger,
		},
		"track": {
			name:        "track",
			description: "Stream execution states for one or more execution IDs as JSON lines",
			run:         runTrack,
		},
		"run": {
			name:        "run",
			description: "Trigger a workflow and track its execution to completion",
			run:         runRun,
		},
		"resume": {
			name:        "resume",
			description: "Send resume input to a waiting execution",
			run:         runResume,
		},
		"breakers": {
			name:        "breakers",
			description: "Print circuit breaker snapshots for configured endpoints",
			run:         runBreakers,
		},
	}
}

func printUsage() error {
	if err := writef(os.Stdout, "Usage: flowpulse <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(os.Stdout, "Available commands:\n"); err != nil {
		return err
	}
	for _, c := range commands() {
		if err := writef(os.Stdout, "  %-12s %s\n", c.name, c.description); err != nil {
			return err
		}
	}
	return nil
}

// buildServices wires the container for one command invocation.
func buildServices(cmdCtx *commandContext) (*bootstrap.ServiceContainer, error) {
	container, err := bootstrap.BuildServices(bootstrap.ServiceDeps{
		Config: &cmdCtx.Config,
		Logger: cmdCtx.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build services: %w", err)
	}
	return container, nil
}

func closeServices(cmdCtx *commandContext, container *bootstrap.ServiceContainer) {
	if closeErr := container.Close(); closeErr != nil {
		cmdCtx.Logger.Warn("close services failed", "error", closeErr)
	}
}

// loadPayload resolves an inline JSON argument or a JSON file into a raw
// payload. Both empty means no payload.
func loadPayload(inline, file string) (json.RawMessage, error) {
	if inline != "" && file != "" {
		return nil, errors.New("provide either an inline payload or a payload file, not both")
	}

	var data []byte
	switch {
	case inline != "":
		data = []byte(inline)
	case file != "":
		content, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("read payload file: %w", err)
		}
		data = content
	default:
		return nil, nil
	}

	if !json.Valid(data) {
		return nil, errors.New("payload is not valid JSON")
	}
	return json.RawMessage(data), nil
}

// jsonLineWriter serializes concurrent JSON-line writes from tracking
// goroutines onto one stream.
type jsonLineWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newJSONLineWriter(w io.Writer) *jsonLineWriter {
	return &jsonLineWriter{enc: json.NewEncoder(w)}
}

func (w *jsonLineWriter) Encode(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(v)
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func writeln(w io.Writer, args ...any) error {
	if len(args) == 0 {
		_, err := fmt.Fprintln(w)
		return err
	}
	_, err := fmt.Fprintln(w, args...)
	return err
}
