package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flowpulse/flowpulse/config"
	"github.com/flowpulse/flowpulse/internal/circuit"
	"github.com/flowpulse/flowpulse/internal/core"
	"github.com/flowpulse/flowpulse/internal/data"
	"github.com/flowpulse/flowpulse/internal/observability/metrics"
	"github.com/flowpulse/flowpulse/internal/observability/statsd"
	"github.com/flowpulse/flowpulse/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Trigger       *service.TriggerService
	Tracker       *service.TrackerService
	Resumer       core.ExecutionResumer
	Breakers      *circuit.Registry
	Observability ObservabilityContainer

	redisClient redis.UniversalClient
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink   *statsd.Client
	MetricsConfig config.ObservabilityMetricsConfig
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config *config.AppConfig
	Logger *slog.Logger
}

// BuildServices wires configuration into the trigger and tracker services.
// The container owns the network clients it creates; callers release them
// with Close.
func BuildServices(deps ServiceDeps) (*ServiceContainer, error) {
	if deps.Config == nil {
		return nil, errors.New("service config is required")
	}
	cfg := deps.Config

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	observability := buildObservability(logger, cfg.Observability)

	authClient, err := data.NewAuthHTTPClient(
		&http.Client{Timeout: cfg.Remote.HTTPTimeout},
		cfg.Remote.AuthConfig(),
	)
	if err != nil {
		return nil, fmt.Errorf("build auth http client: %w", err)
	}

	triggerRepo, err := data.NewWebhookTriggerRepo(data.WebhookTriggerRepoOptions{
		BaseURL:         cfg.Remote.WebhookBaseURL,
		WebhookRoot:     cfg.Remote.WebhookRoot,
		ExecutionIDExpr: cfg.Remote.IDExpression,
		ResumeURLExpr:   cfg.Remote.ResumeExpression,
		MaxBodyBytes:    cfg.Remote.MaxBodyBytes,
		HTTPClient:      authClient,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build webhook trigger repo: %w", err)
	}

	executionRepo, err := data.NewExecutionAPIRepo(data.ExecutionAPIRepoOptions{
		BaseURL:          cfg.Remote.APIBaseURL,
		StatusExpr:       cfg.Remote.StatusExpression,
		ErrorMessageExpr: cfg.Remote.ErrorExpression,
		StatusKinds:      cfg.Remote.StatusKindOverrides(),
		MaxBodyBytes:     cfg.Remote.MaxBodyBytes,
		HTTPClient:       authClient,
		Logger:           logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build execution api repo: %w", err)
	}

	breakers, err := circuit.NewRegistry(circuit.RegistryOptions{
		Breaker: cfg.Tracker.BreakerOptions(),
		Logger:  logger,
		OnPhaseChange: func(endpoint string, from, to circuit.Phase) {
			metrics.EmitBreakerTransition(observability.MetricsSink, endpoint, string(from), string(to))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build circuit registry: %w", err)
	}

	var (
		cache       core.CacheRepository
		redisClient redis.UniversalClient
	)
	if cfg.Dedupe.IsEnabled() {
		client, redisErr := ConnectDedupeRedis(cfg.Dedupe, logger)
		if redisErr != nil {
			logger.Error("failed to connect dedupe redis; triggers will not be deduplicated",
				"error", redisErr)
		} else {
			redisClient = client
			cache = data.NewRedisCacheRepo(client)
		}
	}

	triggerSvc, err := service.NewTriggerService(service.TriggerServiceOptions{
		Trigger: triggerRepo,
		Cache:   cache,
		Config:  service.TriggerDedupeConfig{TTL: cfg.Dedupe.TTL},
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build trigger service: %w", err)
	}

	trackerCfg := service.TrackerConfig{
		Endpoint: cfg.Tracker.Endpoint,
		Retry:    cfg.Tracker.RetryOptions(),
		Pacing:   cfg.Tracker.PacingOptions(),
		Deadline: cfg.Tracker.Deadline,
	}
	trackerSvc, err := service.NewTrackerService(service.TrackerServiceOptions{
		Fetcher:  executionRepo,
		Breakers: breakers,
		Config:   &trackerCfg,
		Logger:   logger,
		Metrics:  observability.MetricsSink,
	})
	if err != nil {
		return nil, fmt.Errorf("build tracker service: %w", err)
	}

	return &ServiceContainer{
		Trigger:       triggerSvc,
		Tracker:       trackerSvc,
		Resumer:       executionRepo,
		Breakers:      breakers,
		Observability: observability,
		redisClient:   redisClient,
	}, nil
}

// Close releases network clients owned by the container.
func (c *ServiceContainer) Close() error {
	if c == nil {
		return nil
	}

	var errs []error
	if c.Observability.MetricsSink != nil {
		if err := c.Observability.MetricsSink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close statsd client: %w", err))
		}
	}
	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis client: %w", err))
		}
	}
	return errors.Join(errs...)
}

// buildObservability configures the metrics sink. A sink that fails to dial
// is logged and skipped; metrics are not worth failing startup over.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	var metricsSink *statsd.Client
	if cfg.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Options{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  "flowpulse",
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			metricsSink = client
		}
	}

	return ObservabilityContainer{
		MetricsSink:   metricsSink,
		MetricsConfig: cfg.Metrics,
	}
}

// ConnectDedupeRedis establishes a connection to the trigger dedupe Redis.
//
//nolint:ireturn // returning redis.UniversalClient keeps client selection flexible.
func ConnectDedupeRedis(cfg config.DedupeConfig, logger *slog.Logger) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	// Verify the connection through the same port the trigger service uses.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if pingErr := data.NewRedisCacheRepo(client).Health(ctx); pingErr != nil {
		if closeErr := client.Close(); closeErr != nil {
			pingErr = errors.Join(pingErr, fmt.Errorf("close redis client: %w", closeErr))
		}
		return nil, fmt.Errorf("ping redis: %w", pingErr)
	}

	if logger != nil {
		logger.Info("dedupe redis connected", "addr", cfg.RedisAddr)
	}

	return client, nil
}
