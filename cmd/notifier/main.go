// cmd/notifier/main.go
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"shop-notifier/internal/changefeed"
	"shop-notifier/internal/common/camunda"
	"shop-notifier/internal/common/config"
	"shop-notifier/internal/common/database"
	"shop-notifier/internal/common/logger"
	"shop-notifier/internal/common/mail"
	"shop-notifier/internal/common/observability"
	approvalnotify "shop-notifier/internal/workers/shop/approval-notify"
)

// newSpanExporter returns nil when tracing is off.
func newSpanExporter(cfg config.TracingConfig) (sdktrace.SpanExporter, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	var w io.Writer = os.Stdout
	if cfg.Output != "" && cfg.Output != "stdout" {
		f, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open trace output %s: %w", cfg.Output, err)
		}
		w = f
	}
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, err
	}
	return exporter, nil
}

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(ctx context.Context, operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "console")
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.NewWithOptions(logger.Options{
		Level:   cfg.Logging.Level,
		Format:  cfg.Logging.Format,
		Output:  cfg.Logging.Output,
		Service: cfg.App.Name,
	})
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting shop notifier...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.String("collection", cfg.ChangeFeed.Collection),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	spanExporter, err := newSpanExporter(cfg.Tracing)
	if err != nil {
		zapLog.Warn("span exporter unavailable, tracing disabled", zap.Error(err))
	}
	obs, err := observability.New(cfg.App.Name, nil, spanExporter)
	if err != nil {
		zapLog.Warn("otel exporter unavailable, continuing without it", zap.Error(err))
	}
	defer obs.Shutdown()

	// --- Mail transport ---
	sender, err := mail.NewSender(ctx, cfg.Mail, log)
	if err != nil {
		zapLog.Fatal("mail transport init failed", zap.Error(err))
	}

	notifierCfg := approvalnotify.ConfigFromAppConfig(cfg, nil)
	notifier, err := approvalnotify.NewApprovalNotifier(approvalnotify.ServiceDependencies{
		Sender:        sender,
		Logger:        log,
		Observability: obs,
	}, notifierCfg)
	if err != nil {
		zapLog.Fatal("notifier init failed", zap.Error(err))
	}
	zapLog.Info("Approval notifier ready",
		zap.String("provider", sender.Name()),
		zap.String("from", cfg.Mail.FromAddress),
	)

	var sources []changefeed.Source
	readyChecks := map[string]changefeed.ReadyCheck{}

	// --- Redis stream feed ---
	if cfg.ChangeFeed.Redis.Enabled {
		var rdb *database.RedisClient
		err = retryWithBackoff(ctx, func() error {
			var err error
			rdb, err = database.NewRedis(cfg.Database.Redis)
			if err != nil {
				return err
			}
			return rdb.Ping(ctx)
		}, 10, 2*time.Second, zapLog, "Redis connection")
		if err != nil {
			zapLog.Fatal("redis failed after retries", zap.Error(err))
		}
		defer rdb.Close()
		zapLog.Info("Redis connected successfully")

		rcfg := cfg.ChangeFeed.Redis
		sources = append(sources, changefeed.NewRedisStreamSource(rdb, changefeed.RedisStreamOptions{
			Stream:       rcfg.Stream,
			Group:        rcfg.Group,
			Consumer:     rcfg.Consumer,
			BatchSize:    int64(rcfg.BatchSize),
			Block:        config.GetDuration(rcfg.Block),
			EventTimeout: config.GetDuration(cfg.ChangeFeed.EventTimeout),
		}, log))
		readyChecks["redis"] = rdb.Ping
	}

	// --- Zeebe job feed ---
	if cfg.ChangeFeed.Zeebe.Enabled {
		zeebeClient, err := camunda.Connect(ctx, cfg.Camunda, camunda.DefaultRetryConfig, log)
		if err != nil {
			zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
		}
		defer zeebeClient.Close()
		zapLog.Info("Zeebe client connected successfully")

		handler, err := approvalnotify.NewHandler(approvalnotify.HandlerOptions{
			CustomConfig: notifierCfg,
			Notifier:     notifier,
			Logger:       log,
		})
		if err != nil {
			zapLog.Fatal("failed to create job handler", zap.Error(err))
		}
		jobWorker := camunda.StartWorker(zeebeClient, camunda.WorkerOptions{
			JobType:       notifierCfg.JobType,
			Name:          cfg.App.Name,
			MaxJobsActive: notifierCfg.MaxJobsActive,
			Timeout:       notifierCfg.Timeout,
		}, handler.Handle, log)
		defer jobWorker.Close()

		readyChecks["zeebe"] = func(ctx context.Context) error {
			return camunda.HealthCheck(ctx, zeebeClient)
		}
	}

	// --- Webhook, health & metrics server ---
	sources = append(sources, changefeed.NewWebhookSource(changefeed.WebhookOptions{
		Address:      cfg.Server.Address,
		Collection:   cfg.ChangeFeed.Collection,
		AcceptEvents: cfg.ChangeFeed.HTTP.Enabled,
		EventTimeout: config.GetDuration(cfg.ChangeFeed.EventTimeout),
		ReadyChecks:  readyChecks,
	}, log))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, src := range sources {
		wg.Add(1)
		go func(src changefeed.Source) {
			defer wg.Done()
			if err := src.Run(runCtx, notifier); err != nil {
				zapLog.Error("change feed stopped", zap.String("source", src.Name()), zap.Error(err))
				// one dead feed takes the process down so the orchestrator restarts it
				cancel()
			}
		}(src)
	}
	zapLog.Info("All change feeds started", zap.Int("sources", len(sources)))

	<-runCtx.Done()
	zapLog.Info("Shutdown signal received, stopping change feeds...")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		zapLog.Warn("change feeds did not stop within 30s")
	}

	if ctx.Err() == nil {
		// a source failed rather than a signal arriving
		zapLog.Error("Shop notifier stopped after a change feed failure")
		_ = zapLog.Sync()
		os.Exit(1)
	}
	zapLog.Info("Shop notifier stopped gracefully")
}
