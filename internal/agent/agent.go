package agent

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/stone-age-io/sysinfo/internal/config"
	"github.com/stone-age-io/sysinfo/internal/export"
	"github.com/stone-age-io/sysinfo/internal/inventory"
	natsclient "github.com/stone-age-io/sysinfo/internal/nats"
	"go.uber.org/zap"
)

// publishTimeout bounds the JetStream ack wait for one report
const publishTimeout = 10 * time.Second

// collectFunc performs one full collection
type collectFunc func(ctx context.Context) (*inventory.Report, inventory.Skipped, error)

// Agent collects an inventory on a schedule and hands each report to the
// configured outputs
type Agent struct {
	config  *config.Config
	logger  *zap.Logger
	version string

	collect   collectFunc
	nats      *natsclient.Client
	publish   func(subject string, data []byte) error
	scheduler gocron.Scheduler

	mu          sync.RWMutex
	latest      *inventory.Report
	collectedAt time.Time
	runs        int
	failures    int

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates an agent that collects from the local host
func New(cfg *config.Config, logger *zap.Logger, version string) *Agent {
	ctx, cancel := context.WithCancel(context.Background())
	return &Agent{
		config:  cfg,
		logger:  logger,
		version: version,
		collect: hostCollector(cfg.Inventory, logger),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// hostCollector builds a fresh Collector for every run
func hostCollector(cfg config.InventoryConfig, logger *zap.Logger) collectFunc {
	source := inventory.NewHostSource(logger)
	software := inventory.NewSoftwareInventory(logger, cfg.SubprocessTimeout)
	return func(ctx context.Context) (*inventory.Report, inventory.Skipped, error) {
		c := inventory.NewCollector(logger, source, software, cfg.ProcessLimit)
		report, err := c.Collect(ctx)
		if err != nil {
			return nil, nil, err
		}
		return report, c.Skipped(), nil
	}
}

// Start connects outputs and schedules collection. It does not block.
func (a *Agent) Start() error {
	if a.config.NATS.Enabled {
		client, err := natsclient.NewClient(a.config.NATS, a.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}

		handlers := natsclient.NewCommandHandlers(a.logger, a.config.NATS.SubjectPrefix, a.config.NATS.DeviceID, a.version, a)
		if err := handlers.SubscribeAll(client); err != nil {
			client.Close()
			return fmt.Errorf("failed to subscribe to commands: %w", err)
		}

		a.nats = client
		a.publish = func(subject string, data []byte) error {
			return client.PublishReport(subject, data, publishTimeout)
		}
	}

	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(a.config.Watch.Interval),
		gocron.NewTask(func() {
			if err := a.RunOnce(a.ctx); err != nil {
				a.logger.Error("Scheduled collection failed", zap.Error(err))
			}
		}),
		gocron.WithName("inventory"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule collection: %w", err)
	}

	a.scheduler = s
	s.Start()

	a.logger.Info("Agent running",
		zap.Duration("interval", a.config.Watch.Interval),
		zap.String("report_path", a.config.Output.ReportPath),
		zap.Bool("nats", a.nats != nil),
		zap.String("version", a.version))
	return nil
}

// Run starts the agent and blocks until a shutdown signal
func (a *Agent) Run() error {
	if err := a.Start(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-sigChan:
		a.logger.Info("Received shutdown signal")
	case <-a.ctx.Done():
		a.logger.Info("Context cancelled")
	}

	return a.Shutdown()
}

// Shutdown stops scheduling, waits for a running collection, and drains NATS
func (a *Agent) Shutdown() error {
	a.logger.Info("Shutting down agent")
	a.cancel()

	if a.scheduler != nil {
		if err := a.scheduler.Shutdown(); err != nil {
			a.logger.Error("Error shutting down scheduler", zap.Error(err))
		}
	}

	if a.nats != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.config.NATS.DrainTimeout)
		defer cancel()
		if err := a.nats.Drain(ctx); err != nil {
			a.logger.Error("Error draining NATS", zap.Error(err))
		}
	}

	a.logger.Info("Agent shutdown complete")
	return nil
}

// RunOnce performs one collection and delivers it to every output.
// A failed collection leaves the previous report in place. Output failures
// are logged and the remaining outputs still run; the first one is returned.
func (a *Agent) RunOnce(ctx context.Context) error {
	start := time.Now()

	report, skipped, err := a.collect(ctx)
	if err != nil {
		a.recordRun(false)
		return fmt.Errorf("collection failed: %w", err)
	}

	a.mu.Lock()
	a.latest = report
	a.collectedAt = time.Now()
	a.mu.Unlock()
	a.recordRun(true)

	a.logger.Info("Inventory collected",
		zap.Duration("duration", time.Since(start)),
		zap.Int("programs", len(report.Programs)),
		zap.Int("skipped", skipped.Total()))

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if path := a.config.Output.ReportPath; path != "" {
		err := inventory.Persist(report, path)
		if err != nil {
			a.logger.Error("Failed to persist report", zap.String("path", path), zap.Error(err))
		}
		keep(err)
	}

	if path := a.config.Output.TextfilePath; path != "" {
		err := export.WriteTextfile(path, report, skipped)
		if err != nil {
			a.logger.Error("Failed to write metrics textfile", zap.String("path", path), zap.Error(err))
		}
		keep(err)
	}

	if a.publish != nil {
		subject := natsclient.Subject(a.config.NATS.SubjectPrefix, a.config.NATS.DeviceID, "inventory")
		data, err := inventory.Marshal(report)
		if err == nil {
			err = a.publish(subject, data)
		}
		if err != nil {
			a.logger.Error("Failed to publish report", zap.String("subject", subject), zap.Error(err))
		}
		keep(err)
	}

	return firstErr
}

func (a *Agent) recordRun(ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.runs++
	if !ok {
		a.failures++
	}
}

// Latest returns the most recent successful report
func (a *Agent) Latest() (*inventory.Report, time.Time, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.latest, a.collectedAt, a.latest != nil
}

// Stats returns the number of runs and failed runs so far
func (a *Agent) Stats() (runs, failures int) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.runs, a.failures
}
