package inventory

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	// ErrNotCollected is returned when a report is requested before Collect succeeded
	ErrNotCollected = errors.New("inventory not collected")

	// ErrAlreadyCollected is returned when Collect is called twice on one collector
	ErrAlreadyCollected = errors.New("inventory already collected")
)

// Collector builds a single Report.
// It starts empty, becomes collected after one successful Collect, and is
// read-only from then on.
type Collector struct {
	logger       *zap.Logger
	source       Source
	software     SoftwareInventory
	processLimit int

	onStep func(category string, skipped int)

	report  *Report
	skipped Skipped
}

// NewCollector creates an empty collector.
// processLimit outside 1..DefaultProcessLimit selects DefaultProcessLimit.
func NewCollector(logger *zap.Logger, source Source, software SoftwareInventory, processLimit int) *Collector {
	if processLimit <= 0 || processLimit > DefaultProcessLimit {
		processLimit = DefaultProcessLimit
	}
	return &Collector{
		logger:       logger,
		source:       source,
		software:     software,
		processLimit: processLimit,
	}
}

// OnStep registers fn to be called after each category step succeeds
func (c *Collector) OnStep(fn func(category string, skipped int)) {
	c.onStep = fn
}

type step struct {
	category string
	run      func(ctx context.Context, r *Report) (int, error)
}

// Collect runs every category step in order: system, hardware, programs,
// network, processes. Steps tolerate failures of individual items, but an
// error from a step aborts the whole collection and leaves the collector
// empty.
func (c *Collector) Collect(ctx context.Context) (*Report, error) {
	if c.report != nil {
		return nil, ErrAlreadyCollected
	}

	report := &Report{}
	skipped := Skipped{}

	for _, s := range c.steps() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := s.run(ctx, report)
		if err != nil {
			c.logger.Error("Inventory step failed",
				zap.String("category", s.category),
				zap.Error(err))
			return nil, fmt.Errorf("collect %s: %w", s.category, err)
		}
		skipped[s.category] = n

		c.logger.Info("Collected inventory category",
			zap.String("category", s.category),
			zap.Int("skipped", n))
		if c.onStep != nil {
			c.onStep(s.category, n)
		}
	}

	c.report = report
	c.skipped = skipped
	return report, nil
}

func (c *Collector) steps() []step {
	return []step{
		{CategorySystem, func(ctx context.Context, r *Report) (int, error) {
			info, err := c.source.System(ctx)
			r.System = info
			return 0, err
		}},
		{CategoryHardware, func(ctx context.Context, r *Report) (int, error) {
			info, n, err := c.source.Hardware(ctx)
			r.Hardware = info
			return n, err
		}},
		{CategoryPrograms, func(ctx context.Context, r *Report) (int, error) {
			programs, n, err := c.software.Programs(ctx)
			if programs == nil {
				programs = []Program{}
			}
			r.Programs = programs
			return n, err
		}},
		{CategoryNetwork, func(ctx context.Context, r *Report) (int, error) {
			info, err := c.source.Network(ctx)
			r.Network = info
			return 0, err
		}},
		{CategoryProcesses, func(ctx context.Context, r *Report) (int, error) {
			samples, n, err := c.source.Processes(ctx)
			r.Processes = topProcesses(samples, c.processLimit)
			return n, err
		}},
	}
}

// Report returns the collected report or ErrNotCollected
func (c *Collector) Report() (*Report, error) {
	if c.report == nil {
		return nil, ErrNotCollected
	}
	return c.report, nil
}

// Skipped returns per-category counts of items dropped during collection.
// It is nil until Collect succeeds.
func (c *Collector) Skipped() Skipped {
	return c.skipped
}

// Collected reports whether Collect has succeeded
func (c *Collector) Collected() bool {
	return c.report != nil
}
