package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/odvcencio/cursorfold/folding"
	cflog "github.com/odvcencio/cursorfold/internal/log"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrInvalidLevel   = errors.New("fold level must be at least 1")
	ErrNoProvider     = errors.New("no folding range provider configured")
)

// RangeProvider fetches the folding ranges of a document. Implementations
// must return ranges sorted by start that form a laminar family.
type RangeProvider interface {
	FoldingRanges(ctx context.Context, uri string) ([]folding.Range, error)
}

// FoldApplier performs fold instructions on a document.
type FoldApplier interface {
	Apply(ctx context.Context, uri string, in Instruction) error
}

// Dispatcher runs commands: it fetches ranges once per invocation, plans,
// and hands each non-empty instruction to the applier in order.
type Dispatcher struct {
	provider RangeProvider
	applier  FoldApplier
	logger   *slog.Logger
	validate bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithValidation makes the dispatcher reject ranges that are not sorted
// and laminar instead of silently misgrouping them.
func WithValidation(enabled bool) Option {
	return func(d *Dispatcher) {
		d.validate = enabled
	}
}

// NewDispatcher creates a dispatcher. Either collaborator may be nil: with
// no provider every request must carry its ranges, with no applier Execute
// only plans.
func NewDispatcher(provider RangeProvider, applier FoldApplier, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		provider: provider,
		applier:  applier,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Execute runs the command id against req and returns the plan it applied.
// A command with nothing to do returns an empty plan and no error. When the
// applier fails, the instructions applied before the failure are returned
// along with the error.
func (d *Dispatcher) Execute(ctx context.Context, id string, req Request) (Plan, error) {
	cmd, ok := Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, id)
	}
	start := time.Now()
	plan, err := d.execute(ctx, cmd, req)
	elapsed := time.Since(start)
	recordCommand(cmd.ShortID(), elapsed, plan, err)
	if err != nil {
		d.logger.Warn("command failed",
			cflog.CommandKey, cmd.ID,
			cflog.URIKey, req.URI,
			"applied", len(plan),
			"error", err,
		)
		return plan, err
	}
	d.logger.Debug("command executed",
		cflog.CommandKey, cmd.ID,
		cflog.URIKey, req.URI,
		cflog.DurationKey, elapsed.Milliseconds(),
		"instructions", len(plan),
		"targets", len(plan.Lines()),
	)
	return plan, nil
}

func (d *Dispatcher) execute(ctx context.Context, cmd Command, req Request) (Plan, error) {
	if cmd.NeedsRanges {
		ranges, err := d.ranges(ctx, req)
		if err != nil {
			return nil, err
		}
		req.Ranges = ranges
	}

	plan, err := cmd.Plan(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cmd.ShortID(), err)
	}
	if d.applier == nil {
		return plan, nil
	}
	for i, in := range plan {
		if in.Empty() {
			continue
		}
		if err := d.applier.Apply(ctx, req.URI, in); err != nil {
			return plan[:i], fmt.Errorf("apply %s: %w", in.Action, err)
		}
	}
	return plan, nil
}

func (d *Dispatcher) ranges(ctx context.Context, req Request) ([]folding.Range, error) {
	ranges := req.Ranges
	if ranges == nil {
		if d.provider == nil {
			return nil, ErrNoProvider
		}
		start := time.Now()
		fetched, err := d.provider.FoldingRanges(ctx, req.URI)
		recordFetch(time.Since(start), err)
		if err != nil {
			return nil, fmt.Errorf("fetch folding ranges for %s: %w", req.URI, err)
		}
		ranges = fetched
	}
	if d.validate {
		if err := folding.Validate(ranges); err != nil {
			return nil, err
		}
	}
	return ranges, nil
}
