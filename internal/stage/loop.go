package stage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"foundry/internal/logging"
	"foundry/internal/services"
)

// Handler describes the contract the poll loop needs from a stage: claim at
// most one work item, process it, and finalize its queue status. RunOnce
// reports whether an item was handled so the loop can drain a backlog without
// waiting out the poll interval.
type Handler interface {
	Name() string
	RunOnce(ctx context.Context) (bool, error)
}

// Loop drives a stage handler on a fixed poll interval. Handler errors and
// panics are logged and absorbed: the loop only exits when its context is
// cancelled.
type Loop struct {
	handler  Handler
	interval time.Duration
	logger   *slog.Logger
}

// NewLoop constructs a poll loop for the handler.
func NewLoop(handler Handler, interval time.Duration, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Loop{handler: handler, interval: interval, logger: logger}
}

// Run polls until the context is cancelled. A handled item triggers an
// immediate re-poll; an idle queue or a failure waits out the poll interval.
func (l *Loop) Run(ctx context.Context) error {
	logger := l.logger.With(logging.String(logging.FieldStage, l.handler.Name()))
	logger.Info("stage loop started", logging.Duration("poll_interval", l.interval))

	for {
		select {
		case <-ctx.Done():
			logger.Info("stage loop stopped")
			return ctx.Err()
		default:
		}

		handled, err := l.runOnce(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				logger.Debug("stage interrupted by shutdown")
				continue
			}
			logger.Error("stage iteration failed", logging.Error(err))
			l.waitOrShutdown(ctx)
			continue
		}
		if handled {
			continue
		}
		l.waitOrShutdown(ctx)
	}
}

// runOnce invokes the handler with panic containment. A panicking handler
// must not take down the stage process; the supervisor only restarts on
// process death, so a recurring panic would otherwise stall the pipeline
// silently.
func (l *Loop) runOnce(ctx context.Context) (handled bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			handled = false
			err = fmt.Errorf("stage %s panicked: %v", l.handler.Name(), r)
		}
	}()
	return l.handler.RunOnce(services.WithStage(ctx, l.handler.Name()))
}

func (l *Loop) waitOrShutdown(ctx context.Context) {
	timer := time.NewTimer(l.interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
