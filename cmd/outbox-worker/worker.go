package main

import (
	"context"
	"errors"
	"time"

	"github.com/dmtri/stylehub-backend/pkg/config"
	"github.com/dmtri/stylehub-backend/pkg/db/models"
	"github.com/dmtri/stylehub-backend/pkg/enums"
	"github.com/dmtri/stylehub-backend/pkg/logger"
	"github.com/dmtri/stylehub-backend/pkg/outbox"
)

// Consumer handles one class of outbox events.
type Consumer interface {
	Handles(eventType enums.OutboxEventType) bool
	Consume(ctx context.Context, row models.OutboxEvent) error
}

// Worker polls the outbox table and dispatches pending events to the
// registered consumers. Failed events are retried until they hit the
// attempt cap and park as failed.
type Worker struct {
	cfg       config.OutboxConfig
	repo      *outbox.Repository
	consumers []Consumer
	logg      *logger.Logger
}

type WorkerParams struct {
	Config    config.OutboxConfig
	Repo      *outbox.Repository
	Consumers []Consumer
	Logger    *logger.Logger
}

func NewWorker(params WorkerParams) (*Worker, error) {
	if params.Repo == nil {
		return nil, errors.New("outbox repository required")
	}
	if len(params.Consumers) == 0 {
		return nil, errors.New("at least one consumer required")
	}
	if params.Config.BatchSize <= 0 {
		params.Config.BatchSize = 50
	}
	if params.Config.PollIntervalMS <= 0 {
		params.Config.PollIntervalMS = 500
	}
	if params.Config.MaxAttempts <= 0 {
		params.Config.MaxAttempts = 10
	}
	return &Worker{
		cfg:       params.Config,
		repo:      params.Repo,
		consumers: params.Consumers,
		logg:      params.Logger,
	}, nil
}

// Run polls until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Duration(w.cfg.PollIntervalMS) * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.drain(ctx); err != nil && w.logg != nil {
				w.logg.Error(ctx, "outbox drain failed", err)
			}
		}
	}
}

func (w *Worker) drain(ctx context.Context) error {
	rows, err := w.repo.FetchPending(ctx, w.cfg.BatchSize)
	if err != nil {
		return err
	}
	for _, row := range rows {
		w.dispatch(ctx, row)
	}
	return nil
}

func (w *Worker) dispatch(ctx context.Context, row models.OutboxEvent) {
	logCtx := ctx
	if w.logg != nil {
		logCtx = w.logg.WithFields(ctx, map[string]any{
			"event_id":   row.ID.String(),
			"event_type": row.EventType,
			"attempts":   row.Attempts,
		})
	}

	consumer := w.consumerFor(row.EventType)
	if consumer == nil {
		// Nothing handles this type; publish it so it never poisons the queue.
		if w.logg != nil {
			w.logg.Warn(logCtx, "no consumer for outbox event")
		}
		if err := w.repo.MarkPublished(ctx, row.ID); err != nil && w.logg != nil {
			w.logg.Error(logCtx, "marking unhandled event published", err)
		}
		return
	}

	if err := consumer.Consume(ctx, row); err != nil {
		if w.logg != nil {
			w.logg.Error(logCtx, "outbox event failed", err)
		}
		if err := w.repo.MarkFailed(ctx, row.ID, w.cfg.MaxAttempts); err != nil && w.logg != nil {
			w.logg.Error(logCtx, "marking event failed", err)
		}
		return
	}

	if err := w.repo.MarkPublished(ctx, row.ID); err != nil {
		if w.logg != nil {
			w.logg.Error(logCtx, "marking event published", err)
		}
		return
	}
	if w.logg != nil {
		w.logg.Info(logCtx, "outbox event dispatched")
	}
}

func (w *Worker) consumerFor(eventType enums.OutboxEventType) Consumer {
	for _, c := range w.consumers {
		if c.Handles(eventType) {
			return c
		}
	}
	return nil
}
