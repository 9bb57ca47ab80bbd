package worker

import (
	"context"
	"errors"

	"catalog-ingest/internal/broker"
	"catalog-ingest/internal/models"
	"catalog-ingest/internal/service"
	"catalog-ingest/internal/util"

	"go.uber.org/zap"
)

// Controller is the part of the orchestrator the command worker drives
type Controller interface {
	Start(ctx context.Context, opts service.StartOptions) (*models.IngestionRun, error)
	Stop(ctx context.Context) error
}

// CommandWorker applies start/stop commands from the command topic
type CommandWorker struct {
	consumer *broker.Consumer
	handler  *broker.CommandHandler
	ctrl     Controller
	logger   *zap.Logger
}

// NewCommandWorker creates a new command worker
func NewCommandWorker(consumer *broker.Consumer, ctrl Controller) *CommandWorker {
	w := &CommandWorker{
		consumer: consumer,
		handler:  broker.NewCommandHandler(),
		ctrl:     ctrl,
		logger:   util.Named("worker"),
	}
	w.handler.OnStart(w.handleStart)
	w.handler.OnStop(w.handleStop)
	return w
}

// Start starts the worker
func (w *CommandWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting command worker")
	return w.consumer.StartConsuming(ctx, w.handler.HandleMessage)
}

// Stop stops the worker
func (w *CommandWorker) Stop() error {
	w.logger.Info("Stopping command worker")
	return w.consumer.Close()
}

// A duplicate start or stop is expected with at-least-once delivery and is not an error.
func (w *CommandWorker) handleStart(ctx context.Context, cmd *models.IngestionCommand) error {
	run, err := w.ctrl.Start(ctx, service.StartOptions{Categories: cmd.Categories})
	if errors.Is(err, service.ErrAlreadyRunning) {
		w.logger.Info("Start command ignored, run in progress")
		return nil
	}
	if err != nil {
		return err
	}
	w.logger.Info("Run started from command", zap.Int64("run_id", run.ID), zap.Strings("categories", cmd.Categories))
	return nil
}

func (w *CommandWorker) handleStop(ctx context.Context) error {
	err := w.ctrl.Stop(ctx)
	if errors.Is(err, service.ErrNotRunning) {
		w.logger.Info("Stop command ignored, nothing running")
		return nil
	}
	return err
}
