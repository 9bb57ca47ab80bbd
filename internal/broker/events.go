package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"catalog-ingest/internal/models"

	"github.com/segmentio/kafka-go"
)

func runKey(runID int64) string {
	return fmt.Sprintf("run-%d", runID)
}

// EventPublisher publishes ingestion events on the catalog events topic
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishRunStarted publishes RUN_STARTED
func (ep *EventPublisher) PublishRunStarted(ctx context.Context, event *models.RunStartedEvent) error {
	return ep.producer.PublishEvent(ctx, runKey(event.RunID), event)
}

// PublishRunFinished publishes RUN_FINISHED
func (ep *EventPublisher) PublishRunFinished(ctx context.Context, event *models.RunFinishedEvent) error {
	return ep.producer.PublishEvent(ctx, runKey(event.RunID), event)
}

// PublishProductIngested publishes PRODUCT_ADDED or PRODUCT_UPDATED
func (ep *EventPublisher) PublishProductIngested(ctx context.Context, event *models.ProductIngestedEvent) error {
	return ep.producer.PublishEvent(ctx, runKey(event.RunID), event)
}

// CommandHandler routes ingestion commands to callbacks
type CommandHandler struct {
	onStart func(context.Context, *models.IngestionCommand) error
	onStop  func(context.Context) error
}

// NewCommandHandler creates a new command handler
func NewCommandHandler() *CommandHandler {
	return &CommandHandler{}
}

// OnStart registers the start callback
func (h *CommandHandler) OnStart(handler func(context.Context, *models.IngestionCommand) error) {
	h.onStart = handler
}

// OnStop registers the stop callback
func (h *CommandHandler) OnStop(handler func(context.Context) error) {
	h.onStop = handler
}

// HandleMessage decodes a command and dispatches it
func (h *CommandHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var cmd models.IngestionCommand
	if err := json.Unmarshal(msg.Value, &cmd); err != nil {
		return fmt.Errorf("failed to unmarshal command: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(cmd.Command)) {
	case models.CommandStart:
		if h.onStart != nil {
			return h.onStart(ctx, &cmd)
		}
	case models.CommandStop:
		if h.onStop != nil {
			return h.onStop(ctx)
		}
	default:
		return fmt.Errorf("unknown command %q", cmd.Command)
	}
	return nil
}
