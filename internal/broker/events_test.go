package broker

import (
	"context"
	"testing"

	"catalog-ingest/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandHandlerDispatch(t *testing.T) {
	h := NewCommandHandler()

	var started *models.IngestionCommand
	stopped := 0
	h.OnStart(func(ctx context.Context, cmd *models.IngestionCommand) error {
		started = cmd
		return nil
	})
	h.OnStop(func(ctx context.Context) error {
		stopped++
		return nil
	})

	err := h.HandleMessage(context.Background(), kafka.Message{
		Value: []byte(`{"command":"start","categories":["beds","sofas"]}`),
	})
	require.NoError(t, err)
	require.NotNil(t, started)
	assert.Equal(t, []string{"beds", "sofas"}, started.Categories)

	require.NoError(t, h.HandleMessage(context.Background(), kafka.Message{Value: []byte(`{"command":" STOP "}`)}))
	assert.Equal(t, 1, stopped)
}

func TestCommandHandlerRejectsGarbage(t *testing.T) {
	h := NewCommandHandler()

	assert.Error(t, h.HandleMessage(context.Background(), kafka.Message{Value: []byte(`not json`)}))
	assert.Error(t, h.HandleMessage(context.Background(), kafka.Message{Value: []byte(`{"command":"pause"}`)}))
}

func TestCommandHandlerWithoutCallbacks(t *testing.T) {
	h := NewCommandHandler()
	assert.NoError(t, h.HandleMessage(context.Background(), kafka.Message{Value: []byte(`{"command":"start"}`)}))
}

func TestRunKey(t *testing.T) {
	assert.Equal(t, "run-42", runKey(42))
}
