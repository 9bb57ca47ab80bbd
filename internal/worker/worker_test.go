package worker

import (
	"context"
	"errors"
	"testing"

	"catalog-ingest/internal/models"
	"catalog-ingest/internal/service"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
)

type fakeController struct {
	startErr error
	stopErr  error
	started  []service.StartOptions
	stops    int
}

func (f *fakeController) Start(ctx context.Context, opts service.StartOptions) (*models.IngestionRun, error) {
	f.started = append(f.started, opts)
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &models.IngestionRun{ID: 1}, nil
}

func (f *fakeController) Stop(ctx context.Context) error {
	f.stops++
	return f.stopErr
}

func msg(v string) kafka.Message { return kafka.Message{Value: []byte(v)} }

func TestCommandsReachController(t *testing.T) {
	ctrl := &fakeController{}
	w := NewCommandWorker(nil, ctrl)
	ctx := context.Background()

	assert.NoError(t, w.handler.HandleMessage(ctx, msg(`{"command":"start","categories":["beds"]}`)))
	assert.NoError(t, w.handler.HandleMessage(ctx, msg(`{"command":"stop"}`)))

	assert.Equal(t, []service.StartOptions{{Categories: []string{"beds"}}}, ctrl.started)
	assert.Equal(t, 1, ctrl.stops)
}

func TestDuplicateCommandsAreIgnored(t *testing.T) {
	ctrl := &fakeController{startErr: service.ErrAlreadyRunning, stopErr: service.ErrNotRunning}
	w := NewCommandWorker(nil, ctrl)
	ctx := context.Background()

	assert.NoError(t, w.handler.HandleMessage(ctx, msg(`{"command":"start"}`)))
	assert.NoError(t, w.handler.HandleMessage(ctx, msg(`{"command":"stop"}`)))
}

func TestStartFailureIsReported(t *testing.T) {
	ctrl := &fakeController{startErr: errors.New("failed to open dynamic fetcher")}
	w := NewCommandWorker(nil, ctrl)

	assert.Error(t, w.handler.HandleMessage(context.Background(), msg(`{"command":"start"}`)))
}
