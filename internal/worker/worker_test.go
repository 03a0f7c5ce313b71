package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finanzas/internal/amqp"
	"finanzas/internal/sheets/memory"
)

// fakeConsumer hands each queued event to the handler, then blocks until ctx ends.
type fakeConsumer struct {
	events  []*amqp.Event
	results chan error
	failErr error
}

func (f *fakeConsumer) Consume(ctx context.Context, handler amqp.Handler) error {
	if f.failErr != nil {
		return f.failErr
	}
	for _, ev := range f.events {
		err := handler(ctx, ev)
		if f.results != nil {
			f.results <- err
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestRowFromEvent(t *testing.T) {
	ev := amqp.NewEvent(amqp.EventCategoryCreated, 4, 12, "Comida").
		With("type", "expense").
		With("color", "#ff0000")

	row := RowFromEvent(ev)
	assert.Equal(t, ev.ID, row.EventID)
	assert.Equal(t, "category.created", row.Type)
	assert.EqualValues(t, 4, row.UserID)
	assert.EqualValues(t, 12, row.EntityID)
	assert.Equal(t, "color=#ff0000; type=expense", row.Details)
	assert.True(t, row.Timestamp.Equal(ev.Timestamp))

	assert.Empty(t, RowFromEvent(amqp.NewEvent(amqp.EventUserRegistered, 1, 1, "ana")).Details)
}

func TestActivityWorker_HandleEvent(t *testing.T) {
	store := memory.New()
	w := NewActivityWorker(store, nil)

	ev := amqp.NewEvent(amqp.EventUserRegistered, 7, 7, "ana")
	require.NoError(t, w.HandleEvent(context.Background(), ev))
	rows := store.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, ev.ID, rows[0].EventID)

	boom := errors.New("sheet down")
	store.FailWith(boom)
	assert.ErrorIs(t, w.HandleEvent(context.Background(), ev), boom)
}

func TestDefaultProcessorConfig(t *testing.T) {
	assert.Equal(t, 30*time.Second, DefaultProcessorConfig().HandleTimeout)

	p := NewProcessor(nil, nil, ProcessorConfig{}, nil)
	assert.Equal(t, 30*time.Second, p.config.HandleTimeout, "zero timeout falls back to the default")
}

func TestProcessor_Lifecycle(t *testing.T) {
	store := memory.New()
	consumer := &fakeConsumer{
		events: []*amqp.Event{
			amqp.NewEvent(amqp.EventCategoryCreated, 1, 2, "Ocio"),
			amqp.NewEvent(amqp.EventCategoryDeleted, 1, 2, "Ocio"),
		},
		results: make(chan error, 2),
	}
	p := NewProcessor(consumer, NewActivityWorker(store, nil), DefaultProcessorConfig(), nil)

	require.False(t, p.IsRunning())
	require.NoError(t, p.Start(context.Background()))
	require.True(t, p.IsRunning())
	require.Error(t, p.Start(context.Background()), "already running")

	for i := 0; i < 2; i++ {
		select {
		case err := <-consumer.results:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for events")
		}
	}
	assert.Len(t, store.Rows(), 2)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, p.Stop(ctx))
	assert.False(t, p.IsRunning())
	assert.NoError(t, p.Err(), "clean stop")
}

func TestProcessor_StopNotRunning(t *testing.T) {
	p := NewProcessor(&fakeConsumer{}, NewActivityWorker(memory.New(), nil), DefaultProcessorConfig(), nil)
	assert.NoError(t, p.Stop(context.Background()))
}

func TestProcessor_RequiresDependencies(t *testing.T) {
	p := NewProcessor(nil, nil, DefaultProcessorConfig(), nil)
	assert.Error(t, p.Start(context.Background()))
}

func TestProcessor_ConsumerFailure(t *testing.T) {
	boom := errors.New("access refused")
	p := NewProcessor(&fakeConsumer{failErr: boom}, NewActivityWorker(memory.New(), nil), DefaultProcessorConfig(), nil)
	require.NoError(t, p.Start(context.Background()))

	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("processor did not stop after consumer failure")
	}
	assert.ErrorIs(t, p.Err(), boom)
	assert.False(t, p.IsRunning())
}

func TestProcessor_ObservesHandledEvents(t *testing.T) {
	store := memory.New()
	store.FailWith(errors.New("quota exceeded"))
	consumer := &fakeConsumer{
		events:  []*amqp.Event{amqp.NewEvent(amqp.EventUserRegistered, 1, 1, "ana")},
		results: make(chan error, 1),
	}

	type observed struct {
		eventType string
		err       error
	}
	seen := make(chan observed, 1)
	cfg := DefaultProcessorConfig()
	cfg.Observe = func(eventType string, err error) { seen <- observed{eventType, err} }

	p := NewProcessor(consumer, NewActivityWorker(store, nil), cfg, nil)
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop(context.Background())

	select {
	case got := <-seen:
		assert.Equal(t, string(amqp.EventUserRegistered), got.eventType)
		assert.Error(t, got.err, "the write failure is observed")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for observation")
	}
}
