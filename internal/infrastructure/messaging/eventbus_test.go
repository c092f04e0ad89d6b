package messaging

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradlink-hub/mentor-vetting/internal/domain/shared"
)

// recordingHandler captures every event it receives.
type recordingHandler struct {
	mu     sync.Mutex
	events []shared.Event
	err    error
}

func (h *recordingHandler) Handle(event shared.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return h.err
}

func (h *recordingHandler) CanHandle(shared.EventType) bool { return true }

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func syncBus() *InMemoryEventBus {
	cfg := DefaultEventBusConfig()
	cfg.AsyncMode = false
	return NewInMemoryEventBus(cfg)
}

func TestPublishToTypedSubscription(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	handler := &recordingHandler{}
	require.NoError(t, bus.Subscribe(handler, shared.EventApplicationSubmitted))

	event := shared.NewApplicationSubmittedEvent("app-1", "a@b.io", "Ada", "General", false)
	require.NoError(t, bus.Publish(event))

	require.Equal(t, 1, handler.count())
	assert.Equal(t, shared.EventApplicationSubmitted, handler.events[0].EventType())

	// An event of another type must not reach the typed subscription.
	require.NoError(t, bus.Publish(shared.NewSessionExpiredEvent("s-1", "app-1", false)))
	assert.Equal(t, 1, handler.count())
}

func TestSubscribeAllReceivesEverything(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	handler := &recordingHandler{}
	require.NoError(t, bus.SubscribeAll(handler))

	require.NoError(t, bus.Publish(shared.NewApplicationSubmittedEvent("app-1", "a@b.io", "Ada", "General", false)))
	require.NoError(t, bus.Publish(shared.NewSessionExpiredEvent("s-1", "app-1", true)))

	assert.Equal(t, 2, handler.count())
}

func TestSubscribeAllRespectsCanHandle(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	// EventHandlerFunc filters by its Types list even when subscribed to
	// the firehose.
	var got []shared.EventType
	handler := shared.EventHandlerFunc{
		Types: []shared.EventType{shared.EventSessionExpired},
		Handler: func(event shared.Event) error {
			got = append(got, event.EventType())
			return nil
		},
	}
	require.NoError(t, bus.SubscribeAll(handler))

	require.NoError(t, bus.Publish(shared.NewApplicationSubmittedEvent("app-1", "a@b.io", "Ada", "General", false)))
	require.NoError(t, bus.Publish(shared.NewSessionExpiredEvent("s-1", "app-1", false)))

	require.Len(t, got, 1)
	assert.Equal(t, shared.EventSessionExpired, got[0])
}

func TestPublishNilEvent(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	assert.Error(t, bus.Publish(nil))
}

func TestSubscribeNilHandler(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	assert.ErrorIs(t, bus.Subscribe(nil), ErrNilHandler)
	assert.ErrorIs(t, bus.SubscribeAll(nil), ErrNilHandler)
}

func TestClosedBusRejectsOperations(t *testing.T) {
	bus := syncBus()
	require.NoError(t, bus.Close())

	handler := &recordingHandler{}
	assert.ErrorIs(t, bus.Subscribe(handler), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Publish(shared.NewSessionExpiredEvent("s-1", "app-1", false)), ErrEventBusClosed)

	// Closing twice is fine.
	assert.NoError(t, bus.Close())
}

func TestHandlerErrorDoesNotFailPublish(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	failing := &recordingHandler{err: errors.New("boom")}
	ok := &recordingHandler{}
	require.NoError(t, bus.SubscribeAll(failing))
	require.NoError(t, bus.SubscribeAll(ok))

	require.NoError(t, bus.Publish(shared.NewSessionExpiredEvent("s-1", "app-1", false)))
	assert.Equal(t, 1, failing.count())
	assert.Equal(t, 1, ok.count())
}

func TestAsyncPublishCompletesBeforeClose(t *testing.T) {
	cfg := DefaultEventBusConfig()
	cfg.WorkerPoolSize = 2
	bus := NewInMemoryEventBus(cfg)

	handler := &recordingHandler{}
	require.NoError(t, bus.SubscribeAll(handler))

	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Publish(shared.NewSessionExpiredEvent("s-1", "app-1", false)))
	}

	// Close waits for in-flight handlers.
	require.NoError(t, bus.Close())
	assert.Equal(t, 10, handler.count())
}

func TestEventBusMetrics(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	handler := &recordingHandler{}
	require.NoError(t, bus.SubscribeAll(handler))

	require.NoError(t, bus.Publish(shared.NewSessionExpiredEvent("s-1", "app-1", false)))
	require.NoError(t, bus.Publish(shared.NewSessionExpiredEvent("s-2", "app-2", true)))

	metrics := bus.Metrics()
	require.NotNil(t, metrics)

	snap := metrics.Snapshot()
	assert.Equal(t, int64(2), snap.TotalPublished)
	assert.Equal(t, int64(2), snap.TotalHandlerExecs)
	assert.Equal(t, 1.0, snap.HandlerSuccessRate)
	assert.False(t, snap.StartedAt.After(time.Now()))
}
