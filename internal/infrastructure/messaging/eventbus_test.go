package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innerlight-app/innerlight-progress/internal/domain/shared"
)

func TestInMemoryBusDeliversToTypedSubscriber(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})
	defer bus.Close()

	var got []shared.EventType
	err := bus.Subscribe(shared.EventXPAwarded, func(_ context.Context, event shared.Event) error {
		got = append(got, event.EventType())
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, bus.Publish(context.Background(), shared.NewXPAwardedEvent("user-1", 25, "meditation", 25)))
	require.NoError(t, bus.Publish(context.Background(), shared.NewLevelUpEvent("user-1", 1, 2, "Seeker")))

	assert.Equal(t, []shared.EventType{shared.EventXPAwarded}, got)
}

func TestInMemoryBusSubscribeAllSeesEverything(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})
	defer bus.Close()

	var got []shared.EventType
	require.NoError(t, bus.SubscribeAll(func(_ context.Context, event shared.Event) error {
		got = append(got, event.EventType())
		return nil
	}))

	require.NoError(t, bus.Publish(context.Background(), shared.NewXPAwardedEvent("user-1", 25, "meditation", 25)))
	require.NoError(t, bus.Publish(context.Background(), shared.NewLevelUpEvent("user-1", 1, 2, "Seeker")))

	assert.Equal(t, []shared.EventType{shared.EventXPAwarded, shared.EventLevelUp}, got)
}

func TestInMemoryBusSyncModePreservesOrder(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})
	defer bus.Close()

	var got []int64
	require.NoError(t, bus.Subscribe(shared.EventXPAwarded, func(_ context.Context, event shared.Event) error {
		got = append(got, event.Payload()["amount"].(int64))
		return nil
	}))

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, bus.Publish(context.Background(), shared.NewXPAwardedEvent("user-1", i, "test", i)))
	}

	assert.Equal(t, []int64{1, 2, 3, 4, 5}, got)
}

func TestInMemoryBusHandlerPanicDoesNotReachPublisher(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})
	defer bus.Close()

	require.NoError(t, bus.Subscribe(shared.EventXPAwarded, func(_ context.Context, _ shared.Event) error {
		panic("boom")
	}))

	called := false
	require.NoError(t, bus.Subscribe(shared.EventXPAwarded, func(_ context.Context, _ shared.Event) error {
		called = true
		return nil
	}))

	require.NoError(t, bus.Publish(context.Background(), shared.NewXPAwardedEvent("user-1", 10, "test", 10)))
	assert.True(t, called, "later handler should still run after a panic")

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.TotalHandlerExecs)
	assert.Less(t, snap.HandlerSuccessRate, 1.0)
}

func TestInMemoryBusAsyncModeDelivers(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 4})

	var mu sync.Mutex
	count := 0
	require.NoError(t, bus.SubscribeAll(func(_ context.Context, _ shared.Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	}))

	for i := 0; i < 20; i++ {
		require.NoError(t, bus.Publish(context.Background(), shared.NewXPAwardedEvent("user-1", 10, "test", 10)))
	}
	require.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 20, count)
}

func TestInMemoryBusCloseDrainsAcceptedEvents(t *testing.T) {
	// One worker slot and a slow handler: most events are still waiting
	// for a slot when Close runs. Accepted events must all be delivered.
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{AsyncMode: true, WorkerPoolSize: 1})

	var mu sync.Mutex
	count := 0
	require.NoError(t, bus.SubscribeAll(func(_ context.Context, _ shared.Event) error {
		time.Sleep(5 * time.Millisecond)
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	}))

	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Publish(context.Background(), shared.NewXPAwardedEvent("user-1", 10, "test", 10)))
	}
	require.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 10, count)
}

func TestInMemoryBusRejectsAfterClose(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})
	require.NoError(t, bus.Close())

	err := bus.Publish(context.Background(), shared.NewXPAwardedEvent("user-1", 10, "test", 10))
	assert.ErrorIs(t, err, ErrEventBusClosed)

	err = bus.Subscribe(shared.EventXPAwarded, func(_ context.Context, _ shared.Event) error { return nil })
	assert.ErrorIs(t, err, ErrEventBusClosed)
}

func TestInMemoryBusRejectsNilHandler(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})
	defer bus.Close()

	assert.ErrorIs(t, bus.Subscribe(shared.EventXPAwarded, nil), ErrNilHandler)
	assert.ErrorIs(t, bus.SubscribeAll(nil), ErrNilHandler)
}

// ══════════════════════════════════════════════════════════════════════════════
// REDIS EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// fakeRedisClient records publishes and lets tests inject inbound messages.
type fakeRedisClient struct {
	mu        sync.Mutex
	published []string
	inbound   chan RedisMessage
}

func newFakeRedisClient() *fakeRedisClient {
	return &fakeRedisClient{inbound: make(chan RedisMessage, 16)}
}

func (c *fakeRedisClient) Publish(_ context.Context, _ string, message any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, message.(string))
	return nil
}

func (c *fakeRedisClient) Subscribe(_ context.Context, _ ...string) (<-chan RedisMessage, error) {
	return c.inbound, nil
}

func (c *fakeRedisClient) Close() error { return nil }

func (c *fakeRedisClient) publishedCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.published)
}

func TestRedisBusPublishesEnvelopeAndDeliversLocally(t *testing.T) {
	client := newFakeRedisClient()
	bus, err := NewRedisEventBus(RedisEventBusConfig{Client: client, InstanceID: "instance-a"})
	require.NoError(t, err)
	defer bus.Close()

	var got []shared.EventType
	var mu sync.Mutex
	require.NoError(t, bus.SubscribeAll(func(_ context.Context, event shared.Event) error {
		mu.Lock()
		got = append(got, event.EventType())
		mu.Unlock()
		return nil
	}))

	require.NoError(t, bus.Publish(context.Background(), shared.NewXPAwardedEvent("user-1", 25, "meditation", 25)))

	mu.Lock()
	assert.Equal(t, []shared.EventType{shared.EventXPAwarded}, got)
	mu.Unlock()

	require.Equal(t, 1, client.publishedCount())
	var envelope eventEnvelope
	require.NoError(t, json.Unmarshal([]byte(client.published[0]), &envelope))
	assert.Equal(t, "instance-a", envelope.InstanceID)
	assert.Equal(t, shared.EventXPAwarded, envelope.EventType)
	assert.Equal(t, "user-1", envelope.AggregateID)
}

func TestRedisBusSkipsOwnMessages(t *testing.T) {
	client := newFakeRedisClient()
	bus, err := NewRedisEventBus(RedisEventBusConfig{Client: client, InstanceID: "instance-a"})
	require.NoError(t, err)
	defer bus.Close()

	var mu sync.Mutex
	count := 0
	require.NoError(t, bus.SubscribeAll(func(_ context.Context, _ shared.Event) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	}))

	own, err := json.Marshal(eventEnvelope{
		InstanceID: "instance-a",
		EventType:  shared.EventXPAwarded,
		OccurredAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	remote, err := json.Marshal(eventEnvelope{
		InstanceID:  "instance-b",
		EventType:   shared.EventLevelUp,
		AggregateID: "user-2",
		OccurredAt:  time.Now().UTC(),
		Payload:     map[string]any{"new_level": float64(2)},
	})
	require.NoError(t, err)

	client.inbound <- RedisMessage{Payload: string(own)}
	client.inbound <- RedisMessage{Payload: string(remote)}

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 1
	}, time.Second, 5*time.Millisecond, "only the remote event should be delivered")
}

func TestRedisBusRemoteEventCarriesPayload(t *testing.T) {
	client := newFakeRedisClient()
	bus, err := NewRedisEventBus(RedisEventBusConfig{Client: client, InstanceID: "instance-a"})
	require.NoError(t, err)
	defer bus.Close()

	received := make(chan shared.Event, 1)
	require.NoError(t, bus.Subscribe(shared.EventAchievementUnlocked, func(_ context.Context, event shared.Event) error {
		received <- event
		return nil
	}))

	remote, err := json.Marshal(eventEnvelope{
		InstanceID:  "instance-b",
		EventType:   shared.EventAchievementUnlocked,
		AggregateID: "user-3",
		OccurredAt:  time.Now().UTC(),
		Payload:     map[string]any{"achievement_id": "first-meditation"},
	})
	require.NoError(t, err)
	client.inbound <- RedisMessage{Payload: string(remote)}

	select {
	case event := <-received:
		assert.Equal(t, "user-3", event.AggregateID())
		assert.Equal(t, "first-meditation", event.Payload()["achievement_id"])
	case <-time.After(time.Second):
		t.Fatal("remote event was not delivered")
	}
}

func TestRedisBusRequiresClient(t *testing.T) {
	_, err := NewRedisEventBus(RedisEventBusConfig{})
	assert.Error(t, err)
}

func TestRedisBusPublishFailureStillDeliversLocally(t *testing.T) {
	client := newFakeRedisClient()
	bus, err := NewRedisEventBus(RedisEventBusConfig{Client: client, InstanceID: "instance-a"})
	require.NoError(t, err)
	defer bus.Close()

	failing := &failingRedisClient{fakeRedisClient: client}
	bus.client = failing

	delivered := false
	require.NoError(t, bus.SubscribeAll(func(_ context.Context, _ shared.Event) error {
		delivered = true
		return nil
	}))

	require.NoError(t, bus.Publish(context.Background(), shared.NewXPAwardedEvent("user-1", 10, "test", 10)))
	assert.True(t, delivered)
}

type failingRedisClient struct {
	*fakeRedisClient
}

func (c *failingRedisClient) Publish(context.Context, string, any) error {
	return errors.New("connection refused")
}
