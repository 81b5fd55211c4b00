package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"vton-proxy-server/modules/common/model"
)

func testEvent() model.TryOnEvent {
	return model.TryOnEvent{
		Type:      model.EventTryOnCompleted,
		ProductID: "P1",
		ImageID:   "img-1",
		CreatedAt: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestPublisherPublishesToRedisChannel(t *testing.T) {
	mr := miniredis.RunT(t)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx := context.Background()

	pubsub := rdb.Subscribe(ctx, EventsChannel)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		t.Fatalf("failed to subscribe: %v", err)
	}

	publisher := NewPublisher(rdb, NewHub())
	if err := publisher.Publish(ctx, testEvent()); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	select {
	case msg := <-pubsub.Channel():
		var event model.TryOnEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			t.Fatalf("failed to parse published payload: %v", err)
		}
		if event.Type != model.EventTryOnCompleted {
			t.Errorf("event type = %q, want %q", event.Type, model.EventTryOnCompleted)
		}
		if event.ProductID != "P1" || event.ImageID != "img-1" {
			t.Errorf("event = %+v", event)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message received on events channel")
	}
}

func TestPublisherWithoutRedisBroadcastsLocally(t *testing.T) {
	hub := NewHub()
	publisher := NewPublisher(nil, hub)

	// Redis 없이도 발행은 성공해야 함 (로컬 브로드캐스트)
	if err := publisher.Publish(context.Background(), testEvent()); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
}
