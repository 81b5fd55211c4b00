package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"vton-proxy-server/modules/common/model"
)

// EventsChannel - try-on 완료 이벤트 Redis pub/sub 채널
const EventsChannel = "tryon:events"

// Publisher - try-on 완료 이벤트 발행자
// Redis가 설정되어 있으면 pub/sub으로 fan-out (다중 인스턴스 동기화),
// 없으면 로컬 허브로 직접 브로드캐스트
type Publisher struct {
	rdb *redis.Client
	hub *Hub
}

// NewPublisher - Publisher 생성 (rdb는 nil 허용)
func NewPublisher(rdb *redis.Client, hub *Hub) *Publisher {
	return &Publisher{
		rdb: rdb,
		hub: hub,
	}
}

// Publish - 이벤트 발행
func (p *Publisher) Publish(ctx context.Context, event model.TryOnEvent) error {
	if p.rdb == nil {
		// Redis 없음 - 로컬 허브로만 전달
		p.hub.Broadcast(event)
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := p.rdb.Publish(ctx, EventsChannel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// StartSubscriber - Redis 채널 구독 후 수신 이벤트를 허브로 전달
// 자기 인스턴스가 발행한 이벤트도 이 경로로 돌아와 브로드캐스트된다
func StartSubscriber(ctx context.Context, rdb *redis.Client, hub *Hub) {
	pubsub := rdb.Subscribe(ctx, EventsChannel)
	defer pubsub.Close()

	log.Printf("👀 [Events] Subscribed to Redis channel: %s", EventsChannel)

	for msg := range pubsub.Channel() {
		var event model.TryOnEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			log.Printf("❌ [Events] Failed to parse event payload: %v", err)
			continue
		}

		hub.Broadcast(event)
	}

	log.Println("⚠️ [Events] Redis subscription closed")
}
