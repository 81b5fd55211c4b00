package model

import "time"

// GeneratedImage - vton_generated_images 테이블 구조
// id와 created_at은 insert 시점에 스토어가 할당한다 (클라이언트 값 무시)
type GeneratedImage struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"product_id"`
	UserID      *string   `json:"user_id"`
	ImageBase64 string    `json:"image_base64"`
	PreviewPath *string   `json:"preview_path,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// TryOnEvent - try-on 완료 이벤트 (Redis pub/sub + WebSocket 브로드캐스트용)
type TryOnEvent struct {
	Type      string    `json:"type"`
	ProductID string    `json:"product_id"`
	ImageID   string    `json:"image_id"`
	CreatedAt time.Time `json:"created_at"`
}

const (
	EventTryOnCompleted = "tryon_completed"
)
