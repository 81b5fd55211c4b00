package tryon

import (
	"context"
	"fmt"

	"vton-proxy-server/modules/common/model"
)

// UploadedImage - multipart로 업로드된 이미지 한 장
type UploadedImage struct {
	Data        []byte
	Filename    string
	ContentType string
}

// UpstreamResult - 외부 try-on 서비스의 성공 응답
// HasImage가 false면 "이미지 미생성" 케이스 (비치명적, 저장 없이 Raw 그대로 relay)
type UpstreamResult struct {
	Raw         map[string]interface{}
	ImageBase64 string
	HasImage    bool
}

// ErrorKind - 외부 호출 실패 분류
type ErrorKind string

const (
	KindExternalService ErrorKind = "external_service" // 업스트림 non-200
	KindTimeout         ErrorKind = "timeout"          // 타임아웃 초과
	KindUnavailable     ErrorKind = "unavailable"      // 전송 계층 실패 (연결 거부, DNS 등)
)

// UpstreamError - 외부 try-on 서비스 호출 실패
type UpstreamError struct {
	Kind       ErrorKind
	StatusCode int    // KindExternalService일 때 업스트림 상태 코드
	Body       string // 진단용 업스트림 응답 본문
	Err        error
}

func (e *UpstreamError) Error() string {
	switch e.Kind {
	case KindExternalService:
		return fmt.Sprintf("try-on service returned status %d: %s", e.StatusCode, e.Body)
	case KindTimeout:
		return "try-on service request timed out"
	default:
		return fmt.Sprintf("try-on service unavailable: %v", e.Err)
	}
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Provider - try-on 이미지 생성 프로바이더 (외부 HTTP 서비스 또는 Gemini fallback)
type Provider interface {
	TryOn(ctx context.Context, person, garment *UploadedImage) (*UpstreamResult, error)
}

// ImageStore - 생성 이미지 영속화 계층
type ImageStore interface {
	InsertGeneratedImage(ctx context.Context, productID string, userID *string, imageBase64 string, previewPath *string) (string, error)
	FetchImagesByProduct(ctx context.Context, productID string) ([]model.GeneratedImage, error)
}

// EventPublisher - try-on 완료 이벤트 발행 (best-effort)
type EventPublisher interface {
	Publish(ctx context.Context, event model.TryOnEvent) error
}

// PreviewUploader - WebP 프리뷰 업로드 (best-effort)
type PreviewUploader interface {
	UploadPreview(ctx context.Context, imageData []byte, productID string) (string, error)
}

// ImagesResponse - GET /api/virtual-try-on/images/{product_id} 응답
type ImagesResponse struct {
	Images []model.GeneratedImage `json:"images"`
	Total  int                    `json:"total"`
}

// ErrorResponse - 실패 응답 envelope
type ErrorResponse struct {
	Status         string `json:"status"`
	Error          string `json:"error"`
	UpstreamStatus int    `json:"upstream_status,omitempty"`
}
