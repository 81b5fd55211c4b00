package tryon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"time"

	"vton-proxy-server/modules/common/config"
)

// Service - 외부 Virtual Try-On 서비스 HTTP 클라이언트
type Service struct {
	baseURL    string
	httpClient *http.Client
}

// NewService - Try-On 서비스 클라이언트 생성
func NewService(cfg *config.Config) *Service {
	if cfg.TryOnServiceURL == "" {
		log.Println("⚠️ [TryOn] TRYON_SERVICE_URL not configured")
		return nil
	}

	log.Printf("✅ [TryOn] Service client initialized: %s (timeout: %ds)", cfg.TryOnServiceURL, cfg.TryOnTimeoutSec)
	return &Service{
		baseURL:    cfg.TryOnServiceURL,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TryOnTimeoutSec) * time.Second},
	}
}

// TryOn - 사람/의상 이미지를 multipart로 외부 서비스에 전달
// 재시도 없음 - 요청당 업스트림 호출은 정확히 1회
func (s *Service) TryOn(ctx context.Context, person, garment *UploadedImage) (*UpstreamResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writeImagePart(writer, "vton_image", person); err != nil {
		return nil, &UpstreamError{Kind: KindUnavailable, Err: err}
	}
	if err := writeImagePart(writer, "garment_image", garment); err != nil {
		return nil, &UpstreamError{Kind: KindUnavailable, Err: err}
	}
	if err := writer.Close(); err != nil {
		return nil, &UpstreamError{Kind: KindUnavailable, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL, &body)
	if err != nil {
		return nil, &UpstreamError{Kind: KindUnavailable, Err: err}
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	log.Printf("📡 [TryOn] Forwarding request to %s (person: %d bytes, garment: %d bytes)",
		s.baseURL, len(person.Data), len(garment.Data))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Printf("❌ [TryOn] Upstream returned status %d: %s", resp.StatusCode, string(bodyBytes))
		return nil, &UpstreamError{
			Kind:       KindExternalService,
			StatusCode: resp.StatusCode,
			Body:       string(bodyBytes),
		}
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(bodyBytes, &raw); err != nil {
		return nil, &UpstreamError{
			Kind:       KindExternalService,
			StatusCode: resp.StatusCode,
			Body:       string(bodyBytes),
			Err:        err,
		}
	}

	return resultFromPayload(raw), nil
}

// resultFromPayload - 업스트림 JSON에서 이미지 유무 판정
// status == "ok" 이고 image_base64가 비어있지 않을 때만 이미지 생성으로 간주
func resultFromPayload(raw map[string]interface{}) *UpstreamResult {
	status, _ := raw["status"].(string)
	imageBase64, _ := raw["image_base64"].(string)

	if status == "ok" && imageBase64 != "" {
		log.Printf("✅ [TryOn] Upstream generated image (%d chars base64)", len(imageBase64))
		return &UpstreamResult{Raw: raw, ImageBase64: imageBase64, HasImage: true}
	}

	log.Printf("⚠️ [TryOn] Upstream completed but no image generated (status: %s)", status)
	return &UpstreamResult{Raw: raw, HasImage: false}
}

// classifyTransportError - 전송 계층 에러 분류 (타임아웃 vs 기타)
func classifyTransportError(err error) *UpstreamError {
	if errors.Is(err, context.DeadlineExceeded) {
		log.Printf("❌ [TryOn] Upstream request timed out: %v", err)
		return &UpstreamError{Kind: KindTimeout, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		log.Printf("❌ [TryOn] Upstream request timed out: %v", err)
		return &UpstreamError{Kind: KindTimeout, Err: err}
	}

	log.Printf("❌ [TryOn] Upstream request failed: %v", err)
	return &UpstreamError{Kind: KindUnavailable, Err: err}
}

// writeImagePart - 파일명/content-type을 유지하며 multipart 파트 작성
// CreateFormFile은 content-type을 octet-stream으로 고정하므로 직접 헤더 구성
func writeImagePart(writer *multipart.Writer, fieldName string, img *UploadedImage) error {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="%s"; filename="%s"`, fieldName, img.Filename))

	contentType := img.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return fmt.Errorf("failed to create multipart part %s: %w", fieldName, err)
	}

	if _, err := part.Write(img.Data); err != nil {
		return fmt.Errorf("failed to write multipart part %s: %w", fieldName, err)
	}

	return nil
}
