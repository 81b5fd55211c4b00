package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"time"

	"vton-proxy-server/modules/common/config"
	"vton-proxy-server/modules/common/utils"
)

const previewQuality = 85.0

type Client struct {
	httpClient *http.Client
}

// NewClient - Storage 클라이언트 생성
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// UploadPreview - 생성 이미지의 WebP 프리뷰를 Supabase Storage에 업로드
// best-effort: 실패해도 try-on 응답에는 영향 없음 (호출측에서 로그만 남김)
func (c *Client) UploadPreview(ctx context.Context, imageData []byte, productID string) (string, error) {
	cfg := config.GetConfig()

	if cfg.SupabaseStorageBaseURL == "" {
		// Storage 미설정 - 프리뷰 생략
		return "", nil
	}

	// WebP 변환 (quality: 85)
	webpData, err := utils.ConvertToWebP(imageData, previewQuality)
	if err != nil {
		return "", fmt.Errorf("failed to convert preview to WebP: %w", err)
	}

	// 파일 경로 생성
	timestamp := time.Now().UnixNano() / int64(time.Millisecond)
	randomID := rand.Intn(999999)
	filePath := fmt.Sprintf("try-on/previews/product-%s/preview_%d_%d.webp", productID, timestamp, randomID)

	log.Printf("📤 Uploading WebP preview to storage: %s", filePath)

	uploadURL := fmt.Sprintf("%s/storage/v1/object/attachments/%s", cfg.SupabaseURL, filePath)

	req, err := http.NewRequestWithContext(ctx, "POST", uploadURL, bytes.NewReader(webpData))
	if err != nil {
		return "", fmt.Errorf("failed to create upload request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+cfg.SupabaseServiceKey)
	req.Header.Set("Content-Type", "image/webp")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload preview: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("preview upload failed with status %d: %s", resp.StatusCode, string(body))
	}

	log.Printf("✅ WebP preview uploaded: %s (%d bytes)", filePath, len(webpData))
	return filePath, nil
}
