package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"log"

	"google.golang.org/genai"

	"vton-proxy-server/modules/common/config"
	geminiRetry "vton-proxy-server/modules/common/gemini"
	"vton-proxy-server/modules/tryon"
)

// try-on 합성 프롬프트 - 사람 이미지(첫 번째)에 의상 이미지(두 번째)를 입힘
const tryOnPrompt = `Generate a photorealistic image of the person in the first image ` +
	`wearing the garment shown in the second image. Keep the person's pose, face and ` +
	`background unchanged. Only replace the clothing.`

// Service - Gemini 기반 try-on fallback 프로바이더
// TRYON_SERVICE_URL 미설정 시 외부 서비스 대신 사용
type Service struct {
	apiKeys []string
	model   string
}

// NewService - Gemini fallback 프로바이더 생성
func NewService(cfg *config.Config) *Service {
	if len(cfg.GeminiAPIKeys) == 0 {
		log.Println("⚠️ [Gemini] GEMINI_API_KEYS not configured")
		return nil
	}

	log.Printf("✅ [Gemini] Fallback try-on provider initialized (model: %s)", cfg.GeminiModel)
	return &Service{
		apiKeys: cfg.GeminiAPIKeys,
		model:   cfg.GeminiModel,
	}
}

// TryOn - Gemini 이미지 모델로 try-on 합성
// 외부 HTTP 서비스와 동일한 UpstreamResult/UpstreamError 계약을 따름
func (s *Service) TryOn(ctx context.Context, person, garment *tryon.UploadedImage) (*tryon.UpstreamResult, error) {
	log.Printf("🎨 [Gemini] Generating try-on image (person: %d bytes, garment: %d bytes)",
		len(person.Data), len(garment.Data))

	parts := []*genai.Part{
		genai.NewPartFromText(tryOnPrompt),
		{InlineData: &genai.Blob{MIMEType: mimeTypeOf(person), Data: person.Data}},
		{InlineData: &genai.Blob{MIMEType: mimeTypeOf(garment), Data: garment.Data}},
	}

	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}

	resp, err := geminiRetry.GenerateContentWithRetry(ctx, s.apiKeys, s.model, contents, &genai.GenerateContentConfig{})
	if err != nil {
		return nil, classifyGeminiError(err)
	}

	// candidate parts에서 inline 이미지 추출
	var imageBase64 string
	var responseText string
	if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				imageBase64 = base64.StdEncoding.EncodeToString(part.InlineData.Data)
			} else if part.Text != "" {
				responseText = part.Text
			}
		}
	}

	if imageBase64 == "" {
		log.Printf("⚠️ [Gemini] No image in response (text: %s)", responseText)
		return &tryon.UpstreamResult{
			Raw:      map[string]interface{}{"status": "no_image", "detail": responseText},
			HasImage: false,
		}, nil
	}

	log.Printf("✅ [Gemini] Try-on image generated (%d chars base64)", len(imageBase64))
	return &tryon.UpstreamResult{
		Raw:         map[string]interface{}{"status": "ok", "image_base64": imageBase64},
		ImageBase64: imageBase64,
		HasImage:    true,
	}, nil
}

// classifyGeminiError - Gemini 에러를 UpstreamError로 매핑
func classifyGeminiError(err error) *tryon.UpstreamError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &tryon.UpstreamError{Kind: tryon.KindTimeout, Err: err}
	}
	if geminiRetry.IsRateLimitError(err) {
		return &tryon.UpstreamError{Kind: tryon.KindUnavailable, Err: err}
	}
	return &tryon.UpstreamError{Kind: tryon.KindExternalService, Body: err.Error(), Err: err}
}

func mimeTypeOf(img *tryon.UploadedImage) string {
	if img.ContentType != "" {
		return img.ContentType
	}
	return "image/png"
}
