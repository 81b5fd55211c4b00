package tryon

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"vton-proxy-server/modules/common/model"
	"vton-proxy-server/modules/common/utils"
)

const maxMultipartMemory = 32 << 20 // 32MB

// Handler - Try-On Proxy HTTP 핸들러
type Handler struct {
	provider Provider
	store    ImageStore
	events   EventPublisher
	previews PreviewUploader

	statsMu sync.Mutex
	stats   Stats
}

// Stats - try-on 요청 집계 (metrics 노출용)
type Stats struct {
	Total     int `json:"total"`
	Persisted int `json:"persisted"`
	NoImage   int `json:"noImage"`
	Failed    int `json:"failed"`
}

// NewHandler - Try-On 핸들러 생성
func NewHandler(provider Provider, store ImageStore, events EventPublisher, previews PreviewUploader) *Handler {
	return &Handler{
		provider: provider,
		store:    store,
		events:   events,
		previews: previews,
	}
}

// RegisterRoutes - 라우트 등록
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/virtual-try-on", h.HandleTryOn).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/virtual-try-on/", h.HandleTryOn).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/virtual-try-on/images/{product_id}", h.HandleGetImages).Methods("GET")
	log.Println("✅ Try-On routes registered: POST /api/virtual-try-on/, GET /api/virtual-try-on/images/{product_id}")
}

// HandleTryOn - POST /api/virtual-try-on/
// multipart: vton_image(필수), garment_image(필수), product_id(선택)
// 호출자 식별은 게이트웨이가 X-User-Id 헤더로 전달 (익명이면 없음)
func (h *Handler) HandleTryOn(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()[:8]
	log.Printf("🎽 [TryOn] Received virtual try-on request (req: %s)", requestID)

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		log.Printf("❌ [TryOn] Invalid multipart form (req: %s): %v", requestID, err)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Status: "error",
			Error:  "Invalid multipart form",
		})
		return
	}

	person, err := readUploadedImage(r, "vton_image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Status: "error",
			Error:  "vton_image is required",
		})
		return
	}

	garment, err := readUploadedImage(r, "garment_image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Status: "error",
			Error:  "garment_image is required",
		})
		return
	}

	productID := r.FormValue("product_id")

	var userID *string
	if headerUser := r.Header.Get("X-User-Id"); headerUser != "" {
		userID = &headerUser
	}

	h.countTotal()

	// 업스트림 호출 - 요청당 정확히 1회, 재시도 없음
	result, err := h.provider.TryOn(r.Context(), person, garment)
	if err != nil {
		h.countFailed()
		h.writeUpstreamError(w, requestID, err)
		return
	}

	// 이미지 미생성 - 업스트림 페이로드 그대로 relay, 저장 없음
	if !result.HasImage {
		h.countNoImage()
		log.Printf("⚠️ [TryOn] Completed but no image generated (req: %s)", requestID)
		writeJSON(w, http.StatusOK, result.Raw)
		return
	}

	// product_id 없는 익명 생성은 저장 없이 이미지만 전달
	// (GeneratedImage는 product_id가 필수)
	if productID == "" {
		h.countNoImage()
		log.Printf("⚠️ [TryOn] No product_id supplied, returning image unpersisted (req: %s)", requestID)
		writeJSON(w, http.StatusOK, result.Raw)
		return
	}

	imageID, err := h.persistResult(r.Context(), productID, userID, result.ImageBase64)
	if err != nil {
		h.countFailed()
		log.Printf("❌ [TryOn] Failed to store generated image (req: %s): %v", requestID, err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Status: "error",
			Error:  "Failed to store generated image",
		})
		return
	}

	h.countPersisted()
	h.publishCompleted(productID, imageID)

	result.Raw["image_id"] = imageID
	log.Printf("✅ [TryOn] Completed and image stored: id=%s, product=%s (req: %s)", imageID, productID, requestID)
	writeJSON(w, http.StatusOK, result.Raw)
}

// HandleGetImages - GET /api/virtual-try-on/images/{product_id}
// 해당 상품의 생성 이미지 목록 (최신순), 없으면 빈 배열
func (h *Handler) HandleGetImages(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	productID := vars["product_id"]

	images, err := h.store.FetchImagesByProduct(r.Context(), productID)
	if err != nil {
		log.Printf("❌ [TryOn] Failed to fetch images for product %s: %v", productID, err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Status: "error",
			Error:  "Failed to fetch images",
		})
		return
	}

	if images == nil {
		images = []model.GeneratedImage{}
	}

	writeJSON(w, http.StatusOK, ImagesResponse{
		Images: images,
		Total:  len(images),
	})
}

// persistResult - 프리뷰 업로드(best-effort) 후 레코드 저장
// 레코드는 저장 후 불변이므로 preview_path는 insert 전에 확정한다
func (h *Handler) persistResult(ctx context.Context, productID string, userID *string, imageBase64 string) (string, error) {
	var previewPath *string
	if h.previews != nil {
		if imageData, err := utils.DecodeBase64Image(imageBase64); err == nil {
			if path, err := h.previews.UploadPreview(ctx, imageData, productID); err != nil {
				log.Printf("⚠️ [TryOn] Preview upload failed (non-fatal): %v", err)
			} else if path != "" {
				previewPath = &path
			}
		}
	}

	return h.store.InsertGeneratedImage(ctx, productID, userID, imageBase64, previewPath)
}

// publishCompleted - 완료 이벤트 발행 (best-effort, 실패해도 응답에 영향 없음)
func (h *Handler) publishCompleted(productID, imageID string) {
	if h.events == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	event := model.TryOnEvent{
		Type:      model.EventTryOnCompleted,
		ProductID: productID,
		ImageID:   imageID,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.events.Publish(ctx, event); err != nil {
		log.Printf("⚠️ [TryOn] Failed to publish completion event (non-fatal): %v", err)
	}
}

// writeUpstreamError - 업스트림 실패 분류를 HTTP 응답으로 매핑
func (h *Handler) writeUpstreamError(w http.ResponseWriter, requestID string, err error) {
	upstreamErr, ok := err.(*UpstreamError)
	if !ok {
		log.Printf("❌ [TryOn] Unexpected error (req: %s): %v", requestID, err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Status: "error",
			Error:  "Internal server error. Please try again later.",
		})
		return
	}

	switch upstreamErr.Kind {
	case KindTimeout:
		log.Printf("❌ [TryOn] Upstream timeout (req: %s)", requestID)
		writeJSON(w, http.StatusGatewayTimeout, ErrorResponse{
			Status: "error",
			Error:  "Virtual try-on service timeout. Please try again.",
		})
	case KindUnavailable:
		log.Printf("❌ [TryOn] Upstream unavailable (req: %s): %v", requestID, upstreamErr.Err)
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Status: "error",
			Error:  "Virtual try-on service unavailable. Please try again later.",
		})
	default:
		// 업스트림 상태 코드를 그대로 전달, 없으면 502
		status := upstreamErr.StatusCode
		if status < 400 {
			status = http.StatusBadGateway
		}
		log.Printf("❌ [TryOn] Upstream error %d (req: %s): %s", upstreamErr.StatusCode, requestID, upstreamErr.Body)
		writeJSON(w, status, ErrorResponse{
			Status:         "error",
			Error:          "Virtual try-on service error",
			UpstreamStatus: upstreamErr.StatusCode,
		})
	}
}

// GetStats - 현재 집계 스냅샷
func (h *Handler) GetStats() Stats {
	h.statsMu.Lock()
	defer h.statsMu.Unlock()
	return h.stats
}

func (h *Handler) countTotal() {
	h.statsMu.Lock()
	h.stats.Total++
	h.statsMu.Unlock()
}

func (h *Handler) countPersisted() {
	h.statsMu.Lock()
	h.stats.Persisted++
	h.statsMu.Unlock()
}

func (h *Handler) countNoImage() {
	h.statsMu.Lock()
	h.stats.NoImage++
	h.statsMu.Unlock()
}

func (h *Handler) countFailed() {
	h.statsMu.Lock()
	h.stats.Failed++
	h.statsMu.Unlock()
}

// readUploadedImage - multipart 파일 읽기
func readUploadedImage(r *http.Request, fieldName string) (*UploadedImage, error) {
	file, header, err := r.FormFile(fieldName)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	return &UploadedImage{
		Data:        data,
		Filename:    header.Filename,
		ContentType: detectContentType(header),
	}, nil
}

func detectContentType(header *multipart.FileHeader) string {
	if ct := header.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
