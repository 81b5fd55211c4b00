package tryon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testImages() (*UploadedImage, *UploadedImage) {
	person := &UploadedImage{
		Data:        []byte("person-image-bytes"),
		Filename:    "person.jpg",
		ContentType: "image/jpeg",
	}
	garment := &UploadedImage{
		Data:        []byte("garment-image-bytes"),
		Filename:    "garment.png",
		ContentType: "image/png",
	}
	return person, garment
}

func newTestService(url string, timeout time.Duration) *Service {
	return &Service{
		baseURL:    url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func TestServiceTryOn(t *testing.T) {
	person, garment := testImages()

	t.Run("success with image", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := r.ParseMultipartForm(32 << 20); err != nil {
				t.Fatalf("upstream failed to parse multipart: %v", err)
			}

			vton, vtonHeader, err := r.FormFile("vton_image")
			if err != nil {
				t.Fatalf("missing vton_image part: %v", err)
			}
			vton.Close()
			if vtonHeader.Filename != "person.jpg" {
				t.Errorf("vton_image filename = %q, want person.jpg", vtonHeader.Filename)
			}
			if ct := vtonHeader.Header.Get("Content-Type"); ct != "image/jpeg" {
				t.Errorf("vton_image content type = %q, want image/jpeg", ct)
			}

			if _, _, err := r.FormFile("garment_image"); err != nil {
				t.Fatalf("missing garment_image part: %v", err)
			}

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{
				"status":       "ok",
				"image_base64": "Zm9vYmFy",
			})
		}))
		defer server.Close()

		service := newTestService(server.URL, 5*time.Second)
		result, err := service.TryOn(context.Background(), person, garment)
		if err != nil {
			t.Fatalf("TryOn() error = %v", err)
		}
		if !result.HasImage {
			t.Errorf("HasImage = false, want true")
		}
		if result.ImageBase64 != "Zm9vYmFy" {
			t.Errorf("ImageBase64 = %q, want Zm9vYmFy", result.ImageBase64)
		}
		if result.Raw["status"] != "ok" {
			t.Errorf("Raw status = %v, want ok", result.Raw["status"])
		}
	})

	t.Run("success without image", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{
				"status": "processing_failed",
				"detail": "garment could not be segmented",
			})
		}))
		defer server.Close()

		service := newTestService(server.URL, 5*time.Second)
		result, err := service.TryOn(context.Background(), person, garment)
		if err != nil {
			t.Fatalf("TryOn() error = %v", err)
		}
		if result.HasImage {
			t.Errorf("HasImage = true, want false")
		}
		if result.Raw["detail"] != "garment could not be segmented" {
			t.Errorf("raw payload not relayed: %v", result.Raw)
		}
	})

	t.Run("image field present but status not ok", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{
				"status":       "degraded",
				"image_base64": "Zm9vYmFy",
			})
		}))
		defer server.Close()

		service := newTestService(server.URL, 5*time.Second)
		result, err := service.TryOn(context.Background(), person, garment)
		if err != nil {
			t.Fatalf("TryOn() error = %v", err)
		}
		if result.HasImage {
			t.Errorf("HasImage = true for non-ok status, want false")
		}
	})

	t.Run("upstream non-200", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model overloaded", http.StatusServiceUnavailable)
		}))
		defer server.Close()

		service := newTestService(server.URL, 5*time.Second)
		_, err := service.TryOn(context.Background(), person, garment)

		var upstreamErr *UpstreamError
		if !errors.As(err, &upstreamErr) {
			t.Fatalf("TryOn() error = %v, want *UpstreamError", err)
		}
		if upstreamErr.Kind != KindExternalService {
			t.Errorf("Kind = %v, want %v", upstreamErr.Kind, KindExternalService)
		}
		if upstreamErr.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("StatusCode = %d, want 503", upstreamErr.StatusCode)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(300 * time.Millisecond)
			json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
		}))
		defer server.Close()

		service := newTestService(server.URL, 50*time.Millisecond)
		_, err := service.TryOn(context.Background(), person, garment)

		var upstreamErr *UpstreamError
		if !errors.As(err, &upstreamErr) {
			t.Fatalf("TryOn() error = %v, want *UpstreamError", err)
		}
		if upstreamErr.Kind != KindTimeout {
			t.Errorf("Kind = %v, want %v", upstreamErr.Kind, KindTimeout)
		}
	})

	t.Run("connection refused", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := server.URL
		server.Close()

		service := newTestService(url, 5*time.Second)
		_, err := service.TryOn(context.Background(), person, garment)

		var upstreamErr *UpstreamError
		if !errors.As(err, &upstreamErr) {
			t.Fatalf("TryOn() error = %v, want *UpstreamError", err)
		}
		if upstreamErr.Kind != KindUnavailable {
			t.Errorf("Kind = %v, want %v", upstreamErr.Kind, KindUnavailable)
		}
	})

	t.Run("invalid upstream JSON", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not-json"))
		}))
		defer server.Close()

		service := newTestService(server.URL, 5*time.Second)
		_, err := service.TryOn(context.Background(), person, garment)

		var upstreamErr *UpstreamError
		if !errors.As(err, &upstreamErr) {
			t.Fatalf("TryOn() error = %v, want *UpstreamError", err)
		}
		if upstreamErr.Kind != KindExternalService {
			t.Errorf("Kind = %v, want %v", upstreamErr.Kind, KindExternalService)
		}
	})
}
