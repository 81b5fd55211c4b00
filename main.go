package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"vton-proxy-server/modules/common/config"
	"vton-proxy-server/modules/common/database"
	redisClient "vton-proxy-server/modules/common/redis"
	"vton-proxy-server/modules/common/storage"
	"vton-proxy-server/modules/events"
	geminiProvider "vton-proxy-server/modules/submodule/gemini"
	"vton-proxy-server/modules/tryon"
)

var startTime = time.Now()

// CORS 헤더 추가
func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-Id")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// 헬스 체크 엔드포인트
func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "vton-proxy-server",
	})
}

// 서버 메트릭 조회 엔드포인트
func metricsHandler(handler *tryon.Handler, hub *events.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := handler.GetStats()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"server": map[string]interface{}{
				"uptime":    time.Since(startTime).String(),
				"startTime": startTime,
			},
			"tryOn": map[string]interface{}{
				"total":     stats.Total,
				"persisted": stats.Persisted,
				"noImage":   stats.NoImage,
				"failed":    stats.Failed,
			},
			"events": map[string]interface{}{
				"connectedClients": hub.ClientCount(),
			},
		})
	}
}

// buildProvider - try-on 프로바이더 선택
// TRYON_SERVICE_URL이 있으면 외부 HTTP 서비스, 없으면 Gemini fallback
func buildProvider(cfg *config.Config) tryon.Provider {
	if cfg.TryOnServiceURL != "" {
		if service := tryon.NewService(cfg); service != nil {
			return service
		}
	}

	if service := geminiProvider.NewService(cfg); service != nil {
		return service
	}

	return nil
}

func main() {
	// 환경변수 로드
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}

	// Database 클라이언트 초기화
	dbClient := database.NewClient()
	if dbClient == nil {
		log.Fatal("❌ Failed to initialize Database client")
	}

	// Try-On 프로바이더 선택
	provider := buildProvider(cfg)
	if provider == nil {
		log.Fatal("❌ No try-on provider available - check TRYON_SERVICE_URL or GEMINI_API_KEYS")
	}

	// 이벤트 허브 + Redis pub/sub (Redis 미설정 시 로컬 브로드캐스트만)
	hub := events.NewHub()
	rdb := redisClient.Connect(cfg)
	publisher := events.NewPublisher(rdb, hub)
	if rdb != nil {
		go events.StartSubscriber(context.Background(), rdb, hub)
	}

	// Try-On 핸들러
	handler := tryon.NewHandler(provider, dbClient, publisher, storage.NewClient())

	// 라우터 설정
	r := mux.NewRouter()

	// CORS 미들웨어 적용
	r.Use(enableCORS)

	// 라우트 설정
	r.HandleFunc("/", healthCheck).Methods("GET")
	r.HandleFunc("/health", healthCheck).Methods("GET")
	r.HandleFunc("/metrics", metricsHandler(handler, hub)).Methods("GET")
	r.HandleFunc("/ws/try-on", hub.HandleWebSocket)
	handler.RegisterRoutes(r)

	log.Printf("🚀 Virtual Try-On Proxy Server starting on port %s", cfg.Port)
	log.Printf("🎽 Try-On endpoint: http://localhost:%s/api/virtual-try-on/", cfg.Port)
	log.Printf("📡 Event feed: ws://localhost:%s/ws/try-on", cfg.Port)
	log.Printf("❤️  Health check: http://localhost:%s/health", cfg.Port)
	log.Printf("📊 Metrics: http://localhost:%s/metrics", cfg.Port)

	// 서버 시작
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
