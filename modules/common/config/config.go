package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config 구조체 - 모든 환경변수를 담음
type Config struct {
	// Try-On 외부 서비스
	TryOnServiceURL string
	TryOnTimeoutSec int

	// Supabase
	SupabaseURL            string
	SupabaseServiceKey     string
	SupabaseStorageBaseURL string

	// Redis (이벤트 브로드캐스트용, 선택)
	RedisHost     string
	RedisPort     string
	RedisUsername string
	RedisPassword string
	RedisUseTLS   bool

	// Gemini API (외부 서비스 미설정 시 fallback 프로바이더)
	GeminiAPIKeys []string
	GeminiModel   string

	// Server
	Port string
}

var globalConfig *Config

// LoadConfig - 환경변수 로드
func LoadConfig() (*Config, error) {
	// .env 파일 로드 (있으면)
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  .env file not found, using environment variables")
	}

	// Redis UseTLS 파싱
	useTLS := false // 기본값
	if tlsStr := os.Getenv("REDIS_USE_TLS"); tlsStr != "" {
		if parsed, err := strconv.ParseBool(tlsStr); err == nil {
			useTLS = parsed
		}
	}

	// Try-On 타임아웃 파싱 (기본 60초)
	timeoutSec := 60
	if timeoutStr := os.Getenv("TRYON_TIMEOUT_SEC"); timeoutStr != "" {
		if parsed, err := strconv.Atoi(timeoutStr); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}

	// Gemini API 키 파싱 (콤마 구분, 여러 키 지원)
	var geminiKeys []string
	for _, key := range strings.Split(os.Getenv("GEMINI_API_KEYS"), ",") {
		key = strings.TrimSpace(key)
		if key != "" {
			geminiKeys = append(geminiKeys, key)
		}
	}
	if len(geminiKeys) == 0 {
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			geminiKeys = []string{key}
		}
	}

	globalConfig = &Config{
		// Try-On 외부 서비스
		TryOnServiceURL: getEnv("TRYON_SERVICE_URL", ""),
		TryOnTimeoutSec: timeoutSec,

		// Supabase
		SupabaseURL:            getEnv("SUPABASE_URL", ""),
		SupabaseServiceKey:     getEnv("SUPABASE_SERVICE_KEY", ""),
		SupabaseStorageBaseURL: getEnv("SUPABASE_STORAGE_BASE_URL", ""),

		// Redis
		RedisHost:     getEnv("REDIS_HOST", ""),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisUsername: getEnv("REDIS_USERNAME", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisUseTLS:   useTLS,

		// Gemini
		GeminiAPIKeys: geminiKeys,
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-2.5-flash-image"),

		// Server
		Port: getEnv("PORT", "8080"),
	}

	// 필수 환경변수 검증
	if err := globalConfig.validate(); err != nil {
		return nil, err
	}

	log.Println("✅ Configuration loaded successfully")
	if globalConfig.TryOnServiceURL != "" {
		log.Printf("   Try-On service: %s (timeout: %ds)", globalConfig.TryOnServiceURL, globalConfig.TryOnTimeoutSec)
	} else {
		log.Printf("   Try-On provider: Gemini fallback (%s, %d keys)", globalConfig.GeminiModel, len(globalConfig.GeminiAPIKeys))
	}
	log.Printf("   Supabase: %s", globalConfig.SupabaseURL)
	if globalConfig.RedisHost != "" {
		log.Printf("   Redis: %s (TLS: %v)", globalConfig.GetRedisAddr(), globalConfig.RedisUseTLS)
	} else {
		log.Printf("   Redis: disabled (events stay in-process)")
	}

	return globalConfig, nil
}

// GetConfig - 로드된 설정 가져오기
func GetConfig() *Config {
	if globalConfig == nil {
		log.Fatal("❌ Config not loaded. Call LoadConfig() first.")
	}
	return globalConfig
}

// validate - 필수 환경변수 검증
func (c *Config) validate() error {
	if c.SupabaseURL == "" {
		return fmt.Errorf("SUPABASE_URL is required")
	}
	if c.SupabaseServiceKey == "" {
		return fmt.Errorf("SUPABASE_SERVICE_KEY is required")
	}
	if c.TryOnServiceURL == "" && len(c.GeminiAPIKeys) == 0 {
		return fmt.Errorf("either TRYON_SERVICE_URL or GEMINI_API_KEYS is required")
	}
	return nil
}

// getEnv - 환경변수 가져오기 (기본값 지원)
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetRedisAddr - Redis 연결 문자열 생성
func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.RedisHost, c.RedisPort)
}
