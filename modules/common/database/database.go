package database

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/supabase-community/postgrest-go"
	"github.com/supabase-community/supabase-go"
	"vton-proxy-server/modules/common/config"
	"vton-proxy-server/modules/common/model"
)

const generatedImagesTable = "vton_generated_images"

type Client struct {
	supabase *supabase.Client
}

// NewClient - Database 클라이언트 생성
func NewClient() *Client {
	cfg := config.GetConfig()

	supabaseClient, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseServiceKey, &supabase.ClientOptions{})
	if err != nil {
		log.Printf("❌ Failed to create Supabase client: %v", err)
		return nil
	}

	return &Client{
		supabase: supabaseClient,
	}
}

// InsertGeneratedImage - 생성된 이미지 레코드 저장
// id와 created_at은 DB default로 할당되며, insert된 row를 돌려받아 id를 추출한다
func (c *Client) InsertGeneratedImage(ctx context.Context, productID string, userID *string, imageBase64 string, previewPath *string) (string, error) {
	log.Printf("💾 Inserting generated image for product: %s", productID)

	insertData := map[string]interface{}{
		"product_id":   productID,
		"user_id":      userID,
		"image_base64": imageBase64,
	}
	if previewPath != nil && *previewPath != "" {
		insertData["preview_path"] = *previewPath
	}

	data, _, err := c.supabase.From(generatedImagesTable).
		Insert(insertData, false, "", "", "").
		Execute()

	if err != nil {
		return "", fmt.Errorf("failed to insert generated image: %w", err)
	}

	// insert된 row에서 id 추출
	var rows []model.GeneratedImage
	if err := json.Unmarshal(data, &rows); err != nil {
		return "", fmt.Errorf("failed to parse insert response: %w", err)
	}

	if len(rows) == 0 {
		return "", fmt.Errorf("no generated image row returned")
	}

	log.Printf("✅ Generated image stored: id=%s, product=%s", rows[0].ID, productID)
	return rows[0].ID, nil
}

// FetchImagesByProduct - product_id로 이미지 조회 (최신순)
func (c *Client) FetchImagesByProduct(ctx context.Context, productID string) ([]model.GeneratedImage, error) {
	log.Printf("🔍 Fetching generated images for product: %s", productID)

	data, _, err := c.supabase.From(generatedImagesTable).
		Select("*", "exact", false).
		Eq("product_id", productID).
		Order("created_at", &postgrest.OrderOpts{Ascending: false}).
		Execute()

	if err != nil {
		return nil, fmt.Errorf("failed to query generated images: %w", err)
	}

	var images []model.GeneratedImage
	if err := json.Unmarshal(data, &images); err != nil {
		return nil, fmt.Errorf("failed to parse images response: %w", err)
	}

	log.Printf("✅ Fetched %d generated images for product %s", len(images), productID)
	return images, nil
}
