package model

import (
	"encoding/json"
	"time"
)

// Book represents a row in the `books` table. Categories and Authors are
// JSON array columns.
type Book struct {
	ID            uint64          `json:"id"`
	PublicID      string          `json:"uuid"`
	Title         string          `json:"title"`
	Slug          string          `json:"slug"`
	Description   *string         `json:"description"`
	ISBN          *string         `json:"isbn"`
	Publisher     *string         `json:"publisher"`
	PublishedDate *time.Time      `json:"published_date"`
	Pages         *int            `json:"pages"`
	Language      string          `json:"language"`
	Price         *float64        `json:"price"`
	StockQuantity int             `json:"stock_quantity"`
	CoverImage    *string         `json:"cover_image"`
	CoverImageURL *string         `json:"cover_image_url"`
	Categories    json.RawMessage `json:"categories"`
	Authors       json.RawMessage `json:"authors"`
	Rating        float64         `json:"rating"`
	RatingCount   int             `json:"rating_count"`
	UserID        uint64          `json:"user_id"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	DeletedAt     *time.Time      `json:"deleted_at"`
}
