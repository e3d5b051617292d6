package models

import "time"

// Product categories accepted by the catalog
const (
	CategoryClothes     = "clothes"
	CategoryShoes       = "shoes"
	CategoryAccessories = "accessories"
)

// Categories lists every valid product category
var Categories = []string{CategoryClothes, CategoryShoes, CategoryAccessories}

// IsValidCategory reports whether c is a known category
func IsValidCategory(c string) bool {
	for _, category := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// SizeStock is the stock available for one size of a product
type SizeStock struct {
	Size  string `json:"size" yaml:"size" validate:"required,max=10"`
	Stock int    `json:"stock" yaml:"stock" validate:"gte=0"`
}

// ProductImage is one image of a product
type ProductImage struct {
	URL       string `json:"url" yaml:"url" validate:"required,url"`
	Alt       string `json:"alt,omitempty" yaml:"alt"`
	IsPrimary bool   `json:"isPrimary" yaml:"isPrimary"`
}

// Rating is the aggregate review score of a product
type Rating struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// Product represents a product in the catalog
type Product struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description"`
	Price         float64    `json:"price"`
	OriginalPrice *float64   `json:"originalPrice,omitempty"`
	Category      string     `json:"category"`
	Tags          StringList `json:"tags"`
	Sizes         SizeList   `json:"sizes"`
	Colors        StringList `json:"colors"`
	Images        ImageList  `json:"images"`
	Stock         int        `json:"stock"`
	Rating        Rating     `json:"rating"`
	IsActive      bool       `json:"isActive"`
	IsFeatured    bool       `json:"isFeatured"`
	SalesCount    int        `json:"salesCount"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// PrimaryImage returns the image flagged primary, or the first image
func (p *Product) PrimaryImage() string {
	for _, img := range p.Images {
		if img.IsPrimary {
			return img.URL
		}
	}
	if len(p.Images) > 0 {
		return p.Images[0].URL
	}
	return ""
}

// ProductSummary is the read-only projection of a product embedded in orders
type ProductSummary struct {
	ID     int64     `json:"id"`
	Name   string    `json:"name"`
	Images ImageList `json:"images"`
}

// ProductFilter holds catalog query parameters
type ProductFilter struct {
	Category string
	Tags     []string
	MinPrice *float64
	MaxPrice *float64
	Search   string
	Featured *bool
	Sort     string // name, price, rating, newest, sales
	Order    string // asc or desc
	Page     int
	Limit    int
}

// Pagination describes one page of a listing
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

// NewPagination computes the page count for total rows
func NewPagination(page, limit int, total int64) Pagination {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

// ProductPage is a paginated product listing
type ProductPage struct {
	Products   []Product  `json:"products"`
	Pagination Pagination `json:"pagination"`
}

// CreateProductRequest represents a request to create a product
type CreateProductRequest struct {
	Name          string         `json:"name" yaml:"name" validate:"required,max=100"`
	Description   string         `json:"description" yaml:"description" validate:"required,max=2000"`
	Price         float64        `json:"price" yaml:"price" validate:"gte=0"`
	OriginalPrice *float64       `json:"originalPrice" yaml:"originalPrice" validate:"omitempty,gte=0"`
	Category      string         `json:"category" yaml:"category" validate:"required,oneof=clothes shoes accessories"`
	Tags          []string       `json:"tags" yaml:"tags" validate:"dive,required,max=30"`
	Sizes         []SizeStock    `json:"sizes" yaml:"sizes" validate:"dive"`
	Colors        []string       `json:"colors" yaml:"colors" validate:"dive,required"`
	Images        []ProductImage `json:"images" yaml:"images" validate:"dive"`
	Stock         int            `json:"stock" yaml:"stock" validate:"gte=0"`
	IsFeatured    bool           `json:"isFeatured" yaml:"isFeatured"`
}

// UpdateProductRequest is a partial product update; nil fields are left unchanged
type UpdateProductRequest struct {
	Name          *string         `json:"name" validate:"omitempty,max=100"`
	Description   *string         `json:"description" validate:"omitempty,max=2000"`
	Price         *float64        `json:"price" validate:"omitempty,gte=0"`
	OriginalPrice *float64        `json:"originalPrice" validate:"omitempty,gte=0"`
	Category      *string         `json:"category" validate:"omitempty,oneof=clothes shoes accessories"`
	Tags          *[]string       `json:"tags"`
	Sizes         *[]SizeStock    `json:"sizes" validate:"omitempty,dive"`
	Colors        *[]string       `json:"colors"`
	Images        *[]ProductImage `json:"images" validate:"omitempty,dive"`
	Stock         *int            `json:"stock" validate:"omitempty,gte=0"`
	IsFeatured    *bool           `json:"isFeatured"`
	IsActive      *bool           `json:"isActive"`
}
