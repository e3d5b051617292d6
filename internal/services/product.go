package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/SigNoz/storefront-api/internal/db"
	"github.com/SigNoz/storefront-api/internal/metrics"
	"github.com/SigNoz/storefront-api/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Catalog listing defaults
const (
	DefaultPageLimit = 12
	MaxPageLimit     = 100
)

const productColumns = `id, name, description, price, original_price, category, tags, sizes, colors, images,
	stock, rating_average, rating_count, is_active, is_featured, sales_count, created_at, updated_at`

// sort key -> column and default direction
var productSorts = map[string]struct {
	column string
	order  string
}{
	"name":   {"name", "asc"},
	"price":  {"price", "asc"},
	"rating": {"rating_average", "desc"},
	"newest": {"created_at", "desc"},
	"sales":  {"sales_count", "desc"},
}

// ProductCache holds cached products
type ProductCache struct {
	mu    sync.RWMutex
	ttl   time.Duration
	items map[int64]cachedProduct
}

type cachedProduct struct {
	product models.Product
	expires time.Time
}

// NewProductCache creates a cache whose entries live for ttl
func NewProductCache(ttl time.Duration) *ProductCache {
	return &ProductCache{
		ttl:   ttl,
		items: make(map[int64]cachedProduct),
	}
}

func (c *ProductCache) get(id int64) (models.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cached, exists := c.items[id]
	if !exists || time.Now().After(cached.expires) {
		return models.Product{}, false
	}
	return cached.product, true
}

func (c *ProductCache) set(p models.Product) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.items[p.ID] = cachedProduct{product: p, expires: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

// Invalidate drops the given products from the cache
func (c *ProductCache) Invalidate(ids ...int64) {
	c.mu.Lock()
	for _, id := range ids {
		delete(c.items, id)
	}
	c.mu.Unlock()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

// querier is satisfied by *db.DB and *sql.Tx
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ProductService handles product-related operations
type ProductService struct {
	db      *db.DB
	metrics *metrics.AppMetrics
	cache   *ProductCache
}

// NewProductService creates a new product service
func NewProductService(db *db.DB, metrics *metrics.AppMetrics, cacheTTL time.Duration) *ProductService {
	return &ProductService{
		db:      db,
		metrics: metrics,
		cache:   NewProductCache(cacheTTL),
	}
}

func scanProduct(row rowScanner) (*models.Product, error) {
	var p models.Product
	var originalPrice sql.NullFloat64
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &originalPrice, &p.Category,
		&p.Tags, &p.Sizes, &p.Colors, &p.Images,
		&p.Stock, &p.Rating.Average, &p.Rating.Count, &p.IsActive, &p.IsFeatured, &p.SalesCount,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if originalPrice.Valid {
		p.OriginalPrice = &originalPrice.Float64
	}
	normalizeProduct(&p)
	return &p, nil
}

func normalizeProduct(p *models.Product) {
	if p.Tags == nil {
		p.Tags = models.StringList{}
	}
	if p.Sizes == nil {
		p.Sizes = models.SizeList{}
	}
	if p.Colors == nil {
		p.Colors = models.StringList{}
	}
	if p.Images == nil {
		p.Images = models.ImageList{}
	}
}

// NormalizeFilter applies paging and sort defaults
func NormalizeFilter(f models.ProductFilter) models.ProductFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultPageLimit
	}
	if f.Limit > MaxPageLimit {
		f.Limit = MaxPageLimit
	}
	sort, ok := productSorts[f.Sort]
	if !ok {
		f.Sort = "name"
		sort = productSorts["name"]
	}
	if f.Order != "asc" && f.Order != "desc" {
		f.Order = sort.order
	}
	return f
}

// ListProducts returns one page of active products matching the filter
func (s *ProductService) ListProducts(ctx context.Context, filter models.ProductFilter) (*models.ProductPage, error) {
	f := NormalizeFilter(filter)

	where := []string{"is_active = ?"}
	args := []any{true}

	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if len(f.Tags) > 0 {
		var tagClauses []string
		for _, tag := range f.Tags {
			tagClauses = append(tagClauses, "tags LIKE ? ESCAPE '!'")
			args = append(args, `%"`+escapeLike(tag)+`"%`)
		}
		where = append(where, "("+strings.Join(tagClauses, " OR ")+")")
	}
	if f.MinPrice != nil {
		where = append(where, "price >= ?")
		args = append(args, *f.MinPrice)
	}
	if f.MaxPrice != nil {
		where = append(where, "price <= ?")
		args = append(args, *f.MaxPrice)
	}
	if f.Search != "" {
		term := "%" + escapeLike(f.Search) + "%"
		where = append(where, "(name LIKE ? ESCAPE '!' OR description LIKE ? ESCAPE '!' OR tags LIKE ? ESCAPE '!')")
		args = append(args, term, term, term)
	}
	if f.Featured != nil {
		where = append(where, "is_featured = ?")
		args = append(args, *f.Featured)
	}
	whereSQL := strings.Join(where, " AND ")

	start := time.Now()
	countQuery := "SELECT COUNT(*) FROM products WHERE " + whereSQL
	var total int64
	err := s.db.QueryRowContext(ctx, countQuery, args...).Scan(&total)
	s.metrics.RecordDBQuery(ctx, "SELECT", "products", countQuery, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}
	f.Page = clampPage(f.Page, f.Limit, total)

	sort := productSorts[f.Sort]
	query := fmt.Sprintf("SELECT %s FROM products WHERE %s ORDER BY %s %s, id ASC LIMIT ? OFFSET ?",
		productColumns, whereSQL, sort.column, strings.ToUpper(f.Order))
	pageArgs := append(append([]any{}, args...), f.Limit, (f.Page-1)*f.Limit)

	start = time.Now()
	rows, err := s.db.QueryContext(ctx, query, pageArgs...)
	s.metrics.RecordDBQuery(ctx, "SELECT", "products", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}

	return &models.ProductPage{
		Products:   products,
		Pagination: models.NewPagination(f.Page, f.Limit, total),
	}, nil
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// escapeLike makes user input match literally inside a LIKE pattern using ESCAPE '!'.
// '!' is used since MySQL treats a backslash in a string literal as an escape.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// clampPage caps page at the first empty page after the last one so the offset stays in range
func clampPage(page, limit int, total int64) int {
	beyond := (total+int64(limit)-1)/int64(limit) + 1
	if int64(page) > beyond {
		return int(beyond)
	}
	return page
}

// ListByCategory lists active products of one category
func (s *ProductService) ListByCategory(ctx context.Context, category string, filter models.ProductFilter) (*models.ProductPage, error) {
	if !models.IsValidCategory(category) {
		return nil, ruleError(ErrInvalidInput, "Invalid category. Must be one of: %s", strings.Join(models.Categories, ", "))
	}
	filter.Category = category
	return s.ListProducts(ctx, filter)
}

// SearchProducts lists active products whose name, description or tags contain term
func (s *ProductService) SearchProducts(ctx context.Context, term string, filter models.ProductFilter) (*models.ProductPage, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, ruleError(ErrInvalidInput, "Search term is required")
	}
	filter.Search = term
	return s.ListProducts(ctx, filter)
}

// GetProduct returns an active product by ID
func (s *ProductService) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	p, err := s.getCached(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}

	viewAttrs := s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.Int64("product_id", id),
		attribute.String("product_category", p.Category),
	})
	s.metrics.ProductsViewed.Add(ctx, 1, metric.WithAttributes(viewAttrs...))

	return p, nil
}

// getCached reads a product regardless of its active flag, through the cache
func (s *ProductService) getCached(ctx context.Context, id int64) (*models.Product, error) {
	if cached, ok := s.cache.get(id); ok {
		s.metrics.CacheHits.Add(ctx, 1, metric.WithAttributes(s.metrics.WithServiceName(nil)...))
		return &cached, nil
	}
	s.metrics.CacheMisses.Add(ctx, 1, metric.WithAttributes(s.metrics.WithServiceName(nil)...))

	p, err := s.loadProduct(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	s.cache.set(*p)
	return p, nil
}

func (s *ProductService) loadProduct(ctx context.Context, q querier, id int64) (*models.Product, error) {
	start := time.Now()
	query := "SELECT " + productColumns + " FROM products WHERE id = ?"
	p, err := scanProduct(q.QueryRowContext(ctx, query, id))
	s.metrics.RecordDBQuery(ctx, "SELECT", "products", query, start, err == nil || errors.Is(err, sql.ErrNoRows))

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

// CreateProduct inserts a new active product
func (s *ProductService) CreateProduct(ctx context.Context, req models.CreateProductRequest) (*models.Product, error) {
	now := time.Now().UTC()
	p := models.Product{
		Name:          strings.TrimSpace(req.Name),
		Description:   req.Description,
		Price:         req.Price,
		OriginalPrice: req.OriginalPrice,
		Category:      req.Category,
		Tags:          models.StringList(req.Tags),
		Sizes:         models.SizeList(req.Sizes),
		Colors:        models.StringList(req.Colors),
		Images:        models.ImageList(req.Images),
		Stock:         req.Stock,
		IsActive:      true,
		IsFeatured:    req.IsFeatured,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	normalizeProduct(&p)

	start := time.Now()
	query := `INSERT INTO products (name, description, price, original_price, category, tags, sizes, colors, images,
		stock, rating_average, rating_count, is_active, is_featured, sales_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, ?, ?, 0, ?, ?)`
	result, err := s.db.ExecContext(ctx, query, p.Name, p.Description, p.Price, p.OriginalPrice, p.Category,
		p.Tags, p.Sizes, p.Colors, p.Images, p.Stock, p.IsActive, p.IsFeatured, p.CreatedAt, p.UpdatedAt)
	s.metrics.RecordDBQuery(ctx, "INSERT", "products", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	p.ID, err = result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get product ID: %w", err)
	}

	s.recordInventory(ctx, p.ID, p.Category, p.Stock)
	log.Printf("[CATALOG] Product created: id=%d name=%q stock=%d", p.ID, p.Name, p.Stock)
	return &p, nil
}

// UpdateProduct applies a partial update. Inactive products can be updated and reactivated.
func (s *ProductService) UpdateProduct(ctx context.Context, id int64, req models.UpdateProductRequest) (*models.Product, error) {
	p, err := s.loadProduct(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		p.Description = *req.Description
	}
	if req.Price != nil {
		p.Price = *req.Price
	}
	if req.OriginalPrice != nil {
		p.OriginalPrice = req.OriginalPrice
	}
	if req.Category != nil {
		p.Category = *req.Category
	}
	if req.Tags != nil {
		p.Tags = models.StringList(*req.Tags)
	}
	if req.Sizes != nil {
		p.Sizes = models.SizeList(*req.Sizes)
	}
	if req.Colors != nil {
		p.Colors = models.StringList(*req.Colors)
	}
	if req.Images != nil {
		p.Images = models.ImageList(*req.Images)
	}
	if req.Stock != nil {
		p.Stock = *req.Stock
	}
	if req.IsFeatured != nil {
		p.IsFeatured = *req.IsFeatured
	}
	if req.IsActive != nil {
		p.IsActive = *req.IsActive
	}
	p.UpdatedAt = time.Now().UTC()
	normalizeProduct(p)

	start := time.Now()
	query := `UPDATE products SET name = ?, description = ?, price = ?, original_price = ?, category = ?,
		tags = ?, sizes = ?, colors = ?, images = ?, stock = ?, is_active = ?, is_featured = ?, updated_at = ?
		WHERE id = ?`
	_, err = s.db.ExecContext(ctx, query, p.Name, p.Description, p.Price, p.OriginalPrice, p.Category,
		p.Tags, p.Sizes, p.Colors, p.Images, p.Stock, p.IsActive, p.IsFeatured, p.UpdatedAt, id)
	s.metrics.RecordDBQuery(ctx, "UPDATE", "products", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	s.cache.Invalidate(id)
	s.recordInventory(ctx, p.ID, p.Category, p.Stock)
	return p, nil
}

// DeleteProduct deactivates a product. Orders keep referencing it.
func (s *ProductService) DeleteProduct(ctx context.Context, id int64) error {
	start := time.Now()
	query := "UPDATE products SET is_active = ?, updated_at = ? WHERE id = ?"
	result, err := s.db.ExecContext(ctx, query, false, time.Now().UTC(), id)
	s.metrics.RecordDBQuery(ctx, "UPDATE", "products", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("product %d: %w", id, ErrNotFound)
	}

	s.cache.Invalidate(id)
	log.Printf("[CATALOG] Product deactivated: id=%d", id)
	return nil
}

// UpsertByName creates the product, or updates the existing product with the same name
func (s *ProductService) UpsertByName(ctx context.Context, req models.CreateProductRequest) (*models.Product, bool, error) {
	start := time.Now()
	query := "SELECT id FROM products WHERE name = ? ORDER BY id LIMIT 1"
	var id int64
	err := s.db.QueryRowContext(ctx, query, strings.TrimSpace(req.Name)).Scan(&id)
	s.metrics.RecordDBQuery(ctx, "SELECT", "products", query, start, err == nil || errors.Is(err, sql.ErrNoRows))

	if errors.Is(err, sql.ErrNoRows) {
		p, err := s.CreateProduct(ctx, req)
		return p, true, err
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up product: %w", err)
	}

	active := true
	p, err := s.UpdateProduct(ctx, id, models.UpdateProductRequest{
		Name:          &req.Name,
		Description:   &req.Description,
		Price:         &req.Price,
		OriginalPrice: req.OriginalPrice,
		Category:      &req.Category,
		Tags:          &req.Tags,
		Sizes:         &req.Sizes,
		Colors:        &req.Colors,
		Images:        &req.Images,
		Stock:         &req.Stock,
		IsFeatured:    &req.IsFeatured,
		IsActive:      &active,
	})
	return p, false, err
}

// InvalidateCache drops products whose stock changed outside this service
func (s *ProductService) InvalidateCache(ids ...int64) {
	s.cache.Invalidate(ids...)
}

func (s *ProductService) recordInventory(ctx context.Context, id int64, category string, stock int) {
	attrs := s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.Int64("product_id", id),
		attribute.String("product_category", category),
	})
	s.metrics.InventoryLevel.Record(ctx, int64(stock), metric.WithAttributes(attrs...))
}
