package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/SigNoz/storefront-api/internal/auth"
	"github.com/SigNoz/storefront-api/internal/db"
	"github.com/SigNoz/storefront-api/internal/metrics"
	"github.com/SigNoz/storefront-api/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const userColumns = "id, name, email, password_hash, is_admin, is_active, created_at, updated_at"

// UserService handles user-related operations
type UserService struct {
	db      *db.DB
	metrics *metrics.AppMetrics
	tokens  *auth.TokenManager
}

// NewUserService creates a new user service
func NewUserService(db *db.DB, metrics *metrics.AppMetrics, tokens *auth.TokenManager) *UserService {
	return &UserService{
		db:      db,
		metrics: metrics,
		tokens:  tokens,
	}
}

func scanUser(row rowScanner) (*models.User, error) {
	var u models.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.IsAdmin, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an account and returns a token for it
func (s *UserService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	user, err := s.CreateUser(ctx, req.Name, req.Email, req.Password, false)
	if err != nil {
		return nil, err
	}
	return s.issue(user)
}

// CreateUser inserts a user with a hashed password
func (s *UserService) CreateUser(ctx context.Context, name, email, password string, isAdmin bool) (*models.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &models.User{
		Name:         strings.TrimSpace(name),
		Email:        normalizeEmail(email),
		PasswordHash: hash,
		IsAdmin:      isAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	start := time.Now()
	query := `INSERT INTO users (name, email, password_hash, is_admin, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	result, err := s.db.ExecContext(ctx, query, user.Name, user.Email, user.PasswordHash, user.IsAdmin, user.IsActive, user.CreatedAt, user.UpdatedAt)
	s.metrics.RecordDBQuery(ctx, "INSERT", "users", query, start, err == nil)
	if err != nil {
		if db.IsDuplicateKey(err) {
			return nil, ruleError(ErrDuplicate, "User already exists with this email")
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	user.ID, err = result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get user ID: %w", err)
	}
	return user, nil
}

// Login exchanges credentials for a token
func (s *UserService) Login(ctx context.Context, req models.LoginRequest) (*models.AuthResponse, error) {
	user, err := s.GetUserByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err != nil || !user.IsActive || !auth.CheckPassword(user.PasswordHash, req.Password) {
		s.recordAuthFailure(ctx, "login")
		return nil, ruleError(ErrInvalidCredentials, "Invalid credentials")
	}
	return s.issue(user)
}

func (s *UserService) issue(user *models.User) (*models.AuthResponse, error) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &models.AuthResponse{Token: token, User: user}, nil
}

// Authenticate resolves a bearer token to an active user.
// Every failure is reported as auth.ErrInvalidToken.
func (s *UserService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	userID, err := s.tokens.Parse(token)
	if err != nil {
		s.recordAuthFailure(ctx, "token")
		return nil, err
	}

	user, err := s.GetUser(ctx, userID)
	if errors.Is(err, ErrNotFound) || (err == nil && !user.IsActive) {
		s.recordAuthFailure(ctx, "inactive_user")
		return nil, fmt.Errorf("%w: user %d not found or inactive", auth.ErrInvalidToken, userID)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetUser returns a user by ID
func (s *UserService) GetUser(ctx context.Context, id int64) (*models.User, error) {
	start := time.Now()
	query := "SELECT " + userColumns + " FROM users WHERE id = ?"
	user, err := scanUser(s.db.QueryRowContext(ctx, query, id))
	s.metrics.RecordDBQuery(ctx, "SELECT", "users", query, start, err == nil || errors.Is(err, sql.ErrNoRows))

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetUserByEmail returns a user by email
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	start := time.Now()
	query := "SELECT " + userColumns + " FROM users WHERE email = ?"
	user, err := scanUser(s.db.QueryRowContext(ctx, query, normalizeEmail(email)))
	s.metrics.RecordDBQuery(ctx, "SELECT", "users", query, start, err == nil || errors.Is(err, sql.ErrNoRows))

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", email, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetProfile returns the user with the ids of the orders they own, newest first
func (s *UserService) GetProfile(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	query := "SELECT id FROM orders WHERE user_id = ? ORDER BY created_at DESC, id DESC"
	rows, err := s.db.QueryContext(ctx, query, id)
	s.metrics.RecordDBQuery(ctx, "SELECT", "orders", query, start, err == nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list user orders: %w", err)
	}
	defer rows.Close()

	user.OrderIDs = []int64{}
	for rows.Next() {
		var orderID int64
		if err := rows.Scan(&orderID); err != nil {
			return nil, fmt.Errorf("failed to scan order id: %w", err)
		}
		user.OrderIDs = append(user.OrderIDs, orderID)
	}
	return user, rows.Err()
}

// EnsureUser creates the account if the email is unknown. Existing accounts get the
// given admin flag and are reactivated; their password is left as is.
func (s *UserService) EnsureUser(ctx context.Context, name, email, password string, isAdmin bool) (*models.User, bool, error) {
	existing, err := s.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		user, err := s.CreateUser(ctx, name, email, password, isAdmin)
		return user, true, err
	}
	if err != nil {
		return nil, false, err
	}

	start := time.Now()
	query := "UPDATE users SET is_admin = ?, is_active = ?, updated_at = ? WHERE id = ?"
	_, err = s.db.ExecContext(ctx, query, isAdmin, true, time.Now().UTC(), existing.ID)
	s.metrics.RecordDBQuery(ctx, "UPDATE", "users", query, start, err == nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to update user: %w", err)
	}

	existing.IsAdmin = isAdmin
	existing.IsActive = true
	log.Printf("[AUTH] Existing user updated: id=%d admin=%t", existing.ID, isAdmin)
	return existing, false, nil
}

// SetActive enables or disables an account
func (s *UserService) SetActive(ctx context.Context, id int64, active bool) error {
	start := time.Now()
	query := "UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?"
	result, err := s.db.ExecContext(ctx, query, active, time.Now().UTC(), id)
	s.metrics.RecordDBQuery(ctx, "UPDATE", "users", query, start, err == nil)
	if err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *UserService) recordAuthFailure(ctx context.Context, reason string) {
	s.metrics.AuthFailures.Add(ctx, 1, metric.WithAttributes(s.metrics.WithServiceName([]attribute.KeyValue{
		attribute.String("reason", reason),
	})...))
}
