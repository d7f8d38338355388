package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/reviewpulse/backend/internal/models"
)

// PgBrandStore is the Postgres implementation of BrandStore
type PgBrandStore struct {
	db *pgxpool.Pool
}

// NewBrandStore creates a Postgres-backed brand store
func NewBrandStore(db *pgxpool.Pool) *PgBrandStore {
	return &PgBrandStore{db: db}
}

// Create inserts a new brand
func (s *PgBrandStore) Create(ctx context.Context, brand *models.Brand) error {
	if brand.ID == uuid.Nil {
		brand.ID = uuid.New()
	}
	if brand.Timezone == "" {
		brand.Timezone = "UTC"
	}
	err := s.db.QueryRow(ctx, `
		INSERT INTO brands (id, owner_id, name, timezone)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`, brand.ID, brand.OwnerID, brand.Name, brand.Timezone,
	).Scan(&brand.CreatedAt, &brand.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create brand: %w", err)
	}
	return nil
}

// GetByID retrieves a brand by id
func (s *PgBrandStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Brand, error) {
	var b models.Brand
	err := s.db.QueryRow(ctx, `
		SELECT id, owner_id, name, timezone, created_at, updated_at
		FROM brands WHERE id = $1
	`, id).Scan(&b.ID, &b.OwnerID, &b.Name, &b.Timezone, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get brand: %w", err)
	}
	return &b, nil
}

// ListByOwner retrieves all brands owned by a user
func (s *PgBrandStore) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]models.Brand, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, owner_id, name, timezone, created_at, updated_at
		FROM brands WHERE owner_id = $1 ORDER BY created_at
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query brands: %w", err)
	}
	defer rows.Close()

	var brands []models.Brand
	for rows.Next() {
		var b models.Brand
		if err := rows.Scan(&b.ID, &b.OwnerID, &b.Name, &b.Timezone, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan brand: %w", err)
		}
		brands = append(brands, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating brands: %w", err)
	}
	return brands, nil
}
