// Package storage declares what the services need from persistence.
package storage

import (
	"context"
	"errors"

	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/models"
)

var (
	// ErrNotFound is returned when an addressed record does not exist for the owner.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidAmount is returned for an amount the store cannot hold exactly.
	ErrInvalidAmount = errors.New("amount must be a positive number of cents that fits in 64 bits")
)

// Store is implemented by sqlite.SQLiteStore.
type Store interface {
	UserStore
	RecordStore
	Close() error
}

// UserStore persists accounts. Lookups return nil, nil when no user matches.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// RecordStore persists the per-owner record collections.
type RecordStore interface {
	// ListRecords returns every record of the collection in creation order.
	ListRecords(ctx context.Context, ownerID string, coll models.Collection) ([]models.Record, error)

	// CreateRecord stores a new record and returns it with ID and CreatedAt set.
	CreateRecord(ctx context.Context, ownerID string, coll models.Collection, draft models.Draft) (models.Record, error)

	// UpdateRecord applies a partial update.
	// Returns ErrNotFound if the record does not exist.
	UpdateRecord(ctx context.Context, ownerID string, coll models.Collection, id string, patch models.Patch) (models.Record, error)

	// DeleteRecord removes a record. Deleting a missing record is not an error.
	DeleteRecord(ctx context.Context, ownerID string, coll models.Collection, id string) error
}
