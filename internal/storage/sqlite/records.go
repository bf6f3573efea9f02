package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/models"
	"github.com/vinayKumarReddy-mangalampenta/project-cost-estimater/internal/storage"
)

var maxCents = decimal.NewFromInt(math.MaxInt64)

// Amounts are stored as integer cents. toCents refuses anything that would
// not read back as d.
func toCents(d decimal.Decimal) (int64, error) {
	cents := d.Shift(2)
	if !cents.IsInteger() || !cents.IsPositive() || cents.GreaterThan(maxCents) {
		return 0, fmt.Errorf("%w: %s", storage.ErrInvalidAmount, d)
	}
	return cents.IntPart(), nil
}

func fromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// ListRecords returns the owner's records of one collection in creation order.
func (s *SQLiteStore) ListRecords(ctx context.Context, ownerID string, coll models.Collection) ([]models.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, label, amount_cents, created_at
		FROM records
		WHERE owner_id = ? AND collection = ?
		ORDER BY seq`,
		ownerID, string(coll),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	records := []models.Record{}
	for rows.Next() {
		var (
			r     models.Record
			cents int64
		)
		if err := rows.Scan(&r.ID, &r.Label, &cents, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		r.Amount = fromCents(cents)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}

	return records, nil
}

// CreateRecord inserts a record with a generated ID and creation timestamp.
func (s *SQLiteStore) CreateRecord(ctx context.Context, ownerID string, coll models.Collection, draft models.Draft) (models.Record, error) {
	cents, err := toCents(draft.Amount)
	if err != nil {
		return models.Record{}, err
	}
	record := models.Record{
		ID:        uuid.New().String(),
		Label:     draft.Label,
		Amount:    fromCents(cents),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO records (id, owner_id, collection, label, amount_cents, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		record.ID, ownerID, string(coll), record.Label, cents, record.CreatedAt,
	)
	if err != nil {
		return models.Record{}, fmt.Errorf("failed to insert record: %w", err)
	}

	return record, nil
}

// UpdateRecord overwrites the patched fields and returns the updated record.
func (s *SQLiteStore) UpdateRecord(ctx context.Context, ownerID string, coll models.Collection, id string, patch models.Patch) (models.Record, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Record{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		current models.Record
		cents   int64
	)
	err = tx.QueryRowContext(ctx,
		`SELECT id, label, amount_cents, created_at
		FROM records
		WHERE owner_id = ? AND collection = ? AND id = ?`,
		ownerID, string(coll), id,
	).Scan(&current.ID, &current.Label, &cents, &current.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Record{}, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return models.Record{}, fmt.Errorf("failed to get record: %w", err)
	}
	current.Amount = fromCents(cents)

	updated := patch.Apply(current)
	if cents, err = toCents(updated.Amount); err != nil {
		return models.Record{}, err
	}
	updated.Amount = fromCents(cents)

	_, err = tx.ExecContext(ctx,
		`UPDATE records SET label = ?, amount_cents = ?
		WHERE owner_id = ? AND collection = ? AND id = ?`,
		updated.Label, cents, ownerID, string(coll), id,
	)
	if err != nil {
		return models.Record{}, fmt.Errorf("failed to update record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.Record{}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return updated, nil
}

// DeleteRecord removes a record if it exists.
func (s *SQLiteStore) DeleteRecord(ctx context.Context, ownerID string, coll models.Collection, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM records WHERE owner_id = ? AND collection = ? AND id = ?`,
		ownerID, string(coll), id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}
