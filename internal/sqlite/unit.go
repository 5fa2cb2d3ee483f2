package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/STS-Engineer/llc-backend/internal/domain/deployment"
	"github.com/STS-Engineer/llc-backend/internal/repository"
)

// UnitStore implements processing unit persistence for SQLite. The
// (llc_id, plant) uniqueness the workflow relies on is enforced by the
// schema, not by the callers.
type UnitStore struct {
	db *DB
}

// NewUnitStore creates a new UnitStore.
func NewUnitStore(db *DB) *UnitStore {
	return &UnitStore{db: db}
}

const unitColumns = `
	id, llc_id, plant, summary, details, attachment_path, submitted_by,
	decision, decided_at, reject_reason, created_at, modified_at`

// Create inserts a processing unit.
func (s *UnitStore) Create(ctx context.Context, unit *deployment.ProcessingUnit) error {
	q := s.db.runner(ctx)

	_, err := q.ExecContext(ctx, `
		INSERT INTO processing_unit (`+unitColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		unit.ID,
		unit.RecordID,
		unit.Plant,
		unit.Summary,
		unit.Details,
		unit.AttachmentPath,
		unit.SubmittedBy,
		unit.Decision,
		unit.DecidedAt,
		unit.RejectReason,
		unit.CreatedAt,
		unit.ModifiedAt,
	)
	if err != nil {
		if cerr := constraintError(err); cerr != nil {
			return cerr
		}
		return fmt.Errorf("failed to create processing unit: %w", err)
	}
	return nil
}

// Get retrieves a processing unit by ID.
func (s *UnitStore) Get(ctx context.Context, id string) (*deployment.ProcessingUnit, error) {
	q := s.db.runner(ctx)

	var unit deployment.ProcessingUnit
	err := q.QueryRowContext(ctx, `
		SELECT `+unitColumns+` FROM processing_unit WHERE id = ?
	`, id).Scan(
		&unit.ID,
		&unit.RecordID,
		&unit.Plant,
		&unit.Summary,
		&unit.Details,
		&unit.AttachmentPath,
		&unit.SubmittedBy,
		&unit.Decision,
		&unit.DecidedAt,
		&unit.RejectReason,
		&unit.CreatedAt,
		&unit.ModifiedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get processing unit: %w", err)
	}
	return &unit, nil
}

// Update writes the unit guarded by its expected current decision state.
func (s *UnitStore) Update(ctx context.Context, unit *deployment.ProcessingUnit, expected deployment.Decision) error {
	q := s.db.runner(ctx)

	res, err := q.ExecContext(ctx, `
		UPDATE processing_unit SET
			summary = ?, details = ?, attachment_path = ?, submitted_by = ?,
			decision = ?, decided_at = ?, reject_reason = ?, modified_at = ?
		WHERE id = ? AND decision = ?
	`,
		unit.Summary,
		unit.Details,
		unit.AttachmentPath,
		unit.SubmittedBy,
		unit.Decision,
		unit.DecidedAt,
		unit.RejectReason,
		unit.ModifiedAt,
		unit.ID, expected,
	)
	if err != nil {
		return fmt.Errorf("failed to update processing unit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update: %w", err)
	}
	if n == 0 {
		var exists int
		if err := q.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM processing_unit WHERE id = ?`, unit.ID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check processing unit: %w", err)
		}
		if exists == 0 {
			return repository.ErrNotFound
		}
		return repository.ErrConflict
	}
	return nil
}

// ListByRecord returns a record's units ordered by plant.
func (s *UnitStore) ListByRecord(ctx context.Context, recordID string) ([]deployment.ProcessingUnit, error) {
	q := s.db.runner(ctx)

	rows, err := q.QueryContext(ctx, `
		SELECT `+unitColumns+` FROM processing_unit WHERE llc_id = ? ORDER BY plant
	`, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to list processing units: %w", err)
	}
	defer rows.Close()

	var units []deployment.ProcessingUnit
	for rows.Next() {
		var unit deployment.ProcessingUnit
		if err := rows.Scan(
			&unit.ID,
			&unit.RecordID,
			&unit.Plant,
			&unit.Summary,
			&unit.Details,
			&unit.AttachmentPath,
			&unit.SubmittedBy,
			&unit.Decision,
			&unit.DecidedAt,
			&unit.RejectReason,
			&unit.CreatedAt,
			&unit.ModifiedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan processing unit: %w", err)
		}
		units = append(units, unit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate processing units: %w", err)
	}
	return units, nil
}

// DeleteByRecord removes a record's units and returns their IDs so the
// caller can revoke the tokens bound to them.
func (s *UnitStore) DeleteByRecord(ctx context.Context, recordID string) ([]string, error) {
	q := s.db.runner(ctx)

	rows, err := q.QueryContext(ctx, `SELECT id FROM processing_unit WHERE llc_id = ?`, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to list processing units: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan processing unit id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate processing units: %w", err)
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM processing_unit WHERE llc_id = ?`, recordID); err != nil {
		return nil, fmt.Errorf("failed to delete processing units: %w", err)
	}
	return ids, nil
}
