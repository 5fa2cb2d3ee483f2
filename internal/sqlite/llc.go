package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/STS-Engineer/llc-backend/internal/domain/llc"
	"github.com/STS-Engineer/llc-backend/internal/repository"
)

// LlcStore implements llc.Repository for SQLite.
type LlcStore struct {
	db *DB
}

// NewLlcStore creates a new LlcStore.
func NewLlcStore(db *DB) *LlcStore {
	return &LlcStore{db: db}
}

const llcColumns = `
	id, category, problem_short, problem_detail, llc_type, customer,
	product_family, product_type, quality_detection, application_label,
	product_line_label, part_or_machine_number, editor, editor_email,
	plant, failure_mode, conclusions, validator, status,
	pm_state, pm_decided_at, pm_reason,
	final_state, final_decided_at, final_reason,
	generated_doc, created_at, modified_at`

// Create inserts a record with its root causes and attachments.
func (s *LlcStore) Create(ctx context.Context, rec *llc.Record, causes []llc.RootCause, atts []llc.Attachment) error {
	q := s.db.runner(ctx)

	query := `
		INSERT INTO llc (` + llcColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.ExecContext(ctx, query,
		rec.ID,
		rec.Category,
		rec.ProblemShort,
		rec.ProblemDetail,
		rec.LlcType,
		rec.Customer,
		rec.ProductFamily,
		rec.ProductType,
		rec.QualityDetection,
		rec.ApplicationLabel,
		rec.ProductLineLabel,
		rec.PartOrMachineNumber,
		rec.Editor,
		rec.EditorEmail,
		rec.Plant,
		rec.FailureMode,
		rec.Conclusions,
		rec.Validator,
		rec.Status,
		rec.PMDecision.State,
		rec.PMDecision.DecidedAt,
		rec.PMDecision.Reason,
		rec.FinalDecision.State,
		rec.FinalDecision.DecidedAt,
		rec.FinalDecision.Reason,
		rec.GeneratedDoc,
		rec.CreatedAt,
		rec.ModifiedAt,
	)
	if err != nil {
		if cerr := constraintError(err); cerr != nil {
			return cerr
		}
		return fmt.Errorf("failed to create record: %w", err)
	}

	return s.insertChildren(ctx, rec.ID, causes, atts)
}

func (s *LlcStore) insertChildren(ctx context.Context, recordID string, causes []llc.RootCause, atts []llc.Attachment) error {
	q := s.db.runner(ctx)

	for i, rc := range causes {
		_, err := q.ExecContext(ctx, `
			INSERT INTO llc_root_cause (
				id, llc_id, position, root_cause, detailed_cause_description,
				solution_description, conclusion, process, origin
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, rc.ID, recordID, i, rc.RootCause, rc.DetailedCauseDescription,
			rc.SolutionDescription, rc.Conclusion, rc.Process, rc.Origin)
		if err != nil {
			return fmt.Errorf("failed to create root cause: %w", err)
		}
	}

	for _, a := range atts {
		_, err := q.ExecContext(ctx, `
			INSERT INTO llc_attachment (
				id, llc_id, root_cause_id, scope, filename, storage_path
			) VALUES (?, ?, ?, ?, ?, ?)
		`, a.ID, recordID, a.RootCauseID, a.Scope, a.Filename, a.StoragePath)
		if err != nil {
			if cerr := constraintError(err); cerr != nil {
				return cerr
			}
			return fmt.Errorf("failed to create attachment: %w", err)
		}
	}
	return nil
}

// Get retrieves a record by ID, including its persisted target set.
func (s *LlcStore) Get(ctx context.Context, id string) (*llc.Record, error) {
	q := s.db.runner(ctx)

	row := q.QueryRowContext(ctx, `SELECT `+llcColumns+` FROM llc WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	rec.Targets, err = s.GetTargets(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetDetail retrieves a record with its root causes and attachments.
func (s *LlcStore) GetDetail(ctx context.Context, id string) (*llc.Detail, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	q := s.db.runner(ctx)

	detail := &llc.Detail{Record: *rec}

	rows, err := q.QueryContext(ctx, `
		SELECT id, llc_id, root_cause, detailed_cause_description,
		       solution_description, conclusion, process, origin
		FROM llc_root_cause WHERE llc_id = ? ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list root causes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rc llc.RootCause
		if err := rows.Scan(&rc.ID, &rc.RecordID, &rc.RootCause,
			&rc.DetailedCauseDescription, &rc.SolutionDescription,
			&rc.Conclusion, &rc.Process, &rc.Origin); err != nil {
			return nil, fmt.Errorf("failed to scan root cause: %w", err)
		}
		detail.RootCauses = append(detail.RootCauses, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate root causes: %w", err)
	}

	arows, err := q.QueryContext(ctx, `
		SELECT id, llc_id, root_cause_id, scope, filename, storage_path
		FROM llc_attachment WHERE llc_id = ? ORDER BY id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	defer arows.Close()
	for arows.Next() {
		var a llc.Attachment
		if err := arows.Scan(&a.ID, &a.RecordID, &a.RootCauseID,
			&a.Scope, &a.Filename, &a.StoragePath); err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		detail.Attachments = append(detail.Attachments, a)
	}
	if err := arows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attachments: %w", err)
	}

	return detail, nil
}

// Update writes the record's status and decision fields, guarded by the
// expected current status. Returns repository.ErrConflict when the record has
// moved on since it was read.
func (s *LlcStore) Update(ctx context.Context, rec *llc.Record, expected llc.Status) error {
	q := s.db.runner(ctx)

	res, err := q.ExecContext(ctx, `
		UPDATE llc SET
			status = ?,
			pm_state = ?, pm_decided_at = ?, pm_reason = ?,
			final_state = ?, final_decided_at = ?, final_reason = ?,
			modified_at = ?
		WHERE id = ? AND status = ?
	`,
		rec.Status,
		rec.PMDecision.State, rec.PMDecision.DecidedAt, rec.PMDecision.Reason,
		rec.FinalDecision.State, rec.FinalDecision.DecidedAt, rec.FinalDecision.Reason,
		rec.ModifiedAt,
		rec.ID, expected,
	)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	return s.guardResult(ctx, res, rec.ID)
}

// ReplaceContent rewrites the mutable payload plus all root causes and
// attachments, guarded like Update. Used by resubmission.
func (s *LlcStore) ReplaceContent(ctx context.Context, rec *llc.Record, causes []llc.RootCause, atts []llc.Attachment, expected llc.Status) error {
	q := s.db.runner(ctx)

	res, err := q.ExecContext(ctx, `
		UPDATE llc SET
			category = ?, problem_short = ?, problem_detail = ?, llc_type = ?,
			customer = ?, product_family = ?, product_type = ?,
			quality_detection = ?, application_label = ?, product_line_label = ?,
			part_or_machine_number = ?, editor = ?, plant = ?, failure_mode = ?,
			conclusions = ?, validator = ?,
			status = ?,
			pm_state = ?, pm_decided_at = ?, pm_reason = ?,
			final_state = ?, final_decided_at = ?, final_reason = ?,
			modified_at = ?
		WHERE id = ? AND status = ?
	`,
		rec.Category, rec.ProblemShort, rec.ProblemDetail, rec.LlcType,
		rec.Customer, rec.ProductFamily, rec.ProductType,
		rec.QualityDetection, rec.ApplicationLabel, rec.ProductLineLabel,
		rec.PartOrMachineNumber, rec.Editor, rec.Plant, rec.FailureMode,
		rec.Conclusions, rec.Validator,
		rec.Status,
		rec.PMDecision.State, rec.PMDecision.DecidedAt, rec.PMDecision.Reason,
		rec.FinalDecision.State, rec.FinalDecision.DecidedAt, rec.FinalDecision.Reason,
		rec.ModifiedAt,
		rec.ID, expected,
	)
	if err != nil {
		return fmt.Errorf("failed to rewrite record: %w", err)
	}
	if err := s.guardResult(ctx, res, rec.ID); err != nil {
		return err
	}

	if _, err := q.ExecContext(ctx, `DELETE FROM llc_attachment WHERE llc_id = ?`, rec.ID); err != nil {
		return fmt.Errorf("failed to clear attachments: %w", err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM llc_root_cause WHERE llc_id = ?`, rec.ID); err != nil {
		return fmt.Errorf("failed to clear root causes: %w", err)
	}
	return s.insertChildren(ctx, rec.ID, causes, atts)
}

// SetGeneratedDoc stores the rendered report path.
func (s *LlcStore) SetGeneratedDoc(ctx context.Context, id, path string) error {
	q := s.db.runner(ctx)
	res, err := q.ExecContext(ctx, `UPDATE llc SET generated_doc = ? WHERE id = ?`, path, id)
	if err != nil {
		return fmt.Errorf("failed to set generated doc: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// SetTargets replaces the record's persisted distribution set.
func (s *LlcStore) SetTargets(ctx context.Context, id string, targets []string) error {
	q := s.db.runner(ctx)

	if _, err := q.ExecContext(ctx, `DELETE FROM llc_target WHERE llc_id = ?`, id); err != nil {
		return fmt.Errorf("failed to clear targets: %w", err)
	}
	for i, plant := range targets {
		_, err := q.ExecContext(ctx, `
			INSERT INTO llc_target (llc_id, plant, position) VALUES (?, ?, ?)
		`, id, plant, i)
		if err != nil {
			if cerr := constraintError(err); cerr != nil {
				return cerr
			}
			return fmt.Errorf("failed to store target: %w", err)
		}
	}
	return nil
}

// GetTargets returns the record's persisted distribution set in resolution
// order.
func (s *LlcStore) GetTargets(ctx context.Context, id string) ([]string, error) {
	q := s.db.runner(ctx)

	rows, err := q.QueryContext(ctx, `
		SELECT plant FROM llc_target WHERE llc_id = ? ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get targets: %w", err)
	}
	defer rows.Close()

	var targets []string
	for rows.Next() {
		var plant string
		if err := rows.Scan(&plant); err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		targets = append(targets, plant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate targets: %w", err)
	}
	return targets, nil
}

// List returns record references, newest first, filtered by status and plant.
func (s *LlcStore) List(ctx context.Context, opts llc.ListOptions) ([]llc.Ref, error) {
	q := s.db.runner(ctx)

	query := `
		SELECT id, category, problem_short, customer, product_line_label,
		       plant, status, created_at
		FROM llc
	`
	var conds []string
	var args []any
	if opts.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, opts.Status)
	}
	if opts.Plant != "" {
		conds = append(conds, "plant = ?")
		args = append(args, opts.Plant)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var refs []llc.Ref
	for rows.Next() {
		var ref llc.Ref
		if err := rows.Scan(&ref.ID, &ref.Category, &ref.ProblemShort,
			&ref.Customer, &ref.ProductLineLabel, &ref.Plant,
			&ref.Status, &ref.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan record ref: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate records: %w", err)
	}
	return refs, nil
}

// Delete removes a record; children go with it via cascading foreign keys.
func (s *LlcStore) Delete(ctx context.Context, id string) error {
	q := s.db.runner(ctx)

	res, err := q.ExecContext(ctx, `DELETE FROM llc WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete: %w", err)
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// guardResult distinguishes a missing record from a status-guard miss.
func (s *LlcStore) guardResult(ctx context.Context, res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update: %w", err)
	}
	if n > 0 {
		return nil
	}

	var exists int
	err = s.db.runner(ctx).QueryRowContext(ctx, `SELECT COUNT(*) FROM llc WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check record: %w", err)
	}
	if exists == 0 {
		return repository.ErrNotFound
	}
	return repository.ErrConflict
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*llc.Record, error) {
	var rec llc.Record
	err := row.Scan(
		&rec.ID,
		&rec.Category,
		&rec.ProblemShort,
		&rec.ProblemDetail,
		&rec.LlcType,
		&rec.Customer,
		&rec.ProductFamily,
		&rec.ProductType,
		&rec.QualityDetection,
		&rec.ApplicationLabel,
		&rec.ProductLineLabel,
		&rec.PartOrMachineNumber,
		&rec.Editor,
		&rec.EditorEmail,
		&rec.Plant,
		&rec.FailureMode,
		&rec.Conclusions,
		&rec.Validator,
		&rec.Status,
		&rec.PMDecision.State,
		&rec.PMDecision.DecidedAt,
		&rec.PMDecision.Reason,
		&rec.FinalDecision.State,
		&rec.FinalDecision.DecidedAt,
		&rec.FinalDecision.Reason,
		&rec.GeneratedDoc,
		&rec.CreatedAt,
		&rec.ModifiedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
