package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection
type DB struct {
	*sql.DB
}

// New creates a new SQLite database connection
func New(dataSourceName string) (*DB, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: SQLite takes a single writer, and the pragmas below are
	// per-connection.
	db.SetMaxOpenConns(1)

	// Enable foreign keys and serialize writers. The workflow relies on
	// transactions for its atomicity guarantees.
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("failed to apply %q: %w", p, err)
		}
	}

	return &DB{db}, nil
}

type txKey struct{}

// InTx runs fn inside one transaction, carried in fn's context. Store calls
// made with that context join the transaction; without one they run directly
// on the connection. Nested calls join the outer transaction.
func (db *DB) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return fn(ctx)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (after: %w)", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// querier is the subset of database/sql shared by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// runner returns the transaction carried in ctx, or the bare connection.
func (db *DB) runner(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return db.DB
}

// RunMigrations runs the migrations directly
func (db *DB) RunMigrations() error {
	migration := `
-- User accounts (editors at the origin plant)
CREATE TABLE users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    plant TEXT NOT NULL,
    role TEXT NOT NULL CHECK(role IN ('editor', 'admin')),
    password_hash TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

-- Lesson learned cards
CREATE TABLE llc (
    id TEXT PRIMARY KEY,
    category TEXT NOT NULL,
    problem_short TEXT NOT NULL,
    problem_detail TEXT NOT NULL,
    llc_type TEXT NOT NULL,
    customer TEXT NOT NULL,
    product_family TEXT NOT NULL,
    product_type TEXT NOT NULL,
    quality_detection TEXT NOT NULL,
    application_label TEXT NOT NULL,
    product_line_label TEXT NOT NULL,
    part_or_machine_number TEXT NOT NULL,
    editor TEXT NOT NULL,
    editor_email TEXT NOT NULL,
    plant TEXT NOT NULL,
    failure_mode TEXT NOT NULL,
    conclusions TEXT NOT NULL,
    validator TEXT NOT NULL,
    status TEXT NOT NULL CHECK(status IN (
        'DRAFT', 'PENDING_PM', 'EDITABLE_PM_REJECTED', 'WAITING_FINAL',
        'EDITABLE_FINAL_REJECTED', 'DISTRIBUTING', 'DEPLOYMENT_PROCESSING',
        'DEPLOYMENT_VALIDATED', 'DEPLOYMENT_REJECTED')),
    pm_state TEXT NOT NULL CHECK(pm_state IN ('PENDING', 'APPROVED', 'REJECTED')),
    pm_decided_at TIMESTAMP,
    pm_reason TEXT NOT NULL DEFAULT '',
    final_state TEXT NOT NULL CHECK(final_state IN ('PENDING', 'APPROVED', 'REJECTED')),
    final_decided_at TIMESTAMP,
    final_reason TEXT NOT NULL DEFAULT '',
    generated_doc TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    modified_at TIMESTAMP NOT NULL
);
CREATE INDEX idx_llc_status ON llc(status);
CREATE INDEX idx_llc_plant ON llc(plant);

-- Causal analysis rows
CREATE TABLE llc_root_cause (
    id TEXT PRIMARY KEY,
    llc_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    root_cause TEXT NOT NULL,
    detailed_cause_description TEXT NOT NULL,
    solution_description TEXT NOT NULL,
    conclusion TEXT NOT NULL,
    process TEXT NOT NULL,
    origin TEXT NOT NULL,
    FOREIGN KEY (llc_id) REFERENCES llc(id) ON DELETE CASCADE
);
CREATE INDEX idx_root_cause_llc ON llc_root_cause(llc_id);

-- Evidence files
CREATE TABLE llc_attachment (
    id TEXT PRIMARY KEY,
    llc_id TEXT NOT NULL,
    root_cause_id TEXT,
    scope TEXT NOT NULL CHECK(scope IN (
        'BAD_PART', 'GOOD_PART', 'SITUATION_BEFORE', 'SITUATION_AFTER', 'ROOT_CAUSE')),
    filename TEXT NOT NULL,
    storage_path TEXT NOT NULL,
    FOREIGN KEY (llc_id) REFERENCES llc(id) ON DELETE CASCADE,
    FOREIGN KEY (root_cause_id) REFERENCES llc_root_cause(id) ON DELETE CASCADE
);
CREATE INDEX idx_attachment_llc ON llc_attachment(llc_id);

-- Resolved distribution set, persisted when a card enters DISTRIBUTING
CREATE TABLE llc_target (
    llc_id TEXT NOT NULL,
    plant TEXT NOT NULL,
    position INTEGER NOT NULL,
    PRIMARY KEY (llc_id, plant),
    FOREIGN KEY (llc_id) REFERENCES llc(id) ON DELETE CASCADE
);

-- One target plant's submission within a distribution cycle
CREATE TABLE processing_unit (
    id TEXT PRIMARY KEY,
    llc_id TEXT NOT NULL,
    plant TEXT NOT NULL,
    summary TEXT NOT NULL,
    details TEXT NOT NULL DEFAULT '',
    attachment_path TEXT NOT NULL DEFAULT '',
    submitted_by TEXT NOT NULL,
    decision TEXT NOT NULL CHECK(decision IN ('PENDING', 'APPROVED', 'REJECTED')),
    decided_at TIMESTAMP,
    reject_reason TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    modified_at TIMESTAMP NOT NULL,
    UNIQUE (llc_id, plant),
    FOREIGN KEY (llc_id) REFERENCES llc(id) ON DELETE CASCADE
);
CREATE INDEX idx_unit_llc ON processing_unit(llc_id);

-- Single-use capability tokens; one live token per (purpose, resource)
CREATE TABLE capability_token (
    purpose TEXT NOT NULL,
    resource_id TEXT NOT NULL,
    secret_hash TEXT NOT NULL,
    expires_at TIMESTAMP NOT NULL,
    consumed INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (purpose, resource_id)
);
CREATE INDEX idx_token_resource ON capability_token(resource_id);

-- Transactional mail outbox
CREATE TABLE outbox (
    id TEXT PRIMARY KEY,
    recipient TEXT NOT NULL,
    subject TEXT NOT NULL,
    body TEXT NOT NULL,
    status TEXT NOT NULL CHECK(status IN ('PENDING', 'SENT', 'FAILED')),
    attempts INTEGER NOT NULL DEFAULT 0,
    last_error TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    sent_at TIMESTAMP
);
CREATE INDEX idx_outbox_status ON outbox(status);
`

	if _, err := db.Exec(migration); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
