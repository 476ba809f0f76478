package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mnshuhailey/ppa-sap/internal/ledger"
	"github.com/mnshuhailey/ppa-sap/internal/sap"
)

const uniqueViolation = "23505"

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Exists(ctx context.Context, doc sap.DocType, key string, status ledger.Status) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM sap_integration_ledger
			WHERE file_type = $1 AND data_key = $2 AND status = $3
		)`

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, doc, key, status).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking ledger entry: %w", err)
	}

	return exists, nil
}

// Insert adds a single entry outside any emission transaction.
func (s *Store) Insert(ctx context.Context, e *ledger.Entry) error {
	query := `
		INSERT INTO sap_integration_ledger (file_type, data_key, data_raw, status, run_id, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING id, created_at`

	err := s.db.QueryRowContext(ctx, query, e.Doc, e.Key, e.Raw, e.Status, e.RunID).
		Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ledger.ErrDuplicate
		}

		return fmt.Errorf("inserting ledger entry: %w", err)
	}

	return nil
}

func (s *Store) Delete(ctx context.Context, runID uuid.UUID, doc sap.DocType, status ledger.Status, keys []string) (int64, error) {
	query := `
		DELETE FROM sap_integration_ledger
		WHERE run_id = $1 AND file_type = $2 AND status = $3 AND data_key = ANY($4::text[])`

	res, err := s.db.ExecContext(ctx, query, runID, doc, status, keys)
	if err != nil {
		return 0, fmt.Errorf("deleting ledger entries: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deleting ledger entries: %w", err)
	}

	return n, nil
}

func (s *Store) BeginEmission(ctx context.Context) (ledger.EmissionTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}

	return &emissionTx{tx: tx}, nil
}

type emissionTx struct {
	tx *sql.Tx
}

// Insert uses ON CONFLICT DO NOTHING so a key claimed by another run does not
// abort the surrounding transaction.
func (e *emissionTx) Insert(ctx context.Context, entry *ledger.Entry) error {
	query := `
		INSERT INTO sap_integration_ledger (file_type, data_key, data_raw, status, run_id, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (file_type, data_key, status) DO NOTHING
		RETURNING id, created_at`

	err := e.tx.QueryRowContext(ctx, query, entry.Doc, entry.Key, entry.Raw, entry.Status, entry.RunID).
		Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
			return ledger.ErrDuplicate
		}

		return fmt.Errorf("reserving ledger entry: %w", err)
	}

	return nil
}

func (e *emissionTx) Commit() error {
	return e.tx.Commit()
}

func (e *emissionTx) Rollback() error {
	return e.tx.Rollback()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
