package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mnshuhailey/ppa-sap/internal/sap"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=ledger
type Repository interface {
	Exists(ctx context.Context, doc sap.DocType, key string, status Status) (bool, error)
	Insert(ctx context.Context, e *Entry) error
	Delete(ctx context.Context, runID uuid.UUID, doc sap.DocType, status Status, keys []string) (int64, error)

	BeginEmission(ctx context.Context) (EmissionTx, error)
}

// EmissionTx inserts a chunk of entries atomically. Insert returns ErrDuplicate
// when the key is already ledgered and leaves the transaction usable.
type EmissionTx interface {
	Insert(ctx context.Context, e *Entry) error
	Commit() error
	Rollback() error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// IsDuplicate reports whether key was already emitted for doc.
func (s *Service) IsDuplicate(ctx context.Context, doc sap.DocType, key string) (bool, error) {
	ok, err := s.repo.Exists(ctx, doc, key, StatusPushed)
	if err != nil {
		return false, fmt.Errorf("checking %s %s: %w", doc, key, err)
	}

	return ok, nil
}

// Reserve ledgers a chunk in one transaction and returns the entries it
// actually claimed. Entries another run claimed first are dropped.
func (s *Service) Reserve(ctx context.Context, runID uuid.UUID, doc sap.DocType, entries []Entry) ([]Entry, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	tx, err := s.repo.BeginEmission(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin emission: %w", err)
	}
	defer tx.Rollback()

	reserved := make([]Entry, 0, len(entries))

	for _, e := range entries {
		e.RunID = runID
		e.Doc = doc
		e.Status = StatusPushed

		if err := tx.Insert(ctx, &e); err != nil {
			if errors.Is(err, ErrDuplicate) {
				continue
			}

			return nil, fmt.Errorf("reserve %s %s: %w", doc, e.Key, err)
		}

		reserved = append(reserved, e)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit emission: %w", err)
	}

	return reserved, nil
}

// Release removes entries this run reserved but never transferred.
func (s *Service) Release(ctx context.Context, runID uuid.UUID, doc sap.DocType, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	if _, err := s.repo.Delete(ctx, runID, doc, StatusPushed, keys); err != nil {
		return fmt.Errorf("release %s: %w", doc, err)
	}

	return nil
}

// HasRead reports whether an acknowledgement file was already consumed.
func (s *Service) HasRead(ctx context.Context, doc sap.DocType, filename string) (bool, error) {
	ok, err := s.repo.Exists(ctx, doc, filename, StatusRead)
	if err != nil {
		return false, fmt.Errorf("checking read %s %s: %w", doc, filename, err)
	}

	return ok, nil
}

// RecordRead marks filename as consumed. ErrDuplicate means another run got there first.
func (s *Service) RecordRead(ctx context.Context, runID uuid.UUID, doc sap.DocType, filename, raw string) error {
	e := &Entry{
		RunID:  runID,
		Doc:    doc,
		Key:    filename,
		Raw:    raw,
		Status: StatusRead,
	}

	if err := s.repo.Insert(ctx, e); err != nil {
		return fmt.Errorf("record read %s %s: %w", doc, filename, err)
	}

	return nil
}
