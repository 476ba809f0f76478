// Package inbound reads the status and acknowledgement files SAP drops back
// and applies them to the business records.
package inbound

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mnshuhailey/ppa-sap/internal/ack"
	"github.com/mnshuhailey/ppa-sap/internal/encoding"
	"github.com/mnshuhailey/ppa-sap/internal/ledger"
	"github.com/mnshuhailey/ppa-sap/internal/reconcile"
	"github.com/mnshuhailey/ppa-sap/internal/sap"
	"github.com/mnshuhailey/ppa-sap/internal/source"
	"github.com/mnshuhailey/ppa-sap/internal/transfer"
)

var ErrUnknownDocument = errors.New("not an inbound document")

const fileSuffix = ".txt"

// Ledger is the read gate.
type Ledger interface {
	HasRead(ctx context.Context, doc sap.DocType, filename string) (bool, error)
	RecordRead(ctx context.Context, runID uuid.UUID, doc sap.DocType, filename, raw string) error
}

// Applier writes one resolved update.
type Applier interface {
	Apply(ctx context.Context, u reconcile.Update) error
}

type Config struct {
	// StatusDir holds the FI09, FI10 and FI15 status files, e.g. "{doc}/Status/Read".
	StatusDir string
	// InboundDir holds the FI16 and FI21 files, e.g. "{doc}/Incoming".
	InboundDir string
	// Lookback ignores files modified longer ago. Zero reads everything.
	Lookback time.Duration
	Now      func() time.Time
}

// FileResult counts what happened to the rows of one file.
type FileResult struct {
	Name     string
	Rows     int
	Applied  int
	Rejected int
	Failed   int
}

type Result struct {
	RunID   uuid.UUID
	Doc     sap.DocType
	Skipped int
	Files   []FileResult
}

type Service struct {
	ledger  Ledger
	applier Applier
	dial    transfer.Dialer
	cfg     Config
	log     *slog.Logger
}

func NewService(l Ledger, a Applier, dial transfer.Dialer, cfg Config, log *slog.Logger) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if log == nil {
		log = slog.Default()
	}

	return &Service{ledger: l, applier: a, dial: dial, cfg: cfg, log: log}
}

// Docs returns the inbound document types in a stable order.
func Docs() []sap.DocType {
	return []sap.DocType{sap.FI09, sap.FI10, sap.FI15, sap.FI16, sap.FI21}
}

func (s *Service) dir(doc sap.DocType) (string, error) {
	switch doc {
	case sap.FI09, sap.FI10, sap.FI15:
		return sap.Dir(s.cfg.StatusDir, doc), nil
	case sap.FI16, sap.FI21:
		return sap.Dir(s.cfg.InboundDir, doc), nil
	}

	return "", fmt.Errorf("%s: %w", doc, ErrUnknownDocument)
}

// Run processes every unread file of doc inside the lookback window.
func (s *Service) Run(ctx context.Context, doc sap.DocType) (*Result, error) {
	dir, err := s.dir(doc)
	if err != nil {
		return nil, err
	}

	res := &Result{RunID: uuid.New(), Doc: doc}
	log := s.log.With("run_id", res.RunID, "doc_type", doc)

	ch, err := s.dial(ctx)
	if err != nil {
		return res, fmt.Errorf("opening transfer channel: %w", err)
	}
	defer ch.Close()

	files, err := transfer.ListDir(ctx, ch, dir)
	if err != nil {
		return res, err
	}

	for _, fi := range s.selectFiles(doc, files) {
		read, err := s.ledger.HasRead(ctx, doc, fi.Name)
		if err != nil {
			log.Error("read check failed, skipping file", "file", fi.Name, "error", err)
			res.Skipped++

			continue
		}

		if read {
			res.Skipped++
			continue
		}

		fr, err := s.processFile(ctx, ch, doc, path.Join(dir, fi.Name), res.RunID, log.With("file", fi.Name))
		if err != nil {
			return res, err
		}

		if fr != nil {
			res.Files = append(res.Files, *fr)
		}
	}

	log.Info("inbound run finished", "files", len(res.Files), "skipped", res.Skipped)

	return res, nil
}

// selectFiles keeps "<DOC>_*.txt" files modified within the lookback window.
func (s *Service) selectFiles(doc sap.DocType, files []transfer.FileInfo) []transfer.FileInfo {
	prefix := doc.String() + "_"
	cutoff := s.cfg.Now().Add(-s.cfg.Lookback)

	var out []transfer.FileInfo

	for _, f := range files {
		if !strings.HasPrefix(f.Name, prefix) || !strings.HasSuffix(f.Name, fileSuffix) {
			continue
		}

		if s.cfg.Lookback > 0 && !f.ModTime.IsZero() && f.ModTime.Before(cutoff) {
			continue
		}

		out = append(out, f)
	}

	return out
}

// processFile applies one file and marks it read. A nil result with a nil
// error means the file was unreadable and left unmarked.
func (s *Service) processFile(ctx context.Context, ch transfer.Channel, doc sap.DocType, p string, runID uuid.UUID, log *slog.Logger) (*FileResult, error) {
	name := path.Base(p)

	data, err := transfer.Get(ctx, ch, p)
	if err != nil {
		return nil, err
	}

	text, err := encoding.Decode(data)
	if err != nil {
		log.Error("cannot decode file", "error", err)
		return nil, nil
	}

	f, err := ack.Parse(doc, name, text)
	if err != nil {
		log.Error("cannot parse file", "error", err)
		return nil, nil
	}

	if !f.Header.Matches(doc) {
		log.Warn("header names a different document type", "header_doc", f.Header.DocType)
	}

	fr := &FileResult{Name: name, Rows: len(f.Rows), Rejected: len(f.Rejected)}

	for _, r := range f.Rejected {
		log.Warn("rejected row", "line", r.Line, "raw", r.Raw, "error", r.Err)
	}

	for _, row := range f.Rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if err := s.applyRow(ctx, doc, f.Header, row); err != nil {
			fr.Failed++

			level := slog.LevelWarn
			if !errors.Is(err, source.ErrNotFound) && !errors.Is(err, reconcile.ErrNoRule) &&
				!errors.Is(err, reconcile.ErrBadDate) && !errors.Is(err, ack.ErrIdentifier) {
				level = slog.LevelError
			}

			log.Log(ctx, level, "row not applied", "line", row.Line, "raw", row.Raw, "error", err)

			continue
		}

		fr.Applied++
	}

	if err := s.ledger.RecordRead(ctx, runID, doc, name, text); err != nil {
		if !errors.Is(err, ledger.ErrDuplicate) {
			return nil, fmt.Errorf("marking %s read: %w", name, err)
		}

		log.Info("file was marked read by a concurrent run")
	}

	log.Info("file processed", "rows", fr.Rows, "applied", fr.Applied, "rejected", fr.Rejected, "failed", fr.Failed)

	return fr, nil
}

func (s *Service) applyRow(ctx context.Context, doc sap.DocType, h ack.Header, row ack.Row) error {
	u, err := reconcile.Resolve(doc, h, row)
	if err != nil {
		return err
	}

	return s.applier.Apply(ctx, u)
}
