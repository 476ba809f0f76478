// Package outbound extracts candidate records, formats them and pushes the
// resulting flat files to SAP.
package outbound

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mnshuhailey/ppa-sap/internal/flatfile"
	"github.com/mnshuhailey/ppa-sap/internal/ledger"
	"github.com/mnshuhailey/ppa-sap/internal/sap"
	"github.com/mnshuhailey/ppa-sap/internal/source"
	"github.com/mnshuhailey/ppa-sap/internal/transfer"
)

var ErrUnknownDocument = errors.New("not an outbound document")

// Ledger is the part of the ledger guard the outbound job needs.
type Ledger interface {
	IsDuplicate(ctx context.Context, doc sap.DocType, key string) (bool, error)
	Reserve(ctx context.Context, runID uuid.UUID, doc sap.DocType, entries []ledger.Entry) ([]ledger.Entry, error)
	Release(ctx context.Context, runID uuid.UUID, doc sap.DocType, keys []string) error
}

type Config struct {
	// OutgoingDir is a remote directory pattern such as "{doc}/Outgoing".
	OutgoingDir string
	Sender      string
	ChunkSize   int
	// Location decides which calendar day "created today" means.
	Location *time.Location
	// Now defaults to time.Now.
	Now func() time.Time
}

// Result summarises one run.
type Result struct {
	RunID      uuid.UUID
	Doc        sap.DocType
	Candidates int
	Duplicates int
	Skipped    int
	Records    int
	Files      []string
}

type Service struct {
	source    source.Repository
	ledger    Ledger
	dial      transfer.Dialer
	templates *flatfile.Set
	cfg       Config
	log       *slog.Logger
}

func NewService(src source.Repository, l Ledger, dial transfer.Dialer, templates *flatfile.Set, cfg Config, log *slog.Logger) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	if cfg.Location == nil {
		cfg.Location = time.Local
	}

	if log == nil {
		log = slog.Default()
	}

	return &Service{
		source:    src,
		ledger:    l,
		dial:      dial,
		templates: templates,
		cfg:       cfg,
		log:       log,
	}
}

// Run emits every pending record of doc. A run with nothing to send
// returns a Result with no files and a nil error.
func (s *Service) Run(ctx context.Context, doc sap.DocType) (*Result, error) {
	def, ok := Lookup(doc)
	if !ok {
		return nil, fmt.Errorf("%s: %w", doc, ErrUnknownDocument)
	}

	res := &Result{RunID: uuid.New(), Doc: doc}
	log := s.log.With("run_id", res.RunID, "doc_type", doc)

	records, err := s.collect(ctx, def, res, log)
	if err != nil {
		return res, err
	}

	if len(records) == 0 {
		log.Info("no new records, skipping file generation", "candidates", res.Candidates)
		return res, nil
	}

	ch, err := s.dial(ctx)
	if err != nil {
		return res, fmt.Errorf("opening transfer channel: %w", err)
	}
	defer ch.Close()

	asm := flatfile.NewAssembler(doc, s.cfg.Sender, s.cfg.ChunkSize, s.templates.SubLines(doc), s.now)
	dir := sap.Dir(s.cfg.OutgoingDir, doc)

	for _, chunk := range asm.Chunk(records) {
		if err := s.emit(ctx, ch, asm, dir, chunk, res, log); err != nil {
			return res, err
		}
	}

	log.Info("outbound run finished",
		"candidates", res.Candidates,
		"duplicates", res.Duplicates,
		"skipped", res.Skipped,
		"records", res.Records,
		"files", len(res.Files),
	)

	return res, nil
}

// collect lists and formats the candidates of every category, dropping
// records already ledgered and records the template rejects.
func (s *Service) collect(ctx context.Context, def Document, res *Result, log *slog.Logger) ([]flatfile.Record, error) {
	var (
		records []flatfile.Record
		seen    = make(map[string]bool)
	)

	for _, cat := range def.Categories {
		tmpl, err := s.templates.Get(cat.Template)
		if err != nil {
			return nil, err
		}

		var filter source.Filter
		if cat.CreatedToday {
			today := s.now()
			filter.CreatedOn = &today
		}

		candidates, err := s.source.ListCandidates(ctx, cat.Query, filter)
		if err != nil {
			return nil, fmt.Errorf("listing %s %s candidates: %w", def.Doc, cat.Name, err)
		}

		res.Candidates += len(candidates)

		for _, rec := range candidates {
			if rec.Key == "" {
				log.Warn("skipping record", "category", cat.Name, "key", rec.Key, "reason", "empty key")
				res.Skipped++

				continue
			}

			if seen[rec.Key] {
				log.Warn("skipping record", "category", cat.Name, "key", rec.Key, "reason", "key already collected in this run")
				res.Skipped++

				continue
			}

			dup, err := s.ledger.IsDuplicate(ctx, def.Doc, rec.Key)
			if err != nil {
				log.Error("duplicate check failed, skipping record", "key", rec.Key, "error", err)
				res.Skipped++

				continue
			}

			if dup {
				res.Duplicates++
				continue
			}

			formatted, err := tmpl.Format(rec)
			if err != nil {
				log.Warn("skipping record", "category", cat.Name, "key", rec.Key, "error", err)
				res.Skipped++

				continue
			}

			seen[rec.Key] = true
			records = append(records, formatted)
		}
	}

	return records, nil
}

// emit reserves one chunk, writes it and releases the reservation if the
// write fails. Records another run claimed in the meantime are left out.
func (s *Service) emit(ctx context.Context, ch transfer.Channel, asm *flatfile.Assembler, dir string, chunk []flatfile.Record, res *Result, log *slog.Logger) error {
	entries := make([]ledger.Entry, len(chunk))
	for i, r := range chunk {
		entries[i] = ledger.Entry{Key: r.Key, Raw: r.Raw()}
	}

	reserved, err := s.ledger.Reserve(ctx, res.RunID, res.Doc, entries)
	if err != nil {
		return fmt.Errorf("reserving %s chunk: %w", res.Doc, err)
	}

	claimed := make(map[string]bool, len(reserved))
	for _, e := range reserved {
		claimed[e.Key] = true
	}

	records := make([]flatfile.Record, 0, len(reserved))

	for _, r := range chunk {
		if claimed[r.Key] {
			records = append(records, r)
		}
	}

	if lost := len(chunk) - len(records); lost > 0 {
		log.Info("records claimed by a concurrent run", "count", lost)
		res.Duplicates += lost
	}

	f, err := asm.Build(records)
	if errors.Is(err, flatfile.ErrNothingToDo) {
		return nil
	}

	if err != nil {
		s.release(ctx, res, keys(records), log)
		return fmt.Errorf("building %s file: %w", res.Doc, err)
	}

	if err := transfer.Put(ctx, ch, dir, f.Name, f.Content()); err != nil {
		s.release(ctx, res, f.Keys(), log)
		return fmt.Errorf("transferring %s: %w", f.Name, err)
	}

	log.Info("file transferred", "file", f.Name, "dir", dir, "records", len(f.Records))

	res.Records += len(f.Records)
	res.Files = append(res.Files, f.Name)

	return nil
}

// now is the configured clock in the configured zone. File stamps and the
// "created today" day both follow it.
func (s *Service) now() time.Time {
	return s.cfg.Now().In(s.cfg.Location)
}

func (s *Service) release(ctx context.Context, res *Result, keys []string, log *slog.Logger) {
	if err := s.ledger.Release(context.WithoutCancel(ctx), res.RunID, res.Doc, keys); err != nil {
		log.Error("failed to release reservation, records stay ledgered", "count", len(keys), "error", err)
	}
}

func keys(records []flatfile.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Key
	}

	return out
}
