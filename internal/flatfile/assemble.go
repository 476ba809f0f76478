package flatfile

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mnshuhailey/ppa-sap/internal/sap"
)

var (
	ErrNothingToDo = errors.New("nothing to do")
	ErrBadHeader   = errors.New("header record count does not match body")
)

const (
	DefaultSender    = "PPA"
	DefaultChunkSize = 1000

	stampStep = 10 * time.Millisecond
)

// File is one outbound flat file: a header line followed by the records' lines.
type File struct {
	Name    string
	Doc     sap.DocType
	Stamp   string
	Sender  string
	Records []Record
}

// Header renders "0|<DOC>|<stamp>|<sender>||<record_count>".
func (f *File) Header() string {
	return fmt.Sprintf("0|%s|%s|%s||%d", f.Doc, f.Stamp, f.Sender, len(f.Records))
}

// Content joins the header and every record line with "\n", without a trailing newline.
func (f *File) Content() []byte {
	var b strings.Builder

	b.WriteString(f.Header())

	for _, r := range f.Records {
		for _, l := range r.Lines {
			b.WriteByte('\n')
			b.WriteString(l)
		}
	}

	return []byte(b.String())
}

func (f *File) Keys() []string {
	keys := make([]string, len(f.Records))
	for i, r := range f.Records {
		keys[i] = r.Key
	}

	return keys
}

// Validate cross-checks the header count against the body line count.
func (f *File) Validate(subLines int) error {
	lines := strings.Split(string(f.Content()), "\n")

	body := len(lines) - 1
	if subLines <= 0 || body%subLines != 0 || body/subLines != len(f.Records) {
		return fmt.Errorf("%s: %d body lines, %d records of %d lines: %w",
			f.Name, body, len(f.Records), subLines, ErrBadHeader)
	}

	return nil
}

// Assembler chunks formatted records of one document type into files.
// Each file gets its own stamp, strictly later than the previous one.
type Assembler struct {
	doc       sap.DocType
	sender    string
	chunkSize int
	subLines  int
	now       func() time.Time
	last      time.Time
}

// NewAssembler returns an assembler for doc. A nil clock means time.Now.
func NewAssembler(doc sap.DocType, sender string, chunkSize, subLines int, clock func() time.Time) *Assembler {
	if sender == "" {
		sender = DefaultSender
	}

	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	if clock == nil {
		clock = time.Now
	}

	return &Assembler{
		doc:       doc,
		sender:    sender,
		chunkSize: chunkSize,
		subLines:  subLines,
		now:       clock,
	}
}

// Chunk splits records into slices of at most the configured chunk size.
func (a *Assembler) Chunk(records []Record) [][]Record {
	var chunks [][]Record

	for start := 0; start < len(records); start += a.chunkSize {
		end := min(start+a.chunkSize, len(records))
		chunks = append(chunks, records[start:end])
	}

	return chunks
}

// Build stamps one chunk into a file. The header count is taken from the
// records passed in, so callers build after filtering and reservation.
func (a *Assembler) Build(records []Record) (*File, error) {
	if len(records) == 0 {
		return nil, ErrNothingToDo
	}

	for _, r := range records {
		if len(r.Lines) != a.subLines {
			return nil, fmt.Errorf("record %s has %d lines, want %d: %w", r.Key, len(r.Lines), a.subLines, ErrBadHeader)
		}
	}

	t := a.nextStamp()

	f := &File{
		Name:    sap.FileName(a.doc, t),
		Doc:     a.doc,
		Stamp:   sap.Stamp(t),
		Sender:  a.sender,
		Records: records,
	}

	if err := f.Validate(a.subLines); err != nil {
		return nil, err
	}

	return f, nil
}

// Assemble chunks and builds every file for records.
func (a *Assembler) Assemble(records []Record) ([]*File, error) {
	if len(records) == 0 {
		return nil, ErrNothingToDo
	}

	chunks := a.Chunk(records)
	files := make([]*File, 0, len(chunks))

	for _, c := range chunks {
		f, err := a.Build(c)
		if err != nil {
			return nil, err
		}

		files = append(files, f)
	}

	return files, nil
}

func (a *Assembler) nextStamp() time.Time {
	t := a.now().Truncate(stampStep)
	if !t.After(a.last) {
		t = a.last.Add(stampStep)
	}

	a.last = t

	return t
}
