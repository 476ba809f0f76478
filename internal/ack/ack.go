// Package ack parses the status and acknowledgement files SAP returns.
package ack

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mnshuhailey/ppa-sap/internal/sap"
)

var (
	ErrArity      = errors.New("row has the wrong number of fields")
	ErrBadHeader  = errors.New("malformed header line")
	ErrIdentifier = errors.New("malformed business identifier")
	// ErrRecordIndicator marks a row whose first field is not the data
	// record indicator, such as a trailer.
	ErrRecordIndicator = errors.New("not a data record")
)

const delimiter = "|"

// Header is the first line of an acknowledgement file.
type Header struct {
	RecordType string
	DocType    string
	Timestamp  string
}

// Matches reports whether the header names doc in either of its first two fields.
func (h Header) Matches(doc sap.DocType) bool {
	return strings.EqualFold(h.DocType, doc.String()) || strings.EqualFold(h.RecordType, doc.String())
}

// Row is one data line. Line is 1-based within the file.
type Row struct {
	Line   int
	Raw    string
	Fields []string
}

// StatusRow is the three-field layout of the FI09, FI10 and FI15 status files.
type StatusRow struct {
	ID         string
	SyncedDate string
	Message    string
}

// EventRow is the six-field layout of the FI16 and FI21 files.
type EventRow struct {
	RecordIndicator string
	CompanyCode     string
	ID              string
	Status          string
	Message         string
	PackedID        string
}

func (r Row) Status() StatusRow {
	return StatusRow{ID: r.Fields[0], SyncedDate: r.Fields[1], Message: r.Fields[2]}
}

func (r Row) Event() EventRow {
	return EventRow{
		RecordIndicator: r.Fields[0],
		CompanyCode:     r.Fields[1],
		ID:              r.Fields[2],
		Status:          r.Fields[3],
		Message:         r.Fields[4],
		PackedID:        r.Fields[5],
	}
}

// Rejection is a line that could not be turned into a Row.
type Rejection struct {
	Line int
	Raw  string
	Err  error
}

type File struct {
	Name     string
	Doc      sap.DocType
	Header   Header
	Rows     []Row
	Rejected []Rejection
}

// Parse splits decoded text into header and rows using the profile for doc.
// Rows with the wrong arity or record indicator are collected in Rejected
// rather than failing the file.
func Parse(doc sap.DocType, name, text string) (*File, error) {
	p, err := ProfileFor(doc)
	if err != nil {
		return nil, err
	}

	lines := strings.Split(strings.TrimSpace(text), "\n")

	head := strings.Split(strings.TrimSpace(lines[0]), delimiter)
	if len(head) < 3 {
		return nil, fmt.Errorf("%s: %q: %w", name, lines[0], ErrBadHeader)
	}

	f := &File{
		Name: name,
		Doc:  doc,
		Header: Header{
			RecordType: strings.TrimSpace(head[0]),
			DocType:    strings.TrimSpace(head[1]),
			Timestamp:  strings.TrimSpace(head[2]),
		},
	}

	for i, l := range lines[1:] {
		raw := strings.TrimSpace(l)
		if raw == "" {
			continue
		}

		fields := strings.Split(raw, delimiter)
		for j := range fields {
			fields[j] = strings.TrimSpace(fields[j])
		}

		if p.RecordIndicator != "" && fields[0] != p.RecordIndicator {
			f.Rejected = append(f.Rejected, Rejection{
				Line: i + 2,
				Raw:  raw,
				Err:  fmt.Errorf("record indicator %q, want %q: %w", fields[0], p.RecordIndicator, ErrRecordIndicator),
			})

			continue
		}

		if len(fields) != p.Arity {
			f.Rejected = append(f.Rejected, Rejection{
				Line: i + 2,
				Raw:  raw,
				Err:  fmt.Errorf("got %d fields, want %d: %w", len(fields), p.Arity, ErrArity),
			})

			continue
		}

		f.Rows = append(f.Rows, Row{Line: i + 2, Raw: raw, Fields: fields})
	}

	return f, nil
}
