package sap

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DocType identifies an SAP interface document (touchpoint).
type DocType string

const (
	FI07 DocType = "FI07"
	FI09 DocType = "FI09"
	FI10 DocType = "FI10"
	FI15 DocType = "FI15"
	FI16 DocType = "FI16"
	FI21 DocType = "FI21"
)

func (d DocType) String() string { return string(d) }

// ParseDocType accepts a case-insensitive document code.
func ParseDocType(s string) (DocType, error) {
	d := DocType(strings.ToUpper(strings.TrimSpace(s)))
	switch d {
	case FI07, FI09, FI10, FI15, FI16, FI21:
		return d, nil
	}

	return "", fmt.Errorf("unknown document type %q", s)
}

// stampLayout is the SAP header/filename timestamp without the hundredths suffix.
const stampLayout = "20060102150405"

// Stamp renders t as YYYYMMDDHHMMSSFF where FF is hundredths of a second.
func Stamp(t time.Time) string {
	return fmt.Sprintf("%s%02d", t.Format(stampLayout), t.Nanosecond()/int(10*time.Millisecond))
}

// FileName returns the remote file name for a document generated at t.
func FileName(doc DocType, t time.Time) string {
	return fmt.Sprintf("%s_%s.txt", doc, Stamp(t))
}

var fileNameRe = regexp.MustCompile(`^(FI\d{2})_(\d{14}(?:\d{2})?)\.txt$`)

// ParseFileName extracts the document type and timestamp digits from a name
// such as FI21_20241024235002.txt. Both 14 and 16 digit stamps are accepted.
func ParseFileName(name string) (DocType, string, bool) {
	m := fileNameRe.FindStringSubmatch(name)
	if m == nil {
		return "", "", false
	}

	doc, err := ParseDocType(m[1])
	if err != nil {
		return "", "", false
	}

	return doc, m[2], true
}

// Dir expands a remote directory pattern such as "{doc}/Outgoing".
func Dir(pattern string, doc DocType) string {
	return strings.ReplaceAll(pattern, "{doc}", string(doc))
}
