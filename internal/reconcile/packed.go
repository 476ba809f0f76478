package reconcile

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrBadDate = errors.New("malformed date token")

// Token is one TAG-DATE element of a packed sub-id such as "CLD-241024;EFD-241025".
type Token struct {
	Tag  string
	Date string
}

// ParsePacked splits a packed sub-id into its tokens in order.
func ParsePacked(s string) Packed {
	var tokens Packed

	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		tok := Token{Tag: part}
		if i := strings.Index(part, "-"); i >= 0 {
			tok.Tag = part[:i]
			tok.Date = part[strings.LastIndex(part, "-")+1:]
		}

		tok.Tag = strings.ToUpper(tok.Tag)
		tokens = append(tokens, tok)
	}

	return tokens
}

// Packed is a parsed packed sub-id.
type Packed []Token

func (p Packed) Has(tag string) bool {
	_, ok := p.Find(tag)
	return ok
}

func (p Packed) Find(tag string) (Token, bool) {
	for _, t := range p {
		if t.Tag == tag {
			return t, true
		}
	}

	return Token{}, false
}

// Last is the final token, the one legacy files carry their date in.
func (p Packed) Last() (Token, bool) {
	if len(p) == 0 {
		return Token{}, false
	}

	return p[len(p)-1], true
}

const (
	shortDate = "060102"
	longDate  = "20060102"
)

// NormalizeDate returns YYYYMMDD for a YYMMDD or YYYYMMDD token.
func NormalizeDate(s string) (string, error) {
	s = strings.TrimSpace(s)

	var layout string

	switch len(s) {
	case len(shortDate):
		layout = shortDate
	case len(longDate):
		layout = longDate
	default:
		return "", fmt.Errorf("%q: %w", s, ErrBadDate)
	}

	t, err := time.Parse(layout, s)
	if err != nil {
		return "", fmt.Errorf("%q: %w", s, ErrBadDate)
	}

	return t.Format(longDate), nil
}
