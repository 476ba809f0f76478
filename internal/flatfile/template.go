package flatfile

import (
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mnshuhailey/ppa-sap/internal/sap"
)

//go:embed templates.yaml
var defaultTemplates []byte

var (
	ErrMissingField    = errors.New("required field is missing")
	ErrInvalidValue    = errors.New("field value cannot be formatted")
	ErrInvalidTemplate = errors.New("invalid template")
	ErrUnknownTemplate = errors.New("unknown template")
)

const delimiter = "|"

type modifier string

const (
	modNone   modifier = ""
	modDate   modifier = "date"
	modAmount modifier = "amount"
	modNeg    modifier = "neg"
	modTrim   modifier = "trim"
)

// field is one pipe-separated slot of a line: either a literal or a placeholder.
type field struct {
	literal     string
	name        string
	mod         modifier
	required    bool
	fallback    string
	hasFallback bool
}

func (f field) isPlaceholder() bool { return f.name != "" }

type line []field

// Template renders one source record into the fixed sub-lines of an SAP document.
type Template struct {
	Name        string
	Doc         sap.DocType
	DoubleEntry bool
	lines       []line
}

// SubLines is the number of lines every record rendered by t occupies.
func (t *Template) SubLines() int { return len(t.lines) }

type templateFile struct {
	Templates []templateSpec `yaml:"templates"`
}

type templateSpec struct {
	Name        string   `yaml:"name"`
	Doc         string   `yaml:"doc"`
	DoubleEntry bool     `yaml:"double_entry"`
	Lines       []string `yaml:"lines"`
}

// Set is a validated collection of templates keyed by name.
type Set struct {
	byName   map[string]*Template
	subLines map[sap.DocType]int
}

// DefaultSet compiles the templates shipped with the binary.
func DefaultSet() (*Set, error) {
	return LoadSet(defaultTemplates)
}

// LoadSet parses and validates a YAML template document.
func LoadSet(data []byte) (*Set, error) {
	var doc templateFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	set := &Set{
		byName:   make(map[string]*Template, len(doc.Templates)),
		subLines: make(map[sap.DocType]int),
	}

	for _, spec := range doc.Templates {
		t, err := compile(spec)
		if err != nil {
			return nil, err
		}

		if _, dup := set.byName[t.Name]; dup {
			return nil, fmt.Errorf("template %s declared twice: %w", t.Name, ErrInvalidTemplate)
		}

		if n, ok := set.subLines[t.Doc]; ok && n != t.SubLines() {
			return nil, fmt.Errorf("template %s has %d lines, other %s templates have %d: %w",
				t.Name, t.SubLines(), t.Doc, n, ErrInvalidTemplate)
		}

		set.byName[t.Name] = t
		set.subLines[t.Doc] = t.SubLines()
	}

	return set, nil
}

func (s *Set) Get(name string) (*Template, error) {
	t, ok := s.byName[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownTemplate)
	}

	return t, nil
}

// SubLines returns the per-record line count shared by all templates of doc.
func (s *Set) SubLines(doc sap.DocType) int {
	return s.subLines[doc]
}

func compile(spec templateSpec) (*Template, error) {
	doc, err := sap.ParseDocType(spec.Doc)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", spec.Name, err)
	}

	if spec.Name == "" || len(spec.Lines) == 0 {
		return nil, fmt.Errorf("template %q needs a name and lines: %w", spec.Name, ErrInvalidTemplate)
	}

	t := &Template{Name: spec.Name, Doc: doc, DoubleEntry: spec.DoubleEntry}

	for i, raw := range spec.Lines {
		l, err := parseLine(raw)
		if err != nil {
			return nil, fmt.Errorf("template %s line %d: %w", spec.Name, i+1, err)
		}

		marker := l[0]
		if marker.isPlaceholder() || marker.literal == "" {
			return nil, fmt.Errorf("template %s line %d has no record type marker: %w", spec.Name, i+1, ErrInvalidTemplate)
		}

		t.lines = append(t.lines, l)
	}

	if t.lines[0][0].literal != "1" {
		return nil, fmt.Errorf("template %s must start with a type 1 line: %w", spec.Name, ErrInvalidTemplate)
	}

	if t.DoubleEntry {
		if err := checkDoubleEntry(t); err != nil {
			return nil, fmt.Errorf("template %s: %w", spec.Name, err)
		}
	}

	return t, nil
}

func parseLine(raw string) (line, error) {
	parts := strings.Split(raw, delimiter)
	l := make(line, len(parts))

	for i, p := range parts {
		f, err := parseField(p)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}

		l[i] = f
	}

	return l, nil
}

// parseField reads "{name[:modifier][!][?fallback]}" or returns the text as a literal.
func parseField(s string) (field, error) {
	if !strings.ContainsAny(s, "{}") {
		return field{literal: s}, nil
	}

	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return field{}, fmt.Errorf("placeholder %q must span the whole field: %w", s, ErrInvalidTemplate)
	}

	body := s[1 : len(s)-1]

	var f field

	if head, fb, ok := strings.Cut(body, "?"); ok {
		body = head
		f.fallback = fb
		f.hasFallback = true
	}

	if strings.HasSuffix(body, "!") {
		body = strings.TrimSuffix(body, "!")
		f.required = true
	}

	name, mod, _ := strings.Cut(body, ":")
	f.name = strings.TrimSpace(name)
	f.mod = modifier(mod)

	if f.name == "" {
		return field{}, fmt.Errorf("placeholder %q has no field name: %w", s, ErrInvalidTemplate)
	}

	switch f.mod {
	case modNone, modDate, modAmount, modNeg, modTrim:
	default:
		return field{}, fmt.Errorf("placeholder %q has unknown modifier %q: %w", s, f.mod, ErrInvalidTemplate)
	}

	return f, nil
}

const (
	detailMarker = "2"
	entryCol     = 2
	accountCol   = 3
)

// checkDoubleEntry requires one debit and one credit detail line, each credit
// amount mirrored by the same positive amount on the debit line, and distinct accounts.
func checkDoubleEntry(t *Template) error {
	var debit, credit line

	for _, l := range t.lines {
		if l[0].literal != detailMarker || len(l) <= accountCol {
			continue
		}

		switch l[entryCol].literal {
		case "S":
			if debit != nil {
				return fmt.Errorf("more than one debit line: %w", ErrInvalidTemplate)
			}

			debit = l
		case "K":
			if credit != nil {
				return fmt.Errorf("more than one credit line: %w", ErrInvalidTemplate)
			}

			credit = l
		}
	}

	if debit == nil || credit == nil {
		return fmt.Errorf("double entry needs one S and one K line: %w", ErrInvalidTemplate)
	}

	for _, f := range credit {
		if f.mod != modNeg {
			continue
		}

		twin := slices.ContainsFunc(debit, func(d field) bool {
			return d.name == f.name && d.mod == modAmount
		})
		if !twin {
			return fmt.Errorf("credit amount %s has no debit twin: %w", f.name, ErrInvalidTemplate)
		}
	}

	da, ca := debit[accountCol], credit[accountCol]
	if da == ca {
		return fmt.Errorf("debit and credit post to the same account: %w", ErrInvalidTemplate)
	}

	return nil
}
