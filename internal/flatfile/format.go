package flatfile

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mnshuhailey/ppa-sap/internal/source"
)

// Record is the rendered form of one source record: its business key and the
// ordered sub-lines that go into a file.
type Record struct {
	Key   string
	Lines []string
}

// Raw is the payload stored on the ledger entry.
func (r Record) Raw() string {
	return strings.Join(r.Lines, "\n")
}

const dateLayout = "20060102"

// sourceDateLayouts are the text forms a date column may arrive in.
var sourceDateLayouts = []string{
	time.DateTime,
	time.DateOnly,
	time.RFC3339,
	"2006-01-02 15:04:05.999999",
	dateLayout,
}

var sanitizer = strings.NewReplacer(delimiter, " ", "\r\n", " ", "\n", " ", "\r", " ")

// Format renders rec with the template. It has no side effects.
func (t *Template) Format(rec *source.Record) (Record, error) {
	out := Record{Key: rec.Key, Lines: make([]string, 0, len(t.lines))}

	for _, l := range t.lines {
		parts := make([]string, len(l))

		for i, f := range l {
			if !f.isPlaceholder() {
				parts[i] = f.literal
				continue
			}

			v, err := f.render(rec.Value(f.name))
			if err != nil {
				return Record{}, fmt.Errorf("%s %s field %s: %w", t.Name, rec.Key, f.name, err)
			}

			parts[i] = v
		}

		out.Lines = append(out.Lines, strings.Join(parts, delimiter))
	}

	return out, nil
}

func (f field) render(v any) (string, error) {
	if isMissing(v) {
		switch {
		case f.hasFallback:
			return f.fallback, nil
		case f.required:
			return "", ErrMissingField
		default:
			return "", nil
		}
	}

	var (
		s   string
		err error
	)

	switch f.mod {
	case modDate:
		s, err = formatDate(v)
	case modAmount:
		s, err = formatAmount(v, false)
	case modNeg:
		s, err = formatAmount(v, true)
	case modTrim:
		s = strings.TrimSpace(text(v))
	default:
		s = text(v)
	}

	if err != nil {
		return "", err
	}

	return sanitizer.Replace(s), nil
}

func isMissing(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case []byte:
		return strings.TrimSpace(string(x)) == ""
	case *string:
		return x == nil || strings.TrimSpace(*x) == ""
	}

	return false
}

func text(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case *string:
		return *x
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.DateTime)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		return x.String()
	}

	return fmt.Sprint(v)
}

func formatDate(v any) (string, error) {
	if t, ok := v.(time.Time); ok {
		return t.Format(dateLayout), nil
	}

	s := strings.TrimSpace(text(v))
	for _, layout := range sourceDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(dateLayout), nil
		}
	}

	return "", fmt.Errorf("date %q: %w", s, ErrInvalidValue)
}

// formatAmount renders a two-decimal amount. The negated form is computed
// arithmetically so a negative source never renders as "--x".
func formatAmount(v any, negate bool) (string, error) {
	var d decimal.Decimal

	switch x := v.(type) {
	case decimal.Decimal:
		d = x
	case float64:
		d = decimal.NewFromFloat(x)
	case int64:
		d = decimal.NewFromInt(x)
	case int:
		d = decimal.NewFromInt(int64(x))
	default:
		parsed, err := decimal.NewFromString(strings.TrimSpace(text(v)))
		if err != nil {
			return "", fmt.Errorf("amount %q: %w", text(v), ErrInvalidValue)
		}

		d = parsed
	}

	if negate {
		d = d.Neg()
	}

	return d.StringFixed(2), nil
}
