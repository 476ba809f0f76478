package reconcile

import (
	"errors"
	"fmt"

	"github.com/mnshuhailey/ppa-sap/internal/ack"
	"github.com/mnshuhailey/ppa-sap/internal/sap"
	"github.com/mnshuhailey/ppa-sap/internal/source"
)

var ErrNoRule = errors.New("no rule matches row")

// Update is the set of column writes one acknowledgement row produces.
type Update struct {
	Entity source.Entity
	Key    string
	Fields map[string]any
	Rule   string
}

const (
	statusPrinted = "PRINTED"
	statusVoided  = "VOIDED"
	statusPaid    = "PAID"
	msgSuccess    = "SUCCESS"

	tagClearance = "CLD"
	tagEffective = "EFD"
	tagCollected = "COD"
)

// eventRule maps one kind of six-field row to column writes.
// Rules are tried in order and the first match wins.
type eventRule struct {
	name  string
	match func(ev ack.EventRow, p Packed) bool
	apply func(h ack.Header, ev ack.EventRow, p Packed) (map[string]any, error)
}

var eventRules = map[sap.DocType][]eventRule{
	sap.FI16: {
		{
			name:  "printed",
			match: func(ev ack.EventRow, _ Packed) bool { return ev.Status == statusPrinted },
			apply: func(h ack.Header, ev ack.EventRow, p Packed) (map[string]any, error) {
				return syncedEvent(h, ev, p, source.ColPrintedDate)
			},
		},
		{
			name:  "voided",
			match: func(ev ack.EventRow, _ Packed) bool { return ev.Status == statusVoided },
			apply: func(h ack.Header, ev ack.EventRow, p Packed) (map[string]any, error) {
				return syncedEvent(h, ev, p, source.ColVoidDate)
			},
		},
	},
	sap.FI21: {
		{
			name: "cleared",
			match: func(ev ack.EventRow, p Packed) bool {
				return printedOK(ev) && p.Has(tagClearance) && !p.Has(tagEffective)
			},
			apply: func(_ ack.Header, _ ack.EventRow, p Packed) (map[string]any, error) {
				cleared, err := tagDate(p, tagClearance)
				if err != nil {
					return nil, err
				}

				return map[string]any{source.ColBankClearance: cleared}, nil
			},
		},
		{
			name: "cleared_effective",
			match: func(ev ack.EventRow, p Packed) bool {
				return printedOK(ev) && p.Has(tagClearance) && p.Has(tagEffective)
			},
			apply: func(_ ack.Header, ev ack.EventRow, p Packed) (map[string]any, error) {
				cleared, err := tagDate(p, tagClearance)
				if err != nil {
					return nil, err
				}

				effective, err := tagDate(p, tagEffective)
				if err != nil {
					return nil, err
				}

				return map[string]any{
					source.ColStatus:        ev.Status,
					source.ColBankClearance: cleared,
					source.ColEffectiveDate: effective,
				}, nil
			},
		},
		{
			name: "collected",
			match: func(ev ack.EventRow, p Packed) bool {
				return ev.Status == statusPaid && p.Has(tagCollected)
			},
			apply: func(_ ack.Header, _ ack.EventRow, p Packed) (map[string]any, error) {
				collected, err := tagDate(p, tagCollected)
				if err != nil {
					return nil, err
				}

				return map[string]any{source.ColCollectedDate: collected}, nil
			},
		},
	},
}

func printedOK(ev ack.EventRow) bool {
	return ev.Status == statusPrinted && ev.Message == msgSuccess
}

// syncedEvent is the FI16 update; the SAP reference is the file header timestamp
// and the event date is carried by the last packed token.
func syncedEvent(h ack.Header, ev ack.EventRow, p Packed, dateCol string) (map[string]any, error) {
	last, ok := p.Last()
	if !ok {
		return nil, fmt.Errorf("empty packed id: %w", ErrBadDate)
	}

	date, err := NormalizeDate(last.Date)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		source.ColSyncedStatus: SyncedOK,
		source.ColSAPRefNo:     h.Timestamp,
		source.ColStatus:       ev.Status,
		source.ColMessage:      ev.Message,
		dateCol:                date,
	}, nil
}

func tagDate(p Packed, tag string) (string, error) {
	tok, ok := p.Find(tag)
	if !ok {
		return "", fmt.Errorf("no %s token: %w", tag, ErrBadDate)
	}

	return NormalizeDate(tok.Date)
}

// Resolve turns one parsed row into the update it implies.
func Resolve(doc sap.DocType, h ack.Header, row ack.Row) (Update, error) {
	switch doc {
	case sap.FI09, sap.FI10:
		return paymentAdviceStatus(row.Status())
	case sap.FI15:
		return cashIssuanceStatus(row.Status())
	case sap.FI16, sap.FI21:
		return resolveEvent(doc, h, row.Event())
	}

	return Update{}, fmt.Errorf("%s: %w", doc, ErrNoRule)
}

func resolveEvent(doc sap.DocType, h ack.Header, ev ack.EventRow) (Update, error) {
	key, err := ack.CanonicalPaymentAdvice(ev.ID)
	if err != nil {
		return Update{}, err
	}

	p := ParsePacked(ev.PackedID)

	for _, r := range eventRules[doc] {
		if !r.match(ev, p) {
			continue
		}

		fields, err := r.apply(h, ev, p)
		if err != nil {
			return Update{}, fmt.Errorf("%s rule %s: %w", doc, r.name, err)
		}

		return Update{Entity: source.EntityPaymentAdvice, Key: key, Fields: fields, Rule: r.name}, nil
	}

	return Update{}, fmt.Errorf("%s status %q packed %q: %w", doc, ev.Status, ev.PackedID, ErrNoRule)
}

func paymentAdviceStatus(row ack.StatusRow) (Update, error) {
	key, err := ack.CanonicalPaymentAdvice(row.ID)
	if err != nil {
		return Update{}, err
	}

	synced, ok := SyncedStatus(row.Message)

	return Update{
		Entity: source.EntityPaymentAdvice,
		Key:    key,
		Rule:   "status",
		Fields: map[string]any{
			source.ColSyncedDate:   nullable(row.SyncedDate, row.SyncedDate != ""),
			source.ColSyncedStatus: nullable(synced, ok),
			source.ColMessage:      nullable(row.Message, row.Message != ""),
		},
	}, nil
}

func cashIssuanceStatus(row ack.StatusRow) (Update, error) {
	key, err := ack.CanonicalCashIssuance(row.ID)
	if err != nil {
		return Update{}, err
	}

	synced, ok := SyncedStatus(row.Message)
	code, hasCode := SAPCode(row.Message)
	remarks := SAPRemarks(row.Message)

	return Update{
		Entity: source.EntityCashIssuance,
		Key:    key,
		Rule:   "status",
		Fields: map[string]any{
			source.ColSyncedDate:   nullable(row.SyncedDate, row.SyncedDate != ""),
			source.ColSyncedStatus: nullable(synced, ok),
			source.ColSAPIndicator: 1,
			source.ColSAPCode:      nullable(code, hasCode),
			source.ColSAPRemarks:   nullable(remarks, remarks != ""),
		},
	}, nil
}

func nullable(s string, ok bool) any {
	if !ok {
		return nil
	}

	return s
}
