package source

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"
)

var (
	ErrNotFound      = errors.New("source record not found")
	ErrUnknownColumn = errors.New("column is not updatable")
	ErrUnknownQuery  = errors.New("unknown candidate query")
)

// Record is one business event read from the transactional database.
// Fields are keyed by the snake_case aliases the candidate queries select.
type Record struct {
	Key       string
	CreatedAt time.Time
	Fields    map[string]any
}

// Value returns the named field, nil when the column is absent or NULL.
func (r *Record) Value(name string) any {
	if r == nil || r.Fields == nil {
		return nil
	}

	return r.Fields[name]
}

// Query names a candidate extract. The SQL behind each name lives in the store.
type Query string

const (
	QueryAsnaf            Query = "asnaf"
	QueryInvoicePayee     Query = "invoice_payee"
	QueryInvoiceRecipient Query = "invoice_recipient"
	QueryDirectPayee      Query = "direct_payee"
	QueryDirectRecipient  Query = "direct_recipient"
	QueryCashIssuance     Query = "cash_issuance"
)

// Filter narrows a candidate query.
type Filter struct {
	// CreatedOn restricts to records created on this calendar day.
	CreatedOn *time.Time
}

// Entity is a business table the acknowledgement readers update.
type Entity string

const (
	EntityPaymentAdvice Entity = "payment_advice"
	EntityCashIssuance  Entity = "cash_issuance"
)

// Columns the field-update mapper may write, per entity.
const (
	ColSyncedDate      = "ad_synced_date"
	ColSyncedStatus    = "synced_status"
	ColMessage         = "pa_message"
	ColStatus          = "status"
	ColSAPRefNo        = "ad_saprefno"
	ColPrintedDate     = "ad_printed_date"
	ColVoidDate        = "ad_void_date"
	ColBankClearance   = "ad_bank_clearance"
	ColEffectiveDate   = "ad_effective_date"
	ColCollectedDate   = "ad_collected_date"
	ColSAPIndicator    = "sap_indicator"
	ColSAPCode         = "sap_code"
	ColSAPRemarks      = "sap_remarks"
	ColPaymentAdvice   = "payment_advice_name"
	ColCashIssuance    = "cash_issuance_name"
	tablePaymentAdvice = "payment_advice"
	tableCashIssuance  = "cash_issuance"
)

type entityDef struct {
	table   string
	key     string
	columns []string
}

var entities = map[Entity]entityDef{
	EntityPaymentAdvice: {
		table: tablePaymentAdvice,
		key:   ColPaymentAdvice,
		columns: []string{
			ColSyncedDate, ColSyncedStatus, ColMessage, ColStatus, ColSAPRefNo,
			ColPrintedDate, ColVoidDate, ColBankClearance, ColEffectiveDate, ColCollectedDate,
		},
	},
	EntityCashIssuance: {
		table: tableCashIssuance,
		key:   ColCashIssuance,
		columns: []string{
			ColSyncedDate, ColSyncedStatus, ColSAPIndicator, ColSAPCode, ColSAPRemarks,
		},
	},
}

// Table returns the table and key column of an entity.
func (e Entity) Table() (table, key string, err error) {
	def, ok := entities[e]
	if !ok {
		return "", "", fmt.Errorf("unknown entity %q", e)
	}

	return def.table, def.key, nil
}

// CheckColumns reports the first column that the entity does not allow updating.
func (e Entity) CheckColumns(fields map[string]any) error {
	def, ok := entities[e]
	if !ok {
		return fmt.Errorf("unknown entity %q", e)
	}

	for col := range fields {
		if !slices.Contains(def.columns, col) {
			return fmt.Errorf("%s.%s: %w", def.table, col, ErrUnknownColumn)
		}
	}

	return nil
}

// Repository reads candidate records and applies acknowledgement updates.
//
//go:generate mockgen -source=source.go -destination=repository_mock.go -package=source
type Repository interface {
	ListCandidates(ctx context.Context, q Query, f Filter) ([]*Record, error)
	Exists(ctx context.Context, e Entity, key string) (bool, error)
	Update(ctx context.Context, e Entity, key string, fields map[string]any) error
}
