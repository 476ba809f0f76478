package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mnshuhailey/ppa-sap/internal/source"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// candidate describes one extract: its SQL, the column that holds the business
// key, the creation timestamp column, and fixed positional arguments.
// When a Filter.CreatedOn is given it is appended as the last argument.
type candidate struct {
	query      string
	keyCol     string
	createdCol string
	args       []any
	dated      bool
}

const selectPaymentAdviceColumns = `
	payment_advice_name, date_created, distributionitems_name AS distribution_item_name,
	ad_paamount AS amount, vwlzs_glaccount AS gl_account, vwlzs_costcenter AS cost_center,
	coa_costcenter AS coa_cost_center, sap_asnafcategory AS asnaf_category,
	ad_penerimamop AS payee_mop, aa_invoice, remark, ad_sapcommittedreference AS committed_reference,
	fundcode AS fund_code, businessarea AS business_area, sapcode AS sap_code,
	ad_penerimaname AS payee_name, street1, city, postcode, negeri AS state, email,
	vwlzs_swiftcode AS swift_code, bankaccountno AS bank_account_no, identificationnumic AS identification_num_ic
`

const paymentAdviceWhere = `
	FROM gabung_pa_sap
	WHERE pa_type = ANY($1::text[]) AND sap_touchpoint = $2`

var candidates = map[source.Query]candidate{
	source.QueryAsnaf: {
		query: `SELECT asnaf_id, name, gender, identification_num_ic, street1, street2, street3,
				city, postcode, state, country, telephone_no_home, mobile_phone_num, email,
				bank_account_num, created_at
			FROM asnaf
			ORDER BY created_at, asnaf_id`,
		keyCol:     "asnaf_id",
		createdCol: "created_at",
	},
	source.QueryInvoicePayee: {
		query:      `SELECT ` + selectPaymentAdviceColumns + paymentAdviceWhere + ` ORDER BY date_created, payment_advice_name`,
		keyCol:     "payment_advice_name",
		createdCol: "date_created",
		args:       []any{[]string{"Invoice-Asnaf", "Invoice-Master"}, "FI09"},
	},
	source.QueryInvoiceRecipient: {
		query:      `SELECT ` + selectPaymentAdviceColumns + paymentAdviceWhere + ` ORDER BY date_created, payment_advice_name`,
		keyCol:     "payment_advice_name",
		createdCol: "date_created",
		args:       []any{[]string{"Invoice-Recipient"}, "FI09"},
	},
	source.QueryDirectPayee: {
		query: `SELECT ` + selectPaymentAdviceColumns + paymentAdviceWhere + `
			AND ($3::date IS NULL OR date_created::date = $3::date)
			ORDER BY date_created, payment_advice_name`,
		keyCol:     "payment_advice_name",
		createdCol: "date_created",
		args:       []any{[]string{"Direct-Asnaf", "Direct-Master"}, "FI10"},
		dated:      true,
	},
	source.QueryDirectRecipient: {
		query: `SELECT ` + selectPaymentAdviceColumns + paymentAdviceWhere + `
			AND ($3::date IS NULL OR date_created::date = $3::date)
			ORDER BY date_created, payment_advice_name`,
		keyCol:     "payment_advice_name",
		createdCol: "date_created",
		args:       []any{[]string{"Direct-Recipient"}, "FI10"},
		dated:      true,
	},
	source.QueryCashIssuance: {
		query: `SELECT ci.cash_issuance_name, ci.date_created,
				ci.distributionitems_name AS distribution_item_name, ci.ci_amount AS amount,
				ci.vwlzs_sapcode AS sap_code,
				coa.vwlzs_glaccount AS gl_account, coa.vwlzs_costcenter AS cost_center,
				coa.sap_asnafcategory AS asnaf_category, coa.fundcode AS fund_code,
				coa.businessarea AS business_area,
				tab.vwlzs_glaccount AS tabung_gl_account, tab.vwlzs_costcenter AS tabung_cost_center
			FROM cash_issuance ci
			LEFT JOIN distribution_item di ON di.distributionitems_id = ci.distributionitems_id
			LEFT JOIN chart_of_account coa ON coa.vwlzs_name = di.ad_coaname
			LEFT JOIN chart_of_account tab ON tab.vwlzs_name = ci.tabung_coa
			ORDER BY ci.date_created, ci.cash_issuance_name`,
		keyCol:     "cash_issuance_name",
		createdCol: "date_created",
	},
}

// ListCandidates runs the named extract and returns every row as a Record.
func (s *Store) ListCandidates(ctx context.Context, q source.Query, f source.Filter) ([]*source.Record, error) {
	c, ok := candidates[q]
	if !ok {
		return nil, fmt.Errorf("%s: %w", q, source.ErrUnknownQuery)
	}

	args := slices.Clone(c.args)
	if c.dated {
		var day any
		if f.CreatedOn != nil {
			day = f.CreatedOn.Format(time.DateOnly)
		}

		args = append(args, day)
	}

	rows, err := s.db.QueryContext(ctx, c.query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing %s candidates: %w", q, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading %s columns: %w", q, err)
	}

	var records []*source.Record

	for rows.Next() {
		rec, err := scanRecord(rows, cols, c)
		if err != nil {
			return nil, fmt.Errorf("scanning %s candidate: %w", q, err)
		}

		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s candidates: %w", q, err)
	}

	return records, nil
}

// scanRecord reads one row into a field map keyed by column name.
func scanRecord(rows *sql.Rows, cols []string, c candidate) (*source.Record, error) {
	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))

	for i := range values {
		ptrs[i] = &values[i]
	}

	if err := rows.Scan(ptrs...); err != nil {
		return nil, err
	}

	rec := &source.Record{Fields: make(map[string]any, len(cols))}

	for i, col := range cols {
		v := values[i]
		if b, ok := v.([]byte); ok {
			v = string(b)
		}

		rec.Fields[col] = v
	}

	if key, ok := rec.Fields[c.keyCol].(string); ok {
		rec.Key = strings.TrimSpace(key)
	}

	if created, ok := rec.Fields[c.createdCol].(time.Time); ok {
		rec.CreatedAt = created
	}

	return rec, nil
}

func (s *Store) Exists(ctx context.Context, e source.Entity, key string) (bool, error) {
	table, keyCol, err := e.Table()
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1)`, table, keyCol)

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, key).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking %s %s: %w", table, key, err)
	}

	return exists, nil
}

// Update writes the given columns of one business record in a single statement.
// Column names are checked against the entity's allow-list before the SQL is built.
func (s *Store) Update(ctx context.Context, e source.Entity, key string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	if err := e.CheckColumns(fields); err != nil {
		return err
	}

	table, keyCol, err := e.Table()
	if err != nil {
		return err
	}

	cols := make([]string, 0, len(fields))
	for col := range fields {
		cols = append(cols, col)
	}

	slices.Sort(cols)

	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)

	for i, col := range cols {
		sets[i] = fmt.Sprintf("%s = $%d", col, i+1)
		args = append(args, fields[col])
	}

	args = append(args, key)

	query := fmt.Sprintf(`UPDATE %s SET %s WHERE %s = $%d`, table, strings.Join(sets, ", "), keyCol, len(args))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating %s %s: %w", table, key, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating %s %s: %w", table, key, err)
	}

	if n == 0 {
		return fmt.Errorf("updating %s %s: %w", table, key, source.ErrNotFound)
	}

	return nil
}
