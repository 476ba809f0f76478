package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnshuhailey/ppa-sap/internal/database/dbtest"
	"github.com/mnshuhailey/ppa-sap/internal/source"
	"github.com/mnshuhailey/ppa-sap/internal/source/store"
)

func TestStore_Integration(t *testing.T) {
	db := dbtest.Open(t)
	ctx := context.Background()
	s := store.New(db)

	t.Run("DirectCandidatesCreatedToday", func(t *testing.T) {
		dbtest.Truncate(t, db, "gabung_pa_sap")

		_, err := db.ExecContext(ctx, `
			INSERT INTO gabung_pa_sap (payment_advice_name, pa_type, sap_touchpoint, date_created, ad_paamount)
			VALUES
				('PA-2024-00000001', 'Direct-Asnaf',     'FI10', '2024-10-24 09:00:00', 150.00),
				('PA-2024-00000002', 'Direct-Master',    'FI10', '2024-10-23 09:00:00', 90.50),
				('PA-2024-00000003', 'Direct-Recipient', 'FI10', '2024-10-24 10:00:00', 10.00),
				('PA-2024-00000004', 'Invoice-Asnaf',    'FI09', '2024-10-24 11:00:00', 20.00)`)
		require.NoError(t, err)

		day := time.Date(2024, 10, 24, 0, 0, 0, 0, time.UTC)

		got, err := s.ListCandidates(ctx, source.QueryDirectPayee, source.Filter{CreatedOn: &day})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "PA-2024-00000001", got[0].Key)
		assert.Equal(t, 2024, got[0].CreatedAt.Year())
		assert.NotNil(t, got[0].Value("amount"))

		all, err := s.ListCandidates(ctx, source.QueryDirectPayee, source.Filter{})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "PA-2024-00000002", all[0].Key)

		invoices, err := s.ListCandidates(ctx, source.QueryInvoicePayee, source.Filter{})
		require.NoError(t, err)
		require.Len(t, invoices, 1)
		assert.Equal(t, "PA-2024-00000004", invoices[0].Key)
	})

	t.Run("CashIssuanceJoinsChartOfAccount", func(t *testing.T) {
		dbtest.Truncate(t, db, "cash_issuance", "distribution_item", "chart_of_account")

		_, err := db.ExecContext(ctx, `
			INSERT INTO chart_of_account (vwlzs_name, vwlzs_glaccount, vwlzs_costcenter) VALUES
				('COA-A', '5100001', 'CC01'),
				('TAB-1', '2200001', 'CC99');
			INSERT INTO distribution_item (distributionitems_id, ad_coaname) VALUES ('DI-1', 'COA-A');
			INSERT INTO cash_issuance (cash_issuance_name, date_created, distributionitems_id, ci_amount, tabung_coa)
			VALUES ('CI-2024-0001', '2024-10-24 09:00:00', 'DI-1', 300.00, 'TAB-1')`)
		require.NoError(t, err)

		got, err := s.ListCandidates(ctx, source.QueryCashIssuance, source.Filter{})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "CI-2024-0001", got[0].Key)
		assert.Equal(t, "5100001", got[0].Value("gl_account"))
		assert.Equal(t, "2200001", got[0].Value("tabung_gl_account"))
	})

	t.Run("UnknownQuery", func(t *testing.T) {
		_, err := s.ListCandidates(ctx, source.Query("vendors"), source.Filter{})
		assert.ErrorIs(t, err, source.ErrUnknownQuery)
	})

	t.Run("ExistsAndUpdate", func(t *testing.T) {
		dbtest.Truncate(t, db, "payment_advice")

		_, err := db.ExecContext(ctx, `INSERT INTO payment_advice (payment_advice_name) VALUES ('PA-2024-00000001')`)
		require.NoError(t, err)

		ok, err := s.Exists(ctx, source.EntityPaymentAdvice, "PA-2024-00000001")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.Exists(ctx, source.EntityPaymentAdvice, "PA-2024-00000099")
		require.NoError(t, err)
		assert.False(t, ok)

		err = s.Update(ctx, source.EntityPaymentAdvice, "PA-2024-00000001", map[string]any{
			source.ColBankClearance: "20241024",
			source.ColStatus:        "PRINTED",
			source.ColMessage:       nil,
		})
		require.NoError(t, err)

		var clearance, status string
		require.NoError(t, db.QueryRowContext(ctx,
			`SELECT ad_bank_clearance, status FROM payment_advice WHERE payment_advice_name = $1`,
			"PA-2024-00000001").Scan(&clearance, &status))
		assert.Equal(t, "20241024", clearance)
		assert.Equal(t, "PRINTED", status)

		err = s.Update(ctx, source.EntityPaymentAdvice, "PA-2024-00000099", map[string]any{source.ColStatus: "PAID"})
		assert.ErrorIs(t, err, source.ErrNotFound)
	})

	t.Run("UpdateRejectsUnlistedColumn", func(t *testing.T) {
		err := s.Update(ctx, source.EntityCashIssuance, "CI-2024-0001", map[string]any{
			"cash_issuance_name = 'x'; --": "y",
		})
		assert.ErrorIs(t, err, source.ErrUnknownColumn)

		err = s.Update(ctx, source.EntityCashIssuance, "CI-2024-0001", map[string]any{source.ColPrintedDate: "20241024"})
		assert.ErrorIs(t, err, source.ErrUnknownColumn)
	})
}
