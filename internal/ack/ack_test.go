package ack_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnshuhailey/ppa-sap/internal/ack"
	"github.com/mnshuhailey/ppa-sap/internal/sap"
)

func TestParse_EventFile(t *testing.T) {
	text := "0|FI21|20241024235002\n" +
		"1|PPA1|PA-2024-00000001|PRINTED|SUCCESS|CLD-241024\n" +
		"1|PPA1|PA-2024-00000002|PAID|SUCCESS\n" +
		"\n" +
		"1|PPA1|PA-2024-00000003|PAID|SUCCESS|COD-241025\n" +
		"9|3\n"

	f, err := ack.Parse(sap.FI21, "FI21_20241024235002.txt", text)
	require.NoError(t, err)

	assert.Equal(t, ack.Header{RecordType: "0", DocType: "FI21", Timestamp: "20241024235002"}, f.Header)
	assert.True(t, f.Header.Matches(sap.FI21))

	require.Len(t, f.Rows, 2)
	assert.Equal(t, ack.EventRow{
		RecordIndicator: "1",
		CompanyCode:     "PPA1",
		ID:              "PA-2024-00000001",
		Status:          "PRINTED",
		Message:         "SUCCESS",
		PackedID:        "CLD-241024",
	}, f.Rows[0].Event())
	assert.Equal(t, 2, f.Rows[0].Line)
	assert.Equal(t, 5, f.Rows[1].Line)

	require.Len(t, f.Rejected, 2)
	assert.Equal(t, 3, f.Rejected[0].Line)
	assert.ErrorIs(t, f.Rejected[0].Err, ack.ErrArity)
	assert.Equal(t, 6, f.Rejected[1].Line)
	assert.Equal(t, "9|3", f.Rejected[1].Raw)
	assert.ErrorIs(t, f.Rejected[1].Err, ack.ErrRecordIndicator)
}

func TestParse_RecordIndicator(t *testing.T) {
	type testCase struct {
		name    string
		row     string
		wantErr error
	}

	tests := []testCase{
		{
			name: "data row",
			row:  "1|PPA1|PA-2024-00000004|PAID|SUCCESS|COD-241101",
		},
		{
			name:    "other indicator with full arity",
			row:     "2|PPA1|PA-2024-00000004|PAID|SUCCESS|COD-241101",
			wantErr: ack.ErrRecordIndicator,
		},
		{
			name:    "other indicator checked before arity",
			row:     "2|PPA1|PA-2024-00000004",
			wantErr: ack.ErrRecordIndicator,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ack.Parse(sap.FI16, "FI16_20241024180058.txt", "0|FI16|20241024180058\n"+tt.row+"\n")
			require.NoError(t, err)

			if tt.wantErr == nil {
				assert.Len(t, f.Rows, 1)
				assert.Empty(t, f.Rejected)

				return
			}

			assert.Empty(t, f.Rows)
			require.Len(t, f.Rejected, 1)
			assert.Equal(t, 2, f.Rejected[0].Line)
			assert.Equal(t, tt.row, f.Rejected[0].Raw)
			assert.ErrorIs(t, f.Rejected[0].Err, tt.wantErr)
		})
	}
}

func TestParse_StatusFile(t *testing.T) {
	text := "FI09|FI09|20241024235002\r\n" +
		"PA/2024/00000001|20241024|S: Document 5100000123 posted\r\n" +
		"PA-2024-00000002|20241024|E:Posting period closed|extra\r\n"

	f, err := ack.Parse(sap.FI09, "FI09_20241024235002.txt", text)
	require.NoError(t, err)

	require.Len(t, f.Rows, 1)
	assert.Equal(t, ack.StatusRow{
		ID:         "PA/2024/00000001",
		SyncedDate: "20241024",
		Message:    "S: Document 5100000123 posted",
	}, f.Rows[0].Status())

	require.Len(t, f.Rejected, 1)
	assert.ErrorIs(t, f.Rejected[0].Err, ack.ErrArity)
	assert.Contains(t, f.Rejected[0].Raw, "PA-2024-00000002")
}

func TestParse_Errors(t *testing.T) {
	_, err := ack.Parse(sap.FI09, "empty.txt", "")
	assert.ErrorIs(t, err, ack.ErrBadHeader)

	_, err = ack.Parse(sap.FI07, "FI07_x.txt", "0|FI07|x\n")
	assert.Error(t, err)
}

func TestHeader_Matches(t *testing.T) {
	h := ack.Header{RecordType: "0", DocType: "FI16", Timestamp: "20241024180058"}

	assert.True(t, h.Matches(sap.FI16))
	assert.False(t, h.Matches(sap.FI21))
}
