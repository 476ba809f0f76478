package reconcile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mnshuhailey/ppa-sap/internal/reconcile"
)

func TestSyncedStatus(t *testing.T) {
	got, ok := reconcile.SyncedStatus("S: Document posted")
	assert.True(t, ok)
	assert.Equal(t, reconcile.SyncedOK, got)

	got, ok = reconcile.SyncedStatus("E: Period closed")
	assert.True(t, ok)
	assert.Equal(t, reconcile.SyncedError, got)

	_, ok = reconcile.SyncedStatus("W: Warning")
	assert.False(t, ok)

	_, ok = reconcile.SyncedStatus("")
	assert.False(t, ok)
}

func TestSAPCode(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{name: "DocumentNumber", input: "S: Document 5100000123 posted in company PPA1", want: "5100000123", wantOK: true},
		{name: "PostedMessage", input: "S: Document 5100000123 posted", want: "5100000123", wantOK: true},
		{name: "WideSpacing", input: "S:   Document    5100000123 posted", want: "5100000123", wantOK: true},
		{name: "LongTail", input: "S: Document 51000001234567", want: "5100000123", wantOK: true},
		{name: "ShortTail", input: "S:Doc 51", want: "51", wantOK: true},
		{name: "NoColon", input: "S Document 5100000123", wantOK: false},
		{name: "SingleWord", input: "E: Failed", wantOK: false},
		{name: "Empty", input: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := reconcile.SAPCode(tt.input)

			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSAPRemarks(t *testing.T) {
	assert.Equal(t, "Document 5100000123 posted", reconcile.SAPRemarks("S: Document 5100000123 posted"))
	assert.Equal(t, "", reconcile.SAPRemarks("S"))
	assert.Equal(t, "", reconcile.SAPRemarks(""))
}
