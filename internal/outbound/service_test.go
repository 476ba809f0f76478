package outbound_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/mnshuhailey/ppa-sap/internal/flatfile"
	"github.com/mnshuhailey/ppa-sap/internal/ledger"
	"github.com/mnshuhailey/ppa-sap/internal/outbound"
	"github.com/mnshuhailey/ppa-sap/internal/sap"
	"github.com/mnshuhailey/ppa-sap/internal/source"
	"github.com/mnshuhailey/ppa-sap/internal/transfer"
	"github.com/mnshuhailey/ppa-sap/internal/transfer/local"
)

// fakeLedger keeps emitted keys in memory.
type fakeLedger struct {
	mu      sync.Mutex
	pushed  map[string]uuid.UUID
	stolen  map[string]bool
	failing map[string]bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		pushed:  make(map[string]uuid.UUID),
		stolen:  make(map[string]bool),
		failing: make(map[string]bool),
	}
}

func (l *fakeLedger) IsDuplicate(_ context.Context, doc sap.DocType, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.failing[key] {
		return false, errors.New("connection reset")
	}

	_, ok := l.pushed[string(doc)+"/"+key]

	return ok, nil
}

func (l *fakeLedger) Reserve(_ context.Context, runID uuid.UUID, doc sap.DocType, entries []ledger.Entry) ([]ledger.Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []ledger.Entry

	for _, e := range entries {
		id := string(doc) + "/" + e.Key
		if _, ok := l.pushed[id]; ok || l.stolen[e.Key] {
			continue
		}

		l.pushed[id] = runID
		out = append(out, e)
	}

	return out, nil
}

func (l *fakeLedger) Release(_ context.Context, runID uuid.UUID, doc sap.DocType, keys []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, k := range keys {
		id := string(doc) + "/" + k
		if l.pushed[id] == runID {
			delete(l.pushed, id)
		}
	}

	return nil
}

func (l *fakeLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.pushed)
}

func paymentAdvice(key string) *source.Record {
	return &source.Record{
		Key: key,
		Fields: map[string]any{
			"payment_advice_name":    key,
			"date_created":           time.Date(2024, 9, 9, 11, 25, 3, 0, time.UTC),
			"distribution_item_name": "Bantuan Sara Hidup",
			"amount":                 "150.00",
			"gl_account":             "61010101",
			"cost_center":            "PPA001",
			"sap_code":               "V000123",
			"fund_code":              "ZKT",
		},
	}
}

func paymentAdvices(n int) []*source.Record {
	out := make([]*source.Record, n)
	for i := range out {
		out[i] = paymentAdvice(fmt.Sprintf("PA-2024-%08d", i+1))
	}

	return out
}

type harness struct {
	svc    *outbound.Service
	ledger *fakeLedger
	repo   *source.MockRepository
	root   string
	dials  int
	logs   bytes.Buffer
	// wrap, when set, decorates the channel each run dials.
	wrap func(transfer.Channel) transfer.Channel
}

func newHarness(t *testing.T, chunkSize int, dirs ...string) *harness {
	t.Helper()

	ctrl := gomock.NewController(t)
	root := t.TempDir()

	for _, d := range dirs {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0o755))
	}

	set, err := flatfile.DefaultSet()
	require.NoError(t, err)

	h := &harness{
		ledger: newFakeLedger(),
		repo:   source.NewMockRepository(ctrl),
		root:   root,
	}

	dial := func(context.Context) (transfer.Channel, error) {
		h.dials++

		ch, err := local.New(root)
		if err != nil || h.wrap == nil {
			return ch, err
		}

		return h.wrap(ch), nil
	}

	clock := time.Date(2024, 10, 24, 20, 0, 0, 470_000_000, time.UTC)

	h.svc = outbound.NewService(h.repo, h.ledger, dial, set, outbound.Config{
		OutgoingDir: "{doc}/Outgoing",
		ChunkSize:   chunkSize,
		Location:    time.FixedZone("MYT", 8*60*60),
		Now:         func() time.Time { return clock },
	}, slog.New(slog.NewTextHandler(&h.logs, nil)))

	return h
}

func (h *harness) candidates(q source.Query, recs []*source.Record) {
	h.repo.EXPECT().ListCandidates(gomock.Any(), q, gomock.Any()).Return(recs, nil).AnyTimes()
}

func (h *harness) read(t *testing.T, doc sap.DocType, name string) []string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(h.root, string(doc), "Outgoing", name))
	require.NoError(t, err)

	return strings.Split(string(data), "\n")
}

func TestService_Run_Idempotent(t *testing.T) {
	h := newHarness(t, 0, "FI09/Outgoing")
	h.candidates(source.QueryInvoicePayee, paymentAdvices(3))
	h.candidates(source.QueryInvoiceRecipient, nil)

	ctx := context.Background()

	first, err := h.svc.Run(ctx, sap.FI09)
	require.NoError(t, err)
	require.Len(t, first.Files, 1)
	assert.Equal(t, 3, first.Records)

	lines := h.read(t, sap.FI09, first.Files[0])
	assert.Equal(t, "0|FI09|2024102504000047|PPA||3", lines[0])
	assert.Len(t, lines, 1+3*3)

	second, err := h.svc.Run(ctx, sap.FI09)
	require.NoError(t, err)
	assert.Empty(t, second.Files)
	assert.Equal(t, 3, second.Duplicates)
	assert.Equal(t, 1, h.dials)
}

func TestService_Run_NothingToDo(t *testing.T) {
	h := newHarness(t, 0, "FI15/Outgoing")
	h.candidates(source.QueryCashIssuance, nil)

	res, err := h.svc.Run(context.Background(), sap.FI15)
	require.NoError(t, err)
	assert.Empty(t, res.Files)
	assert.Zero(t, h.dials)

	entries, err := os.ReadDir(filepath.Join(h.root, "FI15", "Outgoing"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestService_Run_Chunks(t *testing.T) {
	h := newHarness(t, 1000, "FI09/Outgoing")
	h.candidates(source.QueryInvoicePayee, paymentAdvices(2500))
	h.candidates(source.QueryInvoiceRecipient, nil)

	res, err := h.svc.Run(context.Background(), sap.FI09)
	require.NoError(t, err)
	require.Len(t, res.Files, 3)
	assert.Equal(t, 2500, res.Records)

	want := []string{"1000", "1000", "500"}
	names := make(map[string]bool)

	for i, name := range res.Files {
		names[name] = true

		lines := h.read(t, sap.FI09, name)
		head := strings.Split(lines[0], "|")
		assert.Equal(t, want[i], head[5])
		assert.Equal(t, name, fmt.Sprintf("FI09_%s.txt", head[2]))
	}

	assert.Len(t, names, 3)
	assert.Equal(t, 2500, h.ledger.count())
}

func TestService_Run_TransferFailureReleases(t *testing.T) {
	h := newHarness(t, 0)
	h.candidates(source.QueryInvoicePayee, paymentAdvices(2))
	h.candidates(source.QueryInvoiceRecipient, nil)

	_, err := h.svc.Run(context.Background(), sap.FI09)
	require.ErrorIs(t, err, transfer.ErrDirNotFound)
	assert.Zero(t, h.ledger.count())
}

func TestService_Run_ConcurrentClaim(t *testing.T) {
	h := newHarness(t, 0, "FI09/Outgoing")
	h.candidates(source.QueryInvoicePayee, paymentAdvices(3))
	h.candidates(source.QueryInvoiceRecipient, nil)
	h.ledger.stolen["PA-2024-00000002"] = true

	res, err := h.svc.Run(context.Background(), sap.FI09)
	require.NoError(t, err)
	require.Len(t, res.Files, 1)

	lines := h.read(t, sap.FI09, res.Files[0])
	assert.True(t, strings.HasSuffix(lines[0], "||2"))
	assert.Len(t, lines, 1+2*3)
	assert.NotContains(t, strings.Join(lines, "\n"), "PA-2024-00000002")
}

func TestService_Run_SkipsBadRecords(t *testing.T) {
	h := newHarness(t, 0, "FI09/Outgoing")

	missingAmount := paymentAdvice("PA-2024-00000009")
	delete(missingAmount.Fields, "amount")

	recs := append(paymentAdvices(2), missingAmount, paymentAdvice("PA-2024-00000001"), paymentAdvice(""))
	h.candidates(source.QueryInvoicePayee, recs)
	h.candidates(source.QueryInvoiceRecipient, []*source.Record{paymentAdvice("PA-2024-00000050")})
	h.ledger.failing["PA-2024-00000050"] = true

	res, err := h.svc.Run(context.Background(), sap.FI09)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Records)
	assert.Equal(t, 4, res.Skipped)
	assert.Equal(t, 6, res.Candidates)

	logs := h.logs.String()
	assert.Contains(t, logs, `msg="skipping record"`)
	assert.Contains(t, logs, `key="" reason="empty key"`)
	assert.Contains(t, logs, `key=PA-2024-00000001 reason="key already collected in this run"`)
	assert.Contains(t, logs, "key=PA-2024-00000009")
	assert.Contains(t, logs, "key=PA-2024-00000050")
}

// createLimit fails every Create after the first n.
type createLimit struct {
	transfer.Channel
	n     int
	calls int
}

func (c *createLimit) Create(ctx context.Context, p string) (transfer.Writer, error) {
	c.calls++
	if c.calls > c.n {
		return nil, errors.New("connection reset")
	}

	return c.Channel.Create(ctx, p)
}

func TestService_Run_PartialOutput(t *testing.T) {
	h := newHarness(t, 2, "FI09/Outgoing")
	h.candidates(source.QueryInvoicePayee, paymentAdvices(4))
	h.candidates(source.QueryInvoiceRecipient, nil)
	h.wrap = func(ch transfer.Channel) transfer.Channel {
		return &createLimit{Channel: ch, n: 1}
	}

	res, err := h.svc.Run(context.Background(), sap.FI09)
	require.ErrorIs(t, err, transfer.ErrTransfer)
	require.NotNil(t, res)
	require.Len(t, res.Files, 1)

	entries, err := os.ReadDir(filepath.Join(h.root, "FI09", "Outgoing"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, res.Files[0], entries[0].Name())

	lines := h.read(t, sap.FI09, res.Files[0])
	assert.True(t, strings.HasSuffix(lines[0], "||2"))

	assert.Equal(t, 2, h.ledger.count())

	for _, key := range []string{"PA-2024-00000001", "PA-2024-00000002"} {
		dup, err := h.ledger.IsDuplicate(context.Background(), sap.FI09, key)
		require.NoError(t, err)
		assert.True(t, dup, key)
	}

	for _, key := range []string{"PA-2024-00000003", "PA-2024-00000004"} {
		dup, err := h.ledger.IsDuplicate(context.Background(), sap.FI09, key)
		require.NoError(t, err)
		assert.False(t, dup, key)
	}
}

func TestService_Run_DirectCreatedToday(t *testing.T) {
	h := newHarness(t, 0, "FI10/Outgoing")

	var days []string

	h.repo.EXPECT().ListCandidates(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ source.Query, f source.Filter) ([]*source.Record, error) {
			require.NotNil(t, f.CreatedOn)
			days = append(days, f.CreatedOn.Format(time.DateOnly))

			return nil, nil
		}).Times(2)

	_, err := h.svc.Run(context.Background(), sap.FI10)
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-10-25", "2024-10-25"}, days)
}

func TestService_Run_Errors(t *testing.T) {
	h := newHarness(t, 0)

	_, err := h.svc.Run(context.Background(), sap.FI21)
	assert.ErrorIs(t, err, outbound.ErrUnknownDocument)

	h.repo.EXPECT().ListCandidates(gomock.Any(), source.QueryAsnaf, gomock.Any()).Return(nil, errors.New("db down"))

	_, err = h.svc.Run(context.Background(), sap.FI07)
	assert.Error(t, err)
}
