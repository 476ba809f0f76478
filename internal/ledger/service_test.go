package ledger_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/mnshuhailey/ppa-sap/internal/ledger"
	"github.com/mnshuhailey/ppa-sap/internal/sap"
)

func TestService_IsDuplicate(t *testing.T) {
	type testCase struct {
		name      string
		setupMock func(m *ledger.MockRepository)
		want      bool
		wantErr   bool
	}

	tests := []testCase{
		{
			name: "AlreadyPushed",
			setupMock: func(m *ledger.MockRepository) {
				m.EXPECT().Exists(gomock.Any(), sap.FI09, "PA-2024-00000001", ledger.StatusPushed).Return(true, nil)
			},
			want: true,
		},
		{
			name: "NotYetPushed",
			setupMock: func(m *ledger.MockRepository) {
				m.EXPECT().Exists(gomock.Any(), sap.FI09, "PA-2024-00000001", ledger.StatusPushed).Return(false, nil)
			},
		},
		{
			name: "RepoError",
			setupMock: func(m *ledger.MockRepository) {
				m.EXPECT().Exists(gomock.Any(), sap.FI09, "PA-2024-00000001", ledger.StatusPushed).Return(false, errors.New("db error"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := ledger.NewMockRepository(ctrl)
			tt.setupMock(repo)

			svc := ledger.NewService(repo)
			got, err := svc.IsDuplicate(context.Background(), sap.FI09, "PA-2024-00000001")

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestService_Reserve(t *testing.T) {
	runID := uuid.New()

	entries := []ledger.Entry{
		{Key: "PA-1", Raw: "1|a"},
		{Key: "PA-2", Raw: "1|b"},
		{Key: "PA-3", Raw: "1|c"},
	}

	type testCase struct {
		name     string
		setupTx  func(m *ledger.MockRepository, tx *ledger.MockEmissionTx)
		wantKeys []string
		wantErr  bool
	}

	tests := []testCase{
		{
			name: "AllReserved",
			setupTx: func(m *ledger.MockRepository, tx *ledger.MockEmissionTx) {
				m.EXPECT().BeginEmission(gomock.Any()).Return(tx, nil)
				tx.EXPECT().Insert(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, e *ledger.Entry) error {
						assert.Equal(t, runID, e.RunID)
						assert.Equal(t, sap.FI10, e.Doc)
						assert.Equal(t, ledger.StatusPushed, e.Status)
						return nil
					}).Times(3)
				tx.EXPECT().Commit().Return(nil)
				tx.EXPECT().Rollback().Return(nil)
			},
			wantKeys: []string{"PA-1", "PA-2", "PA-3"},
		},
		{
			name: "ConcurrentClaimDropped",
			setupTx: func(m *ledger.MockRepository, tx *ledger.MockEmissionTx) {
				m.EXPECT().BeginEmission(gomock.Any()).Return(tx, nil)
				tx.EXPECT().Insert(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, e *ledger.Entry) error {
						if e.Key == "PA-2" {
							return ledger.ErrDuplicate
						}
						return nil
					}).Times(3)
				tx.EXPECT().Commit().Return(nil)
				tx.EXPECT().Rollback().Return(nil)
			},
			wantKeys: []string{"PA-1", "PA-3"},
		},
		{
			name: "InsertErrorRollsBack",
			setupTx: func(m *ledger.MockRepository, tx *ledger.MockEmissionTx) {
				m.EXPECT().BeginEmission(gomock.Any()).Return(tx, nil)
				tx.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(errors.New("connection reset"))
				tx.EXPECT().Rollback().Return(nil)
			},
			wantErr: true,
		},
		{
			name: "CommitError",
			setupTx: func(m *ledger.MockRepository, tx *ledger.MockEmissionTx) {
				m.EXPECT().BeginEmission(gomock.Any()).Return(tx, nil)
				tx.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(nil).Times(3)
				tx.EXPECT().Commit().Return(errors.New("commit failed"))
				tx.EXPECT().Rollback().Return(nil)
			},
			wantErr: true,
		},
		{
			name: "BeginError",
			setupTx: func(m *ledger.MockRepository, _ *ledger.MockEmissionTx) {
				m.EXPECT().BeginEmission(gomock.Any()).Return(nil, errors.New("db down"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := ledger.NewMockRepository(ctrl)
			tx := ledger.NewMockEmissionTx(ctrl)
			tt.setupTx(repo, tx)

			svc := ledger.NewService(repo)
			got, err := svc.Reserve(context.Background(), runID, sap.FI10, entries)

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)

			keys := make([]string, len(got))
			for i, e := range got {
				keys[i] = e.Key
			}

			assert.Equal(t, tt.wantKeys, keys)
		})
	}
}

func TestService_ReserveEmpty(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	svc := ledger.NewService(ledger.NewMockRepository(ctrl))

	got, err := svc.Reserve(context.Background(), uuid.New(), sap.FI07, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestService_Release(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	runID := uuid.New()
	repo := ledger.NewMockRepository(ctrl)
	repo.EXPECT().
		Delete(gomock.Any(), runID, sap.FI15, ledger.StatusPushed, []string{"CI-2024-0001"}).
		Return(int64(1), nil)

	svc := ledger.NewService(repo)

	require.NoError(t, svc.Release(context.Background(), runID, sap.FI15, []string{"CI-2024-0001"}))
	require.NoError(t, svc.Release(context.Background(), runID, sap.FI15, nil))
}

func TestService_ReadGate(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	runID := uuid.New()
	name := "FI21_20241024235002.txt"

	repo := ledger.NewMockRepository(ctrl)
	gomock.InOrder(
		repo.EXPECT().Exists(gomock.Any(), sap.FI21, name, ledger.StatusRead).Return(false, nil),
		repo.EXPECT().Insert(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, e *ledger.Entry) error {
				assert.Equal(t, ledger.StatusRead, e.Status)
				assert.Equal(t, name, e.Key)
				assert.Equal(t, "0|FI21|20241024235002", e.Raw)
				return nil
			}),
		repo.EXPECT().Insert(gomock.Any(), gomock.Any()).Return(ledger.ErrDuplicate),
	)

	svc := ledger.NewService(repo)

	read, err := svc.HasRead(context.Background(), sap.FI21, name)
	require.NoError(t, err)
	assert.False(t, read)

	require.NoError(t, svc.RecordRead(context.Background(), runID, sap.FI21, name, "0|FI21|20241024235002"))

	err = svc.RecordRead(context.Background(), runID, sap.FI21, name, "0|FI21|20241024235002")
	assert.ErrorIs(t, err, ledger.ErrDuplicate)
}
