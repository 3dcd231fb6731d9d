package depreciation

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hospital-accounting-ledger/internal/audit"
	"github.com/hospital-accounting-ledger/internal/config"
	"github.com/hospital-accounting-ledger/internal/domain/asset"
	"github.com/hospital-accounting-ledger/internal/domain/currency"
	"github.com/hospital-accounting-ledger/internal/domain/ledger"
	"github.com/hospital-accounting-ledger/internal/domain/outbox"
)

func TestStraightLine(t *testing.T) {
	hospitalID := uuid.New()

	t.Run("mri scanner over ten years", func(t *testing.T) {
		a, err := asset.NewFixedAsset(hospitalID, "MRI Scanner", "radiology",
			500_000_000, 5_000_000, 10, asset.MethodStraightLine, time.Now())
		require.NoError(t, err)

		s := StraightLine{}
		assert.Equal(t, int64(49_500_000), s.AnnualCents(a))
		assert.Equal(t, int64(4_125_000), s.MonthlyCents(a))
	})

	t.Run("division floors", func(t *testing.T) {
		a, err := asset.NewFixedAsset(hospitalID, "Ventilator", "icu",
			1_000_000, 0, 7, asset.MethodStraightLine, time.Now())
		require.NoError(t, err)

		s := StraightLine{}
		assert.Equal(t, int64(142_857), s.AnnualCents(a)) // floor(1000000/7)
		assert.Equal(t, int64(11_904), s.MonthlyCents(a)) // floor(142857/12)
	})
}

func TestForMethod(t *testing.T) {
	s, err := ForMethod(asset.MethodStraightLine)
	require.NoError(t, err)
	assert.IsType(t, StraightLine{}, s)

	_, err = ForMethod("DOUBLE_DECLINING")
	assert.Error(t, err)
}

type MockBatchPoster struct {
	mock.Mock
	runFollowUp bool
}

func (m *MockBatchPoster) PostWithFollowUp(ctx context.Context, req *ledger.BatchRequest, followUp func(tx pgx.Tx) error) (*ledger.Batch, error) {
	args := m.Called(ctx, req, followUp)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	if m.runFollowUp && followUp != nil {
		if err := followUp(nil); err != nil {
			return nil, err
		}
	}
	return args.Get(0).(*ledger.Batch), args.Error(1)
}

type MockAssetRepository struct {
	mock.Mock
}

func (m *MockAssetRepository) Create(ctx context.Context, a *asset.FixedAsset) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockAssetRepository) GetByID(ctx context.Context, id uuid.UUID) (*asset.FixedAsset, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asset.FixedAsset), args.Error(1)
}

func (m *MockAssetRepository) ListActive(ctx context.Context, hospitalID uuid.UUID) ([]*asset.FixedAsset, error) {
	args := m.Called(ctx, hospitalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*asset.FixedAsset), args.Error(1)
}

func (m *MockAssetRepository) HospitalsWithActiveAssets(ctx context.Context) ([]uuid.UUID, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockAssetRepository) Update(ctx context.Context, a *asset.FixedAsset) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockAssetRepository) WithTx(tx pgx.Tx) asset.Repository {
	m.Called(tx)
	return m
}

type MockCurrencyRepository struct {
	mock.Mock
}

func (m *MockCurrencyRepository) Upsert(ctx context.Context, c *currency.Currency) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockCurrencyRepository) GetByCode(ctx context.Context, hospitalID uuid.UUID, code string) (*currency.Currency, error) {
	args := m.Called(ctx, hospitalID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*currency.Currency), args.Error(1)
}

func (m *MockCurrencyRepository) GetBase(ctx context.Context, hospitalID uuid.UUID) (*currency.Currency, error) {
	args := m.Called(ctx, hospitalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*currency.Currency), args.Error(1)
}

func (m *MockCurrencyRepository) WithTx(tx pgx.Tx) currency.Repository {
	m.Called(tx)
	return m
}

type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) Create(ctx context.Context, message *outbox.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepository) UpdateStatus(ctx context.Context, id int64, status outbox.Status) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockOutboxRepository) IncrementAttempts(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepository) WithTx(tx pgx.Tx) outbox.Repository {
	m.Called(tx)
	return m
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

type runnerFixture struct {
	engine       *MockBatchPoster
	assetRepo    *MockAssetRepository
	currencyRepo *MockCurrencyRepository
	outboxRepo   *MockOutboxRepository
	runner       *Runner
}

func newRunnerFixture() *runnerFixture {
	logger := slog.New(slog.NewTextHandler(discardWriter{}, nil))
	engine := new(MockBatchPoster)
	assetRepo := new(MockAssetRepository)
	currencyRepo := new(MockCurrencyRepository)
	outboxRepo := new(MockOutboxRepository)
	cfg := &config.DepreciationConfig{
		CheckInterval:          time.Hour,
		Actor:                  "system:depreciation",
		ExpenseAccountCode:     "6800",
		AccumulatedAccountCode: "1690",
	}
	recorder := audit.NewRecorder(outboxRepo, logger)
	return &runnerFixture{
		engine:       engine,
		assetRepo:    assetRepo,
		currencyRepo: currencyRepo,
		outboxRepo:   outboxRepo,
		runner:       NewRunner(cfg, engine, assetRepo, currencyRepo, recorder, logger),
	}
}

func baseCurrency(hospitalID uuid.UUID) *currency.Currency {
	return &currency.Currency{
		ID:           uuid.New(),
		HospitalID:   hospitalID,
		Code:         "USD",
		ExchangeRate: decimal.NewFromInt(1),
		IsBase:       true,
	}
}

func TestRunMonth_PostsAndWritesDown(t *testing.T) {
	f := newRunnerFixture()
	f.engine.runFollowUp = true
	ctx := context.Background()
	hospitalID := uuid.New()
	month := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	a, err := asset.NewFixedAsset(hospitalID, "MRI Scanner", "radiology",
		500_000_000, 5_000_000, 10, asset.MethodStraightLine, time.Now())
	require.NoError(t, err)

	f.assetRepo.On("ListActive", ctx, hospitalID).Return([]*asset.FixedAsset{a}, nil)
	f.currencyRepo.On("GetBase", ctx, hospitalID).Return(baseCurrency(hospitalID), nil)

	expectedRef := "depreciation:" + a.ID.String() + ":2026-03"
	f.engine.On("PostWithFollowUp", ctx, mock.MatchedBy(func(req *ledger.BatchRequest) bool {
		return req.TransactionRef == expectedRef &&
			len(req.Lines) == 1 &&
			req.Lines[0].AmountCents == 4_125_000 &&
			req.Lines[0].DebitAccountCode == "6800" &&
			req.Lines[0].CreditAccountCode == "1690" &&
			req.Lines[0].CurrencyCode == "USD"
	}), mock.Anything).Return(&ledger.Batch{ID: uuid.New(), TransactionRef: expectedRef}, nil)

	f.assetRepo.On("WithTx", mock.Anything).Return(f.assetRepo)
	f.assetRepo.On("Update", ctx, a).Return(nil)
	f.outboxRepo.On("WithTx", mock.Anything).Return(f.outboxRepo)
	f.outboxRepo.On("Create", ctx, mock.MatchedBy(func(msg *outbox.Message) bool {
		return msg.Kind == outbox.KindAuditEntry
	})).Return(nil)

	err = f.runner.RunMonth(ctx, hospitalID, month)
	require.NoError(t, err)

	assert.Equal(t, int64(495_875_000), a.CurrentBookValueCents)
	f.engine.AssertExpectations(t)
	f.assetRepo.AssertExpectations(t)
}

func TestRunMonth_FinalPostingClampsAtSalvage(t *testing.T) {
	f := newRunnerFixture()
	f.engine.runFollowUp = true
	ctx := context.Background()
	hospitalID := uuid.New()
	month := time.Date(2036, 2, 1, 0, 0, 0, 0, time.UTC)

	a, err := asset.NewFixedAsset(hospitalID, "MRI Scanner", "radiology",
		500_000_000, 5_000_000, 10, asset.MethodStraightLine, time.Now())
	require.NoError(t, err)
	// Almost fully depreciated: only 1,000,000 above salvage remains.
	a.CurrentBookValueCents = 6_000_000

	f.assetRepo.On("ListActive", ctx, hospitalID).Return([]*asset.FixedAsset{a}, nil)
	f.currencyRepo.On("GetBase", ctx, hospitalID).Return(baseCurrency(hospitalID), nil)
	f.engine.On("PostWithFollowUp", ctx, mock.MatchedBy(func(req *ledger.BatchRequest) bool {
		return req.Lines[0].AmountCents == 1_000_000
	}), mock.Anything).Return(&ledger.Batch{ID: uuid.New()}, nil)
	f.assetRepo.On("WithTx", mock.Anything).Return(f.assetRepo)
	f.assetRepo.On("Update", ctx, a).Return(nil)
	f.outboxRepo.On("WithTx", mock.Anything).Return(f.outboxRepo)
	f.outboxRepo.On("Create", ctx, mock.Anything).Return(nil)

	err = f.runner.RunMonth(ctx, hospitalID, month)
	require.NoError(t, err)

	assert.Equal(t, int64(5_000_000), a.CurrentBookValueCents)
	assert.True(t, a.FullyDepreciated())
}

func TestRunMonth_DuplicateMonthSkipsWriteDown(t *testing.T) {
	f := newRunnerFixture()
	// Engine reports the batch as already committed and never runs the
	// follow-up, mirroring an idempotent replay.
	f.engine.runFollowUp = false
	ctx := context.Background()
	hospitalID := uuid.New()
	month := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	a, err := asset.NewFixedAsset(hospitalID, "MRI Scanner", "radiology",
		500_000_000, 5_000_000, 10, asset.MethodStraightLine, time.Now())
	require.NoError(t, err)
	before := a.CurrentBookValueCents

	f.assetRepo.On("ListActive", ctx, hospitalID).Return([]*asset.FixedAsset{a}, nil)
	f.currencyRepo.On("GetBase", ctx, hospitalID).Return(baseCurrency(hospitalID), nil)
	f.engine.On("PostWithFollowUp", ctx, mock.Anything, mock.Anything).
		Return(&ledger.Batch{ID: uuid.New()}, nil)

	err = f.runner.RunMonth(ctx, hospitalID, month)
	require.NoError(t, err)

	assert.Equal(t, before, a.CurrentBookValueCents)
	f.assetRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestRunAll_VisitsEveryHospital(t *testing.T) {
	f := newRunnerFixture()
	ctx := context.Background()
	month := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	h1, h2 := uuid.New(), uuid.New()
	f.assetRepo.On("HospitalsWithActiveAssets", ctx).Return([]uuid.UUID{h1, h2}, nil)
	f.assetRepo.On("ListActive", ctx, h1).Return([]*asset.FixedAsset{}, nil)
	f.assetRepo.On("ListActive", ctx, h2).Return([]*asset.FixedAsset{}, nil)

	err := f.runner.RunAll(ctx, month)
	require.NoError(t, err)
	f.assetRepo.AssertExpectations(t)
}
