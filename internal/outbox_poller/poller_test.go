package outbox_poller

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hospital-accounting-ledger/internal/config"
	"github.com/hospital-accounting-ledger/internal/domain/audit"
	"github.com/hospital-accounting-ledger/internal/domain/ledger"
	"github.com/hospital-accounting-ledger/internal/domain/outbox"
)

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

type MockDeliverer struct {
	mock.Mock
}

func (m *MockDeliverer) Deliver(ctx context.Context, message *outbox.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Insert(ctx context.Context, entry *audit.Entry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockAuditRepository) Query(ctx context.Context, filter audit.Filter, limit, offset int) ([]*audit.Entry, error) {
	args := m.Called(ctx, filter, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*audit.Entry), args.Error(1)
}

func (m *MockAuditRepository) Count(ctx context.Context, filter audit.Filter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

type MockMessagePublisher struct {
	mock.Mock
}

func (m *MockMessagePublisher) Publish(ctx context.Context, key string, value interface{}) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockMessagePublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

func newPoller(repo outbox.Repository, deliverer Deliverer) *Poller {
	cfg := &config.OutboxConfig{
		PollingInterval:  time.Second,
		BatchSize:        10,
		MaxRetryAttempts: 3,
	}
	return NewPoller(cfg, repo, deliverer, newTestLogger())
}

func pendingMessage(id int64, attempts int) *outbox.Message {
	return &outbox.Message{
		ID:         id,
		HospitalID: uuid.New(),
		Kind:       outbox.KindAuditEntry,
		Payload:    json.RawMessage(`{}`),
		Status:     outbox.StatusPending,
		Attempts:   attempts,
		CreatedAt:  time.Now(),
	}
}

func TestProcessPendingMessages_DeliveredAndDeleted(t *testing.T) {
	repo := new(MockOutboxRepository)
	deliverer := new(MockDeliverer)
	poller := newPoller(repo, deliverer)
	ctx := context.Background()

	msg := pendingMessage(7, 0)
	repo.On("GetPending", ctx, 10).Return([]*outbox.Message{msg}, nil)
	deliverer.On("Deliver", ctx, msg).Return(nil)
	repo.On("Delete", ctx, int64(7)).Return(nil)

	err := poller.processPendingMessages(ctx)
	require.NoError(t, err)

	repo.AssertExpectations(t)
	repo.AssertNotCalled(t, "IncrementAttempts", mock.Anything, mock.Anything)
}

func TestProcessPendingMessages_TransientFailureIncrementsAttempts(t *testing.T) {
	repo := new(MockOutboxRepository)
	deliverer := new(MockDeliverer)
	poller := newPoller(repo, deliverer)
	ctx := context.Background()

	msg := pendingMessage(7, 0)
	repo.On("GetPending", ctx, 10).Return([]*outbox.Message{msg}, nil)
	deliverer.On("Deliver", ctx, msg).Return(errors.New("mongo unavailable"))
	repo.On("IncrementAttempts", ctx, int64(7)).Return(nil)

	err := poller.processPendingMessages(ctx)
	require.NoError(t, err)

	repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessPendingMessages_ExhaustionMarksFailed(t *testing.T) {
	repo := new(MockOutboxRepository)
	deliverer := new(MockDeliverer)
	poller := newPoller(repo, deliverer)
	ctx := context.Background()

	msg := pendingMessage(7, 2) // Third failure hits the limit
	repo.On("GetPending", ctx, 10).Return([]*outbox.Message{msg}, nil)
	deliverer.On("Deliver", ctx, msg).Return(errors.New("kafka unavailable"))
	repo.On("IncrementAttempts", ctx, int64(7)).Return(nil)
	repo.On("UpdateStatus", ctx, int64(7), outbox.StatusFailedToDeliver).Return(nil)

	err := poller.processPendingMessages(ctx)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestProcessPendingMessages_PermanentFailureParksImmediately(t *testing.T) {
	repo := new(MockOutboxRepository)
	deliverer := new(MockDeliverer)
	poller := newPoller(repo, deliverer)
	ctx := context.Background()

	msg := pendingMessage(7, 0)
	repo.On("GetPending", ctx, 10).Return([]*outbox.Message{msg}, nil)
	deliverer.On("Deliver", ctx, msg).Return(&PermanentError{OutboxID: 7, Cause: errors.New("bad payload")})
	repo.On("UpdateStatus", ctx, int64(7), outbox.StatusFailedToDeliver).Return(nil)

	err := poller.processPendingMessages(ctx)
	require.NoError(t, err)

	repo.AssertNotCalled(t, "IncrementAttempts", mock.Anything, mock.Anything)
	repo.AssertExpectations(t)
}

func TestDeliverer_AuditEntryArchived(t *testing.T) {
	auditRepo := new(MockAuditRepository)
	publisher := new(MockMessagePublisher)
	deliverer := NewDeliverer(auditRepo, publisher, newTestLogger())
	ctx := context.Background()

	entry, err := audit.NewEntry(uuid.New(), "finance-admin", audit.ActionCreate, "ledger_batches", uuid.New().String(), nil, map[string]string{"status": "posted"})
	require.NoError(t, err)
	msg, err := outbox.NewAuditMessage(entry)
	require.NoError(t, err)
	msg.ID = 11

	auditRepo.On("Insert", ctx, mock.MatchedBy(func(e *audit.Entry) bool {
		return e.ID == entry.ID && e.TableName == "ledger_batches"
	})).Return(nil)

	err = deliverer.Deliver(ctx, msg)
	require.NoError(t, err)

	auditRepo.AssertExpectations(t)
	publisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeliverer_PostedEventPublished(t *testing.T) {
	auditRepo := new(MockAuditRepository)
	publisher := new(MockMessagePublisher)
	deliverer := NewDeliverer(auditRepo, publisher, newTestLogger())
	ctx := context.Background()

	batch := &ledger.Batch{
		ID:             uuid.New(),
		TransactionRef: "INVOICE:" + uuid.New().String() + ":FINALIZED",
		HospitalID:     uuid.New(),
		TotalCents:     295_000,
		Actor:          "billing-clerk-7",
	}
	msg, err := outbox.NewPostedMessage(batch)
	require.NoError(t, err)
	msg.ID = 12

	publisher.On("Publish", ctx, batch.TransactionRef, mock.MatchedBy(func(v interface{}) bool {
		event, ok := v.(*outbox.PostedEvent)
		return ok && event.BatchID == batch.ID && event.TotalCents == 295_000
	})).Return(nil)

	err = deliverer.Deliver(ctx, msg)
	require.NoError(t, err)
	publisher.AssertExpectations(t)
}

func TestDeliverer_UnknownKindIsPermanent(t *testing.T) {
	deliverer := NewDeliverer(new(MockAuditRepository), new(MockMessagePublisher), newTestLogger())

	msg := pendingMessage(13, 0)
	msg.Kind = "MYSTERY"

	err := deliverer.Deliver(context.Background(), msg)
	require.Error(t, err)

	var permanent *PermanentError
	assert.True(t, errors.As(err, &permanent))
}
