package broadcast

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/channel-paywall/internal/config"
	"github.com/magabrotheeeer/channel-paywall/internal/lib/civil"
	"github.com/magabrotheeeer/channel-paywall/internal/models"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) CreateBroadcast(ctx context.Context, msg *models.BroadcastMessage) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *MockStore) GetBroadcast(ctx context.Context, id string) (*models.BroadcastMessage, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BroadcastMessage), args.Error(1)
}

func (m *MockStore) StartBroadcast(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) FinishBroadcast(ctx context.Context, id string, status models.BroadcastStatus,
	stats *models.BroadcastStats, errText string, at time.Time) error {
	return m.Called(ctx, id, status, stats, errText, at).Error(0)
}

func (m *MockStore) DeleteFinishedBroadcasts(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStore) ListBotUsers(ctx context.Context) ([]*models.BotUser, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.BotUser), args.Error(1)
}

func (m *MockStore) ListPaymentsByStatus(ctx context.Context, status models.PaymentStatus) ([]*models.Payment, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Payment), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(routingKey string, message any) error {
	return m.Called(routingKey, message).Error(0)
}

type MockSender struct {
	mock.Mock
}

func (m *MockSender) SendFormatted(ctx context.Context, userID int64, text, parseMode string) error {
	return m.Called(ctx, userID, text, parseMode).Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

var testNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func newService() (*Service, *MockStore, *MockPublisher, *MockSender) {
	store := &MockStore{}
	pub := &MockPublisher{}
	sender := &MockSender{}
	cfg := config.Broadcast{SendInterval: 0, Retention: 7 * 24 * time.Hour}
	return New(store, pub, sender, civil.Fixed(testNow), cfg, newNoopLogger()), store, pub, sender
}

func TestEnqueue(t *testing.T) {
	t.Run("stores pending message and publishes id", func(t *testing.T) {
		svc, store, pub, _ := newService()
		var stored *models.BroadcastMessage
		store.On("CreateBroadcast", mock.Anything, mock.AnythingOfType("*models.BroadcastMessage")).
			Run(func(args mock.Arguments) { stored = args.Get(1).(*models.BroadcastMessage) }).
			Return(nil).Once()
		pub.On("Publish", RoutingKey, mock.AnythingOfType("models.BroadcastJob")).Return(nil).Once()

		m, err := svc.Enqueue(context.Background(), Request{
			Type:   models.BroadcastAll,
			Target: models.BroadcastTarget{Filter: models.FilterAll},
			Text:   "hello",
		})
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, models.BroadcastPending, m.Status)
		assert.Equal(t, testNow, m.CreatedAt)
		assert.NotEmpty(t, m.ID)
		pub.AssertCalled(t, "Publish", RoutingKey, models.BroadcastJob{ID: m.ID})
	})

	t.Run("single without user id", func(t *testing.T) {
		svc, store, pub, _ := newService()
		_, err := svc.Enqueue(context.Background(), Request{Type: models.BroadcastSingle, Text: "x"})
		assert.ErrorIs(t, err, ErrInvalidTarget)
		store.AssertNotCalled(t, "CreateBroadcast", mock.Anything, mock.Anything)
		pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
	})

	t.Run("publish failure marks message failed", func(t *testing.T) {
		svc, store, pub, _ := newService()
		store.On("CreateBroadcast", mock.Anything, mock.Anything).Return(nil).Once()
		pub.On("Publish", RoutingKey, mock.Anything).Return(errors.New("channel closed")).Once()
		store.On("FinishBroadcast", mock.Anything, mock.Anything, models.BroadcastFailed,
			(*models.BroadcastStats)(nil), "channel closed", testNow).Return(nil).Once()

		_, err := svc.Enqueue(context.Background(), Request{
			Type:   models.BroadcastSingle,
			Target: models.BroadcastTarget{UserID: 1},
			Text:   "x",
		})
		require.Error(t, err)
		store.AssertExpectations(t)
	})
}

func TestProcess_Single(t *testing.T) {
	tests := []struct {
		name       string
		sendErr    error
		wantStatus models.BroadcastStatus
		wantStats  *models.BroadcastStats
		wantErrMsg string
	}{
		{
			name:       "delivered",
			wantStatus: models.BroadcastCompleted,
			wantStats:  &models.BroadcastStats{Total: 1, Sent: 1},
		},
		{
			name:       "blocked by user",
			sendErr:    errors.New("Forbidden: bot was blocked by the user"),
			wantStatus: models.BroadcastFailed,
			wantStats: &models.BroadcastStats{Total: 1, Failed: 1, Errors: []models.BroadcastError{
				{UserID: 42, Error: "Forbidden: bot was blocked by the user"},
			}},
			wantErrMsg: "Forbidden: bot was blocked by the user",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _, sender := newService()
			msg := &models.BroadcastMessage{
				ID: "m1", Type: models.BroadcastSingle, Status: models.BroadcastPending,
				Target: models.BroadcastTarget{UserID: 42}, Text: "<b>hi</b>", ParseMode: "HTML",
			}
			store.On("GetBroadcast", mock.Anything, "m1").Return(msg, nil).Once()
			store.On("StartBroadcast", mock.Anything, "m1").Return(true, nil).Once()
			sender.On("SendFormatted", mock.Anything, int64(42), "<b>hi</b>", "HTML").Return(tt.sendErr).Once()
			store.On("FinishBroadcast", mock.Anything, "m1", tt.wantStatus, tt.wantStats, tt.wantErrMsg, testNow).
				Return(nil).Once()

			require.NoError(t, svc.Process(context.Background(), "m1"))
			store.AssertExpectations(t)
			sender.AssertExpectations(t)
		})
	}
}

func TestProcess_BroadcastFilters(t *testing.T) {
	end := testNow.Add(48 * time.Hour)
	past := testNow.Add(-time.Hour)
	users := []*models.BotUser{
		{UserID: 1, Username: "alice"},
		{UserID: 2, Username: "bob"},
		{UserID: 3, FirstName: "Carol"},
	}
	payments := []*models.Payment{
		{UserID: 1, Status: models.StatusPayed, SubscriptionEnd: &end},
		{UserID: 2, Status: models.StatusPayed, SubscriptionEnd: &past},
	}

	tests := []struct {
		name   string
		target models.BroadcastTarget
		want   []int64
	}{
		{name: "all", target: models.BroadcastTarget{Filter: models.FilterAll}, want: []int64{1, 2, 3}},
		{name: "empty filter means all", target: models.BroadcastTarget{}, want: []int64{1, 2, 3}},
		{name: "with subscription", target: models.BroadcastTarget{Filter: models.FilterWithSubscription}, want: []int64{1}},
		{name: "without subscription", target: models.BroadcastTarget{Filter: models.FilterWithoutSubscription}, want: []int64{2, 3}},
		{name: "user ids deduplicated", target: models.BroadcastTarget{Filter: models.FilterUserIDs, UserIDs: []int64{3, 99, 3}}, want: []int64{3, 99}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, _, sender := newService()
			msg := &models.BroadcastMessage{ID: "b1", Type: models.BroadcastAll, Target: tt.target, Text: "news"}
			store.On("GetBroadcast", mock.Anything, "b1").Return(msg, nil).Once()
			store.On("StartBroadcast", mock.Anything, "b1").Return(true, nil).Once()
			store.On("ListBotUsers", mock.Anything).Return(users, nil).Once()
			store.On("ListPaymentsByStatus", mock.Anything, models.StatusPayed).Return(payments, nil).Maybe()

			var got []int64
			sender.On("SendFormatted", mock.Anything, mock.AnythingOfType("int64"), "news", "").
				Run(func(args mock.Arguments) { got = append(got, args.Get(1).(int64)) }).
				Return(nil)
			store.On("FinishBroadcast", mock.Anything, "b1", models.BroadcastCompleted,
				&models.BroadcastStats{Total: len(tt.want), Sent: len(tt.want)}, "", testNow).Return(nil).Once()

			require.NoError(t, svc.Process(context.Background(), "b1"))
			assert.Equal(t, tt.want, got)
			store.AssertExpectations(t)
		})
	}
}

func TestProcess_CollectsPerRecipientFailures(t *testing.T) {
	svc, store, _, sender := newService()
	msg := &models.BroadcastMessage{ID: "b2", Type: models.BroadcastAll, Text: "news"}
	store.On("GetBroadcast", mock.Anything, "b2").Return(msg, nil).Once()
	store.On("StartBroadcast", mock.Anything, "b2").Return(true, nil).Once()
	store.On("ListBotUsers", mock.Anything).Return([]*models.BotUser{
		{UserID: 1, Username: "alice"}, {UserID: 2, Username: "bob"},
	}, nil).Once()
	sender.On("SendFormatted", mock.Anything, int64(1), "news", "").Return(nil).Once()
	sender.On("SendFormatted", mock.Anything, int64(2), "news", "").Return(errors.New("chat not found")).Once()

	want := &models.BroadcastStats{Total: 2, Sent: 1, Failed: 1, Errors: []models.BroadcastError{
		{UserID: 2, Username: "bob", Error: "chat not found"},
	}}
	store.On("FinishBroadcast", mock.Anything, "b2", models.BroadcastCompleted, want, "", testNow).Return(nil).Once()

	require.NoError(t, svc.Process(context.Background(), "b2"))
	store.AssertExpectations(t)
}

func TestProcess_UnknownTypeIsFailedAndAcked(t *testing.T) {
	svc, store, _, sender := newService()
	msg := &models.BroadcastMessage{ID: "u1", Type: "poll", Text: "?"}
	store.On("GetBroadcast", mock.Anything, "u1").Return(msg, nil).Once()
	store.On("StartBroadcast", mock.Anything, "u1").Return(true, nil).Once()
	store.On("FinishBroadcast", mock.Anything, "u1", models.BroadcastFailed, (*models.BroadcastStats)(nil),
		`unknown broadcast type: "poll"`, testNow).Return(nil).Once()

	require.NoError(t, svc.Process(context.Background(), "u1"))
	store.AssertExpectations(t)
	sender.AssertNotCalled(t, "SendFormatted", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestProcess_RedeliveredJobIsSkipped(t *testing.T) {
	svc, store, _, sender := newService()
	msg := &models.BroadcastMessage{ID: "r1", Type: models.BroadcastSingle, Status: models.BroadcastCompleted}
	store.On("GetBroadcast", mock.Anything, "r1").Return(msg, nil).Once()
	store.On("StartBroadcast", mock.Anything, "r1").Return(false, nil).Once()

	require.NoError(t, svc.Process(context.Background(), "r1"))
	sender.AssertNotCalled(t, "SendFormatted", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	store.AssertNotCalled(t, "FinishBroadcast", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandle(t *testing.T) {
	t.Run("malformed body is dropped", func(t *testing.T) {
		svc, store, _, _ := newService()
		assert.NoError(t, svc.Handle(context.Background(), []byte("{not json")))
		assert.NoError(t, svc.Handle(context.Background(), []byte(`{}`)))
		store.AssertNotCalled(t, "GetBroadcast", mock.Anything, mock.Anything)
	})

	t.Run("missing message is dropped", func(t *testing.T) {
		svc, store, _, _ := newService()
		store.On("GetBroadcast", mock.Anything, "gone").Return(nil, models.ErrNotFound).Once()
		assert.NoError(t, svc.Handle(context.Background(), []byte(`{"id":"gone"}`)))
	})

	t.Run("store error is returned for requeue", func(t *testing.T) {
		svc, store, _, _ := newService()
		store.On("GetBroadcast", mock.Anything, "m").Return(nil, errors.New("db down")).Once()
		assert.Error(t, svc.Handle(context.Background(), []byte(`{"id":"m"}`)))
	})
}

func TestCleanup(t *testing.T) {
	svc, store, _, _ := newService()
	store.On("DeleteFinishedBroadcasts", mock.Anything, testNow.Add(-7*24*time.Hour)).Return(int64(3), nil).Once()

	n, err := svc.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
