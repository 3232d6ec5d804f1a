package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockChannel struct {
	mock.Mock
}

func (m *MockChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	args := m.Called(exchange, key, mandatory, immediate, msg)
	return args.Error(0)
}

func TestPublisher_Publish(t *testing.T) {
	type job struct {
		ID string `json:"id"`
	}

	tests := []struct {
		name       string
		message    any
		setupMocks func(*MockChannel)
		wantErr    bool
	}{
		{
			name:    "persistent json",
			message: job{ID: "abc"},
			setupMocks: func(m *MockChannel) {
				m.On("Publish", BroadcastExchange, "send", false, false, mock.MatchedBy(func(p amqp.Publishing) bool {
					return p.ContentType == "application/json" &&
						p.DeliveryMode == amqp.Persistent &&
						string(p.Body) == `{"id":"abc"}`
				})).Return(nil).Once()
			},
		},
		{
			name:    "broker error",
			message: job{ID: "abc"},
			setupMocks: func(m *MockChannel) {
				m.On("Publish", BroadcastExchange, "send", false, false, mock.Anything).
					Return(errors.New("channel closed")).Once()
			},
			wantErr: true,
		},
		{
			name:       "marshal error",
			message:    struct{ Ch chan int }{Ch: make(chan int)},
			setupMocks: func(_ *MockChannel) {},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := &MockChannel{}
			tt.setupMocks(ch)

			err := NewPublisher(ch, BroadcastExchange).Publish("send", tt.message)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "rabbitmq.PublishMessage")
			} else {
				require.NoError(t, err)
			}
			ch.AssertExpectations(t)
		})
	}
}

func TestPublishMessage_ToExchangeWithRoutingKey(t *testing.T) {
	ctx := context.Background()
	uri, cleanup := brokerURI(ctx, t)
	defer cleanup()

	conn, err := Connect(uri, 3, time.Second)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	ch, err := SetupChannel(conn, BroadcastExchange, BroadcastQueues())
	require.NoError(t, err)

	require.NoError(t, PublishMessage(ch, BroadcastExchange, "send", map[string]any{"id": "abc"}))

	deliveries, err := ch.Consume("broadcasts.send", "test-consumer", true, false, false, false, nil)
	require.NoError(t, err)

	select {
	case d := <-deliveries:
		var got map[string]any
		require.NoError(t, json.Unmarshal(d.Body, &got))
		assert.Equal(t, "abc", got["id"])
		assert.Equal(t, "application/json", d.ContentType)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for message via exchange")
	}
}
