package notify

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fatali-fataliyev/wallet_tracker/internal/budget"
	"github.com/fatali-fataliyev/wallet_tracker/internal/contextutil"
	"github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type fakePublisher struct {
	exchange string
	key      string
	msg      amqp091.Publishing
	err      error
	deadline bool
}

func (f *fakePublisher) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error {
	f.exchange = exchange
	f.key = key
	f.msg = msg
	_, f.deadline = ctx.Deadline()
	return f.err
}

var notification = budget.Notification{
	Kind:      budget.NotificationExpiringSubscriptions,
	UserID:    "u-1",
	Email:     "john@mail.com",
	Subject:   "Expiring subscriptions for john",
	Body:      "- Music: 15.99 BGN",
	CreatedAt: time.Date(2026, time.October, 16, 9, 0, 0, 0, time.UTC),
}

func TestAMQPNotifierPublishes(t *testing.T) {
	pub := &fakePublisher{}
	n := &AMQPNotifier{publisher: pub, exchangeName: "wallet_tracker", queueName: "notifications"}
	ctx := contextutil.WithTraceID(context.Background(), "trace-1")

	require.NoError(t, n.Notify(ctx, notification))
	require.Equal(t, "wallet_tracker", pub.exchange)
	require.Equal(t, "notifications", pub.key)
	require.True(t, pub.deadline)
	require.Equal(t, "application/json", pub.msg.ContentType)
	require.Equal(t, amqp091.Persistent, pub.msg.DeliveryMode)
	require.Equal(t, "trace-1", pub.msg.CorrelationId)

	msg, err := MessageFromJSON(pub.msg.Body)
	require.NoError(t, err)
	require.Equal(t, NewMessage(notification, "trace-1"), msg)
}

func TestAMQPNotifierPublishError(t *testing.T) {
	pub := &fakePublisher{err: errors.New("channel closed")}
	n := &AMQPNotifier{publisher: pub, exchangeName: "x", queueName: "q"}

	err := n.Notify(context.Background(), notification)
	require.Error(t, err)
	require.Contains(t, err.Error(), "channel closed")
}

func TestMessageFromJSONInvalid(t *testing.T) {
	_, err := MessageFromJSON([]byte("{"))
	require.Error(t, err)
}

func TestLogNotifier(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})

	ctx := contextutil.WithTraceID(context.Background(), "trace-2")
	require.NoError(t, NewLogNotifier(logger).Notify(ctx, notification))
	require.Contains(t, buf.String(), `"trace_id":"trace-2"`)
	require.Contains(t, buf.String(), `"kind":"EXPIRING_SUBSCRIPTIONS"`)
	require.Contains(t, buf.String(), "Expiring subscriptions for john")
}
