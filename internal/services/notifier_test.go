package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/procurepay/backend/internal/config"
	"github.com/procurepay/backend/internal/models"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testNotificationConfig() *config.NotificationConfig {
	return &config.NotificationConfig{
		QueueURL:                   "https://sqs.us-east-1.amazonaws.com/123456789012/payments",
		BreakerMaxRequests:         1,
		BreakerInterval:            time.Minute,
		BreakerTimeout:             time.Minute,
		BreakerConsecutiveFailures: 2,
	}
}

func TestSQSNotifier_Notify(t *testing.T) {
	ctx := context.Background()

	t.Run("sends one message per notification", func(t *testing.T) {
		client := new(MockSQS)
		client.On("SendMessage", ctx, mock.MatchedBy(func(in *sqs.SendMessageInput) bool {
			var msg notificationMessage
			if err := json.Unmarshal([]byte(*in.MessageBody), &msg); err != nil {
				return false
			}
			return *in.QueueUrl == testNotificationConfig().QueueURL &&
				msg.Subject == "Payment recorded" &&
				len(msg.Recipients) == 2
		})).Return(&sqs.SendMessageOutput{}, nil).Once()

		notifier := NewSQSNotifier(client, testNotificationConfig(), zap.NewNop())
		err := notifier.Notify(ctx, []string{"ap@example.com", "buyer@example.com"}, "Payment recorded", "PO-1 paid")
		require.NoError(t, err)
		client.AssertExpectations(t)
	})

	t.Run("no recipients sends nothing", func(t *testing.T) {
		client := new(MockSQS)
		notifier := NewSQSNotifier(client, testNotificationConfig(), zap.NewNop())

		require.NoError(t, notifier.Notify(ctx, nil, "s", "b"))
		client.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
	})

	t.Run("breaker opens after consecutive failures", func(t *testing.T) {
		client := new(MockSQS)
		client.On("SendMessage", ctx, mock.Anything).Return(nil, errors.New("throttled")).Times(2)

		notifier := NewSQSNotifier(client, testNotificationConfig(), zap.NewNop())
		recipients := []string{"ap@example.com"}

		assert.Error(t, notifier.Notify(ctx, recipients, "s", "b"))
		assert.Error(t, notifier.Notify(ctx, recipients, "s", "b"))

		err := notifier.Notify(ctx, recipients, "s", "b")
		assert.True(t, errors.Is(err, gobreaker.ErrOpenState))
		client.AssertNumberOfCalls(t, "SendMessage", 2)
	})
}

func TestLogNotifier_Notify(t *testing.T) {
	notifier := NewLogNotifier(zap.NewNop())
	assert.NoError(t, notifier.Notify(context.Background(), []string{"ap@example.com"}, "s", "b"))
}

func TestRecipientResolver_Resolve(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	resolver := NewRecipientResolver(db, "order-payments")

	t.Run("group members plus requester, deduplicated", func(t *testing.T) {
		mock.ExpectQuery("SELECT email FROM notification_recipients").
			WithArgs("order-payments").
			WillReturnRows(sqlmock.NewRows([]string{"email"}).
				AddRow("ap@example.com").
				AddRow("ap@example.com").
				AddRow("controller@example.com"))

		recipients, err := resolver.Resolve(context.Background(), &models.Order{ID: "po-1", RequesterEmail: "buyer@example.com"})
		require.NoError(t, err)
		assert.Equal(t, []string{"ap@example.com", "controller@example.com", "buyer@example.com"}, recipients)
	})

	t.Run("requester already in group", func(t *testing.T) {
		mock.ExpectQuery("SELECT email FROM notification_recipients").
			WillReturnRows(sqlmock.NewRows([]string{"email"}).AddRow("buyer@example.com"))

		recipients, err := resolver.Resolve(context.Background(), &models.Order{ID: "po-1", RequesterEmail: "buyer@example.com"})
		require.NoError(t, err)
		assert.Equal(t, []string{"buyer@example.com"}, recipients)
	})

	t.Run("query failure", func(t *testing.T) {
		mock.ExpectQuery("SELECT email FROM notification_recipients").WillReturnError(errors.New("connection reset"))

		_, err := resolver.Resolve(context.Background(), &models.Order{ID: "po-1"})
		assert.Error(t, err)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}
