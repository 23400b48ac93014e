package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/procurepay/backend/internal/config"
	"github.com/procurepay/backend/internal/models"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Notifier delivers best-effort messages. Callers never roll back on its errors.
type Notifier interface {
	Notify(ctx context.Context, recipients []string, subject, body string) error
}

// SQSAPI is the part of the SQS client the notifier uses.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type notificationMessage struct {
	Recipients []string `json:"recipients"`
	Subject    string   `json:"subject"`
	Body       string   `json:"body"`
}

// SQSNotifier hands messages to the mail worker's queue behind a circuit breaker.
type SQSNotifier struct {
	client   SQSAPI
	queueURL string
	breaker  *gobreaker.CircuitBreaker
	logger   *zap.Logger
}

func NewSQSClient(ctx context.Context, cfg *config.NotificationConfig) (*sqs.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if cfg.AWSAccessKey != "" && cfg.AWSSecret != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKey, cfg.AWSSecret, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return sqs.NewFromConfig(awsCfg), nil
}

func NewSQSNotifier(client SQSAPI, cfg *config.NotificationConfig, logger *zap.Logger) *SQSNotifier {
	settings := gobreaker.Settings{
		Name:        "notification-sqs",
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("notification circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &SQSNotifier{
		client:   client,
		queueURL: cfg.QueueURL,
		breaker:  gobreaker.NewCircuitBreaker(settings),
		logger:   logger,
	}
}

func (n *SQSNotifier) Notify(ctx context.Context, recipients []string, subject, body string) error {
	if len(recipients) == 0 {
		return nil
	}

	payload, err := json.Marshal(notificationMessage{Recipients: recipients, Subject: subject, Body: body})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	_, err = n.breaker.Execute(func() (interface{}, error) {
		return n.client.SendMessage(ctx, &sqs.SendMessageInput{
			QueueUrl:    aws.String(n.queueURL),
			MessageBody: aws.String(string(payload)),
			MessageAttributes: map[string]types.MessageAttributeValue{
				"kind": {DataType: aws.String("String"), StringValue: aws.String("email")},
			},
		})
	})
	if err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}

// LogNotifier is used when no queue is configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, recipients []string, subject, body string) error {
	n.logger.Info("notification",
		zap.Strings("recipients", recipients),
		zap.String("subject", subject),
		zap.String("body", body),
	)
	return nil
}

// RecipientResolver finds who hears about payments on an order: the active
// members of a configured group plus the order's requester.
type RecipientResolver struct {
	db    *sql.DB
	group string
}

func NewRecipientResolver(db *sql.DB, group string) *RecipientResolver {
	return &RecipientResolver{db: db, group: group}
}

func (r *RecipientResolver) Resolve(ctx context.Context, order *models.Order) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT email FROM notification_recipients
		WHERE group_code = $1 AND active = true
		ORDER BY email`, r.group)
	if err != nil {
		return nil, fmt.Errorf("resolve recipients: %w", err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var recipients []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("scan recipient: %w", err)
		}
		if !seen[email] {
			seen[email] = true
			recipients = append(recipients, email)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if order.RequesterEmail != "" && !seen[order.RequesterEmail] {
		recipients = append(recipients, order.RequesterEmail)
	}
	return recipients, nil
}
