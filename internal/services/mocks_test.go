package services

import (
	"context"
	"database/sql/driver"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/procurepay/backend/internal/catalog"
	"github.com/procurepay/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, recipients []string, subject, body string) error {
	args := m.Called(ctx, recipients, subject, body)
	return args.Error(0)
}

type MockRecipients struct {
	mock.Mock
}

func (m *MockRecipients) Resolve(ctx context.Context, order *models.Order) ([]string, error) {
	args := m.Called(ctx, order)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type MockReceiptStore struct {
	mock.Mock
}

func (m *MockReceiptStore) Upload(ctx context.Context, receipt ReceiptUpload) (string, error) {
	args := m.Called(ctx, receipt)
	return args.String(0), args.Error(1)
}

func (m *MockReceiptStore) Delete(ctx context.Context, ref string) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}

type MockSQS struct {
	mock.Mock
}

func (m *MockSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sqs.SendMessageOutput), args.Error(1)
}

type MockRateSource struct {
	mock.Mock
}

func (m *MockRateSource) Rates(ctx context.Context, q Querier, currencies []string) (map[string]decimal.Decimal, error) {
	args := m.Called(ctx, q, currencies)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]decimal.Decimal), args.Error(1)
}

func (m *MockRateSource) ReferenceCurrency() string {
	return "USD"
}

// decimalArg matches a bound decimal argument by value, so "300" matches "300.0000".
type decimalArg string

func (d decimalArg) Match(v driver.Value) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	got, err := decimal.NewFromString(s)
	if err != nil {
		return false
	}
	return got.Equal(decimal.RequireFromString(string(d)))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

var orderRowColumns = []string{"id", "number", "supplier_id", "requester_email", "total", "paid_amount",
	"currency", "status", "payment_method", "receipt_ref", "version", "updated_at"}

func orderRows(id, total, paid string, status models.OrderStatus, method string, version int) *sqlmock.Rows {
	return sqlmock.NewRows(orderRowColumns).
		AddRow(id, "PO-"+id, "SUP-1", "requester@example.com", total, paid, "USD", string(status), method, nil, version, time.Now())
}

var paymentEntryRowColumns = []string{"id", "order_id", "kind", "amount", "source_id", "receipt_ref",
	"comment", "reversal_of", "actor_id", "created_at"}

func testCatalog() *catalog.Store {
	statuses := []models.OrderStatus{
		models.OrderStatusDraft,
		models.OrderStatusIssued,
		models.OrderStatusAwaitingConfirmation,
		models.OrderStatusApproved,
		models.OrderStatusPartiallyPaid,
		models.OrderStatusPaid,
		models.OrderStatusReceived,
		models.OrderStatusClosed,
		models.OrderStatusCancelled,
	}
	methods := []catalog.PaymentMethodPolicy{
		{
			Code:                 "BANK_TRANSFER",
			RequiresConfirmation: true,
			ConfirmationStatus:   models.OrderStatusAwaitingConfirmation,
			ConfirmedStatus:      models.OrderStatusApproved,
			PostPaymentStatus:    models.OrderStatusApproved,
		},
		{
			Code:              "CARD",
			PostPaymentStatus: models.OrderStatusPartiallyPaid,
			SettledStatus:     models.OrderStatusPaid,
		},
		{
			Code:              "WIRE",
			RequiresReceipt:   true,
			PostPaymentStatus: models.OrderStatusPartiallyPaid,
			SettledStatus:     models.OrderStatusPaid,
		},
		{
			// RECEIVED is disabled below to exercise the catalog check.
			Code:              "CONSIGNMENT",
			PostPaymentStatus: models.OrderStatusReceived,
		},
	}

	enabled := make([]models.OrderStatus, 0, len(statuses))
	for _, s := range statuses {
		if s != models.OrderStatusReceived {
			enabled = append(enabled, s)
		}
	}
	return catalog.NewStaticStore(catalog.NewSnapshot(enabled, nil, methods, time.Now()))
}
