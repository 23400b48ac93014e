package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image/png"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/procurepay/backend/internal/models"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

// RemittanceQR is a scannable reference a supplier matches against a payment.
type RemittanceQR struct {
	Payload string `json:"payload"`
	Image   string `json:"image"` // base64 PNG
}

// QRService renders remittance QR codes. Entries are immutable, so images
// are cached in Redis by entry id.
type QRService struct {
	redis  *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewQRService(redis *redis.Client, logger *zap.Logger) *QRService {
	return &QRService{
		redis:  redis,
		ttl:    24 * time.Hour,
		logger: logger,
	}
}

// RemittancePayload is "order number|entry id|amount|currency".
func RemittancePayload(entry *models.PaymentEntry, order *models.Order) string {
	return fmt.Sprintf("%s|%s|%s|%s", order.Number, entry.ID, entry.Amount.StringFixed(2), order.Currency)
}

func (s *QRService) GenerateRemittanceQR(ctx context.Context, entry *models.PaymentEntry, order *models.Order) (*RemittanceQR, error) {
	payload := RemittancePayload(entry, order)
	key := fmt.Sprintf("qr:%s", entry.ID)

	if s.redis != nil {
		cached, err := s.redis.Get(ctx, key).Result()
		if err == nil {
			return &RemittanceQR{Payload: payload, Image: cached}, nil
		}
		if err != redis.Nil {
			s.logger.Warn("qr cache read failed", zap.String("entry_id", entry.ID), zap.Error(err))
		}
	}

	qr, err := qrcode.New(payload, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return nil, fmt.Errorf("render qr: %w", err)
	}
	image := base64.StdEncoding.EncodeToString(buf.Bytes())

	if s.redis != nil {
		if err := s.redis.Set(ctx, key, image, s.ttl).Err(); err != nil {
			s.logger.Warn("qr cache write failed", zap.String("entry_id", entry.ID), zap.Error(err))
		}
	}

	return &RemittanceQR{Payload: payload, Image: image}, nil
}
