package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image/png"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRemittancePayload(t *testing.T) {
	entry, order := testRemittance()
	assert.Equal(t, "PO-2024-0001|"+entry.ID+"|100.50|EUR", RemittancePayload(entry, order))
}

func TestQRService_GenerateRemittanceQR(t *testing.T) {
	ctx := context.Background()
	entry, order := testRemittance()

	uncached, err := NewQRService(nil, zap.NewNop()).GenerateRemittanceQR(ctx, entry, order)
	require.NoError(t, err)

	t.Run("renders a png", func(t *testing.T) {
		raw, err := base64.StdEncoding.DecodeString(uncached.Image)
		require.NoError(t, err)
		img, err := png.Decode(bytes.NewReader(raw))
		require.NoError(t, err)
		assert.Equal(t, 256, img.Bounds().Dx())
		assert.Equal(t, RemittancePayload(entry, order), uncached.Payload)
	})

	t.Run("cache hit", func(t *testing.T) {
		client, redisMock := redismock.NewClientMock()
		redisMock.ExpectGet("qr:" + entry.ID).SetVal("cached-image")

		qr, err := NewQRService(client, zap.NewNop()).GenerateRemittanceQR(ctx, entry, order)
		require.NoError(t, err)
		assert.Equal(t, "cached-image", qr.Image)
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("cache miss stores the image", func(t *testing.T) {
		client, redisMock := redismock.NewClientMock()
		redisMock.ExpectGet("qr:" + entry.ID).RedisNil()
		redisMock.ExpectSet("qr:"+entry.ID, uncached.Image, 24*time.Hour).SetVal("OK")

		qr, err := NewQRService(client, zap.NewNop()).GenerateRemittanceQR(ctx, entry, order)
		require.NoError(t, err)
		assert.Equal(t, uncached.Image, qr.Image)
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("cache outage still renders", func(t *testing.T) {
		client, redisMock := redismock.NewClientMock()
		redisMock.ExpectGet("qr:" + entry.ID).SetErr(errors.New("connection refused"))
		redisMock.ExpectSet("qr:"+entry.ID, uncached.Image, 24*time.Hour).SetErr(errors.New("connection refused"))

		qr, err := NewQRService(client, zap.NewNop()).GenerateRemittanceQR(ctx, entry, order)
		require.NoError(t, err)
		assert.Equal(t, uncached.Image, qr.Image)
	})
}
