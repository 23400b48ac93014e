package services

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/procurepay/backend/internal/config"
	"github.com/procurepay/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRemittance() (*models.PaymentEntry, *models.Order) {
	order := &models.Order{
		ID:         "po-1",
		Number:     "PO-2024-0001",
		SupplierID: "SUP-77",
		Currency:   "EUR",
		Total:      dec("300"),
	}
	entry := &models.PaymentEntry{
		ID:        "5f0c2a8e-5d43-4b39-9d3c-3b0b7b1e9a11",
		OrderID:   order.ID,
		Kind:      models.PaymentKindAdvance,
		Amount:    dec("100.5000"),
		CreatedAt: time.Now(),
	}
	return entry, order
}

func TestISO20022Service_CreatePacs008(t *testing.T) {
	service := NewISO20022Service(&config.SettlementConfig{CompanyName: "Buyer Ltd", CompanyBIC: "BUYRGB2L"})

	t.Run("create valid pacs008", func(t *testing.T) {
		entry, order := testRemittance()

		doc, err := service.CreatePacs008(entry, order)
		require.NoError(t, err)
		assert.Equal(t, entry.ID, string(doc.GrpHdr.MsgId))
		assert.Equal(t, "1", string(doc.GrpHdr.NbOfTxs))
		assert.Equal(t, "EUR", string(doc.GrpHdr.TtlIntrBkSttlmAmt.Ccy))
		assert.Equal(t, 100.5, doc.GrpHdr.TtlIntrBkSttlmAmt.Value)
		require.Len(t, doc.CdtTrfTxInf, 1)
		assert.Equal(t, entry.ID, string(*doc.CdtTrfTxInf[0].PmtId.InstrId))
		assert.Equal(t, order.Number, string(doc.CdtTrfTxInf[0].PmtId.EndToEndId))
		assert.Equal(t, "BUYRGB2L", string(*doc.CdtTrfTxInf[0].DbtrAgt.FinInstnId.BICFI))
		assert.Equal(t, "SUP-77", string(*doc.CdtTrfTxInf[0].Cdtr.Nm))
	})

	t.Run("reversal has no transfer", func(t *testing.T) {
		entry, order := testRemittance()
		entry.Kind = models.PaymentKindReversal
		entry.Amount = dec("-100.5")

		_, err := service.CreatePacs008(entry, order)
		assert.True(t, errors.Is(err, ErrValidation))
	})
}

func TestISO20022Service_ExportPayment(t *testing.T) {
	service := NewISO20022Service(&config.SettlementConfig{CompanyName: "Buyer Ltd", CompanyBIC: "BUYRGB2L"})
	entry, order := testRemittance()

	xmlData, err := service.ExportPayment(entry, order)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(xmlData, "<?xml"))
	assert.Contains(t, xmlData, "PO-2024-0001")
	assert.Contains(t, xmlData, "Buyer Ltd")
}
