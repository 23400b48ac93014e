package handlers

import (
	"context"
	"encoding/base64"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/procurepay/backend/internal/models"
	"github.com/procurepay/backend/internal/services"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Receipts travel base64 encoded, so the payment body gets a larger cap.
const paymentBodyLimit = 16 << 20

type PaymentLedger interface {
	ApplyPayment(ctx context.Context, in services.ApplyPaymentInput) (*services.PaymentResult, error)
	ReversePayment(ctx context.Context, in services.ReversePaymentInput) (*services.PaymentResult, error)
	ListPayments(ctx context.Context, orderID string) ([]models.PaymentEntry, error)
	GetPaymentEntry(ctx context.Context, entryID string) (*models.PaymentEntry, *models.Order, error)
}

type PaymentHandler struct {
	ledger    PaymentLedger
	iso       *services.ISO20022Service
	qr        *services.QRService
	validator *services.ValidationHelper
	logger    *zap.Logger
}

func NewPaymentHandler(ledger PaymentLedger, iso *services.ISO20022Service, qr *services.QRService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		ledger:    ledger,
		iso:       iso,
		qr:        qr,
		validator: services.NewValidationHelper(),
		logger:    logger,
	}
}

type receiptPayload struct {
	FileName string `json:"file_name" validate:"max=255"`
	Data     string `json:"data" validate:"required,base64"`
}

type applyPaymentRequest struct {
	Kind       string           `json:"kind" validate:"required,oneof=FULL ADVANCE"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	SourceID   string           `json:"source_id" validate:"required"`
	ReceiptRef string           `json:"receipt_ref,omitempty" validate:"max=512"`
	Comment    string           `json:"comment,omitempty" validate:"max=1000"`
	Receipt    *receiptPayload  `json:"receipt,omitempty"`
}

type reversePaymentRequest struct {
	Comment string `json:"comment,omitempty" validate:"max=1000"`
}

// ApplyPayment records a payment against an order
// @Summary Apply payment
// @Description Apply a FULL or ADVANCE payment to a purchase order. The amount is clamped to the outstanding balance.
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Param request body applyPaymentRequest true "Payment"
// @Success 201 {object} services.PaymentResult
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Failure 502 {object} services.ErrorResponse
// @Failure 503 {object} services.ErrorResponse
// @Router /orders/{orderId}/payments [post]
func (h *PaymentHandler) ApplyPayment(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req applyPaymentRequest
	if !decodeJSON(w, r, &req, paymentBodyLimit) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	in := services.ApplyPaymentInput{
		OrderID:    chi.URLParam(r, "orderId"),
		Kind:       models.PaymentKind(req.Kind),
		Amount:     req.Amount,
		SourceID:   req.SourceID,
		ReceiptRef: req.ReceiptRef,
		Comment:    req.Comment,
		ActorID:    actorID,
	}
	if req.Receipt != nil {
		data, err := base64.StdEncoding.DecodeString(req.Receipt.Data)
		if err != nil {
			services.SendErrorResponse(w, "Receipt data is not valid base64", http.StatusBadRequest, nil)
			return
		}
		in.Receipt = &services.ReceiptUpload{FileName: req.Receipt.FileName, Data: data}
	}

	result, err := h.ledger.ApplyPayment(r.Context(), in)
	if err != nil {
		h.logFailure("apply payment", in.OrderID, actorID, err)
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// ListPayments lists the payment entries of an order
// @Summary List payments
// @Description List payment entries of an order in chronological order
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param orderId path string true "Order ID"
// @Success 200 {array} models.PaymentEntry
// @Failure 404 {object} services.ErrorResponse
// @Router /orders/{orderId}/payments [get]
func (h *PaymentHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	entries, err := h.ledger.ListPayments(r.Context(), orderID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// ReversePayment reverses a payment entry
// @Summary Reverse payment
// @Description Append a REVERSAL entry cancelling a payment entry
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param entryId path string true "Payment entry ID"
// @Param request body reversePaymentRequest false "Reversal"
// @Success 201 {object} services.PaymentResult
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /payments/{entryId}/reversal [post]
func (h *PaymentHandler) ReversePayment(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req reversePaymentRequest
	if r.ContentLength != 0 {
		if !decodeJSON(w, r, &req, defaultBodyLimit) {
			return
		}
		if err := h.validator.ValidateStruct(&req); err != nil {
			services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
			return
		}
	}

	entryID := chi.URLParam(r, "entryId")
	result, err := h.ledger.ReversePayment(r.Context(), services.ReversePaymentInput{
		EntryID: entryID,
		ActorID: actorID,
		Comment: req.Comment,
	})
	if err != nil {
		h.logFailure("reverse payment", entryID, actorID, err)
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// ExportISO20022 exports a payment entry as pacs.008
// @Summary Export pacs.008
// @Description Render a payment entry as an ISO 20022 pacs.008.001.08 credit transfer
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param entryId path string true "Payment entry ID"
// @Success 200 {object} object{messageType=string,xml=string}
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /payments/{entryId}/iso20022 [get]
func (h *PaymentHandler) ExportISO20022(w http.ResponseWriter, r *http.Request) {
	entry, order, err := h.ledger.GetPaymentEntry(r.Context(), chi.URLParam(r, "entryId"))
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	xmlData, err := h.iso.ExportPayment(entry, order)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"messageType": services.Pacs008MessageType,
		"xml":         xmlData,
	})
}

// RemittanceQR renders a payment entry reference as a QR code
// @Summary Remittance QR
// @Description Base64 PNG QR code encoding order number, entry id, amount and currency
// @Tags payments
// @Produce json
// @Security BearerAuth
// @Param entryId path string true "Payment entry ID"
// @Success 200 {object} services.RemittanceQR
// @Failure 404 {object} services.ErrorResponse
// @Router /payments/{entryId}/qr [get]
func (h *PaymentHandler) RemittanceQR(w http.ResponseWriter, r *http.Request) {
	entry, order, err := h.ledger.GetPaymentEntry(r.Context(), chi.URLParam(r, "entryId"))
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	qr, err := h.qr.GenerateRemittanceQR(r.Context(), entry, order)
	if err != nil {
		h.logger.Error("render remittance qr", zap.String("entry_id", entry.ID), zap.Error(err))
		services.SendServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, qr)
}

func (h *PaymentHandler) logFailure(op, subjectID, actorID string, err error) {
	h.logger.Warn(op+" failed",
		zap.String("subject_id", subjectID),
		zap.String("actor_id", actorID),
		zap.Error(err),
	)
}
