package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/procurepay/backend/internal/models"
	"github.com/procurepay/backend/internal/services"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Distributor interface {
	PreviewDistribution(ctx context.Context, in services.PreviewInput) ([]models.DistributionLineItem, error)
	ComputeAndPersistDistribution(ctx context.Context, req models.DistributionRequest) (*services.DistributionResult, error)
	ListDistributionItems(ctx context.Context, requestID string) ([]models.DistributionLineItem, error)
}

type DistributionHandler struct {
	service   Distributor
	validator *services.ValidationHelper
	logger    *zap.Logger
}

func NewDistributionHandler(service Distributor, logger *zap.Logger) *DistributionHandler {
	return &DistributionHandler{
		service:   service,
		validator: services.NewValidationHelper(),
		logger:    logger,
	}
}

type previewLine struct {
	LineID        string          `json:"line_id" validate:"required"`
	TargetOrderID string          `json:"target_order_id" validate:"required"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Currency      string          `json:"currency" validate:"required,len=3"`
}

type previewDistributionRequest struct {
	TotalAmount decimal.Decimal            `json:"total_amount"`
	Currency    string                     `json:"currency" validate:"required,len=3"`
	Lines       []previewLine              `json:"lines" validate:"dive"`
	FXRates     map[string]decimal.Decimal `json:"fx_rates,omitempty"`
}

type createDistributionRequest struct {
	RequestID      string          `json:"request_id" validate:"required,max=64"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	Currency       string          `json:"currency" validate:"required,len=3"`
	TargetOrderIDs []string        `json:"target_order_ids" validate:"required,min=1,dive,required"`
	Description    string          `json:"description,omitempty" validate:"max=500"`
}

// Preview computes a distribution without persisting it
// @Summary Preview distribution
// @Description Allocate a total over the supplied lines proportionally to their normalized cost
// @Tags distributions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body previewDistributionRequest true "Lines and total"
// @Success 200 {array} models.DistributionLineItem
// @Failure 400 {object} services.ErrorResponse
// @Router /distributions/preview [post]
func (h *DistributionHandler) Preview(w http.ResponseWriter, r *http.Request) {
	var req previewDistributionRequest
	if !decodeJSON(w, r, &req, defaultBodyLimit) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	lines := make([]models.WeightedLine, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = models.WeightedLine{
			LineID:        l.LineID,
			TargetOrderID: l.TargetOrderID,
			Quantity:      l.Quantity,
			UnitPrice:     l.UnitPrice,
			Currency:      l.Currency,
		}
	}

	items, err := h.service.PreviewDistribution(r.Context(), services.PreviewInput{
		TotalAmount: req.TotalAmount,
		Currency:    req.Currency,
		Lines:       lines,
		FXRates:     req.FXRates,
	})
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// Create computes and stores a distribution over the target orders
// @Summary Distribute cost
// @Description Allocate a landed cost over every line of the target orders and persist line items and per-order rollups
// @Tags distributions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body createDistributionRequest true "Distribution request"
// @Success 201 {object} services.DistributionResult
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Failure 503 {object} services.ErrorResponse
// @Router /distributions [post]
func (h *DistributionHandler) Create(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	var req createDistributionRequest
	if !decodeJSON(w, r, &req, defaultBodyLimit) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := h.service.ComputeAndPersistDistribution(r.Context(), models.DistributionRequest{
		ID:             req.RequestID,
		TotalAmount:    req.TotalAmount,
		Currency:       req.Currency,
		TargetOrderIDs: req.TargetOrderIDs,
		Description:    req.Description,
		ActorID:        actorID,
	})
	if err != nil {
		h.logger.Warn("distribution failed",
			zap.String("request_id", req.RequestID),
			zap.String("actor_id", actorID),
			zap.Error(err),
		)
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// ListItems returns the stored line items of a distribution
// @Summary List distribution items
// @Tags distributions
// @Produce json
// @Security BearerAuth
// @Param requestId path string true "Distribution request ID"
// @Success 200 {array} models.DistributionLineItem
// @Failure 404 {object} services.ErrorResponse
// @Router /distributions/{requestId}/items [get]
func (h *DistributionHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListDistributionItems(r.Context(), chi.URLParam(r, "requestId"))
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}
