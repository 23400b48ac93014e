package handlers

import (
	"context"
	"net/http"

	"github.com/procurepay/backend/internal/catalog"
	"github.com/procurepay/backend/internal/services"
	"go.uber.org/zap"
)

type CatalogStore interface {
	Current() *catalog.Snapshot
	Reload(ctx context.Context, actorID string) (*catalog.Snapshot, error)
}

type CatalogHandler struct {
	store  CatalogStore
	logger *zap.Logger
}

func NewCatalogHandler(store CatalogStore, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{store: store, logger: logger}
}

// Get returns the status catalog in use
// @Summary Status catalog
// @Tags catalog
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object
// @Router /catalog [get]
func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Current())
}

// Reload re-reads the status catalog from the database
// @Summary Reload status catalog
// @Tags catalog
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object
// @Failure 403 {string} string
// @Failure 500 {object} services.ErrorResponse
// @Router /admin/catalog/reload [post]
func (h *CatalogHandler) Reload(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireActor(w, r)
	if !ok {
		return
	}

	snap, err := h.store.Reload(r.Context(), actorID)
	if err != nil {
		h.logger.Error("catalog reload failed", zap.String("actor_id", actorID), zap.Error(err))
		services.SendErrorResponse(w, "Catalog reload failed", http.StatusInternalServerError, nil)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}
