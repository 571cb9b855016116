package inventory

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/weftpos/weftpos/internal/platform/httpx"
	"github.com/weftpos/weftpos/internal/shared"
)

// Handler exposes fabric and stock endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/fabrics", h.createFabric)
	r.Get("/fabrics/{id}", h.getFabric)
	r.Post("/fabrics/{id}/batches", h.addBatch)
	r.Post("/reduce", h.reduce)
}

type createFabricRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name" validate:"required"`
	Category string `json:"category"`
	Unit     string `json:"unit"`
}

type batchItemRequest struct {
	ColorName string  `json:"colorName" validate:"required"`
	Quantity  float64 `json:"quantity" validate:"gt=0"`
}

type addBatchRequest struct {
	PurchaseDate time.Time          `json:"purchaseDate"`
	UnitCost     float64            `json:"unitCost" validate:"gte=0"`
	Supplier     string             `json:"supplier"`
	Items        []batchItemRequest `json:"items" validate:"required,min=1,dive"`
}

type reduceLineRequest struct {
	FabricID  string  `json:"fabricId" validate:"required"`
	Name      string  `json:"name"`
	Quantity  float64 `json:"quantity" validate:"gt=0"`
	ColorName string  `json:"colorName"`
}

type reduceRequest struct {
	Code  string              `json:"code"`
	Items []reduceLineRequest `json:"items" validate:"required,min=1,dive"`
}

func (h *Handler) createFabric(w http.ResponseWriter, r *http.Request) {
	var req createFabricRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}

	fabric, err := h.service.CreateFabric(r.Context(), FabricInput{
		ID:       req.ID,
		Name:     req.Name,
		Category: req.Category,
		Unit:     req.Unit,
	})
	if err != nil {
		h.logger.Error("create fabric", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, fabric)
}

func (h *Handler) getFabric(w http.ResponseWriter, r *http.Request) {
	fabricID := chi.URLParam(r, "id")
	fabric, err := h.service.GetFabric(r.Context(), fabricID)
	if err != nil {
		if !shared.IsNotFound(err) {
			h.logger.Error("get fabric", slog.Any("error", err), slog.String("fabric_id", fabricID))
		}
		httpx.RespondError(w, err)
		return
	}

	batches := sortedBatches(fabric)
	httpx.JSON(w, http.StatusOK, map[string]any{
		"id":       fabric.ID,
		"name":     fabric.Name,
		"category": fabric.Category,
		"unit":     fabric.Unit,
		"batches":  batches,
	})
}

func (h *Handler) addBatch(w http.ResponseWriter, r *http.Request) {
	fabricID := chi.URLParam(r, "id")
	var req addBatchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}

	items := make([]BatchItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, BatchItem{ColorName: it.ColorName, Quantity: it.Quantity})
	}
	batch, err := h.service.AddBatch(r.Context(), fabricID, BatchInput{
		PurchaseDate: req.PurchaseDate,
		UnitCost:     req.UnitCost,
		Supplier:     req.Supplier,
		Items:        items,
	})
	if err != nil {
		h.logger.Error("add batch", slog.Any("error", err), slog.String("fabric_id", fabricID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, batch)
}

func (h *Handler) reduce(w http.ResponseWriter, r *http.Request) {
	var req reduceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}

	items := make([]SaleLineItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, SaleLineItem{
			FabricID:  it.FabricID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			ColorName: it.ColorName,
		})
	}
	result, err := h.service.ReduceInventory(r.Context(), ReduceRequest{Code: req.Code, Items: items})
	if err != nil {
		if shared.IsConflict(err) {
			h.logger.Warn("reduce inventory contended", slog.Any("error", err))
		} else if !shared.IsValidation(err) && !shared.IsNotFound(err) {
			h.logger.Error("reduce inventory", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}
