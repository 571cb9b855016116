package memo

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"github.com/weftpos/weftpos/internal/platform/httpx"
	"github.com/weftpos/weftpos/internal/shared"
)

// Handler exposes memo aggregation and payment endpoints. Concurrent
// aggregation requests for the same customer collapse into one scan.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	group     singleflight.Group
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers memo routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/customers/{id}/memos", h.customerMemos)
	r.Get("/customers/{id}/memos/due", h.customerMemosWithDues)
	r.Get("/customers/{id}/due", h.customerTotalDue)
	r.Get("/memos/{memoNumber}", h.memoDetails)
	r.Post("/memos/{memoNumber}/payments", h.addPayment)
	r.Delete("/transactions/{id}", h.deleteTransaction)
}

type addPaymentRequest struct {
	CustomerID string    `json:"customerId" validate:"required"`
	Amount     float64   `json:"amount" validate:"gt=0"`
	Date       time.Time `json:"date"`
}

func (h *Handler) customerMemos(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "id")
	groups, err, _ := h.collapse(r.Context(), "memos:"+customerID, func(ctx context.Context) (any, error) {
		return h.service.CustomerMemos(ctx, customerID)
	})
	if err != nil {
		h.logger.Error("list customer memos", slog.Any("error", err), slog.String("customer_id", customerID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, groups)
}

func (h *Handler) customerMemosWithDues(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "id")
	groups, err, _ := h.collapse(r.Context(), "dues:"+customerID, func(ctx context.Context) (any, error) {
		return h.service.CustomerMemosWithDues(ctx, customerID)
	})
	if err != nil {
		h.logger.Error("list due memos", slog.Any("error", err), slog.String("customer_id", customerID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, groups)
}

func (h *Handler) customerTotalDue(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "id")
	total, err := h.service.CustomerTotalDue(r.Context(), customerID)
	if err != nil {
		h.logger.Error("customer total due", slog.Any("error", err), slog.String("customer_id", customerID))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"customerId": customerID,
		"totalDue":   total,
	})
}

func (h *Handler) memoDetails(w http.ResponseWriter, r *http.Request) {
	memoNumber := chi.URLParam(r, "memoNumber")
	details, err := h.service.MemoDetails(r.Context(), memoNumber)
	if err != nil {
		if !shared.IsNotFound(err) {
			h.logger.Error("memo details", slog.Any("error", err), slog.String("memo", memoNumber))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, details)
}

func (h *Handler) addPayment(w http.ResponseWriter, r *http.Request) {
	memoNumber := chi.URLParam(r, "memoNumber")
	var req addPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}

	id, err := h.service.AddPayment(r.Context(), memoNumber, req.CustomerID, PaymentInput{
		Amount: req.Amount,
		Date:   req.Date,
	})
	if err != nil {
		h.logger.Error("add payment", slog.Any("error", err), slog.String("memo", memoNumber))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.DeleteTransaction(r.Context(), id); err != nil {
		if !shared.IsNotFound(err) {
			h.logger.Error("delete transaction", slog.Any("error", err), slog.String("transaction_id", id))
		}
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) collapse(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error, bool) {
	ch := h.group.DoChan(key, func() (any, error) {
		return fn(ctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-ch:
		return res.Val, res.Err, res.Shared
	}
}
