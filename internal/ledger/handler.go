package ledger

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/weftpos/weftpos/internal/platform/httpx"
	"github.com/weftpos/weftpos/internal/shared"
)

// DueRefreshScheduler queues background supplier due sweeps. An empty
// supplierID requests a full sweep.
type DueRefreshScheduler interface {
	ScheduleDueRefresh(ctx context.Context, supplierID string) error
}

// Handler exposes cash-book and supplier endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	jobs      DueRefreshScheduler
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, jobsClient DueRefreshScheduler) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New(), jobs: jobsClient}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/cashbook", h.listCash)
	r.Post("/cashbook", h.addCash)
	r.Put("/cashbook/{id}", h.updateCash)
	r.Delete("/cashbook/{id}", h.deleteCash)

	r.Get("/suppliers", h.listSuppliers)
	r.Post("/suppliers", h.createSupplier)
	r.Post("/suppliers/due/refresh", h.queueDueRefresh)
	r.Get("/suppliers/{id}/due", h.supplierDue)
	r.Post("/suppliers/{id}/due/refresh", h.refreshSupplierDue)
	r.Get("/suppliers/{id}/transactions", h.listSupplierTransactions)
	r.Post("/suppliers/{id}/transactions", h.addSupplierTransaction)
}

type cashRequest struct {
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	CashIn      float64   `json:"cashIn" validate:"gte=0"`
	CashOut     float64   `json:"cashOut" validate:"gte=0"`
	Type        string    `json:"type" validate:"required,oneof=sale expense other"`
	Reference   string    `json:"reference"`

	// RelatedTransactionID links the entry to a customer transaction whose
	// deposit moves in the same write.
	RelatedTransactionID string `json:"relatedTransactionId"`

	// PreviousCashIn is required on updates of linked entries so the deposit
	// moves by the delta only.
	PreviousCashIn float64 `json:"previousCashIn" validate:"gte=0"`
}

type supplierRequest struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone"`
}

type supplierTransactionRequest struct {
	TotalAmount float64   `json:"totalAmount" validate:"gte=0"`
	PaidAmount  float64   `json:"paidAmount" validate:"gte=0"`
	Date        time.Time `json:"date"`
}

func (h *Handler) listCash(w http.ResponseWriter, r *http.Request) {
	filter := CashFilter{Type: CashType(r.URL.Query().Get("type"))}
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid from date, want YYYY-MM-DD")
			return
		}
		filter.From = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid to date, want YYYY-MM-DD")
			return
		}
		filter.To = t
	}

	entries, err := h.service.ListCashTransactions(r.Context(), filter)
	if err != nil {
		h.logger.Error("list cash transactions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) addCash(w http.ResponseWriter, r *http.Request) {
	var req cashRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}

	id, err := h.service.AddCashTransaction(r.Context(), cashInputFromRequest(req), req.RelatedTransactionID)
	if err != nil {
		if !shared.IsNotFound(err) && !shared.IsValidation(err) {
			h.logger.Error("add cash transaction", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) updateCash(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req cashRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}

	err := h.service.UpdateCashTransaction(r.Context(), id, cashInputFromRequest(req), req.RelatedTransactionID, req.PreviousCashIn)
	if err != nil {
		if !shared.IsNotFound(err) && !shared.IsValidation(err) {
			h.logger.Error("update cash transaction", slog.Any("error", err), slog.String("cash_id", id))
		}
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteCash(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	reference := r.URL.Query().Get("reference")
	if err := h.service.DeleteCashTransaction(r.Context(), id, reference); err != nil {
		if !shared.IsNotFound(err) {
			h.logger.Error("delete cash transaction", slog.Any("error", err), slog.String("cash_id", id))
		}
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listSuppliers(w http.ResponseWriter, r *http.Request) {
	suppliers, err := h.service.ListSuppliers(r.Context())
	if err != nil {
		h.logger.Error("list suppliers", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, suppliers)
}

func (h *Handler) createSupplier(w http.ResponseWriter, r *http.Request) {
	var req supplierRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}

	supplier, err := h.service.CreateSupplier(r.Context(), SupplierInput{Name: req.Name, Phone: req.Phone})
	if err != nil {
		h.logger.Error("create supplier", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, supplier)
}

func (h *Handler) supplierDue(w http.ResponseWriter, r *http.Request) {
	supplierID := chi.URLParam(r, "id")
	txns, err := h.service.ListSupplierTransactions(r.Context(), supplierID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	report, err := h.service.CalculateAndValidateSupplierDue(r.Context(), supplierID, txns)
	if err != nil {
		if !shared.IsNotFound(err) {
			h.logger.Error("validate supplier due", slog.Any("error", err), slog.String("supplier_id", supplierID))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) refreshSupplierDue(w http.ResponseWriter, r *http.Request) {
	supplierID := chi.URLParam(r, "id")
	report, err := h.service.RefreshSupplierDue(r.Context(), supplierID)
	if err != nil {
		if !shared.IsNotFound(err) {
			h.logger.Error("refresh supplier due", slog.Any("error", err), slog.String("supplier_id", supplierID))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) queueDueRefresh(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "job queue is not configured")
		return
	}
	if err := h.jobs.ScheduleDueRefresh(r.Context(), ""); err != nil {
		h.logger.Error("queue due refresh", slog.Any("error", err))
		httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "job queue rejected the task")
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (h *Handler) listSupplierTransactions(w http.ResponseWriter, r *http.Request) {
	supplierID := chi.URLParam(r, "id")
	txns, err := h.service.ListSupplierTransactions(r.Context(), supplierID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, txns)
}

func (h *Handler) addSupplierTransaction(w http.ResponseWriter, r *http.Request) {
	supplierID := chi.URLParam(r, "id")
	var req supplierTransactionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
		return
	}

	id, err := h.service.AddSupplierTransaction(r.Context(), supplierID, SupplierTransactionInput{
		TotalAmount: req.TotalAmount,
		PaidAmount:  req.PaidAmount,
		Date:        req.Date,
	})
	if err != nil {
		if !shared.IsNotFound(err) && !shared.IsValidation(err) {
			h.logger.Error("add supplier transaction", slog.Any("error", err), slog.String("supplier_id", supplierID))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]string{"id": id})
}

func cashInputFromRequest(req cashRequest) CashInput {
	return CashInput{
		Date:        req.Date,
		Description: req.Description,
		CashIn:      req.CashIn,
		CashOut:     req.CashOut,
		Type:        CashType(req.Type),
		Reference:   req.Reference,
	}
}
