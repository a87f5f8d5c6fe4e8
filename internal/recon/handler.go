package recon

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/atlasbeton/atlasbeton/internal/bank"
	"github.com/atlasbeton/atlasbeton/internal/platform/httpx"
)

// Handler manages reconciliation workflow endpoints.
type Handler struct {
	logger           *slog.Logger
	service          *Service
	defaultThreshold float64
}

// NewHandler builds a Handler instance. defaultThreshold applies when an
// auto-reconcile request carries no threshold of its own.
func NewHandler(logger *slog.Logger, service *Service, defaultThreshold float64) *Handler {
	return &Handler{logger: logger, service: service, defaultThreshold: defaultThreshold}
}

// MountRoutes registers reconciliation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/transactions/{id}/suggestions", h.suggestions)
	r.Post("/transactions/{id}/confirm", h.confirm)
	r.Post("/transactions/{id}/ignore", h.ignore)
	r.Post("/auto", h.autoReconcile)
}

func (h *Handler) suggestions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.transactionID(w, r)
	if !ok {
		return
	}

	suggestions, err := h.service.Suggest(r.Context(), id)
	if err != nil {
		h.respondWorkflowError(w, err, id)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"suggestions": suggestions})
}

type confirmRequest struct {
	LedgerID int64   `json:"ledger_id"`
	Score    float64 `json:"score"`
	Actor    *string `json:"actor,omitempty"`
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.transactionID(w, r)
	if !ok {
		return
	}

	var payload confirmRequest
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if payload.LedgerID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "ledger_id is required")
		return
	}
	if payload.Score < 0 || payload.Score > 1 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "score must be within [0,1]")
		return
	}

	rec, err := h.service.Confirm(r.Context(), ConfirmInput{
		TransactionID: id,
		LedgerID:      payload.LedgerID,
		Score:         payload.Score,
		Method:        MethodManual,
		Actor:         payload.Actor,
	})
	if err != nil {
		h.respondWorkflowError(w, err, id)
		return
	}

	h.logger.Info("manual reconciliation confirmed",
		slog.Int64("transaction_id", rec.TransactionID),
		slog.Int64("ledger_id", rec.LedgerID),
		slog.Float64("score", rec.Score))
	httpx.JSON(w, http.StatusCreated, rec)
}

type ignoreRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) ignore(w http.ResponseWriter, r *http.Request) {
	id, ok := h.transactionID(w, r)
	if !ok {
		return
	}

	var payload ignoreRequest
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}

	if err := h.service.Ignore(r.Context(), id, payload.Reason); err != nil {
		h.respondWorkflowError(w, err, id)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": string(bank.StatusIgnored)})
}

type autoRequest struct {
	Threshold *float64 `json:"threshold,omitempty"`
}

func (h *Handler) autoReconcile(w http.ResponseWriter, r *http.Request) {
	threshold := h.defaultThreshold
	if r.ContentLength != 0 {
		var payload autoRequest
		if err := httpx.DecodeJSON(r, &payload); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
			return
		}
		if payload.Threshold != nil {
			threshold = *payload.Threshold
		}
	}
	if threshold < 0 || threshold > 1 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "threshold must be within [0,1]")
		return
	}

	result, err := h.service.AutoReconcile(r.Context(), threshold)
	if err != nil {
		h.logger.Error("auto-reconcile run failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) transactionID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid transaction id")
		return 0, false
	}
	return id, true
}

// respondWorkflowError maps the workflow state conflicts to stable problem
// types so clients can branch without parsing the detail text.
func (h *Handler) respondWorkflowError(w http.ResponseWriter, err error, transactionID int64) {
	switch {
	case errors.Is(err, ErrTransactionNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "transaction not found")
	case errors.Is(err, ErrLedgerNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", "ledger record not found")
	case errors.Is(err, ErrAlreadyReconciled):
		h.conflict(w, "already-reconciled", err.Error())
	case errors.Is(err, ErrAlreadyResolved):
		h.conflict(w, "already-resolved", err.Error())
	case errors.Is(err, ErrLedgerAlreadyClaimed):
		h.conflict(w, "ledger-already-claimed", err.Error())
	default:
		h.logger.Error("reconciliation request failed",
			slog.Int64("transaction_id", transactionID), slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func (h *Handler) conflict(w http.ResponseWriter, code, detail string) {
	httpx.JSON(w, http.StatusConflict, httpx.ProblemDetail{
		Type:   "urn:atlasbeton:recon:" + code,
		Title:  "Conflict",
		Status: http.StatusConflict,
		Detail: detail,
	})
}
