package bank

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/atlasbeton/atlasbeton/internal/platform/httpx"
)

// Handler manages bank transaction endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// MountRoutes registers bank routes. Imports get a tighter rate limit than
// the read endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(gr chi.Router) {
		gr.Use(httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
		gr.Post("/import", h.importRows)
		gr.Post("/import/csv", h.importCSV)
	})
	r.Get("/transactions", h.listTransactions)
	r.Get("/transactions/{id}", h.getTransaction)
	r.Get("/stats", h.stats)
}

type importRequest struct {
	Rows []RawRow `json:"rows" validate:"required,min=1,dive"`
}

func (h *Handler) importRows(w http.ResponseWriter, r *http.Request) {
	var payload importRequest
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	summary, err := h.service.Import(r.Context(), payload.Rows)
	if err != nil {
		h.logger.Error("import statement rows", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	h.logger.Info("statement import",
		slog.String("batch_id", summary.BatchID),
		slog.Int("imported", summary.Imported),
		slog.Int("skipped_duplicates", summary.SkippedDuplicates),
		slog.Int("rejected", summary.Rejected))
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) importCSV(w http.ResponseWriter, r *http.Request) {
	rows, parseRejections, err := ParseStatementCSV(r.Body)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	summary, err := h.service.Import(r.Context(), rows)
	if err != nil {
		h.logger.Error("import statement csv", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	summary.Rejected += len(parseRejections)
	summary.Rejections = append(parseRejections, summary.Rejections...)
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) listTransactions(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		Status:     Status(r.URL.Query().Get("status")),
		SearchText: r.URL.Query().Get("q"),
	}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		filter.Limit, _ = strconv.Atoi(limit)
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		filter.Offset, _ = strconv.Atoi(offset)
	}

	transactions, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list bank transactions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	out := make([]transactionDTO, 0, len(transactions))
	for _, txn := range transactions {
		out = append(out, toTransactionDTO(txn))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"transactions": out})
}

func (h *Handler) getTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid transaction id")
		return
	}

	txn, err := h.service.GetTransaction(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "transaction not found")
		return
	}
	if err != nil {
		h.logger.Error("get bank transaction", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, toTransactionDTO(*txn))
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.logger.Error("bank stats", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

type transactionDTO struct {
	ID              int64    `json:"id"`
	TransactionDate string   `json:"transaction_date"`
	ValueDate       string   `json:"value_date,omitempty"`
	Label           string   `json:"label"`
	BankReference   string   `json:"bank_reference,omitempty"`
	Amount          string   `json:"amount"`
	Direction       string   `json:"direction"`
	Status          string   `json:"status"`
	ConfidenceScore *float64 `json:"confidence_score,omitempty"`
	LinkedLedgerID  *int64   `json:"linked_ledger_id,omitempty"`
	Notes           string   `json:"notes,omitempty"`
}

func toTransactionDTO(txn Transaction) transactionDTO {
	dto := transactionDTO{
		ID:              txn.ID,
		TransactionDate: txn.TransactionDate.Format("2006-01-02"),
		Label:           txn.Label,
		BankReference:   txn.BankReference,
		Amount:          txn.Amount.StringFixed(2),
		Direction:       string(txn.Direction),
		Status:          string(txn.Status),
		ConfidenceScore: txn.ConfidenceScore,
		LinkedLedgerID:  txn.LinkedLedgerID,
		Notes:           txn.Notes,
	}
	if txn.ValueDate != nil {
		dto.ValueDate = txn.ValueDate.Format("2006-01-02")
	}
	return dto
}
