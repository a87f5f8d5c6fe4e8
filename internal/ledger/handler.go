package ledger

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/atlasbeton/atlasbeton/internal/platform/httpx"
)

// Handler manages ledger feed endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/feed", h.syncFeed)
	r.Get("/open", h.listOpen)
	r.Get("/{id}", h.getRecord)
}

type feedEntryDTO struct {
	ID            int64  `json:"id"`
	Kind          string `json:"kind"`
	ClientName    string `json:"client_name"`
	ReferenceCode string `json:"reference_code"`
	Date          string `json:"date"`
	Amount        string `json:"amount"`
}

type recordDTO struct {
	ID            int64  `json:"id"`
	Kind          string `json:"kind"`
	ClientName    string `json:"client_name"`
	ReferenceCode string `json:"reference_code"`
	Date          string `json:"date"`
	Amount        string `json:"amount"`
	ClaimedBy     *int64 `json:"claimed_by,omitempty"`
}

func toRecordDTO(rec Record) recordDTO {
	return recordDTO{
		ID:            rec.ID,
		Kind:          strings.ToLower(string(rec.Kind)),
		ClientName:    rec.ClientName,
		ReferenceCode: rec.ReferenceCode,
		Date:          rec.RecordDate.Format("2006-01-02"),
		Amount:        rec.Amount.StringFixed(2),
		ClaimedBy:     rec.ClaimedBy,
	}
}

func (h *Handler) syncFeed(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Entries []feedEntryDTO `json:"entries"`
	}
	if err := httpx.DecodeJSON(r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed JSON body")
		return
	}

	entries := make([]FeedEntry, 0, len(payload.Entries))
	for _, dto := range payload.Entries {
		date, err := time.Parse("2006-01-02", dto.Date)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "entry "+strconv.FormatInt(dto.ID, 10)+": invalid date")
			return
		}
		amount, err := decimal.NewFromString(dto.Amount)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "entry "+strconv.FormatInt(dto.ID, 10)+": invalid amount")
			return
		}
		entries = append(entries, FeedEntry{
			ID:            dto.ID,
			Kind:          Kind(strings.ToUpper(dto.Kind)),
			ClientName:    dto.ClientName,
			ReferenceCode: dto.ReferenceCode,
			RecordDate:    date,
			Amount:        amount,
		})
	}

	count, err := h.service.SyncFeed(r.Context(), entries)
	if errors.Is(err, ErrInvalidFeed) {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err != nil {
		h.logger.Error("sync ledger feed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{"synced": count})
}

func (h *Handler) listOpen(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.ListOpen(r.Context())
	if err != nil {
		h.logger.Error("list open ledger records", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	out := make([]recordDTO, 0, len(records))
	for _, rec := range records {
		out = append(out, toRecordDTO(rec))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"records": out})
}

func (h *Handler) getRecord(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid ledger record id")
		return
	}

	rec, err := h.service.GetRecord(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "ledger record not found")
		return
	}
	if err != nil {
		h.logger.Error("get ledger record", slog.Any("error", err), slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}

	httpx.JSON(w, http.StatusOK, toRecordDTO(*rec))
}
