package recon

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlasbeton/atlasbeton/internal/bank"
)

func newTestRouter(repo *memRepo) chi.Router {
	svc, _ := newTestService(repo)
	handler := NewHandler(slog.Default(), svc, 0.85)
	r := chi.NewRouter()
	handler.MountRoutes(r)
	return r
}

func TestSuggestionsEndpoint(t *testing.T) {
	repo := newMemRepo()
	repo.addTxn(1, day(2024, 3, 15), "15000.00", "VIR CIMENTS DU MAROC")
	repo.addInvoice(10, day(2024, 3, 14), "15000.00", "Ciments du Maroc", "")
	router := newTestRouter(repo)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/transactions/1/suggestions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ledger_id":10`)
	assert.Contains(t, rec.Body.String(), `"reasons"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/transactions/99/suggestions", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/transactions/abc/suggestions", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConfirmEndpoint(t *testing.T) {
	repo := newMemRepo()
	repo.addTxn(1, day(2024, 3, 15), "15000.00", "VIR CIMENTS DU MAROC")
	repo.addInvoice(10, day(2024, 3, 14), "15000.00", "Ciments du Maroc", "")
	router := newTestRouter(repo)

	body := `{"ledger_id":10,"score":0.95,"actor":"k.alaoui"}`
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/transactions/1/confirm", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, bank.StatusReconciled, repo.txns[1].Status)

	// repeating the confirm reports the transaction's own terminal state
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/transactions/1/confirm", strings.NewReader(body)))
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "already-reconciled")
}

func TestConfirmEndpointClaimConflict(t *testing.T) {
	repo := newMemRepo()
	repo.addTxn(1, day(2024, 3, 15), "15000.00", "VIR CIMENTS DU MAROC")
	repo.addTxn(2, day(2024, 3, 16), "15000.00", "VIR CIMENTS DU MAROC BIS")
	repo.addInvoice(10, day(2024, 3, 14), "15000.00", "Ciments du Maroc", "")
	router := newTestRouter(repo)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/transactions/1/confirm",
		strings.NewReader(`{"ledger_id":10,"score":0.95}`)))
	require.Equal(t, http.StatusCreated, rec.Code)

	// a different transaction hitting the claimed record gets the claim guard
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/transactions/2/confirm",
		strings.NewReader(`{"ledger_id":10,"score":0.95}`)))
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "ledger-already-claimed")
}

func TestConfirmEndpointValidation(t *testing.T) {
	repo := newMemRepo()
	repo.addTxn(1, day(2024, 3, 15), "15000.00", "VIR CIMENTS DU MAROC")
	router := newTestRouter(repo)

	for _, body := range []string{
		`{`,
		`{"score":0.5}`,
		`{"ledger_id":10,"score":1.5}`,
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/transactions/1/confirm", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %s", body)
	}
}

func TestIgnoreEndpoint(t *testing.T) {
	repo := newMemRepo()
	repo.addTxn(1, day(2024, 3, 15), "120.00", "FRAIS TENUE DE COMPTE")
	router := newTestRouter(repo)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/transactions/1/ignore", strings.NewReader(`{"reason":"bank fees"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, bank.StatusIgnored, repo.txns[1].Status)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/transactions/1/ignore", strings.NewReader(`{"reason":"again"}`)))
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "already-resolved")
}

func TestAutoEndpoint(t *testing.T) {
	repo := newMemRepo()
	repo.addTxn(1, day(2024, 3, 15), "15000.00", "VIR CIMENTS DU MAROC")
	repo.addInvoice(10, day(2024, 3, 14), "15000.00", "Ciments du Maroc", "")
	router := newTestRouter(repo)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auto", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"examined":1`)
	assert.Contains(t, rec.Body.String(), `"reconciled":1`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/auto", strings.NewReader(`{"threshold":2}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
