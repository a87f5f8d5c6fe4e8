package bank

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRepo replicates the dedup key enforced by the unique index on
// (transaction_date, amount, label, bank_reference).
type memRepo struct {
	nextID int64
	txns   map[int64]*Transaction
	dedup  map[string]struct{}
}

func newMemRepo() *memRepo {
	return &memRepo{
		nextID: 1,
		txns:   make(map[int64]*Transaction),
		dedup:  make(map[string]struct{}),
	}
}

func dedupKey(date time.Time, amount decimal.Decimal, label, bankRef string) string {
	return fmt.Sprintf("%s|%s|%s|%s", date.Format("2006-01-02"), amount.StringFixed(2), label, bankRef)
}

func (m *memRepo) InsertTransaction(ctx context.Context, input NewTransactionInput) (*Transaction, error) {
	key := dedupKey(input.TransactionDate, input.Amount, input.Label, input.BankReference)
	if _, exists := m.dedup[key]; exists {
		return nil, ErrDuplicate
	}
	m.dedup[key] = struct{}{}

	txn := &Transaction{
		ID:              m.nextID,
		TransactionDate: input.TransactionDate,
		ValueDate:       input.ValueDate,
		Label:           input.Label,
		BankReference:   input.BankReference,
		Amount:          input.Amount,
		Direction:       input.Direction,
		Status:          StatusUnmatched,
		ImportBatchID:   input.ImportBatchID,
	}
	m.txns[m.nextID] = txn
	m.nextID++
	copied := *txn
	return &copied, nil
}

func (m *memRepo) GetTransaction(ctx context.Context, id int64) (*Transaction, error) {
	txn, ok := m.txns[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *txn
	return &copied, nil
}

func (m *memRepo) List(ctx context.Context, filter ListFilter) ([]Transaction, error) {
	var out []Transaction
	for _, txn := range m.txns {
		if filter.Status != "" && txn.Status != filter.Status {
			continue
		}
		if filter.SearchText != "" && !strings.Contains(strings.ToLower(txn.Label), strings.ToLower(filter.SearchText)) {
			continue
		}
		out = append(out, *txn)
	}
	return out, nil
}

func (m *memRepo) CountByStatus(ctx context.Context, status Status) (int, error) {
	count := 0
	for _, txn := range m.txns {
		if status == "" || txn.Status == status {
			count++
		}
	}
	return count, nil
}

func (m *memRepo) SumAmountByStatus(ctx context.Context, status Status) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, txn := range m.txns {
		if txn.Status == status {
			sum = sum.Add(txn.Amount)
		}
	}
	return sum, nil
}

func validRows() []RawRow {
	return []RawRow{
		{Date: "2024-03-15", Label: "VIR CIMENTS DU MAROC", Amount: "15000.00"},
		{Date: "16/03/2024", Label: "CHQ 445120 ATLAS TRANSPORT", Amount: "-8200.50"},
	}
}

func TestImportStoresValidRows(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(slog.Default(), repo, nil)

	summary, err := svc.Import(context.Background(), validRows())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Imported)
	assert.Equal(t, 0, summary.SkippedDuplicates)
	assert.Equal(t, 0, summary.Rejected)
	assert.NotEmpty(t, summary.BatchID)

	txn, err := svc.GetTransaction(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, StatusUnmatched, txn.Status)
	assert.Equal(t, DirectionCredit, txn.Direction)
	assert.Equal(t, summary.BatchID, txn.ImportBatchID)

	debit, err := svc.GetTransaction(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, DirectionDebit, debit.Direction)
	assert.Equal(t, time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC), debit.TransactionDate)
}

func TestImportReimportIsIdempotent(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(slog.Default(), repo, nil)

	first, err := svc.Import(context.Background(), validRows())
	require.NoError(t, err)
	require.Equal(t, 2, first.Imported)

	second, err := svc.Import(context.Background(), validRows())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Imported)
	assert.Equal(t, 2, second.SkippedDuplicates)
	assert.Len(t, repo.txns, 2)
	assert.NotEqual(t, first.BatchID, second.BatchID)
}

func TestImportSurvivesCacheOutage(t *testing.T) {
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	server.Close()

	repo := newMemRepo()
	svc := NewService(slog.Default(), repo, NewCache(client, time.Minute))

	summary, err := svc.Import(context.Background(), validRows())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Imported)
	assert.Len(t, repo.txns, 2)
}

func TestImportRejectsMalformedRowsWithoutAbortingBatch(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(slog.Default(), repo, nil)

	rows := []RawRow{
		{Date: "2024-03-15", Label: "VIR OK", Amount: "100.00"},
		{Date: "", Label: "NO DATE", Amount: "100.00"},
		{Date: "2024-03-15", Label: "", Amount: "100.00"},
		{Date: "2024-03-15", Label: "BAD AMOUNT", Amount: "abc"},
		{Date: "2024-03-15", Label: "BAD DIRECTION", Amount: "100.00", Direction: "sideways"},
		{Date: "2024-03-17", Label: "VIR OK TOO", Amount: "200.00"},
	}

	summary, err := svc.Import(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Imported)
	assert.Equal(t, 4, summary.Rejected)
	require.Len(t, summary.Rejections, 4)
	assert.Equal(t, 2, summary.Rejections[0].Line)
}

func TestImportParsesFrenchAmounts(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(slog.Default(), repo, nil)

	summary, err := svc.Import(context.Background(), []RawRow{
		{Date: "2024-03-15", Label: "VIR MONTANT FR", Amount: "12 500,75"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Imported)

	txn, err := svc.GetTransaction(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, txn.Amount.Equal(decimal.RequireFromString("12500.75")))
}

func TestListClampsLimit(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(slog.Default(), repo, nil)

	_, err := svc.Import(context.Background(), validRows())
	require.NoError(t, err)

	txns, err := svc.List(context.Background(), ListFilter{Status: StatusUnmatched})
	require.NoError(t, err)
	assert.Len(t, txns, 2)
}

func TestStatsAggregatesByStatus(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(slog.Default(), repo, nil)

	_, err := svc.Import(context.Background(), []RawRow{
		{Date: "2024-03-15", Label: "A", Amount: "100.00"},
		{Date: "2024-03-16", Label: "B", Amount: "200.00"},
		{Date: "2024-03-17", Label: "C", Amount: "300.00"},
	})
	require.NoError(t, err)

	repo.txns[1].Status = StatusReconciled
	repo.txns[2].Status = StatusIgnored

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.ReconciledCount)
	assert.Equal(t, 1, stats.PendingCount)
	assert.Equal(t, 1, stats.IgnoredCount)
	assert.True(t, stats.PendingAmount.Equal(decimal.RequireFromString("300.00")))
}
