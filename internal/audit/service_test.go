package audit

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTimelineRepo struct {
	entries  []Entry
	lastCall timelineParams
}

func (s *stubTimelineRepo) TimelineWindow(ctx context.Context, p timelineParams) ([]Entry, error) {
	s.lastCall = p
	return s.entries, nil
}

func mockEntry(id int64, ts string) Entry {
	at, _ := time.Parse(time.RFC3339, ts)
	return Entry{
		ID:         id,
		Actor:      "system",
		Action:     ActionReconcile,
		Entity:     "bank_transaction",
		EntityID:   "1",
		OccurredAt: at,
	}
}

func TestTimelinePaging(t *testing.T) {
	repo := &stubTimelineRepo{
		entries: []Entry{
			mockEntry(3, "2024-03-10T10:00:00Z"),
			mockEntry(2, "2024-03-09T09:00:00Z"),
			mockEntry(1, "2024-03-08T08:00:00Z"),
		},
	}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 1, PageSize: 2})
	require.NoError(t, err)
	assert.Len(t, result.Entries, 2)
	assert.True(t, result.Paging.HasNext)
	assert.Equal(t, 2, result.Paging.NextPage)
	assert.Equal(t, int32(3), repo.lastCall.Limit)
	assert.Equal(t, int32(0), repo.lastCall.Offset)
}

func TestTimelineFiltersMapToOptionalParams(t *testing.T) {
	repo := &stubTimelineRepo{}
	svc := NewService(repo)

	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	result, err := svc.Timeline(context.Background(), TimelineFilters{
		From:  from,
		Actor: "  k.alaoui ",
	})
	require.NoError(t, err)
	assert.Empty(t, result.Entries)
	assert.False(t, result.Paging.HasNext)

	assert.Equal(t, pgtype.Timestamptz{Time: from, Valid: true}, repo.lastCall.From)
	assert.Equal(t, pgtype.Timestamptz{}, repo.lastCall.To)
	assert.Equal(t, pgtype.Text{String: "k.alaoui", Valid: true}, repo.lastCall.Actor)
	assert.Equal(t, pgtype.Text{}, repo.lastCall.Action)
}

func TestTimelineClampsPageSize(t *testing.T) {
	repo := &stubTimelineRepo{}
	svc := NewService(repo)

	_, err := svc.Timeline(context.Background(), TimelineFilters{Page: 2, PageSize: 500})
	require.NoError(t, err)
	assert.Equal(t, int32(51), repo.lastCall.Limit)
	assert.Equal(t, int32(50), repo.lastCall.Offset)
}
