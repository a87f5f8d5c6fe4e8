package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// TimelinePort is the storage access the timeline service needs.
type TimelinePort interface {
	TimelineWindow(ctx context.Context, p timelineParams) ([]Entry, error)
}

// Service coordinates audit timeline reads.
type Service struct {
	repo TimelinePort
}

// NewService creates a timeline service.
func NewService(repo TimelinePort) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page of the audit trail, newest first. One extra row
// is fetched to decide HasNext without a count query.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 50 {
		pageSize = 50
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * pageSize

	entries, err := s.repo.TimelineWindow(ctx, timelineParams{
		From:   toPgTime(filters.From),
		To:     toPgTime(filters.To),
		Actor:  optionalText(filters.Actor),
		Action: optionalText(filters.Action),
		Entity: optionalText(filters.Entity),
		Offset: int32(offset),
		Limit:  int32(pageSize + 1),
	})
	if err != nil {
		return Result{}, err
	}

	hasNext := len(entries) > pageSize
	if hasNext {
		entries = entries[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	if entries == nil {
		entries = []Entry{}
	}
	return Result{Entries: entries, Paging: paging}, nil
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}
