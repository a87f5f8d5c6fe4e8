package audit

import (
	"encoding/json"
	"time"
)

// Actions recorded against reconciliation entities.
const (
	ActionReconcile = "reconcile"
	ActionIgnore    = "ignore"
	ActionImport    = "import"
)

// Entry is one row of the audit trail.
type Entry struct {
	ID         int64           `json:"id"`
	Actor      string          `json:"actor"`
	Action     string          `json:"action"`
	Entity     string          `json:"entity"`
	EntityID   string          `json:"entity_id"`
	Meta       json.RawMessage `json:"meta,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// TimelineFilters narrows the audit timeline query.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	Actor    string
	Action   string
	Entity   string
	Page     int
	PageSize int
}

// PagingInfo carries pagination metadata alongside a timeline page.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result is one page of the audit timeline.
type Result struct {
	Entries []Entry    `json:"entries"`
	Paging  PagingInfo `json:"paging"`
}
