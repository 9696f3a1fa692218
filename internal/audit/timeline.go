package audit

import "time"

// TimelineFilters narrows the audit timeline of one office.
type TimelineFilters struct {
	Office   string
	From     time.Time
	To       time.Time
	Actor    string
	Action   string
	EntityID string
	Page     int
	PageSize int
}

// TimelineRow is one audit entry.
type TimelineRow struct {
	At       time.Time
	Actor    string
	Office   string
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
}

// PagingInfo holds simple page navigation.
type PagingInfo struct {
	Page     int
	HasNext  bool
	PageSize int
	PrevPage int
	NextPage int
}

// Result wraps a timeline page.
type Result struct {
	Rows   []TimelineRow
	Paging PagingInfo
}
