package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/eaxy/eaxy/internal/shared"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	// MaxExportRows caps a single CSV export.
	MaxExportRows = 10000
)

// Repository reads audit rows.
type Repository interface {
	Window(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error)
	All(ctx context.Context, filters TimelineFilters, limit int) ([]TimelineRow, error)
}

// Service serves the audit timeline.
type Service struct {
	repo Repository
}

// NewService builds an audit timeline service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Timeline returns one page of the office timeline, newest first.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, errors.New("audit: repository not configured")
	}
	if err := validate(filters); err != nil {
		return Result{}, err
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	rows, err := s.repo.Window(ctx, filters, (page-1)*pageSize, pageSize+1)
	if err != nil {
		return Result{}, shared.WrapStore("audit: timeline", err)
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: rows, Paging: paging}, nil
}

// Export returns every matching row up to MaxExportRows.
func (s *Service) Export(ctx context.Context, filters TimelineFilters) ([]TimelineRow, error) {
	if s.repo == nil {
		return nil, errors.New("audit: repository not configured")
	}
	if err := validate(filters); err != nil {
		return nil, err
	}
	rows, err := s.repo.All(ctx, filters, MaxExportRows)
	if err != nil {
		return nil, shared.WrapStore("audit: export", err)
	}
	return rows, nil
}

func validate(filters TimelineFilters) error {
	if filters.Office == "" {
		return fmt.Errorf("%w: office required", shared.ErrValidation)
	}
	if !filters.From.IsZero() && !filters.To.IsZero() && filters.From.After(filters.To) {
		return fmt.Errorf("%w: from is after to", shared.ErrValidation)
	}
	return nil
}
