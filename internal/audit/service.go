package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/finwise/finwise-admin/internal/platform/httpx"
)

// Reader is the query side of the audit store.
type Reader interface {
	List(ctx context.Context, f Filters) ([]Entry, int64, error)
	AggregateStats(ctx context.Context, from, to time.Time) (Stats, error)
}

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Page is one page of audit entries.
type Page struct {
	Entries  []Entry `json:"logs"`
	Total    int64   `json:"total"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
	HasNext  bool    `json:"has_next"`
}

// Service answers audit queries for the admin API.
type Service struct {
	reader Reader
}

// NewService constructs a Service.
func NewService(reader Reader) *Service {
	return &Service{reader: reader}
}

// List returns one normalized page of entries.
func (s *Service) List(ctx context.Context, f Filters) (Page, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = defaultPageSize
	}
	if f.PageSize > maxPageSize {
		f.PageSize = maxPageSize
	}
	if f.Status != "" && f.Status != StatusSuccess && f.Status != StatusFailure && f.Status != StatusPartial {
		return Page{}, fmt.Errorf("%w: unknown status filter %q", httpx.ErrValidation, f.Status)
	}

	entries, total, err := s.reader.List(ctx, f)
	if err != nil {
		return Page{}, err
	}
	return Page{
		Entries:  entries,
		Total:    total,
		Page:     f.Page,
		PageSize: f.PageSize,
		HasNext:  int64(f.Page*f.PageSize) < total,
	}, nil
}

// StatsForPeriod aggregates outcomes between from and to. A zero from
// defaults to 30 days before to; a zero to defaults to now.
func (s *Service) StatsForPeriod(ctx context.Context, from, to time.Time) (Stats, error) {
	if to.IsZero() {
		to = time.Now().UTC()
	}
	if from.IsZero() {
		from = to.AddDate(0, 0, -30)
	}
	if from.After(to) {
		return Stats{}, fmt.Errorf("%w: period start %s after end %s", httpx.ErrValidation, from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	return s.reader.AggregateStats(ctx, from, to)
}
