// Package paging implements max-id anchored pagination.  The first request
// pins the current maximum id; later pages pass it back so rows inserted in
// between never shift the window.
package paging

import (
	"context"
	"fmt"

	"github.com/iliyamo/citizen-booking/internal/apperr"
)

// Unbounded is the reserved limit that returns every row in one page.
const Unbounded = -1

// MaxLimit caps client supplied page sizes.
const MaxLimit = 100

// MaxPage caps the page number so the row offset stays well inside int.
const MaxPage = 1_000_000

// Source is a filtered, id-ordered row set.
type Source[T any] interface {
	// MaxID returns the highest id matching the filters, 0 when empty.
	MaxID(ctx context.Context) (int64, error)
	// Count returns the number of matching rows with id <= maxID.
	Count(ctx context.Context, maxID int64) (int, error)
	// Fetch returns rows with id <= maxID ordered by id, skipping skip
	// rows and returning at most take.  take < 0 returns every row.
	Fetch(ctx context.Context, maxID int64, skip, take int) ([]T, error)
}

// Request selects a page.
type Request struct {
	Page  int
	Limit int
	MaxID *int64
}

// Page is one page of results with its stability anchor.
type Page[T any] struct {
	Items         []T   `json:"data"`
	Total         int   `json:"total"`
	Page          int   `json:"page"`
	Limit         int   `json:"limit"`
	MaxID         int64 `json:"maxId"`
	HasMore       bool  `json:"hasMore"`
	OutdatedMaxID bool  `json:"outdatedMaxId"`
}

// Validate checks page and limit bounds.
func (r Request) Validate() error {
	if r.Limit == Unbounded {
		return nil
	}
	if r.Page < 1 || r.Page > MaxPage {
		return apperr.BadRequest(fmt.Sprintf("page must be between 1 and %d", MaxPage))
	}
	if r.Limit < 1 || r.Limit > MaxLimit {
		return apperr.BadRequest(fmt.Sprintf("limit must be between 1 and %d", MaxLimit))
	}
	return nil
}

// Paginate serves one page from src.
func Paginate[T any](ctx context.Context, src Source[T], req Request) (*Page[T], error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	current, err := src.MaxID(ctx)
	if err != nil {
		return nil, fmt.Errorf("max id: %w", err)
	}

	if req.Limit == Unbounded {
		items, err := src.Fetch(ctx, current, 0, -1)
		if err != nil {
			return nil, fmt.Errorf("fetch all: %w", err)
		}
		if items == nil {
			items = []T{}
		}
		return &Page[T]{Items: items, Total: len(items), Page: 1, Limit: Unbounded, MaxID: current}, nil
	}

	anchor := current
	outdated := false
	if req.MaxID != nil {
		anchor = *req.MaxID
		outdated = anchor != current
	}

	total, err := src.Count(ctx, anchor)
	if err != nil {
		return nil, fmt.Errorf("count: %w", err)
	}
	items, err := src.Fetch(ctx, anchor, req.Limit*(req.Page-1), req.Limit)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	if items == nil {
		items = []T{}
	}
	pages := (total + req.Limit - 1) / req.Limit
	return &Page[T]{
		Items:         items,
		Total:         total,
		Page:          req.Page,
		Limit:         req.Limit,
		MaxID:         anchor,
		HasMore:       pages > req.Page,
		OutdatedMaxID: outdated,
	}, nil
}
