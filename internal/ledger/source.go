// Package ledger defines the read-only boundary to the blockchain.
package ledger

import (
	"context"

	"github.com/gyaneshwarpardhi/pointlens/internal/event"
)

// Order is the timestamp order of a query.
type Order string

const (
	Descending Order = "descending"
	Ascending  Order = "ascending"
)

// Filter selects events emitted by one Move module.
type Filter struct {
	Package string
	Module  string
}

// Query is one page request. Cursor is opaque; empty means the first page.
type Query struct {
	Filter Filter
	Cursor string
	Limit  int
	Order  Order
}

// Page is one page of results. Pages may overlap across calls, so callers
// must deduplicate.
type Page struct {
	Events     []event.RawEvent
	NextCursor string
	HasMore    bool
}

// Source is the event query side of the ledger.
type Source interface {
	QueryEvents(ctx context.Context, q Query) (Page, error)
}

// Entity is a directory entry for a counterparty (merchant).
type Entity struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TotalIssued uint64 `json:"total_issued"`
}

// EntityLister is implemented by sources that can enumerate counterparties.
type EntityLister interface {
	ListEntities(ctx context.Context) ([]Entity, error)
}

// FetchAll reads up to maxPages pages starting from the first one.
// Any page error aborts the read.
func FetchAll(ctx context.Context, src Source, f Filter, limit, maxPages int, order Order) ([]event.RawEvent, error) {
	var (
		out    []event.RawEvent
		cursor string
	)
	for page := 0; maxPages <= 0 || page < maxPages; page++ {
		p, err := src.QueryEvents(ctx, Query{Filter: f, Cursor: cursor, Limit: limit, Order: order})
		if err != nil {
			return nil, err
		}
		out = append(out, p.Events...)
		if !p.HasMore || p.NextCursor == "" {
			break
		}
		cursor = p.NextCursor
	}
	return out, nil
}
