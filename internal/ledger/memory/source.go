// Package memory is an in-process ledger used for tests, demos and replaying
// captured event dumps.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/gyaneshwarpardhi/pointlens/internal/event"
	"github.com/gyaneshwarpardhi/pointlens/internal/ledger"
)

// Source serves events from memory. Overlap repeats the last n events of a
// page at the start of the next one, the way a lagging cursor does on a
// live node.
type Source struct {
	mu       sync.RWMutex
	events   []event.RawEvent // newest first
	entities []ledger.Entity
	names    map[string]string
	registry *ledger.Registry
	err      error
	Overlap  int
}

// New creates a Source holding events.
func New(events ...event.RawEvent) *Source {
	s := &Source{names: make(map[string]string)}
	s.Add(events...)
	return s
}

// Add appends events and keeps them ordered newest first.
func (s *Source) Add(events ...event.RawEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
	sort.SliceStable(s.events, func(i, j int) bool {
		return s.events[i].Timestamp.After(s.events[j].Timestamp)
	})
}

// AddEntity registers a directory entry; its name is also served by FetchName.
func (s *Source) AddEntity(e ledger.Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities = append(s.entities, e)
	s.names[e.ID] = e.Name
}

// SetName registers a name for an object id.
func (s *Source) SetName(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.names[id] = name
}

// SetRegistry installs an analytics registry served by ReadRegistry.
func (s *Source) SetRegistry(reg ledger.Registry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry = &reg
}

// SetError makes every subsequent call fail with err (nil clears it).
func (s *Source) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// QueryEvents implements ledger.Source. Filter is ignored.
func (s *Source) QueryEvents(ctx context.Context, q ledger.Query) (ledger.Page, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Page{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return ledger.Page{}, s.err
	}

	start := 0
	if q.Cursor != "" {
		n, err := strconv.Atoi(q.Cursor)
		if err != nil || n < 0 {
			return ledger.Page{}, fmt.Errorf("memory ledger: bad cursor %q", q.Cursor)
		}
		start = n
	}
	limit := q.Limit
	if limit <= 0 {
		limit = len(s.events)
	}

	ordered := s.events
	if q.Order == ledger.Ascending {
		ordered = make([]event.RawEvent, len(s.events))
		for i, ev := range s.events {
			ordered[len(s.events)-1-i] = ev
		}
	}
	if start >= len(ordered) {
		return ledger.Page{}, nil
	}
	end := min(start+limit, len(ordered))
	page := ledger.Page{Events: append([]event.RawEvent(nil), ordered[start:end]...)}
	if end < len(ordered) {
		next := max(end-s.Overlap, start+1)
		page.NextCursor = strconv.Itoa(next)
		page.HasMore = true
	}
	return page, nil
}

// ListEntities implements ledger.EntityLister.
func (s *Source) ListEntities(ctx context.Context) ([]ledger.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]ledger.Entity(nil), s.entities...), nil
}

// FetchName implements resolve.Fetcher.
func (s *Source) FetchName(ctx context.Context, id string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return "", s.err
	}
	name, ok := s.names[id]
	if !ok {
		return "", fmt.Errorf("memory ledger: object %s not found", id)
	}
	return name, nil
}

// ReadRegistry implements ledger.RegistryReader.
func (s *Source) ReadRegistry(ctx context.Context) (ledger.Registry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.err != nil {
		return ledger.Registry{}, false, s.err
	}
	if s.registry == nil {
		return ledger.Registry{}, false, nil
	}
	return *s.registry, true, nil
}
