package memory_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gyaneshwarpardhi/pointlens/internal/event"
	"github.com/gyaneshwarpardhi/pointlens/internal/ledger"
	"github.com/gyaneshwarpardhi/pointlens/internal/ledger/memory"
)

func seed(n int) []event.RawEvent {
	base := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	out := make([]event.RawEvent, n)
	for i := range out {
		out[i] = event.RawEvent{ID: fmt.Sprintf("e%d", i), Timestamp: base.Add(time.Duration(i) * time.Minute)}
	}
	return out
}

func TestQueryEvents_PagesNewestFirst(t *testing.T) {
	src := memory.New(seed(5)...)
	got, err := ledger.FetchAll(context.Background(), src, ledger.Filter{}, 2, 0, ledger.Descending)
	if err != nil {
		t.Fatalf("FetchAll error: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("got %d events, want 5", len(got))
	}
	if got[0].ID != "e4" || got[4].ID != "e0" {
		t.Errorf("order = %s..%s, want e4..e0", got[0].ID, got[4].ID)
	}
}

func TestQueryEvents_Overlap(t *testing.T) {
	src := memory.New(seed(5)...)
	src.Overlap = 1
	got, err := ledger.FetchAll(context.Background(), src, ledger.Filter{}, 2, 0, ledger.Descending)
	if err != nil {
		t.Fatalf("FetchAll error: %v", err)
	}
	// pages: [e4 e3] [e3 e2] [e2 e1] [e1 e0]
	if len(got) != 8 {
		t.Errorf("got %d events with overlap, want 8", len(got))
	}
}

func TestFetchAll_MaxPages(t *testing.T) {
	src := memory.New(seed(10)...)
	got, err := ledger.FetchAll(context.Background(), src, ledger.Filter{}, 3, 2, ledger.Ascending)
	if err != nil {
		t.Fatalf("FetchAll error: %v", err)
	}
	if len(got) != 6 || got[0].ID != "e0" {
		t.Errorf("got %d events starting %s, want 6 starting e0", len(got), got[0].ID)
	}
}

func TestSource_Errors(t *testing.T) {
	src := memory.New(seed(2)...)
	boom := errors.New("node down")
	src.SetError(boom)
	if _, err := ledger.FetchAll(context.Background(), src, ledger.Filter{}, 10, 1, ledger.Descending); !errors.Is(err, boom) {
		t.Errorf("FetchAll err = %v, want %v", err, boom)
	}
	if _, err := src.FetchName(context.Background(), "x"); !errors.Is(err, boom) {
		t.Errorf("FetchName err = %v, want %v", err, boom)
	}
	src.SetError(nil)
	if _, err := src.QueryEvents(context.Background(), ledger.Query{Cursor: "nope"}); err == nil {
		t.Error("expected bad cursor error")
	}
}

func TestSource_Names(t *testing.T) {
	src := memory.New()
	src.AddEntity(ledger.Entity{ID: "0xm1", Name: "Bean There"})
	src.SetName("0xr1", "Free Coffee")
	ctx := context.Background()

	if name, err := src.FetchName(ctx, "0xm1"); err != nil || name != "Bean There" {
		t.Errorf("FetchName(0xm1) = %q, %v", name, err)
	}
	if name, err := src.FetchName(ctx, "0xr1"); err != nil || name != "Free Coffee" {
		t.Errorf("FetchName(0xr1) = %q, %v", name, err)
	}
	if _, err := src.FetchName(ctx, "0xnone"); err == nil {
		t.Error("expected not found error")
	}
	ents, err := src.ListEntities(ctx)
	if err != nil || len(ents) != 1 {
		t.Errorf("ListEntities = %v, %v", ents, err)
	}
}
