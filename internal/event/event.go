package event

import "time"

// RawEvent is a ledger record as delivered by the event source.
// It is owned by the source and must not be mutated.
type RawEvent struct {
	ID        string         `json:"id"`   // txDigest:eventSeq on Sui
	Type      string         `json:"type"` // "0xpkg::loyalty::PointsEarned"
	Sender    string         `json:"sender,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"` // parsed event payload
	Call      *MoveCall      `json:"call,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// MoveCall describes the entry function that emitted the event, when the
// transport is able to supply it.
type MoveCall struct {
	Package   string `json:"package"`
	Module    string `json:"module"`
	Function  string `json:"function"`
	Arguments []any  `json:"arguments,omitempty"`
}

// Kind is the domain classification of an event.
type Kind string

const (
	KindEarned   Kind = "earned"
	KindRedeemed Kind = "redeemed"
	KindOther    Kind = "other"
)

// DomainEvent is the typed view of exactly one RawEvent.
type DomainEvent struct {
	ID     string `json:"id"`
	Kind   Kind   `json:"kind"`
	Actor  string `json:"actor"`
	Amount uint64 `json:"amount"`
	// AmountEstimated is set when no amount could be read from the record
	// and the configured per-kind fallback was used instead.
	AmountEstimated bool      `json:"amount_estimated,omitempty"`
	Counterparty    string    `json:"counterparty,omitempty"`
	RewardRef       string    `json:"reward_ref,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// Dedupe collapses events to one entry per ID. The surviving value is the
// last occurrence; output order is the order of first occurrence.
func Dedupe(events []DomainEvent) []DomainEvent {
	if len(events) == 0 {
		return []DomainEvent{}
	}
	index := make(map[string]int, len(events))
	out := make([]DomainEvent, 0, len(events))
	for _, ev := range events {
		if i, seen := index[ev.ID]; seen {
			out[i] = ev
			continue
		}
		index[ev.ID] = len(out)
		out = append(out, ev)
	}
	return out
}

// Filter returns the events for which keep reports true.
func Filter(events []DomainEvent, keep func(DomainEvent) bool) []DomainEvent {
	out := make([]DomainEvent, 0, len(events))
	for _, ev := range events {
		if keep(ev) {
			out = append(out, ev)
		}
	}
	return out
}

// Between returns events with from <= Timestamp < to.
func Between(events []DomainEvent, from, to time.Time) []DomainEvent {
	return Filter(events, func(ev DomainEvent) bool {
		return !ev.Timestamp.Before(from) && ev.Timestamp.Before(to)
	})
}

// OfKind returns events of the given kind.
func OfKind(events []DomainEvent, k Kind) []DomainEvent {
	return Filter(events, func(ev DomainEvent) bool { return ev.Kind == k })
}

// SumAmount adds up Amount over events.
func SumAmount(events []DomainEvent) uint64 {
	var total uint64
	for _, ev := range events {
		total += ev.Amount
	}
	return total
}
