// Package classify turns raw ledger records into typed domain events.
//
// Classification and amount extraction are both ordered strategy lists. The
// defaults read structured fields first and fall back to looser heuristics,
// because the upstream transport does not always deliver structured payloads.
// When no amount can be read, a per-kind constant is applied and the event is
// marked AmountEstimated; those constants are approximations carried over
// from UI defaults and are not confirmed by the ledger's event schema.
package classify

import (
	"github.com/gyaneshwarpardhi/pointlens/internal/config"
	"github.com/gyaneshwarpardhi/pointlens/internal/event"
	"github.com/gyaneshwarpardhi/pointlens/internal/metrics"
)

// Classifier maps RawEvents to DomainEvents. It is immutable and safe for
// concurrent use.
type Classifier struct {
	matchers           []Matcher
	extra              []Matcher
	amounts            []AmountSource
	fallback           map[event.Kind]uint64
	actorFields        []string
	counterpartyFields []string
	rewardFields       []string
}

// Option customises a Classifier.
type Option func(*Classifier)

// WithMatchers adds matchers that run after the signature matcher and
// before the substring fallback.
func WithMatchers(m ...Matcher) Option {
	return func(c *Classifier) { c.extra = append(c.extra, m...) }
}

// WithAmountSources appends amount strategies after the built-in ones.
func WithAmountSources(a ...AmountSource) Option {
	return func(c *Classifier) { c.amounts = append(c.amounts, a...) }
}

// New builds a Classifier from conf.
func New(conf config.ClassifierConf, opts ...Option) *Classifier {
	c := &Classifier{
		amounts: []AmountSource{
			FieldAmount{Field: conf.AmountField},
			ArgumentAmount{},
		},
		fallback: map[event.Kind]uint64{
			event.KindEarned:   conf.FallbackAmounts.Earned,
			event.KindRedeemed: conf.FallbackAmounts.Redeemed,
		},
		actorFields:        conf.ActorFields,
		counterpartyFields: conf.CounterpartyFields,
		rewardFields:       conf.RewardFields,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.matchers = append([]Matcher{NewSignatureMatcher(conf.EarnedOps, conf.RedeemedOps)}, c.extra...)
	c.matchers = append(c.matchers, NewSubstringMatcher(conf.EarnedOps, conf.RedeemedOps))
	return c
}

// Classify maps one raw record. It never fails: unrecognised or malformed
// records come back as KindOther with amount 0.
func (c *Classifier) Classify(raw *event.RawEvent) event.DomainEvent {
	kind, matcher := event.KindOther, "none"
	for _, m := range c.matchers {
		if k, ok := m.Match(raw); ok {
			kind, matcher = k, m.Name()
			break
		}
	}
	metrics.EventsClassified.WithLabelValues(string(kind), matcher).Inc()

	ev := event.DomainEvent{
		ID:           raw.ID,
		Kind:         kind,
		Actor:        firstString(raw.Fields, c.actorFields),
		Counterparty: firstString(raw.Fields, c.counterpartyFields),
		RewardRef:    firstString(raw.Fields, c.rewardFields),
		Timestamp:    raw.Timestamp,
	}
	if ev.Actor == "" {
		ev.Actor = raw.Sender
	}
	if kind == event.KindOther {
		return ev
	}

	for _, a := range c.amounts {
		if n, ok := a.Amount(raw); ok {
			ev.Amount = n
			return ev
		}
	}
	ev.Amount = c.fallback[kind]
	ev.AmountEstimated = true
	metrics.AmountFallbacks.WithLabelValues(string(kind)).Inc()
	return ev
}

// ClassifyAll classifies a batch in order.
func (c *Classifier) ClassifyAll(raws []event.RawEvent) []event.DomainEvent {
	out := make([]event.DomainEvent, len(raws))
	for i := range raws {
		out[i] = c.Classify(&raws[i])
	}
	return out
}

func firstString(fields map[string]any, keys []string) string {
	for _, k := range keys {
		if s, ok := fields[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
