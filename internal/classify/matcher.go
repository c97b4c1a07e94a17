package classify

import (
	"encoding/json"
	"strings"

	"github.com/gyaneshwarpardhi/pointlens/internal/event"
)

// Matcher is one classification strategy. Matchers are tried in order and
// the first one reporting ok wins.
type Matcher interface {
	Name() string
	Match(raw *event.RawEvent) (kind event.Kind, ok bool)
}

// opSet maps operation names to the kind they stand for.
type opSet struct {
	names []string // earned first, then redeemed
	kinds map[string]event.Kind
}

func newOpSet(earned, redeemed []string) opSet {
	s := opSet{kinds: make(map[string]event.Kind, len(earned)+len(redeemed))}
	add := func(names []string, k event.Kind) {
		for _, n := range names {
			if _, dup := s.kinds[n]; dup || n == "" {
				continue
			}
			s.kinds[n] = k
			s.names = append(s.names, n)
		}
	}
	add(earned, event.KindEarned)
	add(redeemed, event.KindRedeemed)
	return s
}

// SignatureMatcher reads the structured call signature: the event type's
// last "::" segment, then the emitting function name.
type SignatureMatcher struct {
	ops opSet
}

func NewSignatureMatcher(earned, redeemed []string) *SignatureMatcher {
	return &SignatureMatcher{ops: newOpSet(earned, redeemed)}
}

func (m *SignatureMatcher) Name() string { return "signature" }

func (m *SignatureMatcher) Match(raw *event.RawEvent) (event.Kind, bool) {
	if raw.Type != "" {
		name := raw.Type
		if i := strings.LastIndex(name, "::"); i >= 0 {
			name = name[i+2:]
		}
		if k, ok := m.ops.kinds[name]; ok {
			return k, true
		}
	}
	if raw.Call != nil {
		if k, ok := m.ops.kinds[raw.Call.Function]; ok {
			return k, true
		}
	}
	return "", false
}

// SubstringMatcher searches the JSON form of the whole record for a known
// operation name. It covers transports that deliver the operation somewhere
// other than the structured signature fields.
type SubstringMatcher struct {
	ops opSet
}

func NewSubstringMatcher(earned, redeemed []string) *SubstringMatcher {
	return &SubstringMatcher{ops: newOpSet(earned, redeemed)}
}

func (m *SubstringMatcher) Name() string { return "substring" }

func (m *SubstringMatcher) Match(raw *event.RawEvent) (event.Kind, bool) {
	data, err := json.Marshal(raw)
	if err != nil {
		return "", false
	}
	text := string(data)
	for _, name := range m.ops.names {
		if strings.Contains(text, name) {
			return m.ops.kinds[name], true
		}
	}
	return "", false
}
