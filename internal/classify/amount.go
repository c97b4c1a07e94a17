package classify

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/gyaneshwarpardhi/pointlens/internal/event"
)

// AmountSource is one amount extraction strategy, tried in order.
type AmountSource interface {
	Name() string
	Amount(raw *event.RawEvent) (uint64, bool)
}

// FieldAmount reads a named field of the structured event payload.
type FieldAmount struct {
	Field string
}

func (a FieldAmount) Name() string { return "field" }

func (a FieldAmount) Amount(raw *event.RawEvent) (uint64, bool) {
	if raw.Fields == nil {
		return 0, false
	}
	v, ok := raw.Fields[a.Field]
	if !ok {
		return 0, false
	}
	return toUint64(v)
}

// ArgumentAmount scans the positional call arguments for the first value
// that reads as an unsigned integer. Object ids ("0x…") are skipped.
type ArgumentAmount struct{}

func (ArgumentAmount) Name() string { return "argument" }

func (ArgumentAmount) Amount(raw *event.RawEvent) (uint64, bool) {
	if raw.Call == nil {
		return 0, false
	}
	for _, arg := range raw.Call.Arguments {
		// Sui pure inputs arrive as {"type":"pure","value":"100"}.
		if m, ok := arg.(map[string]any); ok {
			arg = m["value"]
		}
		if n, ok := toUint64(arg); ok {
			return n, true
		}
	}
	return 0, false
}

// toUint64 coerces a decoded JSON value to an unsigned integer.
func toUint64(v any) (uint64, bool) {
	switch n := v.(type) {
	case uint64:
		return n, true
	case uint:
		return uint64(n), true
	case uint32:
		return uint64(n), true
	case int:
		if n >= 0 {
			return uint64(n), true
		}
	case int64:
		if n >= 0 {
			return uint64(n), true
		}
	case int32:
		if n >= 0 {
			return uint64(n), true
		}
	case float64:
		if n >= 0 && n == math.Trunc(n) && n < math.MaxUint64 {
			return uint64(n), true
		}
	case json.Number:
		return parseUint(string(n))
	case string:
		return parseUint(n)
	}
	return 0, false
}

func parseUint(s string) (uint64, bool) {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(s, "0x") {
		return 0, false
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
