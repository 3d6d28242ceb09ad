// Package member defines the canonical identity of a membership item and the
// set operations used to compare desired and remote membership.
//
// Identity is an int64. Values arriving as strings, JSON numbers or floats
// are normalized before comparison so that "123", 123 and "123.0" are the
// same member; without that, every sync round re-adds and re-removes items
// whose representation differs between the two sides.
package member

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/big"
	"sort"
	"strconv"
	"strings"
)

// Member is the canonical identifier of an item that can belong to a resource.
type Member int64

func (m Member) String() string {
	return strconv.FormatInt(int64(m), 10)
}

// Malformed is a raw value that could not be coerced to a Member.
type Malformed struct {
	Value  string `json:"value" yaml:"value"`
	Reason string `json:"reason" yaml:"reason"`
}

// ErrNotInteger is returned for values that have no integral canonical form.
var ErrNotInteger = errors.New("not an integer member id")

// Parse normalizes v to a Member.
func Parse(v any) (Member, error) {
	switch x := v.(type) {
	case Member:
		return x, nil
	case int:
		return Member(x), nil
	case int32:
		return Member(x), nil
	case int64:
		return Member(x), nil
	case uint32:
		return Member(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("%d: %w", x, ErrNotInteger)
		}
		return Member(x), nil
	case float64:
		return fromFloat(x)
	case float32:
		return fromFloat(float64(x))
	case *big.Int:
		if x == nil || !x.IsInt64() {
			return 0, fmt.Errorf("%v: %w", x, ErrNotInteger)
		}
		return Member(x.Int64()), nil
	case json.Number:
		return ParseString(string(x))
	case string:
		return ParseString(x)
	case []byte:
		return ParseString(string(x))
	case nil:
		return 0, fmt.Errorf("null: %w", ErrNotInteger)
	default:
		return 0, fmt.Errorf("%T %v: %w", v, v, ErrNotInteger)
	}
}

// ParseString normalizes the textual forms "123", " 123 ", "123.0" and "1.23e2".
func ParseString(s string) (Member, error) {
	t := strings.TrimSpace(s)
	if t == "" {
		return 0, fmt.Errorf("empty value: %w", ErrNotInteger)
	}
	if n, err := strconv.ParseInt(t, 10, 64); err == nil {
		return Member(n), nil
	}
	if strings.ContainsAny(t, "/_xXbBoO") {
		return 0, fmt.Errorf("%q: %w", s, ErrNotInteger)
	}
	// Exact decimal parse so large ids with a trailing ".0" keep every digit.
	r, ok := new(big.Rat).SetString(t)
	if !ok || !r.IsInt() {
		return 0, fmt.Errorf("%q: %w", s, ErrNotInteger)
	}
	n := r.Num()
	if !n.IsInt64() {
		return 0, fmt.Errorf("%q out of range: %w", s, ErrNotInteger)
	}
	return Member(n.Int64()), nil
}

func fromFloat(f float64) (Member, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%v: %w", f, ErrNotInteger)
	}
	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("%v out of range: %w", f, ErrNotInteger)
	}
	return Member(int64(f)), nil
}

// ParseAll normalizes raw values into a Set. Values that cannot be coerced are
// returned separately so callers can surface them instead of dropping them.
func ParseAll(values []any) (Set, []Malformed) {
	set := NewSet()
	var bad []Malformed
	for _, v := range values {
		m, err := Parse(v)
		if err != nil {
			bad = append(bad, Malformed{Value: malformedValue(v), Reason: err.Error()})
			continue
		}
		set.Add(m)
	}
	return set, bad
}

// Sort orders members ascending in place and returns the slice.
func Sort(members []Member) []Member {
	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
	return members
}

// Int64s converts members to plain integers for wire payloads.
func Int64s(members []Member) []int64 {
	out := make([]int64, len(members))
	for i, m := range members {
		out[i] = int64(m)
	}
	return out
}

func malformedValue(v any) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprint(v)
}
