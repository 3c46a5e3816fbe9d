// Package key implements the engine's total-order key encoding and the
// KeyRange interval algebra consumed by the index subsystem and the
// planner's range-scan rewrites.
package key

import (
	"strings"

	"github.com/ghchinoy/lovefield/row"
)

// Key is a totally-ordered, comparable encoding of one or more column
// values. Composite keys compare lexicographically component by component.
type Key struct {
	parts []row.Value
}

// Of builds a Key from one or more column values, in declared column order.
func Of(values ...row.Value) Key {
	return Key{parts: append([]row.Value(nil), values...)}
}

// Parts returns the key's component values.
func (k Key) Parts() []row.Value { return k.parts }

// Compare returns -1, 0, or 1 comparing k to other lexicographically.
func (k Key) Compare(other Key) int {
	n := len(k.parts)
	if len(other.parts) < n {
		n = len(other.parts)
	}
	for i := 0; i < n; i++ {
		if c := k.parts[i].Compare(other.parts[i]); c != 0 {
			return c
		}
	}
	switch {
	case len(k.parts) < len(other.parts):
		return -1
	case len(k.parts) > len(other.parts):
		return 1
	default:
		return 0
	}
}

// Equal reports whether k and other encode the same value sequence.
func (k Key) Equal(other Key) bool {
	return k.Compare(other) == 0
}

// String renders a stable, human-debuggable form; never used for ordering.
func (k Key) String() string {
	parts := make([]string, len(k.parts))
	for i, v := range k.parts {
		parts[i] = v.String()
	}
	return strings.Join(parts, "\x00")
}

// Range is a half-open/closed interval over keys, with sentinels for
// unbounded-above and unbounded-below.
type Range struct {
	lower        Key
	hasLower     bool
	lowerExcl    bool
	upper        Key
	hasUpper     bool
	upperExcl    bool
}

// All returns a range unbounded on both ends.
func All() Range {
	return Range{}
}

// Only returns the degenerate range [k, k].
func Only(k Key) Range {
	return Range{lower: k, hasLower: true, upper: k, hasUpper: true}
}

// LowerBound returns a range with a lower bound only; excl selects an open
// (exclusive) bound.
func LowerBound(k Key, excl bool) Range {
	return Range{lower: k, hasLower: true, lowerExcl: excl}
}

// UpperBound returns a range with an upper bound only; excl selects an open
// (exclusive) bound.
func UpperBound(k Key, excl bool) Range {
	return Range{upper: k, hasUpper: true, upperExcl: excl}
}

// Between builds a range with both bounds explicit.
func Between(lower Key, lowerExcl bool, upper Key, upperExcl bool) Range {
	return Range{
		lower: lower, hasLower: true, lowerExcl: lowerExcl,
		upper: upper, hasUpper: true, upperExcl: upperExcl,
	}
}

func (r Range) IsAll() bool { return !r.hasLower && !r.hasUpper }

func (r Range) HasLower() bool   { return r.hasLower }
func (r Range) Lower() Key       { return r.lower }
func (r Range) LowerExcl() bool  { return r.lowerExcl }
func (r Range) HasUpper() bool   { return r.hasUpper }
func (r Range) Upper() Key       { return r.upper }
func (r Range) UpperExcl() bool  { return r.upperExcl }

// Matches reports whether k falls within the range under its open/closed
// semantics.
func (r Range) Matches(k Key) bool {
	if r.hasLower {
		c := k.Compare(r.lower)
		if c < 0 || (c == 0 && r.lowerExcl) {
			return false
		}
	}
	if r.hasUpper {
		c := k.Compare(r.upper)
		if c > 0 || (c == 0 && r.upperExcl) {
			return false
		}
	}
	return true
}

// Intersect composes two ranges by intersection, tightening whichever
// bound is more restrictive on each side.
func Intersect(a, b Range) Range {
	out := Range{}

	switch {
	case !a.hasLower:
		out.hasLower, out.lower, out.lowerExcl = b.hasLower, b.lower, b.lowerExcl
	case !b.hasLower:
		out.hasLower, out.lower, out.lowerExcl = a.hasLower, a.lower, a.lowerExcl
	default:
		c := a.lower.Compare(b.lower)
		switch {
		case c > 0:
			out.hasLower, out.lower, out.lowerExcl = true, a.lower, a.lowerExcl
		case c < 0:
			out.hasLower, out.lower, out.lowerExcl = true, b.lower, b.lowerExcl
		default:
			out.hasLower, out.lower, out.lowerExcl = true, a.lower, a.lowerExcl || b.lowerExcl
		}
	}

	switch {
	case !a.hasUpper:
		out.hasUpper, out.upper, out.upperExcl = b.hasUpper, b.upper, b.upperExcl
	case !b.hasUpper:
		out.hasUpper, out.upper, out.upperExcl = a.hasUpper, a.upper, a.upperExcl
	default:
		c := a.upper.Compare(b.upper)
		switch {
		case c < 0:
			out.hasUpper, out.upper, out.upperExcl = true, a.upper, a.upperExcl
		case c > 0:
			out.hasUpper, out.upper, out.upperExcl = true, b.upper, b.upperExcl
		default:
			out.hasUpper, out.upper, out.upperExcl = true, a.upper, a.upperExcl || b.upperExcl
		}
	}

	return out
}

// Encode builds a Key from a row's values for the given, ordered column
// names. It is stable: the same (columns, row) pair always yields an
// equal Key, and the encoding preserves the declared types' total order.
func Encode(columns []string, payload row.Payload) Key {
	values := make([]row.Value, len(columns))
	for i, c := range columns {
		values[i] = payload[c]
	}
	return Of(values...)
}
