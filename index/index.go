// Package index implements the engine's in-memory index structures: an
// ordered multi-map for range-capable secondary and primary indices, and a
// hash map for O(1) point lookups. Every shape exposes the same capability
// contract so the planner can treat them uniformly.
package index

import (
	"github.com/ghchinoy/lovefield/key"
	"github.com/ghchinoy/lovefield/lferrors"
	"github.com/ghchinoy/lovefield/row"
	"github.com/ghchinoy/lovefield/util"
)

// Index is the capability contract every index implementation honors,
// regardless of physical shape.
type Index interface {
	Name() string
	// Add inserts a new association. It fails with CONSTRAINT if adding
	// would violate a uniqueness guarantee.
	Add(k key.Key, v row.Id) error
	// Set replaces any existing association for k with v.
	Set(k key.Key, v row.Id)
	// Get returns the row ids mapped to k, in insertion order for
	// multi-valued indices. Single-row indices return 0 or 1 ids.
	Get(k key.Key) []row.Id
	// GetRange returns row ids for keys within r, in ascending key order.
	// A nil range is treated as key.All().
	GetRange(r *key.Range) []row.Id
	// Remove deletes one association (k, v) if v is non-nil, or every
	// association for k otherwise.
	Remove(k key.Key, v *row.Id)
	// Cost estimates the cardinality of GetRange(r) cheaply.
	Cost(r *key.Range) int
	ContainsKey(k key.Key) bool
	// IsUnique reports whether the index enforces at most one row id per
	// key. Used by the planner's tie-break rule (primary > unique >
	// non-unique) and by commit-time constraint validation.
	IsUnique() bool
}

func rangeOrAll(r *key.Range) key.Range {
	if r == nil {
		return key.All()
	}
	return *r
}

// entry is one (key, values) slot of an ordered index, values kept in
// insertion order so that equal keys tie-break by arrival order.
type entry struct {
	k    key.Key
	vals []row.Id
}

// Ordered is a comparator-driven ordered multi-map over a kept-sorted
// slice. Lookups run in O(log n) via binary search; inserting or removing
// a key shifts the slice tail, so those mutations are O(n). GetRange
// walks a contiguous sub-slice, which is naturally in ascending key order.
type Ordered struct {
	name     string
	unique   bool
	entries  []entry
}

// NewOrdered constructs an empty ordered index. unique marks a primary or
// UNIQUE secondary index, which rejects Add calls that would map a second
// row id to an existing key.
func NewOrdered(name string, unique bool) *Ordered {
	return &Ordered{name: name, unique: unique}
}

func (o *Ordered) Name() string   { return o.name }
func (o *Ordered) IsUnique() bool { return o.unique }

// search returns the position of k if present (found=true), else the
// insertion point that keeps entries sorted.
func (o *Ordered) search(k key.Key) (pos int, found bool) {
	lo, hi := 0, len(o.entries)
	for lo < hi {
		mid := (lo + hi) / 2
		c := o.entries[mid].k.Compare(k)
		switch {
		case c == 0:
			return mid, true
		case c < 0:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return lo, false
}

func (o *Ordered) Add(k key.Key, v row.Id) error {
	pos, found := o.search(k)
	if found {
		if o.unique {
			return lferrors.New(lferrors.CONSTRAINT, "unique index %s: key %s already exists", o.name, k)
		}
		o.entries[pos].vals = append(o.entries[pos].vals, v)
		return nil
	}
	o.entries = append(o.entries, entry{})
	copy(o.entries[pos+1:], o.entries[pos:])
	o.entries[pos] = entry{k: k, vals: []row.Id{v}}
	return nil
}

func (o *Ordered) Set(k key.Key, v row.Id) {
	pos, found := o.search(k)
	if found {
		o.entries[pos].vals = []row.Id{v}
		return
	}
	o.entries = append(o.entries, entry{})
	copy(o.entries[pos+1:], o.entries[pos:])
	o.entries[pos] = entry{k: k, vals: []row.Id{v}}
}

func (o *Ordered) Get(k key.Key) []row.Id {
	pos, found := o.search(k)
	if !found {
		return nil
	}
	return append([]row.Id(nil), o.entries[pos].vals...)
}

func (o *Ordered) ContainsKey(k key.Key) bool {
	_, found := o.search(k)
	return found
}

func (o *Ordered) GetRange(r *key.Range) []row.Id {
	rng := rangeOrAll(r)
	start := 0
	if rng.HasLower() {
		start, _ = o.search(rng.Lower())
		// search returns either an exact match position or the
		// insertion point; either way it's the first candidate.
	}
	var out []row.Id
	for i := start; i < len(o.entries); i++ {
		if !rng.Matches(o.entries[i].k) {
			if rng.HasUpper() && o.entries[i].k.Compare(rng.Upper()) > 0 {
				break
			}
			continue
		}
		out = append(out, o.entries[i].vals...)
	}
	return out
}

func (o *Ordered) Remove(k key.Key, v *row.Id) {
	pos, found := o.search(k)
	if !found {
		return
	}
	if v == nil {
		o.entries = append(o.entries[:pos], o.entries[pos+1:]...)
		return
	}
	vals := o.entries[pos].vals
	for i, id := range vals {
		if id == *v {
			vals = append(vals[:i], vals[i+1:]...)
			break
		}
	}
	if len(vals) == 0 {
		o.entries = append(o.entries[:pos], o.entries[pos+1:]...)
		return
	}
	o.entries[pos].vals = vals
}

// Cost for an ordered index is the number of matching rows, which is exact
// for this in-memory shape rather than a heuristic sample-based estimate.
func (o *Ordered) Cost(r *key.Range) int {
	return len(o.GetRange(r))
}

// Hash is a constant-time single-key map, used for the per-table row-id
// index and for any secondary index not declared Ordered.
type Hash struct {
	name   string
	unique bool
	m      map[string]key.Key
	vals   map[string][]row.Id
}

// NewHash constructs an empty hash index.
func NewHash(name string, unique bool) *Hash {
	return &Hash{name: name, unique: unique, m: map[string]key.Key{}, vals: map[string][]row.Id{}}
}

func (h *Hash) Name() string   { return h.name }
func (h *Hash) IsUnique() bool { return h.unique }

func (h *Hash) Add(k key.Key, v row.Id) error {
	sk := k.String()
	if _, ok := h.m[sk]; ok {
		if h.unique {
			return lferrors.New(lferrors.CONSTRAINT, "unique index %s: key %s already exists", h.name, k)
		}
		h.vals[sk] = append(h.vals[sk], v)
		return nil
	}
	h.m[sk] = k
	h.vals[sk] = []row.Id{v}
	return nil
}

func (h *Hash) Set(k key.Key, v row.Id) {
	sk := k.String()
	h.m[sk] = k
	h.vals[sk] = []row.Id{v}
}

func (h *Hash) Get(k key.Key) []row.Id {
	return append([]row.Id(nil), h.vals[k.String()]...)
}

func (h *Hash) ContainsKey(k key.Key) bool {
	_, ok := h.m[k.String()]
	return ok
}

// GetRange on a hash index scans every key. For All() the ids come out
// sorted by each key's String form; for any other range, Only(k)
// included, they come out in map iteration order, not key order.
func (h *Hash) GetRange(r *key.Range) []row.Id {
	rng := rangeOrAll(r)
	if rng.IsAll() {
		var out []row.Id
		for sk := range util.CanonicalMapIter(h.m) {
			out = append(out, h.vals[sk]...)
		}
		return out
	}
	var out []row.Id
	for sk, k := range h.m {
		if rng.Matches(k) {
			out = append(out, h.vals[sk]...)
		}
	}
	return out
}

func (h *Hash) Remove(k key.Key, v *row.Id) {
	sk := k.String()
	if v == nil {
		delete(h.m, sk)
		delete(h.vals, sk)
		return
	}
	vals := h.vals[sk]
	for i, id := range vals {
		if id == *v {
			vals = append(vals[:i], vals[i+1:]...)
			break
		}
	}
	if len(vals) == 0 {
		delete(h.m, sk)
		delete(h.vals, sk)
		return
	}
	h.vals[sk] = vals
}

func (h *Hash) Cost(r *key.Range) int {
	rng := rangeOrAll(r)
	if rng.IsAll() {
		n := 0
		for _, v := range h.vals {
			n += len(v)
		}
		return n
	}
	return len(h.GetRange(r))
}

// RowIdIndex is a hash index specialized to map a single row id key to
// itself. Package catalog keeps one per table in step with the table's
// live rows; the planner reads its Cost as the table's row count.
type RowIdIndex struct {
	*Hash
}

func NewRowIdIndex(name string) *RowIdIndex {
	return &RowIdIndex{Hash: NewHash(name, true)}
}
