package record

import "sort"

// ResultSet groups the objects produced by one parse or resolve step by kind.
// Order within a kind follows insertion order.
type ResultSet struct {
	buckets map[Kind][]Object
}

// NewResultSet returns a result set holding objs.
func NewResultSet(objs ...Object) *ResultSet {
	rs := &ResultSet{buckets: make(map[Kind][]Object)}
	rs.Add(objs...)
	return rs
}

// Add appends objs to the buckets of their kinds. Nil entries, typed or
// not, are skipped.
func (rs *ResultSet) Add(objs ...Object) *ResultSet {
	if rs.buckets == nil {
		rs.buckets = make(map[Kind][]Object)
	}
	for _, obj := range objs {
		if IsNil(obj) {
			continue
		}
		rs.buckets[obj.Kind()] = append(rs.buckets[obj.Kind()], obj)
	}
	return rs
}

// Get returns the objects of kind; the result is empty, never nil, when the
// kind is absent.
func (rs *ResultSet) Get(kind Kind) []Object {
	if rs == nil {
		return []Object{}
	}
	bucket := rs.buckets[kind]
	out := make([]Object, len(bucket))
	copy(out, bucket)
	return out
}

// Placeholders returns the unresolved references in the set.
func (rs *ResultSet) Placeholders() []*Placeholder {
	objs := rs.Get(KindPlaceholder)
	out := make([]*Placeholder, 0, len(objs))
	for _, obj := range objs {
		if p, ok := obj.(*Placeholder); ok {
			out = append(out, p)
		}
	}
	return out
}

// Merge appends every bucket of other to rs and returns rs.
func (rs *ResultSet) Merge(other *ResultSet) *ResultSet {
	if other == nil {
		return rs
	}
	for _, kind := range other.Kinds() {
		rs.Add(other.buckets[kind]...)
	}
	return rs
}

// Remove drops the whole bucket for kind.
func (rs *ResultSet) Remove(kind Kind) {
	delete(rs.buckets, kind)
}

// Kinds lists the kinds present, sorted.
func (rs *ResultSet) Kinds() []Kind {
	if rs == nil {
		return nil
	}
	kinds := make([]Kind, 0, len(rs.buckets))
	for kind, bucket := range rs.buckets {
		if len(bucket) > 0 {
			kinds = append(kinds, kind)
		}
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// All flattens the set, kinds in sorted order.
func (rs *ResultSet) All() []Object {
	var out []Object
	for _, kind := range rs.Kinds() {
		out = append(out, rs.buckets[kind]...)
	}
	return out
}

// Len counts the objects across all kinds.
func (rs *ResultSet) Len() int {
	if rs == nil {
		return 0
	}
	total := 0
	for _, bucket := range rs.buckets {
		total += len(bucket)
	}
	return total
}
