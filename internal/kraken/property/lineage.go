package property

import "github.com/alexisbeaulieu97/kraken/internal/kraken/supplier"

// LineageEntry pairs a visited supplier with the property that owns it, if
// any — most suppliers in a lineage chain are plain Map/Literal nodes with
// no owning property.
type LineageEntry struct {
	Supplier supplier.Supplier
	Property AnyProperty
}

// Lineage performs the DFS described in the spec: starting from start's own
// DerivedFrom() edges, visit every reachable supplier once, recording which
// ones are themselves properties (and therefore owned by some task).
// Cycles in the supplier DAG are broken by the visited set; they are not an
// error here (only the resulting task graph must be acyclic).
func Lineage(start supplier.Supplier) []LineageEntry {
	visited := make(map[supplier.Supplier]bool)
	var order []LineageEntry

	var visit func(s supplier.Supplier)
	visit = func(s supplier.Supplier) {
		if s == nil || visited[s] {
			return
		}
		visited[s] = true

		var owning AnyProperty
		if ap, ok := s.(AnyProperty); ok {
			owning = ap
		}
		order = append(order, LineageEntry{Supplier: s, Property: owning})

		for _, upstream := range s.DerivedFrom() {
			visit(upstream)
		}
	}

	if start == nil {
		return nil
	}
	for _, upstream := range start.DerivedFrom() {
		visit(upstream)
	}
	return order
}

// Lineage yields the (supplier, owning-property) pairs reachable from p's
// own DerivedFrom() edges.
func (p *Property[T]) Lineage() []LineageEntry {
	return Lineage(p)
}
