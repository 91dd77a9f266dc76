// Package supplier implements Kraken's lazy, lineage-preserving value
// layer. A Supplier defers production of a value until Get is called and
// exposes its immediate upstream suppliers through DerivedFrom so the task
// graph can discover implicit dependencies by walking the chain. Suppliers
// are immutable once constructed; Map always builds a new one rather than
// mutating an existing supplier.
package supplier

// Supplier is the type-erased producer every concrete kind implements.
// Get's boolean result distinguishes a present value from Empty — Empty is
// a distinct sentinel, never confused with a present zero value, because
// callers key off the bool rather than the value itself.
type Supplier interface {
	Get() (any, bool)
	DerivedFrom() []Supplier
}

// Of is the generically typed view callers actually program against. It
// wraps a type-erased Supplier and recovers T at the boundary.
type Of[T any] struct {
	raw Supplier
}

// Value resolves the supplier, returning (zero, false) if it is Empty or if
// the underlying value is not a T.
func (o Of[T]) Value() (T, bool) {
	var zero T
	if o.raw == nil {
		return zero, false
	}
	v, ok := o.raw.Get()
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	return typed, true
}

// Raw exposes the underlying type-erased Supplier, the form the graph layer
// walks for lineage discovery.
func (o Of[T]) Raw() Supplier {
	return o.raw
}

// DerivedFrom forwards to the underlying supplier's immediate upstream set.
func (o Of[T]) DerivedFrom() []Supplier {
	if o.raw == nil {
		return nil
	}
	return o.raw.DerivedFrom()
}

// FromRaw wraps an already-constructed Supplier (typically a Property) as a
// typed Of[T], asserting nothing about T until Value is called.
func FromRaw[T any](raw Supplier) Of[T] {
	return Of[T]{raw: raw}
}

// Literal returns a supplier that always produces value.
func Literal[T any](value T) Of[T] {
	return Of[T]{raw: &literalSupplier{value: value}}
}

// Void returns a supplier that is always Empty.
func Void[T any]() Of[T] {
	return Of[T]{raw: voidSupplier{}}
}

// Map returns a supplier that lazily applies f to upstream's value. It is
// Empty whenever upstream is Empty; f is never called on an absent value.
func Map[T, U any](upstream Of[T], f func(T) U) Of[U] {
	up := upstream.raw
	return Of[U]{raw: &mappedSupplier{
		upstream: up,
		resolve: func() (any, bool) {
			v, ok := upstream.Value()
			if !ok {
				return nil, false
			}
			return f(v), true
		},
	}}
}

type literalSupplier struct {
	value any
}

func (s *literalSupplier) Get() (any, bool)        { return s.value, true }
func (s *literalSupplier) DerivedFrom() []Supplier { return nil }

type voidSupplier struct{}

func (voidSupplier) Get() (any, bool)        { return nil, false }
func (voidSupplier) DerivedFrom() []Supplier { return nil }

type mappedSupplier struct {
	upstream Supplier
	resolve  func() (any, bool)
}

func (s *mappedSupplier) Get() (any, bool) { return s.resolve() }
func (s *mappedSupplier) DerivedFrom() []Supplier {
	if s.upstream == nil {
		return nil
	}
	return []Supplier{s.upstream}
}
