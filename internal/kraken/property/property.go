// Package property implements Property<T>: a named, owner-bound supplier
// whose value can be set, unset, or piped from another supplier, and whose
// lineage is how the task graph discovers implicit dependencies between
// tasks (see the graph package).
package property

import (
	"fmt"
	"sync"

	"github.com/alexisbeaulieu97/kraken/internal/kraken/supplier"
	krakenerrors "github.com/alexisbeaulieu97/kraken/pkg/errors"
)

// Kind distinguishes a property's flavor.
type Kind int

const (
	// KindInput properties are configured by the task's caller.
	KindInput Kind = iota
	// KindOutput properties are populated by the owning task, typically
	// during Execute.
	KindOutput
)

func (k Kind) String() string {
	if k == KindOutput {
		return "output"
	}
	return "input"
}

// Owner identifies the task a property belongs to. It is a narrow
// interface (rather than a dependency on the task package) so that
// property has no import of task — task imports property instead.
type Owner interface {
	Path() string
}

type valueSource int

const (
	sourceUnset valueSource = iota
	sourceExplicit
	sourceBound
)

// Property is a named supplier bound to an owner task, with input/output
// flavor. It implements supplier.Supplier so it can itself appear as a
// lineage node: a property bound to another task's output property becomes
// a DFS edge the graph turns into an implicit strict dependency.
type Property[T any] struct {
	owner    Owner
	name     string
	kind     Kind
	optional bool

	mu        sync.Mutex
	source    valueSource
	value     T
	bound     supplier.Of[T]
	finalized bool
	locked    bool
}

// New constructs a Property bound to owner. optional controls whether Value
// tolerates an unset property instead of returning EmptyValueError.
func New[T any](owner Owner, name string, kind Kind, optional bool) *Property[T] {
	return &Property[T]{owner: owner, name: name, kind: kind, optional: optional}
}

// Owner returns the task this property belongs to.
func (p *Property[T]) Owner() Owner { return p.owner }

// Name returns the property's declared name.
func (p *Property[T]) Name() string { return p.name }

// Kind returns whether this is an input or output property.
func (p *Property[T]) Kind() Kind { return p.kind }

// Optional reports whether Value tolerates this property being unset.
func (p *Property[T]) Optional() bool { return p.optional }

// Set assigns an explicit value. It fails with FinalizedError if the
// property is a non-output property that has already been finalized, and
// with a plain error if it is an output property currently locked by its
// owning task's execution (invariant L2 — see SetAsOwner).
func (p *Property[T]) Set(value T) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkWritableLocked(); err != nil {
		return err
	}
	p.source = sourceExplicit
	p.value = value
	p.bound = supplier.Of[T]{}
	return nil
}

// SetFrom pipes the property's value from another supplier, e.g. another
// task's output property. The upstream supplier becomes a lineage edge via
// DerivedFrom.
func (p *Property[T]) SetFrom(s supplier.Of[T]) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkWritableLocked(); err != nil {
		return err
	}
	p.source = sourceBound
	p.bound = s
	var zero T
	p.value = zero
	return nil
}

// Unset clears the property back to having no value.
func (p *Property[T]) Unset() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.checkWritableLocked(); err != nil {
		return err
	}
	p.source = sourceUnset
	var zero T
	p.value = zero
	p.bound = supplier.Of[T]{}
	return nil
}

// SetAsOwner assigns an output property's value on behalf of owner. It is
// the only way to mutate an output property while it is Locked (i.e. while
// its task is executing), and it verifies owner is in fact this property's
// owner — invariant L2: "setting an output property after its task begins
// execution is allowed only by that task itself."
func (p *Property[T]) SetAsOwner(owner Owner, value T) error {
	if owner != p.owner {
		return fmt.Errorf("property %q does not belong to %q", p.name, ownerPath(owner))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.source = sourceExplicit
	p.value = value
	p.bound = supplier.Of[T]{}
	return nil
}

// Lock marks the property as owned by a currently-executing task, refusing
// further Set/SetFrom/Unset calls from anyone but SetAsOwner. Lock/Unlock
// are called by the task package around Execute, never by user code
// directly.
func (p *Property[T]) Lock() {
	p.mu.Lock()
	p.locked = true
	p.mu.Unlock()
}

// Unlock releases the lock taken by Lock.
func (p *Property[T]) Unlock() {
	p.mu.Lock()
	p.locked = false
	p.mu.Unlock()
}

// Finalize renders a non-output property read-only (invariant L1). Output
// properties are unaffected — they remain writable by their owning task
// through SetAsOwner for the task's entire lifetime.
func (p *Property[T]) Finalize() {
	p.mu.Lock()
	p.finalized = true
	p.mu.Unlock()
}

// Finalized reports whether Finalize has been called.
func (p *Property[T]) Finalized() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finalized
}

func (p *Property[T]) checkWritableLocked() error {
	if p.kind == KindOutput && p.locked {
		return fmt.Errorf("property %q of %q is owned by a running task", p.name, p.owner.Path())
	}
	if p.finalized && p.kind != KindOutput {
		return krakenerrors.NewFinalizedError(p.owner.Path(), p.name)
	}
	return nil
}

// Value returns the property's current value, resolving through a bound
// supplier if one is set. For a non-optional property with no value, it
// returns EmptyValueError (invariant: Property.Get on an unset, non-optional
// property fails).
func (p *Property[T]) Value() (T, error) {
	v, ok := p.rawValue()
	if ok {
		return v, nil
	}
	var zero T
	if p.optional {
		return zero, nil
	}
	return zero, krakenerrors.NewEmptyValueError(p.owner.Path(), p.name)
}

func (p *Property[T]) rawValue() (T, bool) {
	p.mu.Lock()
	source := p.source
	value := p.value
	bound := p.bound
	p.mu.Unlock()

	switch source {
	case sourceExplicit:
		return value, true
	case sourceBound:
		return bound.Value()
	default:
		var zero T
		return zero, false
	}
}

// Get implements supplier.Supplier so a Property can appear as a lineage
// node when another property binds to it via SetFrom.
func (p *Property[T]) Get() (any, bool) {
	v, ok := p.rawValue()
	if !ok {
		return nil, false
	}
	return v, true
}

// DerivedFrom implements supplier.Supplier: a bound property's single
// upstream is the supplier it is piped from.
func (p *Property[T]) DerivedFrom() []supplier.Supplier {
	p.mu.Lock()
	source := p.source
	bound := p.bound
	p.mu.Unlock()

	if source != sourceBound {
		return nil
	}
	raw := bound.Raw()
	if raw == nil {
		return nil
	}
	return []supplier.Supplier{raw}
}

// AnyProperty is the type-erased view of Property[T] used by lineage
// traversal and the task graph, neither of which can depend on a concrete T.
type AnyProperty interface {
	supplier.Supplier
	Owner() Owner
	Name() string
	Kind() Kind
}

var _ AnyProperty = (*Property[int])(nil)

func ownerPath(owner Owner) string {
	if owner == nil {
		return "<nil>"
	}
	return owner.Path()
}
