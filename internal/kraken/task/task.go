// Package task implements Task and its special subtypes (GroupTask,
// VoidTask, BackgroundTask): named, project-scoped units of work with a
// property schema and a relationship list that the graph package resolves
// into edges.
package task

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/alexisbeaulieu97/kraken/internal/kraken/property"
)

// Status is the terminal/non-terminal lifecycle state of a task's most
// recent (or in-flight) execution. The zero value is Pending, matching the
// spec's "PENDING is the implicit status when no entry exists."
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusStarted // background task has begun and not yet torn down
	StatusSucceeded
	StatusFailed
	StatusSkipped
	StatusUpToDate
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusRunning:
		return "RUNNING"
	case StatusStarted:
		return "STARTED"
	case StatusSucceeded:
		return "SUCCEEDED"
	case StatusFailed:
		return "FAILED"
	case StatusSkipped:
		return "SKIPPED"
	case StatusUpToDate:
		return "UP_TO_DATE"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether s is one of the four statuses the spec lists as
// ending a task's life cycle. StatusStarted is deliberately excluded: a
// background task sitting at STARTED can still transition to any of these
// four (see the transition table in the graph package).
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusSkipped, StatusUpToDate:
		return true
	default:
		return false
	}
}

// Settled reports whether s needs no further action from the scheduler:
// either one of the four Terminal statuses, or STARTED — a background task
// that has begun does not block graph completion; it is only torn down
// once the graph is complete.
func (s Status) Settled() bool {
	return s.Terminal() || s == StatusStarted
}

// Result carries an execution outcome and an optional human-readable
// message (used for captured-exception detail on Failed).
type Result struct {
	Status  Status
	Message string
}

// Relationship is a stored (unresolved or resolved) dependency declaration,
// attached to the task it was added to (the "self" side). By default
// (Inverse == false) Other precedes self: the graph package turns that into
// an edge Other → self. Inverse == true reverses it: self → Other. Selectors
// are resolved lazily, at graph-build time, relative to the owning task's
// project — Other is nil until resolution happens. Implicit marks the
// relationship as lineage-derived (discovered by walking property Lineage())
// rather than user-declared via AddRelationship; the graph package carries
// this through to EdgeInfo.Implicit for Reduce's keepExplicit handling.
type Relationship struct {
	Selector string
	Other    Task
	Strict   bool
	Inverse  bool
	Implicit bool
}

// Project is the narrow view of project.Project that task needs, avoiding
// an import cycle (project imports task, not the reverse).
type Project interface {
	Path() string
}

// Task is the behavior every concrete task kind implements. Ordinary tasks,
// groups, void tasks, and background tasks all satisfy it.
type Task interface {
	property.Owner

	Name() string
	Project() Project
	Default() bool
	SetDefault(bool)

	AddRelationship(rel Relationship)
	Relationships() []Relationship
	GetRelationships() []Relationship

	Properties() []property.AnyProperty
	RegisterProperty(p property.AnyProperty)

	Finalize()
	Finalized() bool

	IsUpToDate() (bool, error)
	IsSkippable() (bool, error)

	Execute(ctx context.Context) Result
}

// Base implements the common bookkeeping (name, project, properties,
// relationships, default-ness, finalize) shared by every task kind. Concrete
// kinds embed Base and override Execute (and IsUpToDate/IsSkippable where
// the spec calls for fixed answers).
type Base struct {
	name    string
	project Project
	dflt    bool

	mu            sync.Mutex
	properties    []property.AnyProperty
	relationships []Relationship
	finalized     bool
}

// NewBase constructs the shared task state. Concrete constructors
// (task.New, task.NewGroup, ...) call this and wrap the result.
func NewBase(proj Project, name string) *Base {
	return &Base{project: proj, name: name}
}

func (b *Base) Name() string     { return b.name }
func (b *Base) Project() Project { return b.project }
func (b *Base) Default() bool    { return b.dflt }
func (b *Base) SetDefault(v bool) {
	b.mu.Lock()
	b.dflt = v
	b.mu.Unlock()
}

// Path renders the task's address, satisfying property.Owner so a task can
// own properties directly.
func (b *Base) Path() string {
	if b.project == nil {
		return ":" + b.name
	}
	projectPath := b.project.Path()
	if projectPath == ":" {
		return ":" + b.name
	}
	return projectPath + ":" + b.name
}

// AddRelationship stores rel verbatim; selector resolution happens later,
// at graph-build time, against the owning task's project.
func (b *Base) AddRelationship(rel Relationship) {
	b.mu.Lock()
	b.relationships = append(b.relationships, rel)
	b.mu.Unlock()
}

// Relationships returns the explicit relationships added via
// AddRelationship, in insertion order.
func (b *Base) Relationships() []Relationship {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Relationship, len(b.relationships))
	copy(out, b.relationships)
	return out
}

// GetRelationships returns the union of lineage-derived implicit edges
// (discovered by walking every property's Lineage()) and the explicit
// relationships added via AddRelationship. Selector-based relationships are
// returned with Other still nil — the graph package resolves them.
func (b *Base) GetRelationships() []Relationship {
	b.mu.Lock()
	props := make([]property.AnyProperty, len(b.properties))
	copy(props, b.properties)
	explicit := make([]Relationship, len(b.relationships))
	copy(explicit, b.relationships)
	b.mu.Unlock()

	var out []Relationship
	seen := make(map[Task]bool)
	for _, p := range props {
		for _, entry := range property.Lineage(p) {
			if entry.Property == nil {
				continue
			}
			owner, ok := entry.Property.Owner().(Task)
			if !ok {
				continue
			}
			if owner.Path() == b.Path() {
				continue
			}
			if seen[owner] {
				continue
			}
			seen[owner] = true
			out = append(out, Relationship{Other: owner, Strict: true, Inverse: false, Implicit: true})
		}
	}
	out = append(out, explicit...)
	return out
}

// Properties returns every property registered via RegisterProperty, in
// registration order.
func (b *Base) Properties() []property.AnyProperty {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]property.AnyProperty, len(b.properties))
	copy(out, b.properties)
	return out
}

// RegisterProperty adds p to the task's property schema. Task constructors
// call this once per declared property, immediately after constructing it
// with the task as owner.
func (b *Base) RegisterProperty(p property.AnyProperty) {
	b.mu.Lock()
	b.properties = append(b.properties, p)
	b.mu.Unlock()
}

// Finalize finalizes every non-output property. It is idempotent — a second
// call is a no-op — and is called exactly once by Context.finalize.
func (b *Base) Finalize() {
	b.mu.Lock()
	if b.finalized {
		b.mu.Unlock()
		return
	}
	b.finalized = true
	props := make([]property.AnyProperty, len(b.properties))
	copy(props, b.properties)
	b.mu.Unlock()

	for _, p := range props {
		if fp, ok := p.(interface{ Finalize() }); ok {
			fp.Finalize()
		}
	}
}

func (b *Base) Finalized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.finalized
}

// lockable narrows AnyProperty down to the Lock/Unlock surface Execute needs
// without depending on a concrete Property[T].
type lockable interface {
	Lock()
	Unlock()
}

// lockOutputs locks every output property for the duration of fn, enforcing
// invariant L2 (only the owning task may mutate an output property during
// its own execution) by construction: fn runs while every output property
// rejects plain Set/SetFrom/Unset calls from anyone but SetAsOwner.
func lockOutputs(props []property.AnyProperty, fn func()) {
	var locked []lockable
	for _, p := range props {
		if p.Kind() != property.KindOutput {
			continue
		}
		if l, ok := p.(lockable); ok {
			l.Lock()
			locked = append(locked, l)
		}
	}
	defer func() {
		for _, l := range locked {
			l.Unlock()
		}
	}()
	fn()
}

// Ordinary is a plain, caller-defined task: Execute is supplied by whoever
// constructs it. The domain stack (cmd/plugin layer) this repo's ambient
// scope excludes is what would normally provide that function; tests and
// krakentest use this directly with an inline function.
type Ordinary struct {
	*Base
	run func(ctx context.Context, t *Ordinary) Result
}

// New constructs an ordinary task named name under proj, whose Execute
// delegates to run.
func New(proj Project, name string, run func(ctx context.Context, t *Ordinary) Result) *Ordinary {
	return &Ordinary{Base: NewBase(proj, name), run: run}
}

func (t *Ordinary) IsUpToDate() (bool, error)  { return false, nil }
func (t *Ordinary) IsSkippable() (bool, error) { return false, nil }

func (t *Ordinary) Execute(ctx context.Context) Result {
	if !t.Finalized() {
		panic(fmt.Sprintf("task %q executed before finalize", t.Path()))
	}
	if t.run == nil {
		return Result{Status: StatusSucceeded}
	}
	var res Result
	lockOutputs(t.Properties(), func() {
		res = t.run(ctx, t)
	})
	return res
}

// Group owns a set of member tasks and imposes strict "member → group"
// edges: every member must succeed, be skipped, or be up to date before the
// group itself is considered done. Execute always returns UP_TO_DATE and
// IsUpToDate is always true, per spec.
type Group struct {
	*Base
	description string

	mu      sync.Mutex
	members []Task
}

// NewGroup constructs an empty group task named name under proj.
func NewGroup(proj Project, name string) *Group {
	return &Group{Base: NewBase(proj, name)}
}

func (g *Group) Description() string { return g.description }
func (g *Group) SetDescription(d string) {
	g.mu.Lock()
	g.description = d
	g.mu.Unlock()
}

// AddMember adds member to the group, recording the mandatory strict
// "member → group" relationship: Inverse is false because the default
// Relationship direction already reads "Other precedes self", i.e.
// member precedes the group.
func (g *Group) AddMember(member Task) {
	g.mu.Lock()
	g.members = append(g.members, member)
	g.mu.Unlock()
	g.AddRelationship(Relationship{Other: member, Strict: true, Inverse: false})
}

// Members returns the group's members in the order they were added.
func (g *Group) Members() []Task {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Task, len(g.members))
	copy(out, g.members)
	return out
}

func (g *Group) IsUpToDate() (bool, error)  { return true, nil }
func (g *Group) IsSkippable() (bool, error) { return false, nil }

func (g *Group) Execute(context.Context) Result {
	return Result{Status: StatusUpToDate}
}

// Void is a task with no work: is_skippable and is_up_to_date are always
// true, and execute always returns SKIPPED.
type Void struct {
	*Base
}

// NewVoid constructs a void task named name under proj.
func NewVoid(proj Project, name string) *Void {
	return &Void{Base: NewBase(proj, name)}
}

func (v *Void) IsUpToDate() (bool, error)  { return true, nil }
func (v *Void) IsSkippable() (bool, error) { return true, nil }

func (v *Void) Execute(context.Context) Result {
	return Result{Status: StatusSkipped}
}

// Background starts work and returns STARTED without blocking; the
// executor must later call Teardown before the overall run completes.
type Background struct {
	*Base
	start    func(ctx context.Context, t *Background) error
	teardown func(ctx context.Context, t *Background) error
}

// NewBackground constructs a background task named name under proj. start
// is invoked by Execute; teardown is invoked by the executor once the graph
// is complete, in reverse start order relative to other background tasks.
func NewBackground(proj Project, name string, start, teardown func(ctx context.Context, t *Background) error) *Background {
	return &Background{Base: NewBase(proj, name), start: start, teardown: teardown}
}

func (b *Background) IsUpToDate() (bool, error)  { return false, nil }
func (b *Background) IsSkippable() (bool, error) { return false, nil }

func (b *Background) Execute(ctx context.Context) Result {
	if !b.Finalized() {
		panic(fmt.Sprintf("task %q executed before finalize", b.Path()))
	}
	var startErr error
	lockOutputs(b.Properties(), func() {
		if b.start != nil {
			startErr = b.start(ctx, b)
		}
	})
	if startErr != nil {
		return Result{Status: StatusFailed, Message: startErr.Error()}
	}
	return Result{Status: StatusStarted}
}

// Teardown closes the background task's work, if any was started.
func (b *Background) Teardown(ctx context.Context) error {
	if b.teardown == nil {
		return nil
	}
	return b.teardown(ctx, b)
}

// Set is an ordered, deduplicated collection of tasks keyed by path — the
// supplemented collection type spec.md leaves implicit wherever it talks
// about "a set of tasks" (explicit target sets, graph node sets, BuildError's
// failed set).
type Set struct {
	order []Task
	index map[string]int
}

// NewSet builds a Set from an initial list of tasks, deduplicating by path
// and keeping the first occurrence's position.
func NewSet(tasks ...Task) *Set {
	s := &Set{index: make(map[string]int)}
	for _, t := range tasks {
		s.Add(t)
	}
	return s
}

// Add appends t if no task with the same path is already present.
func (s *Set) Add(t Task) {
	if t == nil {
		return
	}
	if s.index == nil {
		s.index = make(map[string]int)
	}
	path := t.Path()
	if _, ok := s.index[path]; ok {
		return
	}
	s.index[path] = len(s.order)
	s.order = append(s.order, t)
}

// Contains reports whether a task with path equal to t.Path() is present.
func (s *Set) Contains(t Task) bool {
	if t == nil || s.index == nil {
		return false
	}
	_, ok := s.index[t.Path()]
	return ok
}

// Tasks returns the set's members in insertion order.
func (s *Set) Tasks() []Task {
	out := make([]Task, len(s.order))
	copy(out, s.order)
	return out
}

// Len returns the number of members.
func (s *Set) Len() int { return len(s.order) }

// Paths returns the members' paths, sorted lexicographically, for
// deterministic, presentation-ready ordering.
func (s *Set) Paths() []string {
	paths := make([]string, len(s.order))
	for i, t := range s.order {
		paths[i] = t.Path()
	}
	sort.Strings(paths)
	return paths
}
