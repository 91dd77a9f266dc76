// Package context implements Context: the top-level coordinator owning the
// project tree, the event bus, and the logger every task's execution is
// derived from. It also holds the ambient "current project/current context"
// stack a build script relies on while it runs.
package context

import (
	stdcontext "context"
	"fmt"
	"sync"

	"github.com/alexisbeaulieu97/kraken/internal/kraken/executor"
	"github.com/alexisbeaulieu97/kraken/internal/kraken/graph"
	"github.com/alexisbeaulieu97/kraken/internal/kraken/project"
	"github.com/alexisbeaulieu97/kraken/internal/kraken/task"
	"github.com/alexisbeaulieu97/kraken/internal/logger"
	krakenerrors "github.com/alexisbeaulieu97/kraken/pkg/errors"
)

// EventType enumerates the finite set of events the bus dispatches, plus the
// wildcard Any.
type EventType int

const (
	Any EventType = iota
	OnProjectInit
	OnProjectLoaded
	OnProjectBeginFinalize
	OnProjectFinalized
	OnContextBeginFinalize
	OnContextFinalized
)

func (e EventType) String() string {
	switch e {
	case Any:
		return "any"
	case OnProjectInit:
		return "on_project_init"
	case OnProjectLoaded:
		return "on_project_loaded"
	case OnProjectBeginFinalize:
		return "on_project_begin_finalize"
	case OnProjectFinalized:
		return "on_project_finalized"
	case OnContextBeginFinalize:
		return "on_context_begin_finalize"
	case OnContextFinalized:
		return "on_context_finalized"
	default:
		return "unknown"
	}
}

// Listener receives an event's payload. Exceptions (panics) are not
// recovered here — per spec §9 Open Question (a), listener exceptions
// propagate, treating the listener as part of the build rather than an
// optional hook.
type Listener func(data any)

// Options configures a Context at construction time, mirroring the
// teacher's plain-struct-with-defaults construction style.
type Options struct {
	BuildDirectory string
	Logger         *logger.Logger
	Workers        int
}

// Context is the top-level coordinator: projects, events, and the executor
// run by Execute. It holds no Observer; Execute runs the executor without
// one.
type Context struct {
	buildDirectory string
	log            *logger.Logger
	workers        int

	mu           sync.Mutex
	root         *project.Project
	finalized    bool
	anyListeners []Listener
	listeners    map[EventType][]Listener

	stackMu   sync.Mutex
	projStack []*project.Project
}

// New constructs a Context rooted at opts.BuildDirectory. A root project is
// created immediately so Root() is always valid.
func New(opts Options) (*Context, error) {
	root, err := project.New("", opts.BuildDirectory, nil)
	if err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		var err error
		log, err = logger.New(logger.Options{Layer: "core", Component: "context"})
		if err != nil {
			return nil, err
		}
	}
	return &Context{
		buildDirectory: opts.BuildDirectory,
		log:            log,
		workers:        opts.Workers,
		root:           root,
		listeners:      make(map[EventType][]Listener),
	}, nil
}

// Root returns the context's root project.
func (c *Context) Root() *project.Project { return c.root }

// Listen registers cb against eventType (or every event if eventType is
// Any). Dispatch order is deterministic: Any-listeners first, in
// registration order, then type-specific listeners in registration order.
func (c *Context) Listen(eventType EventType, cb Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if eventType == Any {
		c.anyListeners = append(c.anyListeners, cb)
		return
	}
	c.listeners[eventType] = append(c.listeners[eventType], cb)
}

// Trigger invokes every Any-listener, then every eventType-specific
// listener, in registration order. It logs the event at Debug level before
// dispatching, mirroring the teacher's LoggingPublisher. Listener panics are
// not recovered — they propagate to Trigger's caller.
func (c *Context) Trigger(ctx stdcontext.Context, eventType EventType, data any) {
	c.log.Debug(ctx, "event triggered", "event", eventType.String())

	c.mu.Lock()
	any := append([]Listener(nil), c.anyListeners...)
	specific := append([]Listener(nil), c.listeners[eventType]...)
	c.mu.Unlock()

	for _, cb := range any {
		cb(data)
	}
	for _, cb := range specific {
		cb(data)
	}
}

// pushCurrentProject and popCurrentProject maintain the ambient
// Project.current() LIFO stack. Push happens on entering a project's load
// scope; pop happens on exit, including failure paths (callers must defer
// the pop immediately after a successful push).
func (c *Context) pushCurrentProject(p *project.Project) {
	c.stackMu.Lock()
	c.projStack = append(c.projStack, p)
	c.stackMu.Unlock()
}

func (c *Context) popCurrentProject() {
	c.stackMu.Lock()
	if n := len(c.projStack); n > 0 {
		c.projStack = c.projStack[:n-1]
	}
	c.stackMu.Unlock()
}

// CurrentProject returns the most-recently-entered project scope, or nil if
// no scope is currently active.
func (c *Context) CurrentProject() *project.Project {
	c.stackMu.Lock()
	defer c.stackMu.Unlock()
	if n := len(c.projStack); n > 0 {
		return c.projStack[n-1]
	}
	return nil
}

// WithProjectScope pushes p as the current project for the duration of fn,
// guaranteeing the pop happens even if fn panics.
func (c *Context) WithProjectScope(p *project.Project, fn func() error) error {
	c.pushCurrentProject(p)
	defer c.popCurrentProject()
	return fn()
}

// Finalize is idempotent: a second call logs and no-ops. On first call it
// emits begin_finalize, traverses projects in pre-order, and for each
// project emits begin_finalize(project), finalizes every task, emits
// finalized(project); finally emits finalized(context).
func (c *Context) Finalize(ctx stdcontext.Context) {
	c.mu.Lock()
	if c.finalized {
		c.mu.Unlock()
		c.log.Debug(ctx, "context already finalized, skipping")
		return
	}
	c.finalized = true
	c.mu.Unlock()

	c.Trigger(ctx, OnContextBeginFinalize, c)
	c.finalizeProject(ctx, c.root)
	c.Trigger(ctx, OnContextFinalized, c)
}

func (c *Context) finalizeProject(ctx stdcontext.Context, p *project.Project) {
	c.Trigger(ctx, OnProjectBeginFinalize, p)
	for _, t := range p.Tasks() {
		t.Finalize()
	}
	c.Trigger(ctx, OnProjectFinalized, p)

	for _, sub := range p.Subprojects() {
		c.finalizeProject(ctx, sub)
	}
}

// Finalized reports whether Finalize has completed at least once.
func (c *Context) Finalized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finalized
}

// Execute accepts nil (every default task, context-wide), a list of
// selector strings, or a pre-built *graph.TaskGraph. If the graph is not
// pre-built, Finalize is invoked first (a no-op if already finalized). It
// returns BuildError if any task ends FAILED.
func (c *Context) Execute(ctx stdcontext.Context, targets any) error {
	var g *graph.TaskGraph
	switch v := targets.(type) {
	case *graph.TaskGraph:
		g = v
	case nil:
		c.Finalize(ctx)
		g = graph.New()
		if err := g.AddTargets(c.root.DefaultTasks()); err != nil {
			return err
		}
	case []string:
		c.Finalize(ctx)
		var all []task.Task
		for _, sel := range v {
			matches, err := c.root.ResolveTasks(sel)
			if err != nil {
				return err
			}
			all = append(all, matches...)
		}
		g = graph.New()
		if err := g.AddTargets(all); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported targets value %T", targets)
	}

	exec := executor.New(executor.Options{Workers: c.workers, Logger: c.log})
	failed, err := exec.Run(ctx, g)
	if err != nil {
		return err
	}
	if len(failed) > 0 {
		return krakenerrors.NewBuildError(failed)
	}
	return nil
}
