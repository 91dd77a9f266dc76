package kraken

import (
	stdcontext "context"
	"io"

	kcontext "github.com/alexisbeaulieu97/kraken/internal/kraken/context"
	"github.com/alexisbeaulieu97/kraken/internal/kraken/graph"
	"github.com/alexisbeaulieu97/kraken/internal/kraken/names"
	"github.com/alexisbeaulieu97/kraken/internal/kraken/project"
	"github.com/alexisbeaulieu97/kraken/internal/kraken/property"
	"github.com/alexisbeaulieu97/kraken/internal/kraken/supplier"
	"github.com/alexisbeaulieu97/kraken/internal/kraken/task"
	"github.com/alexisbeaulieu97/kraken/internal/logger"
	krakenerrors "github.com/alexisbeaulieu97/kraken/pkg/errors"
)

// Context coordinates a project tree, its event bus, and the executor a
// build runs against.
type Context = kcontext.Context

// ContextOptions configures a Context at construction time.
type ContextOptions = kcontext.Options

// ContextEvent enumerates the events Context's bus dispatches.
type ContextEvent = kcontext.EventType

// ContextEvent values, re-exported so callers never import internal/kraken/context directly.
const (
	AnyEvent                  = kcontext.Any
	OnProjectInit             = kcontext.OnProjectInit
	OnProjectLoaded           = kcontext.OnProjectLoaded
	OnProjectBeginFinalize    = kcontext.OnProjectBeginFinalize
	OnProjectFinalized        = kcontext.OnProjectFinalized
	OnContextBeginFinalize    = kcontext.OnContextBeginFinalize
	OnContextFinalized        = kcontext.OnContextFinalized
)

// Project is a named, directory-rooted namespace of tasks and sub-projects.
type Project = project.Project

// Task is the behavior every concrete task kind implements.
type Task = task.Task

// TaskStatus is a task's lifecycle state.
type TaskStatus = task.Status

// TaskStatus values.
const (
	StatusPending   = task.StatusPending
	StatusRunning   = task.StatusRunning
	StatusStarted   = task.StatusStarted
	StatusSucceeded = task.StatusSucceeded
	StatusFailed    = task.StatusFailed
	StatusSkipped   = task.StatusSkipped
	StatusUpToDate  = task.StatusUpToDate
)

// TaskRelationship is a stored dependency declaration between two tasks.
type TaskRelationship = task.Relationship

// GroupTask aggregates member tasks behind one selectable name.
type GroupTask = task.Group

// VoidTask is an always-skipped placeholder task.
type VoidTask = task.Void

// BackgroundTask starts a long-running process and tears it down once the
// rest of the graph has settled.
type BackgroundTask = task.Background

// TaskSet is an ordered, path-deduplicated collection of tasks. Selection
// and group-membership queries (Project.ResolveTasks, GroupTask.Members)
// return plain []Task slices, not a TaskSet.
type TaskSet = task.Set

// Property is a lazily-evaluated, lineage-tracked task input or output.
type Property[T any] = property.Property[T]

// Supplier is the generically typed value producer a Property binds to via
// SetFrom.
type Supplier[T any] = supplier.Of[T]

// Selector is a parsed task selector (":project:name?").
type Selector = names.Selector

// TaskGraph is the resolved, status-tracked dependency graph of a task set.
type TaskGraph = graph.TaskGraph

// ProjectLoaderError wraps a failure encountered while loading a project's
// build script.
type ProjectLoaderError = krakenerrors.ProjectLoaderError

// BuildError aggregates every task failure from one Context.Execute call.
type BuildError = krakenerrors.BuildError

// Logger is the structured logger every Context and GraphExecutor logs
// through.
type Logger = logger.Logger

// LoggerOptions configures a Logger at construction time.
type LoggerOptions = logger.Options

// NewContext constructs a Context rooted at opts.BuildDirectory.
func NewContext(opts ContextOptions) (*Context, error) {
	return kcontext.New(opts)
}

// NewLogger builds a Logger writing to w, tagged with layer/component
// fields every subsequent call carries.
func NewLogger(w io.Writer, component string) (*Logger, error) {
	return logger.New(logger.Options{Writer: w, Layer: "build", Component: component})
}

// ParseSelector parses a selector string per the grammar documented on
// Selector.
func ParseSelector(raw string) (Selector, error) {
	return names.ParseSelector(raw)
}

// NewTask constructs an Ordinary task under proj, executed by run when the
// graph schedules it. run may be nil for a task whose only purpose is its
// declared relationships (always succeeds without doing work).
func NewTask(proj *Project, name string, run func(ctx stdcontext.Context, t *task.Ordinary) TaskResult) Task {
	return task.New(proj, name, run)
}

// NewGroupTask constructs a GroupTask under proj; members are attached via
// AddMember or Project.Do's groupName parameter.
func NewGroupTask(proj *Project, name string) *GroupTask {
	return task.NewGroup(proj, name)
}

// NewVoidTask constructs a VoidTask: always SKIPPED, satisfying a
// relationship without doing anything.
func NewVoidTask(proj *Project, name string) *VoidTask {
	return task.NewVoid(proj, name)
}

// NewBackgroundTask constructs a BackgroundTask under proj. start runs once
// when the task is scheduled; teardown runs once the rest of the graph has
// settled, in reverse start order relative to other background tasks.
func NewBackgroundTask(proj *Project, name string, start, teardown func(ctx stdcontext.Context, t *BackgroundTask) error) *BackgroundTask {
	return task.NewBackground(proj, name, start, teardown)
}

// TaskResult carries an execution outcome and an optional message.
type TaskResult = task.Result
