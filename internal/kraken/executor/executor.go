// Package executor implements GraphExecutor: a parallel scheduler bounded
// by a worker budget, driving a graph.TaskGraph to completion one ready
// batch at a time, enforcing soft-edge exclusivity, and tearing down
// background tasks in reverse start order once the graph is complete.
package executor

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/alexisbeaulieu97/kraken/internal/kraken/graph"
	"github.com/alexisbeaulieu97/kraken/internal/kraken/task"
	"github.com/alexisbeaulieu97/kraken/internal/logger"
)

// Observer receives scheduler lifecycle callbacks, always invoked from the
// scheduler's own goroutine so implementations need no locking of their
// own — but they must not block, since they serialize every other
// callback behind them.
type Observer interface {
	BeforeGraph(g *graph.TaskGraph)
	AfterGraph(g *graph.TaskGraph)
	BeforeTask(t task.Task)
	AfterTask(t task.Task, result task.Result)
}

type noopObserver struct{}

func (noopObserver) BeforeGraph(*graph.TaskGraph)         {}
func (noopObserver) AfterGraph(*graph.TaskGraph)          {}
func (noopObserver) BeforeTask(task.Task)                 {}
func (noopObserver) AfterTask(task.Task, task.Result)     {}

// Options configures a GraphExecutor at construction time.
type Options struct {
	// Workers bounds in-flight task execution. Zero means hardware
	// parallelism, matching the spec's default.
	Workers  int
	Logger   *logger.Logger
	Observer Observer
}

// GraphExecutor drives a graph.TaskGraph to completion.
type GraphExecutor struct {
	workers  int
	log      *logger.Logger
	observer Observer
}

// New constructs a GraphExecutor.
func New(opts Options) *GraphExecutor {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	obs := opts.Observer
	if obs == nil {
		obs = noopObserver{}
	}
	log := opts.Logger
	if log == nil {
		log, _ = logger.New(logger.Options{Layer: "core", Component: "executor"})
	}
	return &GraphExecutor{workers: workers, log: log, observer: obs}
}

type completion struct {
	path   string
	task   task.Task
	result task.Result
}

type backgroundRecord struct {
	task  *task.Background
	order int
}

// Run drives g to completion: repeatedly asks for ready tasks, filters out
// any that share a soft edge with something currently running, then selects
// the rest for this batch one at a time, skipping a candidate that shares a
// soft edge with one already selected in the same batch, up to the worker
// budget, and blocks for at least one completion before looping again. It
// returns a map of failed task path to cause (suitable for
// krakenerrors.NewBuildError), or a non-nil error only for a scheduler
// malfunction (e.g. an invalid status transition) — task failures are
// always reported through the returned map, never as the error return.
func (e *GraphExecutor) Run(ctx context.Context, g *graph.TaskGraph) (map[string]error, error) {
	runID := logger.NewRunID()
	ctx = logger.WithCorrelationID(ctx, runID)

	e.observer.BeforeGraph(g)
	defer e.observer.AfterGraph(g)

	failed := make(map[string]error)
	running := make(map[string]task.Task)
	var runningMu sync.Mutex

	var backgroundTasks []backgroundRecord
	startOrder := 0

	resultCh := make(chan completion)
	var group errgroup.Group // plain wait group: a task Failed status is data, not a Go error, and must never cancel siblings

	inFlight := 0

	launch := func(t task.Task) error {
		initial := task.StatusRunning
		if _, ok := t.(*task.Background); ok {
			initial = task.StatusStarted
		}
		if err := g.SetStatus(t.Path(), initial); err != nil {
			return err
		}
		inFlight++
		runningMu.Lock()
		running[t.Path()] = t
		runningMu.Unlock()

		e.observer.BeforeTask(t)
		e.log.Debug(ctx, "task starting", "task", t.Path())

		group.Go(func() error {
			result := t.Execute(ctx)
			resultCh <- completion{path: t.Path(), task: t, result: result}
			return nil
		})
		return nil
	}

	for !g.IsComplete() || inFlight > 0 {
		ready := g.Ready()
		ready = e.filterSoftExclusive(g, ready, running, &runningMu)

		budget := e.workers - inFlight
		if budget > len(ready) {
			budget = len(ready)
		}
		var selected []task.Task
		for i := 0; i < len(ready) && len(selected) < budget; i++ {
			candidate := ready[i]
			excluded := false
			for _, s := range selected {
				if sharesSoftEdge(g, candidate.Path(), s.Path()) {
					excluded = true
					break
				}
			}
			if excluded {
				continue
			}
			selected = append(selected, candidate)
		}
		for _, t := range selected {
			if err := launch(t); err != nil {
				return nil, err
			}
		}

		if inFlight == 0 {
			// Nothing ready and nothing running, but the graph claims it is
			// not complete: every remaining task must be dormant, which
			// IsComplete already accounts for, so this should not happen
			// for a well-formed graph. Guard against an infinite loop.
			break
		}

		c := <-resultCh
		inFlight--
		runningMu.Lock()
		delete(running, c.path)
		runningMu.Unlock()

		if c.result.Status != g.Status(c.path) {
			if err := g.SetStatus(c.path, c.result.Status); err != nil {
				return nil, err
			}
		}
		e.observer.AfterTask(c.task, c.result)
		e.log.Debug(ctx, "task finished", "task", c.path, "status", c.result.Status.String())

		if c.result.Status == task.StatusFailed {
			msg := c.result.Message
			if msg == "" {
				msg = "task failed"
			}
			failed[c.path] = fmt.Errorf("%s", msg)
		}
		if c.result.Status == task.StatusStarted {
			if bg, ok := c.task.(*task.Background); ok {
				backgroundTasks = append(backgroundTasks, backgroundRecord{task: bg, order: startOrder})
				startOrder++
			}
		}
	}

	e.teardownBackground(ctx, backgroundTasks)

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return failed, nil
}

// filterSoftExclusive removes any ready candidate that shares a soft edge
// with a currently-running task, implementing the spec's exclusivity rule:
// two tasks joined by a soft edge never execute concurrently.
func (e *GraphExecutor) filterSoftExclusive(g *graph.TaskGraph, ready []task.Task, running map[string]task.Task, mu *sync.Mutex) []task.Task {
	mu.Lock()
	runningPaths := make([]string, 0, len(running))
	for p := range running {
		runningPaths = append(runningPaths, p)
	}
	mu.Unlock()

	var out []task.Task
	for _, t := range ready {
		excluded := false
		for _, r := range runningPaths {
			if sharesSoftEdge(g, t.Path(), r) {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, t)
		}
	}
	return out
}

func sharesSoftEdge(g *graph.TaskGraph, a, b string) bool {
	if info, ok := g.Edge(a, b); ok && !info.Strict {
		return true
	}
	if info, ok := g.Edge(b, a); ok && !info.Strict {
		return true
	}
	return false
}

// teardownBackground closes every background task started during Run, in
// reverse start order, once the graph is otherwise complete.
func (e *GraphExecutor) teardownBackground(ctx context.Context, records []backgroundRecord) {
	sort.Slice(records, func(i, j int) bool { return records[i].order > records[j].order })
	for _, r := range records {
		if err := r.task.Teardown(ctx); err != nil {
			e.log.Warn(ctx, "background task teardown failed", "task", r.task.Path(), "error", err.Error())
		}
	}
}
