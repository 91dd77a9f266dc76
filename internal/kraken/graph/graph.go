// Package graph implements TaskGraph: construction from an explicit target
// set by expanding task.Task.GetRelationships(), cycle detection, trimming,
// transitive reduction, readiness, and the stable topological order the
// executor schedules against.
package graph

import (
	"fmt"
	"sort"
	"sync"

	"github.com/alexisbeaulieu97/kraken/internal/kraken/task"
	krakenerrors "github.com/alexisbeaulieu97/kraken/pkg/errors"
)

// EdgeInfo records how an edge was discovered: from property lineage
// (implicit) or task.AddRelationship (explicit), and whether it is a hard
// (strict) dependency or a soft ordering-only constraint.
type EdgeInfo struct {
	Strict   bool
	Implicit bool
}

type edgeKey struct {
	from string
	to   string
}

// resolver is the narrow surface of project.Project the graph needs to
// resolve selector-based relationships relative to a task's owning project.
type resolver interface {
	ResolveTasks(selector string) ([]task.Task, error)
}

// TaskGraph is the mutable build artifact Context.Execute constructs from a
// target set and the GraphExecutor schedules against.
type TaskGraph struct {
	mu sync.Mutex

	nodes   map[string]task.Task
	edges   map[edgeKey]*EdgeInfo
	fwd     map[string]map[string]bool
	rev     map[string]map[string]bool
	targets map[string]bool
	status  map[string]task.Status

	order []string // stable topological order, computed at build time
}

// New constructs an empty TaskGraph.
func New() *TaskGraph {
	return &TaskGraph{
		nodes:   make(map[string]task.Task),
		edges:   make(map[edgeKey]*EdgeInfo),
		fwd:     make(map[string]map[string]bool),
		rev:     make(map[string]map[string]bool),
		targets: make(map[string]bool),
		status:  make(map[string]task.Status),
	}
}

// AddTargets expands the graph to include tasks (the explicitly-named
// target set), plus every task transitively reachable through
// GetRelationships(), then recomputes edges, cycle-checks, and the stable
// topological order. Safe to call more than once; later calls merge with
// the existing target set.
func (g *TaskGraph) AddTargets(tasks []task.Task) error {
	g.mu.Lock()
	for _, t := range tasks {
		if t == nil {
			continue
		}
		g.targets[t.Path()] = true
		g.nodes[t.Path()] = t
	}
	seed := make([]task.Task, 0, len(g.nodes))
	for _, t := range g.nodes {
		seed = append(seed, t)
	}
	g.mu.Unlock()

	return g.build(seed)
}

// build performs the full construction algorithm described in spec §4.5
// starting from seed (the current node set): BFS-expand via
// GetRelationships, classify and merge edges, reject cycles, and compute a
// stable Kahn's-algorithm topological order.
func (g *TaskGraph) build(seed []task.Task) error {
	nodes := make(map[string]task.Task, len(seed))
	for _, t := range seed {
		nodes[t.Path()] = t
	}

	fwd := make(map[string]map[string]bool)
	rev := make(map[string]map[string]bool)
	edges := make(map[edgeKey]*EdgeInfo)

	queue := make([]task.Task, len(seed))
	copy(queue, seed)
	visited := make(map[string]bool)

	for len(queue) > 0 {
		t := queue[0]
		queue = queue[1:]
		path := t.Path()
		if visited[path] {
			continue
		}
		visited[path] = true
		nodes[path] = t

		rels, err := resolveRelationships(t)
		if err != nil {
			return err
		}

		for _, r := range rels {
			other := r.Other
			if other == nil {
				continue
			}
			otherPath := other.Path()
			if _, ok := nodes[otherPath]; !ok {
				nodes[otherPath] = other
			}
			if !visited[otherPath] {
				queue = append(queue, other)
			}

			from, to := otherPath, path
			if r.Inverse {
				from, to = path, otherPath
			}
			mergeEdge(edges, from, to, r.Strict, r.Implicit)
		}
	}

	for key := range edges {
		addAdjacency(fwd, key.from, key.to)
		addAdjacency(rev, key.to, key.from)
	}

	witness := findCycle(nodes, fwd)
	if witness != nil {
		return krakenerrors.NewCycleError(witness)
	}

	order := stableTopologicalOrder(nodes, fwd, rev)

	g.mu.Lock()
	g.nodes = nodes
	g.fwd = fwd
	g.rev = rev
	g.edges = edges
	g.order = order
	if g.status == nil {
		g.status = make(map[string]task.Status)
	}
	g.mu.Unlock()
	return nil
}

// resolveRelationships returns t's relationships with every selector-based
// entry resolved against t's owning project, in addition to any
// already-resolved (Other != nil) entries.
func resolveRelationships(t task.Task) ([]task.Relationship, error) {
	raw := t.GetRelationships()
	out := make([]task.Relationship, 0, len(raw))
	for _, r := range raw {
		if r.Other != nil {
			out = append(out, r)
			continue
		}
		if r.Selector == "" {
			continue
		}
		proj, ok := t.Project().(resolver)
		if !ok {
			return nil, fmt.Errorf("task %q cannot resolve selector %q: project does not support resolution", t.Path(), r.Selector)
		}
		matches, err := proj.ResolveTasks(r.Selector)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			out = append(out, task.Relationship{Other: m, Strict: r.Strict, Inverse: r.Inverse, Implicit: r.Implicit})
		}
	}
	return out, nil
}

// mergeEdge conservatively merges a newly-discovered edge with any
// previously recorded edge for the same ordered pair: strict = any-strict,
// implicit = all-implicit.
func mergeEdge(edges map[edgeKey]*EdgeInfo, from, to string, strict, implicit bool) {
	key := edgeKey{from: from, to: to}
	if existing, ok := edges[key]; ok {
		existing.Strict = existing.Strict || strict
		existing.Implicit = existing.Implicit && implicit
		return
	}
	edges[key] = &EdgeInfo{Strict: strict, Implicit: implicit}
}

func addAdjacency(m map[string]map[string]bool, from, to string) {
	if m[from] == nil {
		m[from] = make(map[string]bool)
	}
	m[from][to] = true
}

// findCycle performs a recursive DFS with white/gray/black coloring,
// returning one offending cycle (as a path sequence, first element repeated
// last) or nil if the graph is acyclic. Soft edges participate in cycle
// detection the same as strict edges, per spec.
func findCycle(nodes map[string]task.Task, fwd map[string]map[string]bool) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(nodes))
	parent := make(map[string]string)

	paths := make([]string, 0, len(nodes))
	for p := range nodes {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var cycle []string
	var visit func(string) bool
	visit = func(p string) bool {
		color[p] = gray
		next := make([]string, 0, len(fwd[p]))
		for n := range fwd[p] {
			next = append(next, n)
		}
		sort.Strings(next)
		for _, n := range next {
			switch color[n] {
			case white:
				parent[n] = p
				if visit(n) {
					return true
				}
			case gray:
				cycle = buildWitness(parent, p, n)
				return true
			}
		}
		color[p] = black
		return false
	}

	for _, p := range paths {
		if color[p] == white {
			if visit(p) {
				return cycle
			}
		}
	}
	return nil
}

func buildWitness(parent map[string]string, from, to string) []string {
	chain := []string{from}
	cur := from
	for cur != to {
		p, ok := parent[cur]
		if !ok {
			break
		}
		chain = append(chain, p)
		cur = p
	}
	// reverse to read start -> ... -> from, then close the loop back to "to"
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	chain = append(chain, to)
	return chain
}

// stableTopologicalOrder computes a topological order via Kahn's algorithm,
// breaking ties lexicographically by task path so execution_order() is
// deterministic across runs.
func stableTopologicalOrder(nodes map[string]task.Task, fwd, rev map[string]map[string]bool) []string {
	indegree := make(map[string]int, len(nodes))
	for p := range nodes {
		indegree[p] = len(rev[p])
	}

	var ready []string
	for p, d := range indegree {
		if d == 0 {
			ready = append(ready, p)
		}
	}
	sort.Strings(ready)

	var order []string
	for len(ready) > 0 {
		sort.Strings(ready)
		p := ready[0]
		ready = ready[1:]
		order = append(order, p)

		var newlyReady []string
		for n := range fwd[p] {
			indegree[n]--
			if indegree[n] == 0 {
				newlyReady = append(newlyReady, n)
			}
		}
		sort.Strings(newlyReady)
		ready = append(ready, newlyReady...)
	}
	return order
}

// Nodes returns every task currently in the graph.
func (g *TaskGraph) Nodes() []task.Task {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]task.Task, 0, len(g.nodes))
	for _, t := range g.nodes {
		out = append(out, t)
	}
	return out
}

// ExecutionOrder returns the stable topological order computed at the last
// build.
func (g *TaskGraph) ExecutionOrder() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Edge returns the EdgeInfo for (from, to), if one exists.
func (g *TaskGraph) Edge(from, to string) (EdgeInfo, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	info, ok := g.edges[edgeKey{from: from, to: to}]
	if !ok {
		return EdgeInfo{}, false
	}
	return *info, true
}

// Status returns the recorded status of the task at path (StatusPending if
// no entry exists).
func (g *TaskGraph) Status(path string) task.Status {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.status[path]; ok {
		return s
	}
	return task.StatusPending
}

var validTransitions = map[task.Status]map[task.Status]bool{
	task.StatusPending: {
		task.StatusRunning:  true,
		task.StatusStarted:  true,
		task.StatusSkipped:  true,
		task.StatusUpToDate: true,
		task.StatusFailed:   true,
	},
	task.StatusRunning: {
		task.StatusSucceeded: true,
		task.StatusFailed:    true,
		task.StatusSkipped:   true,
		task.StatusUpToDate:  true,
	},
	task.StatusStarted: {
		task.StatusSucceeded: true,
		task.StatusFailed:    true,
		task.StatusSkipped:   true,
		task.StatusUpToDate:  true,
	},
}

// SetStatus is the single mutation point for task status; it validates the
// transition table (PENDING → {RUNNING, STARTED, SKIPPED, UP_TO_DATE,
// FAILED}; RUNNING/STARTED → {SUCCEEDED, FAILED, SKIPPED, UP_TO_DATE};
// terminal states are frozen).
func (g *TaskGraph) SetStatus(path string, status task.Status) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	current := task.StatusPending
	if s, ok := g.status[path]; ok {
		current = s
	}
	if current.Terminal() {
		return fmt.Errorf("task %q is already in terminal status %s, cannot transition to %s", path, current, status)
	}
	if allowed, ok := validTransitions[current]; !ok || !allowed[status] {
		return fmt.Errorf("task %q cannot transition from %s to %s", path, current, status)
	}
	g.status[path] = status
	return nil
}

// Ready returns every task with status PENDING whose strict predecessors
// are all in {SUCCEEDED, SKIPPED, UP_TO_DATE}, or STARTED for a background
// predecessor that has begun but will only be torn down once the graph is
// otherwise complete. A strict predecessor in FAILED or still PENDING
// disqualifies the task — it stays dormant. Soft predecessors do not gate
// readiness.
func (g *TaskGraph) Ready() []task.Task {
	g.mu.Lock()
	defer g.mu.Unlock()

	var ready []string
	for path := range g.nodes {
		status := task.StatusPending
		if s, ok := g.status[path]; ok {
			status = s
		}
		if status != task.StatusPending {
			continue
		}
		if g.strictPredecessorsSatisfiedLocked(path) {
			ready = append(ready, path)
		}
	}
	sort.Strings(ready)

	out := make([]task.Task, len(ready))
	for i, p := range ready {
		out[i] = g.nodes[p]
	}
	return out
}

func (g *TaskGraph) strictPredecessorsSatisfiedLocked(path string) bool {
	for pred := range g.rev[path] {
		info, ok := g.edges[edgeKey{from: pred, to: path}]
		if !ok || !info.Strict {
			continue
		}
		status := task.StatusPending
		if s, ok := g.status[pred]; ok {
			status = s
		}
		switch status {
		case task.StatusSucceeded, task.StatusSkipped, task.StatusUpToDate, task.StatusStarted:
			continue
		default:
			return false
		}
	}
	return true
}

// IsComplete is true when every non-dormant task is Settled (one of the
// four terminal statuses, or STARTED for a background task left running
// until teardown) and every dormant task (a strict ancestor failed) will
// never run.
func (g *TaskGraph) IsComplete() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	for path := range g.nodes {
		status := task.StatusPending
		if s, ok := g.status[path]; ok {
			status = s
		}
		if status.Settled() {
			continue
		}
		if g.isDormantLocked(path) {
			continue
		}
		return false
	}
	return true
}

// isDormantLocked reports whether path has a strict ancestor (transitively)
// in FAILED status, meaning it can never become ready.
func (g *TaskGraph) isDormantLocked(path string) bool {
	visited := make(map[string]bool)
	var walk func(string) bool
	walk = func(p string) bool {
		for pred := range g.rev[p] {
			info, ok := g.edges[edgeKey{from: pred, to: p}]
			if !ok || !info.Strict {
				continue
			}
			status := task.StatusPending
			if s, ok := g.status[pred]; ok {
				status = s
			}
			if status == task.StatusFailed {
				return true
			}
			if visited[pred] {
				continue
			}
			visited[pred] = true
			if walk(pred) {
				return true
			}
		}
		return false
	}
	return walk(path)
}

// Trim keeps exactly the explicitly-selected tasks and their strict
// ancestors (spec §9 Open Question (b): "explicit selection" for
// trimming/reduction is the user-provided target set plus their strict
// ancestors — a soft predecessor is not required for its successor to run,
// so it does not survive trimming on that edge alone). It returns a new
// TaskGraph built directly from the surviving subset of this graph's own
// edges and status, without re-running relationship resolution, so a
// descendant pulled in only by some survivor's own declared (possibly
// inverse) relationship cannot sneak back in.
func (g *TaskGraph) Trim(keep []task.Task) (*TaskGraph, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	reachable := make(map[string]bool)
	var walk func(string)
	walk = func(p string) {
		if reachable[p] {
			return
		}
		reachable[p] = true
		for pred := range g.rev[p] {
			if info, ok := g.edges[edgeKey{from: pred, to: p}]; ok && info.Strict {
				walk(pred)
			}
		}
	}
	for _, t := range keep {
		walk(t.Path())
	}

	out := New()
	for p, t := range g.nodes {
		if reachable[p] {
			out.nodes[p] = t
		}
	}
	for key, info := range g.edges {
		if !reachable[key.from] || !reachable[key.to] {
			continue
		}
		out.edges[key] = &EdgeInfo{Strict: info.Strict, Implicit: info.Implicit}
		addAdjacency(out.fwd, key.from, key.to)
		addAdjacency(out.rev, key.to, key.from)
	}
	for p, s := range g.status {
		if reachable[p] {
			out.status[p] = s
		}
	}
	for p := range g.targets {
		if reachable[p] {
			out.targets[p] = true
		}
	}
	out.order = stableTopologicalOrder(out.nodes, out.fwd, out.rev)
	return out, nil
}

// Reduce performs a transitive reduction: an edge (A, B) is dropped if
// another path from A to B exists through the remaining edges. If
// keepExplicit is true, user-added (non-implicit) relationships survive
// even when redundant.
func (g *TaskGraph) Reduce(keepExplicit bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for key, info := range g.edges {
		if keepExplicit && !info.Implicit {
			continue
		}
		if g.hasAlternatePathLocked(key.from, key.to, key) {
			delete(g.edges, key)
			removeAdjacency(g.fwd, key.from, key.to)
			removeAdjacency(g.rev, key.to, key.from)
		}
	}
}

func (g *TaskGraph) hasAlternatePathLocked(from, to string, exclude edgeKey) bool {
	visited := make(map[string]bool)
	var walk func(string) bool
	walk = func(p string) bool {
		if p == to {
			return true
		}
		if visited[p] {
			return false
		}
		visited[p] = true
		for n := range g.fwd[p] {
			if p == exclude.from && n == exclude.to {
				continue
			}
			if walk(n) {
				return true
			}
		}
		return false
	}
	for n := range g.fwd[from] {
		if n == to {
			continue
		}
		if walk(n) {
			return true
		}
	}
	return false
}

func removeAdjacency(m map[string]map[string]bool, from, to string) {
	if set, ok := m[from]; ok {
		delete(set, to)
	}
}
