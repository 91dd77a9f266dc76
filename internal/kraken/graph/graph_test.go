package graph

import (
	"testing"

	"github.com/alexisbeaulieu97/kraken/internal/kraken/property"
	"github.com/alexisbeaulieu97/kraken/internal/kraken/supplier"
	"github.com/alexisbeaulieu97/kraken/internal/kraken/task"
	"github.com/stretchr/testify/require"
)

type fakeProject struct{ path string }

func (f *fakeProject) Path() string { return f.path }

func (f *fakeProject) ResolveTasks(selector string) ([]task.Task, error) {
	return nil, nil
}

func TestLinearChainExecutionOrder(t *testing.T) {
	t.Parallel()

	root := &fakeProject{path: ":"}
	a := task.New(root, "a", nil)
	b := task.New(root, "b", nil)
	b.AddRelationship(task.Relationship{Other: a, Strict: true, Inverse: false})
	c := task.New(root, "c", nil)
	c.AddRelationship(task.Relationship{Other: b, Strict: true, Inverse: false})

	g := New()
	require.NoError(t, g.AddTargets([]task.Task{c}))

	order := g.ExecutionOrder()
	require.Equal(t, []string{":a", ":b", ":c"}, order)
}

func TestFailureIsolationMarksDependentDormant(t *testing.T) {
	t.Parallel()

	root := &fakeProject{path: ":"}
	a := task.New(root, "a", nil)
	b := task.New(root, "b", nil)
	b.AddRelationship(task.Relationship{Other: a, Strict: true, Inverse: false})
	c := task.New(root, "c", nil) // unrelated sibling

	g := New()
	require.NoError(t, g.AddTargets([]task.Task{b, c}))

	require.NoError(t, g.SetStatus(":a", task.StatusFailed))
	require.NoError(t, g.SetStatus(":c", task.StatusRunning))
	require.NoError(t, g.SetStatus(":c", task.StatusSucceeded))

	ready := g.Ready()
	var readyPaths []string
	for _, t := range ready {
		readyPaths = append(readyPaths, t.Path())
	}
	require.NotContains(t, readyPaths, ":b")
	require.True(t, g.IsComplete(), "b is dormant (strict ancestor failed) and c is terminal, so the graph is complete")
}

func TestGroupExpansionAddsMemberEdges(t *testing.T) {
	t.Parallel()

	root := &fakeProject{path: ":"}
	group := task.NewGroup(root, "check")
	lint := task.New(root, "lint", nil)
	group.AddMember(lint)

	g := New()
	require.NoError(t, g.AddTargets([]task.Task{group}))

	info, ok := g.Edge(":lint", ":check")
	require.True(t, ok)
	require.True(t, info.Strict)

	order := g.ExecutionOrder()
	require.Equal(t, []string{":lint", ":check"}, order)
}

func TestSoftEdgeDoesNotGateReadiness(t *testing.T) {
	t.Parallel()

	root := &fakeProject{path: ":"}
	a := task.New(root, "a", nil)
	b := task.New(root, "b", nil)
	b.AddRelationship(task.Relationship{Other: a, Strict: false, Inverse: false})

	g := New()
	require.NoError(t, g.AddTargets([]task.Task{b}))

	ready := g.Ready()
	var paths []string
	for _, t := range ready {
		paths = append(paths, t.Path())
	}
	require.ElementsMatch(t, []string{":a", ":b"}, paths, "a soft predecessor does not gate readiness")
}

func TestLineageEdgeProducesStrictImplicitDependency(t *testing.T) {
	t.Parallel()

	root := &fakeProject{path: ":"}
	producer := task.New(root, "compile", nil)
	out := property.New[string](producer, "artifact", property.KindOutput, false)
	producer.RegisterProperty(out)
	require.NoError(t, out.Set("built.bin"))

	consumer := task.New(root, "package", nil)
	in := property.New[string](consumer, "input", property.KindInput, false)
	consumer.RegisterProperty(in)
	require.NoError(t, in.SetFrom(supplier.FromRaw[string](out)))

	g := New()
	require.NoError(t, g.AddTargets([]task.Task{consumer}))

	info, ok := g.Edge(":compile", ":package")
	require.True(t, ok)
	require.True(t, info.Strict)
	require.True(t, info.Implicit)

	// compile has not succeeded yet, so package must not be ready
	ready := g.Ready()
	var readyPaths []string
	for _, t := range ready {
		readyPaths = append(readyPaths, t.Path())
	}
	require.Contains(t, readyPaths, ":compile")
	require.NotContains(t, readyPaths, ":package")

	require.NoError(t, g.SetStatus(":compile", task.StatusRunning))
	require.NoError(t, g.SetStatus(":compile", task.StatusSucceeded))
	ready = g.Ready()
	readyPaths = nil
	for _, t := range ready {
		readyPaths = append(readyPaths, t.Path())
	}
	require.Contains(t, readyPaths, ":package")
}

func TestCycleDetectionReportsWitness(t *testing.T) {
	t.Parallel()

	root := &fakeProject{path: ":"}
	a := task.New(root, "a", nil)
	b := task.New(root, "b", nil)
	a.AddRelationship(task.Relationship{Other: b, Strict: true, Inverse: false})
	b.AddRelationship(task.Relationship{Other: a, Strict: true, Inverse: false})

	g := New()
	err := g.AddTargets([]task.Task{a})
	require.Error(t, err)
}

func TestSetStatusRejectsTransitionFromTerminal(t *testing.T) {
	t.Parallel()

	root := &fakeProject{path: ":"}
	a := task.New(root, "a", nil)
	g := New()
	require.NoError(t, g.AddTargets([]task.Task{a}))

	require.NoError(t, g.SetStatus(":a", task.StatusRunning))
	require.NoError(t, g.SetStatus(":a", task.StatusSucceeded))
	require.Error(t, g.SetStatus(":a", task.StatusFailed))
}

func TestTrimDropsUnreachableNodes(t *testing.T) {
	t.Parallel()

	root := &fakeProject{path: ":"}
	a := task.New(root, "a", nil)
	b := task.New(root, "b", nil)
	b.AddRelationship(task.Relationship{Other: a, Strict: true, Inverse: false})
	c := task.New(root, "c", nil) // unrelated

	g := New()
	require.NoError(t, g.AddTargets([]task.Task{b, c}))

	trimmed, err := g.Trim([]task.Task{b})
	require.NoError(t, err)

	var paths []string
	for _, t := range trimmed.Nodes() {
		paths = append(paths, t.Path())
	}
	require.ElementsMatch(t, []string{":a", ":b"}, paths)
}

func TestTrimKeepsStrictAncestorsButDropsSoftOnes(t *testing.T) {
	t.Parallel()

	root := &fakeProject{path: ":"}
	strictAncestor := task.New(root, "strict_ancestor", nil)
	softAncestor := task.New(root, "soft_ancestor", nil)
	target := task.New(root, "target", nil)
	target.AddRelationship(task.Relationship{Other: strictAncestor, Strict: true, Inverse: false})
	target.AddRelationship(task.Relationship{Other: softAncestor, Strict: false, Inverse: false})

	g := New()
	require.NoError(t, g.AddTargets([]task.Task{target}))

	trimmed, err := g.Trim([]task.Task{target})
	require.NoError(t, err)

	var paths []string
	for _, t := range trimmed.Nodes() {
		paths = append(paths, t.Path())
	}
	require.ElementsMatch(t, []string{":strict_ancestor", ":target"}, paths,
		"a soft ancestor is not required for its successor to run and must not survive trimming")
}

func TestReduceDropsRedundantTransitiveEdge(t *testing.T) {
	t.Parallel()

	root := &fakeProject{path: ":"}
	a := task.New(root, "a", nil)
	b := task.New(root, "b", nil)
	b.AddRelationship(task.Relationship{Other: a, Strict: true, Inverse: false})
	c := task.New(root, "c", nil)
	c.AddRelationship(task.Relationship{Other: b, Strict: true, Inverse: false})
	c.AddRelationship(task.Relationship{Other: a, Strict: true, Inverse: false}) // redundant: a -> b -> c already implies a -> c

	g := New()
	require.NoError(t, g.AddTargets([]task.Task{c}))

	_, ok := g.Edge(":a", ":c")
	require.True(t, ok, "edge should exist before reduction")

	g.Reduce(false)
	_, ok = g.Edge(":a", ":c")
	require.False(t, ok, "transitively redundant edge should be dropped")

	_, ok = g.Edge(":a", ":b")
	require.True(t, ok)
	_, ok = g.Edge(":b", ":c")
	require.True(t, ok)
}

func TestReduceKeepsExplicitRedundantEdgeWhenKeepExplicitIsTrue(t *testing.T) {
	t.Parallel()

	root := &fakeProject{path: ":"}
	a := task.New(root, "a", nil)
	b := task.New(root, "b", nil)
	b.AddRelationship(task.Relationship{Other: a, Strict: true, Inverse: false})
	c := task.New(root, "c", nil)
	c.AddRelationship(task.Relationship{Other: b, Strict: true, Inverse: false})
	c.AddRelationship(task.Relationship{Other: a, Strict: true, Inverse: false}) // redundant, but user-declared

	g := New()
	require.NoError(t, g.AddTargets([]task.Task{c}))

	info, ok := g.Edge(":a", ":c")
	require.True(t, ok)
	require.False(t, info.Implicit, "a relationship added via AddRelationship is explicit")

	g.Reduce(true)
	_, ok = g.Edge(":a", ":c")
	require.True(t, ok, "an explicit edge must survive reduction when keepExplicit is set")
}

func TestSnapshotIsDeterministicallySorted(t *testing.T) {
	t.Parallel()

	root := &fakeProject{path: ":"}
	b := task.New(root, "b", nil)
	a := task.New(root, "a", nil)
	b.AddRelationship(task.Relationship{Other: a, Strict: true, Inverse: false})

	g := New()
	require.NoError(t, g.AddTargets([]task.Task{b}))

	snap := g.Snapshot()
	require.Len(t, snap.Nodes, 2)
	require.Equal(t, ":a", snap.Nodes[0].Path)
	require.Equal(t, ":b", snap.Nodes[1].Path)

	out, err := snap.YAML()
	require.NoError(t, err)
	require.Contains(t, string(out), "path: :a")
}
