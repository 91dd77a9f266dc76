package project

import (
	"testing"

	"github.com/alexisbeaulieu97/kraken/internal/kraken/task"
	"github.com/stretchr/testify/require"
)

func newRoot(t *testing.T) *Project {
	t.Helper()
	root, err := New("", "/tmp/root", nil)
	require.NoError(t, err)
	return root
}

func TestNewRootProjectPathIsColon(t *testing.T) {
	t.Parallel()

	root := newRoot(t)
	require.Equal(t, ":", root.Path())
}

func TestSubprojectPathIsDottedColonChain(t *testing.T) {
	t.Parallel()

	root := newRoot(t)
	sub, err := root.Subproject("app", "/tmp/root/app")
	require.NoError(t, err)
	require.Equal(t, ":app", sub.Path())

	nested, err := sub.Subproject("lib", "/tmp/root/app/lib")
	require.NoError(t, err)
	require.Equal(t, ":app:lib", nested.Path())
}

func TestSubprojectIsIdempotentByName(t *testing.T) {
	t.Parallel()

	root := newRoot(t)
	first, err := root.Subproject("app", "/tmp/root/app")
	require.NoError(t, err)
	second, err := root.Subproject("app", "/tmp/root/app")
	require.NoError(t, err)
	require.Same(t, first, second)
}

func TestDefaultGroupChainSeededOnConstruction(t *testing.T) {
	t.Parallel()

	root := newRoot(t)
	names := []string{"apply", "fmt", "check", "lint", "build", "test", "integrationTest", "publish", "deploy"}
	for _, n := range names {
		g, err := root.Group(n, nil, nil)
		require.NoError(t, err)
		require.NotNil(t, g)
	}
}

func TestDefaultGroupChainDefaultFlags(t *testing.T) {
	t.Parallel()

	root := newRoot(t)
	defaultTrue := map[string]bool{"check": true, "lint": true, "test": true}
	for _, n := range []string{"apply", "fmt", "check", "lint", "build", "test", "integrationTest", "publish", "deploy"} {
		g, err := root.Group(n, nil, nil)
		require.NoError(t, err)
		require.Equal(t, defaultTrue[n], g.Default(), "unexpected default flag for %s", n)
	}
}

func TestDefaultGroupChainWiring(t *testing.T) {
	t.Parallel()

	root := newRoot(t)
	fmtGroup, err := root.Group("fmt", nil, nil)
	require.NoError(t, err)
	rels := fmtGroup.Relationships()
	require.Len(t, rels, 1)
	require.True(t, rels[0].Strict)
	require.Equal(t, ":apply", rels[0].Other.Path())

	build, err := root.Group("build", nil, nil)
	require.NoError(t, err)
	rels = build.Relationships()
	require.Len(t, rels, 1)
	require.False(t, rels[0].Strict)
	require.Equal(t, ":lint", rels[0].Other.Path())
}

func TestGroupOverwritesDefaultAndDescription(t *testing.T) {
	t.Parallel()

	root := newRoot(t)
	dflt := true
	desc := "runs everything"
	g, err := root.Group("build", &dflt, &desc)
	require.NoError(t, err)
	require.True(t, g.Default())
	require.Equal(t, "runs everything", g.Description())
}

func TestDoRegistersTaskAndOptionallyAddsToGroup(t *testing.T) {
	t.Parallel()

	root := newRoot(t)
	tk, err := root.Do("compile", "build", func(proj *Project, name string) (task.Task, error) {
		return task.New(proj, name, nil), nil
	})
	require.NoError(t, err)
	require.Equal(t, ":compile", tk.Path())

	build, err := root.Group("build", nil, nil)
	require.NoError(t, err)
	var found bool
	for _, m := range build.Members() {
		if m.Path() == ":compile" {
			found = true
		}
	}
	require.True(t, found)
}

func TestResolveTasksBareNameMatchesSubtree(t *testing.T) {
	t.Parallel()

	root := newRoot(t)
	_, err := root.Do("task", "", func(proj *Project, name string) (task.Task, error) {
		return task.New(proj, name, nil), nil
	})
	require.NoError(t, err)

	sub, err := root.Subproject("sub", "/tmp/root/sub")
	require.NoError(t, err)
	_, err = sub.Do("task", "", func(proj *Project, name string) (task.Task, error) {
		return task.New(proj, name, nil), nil
	})
	require.NoError(t, err)

	matches, err := root.ResolveTasks("task")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	paths := []string{matches[0].Path(), matches[1].Path()}
	require.ElementsMatch(t, []string{":task", ":sub:task"}, paths)
}

func TestResolveTasksAbsoluteFromSubMatchesRootOnly(t *testing.T) {
	t.Parallel()

	root := newRoot(t)
	_, err := root.Do("task", "", func(proj *Project, name string) (task.Task, error) {
		return task.New(proj, name, nil), nil
	})
	require.NoError(t, err)

	sub, err := root.Subproject("sub", "/tmp/root/sub")
	require.NoError(t, err)
	_, err = sub.Do("task", "", func(proj *Project, name string) (task.Task, error) {
		return task.New(proj, name, nil), nil
	})
	require.NoError(t, err)

	matches, err := sub.ResolveTasks(":task")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, ":task", matches[0].Path())
}

func TestResolveTasksNoSuchTaskErrorsWhenNonOptional(t *testing.T) {
	t.Parallel()

	root := newRoot(t)
	_, err := root.ResolveTasks("missing")
	require.Error(t, err)
}

func TestResolveTasksOptionalSelectorYieldsNoError(t *testing.T) {
	t.Parallel()

	root := newRoot(t)
	matches, err := root.ResolveTasks("missing?")
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestResolveTasksNoSuchProjectErrors(t *testing.T) {
	t.Parallel()

	root := newRoot(t)
	_, err := root.ResolveTasks(":missing:task")
	require.Error(t, err)
}
