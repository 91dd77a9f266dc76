// Package krakentest provides the construction helpers every kraken_test
// package in this module builds on: a silent Context wired to a temp build
// directory, and scratch projects/tasks for exercising the graph and
// executor without a real build script. Mirrors the teacher's
// test_helpers_test.go in spirit, promoted to its own package since the
// fixtures are shared across internal/kraken/*.
package krakentest

import (
	"context"
	"io"
	"sync"
	"testing"

	kcontext "github.com/alexisbeaulieu97/kraken/internal/kraken/context"
	"github.com/alexisbeaulieu97/kraken/internal/kraken/project"
	"github.com/alexisbeaulieu97/kraken/internal/kraken/task"
	"github.com/alexisbeaulieu97/kraken/internal/logger"
	"github.com/stretchr/testify/require"
)

// NewLogger builds a Logger that writes to io.Discard, for tests that need a
// real *logger.Logger but no output on the test runner's console.
func NewLogger(tb testing.TB) *logger.Logger {
	tb.Helper()
	log, err := logger.New(logger.Options{Writer: io.Discard, Layer: "test", Component: tb.Name()})
	require.NoError(tb, err)
	return log
}

// NewContext builds a Context rooted at a fresh t.TempDir(), with a silent
// logger and a single worker, suitable for deterministic ordering assertions.
func NewContext(tb testing.TB) *kcontext.Context {
	tb.Helper()
	c, err := kcontext.New(kcontext.Options{
		BuildDirectory: tb.TempDir(),
		Logger:         NewLogger(tb),
		Workers:        1,
	})
	require.NoError(tb, err)
	return c
}

// NewProject builds a standalone root project rooted at a fresh t.TempDir(),
// for tests exercising project/task behavior directly without a Context.
func NewProject(tb testing.TB) *project.Project {
	tb.Helper()
	p, err := project.New("", tb.TempDir(), nil)
	require.NoError(tb, err)
	return p
}

// NoopWork is an Ordinary task body that always succeeds, for tests that
// only care about graph shape or scheduling order, not task semantics.
func NoopWork(context.Context, *task.Ordinary) task.Result {
	return task.Result{Status: task.StatusSucceeded}
}

// RecordingWork returns an Ordinary task body that appends name to order
// (under its own lock) and succeeds, for asserting execution order.
func RecordingWork(order *[]string, mu sync.Locker, name string) func(context.Context, *task.Ordinary) task.Result {
	return func(context.Context, *task.Ordinary) task.Result {
		mu.Lock()
		*order = append(*order, name)
		mu.Unlock()
		return task.Result{Status: task.StatusSucceeded}
	}
}
