package context_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	kcontext "github.com/alexisbeaulieu97/kraken/internal/kraken/context"
	"github.com/alexisbeaulieu97/kraken/internal/kraken/project"
	"github.com/alexisbeaulieu97/kraken/internal/kraken/task"
	"github.com/alexisbeaulieu97/kraken/internal/krakentest"
	"github.com/stretchr/testify/require"
)

func TestListenDispatchesAnyListenersBeforeSpecificInRegistrationOrder(t *testing.T) {
	t.Parallel()

	c := krakentest.NewContext(t)
	var order []string
	c.Listen(kcontext.Any, func(any) { order = append(order, "any1") })
	c.Listen(kcontext.OnProjectInit, func(any) { order = append(order, "specific1") })
	c.Listen(kcontext.Any, func(any) { order = append(order, "any2") })
	c.Listen(kcontext.OnProjectInit, func(any) { order = append(order, "specific2") })

	c.Trigger(context.Background(), kcontext.OnProjectInit, nil)

	require.Equal(t, []string{"any1", "any2", "specific1", "specific2"}, order)
}

func TestTriggerOnlyInvokesListenersForItsOwnEventType(t *testing.T) {
	t.Parallel()

	c := krakentest.NewContext(t)
	var fired bool
	c.Listen(kcontext.OnProjectFinalized, func(any) { fired = true })

	c.Trigger(context.Background(), kcontext.OnProjectInit, nil)
	require.False(t, fired)

	c.Trigger(context.Background(), kcontext.OnProjectFinalized, nil)
	require.True(t, fired)
}

func TestListenerPanicPropagates(t *testing.T) {
	t.Parallel()

	c := krakentest.NewContext(t)
	c.Listen(kcontext.OnProjectInit, func(any) { panic("boom") })

	require.Panics(t, func() {
		c.Trigger(context.Background(), kcontext.OnProjectInit, nil)
	})
}

func TestFinalizeIsIdempotentAndTraversesPreOrder(t *testing.T) {
	t.Parallel()

	c := krakentest.NewContext(t)
	builtTask, err := c.Root().Do("a", "", func(proj *project.Project, name string) (task.Task, error) {
		return task.New(proj, name, nil), nil
	})
	require.NoError(t, err)

	var events []string
	c.Listen(kcontext.OnProjectBeginFinalize, func(any) { events = append(events, "begin") })
	c.Listen(kcontext.OnProjectFinalized, func(any) { events = append(events, "finalized") })
	c.Listen(kcontext.OnContextFinalized, func(any) { events = append(events, "context_finalized") })

	c.Finalize(context.Background())
	require.True(t, c.Finalized())
	require.True(t, builtTask.Finalized())
	require.Equal(t, []string{"begin", "finalized", "context_finalized"}, events)

	events = nil
	c.Finalize(context.Background())
	require.Empty(t, events, "a second Finalize call must no-op")
}

func TestCurrentProjectStackPushPopAcrossScopeIncludingFailure(t *testing.T) {
	t.Parallel()

	c := krakentest.NewContext(t)
	require.Nil(t, c.CurrentProject())

	sub, err := c.Root().Subproject("sub", t.TempDir())
	require.NoError(t, err)

	err = c.WithProjectScope(sub, func() error {
		require.Equal(t, sub, c.CurrentProject())
		return nil
	})
	require.NoError(t, err)
	require.Nil(t, c.CurrentProject(), "scope must pop after a successful body")

	errBoom := errors.New("boom")
	err = c.WithProjectScope(sub, func() error {
		return errBoom
	})
	require.Equal(t, errBoom, err)
	require.Nil(t, c.CurrentProject(), "scope must pop even when the body fails")
}

func TestExecuteWithNilTargetsRunsDefaultTasks(t *testing.T) {
	t.Parallel()

	c := krakentest.NewContext(t)
	var ran bool
	var mu sync.Mutex
	_, err := c.Root().Do("build", "", func(proj *project.Project, name string) (task.Task, error) {
		ordinary := task.New(proj, name, func(context.Context, *task.Ordinary) task.Result {
			mu.Lock()
			ran = true
			mu.Unlock()
			return task.Result{Status: task.StatusSucceeded}
		})
		ordinary.SetDefault(true)
		return ordinary, nil
	})
	require.NoError(t, err)

	err = c.Execute(context.Background(), nil)
	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	require.True(t, ran)
}

func TestExecuteWithSelectorStringsResolvesAndRuns(t *testing.T) {
	t.Parallel()

	c := krakentest.NewContext(t)
	_, err := c.Root().Do("build", "", func(proj *project.Project, name string) (task.Task, error) {
		return task.New(proj, name, func(context.Context, *task.Ordinary) task.Result {
			return task.Result{Status: task.StatusSucceeded}
		}), nil
	})
	require.NoError(t, err)

	err = c.Execute(context.Background(), []string{"build"})
	require.NoError(t, err)
}

func TestExecuteReturnsBuildErrorOnTaskFailure(t *testing.T) {
	t.Parallel()

	c := krakentest.NewContext(t)
	_, err := c.Root().Do("build", "", func(proj *project.Project, name string) (task.Task, error) {
		return task.New(proj, name, func(context.Context, *task.Ordinary) task.Result {
			return task.Result{Status: task.StatusFailed, Message: "boom"}
		}), nil
	})
	require.NoError(t, err)

	err = c.Execute(context.Background(), []string{"build"})
	require.Error(t, err)
}
