// Package kraken is the one blessed import surface for this module: every
// type a build script or host application needs — Context, Project, Task
// and its GroupTask/VoidTask/BackgroundTask variants, Property, Selector,
// TaskGraph — is re-exported here as a type alias over its implementation
// under internal/kraken/*. This mirrors the original kraken.core package's
// api module, which keeps kraken.core.task, kraken.core.project, and
// friends as deprecated-but-stable re-export shims over kraken.core.system
// while the real implementation lives underneath. Application code and
// build scripts should depend on this package, never on internal/kraken/*
// directly.
//
// A minimal build script looks like:
//
//	ctx, err := kraken.NewContext(kraken.ContextOptions{BuildDirectory: "."})
//	if err != nil {
//		return err
//	}
//	_, err = ctx.Root().Do("compile", "build", func(p *kraken.Project, name string) (kraken.Task, error) {
//		return kraken.NewTask(p, name, runBuild), nil
//	})
//	if err != nil {
//		return err
//	}
//	return ctx.Execute(context.Background(), []string{"build"})
package kraken
