// Package errors defines the error taxonomy shared by every Kraken core
// package. Each kind is a small struct with a constructor, an Error()
// message, and an Unwrap() so callers can use errors.As/errors.Is instead of
// string matching.
package errors

import (
	"fmt"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// EmptyValueError is raised by Property.Value on an unset, non-optional
// property.
type EmptyValueError struct {
	Owner string
	Name  string
}

// NewEmptyValueError constructs an EmptyValueError for the named property.
func NewEmptyValueError(owner, name string) error {
	return &EmptyValueError{Owner: owner, Name: name}
}

func (e *EmptyValueError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("property %q of %q has no value", e.Name, e.Owner)
}

// FinalizedError is raised by Property.Set after the owning task has been
// finalized.
type FinalizedError struct {
	Owner string
	Name  string
}

// NewFinalizedError constructs a FinalizedError for the named property.
func NewFinalizedError(owner, name string) error {
	return &FinalizedError{Owner: owner, Name: name}
}

func (e *FinalizedError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("property %q of %q is finalized and cannot be set", e.Name, e.Owner)
}

// NoSuchProjectError is raised when a selector references a project path
// that does not exist.
type NoSuchProjectError struct {
	Path string
}

// NewNoSuchProjectError constructs a NoSuchProjectError for the given path.
func NewNoSuchProjectError(path string) error {
	return &NoSuchProjectError{Path: path}
}

func (e *NoSuchProjectError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("no such project: %q", e.Path)
}

// NoSuchTaskError is raised when a non-optional selector matches no task.
type NoSuchTaskError struct {
	Selector string
}

// NewNoSuchTaskError constructs a NoSuchTaskError for the given selector.
func NewNoSuchTaskError(selector string) error {
	return &NoSuchTaskError{Selector: selector}
}

func (e *NoSuchTaskError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("no such task: %q", e.Selector)
}

// CycleError is raised when TaskGraph construction detects a cycle. Witness
// holds one offending cycle as a sequence of task paths, the first element
// repeated as the last to close the loop.
type CycleError struct {
	Witness []string
}

// NewCycleError constructs a CycleError carrying one witness cycle.
func NewCycleError(witness []string) error {
	return &CycleError{Witness: append([]string(nil), witness...)}
}

func (e *CycleError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("cycle detected in task graph: %s", strings.Join(e.Witness, " -> "))
}

// ProjectLoaderError is raised by an external script runner when a build
// script fails to load. The core never constructs this itself; it exists so
// script runners can report failures using the same taxonomy as the rest of
// the engine.
type ProjectLoaderError struct {
	ProjectPath string
	Err         error
}

// NewProjectLoaderError constructs a ProjectLoaderError for the given project path.
func NewProjectLoaderError(projectPath string, err error) error {
	return &ProjectLoaderError{ProjectPath: projectPath, Err: err}
}

func (e *ProjectLoaderError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("failed to load project %q: %v", e.ProjectPath, e.Err)
}

// Unwrap exposes the underlying error.
func (e *ProjectLoaderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// BuildError is returned by Context.Execute when one or more tasks failed.
// It aggregates the individual causes (keyed by task path) behind a
// multierror so callers can still errors.As/errors.Is into a specific
// task's failure, while Error() always renders the exact summary format
// mandated for the surrounding CLI: `task "X" failed` for one failure, or
// `tasks "X", "Y" failed` (task paths sorted) for more than one.
type BuildError struct {
	Failed map[string]error
}

// NewBuildError constructs a BuildError from a map of task path to cause.
func NewBuildError(failed map[string]error) error {
	if len(failed) == 0 {
		return nil
	}
	copied := make(map[string]error, len(failed))
	for path, err := range failed {
		copied[path] = err
	}
	return &BuildError{Failed: copied}
}

func (e *BuildError) Error() string {
	if e == nil || len(e.Failed) == 0 {
		return ""
	}
	paths := make([]string, 0, len(e.Failed))
	for path := range e.Failed {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	quoted := make([]string, len(paths))
	for i, path := range paths {
		quoted[i] = fmt.Sprintf("%q", path)
	}

	if len(quoted) == 1 {
		return fmt.Sprintf("task %s failed", quoted[0])
	}
	return fmt.Sprintf("tasks %s failed", strings.Join(quoted, ", "))
}

// Unwrap exposes every failure cause as a single multierror so that
// errors.As can reach a wrapped cause of any one failed task.
func (e *BuildError) Unwrap() error {
	if e == nil || len(e.Failed) == 0 {
		return nil
	}
	paths := make([]string, 0, len(e.Failed))
	for path := range e.Failed {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	var merr *multierror.Error
	for _, path := range paths {
		merr = multierror.Append(merr, fmt.Errorf("%s: %w", path, e.Failed[path]))
	}
	return merr.ErrorOrNil()
}

// FailedPaths returns the sorted set of task paths that failed.
func (e *BuildError) FailedPaths() []string {
	if e == nil {
		return nil
	}
	paths := make([]string, 0, len(e.Failed))
	for path := range e.Failed {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
