// Package project implements Project: a named namespace of tasks and
// sub-projects sharing one member namespace, seeded on construction with the
// canonical default group chain, and able to resolve selector strings
// against its own subtree.
package project

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/alexisbeaulieu97/kraken/internal/kraken/names"
	"github.com/alexisbeaulieu97/kraken/internal/kraken/task"
	krakenerrors "github.com/alexisbeaulieu97/kraken/pkg/errors"
)

// member is either a *Project or a task.Task; the shared namespace (spec
// §3: "Members share a single namespace") is enforced by Project.registerLocked.
type member struct {
	project *Project
	task    task.Task
}

// Project is a named, directory-rooted namespace of tasks and sub-projects.
type Project struct {
	name      string
	directory string
	parent    *Project

	mu       sync.Mutex
	order    []string
	members  map[string]member
	finalize bool
}

// New constructs a root project (parent == nil) or a sub-project. Every new
// project is immediately seeded with the canonical default group chain (see
// seedDefaultGroups).
func New(name, directory string, parent *Project) (*Project, error) {
	if parent != nil {
		if err := names.ValidateIdentifier(name); err != nil {
			return nil, err
		}
	}
	p := &Project{
		name:      name,
		directory: directory,
		parent:    parent,
		members:   make(map[string]member),
	}
	p.seedDefaultGroups()
	return p, nil
}

// Name returns the project's own (unqualified) name. The root project's
// name is the empty string.
func (p *Project) Name() string { return p.name }

// Directory returns the filesystem directory this project is rooted at.
func (p *Project) Directory() string { return p.directory }

// Parent returns the enclosing project, or nil for the root.
func (p *Project) Parent() *Project { return p.parent }

// Path renders the project's address: ":" for root, ":"+dotted-colon chain
// otherwise.
func (p *Project) Path() string {
	var segments []string
	for cur := p; cur != nil && cur.parent != nil; cur = cur.parent {
		segments = append([]string{cur.name}, segments...)
	}
	if len(segments) == 0 {
		return ":"
	}
	return ":" + strings.Join(segments, ":")
}

// seedDefaultGroups wires the canonical chain: apply←fmt (fmt strict-after
// apply), check←lint (lint strict-after check), build (soft-after lint),
// test (soft-after build), integrationTest (soft-after test), publish
// (soft-after integrationTest), deploy (soft-after publish). check, lint,
// and test default to Default()==true; the rest do not.
func (p *Project) seedDefaultGroups() {
	apply := p.getOrCreateGroupLocked("apply", false)
	fmtGroup := p.getOrCreateGroupLocked("fmt", false)
	check := p.getOrCreateGroupLocked("check", true)
	lint := p.getOrCreateGroupLocked("lint", true)
	build := p.getOrCreateGroupLocked("build", false)
	test := p.getOrCreateGroupLocked("test", true)
	integrationTest := p.getOrCreateGroupLocked("integrationTest", false)
	publish := p.getOrCreateGroupLocked("publish", false)
	deploy := p.getOrCreateGroupLocked("deploy", false)

	fmtGroup.AddRelationship(task.Relationship{Other: apply, Strict: true, Inverse: false})
	lint.AddRelationship(task.Relationship{Other: check, Strict: true, Inverse: false})
	build.AddRelationship(task.Relationship{Other: lint, Strict: false, Inverse: false})
	test.AddRelationship(task.Relationship{Other: build, Strict: false, Inverse: false})
	integrationTest.AddRelationship(task.Relationship{Other: test, Strict: false, Inverse: false})
	publish.AddRelationship(task.Relationship{Other: integrationTest, Strict: false, Inverse: false})
	deploy.AddRelationship(task.Relationship{Other: publish, Strict: false, Inverse: false})
}

func (p *Project) getOrCreateGroupLocked(name string, dflt bool) *task.Group {
	if m, ok := p.members[name]; ok && m.task != nil {
		if g, ok := m.task.(*task.Group); ok {
			return g
		}
	}
	g := task.NewGroup(p, name)
	g.SetDefault(dflt)
	p.registerLocked(name, member{task: g})
	return g
}

func (p *Project) registerLocked(name string, m member) {
	if _, exists := p.members[name]; !exists {
		p.order = append(p.order, name)
	}
	p.members[name] = m
}

// Group gets-or-creates a GroupTask named name, optionally overwriting its
// Default/Description.
func (p *Project) Group(name string, dflt *bool, description *string) (*task.Group, error) {
	if err := names.ValidateIdentifier(name); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	g := p.getOrCreateGroupLocked(name, false)
	if dflt != nil {
		g.SetDefault(*dflt)
	}
	if description != nil {
		g.SetDescription(*description)
	}
	return g, nil
}

// Do constructs a task via make, registers it under name (optionally adding
// it to group if groupName is non-empty), and returns it. make receives the
// fully-constructed *Project so it can attach properties to its result with
// the project's own tasks as owners.
func (p *Project) Do(name string, groupName string, make func(proj *Project, name string) (task.Task, error)) (task.Task, error) {
	if err := names.ValidateIdentifier(name); err != nil {
		return nil, err
	}
	t, err := make(p, name)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.registerLocked(name, member{task: t})
	p.mu.Unlock()

	if groupName != "" {
		g, err := p.Group(groupName, nil, nil)
		if err != nil {
			return nil, err
		}
		g.AddMember(t)
	}
	return t, nil
}

// Subproject gets-or-creates a child project named name, rooted at
// directory. This is the ambient-stack Context/Project.current() companion
// the original Python source exposes as Project.subproject().
func (p *Project) Subproject(name, directory string) (*Project, error) {
	p.mu.Lock()
	if m, ok := p.members[name]; ok {
		p.mu.Unlock()
		if m.project != nil {
			return m.project, nil
		}
		return nil, fmt.Errorf("member %q of project %q is a task, not a project", name, p.Path())
	}
	p.mu.Unlock()

	child, err := New(name, directory, p)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.registerLocked(name, member{project: child})
	p.mu.Unlock()
	return child, nil
}

// Members returns the project's direct members (tasks and sub-projects) in
// registration order.
func (p *Project) Members() []any {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]any, 0, len(p.order))
	for _, name := range p.order {
		m := p.members[name]
		if m.project != nil {
			out = append(out, m.project)
		} else {
			out = append(out, m.task)
		}
	}
	return out
}

// Tasks returns the project's own direct tasks (not recursing into
// sub-projects), in registration order.
func (p *Project) Tasks() []task.Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []task.Task
	for _, name := range p.order {
		if m := p.members[name]; m.task != nil {
			out = append(out, m.task)
		}
	}
	return out
}

// Subprojects returns the project's direct sub-projects, in registration
// order.
func (p *Project) Subprojects() []*Project {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*Project
	for _, name := range p.order {
		if m := p.members[name]; m.project != nil {
			out = append(out, m.project)
		}
	}
	return out
}

// DefaultTasks returns every task in the subtree rooted at p whose
// Default() is true.
func (p *Project) DefaultTasks() []task.Task {
	var out []task.Task
	p.walk(func(t task.Task) {
		if t.Default() {
			out = append(out, t)
		}
	})
	return out
}

func (p *Project) walk(visit func(task.Task)) {
	for _, t := range p.Tasks() {
		visit(t)
	}
	for _, sub := range p.Subprojects() {
		sub.walk(visit)
	}
}

// Root walks up to the root project.
func (p *Project) Root() *Project {
	cur := p
	for cur.parent != nil {
		cur = cur.parent
	}
	return cur
}

// ResolveTasks resolves a selector string against p (the "calling" project
// for relative selectors). Absolute selectors are resolved relative to the
// root project. A relative selector with an empty project path and a
// non-empty name matches every task of that name in the subtree rooted at p;
// an absolute selector with an empty project path (":name") matches only the
// root project's own task of that name.
func (p *Project) ResolveTasks(selector string) ([]task.Task, error) {
	sel, err := names.ParseSelector(selector)
	if err != nil {
		return nil, err
	}

	base := p
	subtreeMatch := len(sel.ProjectPath) == 0 && !sel.Absolute
	if sel.Absolute {
		base = p.Root()
	}

	target := base
	for _, segment := range sel.ProjectPath {
		next, err := target.findSubproject(segment)
		if err != nil {
			if sel.Optional {
				return nil, nil
			}
			return nil, err
		}
		target = next
	}

	if sel.Name == "" {
		return nil, nil
	}

	var matches []task.Task
	if subtreeMatch {
		target.walk(func(t task.Task) {
			if t.Name() == sel.Name {
				matches = append(matches, t)
			}
		})
	} else {
		t, ok := target.findTask(sel.Name)
		if ok {
			matches = append(matches, t)
		}
	}

	if len(matches) == 0 && !sel.Optional {
		return nil, krakenerrors.NewNoSuchTaskError(selector)
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].Path() < matches[j].Path() })
	return matches, nil
}

func (p *Project) findSubproject(name string) (*Project, error) {
	p.mu.Lock()
	m, ok := p.members[name]
	p.mu.Unlock()
	if !ok || m.project == nil {
		return nil, krakenerrors.NewNoSuchProjectError(name)
	}
	return m.project, nil
}

func (p *Project) findTask(name string) (task.Task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.members[name]
	if !ok || m.task == nil {
		return nil, false
	}
	return m.task, true
}
