package graph

import (
	"sort"

	"gopkg.in/yaml.v3"
)

// SnapshotNode is one task's entry in a Snapshot dump.
type SnapshotNode struct {
	Path   string   `yaml:"path"`
	Status string   `yaml:"status"`
	Target bool     `yaml:"target"`
	Edges  []string `yaml:"depends_on,omitempty"`
}

// Snapshot is a YAML-marshalable dump of a TaskGraph's current node set,
// edges, and status — used by tests and debug tooling, not the front-end
// "visualize" output spec.md places out of scope.
type Snapshot struct {
	Nodes []SnapshotNode `yaml:"nodes"`
}

// Snapshot renders the graph's current state as a deterministic, sorted
// dump suitable for YAML marshaling.
func (g *TaskGraph) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	paths := make([]string, 0, len(g.nodes))
	for p := range g.nodes {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	snap := Snapshot{Nodes: make([]SnapshotNode, 0, len(paths))}
	for _, p := range paths {
		status := "PENDING"
		if s, ok := g.status[p]; ok {
			status = s.String()
		}

		var deps []string
		for pred := range g.rev[p] {
			deps = append(deps, pred)
		}
		sort.Strings(deps)

		snap.Nodes = append(snap.Nodes, SnapshotNode{
			Path:   p,
			Status: status,
			Target: g.targets[p],
			Edges:  deps,
		})
	}
	return snap
}

// YAML renders the snapshot as YAML, the serialized form tests and any
// external dump tooling consume.
func (s Snapshot) YAML() ([]byte, error) {
	return yaml.Marshal(s)
}
