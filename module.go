// Package zeros implements the ZerOS kernel bootloader: the component that takes
// a static declaration of kernel modules and their dependencies, orders them,
// loads them layer by layer, and verifies the booted system with a self-check.
//
// The bootloader never depends on what a module does. It only needs:
//   - a Declaration of module ids and the ids they depend on
//   - a ScriptSource that makes a module's code active exactly once
//   - optionally, a SignalBus that modules publish to once they are ready
//   - optionally, a Registry used for best-effort bookkeeping and self-checks
//
// Basic usage:
//
//	decl := zeros.Declaration{
//		{ID: "kernel/core", Dependencies: nil},
//		{ID: "kernel/fs", Dependencies: []string{"kernel/core"}},
//	}
//	boot, err := zeros.NewBootloader(
//		zeros.WithLogger(logger),
//		zeros.WithDeclaration(decl),
//		zeros.WithScriptSource(catalog),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	report, err := boot.Boot(ctx)
package zeros

import (
	"fmt"
	"slices"
)

// ModuleDescriptor declares a single kernel module.
//
// ID is treated as an opaque key. In practice it is a path-like string such as
// "kernel/filesystem/disk" but the bootloader attaches no meaning to its shape.
//
// Dependencies lists the ids this module requires before it may be loaded. An id
// that is referenced here but never declared with its own descriptor is treated as
// an externally supplied module that is always available: it is a vertex in the
// graph but it is never scheduled for loading.
type ModuleDescriptor struct {
	ID           string   `json:"id" yaml:"id" toml:"id"`
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty" toml:"dependencies,omitempty"`
}

// Declaration is the ordered, static list of modules to boot.
// Order matters only for determinism: it fixes the DFS root order and
// therefore the exact load order produced for a given graph.
type Declaration []ModuleDescriptor

// DeclarationFromMap builds a Declaration from a plain map. Because Go maps are
// unordered, keys are sorted to keep the resulting load order deterministic.
func DeclarationFromMap(m map[string][]string) Declaration {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	decl := make(Declaration, 0, len(keys))
	for _, k := range keys {
		decl = append(decl, ModuleDescriptor{ID: k, Dependencies: slices.Clone(m[k])})
	}
	return decl
}

// IDs returns the declared module ids in declaration order.
func (d Declaration) IDs() []string {
	ids := make([]string, len(d))
	for i, m := range d {
		ids[i] = m.ID
	}
	return ids
}

// DependencyGraph is the immutable view of a Declaration used by one boot attempt.
type DependencyGraph struct {
	modules  map[string]ModuleDescriptor
	declared []string
	vertices []string
	index    map[string]int
}

// NewDependencyGraph validates a declaration and builds its graph.
// Module ids must be non-empty and declared at most once.
func NewDependencyGraph(decl Declaration) (*DependencyGraph, error) {
	g := &DependencyGraph{
		modules:  make(map[string]ModuleDescriptor, len(decl)),
		declared: make([]string, 0, len(decl)),
		index:    make(map[string]int),
	}

	for _, m := range decl {
		if m.ID == "" {
			return nil, ErrEmptyModuleID
		}
		if _, exists := g.modules[m.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateModule, m.ID)
		}
		for _, dep := range m.Dependencies {
			if dep == "" {
				return nil, fmt.Errorf("%w: dependency of %s", ErrEmptyModuleID, m.ID)
			}
		}
		g.modules[m.ID] = ModuleDescriptor{ID: m.ID, Dependencies: slices.Clone(m.Dependencies)}
		g.declared = append(g.declared, m.ID)
	}

	// Full vertex set in first-seen order: each declared key, then its dependencies.
	for _, id := range g.declared {
		g.addVertex(id)
		for _, dep := range g.modules[id].Dependencies {
			g.addVertex(dep)
		}
	}

	return g, nil
}

func (g *DependencyGraph) addVertex(id string) {
	if _, ok := g.index[id]; ok {
		return
	}
	g.index[id] = len(g.vertices)
	g.vertices = append(g.vertices, id)
}

// Declared reports whether id was declared with its own descriptor.
func (g *DependencyGraph) Declared(id string) bool {
	_, ok := g.modules[id]
	return ok
}

// Dependencies returns the declared dependencies of id. Undeclared vertices have none.
func (g *DependencyGraph) Dependencies(id string) []string {
	return slices.Clone(g.modules[id].Dependencies)
}

// Modules returns the declared ids in declaration order.
func (g *DependencyGraph) Modules() []string {
	return slices.Clone(g.declared)
}

// Vertices returns the full vertex set: declared ids plus every referenced id.
func (g *DependencyGraph) Vertices() []string {
	return slices.Clone(g.vertices)
}

// External returns the vertices that are referenced as dependencies but never
// declared. These are assumed to be supplied by the host before boot.
func (g *DependencyGraph) External() []string {
	var ext []string
	for _, v := range g.vertices {
		if !g.Declared(v) {
			ext = append(ext, v)
		}
	}
	return ext
}

// Len returns the number of declared modules.
func (g *DependencyGraph) Len() int {
	return len(g.declared)
}
