package zeros

// LoadOrder is a topological ordering of declared module ids: every declared
// dependency of a module appears before the module itself.
type LoadOrder []string

// vertexState tracks DFS progress per vertex.
type vertexState uint8

const (
	unvisited vertexState = iota
	visiting
	done
)

// dfsFrame is one entry of the explicit DFS stack: the vertex being expanded and
// the index of the next dependency to look at.
type dfsFrame struct {
	vertex int
	next   int
}

// Sort returns a deterministic topological order of the graph's declared modules.
//
// The traversal is a post-order depth-first search rooted at each vertex of the
// full vertex set in first-seen order. Only declared modules are emitted;
// referenced-only ids are treated as already satisfied. Reaching a vertex that is
// still on the DFS stack fails with a *CycleDetectedError.
func Sort(g *DependencyGraph) (LoadOrder, error) {
	state := make([]vertexState, len(g.vertices))
	order := make(LoadOrder, 0, len(g.declared))
	stack := make([]dfsFrame, 0, len(g.vertices))

	for root := range g.vertices {
		if state[root] != unvisited {
			continue
		}

		state[root] = visiting
		stack = append(stack, dfsFrame{vertex: root})

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			id := g.vertices[top.vertex]
			deps := g.modules[id].Dependencies

			if top.next < len(deps) {
				dep := deps[top.next]
				top.next++

				if !g.Declared(dep) {
					state[g.index[dep]] = done
					continue
				}

				di := g.index[dep]
				switch state[di] {
				case visiting:
					return nil, &CycleDetectedError{Module: dep, Path: cyclePath(g, stack, di)}
				case unvisited:
					state[di] = visiting
					stack = append(stack, dfsFrame{vertex: di})
				case done:
				}
				continue
			}

			state[top.vertex] = done
			stack = stack[:len(stack)-1]
			if g.Declared(id) {
				order = append(order, id)
			}
		}
	}

	return order, nil
}

// cyclePath renders the stack slice from the re-entered vertex to the top,
// closed by the re-entered vertex again.
func cyclePath(g *DependencyGraph, stack []dfsFrame, reentered int) []string {
	start := 0
	for i, f := range stack {
		if f.vertex == reentered {
			start = i
			break
		}
	}
	path := make([]string, 0, len(stack)-start+1)
	for _, f := range stack[start:] {
		path = append(path, g.vertices[f.vertex])
	}
	return append(path, g.vertices[reentered])
}

// Position returns the index of id within the order, or -1.
func (o LoadOrder) Position(id string) int {
	for i, v := range o {
		if v == id {
			return i
		}
	}
	return -1
}
