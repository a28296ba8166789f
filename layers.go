package zeros

import "fmt"

// LoadLayer is a set of modules whose scheduled dependencies all live in
// earlier layers. Modules within a layer are loaded concurrently.
type LoadLayer []string

// Partition groups a load order into layers using the earliest-possible-layer rule:
// a module with no scheduled dependencies goes to layer 0, otherwise to one past the
// deepest layer of its scheduled dependencies. Dependencies that are not part of the
// order are externally available and do not push the layer index up.
//
// The order must be topologically sorted; a module listed before one of its
// scheduled dependencies yields ErrUnsortedOrder.
func Partition(order LoadOrder, g *DependencyGraph) ([]LoadLayer, error) {
	scheduled := make(map[string]bool, len(order))
	for _, id := range order {
		scheduled[id] = true
	}

	layerOf := make(map[string]int, len(order))
	var layers []LoadLayer

	for _, id := range order {
		idx := 0
		for _, dep := range g.Dependencies(id) {
			if !scheduled[dep] {
				continue
			}
			depLayer, placed := layerOf[dep]
			if !placed {
				return nil, fmt.Errorf("%w: %s before %s", ErrUnsortedOrder, id, dep)
			}
			if depLayer+1 > idx {
				idx = depLayer + 1
			}
		}

		layerOf[id] = idx
		for len(layers) <= idx {
			layers = append(layers, LoadLayer{})
		}
		layers[idx] = append(layers[idx], id)
	}

	return layers, nil
}

// Plan is a fully resolved boot plan: the order and its layers.
type Plan struct {
	Order  LoadOrder
	Layers []LoadLayer
}

// PlanDeclaration builds the graph, sorts it and partitions it in one step.
func PlanDeclaration(decl Declaration) (*DependencyGraph, *Plan, error) {
	g, err := NewDependencyGraph(decl)
	if err != nil {
		return nil, nil, err
	}
	order, err := Sort(g)
	if err != nil {
		return nil, nil, err
	}
	layers, err := Partition(order, g)
	if err != nil {
		return nil, nil, err
	}
	return g, &Plan{Order: order, Layers: layers}, nil
}
