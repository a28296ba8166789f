package zeros

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartition_Diamond(t *testing.T) {
	_, plan := mustPlan(t, diamond())
	assert.Equal(t, []LoadLayer{{"A"}, {"B", "C"}, {"D"}}, plan.Layers)
}

func TestPartition_ExternalDependencyIsLayerZero(t *testing.T) {
	_, plan := mustPlan(t, Declaration{{ID: "M", Dependencies: []string{"N"}}})
	assert.Equal(t, []LoadLayer{{"M"}}, plan.Layers)
}

func TestPartition_EarliestLayer(t *testing.T) {
	// E only needs A, so it joins layer 1 even though it is declared last.
	decl := append(diamond(), ModuleDescriptor{ID: "E", Dependencies: []string{"A", "external"}})
	_, plan := mustPlan(t, decl)
	assert.Equal(t, []LoadLayer{{"A"}, {"B", "C", "E"}, {"D"}}, plan.Layers)
}

func TestPartition_Soundness(t *testing.T) {
	decl := Declaration{
		{ID: "app", Dependencies: []string{"gui", "fs"}},
		{ID: "gui", Dependencies: []string{"core", "memory"}},
		{ID: "fs", Dependencies: []string{"core", "host/storage"}},
		{ID: "memory", Dependencies: []string{"core"}},
		{ID: "core"},
		{ID: "clock"},
	}
	g, plan := mustPlan(t, decl)

	layerOf := map[string]int{}
	for i, layer := range plan.Layers {
		for _, id := range layer {
			layerOf[id] = i
		}
	}
	for id, k := range layerOf {
		scheduledDeps := 0
		for _, dep := range g.Dependencies(id) {
			depLayer, ok := layerOf[dep]
			if !ok {
				continue
			}
			scheduledDeps++
			assert.Less(t, depLayer, k, "%s (layer %d) depends on %s (layer %d)", id, k, dep, depLayer)
		}
		if k == 0 {
			assert.Zero(t, scheduledDeps, "%s is in layer 0", id)
		} else {
			assert.NotZero(t, scheduledDeps, "%s has no scheduled deps but is in layer %d", id, k)
		}
	}
	assert.ElementsMatch(t, []string{"core", "clock"}, plan.Layers[0])
}

func TestPartition_UnsortedOrder(t *testing.T) {
	g, err := NewDependencyGraph(diamond())
	require.NoError(t, err)

	_, err = Partition(LoadOrder{"B", "A", "C", "D"}, g)
	assert.ErrorIs(t, err, ErrUnsortedOrder)
}

func TestPartition_Empty(t *testing.T) {
	g, plan := mustPlan(t, nil)
	assert.Zero(t, g.Len())
	assert.Empty(t, plan.Order)
	assert.Empty(t, plan.Layers)
}

func TestPlanDeclaration_Cycle(t *testing.T) {
	_, plan, err := PlanDeclaration(Declaration{
		{ID: "A", Dependencies: []string{"B"}},
		{ID: "B", Dependencies: []string{"A"}},
	})
	assert.Nil(t, plan)
	assert.True(t, IsCycleDetected(err))
}
