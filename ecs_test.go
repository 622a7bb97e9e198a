package lumen

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEcs_MakeEcs(t *testing.T) {
	ecs := MakeEcs()

	assert.Empty(t, ecs.archetypes)
	assert.Empty(t, ecs.entityIndex)
	assert.Equal(t, EntityId(0), ecs.entityIdCounter)
	assert.Empty(t, ecs.componentTypes)
}

func TestEcs_AddEntity(t *testing.T) {
	type TestComponent struct{ x string }
	ecs := MakeEcs()

	entityId := ecs.addEntity()
	entityId2 := ecs.addEntity(TestComponent{x: "test"})

	require.True(t, ecs.hasEntity(entityId))
	require.True(t, ecs.hasEntity(entityId2))
	assert.NotEqual(t, ecs.entityIndex[entityId], ecs.entityIndex[entityId2],
		"entities with different components ended up in the same archetype")
	assert.Equal(t, []any{TestComponent{x: "test"}}, ecs.components(entityId2))
}

func TestEcs_AddComponents(t *testing.T) {
	type TestComponent0 struct{ a int }
	type TestComponent1 struct{ x string }
	type TestComponent2 struct{ y string }
	type TestComponent3 struct{ z string }

	ecs := MakeEcs()
	entityId := ecs.addEntity(TestComponent0{a: 1337})
	ecs.addComponents(entityId, TestComponent1{x: "test"}, TestComponent2{y: "hello"})
	ecs.addComponents(entityId, &TestComponent3{z: "test-2"})

	arch, ok := ecs.archetypeOf(entityId)
	require.True(t, ok)
	assert.Len(t, arch.columns, 4)
	assert.ElementsMatch(t, []any{
		TestComponent0{a: 1337},
		TestComponent1{x: "test"},
		TestComponent2{y: "hello"},
		TestComponent3{z: "test-2"},
	}, ecs.components(entityId))
}

func TestEcs_AddExistingComponentOverwrites(t *testing.T) {
	type Position struct{ X float32 }
	ecs := MakeEcs()
	id := ecs.addEntity(Position{X: 1})
	ecs.addComponents(id, Position{X: 2})

	assert.Equal(t, []any{Position{X: 2}}, ecs.components(id))
}

func TestEcs_RemoveComponents(t *testing.T) {
	type Position struct{ X float32 }
	type Velocity struct{ V float32 }
	ecs := MakeEcs()
	id := ecs.addEntity(Position{X: 1}, Velocity{V: 3})
	other := ecs.addEntity(Position{X: 9}, Velocity{V: 8})

	ecs.removeComponents(id, Velocity{})

	assert.Equal(t, []any{Position{X: 1}}, ecs.components(id))
	assert.ElementsMatch(t, []any{Position{X: 9}, Velocity{V: 8}}, ecs.components(other))
}

func TestEcs_AddInvalidComponentShouldPanic(t *testing.T) {
	ecs := MakeEcs()
	assert.Panics(t, func() { ecs.addEntity(123) })
}

func TestEcs_ComponentRegistration(t *testing.T) {
	type Position struct{ x, y float64 }

	ecs := MakeEcs()
	id1 := ecs.getComponentId(reflect.TypeOf(Position{}))
	id2 := ecs.getComponentId(reflect.TypeOf(Position{}))

	assert.Equal(t, id1, id2)
	assert.Equal(t, reflect.TypeOf(Position{}), ecs.getComponentType(id1))
	assert.Panics(t, func() { ecs.getComponentType(99) })
}

func TestEcs_ArchetypeKeyExtension(t *testing.T) {
	assert.Equal(t, archetypeKey{1, 2, 3}, dedupAndSortArchetypeKey(archetypeKey{3, 1, 2, 1, 3}))
	assert.Equal(t, archetypeKey{1, 2, 3, 4}, combineArchetypeKeys(archetypeKey{1, 2, 3}, archetypeKey{4, 3, 2, 1}))
	assert.Equal(t, getArchetypeId(archetypeKey{1, 2}), getArchetypeId(dedupAndSortArchetypeKey(archetypeKey{2, 1})))
}

func TestEcs_RemoveEntity(t *testing.T) {
	type Position struct{ X, Y float64 }

	ecs := MakeEcs()
	id := ecs.addEntity(Position{1, 2})
	ecs.removeEntity(id)
	ecs.removeEntity(id)

	assert.False(t, ecs.hasEntity(id))
	assert.Nil(t, ecs.components(id))
}

func TestEcs_RecycledRowsAreReused(t *testing.T) {
	type Position struct{ X float32 }
	ecs := MakeEcs()

	a := ecs.addEntity(Position{X: 1})
	b := ecs.addEntity(Position{X: 2})
	arch, _ := ecs.archetypeOf(a)
	rowA := arch.entities[a]

	ecs.removeEntity(a)
	assert.Equal(t, Position{}, columnGet(arch.columns[typeId[Position](&ecs)], rowA).Interface(),
		"recycled rows are zeroed")

	c := ecs.addEntity(Position{X: 3})
	assert.Equal(t, rowA, arch.entities[c])
	assert.Equal(t, 2, columnLen(arch.columns[typeId[Position](&ecs)]))
	assert.Equal(t, []any{Position{X: 2}}, ecs.components(b))
	assert.Equal(t, []any{Position{X: 3}}, ecs.components(c))
}
