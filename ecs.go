package lumen

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"reflect"
	"slices"
	"sync"
)

type EntityId uint64
type archetypeId uint64
type archetypeKey []componentId
type componentId uint32
type row int
type set[T comparable] = map[T]struct{}

// Ecs is an archetype store: entities with the same component set share typed columns.
type Ecs struct {
	archetypes  map[archetypeId]*archetype
	entityIndex map[EntityId]archetypeId

	idLock          sync.Mutex
	entityIdCounter EntityId

	componentLock  sync.Mutex
	componentIds   map[reflect.Type]componentId
	componentTypes []reflect.Type
}

func MakeEcs() Ecs {
	return Ecs{
		archetypes:   make(map[archetypeId]*archetype),
		entityIndex:  make(map[EntityId]archetypeId),
		componentIds: make(map[reflect.Type]componentId),
	}
}

type archetype struct {
	id       archetypeId
	key      archetypeKey
	entities map[EntityId]row
	// columns holds one []T per component, indexed by row.
	columns  map[componentId]any
	rows     int
	recycled []row
}

func (a *archetype) has(id componentId) bool {
	_, ok := a.columns[id]
	return ok
}

func (ecs *Ecs) addEntity(components ...any) EntityId {
	return ecs.insertEntity(ecs.nextEntityId(), components...)
}

func (ecs *Ecs) insertEntity(entityId EntityId, components ...any) EntityId {
	archId, arch := ecs.getOrMakeArchetype(ecs.getArchetypeKey(components...))

	r := ecs.reserveRow(arch)
	for _, component := range components {
		ecs.writeComponent(arch, r, component)
	}
	arch.entities[entityId] = r
	ecs.entityIndex[entityId] = archId
	return entityId
}

func (ecs *Ecs) hasEntity(entityId EntityId) bool {
	_, ok := ecs.entityIndex[entityId]
	return ok
}

func (ecs *Ecs) removeEntity(entityId EntityId) {
	if !ecs.hasEntity(entityId) {
		return
	}
	ecs.recycleEntity(entityId)
}

func (ecs *Ecs) addComponents(entityId EntityId, components ...any) {
	src, ok := ecs.archetypeOf(entityId)
	if !ok {
		return
	}
	dstKey := combineArchetypeKeys(src.key, ecs.getArchetypeKey(components...))
	ecs.moveEntity(entityId, src, dstKey)

	dst := ecs.archetypes[ecs.entityIndex[entityId]]
	r := dst.entities[entityId]
	for _, component := range components {
		ecs.writeComponent(dst, r, component)
	}
}

func (ecs *Ecs) removeComponents(entityId EntityId, components ...any) {
	src, ok := ecs.archetypeOf(entityId)
	if !ok {
		return
	}
	removed := make(set[componentId])
	for _, c := range components {
		removed[ecs.getComponentId(componentType(c))] = struct{}{}
	}

	var dstKey archetypeKey
	for _, id := range src.key {
		if _, drop := removed[id]; !drop {
			dstKey = append(dstKey, id)
		}
	}
	ecs.moveEntity(entityId, src, dstKey)
}

// moveEntity copies the components both archetypes share and re-homes the entity.
func (ecs *Ecs) moveEntity(entityId EntityId, src *archetype, dstKey archetypeKey) {
	dstId, dst := ecs.getOrMakeArchetype(dstKey)
	if dst == src {
		return
	}
	srcRow := src.entities[entityId]
	dstRow := ecs.reserveRow(dst)
	for _, id := range dst.key {
		if !src.has(id) {
			continue
		}
		columnSet(dst.columns[id], dstRow, columnGet(src.columns[id], srcRow))
	}

	ecs.recycleEntity(entityId)
	dst.entities[entityId] = dstRow
	ecs.entityIndex[entityId] = dstId
}

func componentType(component any) reflect.Type {
	t := reflect.TypeOf(component)
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil || t.Kind() != reflect.Struct {
		panic(fmt.Sprintf("component should be a struct or a pointer to a struct, got %v", reflect.TypeOf(component)))
	}
	return t
}

func (ecs *Ecs) writeComponent(arch *archetype, r row, component any) {
	t := componentType(component)
	v := reflect.ValueOf(component)
	if v.Kind() == reflect.Pointer {
		v = v.Elem()
	}
	columnSet(arch.columns[ecs.getComponentId(t)], r, v)
}

func (ecs *Ecs) recycleEntity(entityId EntityId) {
	arch, ok := ecs.archetypeOf(entityId)
	if !ok {
		return
	}
	r := arch.entities[entityId]
	for _, col := range arch.columns {
		columnClear(col, r)
	}
	arch.recycled = append(arch.recycled, r)

	delete(arch.entities, entityId)
	delete(ecs.entityIndex, entityId)
}

func (ecs *Ecs) archetypeOf(entityId EntityId) (*archetype, bool) {
	archId, ok := ecs.entityIndex[entityId]
	if !ok {
		return nil, false
	}
	return ecs.archetypes[archId], true
}

func (ecs *Ecs) getOrMakeArchetype(key archetypeKey) (archetypeId, *archetype) {
	id := getArchetypeId(key)
	if arch, ok := ecs.archetypes[id]; ok {
		return id, arch
	}

	arch := &archetype{
		id:       id,
		key:      key,
		entities: make(map[EntityId]row),
		columns:  make(map[componentId]any, len(key)),
	}
	for _, c := range key {
		arch.columns[c] = makeColumn(ecs.getComponentType(c))
	}
	ecs.archetypes[id] = arch
	return id, arch
}

func (ecs *Ecs) reserveRow(arch *archetype) row {
	if n := len(arch.recycled); n > 0 {
		r := arch.recycled[n-1]
		arch.recycled = arch.recycled[:n-1]
		return r
	}
	r := row(arch.rows)
	arch.rows++
	for id, col := range arch.columns {
		arch.columns[id] = columnGrow(col)
	}
	return r
}

// getArchetypeKey returns the sorted, deduplicated component ids of a component set.
func (ecs *Ecs) getArchetypeKey(components ...any) archetypeKey {
	key := make(archetypeKey, 0, len(components))
	for _, c := range components {
		key = append(key, ecs.getComponentId(componentType(c)))
	}
	return dedupAndSortArchetypeKey(key)
}

func combineArchetypeKeys(a, b archetypeKey) archetypeKey {
	out := make(archetypeKey, 0, len(a)+len(b))
	out = append(out, a...)
	return dedupAndSortArchetypeKey(append(out, b...))
}

func dedupAndSortArchetypeKey(key archetypeKey) archetypeKey {
	out := slices.Clone(key)
	slices.Sort(out)
	return slices.Compact(out)
}

func getArchetypeId(key archetypeKey) archetypeId {
	hash := fnv.New64a()
	var b [4]byte
	for _, id := range key {
		binary.LittleEndian.PutUint32(b[:], uint32(id))
		hash.Write(b[:])
	}
	return archetypeId(hash.Sum64())
}

func (ecs *Ecs) nextEntityId() EntityId {
	ecs.idLock.Lock()
	defer ecs.idLock.Unlock()

	id := ecs.entityIdCounter
	ecs.entityIdCounter++
	return id
}

func (ecs *Ecs) getComponentId(t reflect.Type) componentId {
	ecs.componentLock.Lock()
	defer ecs.componentLock.Unlock()

	if id, ok := ecs.componentIds[t]; ok {
		return id
	}
	id := componentId(len(ecs.componentTypes))
	ecs.componentIds[t] = id
	ecs.componentTypes = append(ecs.componentTypes, t)
	return id
}

func (ecs *Ecs) getComponentType(id componentId) reflect.Type {
	ecs.componentLock.Lock()
	defer ecs.componentLock.Unlock()

	if int(id) < len(ecs.componentTypes) {
		return ecs.componentTypes[id]
	}
	panic(fmt.Sprintf("component id %d not registered", id))
}

// components returns copies of every component of an entity, in archetype key order.
func (ecs *Ecs) components(entityId EntityId) []any {
	arch, ok := ecs.archetypeOf(entityId)
	if !ok {
		return nil
	}
	r := arch.entities[entityId]
	out := make([]any, 0, len(arch.key))
	for _, id := range arch.key {
		out = append(out, columnGet(arch.columns[id], r).Interface())
	}
	return out
}
