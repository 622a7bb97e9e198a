package lumen

import (
	"reflect"
	"slices"
)

// Queries visit entities holding every listed component, in entity id order.
// Components passed as optionals may be missing; their pointer is then nil.
// Returning false from the callback stops the iteration.
type Query1[A any] struct{ ecs *Ecs }
type Query2[A, B any] struct{ ecs *Ecs }
type Query3[A, B, C any] struct{ ecs *Ecs }
type Query4[A, B, C, D any] struct{ ecs *Ecs }

func MakeQuery1[A any](cmd *Commands) Query1[A]             { return Query1[A]{ecs: cmd.app.ecs} }
func MakeQuery2[A, B any](cmd *Commands) Query2[A, B]       { return Query2[A, B]{ecs: cmd.app.ecs} }
func MakeQuery3[A, B, C any](cmd *Commands) Query3[A, B, C] { return Query3[A, B, C]{ecs: cmd.app.ecs} }
func MakeQuery4[A, B, C, D any](cmd *Commands) Query4[A, B, C, D] {
	return Query4[A, B, C, D]{ecs: cmd.app.ecs}
}

func (q Query1[A]) Map(m func(EntityId, *A) bool, optionals ...any) {
	a := typeId[A](q.ecs)
	for _, hit := range q.ecs.matches([]componentId{a}, optionals) {
		if !m(hit.id, cell[A](hit, a)) {
			return
		}
	}
}

func (q Query2[A, B]) Map(m func(EntityId, *A, *B) bool, optionals ...any) {
	a, b := typeId[A](q.ecs), typeId[B](q.ecs)
	for _, hit := range q.ecs.matches([]componentId{a, b}, optionals) {
		if !m(hit.id, cell[A](hit, a), cell[B](hit, b)) {
			return
		}
	}
}

func (q Query3[A, B, C]) Map(m func(EntityId, *A, *B, *C) bool, optionals ...any) {
	a, b, c := typeId[A](q.ecs), typeId[B](q.ecs), typeId[C](q.ecs)
	for _, hit := range q.ecs.matches([]componentId{a, b, c}, optionals) {
		if !m(hit.id, cell[A](hit, a), cell[B](hit, b), cell[C](hit, c)) {
			return
		}
	}
}

func (q Query4[A, B, C, D]) Map(m func(EntityId, *A, *B, *C, *D) bool, optionals ...any) {
	a, b, c, d := typeId[A](q.ecs), typeId[B](q.ecs), typeId[C](q.ecs), typeId[D](q.ecs)
	for _, hit := range q.ecs.matches([]componentId{a, b, c, d}, optionals) {
		if !m(hit.id, cell[A](hit, a), cell[B](hit, b), cell[C](hit, c), cell[D](hit, d)) {
			return
		}
	}
}

type match struct {
	id   EntityId
	arch *archetype
	row  row
}

func (ecs *Ecs) matches(required []componentId, optionals []any) []match {
	opt := identifyOptionals(ecs, optionals...)

	var out []match
	for _, arch := range ecs.archetypes {
		if !archetypeMatches(arch, required, opt) {
			continue
		}
		for id, r := range arch.entities {
			out = append(out, match{id: id, arch: arch, row: r})
		}
	}
	slices.SortFunc(out, func(x, y match) int {
		switch {
		case x.id < y.id:
			return -1
		case x.id > y.id:
			return 1
		}
		return 0
	})
	return out
}

func archetypeMatches(arch *archetype, required []componentId, opt set[componentId]) bool {
	for _, id := range required {
		if arch.has(id) {
			continue
		}
		if _, ok := opt[id]; !ok {
			return false
		}
	}
	return true
}

func identifyOptionals(ecs *Ecs, components ...any) set[componentId] {
	res := make(set[componentId], len(components))
	for _, c := range components {
		res[ecs.getComponentId(componentType(c))] = struct{}{}
	}
	return res
}

func typeId[T any](ecs *Ecs) componentId {
	return ecs.getComponentId(reflect.TypeFor[T]())
}

// cell points into the archetype column, or is nil for a missing optional.
func cell[T any](hit match, id componentId) *T {
	col, ok := hit.arch.columns[id]
	if !ok {
		return nil
	}
	return &col.([]T)[hit.row]
}
