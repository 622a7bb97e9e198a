package lumen

import (
	"github.com/gekko3d/lumen/render/scene"
)

// Layer restricts an entity to cameras carrying the same layer name.
type Layer struct {
	Name string
}

// renderIds are the component ids of every component the renderer reads.
type renderIds struct {
	transform, camera, geometry, material componentId
	directional, point, spot, area        componentId
	skybox, probe, postProcessing, layer  componentId
}

func renderComponentIds(ecs *Ecs) renderIds {
	return renderIds{
		transform:      typeId[scene.Transform](ecs),
		camera:         typeId[scene.Camera](ecs),
		geometry:       typeId[scene.Geometry](ecs),
		material:       typeId[scene.Material](ecs),
		directional:    typeId[scene.DirectionalLight](ecs),
		point:          typeId[scene.PointLight](ecs),
		spot:           typeId[scene.SpotLight](ecs),
		area:           typeId[scene.AreaLight](ecs),
		skybox:         typeId[scene.Skybox](ecs),
		probe:          typeId[scene.ReflectionProbe](ecs),
		postProcessing: typeId[scene.PostProcessing](ecs),
		layer:          typeId[Layer](ecs),
	}
}

func (ids renderIds) all() []componentId {
	return []componentId{
		ids.transform, ids.camera, ids.geometry, ids.material,
		ids.directional, ids.point, ids.spot, ids.area,
		ids.skybox, ids.probe, ids.postProcessing, ids.layer,
	}
}

func (ids renderIds) relevant(arch *archetype) bool {
	for _, id := range ids.all() {
		if arch.has(id) {
			return true
		}
	}
	return false
}

// SceneEntities builds the renderer's view of every entity carrying a render
// component, ordered by id. The component pointers alias ECS storage and stay valid
// until the next command flush.
func SceneEntities(cmd *Commands) []*scene.Entity {
	ecs := cmd.app.ecs
	ids := renderComponentIds(ecs)

	var out []*scene.Entity
	for _, arch := range ecs.archetypes {
		if !ids.relevant(arch) {
			continue
		}
		for eid, r := range arch.entities {
			hit := match{id: eid, arch: arch, row: r}
			e := &scene.Entity{
				ID:               scene.EntityID(eid),
				Transform:        cell[scene.Transform](hit, ids.transform),
				Camera:           cell[scene.Camera](hit, ids.camera),
				Geometry:         cell[scene.Geometry](hit, ids.geometry),
				Material:         cell[scene.Material](hit, ids.material),
				DirectionalLight: cell[scene.DirectionalLight](hit, ids.directional),
				PointLight:       cell[scene.PointLight](hit, ids.point),
				SpotLight:        cell[scene.SpotLight](hit, ids.spot),
				AreaLight:        cell[scene.AreaLight](hit, ids.area),
				Skybox:           cell[scene.Skybox](hit, ids.skybox),
				ReflectionProbe:  cell[scene.ReflectionProbe](hit, ids.probe),
				PostProcessing:   cell[scene.PostProcessing](hit, ids.postProcessing),
			}
			if l := cell[Layer](hit, ids.layer); l != nil {
				e.Layer = l.Name
			}
			out = append(out, e)
		}
	}
	scene.SortByID(out)
	return out
}

// entityFromComponents builds a detached entity view from component copies, as handed
// to removal hooks.
func entityFromComponents(eid EntityId, components []any) *scene.Entity {
	e := &scene.Entity{ID: scene.EntityID(eid)}
	for _, c := range components {
		switch v := c.(type) {
		case scene.Transform:
			e.Transform = &v
		case scene.Camera:
			e.Camera = &v
		case scene.Geometry:
			e.Geometry = &v
		case scene.Material:
			e.Material = &v
		case scene.DirectionalLight:
			e.DirectionalLight = &v
		case scene.PointLight:
			e.PointLight = &v
		case scene.SpotLight:
			e.SpotLight = &v
		case scene.AreaLight:
			e.AreaLight = &v
		case scene.Skybox:
			e.Skybox = &v
		case scene.ReflectionProbe:
			e.ReflectionProbe = &v
		case scene.PostProcessing:
			e.PostProcessing = &v
		case Layer:
			e.Layer = v.Name
		}
	}
	return e
}
