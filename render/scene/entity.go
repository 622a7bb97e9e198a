// Package scene holds the per-frame entity view the renderer consumes, plus the math
// used to derive transforms, cameras, lights and visibility.
package scene

import (
	"sort"

	"github.com/gekko3d/lumen/render/gpu"
)

type EntityID uint64

// Entity is a flat view over an entity's render components. Nil means absent.
type Entity struct {
	ID EntityID

	Transform        *Transform
	Camera           *Camera
	Geometry         *Geometry
	Material         *Material
	DirectionalLight *DirectionalLight
	PointLight       *PointLight
	SpotLight        *SpotLight
	AreaLight        *AreaLight
	Skybox           *Skybox
	ReflectionProbe  *ReflectionProbe
	PostProcessing   *PostProcessing

	// Layer restricts the entity to cameras of the same layer. Empty means untagged.
	Layer string
}

// Lights returns the entity's light components in directional, point, spot, area order.
func (e *Entity) Lights() []ShadowLight {
	var out []ShadowLight
	if e.DirectionalLight != nil {
		out = append(out, e.DirectionalLight)
	}
	if e.PointLight != nil {
		out = append(out, e.PointLight)
	}
	if e.SpotLight != nil {
		out = append(out, e.SpotLight)
	}
	if e.AreaLight != nil {
		out = append(out, e.AreaLight)
	}
	return out
}

// CastsShadows reports whether the entity is drawn into shadow maps.
func (e *Entity) CastsShadows() bool {
	return e.Geometry != nil && e.Material != nil && e.Material.CastShadows
}

// SortByID orders entities deterministically.
func SortByID(entities []*Entity) {
	sort.Slice(entities, func(i, j int) bool { return entities[i].ID < entities[j].ID })
}

// RenderView describes one camera's render target for a frame.
// Zero Exposure, ToneMap and OutputEncoding mean "unset".
type RenderView struct {
	Camera         *Camera
	CameraEntity   *Entity
	Viewport       gpu.Viewport
	Exposure       float32
	ToneMap        gpu.ToneMap
	OutputEncoding gpu.Encoding
}

// AtOrigin returns a copy of the view with the viewport moved to 0,0.
func (v RenderView) AtOrigin() RenderView {
	v.Viewport = gpu.Viewport{0, 0, v.Viewport[2], v.Viewport[3]}
	return v
}
