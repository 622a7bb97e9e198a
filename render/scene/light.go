package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/lumen/render/gpu"
)

// LightMatrices is owned by the light system.
type LightMatrices struct {
	View      mgl32.Mat4
	Direction mgl32.Vec3
	Ready     bool
}

// ShadowState is owned by shadow mapping. It is created the first frame a light
// casts shadows.
type ShadowState struct {
	Projection mgl32.Mat4
	View       mgl32.Mat4
	Near       float32
	Far        float32
	Bias       float32

	ShadowMap     gpu.Texture
	ColorMap      gpu.Texture
	ShadowCubemap gpu.Texture

	SceneBoundsInLightSpace AABB
}

// Textures lists the shadow textures sampled by lighting.
func (s *ShadowState) Textures() []gpu.Texture {
	if s == nil {
		return nil
	}
	if !gpu.IsNil(s.ShadowCubemap) {
		return []gpu.Texture{s.ShadowCubemap}
	}
	if !gpu.IsNil(s.ShadowMap) {
		return []gpu.Texture{s.ShadowMap}
	}
	return nil
}

type LightBase struct {
	Color       mgl32.Vec4
	Intensity   float32
	Bias        float32
	CastShadows bool

	Matrices LightMatrices
	Shadow   *ShadowState
}

func (l *LightBase) Base() *LightBase { return l }

// ShadowLight is any light component.
type ShadowLight interface {
	Base() *LightBase
}

type DirectionalLight struct {
	LightBase
}

func NewDirectionalLight() *DirectionalLight {
	return &DirectionalLight{LightBase{
		Color:       mgl32.Vec4{1, 1, 1, 1},
		Intensity:   1,
		Bias:        0.1,
		CastShadows: true,
	}}
}

type SpotLight struct {
	LightBase
	Angle      float32
	InnerAngle float32
	Range      float32
	Radius     float32
}

func NewSpotLight() *SpotLight {
	return &SpotLight{
		LightBase: LightBase{
			Color:       mgl32.Vec4{1, 1, 1, 1},
			Intensity:   1,
			Bias:        0.1,
			CastShadows: true,
		},
		Angle:  math.Pi / 4,
		Range:  10,
		Radius: 1,
	}
}

type PointLight struct {
	LightBase
	Range float32
}

func NewPointLight() *PointLight {
	return &PointLight{
		LightBase: LightBase{
			Color:       mgl32.Vec4{1, 1, 1, 1},
			Intensity:   1,
			Bias:        0.1,
			CastShadows: true,
		},
		Range: 10,
	}
}

type AreaLight struct {
	LightBase
	Size mgl32.Vec2
	Disk bool
}

func NewAreaLight() *AreaLight {
	return &AreaLight{
		LightBase: LightBase{
			Color:       mgl32.Vec4{1, 1, 1, 1},
			Intensity:   1,
			Bias:        0.1,
			CastShadows: true,
		},
		Size: mgl32.Vec2{1, 1},
	}
}
