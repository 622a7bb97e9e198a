package scene

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/lumen/render/gpu"
)

type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3

	// Written by UpdateTransform.
	ModelMatrix   mgl32.Mat4
	WorldPosition mgl32.Vec3
	WorldBounds   AABB
	Updated       bool
}

func NewTransform(position mgl32.Vec3) *Transform {
	return &Transform{
		Position: position,
		Rotation: mgl32.QuatIdent(),
		Scale:    mgl32.Vec3{1, 1, 1},
	}
}

type Projection int

const (
	ProjectionPerspective Projection = iota
	ProjectionOrthographic
)

type Camera struct {
	Projection Projection
	FOV        float32
	Aspect     float32
	Near       float32
	Far        float32

	// Orthographic extents.
	Left, Right, Bottom, Top float32

	ClearColor     [4]float32
	Culling        bool
	Exposure       float32
	ToneMap        gpu.ToneMap
	OutputEncoding gpu.Encoding

	// Written by UpdateCamera.
	ProjectionMatrix mgl32.Mat4
	ViewMatrix       mgl32.Mat4
	Frustum          Frustum
	Ready            bool
}

func NewCamera() *Camera {
	return &Camera{
		FOV:            math.Pi / 4,
		Aspect:         1,
		Near:           0.5,
		Far:            1000,
		Left:           -1,
		Right:          1,
		Bottom:         -1,
		Top:            1,
		ClearColor:     [4]float32{0, 0, 0, 1},
		Exposure:       1,
		ToneMap:        gpu.ToneMapACES,
		OutputEncoding: gpu.EncodingGamma,
	}
}

type Geometry struct {
	Positions []float32
	Normals   []float32
	UVs       []float32
	Indices   []uint32
	Count     int
	Instances int

	// Local-space bounds. When zero they are derived from Positions.
	Bounds AABB
	// SkipCulling keeps the entity visible regardless of the camera frustum.
	SkipCulling bool
}

// LocalBounds returns Bounds, or the box around Positions when Bounds is zero.
func (g *Geometry) LocalBounds() AABB {
	if g.Bounds != (AABB{}) || len(g.Positions) < 3 {
		return g.Bounds
	}
	b := EmptyAABB()
	for i := 0; i+2 < len(g.Positions); i += 3 {
		b = b.Extend(mgl32.Vec3{g.Positions[i], g.Positions[i+1], g.Positions[i+2]})
	}
	return b
}

type Material struct {
	Unlit              bool
	BaseColor          mgl32.Vec4
	EmissiveColor      mgl32.Vec4
	EmissiveIntensity  float32
	Metallic           float32
	Roughness          float32
	IOR                float32
	AlphaTest          float32
	DepthTest          bool
	DepthWrite         bool
	Blend              bool
	CastShadows        bool
	ReceiveShadows     bool
	Transmission       float32
	NormalTextureScale float32

	BaseColorTexture         gpu.Texture
	EmissiveColorTexture     gpu.Texture
	NormalTexture            gpu.Texture
	MetallicRoughnessTexture gpu.Texture
	OcclusionTexture         gpu.Texture
	TransmissionTexture      gpu.Texture
}

func NewMaterial() *Material {
	return &Material{
		BaseColor:          mgl32.Vec4{1, 1, 1, 1},
		EmissiveIntensity:  1,
		Metallic:           1,
		Roughness:          1,
		IOR:                1.5,
		DepthTest:          true,
		DepthWrite:         true,
		NormalTextureScale: 1,
	}
}

// Textures returns the material's non-nil texture slots.
func (m *Material) Textures() []gpu.Texture {
	slots := []gpu.Texture{
		m.BaseColorTexture,
		m.EmissiveColorTexture,
		m.NormalTexture,
		m.MetallicRoughnessTexture,
		m.OcclusionTexture,
		m.TransmissionTexture,
	}
	out := slots[:0]
	for _, t := range slots {
		if !gpu.IsNil(t) {
			out = append(out, t)
		}
	}
	return out
}

type Skybox struct {
	SunPosition mgl32.Vec3
	RGBM        bool
	EnvMap      gpu.Texture

	// Written by the skybox system.
	SkyTexture gpu.Texture
}

type ReflectionProbe struct {
	Size  int
	Dirty bool
}

type AmbientOcclusion struct {
	Radius    float32
	Intensity float32
}

type Bloom struct {
	Threshold float32
	Intensity float32
	Radius    float32
}

type DepthOfField struct {
	FocusDistance float32
	Aperture      float32
}

type FXAA struct {
	Subpixel float32
}

// PostProcessing enables post effects for the camera entity that carries it.
type PostProcessing struct {
	AO    *AmbientOcclusion
	Bloom *Bloom
	DOF   *DepthOfField
	FXAA  *FXAA
}
