// Package descriptors holds the texture, pass and pipeline tables used by the render
// pipeline. Tables are values: callers size copies with Sized and never mutate them.
package descriptors

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/lumen/render/gpu"
	"github.com/gekko3d/lumen/render/shaders"
)

const DefaultShadowMapSize = 2048

// PassTemplate is a pass descriptor without attachments.
type PassTemplate struct {
	Name       string
	ClearColor [4]float32
	ClearDepth float32
}

// Desc attaches color and depth to the template.
func (t PassTemplate) Desc(color []gpu.Attachment, depth gpu.Texture) gpu.PassDesc {
	clear := t.ClearColor
	return gpu.PassDesc{
		Name:       t.Name,
		Color:      color,
		Depth:      depth,
		ClearColor: &clear,
		ClearDepth: gpu.ClearDepth(t.ClearDepth),
	}
}

type LightShadows struct {
	ColorMap  gpu.TextureDesc
	ShadowMap gpu.TextureDesc
	Pass      PassTemplate
}

// CubemapSide is the camera setup for one cube face, relative to the light position.
type CubemapSide struct {
	Face   gpu.CubeFace
	Target mgl32.Vec3
	Up     mgl32.Vec3
	Color  [4]float32
}

type PointLightShadows struct {
	ShadowCubemap gpu.TextureDesc
	ShadowMap     gpu.TextureDesc
	CubemapSides  [6]CubemapSide
	Passes        [6]PassTemplate
}

type MainPass struct {
	OutputTexture      gpu.TextureDesc
	OutputDepthTexture gpu.TextureDesc
	VelocityTexture    gpu.TextureDesc
}

type GrabPass struct {
	ColorCopyTexture    gpu.TextureDesc
	CopyTexturePipeline gpu.PipelineDesc
}

type Blit struct {
	Pipeline gpu.PipelineDesc
}

type Descriptors struct {
	DirectionalLightShadows LightShadows
	SpotLightShadows        LightShadows
	PointLightShadows       PointLightShadows
	MainPass                MainPass
	GrabPass                GrabPass
	Blit                    Blit
}

type Option func(*options)

type options struct {
	shadowMapSize int
}

func WithShadowMapSize(size int) Option {
	return func(o *options) { o.shadowMapSize = size }
}

// CubemapSides lists the point light faces in +X, -X, +Y, -Y, +Z, -Z order.
var CubemapSides = [6]CubemapSide{
	{Face: gpu.FacePositiveX, Target: mgl32.Vec3{1, 0, 0}, Up: mgl32.Vec3{0, -1, 0}, Color: [4]float32{1, 0, 0, 1}},
	{Face: gpu.FaceNegativeX, Target: mgl32.Vec3{-1, 0, 0}, Up: mgl32.Vec3{0, -1, 0}, Color: [4]float32{0.5, 0, 0, 1}},
	{Face: gpu.FacePositiveY, Target: mgl32.Vec3{0, 1, 0}, Up: mgl32.Vec3{0, 0, 1}, Color: [4]float32{0, 1, 0, 1}},
	{Face: gpu.FaceNegativeY, Target: mgl32.Vec3{0, -1, 0}, Up: mgl32.Vec3{0, 0, -1}, Color: [4]float32{0, 0.5, 0, 1}},
	{Face: gpu.FacePositiveZ, Target: mgl32.Vec3{0, 0, 1}, Up: mgl32.Vec3{0, -1, 0}, Color: [4]float32{0, 0, 1, 1}},
	{Face: gpu.FaceNegativeZ, Target: mgl32.Vec3{0, 0, -1}, Up: mgl32.Vec3{0, -1, 0}, Color: [4]float32{0, 0, 0.5, 1}},
}

func New(opts ...Option) *Descriptors {
	o := options{shadowMapSize: DefaultShadowMapSize}
	for _, opt := range opts {
		opt(&o)
	}
	size := o.shadowMapSize

	colorMap := func(name string) gpu.TextureDesc {
		return gpu.TextureDesc{
			Name: name, Width: size, Height: size,
			PixelFormat: gpu.PixelFormatRGBA8, Encoding: gpu.EncodingLinear,
			Min: gpu.FilterLinear, Mag: gpu.FilterLinear,
		}
	}
	depthMap := func(name string) gpu.TextureDesc {
		return gpu.TextureDesc{
			Name: name, Width: size, Height: size,
			PixelFormat: gpu.PixelFormatDepth24, Encoding: gpu.EncodingLinear,
			Min: gpu.FilterNearest, Mag: gpu.FilterNearest,
		}
	}
	shadowPass := func(name string) PassTemplate {
		return PassTemplate{Name: name, ClearColor: [4]float32{0, 0, 0, 1}, ClearDepth: 1}
	}

	d := &Descriptors{
		DirectionalLightShadows: LightShadows{
			ColorMap:  colorMap("directionalLightColorMap"),
			ShadowMap: depthMap("directionalLightShadowMap"),
			Pass:      shadowPass("directionalLightShadowMappingPass"),
		},
		SpotLightShadows: LightShadows{
			ColorMap:  colorMap("spotLightColorMap"),
			ShadowMap: depthMap("spotLightShadowMap"),
			Pass:      shadowPass("spotLightShadowMappingPass"),
		},
		PointLightShadows: PointLightShadows{
			ShadowCubemap: colorMap("pointLightShadowCubemap"),
			ShadowMap:     depthMap("pointLightShadowMap"),
			CubemapSides:  CubemapSides,
		},
		MainPass: MainPass{
			OutputTexture: gpu.TextureDesc{
				Name: "mainPassColorTexture", Width: 1, Height: 1,
				PixelFormat: gpu.PixelFormatRGBA16F, Encoding: gpu.EncodingLinear,
				Min: gpu.FilterLinear, Mag: gpu.FilterLinear,
			},
			OutputDepthTexture: gpu.TextureDesc{
				Name: "mainPassDepthTexture", Width: 1, Height: 1,
				PixelFormat: gpu.PixelFormatDepth24, Encoding: gpu.EncodingLinear,
				Min: gpu.FilterNearest, Mag: gpu.FilterNearest,
			},
			VelocityTexture: gpu.TextureDesc{
				Name: "mainPassVelocityTexture", Width: 1, Height: 1,
				PixelFormat: gpu.PixelFormatRGBA16F, Encoding: gpu.EncodingLinear,
				Min: gpu.FilterNearest, Mag: gpu.FilterNearest,
			},
		},
		GrabPass: GrabPass{
			ColorCopyTexture: gpu.TextureDesc{
				Name: "grabPassColorCopyTexture", Width: 1, Height: 1,
				PixelFormat: gpu.PixelFormatRGBA16F, Encoding: gpu.EncodingLinear,
				Min: gpu.FilterLinearMipmapLinear, Mag: gpu.FilterLinear,
				Mipmap: true,
			},
			CopyTexturePipeline: gpu.PipelineDesc{
				Name: "grabPassCopyTexture",
				Vert: shaders.FullscreenVert,
				Frag: shaders.CopyFrag,
			},
		},
		Blit: Blit{
			Pipeline: gpu.PipelineDesc{
				Name: "blit",
				Vert: shaders.FullscreenVert,
				Frag: shaders.BlitFrag,
			},
		},
	}
	for i, side := range CubemapSides {
		d.PointLightShadows.Passes[i] = PassTemplate{
			Name:       fmt.Sprintf("pointLightShadowMappingSide%d", i),
			ClearColor: side.Color,
			ClearDepth: 1,
		}
	}
	return d
}

// Sized returns a copy of desc with the given size.
func Sized(desc gpu.TextureDesc, width, height int) gpu.TextureDesc {
	desc.Width = width
	desc.Height = height
	return desc
}

// BlitPipeline returns the blit pipeline with the tone map compiled in.
func (d *Descriptors) BlitPipeline(toneMap gpu.ToneMap) gpu.PipelineDesc {
	desc := d.Blit.Pipeline
	if toneMap != gpu.ToneMapNone {
		desc.Defines = gpu.Defines(desc.Defines, "TONE_MAP "+toneMap.String())
	}
	return desc
}

// PrevPowerOfTwo returns the largest power of two not above n, and 1 for n < 1.
func PrevPowerOfTwo(n int) int {
	p := 1
	for p*2 <= n {
		p *= 2
	}
	return p
}
