package skybox

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/lumen/render/gpu"
	"github.com/gekko3d/lumen/render/pipeline"
	"github.com/gekko3d/lumen/render/scene"
	"github.com/gekko3d/lumen/render/shaders"
)

// Depth test stays on so the sky only lands where nothing opaque was drawn.
var backgroundPipeline = gpu.PipelineDesc{
	Name:       "skyboxBackground",
	Vert:       shaders.BackgroundVert,
	Frag:       shaders.SkyBackgroundFrag,
	DepthTest:  true,
	DepthWrite: false,
}

var _ pipeline.BackgroundRenderer = (*Renderer)(nil)

// Renderer draws the sky texture of the first skybox in view behind the opaque
// geometry of the main pass.
type Renderer struct {
	device    gpu.Device
	allocator Allocator
	log       Logger
}

func NewRenderer(device gpu.Device, allocator Allocator, log Logger) *Renderer {
	if log == nil {
		log = nopLogger{}
	}
	return &Renderer{device: device, allocator: allocator, log: log}
}

func (r *Renderer) RenderBackground(view *scene.RenderView, entities []*scene.Entity, _ pipeline.DrawOptions) error {
	sky := r.visibleSky(entities)
	if sky == nil || view.Camera == nil {
		return nil
	}
	pipe, err := r.allocator.Pipeline(backgroundPipeline)
	if err != nil {
		return err
	}
	tri, err := r.allocator.FullscreenTriangle()
	if err != nil {
		return err
	}
	return r.device.Submit(gpu.Command{
		Name:       "skyboxBackgroundCmd",
		Pipeline:   pipe,
		Attributes: tri.Attributes,
		Count:      tri.Count,
	}, gpu.Uniforms{
		"uSkyTexture":            sky.SkyTexture,
		"uInverseViewProjection": inverseViewProjection(view.Camera),
		"uRGBM":                  sky.RGBM,
	})
}

func (r *Renderer) visibleSky(entities []*scene.Entity) *scene.Skybox {
	for _, e := range entities {
		sky := e.Skybox
		if sky == nil || gpu.IsNil(sky.SkyTexture) {
			continue
		}
		if !r.device.Tracked(sky.SkyTexture) {
			r.log.Warnf("skybox: entity %d sky texture was released", e.ID)
			continue
		}
		return sky
	}
	return nil
}

// inverseViewProjection maps clip space back to world directions. The view translation
// is dropped so the sky stays at infinity.
func inverseViewProjection(cam *scene.Camera) mgl32.Mat4 {
	rot := cam.ViewMatrix
	rot[12], rot[13], rot[14] = 0, 0, 0
	return cam.ProjectionMatrix.Mul4(rot).Inv()
}
