package pipeline

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/lumen/render/cache"
	"github.com/gekko3d/lumen/render/descriptors"
	"github.com/gekko3d/lumen/render/gpu"
	"github.com/gekko3d/lumen/render/gpu/headless"
	"github.com/gekko3d/lumen/render/graph"
	"github.com/gekko3d/lumen/render/scene"
)

type recordingLogger struct {
	warnings []string
}

func (l *recordingLogger) Debugf(string, ...any) {}
func (l *recordingLogger) Warnf(format string, args ...any) {
	l.warnings = append(l.warnings, fmt.Sprintf(format, args...))
}

type harness struct {
	dev   *headless.Device
	cache *cache.Cache
	graph *graph.Graph
	p     *RenderPipeline
	log   *recordingLogger
}

func newHarness(opts ...Option) *harness {
	h := &harness{dev: headless.New(headless.WithSize(1280, 720)), log: &recordingLogger{}}
	h.cache = cache.New(h.dev)
	h.graph = graph.New(graph.WithDevice(h.dev), graph.WithRetainer(h.cache))
	opts = append([]Option{WithLogger(h.log), WithDescriptors(descriptors.New(descriptors.WithShadowMapSize(64)))}, opts...)
	h.p = New(h.dev, h.cache, h.graph, opts...)
	return h
}

func (h *harness) frame(t *testing.T, entities []*scene.Entity, opts Options) *Attachments {
	t.Helper()
	h.cache.BeginFrame()
	h.graph.BeginFrame()
	att, err := h.p.Update(entities, opts)
	require.NoError(t, err)
	require.NoError(t, h.graph.EndFrame())
	require.NoError(t, h.cache.EndFrame())
	return att
}

func (h *harness) passNames() []string {
	var names []string
	for _, info := range h.graph.Passes() {
		names = append(names, info.Name)
	}
	return names
}

// recorder implements every hook and remembers what it was given.
type recorder struct {
	opaque      [][]scene.EntityID
	views       []scene.RenderView
	shadowCalls int
	background  gpu.Texture
	err         error
	post        func(PostOptions)
}

func ids(entities []*scene.Entity) []scene.EntityID {
	var out []scene.EntityID
	for _, e := range entities {
		out = append(out, e.ID)
	}
	return out
}

func (r *recorder) RenderShadow(*scene.RenderView, []*scene.Entity, DrawOptions) error {
	r.shadowCalls++
	return nil
}

func (r *recorder) RenderOpaque(view *scene.RenderView, entities []*scene.Entity, _ DrawOptions) error {
	r.opaque = append(r.opaque, ids(entities))
	r.views = append(r.views, *view)
	return r.err
}

func (r *recorder) RenderBackground(*scene.RenderView, []*scene.Entity, DrawOptions) error {
	return nil
}

func (r *recorder) RenderTransparent(_ *scene.RenderView, _ []*scene.Entity, opts DrawOptions) error {
	r.background = opts.BackgroundColorTexture
	return nil
}

func (r *recorder) RenderPost(_ *scene.RenderView, _ []*scene.Entity, opts PostOptions) error {
	if r.post != nil {
		r.post(opts)
	}
	return nil
}

func cameraEntity(id scene.EntityID) *scene.Entity {
	e := &scene.Entity{ID: id, Transform: scene.NewTransform(mgl32.Vec3{0, 0, 10}), Camera: scene.NewCamera()}
	scene.UpdateTransform(e.Transform, nil)
	scene.UpdateCamera(e.Camera, e.Transform)
	return e
}

func meshEntity(id scene.EntityID, castShadows bool) *scene.Entity {
	e := &scene.Entity{
		ID:        id,
		Transform: scene.NewTransform(mgl32.Vec3{}),
		Geometry:  &scene.Geometry{Bounds: scene.AABB{{-1, -1, -1}, {1, 1, 1}}},
		Material:  scene.NewMaterial(),
	}
	e.Material.CastShadows = castShadows
	scene.UpdateTransform(e.Transform, e.Geometry)
	return e
}

func sunEntity(id scene.EntityID) *scene.Entity {
	e := &scene.Entity{ID: id, Transform: scene.NewTransform(mgl32.Vec3{0, 10, 0}), DirectionalLight: scene.NewDirectionalLight()}
	e.DirectionalLight.CastShadows = true
	scene.UpdateTransform(e.Transform, nil)
	scene.UpdateLight(&e.DirectionalLight.LightBase, e.Transform)
	return e
}

func TestShadowPassRunsBeforeMainPass(t *testing.T) {
	h := newHarness()
	sun := sunEntity(2)
	r := &recorder{}
	h.frame(t, []*scene.Entity{cameraEntity(1), sun, meshEntity(3, true)}, Options{Renderers: []Renderer{r}})

	infos := h.graph.Passes()
	require.GreaterOrEqual(t, len(infos), 3)
	assert.Equal(t, "RenderShadowMap 2", infos[0].Name)
	assert.Equal(t, "MainPass [0,0,1280,720]", infos[1].Name)
	assert.Contains(t, infos[1].Uses, sun.DirectionalLight.Shadow.ShadowMap)
	assert.Equal(t, 1, r.shadowCalls)
}

func TestPointLightFacesRunBeforeMainPass(t *testing.T) {
	h := newHarness()
	bulb := &scene.Entity{ID: 2, Transform: scene.NewTransform(mgl32.Vec3{0, 3, 0}), PointLight: scene.NewPointLight()}
	scene.UpdateTransform(bulb.Transform, nil)
	scene.UpdateLight(&bulb.PointLight.LightBase, bulb.Transform)
	r := &recorder{}
	h.frame(t, []*scene.Entity{cameraEntity(1), bulb, meshEntity(3, true)}, Options{Renderers: []Renderer{r}})

	infos := h.graph.Passes()
	require.GreaterOrEqual(t, len(infos), 7)
	for i := range 6 {
		assert.Equal(t, fmt.Sprintf("RenderShadowMap 2 face %d", i), infos[i].Name)
	}
	assert.Equal(t, "MainPass [0,0,1280,720]", infos[6].Name)

	s := bulb.PointLight.Shadow
	require.NotNil(t, s)
	assert.Contains(t, infos[6].Uses, s.ShadowCubemap)
	assert.Equal(t, 6, r.shadowCalls)
}

func TestSplitViewportsShareOneFrame(t *testing.T) {
	h := newHarness()
	left, right := cameraEntity(1), cameraEntity(2)
	r := &recorder{}
	entities := []*scene.Entity{left, right, sunEntity(3), meshEntity(4, true)}

	h.cache.BeginFrame()
	h.graph.BeginFrame()
	leftAtt, err := h.p.Update(entities, Options{
		RenderView: &scene.RenderView{Camera: left.Camera, Viewport: gpu.Viewport{0, 0, 640, 720}},
		Renderers:  []Renderer{r},
	})
	require.NoError(t, err)
	rightAtt, err := h.p.Update(entities, Options{
		RenderView: &scene.RenderView{Camera: right.Camera, Viewport: gpu.Viewport{640, 0, 640, 720}},
		Renderers:  []Renderer{r},
	})
	require.NoError(t, err)
	require.NoError(t, h.graph.EndFrame())
	require.NoError(t, h.cache.EndFrame())

	names := h.passNames()
	assert.Contains(t, names, "MainPass [0,0,640,720]")
	assert.Contains(t, names, "MainPass [640,0,640,720]")
	assert.Contains(t, names, "BlitPass [0,0,640,720]")
	assert.Contains(t, names, "BlitPass [640,0,640,720]")

	// each view gets its own attachments within the frame
	assert.NotEqual(t, leftAtt.Color.ID(), rightAtt.Color.ID())
	assert.Equal(t, 640, rightAtt.Color.Desc().Width)

	require.Len(t, r.views, 2)
	assert.Same(t, left, r.views[0].CameraEntity)
	assert.Same(t, right, r.views[1].CameraEntity)
	assert.Equal(t, 2, r.shadowCalls)
}

func TestLightWithoutTransformIsSkipped(t *testing.T) {
	h := newHarness()
	sun := sunEntity(2)
	sun.Transform = nil
	h.frame(t, []*scene.Entity{cameraEntity(1), sun, meshEntity(3, true)}, Options{})

	assert.NotContains(t, h.passNames(), "RenderShadowMap 2")
	assert.Nil(t, sun.DirectionalLight.Shadow)
	require.Len(t, h.log.warnings, 1)
	assert.Contains(t, h.log.warnings[0], "transform")
}

func TestLightWithoutMatricesIsSkipped(t *testing.T) {
	h := newHarness()
	sun := sunEntity(2)
	sun.DirectionalLight.Matrices.Ready = false
	h.frame(t, []*scene.Entity{cameraEntity(1), sun, meshEntity(3, true)}, Options{})

	assert.NotContains(t, h.passNames(), "RenderShadowMap 2")
	require.Len(t, h.log.warnings, 1)
	assert.Contains(t, h.log.warnings[0], "light system")
}

func TestNoShadowsWithoutCasters(t *testing.T) {
	h := newHarness()
	h.frame(t, []*scene.Entity{cameraEntity(1), sunEntity(2), meshEntity(3, false)}, Options{})
	assert.Equal(t, []string{
		"MainPass [0,0,1280,720]",
		"TransparentMainPass [0,0,1280,720]",
		"BlitPass [0,0,1280,720]",
	}, h.passNames())
	assert.Nil(t, h.p.shadows)
}

func TestGrabPassOnlyWithTransmission(t *testing.T) {
	h := newHarness()
	glass := meshEntity(3, false)
	r := &recorder{}

	h.frame(t, []*scene.Entity{cameraEntity(1), glass}, Options{Renderers: []Renderer{r}})
	assert.NotContains(t, h.passNames(), "GrabPass [0,0,1024,512]")
	assert.Nil(t, r.background)

	glass.Material.Transmission = 0.5
	h.frame(t, []*scene.Entity{cameraEntity(1), glass}, Options{Renderers: []Renderer{r}})
	assert.Contains(t, h.passNames(), "GrabPass [0,0,1024,512]")
	require.NotNil(t, r.background)
	assert.Equal(t, 1024, r.background.Desc().Width)
	assert.True(t, r.background.Desc().Mipmap)
}

func TestNoCamera(t *testing.T) {
	h := newHarness()
	h.cache.BeginFrame()
	h.graph.BeginFrame()
	_, err := h.p.Update([]*scene.Entity{meshEntity(1, false)}, Options{})
	assert.ErrorIs(t, err, ErrNoCamera)
}

func TestOffscreenSkipsBlit(t *testing.T) {
	h := newHarness()
	h.frame(t, []*scene.Entity{cameraEntity(1)}, Options{Offscreen: true})
	assert.NotContains(t, h.passNames(), "BlitPass [0,0,1280,720]")
	assert.Empty(t, h.dev.OpsOf(headless.OpSubmit))
}

func TestViewNormalization(t *testing.T) {
	tests := []struct {
		name      string
		offscreen bool
		post      bool
		exposure  float32
		toneMap   gpu.ToneMap
		encoding  gpu.Encoding
	}{
		{"screen", false, false, 1, gpu.ToneMapNone, gpu.EncodingLinear},
		{"offscreen gamma camera", true, false, 2, gpu.ToneMapACES, gpu.EncodingGamma},
		{"offscreen with post", true, true, 1, gpu.ToneMapNone, gpu.EncodingLinear},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			cam := cameraEntity(1)
			cam.Camera.Exposure = 2
			if tt.post {
				cam.PostProcessing = &scene.PostProcessing{}
			}
			r := &recorder{}
			h.frame(t, []*scene.Entity{cam}, Options{Renderers: []Renderer{r}, Offscreen: tt.offscreen})
			require.Len(t, r.views, 1)
			assert.Equal(t, tt.exposure, r.views[0].Exposure)
			assert.Equal(t, tt.toneMap, r.views[0].ToneMap)
			assert.Equal(t, tt.encoding, r.views[0].OutputEncoding)
		})
	}
}

func TestRenderViewOverride(t *testing.T) {
	h := newHarness()
	cam := cameraEntity(1)
	r := &recorder{}
	view := &scene.RenderView{Camera: cam.Camera, Viewport: gpu.Viewport{10, 20, 320, 240}, Exposure: 3}
	att := h.frame(t, []*scene.Entity{cam}, Options{RenderView: view, Renderers: []Renderer{r}})

	assert.Equal(t, "MainPass [10,20,320,240]", h.passNames()[0])
	assert.Equal(t, float32(3), r.views[0].Exposure)
	assert.Same(t, cam, r.views[0].CameraEntity)
	assert.Equal(t, 320, att.Color.Desc().Width)
	// the caller's view is not modified
	assert.Nil(t, view.CameraEntity)
}

func TestLayerFilter(t *testing.T) {
	untagged := meshEntity(2, false)
	ui := meshEntity(3, false)
	ui.Layer = "ui"

	tests := []struct {
		layer string
		want  []scene.EntityID
	}{
		{"", []scene.EntityID{2}},
		{"ui", []scene.EntityID{2, 3}},
		{"world", []scene.EntityID{2}},
	}
	for _, tt := range tests {
		t.Run(tt.layer, func(t *testing.T) {
			h := newHarness()
			cam := cameraEntity(1)
			cam.Layer = tt.layer
			r := &recorder{}
			h.frame(t, []*scene.Entity{cam, untagged, ui}, Options{Renderers: []Renderer{r}})
			require.Len(t, r.opaque, 1)
			// the camera entity has no geometry and passes the filter when untagged
			got := r.opaque[0]
			var meshes []scene.EntityID
			for _, id := range got {
				if id != 1 {
					meshes = append(meshes, id)
				}
			}
			assert.Equal(t, tt.want, meshes)
		})
	}
}

func TestAttachmentOutputs(t *testing.T) {
	h := newHarness(WithOutputs(OutputVelocity))
	cam := cameraEntity(1)
	cam.PostProcessing = &scene.PostProcessing{AO: &scene.AmbientOcclusion{}, Bloom: &scene.Bloom{}}
	att := h.frame(t, []*scene.Entity{cam}, Options{})

	require.NotNil(t, att.Normal)
	require.NotNil(t, att.Emissive)
	require.NotNil(t, att.Velocity)
	assert.Equal(t, map[string]int{"color": 0, "normal": 1, "emissive": 2, "velocity": 3}, att.Locations())
	assert.Len(t, att.ColorList(), 4)
	assert.Equal(t, fmt.Sprintf("mainPasscolor (id: %s)", att.Color.ID()), att.Color.Label())
	assert.NotEqual(t, att.Color.ID(), att.Normal.ID())
	assert.True(t, att.Depth.Desc().PixelFormat.IsDepth())
}

func TestPostProcessingTargets(t *testing.T) {
	h := newHarness()
	cam := cameraEntity(1)
	cam.PostProcessing = &scene.PostProcessing{}

	var own gpu.Texture
	r := &recorder{post: func(opts PostOptions) {
		if opts.Targets.Get("ao.main") != nil {
			return
		}
		tex, err := h.dev.Texture2D(gpu.TextureDesc{Name: "ao.main", Width: 4, Height: 4, PixelFormat: gpu.PixelFormatRGBA8})
		require.NoError(t, err)
		opts.Targets.Set("ao.main", tex)
		own = tex
	}}
	h.frame(t, []*scene.Entity{cam}, Options{Renderers: []Renderer{r}})
	assert.Contains(t, h.passNames(), "PostProcessingPass [0,0,1280,720]")

	targets, ok := h.p.PostProcessingTargets(1)
	require.True(t, ok)
	assert.Equal(t, 1280, targets.Width)
	assert.Same(t, own, targets.Get("ao.main"))

	h.frame(t, []*scene.Entity{cam}, Options{Renderers: []Renderer{r}})
	again, _ := h.p.PostProcessingTargets(1)
	assert.Same(t, targets, again)

	// a resize replaces the targets and releases what renderers allocated
	first := own
	h.dev.Resize(640, 480)
	h.frame(t, []*scene.Entity{cam}, Options{Renderers: []Renderer{r}})
	resized, _ := h.p.PostProcessingTargets(1)
	assert.NotSame(t, targets, resized)
	assert.Equal(t, 640, resized.Width)
	assert.Equal(t, 1, h.dev.DisposeCount(first))
}

func TestPostRendererCanReplaceColor(t *testing.T) {
	h := newHarness()
	cam := cameraEntity(1)
	cam.PostProcessing = &scene.PostProcessing{}

	var replaced gpu.Texture
	r := &recorder{post: func(opts PostOptions) {
		tex, err := opts.Cache.Texture2D(descriptors.Sized(opts.Descriptors.MainPass.OutputTexture, 8, 8))
		require.NoError(t, err)
		opts.Attachments.Color = tex
		replaced = tex
	}}
	att := h.frame(t, []*scene.Entity{cam}, Options{Renderers: []Renderer{r}})
	assert.Same(t, replaced, att.Color)
}

func TestHookErrorAbortsFrame(t *testing.T) {
	h := newHarness()
	boom := errors.New("boom")
	r := &recorder{err: boom}

	h.cache.BeginFrame()
	h.graph.BeginFrame()
	_, err := h.p.Update([]*scene.Entity{cameraEntity(1)}, Options{Renderers: []Renderer{r}})
	require.NoError(t, err)
	err = h.graph.EndFrame()
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "MainPass")
	assert.Empty(t, h.dev.OpsOf(headless.OpSubmit))
}

func TestDisposeReleasesTexturesOnce(t *testing.T) {
	h := newHarness()
	tex, err := h.dev.Texture2D(gpu.TextureDesc{Name: "albedo", Width: 2, Height: 2, PixelFormat: gpu.PixelFormatRGBA8})
	require.NoError(t, err)

	a, b := meshEntity(2, false), meshEntity(3, false)
	a.Material.BaseColorTexture = tex
	b.Material.BaseColorTexture = tex
	sun := sunEntity(4)
	sun.DirectionalLight.Shadow = &scene.ShadowState{}

	require.NoError(t, h.p.Dispose([]*scene.Entity{a, b, sun}))
	require.NoError(t, h.p.Dispose([]*scene.Entity{a}))
	assert.Equal(t, 1, h.dev.DisposeCount(tex))
	assert.False(t, h.dev.Tracked(tex))
	assert.Nil(t, sun.DirectionalLight.Shadow)
}

func TestDisposeDropsCameraTargets(t *testing.T) {
	h := newHarness()
	cam := cameraEntity(1)
	cam.PostProcessing = &scene.PostProcessing{}
	h.frame(t, []*scene.Entity{cam}, Options{})

	_, ok := h.p.PostProcessingTargets(1)
	require.True(t, ok)
	require.NoError(t, h.p.Dispose([]*scene.Entity{cam}))
	_, ok = h.p.PostProcessingTargets(1)
	assert.False(t, ok)
}

func TestAttachmentsReusedAcrossFrames(t *testing.T) {
	h := newHarness()
	cam := cameraEntity(1)
	first := h.frame(t, []*scene.Entity{cam}, Options{})
	second := h.frame(t, []*scene.Entity{cam}, Options{})
	assert.Equal(t, first.Color.ID(), second.Color.ID())
	assert.Equal(t, 0, int(h.cache.Stats().Disposals))
}
