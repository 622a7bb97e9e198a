package pipeline

import (
	"fmt"

	"github.com/gekko3d/lumen/render/descriptors"
	"github.com/gekko3d/lumen/render/gpu"
	"github.com/gekko3d/lumen/render/graph"
	"github.com/gekko3d/lumen/render/scene"
	"github.com/gekko3d/lumen/render/shadow"
)

// Update records the frame's passes for one view. The returned attachments are filled
// when the graph ends the frame.
func (p *RenderPipeline) Update(entities []*scene.Entity, opts Options) (*Attachments, error) {
	view, err := p.resolveView(entities, opts.RenderView)
	if err != nil {
		return nil, err
	}
	camEntity := view.CameraEntity
	post := camEntity.PostProcessing
	normalize(&view, opts.Offscreen, post)

	att, err := p.attachments(view, post)
	if err != nil {
		return nil, err
	}

	shadowMaps, err := p.renderShadows(entities, opts.Renderers)
	if err != nil {
		return nil, err
	}

	inView := filterLayer(entities, camEntity.Layer)
	passView := view.AtOrigin()
	locations := att.Locations()

	clearColor := view.Camera.ClearColor
	mainPass, err := p.cache.Pass(gpu.PassDesc{
		Name:       "mainPass",
		Color:      att.colorAttachments(),
		Depth:      att.Depth,
		ClearColor: &clearColor,
		ClearDepth: gpu.ClearDepth(1),
	})
	if err != nil {
		return nil, err
	}
	p.graph.RenderPass(graph.RenderPass{
		Name: fmt.Sprintf("MainPass [%s]", view.Viewport),
		Uses: shadowMaps,
		View: &passView,
		Pass: mainPass,
		Render: func() error {
			draw := DrawOptions{AttachmentsLocations: locations}
			visible := scene.CullEntities(inView, view.Camera)
			for _, r := range opts.Renderers {
				if o, ok := r.(OpaqueRenderer); ok {
					if err := o.RenderOpaque(&view, visible, draw); err != nil {
						return err
					}
				}
			}
			for _, r := range opts.Renderers {
				if b, ok := r.(BackgroundRenderer); ok {
					if err := b.RenderBackground(&view, inView, draw); err != nil {
						return err
					}
				}
			}
			return nil
		},
	})

	var grab gpu.Texture
	if needsGrabPass(inView) {
		if grab, err = p.grabPass(view, att); err != nil {
			return nil, err
		}
	}

	transparentPass, err := p.cache.Pass(gpu.PassDesc{
		Name:  "transparentPass",
		Color: []gpu.Attachment{{Texture: att.Color}},
		Depth: att.Depth,
	})
	if err != nil {
		return nil, err
	}
	p.graph.RenderPass(graph.RenderPass{
		Name: fmt.Sprintf("TransparentMainPass [%s]", view.Viewport),
		Uses: append(append([]gpu.Texture(nil), shadowMaps...), grab),
		View: &passView,
		Pass: transparentPass,
		Render: func() error {
			draw := DrawOptions{
				AttachmentsLocations:   map[string]int{string(OutputColor): 0},
				BackgroundColorTexture: grab,
			}
			visible := scene.CullEntities(inView, view.Camera)
			for _, r := range opts.Renderers {
				if t, ok := r.(TransparentRenderer); ok {
					if err := t.RenderTransparent(&view, visible, draw); err != nil {
						return err
					}
				}
			}
			return nil
		},
	})

	if post != nil {
		targets, err := p.postTargetsFor(camEntity.ID, view.Viewport)
		if err != nil {
			return nil, err
		}
		p.graph.RenderPass(graph.RenderPass{
			Name: fmt.Sprintf("PostProcessingPass [%s]", view.Viewport),
			Uses: att.ColorList(),
			View: &passView,
			Render: func() error {
				po := PostOptions{Attachments: att, Descriptors: p.descriptors, Targets: targets, Cache: p.cache}
				for _, r := range opts.Renderers {
					if pr, ok := r.(PostRenderer); ok {
						if err := pr.RenderPost(&view, inView, po); err != nil {
							return err
						}
					}
				}
				return nil
			},
		})
	}

	if !opts.Offscreen {
		if err := p.blitPass(view, att, post != nil); err != nil {
			return nil, err
		}
	}

	if p.debug {
		p.log.Debugf("pipeline: camera %d viewport [%s] outputs %v shadow maps %d", camEntity.ID, view.Viewport, locations, len(shadowMaps))
	}
	return att, nil
}

// resolveView copies the requested view or builds one from the first camera entity.
func (p *RenderPipeline) resolveView(entities []*scene.Entity, requested *scene.RenderView) (scene.RenderView, error) {
	var view scene.RenderView
	if requested != nil {
		view = *requested
	}
	if view.CameraEntity == nil {
		for _, e := range entities {
			if e.Camera == nil {
				continue
			}
			if view.Camera == nil || view.Camera == e.Camera {
				view.CameraEntity = e
				break
			}
		}
	}
	if view.CameraEntity == nil || view.CameraEntity.Camera == nil {
		return view, ErrNoCamera
	}
	if view.Camera == nil {
		view.Camera = view.CameraEntity.Camera
	}
	if view.Viewport.Width() == 0 || view.Viewport.Height() == 0 {
		w, h := p.device.Size()
		view.Viewport = gpu.Viewport{0, 0, w, h}
	}
	return view, nil
}

// normalize fills unset exposure, tone map and encoding. Drawing to screen renders
// linear and leaves tone mapping to the blit; offscreen output carries the camera's
// settings when nothing post-processes it.
func normalize(view *scene.RenderView, offscreen bool, post *scene.PostProcessing) {
	exposure, toneMap, encoding := float32(1), gpu.ToneMapNone, gpu.EncodingLinear
	if offscreen && post == nil && view.Camera.OutputEncoding == gpu.EncodingGamma {
		exposure, toneMap, encoding = view.Camera.Exposure, view.Camera.ToneMap, view.Camera.OutputEncoding
	}
	if view.Exposure == 0 {
		view.Exposure = exposure
	}
	if view.ToneMap == gpu.ToneMapNone {
		view.ToneMap = toneMap
	}
	if view.OutputEncoding == 0 {
		view.OutputEncoding = encoding
	}
}

func (p *RenderPipeline) attachments(view scene.RenderView, post *scene.PostProcessing) (*Attachments, error) {
	w, h := view.Viewport.Width(), view.Viewport.Height()
	main := p.descriptors.MainPass

	alloc := func(name Output, desc gpu.TextureDesc) (gpu.Texture, error) {
		tex, err := p.cache.Texture2D(descriptors.Sized(desc, w, h))
		if err != nil {
			return nil, err
		}
		tex.SetLabel(fmt.Sprintf("mainPass%s (id: %s)", name, tex.ID()))
		return tex, nil
	}

	var err error
	att := &Attachments{}
	if att.Color, err = alloc(OutputColor, main.OutputTexture); err != nil {
		return nil, err
	}
	if p.outputs[OutputDepth] {
		if att.Depth, err = alloc(OutputDepth, main.OutputDepthTexture); err != nil {
			return nil, err
		}
	}
	if p.outputs[OutputNormal] || (post != nil && post.AO != nil) {
		if att.Normal, err = alloc(OutputNormal, main.OutputTexture); err != nil {
			return nil, err
		}
	}
	if p.outputs[OutputEmissive] || (post != nil && post.Bloom != nil) {
		if att.Emissive, err = alloc(OutputEmissive, main.OutputTexture); err != nil {
			return nil, err
		}
	}
	if p.outputs[OutputVelocity] {
		if att.Velocity, err = alloc(OutputVelocity, main.VelocityTexture); err != nil {
			return nil, err
		}
	}
	return att, nil
}

// renderShadows renders the shadow map of every ready shadow-casting light and returns
// the maps rendered this frame.
func (p *RenderPipeline) renderShadows(entities []*scene.Entity, renderers []Renderer) ([]gpu.Texture, error) {
	var casters []*scene.Entity
	for _, e := range entities {
		if e.CastsShadows() {
			casters = append(casters, e)
		}
	}
	if len(casters) == 0 {
		return nil, nil
	}
	if p.shadows == nil {
		p.shadows = shadow.New(p.graph, p.cache, p.descriptors, p.log)
	}

	draw := func(view *scene.RenderView, light scene.ShadowLight) error {
		opts := DrawOptions{
			AttachmentsLocations: map[string]int{string(OutputColor): 0},
			ShadowMappingLight:   light,
		}
		for _, r := range renderers {
			if s, ok := r.(ShadowRenderer); ok {
				if err := s.RenderShadow(view, entities, opts); err != nil {
					return err
				}
			}
		}
		return nil
	}

	var maps []gpu.Texture
	for _, e := range entities {
		for _, light := range e.Lights() {
			base := light.Base()
			if !base.CastShadows || !p.CheckLight(base, e) {
				continue
			}
			var err error
			switch light.(type) {
			case *scene.DirectionalLight:
				err = p.shadows.RenderDirectionalLightShadowMap(e, casters, draw)
			case *scene.PointLight:
				err = p.shadows.RenderPointLightShadowMap(e, casters, draw)
			case *scene.SpotLight:
				err = p.shadows.RenderSpotLightShadowMap(e, casters, draw)
			case *scene.AreaLight:
				if e.SpotLight != nil {
					p.log.Warnf("pipeline: entity %d has both a spot and an area light, area shadows skipped", e.ID)
					continue
				}
				err = p.shadows.RenderSpotLightShadowMap(e, casters, draw)
			}
			if err != nil {
				return nil, err
			}
			maps = append(maps, base.Shadow.Textures()...)
		}
	}
	return maps, nil
}

// filterLayer keeps untagged entities, plus those on the camera's layer when it has one.
func filterLayer(entities []*scene.Entity, layer string) []*scene.Entity {
	out := make([]*scene.Entity, 0, len(entities))
	for _, e := range entities {
		if e.Layer == "" || (layer != "" && e.Layer == layer) {
			out = append(out, e)
		}
	}
	return out
}

func needsGrabPass(entities []*scene.Entity) bool {
	for _, e := range entities {
		if e.Material != nil && e.Material.Transmission > 0 {
			return true
		}
	}
	return false
}

// grabPass copies the main colour into a mipmapped power-of-two texture for refraction.
func (p *RenderPipeline) grabPass(view scene.RenderView, att *Attachments) (gpu.Texture, error) {
	w := descriptors.PrevPowerOfTwo(view.Viewport.Width())
	h := descriptors.PrevPowerOfTwo(view.Viewport.Height())
	grabView := view
	grabView.Viewport = gpu.Viewport{0, 0, w, h}

	tex, err := p.cache.Texture2D(descriptors.Sized(p.descriptors.GrabPass.ColorCopyTexture, w, h))
	if err != nil {
		return nil, err
	}
	tex.SetLabel(fmt.Sprintf("grabPassOutput (id: %s)", tex.ID()))

	tri, err := p.cache.FullscreenTriangle()
	if err != nil {
		return nil, err
	}
	pipe, err := p.cache.Pipeline(p.descriptors.GrabPass.CopyTexturePipeline)
	if err != nil {
		return nil, err
	}
	pass, err := p.cache.Pass(gpu.PassDesc{Name: "grabPass", Color: []gpu.Attachment{{Texture: tex}}})
	if err != nil {
		return nil, err
	}

	cmd := gpu.Command{Name: "grabPassCopyTextureCmd", Pipeline: pipe, Attributes: tri.Attributes, Count: tri.Count}
	p.graph.RenderPass(graph.RenderPass{
		Name: fmt.Sprintf("GrabPass [%s]", grabView.Viewport),
		Uses: []gpu.Texture{att.Color},
		View: &grabView,
		Pass: pass,
		Render: func() error {
			return p.device.Submit(cmd, gpu.Uniforms{
				"uViewport": grabView.Viewport,
				"uTexture":  att.Color,
			})
		},
	})
	return tex, nil
}

// blitPass presents the colour attachment on the default framebuffer. Post-processing
// output is already tone mapped and encoded.
func (p *RenderPipeline) blitPass(view scene.RenderView, att *Attachments, postProcessed bool) error {
	cam := view.Camera
	exposure, toneMap, encoding := cam.Exposure, cam.ToneMap, cam.OutputEncoding
	if postProcessed {
		exposure, toneMap, encoding = 1, gpu.ToneMapNone, gpu.EncodingLinear
	}
	if exposure == 0 {
		exposure = 1
	}
	if encoding == 0 {
		encoding = gpu.EncodingLinear
	}

	tri, err := p.cache.FullscreenTriangle()
	if err != nil {
		return err
	}
	pipe, err := p.cache.Pipeline(p.descriptors.BlitPipeline(toneMap))
	if err != nil {
		return err
	}

	cmd := gpu.Command{Name: "drawBlitFullScreenTriangleCmd", Pipeline: pipe, Attributes: tri.Attributes, Count: tri.Count}
	p.graph.RenderPass(graph.RenderPass{
		Name: fmt.Sprintf("BlitPass [%s]", view.Viewport),
		Uses: []gpu.Texture{att.Color},
		View: &view,
		Render: func() error {
			return p.device.Submit(cmd, gpu.Uniforms{
				"uExposure":       exposure,
				"uOutputEncoding": encoding,
				"uTexture":        att.Color,
			})
		},
	})
	return nil
}
