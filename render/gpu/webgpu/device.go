// Package webgpu implements gpu.Device on WebGPU, presenting to a GLFW window surface.
package webgpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/cogentcore/webgpu/wgpuglfw"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/gekko3d/lumen/render/gpu"
	"github.com/gekko3d/lumen/render/shaders"
)

type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Warnf(string, ...any)  {}

type Option func(*Device)

func WithLogger(l Logger) Option {
	return func(d *Device) {
		if l != nil {
			d.log = l
		}
	}
}

// WithVSync selects FIFO presentation when enabled, immediate otherwise.
func WithVSync(enabled bool) Option {
	return func(d *Device) { d.vsync = enabled }
}

type samplerKey struct {
	min, mag gpu.Filter
}

// target is the resolved attachment set of the pass being recorded.
type target struct {
	colors      []wgpu.TextureFormat
	depth       wgpu.TextureFormat
	hasDepth    bool
	encoder     *wgpu.RenderPassEncoder
	bindGroups  []*wgpu.BindGroup
	uniformBufs []*wgpu.Buffer
}

func (t *target) key() string {
	return fmt.Sprintf("%v|%v|%v", t.colors, t.depth, t.hasDepth)
}

type Device struct {
	log   Logger
	vsync bool

	window   *glfw.Window
	instance *wgpu.Instance
	surface  *wgpu.Surface
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	config   *wgpu.SurfaceConfiguration

	resources map[string]gpu.Resource
	disposed  map[string]bool
	samplers  map[samplerKey]*wgpu.Sampler

	screenTexture *wgpu.Texture
	screenView    *wgpu.TextureView
	active        *target
}

// New creates a device presenting to window. The caller keeps ownership of the window.
func New(window *glfw.Window, opts ...Option) (*Device, error) {
	d := &Device{
		log:       nopLogger{},
		vsync:     true,
		window:    window,
		resources: make(map[string]gpu.Resource),
		disposed:  make(map[string]bool),
		samplers:  make(map[samplerKey]*wgpu.Sampler),
	}
	for _, opt := range opts {
		opt(d)
	}

	d.instance = wgpu.CreateInstance(nil)
	d.surface = d.instance.CreateSurface(wgpuglfw.GetSurfaceDescriptor(window))
	adapter, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		CompatibleSurface: d.surface,
		PowerPreference:   wgpu.PowerPreferenceHighPerformance,
	})
	if err != nil {
		d.Release()
		return nil, fmt.Errorf("webgpu: request adapter: %w", err)
	}
	d.adapter = adapter
	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{Label: "lumen"})
	if err != nil {
		d.Release()
		return nil, fmt.Errorf("webgpu: request device: %w", err)
	}
	d.device = device
	d.queue = device.GetQueue()

	width, height := window.GetFramebufferSize()
	caps := d.surface.GetCapabilities(adapter)
	mode := wgpu.PresentModeImmediate
	if d.vsync {
		mode = wgpu.PresentModeFifo
	}
	d.config = &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      caps.Formats[0],
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: mode,
		AlphaMode:   caps.AlphaModes[0],
	}
	d.surface.Configure(d.adapter, d.device, d.config)
	d.log.Debugf("webgpu: surface %dx%d format %v", width, height, d.config.Format)
	return d, nil
}

func (d *Device) Size() (int, int) {
	return int(d.config.Width), int(d.config.Height)
}

// Resize reconfigures the surface, typically from the window's framebuffer size callback.
func (d *Device) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	d.config.Width = uint32(width)
	d.config.Height = uint32(height)
	d.surface.Configure(d.adapter, d.device, d.config)
}

func (d *Device) add(r gpu.Resource) {
	d.resources[r.ID()] = r
}

func newResource(kind gpu.ResourceKind, label string) resource {
	return resource{id: gpu.NewID(), kind: kind, label: label}
}

func (d *Device) Texture2D(desc gpu.TextureDesc) (gpu.Texture, error) {
	desc.Cube = false
	return d.texture(desc)
}

func (d *Device) TextureCube(desc gpu.TextureDesc) (gpu.Texture, error) {
	desc.Cube = true
	return d.texture(desc)
}

func (d *Device) texture(desc gpu.TextureDesc) (gpu.Texture, error) {
	t := &Texture{resource: newResource(gpu.KindTexture, desc.Name)}
	if err := d.allocateTexture(t, desc); err != nil {
		return nil, err
	}
	d.add(t)
	return t, nil
}

// allocateTexture creates the GPU texture and views for desc. Mip chains are not
// generated, so a single level is allocated.
func (d *Device) allocateTexture(t *Texture, desc gpu.TextureDesc) error {
	if err := desc.Validate(); err != nil {
		return err
	}
	format, err := textureFormat(desc)
	if err != nil {
		return err
	}
	layers := uint32(1)
	if desc.Cube {
		layers = 6
	}
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Name,
		Size: wgpu.Extent3D{
			Width:              uint32(desc.Width),
			Height:             uint32(desc.Height),
			DepthOrArrayLayers: layers,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("webgpu: create texture %q: %w", desc.Name, err)
	}

	next := &Texture{texture: tex, desc: desc}
	viewDim := wgpu.TextureViewDimension2D
	if desc.Cube {
		viewDim = wgpu.TextureViewDimensionCube
	}
	next.view, err = tex.CreateView(&wgpu.TextureViewDescriptor{
		Label:           desc.Name,
		Format:          format,
		Dimension:       viewDim,
		MipLevelCount:   1,
		ArrayLayerCount: layers,
	})
	if err != nil {
		next.release()
		return fmt.Errorf("webgpu: create view %q: %w", desc.Name, err)
	}
	if desc.Cube {
		for i := range next.faces {
			next.faces[i], err = tex.CreateView(&wgpu.TextureViewDescriptor{
				Label:           fmt.Sprintf("%s face %d", desc.Name, i),
				Format:          format,
				Dimension:       wgpu.TextureViewDimension2D,
				MipLevelCount:   1,
				BaseArrayLayer:  uint32(i),
				ArrayLayerCount: 1,
			})
			if err != nil {
				next.release()
				return fmt.Errorf("webgpu: create face view %q: %w", desc.Name, err)
			}
		}
	}

	t.release()
	t.texture, t.view, t.faces, t.desc = next.texture, next.view, next.faces, desc
	return nil
}

// Update reallocates tex when desc changes its shape or format. Contents are lost.
func (d *Device) Update(tex gpu.Texture, desc gpu.TextureDesc) error {
	t, err := d.ownTexture(tex)
	if err != nil {
		return err
	}
	desc.Cube = t.desc.Cube
	if desc == t.desc {
		return nil
	}
	return d.allocateTexture(t, desc)
}

func (d *Device) ownTexture(tex gpu.Texture) (*Texture, error) {
	t, ok := tex.(*Texture)
	if !ok || gpu.IsNil(tex) {
		return nil, fmt.Errorf("%w: texture %T", gpu.ErrUnknownResource, tex)
	}
	if d.disposed[t.id] {
		return nil, fmt.Errorf("%w: texture %q", gpu.ErrDisposed, t.label)
	}
	return t, nil
}

func (d *Device) Pipeline(desc gpu.PipelineDesc) (gpu.Pipeline, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	frag, err := shaders.Build(desc.Frag, desc.DefineList())
	if err != nil {
		return nil, fmt.Errorf("webgpu: pipeline %q: %w", desc.Name, err)
	}
	vertModule, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          desc.Name + " vert",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: desc.Vert},
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: pipeline %q vertex shader: %w", desc.Name, err)
	}
	fragModule, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          desc.Name + " frag",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: frag},
	})
	if err != nil {
		vertModule.Release()
		return nil, fmt.Errorf("webgpu: pipeline %q fragment shader: %w", desc.Name, err)
	}
	p := &Pipeline{
		resource: newResource(gpu.KindPipeline, desc.Name),
		desc:     desc,
		vert:     vertModule,
		frag:     fragModule,
		variants: make(map[string]*wgpu.RenderPipeline),
	}
	d.add(p)
	return p, nil
}

func (d *Device) Pass(desc gpu.PassDesc) (gpu.Pass, error) {
	for _, t := range desc.Textures() {
		if !d.Tracked(t) {
			return nil, fmt.Errorf("%w: pass %q attaches untracked texture %q", gpu.ErrUnknownResource, desc.Name, t.Label())
		}
	}
	p := &Pass{resource: newResource(gpu.KindPass, desc.Name), desc: desc}
	d.add(p)
	return p, nil
}

func (d *Device) VertexBuffer(data []float32) (gpu.Buffer, error) {
	return d.buffer("vertexBuffer", wgpu.ToBytes(data), len(data), wgpu.BufferUsageVertex)
}

func (d *Device) IndexBuffer(data []uint32) (gpu.Buffer, error) {
	return d.buffer("indexBuffer", wgpu.ToBytes(data), len(data), wgpu.BufferUsageIndex)
}

func (d *Device) buffer(label string, contents []byte, length int, usage wgpu.BufferUsage) (gpu.Buffer, error) {
	buf, err := d.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
		Label:    label,
		Contents: contents,
		Usage:    usage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: create %s: %w", label, err)
	}
	b := &Buffer{resource: newResource(gpu.KindBuffer, label), buffer: buf, length: length}
	d.add(b)
	return b, nil
}

func (d *Device) Tracked(r gpu.Resource) bool {
	if gpu.IsNil(r) {
		return false
	}
	_, ok := d.resources[r.ID()]
	return ok
}

func (d *Device) Dispose(r gpu.Resource) error {
	if gpu.IsNil(r) {
		return fmt.Errorf("%w: nil resource", gpu.ErrUnknownResource)
	}
	id := r.ID()
	if d.disposed[id] {
		return fmt.Errorf("%w: %s %q", gpu.ErrDisposed, r.Kind(), r.Label())
	}
	own, ok := d.resources[id]
	if !ok {
		return fmt.Errorf("%w: %s %q", gpu.ErrUnknownResource, r.Kind(), r.Label())
	}
	switch v := own.(type) {
	case *Texture:
		v.release()
	case *Pipeline:
		v.release()
	case *Buffer:
		v.buffer.Release()
	}
	delete(d.resources, id)
	d.disposed[id] = true
	return nil
}

// Present shows the frame rendered into the default framebuffer, if any.
func (d *Device) Present() {
	if d.screenView == nil {
		return
	}
	d.surface.Present()
	d.screenView.Release()
	d.screenTexture.Release()
	d.screenView, d.screenTexture = nil, nil
}

// Release frees every live resource and the device itself.
func (d *Device) Release() {
	for _, r := range d.resources {
		_ = d.Dispose(r)
	}
	for key, s := range d.samplers {
		s.Release()
		delete(d.samplers, key)
	}
	if d.screenView != nil {
		d.screenView.Release()
		d.screenTexture.Release()
		d.screenView, d.screenTexture = nil, nil
	}
	if d.queue != nil {
		d.queue.Release()
	}
	if d.device != nil {
		d.device.Release()
	}
	if d.adapter != nil {
		d.adapter.Release()
	}
	if d.surface != nil {
		d.surface.Release()
	}
	if d.instance != nil {
		d.instance.Release()
	}
}
