package webgpu

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gekko3d/lumen/render/gpu"
)

var errNoPass = errors.New("webgpu: Submit called outside RunPass")

// screen acquires the surface texture for this frame. It is released by Present.
func (d *Device) screen() (*wgpu.TextureView, error) {
	if d.screenView != nil {
		return d.screenView, nil
	}
	tex, err := d.surface.GetCurrentTexture()
	if err != nil {
		return nil, fmt.Errorf("webgpu: acquire surface texture: %w", err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("webgpu: surface view: %w", err)
	}
	d.screenTexture, d.screenView = tex, view
	return view, nil
}

func loadOp(clear bool) wgpu.LoadOp {
	if clear {
		return wgpu.LoadOpClear
	}
	return wgpu.LoadOpLoad
}

func (d *Device) passDescriptor(pass gpu.Pass) (*wgpu.RenderPassDescriptor, *target, error) {
	tgt := &target{}
	if gpu.IsNil(pass) {
		view, err := d.screen()
		if err != nil {
			return nil, nil, err
		}
		tgt.colors = []wgpu.TextureFormat{d.config.Format}
		return &wgpu.RenderPassDescriptor{
			ColorAttachments: []wgpu.RenderPassColorAttachment{{
				View:    view,
				LoadOp:  wgpu.LoadOpLoad,
				StoreOp: wgpu.StoreOpStore,
			}},
		}, tgt, nil
	}

	p, ok := pass.(*Pass)
	if !ok || !d.Tracked(pass) {
		return nil, nil, fmt.Errorf("%w: pass %q", gpu.ErrDisposed, pass.Label())
	}
	desc := p.desc
	rp := &wgpu.RenderPassDescriptor{Label: desc.Name}
	var clear wgpu.Color
	if desc.ClearColor != nil {
		c := *desc.ClearColor
		clear = wgpu.Color{R: float64(c[0]), G: float64(c[1]), B: float64(c[2]), A: float64(c[3])}
	}
	for _, a := range desc.Color {
		t, err := d.ownTexture(a.Texture)
		if err != nil {
			return nil, nil, err
		}
		view, err := t.attachment(a.Face)
		if err != nil {
			return nil, nil, err
		}
		format, _ := textureFormat(t.desc)
		tgt.colors = append(tgt.colors, format)
		rp.ColorAttachments = append(rp.ColorAttachments, wgpu.RenderPassColorAttachment{
			View:       view,
			LoadOp:     loadOp(desc.ClearColor != nil),
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: clear,
		})
	}
	if !gpu.IsNil(desc.Depth) {
		t, err := d.ownTexture(desc.Depth)
		if err != nil {
			return nil, nil, err
		}
		tgt.depth, _ = textureFormat(t.desc)
		tgt.hasDepth = true
		var clearDepth float32 = 1
		if desc.ClearDepth != nil {
			clearDepth = *desc.ClearDepth
		}
		rp.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            t.view,
			DepthLoadOp:     loadOp(desc.ClearDepth != nil),
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: clearDepth,
		}
	}
	return rp, tgt, nil
}

// RunPass encodes one render pass and submits it to the queue once draw returns.
func (d *Device) RunPass(pass gpu.Pass, viewport gpu.Viewport, draw func() error) error {
	desc, tgt, err := d.passDescriptor(pass)
	if err != nil {
		return err
	}
	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		return fmt.Errorf("webgpu: command encoder: %w", err)
	}
	defer encoder.Release()

	tgt.encoder = encoder.BeginRenderPass(desc)
	if viewport.Width() > 0 && viewport.Height() > 0 {
		tgt.encoder.SetViewport(float32(viewport[0]), float32(viewport[1]), float32(viewport[2]), float32(viewport[3]), 0, 1)
	}

	d.active = tgt
	drawErr := draw()
	d.active = nil
	endErr := tgt.encoder.End()
	defer tgt.release()
	if drawErr != nil {
		return drawErr
	}
	if endErr != nil {
		return fmt.Errorf("webgpu: end pass: %w", endErr)
	}

	cmds, err := encoder.Finish(nil)
	if err != nil {
		return fmt.Errorf("webgpu: finish: %w", err)
	}
	defer cmds.Release()
	d.queue.Submit(cmds)
	return nil
}

func (t *target) release() {
	for _, bg := range t.bindGroups {
		bg.Release()
	}
	for _, b := range t.uniformBufs {
		b.Release()
	}
	t.encoder.Release()
}

// Submit draws cmd into the pass being run. Call uniforms override the command's.
func (d *Device) Submit(cmd gpu.Command, uniforms gpu.Uniforms) error {
	tgt := d.active
	if tgt == nil {
		return errNoPass
	}
	pipe, ok := cmd.Pipeline.(*Pipeline)
	if !ok || !d.Tracked(cmd.Pipeline) {
		return fmt.Errorf("%w: command %q pipeline", gpu.ErrDisposed, cmd.Name)
	}

	names := make([]string, 0, len(cmd.Attributes))
	for name := range cmd.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	buffers := make([]*Buffer, len(names))
	for i, name := range names {
		b, ok := cmd.Attributes[name].(*Buffer)
		if !ok || !d.Tracked(b) {
			return fmt.Errorf("%w: command %q attribute %q", gpu.ErrDisposed, cmd.Name, name)
		}
		buffers[i] = b
	}

	vertices := cmd.Vertices
	if vertices == 0 {
		vertices = cmd.Count
	}
	rp, err := d.variant(pipe, tgt, buffers, vertices)
	if err != nil {
		return err
	}
	tgt.encoder.SetPipeline(rp)

	merged := mergeUniforms(cmd.Uniforms, uniforms)
	l, err := packUniforms(merged)
	if err != nil {
		return err
	}
	if err := d.bind(rp, tgt, l, merged); err != nil {
		return fmt.Errorf("webgpu: command %q: %w", cmd.Name, err)
	}

	for i, b := range buffers {
		tgt.encoder.SetVertexBuffer(uint32(i), b.buffer, 0, wgpu.WholeSize)
	}
	if !gpu.IsNil(cmd.Indices) {
		idx, ok := cmd.Indices.(*Buffer)
		if !ok || !d.Tracked(idx) {
			return fmt.Errorf("%w: command %q indices", gpu.ErrDisposed, cmd.Name)
		}
		tgt.encoder.SetIndexBuffer(idx.buffer, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
		tgt.encoder.DrawIndexed(uint32(cmd.Count), 1, 0, 0, 0)
		return nil
	}
	tgt.encoder.Draw(uint32(cmd.Count), 1, 0, 0)
	return nil
}

// variant returns the render pipeline for the pass targets and vertex layout,
// creating it on first use. Attribute locations follow the sorted attribute names.
func (d *Device) variant(p *Pipeline, tgt *target, buffers []*Buffer, vertices int) (*wgpu.RenderPipeline, error) {
	var key strings.Builder
	key.WriteString(tgt.key())
	layouts := make([]wgpu.VertexBufferLayout, len(buffers))
	for i, b := range buffers {
		components := 0
		if vertices > 0 {
			components = b.length / vertices
		}
		format, err := vertexFormat(components)
		if err != nil {
			return nil, fmt.Errorf("webgpu: pipeline %q attribute %d: %w", p.desc.Name, i, err)
		}
		fmt.Fprintf(&key, "|%d", components)
		layouts[i] = wgpu.VertexBufferLayout{
			ArrayStride: uint64(4 * components),
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes:  []wgpu.VertexAttribute{{Format: format, ShaderLocation: uint32(i)}},
		}
	}
	if rp, ok := p.variants[key.String()]; ok {
		return rp, nil
	}

	var blend *wgpu.BlendState
	if p.desc.Blend {
		blend = &wgpu.BlendState{
			Color: wgpu.BlendComponent{Operation: wgpu.BlendOperationAdd, SrcFactor: wgpu.BlendFactorOne, DstFactor: wgpu.BlendFactorOneMinusSrcAlpha},
			Alpha: wgpu.BlendComponent{Operation: wgpu.BlendOperationAdd, SrcFactor: wgpu.BlendFactorOne, DstFactor: wgpu.BlendFactorOneMinusSrcAlpha},
		}
	}
	targets := make([]wgpu.ColorTargetState, len(tgt.colors))
	for i, f := range tgt.colors {
		targets[i] = wgpu.ColorTargetState{Format: f, Blend: blend, WriteMask: wgpu.ColorWriteMaskAll}
	}

	var depth *wgpu.DepthStencilState
	if tgt.hasDepth {
		compare := wgpu.CompareFunctionAlways
		if p.desc.DepthTest {
			compare = wgpu.CompareFunctionLess
		}
		depth = &wgpu.DepthStencilState{
			Format:            tgt.depth,
			DepthWriteEnabled: p.desc.DepthWrite,
			DepthCompare:      compare,
			StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
			StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		}
	}

	rp, err := d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label: p.desc.Name,
		Vertex: wgpu.VertexState{
			Module:     p.vert,
			EntryPoint: "vs_main",
			Buffers:    layouts,
		},
		Fragment: &wgpu.FragmentState{
			Module:     p.frag,
			EntryPoint: "fs_main",
			Targets:    targets,
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		DepthStencil: depth,
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("webgpu: create pipeline %q: %w", p.desc.Name, err)
	}
	p.variants[key.String()] = rp
	d.log.Debugf("webgpu: pipeline %q variant %s", p.desc.Name, key.String())
	return rp, nil
}

func (d *Device) sampler(desc gpu.TextureDesc) (*wgpu.Sampler, error) {
	key := samplerKey{min: desc.Min, mag: desc.Mag}
	if s, ok := d.samplers[key]; ok {
		return s, nil
	}
	mipmap := wgpu.MipmapFilterModeNearest
	if desc.Min == gpu.FilterLinearMipmapLinear {
		mipmap = wgpu.MipmapFilterModeLinear
	}
	s, err := d.device.CreateSampler(&wgpu.SamplerDescriptor{
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     filterMode(desc.Mag),
		MinFilter:     filterMode(desc.Min),
		MipmapFilter:  mipmap,
		LodMinClamp:   0,
		LodMaxClamp:   32,
		Compare:       wgpu.CompareFunctionUndefined,
		MaxAnisotropy: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("create sampler: %w", err)
	}
	d.samplers[key] = s
	return s, nil
}

// bind creates bind group 0 for the command. It is released after the pass is submitted.
func (d *Device) bind(rp *wgpu.RenderPipeline, tgt *target, l *layout, uniforms gpu.Uniforms) error {
	var entries []wgpu.BindGroupEntry
	for i, name := range l.textures {
		t, err := d.ownTexture(uniforms[name].(gpu.Texture))
		if err != nil {
			return fmt.Errorf("uniform %q: %w", name, err)
		}
		s, err := d.sampler(t.desc)
		if err != nil {
			return err
		}
		entries = append(entries,
			wgpu.BindGroupEntry{Binding: uint32(2 * i), TextureView: t.view, Size: wgpu.WholeSize},
			wgpu.BindGroupEntry{Binding: uint32(2*i + 1), Sampler: s, Size: wgpu.WholeSize},
		)
	}
	if len(l.scalars) > 0 {
		buf, err := d.device.CreateBufferInit(&wgpu.BufferInitDescriptor{
			Label:    "uniforms",
			Contents: l.data,
			Usage:    wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("uniform buffer: %w", err)
		}
		tgt.uniformBufs = append(tgt.uniformBufs, buf)
		entries = append(entries, wgpu.BindGroupEntry{Binding: l.bufferBinding, Buffer: buf, Size: wgpu.WholeSize})
	}
	if len(entries) == 0 {
		return nil
	}

	bgl := rp.GetBindGroupLayout(0)
	defer bgl.Release()
	bg, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{Layout: bgl, Entries: entries})
	if err != nil {
		return fmt.Errorf("bind group: %w", err)
	}
	tgt.bindGroups = append(tgt.bindGroups, bg)
	tgt.encoder.SetBindGroup(0, bg, nil)
	return nil
}
