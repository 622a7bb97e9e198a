package webgpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/gekko3d/lumen/render/gpu"
)

type resource struct {
	id    string
	kind  gpu.ResourceKind
	label string
}

func (r *resource) ID() string             { return r.id }
func (r *resource) Kind() gpu.ResourceKind { return r.kind }
func (r *resource) Label() string          { return r.label }
func (r *resource) SetLabel(label string)  { r.label = label }

type Texture struct {
	resource
	desc    gpu.TextureDesc
	texture *wgpu.Texture
	view    *wgpu.TextureView
	// faces holds one 2D view per cube face, for use as a pass attachment.
	faces [6]*wgpu.TextureView
}

func (t *Texture) Desc() gpu.TextureDesc { return t.desc }

// attachment returns the view a pass renders into.
func (t *Texture) attachment(face gpu.CubeFace) (*wgpu.TextureView, error) {
	if !t.desc.Cube {
		return t.view, nil
	}
	if face == gpu.FaceNone {
		return nil, fmt.Errorf("%w: cubemap %q attached without a face", gpu.ErrInvalidDescriptor, t.desc.Name)
	}
	return t.faces[face.Layer()], nil
}

func (t *Texture) release() {
	for i, v := range t.faces {
		if v != nil {
			v.Release()
			t.faces[i] = nil
		}
	}
	if t.view != nil {
		t.view.Release()
		t.view = nil
	}
	if t.texture != nil {
		t.texture.Release()
		t.texture = nil
	}
}

type Pipeline struct {
	resource
	desc gpu.PipelineDesc
	vert *wgpu.ShaderModule
	frag *wgpu.ShaderModule
	// variants are keyed by target formats and vertex layout.
	variants map[string]*wgpu.RenderPipeline
}

func (p *Pipeline) Desc() gpu.PipelineDesc { return p.desc }

func (p *Pipeline) release() {
	for key, rp := range p.variants {
		rp.Release()
		delete(p.variants, key)
	}
	p.vert.Release()
	p.frag.Release()
}

type Pass struct {
	resource
	desc gpu.PassDesc
}

func (p *Pass) Desc() gpu.PassDesc { return p.desc }

type Buffer struct {
	resource
	buffer *wgpu.Buffer
	length int
}

func (b *Buffer) Len() int { return b.length }

func textureFormat(desc gpu.TextureDesc) (wgpu.TextureFormat, error) {
	switch desc.PixelFormat {
	case gpu.PixelFormatRGBA8:
		if desc.Encoding == gpu.EncodingSRGB {
			return wgpu.TextureFormatRGBA8UnormSrgb, nil
		}
		return wgpu.TextureFormatRGBA8Unorm, nil
	case gpu.PixelFormatRGBA16F:
		return wgpu.TextureFormatRGBA16Float, nil
	case gpu.PixelFormatRGBA32F:
		return wgpu.TextureFormatRGBA32Float, nil
	case gpu.PixelFormatR32F:
		return wgpu.TextureFormatR32Float, nil
	case gpu.PixelFormatDepth24:
		return wgpu.TextureFormatDepth24Plus, nil
	case gpu.PixelFormatDepth32F:
		return wgpu.TextureFormatDepth32Float, nil
	}
	return wgpu.TextureFormatUndefined, fmt.Errorf("%w: texture %q has pixel format %s", gpu.ErrInvalidDescriptor, desc.Name, desc.PixelFormat)
}

func filterMode(f gpu.Filter) wgpu.FilterMode {
	if f == gpu.FilterNearest {
		return wgpu.FilterModeNearest
	}
	return wgpu.FilterModeLinear
}

// vertexFormat maps components per vertex to a float vertex format.
func vertexFormat(components int) (wgpu.VertexFormat, error) {
	switch components {
	case 1:
		return wgpu.VertexFormatFloat32, nil
	case 2:
		return wgpu.VertexFormatFloat32x2, nil
	case 3:
		return wgpu.VertexFormatFloat32x3, nil
	case 4:
		return wgpu.VertexFormatFloat32x4, nil
	}
	return wgpu.VertexFormatUndefined, fmt.Errorf("%w: %d components per vertex", gpu.ErrInvalidDescriptor, components)
}
