// Package gpu is the opaque resource-handle abstraction the render core talks to.
// Implementations live in the headless and webgpu subpackages.
package gpu

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type ResourceKind int

const (
	KindTexture ResourceKind = iota
	KindPipeline
	KindPass
	KindBuffer
)

func (k ResourceKind) String() string {
	switch k {
	case KindTexture:
		return "texture"
	case KindPipeline:
		return "pipeline"
	case KindPass:
		return "pass"
	case KindBuffer:
		return "buffer"
	}
	return fmt.Sprintf("ResourceKind(%d)", int(k))
}

type Resource interface {
	ID() string
	Kind() ResourceKind
	Label() string
	SetLabel(label string)
}

type Texture interface {
	Resource
	Desc() TextureDesc
}

type Pipeline interface {
	Resource
	Desc() PipelineDesc
}

type Pass interface {
	Resource
	Desc() PassDesc
}

type Buffer interface {
	Resource
	Len() int
}

// TextureDesc identifies a texture's shape and format. Equal descriptors are interchangeable.
type TextureDesc struct {
	Name        string
	Width       int
	Height      int
	PixelFormat PixelFormat
	Encoding    Encoding
	Min         Filter
	Mag         Filter
	Mipmap      bool
	Cube        bool
}

func (d TextureDesc) Validate() error {
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("%w: texture %q has size %dx%d", ErrInvalidDescriptor, d.Name, d.Width, d.Height)
	}
	if d.Cube && d.Width != d.Height {
		return fmt.Errorf("%w: cubemap %q is not square (%dx%d)", ErrInvalidDescriptor, d.Name, d.Width, d.Height)
	}
	return nil
}

// SizeBytes is the allocation size including mip chain and cube faces.
func (d TextureDesc) SizeBytes() int64 {
	size := int64(d.Width) * int64(d.Height) * int64(d.PixelFormat.BytesPerPixel())
	if d.Mipmap {
		size = size * 4 / 3
	}
	if d.Cube {
		size *= 6
	}
	return size
}

// PipelineDesc is comparable so it can key a cache directly.
type PipelineDesc struct {
	Name       string
	Vert       string
	Frag       string
	Defines    string
	DepthTest  bool
	DepthWrite bool
	Blend      bool
}

// Defines joins shader defines ("NAME VALUE") into the PipelineDesc.Defines form, skipping empty entries.
func Defines(defs ...string) string {
	out := make([]string, 0, len(defs))
	for _, d := range defs {
		if d != "" {
			out = append(out, d)
		}
	}
	return strings.Join(out, "\n")
}

func (d PipelineDesc) DefineList() []string {
	if d.Defines == "" {
		return nil
	}
	return strings.Split(d.Defines, "\n")
}

func (d PipelineDesc) Validate() error {
	if d.Vert == "" || d.Frag == "" {
		return fmt.Errorf("%w: pipeline %q is missing shader source", ErrInvalidDescriptor, d.Name)
	}
	return nil
}

type Attachment struct {
	Texture Texture
	Face    CubeFace
}

type PassDesc struct {
	Name       string
	Color      []Attachment
	Depth      Texture
	ClearColor *[4]float32
	ClearDepth *float32
}

// Key is a deep-equality key over the descriptor: attachment identities, faces and clear values.
func (d PassDesc) Key() string {
	var b strings.Builder
	b.WriteString(d.Name)
	for _, a := range d.Color {
		if IsNil(a.Texture) {
			b.WriteString("|c:-")
			continue
		}
		fmt.Fprintf(&b, "|c:%s@%d", a.Texture.ID(), a.Face)
	}
	if !IsNil(d.Depth) {
		fmt.Fprintf(&b, "|d:%s", d.Depth.ID())
	}
	if d.ClearColor != nil {
		fmt.Fprintf(&b, "|cc:%v", *d.ClearColor)
	}
	if d.ClearDepth != nil {
		fmt.Fprintf(&b, "|cd:%v", *d.ClearDepth)
	}
	return b.String()
}

// Textures lists the non-nil colour and depth attachments of the pass.
func (d PassDesc) Textures() []Texture {
	out := make([]Texture, 0, len(d.Color)+1)
	for _, a := range d.Color {
		if !IsNil(a.Texture) {
			out = append(out, a.Texture)
		}
	}
	if !IsNil(d.Depth) {
		out = append(out, d.Depth)
	}
	return out
}

func ClearColor(r, g, b, a float32) *[4]float32 {
	return &[4]float32{r, g, b, a}
}

func ClearDepth(d float32) *float32 {
	return &d
}

type Uniforms map[string]any

// Command is one draw submission.
type Command struct {
	Name       string
	Pipeline   Pipeline
	Attributes map[string]Buffer
	Indices    Buffer
	// Count is the number of indices when Indices is set, else of vertices.
	Count int
	// Vertices sizes the attribute layout of indexed draws. Zero means Count.
	Vertices int
	Uniforms Uniforms
}

// Device creates, updates and disposes GPU resources and executes passes.
// Every error it returns is fatal for the current frame.
type Device interface {
	Texture2D(desc TextureDesc) (Texture, error)
	TextureCube(desc TextureDesc) (Texture, error)
	Pipeline(desc PipelineDesc) (Pipeline, error)
	Pass(desc PassDesc) (Pass, error)
	VertexBuffer(data []float32) (Buffer, error)
	IndexBuffer(data []uint32) (Buffer, error)
	Update(tex Texture, desc TextureDesc) error

	// RunPass binds pass (nil means the default framebuffer), applies its clears and
	// calls draw. Submits issued by draw target that pass.
	RunPass(pass Pass, viewport Viewport, draw func() error) error
	Submit(cmd Command, uniforms Uniforms) error

	Dispose(r Resource) error
	Tracked(r Resource) bool
	Size() (width, height int)
}

// NewID returns a fresh resource identifier.
func NewID() string {
	return uuid.NewString()
}
