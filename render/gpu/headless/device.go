// Package headless implements gpu.Device without a GPU. It records every operation,
// enforces an optional memory budget and, when pixel storage is enabled, executes
// clears and fullscreen copies on CPU images.
package headless

import (
	"fmt"
	"image"

	"github.com/gekko3d/lumen/render/gpu"
)

type OpKind int

const (
	OpCreate OpKind = iota
	OpUpdate
	OpDispose
	OpBeginPass
	OpEndPass
	OpSubmit
)

func (k OpKind) String() string {
	switch k {
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDispose:
		return "dispose"
	case OpBeginPass:
		return "begin-pass"
	case OpEndPass:
		return "end-pass"
	case OpSubmit:
		return "submit"
	}
	return fmt.Sprintf("OpKind(%d)", int(k))
}

// Op is one recorded device call.
type Op struct {
	Kind     OpKind
	Resource string
	Name     string
}

type Option func(*Device)

func WithSize(width, height int) Option {
	return func(d *Device) {
		d.width = width
		d.height = height
	}
}

// WithMemoryBudget makes allocations fail with gpu.ErrOutOfMemory once the live
// texture bytes would exceed budget. Zero disables the budget.
func WithMemoryBudget(budget int64) Option {
	return func(d *Device) { d.budget = budget }
}

// WithPixels enables CPU pixel storage for colour textures and the default framebuffer.
func WithPixels(enabled bool) Option {
	return func(d *Device) { d.pixels = enabled }
}

type Device struct {
	width  int
	height int
	budget int64
	used   int64
	pixels bool

	resources map[string]gpu.Resource
	disposed  map[string]int
	ops       []Op

	current *Pass
	inPass  bool
	screen  *image.RGBA64
}

func New(opts ...Option) *Device {
	d := &Device{
		width:     1280,
		height:    720,
		resources: make(map[string]gpu.Resource),
		disposed:  make(map[string]int),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type resource struct {
	id    string
	kind  gpu.ResourceKind
	label string
}

func (r *resource) ID() string             { return r.id }
func (r *resource) Kind() gpu.ResourceKind { return r.kind }
func (r *resource) Label() string          { return r.label }
func (r *resource) SetLabel(label string)  { r.label = label }

func newResource(kind gpu.ResourceKind, label string) resource {
	return resource{id: gpu.NewID(), kind: kind, label: label}
}

type Texture struct {
	resource
	desc  gpu.TextureDesc
	faces []*image.RGBA64
}

func (t *Texture) Desc() gpu.TextureDesc { return t.desc }

// Image returns the CPU pixels of a face, or nil when nothing was written yet.
func (t *Texture) Image(face gpu.CubeFace) *image.RGBA64 {
	if t.faces == nil {
		return nil
	}
	return t.faces[face.Layer()]
}

func (t *Texture) face(face gpu.CubeFace) *image.RGBA64 {
	if t.faces == nil {
		n := 1
		if t.desc.Cube {
			n = 6
		}
		t.faces = make([]*image.RGBA64, n)
	}
	i := face.Layer()
	if t.faces[i] == nil {
		t.faces[i] = image.NewRGBA64(image.Rect(0, 0, t.desc.Width, t.desc.Height))
	}
	return t.faces[i]
}

type Pipeline struct {
	resource
	desc gpu.PipelineDesc
}

func (p *Pipeline) Desc() gpu.PipelineDesc { return p.desc }

type Pass struct {
	resource
	desc gpu.PassDesc
}

func (p *Pass) Desc() gpu.PassDesc { return p.desc }

type Buffer struct {
	resource
	n int
}

func (b *Buffer) Len() int { return b.n }

func (d *Device) record(kind OpKind, id, name string) {
	d.ops = append(d.ops, Op{Kind: kind, Resource: id, Name: name})
}

func (d *Device) allocate(size int64, name string) error {
	if d.budget > 0 && d.used+size > d.budget {
		return fmt.Errorf("%w: %q needs %d bytes, %d of %d in use", gpu.ErrOutOfMemory, name, size, d.used, d.budget)
	}
	d.used += size
	return nil
}

func (d *Device) newTexture(desc gpu.TextureDesc) (gpu.Texture, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	if err := d.allocate(desc.SizeBytes(), desc.Name); err != nil {
		return nil, err
	}
	t := &Texture{resource: newResource(gpu.KindTexture, desc.Name), desc: desc}
	d.resources[t.id] = t
	d.record(OpCreate, t.id, desc.Name)
	return t, nil
}

func (d *Device) Texture2D(desc gpu.TextureDesc) (gpu.Texture, error) {
	desc.Cube = false
	return d.newTexture(desc)
}

func (d *Device) TextureCube(desc gpu.TextureDesc) (gpu.Texture, error) {
	desc.Cube = true
	return d.newTexture(desc)
}

func (d *Device) Pipeline(desc gpu.PipelineDesc) (gpu.Pipeline, error) {
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{resource: newResource(gpu.KindPipeline, desc.Name), desc: desc}
	d.resources[p.id] = p
	d.record(OpCreate, p.id, desc.Name)
	return p, nil
}

func (d *Device) Pass(desc gpu.PassDesc) (gpu.Pass, error) {
	for _, tex := range desc.Textures() {
		if !d.Tracked(tex) {
			return nil, fmt.Errorf("%w: pass %q attachment %q", gpu.ErrUnknownResource, desc.Name, tex.Label())
		}
	}
	p := &Pass{resource: newResource(gpu.KindPass, desc.Name), desc: desc}
	d.resources[p.id] = p
	d.record(OpCreate, p.id, desc.Name)
	return p, nil
}

func (d *Device) VertexBuffer(data []float32) (gpu.Buffer, error) {
	return d.newBuffer("vertexBuffer", len(data))
}

func (d *Device) IndexBuffer(data []uint32) (gpu.Buffer, error) {
	return d.newBuffer("indexBuffer", len(data))
}

func (d *Device) newBuffer(name string, n int) (gpu.Buffer, error) {
	if err := d.allocate(int64(n)*4, name); err != nil {
		return nil, err
	}
	b := &Buffer{resource: newResource(gpu.KindBuffer, name), n: n}
	d.resources[b.id] = b
	d.record(OpCreate, b.id, name)
	return b, nil
}

func (d *Device) Update(tex gpu.Texture, desc gpu.TextureDesc) error {
	t, ok := d.lookup(tex).(*Texture)
	if !ok {
		return fmt.Errorf("%w: update %q", gpu.ErrUnknownResource, tex.Label())
	}
	desc.Cube = t.desc.Cube
	if err := desc.Validate(); err != nil {
		return err
	}
	d.used -= t.desc.SizeBytes()
	if err := d.allocate(desc.SizeBytes(), desc.Name); err != nil {
		d.used += t.desc.SizeBytes()
		return err
	}
	t.desc = desc
	t.faces = nil
	d.record(OpUpdate, t.id, desc.Name)
	return nil
}

func (d *Device) lookup(r gpu.Resource) gpu.Resource {
	if gpu.IsNil(r) {
		return nil
	}
	return d.resources[r.ID()]
}

func (d *Device) Dispose(r gpu.Resource) error {
	if gpu.IsNil(r) {
		return nil
	}
	id := r.ID()
	res, ok := d.resources[id]
	if !ok {
		if d.disposed[id] > 0 {
			return fmt.Errorf("%w: %s %q", gpu.ErrDisposed, r.Kind(), r.Label())
		}
		return fmt.Errorf("%w: %s %q", gpu.ErrUnknownResource, r.Kind(), r.Label())
	}
	switch v := res.(type) {
	case *Texture:
		d.used -= v.desc.SizeBytes()
	case *Buffer:
		d.used -= int64(v.n) * 4
	}
	delete(d.resources, id)
	d.disposed[id]++
	d.record(OpDispose, id, res.Label())
	return nil
}

func (d *Device) Tracked(r gpu.Resource) bool {
	return d.lookup(r) != nil
}

func (d *Device) Size() (int, int) {
	return d.width, d.height
}

// Resize changes the default framebuffer size.
func (d *Device) Resize(width, height int) {
	d.width = width
	d.height = height
	d.screen = nil
}

func (d *Device) Ops() []Op {
	return append([]Op(nil), d.ops...)
}

// OpsOf filters recorded operations by kind.
func (d *Device) OpsOf(kind OpKind) []Op {
	var out []Op
	for _, op := range d.ops {
		if op.Kind == kind {
			out = append(out, op)
		}
	}
	return out
}

func (d *Device) ResetOps() {
	d.ops = d.ops[:0]
}

// DisposeCount reports how many times r was successfully disposed.
func (d *Device) DisposeCount(r gpu.Resource) int {
	return d.disposed[r.ID()]
}

// Live returns the number of resources of kind currently alive.
func (d *Device) Live(kind gpu.ResourceKind) int {
	n := 0
	for _, r := range d.resources {
		if r.Kind() == kind {
			n++
		}
	}
	return n
}

func (d *Device) MemoryUsed() int64 {
	return d.used
}

// Screen returns the default framebuffer pixels, or nil when pixels are disabled.
func (d *Device) Screen() *image.RGBA64 {
	return d.screen
}
