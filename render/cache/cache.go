// Package cache reuses GPU resources across frames by descriptor and releases the ones
// that go unused for longer than their retention window.
package cache

import (
	"errors"
	"fmt"

	"github.com/gekko3d/lumen/render/gpu"
)

const (
	DefaultTextureRetention  = 1
	DefaultPassRetention     = 1
	DefaultPipelineRetention = 120
)

type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Warnf(string, ...any)  {}

type Option func(*Cache)

func WithTextureRetention(frames uint64) Option {
	return func(c *Cache) { c.textureRetention = frames }
}

func WithPipelineRetention(frames uint64) Option {
	return func(c *Cache) { c.pipelineRetention = frames }
}

func WithPassRetention(frames uint64) Option {
	return func(c *Cache) { c.passRetention = frames }
}

func WithLogger(l Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}

type entry struct {
	res      gpu.Resource
	lastUsed uint64
}

type Stats struct {
	Frame       uint64
	Textures    int
	Pipelines   int
	Passes      int
	Allocations uint64
	Disposals   uint64
	Hits        uint64
	Misses      uint64
}

// FullscreenTriangle is the shared geometry for fullscreen passes.
type FullscreenTriangle struct {
	Attributes map[string]gpu.Buffer
	Count      int
}

// Cache owns every transient texture, pipeline and pass it hands out.
// Pipelines and passes are shared within a frame; a texture is handed out at most once per frame.
type Cache struct {
	device gpu.Device
	log    Logger

	textureRetention  uint64
	pipelineRetention uint64
	passRetention     uint64

	frame     uint64
	textures  map[gpu.TextureDesc][]*entry
	pipelines map[gpu.PipelineDesc]*entry
	passes    map[string]*entry
	byID      map[string]*entry
	triangle  *FullscreenTriangle

	stats Stats
}

func New(device gpu.Device, opts ...Option) *Cache {
	c := &Cache{
		device:            device,
		log:               nopLogger{},
		textureRetention:  DefaultTextureRetention,
		pipelineRetention: DefaultPipelineRetention,
		passRetention:     DefaultPassRetention,
		textures:          make(map[gpu.TextureDesc][]*entry),
		pipelines:         make(map[gpu.PipelineDesc]*entry),
		passes:            make(map[string]*entry),
		byID:              make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) BeginFrame() {
	c.frame++
}

func (c *Cache) Frame() uint64 {
	return c.frame
}

func allocError(kind gpu.ResourceKind, name string, err error) error {
	return fmt.Errorf("cache: allocate %s %q: %w", kind, name, err)
}

func (c *Cache) Texture2D(desc gpu.TextureDesc) (gpu.Texture, error) {
	desc.Cube = false
	return c.texture(desc, c.device.Texture2D)
}

func (c *Cache) TextureCube(desc gpu.TextureDesc) (gpu.Texture, error) {
	desc.Cube = true
	return c.texture(desc, c.device.TextureCube)
}

func (c *Cache) texture(desc gpu.TextureDesc, create func(gpu.TextureDesc) (gpu.Texture, error)) (gpu.Texture, error) {
	for _, e := range c.textures[desc] {
		if e.lastUsed != c.frame {
			e.lastUsed = c.frame
			c.stats.Hits++
			return e.res.(gpu.Texture), nil
		}
	}
	c.stats.Misses++
	tex, err := create(desc)
	if err != nil {
		return nil, allocError(gpu.KindTexture, desc.Name, err)
	}
	e := &entry{res: tex, lastUsed: c.frame}
	c.textures[desc] = append(c.textures[desc], e)
	c.track(e)
	return tex, nil
}

func (c *Cache) Pipeline(desc gpu.PipelineDesc) (gpu.Pipeline, error) {
	if e, ok := c.pipelines[desc]; ok {
		e.lastUsed = c.frame
		c.stats.Hits++
		return e.res.(gpu.Pipeline), nil
	}
	c.stats.Misses++
	p, err := c.device.Pipeline(desc)
	if err != nil {
		return nil, allocError(gpu.KindPipeline, desc.Name, err)
	}
	e := &entry{res: p, lastUsed: c.frame}
	c.pipelines[desc] = e
	c.track(e)
	return p, nil
}

func (c *Cache) Pass(desc gpu.PassDesc) (gpu.Pass, error) {
	key := desc.Key()
	if e, ok := c.passes[key]; ok {
		e.lastUsed = c.frame
		c.stats.Hits++
		return e.res.(gpu.Pass), nil
	}
	c.stats.Misses++
	p, err := c.device.Pass(desc)
	if err != nil {
		return nil, allocError(gpu.KindPass, desc.Name, err)
	}
	e := &entry{res: p, lastUsed: c.frame}
	c.passes[key] = e
	c.track(e)
	return p, nil
}

// FullscreenTriangle lazily creates the triangle covering clip space. It lives until Dispose.
func (c *Cache) FullscreenTriangle() (*FullscreenTriangle, error) {
	if c.triangle != nil {
		return c.triangle, nil
	}
	positions, err := c.device.VertexBuffer([]float32{-1, -1, 3, -1, -1, 3})
	if err != nil {
		return nil, allocError(gpu.KindBuffer, "fullscreenTriangle", err)
	}
	uvs, err := c.device.VertexBuffer([]float32{0, 0, 2, 0, 0, 2})
	if err != nil {
		_ = c.device.Dispose(positions)
		return nil, allocError(gpu.KindBuffer, "fullscreenTriangle", err)
	}
	c.stats.Allocations += 2
	c.triangle = &FullscreenTriangle{
		Attributes: map[string]gpu.Buffer{"aPosition": positions, "aTexCoord0": uvs},
		Count:      3,
	}
	return c.triangle, nil
}

func (c *Cache) track(e *entry) {
	c.byID[e.res.ID()] = e
	c.stats.Allocations++
}

// Retain marks a cached resource as used this frame. Unknown resources are ignored.
func (c *Cache) Retain(r gpu.Resource) {
	if gpu.IsNil(r) {
		return
	}
	if e, ok := c.byID[r.ID()]; ok {
		e.lastUsed = c.frame
	}
}

// Owns reports whether r was allocated by the cache and is still alive.
func (c *Cache) Owns(r gpu.Resource) bool {
	if gpu.IsNil(r) {
		return false
	}
	_, ok := c.byID[r.ID()]
	return ok
}

func (c *Cache) stale(e *entry, retention uint64) bool {
	return c.frame-e.lastUsed > retention
}

// EndFrame disposes entries unused for longer than their retention window. Passes go
// first, including passes whose attachments are about to be released.
func (c *Cache) EndFrame() error {
	doomed := make(map[string]bool)
	for _, list := range c.textures {
		for _, e := range list {
			if c.stale(e, c.textureRetention) {
				doomed[e.res.ID()] = true
			}
		}
	}

	var errs []error
	for key, e := range c.passes {
		if c.stale(e, c.passRetention) || attachesAny(e.res.(gpu.Pass), doomed) {
			errs = append(errs, c.release(e))
			delete(c.passes, key)
		}
	}
	for desc, list := range c.textures {
		kept := list[:0]
		for _, e := range list {
			if doomed[e.res.ID()] {
				errs = append(errs, c.release(e))
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(c.textures, desc)
		} else {
			c.textures[desc] = kept
		}
	}
	for desc, e := range c.pipelines {
		if c.stale(e, c.pipelineRetention) {
			errs = append(errs, c.release(e))
			delete(c.pipelines, desc)
		}
	}
	return errors.Join(errs...)
}

func attachesAny(p gpu.Pass, ids map[string]bool) bool {
	if len(ids) == 0 {
		return false
	}
	for _, tex := range p.Desc().Textures() {
		if ids[tex.ID()] {
			return true
		}
	}
	return false
}

func (c *Cache) release(e *entry) error {
	delete(c.byID, e.res.ID())
	if !c.device.Tracked(e.res) {
		c.log.Warnf("cache: %s %q was released outside the cache", e.res.Kind(), e.res.Label())
		return nil
	}
	c.log.Debugf("cache: dispose %s %q (last used frame %d, now %d)", e.res.Kind(), e.res.Label(), e.lastUsed, c.frame)
	if err := c.device.Dispose(e.res); err != nil {
		return fmt.Errorf("cache: dispose %s %q: %w", e.res.Kind(), e.res.Label(), err)
	}
	c.stats.Disposals++
	return nil
}

func (c *Cache) Stats() Stats {
	s := c.stats
	s.Frame = c.frame
	s.Pipelines = len(c.pipelines)
	s.Passes = len(c.passes)
	for _, list := range c.textures {
		s.Textures += len(list)
	}
	return s
}

// Dispose releases every cached resource.
func (c *Cache) Dispose() error {
	var errs []error
	for key, e := range c.passes {
		errs = append(errs, c.release(e))
		delete(c.passes, key)
	}
	for desc, list := range c.textures {
		for _, e := range list {
			errs = append(errs, c.release(e))
		}
		delete(c.textures, desc)
	}
	for desc, e := range c.pipelines {
		errs = append(errs, c.release(e))
		delete(c.pipelines, desc)
	}
	if c.triangle != nil {
		for _, b := range c.triangle.Attributes {
			if c.device.Tracked(b) {
				errs = append(errs, c.device.Dispose(b))
			}
		}
		c.triangle = nil
	}
	return errors.Join(errs...)
}
