// Package graph records render passes for a frame and executes them when the frame ends.
package graph

import (
	"fmt"

	"github.com/gekko3d/lumen/render/gpu"
	"github.com/gekko3d/lumen/render/scene"
)

type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Warnf(string, ...any)  {}

// Retainer keeps resources referenced by a pass alive. The resource cache implements it.
type Retainer interface {
	Retain(r gpu.Resource)
}

// PassRunner executes one pass. gpu.Device implements it.
type PassRunner interface {
	RunPass(pass gpu.Pass, viewport gpu.Viewport, draw func() error) error
}

type Option func(*Graph)

func WithRetainer(r Retainer) Option {
	return func(g *Graph) { g.retainer = r }
}

func WithDevice(d PassRunner) Option {
	return func(g *Graph) { g.runner = d }
}

func WithLogger(l Logger) Option {
	return func(g *Graph) {
		if l != nil {
			g.log = l
		}
	}
}

// WithReorder enables a stable topological sort when a pass reads a texture that a
// later pass produces. Without it the recorded order is kept and a warning is logged.
func WithReorder(enabled bool) Option {
	return func(g *Graph) { g.reorder = enabled }
}

// RenderPass is one recorded pass. A nil Pass renders to the default framebuffer.
type RenderPass struct {
	Name   string
	Uses   []gpu.Texture
	View   *scene.RenderView
	Pass   gpu.Pass
	Render func() error
}

// Produces lists the textures attached to the pass.
func (p RenderPass) Produces() []gpu.Texture {
	if gpu.IsNil(p.Pass) {
		return nil
	}
	return p.Pass.Desc().Textures()
}

type PassInfo struct {
	Name     string
	Uses     []gpu.Texture
	Produces []gpu.Texture
}

type Graph struct {
	retainer Retainer
	runner   PassRunner
	log      Logger
	reorder  bool

	inFrame bool
	passes  []RenderPass
	last    []PassInfo
}

func New(opts ...Option) *Graph {
	g := &Graph{log: nopLogger{}}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Graph) BeginFrame() {
	g.passes = g.passes[:0]
	g.inFrame = true
}

func (g *Graph) InFrame() bool {
	return g.inFrame
}

// RenderPass enqueues a pass. Nil uses are dropped.
func (g *Graph) RenderPass(p RenderPass) {
	if !g.inFrame {
		panic(fmt.Sprintf("graph: RenderPass(%q) called outside BeginFrame/EndFrame", p.Name))
	}
	uses := make([]gpu.Texture, 0, len(p.Uses))
	for _, t := range p.Uses {
		if !gpu.IsNil(t) {
			uses = append(uses, t)
		}
	}
	p.Uses = uses
	g.passes = append(g.passes, p)
}

// EndFrame executes the recorded passes and clears the list. The first failing pass
// aborts the frame.
func (g *Graph) EndFrame() error {
	if !g.inFrame {
		panic("graph: EndFrame called without a matching BeginFrame")
	}
	g.inFrame = false
	passes := g.schedule(g.passes)
	g.passes = g.passes[:0]

	g.last = g.last[:0]
	for _, p := range passes {
		g.last = append(g.last, PassInfo{Name: p.Name, Uses: p.Uses, Produces: p.Produces()})
	}
	for i, p := range g.last {
		g.log.Debugf("graph: pass %d %q uses %d produces %d", i, p.Name, len(p.Uses), len(p.Produces))
	}

	for _, p := range passes {
		g.retain(p)
		if err := g.run(p); err != nil {
			return fmt.Errorf("graph: pass %q: %w", p.Name, err)
		}
	}
	return nil
}

// Discard drops the recorded passes without running any of them and closes the frame.
// Passes then reports an empty schedule.
func (g *Graph) Discard() {
	if !g.inFrame {
		panic("graph: Discard called without a matching BeginFrame")
	}
	g.inFrame = false
	if n := len(g.passes); n > 0 {
		g.log.Debugf("graph: discarded %d passes", n)
	}
	g.passes = g.passes[:0]
	g.last = g.last[:0]
}

func (g *Graph) retain(p RenderPass) {
	if g.retainer == nil {
		return
	}
	for _, t := range p.Uses {
		g.retainer.Retain(t)
	}
	if !gpu.IsNil(p.Pass) {
		g.retainer.Retain(p.Pass)
	}
}

func (g *Graph) run(p RenderPass) error {
	if g.runner == nil {
		if p.Render == nil {
			return nil
		}
		return p.Render()
	}
	var viewport gpu.Viewport
	if p.View != nil {
		viewport = p.View.Viewport
	}
	return g.runner.RunPass(p.Pass, viewport, p.Render)
}

// Passes describes the schedule of the last executed frame.
func (g *Graph) Passes() []PassInfo {
	return append([]PassInfo(nil), g.last...)
}
