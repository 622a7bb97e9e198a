package graph

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/lumen/render/cache"
	"github.com/gekko3d/lumen/render/gpu"
	"github.com/gekko3d/lumen/render/gpu/headless"
)

type recordingLogger struct {
	warnings []string
}

func (l *recordingLogger) Debugf(string, ...any) {}
func (l *recordingLogger) Warnf(format string, args ...any) {
	l.warnings = append(l.warnings, fmt.Sprintf(format, args...))
}

type fixture struct {
	dev   *headless.Device
	cache *cache.Cache
	order []string
}

func newFixture() *fixture {
	f := &fixture{dev: headless.New()}
	f.cache = cache.New(f.dev)
	f.cache.BeginFrame()
	return f
}

func (f *fixture) target(t *testing.T, name string) (gpu.Texture, gpu.Pass) {
	t.Helper()
	tex, err := f.cache.Texture2D(gpu.TextureDesc{Name: name, Width: 4, Height: 4})
	require.NoError(t, err)
	pass, err := f.cache.Pass(gpu.PassDesc{Name: name, Color: []gpu.Attachment{{Texture: tex}}})
	require.NoError(t, err)
	return tex, pass
}

func (f *fixture) record(name string) func() error {
	return func() error {
		f.order = append(f.order, name)
		return nil
	}
}

func TestExecutesInRecordedOrder(t *testing.T) {
	f := newFixture()
	g := New(WithDevice(f.dev), WithRetainer(f.cache))
	shadow, shadowPass := f.target(t, "shadow")
	_, mainPass := f.target(t, "main")

	g.BeginFrame()
	g.RenderPass(RenderPass{Name: "shadow", Pass: shadowPass, Render: f.record("shadow")})
	g.RenderPass(RenderPass{Name: "main", Pass: mainPass, Uses: []gpu.Texture{shadow}, Render: f.record("main")})
	g.RenderPass(RenderPass{Name: "blit", Render: f.record("blit")})
	require.NoError(t, g.EndFrame())

	assert.Equal(t, []string{"shadow", "main", "blit"}, f.order)

	begins := f.dev.OpsOf(headless.OpBeginPass)
	require.Len(t, begins, 3)
	assert.Equal(t, "screen", begins[2].Name)

	infos := g.Passes()
	require.Len(t, infos, 3)
	assert.Equal(t, []gpu.Texture{shadow}, infos[1].Uses)
	assert.Equal(t, []gpu.Texture{shadow}, infos[0].Produces)
}

func TestNilUsesFiltered(t *testing.T) {
	f := newFixture()
	g := New()
	tex, _ := f.target(t, "a")
	var grab gpu.Texture

	g.BeginFrame()
	g.RenderPass(RenderPass{Name: "transparent", Uses: []gpu.Texture{tex, grab, nil}})
	require.NoError(t, g.EndFrame())

	infos := g.Passes()
	require.Len(t, infos, 1)
	assert.Equal(t, []gpu.Texture{tex}, infos[0].Uses)
}

func TestMisusePanics(t *testing.T) {
	g := New()
	assert.Panics(t, func() { _ = g.EndFrame() })
	assert.Panics(t, func() { g.RenderPass(RenderPass{Name: "early"}) })

	g.BeginFrame()
	require.NoError(t, g.EndFrame())
	assert.Panics(t, func() { _ = g.EndFrame() })
}

func TestEndFrameClearsPasses(t *testing.T) {
	calls := 0
	g := New()
	g.BeginFrame()
	g.RenderPass(RenderPass{Name: "once", Render: func() error { calls++; return nil }})
	require.NoError(t, g.EndFrame())
	g.BeginFrame()
	require.NoError(t, g.EndFrame())
	assert.Equal(t, 1, calls)
	assert.Empty(t, g.Passes())
}

func TestErrorAbortsFrame(t *testing.T) {
	boom := errors.New("boom")
	var ran []string
	g := New()
	g.BeginFrame()
	g.RenderPass(RenderPass{Name: "first", Render: func() error { ran = append(ran, "first"); return boom }})
	g.RenderPass(RenderPass{Name: "second", Render: func() error { ran = append(ran, "second"); return nil }})

	err := g.EndFrame()
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), `graph: pass "first"`)
	assert.Equal(t, []string{"first"}, ran)
	assert.False(t, g.InFrame())
}

func TestDiscardRunsNothing(t *testing.T) {
	f := newFixture()
	g := New(WithDevice(f.dev))
	_, pass := f.target(t, "main")

	g.BeginFrame()
	g.RenderPass(RenderPass{Name: "main", Pass: pass, Render: f.record("main")})
	require.NoError(t, g.EndFrame())
	require.Len(t, g.Passes(), 1)

	g.BeginFrame()
	g.RenderPass(RenderPass{Name: "main", Pass: pass, Render: f.record("main")})
	g.RenderPass(RenderPass{Name: "blit", Render: f.record("blit")})
	g.Discard()

	assert.Equal(t, []string{"main"}, f.order)
	assert.Len(t, f.dev.OpsOf(headless.OpBeginPass), 1)
	assert.Empty(t, g.Passes())
	assert.False(t, g.InFrame())
	assert.Panics(t, func() { g.Discard() })

	// the next frame starts clean
	g.BeginFrame()
	require.NoError(t, g.EndFrame())
	assert.Equal(t, []string{"main"}, f.order)
}

func TestForwardDependencyWarnsByDefault(t *testing.T) {
	f := newFixture()
	log := &recordingLogger{}
	g := New(WithLogger(log))
	shadow, shadowPass := f.target(t, "shadow")

	g.BeginFrame()
	g.RenderPass(RenderPass{Name: "main", Uses: []gpu.Texture{shadow}, Render: f.record("main")})
	g.RenderPass(RenderPass{Name: "shadow", Pass: shadowPass, Render: f.record("shadow")})
	require.NoError(t, g.EndFrame())

	assert.Equal(t, []string{"main", "shadow"}, f.order)
	require.Len(t, log.warnings, 1)
	assert.Contains(t, log.warnings[0], `produced by later pass "shadow"`)
}

func TestReorderMovesProducerFirst(t *testing.T) {
	f := newFixture()
	g := New(WithReorder(true), WithLogger(&recordingLogger{}))
	shadow, shadowPass := f.target(t, "shadow")
	color, mainPass := f.target(t, "main")

	g.BeginFrame()
	g.RenderPass(RenderPass{Name: "prepare", Render: f.record("prepare")})
	g.RenderPass(RenderPass{Name: "main", Pass: mainPass, Uses: []gpu.Texture{shadow}, Render: f.record("main")})
	g.RenderPass(RenderPass{Name: "shadow", Pass: shadowPass, Render: f.record("shadow")})
	g.RenderPass(RenderPass{Name: "blit", Uses: []gpu.Texture{color}, Render: f.record("blit")})
	require.NoError(t, g.EndFrame())

	assert.Equal(t, []string{"prepare", "shadow", "main", "blit"}, f.order)
}

func TestReorderKeepsLinearChain(t *testing.T) {
	f := newFixture()
	g := New(WithReorder(true))
	a, passA := f.target(t, "a")
	b, passB := f.target(t, "b")
	_, passC := f.target(t, "c")

	g.BeginFrame()
	g.RenderPass(RenderPass{Name: "a", Pass: passA, Render: f.record("a")})
	g.RenderPass(RenderPass{Name: "b", Pass: passB, Uses: []gpu.Texture{a}, Render: f.record("b")})
	g.RenderPass(RenderPass{Name: "c", Pass: passC, Uses: []gpu.Texture{b}, Render: f.record("c")})
	g.RenderPass(RenderPass{Name: "independent", Render: f.record("independent")})
	require.NoError(t, g.EndFrame())

	assert.Equal(t, []string{"a", "b", "c", "independent"}, f.order)
}

func TestUsesAreRetained(t *testing.T) {
	f := newFixture()
	tex, _ := f.target(t, "kept")
	require.NoError(t, f.cache.EndFrame())

	g := New(WithRetainer(f.cache))
	for i := 0; i < 4; i++ {
		f.cache.BeginFrame()
		g.BeginFrame()
		g.RenderPass(RenderPass{Name: "reader", Uses: []gpu.Texture{tex}})
		require.NoError(t, g.EndFrame())
		require.NoError(t, f.cache.EndFrame())
	}
	assert.True(t, f.dev.Tracked(tex))
}
