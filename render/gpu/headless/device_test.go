package headless

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gekko3d/lumen/render/gpu"
)

func colorDesc(name string, w, h int) gpu.TextureDesc {
	return gpu.TextureDesc{Name: name, Width: w, Height: h, PixelFormat: gpu.PixelFormatRGBA8}
}

func TestMemoryBudget(t *testing.T) {
	d := New(WithMemoryBudget(4 * 4 * 4))

	tex, err := d.Texture2D(colorDesc("a", 4, 4))
	require.NoError(t, err)
	assert.Equal(t, int64(64), d.MemoryUsed())

	_, err = d.Texture2D(colorDesc("b", 1, 1))
	require.ErrorIs(t, err, gpu.ErrOutOfMemory)

	require.NoError(t, d.Dispose(tex))
	assert.Equal(t, int64(0), d.MemoryUsed())
	_, err = d.Texture2D(colorDesc("b", 1, 1))
	require.NoError(t, err)
}

func TestDisposeTwice(t *testing.T) {
	d := New()
	tex, err := d.Texture2D(colorDesc("a", 2, 2))
	require.NoError(t, err)

	require.NoError(t, d.Dispose(tex))
	assert.False(t, d.Tracked(tex))
	assert.ErrorIs(t, d.Dispose(tex), gpu.ErrDisposed)
	assert.Equal(t, 1, d.DisposeCount(tex))
}

func TestInvalidDescriptor(t *testing.T) {
	d := New()
	_, err := d.Texture2D(colorDesc("zero", 0, 4))
	assert.ErrorIs(t, err, gpu.ErrInvalidDescriptor)

	_, err = d.TextureCube(colorDesc("wide", 8, 4))
	assert.ErrorIs(t, err, gpu.ErrInvalidDescriptor)

	_, err = d.Pipeline(gpu.PipelineDesc{Name: "empty"})
	assert.ErrorIs(t, err, gpu.ErrInvalidDescriptor)
}

func TestSubmitOutsidePass(t *testing.T) {
	d := New()
	assert.Error(t, d.Submit(gpu.Command{Name: "draw"}, nil))
}

func TestRunPassRecordsOps(t *testing.T) {
	d := New()
	tex, err := d.Texture2D(colorDesc("target", 2, 2))
	require.NoError(t, err)
	pass, err := d.Pass(gpu.PassDesc{Name: "main", Color: []gpu.Attachment{{Texture: tex}}})
	require.NoError(t, err)

	require.NoError(t, d.RunPass(pass, gpu.Viewport{0, 0, 2, 2}, func() error {
		return d.Submit(gpu.Command{Name: "draw"}, nil)
	}))
	require.NoError(t, d.RunPass(nil, gpu.Viewport{0, 0, 2, 2}, nil))

	begins := d.OpsOf(OpBeginPass)
	require.Len(t, begins, 2)
	assert.Equal(t, "main", begins[0].Name)
	assert.Equal(t, "screen", begins[1].Name)
	assert.Len(t, d.OpsOf(OpSubmit), 1)
}

func TestPassWithDisposedAttachment(t *testing.T) {
	d := New()
	tex, err := d.Texture2D(colorDesc("target", 2, 2))
	require.NoError(t, err)
	pass, err := d.Pass(gpu.PassDesc{Name: "main", Color: []gpu.Attachment{{Texture: tex}}})
	require.NoError(t, err)
	require.NoError(t, d.Dispose(tex))

	err = d.RunPass(pass, gpu.Viewport{}, nil)
	assert.ErrorIs(t, err, gpu.ErrDisposed)
}

func TestPixelsClearAndBlit(t *testing.T) {
	d := New(WithPixels(true), WithSize(4, 4))

	src, err := d.Texture2D(gpu.TextureDesc{Name: "src", Width: 8, Height: 8, PixelFormat: gpu.PixelFormatRGBA16F})
	require.NoError(t, err)
	pass, err := d.Pass(gpu.PassDesc{
		Name:       "clear",
		Color:      []gpu.Attachment{{Texture: src}},
		ClearColor: gpu.ClearColor(0.25, 0.5, 1, 1),
	})
	require.NoError(t, err)
	require.NoError(t, d.RunPass(pass, gpu.Viewport{0, 0, 8, 8}, nil))

	pipe, err := d.Pipeline(gpu.PipelineDesc{Name: "blit", Vert: "v", Frag: "f"})
	require.NoError(t, err)
	require.NoError(t, d.RunPass(nil, gpu.Viewport{0, 0, 4, 4}, func() error {
		return d.Submit(gpu.Command{Name: "blit", Pipeline: pipe}, gpu.Uniforms{
			"uTexture":        src,
			"uExposure":       float32(1),
			"uOutputEncoding": gpu.EncodingLinear,
		})
	}))

	screen := d.Screen()
	require.NotNil(t, screen)
	c := screen.RGBA64At(2, 2)
	assert.InDelta(t, 0.25*0xffff, float64(c.R), 2)
	assert.InDelta(t, 0.5*0xffff, float64(c.G), 2)
	assert.InDelta(t, 0xffff, float64(c.B), 2)
}

func TestToneMapFromDefines(t *testing.T) {
	desc := gpu.PipelineDesc{Vert: "v", Frag: "f", Defines: gpu.Defines("USE_FOO 1", "TONE_MAP aces")}
	assert.Equal(t, gpu.ToneMapACES, toneMapFromDefines(desc))
	assert.Equal(t, gpu.ToneMapNone, toneMapFromDefines(gpu.PipelineDesc{}))
}
