package headless

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	xdraw "golang.org/x/image/draw"

	"github.com/gekko3d/lumen/render/gpu"
)

func (d *Device) RunPass(pass gpu.Pass, viewport gpu.Viewport, draw func() error) error {
	if d.inPass {
		return fmt.Errorf("headless: pass %q started while another pass is running", passName(pass))
	}
	var p *Pass
	if !gpu.IsNil(pass) {
		var ok bool
		if p, ok = d.lookup(pass).(*Pass); !ok {
			return fmt.Errorf("%w: pass %q", gpu.ErrUnknownResource, pass.Label())
		}
		for _, tex := range p.desc.Textures() {
			if !d.Tracked(tex) {
				return fmt.Errorf("%w: pass %q attachment %q", gpu.ErrDisposed, p.desc.Name, tex.Label())
			}
		}
	}

	d.current = p
	d.inPass = true
	d.record(OpBeginPass, passID(p), passName(pass))
	defer func() {
		d.current = nil
		d.inPass = false
	}()

	if p != nil && d.pixels {
		d.clear(p, viewport)
	}

	if draw != nil {
		if err := draw(); err != nil {
			return err
		}
	}
	d.record(OpEndPass, passID(p), passName(pass))
	return nil
}

func passID(p *Pass) string {
	if p == nil {
		return ""
	}
	return p.id
}

func passName(p gpu.Pass) string {
	if gpu.IsNil(p) {
		return "screen"
	}
	return p.Desc().Name
}

func (d *Device) clear(p *Pass, viewport gpu.Viewport) {
	if p.desc.ClearColor == nil {
		return
	}
	c := p.desc.ClearColor
	fill := image.NewUniform(color.RGBA64{
		R: toU16(c[0]), G: toU16(c[1]), B: toU16(c[2]), A: toU16(c[3]),
	})
	for _, a := range p.desc.Color {
		t, ok := d.lookup(a.Texture).(*Texture)
		if !ok {
			continue
		}
		dst := t.face(a.Face)
		xdraw.Draw(dst, viewportRect(viewport, dst.Bounds()), fill, image.Point{}, xdraw.Src)
	}
}

func (d *Device) Submit(cmd gpu.Command, uniforms gpu.Uniforms) error {
	if !d.inPass {
		return fmt.Errorf("headless: submit %q outside of a pass", cmd.Name)
	}
	if cmd.Pipeline != nil && !d.Tracked(cmd.Pipeline) {
		return fmt.Errorf("%w: pipeline of %q", gpu.ErrDisposed, cmd.Name)
	}
	d.record(OpSubmit, passID(d.current), cmd.Name)
	if !d.pixels {
		return nil
	}

	src, ok := lookupUniform(cmd, uniforms, "uTexture").(gpu.Texture)
	if !ok {
		return nil
	}
	srcTex, ok := d.lookup(src).(*Texture)
	if !ok {
		return fmt.Errorf("%w: %q samples %q", gpu.ErrDisposed, cmd.Name, src.Label())
	}
	srcImg := srcTex.Image(gpu.FaceNone)
	if srcImg == nil {
		return nil
	}

	dst := d.target()
	if dst == nil {
		return nil
	}
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), srcImg, srcImg.Bounds(), xdraw.Src, nil)

	exposure, _ := lookupUniform(cmd, uniforms, "uExposure").(float32)
	encoding, _ := lookupUniform(cmd, uniforms, "uOutputEncoding").(gpu.Encoding)
	if exposure != 0 || encoding != 0 {
		toneMap := gpu.ToneMapNone
		if cmd.Pipeline != nil {
			toneMap = toneMapFromDefines(cmd.Pipeline.Desc())
		}
		transferPixels(dst, exposure, toneMap, encoding)
	}
	return nil
}

// target is the first colour attachment of the current pass or the default framebuffer.
func (d *Device) target() *image.RGBA64 {
	if d.current == nil {
		if d.screen == nil {
			d.screen = image.NewRGBA64(image.Rect(0, 0, d.width, d.height))
		}
		return d.screen
	}
	for _, a := range d.current.desc.Color {
		if t, ok := d.lookup(a.Texture).(*Texture); ok {
			return t.face(a.Face)
		}
	}
	return nil
}

func lookupUniform(cmd gpu.Command, uniforms gpu.Uniforms, name string) any {
	if v, ok := uniforms[name]; ok {
		return v
	}
	return cmd.Uniforms[name]
}

func toneMapFromDefines(desc gpu.PipelineDesc) gpu.ToneMap {
	for _, def := range desc.DefineList() {
		name, value, ok := strings.Cut(def, " ")
		if !ok || name != "TONE_MAP" {
			continue
		}
		if t, err := gpu.ParseToneMap(value); err == nil {
			return t
		}
	}
	return gpu.ToneMapNone
}

func transferPixels(img *image.RGBA64, exposure float32, toneMap gpu.ToneMap, encoding gpu.Encoding) {
	if exposure == 0 {
		exposure = 1
	}
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.RGBA64At(x, y)
			rgb := [3]float64{fromU16(c.R), fromU16(c.G), fromU16(c.B)}
			for i := range rgb {
				v := rgb[i] * float64(exposure)
				v = applyToneMap(v, toneMap)
				if encoding == gpu.EncodingGamma || encoding == gpu.EncodingSRGB {
					v = math.Pow(v, 1/2.2)
				}
				rgb[i] = v
			}
			img.SetRGBA64(x, y, color.RGBA64{R: toU16(float32(rgb[0])), G: toU16(float32(rgb[1])), B: toU16(float32(rgb[2])), A: c.A})
		}
	}
}

func applyToneMap(v float64, t gpu.ToneMap) float64 {
	switch t {
	case gpu.ToneMapACES:
		const a, b, c, d, e = 2.51, 0.03, 2.43, 0.59, 0.14
		return clamp01((v * (a*v + b)) / (v*(c*v+d) + e))
	case gpu.ToneMapReinhard:
		return v / (1 + v)
	case gpu.ToneMapFilmic:
		x := math.Max(0, v-0.004)
		return math.Pow((x*(6.2*x+0.5))/(x*(6.2*x+1.7)+0.06), 2.2)
	case gpu.ToneMapUncharted2:
		u := func(x float64) float64 {
			const A, B, C, D, E, F = 0.15, 0.50, 0.10, 0.20, 0.02, 0.30
			return ((x*(A*x+C*B) + D*E) / (x*(A*x+B) + D*F)) - E/F
		}
		return clamp01(u(2*v) / u(11.2))
	}
	return v
}

func viewportRect(v gpu.Viewport, bounds image.Rectangle) image.Rectangle {
	if v.Width() <= 0 || v.Height() <= 0 {
		return bounds
	}
	return image.Rect(v[0], v[1], v[0]+v[2], v[1]+v[3]).Intersect(bounds)
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}

func toU16(v float32) uint16 {
	return uint16(clamp01(float64(v))*0xffff + 0.5)
}

func fromU16(v uint16) float64 {
	return float64(v) / 0xffff
}
