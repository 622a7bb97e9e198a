package pipeline

import (
	"github.com/gekko3d/lumen/render/cache"
	"github.com/gekko3d/lumen/render/gpu"
)

type Output string

const (
	OutputColor    Output = "color"
	OutputDepth    Output = "depth"
	OutputNormal   Output = "normal"
	OutputEmissive Output = "emissive"
	OutputVelocity Output = "velocity"
)

// Attachments are the main pass targets. Identities are stable once Update returns;
// contents are final after the render graph ends the frame.
type Attachments struct {
	Color    gpu.Texture
	Depth    gpu.Texture
	Normal   gpu.Texture
	Emissive gpu.Texture
	Velocity gpu.Texture
}

type namedTexture struct {
	name Output
	tex  gpu.Texture
}

func (a *Attachments) colors() []namedTexture {
	all := []namedTexture{
		{OutputColor, a.Color},
		{OutputNormal, a.Normal},
		{OutputEmissive, a.Emissive},
		{OutputVelocity, a.Velocity},
	}
	out := all[:0]
	for _, n := range all {
		if !gpu.IsNil(n.tex) {
			out = append(out, n)
		}
	}
	return out
}

// ColorList returns the colour attachments in location order.
func (a *Attachments) ColorList() []gpu.Texture {
	var out []gpu.Texture
	for _, n := range a.colors() {
		out = append(out, n.tex)
	}
	return out
}

// Locations maps each present colour output to its attachment index.
func (a *Attachments) Locations() map[string]int {
	out := make(map[string]int)
	for i, n := range a.colors() {
		out[string(n.name)] = i
	}
	return out
}

func (a *Attachments) colorAttachments() []gpu.Attachment {
	var out []gpu.Attachment
	for _, t := range a.ColorList() {
		out = append(out, gpu.Attachment{Texture: t})
	}
	return out
}

// PostTargets holds the named intermediate targets of one camera's post-processing,
// for example "ao.main". Targets are replaced when the viewport size changes.
type PostTargets struct {
	Width    int
	Height   int
	textures map[string]gpu.Texture
}

func newPostTargets(width, height int) *PostTargets {
	return &PostTargets{Width: width, Height: height, textures: make(map[string]gpu.Texture)}
}

func (t *PostTargets) Get(name string) gpu.Texture {
	return t.textures[name]
}

func (t *PostTargets) Set(name string, tex gpu.Texture) {
	t.textures[name] = tex
}

func (t *PostTargets) Names() []string {
	names := make([]string, 0, len(t.textures))
	for name := range t.textures {
		names = append(names, name)
	}
	return names
}

// release disposes targets the renderers allocated on the device directly.
// Cache-owned textures are left to the cache sweep.
func (t *PostTargets) release(device gpu.Device, c *cache.Cache) error {
	var first error
	for name, tex := range t.textures {
		if c.Owns(tex) || !device.Tracked(tex) {
			continue
		}
		if err := device.Dispose(tex); err != nil && first == nil {
			first = err
		}
		delete(t.textures, name)
	}
	return first
}
