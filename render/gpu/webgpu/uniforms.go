package webgpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/lumen/render/gpu"
)

// layout is the bind group 0 layout derived from a uniform set. Textures, in sorted
// name order, take bindings 2i (view) and 2i+1 (sampler); the remaining uniforms are
// packed in sorted name order into one uniform buffer at the next binding.
type layout struct {
	textures      []string
	scalars       []string
	bufferBinding uint32
	data          []byte
}

func mergeUniforms(cmd, call gpu.Uniforms) gpu.Uniforms {
	out := make(gpu.Uniforms, len(cmd)+len(call))
	for k, v := range cmd {
		out[k] = v
	}
	for k, v := range call {
		out[k] = v
	}
	return out
}

func packUniforms(uniforms gpu.Uniforms) (*layout, error) {
	names := make([]string, 0, len(uniforms))
	for name := range uniforms {
		names = append(names, name)
	}
	sort.Strings(names)

	l := &layout{}
	for _, name := range names {
		if _, ok := uniforms[name].(gpu.Texture); ok {
			l.textures = append(l.textures, name)
			continue
		}
		l.scalars = append(l.scalars, name)
	}
	l.bufferBinding = uint32(2 * len(l.textures))

	var buf []byte
	for _, name := range l.scalars {
		words, align, err := uniformWords(uniforms[name])
		if err != nil {
			return nil, fmt.Errorf("webgpu: uniform %q: %w", name, err)
		}
		for len(buf)%align != 0 {
			buf = append(buf, 0)
		}
		for _, w := range words {
			buf = binary.LittleEndian.AppendUint32(buf, w)
		}
	}
	for len(buf)%16 != 0 {
		buf = append(buf, 0)
	}
	l.data = buf
	return l, nil
}

func floats(v ...float32) []uint32 {
	out := make([]uint32, len(v))
	for i, f := range v {
		out[i] = math.Float32bits(f)
	}
	return out
}

// uniformWords returns the value as 32-bit words and its WGSL alignment in bytes.
func uniformWords(v any) ([]uint32, int, error) {
	switch v := v.(type) {
	case float32:
		return floats(v), 4, nil
	case float64:
		return floats(float32(v)), 4, nil
	case int:
		return []uint32{uint32(int32(v))}, 4, nil
	case int32:
		return []uint32{uint32(v)}, 4, nil
	case uint32:
		return []uint32{v}, 4, nil
	case bool:
		if v {
			return []uint32{1}, 4, nil
		}
		return []uint32{0}, 4, nil
	case gpu.Encoding:
		return []uint32{uint32(v)}, 4, nil
	case gpu.ToneMap:
		return []uint32{uint32(v)}, 4, nil
	case mgl32.Vec2:
		return floats(v[:]...), 8, nil
	case mgl32.Vec3:
		return floats(v[:]...), 16, nil
	case mgl32.Vec4:
		return floats(v[:]...), 16, nil
	case [4]float32:
		return floats(v[:]...), 16, nil
	case gpu.Viewport:
		return floats(float32(v[0]), float32(v[1]), float32(v[2]), float32(v[3])), 16, nil
	case mgl32.Mat4:
		return floats(v[:]...), 16, nil
	}
	return nil, 0, fmt.Errorf("unsupported type %T", v)
}
