package gpu

import "fmt"

type PixelFormat int

const (
	PixelFormatRGBA8 PixelFormat = iota
	PixelFormatRGBA16F
	PixelFormatRGBA32F
	PixelFormatR32F
	PixelFormatDepth24
	PixelFormatDepth32F
)

func (f PixelFormat) IsDepth() bool {
	return f == PixelFormatDepth24 || f == PixelFormatDepth32F
}

// BytesPerPixel is used for memory accounting only.
func (f PixelFormat) BytesPerPixel() int {
	switch f {
	case PixelFormatRGBA8, PixelFormatR32F, PixelFormatDepth24, PixelFormatDepth32F:
		return 4
	case PixelFormatRGBA16F:
		return 8
	case PixelFormatRGBA32F:
		return 16
	}
	return 4
}

func (f PixelFormat) String() string {
	switch f {
	case PixelFormatRGBA8:
		return "rgba8"
	case PixelFormatRGBA16F:
		return "rgba16f"
	case PixelFormatRGBA32F:
		return "rgba32f"
	case PixelFormatR32F:
		return "r32f"
	case PixelFormatDepth24:
		return "depth24"
	case PixelFormatDepth32F:
		return "depth32f"
	}
	return fmt.Sprintf("PixelFormat(%d)", int(f))
}

// Encoding describes how colour values are stored. The zero value means "unset".
type Encoding int

const (
	EncodingLinear Encoding = iota + 1
	EncodingGamma
	EncodingSRGB
	EncodingRGBM
)

func (e Encoding) String() string {
	switch e {
	case 0:
		return "unset"
	case EncodingLinear:
		return "linear"
	case EncodingGamma:
		return "gamma"
	case EncodingSRGB:
		return "srgb"
	case EncodingRGBM:
		return "rgbm"
	}
	return fmt.Sprintf("Encoding(%d)", int(e))
}

type Filter int

const (
	FilterNearest Filter = iota
	FilterLinear
	FilterLinearMipmapLinear
)

// ToneMap selects the tone mapping operator applied by the blit pass.
type ToneMap int

const (
	ToneMapNone ToneMap = iota
	ToneMapACES
	ToneMapFilmic
	ToneMapReinhard
	ToneMapUncharted2
)

func (t ToneMap) String() string {
	switch t {
	case ToneMapNone:
		return "none"
	case ToneMapACES:
		return "aces"
	case ToneMapFilmic:
		return "filmic"
	case ToneMapReinhard:
		return "reinhard"
	case ToneMapUncharted2:
		return "uncharted2"
	}
	return fmt.Sprintf("ToneMap(%d)", int(t))
}

// ParseToneMap is the inverse of ToneMap.String.
func ParseToneMap(s string) (ToneMap, error) {
	for t := ToneMapNone; t <= ToneMapUncharted2; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	if s == "" {
		return ToneMapNone, nil
	}
	return ToneMapNone, fmt.Errorf("unknown tone map %q", s)
}

// CubeFace addresses a face of a cubemap attachment. FaceNone targets a 2D texture.
type CubeFace int

const (
	FaceNone CubeFace = iota
	FacePositiveX
	FaceNegativeX
	FacePositiveY
	FaceNegativeY
	FacePositiveZ
	FaceNegativeZ
)

// Layer returns the array layer of the face, or 0 for FaceNone.
func (f CubeFace) Layer() int {
	if f == FaceNone {
		return 0
	}
	return int(f) - 1
}

// Viewport is x, y, width, height in pixels.
type Viewport [4]int

func (v Viewport) Width() int  { return v[2] }
func (v Viewport) Height() int { return v[3] }

func (v Viewport) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", v[0], v[1], v[2], v[3])
}
