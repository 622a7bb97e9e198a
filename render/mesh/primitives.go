package mesh

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/lumen/render/scene"
)

type face struct {
	normal, u, v mgl32.Vec3
}

// u × v == normal for every face, so quads wind counter-clockwise seen from outside.
var cubeFaces = []face{
	{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}},
	{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
	{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}},
	{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
	{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
	{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 1, 0}},
}

// Cube returns an indexed cube of edge size centred on the origin.
func Cube(size float32) *scene.Geometry {
	g := &scene.Geometry{}
	for _, f := range cubeFaces {
		addQuad(g, f.normal.Mul(size/2), f, size/2)
	}
	h := size / 2
	g.Bounds = scene.AABB{{-h, -h, -h}, {h, h, h}}
	return g
}

// Plane returns a square of edge size in the XZ plane facing +Y.
func Plane(size float32) *scene.Geometry {
	g := &scene.Geometry{}
	addQuad(g, mgl32.Vec3{}, cubeFaces[2], size/2)
	h := size / 2
	g.Bounds = scene.AABB{{-h, 0, -h}, {h, 0, h}}
	return g
}

func addQuad(g *scene.Geometry, center mgl32.Vec3, f face, half float32) {
	base := uint32(len(g.Positions) / 3)
	for _, c := range [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}} {
		p := center.Add(f.u.Mul(c[0] * half)).Add(f.v.Mul(c[1] * half))
		g.Positions = append(g.Positions, p[:]...)
		g.Normals = append(g.Normals, f.normal[:]...)
	}
	g.Indices = append(g.Indices, base, base+1, base+2, base, base+2, base+3)
	g.Count = len(g.Indices)
}
