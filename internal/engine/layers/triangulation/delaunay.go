package triangulation

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// triangleIdx names a triangle by indices into the working point
// slice passed to bowyerWatson.
type triangleIdx struct {
	A, B, C int
}

type edgeIdx struct {
	A, B int
}

func canonicalEdge(a, b int) edgeIdx {
	if a > b {
		a, b = b, a
	}
	return edgeIdx{a, b}
}

// bowyerWatson triangulates points via incremental insertion against a
// bounding super-triangle, the standard construction for a Delaunay
// triangulation of a finite point set. Returned triangles index
// directly into points; no super-triangle vertex survives.
func bowyerWatson(points []mgl32.Vec2) []triangleIdx {
	n := len(points)
	if n < 3 {
		return nil
	}

	minX, minY := points[0][0], points[0][1]
	maxX, maxY := points[0][0], points[0][1]
	for _, p := range points[1:] {
		minX = minf(minX, p[0])
		minY = minf(minY, p[1])
		maxX = maxf(maxX, p[0])
		maxY = maxf(maxY, p[1])
	}
	dx, dy := maxX-minX, maxY-minY
	deltaMax := maxf(dx, dy)*10 + 10
	midX, midY := (minX+maxX)/2, (minY+maxY)/2

	pts := make([]mgl32.Vec2, 0, n+3)
	pts = append(pts, points...)
	s0, s1, s2 := n, n+1, n+2
	pts = append(pts,
		mgl32.Vec2{midX - 2*deltaMax, midY - deltaMax},
		mgl32.Vec2{midX, midY + 2*deltaMax},
		mgl32.Vec2{midX + 2*deltaMax, midY - deltaMax},
	)

	tris := []triangleIdx{{s0, s1, s2}}

	for i := 0; i < n; i++ {
		p := pts[i]
		var bad []triangleIdx
		var keep []triangleIdx
		for _, t := range tris {
			if circumcircleContains(pts[t.A], pts[t.B], pts[t.C], p) {
				bad = append(bad, t)
			} else {
				keep = append(keep, t)
			}
		}

		edgeCount := make(map[edgeIdx]int)
		for _, t := range bad {
			edgeCount[canonicalEdge(t.A, t.B)]++
			edgeCount[canonicalEdge(t.B, t.C)]++
			edgeCount[canonicalEdge(t.C, t.A)]++
		}

		for _, t := range bad {
			for _, e := range [3][2]int{{t.A, t.B}, {t.B, t.C}, {t.C, t.A}} {
				if edgeCount[canonicalEdge(e[0], e[1])] == 1 {
					keep = append(keep, triangleIdx{e[0], e[1], i})
				}
			}
		}
		tris = keep
	}

	isSuper := func(v int) bool { return v == s0 || v == s1 || v == s2 }
	result := tris[:0]
	for _, t := range tris {
		if isSuper(t.A) || isSuper(t.B) || isSuper(t.C) {
			continue
		}
		result = append(result, t)
	}
	return result
}

func circumcircleContains(a, b, c, p mgl32.Vec2) bool {
	ax, ay := float64(a[0]), float64(a[1])
	bx, by := float64(b[0]), float64(b[1])
	cx, cy := float64(c[0]), float64(c[1])
	px, py := float64(p[0]), float64(p[1])

	d := 2 * (ax*(by-cy) + bx*(cy-ay) + cx*(ay-by))
	if math.Abs(d) < 1e-9 {
		return false
	}
	ux := ((ax*ax+ay*ay)*(by-cy) + (bx*bx+by*by)*(cy-ay) + (cx*cx+cy*cy)*(ay-by)) / d
	uy := ((ax*ax+ay*ay)*(cx-bx) + (bx*bx+by*by)*(ax-cx) + (cx*cx+cy*cy)*(bx-ax)) / d
	r2 := (ax-ux)*(ax-ux) + (ay-uy)*(ay-uy)
	dp2 := (px-ux)*(px-ux) + (py-uy)*(py-uy)
	return dp2 <= r2+1e-7
}

// barycentric returns the barycentric weights of p against triangle
// (a,b,c), and whether p lies inside the triangle (with a small
// tolerance for points exactly on an edge).
func barycentric(p, a, b, c mgl32.Vec2) (wa, wb, wc float32, ok bool) {
	v0 := b.Sub(a)
	v1 := c.Sub(a)
	v2 := p.Sub(a)
	d00 := v0.Dot(v0)
	d01 := v0.Dot(v1)
	d11 := v1.Dot(v1)
	d20 := v2.Dot(v0)
	d21 := v2.Dot(v1)
	denom := d00*d11 - d01*d01
	if denom == 0 {
		return 0, 0, 0, false
	}
	v := (d11*d20 - d01*d21) / denom
	w := (d00*d21 - d01*d20) / denom
	u := 1 - v - w
	const eps = -1e-4
	if u < eps || v < eps || w < eps {
		return 0, 0, 0, false
	}
	return u, v, w, true
}

func minf(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}
