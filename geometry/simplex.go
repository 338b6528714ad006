// Package geometry computes the oriented face normals of linear triangles
// and tetrahedra used by the Green-Gauss projections.
package geometry

import (
	"fmt"
	"math"
)

// Simplex holds the vertex coordinates of one triangle (Dim = 2) or one
// tetrahedron (Dim = 3) in fixed size storage. Unused coordinates are zero.
type Simplex struct {
	Dim    int
	Coords [4][3]float64
}

// NewSimplex copies dim+1 vertex coordinates into a Simplex.
func NewSimplex(dim int, coords ...[]float64) (s Simplex) {
	if dim != 2 && dim != 3 {
		panic(fmt.Errorf("simplex dimension must be 2 or 3, got %d", dim))
	}
	if len(coords) != dim+1 {
		panic(fmt.Errorf("a %dD simplex needs %d vertices, got %d", dim, dim+1, len(coords)))
	}
	s.Dim = dim
	for i, c := range coords {
		for d := 0; d < dim; d++ {
			s.Coords[i][d] = c[d]
		}
	}
	return
}

func (s *Simplex) NumVertices() int { return s.Dim + 1 }

// Measure returns the signed area (2D) or signed volume (3D).
func (s *Simplex) Measure() float64 {
	var (
		c = &s.Coords
	)
	switch s.Dim {
	case 2:
		return 0.5 * ((c[1][0]-c[0][0])*(c[2][1]-c[0][1]) - (c[2][0]-c[0][0])*(c[1][1]-c[0][1]))
	case 3:
		a := sub(c[1], c[0])
		b := sub(c[2], c[0])
		d := sub(c[3], c[0])
		return dot(a, cross(b, d)) / 6.
	}
	return 0
}

// scale is the measure of a cube whose side is the longest edge, used to
// judge degeneracy independently of the mesh units.
func (s *Simplex) scale() float64 {
	var hmax float64
	nv := s.NumVertices()
	for i := 0; i < nv; i++ {
		for j := i + 1; j < nv; j++ {
			e := sub(s.Coords[j], s.Coords[i])
			hmax = math.Max(hmax, math.Sqrt(dot(e, e)))
		}
	}
	return math.Pow(hmax, float64(s.Dim))
}

// InwardNormals returns one normal per face, indexed by the vertex opposite
// the face. Normals are scaled by the face measure times Dim-1 factorial
// (edge length in 2D, twice the face area in 3D) and point from the face
// toward its opposite vertex, whatever the vertex ordering of the element.
//
// Summing value[i]*normal[i] over the vertices gives 2|T| grad (2D) or
// 6|T| grad (3D) of the linear interpolant.
//
// A simplex whose |measure| does not exceed tol times the cube of its longest
// edge fails with a *DegenerateElementError.
func (s *Simplex) InwardNormals(tol float64) (normals [4][3]float64, measure float64, err error) {
	measure = s.Measure()
	if !(math.Abs(measure) > tol*s.scale()) {
		err = &DegenerateElementError{Element: -1, Measure: measure}
		return
	}
	var (
		nv = s.NumVertices()
		c  = &s.Coords
	)
	for i := 0; i < nv; i++ {
		var (
			n        [3]float64
			centroid [3]float64
		)
		switch s.Dim {
		case 2:
			a, b := c[(i+1)%3], c[(i+2)%3]
			n = [3]float64{a[1] - b[1], b[0] - a[0], 0}
		case 3:
			a, b, d := c[(i+1)%4], c[(i+2)%4], c[(i+3)%4]
			n = cross(sub(b, a), sub(d, a))
		}
		for j := 0; j < nv; j++ {
			if j == i {
				continue
			}
			for k := 0; k < s.Dim; k++ {
				centroid[k] += c[j][k]
			}
		}
		for k := 0; k < s.Dim; k++ {
			centroid[k] /= float64(s.Dim)
		}
		// Flip when the normal points from the opposite vertex toward the face
		if dot(n, sub(centroid, c[i])) > 0 {
			for k := range n {
				n[k] = -n[k]
			}
		}
		normals[i] = n
	}
	return
}

// DegenerateElementError reports an element of (near) zero measure. Every
// vertex of such an element would receive a meaningless contribution.
type DegenerateElementError struct {
	Element int
	Measure float64
}

func (e *DegenerateElementError) Error() string {
	if e.Element < 0 {
		return fmt.Sprintf("degenerate element: measure %g", e.Measure)
	}
	return fmt.Sprintf("degenerate element %d: measure %g", e.Element, e.Measure)
}

func sub(a, b [3]float64) [3]float64 {
	return [3]float64{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
}

func dot(a, b [3]float64) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func cross(a, b [3]float64) [3]float64 {
	return [3]float64{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}
