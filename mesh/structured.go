package mesh

import (
	"fmt"
	"math/rand/v2"
)

// NewStructuredTriMesh triangulates the rectangle [0,lx]x[0,ly] with nx by ny
// cells, each split into two triangles along the same diagonal.
func NewStructuredTriMesh(nx, ny int, lx, ly float64) (m *Mesh, err error) {
	if nx < 1 || ny < 1 {
		return nil, fmt.Errorf("structured mesh needs at least one cell per direction, got %dx%d", nx, ny)
	}
	m = NewMesh(2)
	vid := func(i, j int) int { return i + j*(nx+1) }
	m.Vertices = make([][]float64, 0, (nx+1)*(ny+1))
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			m.Vertices = append(m.Vertices, []float64{lx * float64(i) / float64(nx), ly * float64(j) / float64(ny), 0})
		}
	}
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			v00, v10, v11, v01 := vid(i, j), vid(i+1, j), vid(i+1, j+1), vid(i, j+1)
			m.EtoV = append(m.EtoV, []int{v00, v10, v11}, []int{v00, v11, v01})
			m.ElementTypes = append(m.ElementTypes, Triangle, Triangle)
		}
	}
	err = m.Finalize()
	return
}

// kuhnPaths lists the axis orderings of the six tetrahedra of a Kuhn
// (Freudenthal) subdivision of a cube.
var kuhnPaths = [6][3]int{
	{0, 1, 2}, {0, 2, 1}, {1, 0, 2}, {1, 2, 0}, {2, 0, 1}, {2, 1, 0},
}

// NewStructuredTetMesh subdivides the cube [0,l]^3 into n^3 cells of six
// tetrahedra each. The subdivision is conforming and every vertex star is
// centrally symmetric.
func NewStructuredTetMesh(n int, l float64) (m *Mesh, err error) {
	if n < 1 {
		return nil, fmt.Errorf("structured mesh needs at least one cell per direction, got %d", n)
	}
	m = NewMesh(3)
	np := n + 1
	vid := func(ijk [3]int) int { return ijk[0] + np*(ijk[1]+np*ijk[2]) }
	h := l / float64(n)
	for k := 0; k <= n; k++ {
		for j := 0; j <= n; j++ {
			for i := 0; i <= n; i++ {
				m.Vertices = append(m.Vertices, []float64{h * float64(i), h * float64(j), h * float64(k)})
			}
		}
	}
	for k := 0; k < n; k++ {
		for j := 0; j < n; j++ {
			for i := 0; i < n; i++ {
				for _, path := range kuhnPaths {
					var (
						c     = [3]int{i, j, k}
						verts = []int{vid(c)}
					)
					for _, axis := range path {
						c[axis]++
						verts = append(verts, vid(c))
					}
					m.EtoV = append(m.EtoV, verts)
					m.ElementTypes = append(m.ElementTypes, Tet)
				}
			}
		}
	}
	err = m.Finalize()
	return
}

// Jitter moves every interior vertex by a uniform random offset of at most
// amount in each coordinate, then recomputes the dual volumes. Keeping
// amount below a quarter of the smallest edge keeps every element valid.
func (m *Mesh) Jitter(amount float64, seed uint64) {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	for v := range m.Vertices {
		if m.BoundaryVertex[v] {
			continue
		}
		for d := 0; d < m.Dim; d++ {
			m.Vertices[v][d] += amount * (2*rng.Float64() - 1)
		}
	}
	m.ResetDerived()
	m.ComputeDualVolumes()
}
