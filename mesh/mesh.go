// Package mesh holds the unstructured simplex meshes the metric recovery
// runs on: vertex coordinates, element connectivity, dual control volumes,
// boundary flags and partition ownership.
package mesh

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"sort"

	"github.com/james-bowman/sparse"

	"github.com/notargets/anisocfd/geometry"
)

// ElementType represents different element types
type ElementType int

const (
	Line ElementType = iota
	Triangle
	Quad
	Tet
	Hex
	Prism
	Pyramid
)

func (e ElementType) String() string {
	return [...]string{"Line", "Triangle", "Quad", "Tet", "Hex", "Prism", "Pyramid"}[e]
}

// GetNumNodes returns the number of corner nodes of the element type
func (e ElementType) GetNumNodes() int {
	return [...]int{2, 3, 4, 4, 8, 6, 5}[e]
}

// GetDimension returns the topological dimension of the element type
func (e ElementType) GetDimension() int {
	return [...]int{1, 2, 2, 3, 3, 3, 3}[e]
}

// BoundaryElement is one face of a named boundary marker
type BoundaryElement struct {
	ElementType ElementType
	Nodes       []int
}

// Mesh represents an unstructured simplex mesh, or one partition of it
type Mesh struct {
	Dim int

	// Geometry
	Vertices [][]float64 // Vertex coordinates [nvertices][3]

	// Element data
	EtoV         [][]int       // Element to vertex connectivity [nelems][Dim+1]
	ElementTypes []ElementType // Element type for each element

	// Connectivity (built during initialization)
	EToE [][]int // Neighbor across the face opposite each local vertex, -1 on a boundary

	// Boundary data
	BoundaryTags     map[int]string
	BoundaryElements map[string][]BoundaryElement
	BoundaryVertex   []bool

	// Vertex attributes
	DualVolume []float64 // Median dual control volume of each vertex
	Owned      []bool    // False for halo copies of vertices owned by another partition
	GlobalID   []int     // Vertex index in the unpartitioned mesh

	// Mesh statistics
	NumElements int
	NumVertices int

	incidence *sparse.CSR
	neighbors [][]int
}

// NewMesh creates an empty mesh of the given dimension
func NewMesh(dim int) *Mesh {
	return &Mesh{
		Dim:              dim,
		BoundaryTags:     make(map[int]string),
		BoundaryElements: make(map[string][]BoundaryElement),
	}
}

// AddBoundaryElement adds a boundary face to the named marker
func (m *Mesh) AddBoundaryElement(tag string, be BoundaryElement) {
	m.BoundaryElements[tag] = append(m.BoundaryElements[tag], be)
}

// Finalize validates the element set and builds everything the recovery
// needs: face connectivity, boundary flags, dual volumes, and default
// (single partition) ownership.
func (m *Mesh) Finalize() (err error) {
	m.NumElements = len(m.EtoV)
	m.NumVertices = len(m.Vertices)
	if err = m.ValidateSimplex(); err != nil {
		return
	}
	m.BuildConnectivity()
	m.ComputeDualVolumes()
	if m.Owned == nil {
		m.Owned = make([]bool, m.NumVertices)
		for i := range m.Owned {
			m.Owned[i] = true
		}
	}
	if m.GlobalID == nil {
		m.GlobalID = make([]int, m.NumVertices)
		for i := range m.GlobalID {
			m.GlobalID[i] = i
		}
	}
	return
}

// ValidateSimplex checks that every element is a triangle (2D) or a
// tetrahedron (3D) referencing existing vertices, and that boundary markers
// reference existing vertices.
func (m *Mesh) ValidateSimplex() error {
	var want ElementType
	switch m.Dim {
	case 2:
		want = Triangle
	case 3:
		want = Tet
	default:
		return fmt.Errorf("unsupported dimension: %d", m.Dim)
	}
	for k, verts := range m.EtoV {
		if len(m.ElementTypes) > k && m.ElementTypes[k] != want {
			return fmt.Errorf("element %d is a %v, only %v elements are supported in %dD",
				k, m.ElementTypes[k], want, m.Dim)
		}
		if len(verts) != m.Dim+1 {
			return fmt.Errorf("element %d has %d vertices, expected %d", k, len(verts), m.Dim+1)
		}
		for _, v := range verts {
			if v < 0 || v >= len(m.Vertices) {
				return fmt.Errorf("element %d references vertex %d out of range [0,%d)",
					k, v, len(m.Vertices))
			}
		}
	}
	for _, tag := range slices.Sorted(maps.Keys(m.BoundaryElements)) {
		for _, be := range m.BoundaryElements[tag] {
			for _, v := range be.Nodes {
				if v < 0 || v >= len(m.Vertices) {
					return fmt.Errorf("marker %s references vertex %d out of range [0,%d)",
						tag, v, len(m.Vertices))
				}
			}
		}
	}
	return nil
}

// Simplex gathers the coordinates of element k
func (m *Mesh) Simplex(k int) (s geometry.Simplex) {
	s.Dim = m.Dim
	for i, v := range m.EtoV[k] {
		copy(s.Coords[i][:m.Dim], m.Vertices[v][:m.Dim])
	}
	return
}

type faceKey [3]int

func (m *Mesh) faceKey(k, opposite int) (key faceKey) {
	var (
		verts = m.EtoV[k]
		nv    = len(verts)
		n     int
	)
	key = faceKey{-1, -1, -1}
	for i := 1; i < nv; i++ {
		key[n] = verts[(opposite+i)%nv]
		n++
	}
	// Sort the (at most three) entries
	if key[0] > key[1] {
		key[0], key[1] = key[1], key[0]
	}
	if n == 3 {
		if key[1] > key[2] {
			key[1], key[2] = key[2], key[1]
		}
		if key[0] > key[1] {
			key[0], key[1] = key[1], key[0]
		}
	}
	return
}

// BuildConnectivity matches element faces (edges in 2D) and flags the
// vertices of unmatched faces, and of any boundary marker, as boundary
// vertices.
func (m *Mesh) BuildConnectivity() {
	type faceRef struct{ elem, local int }
	var (
		faces = make(map[faceKey]faceRef, m.NumElements*(m.Dim+1)/2)
	)
	m.EToE = make([][]int, m.NumElements)
	for k := range m.EtoV {
		nf := len(m.EtoV[k])
		m.EToE[k] = make([]int, nf)
		for i := 0; i < nf; i++ {
			m.EToE[k][i] = -1
			key := m.faceKey(k, i)
			if ref, exists := faces[key]; exists {
				// Face already exists - this is an interior face
				m.EToE[k][i] = ref.elem
				m.EToE[ref.elem][ref.local] = k
				delete(faces, key)
			} else {
				faces[key] = faceRef{k, i}
			}
		}
	}
	m.BoundaryVertex = make([]bool, m.NumVertices)
	for key := range faces {
		for _, v := range key {
			if v >= 0 {
				m.BoundaryVertex[v] = true
			}
		}
	}
	for _, bes := range m.BoundaryElements {
		for _, be := range bes {
			for _, v := range be.Nodes {
				m.BoundaryVertex[v] = true
			}
		}
	}
}

// Incidence returns the vertex to element incidence matrix with a unit entry
// for every (vertex, element) pair.
func (m *Mesh) Incidence() *sparse.CSR {
	if m.incidence == nil {
		dok := sparse.NewDOK(m.NumVertices, m.NumElements)
		for k, verts := range m.EtoV {
			for _, v := range verts {
				dok.Set(v, k, 1)
			}
		}
		m.incidence = dok.ToCSR()
	}
	return m.incidence
}

// ComputeDualVolumes assigns each vertex the median dual measure
// sum(|T|)/(Dim+1) over its incident elements.
func (m *Mesh) ComputeDualVolumes() {
	var (
		measure = make([]float64, m.NumElements)
		share   = 1. / float64(m.Dim+1)
	)
	for k := range m.EtoV {
		s := m.Simplex(k)
		measure[k] = math.Abs(s.Measure()) * share
	}
	m.DualVolume = make([]float64, m.NumVertices)
	m.Incidence().DoNonZero(func(v, k int, _ float64) {
		m.DualVolume[v] += measure[k]
	})
}

// VertexNeighbors returns, for every vertex, the sorted list of vertices
// sharing an element with it, computed from the incidence product B*B^T.
func (m *Mesh) VertexNeighbors() [][]int {
	if m.neighbors == nil {
		B := m.Incidence()
		adj := sparse.NewCSR(m.NumVertices, m.NumVertices, nil, nil, nil)
		adj.Mul(B, B.T())
		m.neighbors = make([][]int, m.NumVertices)
		adj.DoNonZero(func(i, j int, _ float64) {
			if i != j {
				m.neighbors[i] = append(m.neighbors[i], j)
			}
		})
		for _, nbrs := range m.neighbors {
			sort.Ints(nbrs)
		}
	}
	return m.neighbors
}

// ResetDerived drops cached incidence data after the connectivity or the
// coordinates have been changed.
func (m *Mesh) ResetDerived() {
	m.incidence = nil
	m.neighbors = nil
}

// PrintStatistics prints mesh statistics
func (m *Mesh) PrintStatistics() {
	var (
		boundary, owned int
		vmin, vmax      = math.MaxFloat64, 0.
	)
	for i := 0; i < m.NumVertices; i++ {
		if m.BoundaryVertex != nil && m.BoundaryVertex[i] {
			boundary++
		}
		if m.Owned != nil && m.Owned[i] {
			owned++
		}
		if m.DualVolume != nil {
			vmin = math.Min(vmin, m.DualVolume[i])
			vmax = math.Max(vmax, m.DualVolume[i])
		}
	}
	fmt.Printf("Mesh Statistics:\n")
	fmt.Printf("  Dimension: %d\n", m.Dim)
	fmt.Printf("  Vertices: %d (owned %d, boundary %d)\n", m.NumVertices, owned, boundary)
	fmt.Printf("  Elements: %d\n", m.NumElements)
	fmt.Printf("  Dual volume range: [%g, %g]\n", vmin, vmax)
}
