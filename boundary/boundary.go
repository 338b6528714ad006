// Package boundary adjusts recovered Hessians at boundary vertices, where
// the Green-Gauss stencil only sees one side of the solution.
package boundary

import (
	"fmt"

	"github.com/notargets/anisocfd/halo"
	"github.com/notargets/anisocfd/mesh"
	"github.com/notargets/anisocfd/recovery"
)

// Corrector mutates the blocks of boundary vertices of f in place
type Corrector interface {
	CorrectBoundaryHessian(m *mesh.Mesh, tag halo.FieldTag, f *recovery.Field) error
}

// None leaves the field untouched
type None struct{}

func (None) CorrectBoundaryHessian(*mesh.Mesh, halo.FieldTag, *recovery.Field) error { return nil }

// NeighborAverage replaces every owned boundary vertex's values with the
// dual volume weighted mean of its interior neighbors. A boundary vertex
// with no interior neighbor keeps its own values.
type NeighborAverage struct{}

func (NeighborAverage) CorrectBoundaryHessian(m *mesh.Mesh, tag halo.FieldTag, f *recovery.Field) error {
	if f.NumVertices != m.NumVertices {
		return fmt.Errorf("correcting %v: field %s has %d vertices, mesh has %d",
			tag, f.Name, f.NumVertices, m.NumVertices)
	}
	var (
		nbrs = m.VertexNeighbors()
		sum  = make([]float64, f.Layout.Stride())
	)
	for v := 0; v < m.NumVertices; v++ {
		if !m.BoundaryVertex[v] || !m.Owned[v] {
			continue
		}
		var weight float64
		for i := range sum {
			sum[i] = 0
		}
		for _, w := range nbrs[v] {
			if m.BoundaryVertex[w] {
				continue
			}
			vol := m.DualVolume[w]
			for i, x := range f.Vertex(w) {
				sum[i] += vol * x
			}
			weight += vol
		}
		if weight == 0 {
			continue
		}
		dst := f.Vertex(v)
		for i := range dst {
			dst[i] = sum[i] / weight
		}
	}
	return nil
}
