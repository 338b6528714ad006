package boundary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/anisocfd/halo"
	"github.com/notargets/anisocfd/mesh"
	"github.com/notargets/anisocfd/recovery"
)

func vertexField(m *mesh.Mesh) *recovery.Field {
	f := recovery.NewField("hess", recovery.Layout{NumVar: 1, NumFlux: 1, Block: 3}, m.NumVertices)
	for v := range m.Vertices {
		for i, dst := 0, f.Vertex(v); i < 3; i++ {
			dst[i] = float64(10*v + i)
		}
	}
	return f
}

func TestNone(t *testing.T) {
	m, err := mesh.NewStructuredTriMesh(3, 3, 1., 1.)
	require.NoError(t, err)
	f := vertexField(m)
	before := f.Copy()
	require.NoError(t, None{}.CorrectBoundaryHessian(m, halo.HessianConvective, f))
	assert.Equal(t, before.Data, f.Data)
}

func TestNeighborAverage(t *testing.T) {
	// 4x4 cells, vertex (i,j) has index i + 5j and interior vertices are 6..8, 11..13, 16..18
	m, err := mesh.NewStructuredTriMesh(4, 4, 1., 1.)
	require.NoError(t, err)
	f := vertexField(m)
	before := f.Copy()
	m.Owned[24] = false
	require.NoError(t, NeighborAverage{}.CorrectBoundaryHessian(m, halo.HessianViscous, f))

	// Corner 0 touches interior vertex 6 only
	assert.InDeltaSlice(t, before.Vertex(6), f.Vertex(0), 1.e-12)
	// Edge vertex 2 touches interior 7 and 8, whose dual volumes are equal
	assert.InDeltaSlice(t, []float64{75, 76, 77}, f.Vertex(2), 1.e-12)
	// Corner 4 sits on the other diagonal and has no interior neighbor
	assert.Equal(t, before.Vertex(4), f.Vertex(4))
	// Halo copies are corrected by their owner
	assert.Equal(t, before.Vertex(24), f.Vertex(24))
	// Interior vertices are unchanged
	for _, v := range []int{6, 7, 8, 11, 12, 13, 16, 17, 18} {
		assert.Equal(t, before.Vertex(v), f.Vertex(v))
	}

	short := recovery.NewField("short", recovery.Layout{NumVar: 1, NumFlux: 1, Block: 3}, 3)
	assert.ErrorContains(t, NeighborAverage{}.CorrectBoundaryHessian(m, halo.HessianViscous, short), "mesh has 25")
}
