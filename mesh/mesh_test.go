package mesh

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sum(a []float64) (s float64) {
	for _, v := range a {
		s += v
	}
	return
}

func TestStructuredTriMesh(t *testing.T) {
	m, err := NewStructuredTriMesh(4, 3, 2., 1.5)
	require.NoError(t, err)
	assert.Equal(t, 20, m.NumVertices)
	assert.Equal(t, 24, m.NumElements)
	// Dual volumes partition the domain
	assert.InDelta(t, 3., sum(m.DualVolume), 1.e-12)
	// Boundary vertices are exactly those on the rectangle's edges
	for v, x := range m.Vertices {
		onEdge := x[0] == 0 || x[0] == 2. || x[1] == 0 || x[1] == 1.5
		assert.Equal(t, onEdge, m.BoundaryVertex[v], "vertex %d at %v", v, x)
	}
	// Interior faces are shared reciprocally
	for k, nbrs := range m.EToE {
		for _, nbr := range nbrs {
			if nbr >= 0 {
				assert.Contains(t, m.EToE[nbr], k)
			}
		}
	}
	for v := range m.Owned {
		assert.True(t, m.Owned[v])
		assert.Equal(t, v, m.GlobalID[v])
	}
}

func TestStructuredTetMesh(t *testing.T) {
	m, err := NewStructuredTetMesh(3, 1.)
	require.NoError(t, err)
	assert.Equal(t, 64, m.NumVertices)
	assert.Equal(t, 6*27, m.NumElements)
	assert.InDelta(t, 1., sum(m.DualVolume), 1.e-12)
	// Interior vertices of a uniform Kuhn mesh all have dual volume h^3
	h3 := 1. / 27.
	var interior int
	for v := range m.Vertices {
		if !m.BoundaryVertex[v] {
			interior++
			assert.InDelta(t, h3, m.DualVolume[v], 1.e-14)
		}
	}
	assert.Equal(t, 8, interior)
	// Conforming: each interior face is matched exactly once
	var boundaryFaces int
	for _, nbrs := range m.EToE {
		for _, nbr := range nbrs {
			if nbr < 0 {
				boundaryFaces++
			}
		}
	}
	assert.Equal(t, 6*9*2, boundaryFaces)
}

func TestVertexNeighbors(t *testing.T) {
	m, err := NewStructuredTriMesh(2, 2, 1., 1.)
	require.NoError(t, err)
	nbrs := m.VertexNeighbors()
	// Center vertex (index 4) of a 2x2 grid touches six triangles
	assert.Equal(t, []int{0, 1, 3, 5, 7, 8}, nbrs[4])
	// Corner vertex 0 lies on two triangles sharing the diagonal
	assert.Equal(t, []int{1, 3, 4}, nbrs[0])
}

func TestJitterKeepsDualVolumeTotal(t *testing.T) {
	m, err := NewStructuredTriMesh(6, 6, 1., 1.)
	require.NoError(t, err)
	m.Jitter(0.2/6, 7)
	assert.InDelta(t, 1., sum(m.DualVolume), 1.e-12)
	for k := range m.EtoV {
		s := m.Simplex(k)
		assert.Greater(t, s.Measure(), 0.)
	}
}

func TestValidateSimplex(t *testing.T) {
	m := NewMesh(2)
	m.Vertices = [][]float64{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}}
	m.EtoV = [][]int{{0, 1, 2, 3}}
	m.ElementTypes = []ElementType{Quad}
	err := m.Finalize()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only Triangle elements")

	m.EtoV = [][]int{{0, 1, 7}}
	m.ElementTypes = []ElementType{Triangle}
	err = m.Finalize()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

// Helper function to create temporary test files
func createTempSU2File(t *testing.T, content string) string {
	t.Helper()
	tmpFile := filepath.Join(t.TempDir(), "test.su2")
	if err := os.WriteFile(tmpFile, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	return tmpFile
}

func TestReadSU2(t *testing.T) {
	content := `% two triangles
NDIME= 2
NPOIN= 4
0.0 0.0
1.0 0.0 % trailing comment
1.0 1.0
0.0 1.0
NELEM= 2
5 0 1 2
5 0 2 3
NMARK= 1
MARKER_TAG= wall
MARKER_ELEMS= 1
3 0 1
`
	m, err := ReadMeshFile(createTempSU2File(t, content))
	require.NoError(t, err)
	assert.Equal(t, 2, m.Dim)
	assert.Equal(t, 4, m.NumVertices)
	assert.Equal(t, 2, m.NumElements)
	assert.Equal(t, "wall", m.BoundaryTags[0])
	assert.Len(t, m.BoundaryElements["wall"], 1)
	assert.InDelta(t, 1., sum(m.DualVolume), 1.e-14)
	assert.Equal(t, 1, m.EToE[0][1])
	assert.Equal(t, 0, m.EToE[1][2])
}

func TestReadSU2Errors(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		errMsg  string
	}{
		{"invalid dimension", "NDIME= 4\nNPOIN= 0\n", "unsupported dimension"},
		{"missing dimension", "NPOIN= 0\n", "NDIME"},
		{"missing points", "NDIME= 2\nNELEM= 0\n", "NPOIN"},
		{"truncated nodes", "NDIME= 2\nNPOIN= 3\n0 0\n1 0\n", "unexpected EOF"},
		{"unknown element", "NDIME= 2\nNPOIN= 3\n0 0\n1 0\n0 1\nNELEM= 1\n99 0 1 2\n", "unknown element type"},
		{"quad rejected", "NDIME= 2\nNPOIN= 4\n0 0\n1 0\n1 1\n0 1\nNELEM= 1\n9 0 1 2 3\n", "only Triangle"},
		{"bad node index", "NDIME= 2\nNPOIN= 3\n0 0\n1 0\n0 1\nNELEM= 1\n5 0 1 5\n", "out of range"},
		{"bad marker node", "NDIME= 2\nNPOIN= 3\n0 0\n1 0\n0 1\nNELEM= 1\n5 0 1 2\nNMARK= 1\nMARKER_TAG= wall\nMARKER_ELEMS= 1\n3 0 9\n", "marker wall references vertex 9"},
		{"bad marker", "NDIME= 2\nNPOIN= 3\n0 0\n1 0\n0 1\nNELEM= 1\n5 0 1 2\nNMARK= 1\nMARKER_ELEMS= 1\n", "MARKER_TAG"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseSU2(strings.NewReader(tc.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
	_, err := ReadMeshFile("mesh.neu")
	assert.ErrorContains(t, err, "unsupported mesh format")
}
