package mesh

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gmshSquare = `$MeshFormat
2.2 0 8
$EndMeshFormat
$PhysicalNames
2
1 1 "far field"
1 2 "outlet"
$EndPhysicalNames
$Nodes
4
10 0 0 0
11 1 0 0
12 1 1 0
13 0 1 0
$EndNodes
$Elements
5
1 15 2 0 1 10
2 1 2 1 1 10 11
3 1 2 2 2 11 12
4 2 2 2 5 10 11 12
5 2 2 2 5 10 12 13
$EndElements
$NodeData
1
"pressure"
$EndNodeData
`

func TestReadGmsh22(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "square.msh")
	require.NoError(t, os.WriteFile(filename, []byte(gmshSquare), 0644))
	m, err := ReadMeshFile(filename)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Dim)
	assert.Equal(t, 4, m.NumVertices)
	assert.Equal(t, 2, m.NumElements)
	assert.Equal(t, []int{0, 1, 2}, m.EtoV[0])
	assert.Equal(t, []int{0, 2, 3}, m.EtoV[1])
	assert.Len(t, m.BoundaryElements["far field"], 1)
	assert.Equal(t, []int{0, 1}, m.BoundaryElements["far field"][0].Nodes)
	assert.Len(t, m.BoundaryElements["outlet"], 1)
	assert.Equal(t, []int{1, 2}, m.BoundaryElements["outlet"][0].Nodes)
	assert.Equal(t, "far field", m.BoundaryTags[0])
	assert.Equal(t, "outlet", m.BoundaryTags[1])
	assert.InDelta(t, 1., sum(m.DualVolume), 1.e-14)
}

func TestReadGmsh22Errors(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		errMsg  string
	}{
		{"version 4", "$MeshFormat\n4.1 0 8\n$EndMeshFormat\n", "unsupported Gmsh format version"},
		{"binary", "$MeshFormat\n2.2 1 8\n$EndMeshFormat\n", "binary"},
		{"missing format", "$Nodes\n0\n$EndNodes\n", "MeshFormat"},
		{"no volume elements", "$MeshFormat\n2.2 0 8\n$EndMeshFormat\n$Nodes\n2\n1 0 0 0\n2 1 0 0\n$EndNodes\n$Elements\n1\n1 1 0 1 2\n$EndElements\n", "no triangle"},
		{"unknown node", "$MeshFormat\n2.2 0 8\n$EndMeshFormat\n$Nodes\n2\n1 0 0 0\n2 1 0 0\n$EndNodes\n$Elements\n1\n1 2 0 1 2 3\n$EndElements\n", "unknown node 3"},
		{"truncated", "$MeshFormat\n2.2 0 8\n$EndMeshFormat\n$Nodes\n2\n1 0 0 0\n", "unexpected EOF"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseGmsh22(strings.NewReader(tc.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}
