package cmd

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/notargets/anisocfd/InputParameters"
)

func TestRunMetric(t *testing.T) {
	input := []byte(`
Title: Vortex
Dimension: 2
Refinement: 6
Flow:
  Kind: vortex
  Density: 1.
  Velocity: 1.
  Viscosity: 0.001
  Amplitude: 0.01
  Width: 0.2
BoundaryCorrection: true
IsotropicFallback: true
FallbackEigenvalue: 1.e-8
`)
	for _, partitions := range []int{1, 2} {
		ip := InputParameters.NewInputParametersMetric()
		require.NoError(t, ip.Parse(input))
		ip.Partitions = partitions
		ip.Output = filepath.Join(t.TempDir(), "vortex")

		m, res, err := RunMetric(ip, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, 49, m.NumVertices)
		assert.Equal(t, 49, res.MetricConvective.NumVertices)
		require.NoError(t, WriteOutputs(ip, m, res))

		f, err := os.Open(ip.Output + ".csv")
		require.NoError(t, err)
		records, err := csv.NewReader(f).ReadAll()
		require.NoError(t, f.Close())
		require.NoError(t, err)
		assert.Len(t, records, m.NumVertices+1)

		summary, err := os.ReadFile(ip.Output + ".yaml")
		require.NoError(t, err)
		assert.Contains(t, string(summary), "Vertices: 49")
	}
}

func TestLoadMesh(t *testing.T) {
	ip := InputParameters.NewInputParametersMetric()
	ip.Dimension, ip.Refinement = 3, 2
	m, err := LoadMesh(ip)
	require.NoError(t, err)
	assert.Equal(t, 27, m.NumVertices)
	assert.Equal(t, 48, m.NumElements)

	ip.MeshFile = filepath.Join(t.TempDir(), "missing.su2")
	_, err = LoadMesh(ip)
	assert.Error(t, err)

	ip.MeshFile = filepath.Join(t.TempDir(), "square.msh")
	require.NoError(t, os.WriteFile(ip.MeshFile, []byte(`$MeshFormat
2.2 0 8
$EndMeshFormat
$Nodes
4
1 0 0 0
2 1 0 0
3 1 1 0
4 0 1 0
$EndNodes
$Elements
2
1 2 0 1 2 3
2 2 0 1 3 4
$EndElements
`), 0644))
	m, err = LoadMesh(ip)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Dim)
	assert.Equal(t, 2, m.NumElements)

	usage := MetricCmd.Flags().Lookup("meshFile").Usage
	assert.Contains(t, usage, ".su2")
	assert.Contains(t, usage, ".msh")
}

func TestConvergenceCommand(t *testing.T) {
	csvFile := filepath.Join(t.TempDir(), "conv.csv")
	rootCmd.SetArgs([]string{"convergence", "--dim", "2", "--levels", "8,16", "--csvFile", csvFile})
	require.NoError(t, rootCmd.Execute())

	data, err := os.ReadFile(csvFile)
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "N", records[0][2])
	assert.Equal(t, "16", records[2][2])
}
