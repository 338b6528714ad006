package sensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/diff/fd"

	"github.com/notargets/anisocfd/mesh"
)

func TestBuildSensors(t *testing.T) {
	m, err := mesh.NewStructuredTriMesh(2, 1, 1., 1.)
	require.NoError(t, err)
	sol := make(Solution, m.NumVertices)
	for v := range sol {
		sol[v] = State{
			Density:          2,
			Velocity:         [3]float64{float64(v), -1, 7},
			NuTilde:          0.5,
			GradNuTilde:      [3]float64{3, float64(v), 9},
			LaminarViscosity: 0.25,
		}
	}
	conv, visc := BuildSensors(m, sol)
	assert.Equal(t, 2, conv.Layout.NumFlux)
	assert.Equal(t, 1, conv.Layout.NumVar)
	assert.Equal(t, 1, conv.Layout.Block)
	for v := 0; v < m.NumVertices; v++ {
		// rho*u_i*nu
		assert.InDelta(t, float64(v), conv.At(v, 0, 0, 0), 1.e-15)
		assert.InDelta(t, -1., conv.At(v, 0, 1, 0), 1.e-15)
		// 1.5*(mu + rho*nu) = 1.875
		assert.InDelta(t, 1.875*3, visc.At(v, 0, 0, 0), 1.e-14)
		assert.InDelta(t, 1.875*float64(v), visc.At(v, 0, 1, 0), 1.e-14)
	}
}

func TestBuildSensorsUsesGlobalID(t *testing.T) {
	m, err := mesh.NewStructuredTriMesh(4, 2, 1., 1.)
	require.NoError(t, err)
	sol := make(Solution, m.NumVertices)
	for v := range sol {
		sol[v] = State{Density: 1, Velocity: [3]float64{float64(v), 0, 0}, NuTilde: 1}
	}
	EToP := make([]int, m.NumElements)
	for k := range EToP {
		EToP[k] = k % 2
	}
	parts, err := mesh.Split(m, EToP, 2)
	require.NoError(t, err)
	for _, p := range parts {
		conv, _ := BuildSensors(p.Mesh, sol)
		for lv, gv := range p.Mesh.GlobalID {
			assert.Equal(t, float64(gv), conv.At(lv, 0, 0, 0))
		}
	}
}

func TestProfileGradients(t *testing.T) {
	points := [][]float64{{0.1, 0.2, 0.3}, {0.5, 0.5, 0.5}, {0.7, 0.45, 0.9}, {0.33, 0.61, 0.}}
	for _, kind := range profileKinds {
		t.Run(kind, func(t *testing.T) {
			p := DefaultProfile()
			p.Kind = kind
			p.Width = 0.3
			require.NoError(t, p.Validate())
			nu := func(x []float64) float64 { return p.At(x).NuTilde }
			for _, x := range points {
				st := p.At(x)
				grad := fd.Gradient(nil, nu, x, &fd.Settings{Formula: fd.Central})
				assert.InDeltaSlice(t, grad, st.GradNuTilde[:], 1.e-7, "x = %v", x)
				assert.Equal(t, p.Density, st.Density)
				assert.Equal(t, p.Viscosity, st.LaminarViscosity)
			}
		})
	}
}

func TestProfileValidate(t *testing.T) {
	p := DefaultProfile()
	p.Kind = "jet"
	assert.ErrorContains(t, p.Validate(), "unknown flow profile")
	p.Kind = "vortex"
	p.Width = 0
	assert.ErrorContains(t, p.Validate(), "positive width")
	p.Kind = "uniform"
	assert.NoError(t, p.Validate())

	m, err := mesh.NewStructuredTetMesh(2, 1.)
	require.NoError(t, err)
	sol, err := p.Evaluate(m)
	require.NoError(t, err)
	require.Len(t, sol, m.NumVertices)
	// nu = A*(1 + x + 2y + 3z) at the far corner
	assert.InDelta(t, 7*p.Amplitude, sol[m.NumVertices-1].NuTilde, 1.e-14)
	p.Kind = "jet"
	_, err = p.Evaluate(m)
	assert.Error(t, err)
}
