// Package sensor builds the convective and viscous sensor fields of the
// turbulence working variable from a flow solution sampled at the vertices.
package sensor

import (
	"github.com/notargets/anisocfd/mesh"
	"github.com/notargets/anisocfd/recovery"
)

// State is the flow state at one vertex
type State struct {
	Density          float64
	Velocity         [3]float64
	NuTilde          float64    // Transported turbulence variable
	GradNuTilde      [3]float64 // Its spatial gradient
	LaminarViscosity float64
}

// Evaluator supplies the flow state by global vertex index
type Evaluator interface {
	State(vertex int) State
}

// Solution is a flow state per global vertex
type Solution []State

func (s Solution) State(vertex int) State { return s[vertex] }

// BuildSensors returns the convective sensor rho*u_i*nu and the viscous
// sensor 1.5*(mu + rho*nu)*dnu/dx_i at every vertex of m, one flux
// direction per spatial dimension. States are looked up by GlobalID so a
// partition of a mesh reads the same solution as the whole mesh.
func BuildSensors(m *mesh.Mesh, ev Evaluator) (conv, visc *recovery.Field) {
	layout := recovery.Layout{NumVar: 1, NumFlux: m.Dim, Block: 1}
	conv = recovery.NewField("SensorConvective", layout, m.NumVertices)
	visc = recovery.NewField("SensorViscous", layout, m.NumVertices)
	for v := 0; v < m.NumVertices; v++ {
		st := ev.State(m.GlobalID[v])
		diffusivity := 1.5 * (st.LaminarViscosity + st.Density*st.NuTilde)
		for d := 0; d < m.Dim; d++ {
			conv.Set(v, 0, d, 0, st.Density*st.Velocity[d]*st.NuTilde)
			visc.Set(v, 0, d, 0, diffusivity*st.GradNuTilde[d])
		}
	}
	return
}
