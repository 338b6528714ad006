package sensor

import (
	"fmt"
	"math"
	"slices"

	"github.com/notargets/anisocfd/mesh"
)

// Profile is an analytic flow used to drive the recovery without a flow
// solver. Kind selects the flow:
//
//	uniform: constant velocity along x, nu linear in every coordinate
//	shear:   velocity along x growing with y, nu a tanh layer centered at y = 0.5
//	vortex:  Gaussian vortex about the z axis through (0.5, 0.5)
type Profile struct {
	Kind      string  `json:"Kind"`
	Density   float64 `json:"Density"`
	Velocity  float64 `json:"Velocity"`
	Viscosity float64 `json:"Viscosity"`
	Amplitude float64 `json:"Amplitude"` // Scale of nu
	Width     float64 `json:"Width"`     // Layer thickness or vortex core radius
}

var profileKinds = []string{"uniform", "shear", "vortex"}

func DefaultProfile() Profile {
	return Profile{
		Kind:      "vortex",
		Density:   1,
		Velocity:  1,
		Viscosity: 1.e-3,
		Amplitude: 1.e-2,
		Width:     0.2,
	}
}

func (p Profile) Validate() error {
	switch {
	case !slices.Contains(profileKinds, p.Kind):
		return fmt.Errorf("unknown flow profile %q, expected one of %v", p.Kind, profileKinds)
	case p.Kind != "uniform" && !(p.Width > 0):
		return fmt.Errorf("flow profile %s needs a positive width, got %g", p.Kind, p.Width)
	}
	return nil
}

// At evaluates the profile at x
func (p Profile) At(x []float64) (st State) {
	st.Density = p.Density
	st.LaminarViscosity = p.Viscosity
	switch p.Kind {
	case "uniform":
		st.Velocity[0] = p.Velocity
		st.NuTilde = p.Amplitude
		for d := range x {
			st.NuTilde += p.Amplitude * float64(d+1) * x[d]
			st.GradNuTilde[d] = p.Amplitude * float64(d+1)
		}
	case "shear":
		var (
			eta  = (x[1] - 0.5) / p.Width
			sech = 1 / math.Cosh(eta)
		)
		st.Velocity[0] = p.Velocity * x[1]
		st.NuTilde = p.Amplitude * (1 + math.Tanh(eta))
		st.GradNuTilde[1] = p.Amplitude * sech * sech / p.Width
	case "vortex":
		var (
			dx, dy = x[0] - 0.5, x[1] - 0.5
			w2     = p.Width * p.Width
			g      = math.Exp(-(dx*dx + dy*dy) / w2)
		)
		st.Velocity[0] = -p.Velocity * dy * g / p.Width
		st.Velocity[1] = p.Velocity * dx * g / p.Width
		st.NuTilde = p.Amplitude * g
		st.GradNuTilde[0] = -2 * dx / w2 * st.NuTilde
		st.GradNuTilde[1] = -2 * dy / w2 * st.NuTilde
	}
	return
}

// Evaluate samples the profile at every vertex of m
func (p Profile) Evaluate(m *mesh.Mesh) (Solution, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	sol := make(Solution, m.NumVertices)
	for v, x := range m.Vertices {
		sol[v] = p.At(x[:m.Dim])
	}
	return sol, nil
}
