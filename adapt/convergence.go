package adapt

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/notargets/anisocfd/mesh"
	"github.com/notargets/anisocfd/metric"
	"github.com/notargets/anisocfd/recovery"
)

// ConvergenceLevel is the Hessian recovery error on one structured mesh
type ConvergenceLevel struct {
	N        int // Cells per direction
	H        float64
	Vertices int // Vertices inside the measured region
	RMSError float64
	MaxError float64
}

// waveNumber of the plane wave f = sin(k.x) whose Hessian -sin(k.x) k k^T
// the study recovers
var waveNumber = [3]float64{2, 1, 1.5}

func wave(x []float64) (phase float64) {
	for d := range x {
		phase += waveNumber[d] * x[d]
	}
	return
}

// ConvergenceStudy recovers the Hessian of a smooth plane wave on the unit
// square (dim 2) or cube (dim 3) refined to each of levels cells per
// direction, and measures the Frobenius error against the exact Hessian at
// vertices at least margin away from the boundary.
func ConvergenceStudy(dim int, levels []int, margin float64, opts recovery.Options) (study []ConvergenceLevel, err error) {
	for _, n := range levels {
		var m *mesh.Mesh
		switch dim {
		case 2:
			m, err = mesh.NewStructuredTriMesh(n, n, 1., 1.)
		case 3:
			m, err = mesh.NewStructuredTetMesh(n, 1.)
		default:
			err = fmt.Errorf("unsupported dimension: %d", dim)
		}
		if err != nil {
			return nil, err
		}
		var lvl ConvergenceLevel
		if lvl, err = convergenceLevel(m, n, margin, opts); err != nil {
			return nil, err
		}
		study = append(study, lvl)
	}
	return
}

func convergenceLevel(m *mesh.Mesh, n int, margin float64, opts recovery.Options) (lvl ConvergenceLevel, err error) {
	var (
		dim    = m.Dim
		layout = recovery.Layout{NumVar: 1, NumFlux: 1, Block: 1}
		f      = recovery.NewField("wave", layout, m.NumVertices)
		grad   = recovery.NewGradientField("grad", f, dim)
		hess   = recovery.NewHessianField("hess", grad, dim)
		sumSq  float64
	)
	for v, x := range m.Vertices {
		f.Data[v] = math.Sin(wave(x[:dim]))
	}
	if err = recovery.ProjectGradient(m, f, grad, opts); err != nil {
		return
	}
	if err = recovery.ProjectHessian(m, grad, hess, opts); err != nil {
		return
	}
	lvl.N = n
	lvl.H = 1. / float64(n)
	for v, x := range m.Vertices {
		if !inside(x[:dim], margin) {
			continue
		}
		var (
			s    = -math.Sin(wave(x[:dim]))
			h    = hess.Vertex(v)
			frob float64
		)
		for p := 0; p < dim; p++ {
			for q := 0; q < dim; q++ {
				d := h[metric.PackedIndex(dim, p, q)] - s*waveNumber[p]*waveNumber[q]
				frob += d * d
			}
		}
		sumSq += frob
		lvl.MaxError = math.Max(lvl.MaxError, math.Sqrt(frob))
		lvl.Vertices++
	}
	if lvl.Vertices == 0 {
		return lvl, fmt.Errorf("no vertex of the %d cell mesh lies %g inside the boundary", n, margin)
	}
	lvl.RMSError = math.Sqrt(sumSq / float64(lvl.Vertices))
	return
}

func inside(x []float64, margin float64) bool {
	for _, c := range x {
		if c < margin-1.e-12 || c > 1-margin+1.e-12 {
			return false
		}
	}
	return true
}

// ObservedOrders returns the order of convergence of the RMS error between
// successive levels
func ObservedOrders(study []ConvergenceLevel) (orders []float64) {
	for i := 1; i < len(study); i++ {
		orders = append(orders,
			math.Log(study[i-1].RMSError/study[i].RMSError)/math.Log(study[i-1].H/study[i].H))
	}
	return
}

// WriteConvergenceCSV writes a header and one row per level
func WriteConvergenceCSV(w io.Writer, title string, dim int, study []ConvergenceLevel) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Title", "Dimension", "N", "H", "Vertices", "RMSError", "MaxError"}); err != nil {
		return err
	}
	for _, l := range study {
		if err := cw.Write([]string{
			title,
			strconv.Itoa(dim),
			strconv.Itoa(l.N),
			strconv.FormatFloat(l.H, 'g', -1, 64),
			strconv.Itoa(l.Vertices),
			strconv.FormatFloat(l.RMSError, 'g', -1, 64),
			strconv.FormatFloat(l.MaxError, 'g', -1, 64),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
