package metric

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/notargets/anisocfd/utils"
)

// Decompose returns the eigenvalues of a 2x2 or 3x3 symmetric matrix in
// ascending order and the matching unit eigenvectors as the columns of vecs.
// The 2x2 case is solved in closed form, the 3x3 case with mat.EigenSym.
func Decompose(s mat.Symmetric) (vecs *mat.Dense, vals []float64, err error) {
	n := s.SymmetricDim()
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			if x := s.At(i, j); !utils.IsFinite(x) {
				return nil, nil, fmt.Errorf("entry (%d,%d) is %g", i, j, x)
			}
		}
	}
	switch n {
	case 2:
		vecs, vals = decompose2(s.At(0, 0), s.At(0, 1), s.At(1, 1))
	case 3:
		var es mat.EigenSym
		if ok := es.Factorize(s, true); !ok {
			return nil, nil, fmt.Errorf("symmetric eigensolver did not converge")
		}
		vals = es.Values(nil)
		vecs = mat.NewDense(3, 3, nil)
		es.VectorsTo(vecs)
	default:
		panic(fmt.Errorf("metric decomposition supports 2x2 and 3x3 matrices, got %dx%d", n, n))
	}
	for _, x := range vals {
		if !utils.IsFinite(x) {
			return nil, nil, fmt.Errorf("eigenvalue is %g", x)
		}
	}
	return
}

// decompose2 solves [[a b] [b c]]
func decompose2(a, b, c float64) (vecs *mat.Dense, vals []float64) {
	if b == 0 {
		if a <= c {
			return mat.NewDense(2, 2, []float64{1, 0, 0, 1}), []float64{a, c}
		}
		return mat.NewDense(2, 2, []float64{0, 1, 1, 0}), []float64{c, a}
	}
	var (
		mean = 0.5 * (a + c)
		r    = math.Hypot(0.5*(a-c), b)
		lmin = mean - r
		lmax = mean + r
	)
	// Two candidate eigenvectors for lmax, keep the better conditioned one
	x1, y1 := b, lmax-a
	x2, y2 := lmax-c, b
	if math.Hypot(x2, y2) > math.Hypot(x1, y1) {
		x1, y1 = x2, y2
	}
	l := math.Hypot(x1, y1)
	x1, y1 = x1/l, y1/l
	// Columns: (-y1, x1) for lmin, (x1, y1) for lmax
	return mat.NewDense(2, 2, []float64{
		-y1, x1,
		x1, y1,
	}), []float64{lmin, lmax}
}

// Recompose builds vecs * diag(vals) * vecs^T
func Recompose(vecs mat.Matrix, vals []float64) *mat.SymDense {
	n, _ := vecs.Dims()
	var vl, full mat.Dense
	vl.Mul(vecs, mat.NewDiagDense(n, vals))
	full.Mul(&vl, vecs.T())
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		s.SetSym(i, i, full.At(i, i))
		for j := i + 1; j < n; j++ {
			s.SetSym(i, j, 0.5*(full.At(i, j)+full.At(j, i)))
		}
	}
	return s
}
