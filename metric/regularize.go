package metric

import (
	"fmt"
	"math"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/notargets/anisocfd/utils"
)

// MetricRegularizationError reports a block whose eigendecomposition failed,
// either on non-finite input or a non-converging eigensolve.
type MetricRegularizationError struct {
	Vertex int
	Block  int
	Err    error
}

func (e *MetricRegularizationError) Error() string {
	return fmt.Sprintf("metric regularization failed at vertex %d block %d: %v", e.Vertex, e.Block, e.Err)
}

func (e *MetricRegularizationError) Unwrap() error { return e.Err }

// PackedField is a vertex field of packed symmetric blocks
type PackedField interface {
	NumBlocks() int
	PackedBlock(v, b int) []float64
}

// Regularizer makes every owned packed block of a field positive
// semi-definite.
type Regularizer struct {
	// When set a failing block is replaced by FallbackEigenvalue * I and the
	// failure is recorded in the Report instead of being returned.
	Fallback           bool
	FallbackEigenvalue float64
	ParallelDegree     int // Zero or less uses one worker per CPU
	Logger             *zap.Logger
}

// Report summarizes one Regularize call
type Report struct {
	Blocks     int                          // Blocks regularized
	Indefinite int                          // Blocks that had at least one negative eigenvalue
	Fallbacks  []*MetricRegularizationError // Blocks replaced by the isotropic fallback
}

// Add accumulates another report, used to total the two sensor fields
func (r *Report) Add(o Report) {
	r.Blocks += o.Blocks
	r.Indefinite += o.Indefinite
	r.Fallbacks = append(r.Fallbacks, o.Fallbacks...)
}

// RegularizeBlock replaces the packed block in place by V*|Lambda|*V^T and
// reports whether the input had a negative eigenvalue.
func RegularizeBlock(dim int, packed []float64) (indefinite bool, err error) {
	vecs, vals, err := Decompose(Unpack(dim, packed))
	if err != nil {
		return
	}
	for i, l := range vals {
		if l < 0 {
			indefinite = true
		}
		vals[i] = math.Abs(l)
	}
	Pack(Recompose(vecs, vals), packed)
	return
}

// Regularize processes every block of the vertices flagged in owned. Halo
// copies are left alone, they are regularized by their owner.
func (r *Regularizer) Regularize(dim int, f PackedField, owned []bool) (rep Report, err error) {
	logger := r.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		nv      = len(owned)
		np      = utils.ParallelDegree(r.ParallelDegree, nv)
		pm      = utils.NewPartitionMap(np, nv)
		reports = make([]Report, np)
		errs    = make([]error, np)
		g       errgroup.Group
	)
	for n := 0; n < np; n++ {
		vMin, vMax := pm.GetBucketRange(n)
		g.Go(func() error {
			reports[n], errs[n] = r.regularizeRange(dim, f, owned, vMin, vMax)
			return errs[n]
		})
	}
	if err = g.Wait(); err != nil {
		// Report every failed block, in vertex order, not only the first shard's
		err = multierr.Combine(errs...)
	}
	for n := 0; n < np; n++ {
		rep.Add(reports[n])
	}
	for _, fe := range rep.Fallbacks {
		logger.Warn("isotropic metric substituted",
			zap.Int("vertex", fe.Vertex),
			zap.Int("block", fe.Block),
			zap.Error(fe.Err))
	}
	return
}

func (r *Regularizer) regularizeRange(dim int, f PackedField, owned []bool, vMin, vMax int) (rep Report, err error) {
	nb := f.NumBlocks()
	for v := vMin; v < vMax; v++ {
		if !owned[v] {
			continue
		}
		for b := 0; b < nb; b++ {
			packed := f.PackedBlock(v, b)
			indefinite, berr := RegularizeBlock(dim, packed)
			if berr != nil {
				me := &MetricRegularizationError{Vertex: v, Block: b, Err: berr}
				if !r.Fallback {
					err = multierr.Append(err, me)
					continue
				}
				r.isotropic(dim, packed)
				rep.Fallbacks = append(rep.Fallbacks, me)
			}
			if indefinite {
				rep.Indefinite++
			}
			rep.Blocks++
		}
	}
	return
}

func (r *Regularizer) isotropic(dim int, packed []float64) {
	for p := 0; p < dim; p++ {
		for q := p; q < dim; q++ {
			if p == q {
				packed[PackedIndex(dim, p, q)] = r.FallbackEigenvalue
			} else {
				packed[PackedIndex(dim, p, q)] = 0
			}
		}
	}
}
