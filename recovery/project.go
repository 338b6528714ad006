package recovery

import (
	"errors"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/notargets/anisocfd/geometry"
	"github.com/notargets/anisocfd/mesh"
	"github.com/notargets/anisocfd/metric"
	"github.com/notargets/anisocfd/utils"
)

type Options struct {
	// Number of element shards swept concurrently. Zero or less uses one
	// shard per CPU. Shards accumulate privately and are summed in shard
	// order, so a given degree always produces the same bits.
	ParallelDegree int
	// Elements with |measure| <= DegenerateTolerance * (longest edge)^Dim
	// abort the sweep. Zero or less uses utils.NODETOL.
	DegenerateTolerance float64
}

func DefaultOptions() Options {
	return Options{
		ParallelDegree:      1,
		DegenerateTolerance: utils.NODETOL,
	}
}

// stencil maps the per element contraction c[s][q] = sum_i src_s(v_i)*n_i[q]
// of one source block onto the entries of the destination block.
type stencil struct {
	name               string
	srcBlock, dstBlock int
	emit               func(c *[3][3]float64, dst []float64)
}

func gradientStencil(dim int) stencil {
	return stencil{
		name:     "gradient",
		srcBlock: 1,
		dstBlock: dim,
		emit: func(c *[3][3]float64, dst []float64) {
			for q := 0; q < dim; q++ {
				dst[q] = c[0][q]
			}
		},
	}
}

func hessianStencil(dim int) stencil {
	return stencil{
		name:     "hessian",
		srcBlock: dim,
		dstBlock: metric.PackedSize(dim),
		emit: func(c *[3][3]float64, dst []float64) {
			for p := 0; p < dim; p++ {
				dst[metric.PackedIndex(dim, p, p)] = c[p][p]
				for q := p + 1; q < dim; q++ {
					dst[metric.PackedIndex(dim, p, q)] = 0.5 * (c[p][q] + c[q][p])
				}
			}
		},
	}
}

// normalization is the divisor applied with the dual volume. The normal sum
// is 2|T| grad in 2D and 6|T| grad in 3D and each vertex receives
// |T|/(Dim+1) of the element, giving 1/6 and 1/24.
func normalization(dim int) float64 {
	if dim == 2 {
		return 6
	}
	return 24
}

// NewGradientField allocates the gradient of sensor, one Dim block per
// (variable, flux) pair.
func NewGradientField(name string, sensor *Field, dim int) *Field {
	return NewField(name, sensor.Layout.WithBlock(dim), sensor.NumVertices)
}

// NewHessianField allocates the packed Hessian matching a gradient field
func NewHessianField(name string, grad *Field, dim int) *Field {
	return NewField(name, grad.Layout.WithBlock(metric.PackedSize(dim)), grad.NumVertices)
}

// ProjectGradient zeroes grad and accumulates the Green-Gauss gradient of
// every (variable, flux) scalar of sensor at every vertex of m. The result
// is exact for fields affine over the vertex star.
func ProjectGradient(m *mesh.Mesh, sensor, grad *Field, opts Options) error {
	sensor.checkShape(sensor.Layout.WithBlock(1), m.NumVertices)
	grad.checkShape(sensor.Layout.WithBlock(m.Dim), m.NumVertices)
	return project(m, sensor, grad, gradientStencil(m.Dim), opts)
}

// ProjectHessian zeroes hess and projects each gradient component once more,
// symmetrizing the mixed derivatives. Off halo-synced input the Hessian of
// an owned vertex is complete.
func ProjectHessian(m *mesh.Mesh, grad, hess *Field, opts Options) error {
	grad.checkShape(grad.Layout.WithBlock(m.Dim), m.NumVertices)
	hess.checkShape(grad.Layout.WithBlock(metric.PackedSize(m.Dim)), m.NumVertices)
	return project(m, grad, hess, hessianStencil(m.Dim), opts)
}

func project(m *mesh.Mesh, src, dst *Field, st stencil, opts Options) (err error) {
	dst.Zero()
	if err = src.CheckFinite(); err != nil {
		return
	}
	tol := opts.DegenerateTolerance
	if tol <= 0 {
		tol = utils.NODETOL
	}
	if err = checkDualVolumes(m, tol); err != nil {
		if errors.As(err, new(*geometry.DegenerateElementError)) {
			err = fmt.Errorf("%s sweep of %s: %w", st.name, src.Name, err)
		}
		return
	}
	var (
		np  = utils.ParallelDegree(opts.ParallelDegree, m.NumElements)
		pm  = utils.NewPartitionMap(np, m.NumElements)
		acc = make([][]float64, np)
		g   errgroup.Group
	)
	acc[0] = dst.Data
	for n := 1; n < np; n++ {
		acc[n] = make([]float64, len(dst.Data))
	}
	for n := 0; n < np; n++ {
		kMin, kMax := pm.GetBucketRange(n)
		g.Go(func() error {
			return sweep(m, src, dst, st, acc[n], kMin, kMax, tol)
		})
	}
	if err = g.Wait(); err != nil {
		dst.Zero()
		return
	}
	for n := 1; n < np; n++ {
		for i, x := range acc[n] {
			dst.Data[i] += x
		}
	}
	return
}

// sweep accumulates elements [kMin, kMax) into acc, which has the shape of dst
func sweep(m *mesh.Mesh, src, dst *Field, st stencil, acc []float64, kMin, kMax int, tol float64) error {
	var (
		nb        = src.Layout.NumBlocks()
		srcStride = src.Layout.Stride()
		dstStride = dst.Layout.Stride()
		norm      = normalization(m.Dim)
		out       [6]float64
	)
	for k := kMin; k < kMax; k++ {
		s := m.Simplex(k)
		normals, _, err := s.InwardNormals(tol)
		if err != nil {
			return fmt.Errorf("%s sweep of %s: %w", st.name, src.Name, elementError(k, err))
		}
		verts := m.EtoV[k]
		for b := 0; b < nb; b++ {
			var c [3][3]float64
			for i, v := range verts {
				sv := src.Data[v*srcStride+b*st.srcBlock:]
				for sc := 0; sc < st.srcBlock; sc++ {
					for q := 0; q < m.Dim; q++ {
						c[sc][q] += sv[sc] * normals[i][q]
					}
				}
			}
			raw := out[:st.dstBlock]
			st.emit(&c, raw)
			for _, v := range verts {
				var (
					vol = m.DualVolume[v]
					a   = acc[v*dstStride+b*st.dstBlock:]
				)
				for j, x := range raw {
					contrib := x / (norm * vol)
					if !utils.IsFinite(contrib) {
						return &FieldCorruptionError{
							Field:   dst.Name,
							Vertex:  v,
							Element: k,
							Index:   b*st.dstBlock + j,
							Value:   contrib,
						}
					}
					a[j] += contrib
				}
			}
		}
	}
	return nil
}

func elementError(k int, err error) error {
	var de *geometry.DegenerateElementError
	if errors.As(err, &de) {
		de.Element = k
	}
	return err
}

// checkDualVolumes rejects missing or non-positive dual volumes. A vertex
// whose only elements are flat has a zero volume, so those elements are
// reported as degenerate rather than the volume as corrupted.
func checkDualVolumes(m *mesh.Mesh, tol float64) error {
	if len(m.DualVolume) != m.NumVertices {
		return fmt.Errorf("mesh has %d dual volumes for %d vertices", len(m.DualVolume), m.NumVertices)
	}
	for v, vol := range m.DualVolume {
		if !(vol > 0) || !utils.IsFinite(vol) {
			if err := degenerateElementAt(m, v, tol); err != nil {
				return err
			}
			return &FieldCorruptionError{
				Field:   "DualVolume",
				Vertex:  v,
				Element: -1,
				Value:   vol,
			}
		}
	}
	return nil
}

// degenerateElementAt returns the error of the first degenerate element
// touching vertex v, nil when there is none
func degenerateElementAt(m *mesh.Mesh, v int, tol float64) error {
	for k, verts := range m.EtoV {
		if !slices.Contains(verts, v) {
			continue
		}
		s := m.Simplex(k)
		if _, _, err := s.InwardNormals(tol); err != nil {
			return elementError(k, err)
		}
	}
	return nil
}
