// Package metric turns recovered nodal Hessians into metric tensors: each
// packed symmetric block is decomposed, its eigenvalues replaced by their
// magnitudes and the block recomposed, leaving it positive semi-definite.
package metric

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// PackedSize is the number of upper triangular entries of a dim x dim
// symmetric matrix: 3 in 2D (xx, xy, yy) and 6 in 3D (xx, xy, xz, yy, yz, zz).
func PackedSize(dim int) int {
	return dim * (dim + 1) / 2
}

// PackedIndex locates entry (p, q) of a symmetric matrix in packed storage
func PackedIndex(dim, p, q int) int {
	if p > q {
		p, q = q, p
	}
	return p*dim - p*(p-1)/2 + q - p
}

// Unpack expands packed storage into a symmetric matrix
func Unpack(dim int, packed []float64) *mat.SymDense {
	if len(packed) < PackedSize(dim) {
		panic(fmt.Errorf("packed %dD matrix needs %d entries, have %d", dim, PackedSize(dim), len(packed)))
	}
	s := mat.NewSymDense(dim, nil)
	for p := 0; p < dim; p++ {
		for q := p; q < dim; q++ {
			s.SetSym(p, q, packed[PackedIndex(dim, p, q)])
		}
	}
	return s
}

// Pack writes the upper triangle of s into dst
func Pack(s mat.Symmetric, dst []float64) {
	dim := s.SymmetricDim()
	if len(dst) < PackedSize(dim) {
		panic(fmt.Errorf("packed %dD matrix needs %d entries, have %d", dim, PackedSize(dim), len(dst)))
	}
	for p := 0; p < dim; p++ {
		for q := p; q < dim; q++ {
			dst[PackedIndex(dim, p, q)] = s.At(p, q)
		}
	}
}
