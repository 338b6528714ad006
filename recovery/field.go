// Package recovery reconstructs nodal gradients and Hessians of vertex
// sensor fields with a Green-Gauss projection over the median dual
// control volumes of a simplex mesh.
package recovery

import (
	"fmt"

	"github.com/notargets/anisocfd/utils"
)

// Layout describes the per vertex storage of a field. Each vertex holds one
// block of Block scalars per (variable, flux direction) pair, stored flux
// major: the block for (iVar, iFlux) starts at iFlux*NumVar*Block + iVar*Block.
type Layout struct {
	NumVar  int
	NumFlux int
	Block   int
}

// Stride is the number of scalars stored per vertex
func (l Layout) Stride() int { return l.NumVar * l.NumFlux * l.Block }

// NumBlocks is the number of (variable, flux) pairs per vertex
func (l Layout) NumBlocks() int { return l.NumVar * l.NumFlux }

// Offset returns the position of the (iVar, iFlux) block within a vertex
func (l Layout) Offset(iVar, iFlux int) int {
	return iFlux*l.NumVar*l.Block + iVar*l.Block
}

// WithBlock returns the layout with the same variable and flux counts and a
// different block size
func (l Layout) WithBlock(block int) Layout {
	l.Block = block
	return l
}

func (l Layout) String() string {
	return fmt.Sprintf("[%d vars x %d fluxes x %d]", l.NumVar, l.NumFlux, l.Block)
}

// Field is a vertex field stored contiguously, one stride per vertex
type Field struct {
	Name        string
	Layout      Layout
	NumVertices int
	Data        []float64
}

func NewField(name string, layout Layout, numVertices int) *Field {
	if layout.NumVar < 1 || layout.NumFlux < 1 || layout.Block < 1 {
		panic(fmt.Errorf("invalid layout %v for field %s", layout, name))
	}
	return &Field{
		Name:        name,
		Layout:      layout,
		NumVertices: numVertices,
		Data:        make([]float64, numVertices*layout.Stride()),
	}
}

// Zero resets every accumulated value
func (f *Field) Zero() {
	for i := range f.Data {
		f.Data[i] = 0
	}
}

// Vertex returns the storage of vertex v
func (f *Field) Vertex(v int) []float64 {
	stride := f.Layout.Stride()
	return f.Data[v*stride : (v+1)*stride]
}

// Block returns the storage of the (iVar, iFlux) block of vertex v
func (f *Field) Block(v, iVar, iFlux int) []float64 {
	off := v*f.Layout.Stride() + f.Layout.Offset(iVar, iFlux)
	return f.Data[off : off+f.Layout.Block]
}

func (f *Field) At(v, iVar, iFlux, c int) float64 {
	return f.Block(v, iVar, iFlux)[c]
}

func (f *Field) Set(v, iVar, iFlux, c int, val float64) {
	f.Block(v, iVar, iFlux)[c] = val
}

// NumBlocks and PackedBlock expose the field block by block in storage
// order, which is how the metric regularizer walks packed Hessians.
func (f *Field) NumBlocks() int { return f.Layout.NumBlocks() }

func (f *Field) PackedBlock(v, b int) []float64 {
	off := v*f.Layout.Stride() + b*f.Layout.Block
	return f.Data[off : off+f.Layout.Block]
}

// Copy returns a deep copy of the field
func (f *Field) Copy() *Field {
	cp := *f
	cp.Data = make([]float64, len(f.Data))
	copy(cp.Data, f.Data)
	return &cp
}

// CheckFinite fails with a *FieldCorruptionError on the first NaN or Inf
func (f *Field) CheckFinite() error {
	stride := f.Layout.Stride()
	for i, x := range f.Data {
		if !utils.IsFinite(x) {
			return &FieldCorruptionError{
				Field:   f.Name,
				Vertex:  i / stride,
				Element: -1,
				Index:   i % stride,
				Value:   x,
			}
		}
	}
	return nil
}

func (f *Field) checkShape(layout Layout, numVertices int) {
	if f.Layout != layout || f.NumVertices != numVertices || len(f.Data) != numVertices*layout.Stride() {
		panic(fmt.Errorf("field %s has layout %v over %d vertices, expected %v over %d",
			f.Name, f.Layout, f.NumVertices, layout, numVertices))
	}
}
