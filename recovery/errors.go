package recovery

import "fmt"

// FieldCorruptionError reports a NaN or Inf found in an input value, a dual
// volume or an accumulated contribution. Accumulation of the field stops at
// the first one found.
type FieldCorruptionError struct {
	Field   string
	Vertex  int // -1 when the fault is located on an element
	Element int // -1 when the fault is located on a vertex
	Index   int // Position within the vertex stride
	Value   float64
}

func (e *FieldCorruptionError) Error() string {
	if e.Vertex < 0 {
		return fmt.Sprintf("field %s corrupted by element %d at index %d: %g",
			e.Field, e.Element, e.Index, e.Value)
	}
	return fmt.Sprintf("field %s corrupted at vertex %d index %d: %g",
		e.Field, e.Vertex, e.Index, e.Value)
}
