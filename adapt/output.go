package adapt

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/ghodss/yaml"

	"github.com/notargets/anisocfd/mesh"
	"github.com/notargets/anisocfd/metric"
	"github.com/notargets/anisocfd/recovery"
)

// WriteMetrics writes one CSV row per vertex: coordinates, dual volume,
// boundary flag, then the packed metric entries of every (variable, flux)
// block of the convective and the viscous metric.
func WriteMetrics(w io.Writer, m *mesh.Mesh, res *Result) error {
	var (
		cw     = csv.NewWriter(w)
		axes   = []string{"x", "y", "z"}[:m.Dim]
		header = append([]string{}, axes...)
		fields = []*recovery.Field{res.MetricConvective, res.MetricViscous}
	)
	header = append(header, "dual_volume", "boundary")
	for _, f := range fields {
		for b := 0; b < f.NumBlocks(); b++ {
			for p := 0; p < m.Dim; p++ {
				for q := p; q < m.Dim; q++ {
					header = append(header, fmt.Sprintf("%s_%d_%s%s", f.Name, b, axes[p], axes[q]))
				}
			}
		}
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	row := make([]string, 0, len(header))
	for v := 0; v < m.NumVertices; v++ {
		row = row[:0]
		for d := 0; d < m.Dim; d++ {
			row = append(row, strconv.FormatFloat(m.Vertices[v][d], 'g', -1, 64))
		}
		row = append(row,
			strconv.FormatFloat(m.DualVolume[v], 'g', -1, 64),
			strconv.FormatBool(m.BoundaryVertex[v]))
		for _, f := range fields {
			for _, x := range f.Vertex(v) {
				row = append(row, strconv.FormatFloat(x, 'g', -1, 64))
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Summary describes a cycle for the YAML report written next to the metrics
type Summary struct {
	CycleID    string     `json:"CycleID"`
	Dimension  int        `json:"Dimension"`
	Vertices   int        `json:"Vertices"`
	Elements   int        `json:"Elements"`
	Partitions int        `json:"Partitions"`
	Blocks     int        `json:"Blocks"`
	Indefinite int        `json:"Indefinite"`
	Fallbacks  int        `json:"Fallbacks"`
	Elapsed    string     `json:"Elapsed"`
	MaxEigen   [2]float64 `json:"MaxEigenvalue"` // Convective, viscous
	MinEigen   [2]float64 `json:"MinEigenvalue"`
}

// Summarize collects the counts of res and the eigenvalue range of its
// owned metrics
func Summarize(m *mesh.Mesh, res *Result, partitions int) (s Summary, err error) {
	s = Summary{
		CycleID:    res.CycleID,
		Dimension:  m.Dim,
		Vertices:   m.NumVertices,
		Elements:   m.NumElements,
		Partitions: partitions,
		Blocks:     res.Report.Blocks,
		Indefinite: res.Report.Indefinite,
		Fallbacks:  len(res.Report.Fallbacks),
		Elapsed:    res.Elapsed.String(),
	}
	for i, f := range []*recovery.Field{res.MetricConvective, res.MetricViscous} {
		if s.MinEigen[i], s.MaxEigen[i], err = eigenRange(m.Dim, f); err != nil {
			return
		}
	}
	return
}

func eigenRange(dim int, f *recovery.Field) (lmin, lmax float64, err error) {
	first := true
	for v := 0; v < f.NumVertices; v++ {
		for b := 0; b < f.NumBlocks(); b++ {
			var vals []float64
			if _, vals, err = metric.Decompose(metric.Unpack(dim, f.PackedBlock(v, b))); err != nil {
				return 0, 0, &metric.MetricRegularizationError{Vertex: v, Block: b, Err: err}
			}
			if first || vals[0] < lmin {
				lmin = vals[0]
			}
			if first || vals[dim-1] > lmax {
				lmax = vals[dim-1]
			}
			first = false
		}
	}
	return
}

func (s Summary) YAML() ([]byte, error) {
	return yaml.Marshal(s)
}
