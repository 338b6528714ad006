package halo

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/notargets/anisocfd/mesh"
	"github.com/notargets/anisocfd/recovery"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func splitMesh(t *testing.T, nparts int) (*mesh.Mesh, []*mesh.Partition) {
	t.Helper()
	m, err := mesh.NewStructuredTriMesh(12, 6, 1., 1.)
	require.NoError(t, err)
	EToP := make([]int, m.NumElements)
	for k := range EToP {
		EToP[k] = k * nparts / m.NumElements
	}
	parts, err := mesh.Split(m, EToP, nparts)
	require.NoError(t, err)
	return m, parts
}

func value(gv, i int) float64 { return float64(100*gv + i) }

// localField fills owned vertices with their global values and halo copies
// with NaN
func localField(p *mesh.Partition, layout recovery.Layout) *recovery.Field {
	f := recovery.NewField("hess", layout, p.Mesh.NumVertices)
	for lv, gv := range p.Mesh.GlobalID {
		for i, dst := 0, f.Vertex(lv); i < len(dst); i++ {
			if p.Mesh.Owned[lv] {
				dst[i] = value(gv, i)
			} else {
				dst[i] = math.NaN()
			}
		}
	}
	return f
}

func runAll(parts []*mesh.Partition, fn func(rank int) error) []error {
	var (
		wg   sync.WaitGroup
		errs = make([]error, len(parts))
	)
	for r := range parts {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[r] = fn(r)
		}()
	}
	wg.Wait()
	return errs
}

func TestFieldTag(t *testing.T) {
	assert.Equal(t, "GradientConvective", GradientConvective.String())
	assert.Equal(t, "HessianViscous", HessianViscous.String())
	assert.Equal(t, "MetricViscous", MetricViscous.String())
	assert.Equal(t, "FieldTag(42)", FieldTag(42).String())
	assert.NoError(t, Local{}.Synchronize(GradientViscous, nil))
}

func TestExchangerSynchronize(t *testing.T) {
	_, parts := splitMesh(t, 3)
	x := NewExchanger(parts)
	gradLayout := recovery.Layout{NumVar: 1, NumFlux: 2, Block: 2}
	hessLayout := recovery.Layout{NumVar: 1, NumFlux: 2, Block: 3}
	fields := make([][]*recovery.Field, len(parts))
	for r, p := range parts {
		fields[r] = []*recovery.Field{localField(p, gradLayout), localField(p, hessLayout)}
	}
	errs := runAll(parts, func(rank int) error {
		ep := x.Endpoint(rank)
		// Several rounds in the same order on every partition
		for round := 0; round < 3; round++ {
			if err := ep.Synchronize(GradientConvective, fields[rank][0]); err != nil {
				return err
			}
			if err := ep.Synchronize(HessianConvective, fields[rank][1]); err != nil {
				return err
			}
		}
		return nil
	})
	for r, err := range errs {
		require.NoError(t, err, "rank %d", r)
	}
	for r, p := range parts {
		for _, f := range fields[r] {
			for lv, gv := range p.Mesh.GlobalID {
				for i, val := range f.Vertex(lv) {
					assert.Equal(t, value(gv, i), val, "rank %d vertex %d", r, gv)
				}
			}
		}
	}
}

func TestExchangerTagMismatch(t *testing.T) {
	_, parts := splitMesh(t, 2)
	x := NewExchanger(parts)
	layout := recovery.Layout{NumVar: 1, NumFlux: 1, Block: 2}
	tags := []FieldTag{GradientConvective, GradientViscous}
	errs := runAll(parts, func(rank int) error {
		return x.Endpoint(rank).Synchronize(tags[rank], localField(parts[rank], layout))
	})
	for r, err := range errs {
		require.Error(t, err)
		assert.Contains(t, err.Error(), "expected "+tags[r].String())
	}
}

func TestExchangerAbort(t *testing.T) {
	_, parts := splitMesh(t, 3)
	x := NewExchanger(parts)
	layout := recovery.Layout{NumVar: 1, NumFlux: 1, Block: 1}
	boom := errors.New("boom")
	errs := runAll(parts, func(rank int) error {
		if rank == 0 {
			x.Abort(boom)
			return boom
		}
		return x.Endpoint(rank).Synchronize(GradientConvective, localField(parts[rank], layout))
	})
	// Rank 1 needs rank 0's values and can never complete
	require.Error(t, errs[1])
	assert.True(t, errors.Is(errs[1], boom))
	assert.Contains(t, errs[1].Error(), "halo exchange aborted")

	// Later synchronizations fail at once
	err := x.Endpoint(2).Synchronize(GradientViscous, localField(parts[2], layout))
	assert.ErrorIs(t, err, boom)
}

func TestExchangerWrongField(t *testing.T) {
	_, parts := splitMesh(t, 2)
	x := NewExchanger(parts)
	f := recovery.NewField("grad", recovery.Layout{NumVar: 1, NumFlux: 1, Block: 2}, 3)
	err := x.Endpoint(0).Synchronize(GradientConvective, f)
	assert.ErrorContains(t, err, "partition mesh has")
}
