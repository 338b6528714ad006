package adapt

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/notargets/anisocfd/halo"
	"github.com/notargets/anisocfd/mesh"
	"github.com/notargets/anisocfd/recovery"
	"github.com/notargets/anisocfd/sensor"
)

// RunPartitioned partitions global with METIS and runs one cycle with an
// engine per partition, each in its own goroutine, joined by an in process
// halo exchange. The owned values of every partition are gathered into a
// Result over the global mesh.
func RunPartitioned(global *mesh.Mesh, ev sensor.Evaluator, cfg *mesh.PartitionConfig, template Engine) (*Result, error) {
	parts, err := mesh.NewMeshPartitioner(global, cfg, template.logger()).Partition()
	if err != nil {
		return nil, err
	}
	return RunPartitions(global, parts, ev, template)
}

// RunPartitions runs one cycle over an existing split of global. The
// template supplies everything but the mesh, the rank and the synchronizer.
func RunPartitions(global *mesh.Mesh, parts []*mesh.Partition, ev sensor.Evaluator, template Engine) (*Result, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("no partitions to run")
	}
	var (
		cycleID = uuid.NewString()
		start   = time.Now()
		x       = halo.NewExchanger(parts)
		results = make([]*Result, len(parts))
		g       errgroup.Group
	)
	for r, p := range parts {
		e := template
		e.Mesh = p.Mesh
		e.Rank = r
		e.Sync = x.Endpoint(r)
		g.Go(func() error {
			res, err := e.run(cycleID, ev)
			if err != nil {
				// Release neighbors waiting on this partition
				x.Abort(err)
				return fmt.Errorf("partition %d: %w", r, err)
			}
			results[r] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var (
		r0       = results[0]
		globalOf = func(f *recovery.Field) *recovery.Field {
			return recovery.NewField(f.Name, f.Layout, global.NumVertices)
		}
		res = &Result{
			CycleID:            cycleID,
			SensorConvective:   globalOf(r0.SensorConvective),
			SensorViscous:      globalOf(r0.SensorViscous),
			GradientConvective: globalOf(r0.GradientConvective),
			GradientViscous:    globalOf(r0.GradientViscous),
			MetricConvective:   globalOf(r0.MetricConvective),
			MetricViscous:      globalOf(r0.MetricViscous),
		}
	)
	for r, p := range parts {
		pr := results[r]
		gather(res.SensorConvective, pr.SensorConvective, p)
		gather(res.SensorViscous, pr.SensorViscous, p)
		gather(res.GradientConvective, pr.GradientConvective, p)
		gather(res.GradientViscous, pr.GradientViscous, p)
		gather(res.MetricConvective, pr.MetricConvective, p)
		gather(res.MetricViscous, pr.MetricViscous, p)
		res.Report.Add(pr.Report)
	}
	res.Elapsed = time.Since(start)
	template.logger().Info("partitioned metric recovery complete",
		zap.String("cycle", cycleID),
		zap.Int("partitions", len(parts)),
		zap.Int("vertices", global.NumVertices),
		zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

// gather copies the owned vertices of one partition into the global field
func gather(dst, src *recovery.Field, p *mesh.Partition) {
	for lv, owned := range p.Mesh.Owned {
		if owned {
			copy(dst.Vertex(p.Vertices[lv]), src.Vertex(lv))
		}
	}
}
