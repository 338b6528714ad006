// Package adapt runs one metric recovery cycle: sensors, gradients,
// Hessians, boundary correction and regularization, on a whole mesh or on
// its partitions in parallel.
package adapt

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/notargets/anisocfd/boundary"
	"github.com/notargets/anisocfd/halo"
	"github.com/notargets/anisocfd/mesh"
	"github.com/notargets/anisocfd/metric"
	"github.com/notargets/anisocfd/recovery"
	"github.com/notargets/anisocfd/sensor"
)

// Engine holds the collaborators of the recovery pipeline for one mesh or
// one partition of a mesh.
type Engine struct {
	Mesh        *mesh.Mesh
	Rank        int
	Sync        halo.Synchronizer
	Corrector   boundary.Corrector
	Regularizer *metric.Regularizer
	Options     recovery.Options
	// Synchronize the regularized metrics so halo copies also hold their
	// owner's final values
	SyncMetrics bool
	Logger      *zap.Logger
}

// NewEngine returns an engine for an unpartitioned mesh with no boundary
// correction and no isotropic fallback.
func NewEngine(m *mesh.Mesh, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		Mesh:        m,
		Sync:        halo.Local{},
		Corrector:   boundary.None{},
		Regularizer: &metric.Regularizer{ParallelDegree: 1, Logger: logger},
		Options:     recovery.DefaultOptions(),
		Logger:      logger,
	}
}

// Result holds the fields of one cycle. The metric fields are the recovered
// Hessians after boundary correction and regularization.
type Result struct {
	CycleID            string
	SensorConvective   *recovery.Field
	SensorViscous      *recovery.Field
	GradientConvective *recovery.Field
	GradientViscous    *recovery.Field
	MetricConvective   *recovery.Field
	MetricViscous      *recovery.Field
	Report             metric.Report
	Elapsed            time.Duration
}

type channel struct {
	name                        string
	sensor, grad, hess          *recovery.Field
	gradTag, hessTag, metricTag halo.FieldTag
}

// Run executes one adaptation cycle from the flow state supplied by ev.
// Every field is allocated for this cycle. On error nothing of the cycle is
// kept and the caller starts over from the sensor snapshot.
func (e *Engine) Run(ev sensor.Evaluator) (*Result, error) {
	return e.run(uuid.NewString(), ev)
}

func (e *Engine) run(cycleID string, ev sensor.Evaluator) (res *Result, err error) {
	var (
		m      = e.Mesh
		dim    = m.Dim
		start  = time.Now()
		logger = e.logger().With(zap.String("cycle", cycleID), zap.Int("rank", e.Rank))
		sync   = e.Sync
		corr   = e.Corrector
		reg    = e.Regularizer
	)
	if sync == nil {
		sync = halo.Local{}
	}
	if corr == nil {
		corr = boundary.None{}
	}
	if reg == nil {
		reg = &metric.Regularizer{ParallelDegree: e.Options.ParallelDegree, Logger: logger}
	}
	conv, visc := sensor.BuildSensors(m, ev)
	channels := []*channel{
		{name: "convective", sensor: conv,
			gradTag: halo.GradientConvective, hessTag: halo.HessianConvective, metricTag: halo.MetricConvective},
		{name: "viscous", sensor: visc,
			gradTag: halo.GradientViscous, hessTag: halo.HessianViscous, metricTag: halo.MetricViscous},
	}
	for _, c := range channels {
		c.grad = recovery.NewGradientField(c.gradTag.String(), c.sensor, dim)
		c.hess = recovery.NewHessianField(c.hessTag.String(), c.grad, dim)
	}
	res = &Result{
		CycleID:            cycleID,
		SensorConvective:   conv,
		SensorViscous:      visc,
		GradientConvective: channels[0].grad,
		GradientViscous:    channels[1].grad,
		MetricConvective:   channels[0].hess,
		MetricViscous:      channels[1].hess,
	}

	stage := func(name string, fn func(c *channel) error) error {
		t0 := time.Now()
		for _, c := range channels {
			if err := fn(c); err != nil {
				return fmt.Errorf("cycle %s rank %d: %s %s: %w", cycleID, e.Rank, c.name, name, err)
			}
		}
		logger.Debug(name, zap.Duration("elapsed", time.Since(t0)))
		return nil
	}

	if err = stage("gradient sweep", func(c *channel) error {
		return recovery.ProjectGradient(m, c.sensor, c.grad, e.Options)
	}); err != nil {
		return nil, err
	}
	if err = stage("gradient sync", func(c *channel) error {
		return sync.Synchronize(c.gradTag, c.grad)
	}); err != nil {
		return nil, err
	}
	if err = stage("hessian sweep", func(c *channel) error {
		return recovery.ProjectHessian(m, c.grad, c.hess, e.Options)
	}); err != nil {
		return nil, err
	}
	if err = stage("hessian sync", func(c *channel) error {
		return sync.Synchronize(c.hessTag, c.hess)
	}); err != nil {
		return nil, err
	}
	if err = stage("boundary correction", func(c *channel) error {
		return corr.CorrectBoundaryHessian(m, c.hessTag, c.hess)
	}); err != nil {
		return nil, err
	}
	if err = stage("regularization", func(c *channel) error {
		rep, err := reg.Regularize(dim, c.hess, m.Owned)
		res.Report.Add(rep)
		return err
	}); err != nil {
		return nil, err
	}
	if e.SyncMetrics {
		if err = stage("metric sync", func(c *channel) error {
			return sync.Synchronize(c.metricTag, c.hess)
		}); err != nil {
			return nil, err
		}
	}
	res.Elapsed = time.Since(start)
	logger.Info("metric recovery complete",
		zap.Int("vertices", m.NumVertices),
		zap.Int("elements", m.NumElements),
		zap.Int("blocks", res.Report.Blocks),
		zap.Int("indefinite", res.Report.Indefinite),
		zap.Int("fallbacks", len(res.Report.Fallbacks)),
		zap.Duration("elapsed", res.Elapsed))
	return
}

func (e *Engine) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}
