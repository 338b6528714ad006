// Package halo keeps the copies of vertices shared between mesh partitions
// consistent. After a synchronization every halo copy holds the bits of its
// owner's value.
package halo

import (
	"fmt"

	"github.com/notargets/anisocfd/recovery"
)

type FieldTag int

const (
	GradientConvective FieldTag = iota
	GradientViscous
	HessianConvective
	HessianViscous
	MetricConvective
	MetricViscous
)

func (t FieldTag) String() string {
	switch t {
	case GradientConvective:
		return "GradientConvective"
	case GradientViscous:
		return "GradientViscous"
	case HessianConvective:
		return "HessianConvective"
	case HessianViscous:
		return "HessianViscous"
	case MetricConvective:
		return "MetricConvective"
	case MetricViscous:
		return "MetricViscous"
	}
	return fmt.Sprintf("FieldTag(%d)", int(t))
}

// Synchronizer is a blocking collective: every partition calls Synchronize
// with the same tag sequence, and no call returns before the halo copies of
// the calling partition hold their owners' values.
type Synchronizer interface {
	Synchronize(tag FieldTag, f *recovery.Field) error
}

// Local is the synchronizer of an unpartitioned mesh, which has no halo
type Local struct{}

func (Local) Synchronize(FieldTag, *recovery.Field) error { return nil }
