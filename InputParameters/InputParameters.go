package InputParameters

import (
	"fmt"

	"github.com/ghodss/yaml"

	"github.com/notargets/anisocfd/sensor"
)

// Parameters obtained from the YAML input file
type InputParametersMetric struct {
	Title               string         `json:"Title"`
	MeshFile            string         `json:"MeshFile"`   // SU2 mesh, a structured mesh is generated when empty
	Dimension           int            `json:"Dimension"`  // Structured mesh dimension
	Refinement          int            `json:"Refinement"` // Structured mesh cells per direction
	Flow                sensor.Profile `json:"Flow"`
	Partitions          int            `json:"Partitions"`
	ParallelDegree      int            `json:"ParallelDegree"`
	BoundaryCorrection  bool           `json:"BoundaryCorrection"`
	IsotropicFallback   bool           `json:"IsotropicFallback"`
	FallbackEigenvalue  float64        `json:"FallbackEigenvalue"`
	DegenerateTolerance float64        `json:"DegenerateTolerance"`
	Output              string         `json:"Output"` // Prefix of the metric CSV and summary YAML
}

// NewInputParametersMetric returns the defaults used for keys absent from
// the input file
func NewInputParametersMetric() *InputParametersMetric {
	return &InputParametersMetric{
		Title:               "metric",
		Dimension:           2,
		Refinement:          16,
		Flow:                sensor.DefaultProfile(),
		Partitions:          1,
		ParallelDegree:      1,
		FallbackEigenvalue:  1.e-12,
		DegenerateTolerance: 1.e-12,
		Output:              "metric",
	}
}

func (ip *InputParametersMetric) Parse(data []byte) error {
	if err := yaml.Unmarshal(data, ip); err != nil {
		return err
	}
	return ip.Validate()
}

func (ip *InputParametersMetric) Validate() error {
	switch {
	case ip.MeshFile == "" && ip.Dimension != 2 && ip.Dimension != 3:
		return fmt.Errorf("Dimension must be 2 or 3, got %d", ip.Dimension)
	case ip.MeshFile == "" && ip.Refinement < 1:
		return fmt.Errorf("Refinement must be positive, got %d", ip.Refinement)
	case ip.Partitions < 1:
		return fmt.Errorf("Partitions must be positive, got %d", ip.Partitions)
	case ip.IsotropicFallback && !(ip.FallbackEigenvalue >= 0):
		return fmt.Errorf("FallbackEigenvalue must be non negative, got %g", ip.FallbackEigenvalue)
	}
	return ip.Flow.Validate()
}

func (ip *InputParametersMetric) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", ip.Title)
	if ip.MeshFile != "" {
		fmt.Printf("[%s]\t\t= Mesh File\n", ip.MeshFile)
	} else {
		fmt.Printf("[%dD, %d]\t\t= Structured Mesh, Refinement\n", ip.Dimension, ip.Refinement)
	}
	fmt.Printf("[%s]\t\t= Flow Profile\n", ip.Flow.Kind)
	fmt.Printf("%8.5f\t\t= Density\n", ip.Flow.Density)
	fmt.Printf("%8.5f\t\t= Velocity\n", ip.Flow.Velocity)
	fmt.Printf("%8.5f\t\t= Viscosity\n", ip.Flow.Viscosity)
	fmt.Printf("%8.5f\t\t= Amplitude\n", ip.Flow.Amplitude)
	fmt.Printf("%8.5f\t\t= Width\n", ip.Flow.Width)
	fmt.Printf("[%d]\t\t\t= Partitions\n", ip.Partitions)
	fmt.Printf("[%d]\t\t\t= Parallel Degree\n", ip.ParallelDegree)
	fmt.Printf("[%v]\t\t\t= Boundary Correction\n", ip.BoundaryCorrection)
	if ip.IsotropicFallback {
		fmt.Printf("%8.2e\t\t= Isotropic Fallback Eigenvalue\n", ip.FallbackEigenvalue)
	}
	fmt.Printf("[%s]\t\t= Output\n", ip.Output)
}
