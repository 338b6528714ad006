/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/pkg/profile"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/notargets/anisocfd/InputParameters"
	"github.com/notargets/anisocfd/adapt"
	"github.com/notargets/anisocfd/boundary"
	"github.com/notargets/anisocfd/mesh"
	"github.com/notargets/anisocfd/metric"
	"github.com/notargets/anisocfd/recovery"
)

// MetricCmd represents the metric command
var MetricCmd = &cobra.Command{
	Use:   "metric",
	Short: "Recover regularized metric tensors of an analytic flow on a mesh",
	Long: `
Reads a SU2 mesh or generates a structured one, evaluates a flow profile at the
vertices and writes the convective and viscous metrics of every vertex,

anisocfd metric -I input.yaml -F mesh.su2 -p 4`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var (
			ip     = InputParameters.NewInputParametersMetric()
			logger *zap.Logger
			icFile string
		)
		if icFile, err = cmd.Flags().GetString("inputConditionsFile"); err != nil {
			return
		}
		if len(icFile) != 0 {
			var data []byte
			if data, err = os.ReadFile(icFile); err != nil {
				return
			}
			if err = ip.Parse(data); err != nil {
				return fmt.Errorf("%s: %w", icFile, err)
			}
		}
		if cmd.Flags().Changed("meshFile") {
			ip.MeshFile, _ = cmd.Flags().GetString("meshFile")
		}
		if cmd.Flags().Changed("partitions") {
			ip.Partitions, _ = cmd.Flags().GetInt("partitions")
		}
		if cmd.Flags().Changed("output") {
			ip.Output, _ = cmd.Flags().GetString("output")
		}
		if err = ip.Validate(); err != nil {
			return
		}
		ip.Print()
		if viper.GetBool("profile") {
			defer profile.Start(profile.CPUProfile, profile.ProfilePath(".")).Stop()
		}
		if logger, err = newLogger(); err != nil {
			return
		}
		defer func() { _ = logger.Sync() }()
		var (
			m   *mesh.Mesh
			res *adapt.Result
		)
		if m, res, err = RunMetric(ip, logger); err != nil {
			return
		}
		return WriteOutputs(ip, m, res)
	},
}

func init() {
	rootCmd.AddCommand(MetricCmd)
	MetricCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML file for input parameters like:\n\t- Flow profile\n\t- Partitions")
	MetricCmd.Flags().StringP("meshFile", "F", "", "Mesh file to read, SU2 (.su2) or Gmsh 2.2 ASCII (.msh) format")
	MetricCmd.Flags().IntP("partitions", "p", 1, "number of mesh partitions run in parallel")
	MetricCmd.Flags().StringP("output", "o", "metric", "prefix of the metric CSV and summary YAML files")
}

// LoadMesh reads the mesh file of ip or generates its structured mesh
func LoadMesh(ip *InputParameters.InputParametersMetric) (*mesh.Mesh, error) {
	if ip.MeshFile != "" {
		return mesh.ReadMeshFile(ip.MeshFile)
	}
	if ip.Dimension == 3 {
		return mesh.NewStructuredTetMesh(ip.Refinement, 1.)
	}
	return mesh.NewStructuredTriMesh(ip.Refinement, ip.Refinement, 1., 1.)
}

// RunMetric runs one recovery cycle as configured by ip
func RunMetric(ip *InputParameters.InputParametersMetric, logger *zap.Logger) (m *mesh.Mesh, res *adapt.Result, err error) {
	if m, err = LoadMesh(ip); err != nil {
		return
	}
	m.PrintStatistics()
	sol, err := ip.Flow.Evaluate(m)
	if err != nil {
		return
	}
	e := adapt.NewEngine(m, logger)
	e.Options = recovery.Options{
		ParallelDegree:      ip.ParallelDegree,
		DegenerateTolerance: ip.DegenerateTolerance,
	}
	e.Regularizer = &metric.Regularizer{
		Fallback:           ip.IsotropicFallback,
		FallbackEigenvalue: ip.FallbackEigenvalue,
		ParallelDegree:     ip.ParallelDegree,
		Logger:             logger,
	}
	if ip.BoundaryCorrection {
		e.Corrector = boundary.NeighborAverage{}
	}
	if ip.Partitions > 1 {
		e.SyncMetrics = true
		res, err = adapt.RunPartitioned(m, sol, mesh.DefaultPartitionConfig(int32(ip.Partitions)), *e)
	} else {
		res, err = e.Run(sol)
	}
	return
}

// WriteOutputs writes <Output>.csv with the per vertex metrics and
// <Output>.yaml with the cycle summary
func WriteOutputs(ip *InputParameters.InputParametersMetric, m *mesh.Mesh, res *adapt.Result) (err error) {
	var f *os.File
	if f, err = os.Create(ip.Output + ".csv"); err != nil {
		return
	}
	if err = adapt.WriteMetrics(f, m, res); err != nil {
		_ = f.Close()
		return
	}
	if err = f.Close(); err != nil {
		return
	}
	var (
		s    adapt.Summary
		data []byte
	)
	if s, err = adapt.Summarize(m, res, ip.Partitions); err != nil {
		return
	}
	if data, err = s.YAML(); err != nil {
		return
	}
	fmt.Printf("%s", data)
	return os.WriteFile(ip.Output+".yaml", data, 0644)
}
