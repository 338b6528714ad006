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

	"github.com/spf13/cobra"

	"github.com/notargets/anisocfd/adapt"
	"github.com/notargets/anisocfd/recovery"
)

// ConvergenceCmd represents the convergence command
var ConvergenceCmd = &cobra.Command{
	Use:   "convergence",
	Short: "Hessian recovery error on a sequence of refined structured meshes",
	Long: `
Recovers the Hessian of a smooth plane wave on structured meshes of increasing
refinement and reports the error away from the boundary,

anisocfd convergence --dim 3 --levels 6,12,24 --csvFile conv.csv`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		var (
			dim, _      = cmd.Flags().GetInt("dim")
			levels, _   = cmd.Flags().GetIntSlice("levels")
			margin, _   = cmd.Flags().GetFloat64("margin")
			csvFile, _  = cmd.Flags().GetString("csvFile")
			parallel, _ = cmd.Flags().GetInt("parallel")
			study       []adapt.ConvergenceLevel
		)
		opts := recovery.DefaultOptions()
		opts.ParallelDegree = parallel
		if study, err = adapt.ConvergenceStudy(dim, levels, margin, opts); err != nil {
			return
		}
		fmt.Printf("%6s %12s %10s %14s %14s\n", "N", "H", "Vertices", "RMS Error", "Max Error")
		for _, l := range study {
			fmt.Printf("%6d %12.6f %10d %14.6e %14.6e\n", l.N, l.H, l.Vertices, l.RMSError, l.MaxError)
		}
		for i, order := range adapt.ObservedOrders(study) {
			fmt.Printf("Order %d -> %d: %5.2f\n", study[i].N, study[i+1].N, order)
		}
		if len(csvFile) == 0 {
			return
		}
		var f *os.File
		if f, err = os.Create(csvFile); err != nil {
			return
		}
		if err = adapt.WriteConvergenceCSV(f, "wave", dim, study); err != nil {
			_ = f.Close()
			return
		}
		return f.Close()
	},
}

func init() {
	rootCmd.AddCommand(ConvergenceCmd)
	ConvergenceCmd.Flags().Int("dim", 2, "dimension of the structured meshes, 2 or 3")
	ConvergenceCmd.Flags().IntSlice("levels", []int{8, 16, 32}, "cells per direction of each mesh")
	ConvergenceCmd.Flags().Float64("margin", 0.25, "distance from the boundary below which vertices are not measured")
	ConvergenceCmd.Flags().String("csvFile", "", "CSV file to write the study to")
	ConvergenceCmd.Flags().Int("parallel", 1, "element shards swept concurrently, 0 uses every CPU")
}
