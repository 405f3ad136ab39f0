// Copyright 2021-2023
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"fmt"
	"strings"

	"github.com/penny-vault/twrr/checkpoint"
	"github.com/penny-vault/twrr/pipeline"
	"github.com/spf13/cobra"
)

var (
	exportFormat string
	exportOutput string
	exportLong   bool
)

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", string(checkpoint.FormatCSV), "Output format: csv or parquet")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", pipeline.Stdout, "Output file; - writes CSV to stdout")
	exportCmd.Flags().BoolVar(&exportLong, "long", false, "Write dataframes as date,series,value rows")

	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:       "export <artifact>",
	Short:     "Write a stored artifact as CSV or Parquet",
	Long:      fmt.Sprintf("Write a stored artifact as CSV or Parquet. Artifacts: %s", strings.Join(checkpoint.ArtifactNames(), ", ")),
	Args:      cobra.ExactArgs(1),
	ValidArgs: checkpoint.ArtifactNames(),
	RunE: func(cmd *cobra.Command, args []string) error {
		artifact, err := checkpoint.ParseArtifact(args[0])
		if err != nil {
			return err
		}

		format, err := checkpoint.ParseFormat(exportFormat)
		if err != nil {
			return err
		}

		pl, err := newPipeline()
		if err != nil {
			return err
		}

		return pl.Export(artifact, format, exportOutput, exportLong)
	},
}
