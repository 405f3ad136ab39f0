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

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	viper.BindEnv("schedule", "TWRR_SCHEDULE")
	runCmd.Flags().String("schedule", "", "Recompute on a trading day schedule, e.g. \"@close 30\", until interrupted")
	viper.BindPFlag("schedule", runCmd.Flags().Lookup("schedule"))

	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every stage in order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pl, err := newPipeline()
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		if spec := pl.Config().Schedule; spec != "" {
			return pl.Schedule(ctx, spec)
		}

		runID, err := pl.Run(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("run %s complete; artifacts in %s\n", runID, pl.Store().Dir())
		return nil
	},
}
