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
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(stageCmd("load", "load", "Read and clean the transaction ledger"))
	rootCmd.AddCommand(stageCmd("splits", "splits", "Apply split adjustments to the cleaned ledger"))
	rootCmd.AddCommand(stageCmd("prices", "prices", "Resolve daily prices for every ticker and benchmark"))
	rootCmd.AddCommand(stageCmd("holdings", "holdings", "Build daily holdings and market value"))
	rootCmd.AddCommand(stageCmd("cashflow", "cashflow", "Extract daily external cash flows"))
	rootCmd.AddCommand(stageCmd("compute", "twrr", "Compute the time-weighted return index"))
}

func stageCmd(use, stage, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pl, err := newPipeline()
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			return pl.RunStage(ctx, stage)
		},
	}
}
