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

	"github.com/penny-vault/twrr/database"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(publishCmd)
}

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish the computed TWRR series to PostgreSQL",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pl, err := newPipeline()
		if err != nil {
			return err
		}

		ctx, cancel := signalContext()
		defer cancel()

		if err := database.Connect(ctx, pl.Config().DatabaseURL); err != nil {
			return err
		}

		n, err := pl.Publish(ctx)
		if err != nil {
			return err
		}

		fmt.Printf("published %d rows for portfolio %s\n", n, pl.Config().Portfolio)
		return nil
	},
}
