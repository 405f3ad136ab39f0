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
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/penny-vault/twrr/common"
	"github.com/penny-vault/twrr/prices"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	overrideDate   string
	overrideTicker string
	overridePrice  float64
)

func init() {
	overridesAppendCmd.Flags().StringVar(&overrideDate, "date", "", "Date of a single override, YYYY-MM-DD")
	overridesAppendCmd.Flags().StringVar(&overrideTicker, "ticker", "", "Ticker of a single override")
	overridesAppendCmd.Flags().Float64Var(&overridePrice, "price", 0, "Adjusted close of a single override")

	overridesCmd.AddCommand(overridesAppendCmd)
	rootCmd.AddCommand(overridesCmd)
}

var overridesCmd = &cobra.Command{
	Use:   "overrides",
	Short: "Manage manual price overrides",
}

var overridesAppendCmd = &cobra.Command{
	Use:   "append [file.csv ...]",
	Short: "Merge override rows into the configured overrides file",
	Long: `Merge override rows into the file named by data.overrides. Rows come from the given
CSV files (date,ticker,adj_close) and/or a single row given with --date, --ticker and --price.
Rows with the same date and ticker replace existing ones.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dest := viper.GetString("data.overrides")
		if dest == "" {
			return errors.New("data.overrides is not set")
		}

		rows := make([]*prices.Override, 0)
		for _, fn := range args {
			if _, err := os.Stat(fn); err != nil {
				return err
			}
			more, err := prices.ReadOverridesFile(fn)
			if err != nil {
				return err
			}
			rows = append(rows, more...)
		}

		if overrideTicker != "" || overrideDate != "" {
			dt, err := time.Parse(common.DateFormat, overrideDate)
			if err != nil {
				return fmt.Errorf("%w: date %q", prices.ErrInvalidOverride, overrideDate)
			}
			rows = append(rows, &prices.Override{
				Date:     dt,
				Ticker:   common.NormalizeTicker(overrideTicker),
				AdjClose: overridePrice,
			})
		}

		if len(rows) == 0 {
			return errors.New("no override rows given")
		}

		n, err := prices.AppendOverrides(dest, rows)
		if err != nil {
			return err
		}

		log.Info().Str("FileName", dest).Int("Added", len(rows)).Int("Total", n).Msg("overrides updated")
		fmt.Printf("%s now holds %d overrides\n", dest, n)
		return nil
	},
}
