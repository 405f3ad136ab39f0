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
	"context"
	"fmt"
	"os"

	"github.com/penny-vault/twrr/common"
	"github.com/penny-vault/twrr/observability/opentelemetry"
	"github.com/penny-vault/twrr/pipeline"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string
var shutdownTracing func(context.Context) error

func init() {
	cobra.OnInitialize(initConfig)
	pipeline.SetDefaults()

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is twrr.toml in /etc/twrr, $HOME/.config/twrr or .)")

	// Inputs
	bindString("data.transactions", "TWRR_TRANSACTIONS", "transactions", "", "Brokerage transaction ledger CSV")
	bindString("data.splits", "TWRR_SPLITS", "splits", "", "Split history CSV")
	bindString("data.overrides", "TWRR_OVERRIDES", "overrides", "", "Manual price overrides CSV (date,ticker,adj_close)")
	bindString("data.delisted", "TWRR_DELISTED", "delisted", "", "Delisted tickers CSV (ticker)")

	// Checkpoints
	bindString("checkpoint.dir", "TWRR_CHECKPOINT_DIR", "checkpoint-dir", pipeline.DefaultCheckpointDir, "Directory holding stage artifacts")

	// Prices
	viper.BindEnv("prices.batch_size", "TWRR_PRICES_BATCH_SIZE")
	rootCmd.PersistentFlags().Int("batch-size", pipeline.DefaultConfig().BatchSize, "Number of tickers per primary provider request")
	viper.BindPFlag("prices.batch_size", rootCmd.PersistentFlags().Lookup("batch-size"))

	viper.BindEnv("prices.timeout", "TWRR_PRICES_TIMEOUT")
	rootCmd.PersistentFlags().Duration("timeout", pipeline.DefaultConfig().Timeout, "Timeout of a single provider request")
	viper.BindPFlag("prices.timeout", rootCmd.PersistentFlags().Lookup("timeout"))

	viper.BindEnv("prices.max_retries", "TWRR_PRICES_MAX_RETRIES")
	rootCmd.PersistentFlags().Int("max-retries", pipeline.DefaultConfig().MaxRetries, "Retries of a failed provider request")
	viper.BindPFlag("prices.max_retries", rootCmd.PersistentFlags().Lookup("max-retries"))

	viper.BindEnv("prices.benchmarks", "TWRR_PRICES_BENCHMARKS")
	rootCmd.PersistentFlags().StringSlice("benchmarks", pipeline.DefaultConfig().Benchmarks, "Benchmark symbols priced alongside the portfolio")
	viper.BindPFlag("prices.benchmarks", rootCmd.PersistentFlags().Lookup("benchmarks"))

	viper.BindEnv("prices.secondary", "TWRR_PRICES_SECONDARY")
	rootCmd.PersistentFlags().StringSlice("secondary", pipeline.DefaultConfig().Secondary, "Fallback price providers in order (stooq, tiingo)")
	viper.BindPFlag("prices.secondary", rootCmd.PersistentFlags().Lookup("secondary"))

	viper.BindEnv("prices.aliases", "TWRR_PRICES_ALIASES")
	rootCmd.PersistentFlags().StringSlice("alias", []string{}, "Additional TICKER=SYMBOL provider aliases")
	viper.BindPFlag("prices.aliases", rootCmd.PersistentFlags().Lookup("alias"))

	bindString("tiingo.token", "TIINGO_TOKEN", "tiingo-token", "", "Tiingo API token")

	// Database
	bindString("database.url", "DATABASE_URL", "database-url", "", "PostgreSQL connection string")
	bindString("database.portfolio", "TWRR_PORTFOLIO", "portfolio", pipeline.DefaultPortfolio, "Portfolio name results are published under")

	// Tracing
	bindString("otlp.endpoint", "OTLP_ENDPOINT", "otlp-endpoint", "", "OpenTelemetry collector endpoint; tracing is disabled when blank")
	viper.BindEnv("otlp.http", "OTLP_HTTP")
	rootCmd.PersistentFlags().Bool("otlp-http", false, "Use HTTP instead of gRPC for OTLP")
	viper.BindPFlag("otlp.http", rootCmd.PersistentFlags().Lookup("otlp-http"))

	// Logging configuration
	bindString("log.level", "TWRR_LOG_LEVEL", "log-level", "warning", "Logging level")
	bindString("log.output", "TWRR_LOG_OUTPUT", "log-output", "stderr", "Write logs to specified output one of: file path, `stdout`, or `stderr`")

	viper.BindEnv("log.report_caller", "TWRR_LOG_REPORT_CALLER")
	rootCmd.PersistentFlags().Bool("log-report-caller", false, "Log function name that called log statement")
	viper.BindPFlag("log.report_caller", rootCmd.PersistentFlags().Lookup("log-report-caller"))

	viper.BindEnv("log.pretty", "TWRR_LOG_PRETTY")
	rootCmd.PersistentFlags().Bool("log-pretty", true, "Write human readable log lines")
	viper.BindPFlag("log.pretty", rootCmd.PersistentFlags().Lookup("log-pretty"))
}

func bindString(key, env, flag, value, usage string) {
	viper.BindEnv(key, env)
	rootCmd.PersistentFlags().String(flag, value, usage)
	viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag))
}

// initConfig reads in config file and ENV variables if set. A missing config file is
// not an error
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("twrr")
		viper.SetConfigType("toml")
		viper.AddConfigPath("/etc/twrr/")
		viper.AddConfigPath("$HOME/.config/twrr")
		viper.AddConfigPath(".")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			fmt.Fprintf(os.Stderr, "could not read config file: %s\n", err)
			os.Exit(1)
		}
	}
}

var rootCmd = &cobra.Command{
	Use:           "twrr",
	Version:       common.CurrentVersion.String(),
	Short:         "Time-weighted rate of return for a brokerage ledger",
	Long:          `twrr prices a brokerage transaction ledger, tracks daily holdings and market value, and computes the portfolio's time-weighted rate of return in restartable stages.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		common.SetupLogging()
		if viper.ConfigFileUsed() != "" {
			log.Debug().Str("ConfigFile", viper.ConfigFileUsed()).Msg("loaded config file")
		}

		var err error
		shutdownTracing, err = opentelemetry.Setup()
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if shutdownTracing != nil {
			return shutdownTracing(context.Background())
		}
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
