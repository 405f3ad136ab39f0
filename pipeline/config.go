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

package pipeline

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/penny-vault/twrr/common"
	"github.com/penny-vault/twrr/prices"
	"github.com/penny-vault/twrr/tradecron"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

const (
	ProviderStooq  = "stooq"
	ProviderTiingo = "tiingo"

	DefaultCheckpointDir = "checkpoints"
	DefaultCacheSize     = 1024
	DefaultPortfolio     = "default"
)

// Config holds every setting a pipeline run reads
type Config struct {
	Transactions string
	Splits       string
	Overrides    string
	Delisted     string

	CheckpointDir string

	BatchSize   int
	CacheSize   int
	Timeout     time.Duration
	MaxRetries  int
	Benchmarks  []string
	Aliases     map[string]string
	Secondary   []string
	TiingoToken string

	DatabaseURL string
	Portfolio   string
	Schedule    string
}

// DefaultConfig returns a configuration with every optional setting at its default
func DefaultConfig() *Config {
	aliases := make(map[string]string, len(prices.DefaultAliases))
	for k, v := range prices.DefaultAliases {
		aliases[k] = v
	}

	return &Config{
		CheckpointDir: DefaultCheckpointDir,
		BatchSize:     prices.DefaultBatchSize,
		CacheSize:     DefaultCacheSize,
		Timeout:       prices.DefaultTimeout,
		MaxRetries:    prices.DefaultMaxRetries,
		Benchmarks:    append([]string{}, prices.DefaultBenchmarks...),
		Aliases:       aliases,
		Secondary:     []string{ProviderStooq},
		Portfolio:     DefaultPortfolio,
	}
}

// SetDefaults registers the defaults of DefaultConfig with viper
func SetDefaults() {
	def := DefaultConfig()
	viper.SetDefault("checkpoint.dir", def.CheckpointDir)
	viper.SetDefault("prices.batch_size", def.BatchSize)
	viper.SetDefault("prices.cache_size", def.CacheSize)
	viper.SetDefault("prices.timeout", def.Timeout)
	viper.SetDefault("prices.max_retries", def.MaxRetries)
	viper.SetDefault("prices.benchmarks", def.Benchmarks)
	viper.SetDefault("prices.secondary", def.Secondary)
	viper.SetDefault("database.portfolio", def.Portfolio)
}

// ConfigFromViper reads the configuration from the global viper instance. Aliases are
// configured as a list of TICKER=SYMBOL pairs layered over the built in alias table
func ConfigFromViper() (*Config, error) {
	conf := DefaultConfig()

	conf.Transactions = viper.GetString("data.transactions")
	conf.Splits = viper.GetString("data.splits")
	conf.Overrides = viper.GetString("data.overrides")
	conf.Delisted = viper.GetString("data.delisted")

	if dir := viper.GetString("checkpoint.dir"); dir != "" {
		conf.CheckpointDir = dir
	}

	if viper.IsSet("prices.batch_size") {
		conf.BatchSize = viper.GetInt("prices.batch_size")
	}
	if viper.IsSet("prices.cache_size") {
		conf.CacheSize = viper.GetInt("prices.cache_size")
	}
	if viper.IsSet("prices.timeout") {
		conf.Timeout = viper.GetDuration("prices.timeout")
	}
	if viper.IsSet("prices.max_retries") {
		conf.MaxRetries = viper.GetInt("prices.max_retries")
	}
	if viper.IsSet("prices.benchmarks") {
		conf.Benchmarks = viper.GetStringSlice("prices.benchmarks")
	}
	if viper.IsSet("prices.secondary") {
		conf.Secondary = viper.GetStringSlice("prices.secondary")
	}

	for _, pair := range viper.GetStringSlice("prices.aliases") {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" || strings.TrimSpace(parts[1]) == "" {
			return nil, fmt.Errorf("%w: prices.aliases entry %q is not TICKER=SYMBOL", ErrInvalidConfig, pair)
		}
		conf.Aliases[common.NormalizeTicker(parts[0])] = strings.TrimSpace(parts[1])
	}

	conf.TiingoToken = viper.GetString("tiingo.token")
	conf.DatabaseURL = viper.GetString("database.url")
	if portfolio := viper.GetString("database.portfolio"); portfolio != "" {
		conf.Portfolio = portfolio
	}
	conf.Schedule = viper.GetString("schedule")

	return conf, nil
}

// Validate checks the settings every stage depends on
func (conf *Config) Validate() error {
	if conf.Transactions == "" {
		return fmt.Errorf("%w: data.transactions is required", ErrInvalidConfig)
	}
	if conf.CheckpointDir == "" {
		return fmt.Errorf("%w: checkpoint.dir is required", ErrInvalidConfig)
	}
	if conf.BatchSize <= 0 {
		return fmt.Errorf("%w: prices.batch_size must be positive, got %d", ErrInvalidConfig, conf.BatchSize)
	}
	if conf.CacheSize <= 0 {
		return fmt.Errorf("%w: prices.cache_size must be positive, got %d", ErrInvalidConfig, conf.CacheSize)
	}
	if conf.Timeout <= 0 {
		return fmt.Errorf("%w: prices.timeout must be positive, got %s", ErrInvalidConfig, conf.Timeout)
	}
	if conf.MaxRetries < 0 {
		return fmt.Errorf("%w: prices.max_retries must not be negative, got %d", ErrInvalidConfig, conf.MaxRetries)
	}

	for _, name := range conf.Secondary {
		switch strings.ToLower(name) {
		case ProviderStooq:
		case ProviderTiingo:
			if conf.TiingoToken == "" {
				return fmt.Errorf("%w: tiingo.token is required to use the tiingo provider", ErrInvalidConfig)
			}
		default:
			return fmt.Errorf("%w: %s", ErrUnknownProvider, name)
		}
	}

	if conf.Schedule != "" {
		if _, err := tradecron.New(conf.Schedule, tradecron.RegularHours); err != nil {
			return fmt.Errorf("%w: schedule %q: %s", ErrInvalidConfig, conf.Schedule, err)
		}
	}

	return nil
}

func (conf *Config) httpConfig() prices.HTTPConfig {
	httpConf := prices.DefaultHTTPConfig()
	httpConf.Timeout = conf.Timeout
	httpConf.MaxRetries = uint64(conf.MaxRetries)
	return httpConf
}

func (conf *Config) secondaryProviders() []prices.Provider {
	providers := make([]prices.Provider, 0, len(conf.Secondary))
	for _, name := range conf.Secondary {
		switch strings.ToLower(name) {
		case ProviderStooq:
			providers = append(providers, prices.NewStooqProvider(conf.httpConfig()))
		case ProviderTiingo:
			providers = append(providers, prices.NewTiingoProvider(conf.TiingoToken, conf.httpConfig()))
		}
	}
	return providers
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler
func (conf *Config) MarshalZerologObject(e *zerolog.Event) {
	e.Str("Transactions", conf.Transactions)
	e.Str("Splits", conf.Splits)
	e.Str("Overrides", conf.Overrides)
	e.Str("Delisted", conf.Delisted)
	e.Str("CheckpointDir", conf.CheckpointDir)
	e.Int("BatchSize", conf.BatchSize)
	e.Dur("Timeout", conf.Timeout)
	e.Int("MaxRetries", conf.MaxRetries)
	e.Strs("Benchmarks", conf.Benchmarks)
	e.Strs("Secondary", conf.Secondary)

	aliases := make([]string, 0, len(conf.Aliases))
	for k, v := range conf.Aliases {
		aliases = append(aliases, k+"="+v)
	}
	sort.Strings(aliases)
	e.Strs("Aliases", aliases)
}
