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

package pipeline_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/viper"

	"github.com/penny-vault/twrr/pipeline"
	"github.com/penny-vault/twrr/prices"
)

var _ = Describe("Config", func() {
	valid := func() *pipeline.Config {
		conf := pipeline.DefaultConfig()
		conf.Transactions = "transactions.csv"
		return conf
	}

	It("defaults to the built in benchmarks and aliases", func() {
		conf := pipeline.DefaultConfig()
		Expect(conf.BatchSize).To(Equal(25))
		Expect(conf.Timeout).To(Equal(30 * time.Second))
		Expect(conf.MaxRetries).To(Equal(3))
		Expect(conf.Benchmarks).To(Equal(prices.DefaultBenchmarks))
		Expect(conf.Aliases).To(HaveKeyWithValue("BRKB", "BRK-B"))
		Expect(conf.Secondary).To(Equal([]string{pipeline.ProviderStooq}))
	})

	It("does not share the default alias table", func() {
		conf := pipeline.DefaultConfig()
		conf.Aliases["ZZZ"] = "ZZZ-A"
		Expect(prices.DefaultAliases).ToNot(HaveKey("ZZZ"))
	})

	DescribeTable("validation",
		func(modify func(*pipeline.Config), expected error) {
			conf := valid()
			modify(conf)
			err := conf.Validate()
			if expected == nil {
				Expect(err).To(BeNil())
			} else {
				Expect(err).To(MatchError(expected))
			}
		},
		Entry("valid", func(c *pipeline.Config) {}, nil),
		Entry("missing transactions", func(c *pipeline.Config) { c.Transactions = "" }, pipeline.ErrInvalidConfig),
		Entry("missing checkpoint dir", func(c *pipeline.Config) { c.CheckpointDir = "" }, pipeline.ErrInvalidConfig),
		Entry("zero batch size", func(c *pipeline.Config) { c.BatchSize = 0 }, pipeline.ErrInvalidConfig),
		Entry("zero cache size", func(c *pipeline.Config) { c.CacheSize = 0 }, pipeline.ErrInvalidConfig),
		Entry("negative timeout", func(c *pipeline.Config) { c.Timeout = -time.Second }, pipeline.ErrInvalidConfig),
		Entry("negative max retries", func(c *pipeline.Config) { c.MaxRetries = -1 }, pipeline.ErrInvalidConfig),
		Entry("zero max retries", func(c *pipeline.Config) { c.MaxRetries = 0 }, nil),
		Entry("unknown provider", func(c *pipeline.Config) { c.Secondary = []string{"bloomberg"} }, pipeline.ErrUnknownProvider),
		Entry("tiingo without token", func(c *pipeline.Config) { c.Secondary = []string{"tiingo"} }, pipeline.ErrInvalidConfig),
		Entry("tiingo with token", func(c *pipeline.Config) {
			c.Secondary = []string{"stooq", "Tiingo"}
			c.TiingoToken = "secret"
		}, nil),
		Entry("valid schedule", func(c *pipeline.Config) { c.Schedule = "@close 30" }, nil),
		Entry("invalid schedule", func(c *pipeline.Config) { c.Schedule = "@sometimes" }, pipeline.ErrInvalidConfig),
	)

	Describe("reading from viper", func() {
		AfterEach(func() {
			viper.Reset()
		})

		It("reads every key", func() {
			pipeline.SetDefaults()
			viper.Set("data.transactions", "ledger.csv")
			viper.Set("data.splits", "splits.csv")
			viper.Set("checkpoint.dir", "/tmp/twrr")
			viper.Set("prices.batch_size", 10)
			viper.Set("prices.timeout", "5s")
			viper.Set("prices.benchmarks", []string{"^GSPC"})
			viper.Set("prices.aliases", []string{"brk-a=BRK-A", "VTI=VTI.US"})
			viper.Set("database.portfolio", "household")
			viper.Set("schedule", "@close 30")

			conf, err := pipeline.ConfigFromViper()
			Expect(err).To(BeNil())
			Expect(conf.Transactions).To(Equal("ledger.csv"))
			Expect(conf.Splits).To(Equal("splits.csv"))
			Expect(conf.CheckpointDir).To(Equal("/tmp/twrr"))
			Expect(conf.BatchSize).To(Equal(10))
			Expect(conf.Timeout).To(Equal(5 * time.Second))
			Expect(conf.MaxRetries).To(Equal(3))
			Expect(conf.Benchmarks).To(Equal([]string{"^GSPC"}))
			Expect(conf.Aliases).To(HaveKeyWithValue("BRKA", "BRK-A"))
			Expect(conf.Aliases).To(HaveKeyWithValue("VTI", "VTI.US"))
			Expect(conf.Aliases).To(HaveKeyWithValue("BRKB", "BRK-B"))
			Expect(conf.Portfolio).To(Equal("household"))
			Expect(conf.Schedule).To(Equal("@close 30"))
			Expect(conf.Validate()).To(Succeed())
		})

		It("rejects a negative retry count", func() {
			pipeline.SetDefaults()
			viper.Set("data.transactions", "ledger.csv")
			viper.Set("prices.max_retries", -1)

			conf, err := pipeline.ConfigFromViper()
			Expect(err).To(BeNil())
			Expect(conf.MaxRetries).To(Equal(-1))
			Expect(conf.Validate()).To(MatchError(pipeline.ErrInvalidConfig))
		})

		It("rejects malformed aliases", func() {
			viper.Set("prices.aliases", []string{"BRKB"})
			_, err := pipeline.ConfigFromViper()
			Expect(err).To(MatchError(pipeline.ErrInvalidConfig))
		})
	})
})
