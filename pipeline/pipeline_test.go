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
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/jackc/pgconn"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pashagolub/pgxmock"

	"github.com/penny-vault/twrr/checkpoint"
	"github.com/penny-vault/twrr/database"
	"github.com/penny-vault/twrr/pipeline"
	"github.com/penny-vault/twrr/prices"
	"github.com/penny-vault/twrr/twrr"
)

const ledgerCSV = `Trade Date,Order Type,Security,Quantity,Executed Price
01/03/2023,Buy,AAA,10,100
01/05/2023,Buy,AAA,2,105
`

type fakeProvider struct {
	quotes map[string][]prices.Quote
	calls  int
}

func (f *fakeProvider) Name() string {
	return "fake"
}

func (f *fakeProvider) Fetch(ctx context.Context, symbols []string, begin, end time.Time) (map[string][]prices.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.calls++
	res := make(map[string][]prices.Quote)
	for _, symbol := range symbols {
		if q, ok := f.quotes[symbol]; ok {
			res[symbol] = q
		}
	}
	return res, nil
}

func day(d int) time.Time {
	return time.Date(2023, time.January, d, 0, 0, 0, 0, time.UTC)
}

func quotes(closes ...float64) []prices.Quote {
	res := make([]prices.Quote, len(closes))
	for idx, val := range closes {
		res[idx] = prices.Quote{Date: day(3 + idx), Close: val + 1, AdjClose: val}
	}
	return res
}

var _ = Describe("Pipeline", func() {
	var (
		dir      string
		conf     *pipeline.Config
		provider *fakeProvider
		out      *bytes.Buffer
		pl       *pipeline.Pipeline
		ctx      context.Context
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		ctx = context.Background()

		ledgerFn := filepath.Join(dir, "transactions.csv")
		Expect(os.WriteFile(ledgerFn, []byte(ledgerCSV), 0600)).To(Succeed())

		conf = pipeline.DefaultConfig()
		conf.Transactions = ledgerFn
		conf.Splits = filepath.Join(dir, "no-splits.csv")
		conf.CheckpointDir = filepath.Join(dir, "checkpoints")
		conf.Benchmarks = []string{"^GSPC"}
		conf.Portfolio = "household"

		provider = &fakeProvider{
			quotes: map[string][]prices.Quote{
				"AAA": quotes(100, 110, 105, 110),
			},
		}
		out = &bytes.Buffer{}

		var err error
		pl, err = pipeline.New(conf,
			pipeline.WithProviders(provider),
			pipeline.WithClock(func() time.Time { return time.Date(2023, 1, 6, 21, 0, 0, 0, time.UTC) }),
			pipeline.WithOutput(out),
		)
		Expect(err).To(BeNil())
	})

	It("rejects an invalid configuration", func() {
		conf.Transactions = ""
		_, err := pipeline.New(conf)
		Expect(err).To(MatchError(pipeline.ErrInvalidConfig))
	})

	Context("when running every stage", func() {
		It("computes the time weighted return", func() {
			_, err := pl.Run(ctx)
			Expect(err).To(BeNil())

			index, err := pl.Store().LoadFrame(checkpoint.TWRR)
			Expect(err).To(BeNil())
			Expect(index.Dates).To(Equal([]time.Time{day(3), day(4), day(5), day(6)}))

			mv, err := index.Column(twrr.MarketValueCol)
			Expect(err).To(BeNil())
			Expect(mv).To(Equal([]float64{1000, 1100, 1260, 1320}))

			cf, err := index.Column(twrr.CashFlowCol)
			Expect(err).To(BeNil())
			Expect(cf).To(Equal([]float64{-1000, 0, -210, 0}))

			vals, err := index.Column(twrr.IndexCol)
			Expect(err).To(BeNil())
			Expect(vals[0]).To(Equal(1.0))
			Expect(vals[1]).To(BeNumerically("~", 1.1, 1e-12))
			Expect(vals[3]).To(BeNumerically("~", 1.1*1320.0/1310.0, 1e-12))
		})

		It("writes every artifact and records the run in the manifest", func() {
			runID, err := pl.Run(ctx)
			Expect(err).To(BeNil())

			for _, stage := range checkpoint.Stages {
				for _, artifact := range stage.Artifacts {
					Expect(pl.Store().Exists(artifact)).To(BeTrue(), string(artifact))
				}
			}

			manifest, err := pl.Store().Manifest()
			Expect(err).To(BeNil())
			Expect(manifest.Stages).To(HaveLen(6))
			for _, stage := range checkpoint.Stages {
				rec := manifest.Stages[stage.Name]
				Expect(rec).ToNot(BeNil())
				Expect(rec.RunID).To(Equal(runID.String()))
				Expect(rec.Status).To(Equal(checkpoint.StatusOK))
				Expect(rec.Step).To(Equal(stage.Step))
				Expect(rec.Artifacts).To(HaveLen(len(stage.Artifacts)))
			}
			Expect(manifest.Stages["prices"].Notes).To(ContainElement("unresolved: [^GSPC]"))
			Expect(manifest.Stages["twrr"].Notes).To(ContainElement("total period TWRR 10.84%"))
		})

		It("prints a summary of each stage", func() {
			_, err := pl.Run(ctx)
			Expect(err).To(BeNil())
			Expect(out.String()).To(ContainSubstring("== step-01 (load)"))
			Expect(out.String()).To(ContainSubstring("== step-06 (twrr)"))
			Expect(out.String()).To(ContainSubstring("Unresolved"))
		})

		It("produces byte identical artifacts on a second run", func() {
			_, err := pl.Run(ctx)
			Expect(err).To(BeNil())

			first := make(map[checkpoint.Artifact][]byte)
			for _, stage := range checkpoint.Stages {
				for _, artifact := range stage.Artifacts {
					data, err := os.ReadFile(pl.Store().Path(artifact))
					Expect(err).To(BeNil())
					first[artifact] = data
				}
			}

			_, err = pl.Run(ctx)
			Expect(err).To(BeNil())
			for artifact, data := range first {
				second, err := os.ReadFile(pl.Store().Path(artifact))
				Expect(err).To(BeNil())
				Expect(second).To(Equal(data), string(artifact))
			}
		})

		It("stops when the context is cancelled", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()

			_, err := pl.Run(cancelled)
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
			Expect(pl.Store().Exists(checkpoint.TransactionsSplitAdjusted)).To(BeTrue())
			Expect(pl.Store().Exists(checkpoint.PricesRaw)).To(BeFalse())

			manifest, err := pl.Store().Manifest()
			Expect(err).To(BeNil())
			Expect(manifest.Stages["prices"].Status).To(Equal(checkpoint.StatusFailed))
		})
	})

	Context("when running a single stage", func() {
		It("names the stage that produces a missing input", func() {
			err := pl.RunStage(ctx, "holdings")
			Expect(err).To(MatchError(checkpoint.ErrMissingArtifact))
			Expect(err.Error()).To(Equal("missing transactions_split_adjusted: run step-02 (splits) first"))

			manifest, err := pl.Store().Manifest()
			Expect(err).To(BeNil())
			Expect(manifest.Stages["holdings"].Status).To(Equal(checkpoint.StatusFailed))
			Expect(manifest.Stages["holdings"].Error).To(ContainSubstring("run step-02 (splits) first"))
		})

		It("rejects an unknown stage", func() {
			Expect(pl.RunStage(ctx, "rebalance")).To(MatchError(pipeline.ErrUnknownStage))
		})

		It("fails the load stage on an invalid ledger", func() {
			Expect(os.WriteFile(conf.Transactions, []byte("Trade Date,Order Type,Security,Quantity,Executed Price\n2023-13-45,Buy,AAA,1,1\n"), 0600)).To(Succeed())
			Expect(pl.RunStage(ctx, "load")).ToNot(Succeed())
			Expect(pl.Store().Exists(checkpoint.TransactionsClean)).To(BeFalse())
		})

		It("applies split adjustments from the split file", func() {
			Expect(os.WriteFile(conf.Splits, []byte("Symbol,Split Date,Split Ratio\nAAA,01/04/2023,2:1\n"), 0600)).To(Succeed())
			Expect(pl.RunStage(ctx, "load")).To(Succeed())
			Expect(pl.RunStage(ctx, "splits")).To(Succeed())

			manifest, err := pl.Store().Manifest()
			Expect(err).To(BeNil())
			Expect(manifest.Stages["splits"].Notes).To(ConsistOf("1 split events; 1 of 2 transactions adjusted"))
		})
	})

	Describe("exporting", func() {
		BeforeEach(func() {
			_, err := pl.Run(ctx)
			Expect(err).To(BeNil())
		})

		It("writes dataframes as wide csv", func() {
			fn := filepath.Join(dir, "twrr.csv")
			Expect(pl.Export(checkpoint.TWRR, checkpoint.FormatCSV, fn, false)).To(Succeed())
			data, err := os.ReadFile(fn)
			Expect(err).To(BeNil())
			Expect(string(data)).To(HavePrefix("date,market_value,cash_flow,net_flow,factor,twrr\n2023-01-03,1000,-1000,1000,1,1\n"))
		})

		It("writes transactions as csv", func() {
			fn := filepath.Join(dir, "transactions.csv")
			Expect(pl.Export(checkpoint.TransactionsSplitAdjusted, checkpoint.FormatCSV, fn, false)).To(Succeed())
			data, err := os.ReadFile(fn)
			Expect(err).To(BeNil())
			Expect(string(data)).To(Equal("trade_date,order_type,security,quantity,executed_price,trade_value,adjusted_quantity,split_adjustment_factor\n" +
				"2023-01-03,Buy,AAA,10,100,1000,10,1\n" +
				"2023-01-05,Buy,AAA,2,105,210,2,1\n"))
		})

		It("writes the source of every price cell", func() {
			fn := filepath.Join(dir, "provenance.csv")
			Expect(pl.Export(checkpoint.PriceProvenance, checkpoint.FormatCSV, fn, false)).To(Succeed())
			data, err := os.ReadFile(fn)
			Expect(err).To(BeNil())
			Expect(string(data)).To(ContainSubstring("date,ticker,source\n2023-01-03,AAA,primary\n"))
			Expect(string(data)).To(ContainSubstring("2023-01-06,^GSPC,\n"))
		})

		It("writes parquet files", func() {
			for _, artifact := range []checkpoint.Artifact{checkpoint.TransactionsClean, checkpoint.PriceProvenance, checkpoint.MarketValue} {
				fn := filepath.Join(dir, string(artifact)+".parquet")
				Expect(pl.Export(artifact, checkpoint.FormatParquet, fn, true)).To(Succeed())
				info, err := os.Stat(fn)
				Expect(err).To(BeNil())
				Expect(info.Size()).To(BeNumerically(">", 0))
			}
		})

		It("refuses to write parquet to stdout", func() {
			Expect(pl.Export(checkpoint.TWRR, checkpoint.FormatParquet, pipeline.Stdout, true)).To(MatchError(pipeline.ErrStdoutParquet))
		})
	})

	Describe("publishing", func() {
		var dbPool pgxmock.PgxConnIface

		BeforeEach(func() {
			var err error
			dbPool, err = pgxmock.NewConn()
			Expect(err).To(BeNil())
			database.SetPool(dbPool)
		})

		AfterEach(func() {
			Expect(dbPool.ExpectationsWereMet()).To(BeNil())
			database.SetPool(nil)
		})

		It("publishes the series under the run id of the twrr stage", func() {
			runID, err := pl.Run(ctx)
			Expect(err).To(BeNil())

			dbPool.ExpectBegin()
			dbPool.ExpectExec("CREATE TABLE IF NOT EXISTS twrr_runs").WillReturnResult(pgconn.CommandTag("CREATE TABLE"))
			dbPool.ExpectExec("CREATE TABLE IF NOT EXISTS twrr_series").WillReturnResult(pgconn.CommandTag("CREATE TABLE"))
			dbPool.ExpectCommit()
			dbPool.ExpectBegin()
			dbPool.ExpectExec("INSERT INTO twrr_runs").
				WithArgs(runID, "household", day(3), day(6), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
				WillReturnResult(pgconn.CommandTag("INSERT 0 1"))
			dbPool.ExpectExec("DELETE FROM twrr_series").WithArgs("household").WillReturnResult(pgconn.CommandTag("DELETE 4"))
			for ii := 0; ii < 4; ii++ {
				dbPool.ExpectExec("INSERT INTO twrr_series").WillReturnResult(pgconn.CommandTag("INSERT 0 1"))
			}
			dbPool.ExpectCommit()

			n, err := pl.Publish(ctx)
			Expect(err).To(BeNil())
			Expect(n).To(Equal(4))
		})

		It("requires the twrr artifact", func() {
			_, err := pl.Publish(ctx)
			Expect(err).To(MatchError(checkpoint.ErrMissingArtifact))
		})
	})
})
