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

package twrr_test

import (
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/twrr/common"
	"github.com/penny-vault/twrr/dataframe"
	"github.com/penny-vault/twrr/twrr"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func series(begin time.Time, name string, vals ...float64) *dataframe.DataFrame {
	df := dataframe.New(common.Days(begin, begin.AddDate(0, 0, len(vals)-1)), name)
	copy(df.Vals[0], vals)
	return df
}

func column(df *dataframe.DataFrame, name string) []float64 {
	col, err := df.Column(name)
	Expect(err).To(BeNil())
	return col
}

var _ = Describe("TWRR", func() {
	var begin time.Time

	BeforeEach(func() {
		begin = day(2023, time.January, 2)
	})

	DescribeTable("daily factor",
		func(prevMV, mv, netFlow, expected float64) {
			Expect(twrr.Factor(prevMV, mv, netFlow)).To(BeNumerically("~", expected, 1e-12))
		},
		Entry("plain growth", 100.0, 110.0, 0.0, 1.1),
		Entry("contribution is removed from growth", 1000.0, 1260.0, 200.0, 1.05),
		Entry("withdrawal", 1000.0, 540.0, -500.0, 1.08),
		Entry("zero denominator", 0.0, 50.0, 0.0, 1.0),
		Entry("denominator within epsilon", 100.0, 0.0, -100.0+1e-12, 1.0),
		Entry("non-finite market value", 100.0, math.NaN(), 0.0, 1.0),
		Entry("infinite market value", 100.0, math.Inf(1), 0.0, 1.0),
	)

	It("removes the effect of a contribution", func() {
		mv := series(begin, twrr.MarketValueCol, 1000, 1260)
		cf := series(begin, twrr.CashFlowCol, 0, -200)

		res, err := twrr.Compute(mv, cf)
		Expect(err).To(BeNil())
		Expect(column(res, twrr.NetFlowCol)).To(Equal([]float64{0, 200}))
		index := column(res, twrr.IndexCol)
		Expect(index[0]).To(Equal(1.0))
		Expect(index[1]).To(BeNumerically("~", 1.05, 1e-12))
	})

	It("forces the first factor to one", func() {
		mv := series(begin, twrr.MarketValueCol, 0, 0, 100)
		cf := series(begin, twrr.CashFlowCol, -500, 0, 0)

		res, err := twrr.Compute(mv, cf)
		Expect(err).To(BeNil())
		Expect(column(res, twrr.FactorCol)[0]).To(Equal(1.0))
		Expect(column(res, twrr.IndexCol)[0]).To(Equal(1.0))
	})

	It("does not depend on when money was added", func() {
		// both portfolios hold an asset that gains 10% per day
		mvA := series(begin, twrr.MarketValueCol, 1000, 1100, 1210)
		cfA := series(begin, twrr.CashFlowCol, -1000, 0, 0)
		mvB := series(begin, twrr.MarketValueCol, 1000, 1100, 2310)
		cfB := series(begin, twrr.CashFlowCol, -1000, 0, -1000)

		resA, err := twrr.Compute(mvA, cfA)
		Expect(err).To(BeNil())
		resB, err := twrr.Compute(mvB, cfB)
		Expect(err).To(BeNil())

		indexA := column(resA, twrr.IndexCol)
		indexB := column(resB, twrr.IndexCol)
		Expect(indexA[2]).To(BeNumerically("~", 1.21, 1e-12))
		Expect(indexB[2]).To(BeNumerically("~", indexA[2], 1e-12))

		// the dollar weighted measures see the second deposit
		mvColA := column(resA, twrr.MarketValueCol)
		mvColB := column(resB, twrr.MarketValueCol)
		ratioA := mvColA[2] / mvColA[0]
		ratioB := mvColB[2] / mvColB[0]
		Expect(ratioA).To(BeNumerically("~", 1.21, 1e-12))
		Expect(ratioB).To(BeNumerically("~", 2.31, 1e-12))
		Expect(ratioA).NotTo(BeNumerically("~", ratioB, 1e-3))
		Expect(ratioB).NotTo(BeNumerically("~", indexB[2], 1e-3))

		invested := func(res *dataframe.DataFrame) float64 {
			total := 0.0
			for _, flow := range column(res, twrr.CashFlowCol) {
				total -= flow
			}
			return total
		}
		Expect(mvColA[2] / invested(resA)).To(BeNumerically("~", 1.21, 1e-12))
		Expect(mvColB[2] / invested(resB)).To(BeNumerically("~", 1.155, 1e-12))
	})

	It("aligns both series to the union of their dates", func() {
		mv := series(day(2023, time.January, 3), twrr.MarketValueCol, 100, math.NaN(), 110)
		cf := series(day(2023, time.January, 2), twrr.CashFlowCol, -100, 0)

		res, err := twrr.Compute(mv, cf)
		Expect(err).To(BeNil())
		Expect(res.Dates).To(Equal(common.Days(day(2023, time.January, 2), day(2023, time.January, 5))))
		Expect(column(res, twrr.MarketValueCol)).To(Equal([]float64{100, 100, 100, 110}))
		Expect(column(res, twrr.CashFlowCol)).To(Equal([]float64{-100, 0, 0, 0}))
		Expect(column(res, twrr.IndexCol)[3]).To(BeNumerically("~", 1.1, 1e-12))
	})

	It("treats a full withdrawal as a day without activity", func() {
		mv := series(begin, twrr.MarketValueCol, 100, 0, 0)
		cf := series(begin, twrr.CashFlowCol, -100, 100, 0)

		res, err := twrr.Compute(mv, cf)
		Expect(err).To(BeNil())
		Expect(column(res, twrr.FactorCol)).To(Equal([]float64{1, 1, 1}))
	})

	It("accepts a missing cash flow series", func() {
		res, err := twrr.Compute(series(begin, twrr.MarketValueCol, 100, 105), nil)
		Expect(err).To(BeNil())
		Expect(column(res, twrr.IndexCol)[1]).To(BeNumerically("~", 1.05, 1e-12))
	})

	It("fails without a market value", func() {
		_, err := twrr.Compute(dataframe.New(nil, twrr.MarketValueCol), nil)
		Expect(err).To(MatchError(twrr.ErrNoMarketValue))

		_, err = twrr.Compute(series(begin, twrr.MarketValueCol, math.NaN(), math.NaN()), nil)
		Expect(err).To(MatchError(twrr.ErrNoMarketValue))
	})

	Describe("summary statistics", func() {
		It("reports returns, extremes and drawdown", func() {
			res, err := twrr.Compute(series(begin, twrr.MarketValueCol, 100, 120, 90, 130), nil)
			Expect(err).To(BeNil())

			stats, err := twrr.Summarize(res)
			Expect(err).To(BeNil())
			Expect(stats.Days).To(Equal(4))
			Expect(stats.TotalReturn).To(BeNumerically("~", 0.3, 1e-12))
			Expect(stats.Annualized).To(Equal(stats.TotalReturn))
			Expect(stats.BestDay).To(BeNumerically("~", 130.0/90.0-1, 1e-12))
			Expect(stats.BestDate).To(Equal(day(2023, time.January, 5)))
			Expect(stats.WorstDay).To(BeNumerically("~", -0.25, 1e-12))
			Expect(stats.MaxDrawDown).To(BeNumerically("~", -0.25, 1e-12))
			Expect(stats.FinalValue).To(Equal(130.0))
			Expect(stats.Table()).To(ContainSubstring("30.00%"))
		})

		It("annualizes returns over more than a year", func() {
			mv := dataframe.New([]time.Time{day(2020, time.January, 1), day(2022, time.January, 1)}, twrr.MarketValueCol)
			copy(mv.Vals[0], []float64{100, 121})

			res, err := twrr.Compute(mv, nil)
			Expect(err).To(BeNil())
			stats, err := twrr.Summarize(res)
			Expect(err).To(BeNil())
			Expect(stats.Years).To(BeNumerically(">", 1))
			Expect(stats.TotalReturn).To(BeNumerically("~", 0.21, 1e-12))
			Expect(stats.Annualized).To(BeNumerically("~", 0.1, 1e-3))
		})
	})
})
