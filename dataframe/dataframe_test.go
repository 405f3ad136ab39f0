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

package dataframe_test

import (
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/twrr/common"
	"github.com/penny-vault/twrr/dataframe"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

var _ = Describe("DataFrame", func() {
	Context("with no values", func() {
		var (
			df *dataframe.DataFrame
		)

		BeforeEach(func() {
			df = &dataframe.DataFrame{}
		})

		It("has zero length", func() {
			Expect(df.Len()).To(Equal(0))
		})

		It("has zero columns", func() {
			Expect(df.ColCount()).To(Equal(0))
		})

		It("does not error on trim", func() {
			df = df.Trim(day(2021, 1, 1), day(2022, 1, 1))
			Expect(df.Len()).To(Equal(0))
		})

		It("renders a placeholder table", func() {
			Expect(df.Table()).To(Equal("<NO DATA>"))
		})

		It("returns zero start and end dates", func() {
			Expect(df.Start().IsZero()).To(BeTrue())
			Expect(df.End().IsZero()).To(BeTrue())
		})
	})

	Context("with 2 years of values and a single column", func() {
		var (
			df *dataframe.DataFrame
		)

		BeforeEach(func() {
			dates := common.Days(day(2020, 1, 1), day(2021, 12, 30))
			vals := make([]float64, len(dates))
			for idx := range vals {
				vals[idx] = float64(idx)
			}
			df = &dataframe.DataFrame{
				ColNames: []string{"Col1"},
				Dates:    dates,
				Vals:     [][]float64{vals},
			}
		})

		It("has length", func() {
			Expect(df.Len()).To(Equal(730))
		})

		It("has 1 column", func() {
			Expect(df.ColCount()).To(Equal(1))
		})

		DescribeTable("trims values by date range", func(a, b time.Time, expectedLen int, expectedA, expectedB time.Time) {
			df = df.Trim(a, b)
			Expect(df.Len()).To(Equal(expectedLen))
			if expectedLen > 0 {
				Expect(df.Dates[0]).To(Equal(expectedA), "expected begin date")
				Expect(df.Dates[len(df.Dates)-1]).To(Equal(expectedB), "expected end date")
			}
		},
			Entry("whole range", day(2020, 1, 1), day(2021, 12, 30), 730, day(2020, 1, 1), day(2021, 12, 30)),
			Entry("range that does not exist in dataframe (left)", day(2018, 1, 1), day(2019, 12, 30), 0, day(2018, 1, 1), day(2019, 12, 30)),
			Entry("range that does not exist in dataframe (right)", day(2022, 1, 1), day(2023, 12, 30), 0, day(2022, 1, 1), day(2023, 12, 30)),
			Entry("range that touches start but not end", day(2020, 1, 1), day(2020, 1, 5), 5, day(2020, 1, 1), day(2020, 1, 5)),
			Entry("range that extends beyond the end", day(2021, 12, 27), day(2021, 12, 31), 4, day(2021, 12, 27), day(2021, 12, 30)),
			Entry("single date", day(2020, 1, 1), day(2020, 1, 1), 1, day(2020, 1, 1), day(2020, 1, 1)),
			Entry("inverted range", day(2021, 1, 1), day(2020, 1, 1), 0, day(2020, 1, 1), day(2020, 1, 1)),
			Entry("end on start", day(2019, 1, 1), day(2020, 1, 1), 1, day(2020, 1, 1), day(2020, 1, 1)),
		)

		It("returns the head and tail", func() {
			Expect(df.Head(3).Vals[0]).To(Equal([]float64{0, 1, 2}))
			Expect(df.Tail(2).Vals[0]).To(Equal([]float64{728, 729}))
			Expect(df.Head(1000).Len()).To(Equal(730))
		})

		It("looks up a single value", func() {
			Expect(df.Value(day(2020, 1, 3), "Col1")).To(Equal(2.0))
			Expect(math.IsNaN(df.Value(day(2024, 1, 3), "Col1"))).To(BeTrue())
			Expect(math.IsNaN(df.Value(day(2020, 1, 3), "missing"))).To(BeTrue())
		})

		It("refuses to insert a row that is out of order", func() {
			err := df.InsertMap(day(2020, 6, 1), map[string]float64{"Col1": 1})
			Expect(err).To(MatchError(dataframe.ErrDateIndexNotAligned))
		})
	})

	Describe("filling gaps", func() {
		var (
			df *dataframe.DataFrame
		)

		BeforeEach(func() {
			df = &dataframe.DataFrame{
				Dates:    common.Days(day(2021, 3, 1), day(2021, 3, 5)),
				ColNames: []string{"A", "B"},
				Vals: [][]float64{
					{math.NaN(), 2, math.NaN(), 4, math.NaN()},
					{math.NaN(), math.NaN(), math.NaN(), math.NaN(), math.NaN()},
				},
			}
		})

		It("forward fills then back fills", func() {
			df.FFill().BFill()
			Expect(df.Vals[0]).To(Equal([]float64{2, 2, 2, 4, 4}))
		})

		It("leaves an all NaN column untouched", func() {
			df.FFill().BFill()
			for _, val := range df.Vals[1] {
				Expect(math.IsNaN(val)).To(BeTrue())
			}
		})

		It("replaces remaining NaN values", func() {
			df.FillNaN(0)
			Expect(df.Vals[0]).To(Equal([]float64{0, 2, 0, 4, 0}))
			Expect(df.Vals[1]).To(Equal([]float64{0, 0, 0, 0, 0}))
		})
	})

	Describe("reindexing", func() {
		var (
			df *dataframe.DataFrame
		)

		BeforeEach(func() {
			df = &dataframe.DataFrame{
				Dates:    []time.Time{day(2021, 3, 1), day(2021, 3, 3)},
				ColNames: []string{"A"},
				Vals:     [][]float64{{1, 3}},
			}
		})

		It("fills missing dates", func() {
			res := df.Reindex(common.Days(day(2021, 2, 28), day(2021, 3, 4)), 0)
			Expect(res.Dates).To(HaveLen(5))
			Expect(res.Vals[0]).To(Equal([]float64{0, 1, 0, 3, 0}))
		})

		It("does not modify the source dataframe", func() {
			res := df.Reindex(common.Days(day(2021, 3, 1), day(2021, 3, 3)), 0)
			res.Vals[0][0] = 100
			Expect(df.Vals[0][0]).To(Equal(1.0))
		})

		It("adds missing columns", func() {
			res := df.ReindexColumns([]string{"B", "A"}, 0)
			Expect(res.ColNames).To(Equal([]string{"B", "A"}))
			Expect(res.Vals[0]).To(Equal([]float64{0, 0}))
			Expect(res.Vals[1]).To(Equal([]float64{1, 3}))
		})
	})

	Describe("math", func() {
		var (
			df *dataframe.DataFrame
		)

		BeforeEach(func() {
			df = &dataframe.DataFrame{
				Dates:    common.Days(day(2021, 3, 1), day(2021, 3, 3)),
				ColNames: []string{"A", "B"},
				Vals:     [][]float64{{1, 2, 3}, {10, math.NaN(), 30}},
			}
		})

		It("computes a running sum", func() {
			res := df.CumSum()
			Expect(res.Vals[0]).To(Equal([]float64{1, 3, 6}))
			Expect(res.Vals[1]).To(Equal([]float64{10, 10, 40}))
		})

		It("computes a running product", func() {
			res := df.CumProd()
			Expect(res.Vals[0]).To(Equal([]float64{1, 2, 6}))
		})

		It("sums each row skipping NaN", func() {
			res := df.RowSum("total")
			Expect(res.ColNames).To(Equal([]string{"total"}))
			Expect(res.Vals[0]).To(Equal([]float64{11, 2, 33}))
		})

		It("multiplies aligned columns", func() {
			other := &dataframe.DataFrame{
				Dates:    df.Dates,
				ColNames: []string{"A"},
				Vals:     [][]float64{{2, 2, 2}},
			}
			res, err := df.Mul(other)
			Expect(err).To(BeNil())
			Expect(res.Vals[0]).To(Equal([]float64{2, 4, 6}))
			Expect(res.Vals[1]).To(Equal([]float64{0, 0, 0}))
		})

		It("refuses to multiply misaligned dataframes", func() {
			_, err := df.Mul(df.Head(1))
			Expect(err).To(MatchError(dataframe.ErrDateIndexNotAligned))
		})

		It("summarizes a column", func() {
			sum, min, max := df.Stats("B")
			Expect(sum).To(Equal(40.0))
			Expect(min).To(Equal(10.0))
			Expect(max).To(Equal(30.0))
		})
	})
})
