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

package ledger_test

import (
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/twrr/ledger"
	"github.com/shopspring/decimal"
)

const sampleLedger = `Trade Date,Order Type,Security,Quantity,Executed Price,Account
03/15/2021,buy,aapl ,10,120.50,IRA
01/04/2021,Buy,BRK-B,2.5,"1,234.00",IRA

01/04/2021,SELL,msft,1,$210,IRA
03/15/2021,Buy,AAPL,10,120.5,TAXABLE
06/01/2021,Buy,XYZ,7,0,IRA
`

var _ = Describe("Ledger", func() {
	Describe("reading a csv export", func() {
		It("locates columns by header name", func() {
			rows, err := ledger.ReadCSV(strings.NewReader(sampleLedger))
			Expect(err).To(BeNil())
			Expect(rows).To(HaveLen(5))
			Expect(rows[0].Security).To(Equal("aapl"))
			Expect(rows[1].ExecutedPrice).To(Equal("1,234.00"))
		})

		It("records source line numbers", func() {
			rows, err := ledger.ReadCSV(strings.NewReader(sampleLedger))
			Expect(err).To(BeNil())
			Expect(rows[2].Line).To(Equal(5))
		})

		It("fails when a required column is missing", func() {
			_, err := ledger.ReadCSV(strings.NewReader("Trade Date,Security,Quantity,Executed Price\n01/04/2021,AAPL,1,1\n"))
			Expect(err).To(MatchError(ledger.ErrMissingColumn))
		})

		It("fails on an empty file", func() {
			_, err := ledger.ReadCSV(strings.NewReader(""))
			Expect(err).To(MatchError(ledger.ErrEmptyLedger))
		})
	})

	Describe("cleaning", func() {
		var (
			txns   []*ledger.Transaction
			report *ledger.Report
			err    error
		)

		BeforeEach(func() {
			rows, readErr := ledger.ReadCSV(strings.NewReader(sampleLedger))
			Expect(readErr).To(BeNil())
			txns, report, err = ledger.Clean(rows)
		})

		It("does not error", func() {
			Expect(err).To(BeNil())
		})

		It("sorts by trade date", func() {
			Expect(txns[0].TradeDate).To(Equal(time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)))
			Expect(txns[len(txns)-1].TradeDate).To(Equal(time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)))
		})

		It("canonicalizes tickers", func() {
			Expect(txns[0].Security).To(Equal("BRKB"))
			Expect(report.Tickers).To(Equal([]string{"AAPL", "BRKB", "MSFT", "XYZ"}))
		})

		It("title cases order types", func() {
			Expect(txns[1].OrderType).To(Equal(ledger.Sell))
			Expect(txns[2].OrderType).To(Equal(ledger.Buy))
		})

		It("computes the trade value", func() {
			Expect(txns[0].TradeValue.Equal(decimal.RequireFromString("3085"))).To(BeTrue())
			Expect(txns[1].TradeValue.Equal(decimal.RequireFromString("210"))).To(BeTrue())
		})

		It("drops exact duplicates and counts them", func() {
			Expect(report.Duplicates).To(Equal(1))
			Expect(txns).To(HaveLen(4))
			Expect(report.Rows).To(Equal(4))
			Expect(report.Input).To(Equal(5))
		})

		It("retains zero price rows", func() {
			Expect(report.ZeroPrice).To(Equal(1))
			Expect(txns[3].Security).To(Equal("XYZ"))
			Expect(txns[3].IsZeroPrice()).To(BeTrue())
			Expect(txns[3].TradeValue.IsZero()).To(BeTrue())
		})

		It("reports the span", func() {
			Expect(report.First).To(Equal(time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)))
			Expect(report.Last).To(Equal(time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)))
			Expect(report.Table()).To(ContainSubstring("Duplicates dropped"))
		})
	})

	DescribeTable("fatal validation errors",
		func(row *ledger.RawRow, expected error) {
			_, _, err := ledger.Clean([]*ledger.RawRow{row})
			Expect(err).To(MatchError(expected))
			Expect(err.Error()).To(ContainSubstring("line 7"))
		},
		Entry("unparseable date", &ledger.RawRow{Line: 7, TradeDate: "2021-01-04", OrderType: "Buy", Security: "AAPL", Quantity: "1", ExecutedPrice: "1"}, ledger.ErrInvalidDate),
		Entry("impossible date", &ledger.RawRow{Line: 7, TradeDate: "13/45/2021", OrderType: "Buy", Security: "AAPL", Quantity: "1", ExecutedPrice: "1"}, ledger.ErrInvalidDate),
		Entry("unknown order type", &ledger.RawRow{Line: 7, TradeDate: "01/04/2021", OrderType: "Dividend", Security: "AAPL", Quantity: "1", ExecutedPrice: "1"}, ledger.ErrInvalidOrderType),
		Entry("non numeric quantity", &ledger.RawRow{Line: 7, TradeDate: "01/04/2021", OrderType: "Buy", Security: "AAPL", Quantity: "ten", ExecutedPrice: "1"}, ledger.ErrInvalidNumber),
		Entry("negative price", &ledger.RawRow{Line: 7, TradeDate: "01/04/2021", OrderType: "Buy", Security: "AAPL", Quantity: "1", ExecutedPrice: "-1"}, ledger.ErrInvalidNumber),
		Entry("blank security", &ledger.RawRow{Line: 7, TradeDate: "01/04/2021", OrderType: "Buy", Security: " - ", Quantity: "1", ExecutedPrice: "1"}, ledger.ErrMissingSecurity),
	)

	It("accepts single digit months and days", func() {
		txns, _, err := ledger.Clean([]*ledger.RawRow{{Line: 2, TradeDate: "1/4/2021", OrderType: "buy", Security: "AAPL", Quantity: "0.5", ExecutedPrice: "100"}})
		Expect(err).To(BeNil())
		Expect(txns[0].TradeDate).To(Equal(time.Date(2021, 1, 4, 0, 0, 0, 0, time.UTC)))
	})
})
