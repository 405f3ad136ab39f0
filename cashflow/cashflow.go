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

package cashflow

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/penny-vault/twrr/common"
	"github.com/penny-vault/twrr/dataframe"
	"github.com/penny-vault/twrr/ledger"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const CashFlowCol = "cash_flow"

var (
	ErrNoTransactions = errors.New("no transactions to extract cash flows from")
)

// Amount returns the external cash flow of a single trade from the investor's point of
// view: buys are outflows, sells are inflows and zero priced entries move no cash
func Amount(txn *ledger.Transaction) decimal.Decimal {
	if txn.IsZeroPrice() {
		return decimal.Zero
	}
	if txn.OrderType == ledger.Sell {
		return txn.TradeValue
	}
	return txn.TradeValue.Neg()
}

// Extract sums the cash flow of every trade per calendar day over [first trade, last trade].
// Days without trades carry zero. The pre-split ledger is used since splits move no cash
func Extract(txns []*ledger.Transaction) (*dataframe.DataFrame, error) {
	if len(txns) == 0 {
		return nil, ErrNoTransactions
	}

	begin, end := ledger.Span(txns)
	dates := common.Days(begin, end)

	daily := make(map[time.Time]decimal.Decimal, len(dates))
	for _, txn := range txns {
		dt := common.Day(txn.TradeDate)
		daily[dt] = daily[dt].Add(Amount(txn))
	}

	df := dataframe.New(dates, CashFlowCol)
	for row, dt := range dates {
		df.Vals[0][row] = daily[dt].InexactFloat64()
	}

	summary := Summarize(df)
	log.Info().EmbedObject(summary).Msg("extracted cash flows")

	return df, nil
}

// Summary describes a cash flow series
type Summary struct {
	Begin      time.Time `json:"begin"`
	End        time.Time `json:"end"`
	Days       int       `json:"days"`
	ActiveDays int       `json:"active_days"`
	Net        float64   `json:"net"`
	Min        float64   `json:"min"`
	Max        float64   `json:"max"`
}

func Summarize(df *dataframe.DataFrame) *Summary {
	s := &Summary{
		Begin: df.Start(),
		End:   df.End(),
		Days:  df.Len(),
	}
	if df.Len() == 0 {
		return s
	}

	s.Net, s.Min, s.Max = df.Stats(CashFlowCol)
	active, _, _ := df.Count(func(x float64) bool { return x != 0 }).Stats("count")
	s.ActiveDays = int(active)
	return s
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler
func (s *Summary) MarshalZerologObject(e *zerolog.Event) {
	e.Str("Begin", s.Begin.Format(common.DateFormat))
	e.Str("End", s.End.Format(common.DateFormat))
	e.Int("Days", s.Days)
	e.Int("ActiveDays", s.ActiveDays)
	e.Float64("Net", s.Net)
	e.Float64("Min", s.Min)
	e.Float64("Max", s.Max)
}

func (s *Summary) Table() string {
	buf := &bytes.Buffer{}
	table := tablewriter.NewWriter(buf)
	table.SetHeader([]string{"Begin", "End", "Days", "Active Days", "Net", "Min", "Max"})
	table.SetBorder(false)
	table.Append([]string{
		s.Begin.Format(common.DateFormat),
		s.End.Format(common.DateFormat),
		fmt.Sprintf("%d", s.Days),
		fmt.Sprintf("%d", s.ActiveDays),
		fmt.Sprintf("%.2f", s.Net),
		fmt.Sprintf("%.2f", s.Min),
		fmt.Sprintf("%.2f", s.Max),
	})
	table.Render()
	return buf.String()
}
