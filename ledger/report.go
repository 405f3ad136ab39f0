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

package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/penny-vault/twrr/common"
	"github.com/rs/zerolog"
)

// Report summarizes a cleaning run
type Report struct {
	Input        int
	Rows         int
	Duplicates   int
	ZeroPrice    int
	ZeroQuantity int
	Tickers      []string
	First        time.Time
	Last         time.Time
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler
func (r *Report) MarshalZerologObject(e *zerolog.Event) {
	e.Int("Input", r.Input)
	e.Int("Rows", r.Rows)
	e.Int("Duplicates", r.Duplicates)
	e.Int("ZeroPrice", r.ZeroPrice)
	e.Int("NumTickers", len(r.Tickers))
	if r.Rows > 0 {
		e.Str("First", r.First.Format(common.DateFormat))
		e.Str("Last", r.Last.Format(common.DateFormat))
	}
}

// Table renders the report as an ASCII table
func (r *Report) Table() string {
	s := &strings.Builder{}
	table := tablewriter.NewWriter(s)
	table.SetHeader([]string{"Metric", "Value"})
	table.SetBorder(false)

	table.Append([]string{"Rows read", fmt.Sprintf("%d", r.Input)})
	table.Append([]string{"Transactions", fmt.Sprintf("%d", r.Rows)})
	table.Append([]string{"Duplicates dropped", fmt.Sprintf("%d", r.Duplicates)})
	table.Append([]string{"Zero price rows", fmt.Sprintf("%d", r.ZeroPrice)})
	table.Append([]string{"Zero quantity rows", fmt.Sprintf("%d", r.ZeroQuantity)})
	table.Append([]string{"Tickers", fmt.Sprintf("%d", len(r.Tickers))})
	if r.Rows > 0 {
		table.Append([]string{"First trade", r.First.Format(common.DateFormat)})
		table.Append([]string{"Last trade", r.Last.Format(common.DateFormat)})
	}

	table.Render()
	return s.String()
}

// Sample renders the first n transactions as an ASCII table
func Sample(txns []*Transaction, n int) string {
	if n > len(txns) {
		n = len(txns)
	}

	s := &strings.Builder{}
	table := tablewriter.NewWriter(s)
	table.SetHeader([]string{"Trade Date", "Order Type", "Security", "Quantity", "Executed Price", "Trade Value"})
	table.SetBorder(false)
	for _, t := range txns[:n] {
		table.Append([]string{
			t.TradeDate.Format(common.DateFormat),
			string(t.OrderType),
			t.Security,
			t.Quantity.String(),
			t.ExecutedPrice.StringFixed(2),
			t.TradeValue.StringFixed(2),
		})
	}
	table.Render()
	return s.String()
}
