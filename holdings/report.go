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

package holdings

import (
	"bytes"
	"fmt"
	"math"

	"github.com/olekukonko/tablewriter"
	"github.com/penny-vault/twrr/common"
	"github.com/penny-vault/twrr/dataframe"
)

// Table renders the positions held on the last day of holdings along with their value
func Table(holdings, values *dataframe.DataFrame, negatives []*Negative) string {
	buf := &bytes.Buffer{}
	if holdings.Len() == 0 {
		return "<NO DATA>"
	}

	last := holdings.Len() - 1
	fmt.Fprintf(buf, "Positions on %s\n", holdings.End().Format(common.DateFormat))

	table := tablewriter.NewWriter(buf)
	table.SetHeader([]string{"Ticker", "Shares", "Value"})
	table.SetBorder(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	total := 0.0
	for colIdx, ticker := range holdings.ColNames {
		shares := holdings.Vals[colIdx][last]
		if shares == 0 {
			continue
		}
		value := math.NaN()
		if values != nil {
			if col, err := values.Column(ticker); err == nil {
				value = col[last]
			}
		}
		if !math.IsNaN(value) {
			total += value
		}
		table.Append([]string{ticker, fmt.Sprintf("%.4f", shares), fmt.Sprintf("%.2f", value)})
	}
	table.SetFooter([]string{"", "Total", fmt.Sprintf("%.2f", total)})
	table.Render()

	if len(negatives) > 0 {
		buf.WriteString("\nNegative holdings\n")
		neg := tablewriter.NewWriter(buf)
		neg.SetHeader([]string{"Ticker", "Date", "Shares"})
		neg.SetBorder(false)
		for _, n := range negatives {
			neg.Append([]string{n.Ticker, n.Date.Format(common.DateFormat), fmt.Sprintf("%.4f", n.Shares)})
		}
		neg.Render()
	}

	return buf.String()
}
