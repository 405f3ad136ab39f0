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

package twrr

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/penny-vault/twrr/common"
	"github.com/penny-vault/twrr/dataframe"
	"github.com/rs/zerolog"
)

// Stats summarizes a time-weighted return index
type Stats struct {
	Begin       time.Time `json:"begin"`
	End         time.Time `json:"end"`
	Days        int       `json:"days"`
	Years       float64   `json:"years"`
	TotalReturn float64   `json:"total_return"`
	Annualized  float64   `json:"annualized_return"`
	BestDay     float64   `json:"best_day"`
	BestDate    time.Time `json:"best_date"`
	WorstDay    float64   `json:"worst_day"`
	WorstDate   time.Time `json:"worst_date"`
	MaxDrawDown float64   `json:"max_drawdown"`
	FinalValue  float64   `json:"final_market_value"`
}

func toYears(d time.Duration) float64 {
	return d.Hours() / (24 * 365.2425)
}

// Summarize computes statistics over the output of Compute. Returns longer than a year
// are annualized, shorter ones are reported as is.
func Summarize(df *dataframe.DataFrame) (*Stats, error) {
	if df == nil || df.Len() == 0 {
		return nil, ErrNoMarketValue
	}

	index, err := df.Column(IndexCol)
	if err != nil {
		return nil, err
	}
	factors, err := df.Column(FactorCol)
	if err != nil {
		return nil, err
	}

	last := len(index) - 1
	stats := &Stats{
		Begin:       df.Start(),
		End:         df.End(),
		Days:        df.Len(),
		Years:       toYears(df.End().Sub(df.Start())),
		TotalReturn: index[last] - 1,
		BestDay:     math.Inf(-1),
		WorstDay:    math.Inf(1),
	}

	stats.Annualized = stats.TotalReturn
	if stats.Years > 1 {
		stats.Annualized = math.Pow(index[last], 1.0/stats.Years) - 1
	}

	peak := math.Inf(-1)
	for row := range index {
		if row > 0 {
			daily := factors[row] - 1
			if daily > stats.BestDay {
				stats.BestDay = daily
				stats.BestDate = df.Dates[row]
			}
			if daily < stats.WorstDay {
				stats.WorstDay = daily
				stats.WorstDate = df.Dates[row]
			}
		}

		peak = math.Max(peak, index[row])
		if dd := index[row]/peak - 1; dd < stats.MaxDrawDown {
			stats.MaxDrawDown = dd
		}
	}

	if last == 0 {
		stats.BestDay = 0
		stats.WorstDay = 0
	}

	if mv, err := df.Column(MarketValueCol); err == nil {
		stats.FinalValue = mv[last]
	}

	return stats, nil
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler
func (s *Stats) MarshalZerologObject(e *zerolog.Event) {
	e.Str("Begin", s.Begin.Format(common.DateFormat))
	e.Str("End", s.End.Format(common.DateFormat))
	e.Int("Days", s.Days)
	e.Float64("TotalReturn", s.TotalReturn)
	e.Float64("Annualized", s.Annualized)
	e.Float64("MaxDrawDown", s.MaxDrawDown)
	e.Float64("FinalValue", s.FinalValue)
}

func pct(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

// Table renders the statistics as a two column table
func (s *Stats) Table() string {
	buf := &bytes.Buffer{}
	table := tablewriter.NewWriter(buf)
	table.SetHeader([]string{"Metric", "Value"})
	table.SetBorder(false)
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT})

	table.Append([]string{"Period", fmt.Sprintf("%s to %s", s.Begin.Format(common.DateFormat), s.End.Format(common.DateFormat))})
	table.Append([]string{"Days", fmt.Sprintf("%d", s.Days)})
	table.Append([]string{"Total Return", pct(s.TotalReturn)})
	if s.Years > 1 {
		table.Append([]string{"Annualized Return", pct(s.Annualized)})
	}
	table.Append([]string{"Best Day", fmt.Sprintf("%s (%s)", pct(s.BestDay), s.BestDate.Format(common.DateFormat))})
	table.Append([]string{"Worst Day", fmt.Sprintf("%s (%s)", pct(s.WorstDay), s.WorstDate.Format(common.DateFormat))})
	table.Append([]string{"Max Drawdown", pct(s.MaxDrawDown)})
	table.Append([]string{"Market Value", fmt.Sprintf("%.2f", s.FinalValue)})
	table.Render()

	return buf.String()
}
