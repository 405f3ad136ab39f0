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
	"errors"
	"math"
	"sort"
	"time"

	"github.com/penny-vault/twrr/cashflow"
	"github.com/penny-vault/twrr/dataframe"
	"github.com/penny-vault/twrr/holdings"
	"github.com/rs/zerolog/log"
)

const (
	MarketValueCol = holdings.MarketValueCol
	CashFlowCol    = cashflow.CashFlowCol
	NetFlowCol     = "net_flow"
	FactorCol      = "factor"
	IndexCol       = "twrr"

	// denominators smaller than epsilon are treated as days without activity
	epsilon = 1e-9
)

var (
	ErrNoMarketValue = errors.New("market value series is empty")
)

// Factor returns the growth of the portfolio over one day after removing the effect of
// the external flow that happened on it
func Factor(prevMV, mv, netFlow float64) float64 {
	den := prevMV + netFlow
	if math.Abs(den) < epsilon {
		return 1
	}
	factor := mv / den
	if math.IsNaN(factor) || math.IsInf(factor, 0) {
		return 1
	}
	return factor
}

// Compute chains daily factors into a time-weighted return index. Both series are aligned
// to the union of their dates: market value is forward then back filled and missing cash
// flows are zero. Cash flows are from the investor's perspective so the flow into the
// portfolio is their negation. The index starts at 1 on the first day.
//
// The returned dataframe carries the aligned market value, cash flow and net flow along
// with the daily factor and the index.
func Compute(mv, cf *dataframe.DataFrame) (*dataframe.DataFrame, error) {
	if mv == nil || mv.Len() == 0 {
		return nil, ErrNoMarketValue
	}

	mvCol, err := mv.Column(MarketValueCol)
	if err != nil {
		return nil, err
	}

	var cfCol []float64
	if cf != nil && cf.Len() > 0 {
		if cfCol, err = cf.Column(CashFlowCol); err != nil {
			return nil, err
		}
	}

	dates := unionDates(mv.Dates, cfDates(cf))

	aligned := dataframe.New(mv.Dates, MarketValueCol)
	copy(aligned.Vals[0], mvCol)
	aligned = aligned.Reindex(dates, math.NaN())
	aligned.FFill().BFill()

	marketValue := aligned.Vals[0]
	if allNaN(marketValue) {
		return nil, ErrNoMarketValue
	}

	flows := make([]float64, len(dates))
	if cfCol != nil {
		byDate := cf.AsMap(CashFlowCol)
		for row, dt := range dates {
			if val, ok := byDate[dt]; ok && !math.IsNaN(val) {
				flows[row] = val
			}
		}
	}

	netFlow := make([]float64, len(dates))
	factors := make([]float64, len(dates))
	index := make([]float64, len(dates))

	prevMV := 0.0
	level := 1.0
	for row := range dates {
		netFlow[row] = -flows[row]
		if row == 0 {
			factors[row] = 1
		} else {
			factors[row] = Factor(prevMV, marketValue[row], netFlow[row])
		}
		level *= factors[row]
		index[row] = level
		prevMV = marketValue[row]
	}

	res := dataframe.New(dates)
	res.Insert(MarketValueCol, marketValue)
	res.Insert(CashFlowCol, flows)
	res.Insert(NetFlowCol, netFlow)
	res.Insert(FactorCol, factors)
	res.Insert(IndexCol, index)

	log.Info().
		Time("Begin", res.Start()).
		Time("End", res.End()).
		Float64("FinalIndex", index[len(index)-1]).
		Msg("computed time-weighted return")

	return res, nil
}

func cfDates(cf *dataframe.DataFrame) []time.Time {
	if cf == nil {
		return nil
	}
	return cf.Dates
}

func unionDates(a, b []time.Time) []time.Time {
	seen := make(map[time.Time]bool, len(a)+len(b))
	res := make([]time.Time, 0, len(a)+len(b))
	for _, dates := range [][]time.Time{a, b} {
		for _, dt := range dates {
			if !seen[dt] {
				seen[dt] = true
				res = append(res, dt)
			}
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].Before(res[j])
	})
	return res
}

func allNaN(col []float64) bool {
	for _, val := range col {
		if !math.IsNaN(val) {
			return false
		}
	}
	return true
}
