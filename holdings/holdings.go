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
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/penny-vault/twrr/common"
	"github.com/penny-vault/twrr/dataframe"
	"github.com/penny-vault/twrr/splits"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const MarketValueCol = "market_value"

var (
	ErrNoTransactions = errors.New("no transactions to build holdings from")
	ErrAlignment      = errors.New("holdings and prices could not be aligned")
)

// Negative marks the first day a ticker's position dropped below zero
type Negative struct {
	Ticker string    `json:"ticker"`
	Date   time.Time `json:"date"`
	Shares float64   `json:"shares"`
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler
func (n *Negative) MarshalZerologObject(e *zerolog.Event) {
	e.Str("Ticker", n.Ticker)
	e.Str("Date", n.Date.Format(common.DateFormat))
	e.Float64("Shares", n.Shares)
}

// Span returns the calendar range holdings are tracked over: the first trade date through
// the last priced date, or the first trade date if no later price exists
func Span(txns []*splits.AdjustedTransaction, lastPrice time.Time) (begin, end time.Time, err error) {
	if len(txns) == 0 {
		return time.Time{}, time.Time{}, ErrNoTransactions
	}

	begin = common.Day(txns[0].TradeDate)
	for _, txn := range txns[1:] {
		if dt := common.Day(txn.TradeDate); dt.Before(begin) {
			begin = dt
		}
	}

	end = common.Day(lastPrice)
	if end.Before(begin) {
		end = begin
	}
	return begin, end, nil
}

// Build sums the signed adjusted quantity of every trade per day and ticker and returns the
// running position of each ticker for every calendar day in [begin, end]. Trades before begin
// count toward the first day; trades after end are ignored. Positions are never clamped; the
// first day each ticker goes negative is returned
func Build(txns []*splits.AdjustedTransaction, begin, end time.Time) (*dataframe.DataFrame, []*Negative) {
	begin = common.Day(begin)
	end = common.Day(end)
	dates := common.Days(begin, end)

	rowIdx := make(map[time.Time]int, len(dates))
	for idx, dt := range dates {
		rowIdx[dt] = idx
	}

	daily := make(map[string][]decimal.Decimal)
	ignored := 0
	for _, txn := range txns {
		dt := common.Day(txn.TradeDate)
		if dt.After(end) {
			ignored++
			continue
		}
		if dt.Before(begin) {
			dt = begin
		}

		col, ok := daily[txn.Security]
		if !ok {
			col = make([]decimal.Decimal, len(dates))
			daily[txn.Security] = col
		}
		row := rowIdx[dt]
		col[row] = col[row].Add(txn.SignedQuantity())
	}

	if ignored > 0 {
		log.Warn().Int("NumTrades", ignored).Str("End", end.Format(common.DateFormat)).Msg("trades after the last priced date are not included in holdings")
	}

	tickers := make([]string, 0, len(daily))
	for ticker := range daily {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	df := dataframe.New(dates, tickers...)
	negatives := make([]*Negative, 0)
	for colIdx, ticker := range tickers {
		total := decimal.Zero
		flagged := false
		for row, qty := range daily[ticker] {
			total = total.Add(qty)
			df.Vals[colIdx][row] = total.InexactFloat64()
			if total.IsNegative() && !flagged {
				flagged = true
				neg := &Negative{
					Ticker: ticker,
					Date:   dates[row],
					Shares: total.InexactFloat64(),
				}
				log.Warn().EmbedObject(neg).Msg("holding went negative")
				negatives = append(negatives, neg)
			}
		}
	}

	log.Info().Int("NumTickers", len(tickers)).Int("NumDays", len(dates)).Int("NumNegative", len(negatives)).Msg("built holdings")

	return df, negatives
}

// Values returns the value of each position: holdings multiplied by prices that are aligned
// to the holdings calendar and forward then back filled. Tickers without a price have NaN value.
func Values(holdings, filled *dataframe.DataFrame) (*dataframe.DataFrame, error) {
	prices := filled.Reindex(holdings.Dates, math.NaN()).ReindexColumns(holdings.ColNames, math.NaN())
	prices.FFill().BFill()

	values, err := holdings.Mul(prices)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrAlignment, err)
	}
	return values, nil
}

// MarketValue sums the value of every position per day. Positions without a price
// contribute nothing
func MarketValue(holdings, filled *dataframe.DataFrame) (*dataframe.DataFrame, error) {
	values, err := Values(holdings, filled)
	if err != nil {
		return nil, err
	}

	unpriced := make([]string, 0)
	for colIdx, ticker := range values.ColNames {
		for row, val := range values.Vals[colIdx] {
			if math.IsNaN(val) && holdings.Vals[colIdx][row] != 0 {
				unpriced = append(unpriced, ticker)
				break
			}
		}
	}
	if len(unpriced) > 0 {
		log.Warn().Strs("Tickers", unpriced).Msg("positions without a price are valued at zero")
	}

	return values.RowSum(MarketValueCol), nil
}
