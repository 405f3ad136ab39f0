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
	"sort"
	"time"

	"github.com/penny-vault/twrr/common"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type OrderType string

const (
	Buy  OrderType = "Buy"
	Sell OrderType = "Sell"
)

// Transaction is a single cleaned ledger entry
type Transaction struct {
	TradeDate     time.Time       `json:"trade_date"`
	OrderType     OrderType       `json:"order_type"`
	Security      string          `json:"security"`
	Quantity      decimal.Decimal `json:"quantity"`
	ExecutedPrice decimal.Decimal `json:"executed_price"`
	TradeValue    decimal.Decimal `json:"trade_value"`
}

// Sign returns +1 for buys and -1 for sells
func (t *Transaction) Sign() int64 {
	if t.OrderType == Sell {
		return -1
	}
	return 1
}

// IsZeroPrice reports whether the transaction is a non-cash entry (e.g. a corporate action)
func (t *Transaction) IsZeroPrice() bool {
	return t.ExecutedPrice.IsZero()
}

func (t *Transaction) key() string {
	return t.TradeDate.Format(common.DateFormat) + "|" + string(t.OrderType) + "|" + t.Security + "|" +
		t.Quantity.String() + "|" + t.ExecutedPrice.String()
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler
func (t *Transaction) MarshalZerologObject(e *zerolog.Event) {
	e.Str("TradeDate", t.TradeDate.Format(common.DateFormat))
	e.Str("OrderType", string(t.OrderType))
	e.Str("Security", t.Security)
	e.Str("Quantity", t.Quantity.String())
	e.Str("ExecutedPrice", t.ExecutedPrice.String())
}

// Tickers returns the sorted set of securities referenced by txns
func Tickers(txns []*Transaction) []string {
	seen := make(map[string]bool)
	tickers := make([]string, 0)
	for _, t := range txns {
		if !seen[t.Security] {
			seen[t.Security] = true
			tickers = append(tickers, t.Security)
		}
	}
	sort.Strings(tickers)
	return tickers
}

// Span returns the first and last trade date of txns
func Span(txns []*Transaction) (first, last time.Time) {
	for idx, t := range txns {
		if idx == 0 || t.TradeDate.Before(first) {
			first = t.TradeDate
		}
		if idx == 0 || t.TradeDate.After(last) {
			last = t.TradeDate
		}
	}
	return
}
