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
	"sort"
	"strings"
	"time"

	"github.com/penny-vault/twrr/common"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ledger dates are exported as MM/DD/YYYY; single digit months and days are accepted
const tradeDateLayout = "1/2/2006"

// Clean validates and normalizes raw ledger rows. Any unparseable date, number or
// order type aborts cleaning; zero price rows are kept and exact duplicates dropped
func Clean(rows []*RawRow) ([]*Transaction, *Report, error) {
	report := &Report{
		Input: len(rows),
	}

	txns := make([]*Transaction, 0, len(rows))
	for _, row := range rows {
		subLog := log.With().Int("Line", row.Line).Logger()

		t, err := cleanRow(row)
		if err != nil {
			subLog.Error().Err(err).Msg("ledger row failed validation")
			return nil, nil, fmt.Errorf("line %d: %w", row.Line, err)
		}

		if t.IsZeroPrice() {
			report.ZeroPrice++
			subLog.Warn().Object("Transaction", t).Msg("transaction has a zero executed price; retained with no cash flow")
		}

		if t.Quantity.IsZero() {
			report.ZeroQuantity++
			subLog.Warn().Object("Transaction", t).Msg("transaction has a zero quantity")
		}

		txns = append(txns, t)
	}

	sort.SliceStable(txns, func(i, j int) bool {
		return txns[i].TradeDate.Before(txns[j].TradeDate)
	})

	seen := make(map[string]bool, len(txns))
	deduped := make([]*Transaction, 0, len(txns))
	for _, t := range txns {
		k := t.key()
		if seen[k] {
			report.Duplicates++
			continue
		}
		seen[k] = true
		deduped = append(deduped, t)
	}

	if report.Duplicates > 0 {
		log.Warn().Int("Duplicates", report.Duplicates).Msg("dropped duplicate ledger rows")
	}

	report.Rows = len(deduped)
	report.Tickers = Tickers(deduped)
	report.First, report.Last = Span(deduped)

	return deduped, report, nil
}

func cleanRow(row *RawRow) (*Transaction, error) {
	tradeDate, err := time.ParseInLocation(tradeDateLayout, row.TradeDate, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("%w %q: expected MM/DD/YYYY", ErrInvalidDate, row.TradeDate)
	}

	orderType, err := parseOrderType(row.OrderType)
	if err != nil {
		return nil, err
	}

	security := common.NormalizeTicker(row.Security)
	if security == "" {
		return nil, ErrMissingSecurity
	}

	quantity, err := parseDecimal(ColQuantity, row.Quantity)
	if err != nil {
		return nil, err
	}

	price, err := parseDecimal(ColExecutedPrice, row.ExecutedPrice)
	if err != nil {
		return nil, err
	}

	return &Transaction{
		TradeDate:     tradeDate,
		OrderType:     orderType,
		Security:      security,
		Quantity:      quantity,
		ExecutedPrice: price,
		TradeValue:    quantity.Mul(price),
	}, nil
}

func parseOrderType(val string) (OrderType, error) {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	default:
		return "", fmt.Errorf("%w %q: must be Buy or Sell", ErrInvalidOrderType, val)
	}
}

// parseDecimal accepts plain decimals with an optional leading '$' and thousands separators
func parseDecimal(colName, val string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.TrimPrefix(strings.TrimSpace(val), "$"), ",", "")
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s %q", ErrInvalidNumber, colName, val)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %s %q must not be negative", ErrInvalidNumber, colName, val)
	}
	return d, nil
}
