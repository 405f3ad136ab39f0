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

package splits

import (
	"sort"
	"time"

	"github.com/penny-vault/twrr/ledger"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// Adjust restates every transaction in post-split shares. A transaction is scaled by
// each split of the same security whose effective date is strictly after its trade
// date; a trade on the effective date already reflects the split (ex-date convention)
func Adjust(txns []*ledger.Transaction, events []*Event) ([]*AdjustedTransaction, error) {
	bySecurity := make(map[string][]*Event)
	for _, ev := range events {
		if err := ev.Validate(); err != nil {
			log.Error().Err(err).Object("Split", ev).Msg("split failed validation")
			return nil, err
		}
		bySecurity[ev.Security] = append(bySecurity[ev.Security], ev)
	}

	for _, evs := range bySecurity {
		sort.SliceStable(evs, func(i, j int) bool {
			return evs[i].EffectiveDate.Before(evs[j].EffectiveDate)
		})
	}

	adjusted := make([]*AdjustedTransaction, 0, len(txns))
	numAdjusted := 0
	for _, t := range txns {
		num, den := compound(bySecurity[t.Security], t.TradeDate)
		factor := num.DivRound(den, 16)

		adj := &AdjustedTransaction{
			Transaction:      *t,
			AdjustedQuantity: t.Quantity.Mul(num).DivRound(den, 16),
			SplitFactor:      factor,
		}

		if !factor.Equal(one) {
			numAdjusted++
			log.Debug().Object("Transaction", t).Str("Factor", factor.String()).Msg("split adjusted transaction")
		}

		adjusted = append(adjusted, adj)
	}

	log.Info().Int("NumTransactions", len(txns)).Int("NumAdjusted", numAdjusted).Int("NumSplits", len(events)).Msg("applied split adjustments")
	return adjusted, nil
}

// compound multiplies the numerators and denominators of every split after tradeDate
func compound(events []*Event, tradeDate time.Time) (num, den decimal.Decimal) {
	num = decimal.NewFromInt(1)
	den = decimal.NewFromInt(1)
	for _, ev := range events {
		if ev.EffectiveDate.After(tradeDate) {
			num = num.Mul(ev.Numerator)
			den = den.Mul(ev.Denominator)
		}
	}
	return
}

// Factors returns the cumulative factor applied to a trade of each security made
// before all of its splits
func Factors(events []*Event) map[string]decimal.Decimal {
	res := make(map[string]decimal.Decimal)
	for _, ev := range events {
		f, ok := res[ev.Security]
		if !ok {
			f = decimal.NewFromInt(1)
		}
		res[ev.Security] = f.Mul(ev.Numerator).DivRound(ev.Denominator, 16)
	}
	return res
}
