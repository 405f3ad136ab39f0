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
	"fmt"
	"strings"
	"time"

	"github.com/penny-vault/twrr/common"
	"github.com/penny-vault/twrr/ledger"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Event is a stock split; holders of M shares own N shares on and after EffectiveDate
type Event struct {
	Security      string          `json:"security"`
	EffectiveDate time.Time       `json:"effective_date"`
	Ratio         string          `json:"ratio"`
	Numerator     decimal.Decimal `json:"numerator"`
	Denominator   decimal.Decimal `json:"denominator"`
}

// NewEvent validates ratio and builds a split event
func NewEvent(security string, effective time.Time, ratio string) (*Event, error) {
	num, den, err := parseRatio(ratio)
	if err != nil {
		return nil, err
	}

	return &Event{
		Security:      common.NormalizeTicker(security),
		EffectiveDate: common.Day(effective),
		Ratio:         strings.TrimSpace(ratio),
		Numerator:     num,
		Denominator:   den,
	}, nil
}

// Validate checks that the event has a positive, finite factor
func (ev *Event) Validate() error {
	if ev.Denominator.IsZero() {
		return fmt.Errorf("%w %q for %s: zero denominator", ErrInvalidRatio, ev.Ratio, ev.Security)
	}
	if ev.Numerator.Sign()*ev.Denominator.Sign() <= 0 {
		return fmt.Errorf("%w %q for %s: factor must be positive", ErrInvalidRatio, ev.Ratio, ev.Security)
	}
	return nil
}

// Factor returns N/M
func (ev *Event) Factor() decimal.Decimal {
	return ev.Numerator.DivRound(ev.Denominator, 16)
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler
func (ev *Event) MarshalZerologObject(e *zerolog.Event) {
	e.Str("Security", ev.Security)
	e.Str("EffectiveDate", ev.EffectiveDate.Format(common.DateFormat))
	e.Str("Ratio", ev.Ratio)
}

// AdjustedTransaction is a ledger transaction restated in post-split shares
type AdjustedTransaction struct {
	ledger.Transaction
	AdjustedQuantity decimal.Decimal `json:"adjusted_quantity"`
	SplitFactor      decimal.Decimal `json:"split_adjustment_factor"`
}

// SignedQuantity returns the adjusted quantity, negative for sells
func (t *AdjustedTransaction) SignedQuantity() decimal.Decimal {
	if t.OrderType == ledger.Sell {
		return t.AdjustedQuantity.Neg()
	}
	return t.AdjustedQuantity
}

// ParseRatio converts an "N:M" ratio into the factor N/M
func ParseRatio(ratio string) (decimal.Decimal, error) {
	num, den, err := parseRatio(ratio)
	if err != nil {
		return decimal.Zero, err
	}
	return num.DivRound(den, 16), nil
}

func parseRatio(ratio string) (num, den decimal.Decimal, err error) {
	parts := strings.Split(strings.TrimSpace(ratio), ":")
	if len(parts) != 2 {
		return num, den, fmt.Errorf("%w %q: expected N:M", ErrInvalidRatio, ratio)
	}

	if num, err = decimal.NewFromString(strings.TrimSpace(parts[0])); err != nil {
		return num, den, fmt.Errorf("%w %q: numerator is not numeric", ErrInvalidRatio, ratio)
	}

	if den, err = decimal.NewFromString(strings.TrimSpace(parts[1])); err != nil {
		return num, den, fmt.Errorf("%w %q: denominator is not numeric", ErrInvalidRatio, ratio)
	}

	if den.IsZero() {
		return num, den, fmt.Errorf("%w %q: zero denominator", ErrInvalidRatio, ratio)
	}

	if num.Sign()*den.Sign() <= 0 {
		return num, den, fmt.Errorf("%w %q: factor must be positive", ErrInvalidRatio, ratio)
	}

	return num, den, nil
}
