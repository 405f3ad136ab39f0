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

package prices

import (
	"math"
	"time"

	"github.com/penny-vault/twrr/common"
	"github.com/rs/zerolog"
)

// Source identifies the resolution tier that supplied a price
type Source string

const (
	SourceNone        Source = ""
	SourcePrimary     Source = "primary"
	SourceRetry       Source = "retry"
	SourceSecondary   Source = "secondary"
	SourceOverride    Source = "override"
	SourceForwardFill Source = "ffill"
	SourceBackFill    Source = "bfill"
)

// Sources lists every resolution tier in priority order
var Sources = []Source{SourcePrimary, SourceRetry, SourceSecondary, SourceOverride, SourceForwardFill, SourceBackFill}

// Quote is a single daily bar returned by a provider
type Quote struct {
	Date     time.Time
	Close    float64
	AdjClose float64
}

// Price returns the adjusted close, or the raw close when raw is set. If the
// preferred value is missing the other one is used
func (q Quote) Price(raw bool) float64 {
	preferred, other := q.AdjClose, q.Close
	if raw {
		preferred, other = q.Close, q.AdjClose
	}

	if valid(preferred) {
		return preferred
	}
	if valid(other) {
		return other
	}
	return math.NaN()
}

// PricePoint is a resolved price for a ticker on one calendar day
type PricePoint struct {
	Ticker string    `json:"ticker"`
	Date   time.Time `json:"date"`
	Price  float64   `json:"price"`
	Source Source    `json:"source"`
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler
func (p *PricePoint) MarshalZerologObject(e *zerolog.Event) {
	e.Str("Ticker", p.Ticker)
	e.Str("Date", p.Date.Format(common.DateFormat))
	e.Float64("Price", p.Price)
	e.Str("Source", string(p.Source))
}

func valid(price float64) bool {
	return !math.IsNaN(price) && !math.IsInf(price, 0) && price > 0
}
