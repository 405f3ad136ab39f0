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
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/penny-vault/twrr/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

var stooqAPI = "https://stooq.com"

// index symbols use Stooq's own naming
var stooqIndices = map[string]string{
	"^GSPC":     "^spx",
	"^IXIC":     "^ndq",
	"^DJI":      "^dji",
	"^N225":     "^nkx",
	"^HSI":      "^hsi",
	"^SSEC":     "^shc",
	"000001.SS": "^shc",
}

// StooqProvider downloads daily bars from stooq.com. Stooq publishes split adjusted
// closes only so Close and AdjClose carry the same value.
type StooqProvider struct {
	fetcher *httpFetcher
}

func NewStooqProvider(cfg HTTPConfig) *StooqProvider {
	return &StooqProvider{
		fetcher: newHTTPFetcher("stooq", cfg),
	}
}

func (s *StooqProvider) Name() string {
	return "stooq"
}

func (s *StooqProvider) Fetch(ctx context.Context, symbols []string, begin, end time.Time) (map[string][]Quote, error) {
	ctx, span := opentelemetry.Start(ctx, "stooq.Fetch", attribute.Int("symbols", len(symbols)))
	defer span.End()

	res := make(map[string][]Quote, len(symbols))
	for _, symbol := range symbols {
		body, err := s.fetcher.get(ctx, s.url(symbol, begin, end))
		if err == nil {
			var quotes []Quote
			quotes, err = parseCSVQuotes(ctx, body, csvLayout{date: "Date", close: "Close"})
			if err == nil {
				res[symbol] = quotes
				continue
			}
		}

		if errors.Is(err, ErrNotFound) {
			log.Debug().Str("Provider", s.Name()).Str("Symbol", symbol).Msg("symbol not found")
			continue
		}

		opentelemetry.Fail(span, err, "batch failed")
		return res, fmt.Errorf("%s: %w", symbol, err)
	}

	return res, nil
}

func (s *StooqProvider) url(symbol string, begin, end time.Time) string {
	q := url.Values{}
	q.Set("s", stooqSymbol(symbol))
	q.Set("d1", begin.Format("20060102"))
	q.Set("d2", end.Format("20060102"))
	q.Set("i", "d")
	return fmt.Sprintf("%s/q/d/l/?%s", stooqAPI, q.Encode())
}

func stooqSymbol(symbol string) string {
	if idx, ok := stooqIndices[symbol]; ok {
		return idx
	}

	lower := strings.ToLower(symbol)
	if strings.HasPrefix(lower, "^") || strings.Contains(lower, ".") {
		return lower
	}
	return lower + ".us"
}

// compile-time interface checks
var (
	_ Provider = (*YahooProvider)(nil)
	_ Provider = (*StooqProvider)(nil)
	_ Provider = (*TiingoProvider)(nil)
)
