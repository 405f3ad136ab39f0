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

	"github.com/penny-vault/twrr/common"
	"github.com/penny-vault/twrr/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

var tiingoAPI = "https://api.tiingo.com"

// TiingoProvider downloads end-of-day prices from the tiingo daily API
type TiingoProvider struct {
	fetcher *httpFetcher
}

// NewTiingoProvider creates a provider that sends apikey in the Authorization header
func NewTiingoProvider(apikey string, cfg HTTPConfig) *TiingoProvider {
	fetcher := newHTTPFetcher("tiingo", cfg)
	fetcher.header.Set("Authorization", "Token "+apikey)
	return &TiingoProvider{
		fetcher: fetcher,
	}
}

func (t *TiingoProvider) Name() string {
	return "tiingo"
}

func (t *TiingoProvider) Fetch(ctx context.Context, symbols []string, begin, end time.Time) (map[string][]Quote, error) {
	ctx, span := opentelemetry.Start(ctx, "tiingo.Fetch", attribute.Int("symbols", len(symbols)))
	defer span.End()

	res := make(map[string][]Quote, len(symbols))
	for _, symbol := range symbols {
		// tiingo does not carry indices
		if strings.HasPrefix(symbol, "^") {
			continue
		}

		body, err := t.fetcher.get(ctx, t.url(symbol, begin, end))
		if err == nil {
			var quotes []Quote
			quotes, err = parseCSVQuotes(ctx, body, csvLayout{date: "date", close: "close", adjClose: "adjClose"})
			if err == nil {
				res[symbol] = quotes
				continue
			}
		}

		if errors.Is(err, ErrNotFound) {
			log.Debug().Str("Provider", t.Name()).Str("Symbol", symbol).Msg("symbol not found")
			continue
		}

		opentelemetry.Fail(span, err, "batch failed")
		return res, fmt.Errorf("%s: %w", symbol, err)
	}

	return res, nil
}

func (t *TiingoProvider) url(symbol string, begin, end time.Time) string {
	q := url.Values{}
	q.Set("startDate", begin.Format(common.DateFormat))
	q.Set("endDate", end.Format(common.DateFormat))
	q.Set("format", "csv")
	q.Set("resampleFreq", "daily")
	return fmt.Sprintf("%s/tiingo/daily/%s/prices?%s", tiingoAPI, url.PathEscape(symbol), q.Encode())
}
