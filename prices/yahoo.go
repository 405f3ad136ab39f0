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
	"math"
	"net/url"
	"sort"
	"time"

	"github.com/goccy/go-json"
	"github.com/penny-vault/twrr/common"
	"github.com/penny-vault/twrr/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

var yahooHosts = []string{"https://query1.finance.yahoo.com", "https://query2.finance.yahoo.com"}

type yahooChartResp struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol    string `json:"symbol"`
				GMTOffset int64  `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// YahooProvider downloads daily bars from the Yahoo Finance v8 chart API
type YahooProvider struct {
	fetcher *httpFetcher
	hosts   []string
}

func NewYahooProvider(cfg HTTPConfig) *YahooProvider {
	return &YahooProvider{
		fetcher: newHTTPFetcher("yahoo", cfg),
		hosts:   yahooHosts,
	}
}

func (y *YahooProvider) Name() string {
	return "yahoo"
}

func (y *YahooProvider) Fetch(ctx context.Context, symbols []string, begin, end time.Time) (map[string][]Quote, error) {
	ctx, span := opentelemetry.Start(ctx, "yahoo.Fetch",
		attribute.Int("symbols", len(symbols)),
		attribute.String("begin", begin.Format(common.DateFormat)),
		attribute.String("end", end.Format(common.DateFormat)),
	)
	defer span.End()

	res := make(map[string][]Quote, len(symbols))
	for _, symbol := range symbols {
		quotes, err := y.fetchSymbol(ctx, symbol, begin, end)
		if errors.Is(err, ErrNotFound) {
			log.Debug().Str("Provider", y.Name()).Str("Symbol", symbol).Msg("symbol not found")
			continue
		}
		if err != nil {
			opentelemetry.Fail(span, err, "batch failed")
			return res, fmt.Errorf("%s: %w", symbol, err)
		}
		if len(quotes) > 0 {
			res[symbol] = quotes
		}
	}

	return res, nil
}

func (y *YahooProvider) fetchSymbol(ctx context.Context, symbol string, begin, end time.Time) ([]Quote, error) {
	var lastErr error
	for _, host := range y.hosts {
		body, err := y.fetcher.get(ctx, y.chartURL(host, symbol, begin, end))
		if err == nil {
			return parseYahooChart(body)
		}
		if errors.Is(err, ErrNotFound) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (y *YahooProvider) chartURL(host, symbol string, begin, end time.Time) string {
	q := url.Values{}
	q.Set("period1", fmt.Sprintf("%d", common.Day(begin).Unix()))
	q.Set("period2", fmt.Sprintf("%d", common.Day(end).AddDate(0, 0, 1).Unix()))
	q.Set("interval", "1d")
	q.Set("includeAdjustedClose", "true")
	q.Set("events", "div,splits")
	return fmt.Sprintf("%s/v8/finance/chart/%s?%s", host, url.PathEscape(symbol), q.Encode())
}

func parseYahooChart(body []byte) ([]Quote, error) {
	var resp yahooChartResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedReply, err)
	}

	if resp.Chart.Error != nil || len(resp.Chart.Result) == 0 {
		return nil, ErrNotFound
	}

	result := resp.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, ErrNotFound
	}

	closes := result.Indicators.Quote[0].Close
	var adjCloses []*float64
	if len(result.Indicators.AdjClose) > 0 {
		adjCloses = result.Indicators.AdjClose[0].AdjClose
	}

	byDay := make(map[time.Time]Quote, len(result.Timestamp))
	for idx, ts := range result.Timestamp {
		quote := Quote{
			Date:     common.Day(time.Unix(ts+result.Meta.GMTOffset, 0)),
			Close:    floatAt(closes, idx),
			AdjClose: floatAt(adjCloses, idx),
		}
		if math.IsNaN(quote.Close) && math.IsNaN(quote.AdjClose) {
			continue
		}
		// later bars for the same day replace earlier ones
		byDay[quote.Date] = quote
	}

	quotes := make([]Quote, 0, len(byDay))
	for _, quote := range byDay {
		quotes = append(quotes, quote)
	}
	sort.Slice(quotes, func(i, j int) bool {
		return quotes[i].Date.Before(quotes[j].Date)
	})

	return quotes, nil
}

func floatAt(vals []*float64, idx int) float64 {
	if idx >= len(vals) || vals[idx] == nil {
		return math.NaN()
	}
	return *vals[idx]
}
