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
	"time"

	"github.com/penny-vault/twrr/common"
	"github.com/penny-vault/twrr/dataframe"
	"github.com/penny-vault/twrr/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

const DefaultBatchSize = 25

// Provenance records where the prices of a single ticker came from
type Provenance struct {
	Ticker   string         `json:"ticker"`
	Provider string         `json:"provider,omitempty"`
	Delisted bool           `json:"delisted"`
	Counts   map[Source]int `json:"counts"`
}

// Result is the output of a resolver run. Raw holds only the prices supplied by a
// provider or override; Filled additionally carries forward and back filled values.
// Sources describes every cell of Filled.
type Result struct {
	Raw        *dataframe.DataFrame
	Filled     *dataframe.DataFrame
	Sources    map[string][]Source
	Provenance []*Provenance
	Summary    *Summary
}

// Points enumerates the resolved prices of ticker in date order
func (r *Result) Points(ticker string) []*PricePoint {
	col, err := r.Filled.Column(ticker)
	if err != nil {
		return nil
	}
	sources := r.Sources[ticker]

	points := make([]*PricePoint, 0, len(col))
	for idx, price := range col {
		if math.IsNaN(price) {
			continue
		}
		points = append(points, &PricePoint{
			Ticker: ticker,
			Date:   r.Filled.Dates[idx],
			Price:  price,
			Source: sources[idx],
		})
	}
	return points
}

// Resolver produces one price per (ticker, day) by walking a chain of sources: batched
// primary requests, single ticker primary retries, secondary providers, manual
// overrides and finally forward and back filling
type Resolver struct {
	Primary    Provider
	Secondary  []Provider
	Cache      *Cache
	Overrides  []*Override
	Delisted   map[string]bool
	Aliases    map[string]string
	Benchmarks []string
	BatchSize  int
}

type resolveState struct {
	raw        *dataframe.DataFrame
	rowIdx     map[time.Time]int
	sources    map[string][]Source
	provenance map[string]*Provenance
}

func newResolveState(tickers []string, dates []time.Time) *resolveState {
	state := &resolveState{
		raw:        dataframe.New(dates, tickers...),
		rowIdx:     make(map[time.Time]int, len(dates)),
		sources:    make(map[string][]Source, len(tickers)),
		provenance: make(map[string]*Provenance, len(tickers)),
	}
	for idx, dt := range dates {
		state.rowIdx[dt] = idx
	}
	for _, ticker := range tickers {
		state.sources[ticker] = make([]Source, len(dates))
		state.provenance[ticker] = &Provenance{
			Ticker: ticker,
			Counts: make(map[Source]int),
		}
	}
	return state
}

// apply stores quotes for ticker in every cell that is still empty and returns the
// number of cells filled
func (s *resolveState) apply(ticker string, quotes []Quote, source Source, provider string) int {
	colIdx := s.raw.ColIndex(ticker)
	if colIdx == -1 {
		return 0
	}
	col := s.raw.Vals[colIdx]
	raw := UseRawClose(ticker)

	n := 0
	for _, quote := range quotes {
		row, ok := s.rowIdx[common.Day(quote.Date)]
		if !ok || !math.IsNaN(col[row]) {
			continue
		}
		price := quote.Price(raw)
		if !valid(price) {
			continue
		}
		col[row] = price
		s.sources[ticker][row] = source
		n++
	}

	if n > 0 && provider != "" {
		s.provenance[ticker].Provider = provider
	}
	return n
}

func (r *Resolver) batchSize() int {
	if r.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return r.BatchSize
}

// fetch requests symbols from provider, serving what it can from the cache. Quotes
// returned alongside a batch error are cached so a later retry does not download
// them again
func (r *Resolver) fetch(ctx context.Context, provider Provider, symbols []string, begin, end time.Time) (map[string][]Quote, error) {
	res := make(map[string][]Quote, len(symbols))
	missing := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		if quotes, ok := r.Cache.Get(provider.Name(), symbol, begin, end); ok {
			res[symbol] = quotes
		} else {
			missing = append(missing, symbol)
		}
	}

	if len(missing) == 0 {
		return res, nil
	}

	quotes, err := provider.Fetch(ctx, missing, begin, end)
	for symbol, q := range quotes {
		r.Cache.Add(provider.Name(), symbol, begin, end, q)
		res[symbol] = q
	}

	return res, err
}

// Resolve builds the price tables for tickers plus the benchmark set over every
// calendar day in [begin, end]. Provider failures are recorded in the summary and never
// returned; only context cancellation aborts the run.
func (r *Resolver) Resolve(ctx context.Context, tickers []string, begin, end time.Time) (*Result, error) {
	begin = common.Day(begin)
	end = common.Day(end)
	if begin.After(end) {
		return nil, fmt.Errorf("%w: %s > %s", ErrInvalidSpan, begin.Format(common.DateFormat), end.Format(common.DateFormat))
	}

	benchmarks := r.Benchmarks
	if benchmarks == nil {
		benchmarks = DefaultBenchmarks
	}
	aliases := r.Aliases
	if aliases == nil {
		aliases = DefaultAliases
	}

	ctx, span := opentelemetry.Start(ctx, "prices.Resolve",
		attribute.Int("tickers", len(tickers)),
		attribute.String("begin", begin.Format(common.DateFormat)),
		attribute.String("end", end.Format(common.DateFormat)),
	)
	defer span.End()

	requested := requestedTickers(tickers, benchmarks)
	symbols := newSymbolMap(aliases)
	state := newResolveState(requested, common.Days(begin, end))
	summary := newSummary(begin, end, requested)

	subLog := log.With().Str("Begin", begin.Format(common.DateFormat)).Str("End", end.Format(common.DateFormat)).Logger()
	subLog.Info().Int("NumTickers", len(requested)).Msg("resolving prices")

	network := make([]string, 0, len(requested))
	for _, ticker := range requested {
		if r.Delisted[ticker] {
			state.provenance[ticker].Delisted = true
			continue
		}
		network = append(network, ticker)
	}

	pending := network
	if r.Primary != nil {
		retry := make([]string, 0, len(network))
		for _, batch := range partitionArray(network, r.batchSize()) {
			quotes, err := r.fetch(ctx, r.Primary, symbols.symbols(batch), begin, end)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if err != nil {
				subLog.Warn().Err(err).Strs("Tickers", batch).Msg("primary batch failed")
				summary.addFailure(SourcePrimary, r.Primary.Name(), batch, err)
				retry = append(retry, batch...)
				continue
			}
			for _, ticker := range batch {
				if state.apply(ticker, quotes[symbols.symbol(ticker)], SourcePrimary, r.Primary.Name()) == 0 {
					retry = append(retry, ticker)
				}
			}
		}

		pending = make([]string, 0, len(retry))
		for _, ticker := range retry {
			quotes, err := r.fetch(ctx, r.Primary, []string{symbols.symbol(ticker)}, begin, end)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if err != nil {
				subLog.Warn().Err(err).Str("Ticker", ticker).Msg("primary retry failed")
				summary.addFailure(SourceRetry, r.Primary.Name(), []string{ticker}, err)
			}
			if state.apply(ticker, quotes[symbols.symbol(ticker)], SourceRetry, r.Primary.Name()) == 0 {
				pending = append(pending, ticker)
			}
		}
	}

	for _, provider := range r.Secondary {
		if len(pending) == 0 {
			break
		}
		next := make([]string, 0, len(pending))
		for _, ticker := range pending {
			quotes, err := r.fetch(ctx, provider, []string{symbols.symbol(ticker)}, begin, end)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if err != nil {
				subLog.Warn().Err(err).Str("Ticker", ticker).Str("Provider", provider.Name()).Msg("secondary provider failed")
				summary.addFailure(SourceSecondary, provider.Name(), []string{ticker}, err)
			}
			if state.apply(ticker, quotes[symbols.symbol(ticker)], SourceSecondary, provider.Name()) == 0 {
				next = append(next, ticker)
			}
		}
		pending = next
	}

	r.applyOverrides(state)

	raw := state.raw
	filled := fill(raw, state.sources)

	for _, ticker := range requested {
		col, _ := raw.Column(ticker)
		summary.addGaps(ticker, raw.Dates, col)
		for _, src := range state.sources[ticker] {
			if src != SourceNone {
				state.provenance[ticker].Counts[src]++
				summary.Resolved[src]++
			}
		}
		if allNaN(col) {
			summary.Unresolved = append(summary.Unresolved, ticker)
		}
	}
	summary.CacheHits, summary.CacheMisses = r.Cache.Stats()

	if len(summary.Unresolved) > 0 {
		subLog.Warn().Strs("Tickers", summary.Unresolved).Msg("tickers could not be priced from any source")
	}
	subLog.Info().EmbedObject(summary).Msg("prices resolved")

	provenance := make([]*Provenance, len(requested))
	for idx, ticker := range requested {
		provenance[idx] = state.provenance[ticker]
	}

	return &Result{
		Raw:        raw,
		Filled:     filled,
		Sources:    state.sources,
		Provenance: provenance,
		Summary:    summary,
	}, nil
}

// applyOverrides fills empty cells from the override list. For delisted tickers the
// overrides replace any value already present. Repeated rows for a cell resolve to the last one.
func (r *Resolver) applyOverrides(state *resolveState) {
	for _, override := range latestOverrides(r.Overrides) {
		colIdx := state.raw.ColIndex(override.Ticker)
		if colIdx == -1 {
			continue
		}
		row, ok := state.rowIdx[common.Day(override.Date)]
		if !ok {
			continue
		}

		col := state.raw.Vals[colIdx]
		if !math.IsNaN(col[row]) && !r.Delisted[override.Ticker] {
			continue
		}
		col[row] = override.AdjClose
		state.sources[override.Ticker][row] = SourceOverride
	}
}

// fill returns a forward then back filled copy of raw, tagging filled cells in sources
func fill(raw *dataframe.DataFrame, sources map[string][]Source) *dataframe.DataFrame {
	filled := raw.Copy()
	for colIdx, ticker := range filled.ColNames {
		col := filled.Vals[colIdx]
		src := sources[ticker]

		last := math.NaN()
		for row, val := range col {
			if !math.IsNaN(val) {
				last = val
				continue
			}
			if !math.IsNaN(last) {
				col[row] = last
				src[row] = SourceForwardFill
			}
		}

		next := math.NaN()
		for row := len(col) - 1; row >= 0; row-- {
			if !math.IsNaN(col[row]) {
				next = col[row]
				continue
			}
			if !math.IsNaN(next) {
				col[row] = next
				src[row] = SourceBackFill
			}
		}
	}
	return filled
}

func allNaN(col []float64) bool {
	for _, val := range col {
		if !math.IsNaN(val) {
			return false
		}
	}
	return true
}

// IsCanceled reports whether err was caused by context cancellation
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
