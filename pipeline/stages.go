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

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/penny-vault/twrr/cashflow"
	"github.com/penny-vault/twrr/checkpoint"
	"github.com/penny-vault/twrr/common"
	"github.com/penny-vault/twrr/holdings"
	"github.com/penny-vault/twrr/ledger"
	"github.com/penny-vault/twrr/prices"
	"github.com/penny-vault/twrr/splits"
	"github.com/penny-vault/twrr/twrr"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const previewRows = 5

// PriceProvenance is the stored record of where every price cell came from. Sources are
// aligned with Dates
type PriceProvenance struct {
	Dates   []string                   `json:"dates"`
	Tickers []*prices.Provenance       `json:"tickers"`
	Sources map[string][]prices.Source `json:"sources"`
	Summary *prices.Summary            `json:"summary"`
}

func (p *Pipeline) load(ctx context.Context, rec *checkpoint.StageRecord) error {
	rows, err := ledger.ReadFile(p.conf.Transactions)
	if err != nil {
		return err
	}

	txns, report, err := ledger.Clean(rows)
	if err != nil {
		return fmt.Errorf("%s: %w", p.conf.Transactions, err)
	}

	log.Info().EmbedObject(report).Msg("transactions cleaned")
	fmt.Fprintln(p.out, report.Table())
	fmt.Fprintln(p.out, ledger.Sample(txns, previewRows))

	if err := p.save(rec, checkpoint.TransactionsClean, txns); err != nil {
		return err
	}

	note(rec, "%d transactions from %d rows", report.Rows, report.Input)
	if report.Duplicates > 0 {
		note(rec, "%d duplicate rows dropped", report.Duplicates)
	}
	if report.ZeroPrice > 0 {
		note(rec, "%d zero price rows kept", report.ZeroPrice)
	}
	return nil
}

func (p *Pipeline) readSplits() ([]*splits.Event, error) {
	if p.conf.Splits == "" {
		log.Warn().Msg("data.splits not configured; no split adjustments applied")
		return []*splits.Event{}, nil
	}

	events, err := splits.ReadFile(p.conf.Splits)
	if errors.Is(err, os.ErrNotExist) {
		log.Warn().Str("FileName", p.conf.Splits).Msg("split file does not exist; no split adjustments applied")
		return []*splits.Event{}, nil
	}
	return events, err
}

func (p *Pipeline) adjustSplits(ctx context.Context, rec *checkpoint.StageRecord) error {
	var txns []*ledger.Transaction
	if _, err := p.store.Load(checkpoint.TransactionsClean, &txns); err != nil {
		return err
	}

	events, err := p.readSplits()
	if err != nil {
		return err
	}

	adjusted, err := splits.Adjust(txns, events)
	if err != nil {
		return err
	}

	fmt.Fprintln(p.out, splits.Table(events, adjusted))

	if err := p.save(rec, checkpoint.TransactionsSplitAdjusted, adjusted); err != nil {
		return err
	}

	changed := 0
	one := decimal.NewFromInt(1)
	for _, txn := range adjusted {
		if !txn.SplitFactor.Equal(one) {
			changed++
		}
	}
	note(rec, "%d split events; %d of %d transactions adjusted", len(events), changed, len(adjusted))
	return nil
}

func plainTransactions(adjusted []*splits.AdjustedTransaction) []*ledger.Transaction {
	txns := make([]*ledger.Transaction, len(adjusted))
	for idx, txn := range adjusted {
		txns[idx] = &txn.Transaction
	}
	return txns
}

func (p *Pipeline) resolvePrices(ctx context.Context, rec *checkpoint.StageRecord) error {
	var adjusted []*splits.AdjustedTransaction
	if _, err := p.store.Load(checkpoint.TransactionsSplitAdjusted, &adjusted); err != nil {
		return err
	}
	if len(adjusted) == 0 {
		return holdings.ErrNoTransactions
	}

	txns := plainTransactions(adjusted)
	tickers := ledger.Tickers(txns)
	begin, _ := ledger.Span(txns)
	end := common.Day(p.now().UTC())

	var overrides []*prices.Override
	var err error
	if p.conf.Overrides != "" {
		if overrides, err = prices.ReadOverridesFile(p.conf.Overrides); err != nil {
			return err
		}
	}

	delisted := map[string]bool{}
	if p.conf.Delisted != "" {
		if delisted, err = prices.ReadDelistedFile(p.conf.Delisted); err != nil {
			return err
		}
	}

	cache, err := prices.NewCache(p.conf.CacheSize)
	if err != nil {
		return err
	}

	resolver := &prices.Resolver{
		Primary:    p.primary,
		Secondary:  p.secondary,
		Cache:      cache,
		Overrides:  overrides,
		Delisted:   delisted,
		Aliases:    p.conf.Aliases,
		Benchmarks: p.conf.Benchmarks,
		BatchSize:  p.conf.BatchSize,
	}

	result, err := resolver.Resolve(ctx, tickers, begin, end)
	if err != nil {
		return err
	}

	fmt.Fprintln(p.out, result.Summary.Table())
	fmt.Fprintln(p.out, preview(result.Filled, previewRows))

	if err := p.saveFrame(rec, checkpoint.PricesRaw, result.Raw); err != nil {
		return err
	}
	if err := p.saveFrame(rec, checkpoint.PricesFilled, result.Filled); err != nil {
		return err
	}

	provenance := &PriceProvenance{
		Dates:   make([]string, result.Raw.Len()),
		Tickers: result.Provenance,
		Sources: result.Sources,
		Summary: result.Summary,
	}
	for idx, dt := range result.Raw.Dates {
		provenance.Dates[idx] = dt.Format(common.DateFormat)
	}
	if err := p.save(rec, checkpoint.PriceProvenance, provenance); err != nil {
		return err
	}

	note(rec, "%d tickers priced %s through %s", len(result.Summary.Tickers),
		begin.Format(common.DateFormat), end.Format(common.DateFormat))
	if len(result.Summary.Unresolved) > 0 {
		note(rec, "unresolved: %v", result.Summary.Unresolved)
	}
	if n := result.Summary.NumFailures(); n > 0 {
		note(rec, "%d provider failures", n)
	}
	return nil
}

func (p *Pipeline) buildHoldings(ctx context.Context, rec *checkpoint.StageRecord) error {
	var adjusted []*splits.AdjustedTransaction
	if _, err := p.store.Load(checkpoint.TransactionsSplitAdjusted, &adjusted); err != nil {
		return err
	}

	filled, err := p.store.LoadFrame(checkpoint.PricesFilled)
	if err != nil {
		return err
	}

	begin, end, err := holdings.Span(adjusted, filled.End())
	if err != nil {
		return err
	}

	positions, negatives := holdings.Build(adjusted, begin, end)
	values, err := holdings.Values(positions, filled)
	if err != nil {
		return err
	}
	mv, err := holdings.MarketValue(positions, filled)
	if err != nil {
		return err
	}

	fmt.Fprintln(p.out, holdings.Table(positions, values, negatives))
	fmt.Fprintln(p.out, preview(mv, previewRows))

	if err := p.saveFrame(rec, checkpoint.Holdings, positions); err != nil {
		return err
	}
	if err := p.saveFrame(rec, checkpoint.MarketValue, mv); err != nil {
		return err
	}

	note(rec, "%d tickers held over %d days", positions.ColCount(), positions.Len())
	for _, neg := range negatives {
		note(rec, "%s negative from %s (%g shares)", neg.Ticker, neg.Date.Format(common.DateFormat), neg.Shares)
	}
	return nil
}

func (p *Pipeline) extractCashFlow(ctx context.Context, rec *checkpoint.StageRecord) error {
	var txns []*ledger.Transaction
	if _, err := p.store.Load(checkpoint.TransactionsClean, &txns); err != nil {
		return err
	}

	cf, err := cashflow.Extract(txns)
	if err != nil {
		return err
	}

	summary := cashflow.Summarize(cf)
	log.Info().EmbedObject(summary).Msg("cash flows extracted")
	fmt.Fprintln(p.out, summary.Table())

	if err := p.saveFrame(rec, checkpoint.CashFlow, cf); err != nil {
		return err
	}

	note(rec, "%d days, %d with trades, net %.2f", summary.Days, summary.ActiveDays, summary.Net)
	return nil
}

func (p *Pipeline) computeTWRR(ctx context.Context, rec *checkpoint.StageRecord) error {
	mv, err := p.store.LoadFrame(checkpoint.MarketValue)
	if err != nil {
		return err
	}
	cf, err := p.store.LoadFrame(checkpoint.CashFlow)
	if err != nil {
		return err
	}

	index, err := twrr.Compute(mv, cf)
	if err != nil {
		return err
	}

	stats, err := twrr.Summarize(index)
	if err != nil {
		return err
	}

	log.Info().EmbedObject(stats).Msg("twrr computed")
	fmt.Fprintln(p.out, preview(index, previewRows))
	fmt.Fprintln(p.out, stats.Table())

	if err := p.saveFrame(rec, checkpoint.TWRR, index); err != nil {
		return err
	}

	note(rec, "total period TWRR %.2f%%", stats.TotalReturn*100)
	if stats.Years > 1 {
		note(rec, "annualized %.2f%%", stats.Annualized*100)
	}
	return nil
}
