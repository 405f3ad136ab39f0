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
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/penny-vault/twrr/common"
	"github.com/rs/zerolog/log"
)

const (
	ColOverrideDate   = "date"
	ColOverrideTicker = "ticker"
	ColOverridePrice  = "adj_close"
	ColDelistedTicker = "ticker"
)

var (
	ErrInvalidOverride = errors.New("invalid override row")
)

var overrideDateLayouts = []string{common.DateFormat, "1/2/2006"}

// Override is a manually supplied closing price
type Override struct {
	Date     time.Time
	Ticker   string
	AdjClose float64
}

// ReadOverridesFile parses the overrides CSV at fn. A missing file yields no overrides.
func ReadOverridesFile(fn string) ([]*Override, error) {
	fh, err := os.Open(fn)
	if errors.Is(err, os.ErrNotExist) {
		log.Debug().Str("FileName", fn).Msg("no overrides file")
		return []*Override{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	overrides, err := ReadOverrides(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	return overrides, nil
}

// ReadOverrides parses date,ticker,adj_close rows
func ReadOverrides(r io.Reader) ([]*Override, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []*Override{}, nil
	}
	if err != nil {
		return nil, err
	}

	colIdx, err := common.ColumnIndex(header, ColOverrideDate, ColOverrideTicker, ColOverridePrice)
	if err != nil {
		return nil, err
	}

	overrides := make([]*Override, 0, 16)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if common.BlankRecord(record) {
			continue
		}
		line, _ := reader.FieldPos(0)

		dt, err := parseOverrideDate(common.Field(record, colIdx[ColOverrideDate]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w: %s", line, ErrInvalidOverride, err)
		}

		ticker := common.NormalizeTicker(common.Field(record, colIdx[ColOverrideTicker]))
		if ticker == "" {
			return nil, fmt.Errorf("line %d: %w: empty ticker", line, ErrInvalidOverride)
		}

		price, err := strconv.ParseFloat(common.Field(record, colIdx[ColOverridePrice]), 64)
		if err != nil || !valid(price) {
			return nil, fmt.Errorf("line %d: %w: adj_close must be a positive number", line, ErrInvalidOverride)
		}

		overrides = append(overrides, &Override{Date: dt, Ticker: ticker, AdjClose: price})
	}

	return overrides, nil
}

func parseOverrideDate(val string) (time.Time, error) {
	var err error
	for _, layout := range overrideDateLayouts {
		var dt time.Time
		if dt, err = time.Parse(layout, val); err == nil {
			return common.Day(dt), nil
		}
	}
	return time.Time{}, err
}

// ReadDelistedFile parses a CSV with a ticker column. A missing file yields an empty set.
func ReadDelistedFile(fn string) (map[string]bool, error) {
	fh, err := os.Open(fn)
	if errors.Is(err, os.ErrNotExist) {
		log.Debug().Str("FileName", fn).Msg("no delisted file")
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	delisted, err := ReadDelisted(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	return delisted, nil
}

func ReadDelisted(r io.Reader) (map[string]bool, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	delisted := make(map[string]bool)

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return delisted, nil
	}
	if err != nil {
		return nil, err
	}

	colIdx, err := common.ColumnIndex(header, ColDelistedTicker)
	if err != nil {
		return nil, err
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if ticker := common.NormalizeTicker(common.Field(record, colIdx[ColDelistedTicker])); ticker != "" {
			delisted[ticker] = true
		}
	}

	return delisted, nil
}

// AppendOverrides merges rows into the overrides CSV at fn. Rows are keyed by (date,
// ticker) with later rows replacing earlier ones and the file is rewritten sorted by
// ticker then date.
func AppendOverrides(fn string, rows []*Override) (int, error) {
	existing, err := ReadOverridesFile(fn)
	if err != nil {
		return 0, err
	}

	all := append(existing, rows...)
	for _, row := range all {
		row.Date = common.Day(row.Date)
		row.Ticker = common.NormalizeTicker(row.Ticker)
		if row.Ticker == "" || !valid(row.AdjClose) {
			return 0, fmt.Errorf("%w: %s %s %f", ErrInvalidOverride, row.Ticker, row.Date.Format(common.DateFormat), row.AdjClose)
		}
	}

	out := latestOverrides(all)
	if err := writeOverrides(fn, out); err != nil {
		return 0, err
	}

	log.Info().Str("FileName", fn).Int("Appended", len(rows)).Int("Total", len(out)).Msg("updated overrides")
	return len(out), nil
}

// latestOverrides keeps the last row for every (date, ticker) pair, sorted by ticker then date
func latestOverrides(rows []*Override) []*Override {
	type key struct {
		date   time.Time
		ticker string
	}
	merged := make(map[key]*Override, len(rows))
	for _, row := range rows {
		merged[key{date: common.Day(row.Date), ticker: row.Ticker}] = row
	}

	out := make([]*Override, 0, len(merged))
	for _, row := range merged {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ticker != out[j].Ticker {
			return out[i].Ticker < out[j].Ticker
		}
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

func writeOverrides(fn string, rows []*Override) error {
	if dir := filepath.Dir(fn); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(fn), ".overrides-*.csv")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	writer := csv.NewWriter(tmp)
	if err := writer.Write([]string{ColOverrideDate, ColOverrideTicker, ColOverridePrice}); err != nil {
		tmp.Close()
		return err
	}
	for _, row := range rows {
		record := []string{
			row.Date.Format(common.DateFormat),
			row.Ticker,
			strconv.FormatFloat(row.AdjClose, 'f', -1, 64),
		}
		if err := writer.Write(record); err != nil {
			tmp.Close()
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), fn)
}
