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
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/penny-vault/twrr/calendar"
	"github.com/penny-vault/twrr/common"
	"github.com/rs/zerolog"
)

// Failure is a provider error recorded during resolution
type Failure struct {
	Tier     Source   `json:"tier"`
	Provider string   `json:"provider"`
	Tickers  []string `json:"tickers"`
	Err      string   `json:"error"`
}

// Summary reports how a resolver run went
type Summary struct {
	Begin       time.Time      `json:"begin"`
	End         time.Time      `json:"end"`
	Tickers     []string       `json:"tickers"`
	Resolved    map[Source]int `json:"resolved"`
	Unresolved  []string       `json:"unresolved"`
	Failures    []*Failure     `json:"failures"`
	Gaps        map[string]int `json:"trading_day_gaps"`
	CacheHits   int            `json:"cache_hits"`
	CacheMisses int            `json:"cache_misses"`
}

func newSummary(begin, end time.Time, tickers []string) *Summary {
	return &Summary{
		Begin:      begin,
		End:        end,
		Tickers:    tickers,
		Resolved:   make(map[Source]int),
		Unresolved: []string{},
		Failures:   []*Failure{},
		Gaps:       make(map[string]int),
	}
}

func (s *Summary) addFailure(tier Source, provider string, tickers []string, err error) {
	failed := make([]string, len(tickers))
	copy(failed, tickers)
	s.Failures = append(s.Failures, &Failure{
		Tier:     tier,
		Provider: provider,
		Tickers:  failed,
		Err:      err.Error(),
	})
}

// addGaps counts trading days without a price between the first and last value of col
func (s *Summary) addGaps(ticker string, dates []time.Time, col []float64) {
	first, last := -1, -1
	for idx, val := range col {
		if !math.IsNaN(val) {
			if first == -1 {
				first = idx
			}
			last = idx
		}
	}
	if first == -1 {
		return
	}

	gaps := 0
	for idx := first; idx <= last; idx++ {
		if math.IsNaN(col[idx]) && calendar.IsTradingDay(dates[idx]) {
			gaps++
		}
	}
	if gaps > 0 {
		s.Gaps[ticker] = gaps
	}
}

// NumFailures returns the number of tickers named in failures
func (s *Summary) NumFailures() int {
	cnt := 0
	for _, failure := range s.Failures {
		cnt += len(failure.Tickers)
	}
	return cnt
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler
func (s *Summary) MarshalZerologObject(e *zerolog.Event) {
	e.Int("NumTickers", len(s.Tickers))
	for _, src := range Sources {
		e.Int(string(src), s.Resolved[src])
	}
	e.Strs("Unresolved", s.Unresolved)
	e.Int("NumFailures", s.NumFailures())
	e.Int("GapTickers", len(s.Gaps))
	e.Int("CacheHits", s.CacheHits)
}

// Table renders the per-source counts, failures and gaps
func (s *Summary) Table() string {
	buf := &bytes.Buffer{}

	fmt.Fprintf(buf, "Prices %s to %s (%d tickers)\n", s.Begin.Format(common.DateFormat), s.End.Format(common.DateFormat), len(s.Tickers))

	counts := tablewriter.NewWriter(buf)
	counts.SetHeader([]string{"Source", "Cells"})
	counts.SetBorder(false)
	for _, src := range Sources {
		counts.Append([]string{string(src), fmt.Sprintf("%d", s.Resolved[src])})
	}
	counts.Render()

	if len(s.Unresolved) > 0 {
		fmt.Fprintf(buf, "\nUnresolved: %s\n", strings.Join(s.Unresolved, ", "))
	}

	if len(s.Failures) > 0 {
		buf.WriteString("\n")
		failures := tablewriter.NewWriter(buf)
		failures.SetHeader([]string{"Tier", "Provider", "Tickers", "Error"})
		failures.SetBorder(false)
		for _, failure := range s.Failures {
			failures.Append([]string{string(failure.Tier), failure.Provider, strings.Join(failure.Tickers, " "), failure.Err})
		}
		failures.Render()
	}

	if len(s.Gaps) > 0 {
		buf.WriteString("\n")
		tickers := make([]string, 0, len(s.Gaps))
		for ticker := range s.Gaps {
			tickers = append(tickers, ticker)
		}
		sort.Strings(tickers)

		gaps := tablewriter.NewWriter(buf)
		gaps.SetHeader([]string{"Ticker", "Missing Trading Days"})
		gaps.SetBorder(false)
		for _, ticker := range tickers {
			gaps.Append([]string{ticker, fmt.Sprintf("%d", s.Gaps[ticker])})
		}
		gaps.Render()
	}

	return buf.String()
}
