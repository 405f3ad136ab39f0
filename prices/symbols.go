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
	"sort"
	"strings"
)

// DefaultBenchmarks are resolved alongside the portfolio's tickers for reporting
var DefaultBenchmarks = []string{"^GSPC", "^IXIC", "^DJI", "^N225", "^HSI", "^SSEC"}

// DefaultAliases maps ledger tickers to the symbols market data providers expect
var DefaultAliases = map[string]string{
	"BRKB":  "BRK-B",
	"BF.B":  "BF-B",
	"BF_B":  "BF-B",
	"^SSEC": "000001.SS",
}

// UseRawClose reports whether ticker should be valued at its raw close instead of the
// dividend adjusted close. Symbols ending in X (leveraged and inverse products, mutual
// funds) are quoted raw
func UseRawClose(ticker string) bool {
	return strings.HasSuffix(ticker, "X")
}

// symbolMap translates between portfolio tickers and provider symbols
type symbolMap struct {
	toProvider map[string]string
	toTicker   map[string]string
}

func newSymbolMap(aliases map[string]string) *symbolMap {
	m := &symbolMap{
		toProvider: make(map[string]string, len(aliases)),
		toTicker:   make(map[string]string, len(aliases)),
	}
	for ticker, symbol := range aliases {
		m.toProvider[strings.ToUpper(ticker)] = symbol
		m.toTicker[symbol] = strings.ToUpper(ticker)
	}
	return m
}

func (m *symbolMap) symbol(ticker string) string {
	if symbol, ok := m.toProvider[ticker]; ok {
		return symbol
	}
	return ticker
}

func (m *symbolMap) symbols(tickers []string) []string {
	res := make([]string, len(tickers))
	for idx, ticker := range tickers {
		res[idx] = m.symbol(ticker)
	}
	return res
}

// requestedTickers returns the sorted portfolio tickers followed by any benchmark
// that is not already held
func requestedTickers(tickers, benchmarks []string) []string {
	seen := make(map[string]bool, len(tickers)+len(benchmarks))
	res := make([]string, 0, len(tickers)+len(benchmarks))

	sorted := make([]string, len(tickers))
	copy(sorted, tickers)
	sort.Strings(sorted)

	for _, ticker := range append(sorted, benchmarks...) {
		if ticker == "" || seen[ticker] {
			continue
		}
		seen[ticker] = true
		res = append(res, ticker)
	}
	return res
}

func partitionArray(arr []string, size int) [][]string {
	if size <= 0 {
		size = len(arr)
	}

	chunks := make([][]string, 0, len(arr)/size+1)
	for begin := 0; begin < len(arr); begin += size {
		end := begin + size
		if end > len(arr) {
			end = len(arr)
		}
		chunks = append(chunks, arr[begin:end])
	}
	return chunks
}
