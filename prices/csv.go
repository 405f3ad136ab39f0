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
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/penny-vault/twrr/common"
	"github.com/rocketlaunchr/dataframe-go/imports"
)

// csvLayout names the columns of a provider's daily CSV export
type csvLayout struct {
	date     string
	close    string
	adjClose string
}

var floatConverter = imports.Converter{
	ConcreteType: float64(0),
	ConverterFunc: func(in interface{}) (interface{}, error) {
		v, err := strconv.ParseFloat(strings.TrimSpace(in.(string)), 64)
		if err != nil {
			return math.NaN(), nil
		}
		return v, nil
	},
}

var dateConverter = imports.Converter{
	ConcreteType: time.Time{},
	ConverterFunc: func(in interface{}) (interface{}, error) {
		dt, err := time.Parse(common.DateFormat, strings.TrimSpace(in.(string)))
		if err != nil {
			return nil, err
		}
		return dt, nil
	},
}

// parseCSVQuotes decodes a daily price CSV into quotes sorted by date
func parseCSVQuotes(ctx context.Context, body []byte, layout csvLayout) ([]Quote, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || !bytes.Contains(body, []byte(layout.date)) {
		return nil, ErrNotFound
	}

	dictate := map[string]interface{}{
		layout.date:  dateConverter,
		layout.close: floatConverter,
	}
	if layout.adjClose != "" {
		dictate[layout.adjClose] = floatConverter
	}

	df, err := imports.LoadFromCSV(ctx, bytes.NewReader(body), imports.CSVLoadOptions{
		DictateDataType: dictate,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformedReply, err)
	}

	dateIdx, err := df.NameToColumn(layout.date)
	if err != nil {
		return nil, fmt.Errorf("%w: missing %s column", ErrMalformedReply, layout.date)
	}
	closeIdx, err := df.NameToColumn(layout.close)
	if err != nil {
		return nil, fmt.Errorf("%w: missing %s column", ErrMalformedReply, layout.close)
	}
	adjIdx := closeIdx
	if layout.adjClose != "" {
		if adjIdx, err = df.NameToColumn(layout.adjClose); err != nil {
			return nil, fmt.Errorf("%w: missing %s column", ErrMalformedReply, layout.adjClose)
		}
	}

	nrows := df.NRows()
	quotes := make([]Quote, 0, nrows)
	for row := 0; row < nrows; row++ {
		dt, ok := df.Series[dateIdx].Value(row).(time.Time)
		if !ok {
			continue
		}
		quote := Quote{
			Date:     common.Day(dt),
			Close:    seriesFloat(df.Series[closeIdx].Value(row)),
			AdjClose: seriesFloat(df.Series[adjIdx].Value(row)),
		}
		if math.IsNaN(quote.Close) && math.IsNaN(quote.AdjClose) {
			continue
		}
		quotes = append(quotes, quote)
	}

	if len(quotes) == 0 {
		return nil, ErrNotFound
	}

	sort.SliceStable(quotes, func(i, j int) bool {
		return quotes[i].Date.Before(quotes[j].Date)
	})

	return quotes, nil
}

func seriesFloat(v interface{}) float64 {
	if f, ok := v.(float64); ok {
		return f
	}
	return math.NaN()
}
