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

package dataframe

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/penny-vault/twrr/common"
)

// New creates a dataframe over dates with the named columns; every value is NaN
func New(dates []time.Time, colNames ...string) *DataFrame {
	df := &DataFrame{
		Dates:    dates,
		ColNames: colNames,
		Vals:     make([][]float64, len(colNames)),
	}

	for colIdx := range df.Vals {
		df.Vals[colIdx] = nanSlice(len(dates))
	}

	return df
}

// Append takes the date and values from other and appends them to df. If cols do not align, cols in df that are not in other are filled
// with NaN. If the start date of other is not after the last date of df then do nothing
func (df *DataFrame) Append(other *DataFrame) *DataFrame {
	if other.Len() == 0 {
		return df
	}

	if df.Len() != 0 && !other.Dates[0].After(df.Dates[len(df.Dates)-1]) {
		return df
	}

	df.Dates = append(df.Dates, other.Dates...)
	for colIdx, colName := range df.ColNames {
		if otherColIdx := other.ColIndex(colName); otherColIdx != -1 {
			df.Vals[colIdx] = append(df.Vals[colIdx], other.Vals[otherColIdx]...)
		} else {
			df.Vals[colIdx] = append(df.Vals[colIdx], nanSlice(other.Len())...)
		}
	}

	return df
}

// AsMap creates a map with the date as the key and the specified column as the value
func (df *DataFrame) AsMap(colName string) map[time.Time]float64 {
	res := make(map[time.Time]float64, df.Len())
	colIdx := df.ColIndex(colName)
	if colIdx == -1 {
		return res
	}

	for rowIdx, dt := range df.Dates {
		res[dt] = df.Vals[colIdx][rowIdx]
	}

	return res
}

// BFill replaces NaN values with the next valid value in the same column. Leading
// values are untouched when a column has no valid value after them
func (df *DataFrame) BFill() *DataFrame {
	for _, col := range df.Vals {
		next := math.NaN()
		for rowIdx := len(col) - 1; rowIdx >= 0; rowIdx-- {
			if math.IsNaN(col[rowIdx]) {
				col[rowIdx] = next
			} else {
				next = col[rowIdx]
			}
		}
	}
	return df
}

// ColIndex returns the index of the specified column or -1 if column doesn't exist
func (df *DataFrame) ColIndex(colName string) int {
	for idx, val := range df.ColNames {
		if colName == val {
			return idx
		}
	}

	return -1
}

// ColCount returns the number of columns in the dataframe
func (df *DataFrame) ColCount() int {
	return len(df.ColNames)
}

// Column returns the values of the named column
func (df *DataFrame) Column(colName string) ([]float64, error) {
	colIdx := df.ColIndex(colName)
	if colIdx == -1 {
		return nil, fmt.Errorf("%w: %s", ErrColumnNotFound, colName)
	}
	return df.Vals[colIdx], nil
}

// Copy creates a deep copy of the dataframe
func (df *DataFrame) Copy() *DataFrame {
	df2 := &DataFrame{
		ColNames: make([]string, len(df.ColNames)),
		Dates:    make([]time.Time, len(df.Dates)),
		Vals:     make([][]float64, len(df.Vals)),
	}

	copy(df2.ColNames, df.ColNames)
	copy(df2.Dates, df.Dates)

	for idx := range df2.Vals {
		df2.Vals[idx] = make([]float64, len(df.Vals[idx]))
		copy(df2.Vals[idx], df.Vals[idx])
	}

	return df2
}

// CumSum returns a new dataframe with the running total of each column. NaN values
// are treated as zero
func (df *DataFrame) CumSum() *DataFrame {
	res := df.Copy()
	for _, col := range res.Vals {
		total := 0.0
		for rowIdx, val := range col {
			if !math.IsNaN(val) {
				total += val
			}
			col[rowIdx] = total
		}
	}
	return res
}

// End returns the last date in the DataFrame
func (df *DataFrame) End() time.Time {
	if len(df.Dates) == 0 {
		return time.Time{}
	}
	return df.Dates[len(df.Dates)-1]
}

// FFill replaces NaN values with the last valid value in the same column
func (df *DataFrame) FFill() *DataFrame {
	for _, col := range df.Vals {
		last := math.NaN()
		for rowIdx, val := range col {
			if math.IsNaN(val) {
				col[rowIdx] = last
			} else {
				last = val
			}
		}
	}
	return df
}

// FillNaN replaces every remaining NaN with val
func (df *DataFrame) FillNaN(val float64) *DataFrame {
	for _, col := range df.Vals {
		for rowIdx := range col {
			if math.IsNaN(col[rowIdx]) {
				col[rowIdx] = val
			}
		}
	}
	return df
}

// Head returns a new dataframe with the first n rows
func (df *DataFrame) Head(n int) *DataFrame {
	if n > df.Len() {
		n = df.Len()
	}
	return df.slice(0, n)
}

// Insert a new column to the end of the dataframe
func (df *DataFrame) Insert(name string, col []float64) *DataFrame {
	df.ColNames = append(df.ColNames, name)
	df.Vals = append(df.Vals, col)
	return df
}

// InsertMap adds a new row to the dataframe. Date must be after the last date in the dataframe otherwise an
// error is returned. Columns missing from vals are set to NaN and additional keys are ignored
func (df *DataFrame) InsertMap(dt time.Time, vals map[string]float64) error {
	if df.Len() != 0 && !df.Dates[len(df.Dates)-1].Before(dt) {
		return fmt.Errorf("%w: %s is not after %s", ErrDateIndexNotAligned, dt.Format(common.DateFormat), df.End().Format(common.DateFormat))
	}

	df.Dates = append(df.Dates, dt)
	for colIdx, colName := range df.ColNames {
		if val, ok := vals[colName]; ok {
			df.Vals[colIdx] = append(df.Vals[colIdx], val)
		} else {
			df.Vals[colIdx] = append(df.Vals[colIdx], math.NaN())
		}
	}

	return nil
}

// Len returns the number of rows in the dataframe
func (df *DataFrame) Len() int {
	return len(df.Dates)
}

// Reindex conforms the dataframe to dates. Rows for dates that are not in the dataframe
// are set to fill; rows of the dataframe whose date is not in dates are dropped
func (df *DataFrame) Reindex(dates []time.Time, fill float64) *DataFrame {
	rowMap := make(map[time.Time]int, df.Len())
	for rowIdx, dt := range df.Dates {
		rowMap[dt] = rowIdx
	}

	res := &DataFrame{
		Dates:    make([]time.Time, len(dates)),
		ColNames: make([]string, len(df.ColNames)),
		Vals:     make([][]float64, len(df.ColNames)),
	}
	copy(res.Dates, dates)
	copy(res.ColNames, df.ColNames)

	for colIdx := range df.Vals {
		col := make([]float64, len(dates))
		for rowIdx, dt := range dates {
			if srcIdx, ok := rowMap[dt]; ok {
				col[rowIdx] = df.Vals[colIdx][srcIdx]
			} else {
				col[rowIdx] = fill
			}
		}
		res.Vals[colIdx] = col
	}

	return res
}

// ReindexColumns conforms the dataframe to colNames; columns that do not exist are
// created with every value set to fill
func (df *DataFrame) ReindexColumns(colNames []string, fill float64) *DataFrame {
	res := &DataFrame{
		Dates:    df.Dates,
		ColNames: make([]string, len(colNames)),
		Vals:     make([][]float64, len(colNames)),
	}
	copy(res.ColNames, colNames)

	for idx, colName := range colNames {
		if srcIdx := df.ColIndex(colName); srcIdx != -1 {
			res.Vals[idx] = df.Vals[srcIdx]
			continue
		}
		col := make([]float64, df.Len())
		for rowIdx := range col {
			col[rowIdx] = fill
		}
		res.Vals[idx] = col
	}

	return res
}

// Start returns the first date of the dataframe
func (df *DataFrame) Start() time.Time {
	if len(df.Dates) == 0 {
		return time.Time{}
	}
	return df.Dates[0]
}

// Table prints an ASCII formatted table
func (df *DataFrame) Table() string {
	if len(df.Dates) == 0 {
		return "<NO DATA>" // nothing to do as there is no data available in the dataframe
	}

	tableCols := append([]string{"Date"}, df.ColNames...)

	s := &strings.Builder{}
	table := tablewriter.NewWriter(s)
	table.SetHeader(tableCols)
	footer := make([]string, len(tableCols))
	footer[0] = "Num Rows"
	if len(footer) > 1 {
		footer[1] = fmt.Sprintf("%d", df.Len())
	}
	table.SetFooter(footer)
	table.SetBorder(false)

	for rowIdx, dt := range df.Dates {
		row := make([]string, 0, len(df.Vals)+1)
		row = append(row, dt.Format(common.DateFormat))
		for _, col := range df.Vals {
			row = append(row, fmt.Sprintf("%.4f", col[rowIdx]))
		}
		table.Append(row)
	}

	table.Render()
	return s.String()
}

// Tail returns a new dataframe with the last n rows
func (df *DataFrame) Tail(n int) *DataFrame {
	if n > df.Len() {
		n = df.Len()
	}
	return df.slice(df.Len()-n, df.Len())
}

// Trim the dataframe to the specified date range (inclusive)
func (df *DataFrame) Trim(begin, end time.Time) *DataFrame {
	if end.Before(begin) || df.Len() == 0 {
		return df.slice(0, 0)
	}

	if end.Before(df.Start()) || begin.After(df.End()) {
		return df.slice(0, 0)
	}

	beginIdx := sort.Search(len(df.Dates), func(i int) bool {
		return !df.Dates[i].Before(begin)
	})

	endIdx := sort.Search(len(df.Dates), func(i int) bool {
		return df.Dates[i].After(end)
	})

	return df.slice(beginIdx, endIdx)
}

// Value returns the value of colName on dt; NaN when either does not exist
func (df *DataFrame) Value(dt time.Time, colName string) float64 {
	colIdx := df.ColIndex(colName)
	if colIdx == -1 {
		return math.NaN()
	}

	rowIdx := sort.Search(len(df.Dates), func(i int) bool {
		return !df.Dates[i].Before(dt)
	})
	if rowIdx == len(df.Dates) || !df.Dates[rowIdx].Equal(dt) {
		return math.NaN()
	}

	return df.Vals[colIdx][rowIdx]
}

func (df *DataFrame) slice(begin, end int) *DataFrame {
	res := &DataFrame{
		Dates:    df.Dates[begin:end],
		ColNames: df.ColNames,
		Vals:     make([][]float64, len(df.Vals)),
	}
	for colIdx, col := range df.Vals {
		res.Vals[colIdx] = col[begin:end]
	}
	return res
}

func nanSlice(n int) []float64 {
	res := make([]float64, n)
	for idx := range res {
		res[idx] = math.NaN()
	}
	return res
}
