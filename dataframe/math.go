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
	"math"

	"gonum.org/v1/gonum/floats"
)

// Count creates a new dataframe with the number of columns where the expression lambda func(float64) bool evaluates to true is placed
// in the `count` column
func (df *DataFrame) Count(lambda func(x float64) bool) *DataFrame {
	res := &DataFrame{
		Dates:    df.Dates,
		Vals:     [][]float64{make([]float64, df.Len())},
		ColNames: []string{"count"},
	}

	for rowIdx := range df.Dates {
		cnt := 0
		for _, col := range df.Vals {
			if lambda(col[rowIdx]) {
				cnt++
			}
		}
		res.Vals[0][rowIdx] = float64(cnt)
	}

	return res
}

// CumProd returns a new dataframe with the running product of each column
func (df *DataFrame) CumProd() *DataFrame {
	res := df.Copy()
	for _, col := range res.Vals {
		if len(col) == 0 {
			continue
		}
		floats.CumProd(col, col)
	}
	return res
}

// Mul multiplies all columns in dataframe df by the corresponding column in dataframe other and returns a new dataframe.
// Columns in df that are not in other are set to 0. Returns ErrDateIndexNotAligned if the row counts differ.
func (df *DataFrame) Mul(other *DataFrame) (*DataFrame, error) {
	if df.Len() != other.Len() {
		return nil, ErrDateIndexNotAligned
	}

	df = df.Copy()
	for idx, colName := range df.ColNames {
		if otherIdx := other.ColIndex(colName); otherIdx != -1 {
			floats.Mul(df.Vals[idx], other.Vals[otherIdx])
		} else {
			df.Vals[idx] = make([]float64, df.Len())
		}
	}
	return df, nil
}

// MulScalar multiplies all columns in dataframe df by the scalar and returns a new dataframe
func (df *DataFrame) MulScalar(scalar float64) *DataFrame {
	df = df.Copy()
	for colIdx := range df.ColNames {
		floats.Scale(scalar, df.Vals[colIdx])
	}
	return df
}

// RowSum adds all columns of each row and stores the result in a new single column dataframe
// named name. NaN values do not contribute to the sum
func (df *DataFrame) RowSum(name string) *DataFrame {
	res := &DataFrame{
		Dates:    df.Dates,
		ColNames: []string{name},
		Vals:     [][]float64{make([]float64, df.Len())},
	}

	row := make([]float64, 0, df.ColCount())
	for rowIdx := range df.Dates {
		row = row[:0]
		for _, col := range df.Vals {
			if !math.IsNaN(col[rowIdx]) {
				row = append(row, col[rowIdx])
			}
		}
		res.Vals[0][rowIdx] = floats.Sum(row)
	}

	return res
}

// Stats returns the sum, min and max of the named column. NaN values are skipped; a
// column without valid values returns NaN for all three
func (df *DataFrame) Stats(colName string) (sum, min, max float64) {
	col, err := df.Column(colName)
	if err != nil {
		return math.NaN(), math.NaN(), math.NaN()
	}

	valid := make([]float64, 0, len(col))
	for _, val := range col {
		if !math.IsNaN(val) {
			valid = append(valid, val)
		}
	}

	if len(valid) == 0 {
		return math.NaN(), math.NaN(), math.NaN()
	}

	return floats.Sum(valid), floats.Min(valid), floats.Max(valid)
}
