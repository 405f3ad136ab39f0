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

package checkpoint

import (
	"fmt"
	"math"
	"time"

	"github.com/penny-vault/twrr/common"
	"github.com/penny-vault/twrr/dataframe"
)

// Frame is the serialized form of a dataframe. Missing values are encoded as null
type Frame struct {
	Dates   []string     `json:"dates"`
	Columns []string     `json:"columns"`
	Values  [][]*float64 `json:"values"`
}

func FromDataFrame(df *dataframe.DataFrame) *Frame {
	frame := &Frame{
		Dates:   make([]string, len(df.Dates)),
		Columns: make([]string, len(df.ColNames)),
		Values:  make([][]*float64, len(df.Vals)),
	}

	for idx, dt := range df.Dates {
		frame.Dates[idx] = dt.Format(common.DateFormat)
	}
	copy(frame.Columns, df.ColNames)

	for colIdx, col := range df.Vals {
		vals := make([]*float64, len(col))
		for row := range col {
			if math.IsNaN(col[row]) || math.IsInf(col[row], 0) {
				continue
			}
			val := col[row]
			vals[row] = &val
		}
		frame.Values[colIdx] = vals
	}

	return frame
}

func (f *Frame) DataFrame() (*dataframe.DataFrame, error) {
	dates := make([]time.Time, len(f.Dates))
	for idx, val := range f.Dates {
		dt, err := time.Parse(common.DateFormat, val)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid date %q", ErrCorrupt, val)
		}
		dates[idx] = dt
	}

	if len(f.Values) != len(f.Columns) {
		return nil, fmt.Errorf("%w: %d columns but %d value arrays", ErrCorrupt, len(f.Columns), len(f.Values))
	}

	df := dataframe.New(dates, f.Columns...)
	for colIdx, vals := range f.Values {
		if len(vals) != len(dates) {
			return nil, fmt.Errorf("%w: column %s has %d rows, expected %d", ErrCorrupt, f.Columns[colIdx], len(vals), len(dates))
		}
		for row, val := range vals {
			if val != nil {
				df.Vals[colIdx][row] = *val
			}
		}
	}
	return df, nil
}

// SaveFrame stores df as artifact
func (s *Store) SaveFrame(artifact Artifact, df *dataframe.DataFrame) (*Header, error) {
	return s.Save(artifact, FromDataFrame(df))
}

// LoadFrame reads a dataframe artifact
func (s *Store) LoadFrame(artifact Artifact) (*dataframe.DataFrame, error) {
	frame := &Frame{}
	if _, err := s.Load(artifact, frame); err != nil {
		return nil, err
	}
	return frame.DataFrame()
}
