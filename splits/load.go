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

package splits

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/penny-vault/twrr/common"
	"github.com/rs/zerolog/log"
)

const (
	ColSymbol = "Symbol"
	ColDate   = "Split Date"
	ColRatio  = "Split Ratio"
)

var dateLayouts = []string{"1/2/2006", common.DateFormat}

// ReadFile opens fn and parses it with ReadCSV
func ReadFile(fn string) ([]*Event, error) {
	fh, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	events, err := ReadCSV(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	return events, nil
}

// ReadCSV parses a split history with Symbol, Split Date and Split Ratio columns.
// Any malformed date or ratio is fatal
func ReadCSV(r io.Reader) ([]*Event, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []*Event{}, nil
	}
	if err != nil {
		return nil, err
	}

	colIdx, err := common.ColumnIndex(header, ColSymbol, ColDate, ColRatio)
	if err != nil {
		return nil, err
	}

	events := make([]*Event, 0, 32)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := reader.FieldPos(0)

		if common.BlankRecord(record) {
			continue
		}

		dateStr := common.Field(record, colIdx[ColDate])
		effective, err := parseDate(dateStr)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w %q", line, ErrInvalidDate, dateStr)
		}

		ev, err := NewEvent(common.Field(record, colIdx[ColSymbol]), effective, common.Field(record, colIdx[ColRatio]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		events = append(events, ev)
	}

	log.Debug().Int("NumSplits", len(events)).Msg("read split history")
	return events, nil
}

func parseDate(val string) (time.Time, error) {
	var err error
	for _, layout := range dateLayouts {
		var dt time.Time
		if dt, err = time.ParseInLocation(layout, val, time.UTC); err == nil {
			return dt, nil
		}
	}
	return time.Time{}, err
}
