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

package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/penny-vault/twrr/common"
	"github.com/rs/zerolog/log"
)

const (
	ColTradeDate     = "Trade Date"
	ColOrderType     = "Order Type"
	ColSecurity      = "Security"
	ColQuantity      = "Quantity"
	ColExecutedPrice = "Executed Price"
)

// RawRow is a ledger row exactly as read from the source file
type RawRow struct {
	Line          int
	TradeDate     string
	OrderType     string
	Security      string
	Quantity      string
	ExecutedPrice string
}

// ReadFile opens fn and parses it with ReadCSV
func ReadFile(fn string) ([]*RawRow, error) {
	fh, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	rows, err := ReadCSV(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn, err)
	}
	return rows, nil
}

// ReadCSV parses a ledger export. Columns are located by header name; extra
// columns are ignored and rows where every field is blank are skipped
func ReadCSV(r io.Reader) ([]*RawRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyLedger
	}
	if err != nil {
		return nil, err
	}

	colIdx, err := common.ColumnIndex(header, ColTradeDate, ColOrderType, ColSecurity, ColQuantity, ColExecutedPrice)
	if err != nil {
		return nil, err
	}

	rows := make([]*RawRow, 0, 256)
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

		rows = append(rows, &RawRow{
			Line:          line,
			TradeDate:     common.Field(record, colIdx[ColTradeDate]),
			OrderType:     common.Field(record, colIdx[ColOrderType]),
			Security:      common.Field(record, colIdx[ColSecurity]),
			Quantity:      common.Field(record, colIdx[ColQuantity]),
			ExecutedPrice: common.Field(record, colIdx[ColExecutedPrice]),
		})
	}

	log.Debug().Int("NumRows", len(rows)).Msg("read ledger rows")
	return rows, nil
}
