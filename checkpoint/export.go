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
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/penny-vault/twrr/common"
	"github.com/penny-vault/twrr/dataframe"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(name)) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatParquet:
		return FormatParquet, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, name)
	}
}

// LongRow is one observation of a dataframe in long format
type LongRow struct {
	Date   string  `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Series string  `parquet:"name=series, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Value  float64 `parquet:"name=value, type=DOUBLE"`
}

// Long flattens df into (date, series, value) rows ordered by series then date. Missing
// values are skipped
func Long(df *dataframe.DataFrame) []*LongRow {
	rows := make([]*LongRow, 0, df.Len()*df.ColCount())
	for colIdx, colName := range df.ColNames {
		for row, dt := range df.Dates {
			val := df.Vals[colIdx][row]
			if math.IsNaN(val) {
				continue
			}
			rows = append(rows, &LongRow{
				Date:   dt.Format(common.DateFormat),
				Series: colName,
				Value:  val,
			})
		}
	}
	return rows
}

func formatFloat(val float64) string {
	if math.IsNaN(val) {
		return ""
	}
	return strconv.FormatFloat(val, 'f', -1, 64)
}

// WriteFrameCSV writes df in long (date,series,value) or wide (date,col...) layout
func WriteFrameCSV(w io.Writer, df *dataframe.DataFrame, long bool) error {
	out := csv.NewWriter(w)

	if long {
		if err := out.Write([]string{"date", "series", "value"}); err != nil {
			return err
		}
		for _, row := range Long(df) {
			if err := out.Write([]string{row.Date, row.Series, formatFloat(row.Value)}); err != nil {
				return err
			}
		}
	} else {
		if err := out.Write(append([]string{"date"}, df.ColNames...)); err != nil {
			return err
		}
		record := make([]string, df.ColCount()+1)
		for row, dt := range df.Dates {
			record[0] = dt.Format(common.DateFormat)
			for colIdx := range df.ColNames {
				record[colIdx+1] = formatFloat(df.Vals[colIdx][row])
			}
			if err := out.Write(record); err != nil {
				return err
			}
		}
	}

	out.Flush()
	return out.Error()
}

// Records is a plain table used to export artifacts that are not dataframes
type Records struct {
	Header []string
	Rows   [][]string
}

func WriteRecordsCSV(w io.Writer, records *Records) error {
	out := csv.NewWriter(w)
	if err := out.Write(records.Header); err != nil {
		return err
	}
	if err := out.WriteAll(records.Rows); err != nil {
		return err
	}
	return out.Error()
}

// WriteParquet writes rows to fn using schema, a pointer to the row struct
func WriteParquet(fn string, schema interface{}, rows []interface{}) error {
	fw, err := local.NewLocalFileWriter(fn)
	if err != nil {
		return err
	}

	pw, err := writer.NewParquetWriter(fw, schema, 4)
	if err != nil {
		fw.Close()
		return err
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range rows {
		if err := pw.Write(row); err != nil {
			fw.Close()
			return err
		}
	}

	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return err
	}
	return fw.Close()
}

// WriteFrameParquet writes df to fn in long format
func WriteFrameParquet(fn string, df *dataframe.DataFrame) error {
	long := Long(df)
	rows := make([]interface{}, len(long))
	for idx, row := range long {
		rows[idx] = *row
	}
	return WriteParquet(fn, new(LongRow), rows)
}
