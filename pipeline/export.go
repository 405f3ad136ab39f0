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

package pipeline

import (
	"io"
	"os"

	"github.com/penny-vault/twrr/checkpoint"
	"github.com/penny-vault/twrr/common"
	"github.com/penny-vault/twrr/ledger"
	"github.com/penny-vault/twrr/splits"
	"github.com/rs/zerolog/log"
)

// Stdout as an export destination writes CSV to standard output
const Stdout = "-"

type TransactionRow struct {
	TradeDate     string  `parquet:"name=trade_date, type=BYTE_ARRAY, convertedtype=UTF8"`
	OrderType     string  `parquet:"name=order_type, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Security      string  `parquet:"name=security, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Quantity      float64 `parquet:"name=quantity, type=DOUBLE"`
	ExecutedPrice float64 `parquet:"name=executed_price, type=DOUBLE"`
	TradeValue    float64 `parquet:"name=trade_value, type=DOUBLE"`
}

type AdjustedTransactionRow struct {
	TradeDate        string  `parquet:"name=trade_date, type=BYTE_ARRAY, convertedtype=UTF8"`
	OrderType        string  `parquet:"name=order_type, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Security         string  `parquet:"name=security, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Quantity         float64 `parquet:"name=quantity, type=DOUBLE"`
	ExecutedPrice    float64 `parquet:"name=executed_price, type=DOUBLE"`
	TradeValue       float64 `parquet:"name=trade_value, type=DOUBLE"`
	AdjustedQuantity float64 `parquet:"name=adjusted_quantity, type=DOUBLE"`
	SplitFactor      float64 `parquet:"name=split_adjustment_factor, type=DOUBLE"`
}

type ProvenanceRow struct {
	Date   string `parquet:"name=date, type=BYTE_ARRAY, convertedtype=UTF8"`
	Ticker string `parquet:"name=ticker, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Source string `parquet:"name=source, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
}

var (
	transactionHeader         = []string{"trade_date", "order_type", "security", "quantity", "executed_price", "trade_value"}
	adjustedTransactionHeader = append(append([]string{}, transactionHeader...), "adjusted_quantity", "split_adjustment_factor")
	provenanceHeader          = []string{"date", "ticker", "source"}
)

func transactionRecord(txn *ledger.Transaction) []string {
	return []string{
		txn.TradeDate.Format(common.DateFormat),
		string(txn.OrderType),
		txn.Security,
		txn.Quantity.String(),
		txn.ExecutedPrice.String(),
		txn.TradeValue.String(),
	}
}

func transactionRow(txn *ledger.Transaction) TransactionRow {
	return TransactionRow{
		TradeDate:     txn.TradeDate.Format(common.DateFormat),
		OrderType:     string(txn.OrderType),
		Security:      txn.Security,
		Quantity:      txn.Quantity.InexactFloat64(),
		ExecutedPrice: txn.ExecutedPrice.InexactFloat64(),
		TradeValue:    txn.TradeValue.InexactFloat64(),
	}
}

// provenanceRows lists the source of every price cell ordered by ticker then date. Cells
// no tier could fill carry an empty source
func provenanceRows(prov *PriceProvenance) []ProvenanceRow {
	rows := make([]ProvenanceRow, 0, len(prov.Tickers)*len(prov.Dates))
	for _, ticker := range prov.Tickers {
		sources := prov.Sources[ticker.Ticker]
		for idx, dt := range prov.Dates {
			row := ProvenanceRow{Date: dt, Ticker: ticker.Ticker}
			if idx < len(sources) {
				row.Source = string(sources[idx])
			}
			rows = append(rows, row)
		}
	}
	return rows
}

// Export writes artifact to dest. Dataframes are written wide unless long is set; parquet
// output is always long
func (p *Pipeline) Export(artifact checkpoint.Artifact, format checkpoint.Format, dest string, long bool) error {
	if format == checkpoint.FormatParquet && dest == Stdout {
		return ErrStdoutParquet
	}

	subLog := log.With().Str("Artifact", string(artifact)).Str("Format", string(format)).Str("Destination", dest).Logger()

	var err error
	if format == checkpoint.FormatParquet {
		err = p.exportParquet(artifact, dest)
	} else {
		err = p.exportCSV(artifact, dest, long)
	}

	if err != nil {
		subLog.Error().Err(err).Msg("export failed")
		return err
	}
	subLog.Info().Msg("exported artifact")
	return nil
}

func (p *Pipeline) exportCSV(artifact checkpoint.Artifact, dest string, long bool) error {
	var records *checkpoint.Records

	switch artifact {
	case checkpoint.TransactionsClean:
		var txns []*ledger.Transaction
		if _, err := p.store.Load(artifact, &txns); err != nil {
			return err
		}
		records = &checkpoint.Records{Header: transactionHeader, Rows: make([][]string, len(txns))}
		for idx, txn := range txns {
			records.Rows[idx] = transactionRecord(txn)
		}
	case checkpoint.TransactionsSplitAdjusted:
		var txns []*splits.AdjustedTransaction
		if _, err := p.store.Load(artifact, &txns); err != nil {
			return err
		}
		records = &checkpoint.Records{Header: adjustedTransactionHeader, Rows: make([][]string, len(txns))}
		for idx, txn := range txns {
			records.Rows[idx] = append(transactionRecord(&txn.Transaction), txn.AdjustedQuantity.String(), txn.SplitFactor.String())
		}
	case checkpoint.PriceProvenance:
		prov := &PriceProvenance{}
		if _, err := p.store.Load(artifact, prov); err != nil {
			return err
		}
		rows := provenanceRows(prov)
		records = &checkpoint.Records{Header: provenanceHeader, Rows: make([][]string, len(rows))}
		for idx, row := range rows {
			records.Rows[idx] = []string{row.Date, row.Ticker, row.Source}
		}
	}

	if records == nil {
		df, err := p.store.LoadFrame(artifact)
		if err != nil {
			return err
		}
		return writeTo(dest, func(w io.Writer) error {
			return checkpoint.WriteFrameCSV(w, df, long)
		})
	}

	return writeTo(dest, func(w io.Writer) error {
		return checkpoint.WriteRecordsCSV(w, records)
	})
}

func (p *Pipeline) exportParquet(artifact checkpoint.Artifact, dest string) error {
	switch artifact {
	case checkpoint.TransactionsClean:
		var txns []*ledger.Transaction
		if _, err := p.store.Load(artifact, &txns); err != nil {
			return err
		}
		rows := make([]interface{}, len(txns))
		for idx, txn := range txns {
			rows[idx] = transactionRow(txn)
		}
		return checkpoint.WriteParquet(dest, new(TransactionRow), rows)
	case checkpoint.TransactionsSplitAdjusted:
		var txns []*splits.AdjustedTransaction
		if _, err := p.store.Load(artifact, &txns); err != nil {
			return err
		}
		rows := make([]interface{}, len(txns))
		for idx, txn := range txns {
			base := transactionRow(&txn.Transaction)
			rows[idx] = AdjustedTransactionRow{
				TradeDate:        base.TradeDate,
				OrderType:        base.OrderType,
				Security:         base.Security,
				Quantity:         base.Quantity,
				ExecutedPrice:    base.ExecutedPrice,
				TradeValue:       base.TradeValue,
				AdjustedQuantity: txn.AdjustedQuantity.InexactFloat64(),
				SplitFactor:      txn.SplitFactor.InexactFloat64(),
			}
		}
		return checkpoint.WriteParquet(dest, new(AdjustedTransactionRow), rows)
	case checkpoint.PriceProvenance:
		prov := &PriceProvenance{}
		if _, err := p.store.Load(artifact, prov); err != nil {
			return err
		}
		provRows := provenanceRows(prov)
		rows := make([]interface{}, len(provRows))
		for idx, row := range provRows {
			rows[idx] = row
		}
		return checkpoint.WriteParquet(dest, new(ProvenanceRow), rows)
	default:
		df, err := p.store.LoadFrame(artifact)
		if err != nil {
			return err
		}
		return checkpoint.WriteFrameParquet(dest, df)
	}
}

func writeTo(dest string, write func(io.Writer) error) error {
	if dest == Stdout {
		return write(os.Stdout)
	}

	fh, err := os.Create(dest)
	if err != nil {
		return err
	}
	if err := write(fh); err != nil {
		fh.Close()
		return err
	}
	return fh.Close()
}
