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

package database

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/penny-vault/twrr/dataframe"
	"github.com/penny-vault/twrr/twrr"
	"github.com/rs/zerolog/log"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS twrr_runs (
		run_id UUID PRIMARY KEY,
		portfolio TEXT NOT NULL,
		begin_date DATE NOT NULL,
		end_date DATE NOT NULL,
		total_return DOUBLE PRECISION,
		annualized_return DOUBLE PRECISION,
		published TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS twrr_series (
		portfolio TEXT NOT NULL,
		event_date DATE NOT NULL,
		market_value DOUBLE PRECISION,
		cash_flow DOUBLE PRECISION,
		factor DOUBLE PRECISION,
		twrr DOUBLE PRECISION,
		run_id UUID NOT NULL,
		PRIMARY KEY (portfolio, event_date)
	)`,
}

// Run identifies one published computation
type Run struct {
	ID        uuid.UUID
	Portfolio string
	Published time.Time
	Stats     *twrr.Stats
}

// EnsureSchema creates the publish tables when they do not exist
func EnsureSchema(ctx context.Context) error {
	trx, err := Begin(ctx)
	if err != nil {
		return err
	}

	for _, sql := range schema {
		if _, err := trx.Exec(ctx, sql); err != nil {
			log.Error().Stack().Err(err).Str("Query", sql).Msg("could not create table")
			rollback(ctx, trx)
			return err
		}
	}

	return trx.Commit(ctx)
}

func nullable(val float64) interface{} {
	if math.IsNaN(val) || math.IsInf(val, 0) {
		return nil
	}
	return val
}

// Publish replaces the stored series of run.Portfolio with the output of twrr.Compute and
// records the run. Everything happens in a single transaction
func Publish(ctx context.Context, run *Run, df *dataframe.DataFrame) (int, error) {
	cols := make([][]float64, 4)
	for idx, name := range []string{twrr.MarketValueCol, twrr.CashFlowCol, twrr.FactorCol, twrr.IndexCol} {
		col, err := df.Column(name)
		if err != nil {
			return 0, err
		}
		cols[idx] = col
	}

	subLog := log.With().Str("RunID", run.ID.String()).Str("Portfolio", run.Portfolio).Logger()

	trx, err := Begin(ctx)
	if err != nil {
		return 0, err
	}

	var totalReturn, annualized interface{}
	if run.Stats != nil {
		totalReturn = nullable(run.Stats.TotalReturn)
		annualized = nullable(run.Stats.Annualized)
	}

	sql := `INSERT INTO twrr_runs (run_id, portfolio, begin_date, end_date, total_return, annualized_return, published)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := trx.Exec(ctx, sql, run.ID, run.Portfolio, df.Start(), df.End(), totalReturn, annualized, run.Published); err != nil {
		subLog.Error().Stack().Err(err).Str("Query", sql).Msg("could not record run")
		rollback(ctx, trx)
		return 0, err
	}

	sql = `DELETE FROM twrr_series WHERE portfolio = $1`
	if _, err := trx.Exec(ctx, sql, run.Portfolio); err != nil {
		subLog.Error().Stack().Err(err).Str("Query", sql).Msg("could not clear previous series")
		rollback(ctx, trx)
		return 0, err
	}

	sql = `INSERT INTO twrr_series (portfolio, event_date, market_value, cash_flow, factor, twrr, run_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for row, dt := range df.Dates {
		_, err := trx.Exec(ctx, sql, run.Portfolio, dt,
			nullable(cols[0][row]), nullable(cols[1][row]), nullable(cols[2][row]), nullable(cols[3][row]), run.ID)
		if err != nil {
			subLog.Error().Stack().Err(err).Str("Query", sql).Time("Date", dt).Msg("could not insert series row")
			rollback(ctx, trx)
			return 0, fmt.Errorf("insert %s: %w", dt.Format("2006-01-02"), err)
		}
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Error().Stack().Err(err).Msg("could not commit transaction")
		return 0, err
	}

	subLog.Info().Int("NumRows", df.Len()).Msg("published twrr series")
	return df.Len(), nil
}
