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

package database_test

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgconn"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pashagolub/pgxmock"
	"github.com/penny-vault/twrr/database"
	"github.com/penny-vault/twrr/dataframe"
	"github.com/penny-vault/twrr/twrr"
)

var _ = Describe("Database", func() {
	var (
		dbPool pgxmock.PgxConnIface
		df     *dataframe.DataFrame
		run    *database.Run
		ctx    context.Context
	)

	BeforeEach(func() {
		var err error
		ctx = context.Background()
		dbPool, err = pgxmock.NewConn()
		Expect(err).To(BeNil())
		database.SetPool(dbPool)

		dates := []time.Time{
			time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC),
			time.Date(2023, 1, 4, 0, 0, 0, 0, time.UTC),
		}
		df = dataframe.New(dates, twrr.MarketValueCol, twrr.CashFlowCol, twrr.FactorCol, twrr.IndexCol)
		df.Vals[0] = []float64{1000, 1260}
		df.Vals[1] = []float64{-1000, math.NaN()}
		df.Vals[2] = []float64{1, 1.05}
		df.Vals[3] = []float64{1, 1.05}

		run = &database.Run{
			ID:        uuid.MustParse("8d8b6d5e-4a70-4e3a-9d2f-6b1b0f7e3c11"),
			Portfolio: "household",
			Published: time.Date(2023, 1, 5, 12, 0, 0, 0, time.UTC),
			Stats:     &twrr.Stats{TotalReturn: 0.05, Annualized: math.NaN()},
		}
	})

	AfterEach(func() {
		Expect(dbPool.ExpectationsWereMet()).To(BeNil())
	})

	Context("with no connection", func() {
		It("refuses to begin a transaction", func() {
			database.SetPool(nil)
			_, err := database.Begin(ctx)
			Expect(err).To(MatchError(database.ErrNotConnected))
		})
	})

	It("refuses to connect without a url", func() {
		Expect(database.Connect(ctx, "")).To(MatchError(database.ErrNoURL))
	})

	It("creates both tables in one transaction", func() {
		dbPool.ExpectBegin()
		dbPool.ExpectExec("CREATE TABLE IF NOT EXISTS twrr_runs").WillReturnResult(pgconn.CommandTag("CREATE TABLE"))
		dbPool.ExpectExec("CREATE TABLE IF NOT EXISTS twrr_series").WillReturnResult(pgconn.CommandTag("CREATE TABLE"))
		dbPool.ExpectCommit()

		Expect(database.EnsureSchema(ctx)).To(Succeed())
	})

	It("rolls back when a table cannot be created", func() {
		dbPool.ExpectBegin()
		dbPool.ExpectExec("CREATE TABLE IF NOT EXISTS twrr_runs").WillReturnError(errors.New("permission denied"))
		dbPool.ExpectRollback()

		Expect(database.EnsureSchema(ctx)).ToNot(Succeed())
	})

	It("publishes the run and every row of the series", func() {
		dbPool.ExpectBegin()
		dbPool.ExpectExec("INSERT INTO twrr_runs").
			WithArgs(run.ID, "household", df.Start(), df.End(), 0.05, nil, run.Published).
			WillReturnResult(pgconn.CommandTag("INSERT 0 1"))
		dbPool.ExpectExec("DELETE FROM twrr_series").WithArgs("household").
			WillReturnResult(pgconn.CommandTag("DELETE 0"))
		dbPool.ExpectExec("INSERT INTO twrr_series").
			WithArgs("household", df.Dates[0], 1000.0, -1000.0, 1.0, 1.0, run.ID).
			WillReturnResult(pgconn.CommandTag("INSERT 0 1"))
		dbPool.ExpectExec("INSERT INTO twrr_series").
			WithArgs("household", df.Dates[1], 1260.0, nil, 1.05, 1.05, run.ID).
			WillReturnResult(pgconn.CommandTag("INSERT 0 1"))
		dbPool.ExpectCommit()

		n, err := database.Publish(ctx, run, df)
		Expect(err).To(BeNil())
		Expect(n).To(Equal(2))
	})

	It("rolls back when a series row fails", func() {
		dbPool.ExpectBegin()
		dbPool.ExpectExec("INSERT INTO twrr_runs").WillReturnResult(pgconn.CommandTag("INSERT 0 1"))
		dbPool.ExpectExec("DELETE FROM twrr_series").WillReturnResult(pgconn.CommandTag("DELETE 0"))
		dbPool.ExpectExec("INSERT INTO twrr_series").WillReturnError(errors.New("disk full"))
		dbPool.ExpectRollback()

		n, err := database.Publish(ctx, run, df)
		Expect(err).To(MatchError(ContainSubstring("insert 2023-01-03")))
		Expect(n).To(Equal(0))
	})

	It("rejects a frame without the twrr columns", func() {
		bad := dataframe.New(df.Dates, twrr.MarketValueCol)
		_, err := database.Publish(ctx, run, bad)
		Expect(err).To(MatchError(dataframe.ErrColumnNotFound))
	})
})
