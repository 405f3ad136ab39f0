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

package tradecron

import (
	"errors"
	"strings"
	"time"

	"github.com/penny-vault/twrr/calendar"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

const (
	AtOpen     = "@open"
	AtClose    = "@close"
	AtWeekEnd  = "@weekend"
	AtMonthEnd = "@monthend"
)

const maxIters = 5000

var (
	ErrConflictingModifiers = errors.New("schedule has conflicting modifiers")
	ErrUnknownModifier      = errors.New("unknown schedule modifier")
	ErrMalformedTimeSpec    = errors.New("malformed time spec")
	ErrFieldOutOfBounds     = errors.New("time spec field out of bounds")
	ErrEmptySpec            = errors.New("schedule is empty")
)

type MarketHours struct {
	Open  int
	Close int
}

var RegularHours = MarketHours{
	Open:  930,
	Close: 1600,
}

// TradeCron is a cron.Schedule whose activations only fall on NYSE trading days. It accepts
// the standard CRON format: Minutes(Min) Hours(H) DayOfMonth(DoM) Month(M) DayOfWeek(DoW)
// with trailing fields optional, plus market-aware modifiers:
//
//	@open      - minute and hour fields are offsets from the market open
//	@close     - minute and hour fields are offsets from the market close
//	@weekend   - only the last trading day of the week
//	@monthend  - only the last trading day of the month
//
// Examples:
//   - 30 minutes after the close on every trading day: @close 30
//   - market close on the last trading day of the month: @close @monthend
//   - 6pm Eastern on trading days: 0 18
type TradeCron struct {
	ScheduleString string
	TimeSpec       string
	TimeFlag       string
	DateFlag       string

	schedule cron.Schedule
	tz       *time.Location
}

var _ cron.Schedule = (*TradeCron)(nil)

func New(cronSpec string, hours MarketHours) (*TradeCron, error) {
	tz, err := time.LoadLocation("America/New_York")
	if err != nil {
		return nil, err
	}

	tokens := expandBriefFormat(strings.Fields(cronSpec))
	if len(tokens) == 0 {
		return nil, ErrEmptySpec
	}

	timeSpecTokens := make([]string, 0, 5)
	specialTokens := make([]string, 0, 2)
	for _, token := range tokens {
		if token[0] == '@' {
			specialTokens = append(specialTokens, token)
		} else {
			timeSpecTokens = append(timeSpecTokens, token)
		}
	}

	tc := &TradeCron{
		ScheduleString: cronSpec,
		tz:             tz,
	}

	for _, token := range specialTokens {
		switch token {
		case AtOpen, AtClose:
			if tc.TimeFlag != "" {
				return nil, ErrConflictingModifiers
			}
			base := hours.Open
			if token == AtClose {
				base = hours.Close
			}
			if tc.TimeSpec, err = parseTimeRelativeTo(timeSpecTokens, base/100, base%100); err != nil {
				return nil, err
			}
			tc.TimeFlag = token
		case AtWeekEnd, AtMonthEnd:
			if tc.DateFlag != "" {
				return nil, ErrConflictingModifiers
			}
			tc.DateFlag = token
		default:
			return nil, ErrUnknownModifier
		}
	}

	if tc.TimeSpec == "" {
		tc.TimeSpec = strings.Join(timeSpecTokens, " ")
	}

	specParser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if tc.schedule, err = specParser.Parse(tc.TimeSpec); err != nil {
		log.Error().Err(err).Str("TimeSpec", tc.TimeSpec).Str("TradeCronSpec", cronSpec).Msg("robfig/cron could not parse timespec")
		return nil, err
	}

	return tc, nil
}

// Location is the time zone activations are computed in
func (tc *TradeCron) Location() *time.Location {
	return tc.tz
}

// Next returns the first activation after t, or the zero time if none is found
func (tc *TradeCron) Next(t time.Time) time.Time {
	next := t.In(tc.tz)
	for ii := 0; ii < maxIters; ii++ {
		next = tc.schedule.Next(next)
		if next.IsZero() || tc.IsTradeDay(next) {
			return next
		}
		// skip the remainder of the day
		y, m, d := next.Date()
		next = time.Date(y, m, d+1, 0, 0, 0, 0, tc.tz).Add(-time.Second)
	}

	log.Error().Str("TimeSpec", tc.TimeSpec).Str("DateFlag", tc.DateFlag).Msg("schedule never lands on a trading day")
	return time.Time{}
}

// IsTradeDay reports whether the calendar day of t (in the schedule's time zone) satisfies
// the trading day and date modifier constraints. The time of day is ignored
func (tc *TradeCron) IsTradeDay(t time.Time) bool {
	local := t.In(tc.tz)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	if !calendar.IsTradingDay(day) {
		return false
	}

	switch tc.DateFlag {
	case AtWeekEnd:
		_, week := day.ISOWeek()
		_, nextWeek := nextTradingDay(day).ISOWeek()
		return week != nextWeek
	case AtMonthEnd:
		return nextTradingDay(day).Month() != day.Month()
	default:
		return true
	}
}
