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

package calendar

import (
	"time"
)

func day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsMarketHoliday returns true if the exchange is closed for a holiday on t's date
func IsMarketHoliday(t time.Time) bool {
	_, ok := holidaysFor(t.Year())[day(t)]
	return ok
}

// IsTradingDay returns true if t's date is a weekday that is not a market holiday
func IsTradingDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !IsMarketHoliday(t)
}

// TradingDays lists the trading days between begin and end inclusive
func TradingDays(begin, end time.Time) []time.Time {
	begin = day(begin)
	end = day(end)

	res := make([]time.Time, 0, int(end.Sub(begin).Hours()/24*5/7)+1)
	for dt := begin; !dt.After(end); dt = dt.AddDate(0, 0, 1) {
		if IsTradingDay(dt) {
			res = append(res, dt)
		}
	}
	return res
}

// CountTradingDays returns the number of trading days in dates
func CountTradingDays(dates []time.Time) int {
	cnt := 0
	for _, dt := range dates {
		if IsTradingDay(dt) {
			cnt++
		}
	}
	return cnt
}
