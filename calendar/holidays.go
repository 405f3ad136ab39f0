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
	"sort"
	"sync"
	"time"
)

var (
	holidays      = map[int]map[time.Time]string{}
	holidayLocker sync.RWMutex
)

// unscheduled exchange closures
var specialClosures = map[time.Time]string{
	date(2001, time.September, 11): "September 11",
	date(2001, time.September, 12): "September 11",
	date(2001, time.September, 13): "September 11",
	date(2001, time.September, 14): "September 11",
	date(2004, time.June, 11):      "Reagan Day of Mourning",
	date(2007, time.January, 2):    "Ford Day of Mourning",
	date(2012, time.October, 29):   "Hurricane Sandy",
	date(2012, time.October, 30):   "Hurricane Sandy",
	date(2018, time.December, 5):   "Bush Day of Mourning",
	date(2025, time.January, 9):    "Carter Day of Mourning",
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// observed moves Saturday holidays to Friday and Sunday holidays to Monday
func observed(t time.Time) time.Time {
	switch t.Weekday() {
	case time.Saturday:
		return t.AddDate(0, 0, -1)
	case time.Sunday:
		return t.AddDate(0, 0, 1)
	default:
		return t
	}
}

// nthWeekday returns the nth occurrence of weekday in month; n < 0 counts from the end
func nthWeekday(year int, month time.Month, weekday time.Weekday, n int) time.Time {
	if n > 0 {
		first := date(year, month, 1)
		offset := (int(weekday) - int(first.Weekday()) + 7) % 7
		return first.AddDate(0, 0, offset+7*(n-1))
	}

	last := date(year, month+1, 1).AddDate(0, 0, -1)
	offset := (int(last.Weekday()) - int(weekday) + 7) % 7
	return last.AddDate(0, 0, -offset+7*(n+1))
}

// easter computes Easter Sunday with the anonymous Gregorian algorithm
func easter(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return date(year, time.Month(month), day)
}

func computeHolidays(year int) map[time.Time]string {
	res := make(map[time.Time]string, 12)

	// a Saturday New Year's Day is not observed on the prior Friday
	newYear := date(year, time.January, 1)
	if newYear.Weekday() != time.Saturday {
		res[observed(newYear)] = "New Year's Day"
	}

	if year >= 1998 {
		res[nthWeekday(year, time.January, time.Monday, 3)] = "Martin Luther King Jr. Day"
	}
	res[nthWeekday(year, time.February, time.Monday, 3)] = "Washington's Birthday"
	res[easter(year).AddDate(0, 0, -2)] = "Good Friday"
	res[nthWeekday(year, time.May, time.Monday, -1)] = "Memorial Day"
	if year >= 2022 {
		res[observed(date(year, time.June, 19))] = "Juneteenth"
	}
	res[observed(date(year, time.July, 4))] = "Independence Day"
	res[nthWeekday(year, time.September, time.Monday, 1)] = "Labor Day"
	res[nthWeekday(year, time.November, time.Thursday, 4)] = "Thanksgiving Day"
	res[observed(date(year, time.December, 25))] = "Christmas Day"

	for day, name := range specialClosures {
		if day.Year() == year {
			res[day] = name
		}
	}

	return res
}

func holidaysFor(year int) map[time.Time]string {
	holidayLocker.RLock()
	res, ok := holidays[year]
	holidayLocker.RUnlock()
	if ok {
		return res
	}

	res = computeHolidays(year)

	holidayLocker.Lock()
	holidays[year] = res
	holidayLocker.Unlock()

	return res
}

// Holiday is a full-day NYSE closure
type Holiday struct {
	Date time.Time
	Name string
}

// Holidays returns the NYSE full-day closures for year in date order
func Holidays(year int) []Holiday {
	days := holidaysFor(year)
	res := make([]Holiday, 0, len(days))
	for day, name := range days {
		res = append(res, Holiday{Date: day, Name: name})
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].Date.Before(res[j].Date)
	})
	return res
}
