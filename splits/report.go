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
	"fmt"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/penny-vault/twrr/common"
)

// Table renders the split history with the cumulative factor per security
func Table(events []*Event, adjusted []*AdjustedTransaction) string {
	counts := make(map[string]int)
	for _, t := range adjusted {
		if !t.SplitFactor.Equal(one) {
			counts[t.Security]++
		}
	}

	sorted := make([]*Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Security == sorted[j].Security {
			return sorted[i].EffectiveDate.Before(sorted[j].EffectiveDate)
		}
		return sorted[i].Security < sorted[j].Security
	})

	factors := Factors(events)

	s := &strings.Builder{}
	table := tablewriter.NewWriter(s)
	table.SetHeader([]string{"Security", "Effective", "Ratio", "Cumulative Factor", "Trades Adjusted"})
	table.SetBorder(false)
	for _, ev := range sorted {
		table.Append([]string{
			ev.Security,
			ev.EffectiveDate.Format(common.DateFormat),
			ev.Ratio,
			factors[ev.Security].String(),
			fmt.Sprintf("%d", counts[ev.Security]),
		})
	}
	table.Render()
	return s.String()
}
