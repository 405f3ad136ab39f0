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

package common

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingColumn = errors.New("missing required column")
)

// ColumnIndex maps each required column to its position in header. Matching ignores
// case and surrounding whitespace (including a UTF-8 byte order mark)
func ColumnIndex(header []string, required ...string) (map[string]int, error) {
	positions := make(map[string]int, len(header))
	for idx, name := range header {
		name = strings.TrimPrefix(name, "\ufeff")
		positions[strings.ToLower(strings.TrimSpace(name))] = idx
	}

	res := make(map[string]int, len(required))
	for _, name := range required {
		idx, ok := positions[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, name)
		}
		res[name] = idx
	}
	return res, nil
}

// Field returns the trimmed value at idx or an empty string for short records
func Field(record []string, idx int) string {
	if idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// BlankRecord reports whether every field of record is empty
func BlankRecord(record []string) bool {
	for _, val := range record {
		if strings.TrimSpace(val) != "" {
			return false
		}
	}
	return true
}
