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

package prices

import (
	"context"
	"time"
)

// Provider is a source of daily closing prices. A returned error is a batch-level
// failure; the map may still hold the symbols that completed before it. A requested
// symbol missing from the map was not found by the provider.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, symbols []string, begin, end time.Time) (map[string][]Quote, error)
}
