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
	"context"

	"github.com/google/uuid"
	"github.com/penny-vault/twrr/checkpoint"
	"github.com/penny-vault/twrr/database"
	"github.com/penny-vault/twrr/twrr"
	"github.com/rs/zerolog/log"
)

// Publish writes the stored twrr artifact to the connected database under the run id
// of the twrr stage that produced it
func (p *Pipeline) Publish(ctx context.Context) (int, error) {
	index, err := p.store.LoadFrame(checkpoint.TWRR)
	if err != nil {
		return 0, err
	}

	stats, err := twrr.Summarize(index)
	if err != nil {
		return 0, err
	}

	manifest, err := p.store.Manifest()
	if err != nil {
		return 0, err
	}

	runID := uuid.New()
	if rec, ok := manifest.Stages["twrr"]; ok {
		if parsed, err := uuid.Parse(rec.RunID); err == nil {
			runID = parsed
		} else {
			log.Warn().Str("RunID", rec.RunID).Msg("manifest run id is not a uuid; publishing under a new id")
		}
	}

	if err := database.EnsureSchema(ctx); err != nil {
		return 0, err
	}

	return database.Publish(ctx, &database.Run{
		ID:        runID,
		Portfolio: p.conf.Portfolio,
		Published: p.now().UTC(),
		Stats:     stats,
	}, index)
}
