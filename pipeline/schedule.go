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

	"github.com/penny-vault/twrr/tradecron"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Schedule recomputes the full pipeline at every activation of spec until ctx is done. A run
// still in progress when the next activation arrives causes that activation to be skipped
func (p *Pipeline) Schedule(ctx context.Context, spec string) error {
	schedule, err := tradecron.New(spec, tradecron.RegularHours)
	if err != nil {
		return err
	}

	c := cron.New(
		cron.WithLocation(schedule.Location()),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	c.Schedule(schedule, cron.FuncJob(func() {
		if runID, err := p.Run(ctx); err != nil {
			log.Error().Err(err).Str("RunID", runID.String()).Msg("scheduled run failed")
		}
	}))

	c.Start()
	log.Info().Str("Schedule", spec).Time("Next", schedule.Next(p.now())).Msg("scheduler started")

	<-ctx.Done()
	<-c.Stop().Done()
	log.Info().Msg("scheduler stopped")
	return nil
}
