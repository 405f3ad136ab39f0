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
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/penny-vault/twrr/checkpoint"
	"github.com/penny-vault/twrr/dataframe"
	"github.com/penny-vault/twrr/observability/opentelemetry"
	"github.com/penny-vault/twrr/prices"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

type stageFunc func(ctx context.Context, rec *checkpoint.StageRecord) error

// Pipeline runs the stages against one checkpoint directory. Each stage reads its inputs
// from the checkpoint store and fully replaces its outputs
type Pipeline struct {
	conf      *Config
	store     *checkpoint.Store
	primary   prices.Provider
	secondary []prices.Provider
	now       func() time.Time
	out       io.Writer
	stages    map[string]stageFunc
}

type Option func(*Pipeline)

// WithProviders replaces the configured price providers
func WithProviders(primary prices.Provider, secondary ...prices.Provider) Option {
	return func(p *Pipeline) {
		p.primary = primary
		p.secondary = secondary
	}
}

// WithClock sets the function used for the run date and manifest timestamps
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// WithOutput sets where the per-stage console summaries are written
func WithOutput(w io.Writer) Option {
	return func(p *Pipeline) {
		p.out = w
	}
}

func New(conf *Config, opts ...Option) (*Pipeline, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}

	store, err := checkpoint.New(conf.CheckpointDir)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		conf:      conf,
		store:     store,
		primary:   prices.NewYahooProvider(conf.httpConfig()),
		secondary: conf.secondaryProviders(),
		now:       time.Now,
		out:       io.Discard,
	}

	for _, opt := range opts {
		opt(p)
	}

	p.stages = map[string]stageFunc{
		"load":     p.load,
		"splits":   p.adjustSplits,
		"prices":   p.resolvePrices,
		"holdings": p.buildHoldings,
		"cashflow": p.extractCashFlow,
		"twrr":     p.computeTWRR,
	}

	return p, nil
}

func (p *Pipeline) Store() *checkpoint.Store {
	return p.store
}

func (p *Pipeline) Config() *Config {
	return p.conf
}

// RunStage runs the named stage on its own and records the outcome in the manifest
func (p *Pipeline) RunStage(ctx context.Context, name string) error {
	stage, ok := checkpoint.StageByName(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStage, name)
	}
	return p.runStage(ctx, stage, uuid.New())
}

// Run executes every stage in order under a single run id, stopping at the first error
func (p *Pipeline) Run(ctx context.Context) (uuid.UUID, error) {
	runID := uuid.New()

	ctx, span := opentelemetry.Start(ctx, "pipeline.Run", attribute.String("run_id", runID.String()))
	defer span.End()

	log.Info().Str("RunID", runID.String()).EmbedObject(p.conf).Msg("starting pipeline run")
	for _, stage := range checkpoint.Stages {
		if err := p.runStage(ctx, stage, runID); err != nil {
			opentelemetry.Fail(span, err, "pipeline run failed")
			return runID, err
		}
	}

	log.Info().Str("RunID", runID.String()).Msg("pipeline run complete")
	return runID, nil
}

func (p *Pipeline) runStage(ctx context.Context, stage checkpoint.Stage, runID uuid.UUID) error {
	fn, ok := p.stages[stage.Name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStage, stage.Name)
	}

	subLog := log.With().Str("Stage", stage.String()).Str("RunID", runID.String()).Logger()

	ctx, span := opentelemetry.Start(ctx, "pipeline."+stage.Name, attribute.String("run_id", runID.String()))
	defer span.End()

	rec := &checkpoint.StageRecord{
		RunID:     runID.String(),
		Started:   p.now().UTC(),
		Artifacts: make(map[string]*checkpoint.Header),
	}

	fmt.Fprintf(p.out, "== %s\n", stage)
	subLog.Info().Msg("running stage")

	err := fn(ctx, rec)

	rec.Finished = p.now().UTC()
	rec.Status = checkpoint.StatusOK
	if err != nil {
		rec.Status = checkpoint.StatusFailed
		rec.Error = err.Error()
		opentelemetry.Fail(span, err, "stage failed")
		subLog.Error().Err(err).Msg("stage failed")
	}

	if recErr := p.store.Record(stage, rec); recErr != nil {
		subLog.Error().Err(recErr).Msg("could not update manifest")
		if err == nil {
			err = recErr
		}
	}

	if err == nil {
		subLog.Info().Strs("Notes", rec.Notes).Dur("Elapsed", rec.Finished.Sub(rec.Started)).Msg("stage complete")
	}
	return err
}

func (p *Pipeline) save(rec *checkpoint.StageRecord, artifact checkpoint.Artifact, v interface{}) error {
	header, err := p.store.Save(artifact, v)
	if err != nil {
		return err
	}
	rec.Artifacts[string(artifact)] = header
	return nil
}

func (p *Pipeline) saveFrame(rec *checkpoint.StageRecord, artifact checkpoint.Artifact, df *dataframe.DataFrame) error {
	header, err := p.store.SaveFrame(artifact, df)
	if err != nil {
		return err
	}
	rec.Artifacts[string(artifact)] = header
	return nil
}

func note(rec *checkpoint.StageRecord, format string, args ...interface{}) {
	rec.Notes = append(rec.Notes, fmt.Sprintf(format, args...))
}

// preview renders the first and last n rows of df
func preview(df *dataframe.DataFrame, n int) string {
	if df.Len() <= 2*n {
		return df.Table()
	}
	return df.Head(n).Table() + "...\n" + df.Tail(n).Table()
}
