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

package checkpoint

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const ManifestFile = "manifest.toml"

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// StageRecord is the status of the most recent run of a stage
type StageRecord struct {
	Step      string             `toml:"step"`
	RunID     string             `toml:"run_id"`
	Status    string             `toml:"status"`
	Started   time.Time          `toml:"started"`
	Finished  time.Time          `toml:"finished"`
	Error     string             `toml:"error,omitempty"`
	Notes     []string           `toml:"notes,omitempty"`
	Artifacts map[string]*Header `toml:"artifacts,omitempty"`
}

// Manifest summarizes the state of a checkpoint directory
type Manifest struct {
	Schema  int                     `toml:"schema"`
	Updated time.Time               `toml:"updated"`
	Stages  map[string]*StageRecord `toml:"stages"`
}

func (s *Store) manifestPath() string {
	return filepath.Join(s.dir, ManifestFile)
}

// Manifest reads manifest.toml, returning an empty manifest when none exists yet
func (s *Store) Manifest() (*Manifest, error) {
	manifest := &Manifest{
		Schema: SchemaVersion,
		Stages: make(map[string]*StageRecord),
	}

	data, err := os.ReadFile(s.manifestPath())
	if errors.Is(err, os.ErrNotExist) {
		return manifest, nil
	}
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(data, manifest); err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrCorrupt, ManifestFile, err)
	}
	if manifest.Stages == nil {
		manifest.Stages = make(map[string]*StageRecord)
	}
	return manifest, nil
}

// Record stores the outcome of a stage in the manifest
func (s *Store) Record(stage Stage, record *StageRecord) error {
	manifest, err := s.Manifest()
	if err != nil {
		return err
	}

	record.Step = stage.Step
	manifest.Stages[stage.Name] = record
	manifest.Updated = record.Finished
	manifest.Schema = SchemaVersion

	data, err := toml.Marshal(manifest)
	if err != nil {
		return err
	}
	return writeAtomic(s.manifestPath(), data)
}
