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
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	"github.com/penny-vault/twrr/common"
	"github.com/rs/zerolog/log"
	"github.com/zeebo/blake3"
)

// SchemaVersion is bumped whenever the layout of an artifact body changes
const SchemaVersion = 1

const fileExt = ".json.lz4"

// Header precedes every artifact body on disk
type Header struct {
	Schema   int    `json:"schema" toml:"schema"`
	Kind     string `json:"kind" toml:"kind"`
	Checksum string `json:"checksum" toml:"checksum"`
	Size     int    `json:"size" toml:"size"`
}

// Store reads and writes artifacts under a single directory
type Store struct {
	dir string
}

func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) Path(artifact Artifact) string {
	return filepath.Join(s.dir, string(artifact)+fileExt)
}

func (s *Store) Exists(artifact Artifact) bool {
	_, err := os.Stat(s.Path(artifact))
	return err == nil
}

// Checksum returns the hex encoded blake3 digest of data
func Checksum(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Save encodes v as JSON, compresses it and atomically replaces the artifact file
func (s *Store) Save(artifact Artifact, v interface{}) (*Header, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", artifact, err)
	}

	header := &Header{
		Schema:   SchemaVersion,
		Kind:     string(artifact),
		Checksum: Checksum(body),
		Size:     len(body),
	}

	compressed, err := common.Compress(body)
	if err != nil {
		return nil, fmt.Errorf("compress %s: %w", artifact, err)
	}

	headerBytes, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}

	buf := bytes.NewBuffer(make([]byte, 0, len(headerBytes)+1+len(compressed)))
	buf.Write(headerBytes)
	buf.WriteByte('\n')
	buf.Write(compressed)

	if err := writeAtomic(s.Path(artifact), buf.Bytes()); err != nil {
		return nil, err
	}

	log.Debug().Str("Artifact", string(artifact)).Str("Checksum", header.Checksum).Int("Size", header.Size).Msg("saved checkpoint")
	return header, nil
}

// Load decodes artifact into v. A missing file names the stage that produces it
func (s *Store) Load(artifact Artifact, v interface{}) (*Header, error) {
	data, err := os.ReadFile(s.Path(artifact))
	if errors.Is(err, os.ErrNotExist) {
		return nil, missing(artifact)
	}
	if err != nil {
		return nil, err
	}

	header, body, err := decode(artifact, data)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(body, v); err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrCorrupt, artifact, err)
	}
	return header, nil
}

// Header reads only the header of artifact
func (s *Store) Header(artifact Artifact) (*Header, error) {
	data, err := os.ReadFile(s.Path(artifact))
	if errors.Is(err, os.ErrNotExist) {
		return nil, missing(artifact)
	}
	if err != nil {
		return nil, err
	}

	idx := bytes.IndexByte(data, '\n')
	if idx == -1 {
		return nil, fmt.Errorf("%w: %s: no header", ErrCorrupt, artifact)
	}
	header := &Header{}
	if err := json.Unmarshal(data[:idx], header); err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrCorrupt, artifact, err)
	}
	return header, nil
}

func missing(artifact Artifact) error {
	if stage, ok := Producer(artifact); ok {
		return fmt.Errorf("%w %s: run %s first", ErrMissingArtifact, artifact, stage)
	}
	return fmt.Errorf("%w %s", ErrMissingArtifact, artifact)
}

func decode(artifact Artifact, data []byte) (*Header, []byte, error) {
	idx := bytes.IndexByte(data, '\n')
	if idx == -1 {
		return nil, nil, fmt.Errorf("%w: %s: no header", ErrCorrupt, artifact)
	}

	header := &Header{}
	if err := json.Unmarshal(data[:idx], header); err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %s", ErrCorrupt, artifact, err)
	}

	if header.Schema != SchemaVersion {
		return nil, nil, fmt.Errorf("%w: %s has schema %d, expected %d", ErrSchemaVersion, artifact, header.Schema, SchemaVersion)
	}
	if header.Kind != string(artifact) {
		return nil, nil, fmt.Errorf("%w: %s holds %s", ErrCorrupt, artifact, header.Kind)
	}

	body, err := common.Decompress(data[idx+1:])
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %s", ErrCorrupt, artifact, err)
	}

	if Checksum(body) != header.Checksum {
		return nil, nil, fmt.Errorf("%w: %s checksum mismatch", ErrCorrupt, artifact)
	}

	return header, body, nil
}

func writeAtomic(fn string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(fn), "."+filepath.Base(fn)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), fn)
}
