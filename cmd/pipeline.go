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

package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/penny-vault/twrr/pipeline"
	"github.com/rs/zerolog/log"
)

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func newPipeline() (*pipeline.Pipeline, error) {
	conf, err := pipeline.ConfigFromViper()
	if err != nil {
		return nil, err
	}

	pl, err := pipeline.New(conf, pipeline.WithOutput(os.Stdout))
	if err != nil {
		return nil, err
	}

	log.Debug().EmbedObject(conf).Msg("pipeline configured")
	return pl, nil
}
