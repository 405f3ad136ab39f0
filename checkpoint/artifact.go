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
	"fmt"
	"sort"
)

// Artifact names a checkpointed stage output
type Artifact string

const (
	TransactionsClean         Artifact = "transactions_clean"
	TransactionsSplitAdjusted Artifact = "transactions_split_adjusted"
	PricesRaw                 Artifact = "prices_raw"
	PricesFilled              Artifact = "prices_filled"
	PriceProvenance           Artifact = "price_provenance"
	Holdings                  Artifact = "holdings"
	MarketValue               Artifact = "market_value"
	CashFlow                  Artifact = "cash_flow"
	TWRR                      Artifact = "twrr"
)

// Stage identifies a pipeline step
type Stage struct {
	Step      string
	Name      string
	Artifacts []Artifact
}

func (s Stage) String() string {
	return fmt.Sprintf("%s (%s)", s.Step, s.Name)
}

// Stages lists the pipeline steps in execution order with the artifacts each produces
var Stages = []Stage{
	{Step: "step-01", Name: "load", Artifacts: []Artifact{TransactionsClean}},
	{Step: "step-02", Name: "splits", Artifacts: []Artifact{TransactionsSplitAdjusted}},
	{Step: "step-03", Name: "prices", Artifacts: []Artifact{PricesRaw, PricesFilled, PriceProvenance}},
	{Step: "step-04", Name: "holdings", Artifacts: []Artifact{Holdings, MarketValue}},
	{Step: "step-05", Name: "cashflow", Artifacts: []Artifact{CashFlow}},
	{Step: "step-06", Name: "twrr", Artifacts: []Artifact{TWRR}},
}

// StageByName returns the stage called name
func StageByName(name string) (Stage, bool) {
	for _, stage := range Stages {
		if stage.Name == name {
			return stage, true
		}
	}
	return Stage{}, false
}

// Producer returns the stage that writes artifact
func Producer(artifact Artifact) (Stage, bool) {
	for _, stage := range Stages {
		for _, a := range stage.Artifacts {
			if a == artifact {
				return stage, true
			}
		}
	}
	return Stage{}, false
}

// ParseArtifact validates an artifact name
func ParseArtifact(name string) (Artifact, error) {
	if _, ok := Producer(Artifact(name)); !ok {
		return "", fmt.Errorf("%w: %s (valid: %v)", ErrUnknownArtifact, name, ArtifactNames())
	}
	return Artifact(name), nil
}

// ArtifactNames returns every artifact name sorted
func ArtifactNames() []string {
	names := make([]string, 0, 9)
	for _, stage := range Stages {
		for _, a := range stage.Artifacts {
			names = append(names, string(a))
		}
	}
	sort.Strings(names)
	return names
}

// IsFrame reports whether artifact holds a date indexed table
func IsFrame(artifact Artifact) bool {
	switch artifact {
	case PricesRaw, PricesFilled, Holdings, MarketValue, CashFlow, TWRR:
		return true
	}
	return false
}
