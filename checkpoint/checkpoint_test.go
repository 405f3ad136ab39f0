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

package checkpoint_test

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/penny-vault/twrr/checkpoint"
	"github.com/penny-vault/twrr/common"
	"github.com/penny-vault/twrr/dataframe"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sampleFrame() *dataframe.DataFrame {
	df := dataframe.New(common.Days(day(2023, time.January, 2), day(2023, time.January, 4)), "AAA", "BBB")
	copy(df.Vals[0], []float64{10, math.NaN(), 12.5})
	copy(df.Vals[1], []float64{1, 2, 3})
	return df
}

type record struct {
	Name  string  `json:"name"`
	Count int     `json:"count"`
	Tags  []int64 `json:"tags"`
}

var _ = Describe("Store", func() {
	var (
		dir   string
		store *checkpoint.Store
	)

	BeforeEach(func() {
		var err error
		dir = GinkgoT().TempDir()
		store, err = checkpoint.New(filepath.Join(dir, "checkpoints"))
		Expect(err).To(BeNil())
	})

	It("round trips values through an artifact", func() {
		in := []*record{{Name: "a", Count: 1, Tags: []int64{1, 2}}, {Name: "b", Count: 2}}
		header, err := store.Save(checkpoint.TransactionsClean, in)
		Expect(err).To(BeNil())
		Expect(header.Schema).To(Equal(checkpoint.SchemaVersion))
		Expect(header.Kind).To(Equal("transactions_clean"))
		Expect(header.Checksum).To(HaveLen(64))
		Expect(store.Exists(checkpoint.TransactionsClean)).To(BeTrue())

		out := []*record{}
		loaded, err := store.Load(checkpoint.TransactionsClean, &out)
		Expect(err).To(BeNil())
		Expect(loaded).To(Equal(header))
		Expect(out).To(Equal(in))
	})

	It("round trips dataframes with missing values", func() {
		_, err := store.SaveFrame(checkpoint.PricesRaw, sampleFrame())
		Expect(err).To(BeNil())

		df, err := store.LoadFrame(checkpoint.PricesRaw)
		Expect(err).To(BeNil())
		Expect(df.Dates).To(Equal(sampleFrame().Dates))
		Expect(df.ColNames).To(Equal([]string{"AAA", "BBB"}))
		Expect(df.Vals[0][0]).To(Equal(10.0))
		Expect(math.IsNaN(df.Vals[0][1])).To(BeTrue())
		Expect(df.Vals[1]).To(Equal([]float64{1, 2, 3}))
	})

	It("writes byte identical files for identical inputs", func() {
		_, err := store.SaveFrame(checkpoint.Holdings, sampleFrame())
		Expect(err).To(BeNil())
		first, err := os.ReadFile(store.Path(checkpoint.Holdings))
		Expect(err).To(BeNil())

		_, err = store.SaveFrame(checkpoint.Holdings, sampleFrame())
		Expect(err).To(BeNil())
		second, err := os.ReadFile(store.Path(checkpoint.Holdings))
		Expect(err).To(BeNil())

		Expect(bytes.Equal(first, second)).To(BeTrue())
	})

	It("names the stage to run when an artifact is missing", func() {
		_, err := store.LoadFrame(checkpoint.MarketValue)
		Expect(err).To(MatchError(checkpoint.ErrMissingArtifact))
		Expect(err.Error()).To(Equal("missing market_value: run step-04 (holdings) first"))

		_, err = store.Header(checkpoint.TWRR)
		Expect(err).To(MatchError(checkpoint.ErrMissingArtifact))
	})

	It("rejects artifacts written with another schema version", func() {
		_, err := store.SaveFrame(checkpoint.CashFlow, sampleFrame())
		Expect(err).To(BeNil())

		fn := store.Path(checkpoint.CashFlow)
		data, err := os.ReadFile(fn)
		Expect(err).To(BeNil())
		data = bytes.Replace(data, []byte(`"schema":1`), []byte(`"schema":99`), 1)
		Expect(os.WriteFile(fn, data, 0o644)).To(Succeed())

		_, err = store.LoadFrame(checkpoint.CashFlow)
		Expect(err).To(MatchError(checkpoint.ErrSchemaVersion))
	})

	It("detects corrupted bodies", func() {
		_, err := store.SaveFrame(checkpoint.CashFlow, sampleFrame())
		Expect(err).To(BeNil())

		fn := store.Path(checkpoint.CashFlow)
		data, err := os.ReadFile(fn)
		Expect(err).To(BeNil())
		Expect(os.WriteFile(fn, data[:len(data)-20], 0o644)).To(Succeed())

		_, err = store.LoadFrame(checkpoint.CashFlow)
		Expect(err).To(MatchError(checkpoint.ErrCorrupt))
	})

	It("detects a body that does not match its checksum", func() {
		header, err := store.Save(checkpoint.TWRR, []int{1, 2, 3})
		Expect(err).To(BeNil())

		fn := store.Path(checkpoint.TWRR)
		data, err := os.ReadFile(fn)
		Expect(err).To(BeNil())
		data = bytes.Replace(data, []byte(header.Checksum), []byte(checkpoint.Checksum([]byte("[1,2,4]"))), 1)
		Expect(os.WriteFile(fn, data, 0o644)).To(Succeed())

		out := []int{}
		_, err = store.Load(checkpoint.TWRR, &out)
		Expect(err).To(MatchError(checkpoint.ErrCorrupt))
	})

	It("records stage runs in the manifest", func() {
		stage, ok := checkpoint.StageByName("prices")
		Expect(ok).To(BeTrue())

		header, err := store.SaveFrame(checkpoint.PricesFilled, sampleFrame())
		Expect(err).To(BeNil())

		finished := day(2023, time.February, 1).Add(90 * time.Second)
		Expect(store.Record(stage, &checkpoint.StageRecord{
			RunID:     "run-1",
			Status:    checkpoint.StatusOK,
			Started:   day(2023, time.February, 1),
			Finished:  finished,
			Notes:     []string{"unresolved: ZZZ"},
			Artifacts: map[string]*checkpoint.Header{string(checkpoint.PricesFilled): header},
		})).To(Succeed())

		manifest, err := store.Manifest()
		Expect(err).To(BeNil())
		Expect(manifest.Stages).To(HaveKey("prices"))
		rec := manifest.Stages["prices"]
		Expect(rec.Step).To(Equal("step-03"))
		Expect(rec.RunID).To(Equal("run-1"))
		Expect(rec.Finished.Equal(finished)).To(BeTrue())
		Expect(rec.Notes).To(Equal([]string{"unresolved: ZZZ"}))
		Expect(rec.Artifacts[string(checkpoint.PricesFilled)].Checksum).To(Equal(header.Checksum))
		Expect(filepath.Join(store.Dir(), checkpoint.ManifestFile)).To(BeAnExistingFile())
	})

	It("validates artifact names", func() {
		artifact, err := checkpoint.ParseArtifact("twrr")
		Expect(err).To(BeNil())
		Expect(artifact).To(Equal(checkpoint.TWRR))

		_, err = checkpoint.ParseArtifact("nope")
		Expect(err).To(MatchError(checkpoint.ErrUnknownArtifact))
		Expect(checkpoint.ArtifactNames()).To(HaveLen(9))
	})
})

var _ = Describe("Export", func() {
	It("writes wide and long csv", func() {
		buf := &bytes.Buffer{}
		Expect(checkpoint.WriteFrameCSV(buf, sampleFrame(), false)).To(Succeed())
		Expect(buf.String()).To(Equal("date,AAA,BBB\n2023-01-02,10,1\n2023-01-03,,2\n2023-01-04,12.5,3\n"))

		buf.Reset()
		Expect(checkpoint.WriteFrameCSV(buf, sampleFrame(), true)).To(Succeed())
		Expect(buf.String()).To(Equal("date,series,value\n2023-01-02,AAA,10\n2023-01-04,AAA,12.5\n2023-01-02,BBB,1\n2023-01-03,BBB,2\n2023-01-04,BBB,3\n"))
	})

	It("writes long parquet files", func() {
		fn := filepath.Join(GinkgoT().TempDir(), "frame.parquet")
		Expect(checkpoint.WriteFrameParquet(fn, sampleFrame())).To(Succeed())

		fr, err := local.NewLocalFileReader(fn)
		Expect(err).To(BeNil())
		defer fr.Close()

		pr, err := reader.NewParquetReader(fr, new(checkpoint.LongRow), 1)
		Expect(err).To(BeNil())
		defer pr.ReadStop()

		num := int(pr.GetNumRows())
		Expect(num).To(Equal(5))

		rows := make([]checkpoint.LongRow, num)
		Expect(pr.Read(&rows)).To(Succeed())
		Expect(rows[1]).To(Equal(checkpoint.LongRow{Date: "2023-01-04", Series: "AAA", Value: 12.5}))
	})

	It("parses export formats", func() {
		format, err := checkpoint.ParseFormat("Parquet")
		Expect(err).To(BeNil())
		Expect(format).To(Equal(checkpoint.FormatParquet))

		_, err = checkpoint.ParseFormat("xlsx")
		Expect(err).To(MatchError(checkpoint.ErrUnknownFormat))
	})
})
