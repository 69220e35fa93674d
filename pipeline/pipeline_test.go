package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"time"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/geojson"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/cropsense/s2-biophys/biophys"
	"github.com/cropsense/s2-biophys/catalog"
	"github.com/cropsense/s2-biophys/catalog/entities"
	"github.com/cropsense/s2-biophys/common"
	"github.com/cropsense/s2-biophys/interface/catalog/earthsearch"
	"github.com/cropsense/s2-biophys/interface/imagery"
	"github.com/cropsense/s2-biophys/pipeline"
	"github.com/cropsense/s2-biophys/processor"
	"github.com/cropsense/s2-biophys/service"
	"github.com/cropsense/s2-biophys/service/raster"
	"github.com/cropsense/s2-biophys/writer"
)

const (
	gridWidth  = 10
	gridHeight = 10
	// engineFailure marks the band stack of a date whose model run must fail.
	engineFailure = 999.0
)

var modelValues = map[common.Indicator]float64{
	common.LAI: 3.5,
	common.CCC: 120.5,
	common.CWC: 0.02,
}

// fakeCube serves an in-memory slice per acquisition: constant bands and a
// constant scene classification, both configurable by sensing day.
type fakeCube struct {
	classByDay map[string]int
	valueByDay map[string]float64
	received   []*entities.Acquisition
}

func (f *fakeCube) FetchCube(ctx context.Context, acqs []*entities.Acquisition, aoi entities.AreaOfInterest, bands []string, resolution float64) (*imagery.Cube, error) {
	f.received = acqs
	if len(acqs) == 0 {
		return nil, nil
	}
	cube := &imagery.Cube{BandNames: bands}
	for _, acq := range acqs {
		class, ok := f.classByDay[acq.DateKey()]
		if !ok {
			class = 4 // vegetation
		}
		value, ok := f.valueByDay[acq.DateKey()]
		if !ok {
			value = 0.25
		}
		stack := make([][][]float64, len(bands))
		for b := range stack {
			stack[b] = constantField(value)
		}
		cube.Slices = append(cube.Slices, imagery.Slice{
			Date:  acq.Date,
			Bands: stack,
			SCL:   constantClasses(class),
			Grid:  testGrid(),
		})
	}
	return cube, nil
}

func testGrid() raster.Grid {
	return raster.Grid{
		GeoTransform: [6]float64{600000, 20, 0, 5200000, 0, -20},
		CRSWKT:       utmWKT,
		Width:        gridWidth,
		Height:       gridHeight,
	}
}

func constantField(value float64) [][]float64 {
	rows := make([][]float64, gridHeight)
	for y := range rows {
		rows[y] = make([]float64, gridWidth)
		for x := range rows[y] {
			rows[y][x] = value
		}
	}
	return rows
}

func constantClasses(class int) [][]int {
	rows := make([][]int, gridHeight)
	for y := range rows {
		rows[y] = make([]int, gridWidth)
		for x := range rows[y] {
			rows[y][x] = class
		}
	}
	return rows
}

func stacFeature(id string, datetime time.Time, cloudCover float64) earthsearch.Feature {
	footprint := geom.Polygon{{{9.9, 46.9}, {10.1, 46.9}, {10.1, 47.1}, {9.9, 47.1}, {9.9, 46.9}}}
	return earthsearch.Feature{
		Id: id,
		Properties: map[string]interface{}{
			"datetime":           datetime.Format(time.RFC3339),
			"eo:cloud_cover":     cloudCover,
			"view:sun_azimuth":   165.0,
			"view:sun_elevation": 23.0,
		},
		Geometry: &geojson.Geometry{Geometry: footprint},
	}
}

func searchArea() entities.SearchArea {
	return entities.SearchArea{
		AreaOfInterest: entities.AreaOfInterest{
			ID:       "field1",
			Geometry: geom.Polygon{{{10.005, 46.985}, {10.015, 46.985}, {10.015, 46.995}, {10.005, 46.995}, {10.005, 46.985}}},
		},
		StartTime:     time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		EndTime:       time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC),
		MaxCloudCover: 100,
	}
}

var _ = Describe("ProcessArea", func() {
	jan15 := time.Date(2020, 1, 15, 10, 30, 0, 0, time.UTC)
	jan20 := time.Date(2020, 1, 20, 10, 30, 0, 0, time.UTC)
	jan25 := time.Date(2020, 1, 25, 10, 30, 0, 0, time.UTC)

	var (
		server   *httptest.Server
		features []earthsearch.Feature
		cube     *fakeCube
		outDir   string
		workDir  string
		p        *pipeline.Pipeline
		runErr   error
	)

	readOutput := func(indicator common.Indicator, day time.Time) *raster.Raster {
		file := filepath.Join(outDir, filepath.FromSlash(common.OutputRelPath(indicator, day, "field1")))
		r, err := raster.ReadGTiff(file)
		ExpectWithOffset(1, err).NotTo(HaveOccurred())
		return r
	}

	outputExists := func(indicator common.Indicator, day time.Time) bool {
		file := filepath.Join(outDir, filepath.FromSlash(common.OutputRelPath(indicator, day, "field1")))
		_, err := os.Stat(file)
		return err == nil
	}

	BeforeEach(func() {
		features = nil
		cube = &fakeCube{classByDay: map[string]int{}, valueByDay: map[string]float64{}}

		var err error
		outDir, err = os.MkdirTemp("", "pipeline-out")
		Expect(err).NotTo(HaveOccurred())
		workDir, err = os.MkdirTemp("", "pipeline-work")
		Expect(err).NotTo(HaveOccurred())

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(earthsearch.SearchData{
				Features:       features,
				NumberMatched:  len(features),
				NumberReturned: len(features),
			})
		}))

		storage, err := service.NewStorage(ctx, outDir)
		Expect(err).NotTo(HaveOccurred())

		runner := biophys.RunnerFunc(func(ctx context.Context, req biophys.Request) (biophys.Result, error) {
			if len(req.Bands) > 0 && req.Bands[0][0][0] == engineFailure {
				return biophys.Result{}, errors.New("model diverged")
			}
			return biophys.Result{Values: constantField(modelValues[req.Variable])}, nil
		})

		p = &pipeline.Pipeline{
			Catalog:   &catalog.Catalog{EarthSearchURL: server.URL},
			Cube:      cube,
			Processor: &processor.Processor{Runner: runner, TargetCRS: "EPSG:32632"},
			Writer:    &writer.Writer{Storage: storage, Workdir: workDir},
			Bands:     common.DefaultBands,
			Workers:   2,
		}
	})

	AfterEach(func() {
		server.Close()
		os.RemoveAll(outDir)
		os.RemoveAll(workDir)
	})

	JustBeforeEach(func() {
		runErr = p.ProcessArea(ctx, searchArea())
	})

	Context("with two clear acquisitions and a reprocessed duplicate", func() {
		BeforeEach(func() {
			features = []earthsearch.Feature{
				stacFeature("S2B_32TNS_20200115_0_L2A", jan15, 3),
				stacFeature("S2B_32TNS_20200115_1_L2A", jan15, 3),
				stacFeature("S2B_32TNS_20200120_0_L2A", jan20, 5),
			}
		})

		It("should succeed", func() {
			Expect(runErr).NotTo(HaveOccurred())
		})

		It("should keep the highest processing baseline of a take", func() {
			Expect(cube.received).To(HaveLen(2))
			Expect(cube.received[0].SourceID).To(Equal("S2B_32TNS_20200115_1_L2A"))
			Expect(cube.received[1].SourceID).To(Equal("S2B_32TNS_20200120_0_L2A"))
		})

		It("should write one raster per indicator and date", func() {
			for _, indicator := range common.IndicatorValues() {
				for _, day := range []time.Time{jan15, jan20} {
					Expect(outputExists(indicator, day)).To(BeTrue(), "%s %s", indicator, day)
				}
			}
		})

		It("should keep every pixel of a clear date", func() {
			r := readOutput(common.LAI, jan15)
			Expect(r.Width).To(Equal(gridWidth))
			Expect(r.Height).To(Equal(gridHeight))
			Expect(r.NoData).NotTo(BeNil())
			Expect(*r.NoData).To(Equal(float64(common.NoDataValue)))
			for _, row := range r.Bands[0] {
				for _, v := range row {
					Expect(v).To(Equal(modelValues[common.LAI]))
				}
			}
		})

		It("should write each indicator with its own model output", func() {
			r := readOutput(common.CCC, jan20)
			Expect(r.Bands[0][0][0]).To(Equal(modelValues[common.CCC]))
			r = readOutput(common.CWC, jan20)
			Expect(r.Bands[0][0][0]).To(Equal(modelValues[common.CWC]))
		})
	})

	Context("with a fully clouded acquisition", func() {
		BeforeEach(func() {
			features = []earthsearch.Feature{
				stacFeature("S2B_32TNS_20200115_0_L2A", jan15, 3),
				stacFeature("S2B_32TNS_20200125_0_L2A", jan25, 100),
			}
			cube.classByDay["2020-01-25"] = 9 // cloud high probability
		})

		It("should mask the clouded date entirely", func() {
			Expect(runErr).NotTo(HaveOccurred())
			r := readOutput(common.LAI, jan25)
			for _, row := range r.Bands[0] {
				for _, v := range row {
					Expect(v).To(Equal(float64(common.NoDataValue)))
				}
			}
		})

		It("should keep the clear date untouched", func() {
			Expect(runErr).NotTo(HaveOccurred())
			r := readOutput(common.LAI, jan15)
			Expect(r.Bands[0][0][0]).To(Equal(modelValues[common.LAI]))
		})
	})

	Context("when the model fails for one date", func() {
		BeforeEach(func() {
			features = []earthsearch.Feature{
				stacFeature("S2B_32TNS_20200115_0_L2A", jan15, 3),
				stacFeature("S2B_32TNS_20200120_0_L2A", jan20, 5),
			}
			cube.valueByDay["2020-01-20"] = engineFailure
		})

		It("should skip the failed date and keep the others", func() {
			Expect(runErr).NotTo(HaveOccurred())
			Expect(outputExists(common.LAI, jan15)).To(BeTrue())
			Expect(outputExists(common.LAI, jan20)).To(BeFalse())
		})
	})

	Context("when every date fails", func() {
		BeforeEach(func() {
			features = []earthsearch.Feature{
				stacFeature("S2B_32TNS_20200120_0_L2A", jan20, 5),
			}
			cube.valueByDay["2020-01-20"] = engineFailure
		})

		It("should succeed without writing anything", func() {
			Expect(runErr).NotTo(HaveOccurred())
			entries, err := os.ReadDir(outDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(BeEmpty())
		})
	})

	Context("with an empty inventory", func() {
		It("should succeed without output", func() {
			Expect(runErr).NotTo(HaveOccurred())
			Expect(cube.received).To(BeEmpty())
			entries, err := os.ReadDir(outDir)
			Expect(err).NotTo(HaveOccurred())
			Expect(entries).To(BeEmpty())
		})
	})
})
