package imagery

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/cropsense/s2-biophys/catalog/entities"
	"github.com/cropsense/s2-biophys/common"
	"github.com/cropsense/s2-biophys/service/raster"
	"github.com/go-spatial/geom"
)

func TestMain(m *testing.M) {
	godal.RegisterAll()
	os.Exit(m.Run())
}

func TestVsiPath(t *testing.T) {
	tests := []struct {
		href, want string
	}{
		{"https://sentinel-cogs.s3.us-west-2.amazonaws.com/S2B_32TNS/B04.tif", "/vsicurl/https://sentinel-cogs.s3.us-west-2.amazonaws.com/S2B_32TNS/B04.tif"},
		{"http://host/B04.tif", "/vsicurl/http://host/B04.tif"},
		{"gs://bucket/B04.tif", "gs://bucket/B04.tif"},
		{"s3://bucket/B04.tif", "s3://bucket/B04.tif"},
		{"/data/B04.tif", "/data/B04.tif"},
	}
	for _, tt := range tests {
		if got := vsiPath(tt.href); got != tt.want {
			t.Errorf("vsiPath(%s) = %s, want %s", tt.href, got, tt.want)
		}
	}
}

func TestCubeDates(t *testing.T) {
	d1 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2020, 1, 6, 0, 0, 0, 0, time.UTC)
	cube := &Cube{Slices: []Slice{{Date: d1}, {Date: d2}}}
	dates := cube.Dates()
	if len(dates) != 2 || !dates[0].Equal(d1) || !dates[1].Equal(d2) {
		t.Errorf("Dates() = %v, want [%v %v]", dates, d1, d2)
	}
}

func TestFetchCubeEmpty(t *testing.T) {
	cube, err := Provider{}.FetchCube(context.Background(), nil, entities.AreaOfInterest{}, nil, 0)
	if err != nil {
		t.Fatalf("FetchCube: %v", err)
	}
	if cube != nil {
		t.Errorf("expecting a nil cube for an empty inventory, got %v", cube)
	}
}

func TestClassesFromFloat(t *testing.T) {
	classes := classesFromFloat([][]float64{{4, 5}, {8.0, 0}})
	want := [][]int{{4, 5}, {8, 0}}
	for y := range want {
		for x := range want[y] {
			if classes[y][x] != want[y][x] {
				t.Errorf("classes[%d][%d] = %d, want %d", y, x, classes[y][x], want[y][x])
			}
		}
	}
}

// writeChip writes a chip with every band filled by its layout index, and
// the classification band filled with the vegetation class.
func writeChip(t *testing.T, file string) {
	t.Helper()
	sr, err := godal.NewSpatialRefFromEPSG(4326)
	if err != nil {
		t.Fatalf("NewSpatialRefFromEPSG: %v", err)
	}
	defer sr.Close()
	wkt, err := sr.WKT()
	if err != nil {
		t.Fatalf("WKT: %v", err)
	}

	const size = 30
	bands := make([][][]float64, len(common.ChipBands))
	for i := range bands {
		value := float64(i)
		if common.ChipBands[i] == common.SCLBand {
			value = 4
		}
		rows := make([][]float64, size)
		for y := range rows {
			rows[y] = make([]float64, size)
			for x := range rows[y] {
				rows[y][x] = value
			}
		}
		bands[i] = rows
	}
	chip := raster.Raster{
		Grid: raster.Grid{
			GeoTransform: [6]float64{10.0, 0.001, 0, 47.0, 0, -0.001},
			CRSWKT:       wkt,
			Width:        size,
			Height:       size,
		},
		Bands: bands,
	}
	if err := chip.WriteGTiff(file); err != nil {
		t.Fatalf("WriteGTiff: %v", err)
	}
}

func testAOI() entities.AreaOfInterest {
	return entities.AreaOfInterest{
		ID: "field1",
		Geometry: geom.Polygon{{
			{10.005, 46.985}, {10.015, 46.985}, {10.015, 46.995}, {10.005, 46.995}, {10.005, 46.985},
		}},
	}
}

func TestFetchCubeFromChip(t *testing.T) {
	dir := t.TempDir()
	date := time.Date(2020, 1, 1, 10, 12, 21, 0, time.UTC)
	writeChip(t, filepath.Join(dir, common.ChipFileName("field1", date)))

	acq := &entities.Acquisition{SourceID: "S2B_32TNS_20200101_0_L2A", Date: date}
	provider := Provider{Config: Config{CacheDir: dir}}
	cube, err := provider.FetchCube(context.Background(), []*entities.Acquisition{acq}, testAOI(), nil, 0)
	if err != nil {
		t.Fatalf("FetchCube: %v", err)
	}
	if len(cube.Slices) != 1 {
		t.Fatalf("expecting 1 slice, found %d", len(cube.Slices))
	}

	// the chip keeps its native resolution whatever the cube resolution
	slice := cube.Slices[0]
	if slice.Grid.Width != 10 || slice.Grid.Height != 10 {
		t.Errorf("window is %dx%d, want 10x10", slice.Grid.Width, slice.Grid.Height)
	}
	if len(cube.BandNames) != len(common.DefaultBands) {
		t.Fatalf("expecting the default bands, found %v", cube.BandNames)
	}
	if len(slice.Bands) != len(common.DefaultBands) {
		t.Fatalf("expecting %d bands, found %d", len(common.DefaultBands), len(slice.Bands))
	}
	// B02 is the second band of the chip layout, B12 the twelfth.
	if got := slice.Bands[0][5][5]; got != 1 {
		t.Errorf("B02 value = %g, want 1", got)
	}
	if got := slice.Bands[len(slice.Bands)-1][5][5]; got != 11 {
		t.Errorf("B12 value = %g, want 11", got)
	}
	if got := slice.SCL[5][5]; got != 4 {
		t.Errorf("classification value = %d, want 4", got)
	}
}

func TestFetchCubeSelectsRequestedBands(t *testing.T) {
	dir := t.TempDir()
	date := time.Date(2020, 1, 6, 0, 0, 0, 0, time.UTC)
	writeChip(t, filepath.Join(dir, common.ChipFileName("field1", date)))

	acq := &entities.Acquisition{SourceID: "S2A_32TNS_20200106_0_L2A", Date: date}
	provider := Provider{Config: Config{CacheDir: dir}}
	cube, err := provider.FetchCube(context.Background(), []*entities.Acquisition{acq}, testAOI(), []string{"B8A", "B03"}, 0)
	if err != nil {
		t.Fatalf("FetchCube: %v", err)
	}
	slice := cube.Slices[0]
	if got := slice.Bands[0][0][0]; got != 8 {
		t.Errorf("B8A value = %g, want 8", got)
	}
	if got := slice.Bands[1][0][0]; got != 2 {
		t.Errorf("B03 value = %g, want 2", got)
	}
}

func TestFetchCubeUnknownChipBand(t *testing.T) {
	dir := t.TempDir()
	date := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	writeChip(t, filepath.Join(dir, common.ChipFileName("field1", date)))

	acq := &entities.Acquisition{SourceID: "S2B_32TNS_20200101_0_L2A", Date: date}
	provider := Provider{Config: Config{CacheDir: dir}}
	_, err := provider.FetchCube(context.Background(), []*entities.Acquisition{acq}, testAOI(), []string{"B13"}, 0)
	if err == nil || !strings.Contains(err.Error(), "not part of the chip layout") {
		t.Errorf("expecting a chip layout error, got %v", err)
	}
}

func TestFetchCubeMissingAsset(t *testing.T) {
	date := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	acq := &entities.Acquisition{SourceID: "S2B_32TNS_20200101_0_L2A", Date: date}
	_, err := Provider{}.FetchCube(context.Background(), []*entities.Acquisition{acq}, testAOI(), nil, 0.001)
	if err == nil || !strings.Contains(err.Error(), "no asset for band") {
		t.Errorf("expecting a missing asset error, got %v", err)
	}
	if err != nil && !strings.Contains(err.Error(), "FetchCube[S2B_32TNS_20200101_0_L2A]") {
		t.Errorf("expecting the acquisition in the error, got %v", err)
	}
}
