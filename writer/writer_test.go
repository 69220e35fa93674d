package writer_test

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/airbusgeo/godal"
	"github.com/cropsense/s2-biophys/common"
	"github.com/cropsense/s2-biophys/processor"
	"github.com/cropsense/s2-biophys/service"
	"github.com/cropsense/s2-biophys/service/raster"
	"github.com/cropsense/s2-biophys/writer"
)

func TestMain(m *testing.M) {
	godal.RegisterAll()
	os.Exit(m.Run())
}

func utm32WKT(t *testing.T) string {
	t.Helper()
	sr, err := godal.NewSpatialRefFromEPSG(32632)
	if err != nil {
		t.Fatalf("NewSpatialRefFromEPSG: %v", err)
	}
	defer sr.Close()
	wkt, err := sr.WKT()
	if err != nil {
		t.Fatalf("WKT: %v", err)
	}
	return wkt
}

func segment(t *testing.T, value float64) processor.IndicatorRaster {
	values := make([][]float64, 4)
	for y := range values {
		values[y] = []float64{value, value, common.NoDataValue, value}
	}
	return processor.IndicatorRaster{
		Grid: raster.Grid{
			GeoTransform: [6]float64{600000, 10, 0, 5200020, 0, -10},
			CRSWKT:       utm32WKT(t),
			Width:        4,
			Height:       4,
		},
		Values: values,
		NoData: common.NoDataValue,
	}
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	count := 0
	if err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() && strings.HasSuffix(path, ".tif") {
			count++
		}
		return err
	}); err != nil {
		t.Fatalf("WalkDir: %v", err)
	}
	return count
}

func TestWrite(t *testing.T) {
	ctx := context.Background()
	outDir := t.TempDir()
	storage, err := service.NewStorage(ctx, outDir)
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}

	index := processor.SegmentIndex{
		common.LAI: {"2020-01-05": {segment(t, 1.5)}},
		common.CCC: {"2020-01-05": {segment(t, 40)}},
	}

	w := writer.Writer{Storage: storage, Workdir: t.TempDir()}
	if err := w.Write(ctx, index, "parcel42", "B"); err != nil {
		t.Fatalf("Write: %v", err)
	}

	for _, want := range []string{
		"index=LAI/aoi=parcel42/S2_20200105_000_parcel42_LAI.tif",
		"index=CCC/aoi=parcel42/S2_20200105_000_parcel42_CCC.tif",
	} {
		if _, err := os.Stat(filepath.Join(outDir, filepath.FromSlash(want))); err != nil {
			t.Errorf("missing output %s: %v", want, err)
		}
	}

	// the encoded raster carries the values and the nodata sentinel
	out, err := raster.ReadGTiff(filepath.Join(outDir, "index=LAI", "aoi=parcel42", "S2_20200105_000_parcel42_LAI.tif"))
	if err != nil {
		t.Fatalf("ReadGTiff: %v", err)
	}
	if out.Width != 4 || out.Height != 4 {
		t.Fatalf("expecting a 4x4 raster, found %dx%d", out.Width, out.Height)
	}
	if out.NoData == nil || *out.NoData != common.NoDataValue {
		t.Errorf("expecting nodata %v, found %v", common.NoDataValue, out.NoData)
	}
	if got := out.Bands[0][0][0]; got != 1.5 {
		t.Errorf("expecting 1.5, found %v", got)
	}
	if got := out.Bands[0][2][2]; got != common.NoDataValue {
		t.Errorf("expecting the nodata sentinel, found %v", got)
	}

	// re-running overwrites in place, it never duplicates entries
	if err := w.Write(ctx, index, "parcel42", "B"); err != nil {
		t.Fatalf("Write again: %v", err)
	}
	if count := countFiles(t, outDir); count != 2 {
		t.Errorf("expecting 2 output files, found %d", count)
	}
}

func TestWriteFirstSegmentWins(t *testing.T) {
	ctx := context.Background()
	outDir := t.TempDir()
	storage, err := service.NewStorage(ctx, outDir)
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}

	index := processor.SegmentIndex{
		common.CWC: {"2020-01-05": {segment(t, 0.02), segment(t, 0.9)}},
	}

	w := writer.Writer{Storage: storage, Workdir: t.TempDir()}
	if err := w.Write(ctx, index, "parcel1", "A"); err != nil {
		t.Fatalf("Write: %v", err)
	}

	out, err := raster.ReadGTiff(filepath.Join(outDir, "index=CWC", "aoi=parcel1", "S2_20200105_000_parcel1_CWC.tif"))
	if err != nil {
		t.Fatalf("ReadGTiff: %v", err)
	}
	if got := out.Bands[0][0][0]; got != 0.02 {
		t.Errorf("expecting the first segment (0.02), found %v", got)
	}
	if count := countFiles(t, outDir); count != 1 {
		t.Errorf("expecting 1 output file, found %d", count)
	}
}
