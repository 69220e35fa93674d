// Package writer encodes processed indicator segments as cloud-optimized
// GeoTIFFs and moves them to the output storage.
package writer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cropsense/s2-biophys/common"
	"github.com/cropsense/s2-biophys/processor"
	"github.com/cropsense/s2-biophys/service"
	"github.com/cropsense/s2-biophys/service/log"
	"github.com/cropsense/s2-biophys/service/raster"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// cogSwitches drive the encoding of every output raster.
var cogSwitches = []string{
	"-of", "COG",
	"-co", "COMPRESS=LZW",
	"-co", "BLOCKSIZE=512",
	"-co", "OVERVIEW_RESAMPLING=NEAREST",
	"-co", "OVERVIEWS=AUTO",
}

// Writer persists a SegmentIndex: one cloud-optimized GeoTIFF per
// (indicator, date) under index=<INDICATOR>/aoi=<AOI>/.
type Writer struct {
	Storage service.Storage
	Workdir string
}

// Write encodes and saves every segment of the index. The satellite letter
// identifies the platform in the logs; it does not enter the file names.
// A failed file does not prevent the others: the errors are merged and
// returned together.
func (w Writer) Write(ctx context.Context, index processor.SegmentIndex, aoiID, satelliteLetter string) error {
	ctx = log.WithFields(ctx, zap.String("aoi", aoiID), zap.String("satellite", satelliteLetter))

	workdir := filepath.Join(w.Workdir, uuid.New().String())
	if err := os.MkdirAll(workdir, 0766); err != nil {
		return service.MakeTemporary(fmt.Errorf("make directory %s: %w", workdir, err))
	}
	defer os.RemoveAll(workdir)

	var err error
	for indicator, byDate := range index {
		for dateKey, segments := range byDate {
			if len(segments) == 0 {
				continue
			}
			date, perr := time.Parse(common.DateFormatDay, dateKey)
			if perr != nil {
				err = service.MergeErrors(true, err, fmt.Errorf("Write[%s_%s]: %w", indicator, dateKey, perr))
				continue
			}
			if werr := w.write(ctx, segments[0], indicator, date, aoiID, workdir); werr != nil {
				log.Logger(ctx).Error("write failed", zap.String("indicator", indicator.String()), zap.String("date", dateKey), zap.Error(werr))
				err = service.MergeErrors(true, err, fmt.Errorf("Write[%s_%s].%w", indicator, dateKey, werr))
			}
		}
	}
	return err
}

// write encodes one segment into the scratch dir and moves it into place.
func (w Writer) write(ctx context.Context, segment processor.IndicatorRaster, indicator common.Indicator, date time.Time, aoiID, workdir string) error {
	nodata := segment.NoData
	r := raster.Raster{Grid: segment.Grid, Bands: [][][]float64{segment.Values}, NoData: &nodata}
	ds, err := r.ToMemDataset()
	if err != nil {
		return fmt.Errorf("write.%w", err)
	}
	defer ds.Close()

	file := filepath.Join(workdir, common.OutputFileName(indicator, date, aoiID))
	cog, err := ds.Translate(file, cogSwitches)
	if err != nil {
		return fmt.Errorf("write.Translate: %w", err)
	}
	cog.Close()

	uri, err := w.Storage.Save(ctx, file, common.OutputRelPath(indicator, date, aoiID))
	if err != nil {
		return fmt.Errorf("write.%w", err)
	}
	log.Logger(ctx).Sugar().Infof("saved %s", uri)
	return nil
}
