// Package processor derives masked biophysical indicator rasters from the
// band stacks of an acquisition cube, one date at a time.
package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/cropsense/s2-biophys/biophys"
	"github.com/cropsense/s2-biophys/common"
	"github.com/cropsense/s2-biophys/service/log"
	"github.com/cropsense/s2-biophys/service/raster"
)

// DateSlice is the input of one timestamp: the band stack and the scene
// classification, both on the acquisition grid.
type DateSlice struct {
	Date      time.Time
	Bands     [][][]float64
	BandNames []string
	SCL       [][]int
	Grid      raster.Grid
}

// IndicatorRaster is one processed segment: an indicator field on the target
// grid, masked with NoData.
type IndicatorRaster struct {
	Grid   raster.Grid
	Values [][]float64
	NoData float64
}

// SegmentIndex collects the processed segments by indicator and date key
// (common.DateFormatDay). Merging appends, so a (indicator, date) pair may
// hold several segments.
type SegmentIndex map[common.Indicator]map[string][]IndicatorRaster

func (s SegmentIndex) add(indicator common.Indicator, dateKey string, segments ...IndicatorRaster) {
	byDate, ok := s[indicator]
	if !ok {
		byDate = map[string][]IndicatorRaster{}
		s[indicator] = byDate
	}
	byDate[dateKey] = append(byDate[dateKey], segments...)
}

// Processor turns the band stack of one date into masked indicator rasters.
type Processor struct {
	Runner    biophys.Runner
	TargetCRS string

	// Masking engine parameters. Zero values select the defaults.
	KeepClasses  map[int]struct{}
	MinSizePass1 int
	MinSizePass2 int

	// IOThreads bounds the working threads of one warp.
	IOThreads int
}

// ProcessDate runs the biophysical models on the band stack of one date,
// reprojects each field to the target CRS and applies the validity mask
// derived from the scene classification. It returns the date key and one
// segment per indicator. Any model, warp or grid-match error fails the whole
// date: a misaligned indicator is never silently recorded.
func (p *Processor) ProcessDate(ctx context.Context, slice DateSlice) (string, map[common.Indicator]IndicatorRaster, error) {
	dateKey := slice.Date.Format(common.DateFormatDay)
	ctx = log.With(ctx, "date", dateKey)

	nodata := float64(common.NoDataValue)
	var outGrid raster.Grid
	warped := map[common.Indicator]*raster.Raster{}
	for _, indicator := range common.IndicatorValues() {
		log.Logger(ctx).Sugar().Infof("run model %s", indicator)
		res, err := p.Runner.Run(ctx, biophys.Request{
			Variable:  indicator,
			Bands:     slice.Bands,
			BandNames: slice.BandNames,
			Grid:      slice.Grid,
		})
		if err != nil {
			return dateKey, nil, fmt.Errorf("ProcessDate[%s_%s].%w", dateKey, indicator, err)
		}
		field := raster.Raster{Grid: slice.Grid, Bands: [][][]float64{res.Values}, NoData: &nodata}
		w, err := field.WarpToCRS(p.TargetCRS, p.IOThreads)
		if err != nil {
			return dateKey, nil, fmt.Errorf("ProcessDate[%s_%s].%w", dateKey, indicator, err)
		}
		if len(warped) == 0 {
			outGrid = w.Grid
		} else if !w.Grid.Equal(outGrid) {
			return dateKey, nil, fmt.Errorf("ProcessDate[%s_%s]: reprojected grid %dx%d does not match the %dx%d output grid",
				dateKey, indicator, w.Grid.Width, w.Grid.Height, outGrid.Width, outGrid.Height)
		}
		warped[indicator] = w
	}

	mask, err := p.validityMask(slice, outGrid)
	if err != nil {
		return dateKey, nil, fmt.Errorf("ProcessDate[%s].%w", dateKey, err)
	}

	out := map[common.Indicator]IndicatorRaster{}
	for indicator, w := range warped {
		ApplyMask(w.Bands[0], mask, nodata)
		out[indicator] = IndicatorRaster{Grid: w.Grid, Values: w.Bands[0], NoData: nodata}
	}
	return dateKey, out, nil
}

// validityMask reprojects the scene classification onto the output grid and
// runs the masking engine on it. Pixels falling outside the classification
// footprint resolve to the NoData class and are masked out.
func (p *Processor) validityMask(slice DateSlice, outGrid raster.Grid) ([][]bool, error) {
	scl := raster.Raster{Grid: slice.Grid, Bands: [][][]float64{classesToFloat(slice.SCL)}}
	w, err := scl.WarpOnto(outGrid, p.IOThreads)
	if err != nil {
		return nil, fmt.Errorf("validityMask.%w", err)
	}
	if !w.Grid.Equal(outGrid) {
		return nil, fmt.Errorf("validityMask: classification grid %dx%d does not match the %dx%d output grid",
			w.Grid.Width, w.Grid.Height, outGrid.Width, outGrid.Height)
	}

	keep := p.KeepClasses
	if keep == nil {
		keep = common.DefaultKeepClasses()
	}
	minSizePass1, minSizePass2 := p.MinSizePass1, p.MinSizePass2
	if minSizePass1 == 0 {
		minSizePass1 = DefaultMinSizePass1
	}
	if minSizePass2 == 0 {
		minSizePass2 = DefaultMinSizePass2
	}
	return ComputeValidityMask(classesToInt(w.Bands[0]), keep, minSizePass1, minSizePass2), nil
}

func classesToFloat(classes [][]int) [][]float64 {
	out := make([][]float64, len(classes))
	for y, row := range classes {
		out[y] = make([]float64, len(row))
		for x, class := range row {
			out[y][x] = float64(class)
		}
	}
	return out
}

func classesToInt(values [][]float64) [][]int {
	out := make([][]int, len(values))
	for y, row := range values {
		out[y] = make([]int, len(row))
		for x, value := range row {
			out[y][x] = int(value)
		}
	}
	return out
}
