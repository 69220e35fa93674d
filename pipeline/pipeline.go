// Package pipeline runs the whole chain over one area of interest: catalog
// inventory, cube fetch, per-date indicator processing, COG persistence.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/cropsense/s2-biophys/catalog"
	"github.com/cropsense/s2-biophys/catalog/entities"
	"github.com/cropsense/s2-biophys/common"
	"github.com/cropsense/s2-biophys/interface/imagery"
	"github.com/cropsense/s2-biophys/processor"
	"github.com/cropsense/s2-biophys/service/log"
	"github.com/cropsense/s2-biophys/writer"
)

// Pipeline owns the collaborators of one run.
type Pipeline struct {
	Catalog   *catalog.Catalog
	Cube      imagery.CubeProvider
	Processor *processor.Processor
	Writer    *writer.Writer

	// Bands and Resolution of the fetched cube. Zero values select the
	// model bands at their coarsest native resolution.
	Bands      []string
	Resolution float64
	// Workers processing dates at once. Zero selects processor.DefaultWorkers.
	Workers int
}

// ProcessArea runs the pipeline over one search area. No imagery over the
// period is a normal outcome: an informational log and no output. A failed
// date is skipped; the outputs are the successful subset.
func (p *Pipeline) ProcessArea(ctx context.Context, area entities.SearchArea) error {
	ctx = log.With(ctx, "aoi", area.ID)

	acquisitions, err := p.Catalog.DoInventory(ctx, area)
	if err != nil {
		return fmt.Errorf("ProcessArea.%w", err)
	}

	cube, err := p.Cube.FetchCube(ctx, acquisitions.Acquisitions, area.AreaOfInterest, p.Bands, p.Resolution)
	if err != nil {
		return fmt.Errorf("ProcessArea.%w", err)
	}
	if cube == nil || len(cube.Slices) == 0 {
		log.Logger(ctx).Info("No Sentinel-2 data returned for AOI and date range.")
		return nil
	}

	// One stack per day: a same-day sibling (an AOI straddling a tile seam)
	// adds nothing the mosaicking of the cube did not already resolve.
	slicesByDate := make(map[string]imagery.Slice, len(cube.Slices))
	dates := make([]time.Time, 0, len(cube.Slices))
	for _, slice := range cube.Slices {
		key := slice.Date.Format(common.DateFormatDay)
		if _, ok := slicesByDate[key]; ok {
			log.Logger(ctx).Sugar().Debugf("skipping same-day slice %s", key)
			continue
		}
		slicesByDate[key] = slice
		dates = append(dates, slice.Date)
	}

	log.Logger(ctx).Sugar().Infof("processing %d dates", len(dates))
	task := func(ctx context.Context, date time.Time) (string, map[common.Indicator]processor.IndicatorRaster, error) {
		slice := slicesByDate[date.Format(common.DateFormatDay)]
		return p.Processor.ProcessDate(ctx, processor.DateSlice{
			Date:      slice.Date,
			Bands:     slice.Bands,
			BandNames: cube.BandNames,
			SCL:       slice.SCL,
			Grid:      slice.Grid,
		})
	}
	index := processor.RunAll(ctx, dates, p.Workers, task)
	if len(index) == 0 {
		log.Logger(ctx).Warn("no date processed successfully")
		return nil
	}

	if err := p.Writer.Write(ctx, index, area.ID, satelliteLetter(acquisitions.Acquisitions)); err != nil {
		return fmt.Errorf("ProcessArea.%w", err)
	}
	return nil
}

// satelliteLetter returns the Sentinel-2 unit of the run for the output
// logs, "X" when the inventory mixes units or does not tell.
func satelliteLetter(acqs []*entities.Acquisition) string {
	letter := ""
	for _, acq := range acqs {
		switch acq.MissionLetter {
		case "", letter:
		case "A", "B":
			if letter != "" {
				return "X"
			}
			letter = acq.MissionLetter
		default:
			return "X"
		}
	}
	if letter == "" {
		return "X"
	}
	return letter
}
