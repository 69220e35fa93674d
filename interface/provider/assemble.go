package provider

import (
	"fmt"

	"github.com/cropsense/s2-biophys/catalog/entities"
	"github.com/cropsense/s2-biophys/common"
	"github.com/cropsense/s2-biophys/interface/imagery"
	"github.com/cropsense/s2-biophys/service/raster"
	"github.com/go-spatial/geom"
)

// chipSource feeds assembleChip: band rasters on disk, and scene-level
// constants for the bands no archive serves as rasters.
type chipSource struct {
	files     map[string]string
	constants map[string]float64
}

// angleConstants fills the angle grids with the scene averages published by
// the catalog: over a chip-sized AOI the real grids are as good as constant.
func angleConstants(acq *entities.Acquisition) map[string]float64 {
	return map[string]float64{
		"sunAzimuthAngles": acq.SunAzimuth,
		"sunZenithAngles":  acq.SunZenith,
		"viewAzimuthMean":  acq.ViewAzimuth,
		"viewZenithMean":   acq.ViewZenith,
	}
}

// requiredChipBand reports whether the pipeline reads the band back from the
// chip: the model bands and the classification must come from real rasters,
// anything else may be filled with a constant.
func requiredChipBand(band string) bool {
	if band == common.SCLBand {
		return true
	}
	for _, b := range common.DefaultBands {
		if b == band {
			return true
		}
	}
	return false
}

// assembleChip warps the AOI window out of each band raster onto a shared
// grid and stacks the windows into the chip, in common.ChipBands order.
// Bands without a raster are filled with their constant (zero by default).
func assembleChip(source chipSource, extent *geom.Extent, resolution float64, localFile string) error {
	chip := raster.Raster{Bands: make([][][]float64, len(common.ChipBands))}
	gridFixed := false
	for i, band := range common.ChipBands {
		file, ok := source.files[band]
		if !ok {
			continue
		}
		window, err := imagery.ReadWindow(file, extent, resolution, 0)
		if err != nil {
			return fmt.Errorf("assembleChip[%s].%w", band, err)
		}
		if !gridFixed {
			chip.Grid = window.Grid
			gridFixed = true
		} else if !window.Grid.Equal(chip.Grid) {
			return fmt.Errorf("assembleChip: band %s window %dx%d does not match the %dx%d chip grid",
				band, window.Grid.Width, window.Grid.Height, chip.Grid.Width, chip.Grid.Height)
		}
		chip.Bands[i] = window.Bands[0]
	}
	if !gridFixed {
		return fmt.Errorf("assembleChip: no band raster to derive the chip grid from")
	}

	for i, band := range common.ChipBands {
		if chip.Bands[i] != nil {
			continue
		}
		chip.Bands[i] = constantBand(chip.Grid, source.constants[band])
	}

	if err := chip.WriteGTiff(localFile); err != nil {
		return fmt.Errorf("assembleChip.%w", err)
	}
	return nil
}

func constantBand(grid raster.Grid, value float64) [][]float64 {
	rows := make([][]float64, grid.Height)
	for y := range rows {
		rows[y] = make([]float64, grid.Width)
		if value == 0 {
			continue
		}
		for x := range rows[y] {
			rows[y][x] = value
		}
	}
	return rows
}
