// Package imagery assembles in-memory acquisition cubes: the AOI window of
// the requested bands and of the scene classification, warped out of remote
// band rasters or locally cached chips, one shared grid per acquisition.
package imagery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/cropsense/s2-biophys/catalog/entities"
	"github.com/cropsense/s2-biophys/common"
	"github.com/cropsense/s2-biophys/service/raster"
	"github.com/go-spatial/geom"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultResolution is the pixel size (in target units) of the fetched
	// windows: the coarsest native resolution of the model bands.
	DefaultResolution = 20
	// defaultWorkers bounds the (acquisition, band) windows read at once.
	defaultWorkers = 10
)

// Config is the startup configuration of the cube fetcher.
type Config struct {
	// CacheDir is an optional directory of pre-downloaded AOI chips,
	// consulted before any remote access.
	CacheDir string
	// Workers bounds the number of acquisitions fetched at once.
	Workers int
	// IOThreads bounds the working threads of one warp.
	IOThreads int
}

// CubeProvider fetches the multi-temporal band stack of an AOI.
type CubeProvider interface {
	// FetchCube fetches the AOI window of the bands and of the scene
	// classification for every acquisition. A nil cube with a nil error is
	// the normal outcome of an empty acquisition list.
	FetchCube(ctx context.Context, acqs []*entities.Acquisition, aoi entities.AreaOfInterest, bands []string, resolution float64) (*Cube, error)
}

// Cube is a fetched acquisition stack, in sensing-time order.
type Cube struct {
	BandNames []string
	Slices    []Slice
}

// Slice holds the window of one acquisition: Bands[band][row][col] and the
// scene classification, both on Grid.
type Slice struct {
	Date  time.Time
	Bands [][][]float64
	SCL   [][]int
	Grid  raster.Grid
}

// Dates returns the sensing dates of the cube, in slice order.
func (c *Cube) Dates() []time.Time {
	dates := make([]time.Time, len(c.Slices))
	for i, s := range c.Slices {
		dates[i] = s.Date
	}
	return dates
}

// Provider implements CubeProvider on godal: remote rasters are read through
// the VSI handlers (see RegisterVSIHandlers), cached chips from the local
// filesystem.
type Provider struct {
	Config Config
}

// FetchCube implements CubeProvider. The fetch is all-or-nothing: the first
// failed window cancels the remaining jobs and fails the cube.
func (p Provider) FetchCube(ctx context.Context, acqs []*entities.Acquisition, aoi entities.AreaOfInterest, bands []string, resolution float64) (*Cube, error) {
	if len(acqs) == 0 {
		return nil, nil
	}
	if len(bands) == 0 {
		bands = common.DefaultBands
	}
	if resolution <= 0 {
		resolution = DefaultResolution
	}

	extent, err := geom.NewExtentFromGeometry(aoi.Geometry)
	if err != nil {
		return nil, fmt.Errorf("FetchCube.NewExtentFromGeometry: %w", err)
	}

	slices := make([]Slice, len(acqs))
	wg, ctx := errgroup.WithContext(ctx)
	jobChan := make(chan int, len(acqs))

	workers := p.Config.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	for i := 0; i < workers && i < len(acqs); i++ {
		wg.Go(func() error {
			for idx := range jobChan {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}
				slice, err := p.fetchSlice(ctx, acqs[idx], extent, aoi.ID, bands, resolution)
				if err != nil {
					return fmt.Errorf("FetchCube[%s].%w", acqs[idx].SourceID, err)
				}
				slices[idx] = *slice
			}
			return nil
		})
	}

	for i := range acqs {
		jobChan <- i
	}
	close(jobChan)

	if err := wg.Wait(); err != nil {
		return nil, err
	}

	return &Cube{BandNames: bands, Slices: slices}, nil
}

// fetchSlice reads the window of one acquisition, preferring a cached chip.
func (p Provider) fetchSlice(ctx context.Context, acq *entities.Acquisition, extent *geom.Extent, aoiID string, bands []string, resolution float64) (*Slice, error) {
	if p.Config.CacheDir != "" {
		chip := filepath.Join(p.Config.CacheDir, common.ChipFileName(aoiID, acq.Date))
		if _, err := os.Stat(chip); err == nil {
			slice, err := p.sliceFromChip(chip, acq, extent, bands)
			if err != nil {
				return nil, fmt.Errorf("fetchSlice.%w", err)
			}
			return slice, nil
		}
	}
	slice, err := p.sliceFromAssets(acq, extent, bands, resolution)
	if err != nil {
		return nil, fmt.Errorf("fetchSlice.%w", err)
	}
	return slice, nil
}

// sliceFromChip crops the AOI window out of a cached chip and picks the
// requested bands from the fixed chip layout. A chip was already resampled
// onto one grid by the downloader: the window keeps its native resolution.
func (p Provider) sliceFromChip(chip string, acq *entities.Acquisition, extent *geom.Extent, bands []string) (*Slice, error) {
	window, err := ReadWindow(chip, extent, 0, p.Config.IOThreads)
	if err != nil {
		return nil, fmt.Errorf("sliceFromChip.%w", err)
	}
	if len(window.Bands) != len(common.ChipBands) {
		return nil, fmt.Errorf("sliceFromChip[%s]: expecting %d bands, found %d", chip, len(common.ChipBands), len(window.Bands))
	}

	chipIndex := map[string]int{}
	for i, name := range common.ChipBands {
		chipIndex[name] = i
	}

	slice := Slice{Date: acq.Date, Grid: window.Grid, Bands: make([][][]float64, len(bands))}
	for i, band := range bands {
		idx, ok := chipIndex[band]
		if !ok {
			return nil, fmt.Errorf("sliceFromChip[%s]: band %s is not part of the chip layout", chip, band)
		}
		slice.Bands[i] = window.Bands[idx]
	}
	slice.SCL = classesFromFloat(window.Bands[chipIndex[common.SCLBand]])
	return &slice, nil
}

// sliceFromAssets warps the AOI window out of each remote band raster. All
// the windows of one acquisition must land on the same grid.
func (p Provider) sliceFromAssets(acq *entities.Acquisition, extent *geom.Extent, bands []string, resolution float64) (*Slice, error) {
	slice := Slice{Date: acq.Date, Bands: make([][][]float64, len(bands))}
	for i, band := range bands {
		href, ok := acq.Assets[band]
		if !ok {
			return nil, fmt.Errorf("sliceFromAssets: no asset for band %s", band)
		}
		window, err := ReadWindow(vsiPath(href), extent, resolution, p.Config.IOThreads)
		if err != nil {
			return nil, fmt.Errorf("sliceFromAssets[%s].%w", band, err)
		}
		if i == 0 {
			slice.Grid = window.Grid
		} else if !window.Grid.Equal(slice.Grid) {
			return nil, fmt.Errorf("sliceFromAssets: band %s window %dx%d does not match the %dx%d acquisition grid",
				band, window.Grid.Width, window.Grid.Height, slice.Grid.Width, slice.Grid.Height)
		}
		slice.Bands[i] = window.Bands[0]
	}

	href, ok := acq.Assets[common.SCLBand]
	if !ok {
		return nil, fmt.Errorf("sliceFromAssets: no scene classification asset")
	}
	window, err := ReadWindow(vsiPath(href), extent, resolution, p.Config.IOThreads)
	if err != nil {
		return nil, fmt.Errorf("sliceFromAssets[%s].%w", common.SCLBand, err)
	}
	if !window.Grid.Equal(slice.Grid) {
		return nil, fmt.Errorf("sliceFromAssets: classification window %dx%d does not match the %dx%d acquisition grid",
			window.Grid.Width, window.Grid.Height, slice.Grid.Width, slice.Grid.Height)
	}
	slice.SCL = classesFromFloat(window.Bands[0])
	return &slice, nil
}

// ReadWindow warps the AOI window out of the raster at path. The window
// stays in the source spatial reference: the extent, given in geographic
// coordinates, is converted by the warper. A resolution (in source units)
// forces the output grid; zero keeps the source resolution.
func ReadWindow(path string, extent *geom.Extent, resolution float64, threads int) (*raster.Raster, error) {
	ds, err := godal.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ReadWindow.Open[%s]: %w", path, err)
	}
	defer ds.Close()

	switches := []string{
		"-te", formatFloat(extent.MinX()), formatFloat(extent.MinY()), formatFloat(extent.MaxX()), formatFloat(extent.MaxY()),
		"-te_srs", "EPSG:4326",
		"-r", "near",
		"-of", "MEM",
	}
	if resolution > 0 {
		switches = append(switches, "-tr", formatFloat(resolution), formatFloat(resolution))
	}
	if threads > 0 {
		switches = append(switches, "-wo", fmt.Sprintf("NUM_THREADS=%d", threads))
	}

	window, err := ds.Warp("", switches)
	if err != nil {
		return nil, fmt.Errorf("ReadWindow.Warp[%s]: %w", path, err)
	}
	defer window.Close()

	r, err := raster.FromDataset(window)
	if err != nil {
		return nil, fmt.Errorf("ReadWindow.%w", err)
	}
	return r, nil
}

// vsiPath maps an asset href to the GDAL path reading it: gs:// and s3://
// go through the registered VSI handlers, http(s) through vsicurl, anything
// else is a local path.
func vsiPath(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return "/vsicurl/" + href
	}
	return href
}

func classesFromFloat(values [][]float64) [][]int {
	classes := make([][]int, len(values))
	for y, row := range values {
		classes[y] = make([]int, len(row))
		for x, value := range row {
			classes[y][x] = int(value)
		}
	}
	return classes
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%.17g", f)
}
