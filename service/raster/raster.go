package raster

import (
	"fmt"
	"math"

	"github.com/airbusgeo/godal"
)

// gtEpsilon absorbs the floating point noise of warp-derived geotransforms.
const gtEpsilon = 1e-6

// Grid is the georeferencing of a raster window.
type Grid struct {
	GeoTransform [6]float64
	CRSWKT       string
	Width        int
	Height       int
}

// Equal reports whether two grids share the same pixel layout. The spatial
// reference is not compared textually: grids warped to the same target carry
// equivalent WKT with unstable formatting.
func (g Grid) Equal(other Grid) bool {
	if g.Width != other.Width || g.Height != other.Height {
		return false
	}
	for i := range g.GeoTransform {
		if math.Abs(g.GeoTransform[i]-other.GeoTransform[i]) > gtEpsilon {
			return false
		}
	}
	return true
}

// Bounds returns the georeferenced extent of the grid (xmin, ymin, xmax, ymax).
func (g Grid) Bounds() (float64, float64, float64, float64) {
	gt, w, h := g.GeoTransform, float64(g.Width), float64(g.Height)
	x0, y0 := gt[0], gt[3]
	x1 := gt[0] + w*gt[1] + h*gt[2]
	y1 := gt[3] + w*gt[4] + h*gt[5]
	return math.Min(x0, x1), math.Min(y0, y1), math.Max(x0, x1), math.Max(y0, y1)
}

// Raster is an in-memory multi-band float64 raster: Bands[band][row][col].
type Raster struct {
	Grid
	Bands  [][][]float64
	NoData *float64
}

// FromDataset loads every band of the dataset in memory.
func FromDataset(ds *godal.Dataset) (*Raster, error) {
	structure := ds.Structure()
	gt, err := ds.GeoTransform()
	if err != nil {
		return nil, fmt.Errorf("FromDataset.GeoTransform: %w", err)
	}
	r := Raster{
		Grid:  Grid{GeoTransform: gt, Width: structure.SizeX, Height: structure.SizeY},
		Bands: make([][][]float64, structure.NBands),
	}
	if sr := ds.SpatialRef(); sr != nil {
		if r.CRSWKT, err = sr.WKT(); err != nil {
			return nil, fmt.Errorf("FromDataset.WKT: %w", err)
		}
	}
	for i, band := range ds.Bands() {
		buf := make([]float64, structure.SizeX*structure.SizeY)
		if err := band.Read(0, 0, buf, structure.SizeX, structure.SizeY); err != nil {
			return nil, fmt.Errorf("FromDataset.Read[band %d]: %w", i+1, err)
		}
		rows := make([][]float64, structure.SizeY)
		for y := range rows {
			rows[y] = buf[y*structure.SizeX : (y+1)*structure.SizeX]
		}
		r.Bands[i] = rows
		if nd, ok := band.NoData(); ok && r.NoData == nil {
			r.NoData = &nd
		}
	}
	return &r, nil
}

// ToMemDataset creates an in-memory GDAL dataset from the raster.
// The caller owns the returned dataset.
func (r *Raster) ToMemDataset() (*godal.Dataset, error) {
	ds, err := godal.Create(godal.Memory, "", len(r.Bands), godal.Float64, r.Width, r.Height)
	if err != nil {
		return nil, fmt.Errorf("ToMemDataset.Create: %w", err)
	}
	if err := r.fill(ds); err != nil {
		ds.Close()
		return nil, fmt.Errorf("ToMemDataset.%w", err)
	}
	return ds, nil
}

// WriteGTiff encodes the raster as a GeoTIFF file.
func (r *Raster) WriteGTiff(file string) error {
	ds, err := godal.Create(godal.GTiff, file, len(r.Bands), godal.Float64, r.Width, r.Height)
	if err != nil {
		return fmt.Errorf("WriteGTiff.Create: %w", err)
	}
	if err := r.fill(ds); err != nil {
		ds.Close()
		return fmt.Errorf("WriteGTiff.%w", err)
	}
	if err := ds.Close(); err != nil {
		return fmt.Errorf("WriteGTiff.Close: %w", err)
	}
	return nil
}

// ReadGTiff loads a GeoTIFF file in memory.
func ReadGTiff(file string) (*Raster, error) {
	ds, err := godal.Open(file)
	if err != nil {
		return nil, fmt.Errorf("ReadGTiff.Open: %w", err)
	}
	defer ds.Close()
	r, err := FromDataset(ds)
	if err != nil {
		return nil, fmt.Errorf("ReadGTiff.%w", err)
	}
	return r, nil
}

func (r *Raster) fill(ds *godal.Dataset) error {
	if err := ds.SetGeoTransform(r.GeoTransform); err != nil {
		return fmt.Errorf("SetGeoTransform: %w", err)
	}
	if r.CRSWKT != "" {
		sr, err := godal.NewSpatialRefFromWKT(r.CRSWKT)
		if err != nil {
			return fmt.Errorf("NewSpatialRefFromWKT: %w", err)
		}
		defer sr.Close()
		if err := ds.SetSpatialRef(sr); err != nil {
			return fmt.Errorf("SetSpatialRef: %w", err)
		}
	}
	if r.NoData != nil {
		if err := ds.SetNoData(*r.NoData); err != nil {
			return fmt.Errorf("SetNoData: %w", err)
		}
	}
	for b, band := range ds.Bands() {
		flat := make([]float64, r.Width*r.Height)
		for y, row := range r.Bands[b] {
			copy(flat[y*r.Width:(y+1)*r.Width], row)
		}
		if err := band.Write(0, 0, flat, r.Width, r.Height); err != nil {
			return fmt.Errorf("Write[band %d]: %w", b+1, err)
		}
	}
	return nil
}

// WarpToCRS reprojects the raster to the target spatial reference
// (e.g. "EPSG:32632" or a WKT string), with nearest-neighbour resampling and
// the nodata value carried through.
func (r *Raster) WarpToCRS(targetCRS string, threads int) (*Raster, error) {
	switches := []string{"-t_srs", targetCRS}
	warped, err := r.warp(switches, threads)
	if err != nil {
		return nil, fmt.Errorf("WarpToCRS[%s].%w", targetCRS, err)
	}
	return warped, nil
}

// WarpOnto reprojects the raster onto the exact target grid: same spatial
// reference, same extent, same pixel count.
func (r *Raster) WarpOnto(target Grid, threads int) (*Raster, error) {
	xmin, ymin, xmax, ymax := target.Bounds()
	switches := []string{
		"-t_srs", target.CRSWKT,
		"-te", formatFloat(xmin), formatFloat(ymin), formatFloat(xmax), formatFloat(ymax),
		"-ts", fmt.Sprintf("%d", target.Width), fmt.Sprintf("%d", target.Height),
	}
	warped, err := r.warp(switches, threads)
	if err != nil {
		return nil, fmt.Errorf("WarpOnto.%w", err)
	}
	return warped, nil
}

func (r *Raster) warp(switches []string, threads int) (*Raster, error) {
	switches = append(switches, "-of", "MEM", "-r", "near")
	if r.NoData != nil {
		nd := formatFloat(*r.NoData)
		switches = append(switches, "-srcnodata", nd, "-dstnodata", nd)
	}
	if threads > 0 {
		switches = append(switches, "-wo", fmt.Sprintf("NUM_THREADS=%d", threads))
	}
	src, err := r.ToMemDataset()
	if err != nil {
		return nil, fmt.Errorf("warp.%w", err)
	}
	defer src.Close()
	dst, err := src.Warp("", switches)
	if err != nil {
		return nil, fmt.Errorf("warp: %w", err)
	}
	defer dst.Close()
	warped, err := FromDataset(dst)
	if err != nil {
		return nil, fmt.Errorf("warp.%w", err)
	}
	return warped, nil
}

func formatFloat(f float64) string {
	return fmt.Sprintf("%.17g", f)
}
