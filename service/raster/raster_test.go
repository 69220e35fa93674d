package raster

import "testing"

func TestGridEqual(t *testing.T) {
	grid := Grid{GeoTransform: [6]float64{600000, 20, 0, 5200020, 0, -20}, Width: 64, Height: 32}

	same := grid
	same.GeoTransform[0] += 1e-9 // below warp noise tolerance
	if !grid.Equal(same) {
		t.Errorf("expecting grids to be equal within tolerance")
	}

	shifted := grid
	shifted.GeoTransform[0] += 20
	if grid.Equal(shifted) {
		t.Errorf("expecting shifted grid to differ")
	}

	resized := grid
	resized.Width++
	if grid.Equal(resized) {
		t.Errorf("expecting resized grid to differ")
	}

	// the spatial reference text is not part of the comparison
	rephrased := grid
	rephrased.CRSWKT = `PROJCS["WGS 84 / UTM zone 32N"]`
	if !grid.Equal(rephrased) {
		t.Errorf("expecting WKT formatting to be ignored")
	}
}

func TestGridBounds(t *testing.T) {
	grid := Grid{GeoTransform: [6]float64{600000, 20, 0, 5200020, 0, -20}, Width: 100, Height: 50}
	xmin, ymin, xmax, ymax := grid.Bounds()
	if xmin != 600000 || xmax != 602000 {
		t.Errorf("expecting x range [600000, 602000], found [%v, %v]", xmin, xmax)
	}
	if ymin != 5199020 || ymax != 5200020 {
		t.Errorf("expecting y range [5199020, 5200020], found [%v, %v]", ymin, ymax)
	}
}
