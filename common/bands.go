package common

// SCLBand is the name of the scene classification band.
const SCLBand = "SCL"

// DefaultBands lists the reflectance bands feeding the biophysical models:
// the 10m and 20m bands of Sentinel-2, in spectral order.
var DefaultBands = []string{"B02", "B03", "B04", "B05", "B06", "B07", "B08", "B8A", "B11", "B12"}

// ChipBands is the band layout of a cached AOI chip, in file order: the
// reflectance bands, the sun and view angle grids, and the scene
// classification appended last.
var ChipBands = []string{
	"B01", "B02", "B03", "B04", "B05", "B06", "B07", "B08",
	"B8A", "B09", "B11", "B12",
	"sunAzimuthAngles", "sunZenithAngles", "viewAzimuthMean", "viewZenithMean",
	SCLBand,
}
