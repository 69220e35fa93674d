package common

//go:generate go run github.com/dmarkham/enumer -json -type Indicator

// NoDataValue is the sentinel of indicator rasters: written wherever a pixel
// is masked out or the model abstains.
const NoDataValue = -9999.0

// Indicator is a biophysical variable derived from a band stack
type Indicator int

const (
	// LAI is the leaf area index
	LAI Indicator = iota
	// CCC is the canopy chlorophyll content
	CCC
	// CWC is the canopy water content
	CWC
)
