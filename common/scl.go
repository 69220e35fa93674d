package common

//go:generate go run github.com/dmarkham/enumer -json -trimprefix SCL -type SCLClass

// SCLClass is a Sentinel-2 L2A scene classification code
type SCLClass int

const (
	SCLNoData SCLClass = iota
	SCLSaturatedDefective
	SCLCastShadows
	SCLCloudShadows
	SCLVegetation
	SCLNotVegetated
	SCLWater
	SCLUnclassified
	SCLCloudMediumProbability
	SCLCloudHighProbability
	SCLThinCirrus
	SCLSnowIce
)

// DefaultKeepClasses returns the scene classification keep-list of the
// validity mask: cast shadows, vegetation, bare soils, water, unclassified.
func DefaultKeepClasses() map[int]struct{} {
	keep := map[int]struct{}{}
	for _, c := range []SCLClass{SCLCastShadows, SCLVegetation, SCLNotVegetated, SCLWater, SCLUnclassified} {
		keep[int(c)] = struct{}{}
	}
	return keep
}
