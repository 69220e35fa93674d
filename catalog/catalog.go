package catalog

import (
	"context"
	"fmt"
	"regexp"
	"runtime"

	"github.com/cropsense/s2-biophys/catalog/entities"
	"github.com/cropsense/s2-biophys/service/geometry"
	"github.com/cropsense/s2-biophys/service/log"
	"github.com/go-spatial/geom/encoding/wkt"
	"github.com/paulsmith/gogeos/geos"
)

// Catalog is the main class of this package
type Catalog struct {
	EarthSearchURL    string // defaults to earthsearch.EarthSearchURL
	CopernicusCatalog bool   // enables the Copernicus OData catalog as a fallback
	Deduplicator      Deduplicator
}

func (c *Catalog) ValidateArea(area *entities.SearchArea) error {
	// Check AOI ID
	matched, err := regexp.MatchString("^[a-zA-Z0-9-:_]+([a-zA-Z0-9-:_]+)*$", area.ID)
	if err != nil {
		return fmt.Errorf("validateArea.AOI: %w", err)
	}
	if !matched {
		return fmt.Errorf("validateArea: wrong format for AOI (must be chars, numbers and -:_)")
	}

	// Check period
	if area.EndTime.Before(area.StartTime) {
		return fmt.Errorf("validateArea: end of period is before its start")
	}

	if area.Geometry == nil {
		return fmt.Errorf("validateArea: area has no geometry")
	}
	return nil
}

// DoInventory lists the acquisitions covering the area over the interval of time:
// one canonical acquisition per take, sorted by sensing time.
func (c *Catalog) DoInventory(ctx context.Context, area entities.SearchArea) (entities.Acquisitions, error) {
	if err := c.ValidateArea(&area); err != nil {
		return entities.Acquisitions{}, fmt.Errorf("DoInventory.%w", err)
	}

	// Union the fields of the AOI into a single simplified geometry
	unioned, err := geometry.UnionGeom(area.Geometry, geometry.TOLERANCE_GEOG)
	if err != nil {
		return entities.Acquisitions{}, fmt.Errorf("DoInventory.%w", err)
	}

	// geos AOI
	aoi, err := geos.FromWKT(wkt.MustEncode(unioned))
	if err != nil {
		return entities.Acquisitions{}, fmt.Errorf("DoInventory.FromWKT: %w", err)
	}

	// Search acquisitions covering this area
	log.Logger(ctx).Sugar().Debugf("Search acquisitions for AOI %s from %v to %v", area.ID, area.StartTime, area.EndTime)
	acquisitions, err := c.inventory(ctx, &area, *aoi)
	if err != nil {
		return entities.Acquisitions{}, fmt.Errorf("DoInventory.%w", err)
	}

	runtime.KeepAlive(aoi)

	return acquisitions, nil
}
