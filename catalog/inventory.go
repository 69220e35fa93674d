package catalog

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"github.com/cropsense/s2-biophys/catalog/entities"
	"github.com/cropsense/s2-biophys/interface/catalog"
	"github.com/cropsense/s2-biophys/interface/catalog/copernicus"
	"github.com/cropsense/s2-biophys/interface/catalog/earthsearch"
	"github.com/cropsense/s2-biophys/service"
	"github.com/paulsmith/gogeos/geos"

	"github.com/cropsense/s2-biophys/service/log"
)

// inventory searches the providers in order until one succeeds, then refines the result
func (c *Catalog) inventory(ctx context.Context, area *entities.SearchArea, aoi geos.Geometry) (entities.Acquisitions, error) {
	// Search
	providers := []catalog.AcquisitionsProvider{
		&earthsearch.Provider{URL: c.EarthSearchURL},
	}
	if c.CopernicusCatalog {
		providers = append(providers, &copernicus.Provider{})
	}

	var err, e error
	var acquisitions entities.Acquisitions
	for _, provider := range providers {
		acquisitions, e = provider.SearchAcquisitions(ctx, area, aoi)
		if err = service.MergeErrors(false, err, e); err == nil {
			break
		}
	}
	if err != nil {
		return entities.Acquisitions{}, fmt.Errorf("inventory.%w", err)
	}

	// Refine inventory
	acquisitions.Acquisitions, err = c.refineInventory(ctx, acquisitions.Acquisitions, aoi)
	if err != nil {
		return entities.Acquisitions{}, fmt.Errorf("inventory.%w", err)
	}

	log.Logger(ctx).Sugar().Debugf("%d acquisitions found", len(acquisitions.Acquisitions))

	return acquisitions, nil
}

// refineInventory deduplicates the raw search result, removes what does not
// intersect the AOI and sorts by sensing time
func (c *Catalog) refineInventory(ctx context.Context, acquisitions []*entities.Acquisition, aoi geos.Geometry) ([]*entities.Acquisition, error) {
	dedup := c.Deduplicator
	if dedup == nil {
		dedup = BaselineDeduplicator{}
	}
	acquisitions = dedup.Deduplicate(ctx, acquisitions)

	acquisitions, err := removeOutsideAOI(acquisitions, aoi)
	if err != nil {
		return nil, fmt.Errorf("refineInventory.%w", err)
	}

	// Sort by dates
	sort.Slice(acquisitions, func(i, j int) bool {
		if acquisitions[i].Date.Equal(acquisitions[j].Date) {
			return acquisitions[i].SourceID < acquisitions[j].SourceID
		}
		return acquisitions[i].Date.Before(acquisitions[j].Date)
	})

	return acquisitions, nil
}

// removeOutsideAOI removes acquisitions that are located outside the AOI
// The search routine works over a simplified representation of the AOI.
// This may then include acquisitions that do not overlap with the AOI.
// In this step we sort out the acquisitions that are completely outside the actual AOI.
// Credit: OpenSarToolkit
func removeOutsideAOI(acquisitions []*entities.Acquisition, aoi geos.Geometry) ([]*entities.Acquisition, error) {
	// Prepare geometry for intersection
	paoi := aoi.Prepare()

	j := 0
	for i, acq := range acquisitions {
		footprint, err := geos.FromWKT(acq.GeometryWKT)
		if err != nil {
			return nil, fmt.Errorf("removeOutsideAOI.FromWKT: %w", err)
		}
		intersect, err := paoi.Intersects(footprint)
		if err != nil {
			return nil, fmt.Errorf("removeOutsideAOI.Intersects: %w", err)
		}
		if intersect {
			acquisitions[j] = acquisitions[i]
			j++
		}
	}
	runtime.KeepAlive(aoi)

	return acquisitions[0:j], nil
}
