package catalog

import (
	"context"

	"github.com/cropsense/s2-biophys/catalog/entities"
	"github.com/paulsmith/gogeos/geos"
)

type AcquisitionsProvider interface {
	SearchAcquisitions(ctx context.Context, area *entities.SearchArea, aoi geos.Geometry) (entities.Acquisitions, error)
}
