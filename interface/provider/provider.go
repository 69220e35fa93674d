package provider

import (
	"context"

	"github.com/cropsense/s2-biophys/catalog/entities"
)

// ChipProvider is the interface of a chip download service
type ChipProvider interface {
	// Download the AOI chip of the acquisition to the given localFile
	// The chip is a multi-band GeoTIFF laid out as common.ChipBands
	Download(ctx context.Context, acq *entities.Acquisition, area entities.SearchArea, localFile string) error

	// Name of the provider
	Name() string
}
