package provider

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cavaliercoder/grab"
	"github.com/cropsense/s2-biophys/catalog/entities"
	"github.com/cropsense/s2-biophys/common"
	"github.com/cropsense/s2-biophys/interface/imagery"
	"github.com/cropsense/s2-biophys/service"
	"github.com/go-spatial/geom"
)

// HTTPSProvider implements ChipProvider over the band COGs linked by the
// catalog assets: whole files over https, windowed and stacked locally.
type HTTPSProvider struct {
	resolution float64
}

// NewHTTPSProvider creates a new ChipProvider from the catalog asset links
func NewHTTPSProvider(resolution float64) *HTTPSProvider {
	if resolution <= 0 {
		resolution = imagery.DefaultResolution
	}
	return &HTTPSProvider{resolution}
}

// Name implements ChipProvider
func (ip *HTTPSProvider) Name() string {
	return "HTTPS"
}

// Download implements ChipProvider
func (ip *HTTPSProvider) Download(ctx context.Context, acq *entities.Acquisition, area entities.SearchArea, localFile string) error {
	if len(acq.Assets) == 0 {
		return ErrChipNotFound{acq.SourceID}
	}
	extent, err := geom.NewExtentFromGeometry(area.Geometry)
	if err != nil {
		return fmt.Errorf("HTTPSProvider.NewExtentFromGeometry: %w", err)
	}

	scratch, err := os.MkdirTemp(filepath.Dir(localFile), "chip")
	if err != nil {
		return service.MakeTemporary(fmt.Errorf("HTTPSProvider.MkdirTemp: %w", err))
	}
	defer os.RemoveAll(scratch)

	source := chipSource{files: map[string]string{}, constants: angleConstants(acq)}
	for _, band := range common.ChipBands {
		if _, ok := source.constants[band]; ok {
			continue
		}
		href, ok := acq.Assets[band]
		if !ok {
			if requiredChipBand(band) {
				return fmt.Errorf("HTTPSProvider[%s]: no asset for band %s", acq.SourceID, band)
			}
			continue
		}
		file := filepath.Join(scratch, band+".tif")
		req, err := grab.NewRequest(file, href)
		if err != nil {
			return fmt.Errorf("HTTPSProvider.NewRequest: %w", err)
		}
		req = req.WithContext(ctx)
		if err := download(ctx, req, "HTTPS:"+acq.SourceID+":"+band, false); err != nil {
			return fmt.Errorf("HTTPSProvider.%w", err)
		}
		source.files[band] = file
	}

	if err := assembleChip(source, extent, ip.resolution, localFile); err != nil {
		return fmt.Errorf("HTTPSProvider.%w", err)
	}
	return nil
}
