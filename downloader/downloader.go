// Package downloader caches AOI chips ahead of pipeline runs: one GeoTIFF
// per acquisition day, produced by the first chip provider able to serve it.
package downloader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cropsense/s2-biophys/catalog/entities"
	"github.com/cropsense/s2-biophys/common"
	"github.com/cropsense/s2-biophys/interface/provider"
	"github.com/cropsense/s2-biophys/service"
	"github.com/cropsense/s2-biophys/service/log"
)

// Downloader fills a chip cache directory from a chain of providers.
type Downloader struct {
	Providers []provider.ChipProvider
}

// ProcessAcquisition downloads the AOI chip of the acquisition into dir.
// An existing chip is kept: acquisitions of the same day share one chip, and
// an interrupted run resumes where it stopped.
func (d *Downloader) ProcessAcquisition(ctx context.Context, acq *entities.Acquisition, area entities.SearchArea, dir string) error {
	if len(d.Providers) == 0 {
		return fmt.Errorf("ProcessAcquisition: no chip provider configured")
	}

	localFile := filepath.Join(dir, common.ChipFileName(area.ID, acq.Date))
	if _, err := os.Stat(localFile); err == nil {
		log.Logger(ctx).Sugar().Debugf("%s already cached", filepath.Base(localFile))
		return nil
	}

	// Download with the first successful chipProvider
	log.Logger(ctx).Sugar().Infof("downloading %s", acq.SourceID)
	var err error
	for _, chipProvider := range d.Providers {
		e := chipProvider.Download(ctx, acq, area, localFile)
		if e == nil {
			e = provider.ValidateChip(localFile)
		} else {
			os.Remove(localFile) // drop a partial download
		}
		if err = service.MergeErrors(false, err, e); err == nil {
			break
		}
		log.Logger(ctx).Sugar().Warnf("%v", e)
	}
	if err != nil {
		return fmt.Errorf("ProcessAcquisition[%s].ChipProviders.%w", acq.SourceID, err)
	}

	log.Logger(ctx).Sugar().Infof("cached %s", filepath.Base(localFile))
	return nil
}
