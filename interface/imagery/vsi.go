package imagery

import (
	"context"
	"fmt"

	"github.com/airbusgeo/godal"
	"github.com/airbusgeo/osio"
	osioGcs "github.com/airbusgeo/osio/gcs"
	osioS3 "github.com/airbusgeo/osio/s3"
)

// RegisterVSIHandlers wires block-cached gs:// and s3:// reads into godal.
// Call once at startup, after godal.RegisterAll.
func RegisterVSIHandlers(ctx context.Context) error {
	gcsHandler, err := osioGcs.Handle(ctx)
	if err != nil {
		return fmt.Errorf("RegisterVSIHandlers.GSHandle: %w", err)
	}
	gcsAdapter, err := osio.NewAdapter(gcsHandler)
	if err != nil {
		return fmt.Errorf("RegisterVSIHandlers.NewAdapter: %w", err)
	}
	if err := godal.RegisterVSIHandler("gs://", gcsAdapter); err != nil {
		return fmt.Errorf("RegisterVSIHandlers.gs: %w", err)
	}

	s3Handler, err := osioS3.Handle(ctx)
	if err != nil {
		return fmt.Errorf("RegisterVSIHandlers.S3Handle: %w", err)
	}
	s3Adapter, err := osio.NewAdapter(s3Handler)
	if err != nil {
		return fmt.Errorf("RegisterVSIHandlers.NewAdapter: %w", err)
	}
	if err := godal.RegisterVSIHandler("s3://", s3Adapter); err != nil {
		return fmt.Errorf("RegisterVSIHandlers.s3: %w", err)
	}
	return nil
}
