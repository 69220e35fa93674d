package provider

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cropsense/s2-biophys/catalog/entities"
	"github.com/cropsense/s2-biophys/common"
	"github.com/cropsense/s2-biophys/interface/imagery"
	"github.com/cropsense/s2-biophys/service"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/go-spatial/geom"
)

const (
	sentinelAwsBucket         = "sentinel-cogs"
	sentinelAwsPrefixTemplate = "sentinel-s2-l2a-cogs/{UTM_ZONE}/{LATITUDE_BAND}/{GRID_SQUARE}/{YEAR}/{MONTH_COMPACT}/{SCENE}/"
	sentinelAwsRegion         = "us-west-2"
)

// S3Provider implements ChipProvider over the Sentinel-2 L2A COG mirror on
// AWS: the band COGs of the acquisition are downloaded whole, then windowed
// and stacked locally.
type S3Provider struct {
	accessKeyId     string
	secretAccessKey string
	resolution      float64
}

// NewS3Provider creates a new ChipProvider from the AWS Sentinel-2 L2A COGs.
// Credentials are optional: without them the bucket is read anonymously and
// requester-pays downloads are out of reach.
func NewS3Provider(accessKeyId, secretAccessKey string, resolution float64) *S3Provider {
	if resolution <= 0 {
		resolution = imagery.DefaultResolution
	}
	return &S3Provider{accessKeyId, secretAccessKey, resolution}
}

// Name implements ChipProvider
func (ip *S3Provider) Name() string {
	return "SentinelAws"
}

// Download implements ChipProvider
func (ip *S3Provider) Download(ctx context.Context, acq *entities.Acquisition, area entities.SearchArea, localFile string) error {
	extent, err := geom.NewExtentFromGeometry(area.Geometry)
	if err != nil {
		return fmt.Errorf("S3Provider.NewExtentFromGeometry: %w", err)
	}

	info, err := common.Info(acq.SourceID)
	if err != nil {
		return fmt.Errorf("S3Provider.%w", err)
	}
	prefix := common.FormatBrackets(sentinelAwsPrefixTemplate, info)

	opts := []func(*config.LoadOptions) error{config.WithRegion(sentinelAwsRegion)}
	if ip.accessKeyId != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(ip.accessKeyId, ip.secretAccessKey, "")))
	} else {
		opts = append(opts, config.WithCredentialsProvider(aws.AnonymousCredentials{}))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return fmt.Errorf("S3Provider config.LoadDefaultConfig: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	downloader := manager.NewDownloader(client, func(d *manager.Downloader) {
		d.PartSize = 10 * 1024 * 1024 // 10MB per part
	})

	scratch, err := os.MkdirTemp(filepath.Dir(localFile), "chip")
	if err != nil {
		return service.MakeTemporary(fmt.Errorf("S3Provider.MkdirTemp: %w", err))
	}
	defer os.RemoveAll(scratch)

	source := chipSource{files: map[string]string{}, constants: angleConstants(acq)}
	for _, band := range common.ChipBands {
		if _, ok := source.constants[band]; ok {
			continue
		}
		file := filepath.Join(scratch, band+".tif")
		if err := ip.downloadObject(ctx, downloader, prefix+band+".tif", file); err != nil {
			return fmt.Errorf("S3Provider.%w", err)
		}
		source.files[band] = file
	}

	if err := assembleChip(source, extent, ip.resolution, localFile); err != nil {
		return fmt.Errorf("S3Provider.%w", err)
	}
	return nil
}

func (ip *S3Provider) downloadObject(ctx context.Context, downloader *manager.Downloader, objectKey, localPath string) error {
	file, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("downloadObject: failed to create file %s: %w", localPath, err)
	}
	defer file.Close()

	input := &s3.GetObjectInput{
		Bucket: aws.String(sentinelAwsBucket),
		Key:    aws.String(objectKey),
	}
	if ip.accessKeyId != "" {
		input.RequestPayer = "requester"
	}

	if _, err := downloader.Download(ctx, file, input); err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return ErrChipNotFound{objectKey}
		}
		return fmt.Errorf("downloadObject: failed to download object %s:%s: %w",
			sentinelAwsBucket, objectKey, err)
	}
	return nil
}
