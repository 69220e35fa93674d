package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/araddon/dateparse"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/cropsense/s2-biophys/catalog"
	"github.com/cropsense/s2-biophys/catalog/entities"
	"github.com/cropsense/s2-biophys/downloader"
	"github.com/cropsense/s2-biophys/interface/provider"
	"github.com/cropsense/s2-biophys/service"
	"github.com/cropsense/s2-biophys/service/log"
)

type config struct {
	GeojsonFile   string
	StartDate     time.Time
	EndDate       time.Time
	Dir           string
	Sources       []string
	MaxCloudCover int
	Resolution    float64
	NoProgress    bool

	EarthSearchURL    string
	CopernicusCatalog bool
}

func newAppConfig() (*config, error) {
	config := config{}

	flag.StringVar(&config.GeojsonFile, "geojson", "", "geojson file of the areas of interest (required)")
	startDate := flag.String("start_date", "", "start of the period (required)")
	endDate := flag.String("end_date", "", "end of the period (required)")
	flag.StringVar(&config.Dir, "dir", "chips", "chip cache directory")
	sources := flag.String("source", "s3,https", "chip sources tried in order, comma separated (processapi|s3|https). processapi reads CDSE_CLIENT_ID/CDSE_CLIENT_SECRET, s3 optionally AWS credentials, from the environment or a .env file.")
	flag.IntVar(&config.MaxCloudCover, "max-cloud-cover", 100, "maximum scene cloud cover in percent (100 disables the filter)")
	flag.Float64Var(&config.Resolution, "resolution", 0, "pixel size of the chips, in meters (0: the coarsest native resolution of the model bands)")
	flag.BoolVar(&config.NoProgress, "no-progress", false, "disable the progress bar")
	flag.StringVar(&config.EarthSearchURL, "earthsearch-url", "", "Earth Search STAC endpoint (default: the public endpoint)")
	flag.BoolVar(&config.CopernicusCatalog, "copernicus-catalog", false, "enable the Copernicus OData catalog as a fallback")

	flag.Parse()

	if config.GeojsonFile == "" {
		return nil, fmt.Errorf("missing geojson config flag")
	}
	var err error
	if *startDate == "" {
		return nil, fmt.Errorf("missing start_date config flag")
	}
	if config.StartDate, err = dateparse.ParseAny(*startDate); err != nil {
		return nil, fmt.Errorf("start_date: %w", err)
	}
	if *endDate == "" {
		return nil, fmt.Errorf("missing end_date config flag")
	}
	if config.EndDate, err = dateparse.ParseAny(*endDate); err != nil {
		return nil, fmt.Errorf("end_date: %w", err)
	}
	if config.MaxCloudCover < 0 || config.MaxCloudCover > 100 {
		return nil, fmt.Errorf("max-cloud-cover must be in [0, 100]")
	}
	config.Sources = strings.Split(*sources, ",")
	return &config, nil
}

// chipProviders instantiates the chain of chip sources, in flag order.
func chipProviders(ctx context.Context, sources []string, resolution float64) ([]provider.ChipProvider, error) {
	var providers []provider.ChipProvider
	seen := service.StringSet{}
	for _, source := range sources {
		source = strings.TrimSpace(source)
		if seen.Exists(source) {
			return nil, fmt.Errorf("chip source %s listed twice", source)
		}
		seen.Push(source)
		switch source {
		case "processapi":
			clientID, clientSecret := os.Getenv("CDSE_CLIENT_ID"), os.Getenv("CDSE_CLIENT_SECRET")
			if clientID == "" || clientSecret == "" {
				return nil, fmt.Errorf("source processapi: missing CDSE_CLIENT_ID / CDSE_CLIENT_SECRET in the environment")
			}
			providers = append(providers, provider.NewProcessAPIProvider(ctx, clientID, clientSecret, resolution))
		case "s3":
			providers = append(providers, provider.NewS3Provider(os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY"), resolution))
		case "https":
			providers = append(providers, provider.NewHTTPSProvider(resolution))
		default:
			return nil, fmt.Errorf("unknown chip source %s (processapi|s3|https)", source)
		}
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("no chip source defined")
	}
	return providers, nil
}

func main() {
	ctx := context.Background()
	if err := run(ctx); err != nil {
		log.Fatal("error", zap.Error(err))
	}
}

func run(ctx context.Context) error {
	godotenv.Load()

	config, err := newAppConfig()
	if err != nil {
		return err
	}

	godal.RegisterAll()

	data, err := os.ReadFile(config.GeojsonFile)
	if err != nil {
		return fmt.Errorf("geojson %s: %w", config.GeojsonFile, err)
	}
	features, err := service.ReadFeatures(data)
	if err != nil {
		return fmt.Errorf("geojson %s: %w", config.GeojsonFile, err)
	}

	providers, err := chipProviders(ctx, config.Sources, config.Resolution)
	if err != nil {
		return err
	}
	dl := downloader.Downloader{Providers: providers}

	if err := os.MkdirAll(config.Dir, 0766); err != nil {
		return fmt.Errorf("make directory %s: %w", config.Dir, err)
	}

	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Name()
	}
	log.Logger(ctx).Sugar().Infof("caching chips from %s into %s", strings.Join(names, ", "), config.Dir)

	c := catalog.Catalog{EarthSearchURL: config.EarthSearchURL, CopernicusCatalog: config.CopernicusCatalog}
	for _, feature := range features {
		area := entities.SearchArea{
			AreaOfInterest: entities.AreaOfInterest{ID: feature.Name, Geometry: feature.Geometry},
			StartTime:      config.StartDate,
			EndTime:        config.EndDate,
			MaxCloudCover:  config.MaxCloudCover,
		}
		if e := cacheArea(ctx, &c, dl, area, config); e != nil {
			err = service.MergeErrors(true, err, fmt.Errorf("cacheArea[%s].%w", area.ID, e))
		}
	}
	return err
}

// cacheArea downloads the chips of one area and writes the manifest of what
// is cached. A failed acquisition is skipped, not fatal: the manifest lists
// the successful subset and the merged error is returned at the end.
func cacheArea(ctx context.Context, c *catalog.Catalog, dl downloader.Downloader, area entities.SearchArea, config *config) error {
	acquisitions, err := c.DoInventory(ctx, area)
	if err != nil {
		return err
	}
	if len(acquisitions.Acquisitions) == 0 {
		log.Logger(ctx).Sugar().Infof("no acquisition over %s", area.ID)
		return nil
	}

	var bar *progressbar.ProgressBar
	if !config.NoProgress {
		bar = progressbar.Default(int64(len(acquisitions.Acquisitions)), area.ID)
	}

	cached := entities.Acquisitions{
		Properties: map[string]string{
			"aoi":   area.ID,
			"start": config.StartDate.Format("2006-01-02"),
			"end":   config.EndDate.Format("2006-01-02"),
		},
	}
	for _, acq := range acquisitions.Acquisitions {
		if e := dl.ProcessAcquisition(ctx, acq, area, config.Dir); e != nil {
			log.Logger(ctx).Warn("chip failed", zap.String("image", acq.SourceID), zap.Error(e))
			err = service.MergeErrors(true, err, e)
		} else {
			cached.Acquisitions = append(cached.Acquisitions, acq)
		}
		if bar != nil {
			bar.Add(1)
		}
	}

	manifest, merr := json.MarshalIndent(cached, "", "  ")
	if merr != nil {
		return service.MergeErrors(true, err, fmt.Errorf("manifest: %w", merr))
	}
	file := filepath.Join(config.Dir, area.ID+"_acquisitions.json")
	if merr := os.WriteFile(file, manifest, 0644); merr != nil {
		return service.MergeErrors(true, err, fmt.Errorf("manifest %s: %w", file, merr))
	}
	log.Logger(ctx).Sugar().Infof("%d/%d chips cached for %s, manifest %s",
		len(cached.Acquisitions), len(acquisitions.Acquisitions), area.ID, file)
	return err
}
