package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/airbusgeo/godal"
	"github.com/araddon/dateparse"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/cropsense/s2-biophys/biophys"
	"github.com/cropsense/s2-biophys/catalog"
	"github.com/cropsense/s2-biophys/catalog/entities"
	"github.com/cropsense/s2-biophys/interface/imagery"
	"github.com/cropsense/s2-biophys/pipeline"
	"github.com/cropsense/s2-biophys/processor"
	"github.com/cropsense/s2-biophys/service"
	"github.com/cropsense/s2-biophys/service/log"
	"github.com/cropsense/s2-biophys/writer"
)

type config struct {
	GeojsonFile   string
	StartDate     time.Time
	EndDate       time.Time
	OutDir        string
	TargetCRS     string
	TestID        string
	MaxCloudCover int

	Workers         int
	IOThreads       int
	BandsResolution float64
	CacheDir        string
	WorkingDir      string

	EarthSearchURL    string
	CopernicusCatalog bool

	BiophysEngine string
	BiophysCmd    string
	BiophysImage  string
	Docker        biophys.DockerConfig
}

func newAppConfig() (*config, error) {
	config := config{}

	// Run
	flag.StringVar(&config.GeojsonFile, "geojson", "", "geojson file of the areas of interest (required)")
	startDate := flag.String("start_date", "", "start of the period (required)")
	endDate := flag.String("end_date", "", "end of the period (required)")
	flag.StringVar(&config.OutDir, "out_dir", "output", "output location of the indicator rasters (local directory or gs://)")
	flag.StringVar(&config.TargetCRS, "target_crs", "EPSG:32632", "CRS of the output rasters")
	flag.StringVar(&config.TestID, "test_id", "", "process only the feature with this id (optional)")
	flag.IntVar(&config.MaxCloudCover, "max-cloud-cover", 100, "maximum scene cloud cover in percent (100 disables the filter)")

	// Tuning
	flag.IntVar(&config.Workers, "workers", 0, "dates processed at once (0: number of cores minus two)")
	flag.IntVar(&config.IOThreads, "io-threads", 0, "working threads of one raster warp (0: GDAL default)")
	flag.Float64Var(&config.BandsResolution, "bands-resolution", imagery.DefaultResolution, "pixel size of the fetched bands, in target units")
	flag.StringVar(&config.CacheDir, "cache-dir", "", "directory of pre-downloaded AOI chips (optional, see the downloader tool)")
	flag.StringVar(&config.WorkingDir, "workdir", "", "working directory to store intermediate results (default: the system temp dir)")

	// Catalog
	flag.StringVar(&config.EarthSearchURL, "earthsearch-url", "", "Earth Search STAC endpoint (default: the public endpoint)")
	flag.BoolVar(&config.CopernicusCatalog, "copernicus-catalog", false, "enable the Copernicus OData catalog as a fallback")

	// Biophysical model engine
	flag.StringVar(&config.BiophysEngine, "biophys-engine", "exec", "engine running the biophysical model: exec or docker")
	flag.StringVar(&config.BiophysCmd, "biophys-cmd", "", "model command line (exec: executable first, fixed arguments after; docker: fixed arguments)")
	flag.StringVar(&config.BiophysImage, "biophys-image", "", "model docker image (docker engine only)")
	dockerEnvsStr := config.Docker.SetFlags()

	flag.Parse()

	if *dockerEnvsStr != "" {
		config.Docker.Envs = strings.Split(*dockerEnvsStr, ",")
	}

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
	if config.BandsResolution <= 0 {
		return nil, fmt.Errorf("bands-resolution must be positive")
	}
	if config.WorkingDir == "" {
		config.WorkingDir = os.TempDir()
	}
	switch config.BiophysEngine {
	case "exec":
		if config.BiophysCmd == "" {
			return nil, fmt.Errorf("missing biophys-cmd config flag")
		}
	case "docker":
		if config.BiophysImage == "" {
			return nil, fmt.Errorf("missing biophys-image config flag")
		}
	default:
		return nil, fmt.Errorf("unsupported biophys-engine %s (exec or docker)", config.BiophysEngine)
	}
	return &config, nil
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
	if err := imagery.RegisterVSIHandlers(ctx); err != nil {
		return err
	}

	data, err := os.ReadFile(config.GeojsonFile)
	if err != nil {
		return fmt.Errorf("geojson %s: %w", config.GeojsonFile, err)
	}
	features, err := service.ReadFeatures(data)
	if err != nil {
		return fmt.Errorf("geojson %s: %w", config.GeojsonFile, err)
	}
	if config.TestID != "" {
		kept := features[:0]
		for _, feature := range features {
			if feature.Name == config.TestID {
				kept = append(kept, feature)
			}
		}
		if features = kept; len(features) == 0 {
			return fmt.Errorf("no feature %s in %s", config.TestID, config.GeojsonFile)
		}
	}

	storage, err := service.NewStorage(ctx, config.OutDir)
	if err != nil {
		return fmt.Errorf("storage %s: %w", config.OutDir, err)
	}

	var runner biophys.Runner
	switch config.BiophysEngine {
	case "exec":
		if runner, err = biophys.NewExecEngine(config.BiophysCmd, config.WorkingDir); err != nil {
			return err
		}
	case "docker":
		if runner, err = biophys.NewDockerEngine(ctx, config.Docker, config.BiophysImage, config.BiophysCmd, config.WorkingDir); err != nil {
			return err
		}
	}

	p := pipeline.Pipeline{
		Catalog: &catalog.Catalog{
			EarthSearchURL:    config.EarthSearchURL,
			CopernicusCatalog: config.CopernicusCatalog,
		},
		Cube: imagery.Provider{Config: imagery.Config{
			CacheDir:  config.CacheDir,
			IOThreads: config.IOThreads,
		}},
		Processor: &processor.Processor{
			Runner:    runner,
			TargetCRS: config.TargetCRS,
			IOThreads: config.IOThreads,
		},
		Writer:     &writer.Writer{Storage: storage, Workdir: config.WorkingDir},
		Resolution: config.BandsResolution,
		Workers:    config.Workers,
	}

	log.Logger(ctx).Sugar().Infof("processing %d areas from %s to %s into %s",
		len(features), config.StartDate.Format("2006-01-02"), config.EndDate.Format("2006-01-02"), config.OutDir)
	for _, feature := range features {
		area := entities.SearchArea{
			AreaOfInterest: entities.AreaOfInterest{ID: feature.Name, Geometry: feature.Geometry},
			StartTime:      config.StartDate,
			EndTime:        config.EndDate,
			MaxCloudCover:  config.MaxCloudCover,
		}
		if e := p.ProcessArea(ctx, area); e != nil {
			log.Logger(ctx).Error("area failed", zap.String("aoi", area.ID), zap.Error(e))
			err = service.MergeErrors(true, err, fmt.Errorf("ProcessArea[%s].%w", area.ID, e))
		}
	}
	return err
}
