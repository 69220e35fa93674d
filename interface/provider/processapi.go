package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cropsense/s2-biophys/catalog/entities"
	"github.com/cropsense/s2-biophys/common"
	"github.com/cropsense/s2-biophys/interface/imagery"
	"github.com/cropsense/s2-biophys/service"
	"github.com/go-spatial/geom"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	// CDSETokenURL issues the OAuth2 client-credentials tokens of the
	// Copernicus Dataspace Ecosystem.
	CDSETokenURL = "https://identity.dataspace.copernicus.eu/auth/realms/CDSE/protocol/openid-connect/token"
	// CDSEProcessURL renders evalscripts over the Sentinel archive.
	CDSEProcessURL = "https://sh.dataspace.copernicus.eu/api/v1/process"

	crs84URI = "http://www.opengis.net/def/crs/OGC/1.3/CRS84"

	// metersPerDegree is the rough length of one degree; longitudes are
	// corrected by the cosine of the latitude.
	metersPerDegree = 111320.0
)

type processRequest struct {
	Input      processInput  `json:"input"`
	Output     processOutput `json:"output"`
	Evalscript string        `json:"evalscript"`
}

type processInput struct {
	Bounds processBounds `json:"bounds"`
	Data   []processData `json:"data"`
}

type processBounds struct {
	BBox       []float64         `json:"bbox"`
	Properties map[string]string `json:"properties,omitempty"`
}

type processData struct {
	Type       string            `json:"type"`
	DataFilter processDataFilter `json:"dataFilter"`
}

type processDataFilter struct {
	TimeRange        processTimeRange `json:"timeRange"`
	MaxCloudCoverage float64          `json:"maxCloudCoverage,omitempty"`
	MosaickingOrder  string           `json:"mosaickingOrder,omitempty"`
}

type processTimeRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

type processOutput struct {
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Responses []processResponse `json:"responses"`
}

type processResponse struct {
	Identifier string        `json:"identifier"`
	Format     processFormat `json:"format"`
}

type processFormat struct {
	Type string `json:"type"`
}

// ProcessAPIProvider implements ChipProvider on the Copernicus Dataspace
// process API: one request renders the whole chip, mosaicked over the
// acquisitions of the request window, least cloudy first.
type ProcessAPIProvider struct {
	client     *http.Client
	url        string
	resolution float64
}

// NewProcessAPIProvider creates a new ChipProvider from the Copernicus Dataspace process API
func NewProcessAPIProvider(ctx context.Context, clientID, clientSecret string, resolution float64) *ProcessAPIProvider {
	oauth := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     CDSETokenURL,
	}
	if resolution <= 0 {
		resolution = imagery.DefaultResolution
	}
	return &ProcessAPIProvider{
		client:     oauth.Client(ctx),
		url:        CDSEProcessURL,
		resolution: resolution,
	}
}

// Name implements ChipProvider
func (ip *ProcessAPIProvider) Name() string {
	return "ProcessAPI"
}

// Download implements ChipProvider
func (ip *ProcessAPIProvider) Download(ctx context.Context, acq *entities.Acquisition, area entities.SearchArea, localFile string) error {
	extent, err := geom.NewExtentFromGeometry(area.Geometry)
	if err != nil {
		return fmt.Errorf("ProcessAPIProvider.NewExtentFromGeometry: %w", err)
	}

	body, err := json.Marshal(chipRequest(extent, acq.Date, area.MaxCloudCover, ip.resolution))
	if err != nil {
		return fmt.Errorf("ProcessAPIProvider.Marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ip.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("ProcessAPIProvider.NewRequest: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "image/tiff")

	resp, err := ip.client.Do(req)
	if err != nil {
		return service.MakeTemporary(fmt.Errorf("ProcessAPIProvider.Do: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		err := fmt.Errorf("ProcessAPIProvider[%s]: %s (%s)", acq.SourceID, resp.Status, bytes.TrimSpace(msg))
		if temporaryStatus(resp.StatusCode) {
			return service.MakeTemporary(err)
		}
		return err
	}

	file, err := os.Create(localFile)
	if err != nil {
		return service.MakeTemporary(fmt.Errorf("ProcessAPIProvider.Create: %w", err))
	}
	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		os.Remove(localFile)
		return service.MakeTemporary(fmt.Errorf("ProcessAPIProvider.Copy: %w", err))
	}
	if err := file.Close(); err != nil {
		return service.MakeTemporary(fmt.Errorf("ProcessAPIProvider.Close: %w", err))
	}
	return nil
}

// chipRequest renders the chip bands over the AOI bbox, mosaicking the
// acquisitions one day around the sensing date, least cloudy first.
func chipRequest(extent *geom.Extent, date time.Time, maxCloudCover int, resolution float64) processRequest {
	width, height := chipDimensions(extent, resolution)
	day := date.UTC().Truncate(24 * time.Hour)

	filter := processDataFilter{
		TimeRange: processTimeRange{
			From: day.AddDate(0, 0, -1).Format(time.RFC3339),
			To:   day.AddDate(0, 0, 1).Add(24*time.Hour - time.Second).Format(time.RFC3339),
		},
		MosaickingOrder: "leastCC",
	}
	if maxCloudCover >= 0 && maxCloudCover < 100 {
		filter.MaxCloudCoverage = float64(maxCloudCover)
	}

	return processRequest{
		Input: processInput{
			Bounds: processBounds{
				BBox:       []float64{extent.MinX(), extent.MinY(), extent.MaxX(), extent.MaxY()},
				Properties: map[string]string{"crs": crs84URI},
			},
			Data: []processData{{Type: "sentinel-2-l2a", DataFilter: filter}},
		},
		Output: processOutput{
			Width:  width,
			Height: height,
			Responses: []processResponse{{
				Identifier: "default",
				Format:     processFormat{Type: "image/tiff"},
			}},
		},
		Evalscript: evalscript(common.ChipBands),
	}
}

// chipDimensions converts the geographic extent to pixels, with a rough
// degrees-to-meters conversion.
func chipDimensions(extent *geom.Extent, resolution float64) (int, int) {
	midLat := (extent.MinY() + extent.MaxY()) / 2 * math.Pi / 180
	width := (extent.MaxX() - extent.MinX()) * metersPerDegree * math.Cos(midLat) / resolution
	height := (extent.MaxY() - extent.MinY()) * metersPerDegree / resolution
	return atLeastOne(width), atLeastOne(height)
}

func atLeastOne(pixels float64) int {
	if pixels < 1 {
		return 1
	}
	return int(math.Round(pixels))
}

// evalscript returns every requested band as FLOAT32, the coarse bands
// upsampled bilinearly.
func evalscript(bands []string) string {
	quoted := make([]string, len(bands))
	samples := make([]string, len(bands))
	for i, band := range bands {
		quoted[i] = `"` + band + `"`
		samples[i] = "sample." + band
	}
	return fmt.Sprintf(`//VERSION=3
function setup() {
    return {
        input: [%s],
        output: {
            bands: %d,
            sampleType: "FLOAT32"
        },
        processing: {
            upsampling: "BILINEAR"
        }
    };
}

function evaluatePixel(sample) {
    return [%s];
}
`, strings.Join(quoted, ", "), len(bands), strings.Join(samples, ", "))
}
