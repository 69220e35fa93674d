package earthsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-spatial/geom/encoding/geojson"
	"github.com/go-spatial/geom/encoding/wkt"
	"github.com/paulsmith/gogeos/geos"

	"github.com/cropsense/s2-biophys/catalog/entities"
	"github.com/cropsense/s2-biophys/service"
	"github.com/cropsense/s2-biophys/service/geometry"
)

const (
	EarthSearchURL          = "https://earth-search.aws.element84.com/v1/search"
	SentinelCollectionL2A   = "sentinel-2-l2a"
	EarthSearchCatalogLimit = 250
)

type SearchData struct {
	Features       []Feature `json:"features"`
	Links          []Link    `json:"links"`
	NumberMatched  int       `json:"numberMatched"`
	NumberReturned int       `json:"numberReturned"`
}

type Link struct {
	Body   map[string]interface{} `json:"body"`
	Href   string                 `json:"href"`
	Method string                 `json:"method"`
	Rel    string                 `json:"rel"`
}

type Feature struct {
	Id          string                 `json:"id"`
	BoundingBox []float64              `json:"bbox"`
	Properties  map[string]interface{} `json:"properties"`
	Geometry    *geojson.Geometry      `json:"geometry"`
	Assets      map[string]Asset       `json:"assets"`
}

type Asset struct {
	Href  string `json:"href"`
	Title string `json:"title"`
}

type stacSearch struct {
	Bbox        []float64              `json:"bbox,omitempty"`
	Intersects  geojson.Geometry       `json:"intersects,omitempty"`
	Query       map[string]interface{} `json:"query,omitempty"`
	Datetime    string                 `json:"datetime,omitempty"`
	Collections []string               `json:"collections"`
	Ids         []string               `json:"ids,omitempty"`
	Limit       int                    `json:"limit,omitempty"`
}

// assetBands maps the catalog asset keys to the band names.
// earth-search v0 publishes the band names, v1 the color names.
var assetBands = map[string]string{
	"B01": "B01", "coastal": "B01",
	"B02": "B02", "blue": "B02",
	"B03": "B03", "green": "B03",
	"B04": "B04", "red": "B04",
	"B05": "B05", "rededge1": "B05",
	"B06": "B06", "rededge2": "B06",
	"B07": "B07", "rededge3": "B07",
	"B08": "B08", "nir": "B08",
	"B8A": "B8A", "nir08": "B8A",
	"B09": "B09", "nir09": "B09",
	"B11": "B11", "swir16": "B11",
	"B12": "B12", "swir22": "B12",
	"SCL": "SCL", "scl": "SCL",
}

type Provider struct {
	URL   string
	Limit int
}

func (s *Provider) SearchAcquisitions(ctx context.Context, area *entities.SearchArea, aoi geos.Geometry) (entities.Acquisitions, error) {
	if s.URL == "" {
		s.URL = EarthSearchURL
	}
	if s.Limit == 0 {
		s.Limit = EarthSearchCatalogLimit
	}
	geom, err := geometry.GeosToGeom(&aoi)
	if err != nil {
		return entities.Acquisitions{}, fmt.Errorf("SearchAcquisitions(EarthSearch).%w", err)
	}

	startDate := area.StartTime.Format("2006-01-02") + "T00:00:00.000Z"
	endDate := area.EndTime.Format("2006-01-02") + "T23:59:59.999Z"

	req := stacSearch{
		Intersects:  geojson.Geometry{Geometry: geom},
		Query:       map[string]interface{}{},
		Datetime:    startDate + "/" + endDate,
		Collections: []string{SentinelCollectionL2A},
		Limit:       s.Limit,
	}
	if area.MaxCloudCover >= 0 && area.MaxCloudCover < 100 {
		req.Query["eo:cloud_cover"] = map[string]int{"lte": area.MaxCloudCover}
	}

	features, err := s.queryEarthSearch(ctx, s.URL, req)
	if err != nil {
		return entities.Acquisitions{}, fmt.Errorf("SearchAcquisitions(EarthSearch).%w", err)
	}

	acquisitions := make([]*entities.Acquisition, len(features))
	for i, feature := range features {
		properties := feature.Properties
		date, err := time.Parse(time.RFC3339Nano, properties["datetime"].(string))
		if err != nil {
			return entities.Acquisitions{}, fmt.Errorf("SearchAcquisitions(EarthSearch).parse datetime property: %w", err)
		}
		assets := map[string]string{}
		for key, asset := range feature.Assets {
			if band, ok := assetBands[key]; ok {
				assets[band] = asset.Href
			}
		}
		cloudCover, _ := properties["eo:cloud_cover"].(float64)
		sunAzimuth, _ := properties["view:sun_azimuth"].(float64)
		viewAzimuth, _ := properties["view:azimuth"].(float64)
		viewZenith, _ := properties["view:incidence_angle"].(float64)

		acquisitions[i] = &entities.Acquisition{
			SourceID:    feature.Id,
			Date:        date,
			CloudCover:  cloudCover,
			SunAzimuth:  sunAzimuth,
			ViewAzimuth: viewAzimuth,
			ViewZenith:  viewZenith,
			GeometryWKT: wkt.MustEncode(feature.Geometry.Geometry),
			Assets:      assets,
		}
		if elevation, ok := properties["view:sun_elevation"].(float64); ok {
			acquisitions[i].SunZenith = 90 - elevation
		}
		acquisitions[i].AutoFill()
	}

	return entities.Acquisitions{
		Acquisitions: acquisitions,
		Properties:   nil,
	}, nil
}

func (s *Provider) queryEarthSearch(ctx context.Context, url string, searchReq stacSearch) ([]Feature, error) {
	reqBody := &bytes.Buffer{}
	if err := json.NewEncoder(reqBody).Encode(searchReq); err != nil {
		return nil, fmt.Errorf("queryEarthSearch.json.encode: %w", err)
	}

	httpMethod := "POST"
	features := []Feature{}
	for {
		req, err := http.NewRequestWithContext(ctx, httpMethod, url, reqBody)
		if err != nil {
			return nil, err
		}
		req.Header.Add("Content-Type", "application/json")

		respBody, err := service.GetBodyRetryReq(req, 4)
		if err != nil {
			return nil, fmt.Errorf("queryEarthSearch.GetBodyRetryReq: %w", err)
		}

		search := &SearchData{}
		if err = json.Unmarshal(respBody, search); err != nil {
			return nil, fmt.Errorf("queryEarthSearch.search parse body: (%s)", url)
		}
		features = append(features, search.Features...)

		nextFound := false
		for _, link := range search.Links {
			if link.Rel == "next" {
				url = link.Href
				if link.Method != "" {
					httpMethod = link.Method
				}
				reqBody = &bytes.Buffer{}
				if link.Body != nil {
					if err = json.NewEncoder(reqBody).Encode(link.Body); err != nil {
						return nil, err
					}
				}
				nextFound = true
			}
		}
		if !nextFound {
			break
		}
	}

	return features, nil
}
