package copernicus

import (
	"context"
	"encoding/json"
	"fmt"
	neturl "net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-spatial/geom/encoding/geojson"
	"github.com/go-spatial/geom/encoding/wkt"
	"github.com/paulsmith/gogeos/geos"

	"github.com/cropsense/s2-biophys/catalog/entities"
	"github.com/cropsense/s2-biophys/common"
	"github.com/cropsense/s2-biophys/service"
	"github.com/cropsense/s2-biophys/service/log"
)

const (
	CopernicusPageLimit     = 1000
	CopernicusODataQueryURL = "https://catalogue.dataspace.copernicus.eu/odata/v1/Products?$filter="
)

type Provider struct {
	URL   string
	Limit int
}

func (s *Provider) SearchAcquisitions(ctx context.Context, area *entities.SearchArea, aoi geos.Geometry) (entities.Acquisitions, error) {
	if s.URL == "" {
		s.URL = CopernicusODataQueryURL
	}
	if s.Limit == 0 {
		s.Limit = CopernicusPageLimit
	}

	// Create query
	parameters := []string{
		"Collection/Name eq 'SENTINEL-2'",
		"Attributes/OData.CSC.StringAttribute/any(att:att/Name eq 'productType' and att/OData.CSC.StringAttribute/Value eq 'S2MSI2A')",
	}
	{
		aoiWKT, err := aoi.ToWKT()
		if err != nil {
			return entities.Acquisitions{}, fmt.Errorf("Copernicus.searchAcquisitions.ToWKT: %w", err)
		}
		parameters = append(parameters, "OData.CSC.Intersects(area=geography'SRID=4326;"+aoiWKT+"')")
	}

	// Append time
	{
		startDate := area.StartTime.Format("2006-01-02T15:04:05.999Z")
		endDate := area.EndTime.Format("2006-01-02T15:04:05.999Z")
		parameters = append(parameters,
			fmt.Sprintf("ContentDate/Start gt %s", startDate),
			fmt.Sprintf("ContentDate/Start lt %s", endDate))
	}

	if area.MaxCloudCover >= 0 && area.MaxCloudCover < 100 {
		parameters = append(parameters, fmt.Sprintf("Attributes/OData.CSC.DoubleAttribute/any(att:att/Name eq 'cloudCover' and att/OData.CSC.DoubleAttribute/Value le %d)", area.MaxCloudCover))
	}
	query := strings.Join(parameters, " and ")

	// Execute query
	rawscenes, err := s.queryCopernicus(ctx, s.URL, query)
	if err != nil {
		return entities.Acquisitions{}, fmt.Errorf("Copernicus.searchAcquisitions.%w", err)
	}

	// Parse results
	acquisitions := make([]*entities.Acquisition, len(rawscenes))
	for i, rawscene := range rawscenes {
		// Parse date
		date, err := time.Parse(time.RFC3339Nano, rawscene.ContentDate.BeginPosition)
		if err != nil {
			return entities.Acquisitions{}, fmt.Errorf("Copernicus.searchAcquisitions.TimeParse: %w", err)
		}

		// The catalog publishes SAFE identifiers, the inventory works on grid identifiers
		safeName := rawscene.Identifier
		sourceID, err := common.CanonicalId(strings.TrimSuffix(safeName, ".SAFE"))
		if err != nil {
			return entities.Acquisitions{}, fmt.Errorf("Copernicus.searchAcquisitions.%w", err)
		}

		var cloudCover float64
		if v, ok := rawscene.AttributesMap["cloudCover"]; ok {
			if cloudCover, err = strconv.ParseFloat(v, 64); err != nil {
				return entities.Acquisitions{}, fmt.Errorf("Copernicus.searchAcquisitions.ParseFloat(cloudCover): %w", err)
			}
		}

		acquisitions[i] = &entities.Acquisition{
			SourceID:    sourceID,
			UUID:        rawscene.Uuid,
			SafeName:    safeName,
			Date:        date,
			CloudCover:  cloudCover,
			GeometryWKT: wkt.MustEncode(rawscene.Footprint.Geometry),
		}
		acquisitions[i].AutoFill()
	}

	return entities.Acquisitions{
		Acquisitions: acquisitions,
		Properties:   nil,
	}, nil
}

type Hits struct {
	Uuid        string           `json:"Id"`
	Identifier  string           `json:"Name"`
	Footprint   geojson.Geometry `json:"GeoFootprint"`
	ContentDate struct {
		BeginPosition string `json:"Start"`
	} `json:"ContentDate"`
	Attributes []struct {
		Name      string      `json:"Name"`
		Value     interface{} `json:"Value"`
		ValueType string      `json:"ValueType"`
	} `json:"Attributes"`
	AttributesMap map[string]string
}

func (s *Provider) queryCopernicus(ctx context.Context, baseurl, query string) ([]Hits, error) {
	var rawscenes []Hits
	url := baseurl + neturl.QueryEscape(query) + fmt.Sprintf("&$orderby=ContentDate/Start&$top=%d&$expand=Attributes", s.Limit)

	for page := 1; url != ""; page++ {
		log.Logger(ctx).Sugar().Debugf("[Copernicus] Search page %d", page)
		jsonResults, err := service.GetBodyRetry(ctx, url, 3)
		if err != nil {
			return nil, fmt.Errorf("queryCopernicus: %w", err)
		}

		//JSON
		results := struct {
			Status int    `json:"status"`
			Next   string `json:"@odata.nextLink"`
			Hits   []Hits `json:"value"`
		}{}

		// Read results to retrieve acquisitions
		if err := json.Unmarshal(jsonResults, &results); err != nil {
			return nil, fmt.Errorf("query.Unmarshal : %w (response: %s)", err, jsonResults)
		}

		if results.Status != 0 && results.Status != 200 {
			return nil, fmt.Errorf("query: http status: %d (response: %s)", results.Status, jsonResults)
		}

		for i, hit := range results.Hits {
			results.Hits[i].AttributesMap = map[string]string{}
			for _, elem := range hit.Attributes {
				results.Hits[i].AttributesMap[elem.Name] = fmt.Sprintf("%v", elem.Value)
			}
			results.Hits[i].Attributes = nil
		}

		// Merge the results
		rawscenes = append(rawscenes, results.Hits...)

		url = results.Next
	}

	return rawscenes, nil
}
