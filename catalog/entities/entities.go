package entities

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/cropsense/s2-biophys/common"
	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/geojson"
	geomwkt "github.com/go-spatial/geom/encoding/wkt"
)

// Acquisition is one product of the catalog inventory
type Acquisition struct {
	SourceID      string            `json:"source_id"`           // grid identifier, e.g. S2B_32TNS_20200101_0_L2A
	UUID          string            `json:"uuid,omitempty"`      // product id of the catalog, when it has one
	SafeName      string            `json:"safe_name,omitempty"` // SAFE identifier, when the catalog publishes one
	MissionLetter string            `json:"mission_letter"`      // "A", "B" or "X"
	Date          time.Time         `json:"date"`           // sensing time
	GridToken     string            `json:"grid_token"`     // MGRS tile, e.g. 32TNS
	BaselineIndex int               `json:"baseline_index"` // processing sequence, the highest survives deduplication
	CloudCover    float64           `json:"cloud_cover"`
	SunAzimuth    float64           `json:"sun_azimuth,omitempty"` // scene averages, degrees
	SunZenith     float64           `json:"sun_zenith,omitempty"`
	ViewAzimuth   float64           `json:"view_azimuth,omitempty"`
	ViewZenith    float64           `json:"view_zenith,omitempty"`
	GeometryWKT   string            `json:"wkt"`              // footprint
	Assets        map[string]string `json:"assets,omitempty"` // band -> href
}

// AutoFill derives MissionLetter, GridToken and BaselineIndex from the
// SourceID, and the sensing day when the catalog gave no timestamp
func (a *Acquisition) AutoFill() {
	a.MissionLetter = common.GetSatelliteFromProductId(a.SourceID)
	info, err := common.Info(a.SourceID)
	if err != nil {
		return
	}
	a.GridToken = info["TILE"]
	if baseline, err := strconv.Atoi(info["SEQUENCE"]); err == nil {
		a.BaselineIndex = baseline
	}
	if a.Date.IsZero() {
		if date, err := time.Parse(common.DateFormatCompact, info["DATE"]); err == nil {
			a.Date = date
		}
	}
}

// DateKey returns the day key grouping the outputs of this acquisition
func (a *Acquisition) DateKey() string {
	return a.Date.Format(common.DateFormatDay)
}

// AreaOfInterest is one feature of the input geojson
type AreaOfInterest struct {
	ID       string
	Geometry geom.Geometry
}

// SearchArea is the query of an inventory
type SearchArea struct {
	AreaOfInterest
	StartTime     time.Time
	EndTime       time.Time
	MaxCloudCover int // percent, 100 disables the filter
}

// Acquisitions is the inventory resulting from a catalog search.
// It (un)marshals as a geojson FeatureCollection of footprints.
type Acquisitions struct {
	Acquisitions []*Acquisition
	Properties   map[string]string
}

// MarshalJSON implements json.Marshaler
func (a Acquisitions) MarshalJSON() ([]byte, error) {
	features := make([]geojson.Feature, len(a.Acquisitions))
	for i, acq := range a.Acquisitions {
		g, err := geomwkt.DecodeString(acq.GeometryWKT)
		if err != nil {
			return nil, fmt.Errorf("Acquisitions.MarshalJSON[%s].DecodeString: %w", acq.SourceID, err)
		}
		props, err := toProperties(acq)
		if err != nil {
			return nil, fmt.Errorf("Acquisitions.MarshalJSON[%s]: %w", acq.SourceID, err)
		}
		id := uint64(i)
		features[i] = geojson.Feature{ID: &id, Geometry: geojson.Geometry{Geometry: g}, Properties: props}
	}
	return json.Marshal(struct {
		geojson.FeatureCollection
		Properties map[string]string `json:"properties,omitempty"`
	}{geojson.FeatureCollection{Features: features}, a.Properties})
}

// UnmarshalJSON implements json.Unmarshaler
func (a *Acquisitions) UnmarshalJSON(data []byte) error {
	var g geojson.Geometry
	if err := g.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("Acquisitions.UnmarshalJSON: %w", err)
	}
	fc, ok := g.Geometry.(geojson.FeatureCollection)
	if !ok {
		return fmt.Errorf("Acquisitions.UnmarshalJSON: not a FeatureCollection")
	}
	a.Acquisitions = make([]*Acquisition, len(fc.Features))
	for i, f := range fc.Features {
		b, err := json.Marshal(f.Properties)
		if err != nil {
			return fmt.Errorf("Acquisitions.UnmarshalJSON: %w", err)
		}
		acq := Acquisition{}
		if err := json.Unmarshal(b, &acq); err != nil {
			return fmt.Errorf("Acquisitions.UnmarshalJSON: %w", err)
		}
		a.Acquisitions[i] = &acq
	}
	aux := struct {
		Properties map[string]string `json:"properties"`
	}{}
	if err := json.Unmarshal(data, &aux); err == nil {
		a.Properties = aux.Properties
	}
	return nil
}

func toProperties(acq *Acquisition) (map[string]interface{}, error) {
	b, err := json.Marshal(acq)
	if err != nil {
		return nil, err
	}
	props := map[string]interface{}{}
	err = json.Unmarshal(b, &props)
	return props, err
}
