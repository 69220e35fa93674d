package service

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-spatial/geom"
	"github.com/go-spatial/geom/encoding/geojson"
)

// UnmarshalGeometry, merging featureCollections and geometryCollections into a multipolygon
func UnmarshalGeometry(data []byte) (_ geom.Geometry, err error) {
	var g geojson.Geometry
	if err := g.UnmarshalJSON(data); err != nil {
		return g.Geometry, err
	}
	switch geo := g.Geometry.(type) {
	case geojson.FeatureCollection:
		var mp geom.MultiPolygon
		for _, f := range geo.Features {
			if err := mergeMultiPolygons(f.Geometry.Geometry, &mp); err != nil {
				return nil, err
			}
		}
		return mp, nil
	case geojson.Feature:
		return geo.Geometry.Geometry, nil
	default:
		return g.Geometry, nil
	}
}

func mergeMultiPolygons(g geom.Geometry, mp *geom.MultiPolygon) error {
	switch g := g.(type) {
	case geom.MultiPolygon:
		*mp = append(*mp, g.Polygons()...)
	case geom.Polygon:
		*mp = append(*mp, g.LinearRings())
	case geom.Collection:
		for _, g := range g.Geometries() {
			if err := mergeMultiPolygons(g, mp); err != nil {
				return err
			}
		}
	}
	return nil
}

// NamedGeometry is one feature of a geojson file with the identifier it was
// declared under ("id" or "name" property, else the numeric feature id).
type NamedGeometry struct {
	Name     string
	Geometry geom.Geometry
}

// ReadFeatures parses geojson into named geometries, one per feature.
// A bare geometry (no feature wrapper) yields a single entry with an empty name.
func ReadFeatures(data []byte) ([]NamedGeometry, error) {
	var g geojson.Geometry
	if err := g.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("ReadFeatures: %w", err)
	}
	switch geo := g.Geometry.(type) {
	case geojson.FeatureCollection:
		feats := make([]NamedGeometry, 0, len(geo.Features))
		for i, f := range geo.Features {
			name, err := featureName(f, i)
			if err != nil {
				return nil, fmt.Errorf("ReadFeatures: %w", err)
			}
			feats = append(feats, NamedGeometry{Name: name, Geometry: f.Geometry.Geometry})
		}
		return feats, nil
	case geojson.Feature:
		name, err := featureName(geo, 0)
		if err != nil {
			return nil, fmt.Errorf("ReadFeatures: %w", err)
		}
		return []NamedGeometry{{Name: name, Geometry: geo.Geometry.Geometry}}, nil
	default:
		return []NamedGeometry{{Geometry: g.Geometry}}, nil
	}
}

func featureName(f geojson.Feature, idx int) (string, error) {
	for _, key := range []string{"id", "name"} {
		if v, ok := f.Properties[key]; ok {
			if s := strings.TrimSpace(fmt.Sprint(v)); s != "" {
				return s, nil
			}
		}
	}
	if f.ID != nil {
		return strconv.FormatUint(*f.ID, 10), nil
	}
	return "", fmt.Errorf("feature %d has neither an id nor a name property", idx)
}

func ToJSON(v interface{}, workingdir, filename string) error {
	if workingdir != "" {
		vb, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("toJSON.Marshal: %w", err)
		}
		if err := os.WriteFile(filepath.Join(workingdir, filename), vb, 0644); err != nil {
			return fmt.Errorf("toJSON.WriteFile: %w", err)
		}
	}
	return nil
}
