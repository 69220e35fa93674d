package service

import (
	"testing"

	"github.com/go-spatial/geom"
)

const featureCollectionJSON = `{
	"type": "FeatureCollection",
	"features": [
		{"type": "Feature", "properties": {"id": "parcel42"}, "geometry": {"type": "Polygon", "coordinates": [[[8.6,45.1],[8.7,45.1],[8.7,45.2],[8.6,45.2],[8.6,45.1]]]}},
		{"type": "Feature", "properties": {"name": "parcel43"}, "geometry": {"type": "Polygon", "coordinates": [[[8.8,45.1],[8.9,45.1],[8.9,45.2],[8.8,45.2],[8.8,45.1]]]}}
	]}`

func TestReadFeatures(t *testing.T) {
	feats, err := ReadFeatures([]byte(featureCollectionJSON))
	if err != nil {
		t.Fatal(err)
	}
	if len(feats) != 2 {
		t.Fatalf("expect 2 features found %d", len(feats))
	}
	if feats[0].Name != "parcel42" || feats[1].Name != "parcel43" {
		t.Errorf("expect parcel42, parcel43 found %s, %s", feats[0].Name, feats[1].Name)
	}
	if _, ok := feats[0].Geometry.(geom.Polygon); !ok {
		t.Errorf("expect a polygon found %T", feats[0].Geometry)
	}
}

func TestReadFeaturesWithoutName(t *testing.T) {
	data := `{"type": "FeatureCollection", "features": [{"type": "Feature", "properties": {}, "geometry": {"type": "Point", "coordinates": [1, 2]}}]}`
	if _, err := ReadFeatures([]byte(data)); err == nil {
		t.Error("expected error")
	}
}

func TestUnmarshalGeometry(t *testing.T) {
	g, err := UnmarshalGeometry([]byte(featureCollectionJSON))
	if err != nil {
		t.Fatal(err)
	}
	mp, ok := g.(geom.MultiPolygon)
	if !ok {
		t.Fatalf("expect a multipolygon found %T", g)
	}
	if len(mp) != 2 {
		t.Errorf("expect 2 polygons found %d", len(mp))
	}
}
