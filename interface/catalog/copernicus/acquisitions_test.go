package copernicus

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cropsense/s2-biophys/catalog/entities"
	"github.com/paulsmith/gogeos/geos"
)

const testFootprint = `{"type":"Polygon","coordinates":[[[8.6,45.1],[8.7,45.1],[8.7,45.2],[8.6,45.2],[8.6,45.1]]]}`

func TestQueryCopernicus(t *testing.T) {
	var serverURL, filter string

	handler := func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/page2") {
			fmt.Fprintf(w, `{"value":[{"Id":"f2e4a5c6-0001-4f50-b30a-b31e0a0ecfe2",
				"Name":"S2A_MSIL2A_20200103T102031_N0500_R065_T32TNS_20230116T114157.SAFE",
				"GeoFootprint":%s,
				"ContentDate":{"Start":"2020-01-03T10:20:31.026Z"},
				"Attributes":[{"Name":"cloudCover","Value":3.25,"ValueType":"Double"}]}]}`, testFootprint)
			return
		}
		filter = r.URL.Query().Get("$filter")
		fmt.Fprintf(w, `{"value":[{"Id":"0ab2e5c6-0001-4f50-b30a-b31e0a0ecfe1",
			"Name":"S2B_MSIL2A_20200101T101221_N0213_R022_T32TNS_20200101T114157.SAFE",
			"GeoFootprint":%s,
			"ContentDate":{"Start":"2020-01-01T10:12:21.024Z"},
			"Attributes":[{"Name":"cloudCover","Value":12.5,"ValueType":"Double"}]}],
			"@odata.nextLink":"%s/page2"}`, testFootprint, serverURL)
	}
	server := httptest.NewServer(http.HandlerFunc(handler))
	defer server.Close()
	serverURL = server.URL

	aoi, err := geos.FromWKT("POLYGON ((8.6 45.1,8.7 45.1,8.7 45.2,8.6 45.2,8.6 45.1))")
	if err != nil {
		t.Fatalf("%v", err)
	}
	area := entities.SearchArea{
		AreaOfInterest: entities.AreaOfInterest{ID: "parcel42"},
		StartTime:      time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		EndTime:        time.Date(2020, 1, 31, 0, 0, 0, 0, time.UTC),
		MaxCloudCover:  80,
	}

	p := Provider{URL: server.URL + "/odata/v1/Products?$filter="}
	acquisitions, err := p.SearchAcquisitions(context.Background(), &area, *aoi)
	if err != nil {
		t.Fatalf("%v", err)
	}

	for _, expected := range []string{
		"Collection/Name eq 'SENTINEL-2'",
		"att/OData.CSC.StringAttribute/Value eq 'S2MSI2A'",
		"OData.CSC.Intersects",
		"ContentDate/Start gt 2020-01-01T00:00:00Z",
		"ContentDate/Start lt 2020-01-31T00:00:00Z",
		"att/OData.CSC.DoubleAttribute/Value le 80",
	} {
		if !strings.Contains(filter, expected) {
			t.Errorf("filter: missing %q in %q", expected, filter)
		}
	}

	if len(acquisitions.Acquisitions) != 2 {
		t.Fatalf("expecting 2, found %d acquisitions", len(acquisitions.Acquisitions))
	}
	first := acquisitions.Acquisitions[0]
	if first.SourceID != "S2B_32TNS_20200101_213_L2A" {
		t.Errorf("first source id: got %s", first.SourceID)
	}
	if first.UUID != "0ab2e5c6-0001-4f50-b30a-b31e0a0ecfe1" || !strings.HasSuffix(first.SafeName, ".SAFE") {
		t.Errorf("first identifiers: got %+v", first)
	}
	if first.MissionLetter != "B" || first.GridToken != "32TNS" || first.BaselineIndex != 213 {
		t.Errorf("first autofill: got %+v", first)
	}
	if !first.Date.Equal(time.Date(2020, 1, 1, 10, 12, 21, 24000000, time.UTC)) {
		t.Errorf("first date: got %v", first.Date)
	}
	if first.CloudCover != 12.5 {
		t.Errorf("first cloud cover: got %v", first.CloudCover)
	}
	second := acquisitions.Acquisitions[1]
	if second.SourceID != "S2A_32TNS_20200103_500_L2A" || second.CloudCover != 3.25 {
		t.Errorf("second acquisition: got %+v", second)
	}
}
