package export

import (
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convoy_tracker/internal/gpxio"
	"convoy_tracker/internal/models"
)

func samplePath(t *testing.T) *models.Room {
	t.Helper()
	r := models.NewRoom("EXP001", models.RoomOptions{
		LeaderID: "lead",
		Leader:   models.MemberProfile{Name: "Lead"},
	})
	r.AddDestinationToPath(models.PointInput{Lat: -1.2921, Lng: 36.8219, Note: "Nairobi", Color: "red"})
	r.AddDestinationToPath(models.PointInput{Lat: -0.3031, Lng: 36.0800})
	r.AddDestinationToPath(models.PointInput{Lat: 0.5143, Lng: 35.2698, Size: "large"})
	return r
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatGPX, ParseFormat("GPX"))
	assert.Equal(t, FormatCSV, ParseFormat("csv"))
	assert.Equal(t, FormatGeoJSON, ParseFormat("geojson"))
	assert.Equal(t, FormatJSON, ParseFormat("kml"))
	assert.Equal(t, FormatJSON, ParseFormat(""))
}

func TestRender_JSONRoundTrip(t *testing.T) {
	src := samplePath(t)
	doc, err := Render(src.Snapshot(), FormatJSON, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "application/json", doc.ContentType)
	assert.Equal(t, "route-EXP001.json", doc.Filename)

	var out JSONExport
	require.NoError(t, json.Unmarshal(doc.Body, &out))
	assert.Equal(t, "EXP001", out.RoomCode)
	assert.Greater(t, out.TotalDistanceMeters, 100000.0)

	inputs := make([]models.PointInput, len(out.Destinations))
	for i, d := range out.Destinations {
		inputs[i] = models.PointInput{Lat: d.Lat, Lng: d.Lng}
	}
	dst := models.NewRoom("IMP001", models.RoomOptions{IsAdminCreated: true})
	dst.ReplacePath(inputs)

	want := src.Path().DestinationPath
	got := dst.Path().DestinationPath
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i].Lat, got[i].Lat, 1e-9)
		assert.InDelta(t, want[i].Lng, got[i].Lng, 1e-9)
	}
}

func TestRender_GPXRoundTrip(t *testing.T) {
	src := samplePath(t)
	doc, err := Render(src.Snapshot(), FormatGPX, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "route-EXP001.gpx", doc.Filename)

	points, err := gpxio.Parse(doc.Body)
	require.NoError(t, err)
	want := src.Path().DestinationPath
	require.Len(t, points, len(want))
	for i := range want {
		assert.InDelta(t, want[i].Lat, points[i].Lat, 1e-9)
		assert.InDelta(t, want[i].Lng, points[i].Lng, 1e-9)
	}
}

func TestRender_CSV(t *testing.T) {
	doc, err := Render(samplePath(t).Snapshot(), FormatCSV, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "text/csv", doc.ContentType)

	rows, err := csv.NewReader(strings.NewReader(string(doc.Body))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Order", "Latitude", "Longitude", "Added At"}, rows[0])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "-1.2921", rows[1][1])
	assert.Equal(t, "36.8219", rows[1][2])
	assert.Equal(t, "3", rows[3][0])
}

func TestRender_GeoJSON(t *testing.T) {
	doc, err := Render(samplePath(t).Snapshot(), FormatGeoJSON, time.Now())
	require.NoError(t, err)

	var fc struct {
		Type     string `json:"type"`
		Features []struct {
			Geometry struct {
				Type        string          `json:"type"`
				Coordinates json.RawMessage `json:"coordinates"`
			} `json:"geometry"`
			Properties map[string]interface{} `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(doc.Body, &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 4)
	assert.Equal(t, "LineString", fc.Features[0].Geometry.Type)
	assert.Equal(t, "Point", fc.Features[1].Geometry.Type)
	assert.Equal(t, "Nairobi", fc.Features[1].Properties["note"])
	assert.JSONEq(t, `[36.8219,-1.2921]`, string(fc.Features[1].Geometry.Coordinates))
}

func TestRender_EmptyPath(t *testing.T) {
	view := models.NewRoom("EMPTY1", models.RoomOptions{IsAdminCreated: true}).Snapshot()
	for _, f := range []Format{FormatJSON, FormatGPX, FormatCSV, FormatGeoJSON} {
		doc, err := Render(view, f, time.Now())
		require.NoError(t, err, f)
		assert.NotEmpty(t, doc.Body, f)
	}
}
