package gpxio

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"convoy_tracker/internal/models"
)

const routeDoc = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <wpt lat="9" lon="9"><name>ignored</name></wpt>
  <rte>
    <rtept lat="1.5" lon="2.5"><name>Camp</name></rtept>
    <rtept lat="3.5" lon="4.5"></rtept>
  </rte>
</gpx>`

const trackDoc = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <trk><trkseg>
    <trkpt lat="10" lon="20"></trkpt>
    <trkpt lat="11" lon="21"></trkpt>
    <trkpt lat="12" lon="22"></trkpt>
  </trkseg></trk>
</gpx>`

const waypointDoc = `<?xml version="1.0" encoding="UTF-8"?>
<gpx version="1.1" creator="test" xmlns="http://www.topografix.com/GPX/1/1">
  <wpt lat="-33.9" lon="18.4"><name>Cape</name></wpt>
</gpx>`

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate([]byte(routeDoc)))
	assert.ErrorIs(t, Validate([]byte("<kml></kml>")), ErrInvalidGPX)
	assert.ErrorIs(t, Validate([]byte(`<gpx version="1.1"></gpx>`)), ErrInvalidGPX)
}

func TestParse_PrefersRoutePoints(t *testing.T) {
	points, err := Parse([]byte(routeDoc))
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, models.PointInput{Lat: 1.5, Lng: 2.5, Note: "Camp"}, points[0])
	assert.Equal(t, 3.5, points[1].Lat)
}

func TestParse_FallsBackToTrackThenWaypoints(t *testing.T) {
	points, err := Parse([]byte(trackDoc))
	require.NoError(t, err)
	assert.Len(t, points, 3)
	assert.Equal(t, 22.0, points[2].Lng)

	points, err = Parse([]byte(waypointDoc))
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "Cape", points[0].Note)
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte(`<gpx><rtept lat="1" lon="1"`))
	assert.ErrorIs(t, err, ErrInvalidGPX)

	_, err = Parse([]byte(`<gpx version="1.1" creator="t" xmlns="http://www.topografix.com/GPX/1/1"><wpt lat="95" lon="1"></wpt></gpx>`))
	assert.ErrorIs(t, err, ErrInvalidGPX)
}

func TestWriteThenParse_RoundTrip(t *testing.T) {
	now := time.Now()
	path := []models.DestinationPoint{
		{Lat: 51.5007, Lng: -0.1246, Note: "Start", AddedAt: now, Order: 0},
		{Lat: 48.8584, Lng: 2.2945, AddedAt: now, Order: 1},
		{Lat: 41.8902, Lng: 12.4922, AddedAt: now, Order: 2},
	}
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, "Room ABC123", path))
	assert.Contains(t, buf.String(), "<rte>")
	assert.Contains(t, buf.String(), "<rtept")

	points, err := Parse(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, points, len(path))
	for i, p := range path {
		assert.InDelta(t, p.Lat, points[i].Lat, 1e-9)
		assert.InDelta(t, p.Lng, points[i].Lng, 1e-9)
	}
	assert.Equal(t, "Start", points[0].Note)
}
