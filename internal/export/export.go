// Package export renders a room's destination path in downloadable formats.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"convoy_tracker/internal/geo"
	"convoy_tracker/internal/gpxio"
	"convoy_tracker/internal/models"
)

// Format is a supported export format.
type Format string

const (
	FormatJSON    Format = "json"
	FormatGPX     Format = "gpx"
	FormatCSV     Format = "csv"
	FormatGeoJSON Format = "geojson"
)

// ParseFormat maps a query value to a Format. Unknown values fall back to
// JSON.
func ParseFormat(s string) Format {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatGPX:
		return FormatGPX
	case FormatCSV:
		return FormatCSV
	case FormatGeoJSON:
		return FormatGeoJSON
	default:
		return FormatJSON
	}
}

// Document is a rendered export ready to be written to a response.
type Document struct {
	Body        []byte
	ContentType string
	Filename    string
}

// JSONExport is the body of a JSON export.
type JSONExport struct {
	RoomCode                string                    `json:"roomCode"`
	RoomName                string                    `json:"roomName,omitempty"`
	ExportedAt              time.Time                 `json:"exportedAt"`
	TotalDistanceMeters     float64                   `json:"totalDistanceMeters"`
	CurrentDestinationIndex int                       `json:"currentDestinationIndex"`
	Destinations            []models.DestinationPoint `json:"destinations"`
}

// Render serializes the path of a room snapshot in format f.
func Render(view models.RoomView, f Format, now time.Time) (*Document, error) {
	var (
		body        []byte
		err         error
		contentType string
	)
	switch f {
	case FormatGPX:
		body, err = renderGPX(view)
		contentType = "application/gpx+xml"
	case FormatCSV:
		body, err = renderCSV(view.DestinationPath)
		contentType = "text/csv"
	case FormatGeoJSON:
		body, err = renderGeoJSON(view.DestinationPath)
		contentType = "application/geo+json"
	default:
		f = FormatJSON
		body, err = renderJSON(view, now)
		contentType = "application/json"
	}
	if err != nil {
		return nil, fmt.Errorf("render %s export: %w", f, err)
	}
	return &Document{
		Body:        body,
		ContentType: contentType,
		Filename:    fmt.Sprintf("route-%s.%s", view.Code, f),
	}, nil
}

func points(path []models.DestinationPoint) []geo.Point {
	pts := make([]geo.Point, len(path))
	for i, p := range path {
		pts[i] = geo.Point{Lat: p.Lat, Lng: p.Lng}
	}
	return pts
}

func renderJSON(view models.RoomView, now time.Time) ([]byte, error) {
	return json.MarshalIndent(JSONExport{
		RoomCode:                view.Code,
		RoomName:                view.RoomName,
		ExportedAt:              now,
		TotalDistanceMeters:     geo.PathLength(points(view.DestinationPath)),
		CurrentDestinationIndex: view.CurrentDestinationIndex,
		Destinations:            view.DestinationPath,
	}, "", "  ")
}

func renderGPX(view models.RoomView) ([]byte, error) {
	var buf bytes.Buffer
	if err := gpxio.Write(&buf, view.RoomName, view.DestinationPath); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderCSV(path []models.DestinationPoint) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"Order", "Latitude", "Longitude", "Added At"}); err != nil {
		return nil, err
	}
	for _, p := range path {
		row := []string{
			strconv.Itoa(p.Order + 1),
			strconv.FormatFloat(p.Lat, 'f', -1, 64),
			strconv.FormatFloat(p.Lng, 'f', -1, 64),
			p.AddedAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func renderGeoJSON(path []models.DestinationPoint) ([]byte, error) {
	fc := &geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(path)+1)}
	if len(path) >= 2 {
		coords := make([]geom.Coord, len(path))
		for i, p := range path {
			coords[i] = geom.Coord{p.Lng, p.Lat}
		}
		line, err := geom.NewLineString(geom.XY).SetCoords(coords)
		if err != nil {
			return nil, err
		}
		fc.Features = append(fc.Features, &geojson.Feature{
			Geometry: line,
			Properties: map[string]interface{}{
				"kind":                "route",
				"totalDistanceMeters": geo.PathLength(points(path)),
			},
		})
	}
	for _, p := range path {
		pt, err := geom.NewPoint(geom.XY).SetCoords(geom.Coord{p.Lng, p.Lat})
		if err != nil {
			return nil, err
		}
		props := map[string]interface{}{
			"kind":    "destination",
			"order":   p.Order,
			"addedAt": p.AddedAt.UTC().Format(time.RFC3339),
		}
		if p.Note != "" {
			props["note"] = p.Note
		}
		if p.Color != "" {
			props["color"] = p.Color
		}
		if p.Size != "" {
			props["size"] = p.Size
		}
		fc.Features = append(fc.Features, &geojson.Feature{Geometry: pt, Properties: props})
	}
	return json.Marshal(fc)
}
