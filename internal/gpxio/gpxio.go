// Package gpxio converts between GPX documents and destination paths.
package gpxio

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	"github.com/twpayne/go-gpx"

	"convoy_tracker/internal/models"
)

// ErrInvalidGPX is returned for uploads that are not usable GPX routes.
var ErrInvalidGPX = errors.New("invalid GPX file")

// Validate performs the cheap structural check done before parsing: a gpx
// root and at least one route, track or waypoint element.
func Validate(raw []byte) error {
	if !bytes.Contains(raw, []byte("<gpx")) {
		return fmt.Errorf("%w: missing <gpx> root element", ErrInvalidGPX)
	}
	for _, tag := range []string{"<rtept", "<trkpt", "<wpt"} {
		if bytes.Contains(raw, []byte(tag)) {
			return nil
		}
	}
	return fmt.Errorf("%w: no route, track or waypoint points", ErrInvalidGPX)
}

// Parse extracts an ordered list of points from a GPX document. Route
// points win over track points, which win over waypoints.
func Parse(raw []byte) ([]models.PointInput, error) {
	if err := Validate(raw); err != nil {
		return nil, err
	}
	doc, err := gpx.Read(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGPX, err)
	}

	var wpts []*gpx.WptType
	for _, rte := range doc.Rte {
		wpts = append(wpts, rte.RtePt...)
	}
	if len(wpts) == 0 {
		for _, trk := range doc.Trk {
			for _, seg := range trk.TrkSeg {
				wpts = append(wpts, seg.TrkPt...)
			}
		}
	}
	if len(wpts) == 0 {
		wpts = doc.Wpt
	}
	if len(wpts) == 0 {
		return nil, fmt.Errorf("%w: no points found", ErrInvalidGPX)
	}

	points := make([]models.PointInput, 0, len(wpts))
	for i, w := range wpts {
		if w == nil {
			continue
		}
		if err := models.ValidateCoordinates(w.Lat, w.Lon); err != nil {
			return nil, fmt.Errorf("%w: point %d: %v", ErrInvalidGPX, i+1, err)
		}
		points = append(points, models.PointInput{Lat: w.Lat, Lng: w.Lon, Note: w.Name})
	}
	return points, nil
}

// Write encodes path as a single GPX route named name.
func Write(w io.Writer, name string, path []models.DestinationPoint) error {
	rte := &gpx.RteType{Name: name, RtePt: make([]*gpx.WptType, 0, len(path))}
	for _, p := range path {
		rte.RtePt = append(rte.RtePt, &gpx.WptType{Lat: p.Lat, Lon: p.Lng, Name: p.Note})
	}
	doc := &gpx.GPX{
		Version: "1.1",
		Creator: "convoy-tracker",
		Rte:     []*gpx.RteType{rte},
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	return doc.WriteIndent(w, "", "  ")
}
