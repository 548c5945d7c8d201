// Package fetch requests spatial/temporal subsets of gridded products from
// the Copernicus Marine data service. Downloads are delegated to the
// service's own command line client; this package builds and validates the
// request and classifies failures.
package fetch

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// BBox is a geographic bounding box in degrees.
type BBox struct {
	MinLon float64
	MaxLon float64
	MinLat float64
	MaxLat float64
}

// ParseBBox parses "minLon,maxLon,minLat,maxLat".
func ParseBBox(s string) (BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BBox{}, fmt.Errorf("bounding box %q must be minLon,maxLon,minLat,maxLat", s)
	}
	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BBox{}, fmt.Errorf("bounding box %q: %w", s, err)
		}
		vals[i] = v
	}
	b := BBox{MinLon: vals[0], MaxLon: vals[1], MinLat: vals[2], MaxLat: vals[3]}
	return b, b.Validate()
}

// Validate checks the box is non-empty and within geographic limits.
func (b BBox) Validate() error {
	if b.MinLat < -90 || b.MaxLat > 90 {
		return fmt.Errorf("latitude range [%g, %g] outside [-90, 90]", b.MinLat, b.MaxLat)
	}
	if b.MinLon < -180 || b.MaxLon > 360 {
		return fmt.Errorf("longitude range [%g, %g] outside [-180, 360]", b.MinLon, b.MaxLon)
	}
	if b.MinLat > b.MaxLat || b.MinLon > b.MaxLon {
		return fmt.Errorf("bounding box min exceeds max: %+v", b)
	}
	return nil
}

func (b BBox) String() string {
	return fmt.Sprintf("%g,%g,%g,%g", b.MinLon, b.MaxLon, b.MinLat, b.MaxLat)
}

// Request describes one subset download.
type Request struct {
	DatasetID string
	Variables []string
	BBox      BBox
	// Start and End are optional; static products have no time axis.
	Start           *time.Time
	End             *time.Time
	OutputFilename  string
	OutputDirectory string
}

// Validate checks the request before anything is sent.
func (r Request) Validate() error {
	if r.DatasetID == "" {
		return errors.New("dataset id is required")
	}
	if len(r.Variables) == 0 {
		return errors.New("at least one variable is required")
	}
	if err := r.BBox.Validate(); err != nil {
		return err
	}
	if r.Start != nil && r.End != nil && r.End.Before(*r.Start) {
		return fmt.Errorf("end %s is before start %s", r.End.Format(time.RFC3339), r.Start.Format(time.RFC3339))
	}
	if r.OutputFilename == "" {
		return errors.New("output filename is required")
	}
	if filepath.Base(r.OutputFilename) != r.OutputFilename {
		return fmt.Errorf("output filename %q must not contain a directory", r.OutputFilename)
	}
	return nil
}

// OutputPath is where the subset will be written.
func (r Request) OutputPath() string {
	dir := r.OutputDirectory
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, r.OutputFilename)
}

// timeLayout is the datetime format accepted by the service.
const timeLayout = "2006-01-02T15:04:05"

// ParseTime parses a request bound. Date-only values are accepted.
func ParseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{timeLayout, time.RFC3339, time.DateOnly} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid datetime %q, want YYYY-MM-DD[THH:MM:SS]", s)
}

// Args returns the subset command line arguments for r.
func (r Request) Args() []string {
	args := []string{"subset", "--dataset-id", r.DatasetID}
	for _, v := range r.Variables {
		args = append(args, "--variable", v)
	}
	args = append(args,
		"--minimum-longitude", strconv.FormatFloat(r.BBox.MinLon, 'g', -1, 64),
		"--maximum-longitude", strconv.FormatFloat(r.BBox.MaxLon, 'g', -1, 64),
		"--minimum-latitude", strconv.FormatFloat(r.BBox.MinLat, 'g', -1, 64),
		"--maximum-latitude", strconv.FormatFloat(r.BBox.MaxLat, 'g', -1, 64),
	)
	if r.Start != nil {
		args = append(args, "--start-datetime", r.Start.UTC().Format(timeLayout))
	}
	if r.End != nil {
		args = append(args, "--end-datetime", r.End.UTC().Format(timeLayout))
	}
	args = append(args, "--output-filename", r.OutputFilename)
	if r.OutputDirectory != "" {
		args = append(args, "--output-directory", r.OutputDirectory)
	}
	return args
}
