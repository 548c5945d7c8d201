// Package vm exports aggregate layers to Victoria Metrics so that
// climatologies can be browsed next to other time series.
package vm

import (
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rtm0/marineclim/internal/grid"
)

// Point is one valid cell of one layer.
type Point struct {
	Layer     string
	Latitude  float64
	Longitude float64
	Value     float64
}

// Points flattens the valid cells of every layer of ds. NaN and infinite
// cells are skipped; line protocol has no representation for them.
func Points(ds *grid.Dataset) []Point {
	var pts []Point
	nx := ds.X.Len()
	for _, l := range ds.Layers() {
		for i := 0; i < l.Len(); i++ {
			v := l.At(i)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			pts = append(pts, Point{
				Layer:     l.Name,
				Latitude:  ds.Y.Values[i/nx],
				Longitude: ds.X.Values[i%nx],
				Value:     v,
			})
		}
	}
	return pts
}

// Client is a Victoria Metrics client capable of inserting layer points via
// various protocols.
type Client struct {
	logger       *slog.Logger
	httpCli      *http.Client
	insertURL    string
	metricPrefix string
	pointToText  pointToTextFunc
}

const metricPrefixRE = "^[a-zA-Z0-9_]+$"

// NewClient creates a new VM client.
func NewClient(logger *slog.Logger, insertURL string, metricPrefix string) (*Client, error) {
	url, err := url.Parse(insertURL)
	if err != nil {
		return nil, err
	}

	matches, err := regexp.Match(metricPrefixRE, []byte(metricPrefix))
	if err != nil {
		return nil, err
	}
	if !matches {
		return nil, fmt.Errorf("metric prefix %q does not match %q regular expression", metricPrefix, metricPrefixRE)
	}

	apiParams := apiParamsFuncs[url.Path]
	if apiParams == nil {
		return nil, fmt.Errorf("inserting into %q is not supported", insertURL)
	}
	q := url.Query()
	for name, value := range apiParams(metricPrefix) {
		q.Add(name, value)
	}
	url.RawQuery = q.Encode()

	pointToText := pointToTextFuncs[url.Path]
	if pointToText == nil {
		return nil, fmt.Errorf("inserting into %q is not supported", insertURL)
	}

	return &Client{
		logger: logger,
		httpCli: &http.Client{
			Timeout: 5 * time.Minute,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   30 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:    1,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		insertURL:    url.String(),
		metricPrefix: metricPrefix,
		pointToText:  pointToText,
	}, nil
}

// Insert sends pts stamped with ts to Victoria Metrics.
func (c *Client) Insert(pts []Point, ts time.Time) error {
	res, err := c.httpCli.Post(c.insertURL, "text/plain", pointsToText(pts, ts.UnixMilli(), c.metricPrefix, c.pointToText))
	if err != nil {
		return fmt.Errorf("could not post data: %w", err)
	}
	defer res.Body.Close()
	if _, err := io.Copy(io.Discard, res.Body); err != nil {
		c.logger.Error("Failed to drain response body", "err", err)
	}
	if res.StatusCode != http.StatusNoContent && res.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d from %s", res.StatusCode, c.insertURL)
	}
	return nil
}

// Export inserts every valid cell of ds in batches of batchSize points.
func (c *Client) Export(ds *grid.Dataset, ts time.Time, batchSize int) (int, error) {
	pts := Points(ds)
	n := len(pts)
	for begin := 0; begin < n; begin += batchSize {
		limit := min(begin+batchSize, n)
		if err := c.Insert(pts[begin:limit], ts); err != nil {
			return begin, err
		}
		c.logger.Debug("Exported points", "from", begin, "to", limit, "total", n)
	}
	return n, nil
}

type apiParamsFunc func(string) map[string]string

var apiParamsFuncs = map[string]apiParamsFunc{
	"/influx/write":        influxDBAPIParams,
	"/influx/api/v2/write": influxDBAPIParams,
	"/write":               influxDBAPIParams,
	"/api/v2/write":        influxDBAPIParams,
	"/api/v1/import/csv":   csvAPIParams,
}

func influxDBAPIParams(string) map[string]string {
	return map[string]string{"precision": "ms"}
}

func csvAPIParams(metricPrefix string) map[string]string {
	return map[string]string{
		"format": fmt.Sprintf(""+
			"1:time:unix_ms,"+
			"2:label:la,"+
			"3:label:lo,"+
			"4:label:layer,"+
			"5:metric:%s", metricPrefix),
	}
}

type pointToTextFunc func(*strings.Builder, *Point, int64, string)

// pointsToText converts multiple points to text.
func pointsToText(pts []Point, ts int64, metricPrefix string, pointToText pointToTextFunc) io.Reader {
	var sb strings.Builder
	for _, p := range pts {
		pointToText(&sb, &p, ts, metricPrefix)
		sb.WriteString("\n")
	}
	return strings.NewReader(sb.String())
}

var pointToTextFuncs = map[string]pointToTextFunc{
	"/influx/write":        pointToInfluxDB,
	"/influx/api/v2/write": pointToInfluxDB,
	"/write":               pointToInfluxDB,
	"/api/v2/write":        pointToInfluxDB,
	"/api/v1/import/csv":   pointToCSV,
}

var influxDBFmt = "%s,la=%.4f,lo=%.4f %s=%g %d"

// pointToInfluxDB converts a point into InfluxDB line protocol v2 and
// appends it to the string builder.
func pointToInfluxDB(sb *strings.Builder, p *Point, ts int64, metricPrefix string) {
	sb.WriteString(fmt.Sprintf(influxDBFmt, metricPrefix, p.Latitude, p.Longitude, p.Layer, p.Value, ts))
}

var csvFmt = "%d,%.4f,%.4f,%s,%g"

// pointToCSV converts a point into a CSV record and appends it to the
// string builder.
func pointToCSV(sb *strings.Builder, p *Point, ts int64, _ string) {
	sb.WriteString(fmt.Sprintf(csvFmt, ts, p.Latitude, p.Longitude, p.Layer, p.Value))
}
