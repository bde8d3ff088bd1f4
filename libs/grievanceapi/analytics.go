package grievanceapi

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// TrendWindow selects one of the three trend series.
type TrendWindow struct {
	Name   string
	Param  string
	Length int
}

var (
	TrendDaily   = TrendWindow{Name: "daily", Param: "days", Length: 30}
	TrendWeekly  = TrendWindow{Name: "weekly", Param: "weeks", Length: 12}
	TrendMonthly = TrendWindow{Name: "monthly", Param: "months", Length: 12}
)

func cloneValues(values url.Values) url.Values {
	out := url.Values{}
	for key, list := range values {
		out[key] = append([]string(nil), list...)
	}
	return out
}

func (c *Client) analytics(ctx context.Context, name string, query url.Values) ([]byte, error) {
	return c.raw(ctx, call{
		method: http.MethodGet,
		route:  "/analytics/" + name,
		path:   "/analytics/" + name,
		query:  query,
	})
}

// Summary fetches the summary aggregate for the given filter.
func (c *Client) Summary(ctx context.Context, filter url.Values) (Summary, error) {
	raw, err := c.analytics(ctx, "summary", filter)
	if err != nil {
		return Summary{}, err
	}
	return DecodeSummary(raw)
}

// ByDepartment fetches the per-department breakdown.
func (c *Client) ByDepartment(ctx context.Context, filter url.Values) ([]IssueBreakdown, error) {
	raw, err := c.analytics(ctx, "by-department", filter)
	if err != nil {
		return nil, err
	}
	return DecodeBreakdown(raw)
}

// LocationHotspots fetches complaint counts per location.
func (c *Client) LocationHotspots(ctx context.Context, filter url.Values) ([]Hotspot, error) {
	raw, err := c.analytics(ctx, "location-hotspots", filter)
	if err != nil {
		return nil, err
	}
	return DecodeHotspots(raw)
}

// QualityMetrics fetches the monthly quality series.
func (c *Client) QualityMetrics(ctx context.Context, filter url.Values) ([]QualityPoint, error) {
	raw, err := c.analytics(ctx, "quality-metrics", filter)
	if err != nil {
		return nil, err
	}
	return DecodeQualityMetrics(raw)
}

// Performance fetches the benchmark comparison.
func (c *Client) Performance(ctx context.Context, filter url.Values) (Benchmark, error) {
	raw, err := c.analytics(ctx, "performance", filter)
	if err != nil {
		return Benchmark{}, err
	}
	return DecodeBenchmark(raw)
}

// Trends fetches one trend window.
func (c *Client) Trends(ctx context.Context, window TrendWindow, filter url.Values) (TrendSeries, error) {
	query := cloneValues(filter)
	query.Set(window.Param, strconv.Itoa(window.Length))
	raw, err := c.analytics(ctx, "trends/"+window.Name, query)
	if err != nil {
		return TrendSeries{}, err
	}
	return DecodeTrends(raw)
}

// Recompute asks the backend to refresh its cached aggregates.
func (c *Client) Recompute(ctx context.Context) error {
	return c.do(ctx, call{
		method: http.MethodPost,
		route:  "/analytics/recompute",
		path:   "/analytics/recompute",
	}, nil)
}

// Export is a streamed analytics export. The caller must close Body.
type Export struct {
	Body          io.ReadCloser
	ContentType   string
	ContentLength int64
	Filename      string
}

// OpenExport starts the analytics export download. It uses the stream client,
// so only ctx bounds how long the transfer may take.
func (c *Client) OpenExport(ctx context.Context, filter url.Values) (*Export, error) {
	in := call{
		method: http.MethodGet,
		route:  "/analytics/export",
		path:   "/analytics/export",
		query:  filter,
	}
	start := time.Now()
	req, err := c.newRequest(ctx, in)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "*/*")

	resp, err := c.stream.Do(req)
	if err != nil {
		c.notify(in, 0, start, err)
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		apiErr := responseError(resp, in)
		c.notify(in, resp.StatusCode, start, apiErr)
		return nil, apiErr
	}
	c.notify(in, resp.StatusCode, start, nil)

	return &Export{
		Body:          resp.Body,
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
		Filename:      DispositionFilename(resp.Header.Get("Content-Disposition")),
	}, nil
}

func (c *Client) notify(in call, status int, start time.Time, err error) {
	if c.observe != nil {
		c.observe(in.method, in.route, status, time.Since(start), err)
	}
}

// DispositionFilename extracts the filename parameter of a Content-Disposition
// header, or "" when there is none.
func DispositionFilename(header string) string {
	if strings.TrimSpace(header) == "" {
		return ""
	}
	if _, params, err := mime.ParseMediaType(header); err == nil {
		if name := strings.TrimSpace(params["filename"]); name != "" {
			return name
		}
	}
	idx := strings.Index(header, "filename=")
	if idx < 0 {
		return ""
	}
	name := header[idx+len("filename="):]
	if end := strings.Index(name, ";"); end >= 0 {
		name = name[:end]
	}
	return strings.TrimSpace(strings.ReplaceAll(name, `"`, ""))
}

// DefaultExportFilename is used when the backend names no file.
func DefaultExportFilename(now time.Time) string {
	return fmt.Sprintf("analytics_export_%s.csv", now.UTC().Format("2006-01-02"))
}
