package grievanceapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrUnexpectedShape is returned when a payload is neither a list nor a mapping.
var ErrUnexpectedShape = errors.New("unexpected response shape")

type shape int

const (
	shapeOther shape = iota
	shapeList
	shapeMapping
)

func shapeOf(raw json.RawMessage) shape {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return shapeOther
	}
	switch trimmed[0] {
	case '[':
		return shapeList
	case '{':
		return shapeMapping
	default:
		return shapeOther
	}
}

// truthy mirrors the envelope test the backend clients rely on: a wrapper key
// only counts when its value is present and not null, false, 0 or "".
func truthy(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	switch string(trimmed) {
	case "", "null", "false", "0", `""`:
		return false
	default:
		return true
	}
}

// unwrap returns the value of the first truthy envelope key, or raw itself.
func unwrap(raw json.RawMessage, keys ...string) json.RawMessage {
	if shapeOf(raw) != shapeMapping {
		return raw
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return raw
	}
	for _, key := range keys {
		if value, ok := envelope[key]; ok && truthy(value) {
			return value
		}
	}
	return raw
}

func unwrapData(raw json.RawMessage) json.RawMessage {
	return unwrap(raw, "data")
}

func unwrapChart(raw json.RawMessage) json.RawMessage {
	return unwrap(raw, "chart", "data")
}

type entry struct {
	Key   string
	Value json.RawMessage
}

// orderedEntries decodes a JSON object keeping the source key order.
func orderedEntries(raw json.RawMessage) ([]entry, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, ErrUnexpectedShape
	}
	entries := []entry{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, ErrUnexpectedShape
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		entries = append(entries, entry{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return entries, nil
}

// Summary is the normalized /analytics/summary aggregate.
type Summary struct {
	Total               Count                         `json:"total"`
	ByStatus            map[string]Count              `json:"by_status"`
	ByUrgency           map[string]Count              `json:"by_urgency"`
	ByDepartment        map[string]Count              `json:"by_department"`
	MunicipalityDetails map[string]MunicipalityTotals `json:"municipality_details,omitempty"`
	AssignedToMe        Count                         `json:"assignedToMe"`
	TeamRating          float64                       `json:"teamRating"`
}

// MunicipalityTotals is one entry of Summary.MunicipalityDetails.
type MunicipalityTotals struct {
	Total    Count            `json:"total"`
	ByStatus map[string]Count `json:"by_status,omitempty"`
}

// StatusCount returns the tally for a status label.
func (s Summary) StatusCount(status Status) int {
	return int(s.ByStatus[status.Label()])
}

// DecodeSummary unwraps the data envelope and raises total to the sum of the
// per-municipality totals when that sum is larger.
func DecodeSummary(raw json.RawMessage) (Summary, error) {
	var summary Summary
	if err := json.Unmarshal(unwrapData(raw), &summary); err != nil {
		return Summary{}, fmt.Errorf("decode summary: %w", err)
	}
	if len(summary.MunicipalityDetails) > 0 {
		var sum Count
		for _, details := range summary.MunicipalityDetails {
			sum += details.Total
		}
		if sum > summary.Total {
			summary.Total = sum
		}
	}
	return summary, nil
}

// IssueBreakdown is one row of the by-department table.
type IssueBreakdown struct {
	Type     string `json:"type"`
	Total    int    `json:"total"`
	Resolved int    `json:"resolved"`
	Rate     int    `json:"rate"`
}

// ResolutionRate is round(resolved/total*100), or 0 when total is 0.
func ResolutionRate(resolved, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(resolved) / float64(total) * 100))
}

type breakdownStats struct {
	Type       string `json:"type"`
	Department string `json:"department"`
	Total      Count  `json:"total"`
	Resolved   Count  `json:"resolved"`
}

func decodeBreakdownStats(raw json.RawMessage) breakdownStats {
	if shapeOf(raw) != shapeMapping {
		return breakdownStats{Total: looseCount(raw)}
	}
	var stats breakdownStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return breakdownStats{}
	}
	return stats
}

// DecodeBreakdown turns a department mapping (or list) into ordered rows.
// A mapping value may be {total, resolved} or a bare count.
func DecodeBreakdown(raw json.RawMessage) ([]IssueBreakdown, error) {
	payload := unwrapData(raw)
	rows := []IssueBreakdown{}
	switch shapeOf(payload) {
	case shapeMapping:
		entries, err := orderedEntries(payload)
		if err != nil {
			return nil, fmt.Errorf("decode breakdown: %w", err)
		}
		for _, e := range entries {
			stats := decodeBreakdownStats(e.Value)
			rows = append(rows, newBreakdownRow(e.Key, stats))
		}
	case shapeList:
		var items []json.RawMessage
		if err := json.Unmarshal(payload, &items); err != nil {
			return nil, fmt.Errorf("decode breakdown: %w", err)
		}
		for _, item := range items {
			stats := decodeBreakdownStats(item)
			name := stats.Type
			if name == "" {
				name = stats.Department
			}
			rows = append(rows, newBreakdownRow(name, stats))
		}
	default:
		return nil, fmt.Errorf("decode breakdown: %w", ErrUnexpectedShape)
	}
	return rows, nil
}

func newBreakdownRow(name string, stats breakdownStats) IssueBreakdown {
	total := int(stats.Total)
	resolved := int(stats.Resolved)
	return IssueBreakdown{
		Type:     name,
		Total:    total,
		Resolved: resolved,
		Rate:     ResolutionRate(resolved, total),
	}
}

// Hotspot is one location bucket.
type Hotspot struct {
	Location string `json:"location"`
	Count    int    `json:"count"`
}

// QualityPoint is one month of the quality metric series.
type QualityPoint struct {
	Month string  `json:"month"`
	Value float64 `json:"value"`
}

// DecodeHotspots accepts a list of {location, count} or a location→count
// mapping, optionally wrapped in chart or data.
func DecodeHotspots(raw json.RawMessage) ([]Hotspot, error) {
	points, err := decodeSeries(unwrapChart(raw), "location", "count")
	if err != nil {
		return nil, fmt.Errorf("decode hotspots: %w", err)
	}
	hotspots := make([]Hotspot, 0, len(points))
	for _, p := range points {
		hotspots = append(hotspots, Hotspot{Location: p.Key, Count: int(math.Round(p.Value))})
	}
	return hotspots, nil
}

// DecodeQualityMetrics accepts a list of {month, value} or a month→value
// mapping, optionally wrapped in chart or data.
func DecodeQualityMetrics(raw json.RawMessage) ([]QualityPoint, error) {
	points, err := decodeSeries(unwrapChart(raw), "month", "value")
	if err != nil {
		return nil, fmt.Errorf("decode quality metrics: %w", err)
	}
	metrics := make([]QualityPoint, 0, len(points))
	for _, p := range points {
		metrics = append(metrics, QualityPoint{Month: p.Key, Value: p.Value})
	}
	return metrics, nil
}

type seriesPoint struct {
	Key   string
	Value float64
}

func decodeSeries(payload json.RawMessage, keyField, valueField string) ([]seriesPoint, error) {
	points := []seriesPoint{}
	switch shapeOf(payload) {
	case shapeList:
		var items []map[string]json.RawMessage
		if err := json.Unmarshal(payload, &items); err != nil {
			return nil, err
		}
		for _, item := range items {
			var key string
			if rawKey, ok := item[keyField]; ok {
				if err := json.Unmarshal(rawKey, &key); err != nil {
					key = string(bytes.Trim(rawKey, `"`))
				}
			}
			points = append(points, seriesPoint{Key: key, Value: looseNumber(item[valueField])})
		}
	case shapeMapping:
		entries, err := orderedEntries(payload)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			points = append(points, seriesPoint{Key: e.Key, Value: looseNumber(e.Value)})
		}
	default:
		return nil, ErrUnexpectedShape
	}
	return points, nil
}

// Benchmark compares the caller's scope with the city average.
type Benchmark struct {
	AvgResponseTime         float64 `json:"avgResponseTime"`
	CityAvgResponseTime     float64 `json:"cityAvgResponseTime"`
	ResolutionRate          float64 `json:"resolutionRate"`
	CityResolutionRate      float64 `json:"cityResolutionRate"`
	CitizenSatisfaction     float64 `json:"citizenSatisfaction"`
	CityCitizenSatisfaction float64 `json:"cityCitizenSatisfaction"`
	FirstTimeResolution     float64 `json:"firstTimeResolution"`
	CityFirstTimeResolution float64 `json:"cityFirstTimeResolution"`
}

// ZeroBenchmark is shown whenever the benchmark cannot be loaded.
func ZeroBenchmark() Benchmark {
	return Benchmark{}
}

// DecodeBenchmark unwraps the data envelope.
func DecodeBenchmark(raw json.RawMessage) (Benchmark, error) {
	var benchmark Benchmark
	if err := json.Unmarshal(unwrapData(raw), &benchmark); err != nil {
		return Benchmark{}, fmt.Errorf("decode benchmark: %w", err)
	}
	return benchmark, nil
}

// TrendSeries is an ordered list of periods with a parallel total mapping.
type TrendSeries struct {
	Periods       []string                    `json:"periods"`
	TotalByPeriod map[string]int              `json:"total_by_period"`
	ByUrgency     map[string]map[string]Count `json:"by_urgency,omitempty"`
	ByDepartment  map[string]map[string]Count `json:"by_department,omitempty"`
}

// Total returns the tally for one period.
func (t TrendSeries) Total(period string) int {
	return t.TotalByPeriod[period]
}

type trendWire struct {
	Periods       []string                    `json:"periods"`
	Days          []string                    `json:"days"`
	Weeks         []string                    `json:"weeks"`
	Months        []string                    `json:"months"`
	TotalByPeriod json.RawMessage             `json:"total_by_period"`
	TotalByDay    json.RawMessage             `json:"total_by_day"`
	TotalByWeek   json.RawMessage             `json:"total_by_week"`
	TotalByMonth  json.RawMessage             `json:"total_by_month"`
	ByUrgency     map[string]map[string]Count `json:"by_urgency"`
	ByDepartment  map[string]map[string]Count `json:"by_department"`
}

func firstNonEmpty(lists ...[]string) []string {
	for _, list := range lists {
		if len(list) > 0 {
			return list
		}
	}
	return nil
}

func firstTruthy(values ...json.RawMessage) json.RawMessage {
	for _, value := range values {
		if truthy(value) {
			return value
		}
	}
	return nil
}

// DecodeTrends accepts the generic periods/total_by_period shape as well as the
// window-specific day, week and month keys. When no period list is present the
// order of the total mapping is used.
func DecodeTrends(raw json.RawMessage) (TrendSeries, error) {
	var wire trendWire
	if err := json.Unmarshal(unwrapData(raw), &wire); err != nil {
		return TrendSeries{}, fmt.Errorf("decode trends: %w", err)
	}

	series := TrendSeries{
		Periods:       firstNonEmpty(wire.Periods, wire.Days, wire.Weeks, wire.Months),
		TotalByPeriod: map[string]int{},
		ByUrgency:     wire.ByUrgency,
		ByDepartment:  wire.ByDepartment,
	}

	totals := firstTruthy(wire.TotalByPeriod, wire.TotalByDay, wire.TotalByWeek, wire.TotalByMonth)
	var derived []string
	if totals != nil {
		entries, err := orderedEntries(totals)
		if err != nil {
			return TrendSeries{}, fmt.Errorf("decode trends: %w", err)
		}
		for _, e := range entries {
			series.TotalByPeriod[e.Key] = int(looseCount(e.Value))
			derived = append(derived, e.Key)
		}
	}
	if len(series.Periods) == 0 {
		series.Periods = derived
	}
	if series.Periods == nil {
		series.Periods = []string{}
	}
	return series, nil
}
