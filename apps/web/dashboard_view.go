package main

import (
	"fmt"
	"math"
	"net/url"
	"sort"
	"strings"

	"sambodhan/libs/grievanceapi"
)

func buildDashboardView(base adminBaseViewData, d *dashboard) adminDashboardViewData {
	lang := base.Lang
	summary := d.Summary.Value

	view := adminDashboardViewData{
		adminBaseViewData: base,
		ScopeLabel:        scopeLabel(d.Admin, d.Scope),
		Recomputed:        d.Recomputed,
		Cards: []summaryCardView{
			{Label: text(lang, "summary_total"), Value: int(summary.Total), Class: "card-total"},
			{Label: text(lang, "summary_pending"), Value: summary.StatusCount(grievanceapi.StatusPending), Class: "card-pending"},
			{Label: text(lang, "summary_in_process"), Value: summary.StatusCount(grievanceapi.StatusInProcess), Class: "card-in-process"},
			{Label: text(lang, "summary_resolved"), Value: summary.StatusCount(grievanceapi.StatusResolved), Class: "card-resolved"},
			{Label: text(lang, "summary_rejected"), Value: summary.StatusCount(grievanceapi.StatusRejected), Class: "card-rejected"},
		},
		Widgets: map[string]widgetState{
			"summary":           {Name: "summary", Failed: d.Summary.Failed},
			"by-department":     {Name: "by-department", Failed: d.Breakdown.Failed},
			"location-hotspots": {Name: "location-hotspots", Failed: d.Hotspots.Failed},
			"quality-metrics":   {Name: "quality-metrics", Failed: d.Quality.Failed},
			"performance":       {Name: "performance", Failed: d.Benchmark.Failed},
		},
	}

	for _, row := range d.Breakdown.Value {
		view.Breakdown = append(view.Breakdown, breakdownRowView(row))
	}

	hotspots := make([]barView, 0, len(d.Hotspots.Value))
	for _, h := range d.Hotspots.Value {
		hotspots = append(hotspots, barView{Label: h.Location, Value: float64(h.Count)})
	}
	view.Hotspots = scaleBars(hotspots)

	quality := make([]barView, 0, len(d.Quality.Value))
	for _, q := range d.Quality.Value {
		quality = append(quality, barView{Label: q.Month, Value: q.Value})
	}
	view.Quality = scaleBars(quality)

	view.Benchmark = benchmarkRows(d.Benchmark.Value)

	view.Trends = []trendView{
		trendBars("trends-daily", text(lang, "trends_daily"), d.Daily),
		trendBars("trends-weekly", text(lang, "trends_weekly"), d.Weekly),
		trendBars("trends-monthly", text(lang, "trends_monthly"), d.Monthly),
	}
	return view
}

// scaleBars sets each bar's width relative to the largest value.
func scaleBars(bars []barView) []barView {
	maxValue := 0.0
	for _, bar := range bars {
		if bar.Value > maxValue {
			maxValue = bar.Value
		}
	}
	for i := range bars {
		if maxValue > 0 {
			bars[i].Width = int(math.Round(bars[i].Value / maxValue * dashboardTrendBarMaxWidth))
		}
	}
	return bars
}

func trendBars(key, title string, series aggregate[grievanceapi.TrendSeries]) trendView {
	bars := make([]barView, 0, len(series.Value.Periods))
	for _, period := range series.Value.Periods {
		bars = append(bars, barView{Label: period, Value: float64(series.Value.Total(period))})
	}
	return trendView{Key: key, Title: title, Bars: scaleBars(bars), Failed: series.Failed}
}

// benchmarkRows pairs each metric with the city average. Response time is
// better when lower; everything else when higher.
func benchmarkRows(b grievanceapi.Benchmark) []benchmarkRowView {
	return []benchmarkRowView{
		{Label: "Avg. response time (days)", Yours: b.AvgResponseTime, City: b.CityAvgResponseTime, Better: b.AvgResponseTime > 0 && b.AvgResponseTime <= b.CityAvgResponseTime},
		{Label: "Resolution rate (%)", Yours: b.ResolutionRate, City: b.CityResolutionRate, Better: b.ResolutionRate > 0 && b.ResolutionRate >= b.CityResolutionRate},
		{Label: "Citizen satisfaction", Yours: b.CitizenSatisfaction, City: b.CityCitizenSatisfaction, Better: b.CitizenSatisfaction > 0 && b.CitizenSatisfaction >= b.CityCitizenSatisfaction},
		{Label: "First-time resolution (%)", Yours: b.FirstTimeResolution, City: b.CityFirstTimeResolution, Better: b.FirstTimeResolution > 0 && b.FirstTimeResolution >= b.CityFirstTimeResolution},
	}
}

// scopeLabel describes the filter in words, e.g. "Health · Lalitpur".
func scopeLabel(admin *grievanceapi.Admin, scope url.Values) string {
	if admin == nil {
		return ""
	}
	parts := []string{}
	if department := scope.Get("department"); department != "" {
		parts = append(parts, department)
	}
	switch {
	case scope.Has("ward_id"):
		parts = append(parts, "Ward "+scope.Get("ward_id"))
	case scope.Has("municipality_id"):
		if admin.MunicipalityName != "" {
			parts = append(parts, admin.MunicipalityName)
		} else {
			parts = append(parts, "Municipality "+scope.Get("municipality_id"))
		}
	case scope.Has("district_id"):
		if admin.DistrictName != "" {
			parts = append(parts, admin.DistrictName)
		} else {
			parts = append(parts, "District "+scope.Get("district_id"))
		}
	}
	if len(parts) == 0 {
		return "All"
	}
	return strings.Join(parts, " · ")
}

func scopeDescription(scope url.Values) string {
	keys := make([]string, 0, len(scope))
	for key := range scope {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", key, scope.Get(key)))
	}
	if len(parts) == 0 {
		return "unscoped"
	}
	return strings.Join(parts, ", ")
}
