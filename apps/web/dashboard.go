package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"sambodhan/libs/grievanceapi"

	"golang.org/x/sync/errgroup"
)

// aggregate is one independently fetched slice of the dashboard.
type aggregate[T any] struct {
	Value   T
	Loading bool
	Failed  bool
}

type dashboard struct {
	Admin      *grievanceapi.Admin
	Scope      url.Values
	Recomputed bool

	Summary   aggregate[grievanceapi.Summary]
	Breakdown aggregate[[]grievanceapi.IssueBreakdown]
	Hotspots  aggregate[[]grievanceapi.Hotspot]
	Quality   aggregate[[]grievanceapi.QualityPoint]
	Benchmark aggregate[grievanceapi.Benchmark]
	Daily     aggregate[grievanceapi.TrendSeries]
	Weekly    aggregate[grievanceapi.TrendSeries]
	Monthly   aggregate[grievanceapi.TrendSeries]
}

// startAggregate marks slot as loading and fetches it on eg. A failure
// stores fallback and never fails the group.
func startAggregate[T any](ctx context.Context, eg *errgroup.Group, slot *aggregate[T], fallback T, fetch func(context.Context) (T, error), report func(error)) {
	slot.Loading = true
	eg.Go(func() error {
		defer func() { slot.Loading = false }()
		value, err := fetch(ctx)
		if err != nil {
			slot.Value = fallback
			slot.Failed = true
			report(err)
			return nil
		}
		slot.Value = value
		return nil
	})
}

// loadDashboard fetches every aggregate for admin concurrently under ctx.
// Only an admin without a scope is an error; upstream failures degrade the
// affected slice to its default.
func (a *App) loadDashboard(ctx context.Context, admin *grievanceapi.Admin) (*dashboard, error) {
	scope, err := scopeParams(admin)
	if err != nil {
		return nil, &apiError{Status: http.StatusForbidden, Code: "forbidden", Message: err.Error()}
	}

	d := &dashboard{Admin: admin, Scope: scope}
	eg, egCtx := errgroup.WithContext(ctx)

	failed := func(name string) func(error) {
		return func(err error) {
			a.log.WarnContext(ctx, "dashboard aggregate failed", "aggregate", name, "admin_id", admin.ID, "error", err)
			if a.metrics != nil {
				a.metrics.aggregateFailures.WithLabelValues(name).Inc()
			}
		}
	}

	if admin.Role == grievanceapi.RoleSuperAdmin {
		eg.Go(func() error {
			if err := a.api.Recompute(egCtx); err != nil {
				a.log.WarnContext(ctx, "analytics recompute failed", "error", err)
				return nil
			}
			d.Recomputed = true
			return nil
		})
	}

	startAggregate(egCtx, eg, &d.Summary, grievanceapi.Summary{}, func(ctx context.Context) (grievanceapi.Summary, error) {
		return a.api.Summary(ctx, scope)
	}, failed("summary"))
	startAggregate(egCtx, eg, &d.Breakdown, []grievanceapi.IssueBreakdown{}, func(ctx context.Context) ([]grievanceapi.IssueBreakdown, error) {
		return a.api.ByDepartment(ctx, scope)
	}, failed("by_department"))
	startAggregate(egCtx, eg, &d.Hotspots, []grievanceapi.Hotspot{}, func(ctx context.Context) ([]grievanceapi.Hotspot, error) {
		return a.api.LocationHotspots(ctx, scope)
	}, failed("location_hotspots"))
	startAggregate(egCtx, eg, &d.Quality, []grievanceapi.QualityPoint{}, func(ctx context.Context) ([]grievanceapi.QualityPoint, error) {
		return a.api.QualityMetrics(ctx, scope)
	}, failed("quality_metrics"))
	startAggregate(egCtx, eg, &d.Benchmark, grievanceapi.ZeroBenchmark(), func(ctx context.Context) (grievanceapi.Benchmark, error) {
		return a.api.Performance(ctx, scope)
	}, failed("performance"))
	startAggregate(egCtx, eg, &d.Daily, grievanceapi.TrendSeries{}, trendFetcher(a.api, grievanceapi.TrendDaily, scope), failed("trends_daily"))
	startAggregate(egCtx, eg, &d.Weekly, grievanceapi.TrendSeries{}, trendFetcher(a.api, grievanceapi.TrendWeekly, scope), failed("trends_weekly"))
	startAggregate(egCtx, eg, &d.Monthly, grievanceapi.TrendSeries{}, trendFetcher(a.api, grievanceapi.TrendMonthly, scope), failed("trends_monthly"))

	_ = eg.Wait()
	return d, nil
}

func trendFetcher(api *grievanceapi.Client, window grievanceapi.TrendWindow, scope url.Values) func(context.Context) (grievanceapi.TrendSeries, error) {
	return func(ctx context.Context) (grievanceapi.TrendSeries, error) {
		return api.Trends(ctx, window, scope)
	}
}

// dashboardWidgets serves each aggregate on its own so a single widget can be
// refreshed without reloading the page.
var dashboardWidgets = map[string]func(ctx context.Context, api *grievanceapi.Client, scope url.Values) (any, error){
	"summary": func(ctx context.Context, api *grievanceapi.Client, scope url.Values) (any, error) {
		return api.Summary(ctx, scope)
	},
	"by-department": func(ctx context.Context, api *grievanceapi.Client, scope url.Values) (any, error) {
		return api.ByDepartment(ctx, scope)
	},
	"location-hotspots": func(ctx context.Context, api *grievanceapi.Client, scope url.Values) (any, error) {
		return api.LocationHotspots(ctx, scope)
	},
	"quality-metrics": func(ctx context.Context, api *grievanceapi.Client, scope url.Values) (any, error) {
		return api.QualityMetrics(ctx, scope)
	},
	"performance": func(ctx context.Context, api *grievanceapi.Client, scope url.Values) (any, error) {
		benchmark, err := api.Performance(ctx, scope)
		if err != nil {
			return grievanceapi.ZeroBenchmark(), nil
		}
		return benchmark, nil
	},
	"trends-daily": func(ctx context.Context, api *grievanceapi.Client, scope url.Values) (any, error) {
		return api.Trends(ctx, grievanceapi.TrendDaily, scope)
	},
	"trends-weekly": func(ctx context.Context, api *grievanceapi.Client, scope url.Values) (any, error) {
		return api.Trends(ctx, grievanceapi.TrendWeekly, scope)
	},
	"trends-monthly": func(ctx context.Context, api *grievanceapi.Client, scope url.Values) (any, error) {
		return api.Trends(ctx, grievanceapi.TrendMonthly, scope)
	},
}

// teamMember pairs a subordinate admin with the summary of their own scope.
type teamMember struct {
	Admin   grievanceapi.Admin
	Summary grievanceapi.Summary
	Failed  bool
}

// loadTeamSummaries fetches one summary per admin, at most four at a time.
func (a *App) loadTeamSummaries(ctx context.Context, admins []grievanceapi.Admin) []teamMember {
	members := make([]teamMember, len(admins))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(4)
	for i := range admins {
		members[i].Admin = admins[i]
		eg.Go(func() error {
			scope, err := scopeParams(&admins[i])
			if err != nil {
				members[i].Failed = true
				return nil
			}
			summary, err := a.api.Summary(egCtx, scope)
			if err != nil {
				a.log.WarnContext(ctx, "team summary failed", "admin_id", admins[i].ID, "error", err)
				members[i].Failed = true
				return nil
			}
			members[i].Summary = summary
			return nil
		})
	}
	_ = eg.Wait()
	return members
}

func widgetNames() []string {
	names := make([]string, 0, len(dashboardWidgets))
	for name := range dashboardWidgets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func errUnknownWidget(name string) error {
	return &apiError{
		Status:  http.StatusNotFound,
		Code:    "unknown_widget",
		Message: fmt.Sprintf("unknown widget %q (known: %s)", name, strings.Join(widgetNames(), ", ")),
	}
}
