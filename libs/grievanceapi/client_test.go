package grievanceapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(server.URL + "/api/")
}

func TestNewDefaultsBaseURL(t *testing.T) {
	assert.Equal(t, DefaultBaseURL, New("").BaseURL())
	assert.Equal(t, "http://backend/api", New(" http://backend/api/ ").BaseURL())
}

func TestUpdateComplaintStatusSendsIntegerCode(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]any
	client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 42, "current_status": 2}`))
	})

	status, err := ParseStatus("RESOLVED")
	require.NoError(t, err)
	update, err := client.UpdateComplaintStatus(context.Background(), 42, status)
	require.NoError(t, err)

	assert.Equal(t, http.MethodPatch, gotMethod)
	assert.Equal(t, "/api/complaints/42", gotPath)
	assert.Equal(t, map[string]any{"current_status": float64(2)}, gotBody)
	assert.Equal(t, StatusResolved, update.Current())
}

func TestUpdateComplaintStatusPrefersServerEcho(t *testing.T) {
	client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id": 7, "current_status": 1}`))
	})

	update, err := client.UpdateComplaintStatus(context.Background(), 7, StatusResolved)
	require.NoError(t, err)
	assert.Equal(t, StatusInProcess, update.Current())
}

func TestUpdateComplaintStatusWithoutEchoUsesSentCode(t *testing.T) {
	client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	update, err := client.UpdateComplaintStatus(context.Background(), 7, StatusRejected)
	require.NoError(t, err)
	assert.Nil(t, update.Complaint)
	assert.Equal(t, StatusRejected, update.Current())
}

func TestErrorCarriesBackendDetail(t *testing.T) {
	client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail": "Admin not found"}`))
	})

	_, err := client.GetAdmin(context.Background(), 99)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, "Admin not found", DetailOf(err))
}

func TestErrorJoinsValidationMessages(t *testing.T) {
	client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"detail": [{"msg": "field required"}, {"msg": "value is not a valid email"}]}`))
	})

	_, err := client.RegisterAdmin(context.Background(), AdminRegistration{})
	assert.Equal(t, "field required; value is not a valid email", DetailOf(err))
	assert.Equal(t, http.StatusUnprocessableEntity, StatusOf(err))
}

func TestRequestsCarryTokenAndRequestID(t *testing.T) {
	var auth, requestID string
	client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		requestID = r.Header.Get("X-Request-ID")
		_, _ = w.Write([]byte(`{"user": {"id": 3, "name": "Sita", "email": "sita@example.com"}}`))
	})

	ctx := WithRequestID(WithToken(context.Background(), "tok"), "req-1")
	citizen, err := client.CitizenMe(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", auth)
	assert.Equal(t, "req-1", requestID)
	assert.Equal(t, "Sita", citizen.Name)
}

func TestRegisterAdminSendsExplicitNulls(t *testing.T) {
	var body map[string]any
	client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"id": 5, "name": "Hari", "role": "super_admin"}`))
	})

	district := 4
	_, err := client.RegisterAdmin(context.Background(), AdminRegistration{
		Name: "Hari", Email: "hari@example.com", Password: "secret123", Role: RoleSuperAdmin, DistrictID: &district,
	})
	require.NoError(t, err)

	assert.Contains(t, body, "department")
	assert.Nil(t, body["department"])
	assert.Contains(t, body, "municipality_id")
	assert.Nil(t, body["municipality_id"])
	assert.Equal(t, float64(4), body["district_id"])
}

func TestTrendsAddsWindowParam(t *testing.T) {
	var query url.Values
	var path string
	client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		path = r.URL.Path
		_, _ = w.Write([]byte(`{"periods": ["2025-01"], "total_by_period": {"2025-01": 3}}`))
	})

	filter := url.Values{"municipality_id": {"9"}}
	series, err := client.Trends(context.Background(), TrendMonthly, filter)
	require.NoError(t, err)

	assert.Equal(t, "/api/analytics/trends/monthly", path)
	assert.Equal(t, "12", query.Get("months"))
	assert.Equal(t, "9", query.Get("municipality_id"))
	assert.Empty(t, filter.Get("months"), "caller filter must not be mutated")
	assert.Equal(t, 3, series.Total("2025-01"))
}

func TestMisclassificationCallsCarryReporter(t *testing.T) {
	var calls []string
	client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path+"?"+r.URL.RawQuery)
		if r.Method == http.MethodPost {
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.NotContains(t, body, "correct_urgency")
			_, _ = w.Write([]byte(`{"id": 11, "complaint_id": 3, "correct_department": "Health", "reviewed": false}`))
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	_, err := client.ReportMisclassification(context.Background(), 8, MisclassificationReport{ComplaintID: 3, CorrectDepartment: "Health"})
	require.NoError(t, err)
	require.NoError(t, client.DeleteMisclassification(context.Background(), 11, 8))

	assert.Equal(t, []string{
		"POST /api/misclassifications?reported_by_admin_id=8",
		"DELETE /api/misclassifications/11?reported_by_admin_id=8",
	}, calls)
}

func TestOpenExportStreamsBodyAndFilename(t *testing.T) {
	client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Health", r.URL.Query().Get("department"))
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="health.csv"`)
		_, _ = w.Write([]byte("id,status\n1,Pending\n"))
	})

	export, err := client.OpenExport(context.Background(), url.Values{"department": {"Health"}})
	require.NoError(t, err)
	defer export.Body.Close()

	body, err := io.ReadAll(export.Body)
	require.NoError(t, err)
	assert.Equal(t, "id,status\n1,Pending\n", string(body))
	assert.Equal(t, "health.csv", export.Filename)
	assert.Equal(t, "text/csv", export.ContentType)
}

func TestCitizenLoginFailureBecomesUnauthorized(t *testing.T) {
	client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success": false, "message": "Invalid email or password"}`))
	})

	_, err := client.CitizenLogin(context.Background(), "a@example.com", "nope")
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, "Invalid email or password", DetailOf(err))
}

func TestObserverSeesEveryCall(t *testing.T) {
	var mu sync.Mutex
	var routes []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(server.Close)
	client := New(server.URL, WithObserver(func(method, route string, status int, elapsed time.Duration, err error) {
		mu.Lock()
		defer mu.Unlock()
		routes = append(routes, method+" "+route)
		assert.Equal(t, http.StatusOK, status)
		assert.NoError(t, err)
	}))

	_, err := client.Wards(context.Background(), 3)
	require.NoError(t, err)
	_, err = client.ListComplaints(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"GET /location/wards", "GET /complaints"}, routes)
}

func TestCancelledContextStopsCall(t *testing.T) {
	client := newTestBackend(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Summary(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}
