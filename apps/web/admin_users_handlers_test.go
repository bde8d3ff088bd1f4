package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"testing"

	"sambodhan/libs/grievanceapi"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeamFilter(t *testing.T) {
	filter, err := teamFilter(superAdmin())
	require.NoError(t, err)
	assert.Equal(t, url.Values{"district_id": {"3"}, "role": {"municipal_admin"}}, filter)

	filter, err = teamFilter(municipalAdmin())
	require.NoError(t, err)
	assert.Equal(t, url.Values{"municipality_id": {"12"}, "role": {"department_admin"}}, filter)

	_, err = teamFilter(departmentAdmin())
	assert.Error(t, err)

	_, err = teamFilter(grievanceapi.Admin{Role: grievanceapi.RoleMunicipalAdmin})
	assert.Error(t, err)
}

func TestRegistrationDefaultsLocksMunicipalAdmin(t *testing.T) {
	form, locked := registrationDefaults(municipalAdmin(), registrationForm{
		Role:           "super_admin",
		MunicipalityID: "99",
		DistrictID:     "8",
	})
	assert.True(t, locked)
	assert.Equal(t, "department_admin", form.Role)
	assert.Equal(t, "12", form.MunicipalityID)
	assert.Equal(t, "3", form.DistrictID)

	form, locked = registrationDefaults(superAdmin(), registrationForm{DistrictID: "3"})
	assert.False(t, locked)
	assert.Equal(t, "department_admin", form.Role)
	assert.Equal(t, "3", form.DistrictID)
}

func TestAdminTeamPageRequiresManagerRole(t *testing.T) {
	ta := newTestApp(t)
	rec := ta.serve(adminRequest(t, ta.App, http.MethodGet, "/admin-dashboard/team", nil, departmentAdmin()))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminTeamPageShowsMemberSummaries(t *testing.T) {
	ta := newTestApp(t)
	var gotFilter url.Values
	ta.backend.handle("GET /api/admins", func(w http.ResponseWriter, r *http.Request) {
		gotFilter = r.URL.Query()
		_, _ = io.WriteString(w, `{"data": [{"id": 9, "name": "Ravi Thapa", "email": "ravi@example.com", "role": "department_admin",
			"department": "Infrastructure, Utilities & Natural Resources", "municipality_id": 12, "municipality_name": "Lalitpur"}]}`)
	})
	ta.backend.respond("GET /api/analytics/summary", http.StatusOK, `{"total": 10, "by_status": {"Resolved": 4, "Pending": 6}}`)

	rec := ta.serve(adminRequest(t, ta.App, http.MethodGet, "/admin-dashboard/team", nil, municipalAdmin()))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, url.Values{"municipality_id": {"12"}, "role": {"department_admin"}}, gotFilter)
	body := rec.Body.String()
	assert.Contains(t, body, "Ravi Thapa")
	assert.Contains(t, body, "40%")
}

func registrationValues() url.Values {
	form := url.Values{}
	form.Set("name", "Hari Bista")
	form.Set("email", "hari@example.com")
	form.Set("password", "supersecret")
	form.Set("confirm_password", "supersecret")
	form.Set("role", "department_admin")
	form.Set("department", grievanceapi.Departments[1])
	form.Set("district_id", "3")
	form.Set("municipality_id", "12")
	return form
}

func TestAdminRegisterSubmitLocksMunicipalAdminScope(t *testing.T) {
	ta := newTestApp(t)
	var got map[string]any
	ta.backend.handle("POST /api/admins/register", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"id": 31, "name": "Hari Bista", "role": "department_admin"}`)
	})

	form := registrationValues()
	form.Set("role", "super_admin")
	form.Set("municipality_id", "99")
	rec := ta.serve(adminRequest(t, ta.App, http.MethodPost, "/admin-dashboard/register", form, municipalAdmin()))

	require.Equal(t, http.StatusSeeOther, rec.Code)
	_, query := redirectQuery(t, rec)
	assert.Equal(t, "Administrator Hari Bista registered.", query.Get("notice"))

	want := map[string]any{
		"name":            "Hari Bista",
		"email":           "hari@example.com",
		"password":        "supersecret",
		"role":            "department_admin",
		"department":      grievanceapi.Departments[1],
		"municipality_id": float64(12),
		"district_id":     float64(3),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("registration body mismatch (-want +got):\n%s", diff)
	}

	events := ta.events.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, eventAdminRegister, events[0].Action)
	assert.Equal(t, 31, events[0].Metadata["registered_admin_id"])
}

func TestAdminRegisterSubmitSuperAdminSendsNullDepartment(t *testing.T) {
	ta := newTestApp(t)
	var got map[string]any
	ta.backend.handle("POST /api/admins/register", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"id": 32}`)
	})

	form := registrationValues()
	form.Set("role", "municipal_admin")
	rec := ta.serve(adminRequest(t, ta.App, http.MethodPost, "/admin-dashboard/register", form, superAdmin()))

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "municipal_admin", got["role"])
	assert.Nil(t, got["department"])
	assert.Equal(t, float64(12), got["municipality_id"])
}

func TestAdminRegisterSubmitValidationErrors(t *testing.T) {
	ta := newTestApp(t)

	form := registrationValues()
	form.Set("confirm_password", "different")
	form.Set("email", "not-an-email")
	rec := ta.serve(adminRequest(t, ta.App, http.MethodPost, "/admin-dashboard/register", form, superAdmin()))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Passwords do not match.")
	assert.Contains(t, body, "Enter a valid email address.")
	assert.Zero(t, ta.backend.called("POST /api/admins/register"))
	assert.Empty(t, ta.events.recorded())
}

func TestAdminRegisterSubmitBackendFailure(t *testing.T) {
	ta := newTestApp(t)
	ta.backend.respond("POST /api/admins/register", http.StatusBadRequest, `{"detail": "Email already registered"}`)

	rec := ta.serve(adminRequest(t, ta.App, http.MethodPost, "/admin-dashboard/register", registrationValues(), superAdmin()))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "Email already registered")
	assert.Empty(t, ta.events.recorded())
}

func TestAdminActivityPageScopesBySuperAdmin(t *testing.T) {
	ta := newTestApp(t)
	complaintID := 5
	require.NoError(t, ta.events.Record(context.Background(), AdminEvent{AdminID: 7, AdminRole: grievanceapi.RoleMunicipalAdmin, Action: eventStatusUpdate, ComplaintID: &complaintID, Metadata: map[string]any{"label": "Resolved"}}))
	require.NoError(t, ta.events.Record(context.Background(), AdminEvent{AdminID: 9, AdminRole: grievanceapi.RoleDepartmentAdmin, Action: eventMisclassificationDelete}))

	rec := ta.serve(adminRequest(t, ta.App, http.MethodGet, "/admin-dashboard/activity", nil, municipalAdmin()))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "status update")
	assert.NotContains(t, rec.Body.String(), "misclassification delete")

	rec = ta.serve(adminRequest(t, ta.App, http.MethodGet, "/admin-dashboard/activity", nil, superAdmin()))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "misclassification delete")
}

func TestMetadataSummarySortsKeys(t *testing.T) {
	assert.Equal(t, "", metadataSummary(nil))
	assert.Equal(t, "current=2, label=Resolved, sent=2", metadataSummary(map[string]any{"sent": 2, "label": "Resolved", "current": 2}))
}
