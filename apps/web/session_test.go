package main

import (
	"testing"
	"time"

	"sambodhan/libs/grievanceapi"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionTestApp(now time.Time) *App {
	return &App{
		cfg: &Config{Env: "test", AppSigningSecret: testSigningSecret},
		now: func() time.Time { return now },
	}
}

func TestAdminSessionTokenRoundTrip(t *testing.T) {
	app := newSessionTestApp(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	admin := departmentAdmin()
	admin.WardID = intPtr(4)
	admin.DistrictID = intPtr(3)
	admin.DistrictName = "Lalitpur"

	token, err := app.createAdminSessionToken(&admin)
	require.NoError(t, err)

	got, err := app.verifyAdminSessionToken(token)
	require.NoError(t, err)
	if diff := cmp.Diff(&admin, got); diff != "" {
		t.Fatalf("admin mismatch (-want +got):\n%s", diff)
	}
}

func TestAdminSessionTokenExpires(t *testing.T) {
	issued := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	app := newSessionTestApp(issued)
	admin := municipalAdmin()

	token, err := app.createAdminSessionToken(&admin)
	require.NoError(t, err)

	app.now = func() time.Time { return issued.Add(adminSessionDuration - time.Minute) }
	_, err = app.verifyAdminSessionToken(token)
	require.NoError(t, err)

	app.now = func() time.Time { return issued.Add(adminSessionDuration + time.Minute) }
	_, err = app.verifyAdminSessionToken(token)
	assert.Error(t, err)
}

func TestAdminSessionTokenRejectsForgeries(t *testing.T) {
	app := newSessionTestApp(time.Now())

	other := &App{cfg: &Config{AppSigningSecret: "another-secret-value"}}
	admin := municipalAdmin()
	forged, err := other.createAdminSessionToken(&admin)
	require.NoError(t, err)
	_, err = app.verifyAdminSessionToken(forged)
	assert.Error(t, err, "wrong secret")

	citizenRole, err := app.signClaims(jwt.MapClaims{"id": 5, "role": "citizen"}, time.Hour)
	require.NoError(t, err)
	_, err = app.verifyAdminSessionToken(citizenRole)
	assert.Error(t, err, "citizen role")

	noID, err := app.signClaims(jwt.MapClaims{"role": "super_admin"}, time.Hour)
	require.NoError(t, err)
	_, err = app.verifyAdminSessionToken(noID)
	assert.Error(t, err, "missing id")

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"id": 1, "role": "super_admin"})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = app.verifyAdminSessionToken(unsigned)
	assert.Error(t, err, "unsigned token")
}

func TestCitizenSessionToken(t *testing.T) {
	issued := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	app := newSessionTestApp(issued)

	token, err := app.createCitizenSessionToken(citizenSession{ID: 30, Name: "Asha Gurung", Email: "asha@example.com"})
	require.NoError(t, err)

	got, err := app.verifyCitizenSessionToken(token)
	require.NoError(t, err)
	assert.Equal(t, &citizenSession{ID: 30, Name: "Asha Gurung", Email: "asha@example.com"}, got)

	app.now = func() time.Time { return issued.Add(citizenSessionDuration + time.Second) }
	_, err = app.verifyCitizenSessionToken(token)
	assert.Error(t, err)
}

func TestIntClaim(t *testing.T) {
	claims := jwt.MapClaims{"float": 7.0, "string": "8", "fraction": 1.5, "zero": 0.0, "word": "x"}

	id, err := intClaim(claims, "float")
	require.NoError(t, err)
	assert.Equal(t, 7, id)

	id, err = intClaim(claims, "string")
	require.NoError(t, err)
	assert.Equal(t, 8, id)

	for _, key := range []string{"fraction", "zero", "word", "missing"} {
		_, err := intClaim(claims, key)
		assert.Error(t, err, key)
	}

	assert.Nil(t, optionalIntClaim(claims, "missing"))
	assert.Nil(t, optionalIntClaim(claims, "word"))
	assert.Equal(t, intPtr(7), optionalIntClaim(claims, "float"))
}

func TestCanManageTeam(t *testing.T) {
	assert.True(t, canManageTeam(grievanceapi.RoleSuperAdmin))
	assert.True(t, canManageTeam(grievanceapi.RoleMunicipalAdmin))
	assert.False(t, canManageTeam(grievanceapi.RoleDepartmentAdmin))
	assert.False(t, canManageTeam(grievanceapi.RoleWardAdmin))
}
