package main

import (
	"testing"

	"sambodhan/libs/grievanceapi"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRegistrationForm() registrationForm {
	return registrationForm{
		Name:            "Hari Bista",
		Email:           "hari@example.com",
		Password:        "supersecret",
		ConfirmPassword: "supersecret",
		Role:            "department_admin",
		Department:      grievanceapi.Departments[0],
		DistrictID:      "3",
		MunicipalityID:  "12",
	}
}

func validationErrors(t *testing.T, err error) fieldErrors {
	t.Helper()
	require.Error(t, err)
	errs, ok := err.(fieldErrors)
	require.True(t, ok, "expected fieldErrors, got %T", err)
	return errs
}

func TestFormValidatorRegistration(t *testing.T) {
	forms := newFormValidator()
	require.NoError(t, forms.Validate(validRegistrationForm()))

	tests := []struct {
		name   string
		mutate func(*registrationForm)
		field  string
		want   string
	}{
		{"missing name", func(f *registrationForm) { f.Name = "" }, "name", "This field is required."},
		{"bad email", func(f *registrationForm) { f.Email = "hari" }, "email", "Enter a valid email address."},
		{"short password", func(f *registrationForm) { f.Password, f.ConfirmPassword = "short", "short" }, "password", "Must be at least 8 characters."},
		{"mismatch", func(f *registrationForm) { f.ConfirmPassword = "different" }, "confirm_password", "Passwords do not match."},
		{"ward admin not registrable", func(f *registrationForm) { f.Role = "ward_admin" }, "role", "Select a valid role."},
		{"unknown department", func(f *registrationForm) { f.Department = "Parks" }, "department", "Select a valid department."},
		{"department admin needs department", func(f *registrationForm) { f.Department = "" }, "department", "Department admins need a department."},
		{"department admin needs municipality", func(f *registrationForm) { f.MunicipalityID = "" }, "municipality_id", "Select a municipality."},
		{"bad municipality id", func(f *registrationForm) { f.MunicipalityID = "abc" }, "municipality_id", "Select a valid option."},
		{"super admin needs district", func(f *registrationForm) { f.Role, f.DistrictID = "super_admin", "" }, "district_id", "Select a district."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := validRegistrationForm()
			tt.mutate(&form)
			errs := validationErrors(t, forms.Validate(form))
			assert.Equal(t, tt.want, errs[tt.field], errs.Error())
		})
	}
}

func TestFormValidatorComplaint(t *testing.T) {
	forms := newFormValidator()
	require.NoError(t, forms.Validate(complaintForm{Message: "Water leak", WardID: "4"}))

	errs := validationErrors(t, forms.Validate(complaintForm{Message: "Water leak", WardID: "0"}))
	assert.Equal(t, "Please select a valid ward.", errs["ward_id"])

	errs = validationErrors(t, forms.Validate(complaintForm{WardID: "4"}))
	assert.Equal(t, "This field is required.", errs["message"])

	errs = validationErrors(t, forms.Validate(complaintForm{Message: "Water leak", WardID: "4", DistrictID: "x"}))
	assert.Equal(t, "Select a valid option.", errs["district_id"])
}

func TestRegistrationBodyPerRole(t *testing.T) {
	form := validRegistrationForm()
	reg := form.registration()
	assert.Equal(t, grievanceapi.RoleDepartmentAdmin, reg.Role)
	require.NotNil(t, reg.Department)
	assert.Equal(t, grievanceapi.Departments[0], *reg.Department)
	assert.Equal(t, intPtr(12), reg.MunicipalityID)

	form.Role = "municipal_admin"
	reg = form.registration()
	assert.Nil(t, reg.Department)
	assert.Equal(t, intPtr(12), reg.MunicipalityID)

	form.Role = "super_admin"
	reg = form.registration()
	assert.Nil(t, reg.Department)
	assert.Nil(t, reg.MunicipalityID)
	assert.Equal(t, intPtr(3), reg.DistrictID)
}
