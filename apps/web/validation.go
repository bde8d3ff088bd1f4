package main

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"sambodhan/libs/grievanceapi"

	"github.com/go-playground/validator/v10"
)

// registrableRoles are the roles an admin can be registered with.
var registrableRoles = []grievanceapi.Role{
	grievanceapi.RoleDepartmentAdmin,
	grievanceapi.RoleMunicipalAdmin,
	grievanceapi.RoleSuperAdmin,
}

type registrationForm struct {
	Name            string `form:"name" validate:"required,max=120"`
	Email           string `form:"email" validate:"required,email"`
	Password        string `form:"password" validate:"required,min=8"`
	ConfirmPassword string `form:"confirm_password" validate:"required,eqfield=Password"`
	Role            string `form:"role" validate:"required,admin_role"`
	Department      string `form:"department" validate:"omitempty,department"`
	DistrictID      string `form:"district_id" validate:"omitempty,positive_id"`
	MunicipalityID  string `form:"municipality_id" validate:"omitempty,positive_id"`
}

type complaintForm struct {
	Message        string `form:"message" validate:"required,max=4000"`
	DistrictID     string `form:"district_id" validate:"omitempty,positive_id"`
	MunicipalityID string `form:"municipality_id" validate:"omitempty,positive_id"`
	WardID         string `form:"ward_id" validate:"positive_id"`
}

type citizenSignupForm struct {
	Name            string `form:"name" validate:"required,max=120"`
	Email           string `form:"email" validate:"required,email"`
	Phone           string `form:"phone" validate:"omitempty,max=20"`
	Password        string `form:"password" validate:"required,min=8"`
	ConfirmPassword string `form:"confirm_password" validate:"required,eqfield=Password"`
}

// fieldErrors maps a form field name to its message.
type fieldErrors map[string]string

func (f fieldErrors) Error() string {
	parts := make([]string, 0, len(f))
	for field, message := range f {
		parts = append(parts, field+": "+message)
	}
	return strings.Join(parts, "; ")
}

type formValidator struct {
	validate *validator.Validate
}

func newFormValidator() *formValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("form"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("positive_id", validatePositiveID)
	_ = v.RegisterValidation("admin_role", validateAdminRole)
	_ = v.RegisterValidation("department", validateDepartment)
	v.RegisterStructValidation(validateRegistrationScope, registrationForm{})

	return &formValidator{validate: v}
}

// Validate returns fieldErrors for invalid input, or nil.
func (fv *formValidator) Validate(form any) error {
	err := fv.validate.Struct(form)
	if err == nil {
		return nil
	}
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}
	out := fieldErrors{}
	for _, fieldErr := range validationErrs {
		if _, exists := out[fieldErr.Field()]; exists {
			continue
		}
		out[fieldErr.Field()] = fieldMessage(fieldErr)
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "min":
		return "Must be at least " + fe.Param() + " characters."
	case "max":
		return "Must be at most " + fe.Param() + " characters."
	case "eqfield":
		return "Passwords do not match."
	case "admin_role":
		return "Select a valid role."
	case "department":
		return "Select a valid department."
	case "positive_id":
		if fe.Field() == "ward_id" {
			return "Please select a valid ward."
		}
		return "Select a valid option."
	case "department_required":
		return "Department admins need a department."
	case "municipality_required":
		return "Select a municipality."
	case "district_required":
		return "Select a district."
	default:
		return "Invalid value."
	}
}

func validatePositiveID(fl validator.FieldLevel) bool {
	id, err := strconv.Atoi(strings.TrimSpace(fl.Field().String()))
	return err == nil && id > 0
}

func validateAdminRole(fl validator.FieldLevel) bool {
	role, err := grievanceapi.ParseRole(fl.Field().String())
	if err != nil {
		return false
	}
	for _, allowed := range registrableRoles {
		if role == allowed {
			return true
		}
	}
	return false
}

func validateDepartment(fl validator.FieldLevel) bool {
	value := strings.TrimSpace(fl.Field().String())
	for _, department := range grievanceapi.Departments {
		if value == department {
			return true
		}
	}
	return false
}

// validateRegistrationScope checks the location fields each role needs.
func validateRegistrationScope(sl validator.StructLevel) {
	form := sl.Current().Interface().(registrationForm)
	role, err := grievanceapi.ParseRole(form.Role)
	if err != nil {
		return
	}
	switch role {
	case grievanceapi.RoleDepartmentAdmin:
		if strings.TrimSpace(form.Department) == "" {
			sl.ReportError(form.Department, "department", "Department", "department_required", "")
		}
		if strings.TrimSpace(form.MunicipalityID) == "" {
			sl.ReportError(form.MunicipalityID, "municipality_id", "MunicipalityID", "municipality_required", "")
		}
	case grievanceapi.RoleMunicipalAdmin:
		if strings.TrimSpace(form.MunicipalityID) == "" {
			sl.ReportError(form.MunicipalityID, "municipality_id", "MunicipalityID", "municipality_required", "")
		}
	case grievanceapi.RoleSuperAdmin:
		if strings.TrimSpace(form.DistrictID) == "" {
			sl.ReportError(form.DistrictID, "district_id", "DistrictID", "district_required", "")
		}
	case grievanceapi.RoleWardAdmin, grievanceapi.RoleCitizen:
	}
}

// registration converts a validated form into the backend body. Department
// is null for municipal and super admins; municipality is null for super
// admins.
func (f registrationForm) registration() grievanceapi.AdminRegistration {
	role, _ := grievanceapi.ParseRole(f.Role)
	reg := grievanceapi.AdminRegistration{
		Name:     strings.TrimSpace(f.Name),
		Email:    strings.TrimSpace(f.Email),
		Password: f.Password,
		Role:     role,
	}
	if department := strings.TrimSpace(f.Department); department != "" {
		reg.Department = &department
	}
	reg.MunicipalityID = optionalID(f.MunicipalityID)
	reg.DistrictID = optionalID(f.DistrictID)

	switch role {
	case grievanceapi.RoleMunicipalAdmin:
		reg.Department = nil
	case grievanceapi.RoleSuperAdmin:
		reg.Department = nil
		reg.MunicipalityID = nil
	case grievanceapi.RoleDepartmentAdmin, grievanceapi.RoleWardAdmin, grievanceapi.RoleCitizen:
	}
	return reg
}

func optionalID(raw string) *int {
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return nil
	}
	return &id
}
