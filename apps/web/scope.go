package main

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"sambodhan/libs/grievanceapi"
)

// scopeParams maps an administrator to the filter sent with every analytics
// call. Each role sees exactly its own slice; attributes missing on the
// admin are left out.
func scopeParams(admin *grievanceapi.Admin) (url.Values, error) {
	if admin == nil {
		return nil, fmt.Errorf("no admin")
	}
	params := url.Values{}
	switch admin.Role {
	case grievanceapi.RoleSuperAdmin:
		setIntParam(params, "district_id", admin.DistrictID)
	case grievanceapi.RoleMunicipalAdmin:
		setIntParam(params, "municipality_id", admin.MunicipalityID)
	case grievanceapi.RoleDepartmentAdmin:
		setStringParam(params, "department", admin.Department)
		setIntParam(params, "municipality_id", admin.MunicipalityID)
	case grievanceapi.RoleWardAdmin:
		setIntParam(params, "ward_id", admin.WardID)
	case grievanceapi.RoleCitizen:
		return nil, fmt.Errorf("role %q has no admin scope", admin.Role)
	default:
		return nil, fmt.Errorf("unknown role %q", admin.Role)
	}
	return params, nil
}

// exportParams is the subset of department, municipality and ward present on
// the admin, whatever the role.
func exportParams(admin *grievanceapi.Admin) url.Values {
	params := url.Values{}
	if admin == nil {
		return params
	}
	setStringParam(params, "department", admin.Department)
	setIntParam(params, "municipality_id", admin.MunicipalityID)
	setIntParam(params, "ward_id", admin.WardID)
	return params
}

// misclassificationParams filters the pending correction list. Department
// admins only see reports for their own department.
func misclassificationParams(admin *grievanceapi.Admin) url.Values {
	params := url.Values{"reviewed": {"false"}}
	if admin != nil && admin.Role == grievanceapi.RoleDepartmentAdmin {
		setStringParam(params, "department", admin.Department)
	}
	return params
}

func setIntParam(params url.Values, key string, value *int) {
	if value != nil && *value > 0 {
		params.Set(key, strconv.Itoa(*value))
	}
}

func setStringParam(params url.Values, key string, value *string) {
	if value != nil && strings.TrimSpace(*value) != "" {
		params.Set(key, strings.TrimSpace(*value))
	}
}
