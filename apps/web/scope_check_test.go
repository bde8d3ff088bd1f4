package main

import (
	"net/url"
	"testing"

	"sambodhan/libs/grievanceapi"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopeParamsPerRole(t *testing.T) {
	infra := grievanceapi.Departments[2]

	tests := []struct {
		name  string
		admin grievanceapi.Admin
		want  url.Values
	}{
		{
			name:  "super admin sees its district",
			admin: grievanceapi.Admin{Role: grievanceapi.RoleSuperAdmin, DistrictID: intPtr(3), MunicipalityID: intPtr(12)},
			want:  url.Values{"district_id": {"3"}},
		},
		{
			name:  "municipal admin sees its municipality",
			admin: grievanceapi.Admin{Role: grievanceapi.RoleMunicipalAdmin, MunicipalityID: intPtr(12), DistrictID: intPtr(3)},
			want:  url.Values{"municipality_id": {"12"}},
		},
		{
			name:  "department admin sees department within municipality",
			admin: grievanceapi.Admin{Role: grievanceapi.RoleDepartmentAdmin, Department: &infra, MunicipalityID: intPtr(12)},
			want:  url.Values{"department": {infra}, "municipality_id": {"12"}},
		},
		{
			name:  "ward admin sees its ward",
			admin: grievanceapi.Admin{Role: grievanceapi.RoleWardAdmin, WardID: intPtr(4), MunicipalityID: intPtr(12)},
			want:  url.Values{"ward_id": {"4"}},
		},
		{
			name:  "missing attributes are left out",
			admin: grievanceapi.Admin{Role: grievanceapi.RoleDepartmentAdmin, Department: strPtr("  ")},
			want:  url.Values{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := scopeParams(&tt.admin)
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("scope mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestScopeParamsRejectsNonAdmins(t *testing.T) {
	_, err := scopeParams(nil)
	assert.Error(t, err)

	_, err = scopeParams(&grievanceapi.Admin{Role: grievanceapi.RoleCitizen})
	assert.Error(t, err)

	_, err = scopeParams(&grievanceapi.Admin{Role: "janitor"})
	assert.Error(t, err)
}

func TestExportParamsUsesPresentAttributes(t *testing.T) {
	infra := grievanceapi.Departments[2]

	got := exportParams(&grievanceapi.Admin{
		Role:           grievanceapi.RoleSuperAdmin,
		Department:     &infra,
		MunicipalityID: intPtr(12),
		DistrictID:     intPtr(3),
	})
	want := url.Values{"department": {infra}, "municipality_id": {"12"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("export params mismatch (-want +got):\n%s", diff)
	}

	assert.Empty(t, exportParams(nil))
	assert.Equal(t, url.Values{"ward_id": {"4"}}, exportParams(&grievanceapi.Admin{Role: grievanceapi.RoleWardAdmin, WardID: intPtr(4)}))
}

func TestMisclassificationParams(t *testing.T) {
	health := grievanceapi.Departments[1]

	assert.Equal(t,
		url.Values{"reviewed": {"false"}, "department": {health}},
		misclassificationParams(&grievanceapi.Admin{Role: grievanceapi.RoleDepartmentAdmin, Department: &health}),
	)
	assert.Equal(t,
		url.Values{"reviewed": {"false"}},
		misclassificationParams(&grievanceapi.Admin{Role: grievanceapi.RoleMunicipalAdmin, Department: &health}),
	)
	assert.Equal(t, url.Values{"reviewed": {"false"}}, misclassificationParams(nil))
}
