package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"sambodhan/libs/grievanceapi"
	"sambodhan/libs/mailer"

	"github.com/gin-gonic/gin"
)

// teamFilter is the subordinate listing for admin: municipal admins of the
// district for a super admin, department admins of the municipality for a
// municipal admin.
func teamFilter(admin grievanceapi.Admin) (url.Values, error) {
	filter := url.Values{}
	switch admin.Role {
	case grievanceapi.RoleSuperAdmin:
		if admin.DistrictID == nil {
			return nil, fmt.Errorf("super admin has no district")
		}
		setIntParam(filter, "district_id", admin.DistrictID)
		filter.Set("role", string(grievanceapi.RoleMunicipalAdmin))
	case grievanceapi.RoleMunicipalAdmin:
		if admin.MunicipalityID == nil {
			return nil, fmt.Errorf("municipal admin has no municipality")
		}
		setIntParam(filter, "municipality_id", admin.MunicipalityID)
		filter.Set("role", string(grievanceapi.RoleDepartmentAdmin))
	case grievanceapi.RoleDepartmentAdmin, grievanceapi.RoleWardAdmin, grievanceapi.RoleCitizen:
		return nil, fmt.Errorf("role %q has no team", admin.Role)
	default:
		return nil, fmt.Errorf("unknown role %q", admin.Role)
	}
	return filter, nil
}

func (a *App) teamMemberViews(ctx context.Context, lang string, admins []grievanceapi.Admin, drill bool) []teamMemberView {
	members := a.loadTeamSummaries(ctx, admins)
	views := make([]teamMemberView, 0, len(members))
	for _, member := range members {
		total := int(member.Summary.Total)
		resolved := member.Summary.StatusCount(grievanceapi.StatusResolved)
		view := teamMemberView{
			ID:        member.Admin.ID,
			Name:      member.Admin.Name,
			Email:     member.Admin.Email,
			RoleLabel: roleLabel(lang, member.Admin.Role),
			Location:  adminLocation(member.Admin),
			Total:     total,
			Resolved:  resolved,
			Pending:   member.Summary.StatusCount(grievanceapi.StatusPending),
			Rate:      grievanceapi.ResolutionRate(resolved, total),
			Failed:    member.Failed,
		}
		if drill && member.Admin.MunicipalityID != nil {
			view.DrillURL = adminDashboardPath + "/team?municipality_id=" + strconv.Itoa(*member.Admin.MunicipalityID)
		}
		views = append(views, view)
	}
	return views
}

func adminLocation(admin grievanceapi.Admin) string {
	parts := []string{}
	if admin.Department != nil && *admin.Department != "" {
		parts = append(parts, *admin.Department)
	}
	switch {
	case admin.MunicipalityName != "":
		parts = append(parts, admin.MunicipalityName)
	case admin.DistrictName != "":
		parts = append(parts, admin.DistrictName)
	}
	return strings.Join(parts, " · ")
}

func (a *App) adminTeamPageHandler(c *gin.Context) {
	admin, err := getAdminSession(c)
	if err != nil {
		redirectToAdminLogin(c)
		return
	}
	base := a.adminBaseData(c, "page_title_team", "team")
	data := adminTeamViewData{adminBaseViewData: base}
	ctx := a.backendContext(c)

	filter, err := teamFilter(admin)
	if err != nil {
		data.ErrorMessage = err.Error()
		a.renderAdminTemplate(c, http.StatusForbidden, adminTemplateTeam, data)
		return
	}
	admins, err := a.api.ListAdmins(ctx, filter)
	if err != nil {
		a.log.WarnContext(ctx, "list team failed", "admin_id", admin.ID, "error", err)
		data.ErrorMessage = backendMessage(err, base.Lang, "error_team_load_failed")
		a.renderAdminTemplate(c, http.StatusOK, adminTemplateTeam, data)
		return
	}
	drill := admin.Role == grievanceapi.RoleSuperAdmin
	data.Members = a.teamMemberViews(ctx, base.Lang, admins, drill)

	if !drill {
		a.renderAdminTemplate(c, http.StatusOK, adminTemplateTeam, data)
		return
	}

	selected, err := strconv.Atoi(c.Query("municipality_id"))
	if err != nil || selected <= 0 {
		a.renderAdminTemplate(c, http.StatusOK, adminTemplateTeam, data)
		return
	}
	var owner *grievanceapi.Admin
	for i := range admins {
		if admins[i].MunicipalityID != nil && *admins[i].MunicipalityID == selected {
			owner = &admins[i]
			break
		}
	}
	if owner == nil {
		data.ErrorMessage = text(base.Lang, "error_team_load_failed")
		a.renderAdminTemplate(c, http.StatusOK, adminTemplateTeam, data)
		return
	}

	subAdmins, err := a.api.ListAdmins(ctx, url.Values{
		"municipality_id": {strconv.Itoa(selected)},
		"role":            {string(grievanceapi.RoleDepartmentAdmin)},
	})
	if err != nil {
		data.ErrorMessage = backendMessage(err, base.Lang, "error_team_load_failed")
		a.renderAdminTemplate(c, http.StatusOK, adminTemplateTeam, data)
		return
	}
	data.ShowSubMembers = true
	data.SubTitle = text(base.Lang, "team_view_departments") + ": " + displayOrDash(owner.MunicipalityName)
	data.SubMembers = a.teamMemberViews(ctx, base.Lang, subAdmins, false)
	a.renderAdminTemplate(c, http.StatusOK, adminTemplateTeam, data)
}

// registrationDefaults locks a municipal admin's registrations to department
// admins of their own municipality.
func registrationDefaults(creator grievanceapi.Admin, form registrationForm) (registrationForm, bool) {
	if creator.Role != grievanceapi.RoleMunicipalAdmin {
		if form.Role == "" {
			form.Role = string(grievanceapi.RoleDepartmentAdmin)
		}
		return form, false
	}
	form.Role = string(grievanceapi.RoleDepartmentAdmin)
	form.MunicipalityID = ""
	form.DistrictID = ""
	if creator.MunicipalityID != nil {
		form.MunicipalityID = strconv.Itoa(*creator.MunicipalityID)
	}
	if creator.DistrictID != nil {
		form.DistrictID = strconv.Itoa(*creator.DistrictID)
	}
	return form, true
}

func (a *App) renderRegister(c *gin.Context, status int, creator grievanceapi.Admin, form registrationForm, errs fieldErrors, errorMessage string) {
	base := a.adminBaseData(c, "page_title_register", "register")
	if errorMessage != "" {
		base.ErrorMessage = errorMessage
	}
	form, locked := registrationDefaults(creator, form)
	form.Password = ""
	form.ConfirmPassword = ""

	data := adminRegisterViewData{
		adminBaseViewData: base,
		Form:              form,
		FieldErrors:       errs,
		LockLocation:      locked,
	}
	for _, role := range registrableRoles {
		if locked && role != grievanceapi.RoleDepartmentAdmin {
			continue
		}
		data.Roles = append(data.Roles, optionView{Value: string(role), Label: roleLabel(base.Lang, role), Selected: string(role) == form.Role})
	}
	for _, department := range grievanceapi.Departments {
		data.Departments = append(data.Departments, optionView{Value: department, Label: department, Selected: department == form.Department})
	}

	ctx := a.backendContext(c)
	if districts, err := a.locations.Districts(ctx); err != nil {
		a.log.WarnContext(ctx, "load districts failed", "error", err)
	} else {
		for _, district := range districts {
			value := strconv.Itoa(district.ID)
			data.Districts = append(data.Districts, optionView{Value: value, Label: district.Name, Selected: value == form.DistrictID})
		}
	}
	if districtID := optionalID(form.DistrictID); districtID != nil {
		if municipalities, err := a.locations.Municipalities(ctx, *districtID); err != nil {
			a.log.WarnContext(ctx, "load municipalities failed", "district_id", *districtID, "error", err)
		} else {
			for _, municipality := range municipalities {
				value := strconv.Itoa(municipality.ID)
				data.Municipalities = append(data.Municipalities, optionView{Value: value, Label: municipality.Name, Selected: value == form.MunicipalityID})
			}
		}
	}
	a.renderAdminTemplate(c, status, adminTemplateRegister, data)
}

func (a *App) adminRegisterPageHandler(c *gin.Context) {
	creator, err := getAdminSession(c)
	if err != nil {
		redirectToAdminLogin(c)
		return
	}
	form := registrationForm{DistrictID: strings.TrimSpace(c.Query("district_id"))}
	if form.DistrictID == "" && creator.DistrictID != nil {
		form.DistrictID = strconv.Itoa(*creator.DistrictID)
	}
	a.renderRegister(c, http.StatusOK, creator, form, nil, "")
}

func (a *App) adminRegisterSubmitHandler(c *gin.Context) {
	creator, err := getAdminSession(c)
	if err != nil {
		redirectToAdminLogin(c)
		return
	}
	lang := a.languageFromRequest(c)

	var form registrationForm
	if err := c.ShouldBind(&form); err != nil {
		a.renderRegister(c, http.StatusBadRequest, creator, form, nil, err.Error())
		return
	}
	// A crafted form cannot widen a municipal admin's registrations.
	if creator.Role == grievanceapi.RoleMunicipalAdmin {
		form, _ = registrationDefaults(creator, form)
	}

	if err := a.forms.Validate(form); err != nil {
		if errs, ok := err.(fieldErrors); ok {
			a.renderRegister(c, http.StatusUnprocessableEntity, creator, form, errs, "")
			return
		}
		a.renderRegister(c, http.StatusBadRequest, creator, form, nil, err.Error())
		return
	}

	ctx := a.backendContext(c)
	reg := form.registration()
	created, err := a.api.RegisterAdmin(ctx, reg)
	if err != nil {
		a.log.WarnContext(ctx, "register admin failed", "email", reg.Email, "role", reg.Role, "error", err)
		a.renderRegister(c, http.StatusBadGateway, creator, form, nil, backendMessage(err, lang, "error_register_failed"))
		return
	}

	name, email, role := reg.Name, reg.Email, reg.Role
	metadata := map[string]any{"email": email, "role": string(role)}
	if created != nil && created.ID > 0 {
		metadata["registered_admin_id"] = created.ID
	}
	a.recordAdminEvent(ctx, creator, eventAdminRegister, nil, metadata)
	a.sendAdminWelcome(ctx, lang, name, email, role)

	redirectAdminWithMessage(c, adminDashboardPath+"/register", "notice", fmt.Sprintf(text(lang, "notice_admin_registered"), name))
}

// sendAdminWelcome is best-effort; a mail failure never fails registration.
func (a *App) sendAdminWelcome(ctx context.Context, lang, name, email string, role grievanceapi.Role) {
	if a.mailer == nil {
		return
	}
	msg, err := mailer.WelcomeMessage(mailer.AdminWelcome{
		Name:     name,
		Email:    email,
		Role:     roleLabel(lang, role),
		LoginURL: a.cfg.PublicBaseURL + adminLoginPath,
	})
	if err != nil {
		a.log.WarnContext(ctx, "build welcome email failed", "error", err)
		return
	}
	if _, err := a.mailer.Send(context.WithoutCancel(ctx), msg); err != nil {
		a.log.WarnContext(ctx, "send welcome email failed", "email", email, "error", err)
	}
}

func (a *App) adminActivityPageHandler(c *gin.Context) {
	admin, err := getAdminSession(c)
	if err != nil {
		redirectToAdminLogin(c)
		return
	}
	base := a.adminBaseData(c, "page_title_activity", "activity")
	data := adminActivityViewData{adminBaseViewData: base}

	// Super admins see everyone's activity.
	adminID := admin.ID
	if admin.Role == grievanceapi.RoleSuperAdmin {
		adminID = 0
	}
	events, err := a.events.List(c.Request.Context(), adminID, adminEventListLimit)
	if err != nil {
		a.log.WarnContext(c.Request.Context(), "list admin events failed", "error", err)
		data.ErrorMessage = text(base.Lang, "error_activity_load_failed")
	}
	for _, event := range events {
		row := activityRowView{
			Time:      event.CreatedAt.In(displayLocation()).Format(displayTimestampLayout),
			AdminID:   event.AdminID,
			RoleLabel: roleLabel(base.Lang, event.AdminRole),
			Action:    strings.ReplaceAll(event.Action, "_", " "),
			Details:   metadataSummary(event.Metadata),
		}
		if event.ComplaintID != nil {
			row.Complaint = "#" + strconv.Itoa(*event.ComplaintID)
		}
		data.Rows = append(data.Rows, row)
	}
	a.renderAdminTemplate(c, http.StatusOK, adminTemplateActivity, data)
}

func metadataSummary(metadata map[string]any) string {
	if len(metadata) == 0 {
		return ""
	}
	keys := make([]string, 0, len(metadata))
	for key := range metadata {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", key, metadata[key]))
	}
	return strings.Join(parts, ", ")
}
