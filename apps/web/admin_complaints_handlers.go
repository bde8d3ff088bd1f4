package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"sambodhan/libs/grievanceapi"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

type complaintFilters struct {
	Status string
	Query  string
	Page   int
}

func parseComplaintFilters(c *gin.Context) complaintFilters {
	return complaintFilters{
		Status: strings.TrimSpace(c.Query("status")),
		Query:  strings.TrimSpace(c.Query("q")),
		Page:   parsePage(c.Query("page")),
	}
}

func (f complaintFilters) pageURL() string {
	query := url.Values{}
	if f.Status != "" {
		query.Set("status", f.Status)
	}
	if f.Query != "" {
		query.Set("q", f.Query)
	}
	target := adminDashboardPath + "/complaints"
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	return target
}

// filterComplaints keeps complaints matching the status filter and the free
// text query. The query matches the message case-insensitively or the id.
func filterComplaints(complaints []grievanceapi.Complaint, filters complaintFilters) []grievanceapi.Complaint {
	var wantStatus *grievanceapi.Status
	if filters.Status != "" {
		if status, err := grievanceapi.ParseStatus(filters.Status); err == nil {
			wantStatus = &status
		}
	}
	needle := strings.ToLower(filters.Query)

	out := make([]grievanceapi.Complaint, 0, len(complaints))
	for _, complaint := range complaints {
		if wantStatus != nil && complaint.CurrentStatus != *wantStatus {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(complaint.Message), needle) &&
			strconv.Itoa(complaint.ID) != needle {
			continue
		}
		out = append(out, complaint)
	}
	return out
}

func statusOptions(selected string) []statusOptionView {
	options := make([]statusOptionView, 0, len(grievanceapi.Statuses))
	parsed, parseErr := grievanceapi.ParseStatus(selected)
	for _, status := range grievanceapi.Statuses {
		options = append(options, statusOptionView{
			Value:    int(status),
			Label:    status.Label(),
			Selected: selected != "" && parseErr == nil && parsed == status,
		})
	}
	return options
}

func complaintRow(complaint grievanceapi.Complaint) complaintRowView {
	return complaintRowView{
		ID:            complaint.ID,
		Message:       truncateText(complaint.Message, complaintMessagePreview),
		Department:    string(complaint.Department),
		Urgency:       string(complaint.Urgency),
		StatusLabel:   complaint.CurrentStatus.Label(),
		StatusClass:   "status-" + strings.ReplaceAll(strings.ToLower(complaint.CurrentStatus.Label()), " ", "-"),
		Submitted:     formatTimestamp(complaint.DateSubmitted),
		StatusOptions: statusOptions(strconv.Itoa(int(complaint.CurrentStatus))),
	}
}

func (a *App) adminComplaintsPageHandler(c *gin.Context) {
	admin, err := getAdminSession(c)
	if err != nil {
		redirectToAdminLogin(c)
		return
	}
	base := a.adminBaseData(c, "page_title_complaints", "complaints")
	filters := parseComplaintFilters(c)
	data := adminComplaintsViewData{
		adminBaseViewData: base,
		Status:            filters.Status,
		Query:             filters.Query,
		StatusOptions:     statusOptions(filters.Status),
		ActionNext:        base.CurrentPath,
	}

	scope, err := scopeParams(&admin)
	if err != nil {
		data.ErrorMessage = err.Error()
		a.renderAdminTemplate(c, http.StatusForbidden, adminTemplateComplaints, data)
		return
	}
	complaints, err := a.api.ListComplaints(a.backendContext(c), scope)
	if err != nil {
		a.log.WarnContext(c.Request.Context(), "list complaints failed", "admin_id", admin.ID, "error", err)
		data.ErrorMessage = backendMessage(err, base.Lang, "error_complaints_load_failed")
		_, data.Pagination = paginate([]grievanceapi.Complaint(nil), filters.Page, complaintsPerPage, filters.pageURL())
		a.renderAdminTemplate(c, http.StatusOK, adminTemplateComplaints, data)
		return
	}

	page, pager := paginate(filterComplaints(complaints, filters), filters.Page, complaintsPerPage, filters.pageURL())
	for _, complaint := range page {
		data.Rows = append(data.Rows, complaintRow(complaint))
	}
	data.Pagination = pager
	a.renderAdminTemplate(c, http.StatusOK, adminTemplateComplaints, data)
}

// adminComplaintStatusSubmitHandler patches the status code. The notice shows
// the label of the status the backend echoed, falling back to the one sent.
func (a *App) adminComplaintStatusSubmitHandler(c *gin.Context) {
	admin, err := getAdminSession(c)
	if err != nil {
		redirectToAdminLogin(c)
		return
	}
	lang := a.languageFromRequest(c)
	next := c.PostForm("next")
	if strings.TrimSpace(next) == "" {
		next = adminDashboardPath + "/complaints"
	}

	complaintID, err := parsePathID(c)
	if err != nil {
		redirectAdminWithMessage(c, next, "error", err.Error())
		return
	}
	status, err := grievanceapi.ParseStatus(c.PostForm("status"))
	if err != nil {
		redirectAdminWithMessage(c, next, "error", text(lang, "error_status_unknown"))
		return
	}

	ctx := a.backendContext(c)
	update, err := a.api.UpdateComplaintStatus(ctx, complaintID, status)
	if err != nil {
		a.log.WarnContext(ctx, "status update failed", "complaint_id", complaintID, "status", int(status), "error", err)
		redirectAdminWithMessage(c, next, "error", backendMessage(err, lang, "error_status_update_failed"))
		return
	}

	current := update.Current()
	a.recordAdminEvent(ctx, admin, eventStatusUpdate, &complaintID, map[string]any{
		"sent":    int(status),
		"current": int(current),
		"label":   current.Label(),
	})
	redirectAdminWithMessage(c, next, "notice", fmt.Sprintf(text(lang, "notice_status_updated"), complaintID, current.Label()))
}

func (a *App) adminMisclassificationsPageHandler(c *gin.Context) {
	a.renderMisclassifications(c, http.StatusOK, misclassificationFormView{ComplaintID: c.Query("complaint_id")}, nil)
}

// loadMisclassificationContext fetches the pending reports and the complaints
// the admin may report on, concurrently.
func (a *App) loadMisclassificationContext(ctx context.Context, admin grievanceapi.Admin) ([]grievanceapi.Misclassification, []grievanceapi.Complaint, error) {
	scope, err := scopeParams(&admin)
	if err != nil {
		return nil, nil, &apiError{Status: http.StatusForbidden, Code: "forbidden", Message: err.Error()}
	}

	var reports []grievanceapi.Misclassification
	var complaints []grievanceapi.Complaint
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		reports, err = a.api.ListMisclassifications(egCtx, misclassificationParams(&admin))
		return err
	})
	eg.Go(func() error {
		var err error
		complaints, err = a.api.ListComplaints(egCtx, scope)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}
	return reports, complaints, nil
}

func (a *App) renderMisclassifications(c *gin.Context, status int, form misclassificationFormView, errs fieldErrors) {
	admin, err := getAdminSession(c)
	if err != nil {
		redirectToAdminLogin(c)
		return
	}
	base := a.adminBaseData(c, "page_title_misclassifications", "misclassifications")
	data := adminMisclassificationsViewData{
		adminBaseViewData: base,
		Departments:       grievanceapi.Departments,
		Urgencies:         grievanceapi.Urgencies,
		Form:              form,
		FieldErrors:       errs,
	}

	reports, complaints, err := a.loadMisclassificationContext(a.backendContext(c), admin)
	if err != nil {
		a.log.WarnContext(c.Request.Context(), "load misclassifications failed", "admin_id", admin.ID, "error", err)
		data.ErrorMessage = backendMessage(err, base.Lang, "error_misclass_load_failed")
	}
	for _, report := range reports {
		data.Reports = append(data.Reports, misclassificationRowView{
			ID:                  report.ID,
			ComplaintID:         report.ComplaintID,
			PredictedDepartment: string(report.ModelPredictedDepartment),
			PredictedUrgency:    string(report.ModelPredictedUrgency),
			CorrectDepartment:   string(report.CorrectDepartment),
			CorrectUrgency:      string(report.CorrectUrgency),
			Reported:            formatTimestamp(report.CreatedAt),
		})
	}
	for _, complaint := range complaints {
		data.Complaints = append(data.Complaints, complaintOptionView{
			ID:         complaint.ID,
			Label:      fmt.Sprintf("#%d %s", complaint.ID, truncateText(complaint.Message, 60)),
			Department: string(complaint.Department),
			Urgency:    string(complaint.Urgency),
			Selected:   strconv.Itoa(complaint.ID) == form.ComplaintID,
		})
	}
	a.renderAdminTemplate(c, status, adminTemplateMisclassify, data)
}

// misclassificationReport keeps only the corrections that differ from the
// complaint's current classification.
func misclassificationReport(complaint grievanceapi.Complaint, form misclassificationFormView) (grievanceapi.MisclassificationReport, fieldErrors) {
	errs := fieldErrors{}
	report := grievanceapi.MisclassificationReport{ComplaintID: complaint.ID}

	department := strings.TrimSpace(form.CorrectDepartment)
	if department != "" {
		if !slices.Contains(grievanceapi.Departments, department) {
			errs["correct_department"] = "Select a valid department."
		} else if department != string(complaint.Department) {
			report.CorrectDepartment = department
		}
	}
	urgency := strings.TrimSpace(form.CorrectUrgency)
	if urgency != "" {
		if !slices.Contains(grievanceapi.Urgencies, urgency) {
			errs["correct_urgency"] = "Select a valid urgency."
		} else if urgency != string(complaint.Urgency) {
			report.CorrectUrgency = urgency
		}
	}
	if len(errs) == 0 && report.CorrectDepartment == "" && report.CorrectUrgency == "" {
		errs["correct_department"] = "Choose a department or urgency that differs from the current classification."
	}
	if len(errs) > 0 {
		return report, errs
	}
	return report, nil
}

func (a *App) adminMisclassificationSubmitHandler(c *gin.Context) {
	admin, err := getAdminSession(c)
	if err != nil {
		redirectToAdminLogin(c)
		return
	}
	lang := a.languageFromRequest(c)
	form := misclassificationFormView{
		ComplaintID:       strings.TrimSpace(c.PostForm("complaint_id")),
		CorrectDepartment: strings.TrimSpace(c.PostForm("correct_department")),
		CorrectUrgency:    strings.TrimSpace(c.PostForm("correct_urgency")),
	}
	target := adminDashboardPath + "/misclassifications"

	complaintID, err := strconv.Atoi(form.ComplaintID)
	if err != nil || complaintID <= 0 {
		a.renderMisclassifications(c, http.StatusUnprocessableEntity, form, fieldErrors{"complaint_id": "Select a complaint."})
		return
	}

	ctx := a.backendContext(c)
	scope, err := scopeParams(&admin)
	if err != nil {
		redirectAdminWithMessage(c, target, "error", err.Error())
		return
	}
	complaints, err := a.api.ListComplaints(ctx, scope)
	if err != nil {
		redirectAdminWithMessage(c, target, "error", backendMessage(err, lang, "error_misclass_failed"))
		return
	}
	index := slices.IndexFunc(complaints, func(complaint grievanceapi.Complaint) bool { return complaint.ID == complaintID })
	if index < 0 {
		redirectAdminWithMessage(c, target, "error", text(lang, "error_complaint_not_in_scope"))
		return
	}

	report, errs := misclassificationReport(complaints[index], form)
	if errs != nil {
		a.renderMisclassifications(c, http.StatusUnprocessableEntity, form, errs)
		return
	}

	created, err := a.api.ReportMisclassification(ctx, admin.ID, report)
	if err != nil {
		a.log.WarnContext(ctx, "report misclassification failed", "complaint_id", complaintID, "error", err)
		redirectAdminWithMessage(c, target, "error", backendMessage(err, lang, "error_misclass_failed"))
		return
	}

	metadata := map[string]any{}
	if report.CorrectDepartment != "" {
		metadata["correct_department"] = report.CorrectDepartment
	}
	if report.CorrectUrgency != "" {
		metadata["correct_urgency"] = report.CorrectUrgency
	}
	if created != nil && created.ID > 0 {
		metadata["misclassification_id"] = created.ID
	}
	a.recordAdminEvent(ctx, admin, eventMisclassificationReport, &complaintID, metadata)
	redirectAdminWithMessage(c, target, "notice", text(lang, "notice_misclass_reported"))
}

func (a *App) adminMisclassificationDeleteHandler(c *gin.Context) {
	admin, err := getAdminSession(c)
	if err != nil {
		redirectToAdminLogin(c)
		return
	}
	lang := a.languageFromRequest(c)
	target := adminDashboardPath + "/misclassifications"

	id, err := parsePathID(c)
	if err != nil {
		redirectAdminWithMessage(c, target, "error", err.Error())
		return
	}
	ctx := a.backendContext(c)
	if err := a.api.DeleteMisclassification(ctx, id, admin.ID); err != nil {
		a.log.WarnContext(ctx, "delete misclassification failed", "id", id, "error", err)
		redirectAdminWithMessage(c, target, "error", backendMessage(err, lang, "error_misclass_delete_failed"))
		return
	}
	a.recordAdminEvent(ctx, admin, eventMisclassificationDelete, nil, map[string]any{"misclassification_id": id})
	redirectAdminWithMessage(c, target, "notice", text(lang, "notice_misclass_deleted"))
}
