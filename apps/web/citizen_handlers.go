package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"sambodhan/libs/classifier"
	"sambodhan/libs/grievanceapi"

	"github.com/gin-gonic/gin"
)

const (
	citizenLoginPath     = "/auth/login"
	citizenSignupPath    = "/auth/signup"
	citizenDashboardPath = "/dashboard"
	maxChatMessageRunes  = 2000
)

func (a *App) registerCitizenRoutes(r *gin.Engine) {
	r.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusSeeOther, citizenDashboardPath)
	})

	r.GET(citizenLoginPath, a.citizenLoginPageHandler)
	r.POST(citizenLoginPath, a.citizenLoginSubmitHandler)
	r.GET(citizenSignupPath, a.citizenSignupPageHandler)
	r.POST(citizenSignupPath, a.citizenSignupSubmitHandler)
	r.POST("/auth/logout", a.citizenLogoutSubmitHandler)

	citizen := r.Group(citizenDashboardPath)
	citizen.Use(a.requireCitizenSession())
	{
		citizen.GET("", a.citizenDashboardPageHandler)
		citizen.GET("/file-complaint", a.citizenFileComplaintPageHandler)
		citizen.POST("/file-complaint", a.citizenFileComplaintSubmitHandler)
	}

	api := r.Group("/api")
	{
		api.POST("/chatbot/message", a.chatbotMessageHandler)
		api.GET("/location/districts", a.locationDistrictsHandler)
		api.GET("/location/municipalities", a.locationMunicipalitiesHandler)
		api.GET("/location/wards", a.locationWardsHandler)
	}
}

func (a *App) citizenBaseData(c *gin.Context, titleKey string) citizenBaseViewData {
	lang := a.languageFromRequest(c)
	var session *citizenSession
	if s, err := getCitizenSession(c); err == nil {
		session = &s
	}
	return citizenBaseViewData{
		Title:         text(lang, titleKey),
		Lang:          lang,
		Text:          texts(lang),
		Session:       session,
		CurrentPath:   sanitizeCitizenRedirectTarget(c.Request.URL.RequestURI()),
		ErrorMessage:  strings.TrimSpace(c.Query("error")),
		NoticeMessage: strings.TrimSpace(c.Query("notice")),
	}
}

func (a *App) citizenLoginPageHandler(c *gin.Context) {
	if token, err := c.Cookie(citizenUserCookieName); err == nil {
		if _, verifyErr := a.verifyCitizenSessionToken(token); verifyErr == nil {
			c.Redirect(http.StatusSeeOther, citizenDashboardPath)
			return
		}
	}
	a.renderCitizenTemplate(c, http.StatusOK, citizenTemplateLogin, citizenLoginViewData{
		citizenBaseViewData: a.citizenBaseData(c, "citizen_login_title"),
		Next:                sanitizeCitizenRedirectTarget(c.Query("next")),
	})
}

func (a *App) citizenLoginSubmitHandler(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))
	password := c.PostForm("password")
	next := sanitizeCitizenRedirectTarget(c.PostForm("next"))
	lang := a.languageFromRequest(c)

	renderError := func(status int, message string) {
		base := a.citizenBaseData(c, "citizen_login_title")
		base.ErrorMessage = message
		a.renderCitizenTemplate(c, status, citizenTemplateLogin, citizenLoginViewData{
			citizenBaseViewData: base,
			Email:               email,
			Next:                next,
		})
	}

	if email == "" || password == "" {
		renderError(http.StatusBadRequest, text(lang, "error_invalid_credentials"))
		return
	}

	auth, err := a.api.CitizenLogin(a.backendContext(c), email, password)
	if err != nil {
		if grievanceapi.IsUnauthorized(err) {
			renderError(http.StatusUnauthorized, backendMessage(err, lang, "error_invalid_credentials"))
			return
		}
		a.log.WarnContext(c.Request.Context(), "citizen login failed", "error", err)
		renderError(http.StatusBadGateway, backendMessage(err, lang, "error_login_failed"))
		return
	}
	if err := a.startCitizenSession(c, auth.User, auth.Token); err != nil {
		writeAPIError(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, next)
}

func (a *App) citizenSignupPageHandler(c *gin.Context) {
	a.renderCitizenTemplate(c, http.StatusOK, citizenTemplateSignup, citizenSignupViewData{
		citizenBaseViewData: a.citizenBaseData(c, "citizen_signup_title"),
	})
}

func (a *App) citizenSignupSubmitHandler(c *gin.Context) {
	lang := a.languageFromRequest(c)
	var form citizenSignupForm
	bindErr := c.ShouldBind(&form)

	render := func(status int, errs fieldErrors, message string) {
		base := a.citizenBaseData(c, "citizen_signup_title")
		base.ErrorMessage = message
		form.Password, form.ConfirmPassword = "", ""
		a.renderCitizenTemplate(c, status, citizenTemplateSignup, citizenSignupViewData{
			citizenBaseViewData: base,
			Form:                form,
			FieldErrors:         errs,
		})
	}

	if bindErr != nil {
		render(http.StatusBadRequest, nil, bindErr.Error())
		return
	}

	if err := a.forms.Validate(form); err != nil {
		var errs fieldErrors
		if errors.As(err, &errs) {
			render(http.StatusUnprocessableEntity, errs, "")
			return
		}
		render(http.StatusBadRequest, nil, err.Error())
		return
	}

	auth, err := a.api.CitizenSignup(a.backendContext(c), grievanceapi.CitizenSignup{
		Name:     strings.TrimSpace(form.Name),
		Email:    strings.TrimSpace(form.Email),
		Phone:    strings.TrimSpace(form.Phone),
		Password: form.Password,
	})
	if err != nil {
		a.log.WarnContext(c.Request.Context(), "citizen signup failed", "error", err)
		render(http.StatusBadRequest, nil, backendMessage(err, lang, "error_register_failed"))
		return
	}
	if err := a.startCitizenSession(c, auth.User, auth.Token); err != nil {
		writeAPIError(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, citizenDashboardPath)
}

func (a *App) citizenLogoutSubmitHandler(c *gin.Context) {
	a.clearCitizenSession(c)
	c.Redirect(http.StatusSeeOther, citizenLoginPath)
}

// citizenDashboardPageHandler shows the profile and the citizen's own
// complaints. A rejected token ends the session.
func (a *App) citizenDashboardPageHandler(c *gin.Context) {
	ctx := a.backendContext(c)
	lang := a.languageFromRequest(c)

	profile, err := a.api.CitizenMe(ctx)
	if err != nil {
		a.log.WarnContext(ctx, "citizen profile failed", "error", err)
		a.clearCitizenSession(c)
		c.Redirect(http.StatusSeeOther, citizenLoginPath+"?error="+url.QueryEscape(text(lang, "citizen_session_expired")))
		return
	}

	base := a.citizenBaseData(c, "citizen_my_complaints")
	complaints, err := a.api.CitizenComplaints(ctx)
	if err != nil {
		a.log.WarnContext(ctx, "citizen complaints failed", "citizen_id", profile.ID, "error", err)
		base.ErrorMessage = backendMessage(err, lang, "error_complaints_load_failed")
	}
	rows := make([]complaintRowView, 0, len(complaints))
	for _, complaint := range complaints {
		rows = append(rows, complaintRow(complaint))
	}

	a.renderCitizenTemplate(c, http.StatusOK, citizenTemplateDashboard, citizenDashboardViewData{
		citizenBaseViewData: base,
		Profile:             profile,
		Complaints:          rows,
	})
}

func (a *App) renderFileComplaint(c *gin.Context, status int, form complaintForm, errs fieldErrors, message string) {
	base := a.citizenBaseData(c, "citizen_file_complaint")
	if message != "" {
		base.ErrorMessage = message
	}
	districts := []optionView{}
	if a.locations != nil {
		list, err := a.locations.Districts(a.backendContext(c))
		if err != nil {
			a.log.WarnContext(c.Request.Context(), "load districts failed", "error", err)
		}
		for _, district := range list {
			value := strconv.Itoa(district.ID)
			districts = append(districts, optionView{Value: value, Label: district.Name, Selected: value == form.DistrictID})
		}
	}
	a.renderCitizenTemplate(c, status, citizenTemplateFileClaim, citizenFileComplaintViewData{
		citizenBaseViewData: base,
		Form:                form,
		FieldErrors:         errs,
		Districts:           districts,
	})
}

func (a *App) citizenFileComplaintPageHandler(c *gin.Context) {
	a.renderFileComplaint(c, http.StatusOK, complaintForm{}, nil, "")
}

// citizenFileComplaintSubmitHandler validates the form, asks both classifiers
// for labels and files the complaint. A missing urgency label stops the
// submission; a missing department is left for the backend to decide.
func (a *App) citizenFileComplaintSubmitHandler(c *gin.Context) {
	session, err := getCitizenSession(c)
	if err != nil {
		c.Redirect(http.StatusSeeOther, citizenLoginPath)
		return
	}
	lang := a.languageFromRequest(c)
	ctx := a.backendContext(c)

	var form complaintForm
	if err := c.ShouldBind(&form); err != nil {
		a.renderFileComplaint(c, http.StatusBadRequest, form, nil, err.Error())
		return
	}
	form.Message = strings.TrimSpace(form.Message)
	if err := a.forms.Validate(form); err != nil {
		var errs fieldErrors
		if errors.As(err, &errs) {
			a.renderFileComplaint(c, http.StatusUnprocessableEntity, form, errs, "")
			return
		}
		a.renderFileComplaint(c, http.StatusBadRequest, form, nil, err.Error())
		return
	}

	urgency, err := a.urgency.Classify(ctx, form.Message)
	if err != nil || strings.TrimSpace(urgency.Label) == "" {
		key := "citizen_classifier_failed"
		if err == nil || errors.Is(err, classifier.ErrEmptyLabel) {
			key = "citizen_urgency_unavailable"
		}
		a.log.WarnContext(ctx, "urgency classification failed", "citizen_id", session.ID, "error", err)
		a.renderFileComplaint(c, http.StatusBadGateway, form, nil, text(lang, key))
		return
	}

	department := ""
	if prediction, err := a.department.Classify(ctx, form.Message); err != nil {
		a.log.WarnContext(ctx, "department classification failed", "citizen_id", session.ID, "error", err)
	} else {
		department = prediction.Label
	}

	citizenID := session.ID
	wardID, _ := strconv.Atoi(strings.TrimSpace(form.WardID))
	created, err := a.api.CreateComplaint(ctx, grievanceapi.NewComplaint{
		Message:        form.Message,
		Department:     department,
		Urgency:        urgency.Label,
		CitizenID:      &citizenID,
		DistrictID:     intOrZero(form.DistrictID),
		MunicipalityID: intOrZero(form.MunicipalityID),
		WardID:         wardID,
	})
	if err != nil {
		a.log.WarnContext(ctx, "create complaint failed", "citizen_id", session.ID, "error", err)
		a.renderFileComplaint(c, http.StatusBadGateway, form, nil, backendMessage(err, lang, "error_complaint_failed"))
		return
	}

	notice := fmt.Sprintf(text(lang, "citizen_complaint_filed"),
		created.ID,
		displayOrDash(string(created.Department), department),
		displayOrDash(string(created.Urgency), urgency.Label),
	)
	c.Redirect(http.StatusSeeOther, citizenDashboardPath+"?notice="+url.QueryEscape(notice))
}

func displayOrDash(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return "-"
}

func intOrZero(raw string) int {
	if id := optionalID(raw); id != nil {
		return *id
	}
	return 0
}

type chatbotRequest struct {
	Message   string         `json:"message"`
	SessionID string         `json:"session_id"`
	Context   map[string]any `json:"context"`
}

// chatbotMessageHandler forwards a chat turn. Anonymous visitors may chat; a
// signed-in citizen has their id attached.
func (a *App) chatbotMessageHandler(c *gin.Context) {
	var req chatbotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeAPIError(c, &apiError{Status: http.StatusBadRequest, Code: "invalid_request", Message: "Invalid JSON body"})
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		writeAPIError(c, &apiError{Status: http.StatusBadRequest, Code: "invalid_request", Message: "message is required"})
		return
	}
	if len([]rune(req.Message)) > maxChatMessageRunes {
		writeAPIError(c, &apiError{Status: http.StatusRequestEntityTooLarge, Code: "message_too_long", Message: "message is too long"})
		return
	}

	msg := grievanceapi.ChatMessage{Message: req.Message, SessionID: req.SessionID, Context: req.Context}
	if token, err := c.Cookie(citizenUserCookieName); err == nil {
		if session, verifyErr := a.verifyCitizenSessionToken(token); verifyErr == nil {
			id := session.ID
			msg.UserID = &id
		}
	}

	reply, err := a.api.ChatbotMessage(a.backendContext(c), msg)
	if err != nil {
		a.log.WarnContext(c.Request.Context(), "chatbot message failed", "error", err)
		writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

func (a *App) locationDistrictsHandler(c *gin.Context) {
	districts, err := a.locations.Districts(a.backendContext(c))
	if err != nil {
		writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, districts)
}

func (a *App) locationMunicipalitiesHandler(c *gin.Context) {
	districtID, ok := queryID(c, "district_id", false)
	if !ok {
		return
	}
	municipalities, err := a.locations.Municipalities(a.backendContext(c), districtID)
	if err != nil {
		writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, municipalities)
}

func (a *App) locationWardsHandler(c *gin.Context) {
	municipalityID, ok := queryID(c, "municipality_id", true)
	if !ok {
		return
	}
	wards, err := a.locations.Wards(a.backendContext(c), municipalityID)
	if err != nil {
		writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, wards)
}

// queryID reads a positive integer query parameter. An absent optional
// parameter yields 0.
func queryID(c *gin.Context, key string, required bool) (int, bool) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" && !required {
		return 0, true
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		writeAPIError(c, &apiError{Status: http.StatusBadRequest, Code: "invalid_" + key, Message: key + " must be a positive integer"})
		return 0, false
	}
	return id, true
}

// sanitizeCitizenRedirectTarget keeps redirects on this site and away from
// the JSON endpoints.
func sanitizeCitizenRedirectTarget(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return citizenDashboardPath
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.IsAbs() || parsed.Host != "" {
		return citizenDashboardPath
	}
	// Browsers read /\host as //host.
	if strings.Contains(trimmed, `\`) || strings.ContainsRune(parsed.Path, '\\') {
		return citizenDashboardPath
	}
	if !strings.HasPrefix(parsed.Path, "/") || strings.HasPrefix(parsed.Path, "//") {
		return citizenDashboardPath
	}
	if strings.HasPrefix(parsed.Path, "/api/") || strings.HasPrefix(parsed.Path, adminDashboardPath+"/api/") {
		return citizenDashboardPath
	}
	target := parsed.Path
	if parsed.RawQuery != "" {
		target += "?" + parsed.RawQuery
	}
	return target
}
