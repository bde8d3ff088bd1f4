package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"sambodhan/libs/grievanceapi"

	"github.com/gin-gonic/gin"
)

const (
	adminLoginPath     = "/admin-login"
	adminDashboardPath = "/admin-dashboard"
)

func (a *App) registerAdminRoutes(r *gin.Engine) {
	staticFS, err := staticFileSystem(a.cfg.Env)
	if err != nil {
		panic(err)
	}
	r.StaticFS("/static", staticFS)

	r.GET(adminLoginPath, a.adminLoginPageHandler)
	r.POST(adminLoginPath, a.adminLoginSubmitHandler)
	r.POST("/admin-logout", a.adminLogoutSubmitHandler)
	r.POST("/language", a.languageSubmitHandler)

	r.GET(adminDashboardPath, a.adminDashboardPageHandler)

	api := r.Group(adminDashboardPath + "/api")
	api.Use(a.requireAdminSessionJSON())
	{
		api.GET("/:widget", a.adminWidgetAPIHandler)
	}

	admin := r.Group(adminDashboardPath)
	admin.Use(a.requireAdminSessionHTML())
	{
		admin.GET("/complaints", a.adminComplaintsPageHandler)
		admin.POST("/complaints/:id/status", a.adminComplaintStatusSubmitHandler)

		admin.GET("/misclassifications", a.adminMisclassificationsPageHandler)
		admin.POST("/misclassifications", a.adminMisclassificationSubmitHandler)
		admin.POST("/misclassifications/:id/delete", a.adminMisclassificationDeleteHandler)

		admin.GET("/team", a.requireAdminRoles(grievanceapi.RoleSuperAdmin, grievanceapi.RoleMunicipalAdmin), a.adminTeamPageHandler)
		admin.GET("/register", a.requireAdminRoles(grievanceapi.RoleSuperAdmin, grievanceapi.RoleMunicipalAdmin), a.adminRegisterPageHandler)
		admin.POST("/register", a.requireAdminRoles(grievanceapi.RoleSuperAdmin, grievanceapi.RoleMunicipalAdmin), a.adminRegisterSubmitHandler)

		admin.GET("/activity", a.adminActivityPageHandler)

		admin.GET("/export.csv", a.adminExportCSVHandler)
		admin.GET("/export.pdf", a.adminExportPDFHandler)
		admin.POST("/export/email", a.adminExportEmailHandler)
	}
}

func (a *App) adminLoginPageHandler(c *gin.Context) {
	if token, err := c.Cookie(adminUserCookieName); err == nil {
		if _, verifyErr := a.verifyAdminSessionToken(token); verifyErr == nil {
			c.Redirect(http.StatusSeeOther, adminDashboardPath)
			return
		}
	}

	data := adminLoginViewData{
		adminBaseViewData: a.adminBaseData(c, "page_title_login", ""),
		Next:              sanitizeAdminRedirectTarget(c.Query("next")),
	}
	a.renderAdminTemplate(c, http.StatusOK, adminTemplateLoginPath, data)
}

func (a *App) adminLoginSubmitHandler(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))
	password := c.PostForm("password")
	next := sanitizeAdminRedirectTarget(c.PostForm("next"))
	lang := a.languageFromRequest(c)

	renderError := func(status int, message string) {
		base := a.adminBaseData(c, "page_title_login", "")
		base.ErrorMessage = message
		a.renderAdminTemplate(c, status, adminTemplateLoginPath, adminLoginViewData{
			adminBaseViewData: base,
			Email:             email,
			Next:              next,
		})
	}

	if email == "" || password == "" {
		renderError(http.StatusBadRequest, text(lang, "error_invalid_credentials"))
		return
	}

	login, err := a.api.LoginAdmin(a.backendContext(c), email, password)
	if err != nil {
		if grievanceapi.IsUnauthorized(err) {
			renderError(http.StatusUnauthorized, text(lang, "error_invalid_credentials"))
			return
		}
		a.log.WarnContext(c.Request.Context(), "admin login failed", "error", err)
		renderError(http.StatusBadGateway, backendMessage(err, lang, "error_login_failed"))
		return
	}
	if !login.Admin.Role.IsAdmin() {
		renderError(http.StatusForbidden, text(lang, "error_not_admin"))
		return
	}

	admin := login.Admin
	a.enrichAdmin(c, &admin)
	if err := a.startAdminSession(c, &admin, login.AccessToken); err != nil {
		writeAPIError(c, err)
		return
	}

	if next != adminDashboardPath {
		c.Redirect(http.StatusSeeOther, next)
		return
	}
	c.Redirect(http.StatusSeeOther, adminDashboardURL(&admin))
}

func (a *App) adminLogoutSubmitHandler(c *gin.Context) {
	a.clearAdminSession(c)
	c.Redirect(http.StatusSeeOther, adminLoginPath)
}

func (a *App) languageSubmitHandler(c *gin.Context) {
	a.setLanguageCookie(c, c.PostForm("language"))
	next := strings.TrimSpace(c.PostForm("next"))
	if strings.HasPrefix(next, adminDashboardPath) {
		c.Redirect(http.StatusSeeOther, sanitizeAdminRedirectTarget(next))
		return
	}
	c.Redirect(http.StatusSeeOther, sanitizeCitizenRedirectTarget(next))
}

// adminDashboardPageHandler resolves the admin from user_id or the session
// cookie before any aggregate is requested.
func (a *App) adminDashboardPageHandler(c *gin.Context) {
	res := a.resolveAdminSession(c)
	if res.Redirect != "" {
		c.Redirect(http.StatusSeeOther, res.Redirect)
		return
	}

	d, err := a.loadDashboard(a.backendContext(c), res.Admin)
	if err != nil {
		writeAPIError(c, err)
		return
	}

	base := a.adminBaseData(c, "page_title_dashboard", "dashboard")
	a.renderAdminTemplate(c, http.StatusOK, adminTemplateDashboard, buildDashboardView(base, d))
}

func (a *App) adminWidgetAPIHandler(c *gin.Context) {
	name := c.Param("widget")
	fetch, ok := dashboardWidgets[name]
	if !ok {
		writeAPIError(c, errUnknownWidget(name))
		return
	}
	admin, err := getAdminSession(c)
	if err != nil {
		writeAPIError(c, &apiError{Status: http.StatusUnauthorized, Code: "unauthorized", Message: "Admin session required"})
		return
	}
	scope, err := scopeParams(&admin)
	if err != nil {
		writeAPIError(c, &apiError{Status: http.StatusForbidden, Code: "forbidden", Message: err.Error()})
		return
	}

	value, err := fetch(a.backendContext(c), a.api, scope)
	if err != nil {
		if a.metrics != nil {
			a.metrics.aggregateFailures.WithLabelValues(name).Inc()
		}
		writeAPIError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"widget": name, "data": value})
}

func (a *App) adminBaseData(c *gin.Context, titleKey, activeNav string) adminBaseViewData {
	lang := a.languageFromRequest(c)
	var session *grievanceapi.Admin
	if admin, err := getAdminSession(c); err == nil {
		session = &admin
	}

	base := adminBaseViewData{
		Title:         text(lang, titleKey),
		Lang:          lang,
		Text:          texts(lang),
		Session:       session,
		CurrentPath:   sanitizeAdminRedirectTarget(c.Request.URL.RequestURI()),
		ActiveNav:     activeNav,
		ErrorMessage:  strings.TrimSpace(c.Query("error")),
		NoticeMessage: strings.TrimSpace(c.Query("notice")),
	}
	if session != nil {
		base.RoleLabel = roleLabel(lang, session.Role)
		base.ShowTeam = canManageTeam(session.Role)
		base.ShowRegister = canManageTeam(session.Role)
	}
	return base
}

func canManageTeam(role grievanceapi.Role) bool {
	switch role {
	case grievanceapi.RoleSuperAdmin, grievanceapi.RoleMunicipalAdmin:
		return true
	case grievanceapi.RoleDepartmentAdmin, grievanceapi.RoleWardAdmin, grievanceapi.RoleCitizen:
		return false
	default:
		return false
	}
}

func adminDashboardURL(admin *grievanceapi.Admin) string {
	query := url.Values{}
	query.Set("role", string(admin.Role))
	query.Set("user_id", strconv.Itoa(admin.ID))
	return adminDashboardPath + "?" + query.Encode()
}

func (a *App) setLanguageCookie(c *gin.Context, language string) {
	c.SetCookie(languageCookieName, normalizeLanguage(language), int(languageCookieMaxAge.Seconds()), "/", "", a.secureCookies(), true)
}

func (a *App) languageFromRequest(c *gin.Context) string {
	cookieValue, err := c.Cookie(languageCookieName)
	if err != nil {
		return defaultLanguage
	}
	return normalizeLanguage(cookieValue)
}

func normalizeLanguage(language string) string {
	switch strings.ToLower(strings.TrimSpace(language)) {
	case "ne", "np":
		return "ne"
	default:
		return defaultLanguage
	}
}

func texts(lang string) map[string]string {
	if t, ok := translations[normalizeLanguage(lang)]; ok {
		return t
	}
	return translations[defaultLanguage]
}

func text(lang, key string) string {
	if value, ok := texts(lang)[key]; ok {
		return value
	}
	if value, ok := translations[defaultLanguage][key]; ok {
		return value
	}
	return key
}

func roleLabel(lang string, role grievanceapi.Role) string {
	return text(lang, "role_"+string(role))
}

func formatTimestamp(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed.In(displayLocation()).Format(displayTimestampLayout)
		}
	}
	return raw
}

func displayLocation() *time.Location {
	displayTimeZoneOnce.Do(func() {
		location, err := time.LoadLocation("Asia/Kathmandu")
		if err != nil {
			displayTimeZone = time.FixedZone("NPT", 5*3600+45*60)
			return
		}
		displayTimeZone = location
	})
	return displayTimeZone
}

func sanitizeAdminRedirectTarget(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return adminDashboardPath
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return adminDashboardPath
	}
	if parsed.IsAbs() || parsed.Host != "" {
		return adminDashboardPath
	}
	if strings.HasPrefix(parsed.Path, "//") || strings.Contains(trimmed, `\`) || strings.ContainsRune(parsed.Path, '\\') {
		return adminDashboardPath
	}
	if parsed.Path != adminDashboardPath && !strings.HasPrefix(parsed.Path, adminDashboardPath+"/") {
		return adminDashboardPath
	}
	if strings.HasPrefix(parsed.Path, adminDashboardPath+"/api/") {
		return adminDashboardPath
	}

	target := parsed.Path
	if parsed.RawQuery != "" {
		target += "?" + parsed.RawQuery
	}
	return target
}

func redirectAdminWithMessage(c *gin.Context, target, key, value string) {
	parsed, err := url.Parse(sanitizeAdminRedirectTarget(target))
	if err != nil {
		c.Redirect(http.StatusSeeOther, adminDashboardPath)
		return
	}
	query := parsed.Query()
	query.Del("error")
	query.Del("notice")
	query.Set(key, value)
	parsed.RawQuery = query.Encode()

	c.Redirect(http.StatusSeeOther, parsed.Path+"?"+parsed.RawQuery)
}

// backendMessage prefers the backend detail over the translated fallback.
func backendMessage(err error, lang, fallbackKey string) string {
	if detail := strings.TrimSpace(grievanceapi.DetailOf(err)); detail != "" {
		return detail
	}
	var apiErr *apiError
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		return apiErr.Message
	}
	return text(lang, fallbackKey)
}

func parsePathID(c *gin.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", c.Param("id"))
	}
	return id, nil
}
