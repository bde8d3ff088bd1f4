package main

import (
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"sambodhan/libs/grievanceapi"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	adminSessionKey   = "adminSession"
	citizenSessionKey = "citizenSession"
)

// citizenSession is the cached citizen identity.
type citizenSession struct {
	ID    int
	Name  string
	Email string
}

func (a *App) signClaims(claims jwt.MapClaims, ttl time.Duration) (string, error) {
	now := a.clock()
	claims["iat"] = now.Unix()
	claims["exp"] = now.Add(ttl).Unix()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.cfg.AppSigningSecret))
}

func (a *App) parseClaims(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(a.cfg.AppSigningSecret), nil
	}, jwt.WithTimeFunc(a.clock))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid session token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

func (a *App) createAdminSessionToken(admin *grievanceapi.Admin) (string, error) {
	claims := jwt.MapClaims{
		"id":   admin.ID,
		"role": string(admin.Role),
		"name": admin.Name,
	}
	if admin.Email != "" {
		claims["email"] = admin.Email
	}
	if admin.Department != nil {
		claims["department"] = *admin.Department
	}
	if admin.MunicipalityID != nil {
		claims["municipality_id"] = *admin.MunicipalityID
	}
	if admin.WardID != nil {
		claims["ward_id"] = *admin.WardID
	}
	if admin.DistrictID != nil {
		claims["district_id"] = *admin.DistrictID
	}
	if admin.MunicipalityName != "" {
		claims["municipality_name"] = admin.MunicipalityName
	}
	if admin.DistrictName != "" {
		claims["district_name"] = admin.DistrictName
	}
	return a.signClaims(claims, adminSessionDuration)
}

func (a *App) verifyAdminSessionToken(tokenString string) (*grievanceapi.Admin, error) {
	claims, err := a.parseClaims(tokenString)
	if err != nil {
		return nil, err
	}
	id, err := intClaim(claims, "id")
	if err != nil {
		return nil, err
	}
	rawRole, _ := claims["role"].(string)
	role, err := grievanceapi.ParseRole(rawRole)
	if err != nil || !role.IsAdmin() {
		return nil, fmt.Errorf("invalid session payload")
	}

	admin := &grievanceapi.Admin{ID: id, Role: role}
	admin.Name, _ = claims["name"].(string)
	admin.Email, _ = claims["email"].(string)
	admin.MunicipalityName, _ = claims["municipality_name"].(string)
	admin.DistrictName, _ = claims["district_name"].(string)
	if department, ok := claims["department"].(string); ok && department != "" {
		admin.Department = &department
	}
	admin.MunicipalityID = optionalIntClaim(claims, "municipality_id")
	admin.WardID = optionalIntClaim(claims, "ward_id")
	admin.DistrictID = optionalIntClaim(claims, "district_id")
	return admin, nil
}

func intClaim(claims jwt.MapClaims, key string) (int, error) {
	switch val := claims[key].(type) {
	case float64:
		if val <= 0 || val != math.Trunc(val) {
			return 0, fmt.Errorf("invalid %s claim", key)
		}
		return int(val), nil
	case string:
		id, err := strconv.Atoi(val)
		if err != nil || id <= 0 {
			return 0, fmt.Errorf("invalid %s claim", key)
		}
		return id, nil
	default:
		return 0, fmt.Errorf("invalid %s claim", key)
	}
}

func optionalIntClaim(claims jwt.MapClaims, key string) *int {
	if _, ok := claims[key]; !ok {
		return nil
	}
	value, err := intClaim(claims, key)
	if err != nil {
		return nil
	}
	return &value
}

// startAdminSession writes the signed admin cookie. The bearer token cookie is
// written alongside when token is non-empty.
func (a *App) startAdminSession(c *gin.Context, admin *grievanceapi.Admin, token string) error {
	signed, err := a.createAdminSessionToken(admin)
	if err != nil {
		return &apiError{Status: http.StatusInternalServerError, Code: "session_error", Message: "Could not create session"}
	}
	maxAge := int(adminSessionDuration.Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(adminUserCookieName, signed, maxAge, "/", "", a.secureCookies(), true)
	if token != "" {
		c.SetCookie(adminTokenCookieName, token, maxAge, "/", "", a.secureCookies(), true)
	}
	c.Set(adminSessionKey, *admin)
	return nil
}

func (a *App) clearAdminSession(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(adminUserCookieName, "", -1, "/", "", a.secureCookies(), true)
	c.SetCookie(adminTokenCookieName, "", -1, "/", "", a.secureCookies(), true)
}

func getAdminSession(c *gin.Context) (grievanceapi.Admin, error) {
	value, ok := c.Get(adminSessionKey)
	if !ok {
		return grievanceapi.Admin{}, fmt.Errorf("missing session")
	}
	admin, ok := value.(grievanceapi.Admin)
	if !ok {
		return grievanceapi.Admin{}, fmt.Errorf("invalid session")
	}
	return admin, nil
}

func redirectToAdminLogin(c *gin.Context) {
	next := sanitizeAdminRedirectTarget(c.Request.URL.RequestURI())
	c.Redirect(http.StatusSeeOther, adminLoginPath+"?next="+url.QueryEscape(next))
	c.Abort()
}

// requireAdminSessionHTML guards admin pages other than the dashboard entry.
func (a *App) requireAdminSessionHTML() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(adminUserCookieName)
		if err != nil {
			redirectToAdminLogin(c)
			return
		}
		admin, err := a.verifyAdminSessionToken(token)
		if err != nil {
			a.clearAdminSession(c)
			redirectToAdminLogin(c)
			return
		}
		c.Set(adminSessionKey, *admin)
		c.Next()
	}
}

// requireAdminSessionJSON is the widget API variant of requireAdminSessionHTML.
func (a *App) requireAdminSessionJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(adminUserCookieName)
		if err == nil {
			if admin, verifyErr := a.verifyAdminSessionToken(token); verifyErr == nil {
				c.Set(adminSessionKey, *admin)
				c.Next()
				return
			}
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "Admin session required"})
		c.Abort()
	}
}

func (a *App) requireAdminRoles(roles ...grievanceapi.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		admin, err := getAdminSession(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "Admin session required"})
			c.Abort()
			return
		}
		for _, role := range roles {
			if admin.Role == role {
				c.Next()
				return
			}
		}
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "Insufficient role"})
		c.Abort()
	}
}

// resolution is the outcome of resolving the dashboard identity: either an
// admin to render for, or a location to redirect to.
type resolution struct {
	Admin    *grievanceapi.Admin
	Redirect string
}

// resolveAdminSession derives the dashboard user from the user_id query
// parameter or the session cookie.
//
// A user_id is looked up on the backend and refreshes the cookie. A cookie
// alone redirects once to the same URL with role and user_id added, so the
// target always carries user_id and cannot loop. Anything else goes to the
// login page.
func (a *App) resolveAdminSession(c *gin.Context) resolution {
	ctx := a.backendContext(c)

	if rawID := c.Query("user_id"); rawID != "" {
		id, err := strconv.Atoi(rawID)
		if err != nil || id <= 0 {
			a.clearAdminSession(c)
			return resolution{Redirect: adminLoginPath}
		}
		admin, err := a.api.GetAdmin(ctx, id)
		if err != nil || !admin.Role.IsAdmin() {
			if err != nil {
				a.log.WarnContext(ctx, "admin lookup failed", "user_id", id, "error", err)
			}
			a.clearAdminSession(c)
			return resolution{Redirect: adminLoginPath}
		}
		a.enrichAdmin(c, admin)
		if err := a.startAdminSession(c, admin, ""); err != nil {
			a.clearAdminSession(c)
			return resolution{Redirect: adminLoginPath}
		}
		return resolution{Admin: admin}
	}

	cookie, err := c.Cookie(adminUserCookieName)
	if err != nil || cookie == "" {
		return resolution{Redirect: adminLoginPath}
	}
	admin, err := a.verifyAdminSessionToken(cookie)
	if err != nil {
		a.clearAdminSession(c)
		return resolution{Redirect: adminLoginPath}
	}
	if a.enrichAdmin(c, admin) {
		_ = a.startAdminSession(c, admin, "")
	}

	query := c.Request.URL.Query()
	query.Set("role", string(admin.Role))
	query.Set("user_id", strconv.Itoa(admin.ID))
	return resolution{Redirect: c.Request.URL.Path + "?" + query.Encode()}
}

// enrichAdmin merges missing location names into admin. Failures are logged
// and otherwise ignored.
func (a *App) enrichAdmin(c *gin.Context, admin *grievanceapi.Admin) bool {
	if a.locations == nil || !needsEnrichment(admin) {
		return false
	}
	changed, err := a.locations.enrichAdmin(a.backendContext(c), admin)
	if err != nil {
		a.log.WarnContext(c.Request.Context(), "admin enrichment failed", "admin_id", admin.ID, "error", err)
	}
	return changed
}

func (a *App) createCitizenSessionToken(session citizenSession) (string, error) {
	return a.signClaims(jwt.MapClaims{
		"id":    session.ID,
		"name":  session.Name,
		"email": session.Email,
	}, citizenSessionDuration)
}

func (a *App) verifyCitizenSessionToken(tokenString string) (*citizenSession, error) {
	claims, err := a.parseClaims(tokenString)
	if err != nil {
		return nil, err
	}
	id, err := intClaim(claims, "id")
	if err != nil {
		return nil, err
	}
	session := &citizenSession{ID: id}
	session.Name, _ = claims["name"].(string)
	session.Email, _ = claims["email"].(string)
	return session, nil
}

func (a *App) startCitizenSession(c *gin.Context, citizen *grievanceapi.Citizen, token string) error {
	signed, err := a.createCitizenSessionToken(citizenSession{ID: citizen.ID, Name: citizen.Name, Email: citizen.Email})
	if err != nil {
		return &apiError{Status: http.StatusInternalServerError, Code: "session_error", Message: "Could not create session"}
	}
	maxAge := int(citizenSessionDuration.Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(citizenUserCookieName, signed, maxAge, "/", "", a.secureCookies(), true)
	c.SetCookie(adminTokenCookieName, token, maxAge, "/", "", a.secureCookies(), true)
	return nil
}

func (a *App) clearCitizenSession(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(citizenUserCookieName, "", -1, "/", "", a.secureCookies(), true)
	c.SetCookie(adminTokenCookieName, "", -1, "/", "", a.secureCookies(), true)
}

func (a *App) requireCitizenSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(citizenUserCookieName)
		if err == nil {
			if session, verifyErr := a.verifyCitizenSessionToken(token); verifyErr == nil {
				c.Set(citizenSessionKey, *session)
				c.Next()
				return
			}
		}
		a.clearCitizenSession(c)
		c.Redirect(http.StatusSeeOther, citizenLoginPath+"?next="+url.QueryEscape(sanitizeCitizenRedirectTarget(c.Request.URL.RequestURI())))
		c.Abort()
	}
}

func (a *App) requireCitizenSessionJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(citizenUserCookieName)
		if err == nil {
			if session, verifyErr := a.verifyCitizenSessionToken(token); verifyErr == nil {
				c.Set(citizenSessionKey, *session)
				c.Next()
				return
			}
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": "Citizen session required"})
		c.Abort()
	}
}

func getCitizenSession(c *gin.Context) (citizenSession, error) {
	value, ok := c.Get(citizenSessionKey)
	if !ok {
		return citizenSession{}, fmt.Errorf("missing citizen session")
	}
	session, ok := value.(citizenSession)
	if !ok {
		return citizenSession{}, fmt.Errorf("invalid citizen session")
	}
	return session, nil
}
