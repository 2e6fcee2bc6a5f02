package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-student-records/internal/models"
	appErrors "github.com/noah-isme/sma-student-records/pkg/errors"
)

type stubValidator struct {
	claims *models.JWTClaims
	err    error
	seen   string
}

func (s *stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	s.seen = token
	return s.claims, s.err
}

type recordedRequest struct {
	method, path string
	status       int
}

type stubObserver struct {
	requests []recordedRequest
}

func (s *stubObserver) ObserveHTTPRequest(method, path string, status int, _ time.Duration) {
	s.requests = append(s.requests, recordedRequest{method: method, path: path, status: status})
}

type stubRevocations struct {
	signedOut map[string]time.Time
}

func (s stubRevocations) Revoked(userID string, issuedAt time.Time) bool {
	at, ok := s.signedOut[userID]
	return ok && !issuedAt.After(at)
}

func issuedAt(ts time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{IssuedAt: jwt.NewNumericDate(ts)}
}

func protectedRouter(v tokenValidator, roles ...models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/secure", JWT(v, nil), RequireRoles(roles...), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextUserIDKey))
	})
	return r
}

func get(r http.Handler, path, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTMissingHeader(t *testing.T) {
	w := get(protectedRouter(&stubValidator{}, PanelRoles...), "/secure", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
}

func TestJWTMalformedHeader(t *testing.T) {
	for _, header := range []string{"Token abc", "Bearer", "Bearer   "} {
		w := get(protectedRouter(&stubValidator{}, PanelRoles...), "/secure", header)
		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
	}
}

func TestJWTRejectedToken(t *testing.T) {
	v := &stubValidator{err: appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")}
	w := get(protectedRouter(v, PanelRoles...), "/secure", "Bearer bad")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "bad", v.seen)
}

func TestJWTAndRoleAccepted(t *testing.T) {
	v := &stubValidator{claims: &models.JWTClaims{UserID: "u1", Role: models.RoleStaff}}
	w := get(protectedRouter(v, PanelRoles...), "/secure", "bearer good")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", w.Body.String())
}

func TestJWTRefusesTokensIssuedBeforeSignOut(t *testing.T) {
	signedOut := time.Date(2024, 9, 2, 10, 0, 0, 0, time.UTC)
	revocations := stubRevocations{signedOut: map[string]time.Time{"u1": signedOut}}

	gin.SetMode(gin.TestMode)
	stale := &stubValidator{claims: &models.JWTClaims{UserID: "u1", Role: models.RoleStaff, RegisteredClaims: issuedAt(signedOut.Add(-time.Minute))}}
	r := gin.New()
	r.GET("/secure", JWT(stale, revocations), func(c *gin.Context) { c.Status(http.StatusOK) })
	w := get(r, "/secure", "Bearer old")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "session signed out")

	fresh := &stubValidator{claims: &models.JWTClaims{UserID: "u1", Role: models.RoleStaff, RegisteredClaims: issuedAt(signedOut.Add(time.Minute))}}
	r = gin.New()
	r.GET("/secure", JWT(fresh, revocations), func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusOK, get(r, "/secure", "Bearer new").Code)

	noIAT := &stubValidator{claims: &models.JWTClaims{UserID: "u1", Role: models.RoleStaff}}
	r = gin.New()
	r.GET("/secure", JWT(noIAT, revocations), func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusUnauthorized, get(r, "/secure", "Bearer bare").Code)
}

func TestOptionalJWT(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := func(c *gin.Context) {
		c.String(http.StatusOK, "user=%s", c.GetString(ContextUserIDKey))
	}
	signedOut := time.Date(2024, 9, 2, 10, 0, 0, 0, time.UTC)
	revocations := stubRevocations{signedOut: map[string]time.Time{"u2": signedOut}}

	valid := &stubValidator{claims: &models.JWTClaims{UserID: "u1", Role: models.RoleStaff}}
	r := gin.New()
	r.GET("/open", OptionalJWT(valid, revocations), handler)
	assert.Equal(t, "user=u1", get(r, "/open", "Bearer good").Body.String())
	assert.Equal(t, "user=", get(r, "/open", "").Body.String())

	rejected := &stubValidator{err: appErrors.ErrUnauthorized}
	r = gin.New()
	r.GET("/open", OptionalJWT(rejected, revocations), handler)
	w := get(r, "/open", "Bearer bad")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user=", w.Body.String())

	stale := &stubValidator{claims: &models.JWTClaims{UserID: "u2", Role: models.RoleStaff, RegisteredClaims: issuedAt(signedOut.Add(-time.Second))}}
	r = gin.New()
	r.GET("/open", OptionalJWT(stale, revocations), handler)
	assert.Equal(t, "user=", get(r, "/open", "Bearer old").Body.String())
}

func TestHasRole(t *testing.T) {
	assert.True(t, HasRole(&models.JWTClaims{Role: models.RoleAdmin}, PanelRoles...))
	assert.False(t, HasRole(&models.JWTClaims{Role: models.UserRole("PARENT")}, PanelRoles...))
	assert.False(t, HasRole(nil, PanelRoles...))
}

func TestRequireRolesForbidden(t *testing.T) {
	v := &stubValidator{claims: &models.JWTClaims{UserID: "u1", Role: models.RoleStaff}}
	w := get(protectedRouter(v, models.RoleAdmin), "/secure", "Bearer good")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireRolesWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/open", RequireRoles(PanelRoles...), func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusUnauthorized, get(r, "/open", "").Code)
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	obs := &stubObserver{}
	r := gin.New()
	r.Use(Metrics(obs))
	r.GET("/students/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	get(r, "/students/s-1", "")
	get(r, "/nope", "")

	require.Len(t, obs.requests, 2)
	assert.Equal(t, recordedRequest{method: http.MethodGet, path: "/students/:id", status: http.StatusOK}, obs.requests[0])
	assert.Equal(t, "unmatched", obs.requests[1].path)
	assert.Equal(t, http.StatusNotFound, obs.requests[1].status)
}

func TestMetricsNilObserver(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics(nil))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusOK, get(r, "/ping", "").Code)
}

