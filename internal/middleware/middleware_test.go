package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/brosis-admin-api/internal/models"
	"github.com/noah-isme/brosis-admin-api/internal/service"
	appErrors "github.com/noah-isme/brosis-admin-api/pkg/errors"
)

type validatorStub struct {
	claims *models.JWTClaims
}

func (v validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Wrap(errors.New("bad signature"), appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}
	return v.claims, nil
}

func newRouter(role models.UserRole, metrics *service.MetricsService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics(metrics))
	guarded := r.Group("/", JWT(validatorStub{claims: &models.JWTClaims{UserID: "u1", Role: role}}), RequireRoles(models.RoleAdmin))
	guarded.GET("/users", func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			c.Status(http.StatusTeapot)
			return
		}
		c.String(http.StatusOK, claims.UserID)
	})
	return r
}

func serve(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestJWTRejectsMissingOrBadTokens(t *testing.T) {
	r := newRouter(models.RoleAdmin, nil)

	assert.Equal(t, http.StatusUnauthorized, serve(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "Token good").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "Bearer bad").Code)

	rec := serve(r, "Bearer good")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", rec.Body.String())
}

func TestRequireRolesAdmitsRootAndListedRoles(t *testing.T) {
	assert.Equal(t, http.StatusOK, serve(newRouter(models.RoleRoot, nil), "Bearer good").Code)
	assert.Equal(t, http.StatusOK, serve(newRouter(models.RoleAdmin, nil), "Bearer good").Code)
	assert.Equal(t, http.StatusForbidden, serve(newRouter(models.RoleBroSis, nil), "Bearer good").Code)
}

func TestMetricsCountsRequests(t *testing.T) {
	metrics := service.NewMetricsService()
	r := newRouter(models.RoleAdmin, metrics)

	serve(r, "Bearer good")
	serve(r, "")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(3), snapshot.RequestsTotal)
	assert.True(t, snapshot.GeneratedAt.Before(time.Now().Add(time.Second)))
}
