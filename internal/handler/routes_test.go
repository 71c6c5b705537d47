package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/brosis-admin-api/internal/middleware"
	"github.com/noah-isme/brosis-admin-api/internal/models"
	"github.com/noah-isme/brosis-admin-api/internal/service"
)

func buildRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	fakeAuth := func(c *gin.Context) {
		role := c.GetHeader("X-Test-Role")
		if role == "" {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "caller", Role: models.UserRole(role)})
		c.Next()
	}
	Register(router.Group("/api/v1"), Handlers{
		Auth:    NewAuthHandler(loginStub{}),
		Catalog: NewCatalogHandler(&catalogServiceStub{}),
		Student: NewStudentHandler(&studentImporterStub{}, &bulkStub{}, nil, 1<<20).WithRecords(&studentRecordsStub{}),
		User:    NewUserHandler(&userImporterStub{}, &bulkStub{}, exporterStub{}, 1<<20).WithAccounts(&userAccountsStub{}),
		Group:   NewGroupHandler(&groupServiceStub{}),
		Metrics: NewMetricsHandler(service.NewMetricsService(), nil),
	}, fakeAuth)
	return router
}

func performRequest(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRoutesEnforceAdminRole(t *testing.T) {
	router := buildRouter()

	t.Run("login is public", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"identifier":"an","password":"secret"}`))
		require.Equal(t, http.StatusOK, performRequest(router, req).Code)
	})

	t.Run("catalog needs a token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog", nil)
		require.Equal(t, http.StatusUnauthorized, performRequest(router, req).Code)
	})

	t.Run("brosis cannot bulk delete", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/users/bulk-delete", strings.NewReader(`{"mode":"all"}`))
		req.Header.Set("X-Test-Role", string(models.RoleBroSis))
		require.Equal(t, http.StatusForbidden, performRequest(router, req).Code)
	})

	t.Run("admin reaches bulk delete", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/users/bulk-delete", strings.NewReader(`{"mode":"all"}`))
		req.Header.Set("X-Test-Role", string(models.RoleAdmin))
		require.Equal(t, http.StatusOK, performRequest(router, req).Code)
	})

	t.Run("root reaches metrics summary", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics/summary", nil)
		req.Header.Set("X-Test-Role", string(models.RoleRoot))
		require.Equal(t, http.StatusOK, performRequest(router, req).Code)
	})
}

func TestRoutesForRecordManagement(t *testing.T) {
	router := buildRouter()
	cases := []struct {
		name   string
		method string
		path   string
		role   models.UserRole
		status int
	}{
		{"brosis exports their roster", http.MethodGet, "/api/v1/students/export-brosis-students?brosisId=caller", models.RoleBroSis, http.StatusOK},
		{"mentor cannot export rosters", http.MethodGet, "/api/v1/students/export-brosis-students?brosisId=b1", models.RoleMentor, http.StatusForbidden},
		{"brosis cannot list students", http.MethodGet, "/api/v1/students", models.RoleBroSis, http.StatusForbidden},
		{"admin lists students", http.MethodGet, "/api/v1/students", models.RoleAdmin, http.StatusOK},
		{"static ids route wins over id param", http.MethodGet, "/api/v1/students/ids", models.RoleAdmin, http.StatusOK},
		{"admin reads stats", http.MethodGet, "/api/v1/students/stats", models.RoleAdmin, http.StatusOK},
		{"admin toggles a student", http.MethodPatch, "/api/v1/students/s1/toggle-status", models.RoleAdmin, http.StatusOK},
		{"mentor cannot list users", http.MethodGet, "/api/v1/users", models.RoleMentor, http.StatusForbidden},
		{"admin reads a user", http.MethodGet, "/api/v1/users/u1", models.RoleAdmin, http.StatusOK},
		{"mentor lists groups", http.MethodGet, "/api/v1/groups", models.RoleMentor, http.StatusOK},
		{"mentor clears a leader", http.MethodDelete, "/api/v1/groups/g1/leader", models.RoleMentor, http.StatusOK},
		{"brosis cannot manage groups", http.MethodGet, "/api/v1/groups", models.RoleBroSis, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, nil)
			req.Header.Set("X-Test-Role", string(tc.role))
			require.Equal(t, tc.status, performRequest(router, req).Code)
		})
	}
}
