package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func router(origins []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(origins))
	r.GET("/export", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func do(r http.Handler, method, origin string, preflight bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/export", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if preflight {
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAllowListedOriginGetsCredentials(t *testing.T) {
	rec := do(router([]string{"https://Admin.example/"}), http.MethodGet, "https://admin.example", false)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://admin.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
}

func TestWildcardNeverSendsCredentials(t *testing.T) {
	rec := do(router(nil), http.MethodGet, "https://anywhere.example", false)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestPreflight(t *testing.T) {
	r := router([]string{"https://admin.example"})

	ok := do(r, http.MethodOptions, "https://admin.example", true)
	assert.Equal(t, http.StatusNoContent, ok.Code)
	assert.Contains(t, ok.Header().Get("Access-Control-Allow-Headers"), "X-Request-ID")

	denied := do(r, http.MethodOptions, "https://evil.example", true)
	assert.Equal(t, http.StatusForbidden, denied.Code)
	assert.Empty(t, denied.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnknownOriginStillReachesHandler(t *testing.T) {
	rec := do(router([]string{"https://admin.example"}), http.MethodGet, "https://evil.example", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
