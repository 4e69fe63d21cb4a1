package requestid

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func serve(header string) (string, string) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	var fromCtx string
	r.GET("/", func(c *gin.Context) {
		fromCtx = FromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(headerKey, header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Header().Get(headerKey), fromCtx
}

func TestMiddlewareReusesHeader(t *testing.T) {
	header, ctxID := serve("abc-123")
	assert.Equal(t, "abc-123", header)
	assert.Equal(t, "abc-123", ctxID)
}

func TestMiddlewareGeneratesID(t *testing.T) {
	header, ctxID := serve("")
	assert.Len(t, header, 36)
	assert.Equal(t, header, ctxID)

	header, _ = serve(strings.Repeat("x", 100))
	assert.Len(t, header, 36)
}
