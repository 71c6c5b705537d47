package requestid

import (
	"regexp"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Header carries the correlation ID in both directions.
const Header = "X-Request-ID"

const contextKey = "brosis.request_id"

// Inbound IDs land in logs and audit rows.
var acceptable = regexp.MustCompile(`^[A-Za-z0-9._:-]{8,64}$`)

// Middleware tags every request with a correlation ID, reusing the caller's
// when it looks sane and minting a UUID otherwise.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := Normalize(c.GetHeader(Header))
		c.Set(contextKey, reqID)
		c.Writer.Header().Set(Header, reqID)
		c.Next()
	}
}

// Normalize returns candidate when it is an acceptable ID, or a fresh one.
func Normalize(candidate string) string {
	if acceptable.MatchString(candidate) {
		return candidate
	}
	return uuid.NewString()
}

// Value returns the request ID stored in the Gin context.
func Value(c *gin.Context) string {
	if v, exists := c.Get(contextKey); exists {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
