package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zeref/currency-converter/pkg/common"
)

// APIKeyHeader is the header carrying the client key.
const APIKeyHeader = "X-API-KEY"

// openPaths are reachable without a key.
var openPaths = map[string]struct{}{
	"/healthz": {},
	"/metrics": {},
}

// APIKeyAuth rejects requests whose X-API-KEY header does not match the
// configured key. Health and metrics endpoints stay open. An empty
// configured key disables the check entirely.
func APIKeyAuth(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if apiKey == "" {
			c.Next()
			return
		}

		if _, open := openPaths[c.Request.URL.Path]; open {
			c.Next()
			return
		}

		provided := c.GetHeader(APIKeyHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
			common.ErrorResponse(c, http.StatusUnauthorized, "invalid or missing API key")
			c.Abort()
			return
		}

		c.Next()
	}
}
