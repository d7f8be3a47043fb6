package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"flashsale/pkg/log"
	"flashsale/pkg/utils"
)

// Recovery converts panics into 500 responses
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.WithFields(map[string]interface{}{
					"panic": r,
					"path":  c.Request.URL.Path,
				}).Error("panic recovered")
				utils.ErrorResponse(c, http.StatusInternalServerError, "internal server error")
				c.Abort()
			}
		}()
		c.Next()
	}
}
