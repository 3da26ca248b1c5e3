package middleware

import (
	"github.com/gin-gonic/gin"
)

// Authentication is a placeholder global middleware. It currently allows all
// requests; deployments front the API with their own gateway auth.
func Authentication(c *gin.Context) {
	c.Next()
}
