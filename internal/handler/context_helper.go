package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-planner-api/internal/middleware"
)

func userIDFromContext(c *gin.Context) string {
	return middleware.UserID(c)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
