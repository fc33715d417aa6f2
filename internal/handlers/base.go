package handlers

import (
	"feedlink/internal/middleware"

	"github.com/gin-gonic/gin"
)

// JSONError 统一的错误响应体
func JSONError(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"error": message})
}

// unreadCount 取出 LoadUser 填充的未读数，没有则为 0
func unreadCount(c *gin.Context) int64 {
	if count, ok := c.Get(middleware.UnreadCountKey); ok {
		return count.(int64)
	}
	return 0
}
