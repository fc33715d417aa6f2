package handlers

import (
	"net/http"

	"feedlink/internal/middleware"
	"feedlink/internal/models"
	"feedlink/internal/services"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct{}

func NewNotificationHandler() *NotificationHandler {
	return &NotificationHandler{}
}

func (h *NotificationHandler) List(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)

	notifications, err := services.ListNotificationsForUser(user.ID)
	if err != nil {
		JSONError(c, http.StatusInternalServerError, "加载通知失败")
		return
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"unread_count":  unreadCount(c),
	})
}

func (h *NotificationHandler) ReadAll(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)

	updated, err := services.MarkAllRead(user.ID)
	if err != nil {
		JSONError(c, http.StatusInternalServerError, "标记失败")
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated_count": updated})
}
