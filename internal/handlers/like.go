package handlers

import (
	"errors"
	"net/http"

	"feedlink/internal/middleware"
	"feedlink/internal/models"
	"feedlink/internal/services"

	"github.com/gin-gonic/gin"
)

type LikeHandler struct{}

func NewLikeHandler() *LikeHandler {
	return &LikeHandler{}
}

// Toggle 切换点赞。点赞成功且产生了新通知就推 notification:new，
// 取消点赞撤回了未读通知就推 notification:remove
func (h *LikeHandler) Toggle(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)
	pid := c.Param("pid")

	result, err := services.ToggleLike(pid, user)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPostNotFound):
			JSONError(c, http.StatusNotFound, "文章不存在")
		case errors.Is(err, services.ErrConflict):
			JSONError(c, http.StatusConflict, "操作冲突，请重试")
		default:
			JSONError(c, http.StatusInternalServerError, "点赞失败")
		}
		return
	}

	recipientID := result.Post.UserID
	actorID := user.ID
	postID := result.Post.ID
	notification := result.Notification
	retracted := result.Retracted
	go func() {
		hub := services.GetHub()
		if notification != nil {
			hub.Emit(recipientID, services.EventNotificationNew, services.NotificationPayload(notification))
		}
		if retracted {
			hub.Emit(recipientID, services.EventNotificationRemove, gin.H{
				"post_id":      postID,
				"from_user_id": actorID,
			})
		}
	}()

	c.JSON(http.StatusOK, gin.H{"liked": result.Liked})
}
