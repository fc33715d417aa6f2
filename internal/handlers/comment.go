package handlers

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"feedlink/internal/middleware"
	"feedlink/internal/models"
	"feedlink/internal/services"
	"feedlink/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

type CommentHandler struct{}

func NewCommentHandler() *CommentHandler {
	return &CommentHandler{}
}

type createCommentRequest struct {
	Content  string `json:"content" binding:"required"`
	ParentID *uint  `json:"parent_id"`
}

func commentsCacheKey(pid string) string {
	return fmt.Sprintf("comments:post:%s", pid)
}

func (h *CommentHandler) Create(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)
	pid := c.Param("pid")

	var req createCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		JSONError(c, http.StatusBadRequest, "内容不能为空")
		return
	}

	result, err := services.CreateComment(pid, user, req.Content, req.ParentID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPostNotFound):
			JSONError(c, http.StatusNotFound, "文章不存在")
		case errors.Is(err, services.ErrInvalidParent):
			JSONError(c, http.StatusBadRequest, "被回复的评论不存在或不在本文下")
		case errors.Is(err, services.ErrConflict):
			JSONError(c, http.StatusConflict, "操作冲突，请重试")
		default:
			JSONError(c, http.StatusInternalServerError, "评论失败")
		}
		return
	}

	// 主动失效评论列表缓存
	utils.GetCache().Delete(commentsCacheKey(pid))

	// 实时推送（尽力而为，失败只影响在线提醒，不影响落库结果）
	if result.Notification != nil {
		notification := result.Notification
		comment := result.Comment
		recipientID := *notification.UserID
		go func() {
			hub := services.GetHub()
			hub.Emit(recipientID, services.EventNotificationNew, services.NotificationPayload(notification))
			hub.Emit(recipientID, services.EventCommentNew, gin.H{
				"post_id": comment.PostID,
				"comment": comment,
			})
		}()
	}

	c.JSON(http.StatusCreated, result.Comment)
}

type commentView struct {
	models.Comment
	ContentHTML template.HTML `json:"content_html"`
	Floor       int           `json:"floor"`
}

func (h *CommentHandler) List(c *gin.Context) {
	pid := c.Param("pid")

	cacheKey := commentsCacheKey(pid)
	if cached := utils.GetCache().Get(cacheKey); cached != nil {
		if data, ok := cached.(gin.H); ok {
			c.JSON(http.StatusOK, data)
			return
		}
	}

	comments, err := services.ListComments(pid)
	if err != nil {
		if errors.Is(err, services.ErrPostNotFound) {
			JSONError(c, http.StatusNotFound, "文章不存在")
			return
		}
		JSONError(c, http.StatusInternalServerError, "加载评论失败")
		return
	}

	views := lo.Map(comments, func(com models.Comment, i int) commentView {
		return commentView{
			Comment:     com,
			ContentHTML: utils.RenderMarkdown(com.Content),
			Floor:       i + 1,
		}
	})

	data := gin.H{"comments": views}
	// 写入缓存，有效期 1 分钟
	utils.GetCache().Set(cacheKey, data, 1*time.Minute)

	c.JSON(http.StatusOK, data)
}
