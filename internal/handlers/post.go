package handlers

import (
	"net/http"

	"feedlink/internal/db"
	"feedlink/internal/middleware"
	"feedlink/internal/models"
	"feedlink/internal/services"
	"feedlink/internal/utils"

	"github.com/gin-gonic/gin"
)

type PostHandler struct{}

func NewPostHandler() *PostHandler {
	return &PostHandler{}
}

type createPostRequest struct {
	Title   string `json:"title" binding:"required"`
	Content string `json:"content"`
}

// Create 只是给评论图一个锚点，帖子内容本身的增改由外部服务负责
func (h *PostHandler) Create(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)

	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		JSONError(c, http.StatusBadRequest, "标题不能为空")
		return
	}

	post := models.Post{
		Pid:     utils.RandStringBytesMaskImpr(8),
		UserID:  user.ID,
		Title:   req.Title,
		Content: req.Content,
	}
	if err := db.DB.Create(&post).Error; err != nil {
		JSONError(c, http.StatusInternalServerError, "发布失败")
		return
	}

	c.JSON(http.StatusCreated, post)
}

// Delete 删除帖子并级联删除评论/点赞/通知。重复删除是幂等空操作
func (h *PostHandler) Delete(c *gin.Context) {
	user := c.MustGet(middleware.CheckUserKey).(*models.User)
	pid := c.Param("pid")

	var post models.Post
	if err := db.DB.Where("pid = ?", pid).First(&post).Error; err != nil {
		// 帖子已经不在了，级联无事可做
		c.JSON(http.StatusOK, gin.H{"deleted_comment_ids": []uint{}})
		return
	}

	if post.UserID != user.ID {
		JSONError(c, http.StatusForbidden, "无权删除此文章")
		return
	}

	deletedIDs, err := services.DeletePostCascade(pid)
	if err != nil {
		JSONError(c, http.StatusInternalServerError, "删除失败")
		return
	}
	if deletedIDs == nil {
		deletedIDs = []uint{}
	}

	utils.GetCache().Delete(commentsCacheKey(pid))

	c.JSON(http.StatusOK, gin.H{"deleted_comment_ids": deletedIDs})
}
