package services

import (
	"errors"
	"fmt"

	"feedlink/internal/db"
	"feedlink/internal/models"

	"gorm.io/gorm"
)

// LikeResult 是一次点赞切换的落库结果，实时推送由调用方在提交后处理
type LikeResult struct {
	Liked        bool
	Post         models.Post
	Notification *models.Notification // 点赞时新建的通知，去重命中或自赞时为 nil
	Retracted    bool                 // 取消点赞时撤回了一条未读通知
}

// ToggleLike 切换点赞状态。点赞通知按 (type, actor, post) 去重：
// 同一个人对同一帖子任何时刻至多一条有效通知，检查和插入在同一事务内。
// 取消点赞只撤回未读通知，已读的留作历史
func ToggleLike(pid string, actor *models.User) (*LikeResult, error) {
	result := &LikeResult{}

	err := db.DB.Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Where("pid = ?", pid).First(&post).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPostNotFound
			}
			return err
		}
		result.Post = post

		var existing models.Like
		err := tx.Where("user_id = ? AND post_id = ?", actor.ID, post.ID).First(&existing).Error
		if err == nil {
			// 已点赞 → 取消，并撤回还未读的点赞通知
			if err := tx.Delete(&existing).Error; err != nil {
				return err
			}
			retract := tx.Where("type = ? AND actor_id = ? AND post_id = ? AND is_read = ?",
				models.NotificationTypeLike, actor.ID, post.ID, false).
				Delete(&models.Notification{})
			if retract.Error != nil {
				return retract.Error
			}
			result.Retracted = retract.RowsAffected > 0
			result.Liked = false
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if err := tx.Create(&models.Like{UserID: actor.ID, PostID: post.ID}).Error; err != nil {
			return err
		}
		result.Liked = true

		// 自己赞自己不通知
		if post.UserID == actor.ID {
			return nil
		}

		// 去重：已有同键通知（无论已读与否）就不再插入，
		// 赞→取消→再赞不会叠出第二条
		var active int64
		if err := tx.Model(&models.Notification{}).
			Where("type = ? AND actor_id = ? AND post_id = ?",
				models.NotificationTypeLike, actor.ID, post.ID).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return nil
		}

		notification := models.Notification{
			UserID:  &post.UserID,
			ActorID: &actor.ID,
			Type:    models.NotificationTypeLike,
			PostID:  post.ID,
			Message: fmt.Sprintf("赞了您的文章 <a href=\"/p/%s\" target=\"_blank\">《%s》</a>", post.Pid, post.Title),
		}
		if err := tx.Create(&notification).Error; err != nil {
			return err
		}
		result.Notification = &notification
		return nil
	})
	if err != nil {
		// 并发双击：第二次插入撞 (user_id, post_id) 唯一索引
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrConflict
		}
		return nil, err
	}

	return result, nil
}

// recipientScope 圈定属于某个用户的通知：直接寻址的，加上早期没有
// user_id 直链、但落在该用户自己帖子上的遗留记录。List/已读/未读数
// 共用同一个口径，保证徽标数和列表永远对得上
func recipientScope(userID uint) func(*gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		ownPosts := db.DB.Model(&models.Post{}).Select("id").Where("user_id = ?", userID)
		return tx.Where("(user_id = ? OR (user_id IS NULL AND post_id IN (?)))", userID, ownPosts)
	}
}

// ListNotificationsForUser 按时间倒序返回用户的通知
func ListNotificationsForUser(userID uint) ([]models.Notification, error) {
	var notifications []models.Notification
	err := db.DB.Preload("Actor").
		Scopes(recipientScope(userID)).
		Order("created_at DESC").
		Limit(50).
		Find(&notifications).Error
	if err != nil {
		return nil, err
	}
	return notifications, nil
}

// MarkAllRead 把用户的全部未读通知置为已读，返回实际翻转的条数。幂等
func MarkAllRead(userID uint) (int64, error) {
	result := db.DB.Model(&models.Notification{}).
		Scopes(recipientScope(userID)).
		Where("is_read = ?", false).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}

// UnreadCount 返回用户未读通知数
func UnreadCount(userID uint) int64 {
	var count int64
	db.DB.Model(&models.Notification{}).
		Scopes(recipientScope(userID)).
		Where("is_read = ?", false).
		Count(&count)
	return count
}

// NotificationPayload 是 notification:new 事件的数据体
func NotificationPayload(n *models.Notification) map[string]interface{} {
	payload := map[string]interface{}{
		"type":         n.Type,
		"from_user_id": n.ActorID,
		"post_id":      n.PostID,
		"message":      n.Message,
		"created_at":   n.CreatedAt,
	}
	if n.CommentID != nil {
		payload["comment_id"] = *n.CommentID
	}
	return payload
}
