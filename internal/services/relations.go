package services

import (
	"feedlink/internal/db"
	"feedlink/internal/models"

	"github.com/samber/lo"
	"gorm.io/gorm"
)

type replyPair struct {
	AuthorID uint
	TargetID uint
}

// cleanupReplyRelations 在评论级联删除后修剪回复关系聚合。
// 对被删评论蕴含的每个 (作者, 被回复作者) 对做一次全库重查：
// 只要任意帖子下还存在一条同配对的存活回复，关系就保留。
// 按帖子局部删除会把其他帖子仍在见证的关系一起删掉，这里必须全局查。
// 必须跑在删除评论的同一个事务里，否则并发创建会与清理互相竞态
func cleanupReplyRelations(tx *gorm.DB, deleted []models.Comment) error {
	authors := make(map[uint]uint, len(deleted))
	for _, c := range deleted {
		authors[c.ID] = c.UserID
	}

	var pairs []replyPair
	for _, c := range deleted {
		if c.ParentID == nil {
			continue
		}
		targetID, ok := authors[*c.ParentID]
		if !ok || targetID == c.UserID {
			// 父评论不在本帖（创建时已保证不会发生）或自己回自己
			continue
		}
		pairs = append(pairs, replyPair{AuthorID: c.UserID, TargetID: targetID})
	}

	for _, p := range lo.Uniq(pairs) {
		var witnesses int64
		err := tx.Model(&models.Comment{}).
			Joins("JOIN comments AS parents ON parents.id = comments.parent_id").
			Where("comments.user_id = ? AND parents.user_id = ?", p.AuthorID, p.TargetID).
			Count(&witnesses).Error
		if err != nil {
			return err
		}
		if witnesses > 0 {
			continue
		}
		err = tx.Where("author_id = ? AND target_id = ?", p.AuthorID, p.TargetID).
			Delete(&models.ReplyRelation{}).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// HasRepliedTo 查询聚合关系，给前端的"互动过"角标用
func HasRepliedTo(authorID, targetID uint) bool {
	var count int64
	db.DB.Model(&models.ReplyRelation{}).
		Where("author_id = ? AND target_id = ?", authorID, targetID).
		Count(&count)
	return count > 0
}
