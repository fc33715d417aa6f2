package models

import (
	"time"
)

// ReplyRelation 是派生聚合：AuthorID 在任意帖子下至少有一条存活评论
// 回复了 TargetID 的评论。随回复创建时 upsert，随评论级联删除后清理。
type ReplyRelation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AuthorID  uint      `gorm:"not null;uniqueIndex:idx_reply_pair" json:"author_id"`
	TargetID  uint      `gorm:"not null;uniqueIndex:idx_reply_pair;index" json:"target_id"`
	CreatedAt time.Time `json:"created_at"`
}
