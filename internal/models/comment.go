package models

import (
	"time"
)

type Comment struct {
	ID       uint     `gorm:"primaryKey" json:"id"`
	Cid      string   `gorm:"uniqueIndex;size:8;not null" json:"cid"`
	PostID   uint     `gorm:"not null;index" json:"post_id"`
	Post     Post     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"post"`
	UserID   uint     `gorm:"not null;index" json:"user_id"`
	User     User     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user"`
	ParentID *uint    `gorm:"index" json:"parent_id"` // Nullable for top-level comments
	Parent   *Comment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"parent,omitempty"`
	// ThreadID 是本条评论所在楼层树根评论的 Cid。创建时直接从父评论复制，
	// 读取时按 ThreadID 分组即可取出整个楼层，不需要递归回溯
	ThreadID  string    `gorm:"size:8;not null;index" json:"thread_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `json:"created_at"`
	// 评论不可编辑，只随所属帖子级联删除，所以没有 UpdatedAt / DeletedAt
}
