package models

import (
	"time"
)

type NotificationType string

const (
	NotificationTypeLike    NotificationType = "like"
	NotificationTypeComment NotificationType = "comment"
	NotificationTypeReply   NotificationType = "reply"
)

type Notification struct {
	ID uint `gorm:"primaryKey" json:"id"`
	// Receiver。早期数据可能没有直链（NULL），读取时靠帖子归属兜底解析
	UserID  *uint `gorm:"index" json:"user_id"`
	User    User  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user"`
	ActorID *uint `gorm:"index" json:"actor_id"` // Sender
	Actor   User  `gorm:"foreignKey:ActorID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"actor"`
	Type    NotificationType `gorm:"type:varchar(20);not null" json:"type"`
	// like 通知的去重键是 (type, actor_id, post_id)，所以 PostID 必填
	PostID    uint      `gorm:"not null;index" json:"post_id"`
	CommentID *uint     `gorm:"index" json:"comment_id"` // comment/reply 类型才有
	Message   string    `gorm:"type:text" json:"message"`
	IsRead    bool      `gorm:"default:false;index" json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}
