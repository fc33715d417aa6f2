package models

import (
	"time"
)

type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"not null" json:"username"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	Avatar    string    `gorm:"default:🌱" json:"avatar"` // emoji 头像
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// 注册/登录/资料修改由外部身份服务负责，这里只保留引用所需的字段
}
