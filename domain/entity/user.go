package entity

import "time"

// User Clerk 用户同步表，站点的所有者（Site.OwnerID 指向 ID，不建外键）
type User struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"` // Clerk user_id
	Email     string    `gorm:"size:255;index" json:"email"`
	Name      string    `gorm:"size:100" json:"name"`
	AvatarURL string    `gorm:"size:500" json:"avatarUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
