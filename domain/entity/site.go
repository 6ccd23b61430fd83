package entity

import "time"

// Site 站点记录
// 站点级文件列表由站点级 loader 注入到所有页面，与 Page 记录无关
// HeadScriptID/BodyScriptID 是平台侧已绑定的 loader 脚本 ID
type Site struct {
	ExternalSiteID string     `gorm:"primaryKey;size:64" json:"siteId"`
	Name           string     `gorm:"size:255" json:"name"`
	OwnerID        string     `gorm:"size:64;index" json:"ownerId"` // Clerk user_id
	HeadFiles      FileIDList `gorm:"type:jsonb" json:"headFiles"`
	BodyFiles      FileIDList `gorm:"type:jsonb" json:"bodyFiles"`
	HeadScriptID   string     `gorm:"size:64" json:"headScriptId,omitempty"`
	BodyScriptID   string     `gorm:"size:64" json:"bodyScriptId,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

func (s *Site) FilesAt(location Location) FileIDList {
	if location == LocationHead {
		return s.HeadFiles
	}
	return s.BodyFiles
}

func (s *Site) References(fileID int64) bool {
	return s.HeadFiles.Contains(fileID) || s.BodyFiles.Contains(fileID)
}
