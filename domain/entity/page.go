package entity

import "time"

// Page 站点页面的本地镜像
// ExternalPageID 是与平台页面列表对齐的连接键，(site_id, external_page_id) 唯一
// HeadFiles/BodyFiles 只由编辑器写入，同步流程从不修改已有行的这两个字段
type Page struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	ExternalPageID string     `gorm:"size:64;not null;uniqueIndex:idx_pages_site_external" json:"externalPageId"`
	SiteID         string     `gorm:"size:64;not null;uniqueIndex:idx_pages_site_external;index" json:"siteId"`
	Name           string     `gorm:"size:255" json:"name"`
	HeadFiles      FileIDList `gorm:"type:jsonb" json:"headFiles"`
	BodyFiles      FileIDList `gorm:"type:jsonb" json:"bodyFiles"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// FilesAt 返回指定注入位置的文件列表
func (p *Page) FilesAt(location Location) FileIDList {
	if location == LocationHead {
		return p.HeadFiles
	}
	return p.BodyFiles
}

// References 判断页面是否在任一位置引用了该文件
func (p *Page) References(fileID int64) bool {
	return p.HeadFiles.Contains(fileID) || p.BodyFiles.Contains(fileID)
}
