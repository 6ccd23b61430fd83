package entity

import (
	"strings"
	"time"
)

// Language 代码片段的语言，决定它进入 bundle 的哪个桶
type Language string

const (
	LanguageMarkup Language = "markup"
	LanguageStyle  Language = "style"
	LanguageScript Language = "script"
)

// ParseLanguage 兼容历史数据里的 html/css/js 写法
func ParseLanguage(s string) (Language, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "markup", "html":
		return LanguageMarkup, true
	case "style", "css":
		return LanguageStyle, true
	case "script", "js", "javascript":
		return LanguageScript, true
	}
	return "", false
}

// File 站点下的一个代码片段
type File struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Language  Language  `gorm:"size:16;not null" json:"language"`
	Code      string    `gorm:"type:text" json:"code"`
	SiteID    string    `gorm:"size:64;not null;index" json:"siteId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
