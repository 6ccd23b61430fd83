package platform

import (
	"errors"
	"fmt"
)

// CodeDuplicateScript 平台对 (displayName, version) 重复注册返回的错误码
const CodeDuplicateScript = "duplicate_registered_script"

// ErrDuplicateScriptVersion 唯一可以重试的平台错误
var ErrDuplicateScriptVersion = errors.New("registered script version already exists")

// APIError 平台返回的非 2xx 响应，保留平台原始 message
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("platform api error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("platform api error %d: %s", e.Status, e.Message)
}

// Is 让 errors.Is(err, ErrDuplicateScriptVersion) 可以识别版本冲突
func (e *APIError) Is(target error) bool {
	return target == ErrDuplicateScriptVersion && e.Code == CodeDuplicateScript
}

// RemotePage 平台页面列表中的一条记录
// Slug 为 nil 表示平台未返回该字段，与空字符串（首页）区分
type RemotePage struct {
	ID          string   `json:"id"`
	SiteID      string   `json:"siteId,omitempty"`
	DisplayName string   `json:"displayName,omitempty"`
	Name        string   `json:"name,omitempty"`
	Title       string   `json:"title,omitempty"`
	SEOTitle    string   `json:"seoTitle,omitempty"`
	SEO         *PageSEO `json:"seo,omitempty"`
	Slug        *string  `json:"slug,omitempty"`
}

type PageSEO struct {
	Title string `json:"title,omitempty"`
}

type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

type listPagesResponse struct {
	Pages      []RemotePage `json:"pages"`
	Pagination Pagination   `json:"pagination"`
}

// RegisterScriptRequest 注册内联脚本
type RegisterScriptRequest struct {
	SourceCode  string `json:"sourceCode"`
	Version     string `json:"version"`
	DisplayName string `json:"displayName"`
	CanCopy     bool   `json:"canCopy"`
}

// RegisteredScript 平台侧脚本实体，版本一旦注册不可复用
type RegisteredScript struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Version     string `json:"version"`
}

// 平台自定义代码用 header/footer 表示注入位置
const (
	LocationHeader = "header"
	LocationFooter = "footer"
)

// ScriptBinding 页面/站点上的一条自定义代码绑定
type ScriptBinding struct {
	ID       string `json:"id"`
	Location string `json:"location"`
	Version  string `json:"version"`
}

type customCodePayload struct {
	Scripts []ScriptBinding `json:"scripts"`
}
