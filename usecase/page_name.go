package usecase

import (
	"strings"

	"codeinject-go-server/internal/platform"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const homePageName = "Home Page"

// ExtractPageName 从平台页面记录推导展示名称，纯函数
// 优先级：displayName → name → title → SEO 标题 → slug → id 特征 → 兜底
func ExtractPageName(p platform.RemotePage) string {
	for _, candidate := range []string{p.DisplayName, p.Name, p.Title, p.SEOTitle, seoTitle(p)} {
		if name := strings.TrimSpace(candidate); name != "" {
			return name
		}
	}

	if p.Slug != nil {
		slug := strings.Trim(strings.TrimSpace(*p.Slug), "/")
		if slug == "" || strings.EqualFold(slug, "index") {
			return homePageName
		}
		if i := strings.LastIndex(slug, "/"); i >= 0 {
			if name := kebabToTitle(slug[i+1:]); name != "" {
				return name
			}
		}
		if name := kebabToTitle(slug); name != "" {
			return name
		}
	}

	id := strings.ToLower(p.ID)
	switch {
	case strings.Contains(id, "404"):
		return "404 Page"
	case strings.Contains(id, "not-found"), strings.Contains(id, "notfound"):
		return "Page Not Found"
	}

	if p.ID == "" {
		return "Unnamed Page"
	}
	prefix := p.ID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return "Unnamed Page (" + prefix + ")"
}

func seoTitle(p platform.RemotePage) string {
	if p.SEO == nil {
		return ""
	}
	return p.SEO.Title
}

// kebabToTitle "my-post" → "My Post"，已有的大写保持不变（FAQ 不会变成 Faq）
// Caser 有状态，不能跨 goroutine 共享，所以每次新建
func kebabToTitle(s string) string {
	words := strings.Fields(strings.NewReplacer("-", " ", "_", " ", "/", " ").Replace(s))
	if len(words) == 0 {
		return ""
	}
	return cases.Title(language.Und, cases.NoLower).String(strings.Join(words, " "))
}
