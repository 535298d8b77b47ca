package appcore

import (
	"html/template"
	"strings"

	"notionblog/internal/config"
	"notionblog/internal/markdown"
	"notionblog/internal/posts"
)

func TagClass(active bool) string {
	if active {
		return "tag active"
	}
	return "tag"
}

func TagLabel(tag posts.Tag) string {
	return "#" + strings.TrimSpace(tag.Name)
}

func PostCardClass(hasCover bool) string {
	if hasCover {
		return "panel post-card has-cover"
	}
	return "panel post-card"
}

// AuthorLabel shows the configured author id, falling back to the admin.
func AuthorLabel(site config.SiteConfig, post posts.Post) string {
	if author, ok := site.AuthorByID(post.Author); ok {
		return "@" + author.ID
	}
	if strings.TrimSpace(post.Author) != "" {
		return "@" + strings.TrimSpace(post.Author)
	}
	if site.AdminName != "" {
		return site.AdminName
	}
	return ""
}

func PageTitle(view LayoutView) string {
	site := view.LayoutSite()
	title := strings.TrimSpace(view.LayoutPageTitle())
	if title == "" || title == site.Title {
		return site.Title
	}
	return title + " | " + site.Title
}

func FooterHTML(site config.SiteConfig, rootURL string) template.HTML {
	if strings.TrimSpace(site.FooterMarkdown) == "" {
		return ""
	}
	return markdown.ToHTML(site.FooterMarkdown, markdown.Options{RootURL: rootURL})
}

// ChromaStyleTag scopes the site's code theme to rendered code blocks and
// the markdown footer.
func ChromaStyleTag(site config.SiteConfig) string {
	return "<style>" + string(markdown.ChromaCSS(site.CodeTheme.Markdown(), ".code-block", ".site-footer")) + "</style>"
}
