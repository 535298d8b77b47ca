package markdown

import (
	"bytes"
	"html/template"
	"strings"
	"sync"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/styles"
)

// CodeTheme names the chroma styles used for light and dark color schemes.
type CodeTheme struct {
	Light string
	Dark  string
}

func DefaultCodeTheme() CodeTheme {
	return CodeTheme{Light: "github", Dark: "monokai"}
}

func (t CodeTheme) withDefaults() CodeTheme {
	def := DefaultCodeTheme()
	if strings.TrimSpace(t.Light) == "" {
		t.Light = def.Light
	}
	if strings.TrimSpace(t.Dark) == "" {
		t.Dark = def.Dark
	}
	return t
}

// KnownStyle reports whether chroma ships a style with this name.
func KnownStyle(name string) bool {
	_, ok := styles.Registry[strings.ToLower(strings.TrimSpace(name))]
	return ok
}

var chromaCSSCache sync.Map

// ChromaCSS returns the highlighting rules for theme, restricted to elements
// under one of scopes. Without scopes the rules apply page-wide. Unknown style
// names fall back to chroma's default style.
func ChromaCSS(theme CodeTheme, scopes ...string) template.CSS {
	theme = theme.withDefaults()
	key := theme.Light + "|" + theme.Dark + "|" + strings.Join(scopes, ",")
	if cached, ok := chromaCSSCache.Load(key); ok {
		return cached.(template.CSS)
	}

	var out strings.Builder
	writeSchemeCSS(&out, "light", theme.Light, scopes)
	writeSchemeCSS(&out, "dark", theme.Dark, scopes)

	css := template.CSS(out.String())
	chromaCSSCache.Store(key, css)
	return css
}

func writeSchemeCSS(out *strings.Builder, scheme string, styleName string, scopes []string) {
	rules := styleRules(styleName)
	if len(rules) == 0 {
		return
	}

	out.WriteString("@media (prefers-color-scheme: " + scheme + ") {\n")
	for _, rule := range rules {
		out.WriteString(scopeRule(rule, scopes))
		out.WriteString("\n")
	}
	out.WriteString("}\n")
}

// styleRules renders a chroma style as one CSS rule per entry, comments
// stripped.
func styleRules(styleName string) []string {
	style := styles.Get(styleName)
	if style == nil {
		style = styles.Fallback
	}

	var buffer bytes.Buffer
	if err := chromahtml.New(chromahtml.WithClasses(true)).WriteCSS(&buffer, style); err != nil {
		return nil
	}

	var rules []string
	for _, line := range strings.Split(buffer.String(), "\n") {
		if end := strings.Index(line, "*/"); strings.HasPrefix(strings.TrimSpace(line), "/*") && end >= 0 {
			line = line[end+2:]
		}
		line = strings.TrimSpace(line)
		if line != "" && strings.Contains(line, "{") {
			rules = append(rules, line)
		}
	}
	return rules
}

func scopeRule(rule string, scopes []string) string {
	if len(scopes) == 0 {
		return rule
	}

	open := strings.Index(rule, "{")
	selectors := strings.Split(rule[:open], ",")
	scoped := make([]string, 0, len(selectors)*len(scopes))
	for _, selector := range selectors {
		selector = strings.TrimSpace(selector)
		for _, scope := range scopes {
			scoped = append(scoped, scope+" "+selector)
		}
	}

	return strings.Join(scoped, ", ") + " " + rule[open:]
}
