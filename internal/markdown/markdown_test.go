package markdown

import (
	"strings"
	"testing"
)

func TestToHTML_MarksExternalLinks(t *testing.T) {
	html := string(ToHTML("[external](https://example.com/read)", Options{
		RootURL: "https://blog.example.org",
	}))

	if !strings.Contains(html, `href="https://example.com/read"`) {
		t.Fatalf("expected external href, got %s", html)
	}
	if !strings.Contains(html, `target="_blank"`) {
		t.Fatalf("expected target blank, got %s", html)
	}
	if !strings.Contains(html, `rel="noopener noreferrer"`) {
		t.Fatalf("expected external rel attrs, got %s", html)
	}
}

func TestToHTML_KeepsRelativeLinksInTab(t *testing.T) {
	html := string(ToHTML("[about](/articles/about)", Options{}))

	if !strings.Contains(html, `href="/articles/about"`) {
		t.Fatalf("expected relative href, got %s", html)
	}
	if strings.Contains(html, `target="_blank"`) {
		t.Fatalf("did not expect target blank for relative links, got %s", html)
	}
}

func TestToHTML_NormalizesSameDomainAbsoluteLinks(t *testing.T) {
	html := string(ToHTML("[same](https://blog.example.org/articles/a?x=1#k)", Options{
		RootURL: "https://blog.example.org",
	}))

	if !strings.Contains(html, `href="/articles/a?x=1#k"`) {
		t.Fatalf("expected normalized same-domain href, got %s", html)
	}
	if strings.Contains(html, `target="_blank"`) {
		t.Fatalf("did not expect target blank for same-domain links, got %s", html)
	}
	if strings.Contains(html, `rel="noopener noreferrer"`) {
		t.Fatalf("did not expect rel attrs for same-domain absolute links, got %s", html)
	}
}

func TestToHTML_HighlightsCodeBlocks(t *testing.T) {
	source := "```go\nfmt.Println(\"hello\")\n```"
	html := string(ToHTML(source, Options{}))

	if !strings.Contains(html, `class="chroma"`) {
		t.Fatalf("expected chroma class for fenced code block, got %s", html)
	}
	if !strings.Contains(html, "Println") {
		t.Fatalf("expected code content in rendered block, got %s", html)
	}
}

func TestToHTML_RendersInlineCodeClass(t *testing.T) {
	html := string(ToHTML("Use `go test ./...` now.", Options{}))

	if !strings.Contains(html, `<code class="inline-code">go test ./...</code>`) {
		t.Fatalf("expected inline code class, got %s", html)
	}
}

func TestExcerpt_KeepsLinkText(t *testing.T) {
	got := Excerpt("Signed URLs expire. See [the Notion docs](https://developers.notion.com/) for details.", 300)

	if strings.Contains(got, "developers.notion.com") {
		t.Fatalf("expected link target to be dropped, got %s", got)
	}
	if !strings.Contains(got, "the Notion docs") {
		t.Fatalf("expected link text to stay in excerpt, got %s", got)
	}
}

func TestHighlightCode_MapsNotionLanguageNames(t *testing.T) {
	var out strings.Builder
	HighlightCode(&out, "C++", "int main() { return 0; }")

	if !strings.Contains(out.String(), `class="chroma"`) {
		t.Fatalf("expected chroma output, got %s", out.String())
	}
	if !strings.Contains(out.String(), "main") {
		t.Fatalf("expected code content, got %s", out.String())
	}
}

func TestExcerpt_TruncatesOnWordBoundary(t *testing.T) {
	got := Excerpt("alpha beta gamma delta", 12)
	if got != "alpha beta..." {
		t.Fatalf("expected graceful word truncation, got %q", got)
	}
}

func TestChromaCSSScopesRulesPerScheme(t *testing.T) {
	css := string(ChromaCSS(CodeTheme{Light: "github", Dark: "dracula"}, ".code-block", ".site-footer"))

	light := strings.Index(css, "@media (prefers-color-scheme: light)")
	dark := strings.Index(css, "@media (prefers-color-scheme: dark)")
	if light < 0 || dark < light {
		t.Fatalf("expected light then dark media blocks, got %s", css)
	}
	if !strings.Contains(css, ".code-block .chroma .k, .site-footer .chroma .k {") {
		t.Fatalf("expected keyword rule scoped to both containers, got %s", css)
	}
	if strings.Contains(css, "/*") {
		t.Fatalf("expected comments to be stripped, got %s", css)
	}
	for _, line := range strings.Split(css, "\n") {
		if strings.HasPrefix(line, ".chroma") {
			t.Fatalf("found unscoped rule %q", line)
		}
	}
}

func TestChromaCSSDefaultsAndCaching(t *testing.T) {
	first := ChromaCSS(CodeTheme{})
	second := ChromaCSS(DefaultCodeTheme())
	if first != second {
		t.Fatal("expected empty theme to match the default theme")
	}
	if !KnownStyle("monokai") || KnownStyle("no-such-style") {
		t.Fatal("unexpected style registry answer")
	}
}
