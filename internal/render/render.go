// Package render turns Notion block trees into HTML. Images are mounted
// through the loader so expired signed URLs are replaced before the markup
// leaves the server.
package render

import (
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"notionblog/internal/imageref"
	"notionblog/internal/loader"
	md "notionblog/internal/markdown"
	"notionblog/internal/notion"
	"notionblog/internal/posts"

	"github.com/a-h/templ"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultMountTimeout     = 2 * time.Second
	defaultMountConcurrency = 4
)

// ImageLoader mounts a loader for an image reference. *loader.Factory
// satisfies it.
type ImageLoader interface {
	Mount(ctx context.Context, ref imageref.Reference, initialURL string) *loader.Loader
}

type Options struct {
	RootURL      string
	LiveEndpoint string
	// MountTimeout bounds how long rendering waits for image refreshes.
	MountTimeout     time.Duration
	MountConcurrency int
	Logger           *zap.Logger
}

type Renderer struct {
	images ImageLoader
	opts   Options
}

func New(images ImageLoader, opts Options) *Renderer {
	if opts.LiveEndpoint == "" {
		opts.LiveEndpoint = DefaultLiveEndpoint
	}
	if opts.MountTimeout <= 0 {
		opts.MountTimeout = defaultMountTimeout
	}
	if opts.MountConcurrency <= 0 {
		opts.MountConcurrency = defaultMountConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Renderer{images: images, opts: opts}
}

func (r *Renderer) LiveEndpoint() string {
	return r.opts.LiveEndpoint
}

// Article renders the cover, when present, followed by the block tree.
func (r *Renderer) Article(article *posts.Article) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		targets := collectImages(article.ID, article.Blocks)
		if article.CoverURL != "" {
			targets = append(targets, imageTarget{pageID: article.ID, url: article.CoverURL, alt: article.Title})
		}
		frames := r.mountImages(ctx, targets)

		var out htmlWriter
		if article.CoverURL != "" {
			out.raw(`<figure class="post-cover">`)
			r.writeImage(&out, frames, imageTarget{pageID: article.ID, url: article.CoverURL, alt: article.Title})
			out.raw(`</figure>`)
		}
		out.raw(`<div class="notion-content">`)
		r.writeBlocks(&out, frames, article.ID, article.Blocks)
		out.raw(`</div>`)

		_, err := io.WriteString(w, out.String())
		return err
	})
}

func (r *Renderer) Blocks(pageID string, blocks []notion.Block) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		frames := r.mountImages(ctx, collectImages(pageID, blocks))

		var out htmlWriter
		r.writeBlocks(&out, frames, pageID, blocks)

		_, err := io.WriteString(w, out.String())
		return err
	})
}

// RichText renders inline text outside of a block, e.g. captions.
func (r *Renderer) RichText(parts []notion.RichText) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var out htmlWriter
		r.writeRichText(&out, parts)

		_, err := io.WriteString(w, out.String())
		return err
	})
}

type imageTarget struct {
	pageID  string
	blockID string
	url     string
	alt     string
}

func (t imageTarget) key() string {
	return t.pageID + "/" + t.blockID
}

func collectImages(pageID string, blocks []notion.Block) []imageTarget {
	var targets []imageTarget
	for _, block := range blocks {
		if image, ok := block.(*notion.Image); ok {
			targets = append(targets, imageTarget{
				pageID:  pageID,
				blockID: image.ID,
				url:     image.File.Location(),
				alt:     notion.PlainText(image.File.Caption),
			})
		}
		targets = append(targets, collectImages(pageID, block.Base().Children)...)
	}

	return targets
}

func (r *Renderer) mountImages(ctx context.Context, targets []imageTarget) map[string]Frame {
	frames := make(map[string]Frame, len(targets))
	if len(targets) == 0 || r.images == nil {
		return frames
	}

	mountCtx, cancel := context.WithTimeout(ctx, r.opts.MountTimeout)
	defer cancel()

	results := make([]*Frame, len(targets))
	var group errgroup.Group
	group.SetLimit(r.opts.MountConcurrency)
	for idx, target := range targets {
		ref, err := imageref.NewReference(target.pageID, target.blockID)
		if err != nil {
			r.opts.Logger.Warn("skip image with malformed reference",
				zap.String("page_id", target.pageID),
				zap.String("block_id", target.blockID),
				zap.Error(err),
			)
			continue
		}
		group.Go(func() error {
			l := r.images.Mount(mountCtx, ref, target.url)
			frame := FrameFromState(ref, l.State(), l.Snapshot(), target.alt)
			frame.Endpoint = r.opts.LiveEndpoint
			results[idx] = &frame
			return nil
		})
	}
	_ = group.Wait()

	for idx, target := range targets {
		if results[idx] != nil {
			frames[target.key()] = *results[idx]
		}
	}

	return frames
}

func (r *Renderer) writeImage(out *htmlWriter, frames map[string]Frame, target imageTarget) {
	if frame, ok := frames[target.key()]; ok {
		frame.write(out)
		return
	}

	out.raw(`<img src="`)
	out.attr(string(templ.URL(target.url)))
	out.raw(`" alt="`)
	out.attr(target.alt)
	out.raw(`" loading="lazy">`)
}

func (r *Renderer) writeBlocks(out *htmlWriter, frames map[string]Frame, pageID string, blocks []notion.Block) {
	for idx := 0; idx < len(blocks); {
		switch blocks[idx].(type) {
		case *notion.BulletedListItem:
			idx = r.writeList(out, frames, pageID, blocks, idx, "ul")
		case *notion.NumberedListItem:
			idx = r.writeList(out, frames, pageID, blocks, idx, "ol")
		default:
			r.writeBlock(out, frames, pageID, blocks[idx])
			idx++
		}
	}
}

// writeList groups the run of same-kind list items starting at start and
// returns the index after it.
func (r *Renderer) writeList(
	out *htmlWriter,
	frames map[string]Frame,
	pageID string,
	blocks []notion.Block,
	start int,
	tag string,
) int {
	out.raw("<", tag, ">")
	idx := start
	for ; idx < len(blocks) && sameListKind(blocks[idx], tag); idx++ {
		out.raw("<li>")
		r.writeRichText(out, listText(blocks[idx]))
		r.writeBlocks(out, frames, pageID, blocks[idx].Base().Children)
		out.raw("</li>")
	}
	out.raw("</", tag, ">")

	return idx
}

func listText(block notion.Block) []notion.RichText {
	switch item := block.(type) {
	case *notion.BulletedListItem:
		return item.Text
	case *notion.NumberedListItem:
		return item.Text
	default:
		return nil
	}
}

func sameListKind(block notion.Block, tag string) bool {
	switch block.(type) {
	case *notion.BulletedListItem:
		return tag == "ul"
	case *notion.NumberedListItem:
		return tag == "ol"
	default:
		return false
	}
}

func (r *Renderer) writeBlock(out *htmlWriter, frames map[string]Frame, pageID string, block notion.Block) {
	children := block.Base().Children

	switch b := block.(type) {
	case *notion.Paragraph:
		out.raw(`<p`, colorClass(b.Color), `>`)
		r.writeRichText(out, b.Text)
		out.raw(`</p>`)
		r.writeIndented(out, frames, pageID, children)
	case *notion.Heading:
		level := strconv.Itoa(min(b.Level+1, 6))
		anchor := "h-" + strings.ReplaceAll(b.ID, "-", "")
		if b.Toggleable {
			out.raw(`<details class="toggle"><summary>`)
		}
		out.raw(`<h`, level, ` id="`)
		out.attr(anchor)
		out.raw(`">`)
		r.writeRichText(out, b.Text)
		out.raw(`</h`, level, `>`)
		if b.Toggleable {
			out.raw(`</summary>`)
			r.writeBlocks(out, frames, pageID, children)
			out.raw(`</details>`)
		}
	case *notion.BulletedListItem, *notion.NumberedListItem:
		// Reached only when called outside writeBlocks.
		r.writeBlocks(out, frames, pageID, []notion.Block{block})
	case *notion.ToDo:
		out.raw(`<div class="todo"><input type="checkbox" disabled`)
		if b.Checked {
			out.raw(` checked`)
		}
		out.raw(`><span>`)
		r.writeRichText(out, b.Text)
		out.raw(`</span></div>`)
		r.writeIndented(out, frames, pageID, children)
	case *notion.Toggle:
		out.raw(`<details class="toggle"><summary>`)
		r.writeRichText(out, b.Text)
		out.raw(`</summary>`)
		r.writeBlocks(out, frames, pageID, children)
		out.raw(`</details>`)
	case *notion.Quote:
		out.raw(`<blockquote>`)
		r.writeRichText(out, b.Text)
		r.writeBlocks(out, frames, pageID, children)
		out.raw(`</blockquote>`)
	case *notion.Callout:
		out.raw(`<aside class="callout">`)
		if b.Emoji != "" {
			out.raw(`<span class="callout-icon">`)
			out.text(b.Emoji)
			out.raw(`</span>`)
		}
		out.raw(`<div class="callout-body">`)
		r.writeRichText(out, b.Text)
		r.writeBlocks(out, frames, pageID, children)
		out.raw(`</div></aside>`)
	case *notion.Code:
		out.raw(`<figure class="code-block" data-language="`)
		out.attr(b.Language)
		out.raw(`">`)
		md.HighlightCode(out, b.Language, notion.PlainText(b.Text))
		if len(b.Caption) > 0 {
			out.raw(`<figcaption>`)
			r.writeRichText(out, b.Caption)
			out.raw(`</figcaption>`)
		}
		out.raw(`</figure>`)
	case *notion.Image:
		out.raw(`<figure class="notion-image">`)
		r.writeImage(out, frames, imageTarget{
			pageID:  pageID,
			blockID: b.ID,
			url:     b.File.Location(),
			alt:     notion.PlainText(b.File.Caption),
		})
		if len(b.File.Caption) > 0 {
			out.raw(`<figcaption>`)
			r.writeRichText(out, b.File.Caption)
			out.raw(`</figcaption>`)
		}
		out.raw(`</figure>`)
	case *notion.Divider:
		out.raw(`<hr>`)
	case *notion.Equation:
		out.raw(`<div class="math math-display">`)
		out.text(b.Expression)
		out.raw(`</div>`)
	case *notion.Bookmark:
		label := notion.PlainText(b.Caption)
		if label == "" {
			label = b.URL
		}
		r.writeLink(out, b.URL, "bookmark", func() { out.text(label) })
	case *notion.Unsupported:
		out.raw(`<!-- unsupported block: `, commentSafe(b.Type), ` -->`)
	}
}

func (r *Renderer) writeIndented(out *htmlWriter, frames map[string]Frame, pageID string, children []notion.Block) {
	if len(children) == 0 {
		return
	}
	out.raw(`<div class="indent">`)
	r.writeBlocks(out, frames, pageID, children)
	out.raw(`</div>`)
}

func (r *Renderer) writeRichText(out *htmlWriter, parts []notion.RichText) {
	for _, part := range parts {
		if part.Type == "equation" && part.Equation != nil {
			out.raw(`<span class="math math-inline">`)
			out.text(part.Equation.Expression)
			out.raw(`</span>`)
			continue
		}

		inner := func() { r.writeAnnotated(out, part) }
		if href := part.Link(); href != "" {
			r.writeLink(out, href, "", inner)
			continue
		}
		inner()
	}
}

func (r *Renderer) writeAnnotated(out *htmlWriter, part notion.RichText) {
	a := part.Annotations
	var closers []string
	open := func(tag string, attrs string) {
		out.raw("<", tag, attrs, ">")
		closers = append(closers, "</"+tag+">")
	}

	if class := colorClass(a.Color); class != "" {
		open("span", class)
	}
	if a.Bold {
		open("strong", "")
	}
	if a.Italic {
		open("em", "")
	}
	if a.Strikethrough {
		open("s", "")
	}
	if a.Underline {
		open("u", "")
	}
	if a.Code {
		open("code", ` class="inline-code"`)
	}

	lines := strings.Split(part.PlainText, "\n")
	for idx, line := range lines {
		if idx > 0 {
			out.raw("<br>")
		}
		out.text(line)
	}

	for idx := len(closers) - 1; idx >= 0; idx-- {
		out.raw(closers[idx])
	}
}

func (r *Renderer) writeLink(out *htmlWriter, href string, class string, inner func()) {
	normalized, internal := md.NormalizeLink(href, r.opts.RootURL)

	out.raw(`<a href="`)
	out.attr(string(templ.URL(normalized)))
	out.raw(`"`)
	if class != "" {
		out.raw(` class="`, class, `"`)
	}
	if !internal {
		out.raw(` target="_blank" rel="noopener noreferrer"`)
	}
	out.raw(`>`)
	inner()
	out.raw(`</a>`)
}

// colorClass maps a Notion color name to a class attribute, empty for the
// default color.
func colorClass(color string) string {
	color = strings.TrimSpace(color)
	if color == "" || color == "default" {
		return ""
	}
	if base, ok := strings.CutSuffix(color, "_background"); ok {
		return ` class="bg-` + templ.EscapeString(base) + `"`
	}

	return ` class="color-` + templ.EscapeString(color) + `"`
}

func commentSafe(value string) string {
	value = strings.NewReplacer("-", "_", ">", "", "<", "").Replace(value)
	if value == "" {
		return "unknown"
	}

	return value
}

type htmlWriter struct {
	strings.Builder
}

func (w *htmlWriter) raw(parts ...string) {
	for _, part := range parts {
		w.WriteString(part)
	}
}

func (w *htmlWriter) text(value string) {
	w.WriteString(templ.EscapeString(value))
}

func (w *htmlWriter) attr(value string) {
	w.WriteString(templ.EscapeString(value))
}
