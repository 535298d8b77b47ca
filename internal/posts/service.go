package posts

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	md "notionblog/internal/markdown"
	"notionblog/internal/notion"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

var requiredProperties = []string{"name", "slug", "date", "tags", "description"}

const (
	defaultCacheTTL    = 60 * time.Second
	defaultConcurrency = 4
	maxBlockDepth      = 8
)

type Source interface {
	QueryDatabase(ctx context.Context, databaseID string, q notion.Query) ([]notion.Page, error)
	ListChildren(ctx context.Context, blockID string) ([]notion.Block, error)
}

type Post struct {
	ID          string
	Slug        string
	Title       string
	Date        string
	Description string
	Author      string
	Tags        []string
	// CoverURL is the signed or external cover location, empty without a cover.
	CoverURL string
}

type Article struct {
	Post
	Blocks []notion.Block
}

type Tag struct {
	Name  string
	Count int
}

type Options struct {
	CacheTTL    time.Duration
	Concurrency int
	Logger      *zap.Logger
}

type Service struct {
	source      Source
	databaseID  string
	cache       *gocache.Cache
	concurrency int
	logger      *zap.Logger

	warned sync.Map
}

func NewService(source Source, databaseID string, opts Options) *Service {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	concurrency := opts.Concurrency
	if concurrency < 1 {
		concurrency = defaultConcurrency
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		source:      source,
		databaseID:  strings.TrimSpace(databaseID),
		cache:       gocache.New(ttl, 2*ttl),
		concurrency: concurrency,
		logger:      logger,
	}
}

// ListPosts returns public posts, newest first, optionally narrowed to a tag.
func (s *Service) ListPosts(ctx context.Context, tag string) ([]Post, error) {
	tag = strings.TrimSpace(tag)
	if tag != "" && !IsAllowedText(tag) {
		return nil, fmt.Errorf("%w: tag", ErrInvalidInput)
	}

	key := "posts:" + tag
	if cached, ok := s.cache.Get(key); ok {
		return cached.([]Post), nil
	}

	pages, err := s.source.QueryDatabase(ctx, s.databaseID, notion.Query{Tag: tag})
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}

	posts := make([]Post, 0, len(pages))
	for _, page := range pages {
		posts = append(posts, s.mapPost(page))
	}
	s.cache.SetDefault(key, posts)

	return posts, nil
}

func (s *Service) GetPostBySlug(ctx context.Context, slug string) (*Article, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, ErrNotFound
	}
	if !IsAllowedText(slug) {
		return nil, fmt.Errorf("%w: slug", ErrInvalidInput)
	}

	key := "post:" + slug
	if cached, ok := s.cache.Get(key); ok {
		return cached.(*Article), nil
	}

	pages, err := s.source.QueryDatabase(ctx, s.databaseID, notion.Query{Slug: slug})
	if err != nil {
		if notion.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get post %q: %w", slug, err)
	}
	if len(pages) == 0 {
		return nil, ErrNotFound
	}

	post := s.mapPost(pages[0])
	blocks, err := s.blockTree(ctx, post.ID, 0)
	if err != nil {
		return nil, fmt.Errorf("get post %q: %w", slug, err)
	}

	article := &Article{Post: post, Blocks: blocks}
	if article.Description == "" {
		article.Description = md.Excerpt(leadText(blocks), 160)
	}
	s.cache.SetDefault(key, article)

	return article, nil
}

// Tags derives the tag cloud from the full listing, most used first.
func (s *Service) Tags(ctx context.Context) ([]Tag, error) {
	posts, err := s.ListPosts(ctx, "")
	if err != nil {
		return nil, err
	}

	counts := map[string]int{}
	for _, post := range posts {
		for _, tag := range post.Tags {
			counts[tag]++
		}
	}

	tags := make([]Tag, 0, len(counts))
	for name, count := range counts {
		tags = append(tags, Tag{Name: name, Count: count})
	}
	sort.Slice(tags, func(i, j int) bool {
		if tags[i].Count != tags[j].Count {
			return tags[i].Count > tags[j].Count
		}
		return tags[i].Name < tags[j].Name
	})

	return tags, nil
}

func (s *Service) blockTree(ctx context.Context, blockID string, depth int) ([]notion.Block, error) {
	key := "blocks:" + blockID
	if cached, ok := s.cache.Get(key); ok {
		return cached.([]notion.Block), nil
	}

	blocks, err := s.source.ListChildren(ctx, blockID)
	if err != nil {
		return nil, err
	}
	if depth >= maxBlockDepth {
		return blocks, nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.concurrency)
	for _, block := range blocks {
		base := block.Base()
		if !base.HasChildren {
			continue
		}
		group.Go(func() error {
			children, err := s.blockTree(groupCtx, base.ID, depth+1)
			if err != nil {
				return err
			}
			base.Children = children
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	s.cache.SetDefault(key, blocks)
	return blocks, nil
}

func (s *Service) mapPost(page notion.Page) Post {
	s.warnMissingProperties(page)

	post := Post{
		ID:          page.ID,
		Slug:        page.Text("slug"),
		Title:       page.Text("name"),
		Date:        formatDate(page.DateStart("date")),
		Description: page.Text("description"),
		Author:      page.Text("author"),
		Tags:        page.MultiSelect("tags"),
		CoverURL:    page.Cover.Location(),
	}
	if post.Title == "" {
		post.Title = post.Slug
	}

	return post
}

func (s *Service) warnMissingProperties(page notion.Page) {
	missing := make([]string, 0, len(requiredProperties))
	for _, name := range requiredProperties {
		if !page.HasProperty(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return
	}
	if _, seen := s.warned.LoadOrStore(page.ID, struct{}{}); seen {
		return
	}

	s.logger.Warn("required properties missing in notion page",
		zap.String("page", page.ID),
		zap.Strings("missing", missing),
	)
}

func formatDate(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		parsed, err = time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return raw
		}
	}

	return parsed.Format("2006-01-02")
}

func leadText(blocks []notion.Block) string {
	for _, block := range blocks {
		if paragraph, ok := block.(*notion.Paragraph); ok {
			if text := notion.PlainText(paragraph.Text); text != "" {
				return text
			}
		}
	}

	return ""
}
