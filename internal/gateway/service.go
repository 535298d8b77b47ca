package gateway

import (
	"context"
	"fmt"
	"time"

	"notionblog/internal/imageref"
	"notionblog/internal/metrics"
	"notionblog/internal/notion"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type ContentSource interface {
	RetrievePage(ctx context.Context, id string) (*notion.Page, error)
	RetrieveBlock(ctx context.Context, id string) (notion.Block, error)
}

type Result struct {
	URL string `json:"url"`
}

type ServiceOptions struct {
	Cache  ResultCache
	TTL    time.Duration
	Logger *zap.Logger
}

// Service resolves image references to their current URL.
type Service struct {
	source ContentSource
	cache  ResultCache
	ttl    time.Duration
	group  singleflight.Group
	logger *zap.Logger
}

func NewService(source ContentSource, opts ServiceOptions) *Service {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultResultTTL
	}
	cache := opts.Cache
	if cache == nil {
		cache = NewMemoryCache(ttl)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		source: source,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

func (s *Service) Resolve(ctx context.Context, ref imageref.Reference) (Result, error) {
	key := ref.Key()
	if result, ok := s.cache.Get(ctx, key); ok {
		metrics.RecordRefreshCache(metrics.CacheResultHit)
		return result, nil
	}

	value, err, shared := s.group.Do(key, func() (any, error) {
		// The leader's request may be cancelled while followers still wait.
		fetchCtx := context.WithoutCancel(ctx)
		if result, ok := s.cache.Get(fetchCtx, key); ok {
			return result, nil
		}
		result, err := s.fetch(fetchCtx, ref)
		if err != nil {
			return Result{}, err
		}
		s.cache.Set(fetchCtx, key, result, s.ttl)
		return result, nil
	})
	if shared {
		metrics.RecordRefreshCache(metrics.CacheResultShared)
	} else {
		metrics.RecordRefreshCache(metrics.CacheResultMiss)
	}
	if err != nil {
		return Result{}, err
	}

	return value.(Result), nil
}

// Refresh adapts Resolve to the loader's refresher contract.
func (s *Service) Refresh(ctx context.Context, ref imageref.Reference) (string, error) {
	result, err := s.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}

	return result.URL, nil
}

func (s *Service) fetch(ctx context.Context, ref imageref.Reference) (Result, error) {
	if ref.IsCover() {
		page, err := s.source.RetrievePage(ctx, ref.PageID)
		if err != nil {
			return Result{}, classifySourceError(ref, err)
		}
		if page == nil || page.Cover.Location() == "" {
			return Result{}, fmt.Errorf("%w: page %s has no cover", ErrImageNotFound, ref.PageID)
		}
		return Result{URL: page.Cover.Location()}, nil
	}

	block, err := s.source.RetrieveBlock(ctx, ref.BlockID)
	if err != nil {
		return Result{}, classifySourceError(ref, err)
	}
	image, ok := block.(*notion.Image)
	if !ok || image.File.Location() == "" {
		return Result{}, fmt.Errorf("%w: block %s is not an image", ErrImageNotFound, ref.BlockID)
	}

	return Result{URL: image.File.Location()}, nil
}

func classifySourceError(ref imageref.Reference, err error) error {
	if notion.IsNotFound(err) {
		return fmt.Errorf("%w: %s", ErrImageNotFound, ref)
	}

	return fmt.Errorf("resolve %s: %w", ref, err)
}
