package freshness

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"notionblog/internal/imageref"
)

var _ Cache = (*Memory)(nil)

const maxEntryBytes = 4096

type MemoryOptions struct {
	Clock  clock.Clock
	Logger *zap.Logger
	// MaxTTL bounds how long bigcache keeps raw entries around; per-entry
	// expiry is still checked on every read.
	MaxTTL time.Duration
	// SizeMB caps the shard memory. Zero means unbounded.
	SizeMB int
}

// Memory is a bigcache-backed Cache.
type Memory struct {
	cache  *bigcache.BigCache
	clock  clock.Clock
	logger *zap.Logger
}

func NewMemory(opts MemoryOptions) (*Memory, error) {
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.MaxTTL <= 0 {
		opts.MaxTTL = 2 * ConfirmedTTL
	}

	cfg := bigcache.DefaultConfig(opts.MaxTTL)
	cfg.CleanWindow = 5 * time.Minute
	cfg.HardMaxCacheSize = opts.SizeMB
	cfg.MaxEntrySize = maxEntryBytes
	cfg.Verbose = false

	cache, err := bigcache.New(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	return &Memory{
		cache:  cache,
		clock:  opts.Clock,
		logger: opts.Logger,
	}, nil
}

func (m *Memory) Get(ref imageref.Reference) (string, bool) {
	key := ref.Key()
	data, err := m.cache.Get(key)
	if err != nil {
		if !errors.Is(err, bigcache.ErrEntryNotFound) {
			m.logger.Debug("freshness cache read failed", zap.String("key", key), zap.Error(err))
		}
		return "", false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		m.logger.Debug("freshness cache entry corrupted", zap.String("key", key), zap.Error(err))
		_ = m.cache.Delete(key)
		return "", false
	}

	if !entry.FreshAt(m.clock.Now()) {
		return "", false
	}

	return entry.URL, true
}

func (m *Memory) Put(ref imageref.Reference, url string, ttl time.Duration) {
	url = strings.TrimSpace(url)
	if url == "" || ttl <= 0 {
		return
	}

	key := ref.Key()
	data, err := json.Marshal(Entry{URL: url, ExpiresAt: m.clock.Now().Add(ttl)})
	if err != nil {
		m.logger.Debug("freshness cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if len(data) > maxEntryBytes {
		m.logger.Debug("freshness cache entry too large", zap.String("key", key), zap.Int("bytes", len(data)))
		return
	}

	if err := m.cache.Set(key, data); err != nil {
		m.logger.Debug("freshness cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (m *Memory) Clear() {
	if err := m.cache.Reset(); err != nil {
		m.logger.Debug("freshness cache reset failed", zap.Error(err))
	}
}

func (m *Memory) Close() error {
	return m.cache.Close()
}
