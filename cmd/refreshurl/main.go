// Command refreshurl resolves the current URL of Notion images through a
// running blog's refresh endpoint, retrying the way the site's image frames do.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"notionblog/internal/freshness"
	"notionblog/internal/gateway"
	"notionblog/internal/imageref"
	"notionblog/internal/loader"
	"notionblog/internal/logging"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type multiFlag []string

func (m *multiFlag) String() string {
	return strings.Join(*m, ",")
}

func (m *multiFlag) Set(value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return errors.New("value cannot be empty")
	}
	*m = append(*m, trimmed)
	return nil
}

var errUnresolved = errors.New("some images could not be resolved")

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, os.Stderr); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "refreshurl: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer, stderr io.Writer) error {
	fs := flag.NewFlagSet("refreshurl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var blocks multiFlag
	server := fs.String("server", "http://localhost:8080", "base URL of the blog serving "+gateway.RefreshPath)
	pageID := fs.String("page", "", "page id owning the images (required)")
	fs.Var(&blocks, "block", "image block id (repeatable); omit to resolve the page cover")
	initialURL := fs.String("url", "", "last known URL; refreshed only when expired")
	retries := fs.Int("retries", loader.DefaultPolicy().Ceiling, "refresh attempts per image")
	cooldown := fs.Duration("cooldown", loader.DefaultPolicy().Cooldown, "minimum spacing between attempts")
	timeout := fs.Duration("timeout", time.Minute, "overall deadline")
	logLevel := fs.String("log-level", "warn", "log level")
	if err := fs.Parse(args); err != nil {
		return err
	}

	refs, err := references(*pageID, blocks)
	if err != nil {
		return err
	}

	logger, err := logging.New(*logLevel, "console")
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	cache, err := freshness.NewMemory(freshness.MemoryOptions{Logger: logger})
	if err != nil {
		return fmt.Errorf("create freshness cache: %w", err)
	}
	defer func() { _ = cache.Close() }()

	policy := loader.DefaultPolicy()
	policy.Ceiling = *retries
	policy.Cooldown = *cooldown
	factory := loader.NewFactory(loader.Options{
		Cache:     cache,
		Refresher: gateway.NewClient(*server, &http.Client{Timeout: 15 * time.Second}),
		Policy:    policy,
		Logger:    logger,
	})

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	states := make([]loader.State, len(refs))
	group, groupCtx := errgroup.WithContext(ctx)
	for idx, ref := range refs {
		group.Go(func() error {
			states[idx] = factory.Mount(groupCtx, ref, *initialURL).State()
			return nil
		})
	}
	_ = group.Wait()

	failed := false
	for idx, state := range states {
		if state.Phase != loader.Displaying || state.URL == "" {
			failed = true
			reason := "unresolved"
			if state.Err != nil {
				reason = state.Err.Error()
			}
			logger.Warn("image not resolved", zap.String("ref", refs[idx].String()), zap.String("reason", reason))
			_, _ = fmt.Fprintf(stdout, "%s\t-\n", refs[idx])
			continue
		}
		_, _ = fmt.Fprintf(stdout, "%s\t%s\n", refs[idx], state.URL)
	}
	if failed {
		return errUnresolved
	}

	return nil
}

func references(pageID string, blocks []string) ([]imageref.Reference, error) {
	if strings.TrimSpace(pageID) == "" {
		return nil, errors.New("-page is required")
	}
	if len(blocks) == 0 {
		ref, err := imageref.NewReference(pageID, "")
		if err != nil {
			return nil, err
		}
		return []imageref.Reference{ref}, nil
	}

	refs := make([]imageref.Reference, 0, len(blocks))
	for _, block := range blocks {
		ref, err := imageref.NewReference(pageID, block)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}
