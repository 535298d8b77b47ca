package loader

import (
	"context"
	"sync"
	"time"

	"notionblog/internal/freshness"
	"notionblog/internal/gateway"
	"notionblog/internal/imageref"
	"notionblog/internal/metrics"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

type Refresher interface {
	Refresh(ctx context.Context, ref imageref.Reference) (string, error)
}

type Options struct {
	Cache     freshness.Cache
	Refresher Refresher
	Detector  *imageref.Detector
	Clock     clock.Clock
	Policy    Policy
	Logger    *zap.Logger
	// Observe is called with every state the loader enters.
	Observe func(State)
	// IsTerminal reports refresh errors that end the mount immediately.
	IsTerminal func(error) bool
}

// Snapshot is the part of a loader's state that survives between requests,
// e.g. carried by the browser on a live image element.
type Snapshot struct {
	URL         string
	Attempt     int
	LastRefresh time.Time
	Failed      bool
}

type Loader struct {
	opts Options

	// run serializes event handling so one instance never overlaps refreshes.
	run sync.Mutex

	mu    sync.RWMutex
	state State
	// pending is set when a scheduled refresh was abandoned before it was
	// issued; that attempt is not carried into snapshots.
	pending bool
}

func New(ref imageref.Reference, initialURL string, opts Options) *Loader {
	opts = withDefaults(opts)

	return &Loader{
		opts:  opts,
		state: State{Phase: Idle, Ref: ref, URL: initialURL},
	}
}

// Restore rebuilds a mounted loader from a snapshot. A snapshot marked
// failed restores into Failed so only Reset can resume it.
func Restore(ref imageref.Reference, snap Snapshot, opts Options) *Loader {
	l := New(ref, snap.URL, opts)
	l.state.Phase = Displaying
	l.state.Attempt = max(snap.Attempt, 0)
	l.state.LastRefresh = snap.LastRefresh
	if snap.Failed {
		l.state.Phase = Failed
		l.state.Err = ErrAttemptsExhausted
	}

	return l
}

func withDefaults(opts Options) Options {
	if opts.Cache == nil {
		opts.Cache = freshness.NewNoop()
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Detector == nil {
		opts.Detector = imageref.NewDetector(opts.Clock)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.IsTerminal == nil {
		opts.IsTerminal = gateway.IsTerminal
	}
	opts.Policy = opts.Policy.normalized()

	return opts
}

func (l *Loader) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.state
}

func (l *Loader) Snapshot() Snapshot {
	l.mu.RLock()
	s, pending := l.state, l.pending
	l.mu.RUnlock()

	attempt := s.Attempt
	if pending && attempt > 0 {
		attempt--
	}

	return Snapshot{
		URL:         s.URL,
		Attempt:     attempt,
		LastRefresh: s.LastRefresh,
		Failed:      s.Phase == Failed,
	}
}

// CooldownRemaining is how long a load failure reported now would be dropped.
func (l *Loader) CooldownRemaining() time.Duration {
	s := l.State()
	if s.LastRefresh.IsZero() {
		return 0
	}

	remaining := l.opts.Policy.Cooldown - l.opts.Clock.Since(s.LastRefresh)
	if remaining < 0 {
		return 0
	}

	return remaining
}

func (l *Loader) Policy() Policy {
	return l.opts.Policy
}

// Mount resolves the URL to display: a cached one, a refreshed one when the
// initial URL has already expired, or the initial URL itself.
func (l *Loader) Mount(ctx context.Context) State {
	l.run.Lock()
	defer l.run.Unlock()

	current := l.State()
	if current.Phase != Idle {
		return current
	}
	current.Phase = CheckingCache
	l.setState(current)

	cached, hit := l.opts.Cache.Get(current.Ref)
	if hit && l.opts.Detector.IsExpired(cached) {
		hit = false
	}
	ev := Mounted{
		CachedURL: cached,
		CacheHit:  hit,
		At:        l.opts.Clock.Now(),
	}
	if !hit {
		ev.Expired = current.URL == "" || l.opts.Detector.IsExpired(current.URL)
	}

	return l.dispatch(ctx, ev)
}

func (l *Loader) ReportLoadFailure(ctx context.Context) State {
	l.run.Lock()
	defer l.run.Unlock()

	return l.dispatch(ctx, LoadFailed{At: l.opts.Clock.Now()})
}

func (l *Loader) ReportLoaded(ctx context.Context) State {
	l.run.Lock()
	defer l.run.Unlock()

	return l.dispatch(ctx, Loaded{})
}

func (l *Loader) Reset(ctx context.Context) State {
	l.run.Lock()
	defer l.run.Unlock()

	return l.dispatch(ctx, ResetRequested{At: l.opts.Clock.Now()})
}

func (l *Loader) dispatch(ctx context.Context, ev Event) State {
	queue := []Event{ev}
	for len(queue) > 0 {
		next, effects := Transition(l.opts.Policy, l.State(), queue[0])
		queue = queue[1:]
		l.setState(next)

		for _, effect := range effects {
			switch e := effect.(type) {
			case StoreURL:
				if ttl := l.storeTTL(e.URL, e.TTL); ttl > 0 {
					l.opts.Cache.Put(next.Ref, e.URL, ttl)
				}
			case ReportFailure:
				l.opts.Logger.Warn("image refresh failed",
					zap.String("ref", next.Ref.String()),
					zap.Int("attempt", next.Attempt),
					zap.Error(e.Err),
				)
			case ScheduleRefresh:
				finished, ok := l.refresh(ctx, e)
				if !ok {
					return l.State()
				}
				queue = append(queue, finished)
			}
		}
	}

	return l.State()
}

// storeTTL shortens ttl so a cached signed URL never outlives its
// signature. Zero means the URL must not be cached at all.
func (l *Loader) storeTTL(rawURL string, ttl time.Duration) time.Duration {
	if !l.opts.Detector.ExpiresWithin(rawURL, ttl) {
		return ttl
	}

	meta, err := l.opts.Detector.Metadata(rawURL)
	if err != nil {
		l.opts.Logger.Debug("unsigned storage url not cached", zap.Error(err))
		return 0
	}

	remaining := meta.ExpiresAt().Sub(l.opts.Clock.Now())
	l.opts.Logger.Debug("cache ttl capped at signature expiry",
		zap.Time("expires_at", meta.ExpiresAt()),
		zap.Duration("ttl", max(remaining, 0)),
	)
	return max(remaining, 0)
}

// refresh waits out the scheduled delay and calls the refresher. ok is false
// when the context ended first; the result is then discarded.
func (l *Loader) refresh(ctx context.Context, e ScheduleRefresh) (RefreshFinished, bool) {
	if e.Delay > 0 {
		timer := l.opts.Clock.Timer(e.Delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			l.setPending(true)
			return RefreshFinished{}, false
		}
	}
	if ctx.Err() != nil {
		l.setPending(true)
		return RefreshFinished{}, false
	}
	l.setPending(false)

	ref := l.State().Ref
	next, _ := Transition(l.opts.Policy, l.State(), RefreshStarted{At: l.opts.Clock.Now()})
	l.setState(next)

	l.opts.Logger.Debug("refreshing image url",
		zap.String("ref", ref.String()),
		zap.Int("attempt", e.Attempt),
	)

	var (
		url string
		err error
	)
	if l.opts.Refresher == nil {
		err = gateway.ErrImageNotFound
	} else {
		url, err = l.opts.Refresher.Refresh(ctx, ref)
	}
	if ctx.Err() != nil {
		return RefreshFinished{}, false
	}

	return RefreshFinished{
		URL:      url,
		Err:      err,
		Terminal: err != nil && l.opts.IsTerminal(err),
		At:       l.opts.Clock.Now(),
	}, true
}

func (l *Loader) setPending(pending bool) {
	l.mu.Lock()
	l.pending = pending
	l.mu.Unlock()
}

func (l *Loader) setState(next State) {
	l.mu.Lock()
	phaseChanged := l.state.Phase != next.Phase
	changed := phaseChanged || l.state.Attempt != next.Attempt || l.state.URL != next.URL
	l.state = next
	l.mu.Unlock()

	if phaseChanged {
		metrics.RecordTransition(next.Phase.String())
	}

	if changed && l.opts.Observe != nil {
		l.opts.Observe(next)
	}
}

// Factory mounts loaders that share one set of options, typically one
// freshness cache and refresher per process.
type Factory struct {
	Options Options
}

func NewFactory(opts Options) *Factory {
	return &Factory{Options: withDefaults(opts)}
}

func (f *Factory) New(ref imageref.Reference, initialURL string) *Loader {
	return New(ref, initialURL, f.Options)
}

func (f *Factory) Restore(ref imageref.Reference, snap Snapshot) *Loader {
	return Restore(ref, snap, f.Options)
}

// Mount creates a loader and mounts it. Refreshes still waiting when ctx
// ends are left for the next caller.
func (f *Factory) Mount(ctx context.Context, ref imageref.Reference, initialURL string) *Loader {
	l := f.New(ref, initialURL)
	l.Mount(ctx)

	return l
}
