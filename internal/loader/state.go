// Package loader drives a single displayed image through refresh attempts
// when its signed URL stops working. The transition function is pure; the
// Loader type executes the effects it returns.
package loader

import (
	"errors"
	"time"

	"notionblog/internal/freshness"
	"notionblog/internal/imageref"
)

type Phase int

const (
	Idle Phase = iota
	CheckingCache
	Refreshing
	Displaying
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case CheckingCache:
		return "checking_cache"
	case Refreshing:
		return "refreshing"
	case Displaying:
		return "displaying"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

var (
	ErrAttemptsExhausted = errors.New("refresh attempts exhausted")
	ErrUnchangedURL      = errors.New("refresh returned the current url")
)

type Policy struct {
	Ceiling      int
	Cooldown     time.Duration
	BackoffStep  time.Duration
	RenderedTTL  time.Duration
	ConfirmedTTL time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		Ceiling:      3,
		Cooldown:     5 * time.Second,
		BackoffStep:  300 * time.Millisecond,
		RenderedTTL:  freshness.RenderedTTL,
		ConfirmedTTL: freshness.ConfirmedTTL,
	}
}

// normalized fills zero fields from DefaultPolicy.
func (p Policy) normalized() Policy {
	def := DefaultPolicy()
	if p.Ceiling < 1 {
		p.Ceiling = def.Ceiling
	}
	if p.Cooldown < 0 {
		p.Cooldown = 0
	}
	if p.BackoffStep < 0 {
		p.BackoffStep = 0
	}
	if p.RenderedTTL <= 0 {
		p.RenderedTTL = def.RenderedTTL
	}
	if p.ConfirmedTTL <= 0 {
		p.ConfirmedTTL = def.ConfirmedTTL
	}

	return p
}

// State is the retry state of one mounted image.
type State struct {
	Phase Phase
	Ref   imageref.Reference
	URL   string
	// Attempt counts refresh calls scheduled during this mount.
	Attempt     int
	LastRefresh time.Time
	Err         error
}

func (s State) AttemptsLeft(p Policy) int {
	left := p.normalized().Ceiling - s.Attempt
	if left < 0 {
		return 0
	}

	return left
}

type Event interface{ isEvent() }

type Mounted struct {
	CachedURL string
	CacheHit  bool
	Expired   bool
	At        time.Time
}

type LoadFailed struct{ At time.Time }

type Loaded struct{}

type RefreshStarted struct{ At time.Time }

type RefreshFinished struct {
	URL string
	Err error
	// Terminal marks errors that must not be retried, such as not-found.
	Terminal bool
	At       time.Time
}

type ResetRequested struct{ At time.Time }

func (Mounted) isEvent()         {}
func (LoadFailed) isEvent()      {}
func (Loaded) isEvent()          {}
func (RefreshStarted) isEvent()  {}
func (RefreshFinished) isEvent() {}
func (ResetRequested) isEvent()  {}

type Effect interface{ isEffect() }

type ScheduleRefresh struct {
	Attempt int
	Delay   time.Duration
}

type StoreURL struct {
	URL string
	TTL time.Duration
}

type ReportFailure struct{ Err error }

func (ScheduleRefresh) isEffect() {}
func (StoreURL) isEffect()        {}
func (ReportFailure) isEffect()   {}

// Transition returns the next state and the effects the driver must run.
// Events that do not apply to the current phase leave the state unchanged.
func Transition(policy Policy, s State, ev Event) (State, []Effect) {
	policy = policy.normalized()

	switch e := ev.(type) {
	case Mounted:
		if s.Phase != Idle && s.Phase != CheckingCache {
			return s, nil
		}
		switch {
		case e.CacheHit && e.CachedURL != "":
			s.Phase = Displaying
			s.URL = e.CachedURL
			return s, nil
		case e.Expired:
			// The first refresh of a mount is issued right away.
			s.Phase = Refreshing
			s.Attempt++
			return s, []Effect{ScheduleRefresh{Attempt: s.Attempt, Delay: cooldownLeft(policy, s, e.At)}}
		default:
			s.Phase = Displaying
			return s, nil
		}

	case LoadFailed:
		if s.Phase != Displaying {
			return s, nil
		}
		if s.Attempt >= policy.Ceiling {
			return fail(s, ErrAttemptsExhausted)
		}
		if inCooldown(policy, s, e.At) {
			return s, nil
		}
		return startRefresh(policy, s, e.At)

	case RefreshStarted:
		if s.Phase != Refreshing {
			return s, nil
		}
		s.LastRefresh = e.At
		return s, nil

	case RefreshFinished:
		if s.Phase != Refreshing {
			return s, nil
		}
		if e.Err != nil && e.Terminal {
			return fail(s, e.Err)
		}
		if e.Err == nil && e.URL != "" && e.URL != s.URL {
			s.Phase = Displaying
			s.URL = e.URL
			s.Err = nil
			return s, []Effect{StoreURL{URL: e.URL, TTL: policy.ConfirmedTTL}}
		}

		cause := e.Err
		if cause == nil {
			cause = ErrUnchangedURL
		}
		if s.Attempt >= policy.Ceiling {
			return fail(s, cause)
		}
		s.Err = cause
		return startRefresh(policy, s, e.At)

	case Loaded:
		if s.Phase != Displaying || s.URL == "" {
			return s, nil
		}
		return s, []Effect{StoreURL{URL: s.URL, TTL: policy.RenderedTTL}}

	case ResetRequested:
		if s.Phase != Failed {
			return s, nil
		}
		s.Attempt = 0
		s.Err = nil
		return startRefresh(policy, s, e.At)
	}

	return s, nil
}

func startRefresh(policy Policy, s State, at time.Time) (State, []Effect) {
	s.Phase = Refreshing
	s.Attempt++

	return s, []Effect{ScheduleRefresh{Attempt: s.Attempt, Delay: refreshDelay(policy, s, at)}}
}

func fail(s State, err error) (State, []Effect) {
	s.Phase = Failed
	s.Err = err

	return s, []Effect{ReportFailure{Err: err}}
}

func inCooldown(policy Policy, s State, at time.Time) bool {
	if s.LastRefresh.IsZero() {
		return false
	}

	return at.Sub(s.LastRefresh) < policy.Cooldown
}

// refreshDelay is BackoffStep times the attempt about to run, but never less
// than what is left of the cooldown since the previous refresh.
func refreshDelay(policy Policy, s State, at time.Time) time.Duration {
	return max(policy.BackoffStep*time.Duration(s.Attempt), cooldownLeft(policy, s, at))
}

func cooldownLeft(policy Policy, s State, at time.Time) time.Duration {
	if s.LastRefresh.IsZero() {
		return 0
	}

	return max(policy.Cooldown-at.Sub(s.LastRefresh), 0)
}
