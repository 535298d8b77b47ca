package web

import (
	"context"
	"errors"
	"net/http"

	"notionblog/internal/loader"
	"notionblog/internal/render"

	"github.com/starfederation/datastar-go/datastar"
	"go.uber.org/zap"
)

// LiveImageHandler serves the datastar requests image frames send when the
// browser fails to load them. It resumes the frame's loader from the request
// snapshot and patches the frame on every attempt.
type LiveImageHandler struct {
	opts     loader.Options
	endpoint string
	logger   *zap.Logger
}

func NewLiveImageHandler(opts loader.Options, endpoint string, logger *zap.Logger) *LiveImageHandler {
	if endpoint == "" {
		endpoint = render.DefaultLiveEndpoint
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	// Apply the loader defaults now; waitCooldown uses the clock directly.
	opts = loader.NewFactory(opts).Options

	return &LiveImageHandler{opts: opts, endpoint: endpoint, logger: logger}
}

func (h *LiveImageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	req, err := render.ParseLiveRequest(r.URL.Query(), h.opts.Clock.Now())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	sse := datastar.NewSSE(w, r)
	patch := func(frame render.Frame) {
		frame.Endpoint = h.endpoint
		if err := sse.PatchElementTempl(frame.Component(), datastar.WithSelectorID(req.Ref.ElementID())); err != nil {
			h.logger.Debug("patch image frame", zap.String("ref", req.Ref.String()), zap.Error(err))
		}
	}

	opts := h.opts
	opts.Observe = func(state loader.State) {
		if state.Phase == loader.Refreshing {
			patch(render.Frame{Ref: req.Ref, Alt: req.Alt, Status: render.FrameRefreshing})
		}
	}
	l := loader.Restore(req.Ref, req.Snapshot, opts)

	var state loader.State
	if req.Reset {
		state = l.Reset(ctx)
	} else {
		if err := h.waitCooldown(ctx, l); err != nil {
			return
		}
		state = l.ReportLoadFailure(ctx)
	}
	if ctx.Err() != nil {
		return
	}

	if state.Phase == loader.Failed && !errors.Is(state.Err, loader.ErrAttemptsExhausted) {
		h.logger.Info("image unavailable", zap.String("ref", req.Ref.String()), zap.Error(state.Err))
	}
	patch(render.FrameFromState(req.Ref, state, l.Snapshot(), req.Alt))
}

// waitCooldown holds a failure report until the previous refresh is old
// enough for the loader to accept it.
func (h *LiveImageHandler) waitCooldown(ctx context.Context, l *loader.Loader) error {
	remaining := l.CooldownRemaining()
	if remaining <= 0 || l.State().Phase == loader.Failed {
		return nil
	}

	timer := h.opts.Clock.Timer(remaining)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
