package render

import (
	"context"
	"io"

	"notionblog/internal/imageref"
	"notionblog/internal/loader"

	"github.com/a-h/templ"
)

type FrameStatus int

const (
	FrameReady FrameStatus = iota
	FrameRefreshing
	FrameFailed
)

// Frame is the patchable element wrapping one image. Its id is the
// reference's ElementID so live responses can replace it in place.
type Frame struct {
	Ref      imageref.Reference
	Snapshot loader.Snapshot
	Alt      string
	Status   FrameStatus
	// Endpoint overrides DefaultLiveEndpoint.
	Endpoint string
}

// FrameFromState picks the frame status for a loader's state. A loader that
// is still refreshing keeps showing its current URL and lets the browser
// report the next failure.
func FrameFromState(ref imageref.Reference, state loader.State, snap loader.Snapshot, alt string) Frame {
	status := FrameReady
	if state.Phase == loader.Failed {
		status = FrameFailed
	}

	return Frame{Ref: ref, Snapshot: snap, Alt: alt, Status: status}
}

func (f Frame) Component() templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var out htmlWriter
		f.write(&out)
		_, err := io.WriteString(w, out.String())
		return err
	})
}

func (f Frame) write(out *htmlWriter) {
	id := f.Ref.ElementID()
	live := LiveRequest{Ref: f.Ref, Snapshot: f.Snapshot, Alt: f.Alt}

	switch f.Status {
	case FrameRefreshing:
		out.raw(`<div id="`, id, `" class="image-frame is-refreshing" aria-busy="true">`)
		out.raw(`<span class="image-status">Refreshing image…</span></div>`)
	case FrameFailed:
		live.Reset = true
		out.raw(`<div id="`, id, `" class="image-frame is-failed">`)
		out.raw(`<p class="image-status">Could not load image</p>`)
		out.raw(`<button type="button" class="image-retry" data-on:click="`)
		out.attr(getAction(LiveURL(f.Endpoint, live)))
		out.raw(`">Retry</button></div>`)
	default:
		out.raw(`<div id="`, id, `" class="image-frame">`)
		out.raw(`<img src="`)
		out.attr(string(templ.URL(f.Snapshot.URL)))
		out.raw(`" alt="`)
		out.attr(f.Alt)
		out.raw(`" loading="lazy" decoding="async" data-on:error="`)
		out.attr(getAction(LiveURL(f.Endpoint, live)))
		out.raw(`"></div>`)
	}
}

func getAction(target string) string {
	return "@get('" + target + "')"
}
