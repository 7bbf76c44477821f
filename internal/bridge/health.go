package bridge

import (
	"net/http"
	"sync/atomic"
)

// Health is the single mutable flag reflecting subscription status, read by
// the liveness probe. It only ever holds 200 or 503.
type Health struct {
	code atomic.Int32
}

// NewHealth returns a Health starting unavailable (503): the bridge is not
// healthy until the first subscription confirmation arrives.
func NewHealth() *Health {
	h := &Health{}
	h.code.Store(http.StatusServiceUnavailable)
	return h
}

// Status returns the current HTTP status code. Pure read, never blocks.
func (h *Health) Status() int {
	return int(h.code.Load())
}

func (h *Health) setAvailable() {
	h.code.Store(http.StatusOK)
}

func (h *Health) setUnavailable() {
	h.code.Store(http.StatusServiceUnavailable)
}
