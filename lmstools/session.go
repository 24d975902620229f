package lmstools

import (
	"sync"

	"github.com/flitsinc/go-lms/lms"
)

// SessionHolder keeps the session of the single student a tool server acts
// for. It is safe for concurrent use.
type SessionHolder struct {
	mu   sync.RWMutex
	sess lms.Session
}

func (h *SessionHolder) Get() lms.Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sess
}

func (h *SessionHolder) Set(sess lms.Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sess = sess
}

// Clear resets the holder to the unauthenticated session.
func (h *SessionHolder) Clear() {
	h.Set(lms.Session{})
}
