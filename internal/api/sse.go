package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"go.uber.org/zap"
)

// eventStream writes server-sent events. Sends are serialized with a
// mutex because batch members report from separate goroutines.
type eventStream struct {
	mu sync.Mutex
	w  io.Writer
	f  http.Flusher
}

func newEventStream(w io.Writer, f http.Flusher) *eventStream {
	return &eventStream{w: w, f: f}
}

// send marshals the payload and writes one frame. A write error means the
// client is gone; the run keeps going, so the error is only logged.
func (s *eventStream) send(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		zap.L().Warn("api: marshal event payload", zap.String("event", event), zap.Error(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		zap.L().Debug("api: event write failed", zap.String("event", event), zap.Error(err))
		return
	}
	s.f.Flush()
}
