package agui

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
)

var ErrStreamingUnsupported = errors.New("agui: response writer does not support flushing")

// Sink receives outbound frames.
type Sink interface {
	Send(frame any) error
	Done() error
}

// SetHeaders prepares a response for server-sent events.
func SetHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

// Writer frames each event as one "data:" line and flushes immediately. The
// first write error is latched and returned by every later call.
type Writer struct {
	mu  sync.Mutex
	w   io.Writer
	fl  http.Flusher
	err error
}

// NewWriter sets the SSE headers on w and returns a writer for it.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	fl, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	SetHeaders(w.Header())
	return &Writer{w: w, fl: fl}, nil
}

func (w *Writer) Send(frame any) error {
	raw, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("agui: encode frame: %w", err)
	}
	return w.writeData(raw)
}

func (w *Writer) Done() error {
	return w.writeData([]byte(DoneSentinel))
}

// Err returns the latched write error, if any.
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *Writer) writeData(payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	if _, err := fmt.Fprintf(w.w, "data: %s\n\n", payload); err != nil {
		w.err = err
		return err
	}
	w.fl.Flush()
	return nil
}
