package runapi

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// SSEWriter writes Server-Sent Events to an http.ResponseWriter.
// Call Init once before writing any events to set the required headers.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter creates a new SSEWriter wrapping the given ResponseWriter.
// If w does not implement http.Flusher, writes still succeed but may be
// buffered.
func NewSSEWriter(w http.ResponseWriter) *SSEWriter {
	f, _ := w.(http.Flusher)
	return &SSEWriter{
		w:       w,
		flusher: f,
	}
}

// Init sets the SSE response headers and flushes them to the client.
func (sw *SSEWriter) Init() {
	h := sw.w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	sw.w.WriteHeader(http.StatusOK)
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
}

// WriteEvent serializes the Event as JSON and writes it in SSE format:
//
//	data: {json}\n\n
//
// and flushes so the client receives it immediately.
func (sw *SSEWriter) WriteEvent(event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("sse: marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(sw.w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("sse: write event: %w", err)
	}
	if sw.flusher != nil {
		sw.flusher.Flush()
	}
	return nil
}

// ReadEvents reads SSE events from body and delivers them on the returned
// channel. The channel is closed when the body is exhausted, a read error
// occurs, or ctx is cancelled. The body is closed when reading finishes.
//
// Lines prefixed with "data:" carry the JSON payload and are joined with
// newlines until an empty line ends the event. Comment lines (":") and
// other fields are ignored. Malformed JSON yields an Event with Err set and
// reading continues.
func ReadEvents(ctx context.Context, body io.ReadCloser) <-chan Event {
	ch := make(chan Event)
	go func() {
		defer close(ch)
		defer body.Close()

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		var dataBuf strings.Builder

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			if !scanner.Scan() {
				if dataBuf.Len() > 0 {
					emit(ctx, ch, dataBuf.String())
				}
				if err := scanner.Err(); err != nil {
					sendEvent(ctx, ch, Event{Err: fmt.Errorf("sse: read: %w", err)})
				}
				return
			}

			line := scanner.Text()
			switch {
			case line == "":
				if dataBuf.Len() > 0 {
					emit(ctx, ch, dataBuf.String())
					dataBuf.Reset()
				}
			case strings.HasPrefix(line, ":"):
			case strings.HasPrefix(line, "data:"):
				payload := strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")
				if dataBuf.Len() > 0 {
					dataBuf.WriteByte('\n')
				}
				dataBuf.WriteString(payload)
			}
		}
	}()
	return ch
}

// emit unmarshals raw into an Event and sends it on ch.
func emit(ctx context.Context, ch chan<- Event, raw string) {
	var ev Event
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		ev = Event{Err: fmt.Errorf("sse: unmarshal event: %w", err)}
	}
	sendEvent(ctx, ch, ev)
}

func sendEvent(ctx context.Context, ch chan<- Event, ev Event) {
	select {
	case ch <- ev:
	case <-ctx.Done():
	}
}
