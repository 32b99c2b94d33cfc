package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
)

// Event is one Server-Sent Event from an operation stream. Name is the value
// of the "event:" field ("" for unnamed events), Data is the raw JSON payload
// of the "data:" field(s). Err is set instead when the stream failed mid-read.
type Event struct {
	Name string
	Data json.RawMessage
	Err  error
}

// ReadEvents parses Server-Sent Events from body and delivers them on the
// returned channel. The channel is closed when the body is exhausted, an
// unrecoverable read error occurs, or ctx is cancelled. The body is closed
// when reading finishes.
//
// Framing rules applied:
//   - "event:" names the next event.
//   - "data:" lines carry the payload; multiple data lines within one event
//     are joined with newlines before delivery.
//   - Lines starting with ":" are comments and are ignored.
//   - An empty line dispatches the accumulated event.
//   - Other fields ("id:", "retry:") are ignored.
func ReadEvents(ctx context.Context, body io.ReadCloser) <-chan Event {
	ch := make(chan Event)
	go func() {
		defer close(ch)
		defer body.Close()

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		var name string
		var data strings.Builder

		dispatch := func() {
			if data.Len() == 0 && name == "" {
				return
			}
			ev := Event{Name: name, Data: json.RawMessage(data.String())}
			name = ""
			data.Reset()
			select {
			case ch <- ev:
			case <-ctx.Done():
			}
		}

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			if !scanner.Scan() {
				// Emit any accumulated data when the stream ends; a read
				// error surfaces as a final Err event so consumers can tell
				// a severed stream from a clean close.
				dispatch()
				if err := scanner.Err(); err != nil && ctx.Err() == nil {
					select {
					case ch <- Event{Err: err}:
					case <-ctx.Done():
					}
				}
				return
			}

			line := scanner.Text()
			switch {
			case line == "":
				dispatch()
			case strings.HasPrefix(line, ":"):
				// Comment, often used as a keep-alive.
			case strings.HasPrefix(line, "event:"):
				name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				payload := strings.TrimPrefix(line, "data:")
				payload = strings.TrimPrefix(payload, " ")
				if data.Len() > 0 {
					data.WriteByte('\n')
				}
				data.WriteString(payload)
			default:
				// Unknown field, ignore per the SSE spec.
			}
		}
	}()
	return ch
}
