// Serialmux provides an abstraction over a serial port with the ability
// for multiple clients to subscribe to byte chunks received from a single
// serial port device. The LD06 stream is binary with no delimiters, so
// the mux forwards raw read chunks rather than scanned lines; framing is
// the subscriber's concern.
package serialmux

import (
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"sync"

	"tailscale.com/tsweb"
)

// readBufferSize is the per-read buffer. The LD06 emits 47-byte frames at
// 230400 baud; 4KiB comfortably covers a polling interval.
const readBufferSize = 4096

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// falls further behind than this has chunks dropped rather than stalling
// the read loop.
const subscriberBuffer = 64

// SerialMux is a generic serial port multiplexer that allows multiple
// clients to subscribe to byte chunks from a single serial port.
type SerialMux[T SerialPorter] struct {
	port         T
	subscribers  map[string]chan []byte
	subscriberMu sync.Mutex
	closing      bool
	closingMu    sync.Mutex

	statsMu    sync.Mutex
	bytesRead  int64
	chunksRead int64
	dropped    int64
}

// SerialMuxInterface defines the interface for the SerialMux type.
type SerialMuxInterface interface {
	// Subscribe creates a new channel for receiving byte chunks from the
	// serial port. The channel ID identifies the unique channel when
	// unsubscribing. Each delivered chunk is an independent copy.
	Subscribe() (string, chan []byte)
	// Unsubscribe removes a channel from the list of subscribers.
	Unsubscribe(string)
	// Monitor reads chunks from the serial port and fans them out to
	// subscriber channels until the context is cancelled or the port
	// reaches EOF.
	Monitor(context.Context) error
	// Close closes all subscribed channels and closes the serial port.
	Close() error

	// AttachAdminRoutes attaches admin debugging endpoints to the given
	// HTTP mux served at /debug/. These routes are accessible only over
	// localhost/via Tailscale and are not publicly accessible.
	AttachAdminRoutes(*http.ServeMux)
}

// NewSerialMux creates a SerialMux instance backed by the given port.
func NewSerialMux[T SerialPorter](port T) *SerialMux[T] {
	return &SerialMux[T]{
		port:        port,
		subscribers: make(map[string]chan []byte),
	}
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

func (s *SerialMux[T]) Subscribe() (string, chan []byte) {
	id := randomID()
	ch := make(chan []byte, subscriberBuffer)
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	s.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber from the serial mux.
func (s *SerialMux[T]) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	if ch, ok := s.subscribers[id]; ok {
		close(ch)
		delete(s.subscribers, id)
	}
}

// Stats returns cumulative bytes read, chunks read, and chunks dropped
// across all subscribers.
func (s *SerialMux[T]) Stats() (bytes, chunks, dropped int64) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.bytesRead, s.chunksRead, s.dropped
}

// Monitor monitors the serial port for data and sends chunks to subscribers.
// Returns nil when the port reaches EOF (replay files end this way).
func (s *SerialMux[T]) Monitor(ctx context.Context) error {
	chunkChan := make(chan []byte)
	readErrChan := make(chan error, 1)

	// Read from the serial port in its own goroutine so the blocking Read
	// does not interfere with the outer loop awaiting chunks & context
	// cancellation. Every forwarded chunk is copied out of the read
	// buffer before handoff.
	go func() {
		defer close(chunkChan)
		buf := make([]byte, readBufferSize)
		for {
			n, err := s.port.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case chunkChan <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if err != io.EOF {
					select {
					case readErrChan <- err:
					case <-ctx.Done():
					}
				}
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err := <-readErrChan:
			return err

		case chunk, ok := <-chunkChan:
			// if the channel is closed, we're done reading from the serial port
			if !ok {
				select {
				case err := <-readErrChan:
					return err
				default:
					return nil
				}
			}

			s.closingMu.Lock()
			if s.closing {
				s.closingMu.Unlock()
				return nil
			}
			s.closingMu.Unlock()

			s.statsMu.Lock()
			s.bytesRead += int64(len(chunk))
			s.chunksRead++
			s.statsMu.Unlock()

			s.subscriberMu.Lock()
			for _, ch := range s.subscribers {
				select {
				case ch <- chunk:
				default:
					// subscriber is full; drop rather than block the read loop
					s.statsMu.Lock()
					s.dropped++
					s.statsMu.Unlock()
				}
			}
			s.subscriberMu.Unlock()
		}
	}
}

func (s *SerialMux[T]) Close() error {
	s.closingMu.Lock()
	s.closing = true
	s.closingMu.Unlock()

	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	return s.port.Close()
}

func (s *SerialMux[T]) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	// API endpoint to issue Server-Side Events (SSE) carrying hex dumps
	// of chunks coming from the serial port.
	debug.HandleSilentFunc("tail", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

		id, c := s.Subscribe()
		defer s.Unsubscribe(id)

		// Send initial ping to establish connection
		w.Write([]byte(": ping\n\n"))
		w.(http.Flusher).Flush()

		for {
			select {
			case chunk, ok := <-c:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", hex.EncodeToString(chunk)); err != nil {
					return
				}
				w.(http.Flusher).Flush()
			case <-r.Context().Done():
				return
			}
		}
	})

	debug.HandleSilentFunc("serial-stats", func(w http.ResponseWriter, r *http.Request) {
		bytes, chunks, dropped := s.Stats()
		fmt.Fprintf(w, "bytes=%d chunks=%d dropped=%d\n", bytes, chunks, dropped)
	})
}
