package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/eargollo/frisk/internal/search"
)

// subscriberBuffer is how many events a client may lag behind before it is
// disconnected.
const subscriberBuffer = 256

// Event is one server-sent event.
type Event struct {
	Name string
	Data any
}

// stateEvent adds the error text that search.State does not serialise.
type stateEvent struct {
	search.State
	Error string `json:"error,omitempty"`
}

// Hub fans engine notifications out to SSE clients. Pokes of superseded
// generations are dropped; state changes are always forwarded.
type Hub struct {
	current   func() uint64
	keepAlive time.Duration

	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewHub creates a Hub. current reports the engine's current generation.
func NewHub(current func() uint64) *Hub {
	return &Hub{
		current:   current,
		keepAlive: 15 * time.Second,
		subs:      make(map[chan Event]struct{}),
	}
}

// PublishPoke forwards p if it belongs to the current generation.
func (h *Hub) PublishPoke(p search.Poke) {
	if p.Generation != h.current() {
		return
	}
	h.publish(Event{Name: "poke", Data: p})
}

// PublishState forwards a state change.
func (h *Hub) PublishState(st search.State) {
	ev := stateEvent{State: st}
	if st.Err != nil {
		ev.Error = st.Err.Error()
	}
	h.publish(Event{Name: "state", Data: ev})
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			slog.Warn("events: dropping slow client")
			delete(h.subs, ch)
			close(ch)
		}
	}
}

func (h *Hub) subscribe() chan Event {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unsubscribe(ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

// ServeHTTP handles GET /api/events as a text/event-stream.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "STREAMING_UNSUPPORTED", "Streaming is not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ch := h.subscribe()
	defer h.unsubscribe(ch)

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case ev, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(ev.Data)
			if err != nil {
				slog.Error("events: encode", "event", ev.Name, "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Name, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
