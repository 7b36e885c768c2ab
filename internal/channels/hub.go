// Package channels implements the four built-in feature channels (spec
// §4.9 / component C9): config://, logs://, recorder://, worker://.
//
// Grounded on the teacher's RecordServer (record.go, a mutex-guarded
// append-only exchange buffer) for the logs Hub, and on
// handleRecordAdmin-style admin-mutation handlers for the config and
// recorder POST bodies, generalized from the teacher's single
// "exchanges" concept to the spec's distinct config-diff, log-record and
// recorder-exchange event kinds sharing one resumable sequence.
package channels

import "sync"

// Event is a single envelope pushed to logs:// subscribers.
type Event struct {
	Seq     uint64 `json:"seq"`
	Kind    string `json:"kind"` // "log", "config" or "recorder"
	Payload any    `json:"payload"`
}

// Hub fans Events out to logs:// subscribers and retains them so a
// reconnecting client can resume with Since, per spec §4.9 ("resumes
// missed records via a monotonic sequence number sent on reconnect").
//
// Subscribers are tracked by an opaque id (spec §3 Ownership:
// "subscribers hold weak references (by id) to the logs channel —
// cleanup on disconnect"), so a dropped connection's cleanup is just
// removing its id from the map rather than chasing down a live
// reference to its socket.
type Hub struct {
	mu          sync.Mutex
	nextSeq     uint64
	nextSubID   uint64
	buffer      []Event
	subscribers map[uint64]chan Event
}

// NewHub builds an empty Hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[uint64]chan Event)}
}

// Publish records an event and fans it out to every live subscriber. A
// subscriber whose channel is full does not block the publisher — it
// simply misses the live push and must catch up via Since on its next
// reconnect.
func (h *Hub) Publish(kind string, payload any) Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextSeq++
	event := Event{Seq: h.nextSeq, Kind: kind, Payload: payload}
	h.buffer = append(h.buffer, event)
	for _, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
	return event
}

// Subscribe registers a new subscriber, returning its id, a channel of
// events published from this point forward, and an unsubscribe func
// that must be called exactly once when the caller's connection closes.
func (h *Hub) Subscribe() (id uint64, events <-chan Event, unsubscribe func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextSubID++
	id = h.nextSubID
	ch := make(chan Event, 64)
	h.subscribers[id] = ch
	return id, ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if existing, ok := h.subscribers[id]; ok {
			delete(h.subscribers, id)
			close(existing)
		}
	}
}

// Since returns every buffered event with Seq greater than seq, in
// publish order, for a reconnecting client to replay what it missed.
func (h *Hub) Since(seq uint64) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Event, 0)
	for _, e := range h.buffer {
		if e.Seq > seq {
			out = append(out, e)
		}
	}
	return out
}
