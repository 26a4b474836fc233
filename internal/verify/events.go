package verify

import "sync"

// eventChannelBuffer is the per-listener event buffer. Slow listeners miss
// events instead of blocking the session loop.
const eventChannelBuffer = 16

// Event is a state-change notification emitted by a session, streamed to
// clients over SSE.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// eventBroadcaster provides listener management and event fan-out for a
// session. Embedded in Session to expose AddListener and RemoveListener.
type eventBroadcaster struct {
	listeners []chan Event
	lmu       sync.Mutex
}

// AddListener registers an event listener.
func (b *eventBroadcaster) AddListener() chan Event {
	b.lmu.Lock()
	defer b.lmu.Unlock()
	ch := make(chan Event, eventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener deregisters and closes an event listener.
func (b *eventBroadcaster) RemoveListener(ch chan Event) {
	b.lmu.Lock()
	defer b.lmu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// sendEvent delivers an event to all listeners, skipping full buffers.
func (b *eventBroadcaster) sendEvent(event Event) {
	b.lmu.Lock()
	defer b.lmu.Unlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
			// Listener buffer full, skip.
		}
	}
}
