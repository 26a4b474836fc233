package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/codewithmutahir/timeclock/internal/verify"
)

// sendSSEEvent writes one server-sent event and flushes it.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	flusher.Flush()
}

// streamSessionEvents sets up SSE headers and relays session events until
// the session shuts down, the client disconnects, or the listener channel
// closes. Error states are streamed but do not end the stream, since the
// client may retry.
func streamSessionEvents(w http.ResponseWriter, r *http.Request, sess *verify.Session) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	eventCh := sess.AddListener()
	defer sess.RemoveListener(eventCh)

	sendSSEEvent(w, flusher, "status", sess.Snapshot())

	for {
		select {
		case <-r.Context().Done():
			return
		case <-sess.Done():
			sendSSEEvent(w, flusher, "closed", sess.Snapshot())
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, event.Type, event.Data)
		}
	}
}
