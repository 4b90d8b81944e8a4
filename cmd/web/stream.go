package main

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"lookbook-studio/internal/lookbook"
)

const streamWriteWait = 10 * time.Second

// streamEvent is one frame on the generation websocket.
type streamEvent struct {
	Type      string              `json:"type"` // phase, variation, done, error
	Phase     lookbook.Phase      `json:"phase,omitempty"`
	Status    string              `json:"status,omitempty"`
	Variation *lookbook.Variation `json:"variation,omitempty"`
	Count     int                 `json:"count,omitempty"`
	Result    *lookbook.RunResult `json:"result,omitempty"`
	Error     string              `json:"error,omitempty"`
}

// streamWriter serializes writes; gorilla connections allow one writer at a time.
type streamWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (sw *streamWriter) send(ev streamEvent) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	_ = sw.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return sw.conn.WriteJSON(ev)
}

func (s *server) handleGenerateStream(w http.ResponseWriter, r *http.Request) {
	var (
		id     string
		header http.Header
	)
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		id = c.Value
	} else {
		id = uuid.NewString()
		header = http.Header{}
		header.Add("Set-Cookie", newSessionCookie(id).String())
	}

	conn, err := s.upgrader.Upgrade(w, r, header)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The client never sends anything meaningful; a read error means it left.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	sw := &streamWriter{conn: conn}
	obs := lookbook.ObserverFuncs{
		Phase: func(phase lookbook.Phase, status string) {
			_ = sw.send(streamEvent{Type: "phase", Phase: phase, Status: status})
		},
		Variation: func(v lookbook.Variation, visible []lookbook.Variation) {
			_ = sw.send(streamEvent{Type: "variation", Variation: &v, Count: len(visible)})
		},
	}

	sess := s.sessions.Get(id)
	result, err := sess.Generate(ctx, obs)
	if err != nil {
		_ = sw.send(streamEvent{Type: "error", Error: err.Error()})
		s.closeStream(sw)
		return
	}
	s.afterRun(result)

	_ = sw.send(streamEvent{Type: "done", Result: &result, Error: result.Error})
	s.closeStream(sw)
}

func (s *server) closeStream(sw *streamWriter) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = sw.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}
