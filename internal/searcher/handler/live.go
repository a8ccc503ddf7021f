package handler

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Adithya-Monish-Kumar-K/content-search/internal/searcher/debounce"
	"github.com/Adithya-Monish-Kumar-K/content-search/pkg/logger"
)

const (
	liveWriteWait  = 10 * time.Second
	livePongWait   = 60 * time.Second
	livePingPeriod = livePongWait * 9 / 10
	liveMaxFrame   = 4096
)

// liveFrame is a client keystroke. Clear resets the session.
type liveFrame struct {
	Term   string `json:"term"`
	Filter string `json:"filter"`
	Limit  int    `json:"limit"`
	Clear  bool   `json:"clear"`
}

// Live upgrades to a WebSocket and runs one debounced session per
// connection. Every session state change is pushed as a snapshot frame.
// It must not be wrapped by the Timeout middleware.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	var (
		writeMu sync.Mutex
		closed  bool
	)
	write := func(v any) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if closed {
			return
		}
		conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
		if err := conn.WriteJSON(v); err != nil {
			log.Debug("live write failed", "error", err)
		}
	}

	session := debounce.New(r.Context(), h.router, debounce.Config{
		Delay:    h.cfg.DebounceDelay,
		OnChange: func(s debounce.Snapshot) { write(s) },
		Metrics:  h.cfg.Metrics,
	})
	defer func() {
		session.Close()
		writeMu.Lock()
		closed = true
		writeMu.Unlock()
	}()

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(livePingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				writeMu.Lock()
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(liveWriteWait))
				writeMu.Unlock()
				if err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()

	conn.SetReadLimit(liveMaxFrame)
	conn.SetReadDeadline(time.Now().Add(livePongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(livePongWait))
	})

	log.Info("live search session opened")
	for {
		var frame liveFrame
		if err := conn.ReadJSON(&frame); err != nil {
			var closeErr *websocket.CloseError
			if !errors.As(err, &closeErr) || websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("live session read ended", "error", err)
			}
			break
		}
		conn.SetReadDeadline(time.Now().Add(livePongWait))
		if frame.Clear {
			session.Clear()
			continue
		}
		session.Input(h.newQuery(frame.Term, frame.Filter, frame.Limit))
	}
	log.Info("live search session closed")
}
