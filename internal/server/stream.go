package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// wsPingInterval is how often the server pings WebSocket clients.
	wsPingInterval = 30 * time.Second

	// wsPongWait is how long a WebSocket client may stay silent.
	wsPongWait = 2 * wsPingInterval

	// wsMaxMessage caps inbound WebSocket command size.
	wsMaxMessage = 4 << 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// dashboards are served from other origins, like the SSE endpoint
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleSSE streams snapshots and changes via Server-Sent Events.
//
// Every connected client first receives one "snapshot" event per view, then
// a "change" event for every published [store.Change]. The handler uses write
// deadlines so a slow or disconnected client cannot pin the goroutine.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)

	// may be unsupported by some ResponseWriter implementations
	deadlinesSupported := true

	writeAndFlush := func(event string, data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
				s.logger.Debug("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
			return err
		}
		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	for _, snap := range s.store.GetAll() {
		data, err := json.Marshal(snap)
		if err != nil {
			continue
		}
		if err := writeAndFlush("snapshot", data); err != nil {
			return
		}
	}

	for {
		select {
		case change, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(change)
			if err != nil {
				continue
			}
			if err := writeAndFlush("change", data); err != nil {
				return
			}

		case <-r.Context().Done():
			// fires on both client disconnect and server shutdown
			return
		}
	}
}

// wsCommand is a message sent by a WebSocket client.
type wsCommand struct {
	Type   string `json:"type"`
	View   string `json:"view"`
	Hidden bool   `json:"hidden"`
}

// wsMessage is a message sent to a WebSocket client.
type wsMessage struct {
	Type     string          `json:"type"`
	ClientID string          `json:"client_id,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// handleWebSocket streams the same snapshots and changes as SSE over a
// WebSocket and accepts gate commands from the client:
//
//	{"type":"modal_open","view":"autorizacion"}
//	{"type":"modal_close","view":"autorizacion"}
//	{"type":"visibility","view":"autorizacion","hidden":true}
//	{"type":"refresh","view":"autorizacion"}
//	{"type":"reload","view":"autorizacion"}
//	{"type":"ping"}
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	clientID := uuid.NewString()
	logger := s.logger.With("client_id", clientID)
	logger.Debug("websocket client connected")
	defer logger.Debug("websocket client disconnected")

	ch := s.store.Subscribe()
	defer s.store.Unsubscribe(ch)

	replies := make(chan wsMessage, 16)
	readDone := make(chan struct{})

	conn.SetReadLimit(wsMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	holds := newGateHolds()

	go func() {
		defer close(readDone)
		// a dropped client must not keep its views suspended
		defer s.releaseHolds(holds, logger)
		for {
			var cmd wsCommand
			if err := conn.ReadJSON(&cmd); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Debug("websocket read error", "error", err)
				}
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))

			select {
			case replies <- s.runCommand(cmd, holds):
			case <-r.Context().Done():
				return
			}
		}
	}()

	write := func(msg wsMessage) error {
		if err := conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
			return err
		}
		return conn.WriteJSON(msg)
	}

	if err := write(wsMessage{Type: "hello", ClientID: clientID}); err != nil {
		return
	}
	for _, snap := range s.store.GetAll() {
		if err := write(encodeMessage("snapshot", snap)); err != nil {
			return
		}
	}

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case change, ok := <-ch:
			if !ok {
				return
			}
			if err := write(encodeMessage("change", change)); err != nil {
				return
			}

		case msg := <-replies:
			if err := write(msg); err != nil {
				return
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteTimeout)); err != nil {
				return
			}

		case <-readDone:
			return

		case <-r.Context().Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
			return
		}
	}
}

// gateHolds tracks the gate reasons one WebSocket client acquired.
// It is only touched by that client's read goroutine.
type gateHolds struct {
	modals map[string]int
	hidden map[string]bool
}

func newGateHolds() *gateHolds {
	return &gateHolds{modals: make(map[string]int), hidden: make(map[string]bool)}
}

// releaseHolds closes the modals and clears the hidden flags a client left
// behind when it disconnected.
func (s *Server) releaseHolds(h *gateHolds, logger *slog.Logger) {
	for view, n := range h.modals {
		for range n {
			if _, err := s.views.CloseModal(view); err != nil {
				logger.Warn("release modal failed", "view", view, "error", err)
				break
			}
		}
	}
	for view, hidden := range h.hidden {
		if !hidden {
			continue
		}
		if _, err := s.views.SetHidden(view, false); err != nil {
			logger.Warn("release hidden failed", "view", view, "error", err)
		}
	}
}

// runCommand executes one WebSocket command and returns the reply. Gate
// reasons acquired by the command are recorded in holds.
func (s *Server) runCommand(cmd wsCommand, holds *gateHolds) wsMessage {
	var (
		state GateState
		err   error
	)

	switch cmd.Type {
	case "ping":
		return wsMessage{Type: "pong"}
	case "modal_open":
		if state, err = s.views.OpenModal(cmd.View); err == nil {
			holds.modals[cmd.View]++
		}
	case "modal_close":
		if state, err = s.views.CloseModal(cmd.View); err == nil && holds.modals[cmd.View] > 0 {
			holds.modals[cmd.View]--
		}
	case "visibility":
		if state, err = s.views.SetHidden(cmd.View, cmd.Hidden); err == nil {
			holds.hidden[cmd.View] = cmd.Hidden
		}
	case "refresh":
		if err = s.views.Refresh(cmd.View); err == nil {
			return wsMessage{Type: "refreshing", Data: mustJSON(map[string]string{"view": cmd.View})}
		}
	case "reload":
		if err = s.views.Reload(cmd.View); err == nil {
			return wsMessage{Type: "reloaded", Data: mustJSON(map[string]string{"view": cmd.View})}
		}
	default:
		err = fmt.Errorf("unknown command %q", cmd.Type)
	}

	if err != nil {
		return wsMessage{Type: "error", Error: err.Error()}
	}
	return encodeMessage("gate", state)
}

func encodeMessage(kind string, v any) wsMessage {
	data, err := json.Marshal(v)
	if err != nil {
		return wsMessage{Type: "error", Error: err.Error()}
	}
	return wsMessage{Type: kind, Data: data}
}

func mustJSON(v any) json.RawMessage {
	data, _ := json.Marshal(v)
	return data
}
