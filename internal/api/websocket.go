package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"nhooyr.io/websocket"
)

// ──────────────────── WebSocket Hub ────────────────────

type WSHub struct {
	mu           sync.RWMutex
	clients      map[*WSClient]bool
	activeBuilds map[string]json.RawMessage // buildId → last hero:progress payload
	buildsMu     sync.RWMutex
}

type WSClient struct {
	conn *websocket.Conn
	send chan []byte
}

type WSMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

func NewWSHub() *WSHub {
	return &WSHub{
		clients:      make(map[*WSClient]bool),
		activeBuilds: make(map[string]json.RawMessage),
	}
}

func (h *WSHub) Broadcast(event string, data interface{}) {
	msg, err := json.Marshal(WSMessage{Event: event, Data: data})
	if err != nil {
		return
	}

	// Track in-progress builds so new clients get current state. A
	// hero:complete event carries done=true and clears the entry.
	if event == "hero:progress" || event == "hero:complete" {
		h.trackBuild(data, msg)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
		}
	}
}

// trackBuild keeps the latest progress event per build until it completes.
func (h *WSHub) trackBuild(data interface{}, raw []byte) {
	var ev struct {
		BuildID string `json:"buildId"`
		Done    bool   `json:"done"`
	}
	encoded, err := json.Marshal(data)
	if err != nil || json.Unmarshal(encoded, &ev) != nil || ev.BuildID == "" {
		return
	}

	h.buildsMu.Lock()
	defer h.buildsMu.Unlock()
	if ev.Done {
		delete(h.activeBuilds, ev.BuildID)
	} else {
		h.activeBuilds[ev.BuildID] = json.RawMessage(raw)
	}
}

// sendActiveBuilds replays current build state to a newly connected client.
func (h *WSHub) sendActiveBuilds(client *WSClient) {
	h.buildsMu.RLock()
	defer h.buildsMu.RUnlock()
	for _, msg := range h.activeBuilds {
		select {
		case client.send <- msg:
		default:
		}
	}
}

func (h *WSHub) addClient(c *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
}

func (h *WSHub) removeClient(c *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		close(c.send)
		delete(h.clients, c)
	}
}

func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ──────────────────── WebSocket Handler ────────────────────

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Printf("WebSocket accept error: %v", err)
		return
	}

	client := &WSClient{
		conn: conn,
		send: make(chan []byte, 64),
	}

	s.wsHub.addClient(client)
	s.wsHub.sendActiveBuilds(client)
	log.Printf("WebSocket client connected: %s", r.RemoteAddr)

	ctx := r.Context()

	// Writer goroutine
	go func() {
		defer conn.Close(websocket.StatusNormalClosure, "")
		for msg := range client.send {
			if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}()

	// Reader loop (keep connection alive, handle pings)
	for {
		_, _, err := conn.Read(ctx)
		if err != nil {
			break
		}
	}

	s.wsHub.removeClient(client)
	log.Printf("WebSocket client disconnected: %s", r.RemoteAddr)
}
