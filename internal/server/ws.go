package server

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/ayusman/facegate/internal/app"
	"github.com/ayusman/facegate/internal/detector"
	"github.com/gorilla/websocket"
)

const writeWait = time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// Hub keeps the connected WebSocket clients and sends them JSON messages.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]bool)}
}

// ServeHTTP upgrades the request and keeps the client until it goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast sends v to every client. Clients that cannot keep up are
// dropped.
func (h *Hub) Broadcast(v any) {
	msg, err := json.Marshal(v)
	if err != nil {
		log.Printf("Failed to encode message: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.Close()
		delete(h.clients, conn)
	}
}

// resultMessage is the WebSocket message for a published result.
type resultMessage struct {
	Type   string     `json:"type"`
	Result app.Result `json:"result"`
}

// detectionsMessage is the WebSocket message for a live detection pass.
type detectionsMessage struct {
	Type       string               `json:"type"`
	Width      int                  `json:"width"`
	Height     int                  `json:"height"`
	Detections []detector.Detection `json:"detections"`
	Timestamp  int64                `json:"timestamp"`
}

// DetectionsHandler broadcasts the faces found in the latest camera frame
// to connected clients.
type DetectionsHandler struct {
	*Hub
	app      *app.App
	interval time.Duration

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewDetectionsHandler creates a DetectionsHandler that runs the detector
// every interval while clients are connected.
func NewDetectionsHandler(a *app.App, interval time.Duration) *DetectionsHandler {
	h := &DetectionsHandler{
		Hub:      NewHub(),
		app:      a,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go h.broadcast()
	return h
}

// broadcast sends detection data to all connected clients.
func (h *DetectionsHandler) broadcast() {
	defer close(h.done)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var lastSeq uint64
	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
		}

		if h.Clients() == 0 {
			continue
		}

		grabber := h.app.Grabber()
		det := h.app.Detector()
		if grabber == nil || det == nil {
			continue
		}

		frame, seq, err := grabber.Latest()
		if err != nil || seq == lastSeq {
			frame.Close()
			continue
		}
		lastSeq = seq

		faces, err := det.Detect(&frame)
		w, ht := frame.Cols(), frame.Rows()
		frame.Close()
		if err != nil {
			continue
		}
		if faces == nil {
			faces = []detector.Detection{}
		}

		h.Broadcast(detectionsMessage{
			Type:       "detections",
			Width:      w,
			Height:     ht,
			Detections: faces,
			Timestamp:  time.Now().UnixMilli(),
		})
	}
}

// Close stops the detection loop and disconnects every client.
func (h *DetectionsHandler) Close() {
	h.once.Do(func() {
		close(h.stop)
		<-h.done
		h.Hub.Close()
	})
}
