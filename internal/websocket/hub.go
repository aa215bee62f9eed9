package websocket

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/flexpertsdev/mitchly-music-generator-sub000/internal/model"
)

// Client represents a WebSocket subscriber for one band's pipeline
type Client struct {
	BandID string
	Conn   *websocket.Conn
	Send   chan []byte
}

// Hub fans pipeline events out to subscribers grouped by band id. Events
// without a band id (poll summaries) go to every subscriber.
type Hub struct {
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMessage

	mu sync.RWMutex
}

type broadcastMessage struct {
	BandID  string
	Message []byte
}

// NewHub creates a new Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMessage, 256),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.BandID] == nil {
				h.clients[client.BandID] = make(map[*Client]bool)
			}
			h.clients[client.BandID][client] = true
			h.mu.Unlock()
			log.Printf("Client registered for band %s", client.BandID)

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.BandID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(h.clients, client.BandID)
					}
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			targets := h.clients[msg.BandID]
			if msg.BandID == "" {
				// Broadcast to all subscribers
				for _, clients := range h.clients {
					deliver(clients, msg.Message)
				}
			} else {
				deliver(targets, msg.Message)
			}
			h.mu.RUnlock()
		}
	}
}

func deliver(clients map[*Client]bool, message []byte) {
	for client := range clients {
		select {
		case client.Send <- message:
		default:
			// Slow consumer; drop the event rather than block the hub
		}
	}
}

// BroadcastEvent publishes a pipeline event to the band's subscribers.
// The send is non-blocking so pipeline code never stalls on the hub.
func (h *Hub) BroadcastEvent(event *model.PipelineEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("Failed to marshal pipeline event: %v", err)
		return
	}

	select {
	case h.broadcast <- &broadcastMessage{BandID: event.BandID, Message: data}:
	default:
		log.Printf("Event buffer full, dropping %s for band %s", event.Type, event.BandID)
	}
}

// HandleConnection services one WebSocket subscription until it closes
func (h *Hub) HandleConnection(c *websocket.Conn, bandID string) {
	client := &Client{
		BandID: bandID,
		Conn:   c,
		Send:   make(chan []byte, 256),
	}

	h.register <- client
	defer func() { h.unregister <- client }()

	// Writer goroutine with keep-alive pings
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop; the client sends nothing we act on besides close
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			break
		}
	}
}
