package events

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"vton-proxy-server/modules/common/model"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// 게이트웨이 뒤에서 동작 - 모든 origin 허용
		return true
	},
}

// Client - 연결된 WebSocket 구독자
// product가 비어있으면 모든 상품의 이벤트를 수신
type Client struct {
	id      string
	conn    *websocket.Conn
	product string
	send    chan []byte
}

// Hub - try-on 완료 이벤트 WebSocket 허브
type Hub struct {
	clients map[*Client]bool
	mutex   sync.RWMutex
}

// NewHub - Hub 생성
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
	}
}

// HandleWebSocket - GET /ws/try-on?product=<id>
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("❌ [Events] WebSocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		id:      uuid.New().String()[:8],
		conn:    conn,
		product: r.URL.Query().Get("product"),
		send:    make(chan []byte, 64),
	}

	h.addClient(client)

	go client.writePump()
	go client.readPump(h)
}

// Broadcast - 구독 중인 클라이언트에게 이벤트 전송
func (h *Hub) Broadcast(event model.TryOnEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("❌ [Events] Failed to marshal event: %v", err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	sent := 0
	for client := range h.clients {
		if client.product != "" && client.product != event.ProductID {
			continue
		}

		select {
		case client.send <- payload:
			sent++
		default:
			// 수신이 막힌 클라이언트는 정리
			close(client.send)
			delete(h.clients, client)
		}
	}

	if sent > 0 {
		log.Printf("📢 [Events] Broadcasted %s for product %s to %d clients", event.Type, event.ProductID, sent)
	}
}

// ClientCount - 현재 연결된 클라이언트 수 (metrics용)
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *Hub) addClient(client *Client) {
	h.mutex.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.mutex.Unlock()

	log.Printf("👤 [Events] Client %s subscribed (product: %q, total: %d)", client.id, client.product, count)
}

func (h *Hub) removeClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, exists := h.clients[client]; exists {
		close(client.send)
		delete(h.clients, client)
		log.Printf("👋 [Events] Client %s disconnected (remaining: %d)", client.id, len(h.clients))
	}
}

// readPump - 클라이언트 메시지는 무시하고 연결 종료만 감지
func (c *Client) readPump(h *Hub) {
	defer func() {
		h.removeClient(c)
		c.conn.Close()
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("❌ [Events] WebSocket error: %v", err)
			}
			break
		}
	}
}

// writePump - 이벤트를 클라이언트로 전송
func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("❌ [Events] WebSocket write error: %v", err)
			return
		}
	}

	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}
