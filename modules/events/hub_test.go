package events

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"vton-proxy-server/modules/common/model"
)

func dialHub(t *testing.T, hub *Hub, product string) *websocket.Conn {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(hub.HandleWebSocket))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	if product != "" {
		url += "?product=" + product
	}

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return conn
}

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() < want {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d clients (have %d)", want, hub.ClientCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHubBroadcastsToSubscribers(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "P1")
	waitForClients(t, hub, 1)

	hub.Broadcast(model.TryOnEvent{
		Type:      model.EventTryOnCompleted,
		ProductID: "P1",
		ImageID:   "img-1",
		CreatedAt: time.Now().UTC(),
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read broadcast: %v", err)
	}

	var event model.TryOnEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		t.Fatalf("failed to parse broadcast payload: %v", err)
	}
	if event.ImageID != "img-1" || event.ProductID != "P1" {
		t.Errorf("event = %+v", event)
	}
}

func TestHubFiltersByProduct(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "P2")
	waitForClients(t, hub, 1)

	hub.Broadcast(model.TryOnEvent{
		Type:      model.EventTryOnCompleted,
		ProductID: "P1",
		ImageID:   "img-1",
	})

	conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("client subscribed to P2 received event for P1")
	}
}

func TestHubBroadcastsToAllWhenNoProductFilter(t *testing.T) {
	hub := NewHub()
	conn := dialHub(t, hub, "")
	waitForClients(t, hub, 1)

	hub.Broadcast(model.TryOnEvent{
		Type:      model.EventTryOnCompleted,
		ProductID: "P1",
		ImageID:   "img-1",
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("unfiltered client did not receive event: %v", err)
	}
}
