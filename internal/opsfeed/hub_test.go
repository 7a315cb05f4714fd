package opsfeed

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
)

func TestHub_PublishReachesConnectedClient(t *testing.T) {
	hub := NewHub(4)
	go hub.Run()
	defer hub.Close()

	srv := httptest.NewServer(Handler(hub))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	assert := assert.New(t)
	assert.NoError(err)
	defer conn.Close()

	time.Sleep(20 * time.Millisecond) // let the register race settle
	hub.Publish(EventRaidDetected, map[string]string{"workspaceId": "ws1"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	assert.NoError(err)
	assert.Contains(string(payload), "raid.detected")
	assert.Contains(string(payload), "ws1")
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	hub := NewHub(4)
	go hub.Run()

	srv := httptest.NewServer(Handler(hub))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	assert.NoError(t, err)
	defer conn.Close()

	time.Sleep(20 * time.Millisecond)
	hub.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)
}
