package http_api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/serayd61/Superchain-token-explorer-sub001/internal/models"
	"github.com/serayd61/Superchain-token-explorer-sub001/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxReadSize    = 512
	clientSendSize = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// FeedMessage is a single frame of the live token feed.
type FeedMessage struct {
	Type  string                  `json:"type"`
	Token *models.TokenDeployment `json:"token"`
}

type feedClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Feed broadcasts newly persisted tokens to websocket clients. Clients that
// cannot keep up are disconnected.
type Feed struct {
	logger *logger.Logger

	mu      sync.Mutex
	clients map[*feedClient]struct{}
	closed  bool
}

func NewFeed(logger *logger.Logger) *Feed {
	return &Feed{
		logger:  logger,
		clients: make(map[*feedClient]struct{}),
	}
}

// OnTokenDiscovered implements models.TokenListener.
func (f *Feed) OnTokenDiscovered(token *models.TokenDeployment) {
	msg, err := json.Marshal(FeedMessage{Type: "token", Token: token})
	if err != nil {
		f.logger.Error("Failed to encode feed message", "error", err)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for client := range f.clients {
		select {
		case client.send <- msg:
		default:
			f.logger.Warn("Dropping slow feed client", "remote", client.conn.RemoteAddr().String())
			delete(f.clients, client)
			close(client.send)
		}
	}
}

func (f *Feed) ClientCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

// Close disconnects every client and rejects new ones.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for client := range f.clients {
		delete(f.clients, client)
		close(client.send)
	}
}

func (f *Feed) register(client *feedClient) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.clients[client] = struct{}{}
	return true
}

func (f *Feed) unregister(client *feedClient) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.clients[client]; ok {
		delete(f.clients, client)
		close(client.send)
	}
}

// serveWS upgrades the request and blocks until the client goes away.
func (f *Feed) serveWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		f.logger.Debug("Websocket upgrade failed", "error", err)
		return
	}

	client := &feedClient{conn: conn, send: make(chan []byte, clientSendSize)}
	if !f.register(client) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}
	f.logger.Debug("Feed client connected", "remote", conn.RemoteAddr().String())

	go f.writePump(client)
	f.readPump(client)
}

func (f *Feed) writePump(client *feedClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only watches for the client closing; incoming frames are discarded.
func (f *Feed) readPump(client *feedClient) {
	defer f.unregister(client)

	client.conn.SetReadLimit(maxReadSize)
	_ = client.conn.SetReadDeadline(time.Now().Add(pongWait))
	client.conn.SetPongHandler(func(string) error {
		return client.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := client.conn.ReadMessage(); err != nil {
			return
		}
	}
}
