package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"golem/internal/protocol"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The API only listens on loopback
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSManager handles WebSocket connections and broadcasting
type WSManager struct {
	server     *Server
	clients    map[*WebSocketClient]bool
	clientsMu  sync.Mutex
	broadcast  chan protocol.Message
	register   chan *WebSocketClient
	unregister chan *WebSocketClient
	shutdown   chan struct{}
	stopOnce   sync.Once
}

// WebSocketClient represents a connected status viewer
type WebSocketClient struct {
	manager *WSManager
	conn    *websocket.Conn
	send    chan []byte
	ip      string
}

func newWSManager(s *Server) *WSManager {
	return &WSManager{
		server:     s,
		clients:    make(map[*WebSocketClient]bool),
		broadcast:  make(chan protocol.Message),
		register:   make(chan *WebSocketClient),
		unregister: make(chan *WebSocketClient),
		shutdown:   make(chan struct{}),
	}
}

func (m *WSManager) start() {
	for {
		select {
		case client := <-m.register:
			m.clientsMu.Lock()
			m.clients[client] = true
			n := len(m.clients)
			m.clientsMu.Unlock()
			log.Printf("WS: New client registered from %s. Total clients: %d", client.ip, n)

			// new clients get the current state right away
			client.sendMessage(protocol.Message{Type: protocol.TypeStatus, Payload: m.server.ctrl.Status()})

		case client := <-m.unregister:
			m.clientsMu.Lock()
			if _, ok := m.clients[client]; ok {
				delete(m.clients, client)
				close(client.send)
				log.Printf("WS: Client unregistered from %s. Total clients: %d", client.ip, len(m.clients))
			}
			m.clientsMu.Unlock()

		case message := <-m.broadcast:
			m.broadcastMessage(message)

		case <-m.shutdown:
			m.clientsMu.Lock()
			for client := range m.clients {
				delete(m.clients, client)
				close(client.send)
			}
			m.clientsMu.Unlock()
			return
		}
	}
}

func (m *WSManager) stop() {
	m.stopOnce.Do(func() { close(m.shutdown) })
}

// forwardStatus relays orchestrator status changes to every client
func (m *WSManager) forwardStatus() {
	updates, cancel := m.server.ctrl.Subscribe()
	defer cancel()

	for {
		select {
		case st, ok := <-updates:
			if !ok {
				return
			}
			select {
			case m.broadcast <- protocol.Message{Type: protocol.TypeStatus, Payload: st}:
			case <-m.shutdown:
				return
			}
		case <-m.shutdown:
			return
		}
	}
}

func (m *WSManager) broadcastMessage(message protocol.Message) {
	jsonMsg, err := json.Marshal(message)
	if err != nil {
		log.Printf("WS: Failed to marshal broadcast message: %v", err)
		return
	}

	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()

	for client := range m.clients {
		select {
		case client.send <- jsonMsg:
		default:
			close(client.send)
			delete(m.clients, client)
		}
	}
}

func (m *WSManager) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WS: Failed to upgrade connection: %v", err)
		return
	}

	client := &WebSocketClient{
		manager: m,
		conn:    conn,
		send:    make(chan []byte, 256),
		ip:      r.RemoteAddr,
	}

	select {
	case m.register <- client:
	case <-m.shutdown:
		conn.Close()
		return
	}

	// Start pump goroutines
	go client.writePump()
	go client.readPump()
}

// sendMessage queues a message for this client only. Called from the hub goroutine.
func (c *WebSocketClient) sendMessage(msg protocol.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("WS: Failed to marshal message: %v", err)
		return
	}
	select {
	case c.send <- data:
	default:
		log.Printf("WS: Dropping message for slow client %s", c.ip)
	}
}

// readPump pumps messages from the websocket connection to the hub.
func (c *WebSocketClient) readPump() {
	defer func() {
		select {
		case c.manager.unregister <- c:
		case <-c.manager.shutdown:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(60 * time.Second)); return nil })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WS: Read error: %v", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// writePump pumps messages from the hub to the websocket connection.
func (c *WebSocketClient) writePump() {
	ticker := time.NewTicker(50 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WebSocketClient) handleMessage(data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("WS: Invalid message format: %v", err)
		return
	}

	switch msg.Type {
	case protocol.TypeAuth:
		log.Printf("WS: Received auth from client %s", c.ip)

	case protocol.TypePing:
		c.reply(protocol.Message{Type: protocol.TypePing})

	case protocol.TypeCommand:
		var payload protocol.CommandPayload
		jsonBytes, _ := json.Marshal(msg.Payload)
		if err := json.Unmarshal(jsonBytes, &payload); err != nil {
			log.Printf("WS: Invalid command payload: %v", err)
			return
		}

		log.Printf("WS: Received command '%s' from %s", payload.Action, c.ip)

		// Use a goroutine to avoid blocking the read pump during a replay
		go func() {
			c.reply(protocol.Message{Type: protocol.TypeResult, Payload: c.manager.execute(payload.Action)})
		}()
	}
}

// reply queues a direct answer. The client may already be gone.
func (c *WebSocketClient) reply(msg protocol.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	c.manager.clientsMu.Lock()
	defer c.manager.clientsMu.Unlock()
	if !c.manager.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (m *WSManager) execute(action string) protocol.ResultPayload {
	ctrl := m.server.ctrl
	res := protocol.ResultPayload{Action: action}

	var err error
	switch action {
	case protocol.ActionRecord:
		err = ctrl.RecordMacro()
	case protocol.ActionStopMacro:
		_, err = ctrl.StopMacro()
	case protocol.ActionListen:
		err = ctrl.Listen()
	case protocol.ActionStopListening:
		res.Text, err = ctrl.StopListening(context.Background())
	case protocol.ActionCopy:
		res.Text, err = ctrl.CopyTranscript()
	default:
		res.Error = "unknown action"
		return res
	}

	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.OK = true
	return res
}
