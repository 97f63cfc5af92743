// Package remote is a WebSocket client for the Golem control API.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golem/internal/orchestrator"
	"golem/internal/protocol"

	"github.com/gorilla/websocket"
)

// ErrClosed is returned by calls on a closed client
var ErrClosed = errors.New("remote client closed")

// Client keeps a connection to a running Golem instance and reconnects when it drops
type Client struct {
	addr      string
	token     string
	send      chan protocol.Message
	results   chan protocol.ResultPayload
	done      chan struct{}
	closeOnce sync.Once

	// OnStatus is called for every status push, including the one sent on connect
	OnStatus func(orchestrator.Status)

	// RetryInterval is the pause between reconnection attempts
	RetryInterval time.Duration

	mu          sync.Mutex
	isConnected bool
	connected   chan struct{}
}

// NewClient creates a client for the API at addr (host:port)
func NewClient(addr, token string) *Client {
	return &Client{
		addr:          addr,
		token:         token,
		send:          make(chan protocol.Message, 16),
		results:       make(chan protocol.ResultPayload, 16),
		done:          make(chan struct{}),
		connected:     make(chan struct{}),
		RetryInterval: 5 * time.Second,
	}
}

// Start begins the client loop (connect & process)
func (c *Client) Start() {
	go c.loop()
}

func (c *Client) loop() {
	for {
		c.connect()

		// If connect returns, it means we disconnected. Wait a bit and retry.
		select {
		case <-c.done:
			return
		case <-time.After(c.RetryInterval):
			log.Println("Remote: Attempting reconnection...")
		}
	}
}

func (c *Client) connect() {
	u := url.URL{Scheme: "ws", Host: c.addr, Path: "/ws"}

	var header http.Header
	if c.token != "" {
		header = http.Header{"Authorization": {"Bearer " + c.token}}
	}

	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			log.Printf("Remote: %s rejected the token", c.addr)
		} else {
			log.Printf("Remote: Connection failed: %v", err)
		}
		return
	}
	defer conn.Close()

	c.mu.Lock()
	c.isConnected = true
	select {
	case <-c.connected:
	default:
		close(c.connected)
	}
	c.mu.Unlock()

	log.Printf("Remote: Connected to %s", u.String())

	readDone := make(chan struct{})
	writeDone := make(chan struct{})
	go func() {
		defer close(writeDone)
		c.writePump(conn, readDone)
	}()

	c.readPump(conn)
	close(readDone)

	c.mu.Lock()
	c.isConnected = false
	c.mu.Unlock()

	<-writeDone
}

func (c *Client) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(10*time.Second))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Printf("Remote: Read error: %v", err)
			}
			return
		}

		var msg protocol.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Printf("Remote: Invalid message: %v", err)
			continue
		}
		c.handleMessage(msg)
	}
}

func (c *Client) writePump(conn *websocket.Conn, readDone <-chan struct{}) {
	for {
		select {
		case <-readDone:
			return
		case msg := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("Remote: Write error: %v", err)
				return
			}
		case <-c.done:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		}
	}
}

func (c *Client) handleMessage(msg protocol.Message) {
	// Payloads arrive as generic JSON maps
	raw, _ := json.Marshal(msg.Payload)

	switch msg.Type {
	case protocol.TypeStatus:
		var st orchestrator.Status
		if err := json.Unmarshal(raw, &st); err != nil {
			log.Printf("Remote: Invalid status payload: %v", err)
			return
		}
		if c.OnStatus != nil {
			c.OnStatus(st)
		}

	case protocol.TypeResult:
		var res protocol.ResultPayload
		if err := json.Unmarshal(raw, &res); err != nil {
			log.Printf("Remote: Invalid result payload: %v", err)
			return
		}
		select {
		case c.results <- res:
		default:
			log.Printf("Remote: Dropping unread result for '%s'", res.Action)
		}
	}
}

// WaitConnected blocks until the first connection is established
func (c *Client) WaitConnected(ctx context.Context) error {
	select {
	case <-c.connected:
		return nil
	case <-c.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Command asks the instance to perform an action and waits for its result.
// Stopping a voice capture waits for the whole transcription and replay.
func (c *Client) Command(ctx context.Context, action string) (protocol.ResultPayload, error) {
	msg := protocol.Message{
		Type:    protocol.TypeCommand,
		Payload: protocol.CommandPayload{Action: action},
	}

	select {
	case c.send <- msg:
	case <-c.done:
		return protocol.ResultPayload{}, ErrClosed
	case <-ctx.Done():
		return protocol.ResultPayload{}, ctx.Err()
	}

	for {
		select {
		case res := <-c.results:
			if res.Action == action {
				return res, nil
			}
		case <-c.done:
			return protocol.ResultPayload{}, ErrClosed
		case <-ctx.Done():
			return protocol.ResultPayload{}, ctx.Err()
		}
	}
}

// IsConnected returns true while a connection is open
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnected
}

// Close stops the client
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}
