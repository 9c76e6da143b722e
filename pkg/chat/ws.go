package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const reconnectDelay = 5 * time.Second

// wireMessage tolerates the field aliases the chat platforms use.
type wireMessage struct {
	Author  string `json:"author"`
	Chatter string `json:"chatter"`
	Text    string `json:"text"`
	Content string `json:"content"`
	Message struct {
		Text string `json:"text"`
	} `json:"message"`
	ReplyTo string `json:"reply_to"`
}

func (w *wireMessage) normalize(at time.Time) Message {
	author := w.Author
	if author == "" {
		author = w.Chatter
	}
	text := w.Text
	if text == "" {
		text = w.Content
	}
	if text == "" {
		text = w.Message.Text
	}
	return Message{Author: author, Text: text, ReplyTo: w.ReplyTo, At: at}
}

// Client maintains a websocket connection to the chat relay, delivering
// normalized messages to the adapter and posting replies back.
type Client struct {
	url     string
	adapter *Adapter
	log     *slog.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

func NewClient(url string, adapter *Adapter, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{url: url, adapter: adapter, log: log}
}

// Run connects and reads until ctx is done, redialing on failure.
func (c *Client) Run(ctx context.Context) {
	for {
		if err := c.serve(ctx); err != nil && ctx.Err() == nil {
			c.log.Warn("chat: connection lost, redialing", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (c *Client) serve(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("chat: dial %s: %w", c.url, err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		conn.Close()
	}()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	c.log.Info("chat: connected", "url", c.url)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("chat: read: %w", err)
		}
		var wire wireMessage
		if err := json.Unmarshal(data, &wire); err != nil {
			c.log.Warn("chat: malformed message skipped", "error", err)
			continue
		}
		c.adapter.Handle(wire.normalize(time.Now()))
	}
}

// Send posts a message to the chat channel over the live connection.
func (c *Client) Send(text string) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("chat: not connected")
	}
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("chat: send: %w", err)
	}
	return nil
}
