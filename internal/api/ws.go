package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hackhub-io/hackchat/internal/chat"
	"github.com/hackhub-io/hackchat/internal/presence"
	"github.com/hackhub-io/hackchat/internal/stats"
	"github.com/hackhub-io/hackchat/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Client is one websocket session. It owns a chat controller, so each
// socket has at most one open conversation at a time; opening a new scope
// releases the previous one.
type Client struct {
	conn       *websocket.Conn
	controller *chat.Controller
	occupancy  presence.Occupancy
	stats      stats.StatsProvider
	log        *log.Logger
	user       types.User
	send       chan *ServerMessage
	stop       chan struct{}

	mu      sync.Mutex
	channel string
}

func NewClient(user types.User, conn *websocket.Conn, controller *chat.Controller, occ presence.Occupancy, st stats.StatsProvider, l *log.Logger) *Client {
	return &Client{
		conn:       conn,
		controller: controller,
		occupancy:  occ,
		stats:      st,
		log:        l,
		user:       user,
		send:       make(chan *ServerMessage, 256),
		stop:       make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(time.Duration(pingInterval))
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log.Println("write exiting")
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
		c.log.Println("read exiting")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(ErrInvalidMessage(-1))
			continue
		}

		switch {
		case msg.Open != nil:
			c.openScope(&msg)
		case msg.Close != nil:
			c.closeScope(&msg)
		case msg.Publish != nil:
			c.publish(&msg)
		case msg.Delete != nil:
			c.deleteMessage(&msg)
		case msg.Typing != nil:
			c.controller.MarkTyping(c.user.Id)
		default:
			c.queueMessage(ErrInvalidMessage(msg.Id))
		}
	}
}

func (c *Client) openScope(msg *ClientMessage) {
	scope := scopeFromParams(msg.Open.Kind, msg.Open.EventId)

	_, err := c.controller.Open(scope, c.notify)
	if err != nil {
		c.log.Printf("open scope %q: %v", scope.Channel(), err)
		c.queueMessage(ErrResponse(msg.Id, err))
		return
	}

	c.mu.Lock()
	prev := c.channel
	c.channel = scope.Channel()
	c.mu.Unlock()

	if prev != "" {
		if err := c.occupancy.Leave(context.Background(), prev, c.user.Id); err != nil {
			c.log.Printf("leave channel %q: %v", prev, err)
		}
	}
	if err := c.occupancy.Join(context.Background(), scope.Channel(), c.user.Id); err != nil {
		c.log.Printf("join channel %q: %v", scope.Channel(), err)
	}

	c.queueMessage(NoErrOK(msg.Id, map[string]any{"channel": scope.Channel()}))
	c.queueSnapshot()
}

func (c *Client) closeScope(msg *ClientMessage) {
	c.controller.Close()
	c.leaveChannel()
	c.queueMessage(NoErrOK(msg.Id, nil))
}

func (c *Client) publish(msg *ClientMessage) {
	if err := c.controller.Send(c.user.Id, msg.Publish.Content); err != nil {
		c.queueMessage(ErrResponse(msg.Id, err))
		return
	}

	c.stats.Incr("MessagesSent")
	c.queueMessage(NoErrAccepted(msg.Id))
}

func (c *Client) deleteMessage(msg *ClientMessage) {
	if err := c.controller.Delete(c.user.Id, msg.Delete.MessageId); err != nil {
		c.queueMessage(ErrResponse(msg.Id, err))
		return
	}

	c.queueMessage(NoErrAccepted(msg.Id))
}

// notify runs on feed goroutines after any change to the open view.
func (c *Client) notify() {
	c.queueSnapshot()
}

func (c *Client) queueSnapshot() {
	c.mu.Lock()
	channel := c.channel
	c.mu.Unlock()

	messages := c.controller.Messages()
	if messages == nil {
		messages = []types.Message{}
	}

	c.queueMessage(&ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Snapshot: &Snapshot{
			Channel:  channel,
			Messages: messages,
			Typing:   c.controller.TypingUsers(),
		},
	})
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Println("failed to send message to client, channel is full")
		return false
	}

	return true
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) leaveChannel() {
	c.mu.Lock()
	channel := c.channel
	c.channel = ""
	c.mu.Unlock()

	if channel == "" {
		return
	}

	if err := c.occupancy.Leave(context.Background(), channel, c.user.Id); err != nil {
		c.log.Printf("leave channel %q: %v", channel, err)
	}
}

func (c *Client) cleanup() {
	c.controller.Close()
	c.leaveChannel()
	c.stats.Decr("NumActiveClients")
	close(c.stop)
}

func (s *HackChatApp) serveWs(w http.ResponseWriter, r *http.Request) {
	id, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	user, err := s.db.GetAccountById(id)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// only allow connections from allowed origins
			origin := r.Header.Get("Origin")
			if origin == "" {
				// if no origin header, allow the request
				return true
			}

			return slices.Contains(s.allowedOrigins, origin)
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Println("error upgrading connection:", err)
		return
	}

	controller := chat.NewController(s.log, s.db, s.fd, s.stats, nil)
	client := NewClient(types.User{
		Id:           user.Id,
		FullName:     user.FullName,
		College:      user.College,
		EmailAddress: user.EmailAddress,
		CreatedAt:    user.CreatedAt,
		UpdatedAt:    user.UpdatedAt,
	}, conn, controller, s.occupancy, s.stats, s.log)

	s.stats.Incr("NumActiveClients")
	go client.Write()
	go client.Read()
}
