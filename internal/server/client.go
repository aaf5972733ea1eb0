package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomchat/internal/config"
	"github.com/Tyrowin/roomchat/internal/protocol"
)

const (
	pongWait      = 60 * time.Second
	pingPeriod    = 54 * time.Second
	writeWait     = 10 * time.Second
	lookupTimeout = 5 * time.Second
)

// Client is one websocket connection. Fields other than send and closed are
// owned by the pumps or by the hub loop.
type Client struct {
	id             string
	conn           *websocket.Conn
	send           chan []byte
	hub            *Hub
	addr           string
	closed         bool
	userID         string
	maxMessageSize int64
	rateLimiter    *rateLimiter
	rateLimit      config.RateLimitConfig
	logger         *slog.Logger
}

// NewClient creates a Client for conn with a fresh connection id and a send
// queue sized from cfg.
func NewClient(conn *websocket.Conn, hub *Hub, addr string, cfg config.Config) *Client {
	cfg = cfg.Sanitize()
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}
	id := uuid.New().String()

	return &Client{
		id:             id,
		conn:           conn,
		send:           make(chan []byte, cfg.SendBufferSize),
		hub:            hub,
		addr:           addr,
		maxMessageSize: cfg.MaxMessageSize,
		rateLimiter:    newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		rateLimit:      cfg.RateLimit,
		logger:         hub.logger.With("conn", id),
	}
}

// ID returns the connection id.
func (c *Client) ID() string {
	return c.id
}

// GetSendChan returns the client's outgoing frame queue.
func (c *Client) GetSendChan() <-chan []byte {
	return c.send
}

func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Warn("error setting initial read deadline", "error", err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.logger.Warn("error setting read deadline in pong handler", "error", err)
		}
		return nil
	})
}

// logReadError classifies the error that ended the read loop.
func (c *Client) logReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.logger.Warn("frame exceeded maximum size", "limit", c.maxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived):
		c.logger.Info("client disconnected", "reason", err)
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.logger.Info("client connection closed", "reason", err)
	case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure):
		c.logger.Warn("unexpected websocket close", "error", err)
	default:
		c.logger.Warn("websocket read error", "error", err)
	}
}

// checkRateLimit reports whether the next inbound frame may be processed.
func (c *Client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.allow() {
		c.logger.Warn("rate limit exceeded; discarding frame",
			"burst", c.rateLimit.Burst, "interval", c.rateLimit.RefillInterval)
		return false
	}
	return true
}

// processFrame decodes one inbound frame and submits the matching event.
// Malformed frames are logged and dropped.
func (c *Client) processFrame(raw []byte) bool {
	frame, err := protocol.Decode(raw)
	if err != nil {
		c.logger.Warn("dropping malformed frame", "error", err)
		return false
	}

	ev, err := c.eventFor(frame)
	if err != nil {
		c.logger.Warn("dropping invalid event", "event", frame.Event, "error", err)
		return false
	}
	return c.hub.Submit(ev)
}

func (c *Client) eventFor(frame protocol.Frame) (Event, error) {
	ev := Event{Client: c}
	switch frame.Event {
	case protocol.EventSetup:
		user, err := protocol.DecodeUser(frame.Data)
		if err != nil {
			return Event{}, err
		}
		ev.Kind, ev.User = Setup, user
	case protocol.EventJoinChat, protocol.EventTyping, protocol.EventStopTyping:
		chatID, err := protocol.DecodeChatID(frame.Data)
		if err != nil {
			return Event{}, err
		}
		ev.ChatID = chatID
		switch frame.Event {
		case protocol.EventJoinChat:
			ev.Kind = JoinChat
		case protocol.EventTyping:
			ev.Kind = Typing
		default:
			ev.Kind = StopTyping
		}
	case protocol.EventNewMessage:
		msg, err := c.resolveMessage(frame.Data)
		if err != nil {
			return Event{}, err
		}
		ev.Kind, ev.Message, ev.Payload = NewMessage, msg, frame.Data
	default:
		return Event{}, errUnknownEvent
	}
	return ev, nil
}

var (
	errUnknownEvent = errors.New("unknown event")
	errNoRecipients = errors.New("chat users not defined")
	errNoLookup     = errors.New("chat users not defined and no recipient lookup configured")
)

// resolveMessage decodes an envelope and, when it carries no recipient list,
// asks the persistence collaborator for one. The lookup runs on the read
// pump so the hub loop never blocks on storage.
func (c *Client) resolveMessage(data []byte) (protocol.Message, error) {
	msg, err := protocol.DecodeMessage(data)
	if err != nil {
		return protocol.Message{}, err
	}
	if len(msg.Recipients()) > 0 {
		return msg, nil
	}
	if c.hub.lookup == nil {
		return protocol.Message{}, errNoLookup
	}

	ctx, cancel := context.WithTimeout(c.hub.ctx, lookupTimeout)
	defer cancel()
	ids, err := c.hub.lookup.Recipients(ctx, msg.Chat.ID)
	if err != nil {
		return protocol.Message{}, err
	}
	if len(ids) == 0 {
		return protocol.Message{}, errNoRecipients
	}
	msg.Chat.Users = make([]protocol.User, 0, len(ids))
	for _, id := range ids {
		msg.Chat.Users = append(msg.Chat.Users, protocol.User{ID: id})
	}
	return msg, nil
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Submit(Event{Kind: Disconnect, Client: c})
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.logger.Warn("error closing connection in readPump", "error", err)
		}
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		if !c.checkRateLimit() {
			continue
		}

		c.processFrame(raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		return c.handleMessage(message, ok)
	case <-ticker.C:
		return c.handlePing()
	case <-c.hub.ctx.Done():
		return false
	}
}

func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		c.logger.Warn("error closing connection in writePump", "error", err)
	}
}

// handleMessage writes one outgoing frame and returns false if the
// connection should be closed.
func (c *Client) handleMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Warn("error setting write deadline", "error", err)
		return false
	}

	if !ok {
		return c.writeCloseMessage()
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			c.logger.Warn("error writing frame", "error", err)
		}
		return false
	}
	return true
}

func (c *Client) writeCloseMessage() bool {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
		c.logger.Warn("error writing close message", "error", err)
	}
	return false
}

func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Warn("error setting write deadline for ping", "error", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Warn("error writing ping", "error", err)
		return false
	}
	return true
}
