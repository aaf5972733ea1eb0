// Package chatclient is the client side of the real-time protocol: it keeps
// one websocket session per user, tracks the open conversation, buffers
// incoming messages into the visible thread or the notification list, and
// debounces typing signals. It also includes a small REST client.
package chatclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomchat/internal/protocol"
)

// State is the connection state of an Adapter.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

var (
	// ErrNotConnected is returned when emitting without a live connection.
	ErrNotConnected = errors.New("not connected")
	// ErrAlreadyConnected is returned by Connect on a session that is not disconnected.
	ErrAlreadyConnected = errors.New("already connected")
)

const writeWait = 10 * time.Second

// Options configures an Adapter.
type Options struct {
	// QuietPeriod is the typing debounce window. Zero means DefaultQuietPeriod.
	QuietPeriod time.Duration
	// Origin is sent on the websocket handshake.
	Origin string
	Dialer *websocket.Dialer
	Logger *slog.Logger
}

// Adapter is one user's real-time session.
type Adapter struct {
	user   protocol.User
	quiet  time.Duration
	origin string
	dialer *websocket.Dialer
	logger *slog.Logger

	mu            sync.Mutex
	attempt       uint64
	state         State
	ready         bool
	conn          *websocket.Conn
	selected      string
	thread        []protocol.Message
	notifications []protocol.Message
	peerTyping    bool
	debouncers    map[string]*debouncer

	// gorilla connections allow one concurrent writer.
	writeMu sync.Mutex

	updates chan struct{}
}

// NewAdapter creates a disconnected session for user.
func NewAdapter(user protocol.User, opts Options) *Adapter {
	if opts.Dialer == nil {
		opts.Dialer = &websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Adapter{
		user:       user,
		quiet:      opts.QuietPeriod,
		origin:     opts.Origin,
		dialer:     opts.Dialer,
		logger:     opts.Logger.With("component", "chatclient", "user", user.ID),
		debouncers: make(map[string]*debouncer),
		updates:    make(chan struct{}, 1),
	}
}

// Connect dials url and, once connected, sends "setup" and re-joins the
// selected conversation. It returns when the handshake completes; Ready
// reports when the server has acknowledged setup.
func (a *Adapter) Connect(ctx context.Context, url string) error {
	a.mu.Lock()
	if a.state != Disconnected {
		a.mu.Unlock()
		return ErrAlreadyConnected
	}
	a.state = Connecting
	a.attempt++
	attempt := a.attempt
	a.mu.Unlock()
	a.notify()

	header := http.Header{}
	if a.origin != "" {
		header.Set("Origin", a.origin)
	}
	conn, resp, err := a.dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		a.mu.Lock()
		if a.attempt == attempt {
			a.state = Disconnected
		}
		a.mu.Unlock()
		a.notify()
		return fmt.Errorf("dial %s: %w", url, err)
	}

	a.mu.Lock()
	if a.attempt != attempt || a.state != Connecting {
		// Closed while dialing.
		a.mu.Unlock()
		_ = conn.Close()
		return ErrNotConnected
	}
	a.conn = conn
	a.state = Connected
	selected := a.selected
	a.mu.Unlock()
	a.notify()

	go a.readLoop(conn)

	if err := a.emit(protocol.EventSetup, a.user); err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	if selected != "" {
		if err := a.emit(protocol.EventJoinChat, selected); err != nil {
			return fmt.Errorf("join chat: %w", err)
		}
	}
	a.logger.Info("connected", "url", url)
	return nil
}

// Close ends the session, including a Connect still dialing. Pending typing
// timers are cancelled silently.
func (a *Adapter) Close() error {
	a.mu.Lock()
	a.attempt++
	conn := a.conn
	a.conn = nil
	a.state = Disconnected
	a.ready = false
	debouncers := a.takeDebouncersLocked()
	a.mu.Unlock()

	for _, d := range debouncers {
		d.stop()
	}
	a.notify()

	if conn == nil {
		return nil
	}
	a.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	a.writeMu.Unlock()
	return conn.Close()
}

func (a *Adapter) takeDebouncersLocked() []*debouncer {
	out := make([]*debouncer, 0, len(a.debouncers))
	for _, d := range a.debouncers {
		out = append(out, d)
	}
	clear(a.debouncers)
	return out
}

// State returns the connection state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Ready reports whether the server acknowledged setup on this connection.
func (a *Adapter) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ready
}

// User returns the local user identity.
func (a *Adapter) User() protocol.User {
	return a.user
}

// SelectChat opens chatID with history as the visible thread and joins its
// room. The previous conversation is not left.
func (a *Adapter) SelectChat(chatID string, history []protocol.Message) error {
	a.mu.Lock()
	a.selected = chatID
	a.thread = slices.Clone(history)
	a.peerTyping = false
	connected := a.state == Connected
	a.mu.Unlock()
	a.notify()

	if !connected {
		return nil
	}
	return a.emit(protocol.EventJoinChat, chatID)
}

// SelectedChat returns the open conversation id, or "".
func (a *Adapter) SelectedChat() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.selected
}

// Send pushes an already persisted message to its other members. Any typing
// signal for its chat is ended first, and the message is appended locally
// when its chat is open.
func (a *Adapter) Send(msg protocol.Message) error {
	if d := a.debouncer(msg.Chat.ID, false); d != nil {
		d.flush()
	}

	a.mu.Lock()
	if msg.Chat.ID == a.selected {
		a.thread = append(a.thread, msg)
	}
	a.mu.Unlock()
	a.notify()

	return a.emit(protocol.EventNewMessage, msg)
}

// Keystroke records local input in the open conversation.
func (a *Adapter) Keystroke() {
	a.mu.Lock()
	chatID, connected := a.selected, a.state == Connected
	a.mu.Unlock()
	if chatID == "" || !connected {
		return
	}
	if d := a.debouncer(chatID, true); d != nil {
		d.keystroke()
	}
}

func (a *Adapter) debouncer(chatID string, create bool) *debouncer {
	a.mu.Lock()
	defer a.mu.Unlock()

	d, ok := a.debouncers[chatID]
	if !ok && create {
		d = newDebouncer(chatID, a.quiet, a.emitTyping)
		a.debouncers[chatID] = d
	}
	return d
}

func (a *Adapter) emitTyping(event protocol.Event, chatID string) {
	if err := a.emit(event, chatID); err != nil {
		a.logger.Debug("typing signal not sent", "event", event, "chat", chatID, "error", err)
	}
}

// Thread returns the messages of the open conversation in arrival order.
func (a *Adapter) Thread() []protocol.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.thread)
}

// Notifications returns messages for conversations that were not open when
// they arrived, newest first.
func (a *Adapter) Notifications() []protocol.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.notifications)
}

// DismissNotification removes the notification for messageID.
func (a *Adapter) DismissNotification(messageID string) {
	a.mu.Lock()
	a.notifications = slices.DeleteFunc(a.notifications, func(m protocol.Message) bool {
		return m.ID == messageID
	})
	a.mu.Unlock()
	a.notify()
}

// DismissChat removes every notification for chatID.
func (a *Adapter) DismissChat(chatID string) {
	a.mu.Lock()
	a.notifications = slices.DeleteFunc(a.notifications, func(m protocol.Message) bool {
		return m.Chat.ID == chatID
	})
	a.mu.Unlock()
	a.notify()
}

// PeerTyping reports whether another member was last seen typing.
func (a *Adapter) PeerTyping() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.peerTyping
}

// Updates signals after any change to the session's observable state.
// Signals are coalesced; read the accessors to see what changed.
func (a *Adapter) Updates() <-chan struct{} {
	return a.updates
}

func (a *Adapter) notify() {
	select {
	case a.updates <- struct{}{}:
	default:
	}
}

func (a *Adapter) emit(event protocol.Event, data any) error {
	frame, err := protocol.Encode(event, data)
	if err != nil {
		return err
	}

	a.mu.Lock()
	conn := a.conn
	a.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, frame)
}

func (a *Adapter) readLoop(conn *websocket.Conn) {
	defer a.connectionLost(conn)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				a.logger.Warn("connection lost", "error", err)
			}
			return
		}

		frame, err := protocol.Decode(raw)
		if err != nil {
			a.logger.Warn("dropping malformed frame", "error", err)
			continue
		}
		a.handle(frame)
	}
}

func (a *Adapter) connectionLost(conn *websocket.Conn) {
	_ = conn.Close()

	a.mu.Lock()
	if a.conn != conn {
		a.mu.Unlock()
		return
	}
	a.conn = nil
	a.state = Disconnected
	a.ready = false
	debouncers := a.takeDebouncersLocked()
	a.mu.Unlock()

	for _, d := range debouncers {
		d.stop()
	}
	a.notify()
}

func (a *Adapter) handle(frame protocol.Frame) {
	switch frame.Event {
	case protocol.EventConnected:
		a.mu.Lock()
		a.ready = true
		a.mu.Unlock()

	case protocol.EventMessageReceived:
		msg, err := protocol.DecodeMessage(frame.Data)
		if err != nil {
			a.logger.Warn("dropping invalid message", "error", err)
			return
		}
		a.receive(msg)

	case protocol.EventTyping, protocol.EventStopTyping:
		a.mu.Lock()
		a.peerTyping = frame.Event == protocol.EventTyping
		a.mu.Unlock()

	default:
		a.logger.Debug("ignoring event", "event", frame.Event)
		return
	}
	a.notify()
}

// receive appends msg to the open thread or raises a notification for it.
func (a *Adapter) receive(msg protocol.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if msg.Chat.ID == a.selected {
		a.thread = append(a.thread, msg)
		return
	}
	if slices.ContainsFunc(a.notifications, func(m protocol.Message) bool { return m.ID == msg.ID }) {
		return
	}
	a.notifications = slices.Insert(a.notifications, 0, msg)
}
