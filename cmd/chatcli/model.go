package main

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Tyrowin/roomchat/internal/chatclient"
	"github.com/Tyrowin/roomchat/internal/protocol"
)

const requestTimeout = 10 * time.Second

type config struct {
	api    *chatclient.API
	wsURL  string
	origin string
	logger *slog.Logger
}

type screen int

const (
	screenLogin screen = iota
	screenChats
	screenNewChat
	screenConversation
)

type (
	authMsg      struct{ session chatclient.Session }
	chatsMsg     struct{ chats []protocol.Chat }
	connectedMsg struct{}
	sentMsg      struct{}
	updateMsg    struct{}
	errMsg       struct{ err error }
)

type openedMsg struct {
	chat    protocol.Chat
	history []protocol.Message
}

type model struct {
	cfg     config
	adapter *chatclient.Adapter
	me      protocol.User

	screen screen
	status string

	register    bool
	loginFocus  int
	loginFields [3]textinput.Model // email, password, name

	chats  []protocol.Chat
	cursor int

	searchInput textinput.Model

	open      protocol.Chat
	ready     bool
	viewport  viewport.Model
	chatInput textinput.Model

	width, height int
}

func newModel(cfg config) model {
	email := textinput.New()
	email.Placeholder = "email"
	email.Focus()
	email.CharLimit = 64
	email.Width = 32

	password := textinput.New()
	password.Placeholder = "password"
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.CharLimit = 64
	password.Width = 32

	name := textinput.New()
	name.Placeholder = "display name"
	name.CharLimit = 32
	name.Width = 32

	search := textinput.New()
	search.Placeholder = "name or email"
	search.CharLimit = 64
	search.Width = 32

	input := textinput.New()
	input.Placeholder = "Type a message…"
	input.CharLimit = 2000

	return model{
		cfg:         cfg,
		screen:      screenLogin,
		loginFields: [3]textinput.Model{email, password, name},
		searchInput: search,
		chatInput:   input,
	}
}

func (m model) Init() tea.Cmd {
	return textinput.Blink
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if !m.ready {
			m.viewport = viewport.New(msg.Width, m.viewportHeight())
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = m.viewportHeight()
		}
		m.chatInput.Width = msg.Width - 4
		m.refreshThread()
		return m, nil

	case authMsg:
		m.me = msg.session.User
		m.status = ""
		m.screen = screenChats
		m.adapter = chatclient.NewAdapter(m.me, chatclient.Options{
			Origin: m.cfg.origin,
			Logger: m.cfg.logger,
		})
		return m, tea.Batch(m.connect(), m.fetchChats(), waitForUpdate(m.adapter.Updates()))

	case connectedMsg:
		return m, nil

	case chatsMsg:
		m.chats = msg.chats
		m.cursor = min(m.cursor, max(len(m.chats)-1, 0))
		return m, nil

	case openedMsg:
		m.open = msg.chat
		m.status = ""
		if err := m.adapter.SelectChat(msg.chat.ID, msg.history); err != nil {
			m.status = err.Error()
		}
		m.adapter.DismissChat(msg.chat.ID)
		m.screen = screenConversation
		m.chatInput.Reset()
		m.chatInput.Focus()
		m.refreshThread()
		return m, textinput.Blink

	case sentMsg:
		return m, nil

	case updateMsg:
		m.refreshThread()
		return m, waitForUpdate(m.adapter.Updates())

	case errMsg:
		m.status = msg.err.Error()
		return m, nil

	case tea.KeyMsg:
		switch m.screen {
		case screenLogin:
			return m.handleLoginKey(msg)
		case screenChats:
			return m.handleChatsKey(msg)
		case screenNewChat:
			return m.handleNewChatKey(msg)
		case screenConversation:
			return m.handleConversationKey(msg)
		}
	}
	return m, nil
}

// viewportHeight leaves room for the header, typing line and input footer.
func (m model) viewportHeight() int {
	return max(m.height-4, 1)
}

func (m model) handleLoginKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit

	case tea.KeyTab, tea.KeyShiftTab:
		fields := 2
		if m.register {
			fields = 3
		}
		if msg.Type == tea.KeyTab {
			m.loginFocus = (m.loginFocus + 1) % fields
		} else {
			m.loginFocus = (m.loginFocus + fields - 1) % fields
		}
		for i := range m.loginFields {
			if i == m.loginFocus {
				m.loginFields[i].Focus()
			} else {
				m.loginFields[i].Blur()
			}
		}
		return m, textinput.Blink

	case tea.KeyCtrlR:
		m.register = !m.register
		m.status = ""
		if !m.register && m.loginFocus == 2 {
			m.loginFocus = 0
			m.loginFields[2].Blur()
			m.loginFields[0].Focus()
		}
		return m, nil

	case tea.KeyEnter:
		email := strings.TrimSpace(m.loginFields[0].Value())
		password := m.loginFields[1].Value()
		name := strings.TrimSpace(m.loginFields[2].Value())
		if email == "" || password == "" || (m.register && name == "") {
			m.status = "please fill all the fields"
			return m, nil
		}
		m.status = "Authenticating…"
		return m, m.authenticate(email, password, name)
	}

	var cmd tea.Cmd
	m.loginFields[m.loginFocus], cmd = m.loginFields[m.loginFocus].Update(msg)
	return m, cmd
}

func (m model) handleChatsKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyCtrlQ:
		return m.quit()
	case tea.KeyUp:
		m.cursor = max(m.cursor-1, 0)
	case tea.KeyDown:
		m.cursor = min(m.cursor+1, max(len(m.chats)-1, 0))
	case tea.KeyCtrlN:
		m.screen = screenNewChat
		m.status = ""
		m.searchInput.Reset()
		m.searchInput.Focus()
		return m, textinput.Blink
	case tea.KeyCtrlL:
		return m, m.fetchChats()
	case tea.KeyEnter:
		if len(m.chats) == 0 {
			return m, nil
		}
		return m, m.openChat(m.chats[m.cursor])
	}
	return m, nil
}

func (m model) handleNewChatKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m.quit()
	case tea.KeyEsc:
		m.screen = screenChats
		m.searchInput.Blur()
		return m, nil
	case tea.KeyEnter:
		keyword := strings.TrimSpace(m.searchInput.Value())
		if keyword == "" {
			m.status = "please enter something in search"
			return m, nil
		}
		return m, m.startChat(keyword)
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

func (m model) handleConversationKey(msg tea.KeyMsg) (model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyCtrlQ:
		return m.quit()

	case tea.KeyEsc:
		m.screen = screenChats
		m.chatInput.Blur()
		return m, m.fetchChats()

	case tea.KeyEnter:
		content := strings.TrimSpace(m.chatInput.Value())
		if content == "" {
			return m, nil
		}
		m.chatInput.Reset()
		return m, m.send(m.open.ID, content)

	case tea.KeyPgUp:
		m.viewport.HalfViewUp()
		return m, nil

	case tea.KeyPgDown:
		m.viewport.HalfViewDown()
		return m, nil

	case tea.KeyRunes, tea.KeySpace, tea.KeyBackspace:
		m.adapter.Keystroke()
	}

	var cmd tea.Cmd
	m.chatInput, cmd = m.chatInput.Update(msg)
	return m, cmd
}

func (m model) quit() (model, tea.Cmd) {
	if m.adapter != nil {
		_ = m.adapter.Close()
	}
	return m, tea.Quit
}

// refreshThread redraws the open conversation from the adapter.
func (m *model) refreshThread() {
	if m.adapter == nil || !m.ready {
		return
	}
	thread := m.adapter.Thread()
	lines := make([]string, 0, len(thread))
	for _, msg := range thread {
		lines = append(lines, m.renderMessage(msg))
	}
	m.viewport.SetContent(strings.Join(lines, "\n"))
	m.viewport.GotoBottom()
}

func (m model) renderMessage(msg protocol.Message) string {
	ts := ""
	if !msg.CreatedAt.IsZero() {
		ts = tsStyle.Render("["+msg.CreatedAt.Local().Format("15:04:05")+"]") + " "
	}
	name := peerStyle.Render(displayName(msg.Sender))
	if msg.Sender.ID == m.me.ID {
		name = myNameStyle.Render(displayName(msg.Sender))
	}
	return ts + name + ": " + msg.Content
}

func (m model) authenticate(email, password, name string) tea.Cmd {
	api, register := m.cfg.api, m.register
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		var (
			session chatclient.Session
			err     error
		)
		if register {
			session, err = api.Register(ctx, name, email, password, "")
		} else {
			session, err = api.Login(ctx, email, password)
		}
		if err != nil {
			return errMsg{err}
		}
		return authMsg{session}
	}
}

func (m model) connect() tea.Cmd {
	adapter, url := m.adapter, m.cfg.wsURL
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		if err := adapter.Connect(ctx, url); err != nil {
			return errMsg{err}
		}
		return connectedMsg{}
	}
}

func (m model) fetchChats() tea.Cmd {
	api := m.cfg.api
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		chats, err := api.Chats(ctx)
		if err != nil {
			return errMsg{err}
		}
		return chatsMsg{chats}
	}
}

func (m model) openChat(chat protocol.Chat) tea.Cmd {
	api := m.cfg.api
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		history, err := api.Messages(ctx, chat.ID)
		if err != nil {
			return errMsg{err}
		}
		return openedMsg{chat: chat, history: history}
	}
}

func (m model) startChat(keyword string) tea.Cmd {
	api := m.cfg.api
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		users, err := api.SearchUsers(ctx, keyword)
		if err != nil {
			return errMsg{err}
		}
		if len(users) == 0 {
			return errMsg{errors.New("no user matches " + keyword)}
		}
		chat, err := api.AccessChat(ctx, users[0].ID)
		if err != nil {
			return errMsg{err}
		}
		history, err := api.Messages(ctx, chat.ID)
		if err != nil {
			return errMsg{err}
		}
		return openedMsg{chat: chat, history: history}
	}
}

// send persists the message first, then pushes the stored envelope.
func (m model) send(chatID, content string) tea.Cmd {
	api, adapter := m.cfg.api, m.adapter
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		msg, err := api.SendMessage(ctx, chatID, content)
		if err != nil {
			return errMsg{err}
		}
		if err := adapter.Send(msg); err != nil {
			return errMsg{err}
		}
		return sentMsg{}
	}
}

// waitForUpdate blocks until the adapter signals a change.
func waitForUpdate(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return updateMsg{}
	}
}

// chatTitle names a one-to-one chat after the other member.
func chatTitle(chat protocol.Chat, me string) string {
	if chat.IsGroupChat {
		return chat.Name
	}
	for _, u := range chat.Users {
		if u.ID != me {
			return displayName(u)
		}
	}
	return chat.Name
}

func displayName(u protocol.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.ID
}
