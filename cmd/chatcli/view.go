package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
)

func (m model) View() string {
	switch m.screen {
	case screenLogin:
		return m.viewLogin()
	case screenChats:
		return m.viewChats()
	case screenNewChat:
		return m.viewNewChat()
	case screenConversation:
		return m.viewConversation()
	}
	return ""
}

func (m model) viewLogin() string {
	if m.width == 0 {
		return "\n  Loading…"
	}

	mode, other := "Login", "Register"
	if m.register {
		mode, other = "Register", "Login"
	}

	renderField := func(label string, f textinput.Model, focused bool) string {
		lbl := labelStyle.Render(label)
		if focused {
			lbl = focusedLabelStyle.Render(label)
		}
		return lbl + "  " + f.View()
	}

	rows := []string{
		titleStyle.Render("  roomchat  "),
		"",
		renderField("Email", m.loginFields[0], m.loginFocus == 0),
		renderField("Password", m.loginFields[1], m.loginFocus == 1),
	}
	if m.register {
		rows = append(rows, renderField("Name", m.loginFields[2], m.loginFocus == 2))
	}
	rows = append(rows,
		"",
		hintStyle.Render(fmt.Sprintf("Tab: switch field   Enter: %s   Ctrl+R: switch to %s", mode, other)),
		hintStyle.Render("Ctrl+C: quit"),
		"",
		m.renderStatus(),
	)

	form := lipgloss.JoinVertical(lipgloss.Left, rows...)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, form)
}

func (m model) viewChats() string {
	hdr := m.header("Enter: open  Ctrl+N: new chat  Ctrl+L: refresh  Ctrl+C: quit")

	unread := m.unreadByChat()
	lines := []string{hdr, ""}
	if len(m.chats) == 0 {
		lines = append(lines, hintStyle.Render("  no chats yet, press Ctrl+N to start one"))
	}
	for i, chat := range m.chats {
		title := chatTitle(chat, m.me.ID)
		if chat.LatestMessage != nil {
			title += tsStyle.Render("  " + displayName(chat.LatestMessage.Sender) + ": " + chat.LatestMessage.Content)
		}
		if n := unread[chat.ID]; n > 0 {
			title += badgeStyle.Render(fmt.Sprintf("  (%d new)", n))
		}
		if i == m.cursor {
			lines = append(lines, selectedStyle.Render("> ")+title)
		} else {
			lines = append(lines, "  "+title)
		}
	}
	lines = append(lines, "", "  "+m.renderStatus())
	return strings.Join(lines, "\n")
}

func (m model) viewNewChat() string {
	hdr := m.header("Enter: start chat  Esc: back")
	return strings.Join([]string{
		hdr,
		"",
		"  " + focusedLabelStyle.Render("Search") + "  " + m.searchInput.View(),
		"",
		"  " + m.renderStatus(),
	}, "\n")
}

func (m model) viewConversation() string {
	if !m.ready {
		return "\n  Loading…"
	}

	hdr := m.header(chatTitle(m.open, m.me.ID) + "  ·  Esc: back  PgUp/Dn: scroll")

	typing := ""
	if m.adapter.PeerTyping() {
		typing = typingStyle.Render("  typing…")
	} else if m.status != "" {
		typing = errorStyle.Render("  " + m.status)
	}

	footer := footerBorderStyle.
		Width(m.width - 2).
		Render(m.chatInput.View())

	return lipgloss.JoinVertical(lipgloss.Left, hdr, m.viewport.View(), typing, footer)
}

func (m model) header(hints string) string {
	state := "offline"
	notifications := 0
	if m.adapter != nil {
		state = m.adapter.State().String()
		notifications = len(m.adapter.Notifications())
	}
	text := fmt.Sprintf(" roomchat  ·  %s  ·  %s  ·  %d unread  ·  %s",
		displayName(m.me), state, notifications, hints)
	return headerStyle.Width(m.width).Render(text)
}

func (m model) unreadByChat() map[string]int {
	counts := make(map[string]int)
	if m.adapter == nil {
		return counts
	}
	for _, n := range m.adapter.Notifications() {
		counts[n.Chat.ID]++
	}
	return counts
}

func (m model) renderStatus() string {
	if m.status == "" {
		return ""
	}
	if strings.HasSuffix(m.status, "…") {
		return hintStyle.Render(m.status)
	}
	return errorStyle.Render(m.status)
}

