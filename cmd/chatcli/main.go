// Command chatcli is a terminal client for roomchat.
//
// It logs in over the REST API, opens a websocket session through
// chatclient.Adapter and renders chats, the open conversation, the peer
// typing indicator and unread notifications with bubbletea.
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Tyrowin/roomchat/internal/chatclient"
)

func main() {
	serverURL := flag.String("server", "http://localhost:8080", "roomchat server base URL")
	origin := flag.String("origin", "", "Origin header for the websocket handshake (defaults to the server URL)")
	logFile := flag.String("log", "", "write client logs to this file")
	flag.Parse()

	wsURL, err := websocketURL(*serverURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid server URL: %v\n", err)
		os.Exit(1)
	}
	if *origin == "" {
		*origin = strings.TrimRight(*serverURL, "/")
	}

	logger, closeLog, err := newLogger(*logFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "log: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	m := newModel(config{
		api:    chatclient.NewAPI(*serverURL, nil),
		wsURL:  wsURL,
		origin: *origin,
		logger: logger,
	})
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// websocketURL maps http(s)://host to ws(s)://host/ws.
func websocketURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws"
	return u.String(), nil
}

// newLogger keeps logs off the terminal the TUI is drawing on.
func newLogger(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, err
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return logger, func() { _ = f.Close() }, nil
}
