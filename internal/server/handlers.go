package server

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// WebSocketHandler upgrades the request and hands the connection to the hub,
// which starts the client's read and write pumps.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "addr", r.RemoteAddr, "error", err)
		return
	}

	client := NewClient(conn, s.hub, r.RemoteAddr, s.cfg)
	if !s.hub.Register(client) {
		s.logger.Info("rejecting connection during shutdown", "addr", r.RemoteAddr)
		_ = conn.Close()
	}
}

// HealthHandler responds with a plain text liveness message.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "roomchat server is running!")
}

type statusResponse struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
	Rooms       int    `json:"rooms"`
}

// StatusHandler reports the number of live connections and rooms as JSON.
func (s *Server) StatusHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	resp := statusResponse{
		Status:      "ok",
		Connections: s.hub.ClientCount(),
		Rooms:       s.hub.Rooms().RoomCount(),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warn("error writing status response", "error", err)
	}
}

// DemoPageHandler serves a single page that speaks the websocket protocol,
// for trying the server from a browser.
func (s *Server) DemoPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, demoPage); err != nil {
		s.logger.Warn("error writing demo page", "error", err)
	}
}

const demoPage = `<!DOCTYPE html>
<html>
<head>
    <title>roomchat demo</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        input[type="text"] { width: 220px; padding: 5px; margin-right: 10px; }
        button { padding: 5px 15px; background-color: #007cba; color: white; border: none; cursor: pointer; }
        button:hover { background-color: #005a87; }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
        #typing { color: #888; height: 1.2em; font-style: italic; }
    </style>
</head>
<body>
    <h1>roomchat demo</h1>

    <div id="status" class="status disconnected">Disconnected</div>

    <div>
        <input type="text" id="userId" placeholder="your user id">
        <input type="text" id="chatId" placeholder="chat id">
        <input type="text" id="members" placeholder="member ids, comma separated">
        <button id="connectButton" onclick="toggleConnection()">Connect</button>
    </div>
    <div>
        <input type="text" id="messageInput" placeholder="Type a message..." disabled>
        <button id="sendButton" onclick="sendMessage()" disabled>Send</button>
    </div>

    <div id="messages"></div>
    <div id="typing"></div>

    <script>
        const quietPeriod = 2000;
        let ws = null;
        let typing = false;
        let timer = null;
        const messagesDiv = document.getElementById('messages');
        const messageInput = document.getElementById('messageInput');
        const sendButton = document.getElementById('sendButton');
        const connectButton = document.getElementById('connectButton');
        const statusDiv = document.getElementById('status');
        const typingDiv = document.getElementById('typing');

        function field(id) { return document.getElementById(id).value.trim(); }

        function emit(event, data) {
            ws.send(JSON.stringify({event: event, data: data}));
        }

        function addLine(text, color) {
            const el = document.createElement('div');
            el.style.margin = '5px 0';
            el.style.color = color || 'gray';
            el.textContent = text;
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function updateStatus(connected) {
            statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            messageInput.disabled = !connected;
            sendButton.disabled = !connected;
            connectButton.textContent = connected ? 'Disconnect' : 'Connect';
        }

        function connect() {
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws');

            ws.onopen = function() {
                emit('setup', {_id: field('userId')});
            };

            ws.onmessage = function(event) {
                const frame = JSON.parse(event.data);
                switch (frame.event) {
                case 'connected':
                    updateStatus(true);
                    emit('join chat', field('chatId'));
                    addLine('connected as ' + field('userId'));
                    break;
                case 'message received':
                    addLine(frame.data.sender._id + ': ' + frame.data.content, 'green');
                    break;
                case 'typing':
                    typingDiv.textContent = 'someone is typing...';
                    break;
                case 'stop typing':
                    typingDiv.textContent = '';
                    break;
                }
            };

            ws.onclose = function() {
                addLine('Connection closed');
                updateStatus(false);
                ws = null;
            };
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.close();
            } else {
                connect();
            }
        }

        function stopTyping() {
            if (typing && ws) {
                emit('stop typing', field('chatId'));
            }
            typing = false;
            clearTimeout(timer);
        }

        function keystroke() {
            if (!ws) {
                return;
            }
            if (!typing) {
                typing = true;
                emit('typing', field('chatId'));
            }
            clearTimeout(timer);
            timer = setTimeout(stopTyping, quietPeriod);
        }

        function sendMessage() {
            const content = messageInput.value.trim();
            if (!content || !ws || ws.readyState !== WebSocket.OPEN) {
                return;
            }
            stopTyping();
            const users = field('members').split(',').map(function(id) {
                return {_id: id.trim()};
            }).filter(function(u) { return u._id; });
            emit('new message', {
                _id: String(Date.now()),
                sender: {_id: field('userId')},
                content: content,
                chat: {_id: field('chatId'), users: users},
            });
            addLine('You: ' + content, 'blue');
            messageInput.value = '';
        }

        messageInput.addEventListener('keydown', function(e) {
            if (e.key === 'Enter') {
                sendMessage();
            } else {
                keystroke();
            }
        });
    </script>
</body>
</html>`
