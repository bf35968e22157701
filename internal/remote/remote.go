// Package remote implements the websocket shell-to-core gateway of spec
// §4.12: a `calc42 serve <addr>` mode exposing the key-event API over one
// connection per client, all of them funneled through a single mutex so
// the core's single-logical-cursor contract (spec §5) holds even with
// several observers attached.
//
// Grounded on the teacher's internal/network/websocket.go and
// websocket_server.go (WebSocketConn's mutex-guarded send/receive,
// WebSocketServer's client map and broadcast) — adapted from arbitrary
// text/binary pentest traffic into one JSON message type per shell call,
// and from "every connection talks to its own thing" into "every
// connection talks to the one shared core, serialized".
package remote

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"calc42/internal/session"
)

// Request is one client->server message: a shell call name plus its
// arguments. Only the fields relevant to Call are populated.
type Request struct {
	Call    string `json:"call"`
	Key     int    `json:"key,omitempty"`
	Text    string `json:"text,omitempty"`
	Repaint bool   `json:"repaint,omitempty"`
}

// Response is one server->client message: either the direct result of a
// Request, or an unprompted display update pushed to every client.
type Response struct {
	Call       string `json:"call"`
	Error      string `json:"error,omitempty"`
	Enqueued   bool   `json:"enqueued,omitempty"`
	Repeat     int    `json:"repeat,omitempty"`
	Text       string `json:"text,omitempty"`
	DisplayLine string `json:"display_line,omitempty"` // §4.12's "131-column text line" in place of a bitmap blitter
}

// client is one connected websocket, guarded against concurrent writes the
// way WebSocketConn's mutex did.
type client struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(resp Response) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(resp)
}

// Server is a websocket gateway over one shared session.Shell. All client
// requests are processed under a single mutex: the core stays strictly
// single-threaded (spec §5) even though several sockets may be attached.
type Server struct {
	sh *session.Shell

	coreMu  sync.Mutex
	mu      sync.RWMutex
	clients map[string]*client

	upgrader websocket.Upgrader
	log      *slog.Logger
}

// NewServer wraps sh for remote access. log may be nil, in which case
// slog.Default() is used.
func NewServer(sh *session.Shell, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		sh:      sh,
		clients: make(map[string]*client),
		log:     log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler is the HTTP upgrade endpoint, installed at the caller's chosen
// path (cmd/calc42's "serve" subcommand mounts it at "/").
func (s *Server) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.log.Error("remote: upgrade failed", "err", err)
			return
		}

		c := &client{id: session.RunID().String(), conn: conn}
		s.mu.Lock()
		s.clients[c.id] = c
		s.mu.Unlock()
		s.log.Debug("remote: client connected", "client", c.id)

		defer func() {
			s.mu.Lock()
			delete(s.clients, c.id)
			s.mu.Unlock()
			conn.Close()
			s.log.Debug("remote: client disconnected", "client", c.id)
		}()

		for {
			var req Request
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			resp := s.dispatch(req)
			if err := c.send(resp); err != nil {
				return
			}
		}
	}
}

// dispatch runs one shell call against the shared core under coreMu, the
// serialization point spec §5 requires.
func (s *Server) dispatch(req Request) Response {
	s.coreMu.Lock()
	defer s.coreMu.Unlock()

	s.log.Debug("remote: call", "call", req.Call, "key", req.Key)

	switch req.Call {
	case "keydown":
		enqueued, repeat, err := s.sh.KeyDown(req.Key)
		if err != nil {
			return Response{Call: req.Call, Error: err.Error()}
		}
		return Response{Call: req.Call, Enqueued: enqueued, Repeat: repeat}

	case "keyup":
		return Response{Call: req.Call, Enqueued: s.sh.KeyUp()}

	case "repeat":
		return Response{Call: req.Call, Repeat: s.sh.Repeat()}

	case "timeout1":
		name, suppressed := s.sh.Timeout1()
		return Response{Call: req.Call, Text: name, Enqueued: suppressed}

	case "timeout2":
		s.sh.Timeout2()
		return Response{Call: req.Call}

	case "timeout3":
		return Response{Call: req.Call, Enqueued: s.sh.Timeout3(req.Repaint)}

	case "copy":
		text, err := s.sh.Copy()
		if err != nil {
			return Response{Call: req.Call, Error: err.Error()}
		}
		return Response{Call: req.Call, Text: text}

	case "paste":
		if err := s.sh.Paste(req.Text); err != nil {
			return Response{Call: req.Call, Error: err.Error()}
		}
		return Response{Call: req.Call}

	default:
		return Response{Call: req.Call, Error: fmt.Sprintf("unknown call %q", req.Call)}
	}
}

// Broadcast pushes an unprompted display-line update to every connected
// client, the remote equivalent of the blitter callback spec §4 describes
// (rendered as text per §4.12, since pixel rendering is out of scope).
func (s *Server) Broadcast(displayLine string) {
	s.mu.RLock()
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	resp := Response{Call: "display", DisplayLine: displayLine}
	for _, c := range clients {
		if err := c.send(resp); err != nil {
			s.log.Debug("remote: broadcast to client failed", "client", c.id, "err", err)
		}
	}
}

// ClientCount reports how many sockets are currently attached.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}
