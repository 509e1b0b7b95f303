package httpapi

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	svcerrors "github.com/R3E-Network/keyledger/internal/errors"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxFrameSize   = 4096
	maxIdentityLen = 128
)

// wsSession is one identity's chat conversation over a websocket. Replies
// may come from several command goroutines at once.
type wsSession struct {
	identity string
	conn     *websocket.Conn
	writeMu  sync.Mutex
}

func (s *wsSession) Identity() string { return s.identity }

func (s *wsSession) Reply(_ context.Context, text string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteMessage(websocket.TextMessage, []byte(text))
}

func (s *wsSession) ping() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// chat upgrades /ws?identity=<id> and feeds every text frame to the
// dispatcher. Closing the socket cancels any prompt the identity is
// waiting on.
func (h *handler) chat(w http.ResponseWriter, r *http.Request) {
	identity := strings.TrimSpace(r.URL.Query().Get("identity"))
	if identity == "" || len(identity) > maxIdentityLen {
		writeError(w, svcerrors.InvalidInput("identity", "required, at most 128 bytes"))
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  maxFrameSize,
		WriteBufferSize: maxFrameSize,
		CheckOrigin:     h.origins.Allowed,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).WithField("identity", identity).Debug("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	session := &wsSession{identity: identity, conn: conn}
	log := h.log.WithField("identity", identity)
	log.Info("chat session opened")

	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := session.ping(); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Warn("chat session dropped")
			}
			break
		}
		if kind != websocket.TextMessage {
			continue
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			continue
		}
		h.app.Commands.Submit(ctx, session, text)
	}
	log.Info("chat session closed")
}
