package server

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/lanikai/alohacam/internal/media"
)

// wsSink writes framed packets to a websocket, one message per packet.
type wsSink struct {
	conn    *websocket.Conn
	timeout time.Duration
}

func (s *wsSink) Send(m *media.Message) error {
	typ := websocket.TextMessage
	if m.Binary {
		typ = websocket.BinaryMessage
	}
	s.conn.SetWriteDeadline(time.Now().Add(s.timeout))
	return s.conn.WriteMessage(typ, m.Payload)
}

func (s *wsSink) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return s.conn.Close()
}
