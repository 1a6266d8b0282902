package relay

import (
	"github.com/nats-io/nats.go"

	"github.com/lanikai/alohacam/internal/media"
	"github.com/lanikai/alohacam/internal/wire"
)

// Header names set on published messages.
const (
	HeaderContentType = "Content-Type"
	HeaderEncoding    = "Video-Encoding"
	HeaderFrameType   = "Video-Frame-Type"
)

// Publisher is a viewer sink that publishes each framed packet to a NATS
// subject. It is run like any other viewer session, so it holds one unit of
// demand for as long as it is attached.
type Publisher struct {
	conn    Conn
	subject string
	format  wire.Format
}

func NewPublisher(conn Conn, subject string, format wire.Format) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{conn: conn, subject: subject, format: format}
}

func (p *Publisher) Send(m *media.Message) error {
	msg := nats.NewMsg(p.subject)
	msg.Data = m.Payload
	msg.Header.Set(HeaderContentType, p.format.ContentType())
	if m.Packet != nil {
		msg.Header.Set(HeaderEncoding, m.Packet.Encoding.String())
		if m.Packet.Kind != media.NoKind {
			msg.Header.Set(HeaderFrameType, m.Packet.Kind.String())
		}
	}
	return p.conn.PublishMsg(msg)
}

// Close leaves the connection open; its owner closes it.
func (p *Publisher) Close() error {
	return nil
}
