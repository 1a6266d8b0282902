// Package relay moves framed packets through NATS: a publisher forwards every
// packet on the local bus to a subject, and a source feeds a subject's
// messages into a local bus for viewers of a camera running elsewhere.
package relay

import (
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"

	"github.com/lanikai/alohacam/internal/logging"
)

var log = logging.DefaultLogger.WithTag("relay")

const (
	DefaultURL     = nats.DefaultURL
	DefaultSubject = "video.1"
)

// Conn is the part of a NATS connection the relay uses.
type Conn interface {
	PublishMsg(m *nats.Msg) error
	Subscribe(subject string, handle func(*nats.Msg)) (unsubscribe func() error, err error)
	Close()
}

type natsConn struct {
	nc *nats.Conn
}

// Dial connects to a NATS server, reconnecting indefinitely if the
// connection drops.
func Dial(url, name string) (Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected: %v", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "connect %s", url)
	}
	log.Info("connected to nats at %s", nc.ConnectedUrl())
	return &natsConn{nc: nc}, nil
}

func (c *natsConn) PublishMsg(m *nats.Msg) error {
	return c.nc.PublishMsg(m)
}

func (c *natsConn) Subscribe(subject string, handle func(*nats.Msg)) (func() error, error) {
	sub, err := c.nc.Subscribe(subject, handle)
	if err != nil {
		return nil, err
	}
	return sub.Unsubscribe, nil
}

func (c *natsConn) Close() {
	c.nc.Drain()
}
