package relay

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanikai/alohacam/internal/media"
	"github.com/lanikai/alohacam/internal/session"
	"github.com/lanikai/alohacam/internal/wire"
)

// fakeConn is an in-process stand-in for a NATS server with one subject.
type fakeConn struct {
	mu        sync.Mutex
	published []*nats.Msg
	handlers  map[int]func(*nats.Msg)
	next      int
	subs      int
	unsubs    int
}

func newFakeConn() *fakeConn {
	return &fakeConn{handlers: map[int]func(*nats.Msg){}}
}

func (c *fakeConn) PublishMsg(m *nats.Msg) error {
	c.mu.Lock()
	c.published = append(c.published, m)
	var hs []func(*nats.Msg)
	for _, h := range c.handlers {
		hs = append(hs, h)
	}
	c.mu.Unlock()

	for _, h := range hs {
		h(m)
	}
	return nil
}

func (c *fakeConn) Subscribe(subject string, handle func(*nats.Msg)) (func() error, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.next
	c.next++
	c.handlers[id] = handle
	c.subs++
	return func() error {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.handlers, id)
		c.unsubs++
		return nil
	}, nil
}

func (c *fakeConn) Close() {}

func (c *fakeConn) counts() (subs, unsubs, published int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subs, c.unsubs, len(c.published)
}

func TestPublisherSetsHeaders(t *testing.T) {
	conn := newFakeConn()
	p := NewPublisher(conn, "", wire.JSON)

	err := p.Send(&media.Message{
		Packet:  &media.Packet{Kind: media.Key, Encoding: media.AV1},
		Payload: []byte(`{}`),
	})
	require.NoError(t, err)

	require.Len(t, conn.published, 1)
	m := conn.published[0]
	assert.Equal(t, DefaultSubject, m.Subject)
	assert.Equal(t, []byte(`{}`), m.Data)
	assert.Equal(t, "application/json", m.Header.Get(HeaderContentType))
	assert.Equal(t, "AV1", m.Header.Get(HeaderEncoding))
	assert.Equal(t, "key", m.Header.Get(HeaderFrameType))
}

func TestPublisherAsViewer(t *testing.T) {
	bus := media.NewBus(nil, 10)
	conn := newFakeConn()

	sess, err := session.Start(bus, NewPublisher(conn, "cam.front", wire.Binary), "nats")
	require.NoError(t, err)
	assert.EqualValues(t, 1, bus.Demand().Count())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	bus.Publish(&media.Message{Payload: []byte{1}, Binary: true})
	require.Eventually(t, func() bool {
		_, _, n := conn.counts()
		return n == 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, "cam.front", conn.published[0].Subject)

	cancel()
	<-done
	assert.EqualValues(t, 0, bus.Demand().Count())
}

func TestSourceFollowsDemand(t *testing.T) {
	bus := media.NewBus(nil, 10)
	conn := newFakeConn()
	src := NewSource(conn, "", wire.MsgPack, bus, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	assert.False(t, src.Subscribed())

	sub, err := bus.Subscribe()
	require.NoError(t, err)
	require.Eventually(t, src.Subscribed, time.Second, time.Millisecond)

	require.NoError(t, conn.PublishMsg(&nats.Msg{Subject: DefaultSubject, Data: []byte("frame")}))
	m, ok := sub.TryRecv()
	require.True(t, ok)
	assert.Equal(t, []byte("frame"), m.Payload)
	assert.True(t, m.Binary)
	assert.Nil(t, m.Packet)
	assert.EqualValues(t, 1, src.Received())

	sub.Close()
	require.Eventually(t, func() bool { return !src.Subscribed() }, time.Second, time.Millisecond)

	subs, unsubs, _ := conn.counts()
	assert.Equal(t, 1, subs)
	assert.Equal(t, 1, unsubs)

	cancel()
	assert.Equal(t, context.Canceled, <-done)
}

func TestSourceUnsubscribesOnExit(t *testing.T) {
	bus := media.NewBus(nil, 10)
	conn := newFakeConn()
	src := NewSource(conn, "", wire.JSON, bus, time.Millisecond)

	sub, _ := bus.Subscribe()
	defer sub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx) }()
	require.Eventually(t, src.Subscribed, time.Second, time.Millisecond)

	cancel()
	<-done
	assert.False(t, src.Subscribed())
	_, unsubs, _ := conn.counts()
	assert.Equal(t, 1, unsubs)
}
