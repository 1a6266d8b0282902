package alohacam

import (
	"bytes"
	"context"
	"encoding/json"
	"image/jpeg"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanikai/alohacam/internal/capture"
	"github.com/lanikai/alohacam/internal/media"
	"github.com/lanikai/alohacam/internal/relay"
	"github.com/lanikai/alohacam/internal/wire"
)

type fakeNATS struct {
	mu        sync.Mutex
	published []*nats.Msg
	handle    func(*nats.Msg)
}

func (c *fakeNATS) PublishMsg(m *nats.Msg) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, m)
	return nil
}

func (c *fakeNATS) Subscribe(subject string, handle func(*nats.Msg)) (func() error, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handle = handle
	return func() error {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.handle = nil
		return nil
	}, nil
}

func (c *fakeNATS) Close() {}

func (c *fakeNATS) deliver(data []byte) bool {
	c.mu.Lock()
	h := c.handle
	c.mu.Unlock()
	if h == nil {
		return false
	}
	h(&nats.Msg{Data: data})
	return true
}

func (c *fakeNATS) first() *nats.Msg {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.published) == 0 {
		return nil
	}
	return c.published[0]
}

func testConfig() Config {
	cfg := Defaults()
	cfg.Source = "testpattern"
	cfg.Width = 64
	cfg.Height = 48
	cfg.FrameRate = 30
	cfg.PollInterval = 5 * time.Millisecond
	cfg.Freshness = time.Second
	return cfg
}

type servable interface {
	Serve(ctx context.Context, l net.Listener) error
}

// start serves s on a loopback port and returns its address.
func start(t *testing.T, s servable) string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, l) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("serve did not return")
		}
	})
	return l.Addr().String()
}

func dialViewer(t *testing.T, addr string) *websocket.Conn {
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/ws", nil)
	require.NoError(t, err)
	return conn
}

func TestPipelineStreamsToViewer(t *testing.T) {
	p, err := NewPipeline(testConfig())
	require.NoError(t, err)
	addr := start(t, p)

	// No viewers, no camera.
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, capture.Closed, p.Status().Camera.State)

	conn := dialViewer(t, addr)
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	typ, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, typ)

	pkt, err := wire.Decode(wire.JSON, media.MJPEG, data)
	require.NoError(t, err)
	assert.Equal(t, media.MJPEG, pkt.Encoding)
	assert.Equal(t, media.NoKind, pkt.Kind)
	img, err := jpeg.Decode(bytes.NewReader(pkt.Data))
	require.NoError(t, err)
	assert.Equal(t, 64, img.Bounds().Dx())
	assert.Equal(t, 48, img.Bounds().Dy())

	st := p.Status()
	assert.Equal(t, capture.Open, st.Camera.State)
	assert.NotZero(t, st.Stage.Encoded)

	// Last viewer leaves: the camera closes.
	conn.Close()
	require.Eventually(t, func() bool {
		st := p.Status()
		return p.Bus().Demand().Count() == 0 && st.Camera.State == capture.Closed
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, p.Status().Camera.Opens, p.Status().Camera.Closes)
}

func TestPipelineStatusEndpoint(t *testing.T) {
	p, err := NewPipeline(testConfig())
	require.NoError(t, err)
	addr := start(t, p)

	resp, err := http.Get("http://" + addr + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var doc struct {
		Encoding string `json:"encoding"`
		Wire     string `json:"wire"`
		Demand   int64  `json:"demand"`
		Pipeline Status `json:"pipeline"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	assert.Equal(t, "MJPEG", doc.Encoding)
	assert.Equal(t, "json", doc.Wire)
	assert.Zero(t, doc.Demand)
	assert.Equal(t, "testpattern", doc.Pipeline.Source)
	assert.Equal(t, capture.Closed, doc.Pipeline.Camera.State)
}

func TestPipelinePublishesToNATS(t *testing.T) {
	cfg := testConfig()
	cfg.NATS.Publish = true
	cfg.NATS.Subject = "video.test"

	p, err := NewPipeline(cfg)
	require.NoError(t, err)
	fc := &fakeNATS{}
	p.dial = func(url, name string) (relay.Conn, error) { return fc, nil }
	start(t, p)

	// The publisher is a viewer, so the camera runs without websocket clients.
	require.Eventually(t, func() bool { return fc.first() != nil }, 5*time.Second, 5*time.Millisecond)
	m := fc.first()
	assert.Equal(t, "video.test", m.Subject)
	assert.Equal(t, "MJPEG", m.Header.Get(relay.HeaderEncoding))
	assert.Equal(t, "application/json", m.Header.Get(relay.HeaderContentType))
	assert.EqualValues(t, 1, p.Bus().Demand().Count())
}

func TestNewPipelineRejectsBadConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Width = 0
	_, err := NewPipeline(cfg)
	assert.True(t, IsConfigError(err))
}

func TestRelayServesNATSSubject(t *testing.T) {
	cfg := testConfig()
	r, err := NewRelay(cfg)
	require.NoError(t, err)
	fc := &fakeNATS{}
	r.dial = func(url, name string) (relay.Conn, error) { return fc, nil }
	addr := start(t, r)

	time.Sleep(20 * time.Millisecond)
	assert.False(t, fc.deliver([]byte("early")), "subscribed without viewers")

	conn := dialViewer(t, addr)
	defer conn.Close()
	require.Eventually(t, func() bool { return r.Status().Subscribed }, 2*time.Second, 5*time.Millisecond)
	require.True(t, fc.deliver([]byte(`{"data":null}`)))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	typ, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, typ)
	assert.Equal(t, `{"data":null}`, string(data))
	assert.EqualValues(t, 1, r.Status().Received)
}
