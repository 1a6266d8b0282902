package alohacam

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/lanikai/alohacam/internal/capture"
	_ "github.com/lanikai/alohacam/internal/codec/av1"
	"github.com/lanikai/alohacam/internal/logging"
	"github.com/lanikai/alohacam/internal/media"
	"github.com/lanikai/alohacam/internal/pipeline"
	"github.com/lanikai/alohacam/internal/relay"
	"github.com/lanikai/alohacam/internal/server"
	"github.com/lanikai/alohacam/internal/session"
	"github.com/lanikai/alohacam/internal/stats"
	"github.com/lanikai/alohacam/internal/wire"
)

var log = logging.DefaultLogger.WithTag("alohacam")

// Pipeline is the running camera service: a demand-gated camera feeding the
// encoding stage, whose packets are broadcast to websocket viewers and,
// optionally, to a NATS subject.
type Pipeline struct {
	cfg Config

	bus     *media.Bus
	manager *capture.Manager
	stage   *pipeline.Stage
	meter   *stats.Meter
	server  *server.Server

	// Replaced in tests.
	dial func(url, name string) (relay.Conn, error)
}

// Status is the pipeline section of the /status document.
type Status struct {
	Source    string              `json:"source"`
	Camera    capture.Stats       `json:"camera"`
	Stage     pipeline.StageStats `json:"stage"`
	FPS       int                 `json:"fps"`
	Packets   uint64              `json:"packets"`
	Published uint64              `json:"published"`
}

// NewPipeline validates cfg and assembles the stages. Nothing runs until Run.
func NewPipeline(cfg Config) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	open, err := capture.Lookup(cfg.Source, cfg.captureSpec())
	if err != nil {
		return nil, err
	}
	newEncoder, err := cfg.codecConfig().Factory()
	if err != nil {
		return nil, err
	}
	framer, err := wire.NewFramer(cfg.Wire)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:  cfg,
		dial: relay.Dial,
	}
	p.bus = media.NewBus(new(media.Demand), cfg.QueueCapacity)
	p.manager = capture.NewManager(open, p.bus.Demand(),
		capture.WithPollInterval(cfg.PollInterval))

	p.meter = stats.NewMeter(0)
	p.meter.OnWindow = func(n int) {
		log.Info("FPS: %d", n)
	}

	p.stage = pipeline.NewStage(
		p.manager.Frames(),
		pipeline.NewFilter(cfg.Freshness),
		newEncoder,
		framer,
		p.bus,
		p.meter,
	)

	p.server = server.New(cfg.serverConfig(), p.bus)
	p.server.StatusExtra = func() interface{} { return p.Status() }
	return p, nil
}

// Handler serves the viewer page, /ws, /snapshot and /status.
func (p *Pipeline) Handler() http.Handler {
	return p.server.Handler()
}

// Bus returns the broadcast bus viewers subscribe to.
func (p *Pipeline) Bus() *media.Bus {
	return p.bus
}

func (p *Pipeline) Status() Status {
	return Status{
		Source:    p.cfg.Source,
		Camera:    p.manager.Stats(),
		Stage:     p.stage.Stats(),
		FPS:       p.meter.Rate(),
		Packets:   p.meter.Total(),
		Published: p.bus.Published(),
	}
}

// Run listens on the configured port and streams until ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	return p.run(ctx, p.server.ListenAndServe)
}

// Serve is Run on an existing listener.
func (p *Pipeline) Serve(ctx context.Context, l net.Listener) error {
	return p.run(ctx, func(ctx context.Context) error {
		return p.server.Serve(ctx, l)
	})
}

func (p *Pipeline) run(ctx context.Context, serve func(context.Context) error) error {
	var conn relay.Conn
	if p.cfg.NATS.Publish {
		var err error
		if conn, err = p.dial(p.cfg.NATS.URL, "alohacam"); err != nil {
			return err
		}
		defer conn.Close()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	defer wg.Wait()

	if conn != nil {
		pub := relay.NewPublisher(conn, p.cfg.NATS.Subject, p.cfg.Wire)
		sess, err := session.Start(p.bus, pub, "nats:"+p.cfg.NATS.Subject)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sess.Run(ctx); err != nil {
				log.Error("nats publisher stopped: %v", err)
			}
		}()
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		p.manager.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		p.stage.Run(ctx)
	}()

	err := serve(ctx)
	cancel()
	p.bus.Close()
	if err == context.Canceled {
		return nil
	}
	return errors.Wrap(err, "serve")
}

// Relay serves websocket viewers from a NATS subject fed by a camera
// pipeline running elsewhere. The subscription is held only while viewers
// are connected.
type Relay struct {
	cfg    Config
	bus    *media.Bus
	server *server.Server
	source atomic.Pointer[relay.Source]

	dial func(url, name string) (relay.Conn, error)
}

// RelayStatus is the pipeline section of /status in relay mode.
type RelayStatus struct {
	Subject    string `json:"subject"`
	Subscribed bool   `json:"subscribed"`
	Received   uint64 `json:"received"`
}

func NewRelay(cfg Config) (*Relay, error) {
	if cfg.QueueCapacity < 1 {
		return nil, errors.Wrapf(errBadConfig, "queue capacity %d", cfg.QueueCapacity)
	}
	if cfg.NATS.Subject == "" {
		return nil, errors.Wrap(errBadConfig, "relay needs a nats subject")
	}
	r := &Relay{
		cfg:  cfg,
		bus:  media.NewBus(new(media.Demand), cfg.QueueCapacity),
		dial: relay.Dial,
	}
	r.server = server.New(cfg.serverConfig(), r.bus)
	r.server.StatusExtra = func() interface{} { return r.Status() }
	return r, nil
}

func (r *Relay) Handler() http.Handler {
	return r.server.Handler()
}

func (r *Relay) Status() RelayStatus {
	st := RelayStatus{Subject: r.cfg.NATS.Subject}
	if src := r.source.Load(); src != nil {
		st.Subscribed = src.Subscribed()
		st.Received = src.Received()
	}
	return st
}

func (r *Relay) Run(ctx context.Context) error {
	return r.run(ctx, r.server.ListenAndServe)
}

func (r *Relay) Serve(ctx context.Context, l net.Listener) error {
	return r.run(ctx, func(ctx context.Context) error {
		return r.server.Serve(ctx, l)
	})
}

func (r *Relay) run(ctx context.Context, serve func(context.Context) error) error {
	conn, err := r.dial(r.cfg.NATS.URL, "alohacam-relay")
	if err != nil {
		return err
	}
	defer conn.Close()

	src := relay.NewSource(conn, r.cfg.NATS.Subject, r.cfg.Wire, r.bus, r.cfg.PollInterval)
	r.source.Store(src)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	defer wg.Wait()
	wg.Add(1)
	go func() {
		defer wg.Done()
		src.Run(ctx)
	}()

	err = serve(ctx)
	cancel()
	r.bus.Close()
	if err == context.Canceled {
		return nil
	}
	return errors.Wrap(err, "serve")
}

func (c *Config) serverConfig() server.Config {
	return server.Config{
		Addr:           ":" + strconv.Itoa(c.Port),
		MaxConnections: c.MaxConnections,
		WriteTimeout:   c.WriteTimeout,
		Format:         c.Wire,
		Encoding:       c.Encoding,
	}
}
