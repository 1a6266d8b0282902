// Package server accepts viewer connections over HTTP. Each websocket on /ws
// becomes a viewer session fed from the broadcast bus.
package server

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang/groupcache/singleflight"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"golang.org/x/net/netutil"

	"github.com/lanikai/alohacam/internal/logging"
	"github.com/lanikai/alohacam/internal/media"
	"github.com/lanikai/alohacam/internal/session"
	"github.com/lanikai/alohacam/internal/wire"
)

var log = logging.DefaultLogger.WithTag("server")

//go:embed static
var static embed.FS

// Config configures the HTTP front end.
type Config struct {
	// Listen address, e.g. ":8080".
	Addr string

	// Maximum simultaneous TCP connections, 0 for no limit.
	MaxConnections int

	// Deadline for writing one message to a viewer.
	WriteTimeout time.Duration

	// How long /snapshot waits for a packet.
	SnapshotTimeout time.Duration

	Format   wire.Format
	Encoding media.Encoding
}

// Server is the viewer-facing HTTP server.
type Server struct {
	cfg      Config
	bus      *media.Bus
	sessions *session.Registry
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	snapshots singleflight.Group

	// StatusExtra, if set, contributes pipeline details to /status.
	StatusExtra func() interface{}

	// Context for viewer sessions; cancelled on shutdown.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Guards closing and wg.Add against Shutdown.
	mu      sync.Mutex
	closing bool
}

func New(cfg Config, bus *media.Bus) *Server {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.SnapshotTimeout <= 0 {
		cfg.SnapshotTimeout = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      cfg,
		bus:      bus,
		sessions: session.NewRegistry(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		mux:    http.NewServeMux(),
		ctx:    ctx,
		cancel: cancel,
	}

	root, _ := fs.Sub(static, "static")
	s.mux.Handle("/", http.FileServer(http.FS(root)))
	s.mux.HandleFunc("/ws", s.handleWebsocket)
	s.mux.HandleFunc("/snapshot", s.handleSnapshot)
	s.mux.HandleFunc("/status", s.handleStatus)
	return s
}

// Handler returns the server's request router.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Sessions returns the live viewer registry.
func (s *Server) Sessions() *session.Registry {
	return s.sessions
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
// and closes every viewer session.
func (s *Server) ListenAndServe(ctx context.Context) error {
	l, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return errors.Wrap(err, "listen")
	}
	if s.cfg.MaxConnections > 0 {
		l = netutil.LimitListener(l, s.cfg.MaxConnections)
	}
	return s.Serve(ctx, l)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	hs := &http.Server{Handler: s.mux}

	log.Info("listening on %s, open http://%s/ in a browser", l.Addr(), displayAddr(l.Addr()))

	errc := make(chan error, 1)
	go func() { errc <- hs.Serve(l) }()

	select {
	case err := <-errc:
		s.Shutdown()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := hs.Shutdown(shutdownCtx)
	s.Shutdown()
	if err != nil {
		return err
	}
	return ctx.Err()
}

// Shutdown closes every viewer session and waits for them to finish.
func (s *Server) Shutdown() {
	s.mu.Lock()
	s.closing = true
	s.mu.Unlock()

	s.cancel()
	s.sessions.CloseAll()
	s.wg.Wait()
}

func displayAddr(addr net.Addr) string {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok || !tcp.IP.IsUnspecified() {
		return addr.String()
	}

	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	} else if !strings.Contains(host, ".") {
		host += ".local"
	}
	if tcp.Port != 80 {
		host += fmt.Sprintf(":%d", tcp.Port)
	}
	return host
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	// Upgrade websocket connection
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("upgrade: %v", err)
		return
	}

	sink := &wsSink{conn: ws, timeout: s.cfg.WriteTimeout}
	sess, err := session.Start(s.bus, sink, r.RemoteAddr)
	if err != nil {
		log.Warn("cannot register viewer %s: %v", r.RemoteAddr, err)
		sink.Close()
		return
	}

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		log.Info("rejecting viewer %s: shutting down", r.RemoteAddr)
		sess.Close()
		return
	}
	s.sessions.Add(sess)
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.sessions.Remove(sess)
		sess.Run(s.ctx)
	}()

	// Viewers send nothing we need, but reading is how a closed connection
	// is noticed.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("viewer %s: read: %v", sess.ID, err)
			}
			sess.Close()
			return
		}
	}
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	v, err := s.snapshots.Do("snapshot", s.snapshot)
	if err != nil {
		log.Warn("snapshot: %v", err)
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	p := v.(*media.Packet)

	switch p.Encoding {
	case media.MJPEG:
		w.Header().Set("Content-Type", "image/jpeg")
	default:
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	if p.Kind != media.NoKind {
		w.Header().Set("X-Frame-Type", p.Kind.String())
	}
	w.Header().Set("X-Capture-Time", p.CapturedAt.UTC().Format(time.RFC3339Nano))
	w.Header().Set("Cache-Control", "no-store")
	w.Write(p.Data)
}

// snapshot registers a transient viewer and returns the first independently
// decodable packet it receives.
func (s *Server) snapshot() (interface{}, error) {
	sub, err := s.bus.Subscribe()
	if err != nil {
		return nil, err
	}
	defer sub.Close()

	ctx, cancel := context.WithTimeout(s.ctx, s.cfg.SnapshotTimeout)
	defer cancel()

	for {
		m, err := sub.Recv(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "waiting for frame")
		}

		p := m.Packet
		if p == nil {
			if p, err = wire.Decode(s.cfg.Format, s.cfg.Encoding, m.Payload); err != nil {
				return nil, err
			}
		}
		if p.Kind != media.Delta && len(p.Data) > 0 {
			return p, nil
		}
	}
}

// Status is the /status document.
type Status struct {
	Encoding string         `json:"encoding"`
	Wire     string         `json:"wire"`
	Demand   int64          `json:"demand"`
	Viewers  []session.Info `json:"viewers"`
	Pipeline interface{}    `json:"pipeline,omitempty"`
}

func (s *Server) Status() Status {
	st := Status{
		Encoding: s.cfg.Encoding.String(),
		Wire:     s.cfg.Format.String(),
		Demand:   s.bus.Demand().Count(),
		Viewers:  s.sessions.List(),
	}
	if s.StatusExtra != nil {
		st.Pipeline = s.StatusExtra()
	}
	return st
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.Status()); err != nil {
		log.Warn("status: %v", err)
	}
}
