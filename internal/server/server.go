package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"image-drop/internal/storage"
)

type Config struct {
	Addr          string // e.g. ":3000"
	PublicBaseURL string // empty means derive from the request
	CORSOrigin    string

	MaxUploadBytes     int64
	RateLimitPerMinute int  // 0 disables
	TrustProxyHeaders  bool // key clients on forwarding headers

	Storage storage.Storage
}

type Server struct {
	cfg     Config
	store   storage.Storage
	metrics *Metrics
	limiter *rateLimiter
	clock   *nameClock

	httpServer *http.Server
}

func New(cfg Config) *Server {
	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = "*"
	}

	s := &Server{
		cfg:     cfg,
		store:   cfg.Storage,
		metrics: newMetrics(),
		clock:   newNameClock(),
	}
	if cfg.RateLimitPerMinute > 0 {
		s.limiter = newRateLimiter(cfg.RateLimitPerMinute, time.Minute, cfg.TrustProxyHeaders)
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	var upload http.Handler = http.HandlerFunc(s.handleUpload)
	if s.limiter != nil {
		upload = s.limiter.middleware(upload)
	}
	mux.Handle("POST /upload", upload)

	mux.HandleFunc("GET /uploads/{name}", s.handleAsset)
	mux.HandleFunc("/", s.handleNotFound)

	// Wrap middleware: requestID -> logging -> security -> cors -> mux
	var handler http.Handler = mux
	handler = corsMiddleware(s.cfg.CORSOrigin)(handler)
	handler = securityHeadersMiddleware(handler)
	handler = s.loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)

	return handler
}

// Handler exposes the full middleware chain, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Metrics exposes the server's counters.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown. A clean shutdown returns nil.
func (s *Server) Serve(ln net.Listener) error {
	err := s.httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.close()
	}
	return s.httpServer.Shutdown(ctx)
}
