// Package server hosts one presentation engine per browser session behind a websocket, plus
// the page shim and a few JSON endpoints.
package server

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/pefman/w40k-odds/internal/config"
	"github.com/pefman/w40k-odds/internal/engine"
	"github.com/pefman/w40k-odds/internal/logger"
	"github.com/pefman/w40k-odds/internal/stats"
)

//go:embed static
var staticFiles embed.FS

// Options wires a server.
type Options struct {
	Config       *config.Config
	Simulator    engine.Simulator
	BuildVersion string
	BuildTime    string
}

// Server routes HTTP requests and owns the live sessions.
type Server struct {
	cfg      *config.Config
	sim      engine.Simulator
	variant  engine.Variant
	version  string
	built    string
	router   *mux.Router
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*session
}

// New validates the page configuration and builds the router.
func New(opts Options) (*Server, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if opts.Simulator == nil {
		return nil, fmt.Errorf("server: no simulator")
	}
	variant, err := engine.LookupVariant(cfg.Page.Variant)
	if err != nil {
		return nil, err
	}
	if variant.Widgets, err = variant.Widgets.With(cfg.Page.Widgets); err != nil {
		return nil, err
	}
	if cfg.History.Param != "" {
		variant.Param = engine.ParamStyle(cfg.History.Param)
	}
	// Fail at startup rather than on the first connection.
	if _, err := engine.NewHistory(variant.Param, engine.HistoryMode(cfg.History.Mode), cfg.History.SnapshotCapacity); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:      cfg,
		sim:      opts.Simulator,
		variant:  variant,
		version:  opts.BuildVersion,
		built:    opts.BuildTime,
		ctx:      ctx,
		cancel:   cancel,
		sessions: make(map[string]*session),
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return s.cfg.Server.IsOriginAllowed(r.Header.Get("Origin"), r.Host)
		},
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := mux.NewRouter()
	r.HandleFunc("/", s.serveIndex).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWS)
	r.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet)

	sub, _ := fs.Sub(staticFiles, "static")
	r.PathPrefix("/static/").Handler(http.StripPrefix("/static/", http.FileServer(http.FS(sub))))

	api := r.PathPrefix("/api").Subrouter()
	api.Use(withCORS)
	api.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/variants", s.handleVariants).Methods(http.MethodGet, http.MethodOptions)
	api.HandleFunc("/variants/{name}", s.handleVariant).Methods(http.MethodGet, http.MethodOptions)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "no route for "+r.URL.Path)
	})
	s.router = r
}

// Handler is the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Variant is the effective page variant after config overrides.
func (s *Server) Variant() engine.Variant { return s.variant }

// Close ends every session.
func (s *Server) Close() {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		sess.close()
	}
}

// SessionCount is the number of live sessions.
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) register(sess *session) {
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	stats.Inc(stats.Sessions)
}

func (s *Server) unregister(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// ========================= Handlers =========================

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	page, err := staticFiles.ReadFile("static/index.html")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "index missing")
		return
	}
	html := strings.NewReplacer(
		"{{BUILD_VERSION}}", s.version,
		"{{VARIANT}}", s.variant.Name,
	).Replace(string(page))
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, html)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"version": s.version,
		"time":    s.built,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":   "ok",
		"version":  s.version,
		"variant":  s.variant.Name,
		"sessions": s.SessionCount(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap := stats.Take()
	days := stats.Days()
	sort.Strings(days)
	writeJSON(w, map[string]any{
		"totals":   snap.Totals,
		"today":    snap.Today,
		"days":     days,
		"sessions": s.SessionCount(),
	})
}

func (s *Server) handleVariants(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"active":   s.variant,
		"variants": engine.Variants(),
	})
}

func (s *Server) handleVariant(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	v, err := engine.LookupVariant(name)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, v)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client.
		logger.Warning("ws: upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	sess, err := s.newSession(conn)
	if err != nil {
		logger.Error("ws: session setup failed", "error", err)
		_ = conn.Close()
		return
	}
	logger.Info("ws: connect", "session", sess.id, "remote", r.RemoteAddr)
	go sess.run()
}
