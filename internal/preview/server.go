package preview

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/yuanying/zinespread/internal/document"
	"github.com/yuanying/zinespread/internal/imposition"
	"github.com/yuanying/zinespread/internal/layout"
	"github.com/yuanying/zinespread/internal/surface"
	"github.com/yuanying/zinespread/internal/viewer"
)

//go:embed templates/*
var templateFS embed.FS

var hostTemplate = template.Must(template.ParseFS(templateFS, "templates/host.html"))

const maxDocumentBytes = 16 << 20

// ServerOptions configures a Server.
type ServerOptions struct {
	// RateLimit is the number of mutating requests one client may make per RateWindow.
	RateLimit  int
	RateWindow time.Duration
	Viewer     viewer.Options
	Conn       surface.ConnOptions
	Logger     *slog.Logger
}

// Server is the HTTP face of a Manager.
type Server struct {
	manager *Manager
	export  *viewer.Generator
	opts    ServerOptions
	router  chi.Router
	logger  *slog.Logger
}

// NewServer creates a server for the sessions of m.
func NewServer(m *Manager, opts ServerOptions) *Server {
	if opts.RateLimit <= 0 {
		opts.RateLimit = 60
	}
	if opts.RateWindow <= 0 {
		opts.RateWindow = time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Conn.Logger == nil {
		opts.Conn.Logger = opts.Logger
	}
	if opts.Viewer.Logger == nil {
		opts.Viewer.Logger = opts.Logger
	}
	cfg := m.Config()
	if opts.Viewer.Margin == 0 {
		opts.Viewer.Margin = cfg.Margin
	}
	if opts.Viewer.Duration == 0 {
		opts.Viewer.Duration = cfg.Duration
	}

	s := &Server{
		manager: m,
		opts:    opts,
		router:  chi.NewRouter(),
		logger:  opts.Logger,
	}
	s.export = viewer.NewGenerator(cfg.Engine(), newStyles(cfg), opts.Viewer)
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)

	limit := httprate.LimitByIP(s.opts.RateLimit, s.opts.RateWindow)

	r.Get("/", s.handleIndex)
	r.With(limit).Post("/sessions", s.handleCreate)
	r.Route("/sessions/{id}", func(r chi.Router) {
		r.Get("/", s.handleHost)
		r.Get("/surface", s.handleSurface)
		r.Get("/ws", s.handleSocket)
		r.Get("/document", s.handleGetDocument)
		r.With(limit).Put("/document", s.handlePutDocument)
		r.With(limit).Put("/mode", s.handleMode)
		r.Get("/export", s.handleExport)
		r.Get("/guide.pdf", s.handleGuide)
		r.With(limit).Delete("/", s.handleDelete)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("preview listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.manager.Close()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down: %w", err)
		}
		return nil
	}
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	sess, ok := s.manager.Get(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, ErrNoSession.Error(), http.StatusNotFound)
		return nil, false
	}
	return sess, true
}

func sessionPath(id, suffix string) string {
	return "/sessions/" + id + suffix
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.manager.Default()
	if !ok {
		http.Error(w, "no document is open; POST /sessions to start one", http.StatusNotFound)
		return
	}
	http.Redirect(w, r, sessionPath(sess.ID(), "/"), http.StatusFound)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	source, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentBytes))
	if err != nil {
		http.Error(w, "failed to read document", http.StatusBadRequest)
		return
	}
	d := document.New(string(source), "")
	if len(source) == 0 {
		d.Source = document.Boilerplate(s.manager.Config().Model)
	}
	sess, err := s.manager.Create(d)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Location", sessionPath(sess.ID(), "/"))
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"id": sess.ID(), "url": sessionPath(sess.ID(), "/")})
}

type hostPage struct {
	Title      string
	Mode       string
	SurfaceURL string
	ExportURL  string
	GuideURL   string
	ModeURL    string
}

func (s *Server) handleHost(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	title := "Untitled zine"
	if dom, err := sess.Document().Parse(); err == nil {
		if t := document.Title(dom); t != "" {
			title = t
		}
	}
	id := sess.ID()
	page := hostPage{
		Title:      title,
		Mode:       sess.Mode().String(),
		SurfaceURL: sessionPath(id, "/surface"),
		ExportURL:  sessionPath(id, "/export"),
		GuideURL:   sessionPath(id, "/guide.pdf"),
		ModeURL:    sessionPath(id, "/mode"),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := hostTemplate.Execute(w, page); err != nil {
		s.logger.Warn("host page failed", "error", err)
	}
}

func (s *Server) handleSurface(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	out, err := sess.Render(sessionPath(sess.ID(), "/ws"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	io.WriteString(w, out)
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	conn, err := surface.Upgrade(w, r, s.opts.Conn)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	if err := sess.Attach(conn); err != nil {
		conn.Close()
		return
	}
	defer sess.Detach(conn)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		select {
		case <-sess.Done():
			cancel()
		case <-ctx.Done():
		}
	}()
	if err := conn.Serve(ctx, func(in surface.Inbound) { sess.Submit(in) }); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Debug("surface disconnected", "session", sess.ID(), "error", err)
	}
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, sess.Document().Source)
}

func (s *Server) handlePutDocument(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	source, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentBytes))
	if err != nil {
		http.Error(w, "failed to read document", http.StatusBadRequest)
		return
	}
	if err := sess.Reload(string(source)); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMode(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	mode, err := layout.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		http.Error(w, "invalid mode: "+err.Error(), http.StatusBadRequest)
		return
	}
	if err := sess.SetMode(mode); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	index := sess.Current()
	if v := r.URL.Query().Get("spread"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid spread %q", v), http.StatusBadRequest)
			return
		}
		index = n
	}
	out, err := s.export.Generate(sess.Document(), index)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	io.WriteString(w, out)
}

func (s *Server) handleGuide(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	cfg := s.manager.Config()
	title := "Folding guide"
	if dom, err := sess.Document().Parse(); err == nil {
		if t := document.Title(dom); t != "" {
			title = t
		}
	}
	w.Header().Set("Content-Type", "application/pdf")
	if err := cfg.Sheet.WritePDF(w, imposition.PDFOptions{Title: title}); err != nil {
		s.logger.Warn("folding guide failed", "error", err)
	}
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Delete(chi.URLParam(r, "id")); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
