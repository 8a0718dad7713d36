package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/jpalmerr/yardwatch/internal/filter"
	"github.com/jpalmerr/yardwatch/internal/poller"
	"github.com/jpalmerr/yardwatch/internal/result"
	"github.com/jpalmerr/yardwatch/internal/selection"
	"github.com/jpalmerr/yardwatch/internal/store"
)

const (
	// streamWriteTimeout is the maximum time allowed for a single SSE or
	// WebSocket write. Must be <= shutdown timeout to ensure clean shutdown.
	streamWriteTimeout = 5 * time.Second

	// shutdownTimeout bounds graceful shutdown of in-flight requests.
	shutdownTimeout = 5 * time.Second

	// maxRequestBody caps JSON request bodies.
	maxRequestBody = 64 << 10

	// defaultTitle is used when no custom title is configured.
	defaultTitle = "yardwatch"
)

// Server handles HTTP requests for the yardwatch API.
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	store      store.Store
	views      Controller
	port       int
	httpServer *http.Server
	title      string
	logger     *slog.Logger
}

// NewServer creates a new HTTP [Server].
//
// Parameters:
//   - st: Store implementation for snapshot data
//   - views: Controller for gate, filter, selection and polling commands
//   - port: TCP port to listen on
//   - title: Title reported by /api/info (defaults to "yardwatch" if empty)
//   - logger: Logger for server events
//
// The server is not started until [Server.Start] is called.
func NewServer(st store.Store, views Controller, port int, title string, logger *slog.Logger) *Server {
	if title == "" {
		title = defaultTitle
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		store:  st,
		views:  views,
		port:   port,
		title:  title,
		logger: logger,
	}
}

// Handler returns the routed API handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/info", s.handleInfo)
	mux.HandleFunc("GET /api/views", s.handleViews)
	mux.HandleFunc("GET /api/views/{name}", s.handleView)
	mux.HandleFunc("GET /api/views/{name}/items", s.handleItems)
	mux.HandleFunc("GET /api/views/{name}/stats", s.handleStats)

	mux.HandleFunc("GET /api/views/{name}/filter", s.handleGetFilter)
	mux.HandleFunc("PUT /api/views/{name}/filter", s.handlePutFilter)

	mux.HandleFunc("GET /api/views/{name}/gate", s.handleGate)
	mux.HandleFunc("POST /api/views/{name}/modal/open", s.handleModalOpen)
	mux.HandleFunc("POST /api/views/{name}/modal/close", s.handleModalClose)
	mux.HandleFunc("POST /api/views/{name}/visibility", s.handleVisibility)

	mux.HandleFunc("POST /api/views/{name}/refresh", s.handleRefresh)
	mux.HandleFunc("POST /api/views/{name}/reload", s.handleReload)

	mux.HandleFunc("GET /api/views/{name}/selection", s.handleSelection)
	mux.HandleFunc("POST /api/views/{name}/selection/submit", s.handleSubmit)
	mux.HandleFunc("POST /api/views/{name}/selection/{id}", s.handleSelect)
	mux.HandleFunc("DELETE /api/views/{name}/selection/{id}", s.handleDeselect)

	mux.HandleFunc("GET /api/sse", s.handleSSE)
	mux.HandleFunc("GET /api/ws", s.handleWebSocket)

	return mux
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown with a 5-second
// timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// request contexts derive from ctx so streams end on shutdown
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0)
	for _, snap := range s.store.GetAll() {
		names = append(names, snap.View)
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"title": s.title, "views": names})
}

// handleViews returns all current snapshots as JSON.
func (s *Server) handleViews(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.GetAll())
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.store.Get(r.PathValue("name"))
	if !ok {
		s.writeError(w, ErrNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, snap)
}

// itemsResponse is the filtered item listing of a view.
type itemsResponse struct {
	View    string        `json:"view"`
	Filter  filter.State  `json:"filter"`
	Visible []string      `json:"visible"`
	Hidden  []string      `json:"hidden"`
	Items   []filter.Item `json:"items"`
}

// handleItems applies the view's saved filter to its items. The search and
// category query parameters preview another filter without saving it.
func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	snap, ok := s.store.Get(name)
	if !ok {
		s.writeError(w, ErrNotFound)
		return
	}

	state, err := s.views.Filter(r.Context(), name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	q := r.URL.Query()
	if q.Has("search") || q.Has("category") {
		state = filter.State{Search: q.Get("search"), Category: q.Get("category")}.Normalize()
	}

	vis := state.Apply(snap.Items)
	s.writeJSON(w, http.StatusOK, itemsResponse{
		View:    name,
		Filter:  state,
		Visible: vis.Visible,
		Hidden:  vis.Hidden,
		Items:   state.Select(snap.Items),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.views.Stats(r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleGetFilter(w http.ResponseWriter, r *http.Request) {
	state, err := s.views.Filter(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *Server) handlePutFilter(w http.ResponseWriter, r *http.Request) {
	var state filter.State
	if !s.decodeBody(w, r, &state) {
		return
	}
	saved, err := s.views.SetFilter(r.Context(), r.PathValue("name"), state)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleGate(w http.ResponseWriter, r *http.Request) {
	s.respondGate(w, func(view string) (GateState, error) { return s.views.Gate(view) }, r)
}

func (s *Server) handleModalOpen(w http.ResponseWriter, r *http.Request) {
	s.respondGate(w, s.views.OpenModal, r)
}

func (s *Server) handleModalClose(w http.ResponseWriter, r *http.Request) {
	s.respondGate(w, s.views.CloseModal, r)
}

func (s *Server) handleVisibility(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Hidden *bool `json:"hidden"`
	}
	if !s.decodeBody(w, r, &body) {
		return
	}
	if body.Hidden == nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: `"hidden" is required`})
		return
	}
	s.respondGate(w, func(view string) (GateState, error) {
		return s.views.SetHidden(view, *body.Hidden)
	}, r)
}

func (s *Server) respondGate(w http.ResponseWriter, fn func(string) (GateState, error), r *http.Request) {
	state, err := fn(r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.views.Refresh(name); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"view": name, "status": "refresh requested"})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.views.Reload(name); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{"view": name, "status": "reloaded"})
}

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	state, err := s.views.Selection(r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	s.respondSelection(w, r, s.views.Select)
}

func (s *Server) handleDeselect(w http.ResponseWriter, r *http.Request) {
	s.respondSelection(w, r, s.views.Deselect)
}

func (s *Server) respondSelection(w http.ResponseWriter, r *http.Request, fn func(string, int64) (SelectionState, error)) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "id must be an integer"})
		return
	}
	state, err := fn(r.PathValue("name"), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	state, err := s.views.Submit(r.Context(), r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, state)
}

// errorResponse is the JSON body of every error reply.
type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// statusFor maps controller errors onto HTTP status codes.
func statusFor(err error) int {
	var resErr *result.Error
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUnsupported):
		return http.StatusNotFound
	case errors.Is(err, poller.ErrHalted), errors.Is(err, selection.ErrLimitReached):
		return http.StatusConflict
	case errors.Is(err, selection.ErrLocked), errors.Is(err, selection.ErrBusy):
		return http.StatusLocked
	case errors.Is(err, selection.ErrEmpty):
		return http.StatusBadRequest
	case errors.As(err, &resErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	body := errorResponse{Error: err.Error()}

	var resErr *result.Error
	if errors.As(err, &resErr) {
		body.Kind = string(resErr.Kind)
		body.Error = resErr.Message
	}
	if code == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
	}
	s.writeJSON(w, code, body)
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// decodeBody decodes a JSON request body into v, replying 400 on failure.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}
