// Package api exposes the tool surface over HTTP: every registered tool is
// callable as a JSON endpoint, and POST /ask runs the heuristic router over a
// natural-language question.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/robfig/cron/v3"

	"github.com/seenimoa/bhavlens/internal/config"
	"github.com/seenimoa/bhavlens/internal/router"
	"github.com/seenimoa/bhavlens/internal/session"
	"github.com/seenimoa/bhavlens/internal/store"
	"github.com/seenimoa/bhavlens/internal/tools"
)

// Server is the HTTP API server.
type Server struct {
	router   chi.Router
	cfg      *config.Config
	registry *tools.Registry
	ask      *router.Router
	store    *store.Store
	sessions *session.Log
	cron     *cron.Cron
}

// NewServer creates a configured API server with all routes and middleware.
// sessions may be nil when session persistence is disabled.
func NewServer(cfg *config.Config, registry *tools.Registry, ask *router.Router,
	st *store.Store, sessions *session.Log) *Server {

	srv := &Server{
		cfg:      cfg,
		registry: registry,
		ask:      ask,
		store:    st,
		sessions: sessions,
	}
	srv.router = srv.buildRouter()
	return srv
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe starts the HTTP server with graceful shutdown. When cache
// refresh is enabled, a cron job re-checks snapshot staleness on the
// configured schedule.
func (s *Server) ListenAndServe(addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if s.cfg.Cache.RefreshEnabled {
		s.cron = cron.New()
		_, err := s.cron.AddFunc(s.cfg.Cache.RefreshCron, func() {
			if err := s.store.Refresh(); err != nil {
				log.Printf("[WARN] scheduled refresh failed: %v", err)
			}
		})
		if err != nil {
			return fmt.Errorf("schedule refresh %q: %w", s.cfg.Cache.RefreshCron, err)
		}
		s.cron.Start()
		log.Printf("[INFO] snapshot refresh scheduled: %s", s.cfg.Cache.RefreshCron)
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()
	log.Printf("[INFO] API listening on %s", addr)

	<-done
	log.Println("[INFO] shutting down server...")

	if s.cron != nil {
		s.cron.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(ctx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/tools", s.handleListTools)
		r.Post("/tools/{name}", s.handleExecuteTool)

		r.Post("/ask", s.handleAsk)

		// Convenience GET aliases over the most used tools.
		r.Get("/meta", s.toolAlias("get_data_info", nil))
		r.Get("/symbols", s.toolAlias("list_symbols", []string{"search"}))
		r.Get("/gainers", s.toolAlias("get_top_gainers", []string{"start_date", "end_date", "top_n"}))
		r.Get("/losers", s.toolAlias("get_top_losers", []string{"start_date", "end_date", "top_n"}))
		r.Get("/breakouts", s.toolAlias("detect_breakouts", []string{"start_date", "end_date", "threshold"}))
		r.Get("/delivery", s.toolAlias("get_delivery_momentum", []string{"start_date", "end_date", "min_delivery"}))
		r.Get("/history/{symbol}", s.symbolAlias("get_stock_history"))
		r.Get("/summary/{symbol}", s.symbolAlias("summarize_symbol"))
		r.Get("/analyze/{symbol}", s.symbolAlias("analyze_stock"))
		r.Get("/marketcap/{symbol}", s.symbolAlias("get_market_cap_category"))
		r.Get("/sector/{sector}", s.handleSector)
		r.Get("/index/{name}", s.handleIndex)

		r.Get("/sessions", s.handleSessions)
		r.Get("/sessions/{id}", s.handleSessionHistory)
	})

	return r
}

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]any{
			"status":  "ok",
			"version": "dev",
		},
	})
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: s.registry.List()})
}

// handleExecuteTool runs any registered tool with the raw JSON body as
// arguments.
func (s *Server) handleExecuteTool(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read request body")
		return
	}
	var args json.RawMessage
	if len(body) > 0 {
		args = json.RawMessage(body)
	}

	s.executeTool(w, r, name, args)
}

func (s *Server) executeTool(w http.ResponseWriter, r *http.Request, name string, args json.RawMessage) {
	out, err := s.registry.Execute(r.Context(), name, args)
	if err != nil {
		if errors.Is(err, tools.ErrToolNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: json.RawMessage(out)})
}

// AskRequest is the body for POST /api/v1/ask.
type AskRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"session_id"`
}

// AskResponse carries the routed tool and its result.
type AskResponse struct {
	Tool   string          `json:"tool"`
	Args   json.RawMessage `json:"args"`
	Result json.RawMessage `json:"result"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	inv, err := s.ask.Route(req.Question)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	out, err := s.registry.Execute(r.Context(), inv.Tool, inv.Args)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if s.sessions != nil && req.SessionID != "" {
		if err := s.sessions.Record(req.SessionID, req.Question, inv.Tool, string(inv.Args), out); err != nil {
			log.Printf("[WARN] session record failed: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: AskResponse{
		Tool:   inv.Tool,
		Args:   inv.Args,
		Result: json.RawMessage(out),
	}})
}

// toolAlias adapts query-string parameters into a tool invocation.
func (s *Server) toolAlias(tool string, params []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		args := map[string]any{}
		for _, p := range params {
			v := r.URL.Query().Get(p)
			if v == "" {
				continue
			}
			switch p {
			case "top_n":
				var n int
				if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
					args[p] = n
				}
			case "threshold", "min_delivery":
				var f float64
				if _, err := fmt.Sscanf(v, "%g", &f); err == nil {
					args[p] = f
				}
			default:
				args[p] = v
			}
		}
		raw, _ := json.Marshal(args)
		s.executeTool(w, r, tool, raw)
	}
}

// symbolAlias adapts a {symbol} path parameter plus optional date query
// parameters into a tool invocation.
func (s *Server) symbolAlias(tool string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		args := map[string]any{"symbol": chi.URLParam(r, "symbol")}
		for _, p := range []string{"start_date", "end_date"} {
			if v := r.URL.Query().Get(p); v != "" {
				args[p] = v
			}
		}
		raw, _ := json.Marshal(args)
		s.executeTool(w, r, tool, raw)
	}
}

func (s *Server) handleSector(w http.ResponseWriter, r *http.Request) {
	args := map[string]any{"sector": chi.URLParam(r, "sector")}
	for _, p := range []string{"start_date", "end_date"} {
		if v := r.URL.Query().Get(p); v != "" {
			args[p] = v
		}
	}
	if v := r.URL.Query().Get("top_n"); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil {
			args["top_n"] = n
		}
	}
	raw, _ := json.Marshal(args)
	s.executeTool(w, r, "get_sector_top_performers", raw)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	raw, _ := json.Marshal(map[string]any{"index": chi.URLParam(r, "name")})
	s.executeTool(w, r, "get_index_constituents", raw)
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeError(w, http.StatusNotFound, "session log disabled")
		return
	}
	ids, err := s.sessions.Sessions()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: ids})
}

func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	if s.sessions == nil {
		writeError(w, http.StatusNotFound, "session log disabled")
		return
	}
	hist, err := s.sessions.History(chi.URLParam(r, "id"), 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: hist})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to write JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{Success: false, Error: msg})
}
