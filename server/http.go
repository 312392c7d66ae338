// Package server exposes the chat pipeline over HTTP (chunked streaming) and
// WebSocket (typed message envelopes).
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"

	"github.com/room4-2/OpenCanteen/config"
	"github.com/room4-2/OpenCanteen/dialogue"
	"github.com/room4-2/OpenCanteen/engine"
	"github.com/room4-2/OpenCanteen/fragment"
	"github.com/room4-2/OpenCanteen/session"
)

// ChatRequest is the POST /chat body.
type ChatRequest struct {
	Message   string        `json:"message"`
	History   []HistoryTurn `json:"history,omitempty"`
	SessionID string        `json:"session_id,omitempty"`
}

// HistoryTurn is a client-supplied prior turn, used only to seed brand-new
// sessions.
type HistoryTurn struct {
	Sender string `json:"sender"` // "user" or "bot"
	Text   string `json:"text"`
}

type Server struct {
	httpServer *http.Server
	store      *session.Store
	controller *dialogue.Controller
	engine     engine.Engine
	config     *config.Config
	ws         *wsHub
}

func NewServer(cfg *config.Config, store *session.Store, ctrl *dialogue.Controller, eng engine.Engine) *Server {
	s := &Server{
		store:      store,
		controller: ctrl,
		engine:     eng,
		config:     cfg,
	}
	s.ws = newWSHub(cfg, ctrl)

	mux := http.NewServeMux()
	mux.HandleFunc("/chat", s.handleChat)
	mux.HandleFunc("/ws", s.ws.handleWebSocket)
	mux.HandleFunc("/warmup", s.handleWarmup)
	mux.HandleFunc("/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     withCORS(cfg.AllowedOrigins, mux),
		ReadTimeout: 10 * time.Second,
		// No WriteTimeout: /chat streams for as long as generation runs.
	}
	return s
}

// Start begins listening for connections
func (s *Server) Start() error {
	log.Info().Int("port", s.config.Port).Msg("server starting")
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("shutting down server")
	s.store.Shutdown()
	return s.httpServer.Shutdown(ctx)
}

// handleChat streams the response as raw text chunks: status fragments as
// bracketed lines, content fragments verbatim, flushed as they are produced.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "failed to read body")
		return
	}
	var req ChatRequest
	if err := sonic.Unmarshal(body, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Message == "" {
		writeJSONError(w, http.StatusBadRequest, "message is required")
		return
	}

	// Resolve the session before writing headers so the id can travel on
	// the response even for first contact.
	sess := s.store.GetOrCreate(r.Context(), req.SessionID)

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Session-ID", sess.ID)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	sink := func(f fragment.Fragment) error {
		if _, err := io.WriteString(w, f.Encode()); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if _, err := s.controller.HandleTurn(r.Context(), dialogue.Request{
		Message:   req.Message,
		History:   toTurns(req.History),
		SessionID: sess.ID,
	}, sink); err != nil {
		// Headers are gone; the disconnect or queue failure is already
		// reflected in what the client received.
		log.Debug().Err(err).Str("session", sess.ID).Msg("chat turn ended early")
	}
}

func (s *Server) handleWarmup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	if err := s.engine.Warmup(r.Context()); err != nil {
		writeJSONError(w, http.StatusServiceUnavailable, "warmup failed")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `{"status":"warmed up"}`)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","sessions":%d}`, s.store.Count())
}

func toTurns(history []HistoryTurn) []session.Turn {
	turns := make([]session.Turn, 0, len(history))
	for _, h := range history {
		role := session.RoleAssistant
		if h.Sender == "user" {
			role = session.RoleUser
		}
		turns = append(turns, session.Turn{Role: role, Text: h.Text})
	}
	return turns
}

func writeJSONError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	out, _ := sonic.Marshal(map[string]string{"error": msg})
	_, _ = w.Write(out)
}

func withCORS(allowed []string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && originAllowed(allowed, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Expose-Headers", "X-Session-ID")
		}
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func originAllowed(allowed []string, origin string) bool {
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}
