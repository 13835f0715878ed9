package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"llm-colosseum/server/battle"
	"llm-colosseum/server/config"
	"llm-colosseum/server/store"
)

const maxRequestBody = 10 << 20

// Server wires the protocol handler, stores and relay behind the HTTP API.
type Server struct {
	cfg     *config.Config
	store   store.Store
	handler *battle.Handler
	relay   *Relay
	log     *slog.Logger
}

func NewServer(cfg *config.Config, st store.Store, h *battle.Handler, relay *Relay, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{cfg: cfg, store: st, handler: h, relay: relay, log: log}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/v1/models", s.handleModels)
	r.Get("/v1/leaderboard", s.handleLeaderboard)
	r.With(s.requireAPIKey).Post("/v1/chat/completions", s.handleChatCompletions)

	return r
}

// requireAPIKey enforces the static shared secret when one is configured.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIKey == "" {
			next.ServeHTTP(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			writeErrorJSON(w, http.StatusUnauthorized, "missing API key: provide 'Bearer YOUR_KEY' in the Authorization header")
			return
		}
		if strings.TrimPrefix(auth, "Bearer ") != s.cfg.APIKey {
			writeErrorJSON(w, http.StatusUnauthorized, "invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// handleModels advertises the single arena model that triggers battle mode.
func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"object": "list",
		"data": []map[string]any{{
			"id":       s.cfg.ArenaModelID,
			"object":   "model",
			"created":  time.Now().Unix(),
			"owned_by": "battle-arena-server",
		}},
	})
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	standings, err := s.store.Leaderboard(r.Context())
	if err != nil {
		s.log.Error("leaderboard read failed", "err", err)
		writeErrorJSON(w, http.StatusInternalServerError, "leaderboard unavailable")
		return
	}
	writeJSON(w, http.StatusOK, standings)
}

func (s *Server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "could not read request body")
		return
	}

	req, instr, perr := battle.ParseRequest(body)
	if req == nil {
		writeErrorJSON(w, http.StatusBadRequest, perr.Error())
		return
	}
	if req.Model != s.cfg.ArenaModelID {
		writeErrorJSON(w, http.StatusBadRequest, "model must be '"+s.cfg.ArenaModelID+"'")
		return
	}
	if perr != nil {
		battleErrors.Inc()
		s.renderLocal(w, req.Stream, "[Battle Mode Error]: "+perr.Error(), "battle_error")
		return
	}

	res := s.handler.Handle(r.Context(), req, instr)
	switch res := res.(type) {
	case battle.Win:
		battlesResolved.WithLabelValues(string(res.Winner)).Inc()
		content := "Battle result recorded.\nRPID: " + res.SessionID +
			"\n--------------------\nA: " + res.ModelA + " vs B: " + res.ModelB
		s.renderLocal(w, req.Stream, content, "battle_results")
	case battle.Error:
		battleErrors.Inc()
		s.renderLocal(w, req.Stream, "[Battle Mode Error]: "+res.Message, "battle_error")
	case battle.Generate:
		if instr.Kind == battle.KindStart {
			battlesStarted.Inc()
		}
		s.forward(w, r, req, res)
	default:
		writeErrorJSON(w, http.StatusInternalServerError, "unknown battle handler result")
	}
}

// forward sends the rewritten request to the generation backend and relays
// its response verbatim, streamed or whole.
func (s *Server) forward(w http.ResponseWriter, r *http.Request, req *battle.ChatRequest, gen battle.Generate) {
	resp, err := s.relay.ChatCompletions(r.Context(), gen.Body)
	if err != nil {
		s.log.Error("generation backend call failed", "err", err)
		writeErrorJSON(w, http.StatusBadGateway, "generation backend unavailable: "+err.Error())
		return
	}
	defer resp.Body.Close()

	if req.Stream {
		ct := resp.Header.Get("Content-Type")
		if ct == "" {
			ct = "text/event-stream"
		}
		w.Header().Set("Content-Type", ct)
		w.Header().Set("Cache-Control", "no-cache")
		relayStream(w, resp.Body, gen.DisplayLabel)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err := io.Copy(w, resp.Body); err != nil {
		s.log.Error("backend response copy failed", "err", err)
	}
}

// renderLocal answers WIN/ERROR results immediately in OpenAI shape, as a
// short SSE stream or a whole completion depending on the caller's request.
func (s *Server) renderLocal(w http.ResponseWriter, stream bool, content, modelName string) {
	requestID := newResponseID()
	if stream {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = io.WriteString(w, formatChunk(content, modelName, requestID))
		_, _ = io.WriteString(w, formatFinishChunk(modelName, requestID))
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		return
	}
	writeJSON(w, http.StatusOK, formatCompletion(content, modelName, requestID))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeErrorJSON(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": map[string]any{"message": msg, "type": "invalid_request_error"}})
}
