// Package server exposes the daily content, speech, and journal API over
// HTTP, with outbound asset fetches travelling through the offline resource
// cache.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/daybreakapp/daybreak/internal/codec"
	"github.com/daybreakapp/daybreak/internal/daily"
	"github.com/daybreakapp/daybreak/internal/journal"
)

// SpeechFunc produces the text-encoded audio payload for text.
type SpeechFunc func(ctx context.Context, text string) (string, error)

// Config wires the server's collaborators.
type Config struct {
	Daily   *daily.Cache
	Journal *journal.Journal
	Speech  SpeechFunc

	// SampleRate and Channels describe the PCM the speech generator
	// returns; they are echoed in response headers and used to validate
	// payload alignment.
	SampleRate int
	Channels   int

	// AssetOrigin is the upstream origin for /assets passthrough. Empty
	// disables the proxy.
	AssetOrigin string

	// AssetClient performs asset fetches; its transport is the resource
	// cache. Nil disables the proxy.
	AssetClient *http.Client
}

// Server is the HTTP API.
type Server struct {
	cfg     Config
	router  chi.Router
	metrics *metrics
}

// New builds the server and its routes.
func New(cfg Config) *Server {
	s := &Server{
		cfg:     cfg,
		metrics: newMetrics(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.metrics.handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/reflection/today", s.handleToday)
		r.Get("/reflection/topic/{topic}", s.handleTopic)
		r.Post("/speech", s.handleSpeech)

		r.Get("/journal", s.handleJournalList)
		r.Post("/journal", s.handleJournalAdd)
		r.Delete("/journal/{id}", s.handleJournalRemove)

		r.Post("/notify", s.handleNotify)

		r.Get("/intro", s.handleIntroState)
		r.Post("/intro/dismiss", s.handleIntroDismiss)
	})

	if cfg.AssetOrigin != "" && cfg.AssetClient != nil {
		r.Get("/assets/*", s.handleAsset)
	}

	s.router = r
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// CacheEvent exposes the metrics hook for the resource transport.
func (s *Server) CacheEvent(strategy, event string) {
	s.metrics.CacheEvent(strategy, event)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleToday serves the memoized daily reflection. The daily cache never
// fails: generation errors degrade to the fallback payload internally.
func (s *Server) handleToday(w http.ResponseWriter, r *http.Request) {
	reflection := s.cfg.Daily.GetOrGenerate(r.Context(), daily.KeyDaily)
	writeJSON(w, http.StatusOK, reflection)
}

func (s *Server) handleTopic(w http.ResponseWriter, r *http.Request) {
	topic := chi.URLParam(r, "topic")
	reflection := s.cfg.Daily.GetOrGenerate(r.Context(), topic)
	writeJSON(w, http.StatusOK, reflection)
}

type speechBody struct {
	Text string `json:"text"`
}

// handleSpeech synthesizes text and returns raw little-endian 16-bit PCM.
// The payload is decoded server-side so a generator contract violation
// (malformed encoding, misaligned bytes) never reaches a client as audio.
func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	var body speechBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	payload, err := s.cfg.Speech(r.Context(), body.Text)
	if err != nil {
		log.Warn("speech generation failed", "error", err)
		writeError(w, http.StatusBadGateway, "speech generation failed")
		return
	}

	data, err := codec.DecodeText(payload)
	if err == nil {
		_, err = codec.InterpretSamples(data, s.cfg.Channels)
	}
	if err != nil {
		log.Warn("speech payload rejected", "error", err)
		writeError(w, http.StatusBadGateway, "speech payload unusable")
		return
	}

	w.Header().Set("Content-Type",
		fmt.Sprintf("audio/L16;rate=%d;channels=%d", s.cfg.SampleRate, s.cfg.Channels))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleJournalList(w http.ResponseWriter, r *http.Request) {
	entries, err := s.cfg.Journal.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read journal")
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

type journalBody struct {
	Text string `json:"text"`
}

func (s *Server) handleJournalAdd(w http.ResponseWriter, r *http.Request) {
	var body journalBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	entry, err := s.cfg.Journal.Add(body.Text)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store entry")
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleJournalRemove(w http.ResponseWriter, r *http.Request) {
	err := s.cfg.Journal.Remove(chi.URLParam(r, "id"))
	if errors.Is(err, journal.ErrEntryNotFound) {
		writeError(w, http.StatusNotFound, "entry not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to remove entry")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleNotify claims today's notification slot. The first call of a day
// answers true; repeats answer false, so clients never notify twice.
func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	first, err := s.cfg.Journal.MarkNotified(daily.DayKey(time.Now()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store marker")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"shouldNotify": first})
}

func (s *Server) handleIntroState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"dismissed": s.cfg.Journal.IntroDismissed()})
}

func (s *Server) handleIntroDismiss(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Journal.DismissIntro(); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to store flag")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAsset proxies an app asset through the resource cache transport, so
// cached assets keep serving when the upstream is unreachable.
func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	upstream := s.cfg.AssetOrigin + "/" + path

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, upstream, nil)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad asset path")
		return
	}

	resp, err := s.cfg.AssetClient.Do(req)
	if err != nil {
		log.Warn("asset fetch failed", "path", path, "error", err)
		writeError(w, http.StatusBadGateway, "asset unavailable")
		return
	}
	defer resp.Body.Close()

	for k, values := range resp.Header {
		for _, v := range values {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)
}

// instrument records request counts and logs slow paths.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = r.URL.Path
		}
		s.metrics.requests.WithLabelValues(route, strconv.Itoa(ww.Status())).Inc()
		log.Debug("request served",
			"method", r.Method,
			"route", route,
			"status", ww.Status(),
			"elapsed", time.Since(started))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
