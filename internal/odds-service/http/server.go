package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/sports-wager-platform/internal/odds-service/dto"
	"github.com/radieske/sports-wager-platform/internal/odds-service/repo"
	"github.com/radieske/sports-wager-platform/internal/shared/apperr"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Reader são as consultas de eventos (implementado por *repo.ReadRepo)
type Reader interface {
	ListEvents(ctx context.Context, f repo.EventFilter) ([]repo.Event, error)
	GetEvent(ctx context.Context, id string) (repo.Event, error)
}

// Overlay aplica as odds ao vivo sobre as gravadas (implementado por *cache.LiveOdds)
type Overlay interface {
	Apply(ctx context.Context, evs []repo.Event)
}

// Server expõe a consulta pública de eventos e odds
type Server struct {
	log    *zap.Logger
	events Reader
	live   Overlay
	Now    func() time.Time
}

func NewServer(log *zap.Logger, events Reader, live Overlay) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{log: log, events: events, live: live, Now: time.Now}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/events", s.listEvents)
	r.Get("/events/{id}", s.getEvent)
	return r
}

// listEvents: ?status= filtra por status; ?limit= limitado a maxListLimit
func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	status := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("status")))
	if status != "" && !repo.ValidStatus(status) {
		writeError(w, fmt.Errorf("%w: unknown status %q", apperr.ErrInvalid, status))
		return
	}
	limit := queryInt(r, "limit", defaultListLimit)
	if limit < 1 {
		limit = 1
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	evs, err := s.events.ListEvents(r.Context(), repo.EventFilter{Status: status, Now: s.Now(), Limit: limit})
	if err != nil {
		s.log.Error("list events", zap.String("status", status), zap.Error(err))
		writeError(w, apperr.Wrap(apperr.KindStoreFailure, "list events", err))
		return
	}
	s.overlay(r.Context(), evs)

	out := dto.EventListResponse{Events: make([]dto.EventResponse, 0, len(evs)), Limit: limit}
	for _, e := range evs {
		out.Events = append(out.Events, toResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ev, err := s.events.GetEvent(r.Context(), id)
	if errors.Is(err, repo.ErrNotFound) {
		writeError(w, fmt.Errorf("event %s: %w", id, apperr.ErrEventNotFound))
		return
	}
	if err != nil {
		s.log.Error("get event", zap.String("event_id", id), zap.Error(err))
		writeError(w, apperr.Wrap(apperr.KindStoreFailure, "get event", err))
		return
	}
	evs := []repo.Event{ev}
	s.overlay(r.Context(), evs)
	writeJSON(w, http.StatusOK, toResponse(evs[0]))
}

func (s *Server) overlay(ctx context.Context, evs []repo.Event) {
	if s.live != nil {
		s.live.Apply(ctx, evs)
	}
}

func toResponse(e repo.Event) dto.EventResponse {
	out := dto.EventResponse{
		ID:        e.ID,
		HomeTeam:  e.HomeTeam,
		AwayTeam:  e.AwayTeam,
		Status:    e.Status,
		StartTime: e.StartTime,
		Odds:      make([]dto.OddResponse, 0, len(e.Odds)),
	}
	for _, o := range e.Odds {
		out.Odds = append(out.Odds, dto.OddResponse{
			Market:    o.Market,
			Selection: o.Selection,
			Odds:      o.Price,
			Version:   o.Version,
			UpdatedAt: o.UpdatedAt,
			Live:      o.Live,
		})
	}
	return out
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// writeError mapeia o Kind para status; detalhes de falhas internas não vazam
func writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, status, dto.ErrorResponse{Error: string(kind), Message: msg})
}

// writeJSON serializa a resposta em JSON e define o status HTTP
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
