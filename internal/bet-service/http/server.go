package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/sports-wager-platform/internal/bet-service/dto"
	"github.com/radieske/sports-wager-platform/internal/bet-service/placement"
	"github.com/radieske/sports-wager-platform/internal/bet-service/repo"
	"github.com/radieske/sports-wager-platform/internal/shared/apperr"
	"github.com/radieske/sports-wager-platform/internal/shared/ratelimit"
)

// UserHeader carrega o usuário autenticado, preenchido pelo api-gateway
const UserHeader = "X-User-ID"

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Placer coloca apostas (implementado por *placement.Orchestrator)
type Placer interface {
	Place(ctx context.Context, userID string, req placement.Request) (repo.Bet, error)
}

// Queries são as leituras de apostas do próprio usuário
type Queries interface {
	GetBet(ctx context.Context, userID, betID string) (repo.Bet, error)
	ListBets(ctx context.Context, userID string, limit, offset int) ([]repo.Bet, error)
}

type Server struct {
	log     *zap.Logger
	placer  Placer
	queries Queries
	limiter *ratelimit.Limiter
}

func NewServer(log *zap.Logger, p Placer, q Queries, l *ratelimit.Limiter) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{log: log, placer: p, queries: q, limiter: l}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Group(func(r chi.Router) {
		r.Use(requireUser)
		r.Post("/bets", s.placeBet)   // coloca aposta simples
		r.Get("/bets", s.listBets)    // ?limit=&offset=
		r.Get("/bets/{id}", s.getBet) // somente apostas do próprio usuário
	})
	return r
}

func (s *Server) placeBet(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(UserHeader)

	if s.limiter != nil {
		if err := s.limiter.Check(r.Context(), ratelimit.OpBet, userID); err != nil {
			ratelimit.WriteExceeded(w, err)
			return
		}
	}

	var req dto.PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Wrap(apperr.KindInvalid, "bad json", err))
		return
	}
	if req.EventID == "" || req.Market == "" || req.Selection == "" {
		writeError(w, fmt.Errorf("%w: eventId, market and selection are required", apperr.ErrInvalid))
		return
	}
	if !req.Odds.IsPositive() {
		writeError(w, fmt.Errorf("%w: odds must be positive", apperr.ErrInvalid))
		return
	}

	bet, err := s.placer.Place(r.Context(), userID, placement.Request{
		EventID:    req.EventID,
		Market:     req.Market,
		Selection:  req.Selection,
		QuotedOdds: req.Odds,
		Stake:      req.Stake,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toResponse(bet))
}

func (s *Server) getBet(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(UserHeader)
	id := chi.URLParam(r, "id")

	bet, err := s.queries.GetBet(r.Context(), userID, id)
	if errors.Is(err, repo.ErrNotFound) {
		writeError(w, fmt.Errorf("bet %s: %w", id, apperr.ErrNotFound))
		return
	}
	if err != nil {
		s.log.Error("get bet", zap.String("bet_id", id), zap.Error(err))
		writeError(w, apperr.Wrap(apperr.KindStoreFailure, "get bet", err))
		return
	}
	writeJSON(w, http.StatusOK, toResponse(bet))
}

func (s *Server) listBets(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(UserHeader)
	limit := queryInt(r, "limit", defaultListLimit)
	if limit < 1 {
		limit = 1
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	bets, err := s.queries.ListBets(r.Context(), userID, limit, offset)
	if err != nil {
		s.log.Error("list bets", zap.String("user_id", userID), zap.Error(err))
		writeError(w, apperr.Wrap(apperr.KindStoreFailure, "list bets", err))
		return
	}
	out := dto.BetListResponse{Bets: make([]dto.BetResponse, 0, len(bets)), Limit: limit, Offset: offset}
	for _, b := range bets {
		out.Bets = append(out.Bets, toResponse(b))
	}
	writeJSON(w, http.StatusOK, out)
}

// requireUser rejeita requisições sem usuário autenticado
func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(UserHeader) == "" {
			writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "UNAUTHENTICATED", Message: "missing user"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func toResponse(b repo.Bet) dto.BetResponse {
	return dto.BetResponse{
		BetID:           b.ID,
		EventID:         b.EventID,
		Market:          b.Market,
		Selection:       b.Selection,
		Stake:           b.Stake,
		Odds:            b.OddsAtPlacement,
		PotentialPayout: b.PotentialPayout,
		Status:          b.Status,
		CreatedAt:       b.CreatedAt,
	}
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
	if apperr.KindOf(err) == apperr.KindRateLimitExceeded {
		ratelimit.WriteExceeded(w, err)
		return
	}
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, status, dto.ErrorResponse{Error: string(kind), Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
