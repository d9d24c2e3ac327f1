package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/sports-wager-platform/internal/shared/apperr"
	"github.com/radieske/sports-wager-platform/internal/shared/ratelimit"
	"github.com/radieske/sports-wager-platform/internal/wallet-service/dto"
	"github.com/radieske/sports-wager-platform/internal/wallet-service/repo"
)

// UserHeader carrega o usuário autenticado, preenchido pelo api-gateway
const UserHeader = "X-User-ID"

// Repo define a interface de operações de carteira usadas pelo handler HTTP
type Repo interface {
	GetOrCreateWallet(ctx context.Context, userID string) (walletID string, balance decimal.Decimal, err error)
	Deposit(ctx context.Context, userID string, amount decimal.Decimal) (walletID string, newBalance decimal.Decimal, err error)
	Withdraw(ctx context.Context, userID string, amount decimal.Decimal) (walletID string, newBalance decimal.Decimal, err error)
	ListTransactions(ctx context.Context, userID string, limit, offset int) ([]repo.Transaction, error)
}

// Server expõe endpoints HTTP para operações de carteira (wallet)
type Server struct {
	log     *zap.Logger
	repo    Repo
	limiter *ratelimit.Limiter
}

// NewServer instancia o servidor HTTP de wallet
func NewServer(log *zap.Logger, repo Repo, l *ratelimit.Limiter) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{log: log, repo: repo, limiter: l}
}

// Router retorna o roteador HTTP com as rotas da API de wallet
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requireUser)

	userKey := func(r *http.Request) string { return r.Header.Get(UserHeader) }

	r.Get("/wallet", s.getWallet)
	r.Get("/wallet/transactions", s.listTransactions)
	r.With(s.limit(ratelimit.OpDeposit, userKey)).Post("/wallet/deposit", s.deposit)
	r.With(s.limit(ratelimit.OpWithdraw, userKey)).Post("/wallet/withdraw", s.withdraw)
	return r
}

func (s *Server) limit(op ratelimit.Op, key func(*http.Request) string) func(http.Handler) http.Handler {
	if s.limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return s.limiter.Middleware(op, key)
}

// getWallet retorna (ou cria) a carteira e saldo do usuário
func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(UserHeader)
	walletID, bal, err := s.repo.GetOrCreateWallet(r.Context(), userID)
	if err != nil {
		s.fail(w, "get wallet", userID, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.WalletResponse{UserID: userID, WalletID: walletID, Balance: bal})
}

// deposit adiciona saldo à carteira do usuário
func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, "deposit", s.repo.Deposit)
}

// withdraw retira saldo; nunca deixa a carteira negativa
func (s *Server) withdraw(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, "withdraw", s.repo.Withdraw)
}

// listTransactions pagina o histórico do usuário, mais recentes primeiro
func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(UserHeader)
	limit := queryInt(r, "limit", repo.DefaultTransactionsLimit)
	if limit < 1 {
		limit = 1
	}
	if limit > repo.MaxTransactionsLimit {
		limit = repo.MaxTransactionsLimit
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	txs, err := s.repo.ListTransactions(r.Context(), userID, limit, offset)
	if err != nil {
		s.fail(w, "list transactions", userID, err)
		return
	}
	out := dto.TransactionListResponse{Transactions: make([]dto.TransactionResponse, 0, len(txs)), Limit: limit, Offset: offset}
	for _, t := range txs {
		out.Transactions = append(out.Transactions, dto.TransactionResponse{
			ID:            t.ID,
			Type:          t.Type,
			Amount:        t.Amount,
			BalanceBefore: t.BalanceBefore,
			BalanceAfter:  t.BalanceAfter,
			BetID:         t.BetID,
			CreatedAt:     t.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type mutation func(ctx context.Context, userID string, amount decimal.Decimal) (string, decimal.Decimal, error)

func (s *Server) mutate(w http.ResponseWriter, r *http.Request, name string, fn mutation) {
	userID := r.Header.Get(UserHeader)
	var req dto.AmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperr.Wrap(apperr.KindInvalid, "bad json", err))
		return
	}
	walletID, bal, err := fn(r.Context(), userID, req.Amount)
	if err != nil {
		s.fail(w, name, userID, err)
		return
	}
	s.log.Info("wallet "+name, zap.String("user_id", userID), zap.String("amount", req.Amount.String()))
	writeJSON(w, http.StatusOK, dto.WalletResponse{UserID: userID, WalletID: walletID, Balance: bal})
}

func (s *Server) fail(w http.ResponseWriter, op, userID string, err error) {
	if apperr.HTTPStatus(apperr.KindOf(err)) == http.StatusInternalServerError {
		s.log.Error(op, zap.String("user_id", userID), zap.Error(err))
	}
	writeError(w, err)
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

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(UserHeader) == "" {
			writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "UNAUTHENTICATED", Message: "missing user"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeJSON(w, status, dto.ErrorResponse{Error: string(kind), Message: msg})
}

// writeJSON serializa e envia resposta JSON
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
