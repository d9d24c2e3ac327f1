package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/sports-wager-platform/internal/shared/ratelimit"
)

// Upstreams são as bases dos serviços atrás do gateway; Events e Auth são opcionais
type Upstreams struct {
	Bet    string
	Wallet string
	Events string
	Auth   string

	// TrustProxyHeaders aplica middleware.RealIP: o IP das cotas vem de X-Forwarded-For/X-Real-IP
	TrustProxyHeaders bool
}

// NewRouter monta o gateway: CORS, cota geral por IP e proxy para cada serviço
// Login e cadastro têm cotas próprias por IP, além da geral
func NewRouter(up Upstreams, limiter *ratelimit.Limiter, log *zap.Logger) (http.Handler, error) {
	if log == nil {
		log = zap.NewNop()
	}

	bet, err := proxy(up.Bet, log)
	if err != nil {
		return nil, fmt.Errorf("bet upstream: %w", err)
	}
	wallet, err := proxy(up.Wallet, log)
	if err != nil {
		return nil, fmt.Errorf("wallet upstream: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if up.TrustProxyHeaders {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(withCORS)
	r.Use(limiter.Middleware(ratelimit.OpAPI, ratelimit.ClientIP))

	// /api/bets/* -> bet-service (/bets/*)
	r.Handle("/api/bets", http.StripPrefix("/api", bet))
	r.Handle("/api/bets/*", http.StripPrefix("/api", bet))

	// /api/wallet/* -> wallet-service (/wallet/*)
	r.Handle("/api/wallet", http.StripPrefix("/api", wallet))
	r.Handle("/api/wallet/*", http.StripPrefix("/api", wallet))

	// /api/events/* -> odds-service (/events/*), somente leitura
	if up.Events != "" {
		events, err := proxy(up.Events, log)
		if err != nil {
			return nil, fmt.Errorf("events upstream: %w", err)
		}
		r.Get("/api/events", http.StripPrefix("/api", events).ServeHTTP)
		r.Get("/api/events/*", http.StripPrefix("/api", events).ServeHTTP)
	}

	if up.Auth != "" {
		auth, err := proxy(up.Auth, log)
		if err != nil {
			return nil, fmt.Errorf("auth upstream: %w", err)
		}
		r.With(limiter.Middleware(ratelimit.OpLogin, ratelimit.ClientIP)).
			Post("/api/auth/login", http.StripPrefix("/api", auth).ServeHTTP)
		r.With(limiter.Middleware(ratelimit.OpRegister, ratelimit.ClientIP)).
			Post("/api/auth/register", http.StripPrefix("/api", auth).ServeHTTP)
	}

	return r, nil
}

func proxy(target string, log *zap.Logger) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid upstream url %q", target)
	}
	rp := httputil.NewSingleHostReverseProxy(u)
	rp.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn("upstream unavailable", zap.String("upstream", u.Host), zap.String("path", r.URL.Path), zap.Error(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "UPSTREAM_UNAVAILABLE", "message": "service unavailable"})
	}
	return rp, nil
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-ID")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
