package ratelimit

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
)

// ClientIP extrai o IP do cliente do RemoteAddr da conexão
// Cabeçalhos de proxy são ignorados; atrás de um proxy conhecido use middleware.RealIP antes
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware limita a operação op usando a chave extraída da requisição
func (l *Limiter) Middleware(op Op, key func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := l.Check(r.Context(), op, key(r)); err != nil {
				WriteExceeded(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WriteExceeded responde 429 com a cota configurada
func WriteExceeded(w http.ResponseWriter, err error) {
	body := map[string]any{"error": "RATE_LIMIT_EXCEEDED", "message": err.Error()}
	var ex *ExceededError
	if errors.As(err, &ex) {
		body["max_requests"] = ex.Quota.Max
		body["window_seconds"] = int(ex.Quota.Window.Seconds())
		w.Header().Set("Retry-After", strconv.Itoa(int(ex.Quota.Window.Seconds())))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(body)
}
