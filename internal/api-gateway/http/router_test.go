package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/sports-wager-platform/internal/shared/ratelimit"
)

// upstream grava os paths recebidos
type upstream struct {
	*httptest.Server
	mu    sync.Mutex
	paths []string
}

func newUpstream(t *testing.T, name string) *upstream {
	t.Helper()
	u := &upstream{}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.paths = append(u.paths, r.Method+" "+r.URL.RequestURI())
		u.mu.Unlock()
		w.Header().Set("X-Upstream", name)
		w.Header().Set("X-Seen-User", r.Header.Get("X-User-ID"))
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(u.Close)
	return u
}

func newGateway(t *testing.T, up Upstreams, quotas map[ratelimit.Op]ratelimit.Quota) http.Handler {
	t.Helper()
	clock := func() time.Time { return time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC) }
	h, err := NewRouter(up, ratelimit.New(ratelimit.NewMemoryStore(clock), quotas, nil), nil)
	require.NoError(t, err)
	return h
}

func send(h http.Handler, method, path, ip string) *httptest.ResponseRecorder {
	return sendVia(h, method, path, ip, "")
}

// sendVia simula uma requisição com X-Forwarded-For escolhido pelo cliente
func sendVia(h http.Handler, method, path, ip, xff string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(`{}`))
	req.RemoteAddr = ip + ":40000"
	req.Header.Set("X-User-ID", "alice")
	if xff != "" {
		req.Header.Set("X-Forwarded-For", xff)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRoutesToServices(t *testing.T) {
	bet := newUpstream(t, "bet")
	wallet := newUpstream(t, "wallet")
	h := newGateway(t, Upstreams{Bet: bet.URL, Wallet: wallet.URL}, ratelimit.DefaultQuotas())

	rec := send(h, http.MethodPost, "/api/bets", "10.0.0.1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "bet", rec.Header().Get("X-Upstream"))
	assert.Equal(t, "alice", rec.Header().Get("X-Seen-User"))

	send(h, http.MethodGet, "/api/bets/abc?x=1", "10.0.0.1")
	send(h, http.MethodPost, "/api/wallet/deposit", "10.0.0.1")

	assert.Equal(t, []string{"POST /bets", "GET /bets/abc?x=1"}, bet.paths)
	assert.Equal(t, []string{"POST /wallet/deposit"}, wallet.paths)

	assert.Equal(t, http.StatusNotFound, send(h, http.MethodGet, "/api/odds/1", "10.0.0.1").Code)
	// sem upstream de eventos a rota não existe
	assert.Equal(t, http.StatusNotFound, send(h, http.MethodGet, "/api/events", "10.0.0.1").Code)
}

func TestRoutesEventsReadOnly(t *testing.T) {
	bet := newUpstream(t, "bet")
	events := newUpstream(t, "events")
	h := newGateway(t, Upstreams{Bet: bet.URL, Wallet: bet.URL, Events: events.URL}, ratelimit.DefaultQuotas())

	rec := send(h, http.MethodGet, "/api/events", "10.0.0.7")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "events", rec.Header().Get("X-Upstream"))
	send(h, http.MethodGet, "/api/events/evt-1", "10.0.0.7")

	assert.Equal(t, http.StatusMethodNotAllowed, send(h, http.MethodPost, "/api/events", "10.0.0.7").Code)
	assert.Equal(t, []string{"GET /events", "GET /events/evt-1"}, events.paths)
}

func TestForwardedForDoesNotBypassQuota(t *testing.T) {
	bet := newUpstream(t, "bet")
	h := newGateway(t, Upstreams{Bet: bet.URL, Wallet: bet.URL}, map[ratelimit.Op]ratelimit.Quota{
		ratelimit.OpAPI: {Max: 2, Window: time.Minute},
	})

	require.Equal(t, http.StatusOK, sendVia(h, http.MethodGet, "/api/bets", "10.0.0.8", "203.0.113.1").Code)
	require.Equal(t, http.StatusOK, sendVia(h, http.MethodGet, "/api/bets", "10.0.0.8", "203.0.113.2").Code)
	// trocar o X-Forwarded-For não abre bucket novo
	assert.Equal(t, http.StatusTooManyRequests, sendVia(h, http.MethodGet, "/api/bets", "10.0.0.8", "203.0.113.3").Code)
	assert.Len(t, bet.paths, 2)
}

func TestTrustedProxyUsesForwardedFor(t *testing.T) {
	bet := newUpstream(t, "bet")
	h := newGateway(t, Upstreams{Bet: bet.URL, Wallet: bet.URL, TrustProxyHeaders: true}, map[ratelimit.Op]ratelimit.Quota{
		ratelimit.OpAPI: {Max: 1, Window: time.Minute},
	})

	// mesmo proxy, clientes diferentes
	require.Equal(t, http.StatusOK, sendVia(h, http.MethodGet, "/api/bets", "10.0.0.9", "203.0.113.1").Code)
	require.Equal(t, http.StatusOK, sendVia(h, http.MethodGet, "/api/bets", "10.0.0.9", "203.0.113.2").Code)
	assert.Equal(t, http.StatusTooManyRequests, sendVia(h, http.MethodGet, "/api/bets", "10.0.0.9", "203.0.113.1").Code)
}

func TestGeneralQuotaPerIP(t *testing.T) {
	bet := newUpstream(t, "bet")
	h := newGateway(t, Upstreams{Bet: bet.URL, Wallet: bet.URL}, map[ratelimit.Op]ratelimit.Quota{
		ratelimit.OpAPI: {Max: 3, Window: time.Minute},
	})

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, send(h, http.MethodGet, "/api/bets", "10.0.0.2").Code)
	}
	rec := send(h, http.MethodGet, "/api/bets", "10.0.0.2")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Len(t, bet.paths, 3)

	// outro IP tem bucket próprio
	assert.Equal(t, http.StatusOK, send(h, http.MethodGet, "/api/bets", "10.0.0.3").Code)
}

func TestLoginAndRegisterQuotas(t *testing.T) {
	bet := newUpstream(t, "bet")
	auth := newUpstream(t, "auth")
	h := newGateway(t, Upstreams{Bet: bet.URL, Wallet: bet.URL, Auth: auth.URL}, map[ratelimit.Op]ratelimit.Quota{
		ratelimit.OpAPI:      {Max: 100, Window: time.Minute},
		ratelimit.OpLogin:    {Max: 2, Window: time.Minute},
		ratelimit.OpRegister: {Max: 1, Window: time.Hour},
	})

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, send(h, http.MethodPost, "/api/auth/login", "10.0.0.4").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, send(h, http.MethodPost, "/api/auth/login", "10.0.0.4").Code)

	require.Equal(t, http.StatusOK, send(h, http.MethodPost, "/api/auth/register", "10.0.0.4").Code)
	assert.Equal(t, http.StatusTooManyRequests, send(h, http.MethodPost, "/api/auth/register", "10.0.0.4").Code)

	assert.Equal(t, []string{"POST /auth/login", "POST /auth/login", "POST /auth/register"}, auth.paths)
}

func TestUpstreamDownReturns502(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	h := newGateway(t, Upstreams{Bet: deadURL, Wallet: deadURL}, ratelimit.DefaultQuotas())
	rec := send(h, http.MethodGet, "/api/wallet", "10.0.0.5")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), "UPSTREAM_UNAVAILABLE")
}

func TestPreflightSkipsQuota(t *testing.T) {
	bet := newUpstream(t, "bet")
	h := newGateway(t, Upstreams{Bet: bet.URL, Wallet: bet.URL}, map[ratelimit.Op]ratelimit.Quota{
		ratelimit.OpAPI: {Max: 1, Window: time.Minute},
	})
	for i := 0; i < 3; i++ {
		rec := send(h, http.MethodOptions, "/api/bets", "10.0.0.6")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-User-ID")
	}
	assert.Empty(t, bet.paths)
}

func TestInvalidUpstream(t *testing.T) {
	_, err := NewRouter(Upstreams{Bet: "not a url", Wallet: "http://wallet:8082"}, ratelimit.New(ratelimit.NewMemoryStore(nil), nil, nil), nil)
	assert.Error(t, err)
}
