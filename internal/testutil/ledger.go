// Package testutil traz dublês de infraestrutura para os testes dos serviços.
package testutil

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/radieske/sports-wager-platform/internal/bet-service/repo"
	"github.com/radieske/sports-wager-platform/internal/shared/balance"
)

// Operações que aceitam falha injetada via Ledger.FailOn
const (
	OpGetEvent     = "GetEvent"
	OpGetWallet    = "GetWalletForUpdate"
	OpUpdateWallet = "UpdateWalletBalance"
	OpInsertBet    = "InsertBet"
	OpInsertAudit  = "InsertAudit"
	OpGetLimits    = "GetSpendLimits"
	OpSumStakes    = "SumStakesSince"
	OpCommit       = "Commit"
)

type state struct {
	events  map[string]repo.Event
	wallets map[string]repo.Wallet // por user_id
	bets    []repo.Bet
	audits  []repo.AuditTransaction
	limits  map[string]repo.SpendLimits
}

func (s state) clone() state {
	c := state{
		events:  make(map[string]repo.Event, len(s.events)),
		wallets: make(map[string]repo.Wallet, len(s.wallets)),
		bets:    append([]repo.Bet(nil), s.bets...),
		audits:  append([]repo.AuditTransaction(nil), s.audits...),
		limits:  make(map[string]repo.SpendLimits, len(s.limits)),
	}
	for k, v := range s.events {
		c.events[k] = v
	}
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	for k, v := range s.limits {
		c.limits[k] = v
	}
	return c
}

// Ledger é um repo.Ledger em memória. Transações são serializadas por um mutex
// global e aplicadas tudo-ou-nada no commit.
type Ledger struct {
	mu     sync.Mutex
	st     state
	faults map[string]error

	// BeforeOp, se definido, roda antes de cada operação dentro da transação
	BeforeOp func(op string)
}

func NewLedger() *Ledger {
	return &Ledger{
		st: state{
			events:  map[string]repo.Event{},
			wallets: map[string]repo.Wallet{},
			limits:  map[string]repo.SpendLimits{},
		},
		faults: map[string]error{},
	}
}

// FailOn faz a operação op devolver err nas próximas transações
func (l *Ledger) FailOn(op string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err == nil {
		delete(l.faults, op)
		return
	}
	l.faults[op] = err
}

func (l *Ledger) WithinTx(ctx context.Context, fn func(ctx context.Context, tx repo.Tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	staged := l.st.clone()
	tx := &memTx{l: l, st: &staged}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.fault(OpCommit); err != nil {
		return err
	}
	l.st = staged
	return nil
}

type memTx struct {
	l  *Ledger
	st *state
}

func (t *memTx) fault(op string) error {
	if t.l.BeforeOp != nil {
		t.l.BeforeOp(op)
	}
	return t.l.faults[op]
}

func (t *memTx) GetEvent(_ context.Context, eventID string) (repo.Event, error) {
	if err := t.fault(OpGetEvent); err != nil {
		return repo.Event{}, err
	}
	ev, ok := t.st.events[eventID]
	if !ok {
		return repo.Event{}, repo.ErrNotFound
	}
	return ev, nil
}

func (t *memTx) GetWalletForUpdate(_ context.Context, userID string) (repo.Wallet, error) {
	if err := t.fault(OpGetWallet); err != nil {
		return repo.Wallet{}, err
	}
	w, ok := t.st.wallets[userID]
	if !ok {
		return repo.Wallet{}, repo.ErrNotFound
	}
	return w, nil
}

func (t *memTx) UpdateWalletBalance(_ context.Context, w repo.Wallet, next balance.Encrypted) error {
	if err := t.fault(OpUpdateWallet); err != nil {
		return err
	}
	cur, ok := t.st.wallets[w.UserID]
	if !ok || cur.ID != w.ID || cur.Version != w.Version {
		return repo.ErrConcurrentUpdate
	}
	cur.Balance = next
	cur.Version++
	t.st.wallets[w.UserID] = cur
	return nil
}

func (t *memTx) InsertBet(_ context.Context, b repo.Bet) error {
	if err := t.fault(OpInsertBet); err != nil {
		return err
	}
	t.st.bets = append(t.st.bets, b)
	return nil
}

func (t *memTx) InsertAudit(_ context.Context, a repo.AuditTransaction) error {
	if err := t.fault(OpInsertAudit); err != nil {
		return err
	}
	t.st.audits = append(t.st.audits, a)
	return nil
}

func (t *memTx) GetSpendLimits(_ context.Context, userID string) (repo.SpendLimits, error) {
	if err := t.fault(OpGetLimits); err != nil {
		return repo.SpendLimits{}, err
	}
	lim, ok := t.st.limits[userID]
	if !ok {
		return repo.SpendLimits{}, repo.ErrNotFound
	}
	return lim, nil
}

func (t *memTx) SumStakesSince(_ context.Context, userID string, since time.Time) (decimal.Decimal, error) {
	if err := t.fault(OpSumStakes); err != nil {
		return decimal.Zero, err
	}
	sum := decimal.Zero
	for _, b := range t.st.bets {
		if b.UserID == userID && b.Status != repo.BetCancelled && b.CreatedAt.After(since) {
			sum = sum.Add(b.Stake)
		}
	}
	return sum, nil
}

// Leituras fora de transação (fraude e consultas)

func (l *Ledger) CountBetsSince(_ context.Context, userID string, since time.Time) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var n int64
	for _, b := range l.st.bets {
		if b.UserID == userID && b.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (l *Ledger) AvgStakeSince(_ context.Context, userID string, since time.Time) (decimal.Decimal, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var stakes []decimal.Decimal
	for _, b := range l.st.bets {
		if b.UserID == userID && b.CreatedAt.After(since) {
			stakes = append(stakes, b.Stake)
		}
	}
	if len(stakes) == 0 {
		return decimal.Zero, false, nil
	}
	return decimal.Avg(stakes[0], stakes[1:]...), true, nil
}

func (l *Ledger) GetBet(_ context.Context, userID, betID string) (repo.Bet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, b := range l.st.bets {
		if b.ID == betID && b.UserID == userID {
			return b, nil
		}
	}
	return repo.Bet{}, repo.ErrNotFound
}

func (l *Ledger) ListBets(_ context.Context, userID string, limit, offset int) ([]repo.Bet, error) {
	l.mu.Lock()
	var out []repo.Bet
	for _, b := range l.st.bets {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	l.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// Seeds

func (l *Ledger) PutEvent(ev repo.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.st.events[ev.ID] = ev
}

func (l *Ledger) PutLimits(lim repo.SpendLimits) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.st.limits[lim.UserID] = lim
}

// PutBet grava uma aposta histórica diretamente, sem débito na carteira
func (l *Ledger) PutBet(b repo.Bet) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.st.bets = append(l.st.bets, b)
}

// FundWallet cria (ou substitui) a carteira do usuário com o saldo cifrado
func (l *Ledger) FundWallet(t testing.TB, c *balance.Cipher, userID, amount string) repo.Wallet {
	t.Helper()
	enc, err := c.Encrypt(decimal.RequireFromString(amount))
	require.NoError(t, err)

	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.st.wallets[userID]
	if !ok {
		w = repo.Wallet{ID: uuid.NewString(), UserID: userID, Version: 1}
	}
	w.Balance = enc
	l.st.wallets[userID] = w
	return w
}

// PutWallet grava a carteira como está (útil para simular dados corrompidos)
func (l *Ledger) PutWallet(w repo.Wallet) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.st.wallets[w.UserID] = w
}

// Inspeção

func (l *Ledger) Wallet(userID string) (repo.Wallet, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.st.wallets[userID]
	return w, ok
}

// Balance decifra o saldo atual da carteira
func (l *Ledger) Balance(t testing.TB, c *balance.Cipher, userID string) decimal.Decimal {
	t.Helper()
	w, ok := l.Wallet(userID)
	require.True(t, ok, "wallet for %s not found", userID)
	v, err := c.Decrypt(w.Balance)
	require.NoError(t, err)
	return v
}

func (l *Ledger) Bets() []repo.Bet {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]repo.Bet(nil), l.st.bets...)
}

func (l *Ledger) Audits() []repo.AuditTransaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]repo.AuditTransaction(nil), l.st.audits...)
}

// TestCipher devolve um cipher com chave fixa de teste
func TestCipher(t testing.TB) *balance.Cipher {
	t.Helper()
	c, err := balance.New([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)
	return c
}
