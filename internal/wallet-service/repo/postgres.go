package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/radieske/sports-wager-platform/internal/shared/apperr"
	"github.com/radieske/sports-wager-platform/internal/shared/balance"
)

// Tipos de lançamento gravados por este serviço
const (
	TxDeposit  = "DEPOSIT"
	TxWithdraw = "WITHDRAW"
)

// ErrConcurrentUpdate indica que a versão da carteira mudou entre a leitura e a escrita
var ErrConcurrentUpdate = errors.New("wallet modified concurrently")

type Cipher interface {
	Encrypt(amount decimal.Decimal) (balance.Encrypted, error)
	Decrypt(b balance.Encrypted) (decimal.Decimal, error)
}

// Postgres implementa operações de carteira em banco; o saldo fica sempre cifrado
type Postgres struct {
	db     *sql.DB
	cipher Cipher
	Now    func() time.Time
}

func NewPostgres(db *sql.DB, c Cipher) *Postgres {
	return &Postgres{db: db, cipher: c, Now: time.Now}
}

// GetOrCreateWallet retorna o walletId e saldo de um usuário, criando a carteira se não existir
func (p *Postgres) GetOrCreateWallet(ctx context.Context, userID string) (walletID string, bal decimal.Decimal, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", decimal.Zero, err
	}
	defer tx.Rollback()

	w, err := p.ensureWallet(ctx, tx, userID, false)
	if err != nil {
		return "", decimal.Zero, err
	}
	bal, err = p.cipher.Decrypt(w.enc)
	if err != nil {
		return "", decimal.Zero, err
	}
	if err = tx.Commit(); err != nil {
		return "", decimal.Zero, err
	}
	return w.id, bal, nil
}

// Deposit credita a carteira (criando se preciso) e registra DEPOSIT na auditoria
func (p *Postgres) Deposit(ctx context.Context, userID string, amount decimal.Decimal) (walletID string, newBalance decimal.Decimal, err error) {
	return p.mutate(ctx, userID, TxDeposit, amount)
}

// Withdraw debita a carteira e registra WITHDRAW; saldo nunca fica negativo
func (p *Postgres) Withdraw(ctx context.Context, userID string, amount decimal.Decimal) (walletID string, newBalance decimal.Decimal, err error) {
	return p.mutate(ctx, userID, TxWithdraw, amount)
}

type walletRow struct {
	id      string
	enc     balance.Encrypted
	version int64
}

// mutate segue o mesmo protocolo do débito da aposta: FOR UPDATE, decifra,
// aplica, cifra com nonce novo, compare-and-swap de versão e auditoria
func (p *Postgres) mutate(ctx context.Context, userID, kind string, amount decimal.Decimal) (string, decimal.Decimal, error) {
	if err := ValidateAmount(amount); err != nil {
		return "", decimal.Zero, err
	}

	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return "", decimal.Zero, apperr.Wrap(apperr.KindStoreFailure, "begin tx", err)
	}
	defer tx.Rollback()

	w, err := p.ensureWallet(ctx, tx, userID, true)
	if err != nil {
		return "", decimal.Zero, err
	}
	before, err := p.cipher.Decrypt(w.enc)
	if err != nil {
		return "", decimal.Zero, err
	}
	after, err := Apply(kind, before, amount)
	if err != nil {
		return "", decimal.Zero, err
	}
	enc, err := p.cipher.Encrypt(after)
	if err != nil {
		return "", decimal.Zero, err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance_ciphertext=$1, balance_nonce=$2, version=version+1, updated_at=NOW()
		WHERE id=$3 AND version=$4`, enc.Ciphertext, enc.Nonce, w.id, w.version)
	if err != nil {
		return "", decimal.Zero, apperr.Wrap(apperr.KindStoreFailure, "update wallet", err)
	}
	if err := expectOneRow(res); err != nil {
		return "", decimal.Zero, err
	}

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO audit_transactions (id, user_id, wallet_id, type, amount, balance_before, balance_after, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		uuid.NewString(), userID, w.id, kind, amount, before, after, p.Now()); err != nil {
		return "", decimal.Zero, apperr.Wrap(apperr.KindStoreFailure, "insert audit", err)
	}

	if err = tx.Commit(); err != nil {
		return "", decimal.Zero, apperr.Wrap(apperr.KindStoreFailure, "commit", err)
	}
	return w.id, after, nil
}

// expectOneRow confirma que o compare-and-swap de versão atingiu exatamente a carteira lida
func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Wrap(apperr.KindStoreFailure, "update wallet rows", err)
	}
	if n != 1 {
		return apperr.Wrap(apperr.KindStoreFailure, "update wallet", ErrConcurrentUpdate)
	}
	return nil
}

// ensureWallet cria a carteira com saldo zero cifrado se não existir e a lê (opcionalmente com lock)
func (p *Postgres) ensureWallet(ctx context.Context, tx *sql.Tx, userID string, lock bool) (walletRow, error) {
	zero, err := p.cipher.Encrypt(decimal.Zero)
	if err != nil {
		return walletRow{}, err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (id, user_id, balance_ciphertext, balance_nonce, version)
		VALUES ($1,$2,$3,$4,1)
		ON CONFLICT (user_id) DO NOTHING`,
		uuid.NewString(), userID, zero.Ciphertext, zero.Nonce); err != nil {
		return walletRow{}, apperr.Wrap(apperr.KindStoreFailure, "create wallet", err)
	}

	q := `SELECT id, balance_ciphertext, balance_nonce, version FROM wallets WHERE user_id=$1`
	if lock {
		q += ` FOR UPDATE`
	}
	var w walletRow
	if err := tx.QueryRowContext(ctx, q, userID).Scan(&w.id, &w.enc.Ciphertext, &w.enc.Nonce, &w.version); err != nil {
		return walletRow{}, apperr.Wrap(apperr.KindStoreFailure, fmt.Sprintf("select wallet %s", userID), err)
	}
	return w, nil
}
