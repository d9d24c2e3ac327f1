// Package balance cifra saldos monetários com AES-256-GCM.
//
// O valor é serializado como string decimal canônica antes de cifrar, para que
// decrypt(encrypt(x)) devolva exatamente x. Cada chamada a Encrypt sorteia um
// nonce novo de 96 bits; nada é cacheado entre chamadas.
package balance

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/shopspring/decimal"

	"github.com/radieske/sports-wager-platform/internal/shared/apperr"
)

const (
	KeySize   = 32
	NonceSize = 12
)

// Encrypted é o par opaco persistido na carteira
type Encrypted struct {
	Ciphertext []byte
	Nonce      []byte
}

// Cipher guarda apenas o material de chave; é seguro para uso concorrente
type Cipher struct {
	aead cipher.AEAD
	rand io.Reader
}

// New cria o cipher a partir de uma chave de 256 bits
func New(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, apperr.New(apperr.KindEncryptionFailure, fmt.Sprintf("balance key must be %d bytes, got %d", KeySize, len(key)))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindEncryptionFailure, "create aes block", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindEncryptionFailure, "create gcm", err)
	}
	return &Cipher{aead: aead, rand: rand.Reader}, nil
}

// ParseKey aceita 64 caracteres hex ou 32 bytes crus (formato do BALANCE_ENCRYPTION_KEY)
func ParseKey(s string) ([]byte, error) {
	if len(s) == 2*KeySize {
		if b, err := hex.DecodeString(s); err == nil {
			return b, nil
		}
	}
	if len(s) == KeySize {
		return []byte(s), nil
	}
	return nil, fmt.Errorf("%w: balance key must be 64 hex chars or 32 bytes", apperr.ErrEncryptionFailure)
}

// Encrypt cifra o valor com um nonce aleatório novo
func (c *Cipher) Encrypt(amount decimal.Decimal) (Encrypted, error) {
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(c.rand, nonce); err != nil {
		return Encrypted{}, apperr.Wrap(apperr.KindEncryptionFailure, "read nonce", err)
	}
	ct := c.aead.Seal(nil, nonce, []byte(amount.String()), nil)
	return Encrypted{Ciphertext: ct, Nonce: nonce}, nil
}

// Decrypt verifica a tag e decodifica o valor; qualquer adulteração falha
func (c *Cipher) Decrypt(b Encrypted) (decimal.Decimal, error) {
	if len(b.Nonce) != NonceSize {
		return decimal.Zero, fmt.Errorf("%w: invalid nonce length", apperr.ErrEncryptionFailure)
	}
	pt, err := c.aead.Open(nil, b.Nonce, b.Ciphertext, nil)
	if err != nil {
		return decimal.Zero, apperr.Wrap(apperr.KindEncryptionFailure, "authenticate balance", err)
	}
	amount, err := decimal.NewFromString(string(pt))
	if err != nil {
		return decimal.Zero, apperr.Wrap(apperr.KindEncryptionFailure, "decode balance", err)
	}
	return amount, nil
}
