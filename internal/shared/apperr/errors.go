package apperr

import (
	"errors"
	"net/http"
)

// Kind classifica o erro para que a camada HTTP mapeie status sem inspecionar detalhes
type Kind string

const (
	KindEventNotFound     Kind = "EVENT_NOT_FOUND"
	KindEventNotAvailable Kind = "EVENT_NOT_AVAILABLE"
	KindInvalidStake      Kind = "INVALID_STAKE"
	KindInvalidSelection  Kind = "INVALID_SELECTION"
	KindInsufficientFunds Kind = "INSUFFICIENT_FUNDS"
	KindLimitExceeded     Kind = "LIMIT_EXCEEDED"
	KindAccountLocked     Kind = "ACCOUNT_LOCKED"
	KindOddsChanged       Kind = "ODDS_CHANGED"
	KindEncryptionFailure Kind = "ENCRYPTION_FAILURE"
	KindRateLimitExceeded Kind = "RATE_LIMIT_EXCEEDED"
	KindStoreFailure      Kind = "STORE_FAILURE"
	KindNotFound          Kind = "NOT_FOUND"
	KindInvalid           Kind = "INVALID_REQUEST"
)

// Error é o erro tipado devolvido por todos os componentes do núcleo de apostas
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return e.Msg + ": " + e.Err.Error()
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return string(e.Kind) + ": " + e.Err.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is compara apenas o Kind, então errors.Is(err, ErrOddsChanged) funciona com qualquer mensagem
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrEventNotFound     = &Error{Kind: KindEventNotFound, Msg: "event not found"}
	ErrEventNotAvailable = &Error{Kind: KindEventNotAvailable, Msg: "event has started or is closed"}
	ErrInvalidStake      = &Error{Kind: KindInvalidStake, Msg: "invalid stake"}
	ErrInvalidSelection  = &Error{Kind: KindInvalidSelection, Msg: "market or selection not offered"}
	ErrInsufficientFunds = &Error{Kind: KindInsufficientFunds, Msg: "insufficient funds"}
	ErrLimitExceeded     = &Error{Kind: KindLimitExceeded, Msg: "limit exceeded"}
	ErrAccountLocked     = &Error{Kind: KindAccountLocked, Msg: "account locked"}
	ErrOddsChanged       = &Error{Kind: KindOddsChanged, Msg: "odds have changed"}
	ErrEncryptionFailure = &Error{Kind: KindEncryptionFailure, Msg: "encryption failure"}
	ErrRateLimitExceeded = &Error{Kind: KindRateLimitExceeded, Msg: "rate limit exceeded"}
	ErrStoreFailure      = &Error{Kind: KindStoreFailure, Msg: "store failure"}
	ErrNotFound          = &Error{Kind: KindNotFound, Msg: "not found"}
	ErrInvalid           = &Error{Kind: KindInvalid, Msg: "invalid request"}
)

// New cria um erro do tipo indicado com mensagem específica
func New(kind Kind, msg string) *Error { return &Error{Kind: kind, Msg: msg} }

// Wrap anexa a causa original mantendo o Kind
func Wrap(kind Kind, msg string, err error) *Error { return &Error{Kind: kind, Msg: msg, Err: err} }

// KindOf extrai o Kind; erros desconhecidos são tratados como falha de infraestrutura
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	var k interface{ ErrorKind() Kind }
	if errors.As(err, &k) {
		return k.ErrorKind()
	}
	return KindStoreFailure
}

// HTTPStatus mapeia o Kind para o status HTTP usado pelos serviços
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindEventNotFound, KindNotFound:
		return http.StatusNotFound
	case KindEventNotAvailable, KindOddsChanged:
		return http.StatusConflict
	case KindInvalidStake, KindInvalidSelection, KindInvalid:
		return http.StatusUnprocessableEntity
	case KindInsufficientFunds:
		return http.StatusPaymentRequired
	case KindLimitExceeded, KindAccountLocked:
		return http.StatusForbidden
	case KindRateLimitExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
