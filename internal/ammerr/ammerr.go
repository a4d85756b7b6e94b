// Package ammerr defines the error taxonomy shared by the pricing, routing,
// liquidity and oracle packages.
package ammerr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind classifies a failure.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindValidation
	KindInsufficientLiquidity
	KindPairNotFound
	KindOverflow
	KindDivisionByZero
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindInsufficientLiquidity:
		return "insufficient_liquidity"
	case KindPairNotFound:
		return "pair_not_found"
	case KindOverflow:
		return "overflow"
	case KindDivisionByZero:
		return "division_by_zero"
	default:
		return "unknown"
	}
}

// Error is a tagged error carrying a kind and a structured details payload.
type Error struct {
	Kind    Kind
	Op      string
	Msg     string
	Details map[string]string
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrValidation            = &Error{Kind: KindValidation}
	ErrInsufficientLiquidity = &Error{Kind: KindInsufficientLiquidity}
	ErrPairNotFound          = &Error{Kind: KindPairNotFound}
	ErrOverflow              = &Error{Kind: KindOverflow}
	ErrDivisionByZero        = &Error{Kind: KindDivisionByZero}
)

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(k)
			b.WriteString("=")
			b.WriteString(e.Details[k])
		}
		b.WriteString(")")
	}
	return b.String()
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// With returns a copy of e with an extra detail attached.
func (e *Error) With(key, value string) *Error {
	details := make(map[string]string, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	out := *e
	out.Details = details
	return &out
}

func newError(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func Validation(op, format string, args ...interface{}) *Error {
	return newError(KindValidation, op, format, args...)
}

func InsufficientLiquidity(op, format string, args ...interface{}) *Error {
	return newError(KindInsufficientLiquidity, op, format, args...)
}

func PairNotFound(op, tokenA, tokenB string) *Error {
	return newError(KindPairNotFound, op, "no pool for pair").
		With("token_a", tokenA).
		With("token_b", tokenB)
}

func Overflow(op, format string, args ...interface{}) *Error {
	return newError(KindOverflow, op, format, args...)
}

func DivisionByZero(op string) *Error {
	return newError(KindDivisionByZero, op, "divisor is zero")
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
