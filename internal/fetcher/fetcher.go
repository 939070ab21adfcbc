package fetcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Source retrieves a single numeric value for an upstream identifier
// (ticker, indicator code, currency pair).
type Source interface {
	Name() string
	Fetch(ctx context.Context, identifier string) (decimal.Decimal, error)
}

// Gate spaces and budgets calls per source. Acquire must be called before the
// network call and Record right after it was issued.
type Gate interface {
	Acquire(ctx context.Context, source string) error
	Record(source string)
}

// Kind classifies why a fetch produced no value.
type Kind int

const (
	KindNetwork Kind = iota + 1
	KindUpstream
	KindShape
	KindExhausted
	KindOutOfRange
)

var (
	// ErrNetwork matches timeouts and connection failures.
	ErrNetwork = errors.New("network error")
	// ErrUpstream matches non-200 responses and explicit error or rate-limit markers.
	ErrUpstream = errors.New("upstream error")
	// ErrShape matches responses missing the expected field.
	ErrShape = errors.New("unexpected response shape")
	// ErrExhausted matches calls refused because the daily budget is spent.
	ErrExhausted = errors.New("daily call budget exhausted")
	// ErrOutOfRange matches values rejected by the sanity band.
	ErrOutOfRange = errors.New("value outside plausible range")
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindUpstream:
		return "upstream"
	case KindShape:
		return "shape"
	case KindExhausted:
		return "exhausted"
	case KindOutOfRange:
		return "out_of_range"
	default:
		return "unknown"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindNetwork:
		return ErrNetwork
	case KindUpstream:
		return ErrUpstream
	case KindShape:
		return ErrShape
	case KindExhausted:
		return ErrExhausted
	case KindOutOfRange:
		return ErrOutOfRange
	default:
		return nil
	}
}

// FetchError is the only error type adapters return.
type FetchError struct {
	Source     string
	Identifier string
	Kind       Kind
	Err        error
}

// NewError builds a FetchError.
func NewError(source, identifier string, kind Kind, err error) *FetchError {
	return &FetchError{Source: source, Identifier: identifier, Kind: kind, Err: err}
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %s", e.Source, e.Identifier, e.Kind.sentinel())
	}
	return fmt.Sprintf("%s %s: %s: %v", e.Source, e.Identifier, e.Kind.sentinel(), e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrUpstream) and friends match on the kind.
func (e *FetchError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

// KindOf extracts the kind of a fetch failure; foreign errors count as network failures.
func KindOf(err error) Kind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindNetwork
}
