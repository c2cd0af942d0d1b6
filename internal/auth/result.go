package auth

import (
	"encoding/json"
)

// Kind classifies a failed Result.
type Kind int

const (
	KindNone Kind = iota
	// KindRejected: the provider refused the request (bad credentials,
	// duplicate email). The message is the provider's, verbatim.
	KindRejected
	// KindAnomalous: the provider reported success but returned no payload.
	KindAnomalous
	// KindFault: transport, decoding, or any other unexpected failure.
	KindFault
)

func (k Kind) String() string {
	switch k {
	case KindRejected:
		return "rejected"
	case KindAnomalous:
		return "anomalous"
	case KindFault:
		return "fault"
	default:
		return "none"
	}
}

// Unit is the payload of operations that return no value.
type Unit struct{}

// Result is either Ok(value) or Err(message). The zero value is not a valid
// Result; build one with Ok, Done, or Fail.
type Result[T any] struct {
	ok      bool
	hasData bool
	value   T
	kind    Kind
	message string
}

// Ok is a successful result carrying v.
func Ok[T any](v T) Result[T] {
	return Result[T]{ok: true, hasData: true, value: v}
}

// Done is a successful result without data.
func Done() Result[Unit] {
	return Result[Unit]{ok: true}
}

// Fail is a failed result. An empty message is replaced by the kind name so
// a failure always carries an error string.
func Fail[T any](kind Kind, message string) Result[T] {
	if kind == KindNone {
		kind = KindFault
	}
	if message == "" {
		message = kind.String()
	}
	return Result[T]{kind: kind, message: message}
}

func (r Result[T]) IsOk() bool { return r.ok }

// Value returns the payload and whether the result is Ok.
func (r Result[T]) Value() (T, bool) {
	return r.value, r.ok
}

// Err returns the error message and whether the result failed.
func (r Result[T]) Err() (string, bool) {
	return r.message, !r.ok
}

func (r Result[T]) Kind() Kind { return r.kind }

type envelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// MarshalJSON renders the {success, error, data} envelope.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	if !r.ok {
		return json.Marshal(envelope{Success: false, Error: r.message})
	}
	if !r.hasData {
		return json.Marshal(envelope{Success: true})
	}
	return json.Marshal(envelope{Success: true, Data: r.value})
}
