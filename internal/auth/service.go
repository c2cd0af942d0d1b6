// Package auth is the authentication and session access layer: credential
// operations, per-request caller resolution, profile record access, and the
// route guard built on top of them.
package auth

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-web-auth/internal/identity"
	"github.com/ovaphlow/pitchfork/service-web-auth/internal/metrics"
)

// Service talks to the identity provider on behalf of one request scope at
// a time. It holds no per-request state; everything request-scoped lives in
// the Scope.
type Service struct {
	provider identity.Provider
	records  identity.RecordStore
	logger   *zap.SugaredLogger
	metrics  *metrics.Metrics
}

// NewService wires the provider halves. logger and m may be nil.
func NewService(provider identity.Provider, records identity.RecordStore, logger *zap.SugaredLogger, m *metrics.Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{provider: provider, records: records, logger: logger, metrics: m}
}

// failure maps a provider call error onto a failed Result. Provider-reported
// failures keep their message; anything else is logged and hidden behind
// fallback.
func failure[T any](s *Service, sc *Scope, op string, err error, fallback string) Result[T] {
	if pe, ok := identity.AsProviderError(err); ok && pe.Message != "" {
		s.logger.Debugw("provider rejected request", "op", op, "request_id", sc.ID(), "status", pe.Status, "code", pe.Code)
		return Fail[T](KindRejected, pe.Message)
	}
	s.logger.Warnw("auth operation failed", "op", op, "request_id", sc.ID(), "err", err)
	return Fail[T](KindFault, fallback)
}

// contain turns a panic raised below an operation into a fault result.
// Deferred directly by the operation.
func contain[T any](s *Service, sc *Scope, op, fallback string, res *Result[T]) {
	if r := recover(); r != nil {
		s.logger.Errorw("auth operation panicked", "op", op, "request_id", sc.ID(), "panic", fmt.Sprint(r))
		*res = Fail[T](KindFault, fallback)
	}
}

func observe[T any](s *Service, op string, res Result[T]) {
	outcome := "ok"
	if !res.IsOk() {
		outcome = res.Kind().String()
	}
	s.metrics.ObserveOperation(op, outcome)
}
