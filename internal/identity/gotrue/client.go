// Package gotrue implements the identity provider contract against a hosted
// GoTrue auth server and its PostgREST record API.
package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-web-auth/internal/identity"
)

const tracerName = "github.com/ovaphlow/pitchfork/service-web-auth/internal/identity/gotrue"

// Config points the client at one project.
type Config struct {
	URL     string
	AnonKey string
	Timeout time.Duration
}

// Client speaks the GoTrue and PostgREST HTTP APIs. It satisfies both
// identity.Provider and identity.RecordStore.
type Client struct {
	base    string
	anonKey string
	http    *http.Client
	tracer  trace.Tracer
	logger  *zap.SugaredLogger
	now     func() time.Time
}

// New builds a client. logger may be nil.
func New(cfg Config, logger *zap.SugaredLogger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Client{
		base:    strings.TrimRight(cfg.URL, "/"),
		anonKey: cfg.AnonKey,
		http:    &http.Client{Timeout: timeout},
		tracer:  otel.Tracer(tracerName),
		logger:  logger,
		now:     time.Now,
	}
}

var (
	_ identity.Provider    = (*Client)(nil)
	_ identity.RecordStore = (*Client)(nil)
)

type call struct {
	name   string
	method string
	path   string
	query  url.Values
	token  string
	body   any
	header map[string]string
}

// do executes c and decodes a 2xx body into out. Non-2xx responses become
// *identity.ProviderError.
func (c *Client) do(ctx context.Context, cl call, out any) error {
	ctx, span := c.tracer.Start(ctx, "gotrue."+cl.name, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.request.method", cl.method),
		attribute.String("url.path", cl.path),
	)

	target := c.base + cl.path
	if len(cl.query) > 0 {
		target += "?" + cl.query.Encode()
	}

	var reader io.Reader
	if cl.body != nil {
		payload, err := json.Marshal(cl.body)
		if err != nil {
			return errors.Wrap(err, "gotrue: encode request")
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, target, reader)
	if err != nil {
		return errors.Wrap(err, "gotrue: build request")
	}
	token := cl.token
	if token == "" {
		token = c.anonKey
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range cl.header {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport")
		return errors.Wrapf(err, "gotrue: %s %s", cl.method, cl.path)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "gotrue: read response")
	}
	if resp.StatusCode >= http.StatusBadRequest {
		pe := parseError(resp.StatusCode, body)
		span.SetStatus(codes.Error, pe.Message)
		c.logger.Debugw("gotrue call rejected", "call", cl.name, "status", pe.Status, "code", pe.Code)
		return pe
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "gotrue: decode %s response", cl.name)
	}
	return nil
}

// errorBody covers both the auth server and the PostgREST error shapes.
type errorBody struct {
	Msg              string          `json:"msg"`
	Message          string          `json:"message"`
	ErrorDescription string          `json:"error_description"`
	Error            string          `json:"error"`
	ErrorCode        string          `json:"error_code"`
	Code             json.RawMessage `json:"code"`
}

func parseError(status int, body []byte) *identity.ProviderError {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return identity.Reject(status, "", http.StatusText(status))
	}
	msg := firstNonEmpty(eb.Msg, eb.Message, eb.ErrorDescription, eb.Error)
	if msg == "" {
		msg = http.StatusText(status)
	}
	code := eb.ErrorCode
	if code == "" && len(eb.Code) > 0 {
		var s string
		if json.Unmarshal(eb.Code, &s) == nil {
			code = s
		} else {
			code = string(eb.Code)
		}
	}
	return identity.Reject(status, code, msg)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
