package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/mybench/internal/config"
	"github.com/torosent/mybench/internal/runner"
	"github.com/torosent/mybench/internal/tracing"
)

const maxLoggedBodyBytes = 1024

var errReleased = errors.New("handle already released")

// Executor opens handles bound to one target and method.
type Executor struct {
	method     string
	target     string
	headers    http.Header
	keepAlive  bool
	timeout    time.Duration
	failStatus bool
	tracer     trace.Tracer
	propagate  bool
}

// NewExecutor validates the request parts of cfg. tp may be nil.
func NewExecutor(cfg *config.Config, tp *tracing.Provider) (*Executor, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	target := strings.TrimSpace(cfg.TargetURL)
	if target == "" {
		return nil, errors.New("target URL is required")
	}
	if _, err := url.Parse(target); err != nil {
		return nil, fmt.Errorf("invalid target URL: %w", err)
	}

	method := strings.ToUpper(strings.TrimSpace(cfg.Method))
	if method == "" {
		method = http.MethodGet
	}

	headers := http.Header{}
	for key, value := range cfg.Headers {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" || strings.ContainsAny(trimmedKey, "\r\n") {
			return nil, fmt.Errorf("invalid header key %q", key)
		}
		canonicalKey := http.CanonicalHeaderKey(trimmedKey)
		if strings.ContainsAny(value, "\r\n") {
			return nil, fmt.Errorf("invalid header value for %s", canonicalKey)
		}
		headers.Set(canonicalKey, value)
	}

	timeout := cfg.Timeout
	if timeout < 0 {
		timeout = 0
	}

	return &Executor{
		method:     method,
		target:     target,
		headers:    headers,
		keepAlive:  cfg.KeepAlive,
		timeout:    timeout,
		failStatus: cfg.FailStatus,
		tracer:     tp.Tracer(),
		propagate:  tp.ShouldPropagate(),
	}, nil
}

// Open creates a handle with its own transport, so connection reuse never
// crosses workers.
func (e *Executor) Open(ctx context.Context) (runner.Handle, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, e.method, e.target, nil)
	if err != nil {
		return nil, err
	}
	req.Header = e.headers.Clone()

	transport := NewTransport(e.keepAlive)
	return &Handle{
		req: req,
		client: &http.Client{
			Timeout:   e.timeout,
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		transport:  transport,
		failStatus: e.failStatus,
		tracer:     e.tracer,
		propagate:  e.propagate,
	}, nil
}

// Handle performs requests for a single worker. It is not safe for
// concurrent use.
type Handle struct {
	req        *http.Request
	client     *http.Client
	transport  *http.Transport
	failStatus bool
	tracer     trace.Tracer
	propagate  bool
}

// Perform sends one request and reads the whole body, returning its size.
// Redirects are not followed.
func (h *Handle) Perform(ctx context.Context) (int64, error) {
	if h.client == nil {
		return 0, errReleased
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := tracing.StartRequestSpan(ctx, h.tracer, h.req.Method, h.req.URL)
	req := h.req.Clone(ctx)
	if h.propagate {
		tracing.InjectHTTPHeaders(ctx, req.Header)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		tracing.EndSpan(span, err)
		return 0, err
	}
	defer resp.Body.Close()

	statusAttr := attribute.Int("http.response.status_code", resp.StatusCode)

	if h.failStatus && resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBodyBytes))
		_, _ = io.Copy(io.Discard, resp.Body)
		httpErr := &runner.HTTPError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
		tracing.EndSpan(span, httpErr, statusAttr)
		return 0, httpErr
	}

	n, err := io.Copy(io.Discard, resp.Body)
	if err != nil {
		err = fmt.Errorf("read body: %w", err)
		tracing.EndSpan(span, err, statusAttr)
		return 0, err
	}

	tracing.EndSpan(span, nil, statusAttr, attribute.Int64("http.response.body.size", n))
	return n, nil
}

// Release closes idle connections. The handle cannot be used afterwards.
func (h *Handle) Release() error {
	if h.client == nil {
		return errReleased
	}
	h.transport.CloseIdleConnections()
	h.client = nil
	return nil
}

// NewTransport creates a transport for a single worker. Without keep-alive
// every request dials a fresh connection.
func NewTransport(keepAlive bool) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		DisableKeepAlives:     !keepAlive,
		MaxIdleConns:          1,
		MaxIdleConnsPerHost:   1,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
