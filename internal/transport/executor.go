// Package transport performs the actual network I/O. Every TLS handshake is
// routed through the pinning validator before any response bytes are
// trusted, and requests carry no caching or identifying state.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
)

import (
	"github.com/LauraMoney42/derrite-go/internal/config"
	"github.com/LauraMoney42/derrite-go/internal/pinning"
	"github.com/LauraMoney42/derrite-go/internal/types"
)

// Executor runs one request attempt and reports the raw outcome.
type Executor interface {
	Execute(ctx context.Context, p types.Payload) types.Outcome
}

const defaultUserAgent = "derrite-client/1.0"

// Headers that could identify the caller or leak context are never sent.
var strippedHeaders = []string{
	"Referer",
	"Cookie",
	"X-Forwarded-For",
	"Forwarded",
	"From",
}

const maxResponseBytes = 10 << 20

// HTTPExecutor is the concrete executor over net/http. The client has no
// cookie jar, and every TLS handshake runs standard chain/hostname
// verification first, then the pin check, before any bytes are released.
type HTTPExecutor struct {
	client    *http.Client
	userAgent string
	log       *slog.Logger
}

// Option customizes the executor.
type Option func(*options)

type options struct {
	rootCAs *x509.CertPool
}

// WithRootCAs overrides the trust roots used for standard verification
// (private CAs, test servers).
func WithRootCAs(pool *x509.CertPool) Option {
	return func(o *options) { o.rootCAs = pool }
}

// NewHTTPExecutor builds the executor. validator may be nil when pinning is
// not configured at all.
func NewHTTPExecutor(cfg config.ClientCfg, validator *pinning.Validator, logger *slog.Logger, opts ...Option) *HTTPExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	// No Proxy: an ambient HTTPS_PROXY would tunnel via CONNECT and hand the
	// TLS handshake to the transport's own config, skipping the pinned dial.
	transport := &http.Transport{}
	if validator != nil {
		transport.DialTLSContext = pinnedDialer(validator, o.rootCAs)
	} else if o.rootCAs != nil {
		transport.TLSClientConfig = &tls.Config{RootCAs: o.rootCAs}
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	return &HTTPExecutor{
		client: &http.Client{
			Timeout:   cfg.RequestTimeout(),
			Transport: transport,
			// no Jar: cookies are never stored or sent
		},
		userAgent: userAgent,
		log:       logger,
	}
}

// pinnedDialer performs the TLS handshake with the request host bound in,
// so the validator sees the host the caller asked for even when dialing an
// IP literal. Standard verification stays on; VerifyConnection adds the pin
// check on top and aborts the handshake on a rejection.
func pinnedDialer(validator *pinning.Validator, rootCAs *x509.CertPool) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			host = addr
		}
		cfg := &tls.Config{
			ServerName: host,
			RootCAs:    rootCAs,
			NextProtos: []string{"http/1.1"},
			VerifyConnection: func(cs tls.ConnectionState) error {
				if validator.Validate(host, cs.PeerCertificates) == pinning.Reject {
					return types.NewCallError(types.ErrPinningRejected,
						"no pinned public key matched for "+host)
				}
				return nil
			},
		}
		d := &tls.Dialer{Config: cfg}
		return d.DialContext(ctx, network, addr)
	}
}

// Execute performs one attempt. A nil-error outcome means a response was
// received, whatever its status.
func (e *HTTPExecutor) Execute(ctx context.Context, p types.Payload) types.Outcome {
	req, err := http.NewRequestWithContext(ctx, p.Method, p.URL, bytes.NewReader(p.Body))
	if err != nil {
		return types.Outcome{Err: types.WrapCallError(types.ErrTransport, "build request", err)}
	}

	for k, vs := range p.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	sanitizeHeaders(req.Header, e.userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		if kind, ok := types.KindOf(err); ok && kind == types.ErrPinningRejected {
			// surface the handshake rejection unchanged
			return types.Outcome{Err: unwrapPinError(err)}
		}
		return types.Outcome{Err: types.WrapCallError(types.ErrTransport, "request failed", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return types.Outcome{Err: types.WrapCallError(types.ErrTransport, "read response body", err)}
	}

	return types.Outcome{StatusCode: resp.StatusCode, Body: body}
}

// sanitizeHeaders enforces request hygiene regardless of endpoint: no
// caching, no identifying headers, a fixed neutral user agent.
func sanitizeHeaders(h http.Header, userAgent string) {
	for _, k := range strippedHeaders {
		h.Del(k)
	}
	h.Set("User-Agent", userAgent)
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("Pragma", "no-cache")
}

func unwrapPinError(err error) *types.CallError {
	var ce *types.CallError
	if errors.As(err, &ce) {
		return ce
	}
	return types.WrapCallError(types.ErrPinningRejected, "certificate pinning rejected", err)
}
