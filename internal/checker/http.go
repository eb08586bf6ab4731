package checker

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/hazz-dev/statusbot/internal/config"
	"github.com/hazz-dev/statusbot/internal/version"
)

// maxDrain bounds how much of a response body is read so the connection can be reused.
const maxDrain = 4 << 10

// HTTPChecker issues one GET per probe with a fixed timeout. It is safe for
// concurrent use.
type HTTPChecker struct {
	client  *http.Client
	timeout time.Duration
}

// NewHTTP returns an HTTPChecker that gives up on a probe after timeout.
func NewHTTP(timeout time.Duration) *HTTPChecker {
	return &HTTPChecker{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

// Check performs exactly one request to svc.URL.
func (c *HTTPChecker) Check(ctx context.Context, svc config.Service) (result Result) {
	start := time.Now()
	result = Result{
		ServiceName: svc.Name,
		CheckedAt:   start,
	}
	defer func() {
		if r := recover(); r != nil {
			result = Result{
				ServiceName: svc.Name,
				Outcome:     OutcomeError,
				Error:       fmt.Sprintf("probe panic: %v", r),
				CheckedAt:   start,
			}
		}
	}()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, svc.URL, nil)
	if err != nil {
		result.Outcome = OutcomeError
		result.Error = fmt.Sprintf("creating request: %v", err)
		return result
	}
	req.Header.Set("User-Agent", "statusbot/"+version.Version)

	resp, err := c.client.Do(req)
	if err != nil {
		result.Outcome, result.Error = c.classify(ctx, err)
		return result
	}
	result.Latency = time.Since(start)
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))
	resp.Body.Close()

	result.StatusCode = resp.StatusCode
	if resp.StatusCode != http.StatusOK {
		result.Outcome = OutcomeUnhealthy
		result.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		return result
	}
	result.Outcome = OutcomeHealthy
	return result
}

// classify maps a transport error to an outcome. parent is the caller's
// context, used to tell a canceled probe apart from a timed-out one.
func (c *HTTPChecker) classify(parent context.Context, err error) (Outcome, string) {
	if errors.Is(parent.Err(), context.Canceled) {
		return OutcomeError, "probe canceled"
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return OutcomeUnreachable, fmt.Sprintf("no response within %s", c.timeout)
	}
	if isConnectionError(err) {
		return OutcomeUnreachable, err.Error()
	}
	return OutcomeError, err.Error()
}

func isConnectionError(err error) bool {
	var (
		dnsErr       *net.DNSError
		opErr        *net.OpError
		recordErr    tls.RecordHeaderError
		verifyErr    *tls.CertificateVerificationError
		authorityErr x509.UnknownAuthorityError
		hostnameErr  x509.HostnameError
		invalidErr   x509.CertificateInvalidError
	)
	switch {
	case errors.As(err, &dnsErr), errors.As(err, &opErr):
		return true
	case errors.As(err, &recordErr), errors.As(err, &verifyErr):
		return true
	case errors.As(err, &authorityErr), errors.As(err, &hostnameErr), errors.As(err, &invalidErr):
		return true
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET):
		return true
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return true
	}
	return false
}
