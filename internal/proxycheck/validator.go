package proxycheck

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
)

// Validator performs the pre-flight reachability check. A failure here aborts
// the whole run before any browser cost is incurred.
type Validator struct {
	dialTimeout time.Duration
	logger      *zap.Logger
}

func NewValidator(dialTimeout time.Duration, logger *zap.Logger) *Validator {
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	return &Validator{dialTimeout: dialTimeout, logger: logger.Named("proxycheck")}
}

// Preflight resolves the proxy host and opens one TCP connection to it. Any
// failure is fatal to the run, never retried.
func (v *Validator) Preflight(ctx context.Context, spec Spec) error {
	resolver := net.Resolver{}
	addrs, err := resolver.LookupHost(ctx, spec.Host)
	if err != nil {
		return fmt.Errorf("proxy host %q does not resolve: %w", spec.Host, err)
	}
	v.logger.Debug("Proxy host resolved.",
		zap.String("host", spec.Host), zap.Strings("addrs", addrs))

	dialer := net.Dialer{Timeout: v.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", spec.Endpoint())
	if err != nil {
		return fmt.Errorf("proxy %s is unreachable: %w", spec.Endpoint(), err)
	}
	_ = conn.Close()

	v.logger.Info("Proxy pre-flight passed.", zap.String("endpoint", spec.Endpoint()))
	return nil
}
