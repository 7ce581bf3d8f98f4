package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/evanofslack/cloudflare-ddns/internal/metrics"
)

// ErrParse marks a response body that was not a well-formed IPv4 address.
// Transport failures pass through unwrapped.
var ErrParse = errors.New("response body is not a valid IPv4 address")

const (
	requestTimeout = 15 * time.Second
	maxBodySize    = 256
)

// Resolver returns the caller's current public IP address.
type Resolver interface {
	Resolve(ctx context.Context) (netip.Addr, error)
}

type Httper interface {
	Do(req *http.Request) (*http.Response, error)
}

type webResolver struct {
	endpoints []string
	http      Httper
	metrics   *metrics.Metrics
}

// New builds a resolver that queries each IP echo endpoint in order until
// one returns a parseable address. Retrying across cycles belongs to the
// caller; a single Resolve makes at most one pass over the endpoints.
func New(endpoints []string, metrics *metrics.Metrics) Resolver {
	return &webResolver{
		endpoints: endpoints,
		http:      &http.Client{},
		metrics:   metrics,
	}
}

func (r *webResolver) Resolve(ctx context.Context) (netip.Addr, error) {
	if len(r.endpoints) == 0 {
		return netip.Addr{}, errors.New("no IP echo endpoints configured")
	}

	var errs []error
	for _, endpoint := range r.endpoints {
		ip, err := r.lookup(ctx, endpoint)
		if err != nil {
			slog.Warn("IP echo endpoint failed", "endpoint", endpoint, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", endpoint, err))
			r.metrics.IncResolverRequest(false)
			continue
		}
		r.metrics.IncResolverRequest(true)
		return ip, nil
	}
	return netip.Addr{}, fmt.Errorf("all IP echo endpoints failed: %w", errors.Join(errs...))
}

func (r *webResolver) lookup(ctx context.Context, endpoint string) (netip.Addr, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return netip.Addr{}, err
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := r.http.Do(req)
	if err != nil {
		return netip.Addr{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return netip.Addr{}, fmt.Errorf("ip echo request, status=%d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("read ip echo response: %w", err)
	}

	ip, err := netip.ParseAddr(strings.TrimSpace(string(body)))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	// Only IPv4 can become content of an address record we manage. An
	// endpoint answering over IPv6 echoes an address the zone would reject.
	if !ip.Is4() && !ip.Is4In6() {
		return netip.Addr{}, fmt.Errorf("%w: got non-IPv4 address %s", ErrParse, ip)
	}
	return ip.Unmap(), nil
}
