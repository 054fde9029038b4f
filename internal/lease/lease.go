package lease

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"

	"github.com/tanq16/swarm/internal/proxy"
	"github.com/tanq16/swarm/internal/utils"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

var ErrNoLease = errors.New("no lease could be obtained")

// Lease is a download credential bound to one proxy session. The URL, cookies and
// user agent are only meaningful when used together through Proxy.
type Lease struct {
	DownloadURL string
	Jar         http.CookieJar
	UserAgent   string
	Proxy       proxy.Endpoint
}

// Provider hands out a fresh lease for targetURL scoped to p.
type Provider interface {
	Acquire(ctx context.Context, targetURL string, p proxy.Endpoint) (*Lease, error)
}

type ProviderFunc func(ctx context.Context, targetURL string, p proxy.Endpoint) (*Lease, error)

func (f ProviderFunc) Acquire(ctx context.Context, targetURL string, p proxy.Endpoint) (*Lease, error) {
	return f(ctx, targetURL, p)
}

func NewJar() http.CookieJar {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return jar
}

// DirectProvider is the generic lease source for hosts without a click-through flow.
// With Resolve set it visits the target through the proxy, following redirects, and
// leases the final URL together with any cookies picked up on the way.
type DirectProvider struct {
	HTTP    utils.HTTPClientConfig
	Resolve bool
}

func (d *DirectProvider) Acquire(ctx context.Context, targetURL string, p proxy.Endpoint) (*Lease, error) {
	l := &Lease{
		DownloadURL: targetURL,
		Jar:         NewJar(),
		UserAgent:   utils.GetRandomUserAgent(),
		Proxy:       p,
	}
	if !d.Resolve {
		return l, nil
	}
	log := utils.GetLogger("lease").With().Str("proxy", p.String()).Logger()
	cfg := d.HTTP
	cfg.ProxyAddr = p.String()
	cfg.Jar = l.Jar
	cfg.UserAgent = l.UserAgent
	cfg.NoRedirects = false
	client, err := utils.NewSwarmHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	defer client.CloseIdleConnections()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", "bytes=0-0")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoLease, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: status %d", ErrNoLease, resp.StatusCode)
	}
	l.DownloadURL = resp.Request.URL.String()
	log.Debug().Str("url", l.DownloadURL).Msg("Lease resolved")
	return l, nil
}

type rateLimited struct {
	next    Provider
	limiter *rate.Limiter
}

// RateLimited makes every acquisition wait on limiter. A nil limiter disables throttling.
func RateLimited(next Provider, limiter *rate.Limiter) Provider {
	if limiter == nil {
		return next
	}
	return &rateLimited{next: next, limiter: limiter}
}

func (r *rateLimited) Acquire(ctx context.Context, targetURL string, p proxy.Endpoint) (*Lease, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.next.Acquire(ctx, targetURL, p)
}
