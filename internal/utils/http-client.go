package utils

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"

	"golang.org/x/net/proxy"
)

type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// DialerFactory returns the dial function used to reach targets through proxyAddr.
type DialerFactory func(proxyAddr string, forward *net.Dialer) (DialFunc, error)

type HTTPClientConfig struct {
	Timeout        time.Duration // total, per request
	ConnectTimeout time.Duration
	KATimeout      time.Duration
	ProxyAddr      string // address:port of a SOCKS5 relay, empty for direct
	UserAgent      string
	Headers        map[string]string
	Jar            http.CookieJar
	Dialer         DialerFactory
	HighThreadMode bool // advanced socket options for high concurrency
	NoRedirects    bool
}

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type SwarmHTTPClient struct {
	client *http.Client
	config HTTPClientConfig
}

// SOCKS5Dialer tunnels every connection through the SOCKS5 relay at proxyAddr.
func SOCKS5Dialer(proxyAddr string, forward *net.Dialer) (DialFunc, error) {
	d, err := proxy.SOCKS5("tcp", proxyAddr, nil, forward)
	if err != nil {
		return nil, err
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("socks5 dialer for %s does not support contexts", proxyAddr)
	}
	return cd.DialContext, nil
}

// DirectDialer ignores the proxy address; used when no relay should be involved.
func DirectDialer(_ string, forward *net.Dialer) (DialFunc, error) {
	return forward.DialContext, nil
}

func NewSwarmHTTPClient(cfg HTTPClientConfig) (*SwarmHTTPClient, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTotalTimeout
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}
	if cfg.KATimeout == 0 {
		cfg.KATimeout = 60 * time.Second
	}
	if cfg.Dialer == nil {
		cfg.Dialer = SOCKS5Dialer
	}
	forward := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	if cfg.HighThreadMode {
		forward.Control = func(network, address string, c syscall.RawConn) error {
			return c.Control(func(fd uintptr) {
				setSocketOptions(fd)
			})
		}
	}
	transport := &http.Transport{
		IdleConnTimeout:       cfg.KATimeout,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		DisableCompression:    true,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		ResponseHeaderTimeout: cfg.Timeout,
	}
	if cfg.ProxyAddr != "" {
		dial, err := cfg.Dialer(cfg.ProxyAddr, forward)
		if err != nil {
			return nil, fmt.Errorf("error creating dialer for proxy %s: %w", cfg.ProxyAddr, err)
		}
		transport.DialContext = dial
	} else {
		transport.DialContext = forward.DialContext
	}
	client := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
		Jar:       cfg.Jar,
	}
	if cfg.NoRedirects {
		client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}
	return &SwarmHTTPClient{client: client, config: cfg}, nil
}

func (d *SwarmHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if d.config.UserAgent != "" {
		req.Header.Set("User-Agent", d.config.UserAgent)
	} else {
		req.Header.Set("User-Agent", ToolUserAgent)
	}
	for k, v := range d.config.Headers {
		req.Header.Set(k, v)
	}
	return d.client.Do(req)
}

// CloseIdleConnections releases the transport; clients here are per proxy and short lived.
func (d *SwarmHTTPClient) CloseIdleConnections() {
	d.client.CloseIdleConnections()
}
