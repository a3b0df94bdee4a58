package uptime

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptrace"
	"strconv"
	"sync/atomic"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// Prober runs one health check for a component. Implementations must honour
// ctx and the component timeout, and report failures in the Outcome rather
// than as errors.
type Prober interface {
	Probe(ctx context.Context, c Component) Outcome
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, c Component) Outcome

func (f ProberFunc) Probe(ctx context.Context, c Component) Outcome { return f(ctx, c) }

const icmpCount = 3

// NetProber is the network-backed Prober used in production.
type NetProber struct {
	httpClient     *http.Client
	dialer         *net.Dialer
	privilegedICMP bool
}

// NewNetProber builds a prober whose HTTP client dials a fresh connection for
// every check so connect latency is always measured.
func NewNetProber(insecureTLS, privilegedICMP bool) *NetProber {
	return &NetProber{
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:             http.ProxyFromEnvironment,
				DisableKeepAlives: true,
				TLSClientConfig:   &tls.Config{InsecureSkipVerify: insecureTLS}, //nolint:gosec // opt-in via config
			},
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return errors.New("stopped after 10 redirects")
				}
				return nil
			},
		},
		dialer:         &net.Dialer{},
		privilegedICMP: privilegedICMP,
	}
}

func (p *NetProber) Probe(ctx context.Context, c Component) Outcome {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	switch c.Kind {
	case KindHTTP, KindHTTPS:
		return p.checkHTTP(ctx, c)
	case KindTCP:
		return p.checkTCP(ctx, c)
	case KindICMP:
		return p.checkICMP(ctx, c)
	default:
		return Outcome{
			Component: c.Name,
			Timestamp: time.Now(),
			Error:     fmt.Sprintf("unsupported probe kind: %s", c.Kind),
		}
	}
}

// checkHTTP succeeds only on a 200. Latency is the time until the transport
// connection was established.
func (p *NetProber) checkHTTP(ctx context.Context, c Component) Outcome {
	res := Outcome{Component: c.Name, Timestamp: time.Now()}

	start := time.Now()
	var connectedAfter atomic.Int64
	trace := &httptrace.ClientTrace{
		ConnectDone: func(_, _ string, err error) {
			if err == nil {
				connectedAfter.CompareAndSwap(0, int64(time.Since(start)))
			}
		},
		GotConn: func(httptrace.GotConnInfo) {
			connectedAfter.CompareAndSwap(0, int64(time.Since(start)))
		},
	}

	req, err := http.NewRequestWithContext(httptrace.WithClientTrace(ctx, trace), http.MethodGet, c.URL, nil)
	if err != nil {
		res.Error = fmt.Sprintf("create request failed: %v", err)
		return res
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		res.Error = fmt.Sprintf("request failed: %v", err)
		if errors.Is(err, context.DeadlineExceeded) {
			res.Error = "request timed out"
		}
		return res
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	res.StatusCode = resp.StatusCode
	if resp.StatusCode != http.StatusOK {
		res.Error = fmt.Sprintf("status code mismatch: expected 200, got %d", resp.StatusCode)
		return res
	}

	res.Success = true
	res.HasLatency = true
	res.Latency = time.Duration(connectedAfter.Load()).Truncate(time.Millisecond)
	return res
}

// checkTCP succeeds once the connection is established; the connection is
// closed immediately.
func (p *NetProber) checkTCP(ctx context.Context, c Component) Outcome {
	res := Outcome{Component: c.Name, Timestamp: time.Now()}
	address := net.JoinHostPort(c.Host, strconv.Itoa(c.Port))

	start := time.Now()
	conn, err := p.dialer.DialContext(ctx, "tcp", address)
	elapsed := time.Since(start)
	if err != nil {
		res.Error = fmt.Sprintf("connection failed: %v", err)
		return res
	}
	_ = conn.Close()

	res.Success = true
	res.HasLatency = true
	res.Latency = elapsed.Truncate(time.Microsecond)
	return res
}

// checkICMP succeeds when at least one echo reply arrives before the timeout.
func (p *NetProber) checkICMP(ctx context.Context, c Component) Outcome {
	res := Outcome{Component: c.Name, Timestamp: time.Now()}

	pinger, err := probing.NewPinger(c.Host)
	if err != nil {
		res.Error = fmt.Sprintf("create pinger failed: %v", err)
		return res
	}
	pinger.Count = icmpCount
	pinger.Timeout = c.Timeout
	pinger.Interval = 100 * time.Millisecond
	pinger.SetPrivileged(p.privilegedICMP)

	if err := pinger.RunWithContext(ctx); err != nil {
		res.Error = fmt.Sprintf("ping failed: %v", err)
		return res
	}

	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		res.Error = fmt.Sprintf("all %d ping attempts failed", stats.PacketsSent)
		return res
	}
	res.Success = true
	res.HasLatency = true
	res.Latency = stats.AvgRtt
	return res
}
