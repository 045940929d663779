package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/go-resty/resty/v2"

	"vinskraper/config"
)

// ProxyPool hands out outbound proxy addresses, refilling from the
// proxy-list service when its queue runs dry. Addresses are popped on
// acquisition and never returned; a dead proxy is discovered by the
// caller's own retry, which simply asks for the next one.
type ProxyPool struct {
	listURL string
	client  *resty.Client
	metrics *Metrics

	mu    sync.Mutex
	queue []*url.URL
}

// NewProxyPool builds a pool, optionally pre-seeded from cfg.ProxyAddrs.
// Seed entries that do not parse as http(s) URLs are dropped.
func NewProxyPool(cfg *config.Config) *ProxyPool {
	pool := &ProxyPool{
		listURL: cfg.ProxyListURL,
		client:  resty.New().SetTimeout(cfg.PageTimeout),
	}
	pool.queue = parseProxyList(strings.Join(cfg.ProxyAddrs, "\n"))
	return pool
}

// WithMetrics attaches refill accounting to the pool.
func (p *ProxyPool) WithMetrics(m *Metrics) {
	p.metrics = m
}

// Client exposes the refill HTTP client so tests can install a fake
// transport.
func (p *ProxyPool) Client() *resty.Client {
	return p.client
}

// Size reports the number of addresses currently queued.
func (p *ProxyPool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// Acquire pops the next proxy address, performing one blocking refill
// fetch when the queue is empty. An empty refill result leaves the pool
// empty and the next Acquire retries the fetch; only a failing refill
// call itself is an error.
func (p *ProxyPool) Acquire(ctx context.Context) (*url.URL, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.queue) == 0 {
		if err := p.refillLocked(ctx); err != nil {
			return nil, err
		}
	}
	if len(p.queue) == 0 {
		return nil, fmt.Errorf("proxy pool: refill returned no usable addresses")
	}

	head := p.queue[0]
	p.queue = p.queue[1:]
	return head, nil
}

func (p *ProxyPool) refillLocked(ctx context.Context) error {
	if p.listURL == "" {
		return fmt.Errorf("proxy pool: exhausted and no list URL configured")
	}

	resp, err := p.client.R().SetContext(ctx).Get(p.listURL)
	if err != nil {
		return fmt.Errorf("proxy pool: fetch list: %w", err)
	}
	if resp.StatusCode() != 200 {
		return fmt.Errorf("proxy pool: list service returned status %d", resp.StatusCode())
	}

	p.queue = parseProxyList(resp.String())
	p.metrics.IncRefill()
	slog.Debug("proxy pool refilled", slog.Int("addresses", len(p.queue)))
	return nil
}

// parseProxyList splits a newline-delimited proxy listing into parsed
// URLs, keeping only entries that look like valid HTTP proxies.
func parseProxyList(body string) []*url.URL {
	var proxies []*url.URL
	for _, line := range strings.FieldsFunc(body, func(r rune) bool { return r == '\r' || r == '\n' }) {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "http") {
			continue
		}
		parsed, err := url.Parse(line)
		if err != nil || parsed.Host == "" {
			continue
		}
		proxies = append(proxies, parsed)
	}
	return proxies
}
