package scraper

import (
	"context"
	"strings"
	"testing"

	"github.com/jarcoal/httpmock"

	"vinskraper/config"
)

func TestProxyPoolSeededPopOrder(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ProxyAddrs = []string{"http://10.0.0.1:8080", "http://10.0.0.2:8080"}

	pool := NewProxyPool(cfg)
	transport := httpmock.NewMockTransport()
	pool.Client().SetTransport(transport)

	first, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if first.Host != "10.0.0.1:8080" {
		t.Fatalf("first proxy = %s, want 10.0.0.1:8080", first.Host)
	}

	second, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if second.Host != "10.0.0.2:8080" {
		t.Fatalf("second proxy = %s, want 10.0.0.2:8080", second.Host)
	}

	if calls := transport.GetTotalCallCount(); calls != 0 {
		t.Fatalf("seeded pool should not contact the list service, got %d calls", calls)
	}
}

func TestProxyPoolRefillFiltersEntries(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ProxyListURL = "http://proxies.test/list"

	pool := NewProxyPool(cfg)
	transport := httpmock.NewMockTransport()
	pool.Client().SetTransport(transport)

	body := strings.Join([]string{
		"http://1.1.1.1:3128",
		"socks5://2.2.2.2:1080",
		"not a proxy",
		"",
		"https://3.3.3.3:443",
	}, "\r\n")
	transport.RegisterResponder("GET", cfg.ProxyListURL,
		httpmock.NewStringResponder(200, body))

	first, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if first.Host != "1.1.1.1:3128" {
		t.Fatalf("first proxy = %s, want 1.1.1.1:3128", first.Host)
	}
	if pool.Size() != 1 {
		t.Fatalf("pool size after pop = %d, want 1", pool.Size())
	}

	second, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if second.Scheme != "https" || second.Host != "3.3.3.3:443" {
		t.Fatalf("second proxy = %s", second.String())
	}

	if calls := transport.GetTotalCallCount(); calls != 1 {
		t.Fatalf("expected a single refill call, got %d", calls)
	}
}

func TestProxyPoolEmptyRefillRetries(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ProxyListURL = "http://proxies.test/list"

	pool := NewProxyPool(cfg)
	transport := httpmock.NewMockTransport()
	pool.Client().SetTransport(transport)

	transport.RegisterResponder("GET", cfg.ProxyListURL,
		httpmock.NewStringResponder(200, "garbage\nsocks4://9.9.9.9:1080"))

	if _, err := pool.Acquire(context.Background()); err == nil {
		t.Fatalf("expected error when refill yields no usable addresses")
	}

	// A later acquire must attempt the refill again.
	transport.Reset()
	transport.RegisterResponder("GET", cfg.ProxyListURL,
		httpmock.NewStringResponder(200, "http://4.4.4.4:8080"))

	proxy, err := pool.Acquire(context.Background())
	if err != nil {
		t.Fatalf("acquire after refill retry: %v", err)
	}
	if proxy.Host != "4.4.4.4:8080" {
		t.Fatalf("proxy = %s, want 4.4.4.4:8080", proxy.Host)
	}
}

func TestProxyPoolUnreachableListService(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ProxyListURL = "http://proxies.test/list"

	pool := NewProxyPool(cfg)
	transport := httpmock.NewMockTransport()
	pool.Client().SetTransport(transport)

	transport.RegisterResponder("GET", cfg.ProxyListURL,
		httpmock.NewStringResponder(503, "unavailable"))

	if _, err := pool.Acquire(context.Background()); err == nil {
		t.Fatalf("expected error when the list service is unreachable")
	}
}

func TestParseProxyList(t *testing.T) {
	proxies := parseProxyList("http://1.2.3.4:80\r\nhttp://\r\nftp://5.6.7.8:21\nhttps://9.9.9.9:443\n")
	if len(proxies) != 2 {
		t.Fatalf("parsed %d proxies, want 2", len(proxies))
	}
	if proxies[0].Host != "1.2.3.4:80" || proxies[1].Host != "9.9.9.9:443" {
		t.Fatalf("unexpected proxies: %v", proxies)
	}
}
