package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"vinskraper/config"
	"vinskraper/models"
)

// ErrNoProxies marks a fetch that failed because the proxy pool could not
// be refilled. The orchestrator may treat the owning category as retryable.
var ErrNoProxies = errors.New("proxy pool exhausted")

// PageState discriminates the three outcomes of a page fetch.
type PageState int

const (
	// PageData carries at least one raw product record.
	PageData PageState = iota
	// PageEmpty is the normal end-of-category condition.
	PageEmpty
	// PageFailed marks a page abandoned after exhausting its retries.
	PageFailed
)

// Page is the result of fetching one search page.
type Page struct {
	State    PageState
	Number   int
	Products []RawProduct
	Status   int
	Err      error
}

// PageFetcher fetches one category search page. Satisfied by *Fetcher and
// by fakes in tests.
type PageFetcher interface {
	FetchPage(ctx context.Context, category models.Category, page int) Page
}

// Fetcher issues vendor search requests through rotating proxies with
// bounded per-page retry. One Fetcher serves one category worker; pages
// within a category are fetched sequentially.
type Fetcher struct {
	cfg       *config.Config
	pool      *ProxyPool
	metrics   *Metrics
	collector *colly.Collector

	mu       sync.Mutex
	proxy    *url.URL
	lastBody []byte

	handlersOnce sync.Once
}

// NewFetcher builds a fetcher bound to the shared proxy pool.
func NewFetcher(cfg *config.Config, pool *ProxyPool, metrics *Metrics) *Fetcher {
	collector := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.UserAgent(cfg.UserAgent),
	)
	collector.SetRequestTimeout(cfg.PageTimeout)
	collector.IgnoreRobotsTxt = true

	f := &Fetcher{
		cfg:       cfg,
		pool:      pool,
		metrics:   metrics,
		collector: collector,
	}
	collector.SetProxyFunc(f.proxyFor)
	return f
}

// WithTransport installs a custom transport, replacing the proxy-aware
// default. Used by tests to serve canned responses.
func (f *Fetcher) WithTransport(rt http.RoundTripper) {
	f.collector.WithTransport(rt)
}

func (f *Fetcher) proxyFor(*http.Request) (*url.URL, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.proxy, nil
}

func (f *Fetcher) rotate(ctx context.Context) error {
	next, err := f.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoProxies, err)
	}
	f.mu.Lock()
	f.proxy = next
	f.mu.Unlock()
	return nil
}

// SearchPageURL builds the category/page-indexed search endpoint URL.
func SearchPageURL(base string, category models.Category, page int) string {
	return fmt.Sprintf("%s?searchType=product&currentPage=%d&q=%%3Arelevance%%3AmainCategory%%3A%s",
		base, page, category.Filter())
}

// FetchPage issues one search request, rotating proxies on failure up to
// the configured attempt ceiling. A non-200 status and a body with no
// embedded JSON are treated the same as transport failures. Exhausting
// all attempts yields a PageFailed carrying status 500; this is non-fatal
// to the category scrape.
func (f *Fetcher) FetchPage(ctx context.Context, category models.Category, page int) Page {
	target := SearchPageURL(f.cfg.SearchURL, category, page)

	var lastErr error
	for attempt := 0; attempt < f.cfg.FetchRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return Page{State: PageFailed, Number: page, Status: http.StatusInternalServerError, Err: err}
		}
		if attempt > 0 || f.currentProxy() == nil {
			if err := f.rotate(ctx); err != nil {
				return Page{State: PageFailed, Number: page, Status: http.StatusInternalServerError, Err: err}
			}
		}
		if attempt > 0 {
			f.metrics.IncRetry()
		}

		body, err := f.get(target)
		if err != nil {
			lastErr = classifyError(err)
			f.metrics.IncError(errorTypeLabel(lastErr))
			slog.Debug("page fetch failed, rotating proxy",
				slog.String("category", category.String()),
				slog.Int("page", page),
				slog.Int("attempt", attempt+1),
				slog.Any("error", err),
			)
			continue
		}

		products, err := decodeSearchBody(body)
		if err != nil {
			lastErr = ErrMalformedPage{Err: err}
			f.metrics.IncError(errorTypeLabel(lastErr))
			slog.Debug("page body unreadable, rotating proxy",
				slog.String("category", category.String()),
				slog.Int("page", page),
				slog.Any("error", err),
			)
			continue
		}

		if len(products) == 0 {
			f.metrics.IncPage("empty")
			return Page{State: PageEmpty, Number: page, Status: http.StatusOK}
		}
		f.metrics.IncPage("ok")
		return Page{State: PageData, Number: page, Products: products, Status: http.StatusOK}
	}

	f.metrics.IncPage("failed")
	slog.Error("page abandoned after retries",
		slog.String("category", category.String()),
		slog.Int("page", page),
		slog.Int("attempts", f.cfg.FetchRetries),
		slog.Any("error", lastErr),
	)
	return Page{State: PageFailed, Number: page, Status: http.StatusInternalServerError, Err: lastErr}
}

func (f *Fetcher) currentProxy() *url.URL {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.proxy
}

// get visits target synchronously and returns the captured body.
func (f *Fetcher) get(target string) ([]byte, error) {
	f.handlersOnce.Do(func() {
		f.collector.OnResponse(func(r *colly.Response) {
			f.mu.Lock()
			f.lastBody = r.Body
			f.mu.Unlock()
			if start, ok := r.Request.Ctx.GetAny("start").(time.Time); ok {
				f.metrics.ObserveDuration(time.Since(start))
			}
		})
		f.collector.OnRequest(func(r *colly.Request) {
			r.Ctx.Put("start", time.Now())
		})
	})

	f.mu.Lock()
	f.lastBody = nil
	f.mu.Unlock()

	if err := f.collector.Visit(target); err != nil {
		return nil, err
	}

	f.mu.Lock()
	body := f.lastBody
	f.mu.Unlock()
	if body == nil {
		return nil, fmt.Errorf("no response captured for %s", target)
	}
	return body, nil
}

// decodeSearchBody unwraps the vendor's HTML-wrapped JSON payload and
// returns the page's raw product records. An empty slice signals
// end-of-category.
func decodeSearchBody(body []byte) ([]RawProduct, error) {
	raw := bytes.TrimSpace(body)
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty body")
	}

	if raw[0] != '{' {
		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("parse html wrapper: %w", err)
		}
		text := strings.TrimSpace(doc.Text())
		if text == "" || text[0] != '{' {
			return nil, fmt.Errorf("no embedded json found")
		}
		raw = []byte(text)
	}

	var result searchResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode search result: %w", err)
	}
	return result.ProductSearchResult.Products, nil
}

func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}
	if status, ok := httpStatusFromError(err); ok {
		return ErrBadStatus{Status: status, Err: err}
	}
	return err
}

// httpStatusFromError recovers the status code colly folds into its
// response-error text for non-2xx replies.
func httpStatusFromError(err error) (int, bool) {
	msg := err.Error()
	for status := 400; status < 600; status++ {
		if text := http.StatusText(status); text != "" && msg == text {
			return status, true
		}
	}
	return 0, false
}
