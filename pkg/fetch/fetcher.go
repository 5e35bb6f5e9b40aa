// Package fetch downloads crates.io database dumps when they changed.
//
// [Fetcher.FetchIfUpdated] compares the Last-Modified header of the remote
// dump with the time of the previous download and only transfers the archive
// when the remote copy is newer. Requests go through a DNS-caching transport,
// are retried with exponential backoff on transient failures, and pass a
// per-host circuit breaker.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/mail"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenk/backoff"
	"github.com/charmbracelet/log"
	"github.com/rs/dnscache"

	errs "github.com/matzehuels/crateindex/pkg/errors"
	"github.com/matzehuels/crateindex/pkg/observability"
)

// DefaultURL is the location of the official crates.io database dump.
const DefaultURL = "https://static.crates.io/db-dump.tar.gz"

var (
	// ErrNotModified is returned when the remote dump is not newer than the
	// previous download.
	ErrNotModified = errors.New("snapshot not modified")

	// ErrNoLastModified is returned when the server sends no usable
	// Last-Modified header.
	ErrNoLastModified = errors.New("no Last-Modified header")

	ErrNotFound     = errors.New("snapshot not found")
	ErrRateLimited  = errors.New("rate limited by upstream")
	ErrUpstreamDown = errors.New("upstream unavailable")
)

// Fetcher downloads snapshots over HTTP.
type Fetcher struct {
	client     *http.Client
	userAgent  string
	maxRetries int
	baseDelay  time.Duration
	breakers   *breakers
	logger     *log.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithMaxRetries sets the maximum retry attempts per request.
func WithMaxRetries(n int) Option {
	return func(f *Fetcher) {
		f.maxRetries = n
	}
}

// WithBaseDelay sets the initial delay for exponential backoff.
func WithBaseDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		f.baseDelay = d
	}
}

// WithBreakerThreshold sets how many consecutive failures open a host's
// circuit breaker.
func WithBreakerThreshold(n int64) Option {
	return func(f *Fetcher) {
		f.breakers = newBreakers(n)
	}
}

// WithLogger sets the logger for retry and download messages.
func WithLogger(l *log.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFetcher creates a Fetcher with the given options.
func NewFetcher(opts ...Option) *Fetcher {
	resolver := &dnscache.Resolver{}
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	f := &Fetcher{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
					host, port, err := net.SplitHostPort(addr)
					if err != nil {
						return nil, err
					}
					ips, err := resolver.LookupHost(ctx, host)
					if err != nil {
						return nil, err
					}
					for _, ip := range ips {
						conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
						if err == nil {
							return conn, nil
						}
					}
					return nil, fmt.Errorf("failed to dial any resolved IP for %s", host)
				},
				MaxIdleConns:          10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ResponseHeaderTimeout: time.Minute,
			},
		},
		userAgent:  "crateindex/1.0",
		maxRetries: 3,
		baseDelay:  500 * time.Millisecond,
		breakers:   newBreakers(5),
		logger:     log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Result describes a completed download.
type Result struct {
	LastModified time.Time
	Bytes        int64
}

// LastUpdated formats LastModified for the last_updated artifact.
func (r Result) LastUpdated() string {
	return FormatLastUpdated(r.LastModified)
}

// FetchIfUpdated downloads rawURL to dest when the remote Last-Modified time
// is after since. A zero since always downloads.
//
// The returned errors carry the NOT_MODIFIED, NO_LAST_MODIFIED or
// NETWORK_ERROR codes and wrap ErrNotModified and ErrNoLastModified where
// applicable. dest is replaced atomically and left untouched on failure.
func (f *Fetcher) FetchIfUpdated(ctx context.Context, rawURL, dest string, since time.Time) (Result, error) {
	modified, err := f.LastModified(ctx, rawURL)
	if err != nil {
		if errors.Is(err, ErrNoLastModified) {
			return Result{}, errs.Wrap(errs.ErrCodeNoLastModified, err, "check %s", rawURL)
		}
		return Result{}, classify(err, "check %s", rawURL)
	}

	if !since.IsZero() && !modified.After(since) {
		f.logger.Info("Snapshot up to date", "remote", FormatLastUpdated(modified), "local", FormatLastUpdated(since))
		return Result{LastModified: modified}, errs.Wrap(errs.ErrCodeNotModified, ErrNotModified, "remote snapshot from %s", FormatLastUpdated(modified))
	}

	f.logger.Info("Downloading snapshot", "url", rawURL, "modified", FormatLastUpdated(modified))
	n, err := f.Download(ctx, rawURL, dest)
	if err != nil {
		return Result{}, classify(err, "download %s", rawURL)
	}
	return Result{LastModified: modified, Bytes: n}, nil
}

func classify(err error, format string, args ...any) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errs.Wrap(errs.ErrCodeNetwork, err, format, args...)
}

// LastModified sends a HEAD request and parses the Last-Modified header.
func (f *Fetcher) LastModified(ctx context.Context, rawURL string) (time.Time, error) {
	var header http.Header
	err := f.do(ctx, http.MethodHead, rawURL, func(resp *http.Response) error {
		header = resp.Header
		return nil
	})
	if err != nil {
		return time.Time{}, err
	}

	v := header.Get("Last-Modified")
	if v == "" {
		return time.Time{}, ErrNoLastModified
	}
	t, err := ParseLastUpdated(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrNoLastModified, err)
	}
	return t, nil
}

// Download streams rawURL into dest through a temporary file in dest's
// directory and returns the number of bytes written.
func (f *Fetcher) Download(ctx context.Context, rawURL, dest string) (int64, error) {
	var n int64
	err := f.do(ctx, http.MethodGet, rawURL, func(resp *http.Response) error {
		tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.tmp")
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create temp file: %w", err))
		}
		defer os.Remove(tmp.Name())

		written, err := io.Copy(tmp, resp.Body)
		if cerr := tmp.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("read body: %w", err)
		}
		if err := os.Rename(tmp.Name(), dest); err != nil {
			return backoff.Permanent(fmt.Errorf("rename %s: %w", dest, err))
		}
		n = written
		return nil
	})
	if err != nil {
		return 0, err
	}
	f.logger.Info("Downloaded snapshot", "path", dest, "bytes", n)
	return n, nil
}

// do performs one request with retries and the host's circuit breaker. handle
// is called for 200 responses; its error is retried unless permanent.
func (f *Fetcher) do(ctx context.Context, method, rawURL string, handle func(*http.Response) error) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	breaker := f.breakers.get(u.Host)

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.baseDelay
	b.RandomizationFactor = 0.1
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(f.maxRetries)), ctx)

	op := func() error {
		if !breaker.Ready() {
			return backoff.Permanent(fmt.Errorf("circuit breaker open for %s: %w", u.Host, ErrUpstreamDown))
		}
		var herr error
		err := breaker.Call(func() error {
			herr = f.attempt(ctx, method, u, handle)
			// Client-side outcomes do not count against the host.
			if errors.Is(herr, ErrNotFound) {
				return nil
			}
			return herr
		}, 0)
		if herr != nil {
			err = herr
		}
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrNotFound) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, d time.Duration) {
		f.logger.Warn("Request failed, retrying", "method", method, "url", rawURL, "err", err, "in", d.Round(time.Millisecond))
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (f *Fetcher) attempt(ctx context.Context, method string, u *url.URL, handle func(*http.Response) error) error {
	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("User-Agent", f.userAgent)

	hooks := observability.HTTP()
	hooks.OnRequest(ctx, method, u.Host, u.Path)
	start := time.Now()

	resp, err := f.client.Do(req)
	if err != nil {
		hooks.OnError(ctx, method, u.Host, u.Path, err)
		return fmt.Errorf("%s request: %w", method, err)
	}
	defer resp.Body.Close()
	hooks.OnResponse(ctx, method, u.Host, u.Path, resp.StatusCode, time.Since(start))

	switch {
	case resp.StatusCode == http.StatusOK:
		return handle(resp)
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrUpstreamDown, resp.StatusCode)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return backoff.Permanent(fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body)))
	}
}

// =============================================================================
// last_updated marker
// =============================================================================

// ParseLastUpdated parses an RFC 2822 date such as the value of a
// Last-Modified header or the last_updated artifact.
func ParseLastUpdated(s string) (time.Time, error) {
	t, err := mail.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t.UTC(), nil
}

// FormatLastUpdated formats t as RFC 2822 in UTC.
func FormatLastUpdated(t time.Time) string {
	return t.UTC().Format(time.RFC1123Z)
}

// ReadLastUpdated returns the time stored in the last_updated file at path.
// A missing, empty or unparseable file yields the zero time.
func ReadLastUpdated(path string) time.Time {
	b, err := os.ReadFile(path)
	if err != nil {
		return time.Time{}
	}
	t, err := ParseLastUpdated(strings.TrimSpace(string(b)))
	if err != nil {
		return time.Time{}
	}
	return t
}
