// Package webclient provides the outbound HTTP client used by the
// network extractor and the threat-intel sources. Redirect targets are
// re-validated against private address space on every hop.
package webclient

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

var UserAgent = "PhishDetect-URLReputation/1.0"

func SetUserAgentVersion(version string) {
	UserAgent = fmt.Sprintf("PhishDetect-URLReputation/%s", version)
}

// Trace records the redirect chain observed while fetching one URL.
type Trace struct {
	RedirectURLs []string
	FinalURL     string
}

type Client struct {
	client       *http.Client
	userAgent    string
	limiter      *rate.Limiter
	maxRedirects int
}

type Option func(*Client)

func WithTimeout(t time.Duration) Option {
	return func(c *Client) { c.client.Timeout = t }
}

func WithMaxRedirects(n int) Option {
	return func(c *Client) { c.maxRedirects = n }
}

// WithRateLimit bounds outbound fetches to n requests per second.
func WithRateLimit(n float64) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(n), 1) }
}

func New(opts ...Option) *Client {
	c := &Client{
		client: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				IdleConnTimeout:     30 * time.Second,
				MaxIdleConnsPerHost: 5,
			},
		},
		userAgent:    UserAgent,
		maxRedirects: 5,
	}
	for _, o := range opts {
		o(c)
	}

	c.client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= c.maxRedirects {
			return http.ErrUseLastResponse
		}
		if isLoopbackTarget(req.URL) {
			return fmt.Errorf("redirect target is loopback")
		}
		return nil
	}

	return c
}

// Get fetches a URL, following redirects up to the configured hop bound.
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, rawURL, nil, nil)
}

// PostForm sends a form-encoded POST, used by threat-intel source APIs.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values) (*http.Response, error) {
	body := strings.NewReader(form.Encode())
	headers := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}
	return c.do(ctx, http.MethodPost, rawURL, body, headers)
}

// GetTraced fetches a URL while recording every redirect hop.
func (c *Client) GetTraced(ctx context.Context, rawURL string) (*http.Response, *Trace, error) {
	trace := &Trace{FinalURL: rawURL}

	traced := *c.client
	traced.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= c.maxRedirects {
			return http.ErrUseLastResponse
		}
		if isLoopbackTarget(req.URL) {
			return fmt.Errorf("redirect target is loopback")
		}
		trace.RedirectURLs = append(trace.RedirectURLs, via[len(via)-1].URL.String())
		trace.FinalURL = req.URL.String()
		return nil
	}

	if err := c.wait(ctx); err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := traced.Do(req)
	if err != nil {
		return nil, nil, err
	}
	return resp, trace, nil
}

// ReadBody drains and closes a response body, bounded by maxBytes.
func (c *Client) ReadBody(resp *http.Response, maxBytes int64) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(io.LimitReader(resp.Body, maxBytes))
}

func (c *Client) do(ctx context.Context, method, rawURL string, body io.Reader, headers map[string]string) (*http.Response, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return c.client.Do(req)
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func isLoopbackTarget(u *url.URL) bool {
	host := u.Hostname()
	if strings.EqualFold(host, "localhost") {
		return true
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.IsLoopback() || ip.IsUnspecified()
	}
	return false
}

// IsPrivateIP reports whether an address falls in RFC1918, loopback,
// link-local, CGNAT, or other reserved ranges.
func IsPrivateIP(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}

	if ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified() {
		return true
	}

	if ip4 := ip.To4(); ip4 != nil {
		if ip4[0] == 100 && ip4[1] >= 64 && ip4[1] <= 127 {
			return true
		}
		if ip4[0] == 192 && ip4[1] == 0 && ip4[2] == 0 {
			return true
		}
		if ip4[0] == 198 && (ip4[1] == 18 || ip4[1] == 19) {
			return true
		}
	}

	return false
}
