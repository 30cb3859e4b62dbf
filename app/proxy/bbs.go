package proxy

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const ClientIPHeader = "X-Original-Client-IP"

var (
	ErrRateLimited      = errors.New("too many posts")
	ErrBBSNotConfigured = errors.New("bbs backend not configured")
)

type BBSOptions struct {
	BaseURL   string
	UserAgent string
	PostRate  float64
	PostBurst int
	Client    *http.Client
}

// BBS forwards board reads and posts to the external BBS backend
type BBS struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	limiter    *rate.Limiter
}

func NewBBS(opts BBSOptions) *BBS {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return &BBS{
		httpClient: client,
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		userAgent:  opts.UserAgent,
		limiter:    rate.NewLimiter(rate.Limit(cmp.Or(opts.PostRate, 1)), cmp.Or(opts.PostBurst, 5)),
	}
}

func (b *BBS) Posts(ctx context.Context) (json.RawMessage, error) {
	return b.do(ctx, http.MethodGet, "/posts", nil, "")
}

// Post relays a new post. clientIP is forwarded so the backend can apply its
// own per-poster limits.
func (b *BBS) Post(ctx context.Context, body []byte, clientIP string) (json.RawMessage, error) {
	if !b.limiter.Allow() {
		return nil, ErrRateLimited
	}
	return b.do(ctx, http.MethodPost, "/post", body, clientIP)
}

func (b *BBS) do(ctx context.Context, method, path string, body []byte, clientIP string) (json.RawMessage, error) {
	if b.baseURL == "" {
		return nil, ErrBBSNotConfigured
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if b.userAgent != "" {
		req.Header.Set("User-Agent", b.userAgent)
	}
	if clientIP != "" {
		req.Header.Set(ClientIPHeader, clientIP)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach bbs: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read bbs response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{URL: b.baseURL + path, StatusCode: resp.StatusCode}
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("bbs returned invalid JSON")
	}
	return json.RawMessage(data), nil
}

// ClientIP picks the first X-Forwarded-For element, falling back to remoteIP
func ClientIP(forwardedFor, remoteIP string) string {
	if forwardedFor != "" {
		first, _, _ := strings.Cut(forwardedFor, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	return remoteIP
}

type UpstreamError struct {
	URL        string
	StatusCode int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream HTTP %d from %s", e.StatusCode, e.URL)
}
