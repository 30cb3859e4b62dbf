package proxy

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/lysyi3m/tube-comb/app/normalize"
	"golang.org/x/sync/singleflight"
)

var (
	ErrNoImage        = errors.New("no image")
	ErrHostNotAllowed = errors.New("image host not allowed")
	ErrNotAnImage     = errors.New("upstream did not return an image")
	ErrImageTooLarge  = errors.New("image too large")
)

var DefaultImageHosts = []string{
	"i.ytimg.com",
	"yt3.ggpht.com",
	"yt3.googleusercontent.com",
}

const (
	defaultMaxImageBytes = 2 << 20
	downloadTimeout      = 10 * time.Second
)

type Image struct {
	ContentType string
	Body        []byte
}

type ThumbnailOptions struct {
	Hosts     []string
	MaxBytes  int64
	UserAgent string
	Client    *http.Client
}

// Thumbnails fetches images from an allowlist of hosts. Concurrent requests
// for the same URL share one upstream fetch; nothing is kept afterwards.
type Thumbnails struct {
	httpClient *http.Client
	hosts      []string
	maxBytes   int64
	userAgent  string
	group      singleflight.Group
}

func NewThumbnails(opts ThumbnailOptions) *Thumbnails {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	hosts := make([]string, 0, len(DefaultImageHosts)+len(opts.Hosts))
	for _, host := range append(slices.Clone(DefaultImageHosts), opts.Hosts...) {
		if host = strings.ToLower(strings.TrimSpace(host)); host != "" {
			hosts = append(hosts, host)
		}
	}
	slices.Sort(hosts)

	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxImageBytes
	}

	return &Thumbnails{
		httpClient: client,
		hosts:      slices.Compact(hosts),
		maxBytes:   maxBytes,
		userAgent:  opts.UserAgent,
	}
}

func (t *Thumbnails) Allowed(host string) bool {
	_, found := slices.BinarySearch(t.hosts, strings.ToLower(host))
	return found
}

func (t *Thumbnails) Fetch(ctx context.Context, rawURL string) (*Image, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" || normalize.IsUnavailable(rawURL) {
		return nil, ErrNoImage
	}

	target, err := url.Parse(normalize.NormalizeURL(rawURL))
	if err != nil {
		return nil, fmt.Errorf("invalid image URL: %w", err)
	}
	if target.Scheme != "https" || !t.Allowed(target.Hostname()) {
		return nil, fmt.Errorf("%w: %s", ErrHostNotAllowed, target.Host)
	}

	// The shared download outlives any single caller; each caller stops
	// waiting when its own ctx ends.
	key := target.String()
	ch := t.group.DoChan(key, func() (any, error) {
		downloadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), downloadTimeout)
		defer cancel()
		return t.download(downloadCtx, key)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Image), nil
	}
}

func (t *Thumbnails) download(ctx context.Context, target string) (*Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{URL: target, StatusCode: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "image/") {
		return nil, fmt.Errorf("%w: %q", ErrNotAnImage, contentType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	if int64(len(body)) > t.maxBytes {
		return nil, ErrImageTooLarge
	}

	return &Image{ContentType: mediaType, Body: body}, nil
}

// DataURI renders an image inline as base64
func DataURI(img *Image) string {
	return "data:" + img.ContentType + ";base64," + base64.StdEncoding.EncodeToString(img.Body)
}
