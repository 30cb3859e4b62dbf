package stream

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/lysyi3m/tube-comb/app/fetch"
	"github.com/lysyi3m/tube-comb/app/normalize"
)

// LegacyItag is the combined audio+video 360p format
const LegacyItag = "18"

var resolutionPattern = regexp.MustCompile(`^(\d+)x(\d+)$`)

type Options struct {
	FormatsURL  string
	AdaptiveURL string
	UserAgent   string
	Timeout     time.Duration
	Client      *http.Client
}

type Stream struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	Resolution string `json:"resolution"`
}

// Resolver queries one designated stream provider per operation. There is
// no racing and no retry.
type Resolver struct {
	httpClient  *http.Client
	formatsURL  string
	adaptiveURL string
	userAgent   string
}

func NewResolver(opts Options) *Resolver {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: cmp.Or(opts.Timeout, 10*time.Second)}
	}

	return &Resolver{
		httpClient:  client,
		formatsURL:  opts.FormatsURL,
		adaptiveURL: opts.AdaptiveURL,
		userAgent:   cmp.Or(opts.UserAgent, fetch.UserAgentChrome),
	}
}

// Resolve360p returns the direct URL of the itag 18 format
func (r *Resolver) Resolve360p(ctx context.Context, videoID string) (string, error) {
	if r.formatsURL == "" {
		return "", ErrNotConfigured
	}

	data, err := r.get(ctx, r.formatsURL+url.PathEscape(videoID))
	if err != nil {
		return "", err
	}

	for _, format := range formatList(data, "formats", "formatStreams") {
		if itagOf(format) != LegacyItag {
			continue
		}
		if link, ok := format.Get("url").Text(); ok {
			return link, nil
		}
	}

	return "", fmt.Errorf("video %s itag %s: %w", videoID, LegacyItag, ErrFormatNotFound)
}

// ResolveHighestQuality returns the entry with the tallest WIDTHxHEIGHT resolution
func (r *Resolver) ResolveHighestQuality(ctx context.Context, videoID string) (*Stream, error) {
	if r.adaptiveURL == "" {
		return nil, ErrNotConfigured
	}

	data, err := r.get(ctx, r.adaptiveURL+url.PathEscape(videoID))
	if err != nil {
		return nil, err
	}

	type candidate struct {
		node       normalize.Node
		resolution string
		height     int
	}

	var candidates []candidate
	for _, format := range formatList(data, "m3u8_formats", "adaptiveFormats", "formats") {
		resolution, _ := format.Get("resolution").Text()
		match := resolutionPattern.FindStringSubmatch(resolution)
		if match == nil {
			continue
		}
		if _, ok := format.Get("url").Text(); !ok {
			continue
		}
		height, err := strconv.Atoi(match[2])
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{node: format, resolution: resolution, height: height})
	}

	if len(candidates) == 0 {
		return nil, fmt.Errorf("video %s: %w", videoID, ErrNoFormatsAvailable)
	}

	slices.SortStableFunc(candidates, func(a, b candidate) int {
		return b.height - a.height
	})

	best := candidates[0]
	link, _ := best.node.Get("url").Text()

	upstreamTitle, ok := best.node.Get("title").Text()
	if !ok {
		upstreamTitle, _ = normalize.NodeOf(data).Get("title").Text()
	}

	return &Stream{
		URL:        link,
		Title:      strings.TrimSpace(best.resolution + " " + upstreamTitle),
		Resolution: best.resolution,
	}, nil
}

func (r *Resolver) get(ctx context.Context, target string) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch formats: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamHTTPError{URL: target, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	data, err := fetch.DecodeJSON(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode formats: %w", err)
	}
	return data, nil
}

func formatList(data any, keys ...string) []normalize.Node {
	root := normalize.NodeOf(data)
	if items := root.List(); items != nil {
		return items
	}
	for _, key := range keys {
		if items := root.Get(key).List(); items != nil {
			return items
		}
	}
	return nil
}

func itagOf(format normalize.Node) string {
	if s, ok := format.Get("itag").Text(); ok {
		return s
	}
	if i, ok := format.Get("itag").Int(); ok {
		return strconv.FormatInt(i, 10)
	}
	return ""
}
