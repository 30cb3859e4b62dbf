package aggregator

import (
	"cmp"
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/raitonoberu/ytsearch"
)

var errNoLibraryResults = errors.New("search library returned no videos")

const (
	libraryLanguage = "ja"
	libraryRegion   = "JP"

	defaultLibraryTimeout = 10 * time.Second
)

// LibrarySource runs a query through the ytsearch library and presents the
// results in the library response shape so they can race against the mirrors.
type LibrarySource struct {
	query  string
	search func(query string) (*ytsearch.SearchResult, error)
}

// NewLibrarySource searches in the ja/JP locale. The library takes no
// context, so timeout bounds each call instead.
func NewLibrarySource(query string, timeout time.Duration) *LibrarySource {
	return &LibrarySource{query: query, search: librarySearch(cmp.Or(timeout, defaultLibraryTimeout))}
}

func librarySearch(timeout time.Duration) func(string) (*ytsearch.SearchResult, error) {
	return func(query string) (*ytsearch.SearchResult, error) {
		return newLibraryClient(query, timeout).Next()
	}
}

func newLibraryClient(query string, timeout time.Duration) *ytsearch.SearchClient {
	client := ytsearch.VideoSearch(query)
	client.Language = libraryLanguage
	client.Region = libraryRegion
	client.HTTPClient = &http.Client{Timeout: timeout}
	return client
}

func (s *LibrarySource) Name() string {
	return "ytsearch"
}

// Fetch cannot interrupt a library call once it starts. When ctx ends first
// the call finishes in the background within the client timeout.
func (s *LibrarySource) Fetch(ctx context.Context) (any, error) {
	type result struct {
		data any
		err  error
	}

	done := make(chan result, 1)
	go func() {
		res, err := s.search(s.query)
		if err != nil {
			done <- result{err: err}
			return
		}
		data := libraryPayload(res)
		if data == nil {
			done <- result{err: errNoLibraryResults}
			return
		}
		done <- result{data: data}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.data, r.err
	}
}

func libraryPayload(res *ytsearch.SearchResult) any {
	if res == nil || len(res.Videos) == 0 {
		return nil
	}

	items := make([]any, 0, len(res.Videos))
	for _, video := range res.Videos {
		if video == nil || video.ID == "" {
			continue
		}

		thumbnails := make([]any, 0, len(video.Thumbnails))
		for _, thumb := range video.Thumbnails {
			thumbnails = append(thumbnails, map[string]any{"url": thumb.URL})
		}

		items = append(items, map[string]any{
			"type":       "video",
			"id":         video.ID,
			"title":      video.Title,
			"thumbnails": thumbnails,
			"duration": map[string]any{
				"secondsText": strconv.Itoa(video.Duration),
			},
			"channel": map[string]any{
				"name": video.Channel.Title,
			},
		})
	}

	if len(items) == 0 {
		return nil
	}
	return map[string]any{"items": items}
}
