package aggregator

import (
	"cmp"
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/lysyi3m/tube-comb/app/fetch"
	"github.com/lysyi3m/tube-comb/app/mirror"
	"github.com/lysyi3m/tube-comb/app/normalize"
	"github.com/mmcdole/gofeed"
)

const DefaultRegion = "JP"

// Racer is the subset of the executor the service depends on
type Racer interface {
	RaceWith(ctx context.Context, category mirror.Category, pathSuffix string, extra ...fetch.Source) (*fetch.Payload, error)
	RaceFeed(ctx context.Context, category mirror.Category, path string) (*gofeed.Feed, error)
}

type Options struct {
	Region         string
	SearchLibrary  bool
	LibraryTimeout time.Duration
}

// Service maps each logical operation onto a race over the matching mirror
// category and normalizes the winner.
type Service struct {
	racer         Racer
	region        string
	searchLibrary bool
	librarySource func(query string) fetch.Source
}

func NewService(racer Racer, opts Options) *Service {
	return &Service{
		racer:         racer,
		region:        cmp.Or(opts.Region, DefaultRegion),
		searchLibrary: opts.SearchLibrary,
		librarySource: func(query string) fetch.Source { return NewLibrarySource(query, opts.LibraryTimeout) },
	}
}

func (s *Service) Search(ctx context.Context, query string, page int) ([]normalize.Summary, error) {
	page = max(page, 1)

	params := url.Values{}
	params.Set("q", query)
	params.Set("page", strconv.Itoa(page))
	params.Set("type", "all")

	var extra []fetch.Source
	if s.searchLibrary && page == 1 && query != "" {
		extra = append(extra, s.librarySource(query))
	}

	payload, err := s.racer.RaceWith(ctx, mirror.CategorySearch, "/search?"+params.Encode(), extra...)
	if err != nil {
		return nil, err
	}
	return normalize.SummariesFrom(payload.Data), nil
}

func (s *Service) Trending(ctx context.Context, region string) ([]normalize.VideoSummary, error) {
	params := url.Values{}
	params.Set("region", cmp.Or(region, s.region))

	payload, err := s.racer.RaceWith(ctx, mirror.CategoryTrending, "/trending?"+params.Encode())
	if err != nil {
		return nil, err
	}
	return normalize.VideoSummariesFrom(payload.Data), nil
}

func (s *Service) Video(ctx context.Context, videoID string) (*normalize.VideoDetail, error) {
	payload, err := s.racer.RaceWith(ctx, mirror.CategoryVideo, "/videos/"+url.PathEscape(videoID))
	if err != nil {
		return nil, err
	}
	detail := normalize.VideoDetailFrom(payload.Data)
	return &detail, nil
}

func (s *Service) Comments(ctx context.Context, videoID, continuation string) (*normalize.CommentPage, error) {
	suffix := "/comments/" + url.PathEscape(videoID)
	if continuation != "" {
		params := url.Values{}
		params.Set("continuation", continuation)
		suffix += "?" + params.Encode()
	}

	payload, err := s.racer.RaceWith(ctx, mirror.CategoryComments, suffix)
	if err != nil {
		return nil, err
	}
	page := normalize.CommentPageFrom(payload.Data)
	return &page, nil
}

func (s *Service) Playlist(ctx context.Context, playlistID string) (*normalize.PlaylistDetail, error) {
	payload, err := s.racer.RaceWith(ctx, mirror.CategoryPlaylist, "/playlists/"+url.PathEscape(playlistID))
	if err != nil {
		return nil, err
	}
	detail := normalize.PlaylistDetailFrom(payload.Data)
	return &detail, nil
}

// Channel fetches the channel record and fills uploads and shorts from
// secondary races when the record lacks them. Enrichment failures never fail
// the channel itself.
func (s *Service) Channel(ctx context.Context, channelID string) (*normalize.ChannelDetail, error) {
	escaped := url.PathEscape(channelID)

	payload, err := s.racer.RaceWith(ctx, mirror.CategoryChannel, "/channels/"+escaped)
	if err != nil {
		return nil, err
	}

	detail := normalize.ChannelDetailFrom(payload.Data)

	if len(detail.Videos) == 0 {
		detail.Videos = orEmpty("uploads", channelID, func() ([]normalize.VideoSummary, error) {
			return s.channelUploads(ctx, escaped)
		})
	}
	detail.Shorts = orEmpty("shorts", channelID, func() ([]normalize.VideoSummary, error) {
		return s.channelTab(ctx, escaped, "shorts")
	})

	return &detail, nil
}

func (s *Service) channelUploads(ctx context.Context, escapedID string) ([]normalize.VideoSummary, error) {
	videos, err := s.channelTab(ctx, escapedID, "videos")
	if err == nil && len(videos) > 0 {
		return videos, nil
	}

	feed, feedErr := s.racer.RaceFeed(ctx, mirror.CategoryChannel, "/feed/channel/"+escapedID)
	if feedErr != nil {
		return nil, cmp.Or(err, feedErr)
	}
	return normalize.VideoSummariesFrom(feedVideos(feed)), nil
}

func (s *Service) channelTab(ctx context.Context, escapedID, tab string) ([]normalize.VideoSummary, error) {
	payload, err := s.racer.RaceWith(ctx, mirror.CategoryChannel, "/channels/"+escapedID+"/"+tab)
	if err != nil {
		return nil, err
	}
	return normalize.VideoSummariesFrom(payload.Data), nil
}

// Suggestions never fails; any error yields an empty list
func (s *Service) Suggestions(ctx context.Context, query string) []string {
	if query == "" {
		return []string{}
	}

	params := url.Values{}
	params.Set("q", query)

	payload, err := s.racer.RaceWith(ctx, mirror.CategorySearch, "/search/suggestions?"+params.Encode())
	if err != nil {
		slog.Debug("Suggestions unavailable", "query", query, "error", err)
		return []string{}
	}
	return normalize.SuggestionsFrom(payload.Data)
}

// orEmpty is the degradation policy for optional enrichments
func orEmpty[T any](name, id string, load func() ([]T, error)) []T {
	items, err := load()
	if err != nil {
		slog.Debug("Enrichment unavailable", "enrichment", name, "id", id, "error", err)
		return []T{}
	}
	if items == nil {
		return []T{}
	}
	return items
}
