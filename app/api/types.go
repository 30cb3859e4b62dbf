package api

import (
	"context"
	"encoding/json"

	"github.com/lysyi3m/tube-comb/app/aggregator"
	"github.com/lysyi3m/tube-comb/app/database"
	"github.com/lysyi3m/tube-comb/app/mirror"
	"github.com/lysyi3m/tube-comb/app/normalize"
	"github.com/lysyi3m/tube-comb/app/proxy"
	"github.com/lysyi3m/tube-comb/app/stream"
	"github.com/lysyi3m/tube-comb/app/tasks"
)

const (
	GateCookie      = "yuzu_access_granted"
	gateCookieValue = "True"
	gateCookieTTL   = 24 * 60 * 60
)

type AggregatorInterface interface {
	Search(ctx context.Context, query string, page int) ([]normalize.Summary, error)
	Trending(ctx context.Context, region string) ([]normalize.VideoSummary, error)
	Video(ctx context.Context, videoID string) (*normalize.VideoDetail, error)
	Comments(ctx context.Context, videoID, continuation string) (*normalize.CommentPage, error)
	Playlist(ctx context.Context, playlistID string) (*normalize.PlaylistDetail, error)
	Channel(ctx context.Context, channelID string) (*normalize.ChannelDetail, error)
	Suggestions(ctx context.Context, query string) []string
}

var _ AggregatorInterface = (*aggregator.Service)(nil)

type StreamResolverInterface interface {
	Resolve360p(ctx context.Context, videoID string) (string, error)
	ResolveHighestQuality(ctx context.Context, videoID string) (*stream.Stream, error)
}

var _ StreamResolverInterface = (*stream.Resolver)(nil)

type BBSInterface interface {
	Posts(ctx context.Context) (json.RawMessage, error)
	Post(ctx context.Context, body []byte, clientIP string) (json.RawMessage, error)
}

var _ BBSInterface = (*proxy.BBS)(nil)

type ThumbnailInterface interface {
	Fetch(ctx context.Context, rawURL string) (*proxy.Image, error)
}

var _ ThumbnailInterface = (*proxy.Thumbnails)(nil)

type Handler struct {
	service    AggregatorInterface
	streams    StreamResolverInterface
	bbs        BBSInterface
	thumbnails ThumbnailInterface
	statsRepo  database.StatsRepositoryInterface
	registry   *mirror.Registry
	scheduler  tasks.TaskSchedulerInterface
	accessCode string
}
