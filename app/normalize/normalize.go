package normalize

// Every function here is total: any input produces a fully populated record,
// with Unavailable in place of fields that cannot be located.

func VideoSummaryFrom(raw any) VideoSummary {
	n := NodeOf(raw)
	return videoSummaryOf(n, DetectShape(n))
}

func videoSummaryOf(n Node, shape Shape) VideoSummary {
	f := videoSummaryFields
	return VideoSummary{
		Type:          KindVideo,
		Title:         f.title.resolve(n, shape),
		ID:            f.id.resolve(n, shape),
		Author:        f.author.resolve(n, shape),
		Published:     f.published.resolve(n, shape),
		Duration:      f.duration.resolve(n, shape),
		ViewCountText: f.viewCount.resolve(n, shape),
	}
}

func ChannelSummaryFrom(raw any) ChannelSummary {
	n := NodeOf(raw)
	shape := DetectShape(n)
	f := channelSummaryFields
	return ChannelSummary{
		Type:      KindChannel,
		Author:    f.author.resolve(n, shape),
		ID:        f.id.resolve(n, shape),
		Thumbnail: f.thumbnail.resolve(n, shape),
	}
}

func PlaylistSummaryFrom(raw any) PlaylistSummary {
	n := NodeOf(raw)
	return playlistSummaryOf(n, DetectShape(n))
}

func playlistSummaryOf(n Node, shape Shape) PlaylistSummary {
	f := playlistSummaryFields
	return PlaylistSummary{
		Type:      KindPlaylist,
		Title:     f.title.resolve(n, shape),
		ID:        f.id.resolve(n, shape),
		Thumbnail: f.thumbnail.resolve(n, shape),
		ItemCount: f.itemCount.resolve(n, shape),
	}
}

// Classify decides which summary kind an entry is. An entry is a playlist
// when its playlistId differs from its videoId. An empty result means the
// entry is of a kind with no summary record (hashtags, shelves, ...).
func Classify(raw any) string {
	n := NodeOf(raw)
	kind, _ := n.Get("type").Text()

	if kind == KindChannel {
		return KindChannel
	}
	if playlistID, ok := n.Get("playlistId").Text(); ok {
		videoID, _ := n.Get("videoId").Text()
		if playlistID != videoID {
			return KindPlaylist
		}
		return KindVideo
	}

	switch kind {
	case KindPlaylist:
		return KindPlaylist
	case "", KindVideo, "shortVideo":
		return KindVideo
	default:
		return ""
	}
}

// SummaryFrom classifies and normalizes one list entry. It reports false for
// entries of an unrecognized shape or kind.
func SummaryFrom(raw any) (Summary, bool) {
	n := NodeOf(raw)
	shape := DetectShape(n)
	if shape == ShapeUnknown {
		return nil, false
	}

	switch Classify(raw) {
	case KindVideo:
		return videoSummaryOf(n, shape), true
	case KindPlaylist:
		return playlistSummaryOf(n, shape), true
	case KindChannel:
		return ChannelSummaryFrom(raw), true
	default:
		return nil, false
	}
}

// SummariesFrom accepts a bare list or an object wrapping one
func SummariesFrom(raw any) []Summary {
	items := listOf(NodeOf(raw), "items", "results", "result", "videos")

	summaries := make([]Summary, 0, len(items))
	for _, item := range items {
		if summary, ok := SummaryFrom(item.Raw()); ok {
			summaries = append(summaries, summary)
		}
	}
	return summaries
}

// VideoSummariesFrom keeps only the video entries of a list
func VideoSummariesFrom(raw any) []VideoSummary {
	return videoSummaries(listOf(NodeOf(raw), "videos", "items", "results", "result"))
}

func videoSummaries(items []Node) []VideoSummary {
	videos := make([]VideoSummary, 0, len(items))
	for _, item := range items {
		shape := DetectShape(item)
		if shape == ShapeUnknown || Classify(item.Raw()) != KindVideo {
			continue
		}
		videos = append(videos, videoSummaryOf(item, shape))
	}
	return videos
}

func listOf(n Node, keys ...string) []Node {
	if items := n.List(); items != nil {
		return items
	}
	for _, key := range keys {
		if items := n.Get(key).List(); items != nil {
			return items
		}
	}
	return nil
}

func VideoDetailFrom(raw any) VideoDetail {
	n := NodeOf(raw)
	shape := DetectShape(n)
	f := videoDetailFields

	detail := VideoDetail{
		Title:               f.title.resolve(n, shape),
		Description:         f.description.resolve(n, shape),
		AuthorName:          f.authorName.resolve(n, shape),
		AuthorID:            f.authorID.resolve(n, shape),
		AuthorThumbnail:     f.authorThumbnail.resolve(n, shape),
		ViewCountText:       f.viewCount.resolve(n, shape),
		LikeCountText:       f.likeCount.resolve(n, shape),
		SubscriberCountText: f.subscriberCount.resolve(n, shape),
		Published:           f.published.resolve(n, shape),
		DurationText:        f.duration.resolve(n, shape),
		Related:             []Summary{},
	}

	for _, item := range f.related.resolve(n, shape) {
		summary, ok := SummaryFrom(item.Raw())
		if !ok || summary.Kind() == KindChannel {
			continue
		}
		detail.Related = append(detail.Related, summary)
	}

	return detail
}

func CommentFrom(raw any) Comment {
	n := NodeOf(raw)
	shape := DetectShape(n)
	f := commentFields
	return Comment{
		Author:     f.author.resolve(n, shape),
		AuthorIcon: f.authorIcon.resolve(n, shape),
		AuthorID:   f.authorID.resolve(n, shape),
		BodyHTML:   f.body.resolve(n, shape),
	}
}

func CommentPageFrom(raw any) CommentPage {
	n := NodeOf(raw)
	page := CommentPage{Comments: []Comment{}}

	for _, item := range listOf(n, "comments", "result") {
		if DetectShape(item) == ShapeUnknown {
			continue
		}
		page.Comments = append(page.Comments, CommentFrom(item.Raw()))
	}
	page.Continuation, _ = n.Get("continuation").Text()

	return page
}

func ChannelDetailFrom(raw any) ChannelDetail {
	n := NodeOf(raw)
	shape := DetectShape(n)
	f := channelDetailFields

	return ChannelDetail{
		Author:              f.author.resolve(n, shape),
		ID:                  f.id.resolve(n, shape),
		Thumbnail:           f.thumbnail.resolve(n, shape),
		Banner:              f.banner.resolve(n, shape),
		Description:         f.description.resolve(n, shape),
		SubscriberCountText: f.subscriberCount.resolve(n, shape),
		Videos:              videoSummaries(f.videos.resolve(n, shape)),
		Shorts:              []VideoSummary{},
	}
}

func PlaylistDetailFrom(raw any) PlaylistDetail {
	n := NodeOf(raw)
	shape := DetectShape(n)
	f := playlistSummaryFields

	detail := PlaylistDetail{
		Title:     f.title.resolve(n, shape),
		ID:        f.id.resolve(n, shape),
		Author:    f.author.resolve(n, shape),
		Thumbnail: f.thumbnail.resolve(n, shape),
		ItemCount: f.itemCount.resolve(n, shape),
		Videos:    []VideoSummary{},
	}
	if shape != ShapeUnknown {
		detail.Videos = videoSummaries(n.Get("videos").List())
	}
	return detail
}

// SuggestionsFrom reads a suggestion payload: either {"suggestions": [...]}
// or a bare list of strings.
func SuggestionsFrom(raw any) []string {
	suggestions := []string{}
	for _, item := range listOf(NodeOf(raw), "suggestions", "result") {
		if s, ok := item.Text(); ok {
			suggestions = append(suggestions, s)
		}
	}
	return suggestions
}
