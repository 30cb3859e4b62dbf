package aggregator

import (
	"net/url"
	"strings"

	"github.com/mmcdole/gofeed"
	ext "github.com/mmcdole/gofeed/extensions"
)

// feedVideos converts a channel Atom feed into Invidious-shaped video entries
func feedVideos(feed *gofeed.Feed) []any {
	if feed == nil {
		return []any{}
	}

	videos := make([]any, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}

		videoID := feedVideoID(item)
		if videoID == "" {
			continue
		}

		video := map[string]any{
			"type":    "video",
			"videoId": videoID,
			"title":   strings.TrimSpace(item.Title),
		}

		if author := feedAuthor(item, feed); author != "" {
			video["author"] = author
		}
		if item.PublishedParsed != nil {
			video["published"] = item.PublishedParsed.Unix()
		}
		if thumb := extensionAttr(item.Extensions, "media", "group", "thumbnail", "url"); thumb != "" {
			video["videoThumbnails"] = []any{map[string]any{"url": thumb}}
		}

		videos = append(videos, video)
	}
	return videos
}

// feedVideoID reads yt:videoId, falling back to the v parameter of the entry link
func feedVideoID(item *gofeed.Item) string {
	if id := extensionValue(item.Extensions, "yt", "videoId"); id != "" {
		return id
	}

	u, err := url.Parse(item.Link)
	if err != nil {
		return ""
	}
	return u.Query().Get("v")
}

func feedAuthor(item *gofeed.Item, feed *gofeed.Feed) string {
	for _, person := range item.Authors {
		if person != nil && strings.TrimSpace(person.Name) != "" {
			return strings.TrimSpace(person.Name)
		}
	}
	for _, person := range feed.Authors {
		if person != nil && strings.TrimSpace(person.Name) != "" {
			return strings.TrimSpace(person.Name)
		}
	}
	return ""
}

func extensionValue(extensions ext.Extensions, namespace, name string) string {
	values := extensions[namespace][name]
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0].Value)
}

func extensionAttr(extensions ext.Extensions, namespace, name, child, attr string) string {
	values := extensions[namespace][name]
	if len(values) == 0 {
		return ""
	}
	children := values[0].Children[child]
	if len(children) == 0 {
		return ""
	}
	return children[0].Attrs[attr]
}
