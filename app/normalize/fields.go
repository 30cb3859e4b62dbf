package normalize

import (
	"strconv"
	"time"
)

// extractor reads one candidate location and converts it to display form
type extractor func(n Node) (string, bool)

// field is the fallback policy for one output field. resolve tries the
// detected shape's own keys, then the other family's keys, then derived
// values, then gives Unavailable.
type field struct {
	invidious []extractor
	library   []extractor
	derived   []extractor
}

func (f field) resolve(n Node, shape Shape) string {
	var order [][]extractor
	switch shape {
	case ShapeInvidious:
		order = [][]extractor{f.invidious, f.library, f.derived}
	case ShapeLibrary:
		order = [][]extractor{f.library, f.invidious, f.derived}
	default:
		return Unavailable
	}

	for _, group := range order {
		for _, extract := range group {
			if value, ok := extract(n); ok {
				return value
			}
		}
	}
	return Unavailable
}

// listKeys resolves which nested list to read, with the same precedence
type listKeys struct {
	invidious []string
	library   []string
}

func (k listKeys) resolve(n Node, shape Shape) []Node {
	var order [][]string
	switch shape {
	case ShapeInvidious:
		order = [][]string{k.invidious, k.library}
	case ShapeLibrary:
		order = [][]string{k.library, k.invidious}
	default:
		return nil
	}

	for _, group := range order {
		for _, path := range group {
			if items := n.Get(path).List(); items != nil {
				return items
			}
		}
	}
	return nil
}

func text(path string) extractor {
	return func(n Node) (string, bool) {
		return n.Get(path).Text()
	}
}

func link(path string) extractor {
	return func(n Node) (string, bool) {
		s, ok := n.Get(path).Text()
		if !ok {
			return "", false
		}
		return NormalizeURL(s), true
	}
}

func seconds(path string) extractor {
	return func(n Node) (string, bool) {
		s, ok := n.Get(path).IntOrDigits()
		if !ok || s < 0 {
			return "", false
		}
		return FormatDuration(s), true
	}
}

func count(path string) extractor {
	return func(n Node) (string, bool) {
		c, ok := n.Get(path).Int()
		if !ok || c < 0 {
			return "", false
		}
		return strconv.FormatInt(c, 10), true
	}
}

func length(path string) extractor {
	return func(n Node) (string, bool) {
		items := n.Get(path).List()
		if items == nil {
			return "", false
		}
		return strconv.Itoa(len(items)), true
	}
}

func magnitude(path string) extractor {
	return func(n Node) (string, bool) {
		c, ok := n.Get(path).Int()
		if !ok || c < 0 {
			return "", false
		}
		return FormatJapaneseCount(c), true
	}
}

func epochDate(path string) extractor {
	return func(n Node) (string, bool) {
		ts, ok := n.Get(path).Int()
		if !ok || ts <= 0 {
			return "", false
		}
		return time.Unix(ts, 0).UTC().Format("2006-01-02"), true
	}
}

// lastThumb takes the final element of a thumbnail list. Elements are either
// objects with a url or bare strings.
func lastThumb(path string) extractor {
	return func(n Node) (string, bool) {
		items := n.Get(path).List()
		if len(items) == 0 {
			return "", false
		}

		last := items[len(items)-1]
		s, ok := last.Text()
		if !ok {
			s, ok = last.Get("url").Text()
		}
		if !ok {
			return "", false
		}
		return NormalizeURL(s), true
	}
}

func plainHTML(path string) extractor {
	return func(n Node) (string, bool) {
		s, ok := n.Get(path).Text()
		if !ok {
			return "", false
		}
		return EscapeText(s), true
	}
}

func richHTML(path string) extractor {
	return func(n Node) (string, bool) {
		s, ok := n.Get(path).Text()
		if !ok {
			return "", false
		}
		return SanitizeHTML(s), true
	}
}

var videoSummaryFields = struct {
	title, id, author, published, duration, viewCount field
}{
	title: field{
		invidious: []extractor{text("title")},
		library:   []extractor{text("title")},
	},
	id: field{
		invidious: []extractor{text("videoId")},
		library:   []extractor{text("id")},
	},
	author: field{
		invidious: []extractor{text("author")},
		library:   []extractor{text("channel.name")},
	},
	published: field{
		invidious: []extractor{text("publishedText")},
		library:   []extractor{text("publishedTime"), text("publishDate")},
		derived:   []extractor{epochDate("published")},
	},
	duration: field{
		invidious: []extractor{seconds("lengthSeconds"), text("lengthText")},
		library:   []extractor{text("duration.text"), text("duration"), seconds("duration.secondsText")},
	},
	viewCount: field{
		invidious: []extractor{text("viewCountText")},
		library:   []extractor{text("viewCount.text"), text("viewCount.short")},
		derived:   []extractor{magnitude("viewCount")},
	},
}

var channelSummaryFields = struct {
	author, id, thumbnail field
}{
	author: field{
		invidious: []extractor{text("author")},
		library:   []extractor{text("title"), text("name")},
	},
	id: field{
		invidious: []extractor{text("authorId")},
		library:   []extractor{text("id")},
	},
	thumbnail: field{
		invidious: []extractor{lastThumb("authorThumbnails")},
		library:   []extractor{lastThumb("thumbnails")},
	},
}

var playlistSummaryFields = struct {
	title, id, author, thumbnail, itemCount field
}{
	title: field{
		invidious: []extractor{text("title")},
		library:   []extractor{text("title")},
	},
	id: field{
		invidious: []extractor{text("playlistId")},
		library:   []extractor{text("id")},
	},
	author: field{
		invidious: []extractor{text("author")},
		library:   []extractor{text("channel.name")},
	},
	thumbnail: field{
		invidious: []extractor{link("playlistThumbnail"), lastThumb("videos.0.videoThumbnails")},
		library:   []extractor{lastThumb("thumbnails")},
	},
	itemCount: field{
		invidious: []extractor{count("videoCount")},
		library:   []extractor{text("videoCount")},
		derived:   []extractor{length("videos")},
	},
}

var videoDetailFields = struct {
	title, description, authorName, authorID, authorThumbnail, viewCount, likeCount, subscriberCount, published, duration field
	related                                                                                                             listKeys
}{
	title: field{
		invidious: []extractor{text("title")},
		library:   []extractor{text("title")},
	},
	description: field{
		invidious: []extractor{plainHTML("description"), richHTML("descriptionHtml")},
		library:   []extractor{plainHTML("description")},
	},
	authorName: field{
		invidious: []extractor{text("author")},
		library:   []extractor{text("channel.name")},
	},
	authorID: field{
		invidious: []extractor{text("authorId")},
		library:   []extractor{text("channel.id")},
	},
	authorThumbnail: field{
		invidious: []extractor{lastThumb("authorThumbnails")},
		library:   []extractor{lastThumb("channel.thumbnails")},
	},
	viewCount: field{
		invidious: []extractor{text("viewCountText")},
		library:   []extractor{text("viewCount.text")},
		derived:   []extractor{magnitude("viewCount")},
	},
	likeCount: field{
		invidious: []extractor{text("likeCountText")},
		library:   []extractor{text("likes")},
		derived:   []extractor{magnitude("likeCount"), magnitude("likes")},
	},
	subscriberCount: field{
		invidious: []extractor{text("subCountText")},
		library:   []extractor{text("channel.subscribers.simpleText"), text("channel.subscribers")},
		derived:   []extractor{magnitude("subCount")},
	},
	published: field{
		invidious: []extractor{text("publishedText")},
		library:   []extractor{text("publishDate"), text("uploadDate")},
		derived:   []extractor{epochDate("published")},
	},
	duration: field{
		invidious: []extractor{seconds("lengthSeconds"), text("lengthText")},
		library:   []extractor{seconds("duration.secondsText"), text("duration.text")},
	},
	related: listKeys{
		invidious: []string{"recommendedVideos"},
		library:   []string{"suggestions"},
	},
}

var commentFields = struct {
	author, authorIcon, authorID, body field
}{
	author: field{
		invidious: []extractor{text("author")},
		library:   []extractor{text("author.name")},
	},
	authorIcon: field{
		invidious: []extractor{lastThumb("authorThumbnails")},
		library:   []extractor{lastThumb("author.thumbnails")},
	},
	authorID: field{
		invidious: []extractor{text("authorId")},
		library:   []extractor{text("author.id")},
	},
	body: field{
		invidious: []extractor{richHTML("contentHtml"), plainHTML("content")},
		library:   []extractor{plainHTML("content")},
	},
}

var channelDetailFields = struct {
	author, id, thumbnail, banner, description, subscriberCount field
	videos                                                      listKeys
}{
	author: field{
		invidious: []extractor{text("author")},
		library:   []extractor{text("title")},
	},
	id: field{
		invidious: []extractor{text("authorId")},
		library:   []extractor{text("id")},
	},
	thumbnail: field{
		invidious: []extractor{lastThumb("authorThumbnails")},
		library:   []extractor{lastThumb("thumbnails")},
	},
	banner: field{
		invidious: []extractor{lastThumb("authorBanners")},
		library:   []extractor{lastThumb("banners")},
	},
	description: field{
		invidious: []extractor{plainHTML("description"), richHTML("descriptionHtml")},
		library:   []extractor{plainHTML("description")},
	},
	subscriberCount: field{
		invidious: []extractor{text("subCountText")},
		library:   []extractor{text("subscribers.simpleText")},
		derived:   []extractor{magnitude("subCount")},
	},
	videos: listKeys{
		invidious: []string{"latestVideos"},
		library:   []string{"uploads.videos"},
	},
}
