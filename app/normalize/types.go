package normalize

// Unavailable fills any field that no provider key or derivation could resolve.
// An empty string is a legitimate value and stays distinct from it.
const Unavailable = "Unavailable"

func IsUnavailable(s string) bool {
	return s == Unavailable
}

const (
	KindVideo    = "video"
	KindChannel  = "channel"
	KindPlaylist = "playlist"
)

// Summary is one list entry: a video, channel or playlist
type Summary interface {
	Kind() string
}

type VideoSummary struct {
	Type          string `json:"type"`
	Title         string `json:"title"`
	ID            string `json:"id"`
	Author        string `json:"author"`
	Published     string `json:"published"`
	Duration      string `json:"duration"`
	ViewCountText string `json:"viewCountText"`
}

func (VideoSummary) Kind() string { return KindVideo }

type ChannelSummary struct {
	Type      string `json:"type"`
	Author    string `json:"author"`
	ID        string `json:"id"`
	Thumbnail string `json:"thumbnail"`
}

func (ChannelSummary) Kind() string { return KindChannel }

type PlaylistSummary struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	ID        string `json:"id"`
	Thumbnail string `json:"thumbnail"`
	ItemCount string `json:"itemCount"`
}

func (PlaylistSummary) Kind() string { return KindPlaylist }

type VideoDetail struct {
	Title               string    `json:"title"`
	Description         string    `json:"description"`
	AuthorName          string    `json:"authorName"`
	AuthorID            string    `json:"authorId"`
	AuthorThumbnail     string    `json:"authorThumbnail"`
	ViewCountText       string    `json:"viewCountText"`
	LikeCountText       string    `json:"likeCountText"`
	SubscriberCountText string    `json:"subscriberCountText"`
	Published           string    `json:"published"`
	DurationText        string    `json:"durationText"`
	Related             []Summary `json:"related"`
}

type Comment struct {
	Author     string `json:"author"`
	AuthorIcon string `json:"authorIcon"`
	AuthorID   string `json:"authorId"`
	BodyHTML   string `json:"bodyHtml"`
}

type CommentPage struct {
	Comments     []Comment `json:"comments"`
	Continuation string    `json:"continuation"`
}

type ChannelDetail struct {
	Author              string         `json:"author"`
	ID                  string         `json:"id"`
	Thumbnail           string         `json:"thumbnail"`
	Banner              string         `json:"banner"`
	Description         string         `json:"description"`
	SubscriberCountText string         `json:"subscriberCountText"`
	Videos              []VideoSummary `json:"videos"`
	Shorts              []VideoSummary `json:"shorts"`
}

type PlaylistDetail struct {
	Title     string         `json:"title"`
	ID        string         `json:"id"`
	Author    string         `json:"author"`
	Thumbnail string         `json:"thumbnail"`
	ItemCount string         `json:"itemCount"`
	Videos    []VideoSummary `json:"videos"`
}
