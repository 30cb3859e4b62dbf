package normalize

// Shape identifies which provider family produced a JSON object
type Shape int

const (
	ShapeUnknown Shape = iota
	ShapeInvidious
	ShapeLibrary
)

func (s Shape) String() string {
	switch s {
	case ShapeInvidious:
		return "invidious"
	case ShapeLibrary:
		return "library"
	default:
		return "unknown"
	}
}

var invidiousMarkers = []string{
	"videoId",
	"authorId",
	"playlistId",
	"lengthSeconds",
	"videoThumbnails",
	"authorThumbnails",
	"recommendedVideos",
}

var libraryMarkers = []string{
	"id",
	"thumbnails",
	"suggestions",
	"publishedTime",
}

// DetectShape inspects the keys of an object. Invidious markers win when
// both families are present.
func DetectShape(n Node) Shape {
	if !n.IsObject() {
		return ShapeUnknown
	}

	for _, key := range invidiousMarkers {
		if n.Has(key) {
			return ShapeInvidious
		}
	}

	for _, key := range libraryMarkers {
		if n.Has(key) {
			return ShapeLibrary
		}
	}
	if n.Get("channel").IsObject() || n.Get("viewCount").IsObject() {
		return ShapeLibrary
	}

	return ShapeUnknown
}
