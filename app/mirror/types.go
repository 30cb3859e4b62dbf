package mirror

type Category string

const (
	CategoryVideo    Category = "video"
	CategorySearch   Category = "search"
	CategoryTrending Category = "trending"
	CategoryChannel  Category = "channel"
	CategoryComments Category = "comments"
	CategoryPlaylist Category = "playlist"
)

// AllCategories lists every category in a stable order
var AllCategories = []Category{
	CategoryVideo,
	CategorySearch,
	CategoryTrending,
	CategoryChannel,
	CategoryComments,
	CategoryPlaylist,
}

func (c Category) Valid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// File is the YAML layout of the mirrors file
type File map[Category][]string
