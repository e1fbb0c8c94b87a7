// Package feed holds the normalized model produced by the RSS parser and
// persisted by the feed store.
package feed

// Feed is one parsed RSS channel. It is keyed by SourceURL and is replaced
// whole on refresh, never mutated in place.
type Feed struct {
	Title       string `json:"title"`
	Link        string `json:"link"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl"`
	Posts       []Post `json:"posts"`
	SourceURL   string `json:"sourceUrl"`
	IsDefault   bool   `json:"isDefault"`
}

// Post is one RSS item within a feed.
type Post struct {
	Title         string `json:"title"`
	Link          string `json:"link"`
	Description   string `json:"description"`
	ImageURL      string `json:"imageUrl"`
	PublishedAtMs int64  `json:"publishedAtMs"`
}
