package cache

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/scipunch/rssreader/feed"
)

// ErrCorruptSnapshot is returned when a stored snapshot cannot be decoded
var ErrCorruptSnapshot = errors.New("corrupt feed snapshot")

// SerializeFeeds converts the whole feed set to the JSON array stored under
// the snapshot key
func SerializeFeeds(feeds []feed.Feed) ([]byte, error) {
	records := make([]feed.Feed, len(feeds))
	for i, f := range feeds {
		// Keep "posts" an array in the record, never null
		if f.Posts == nil {
			f.Posts = []feed.Post{}
		}
		records[i] = f
	}

	data, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal feeds: %w", err)
	}
	return data, nil
}

// DeserializeFeeds converts a stored snapshot back to feeds
func DeserializeFeeds(data []byte) ([]feed.Feed, error) {
	var feeds []feed.Feed
	if err := json.Unmarshal(data, &feeds); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptSnapshot, err)
	}

	for i, f := range feeds {
		if f.SourceURL == "" {
			return nil, fmt.Errorf("%w: record %d has no sourceUrl", ErrCorruptSnapshot, i)
		}
		if f.Posts == nil {
			feeds[i].Posts = []feed.Post{}
		}
	}

	return feeds, nil
}
