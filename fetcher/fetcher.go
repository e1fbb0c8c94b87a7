// Package fetcher downloads raw feed documents.
package fetcher

import (
	"context"
	"errors"
)

// ErrUnsupportedFeed is returned for documents that are not RSS
var ErrUnsupportedFeed = errors.New("unsupported feed format")

// FeedFetcher returns the XML text of the feed at url
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}
