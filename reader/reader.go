// Package reader keeps the feed store in sync with the feeds on the web.
package reader

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scipunch/rssreader/cache"
	"github.com/scipunch/rssreader/config"
	"github.com/scipunch/rssreader/feed"
	"github.com/scipunch/rssreader/fetcher"
	"github.com/scipunch/rssreader/filter"
	"github.com/scipunch/rssreader/parser"
)

var ErrFeedNotFound = errors.New("feed not found")

// Reader fetches, parses and stores feeds. All store access goes through
// one mutex, so a Reader is safe for concurrent use.
type Reader struct {
	mu       sync.Mutex
	fetcher  fetcher.FeedFetcher
	parser   *parser.Parser
	store    *cache.FeedStore
	settings config.Settings
	filters  *filter.Pipeline
	log      *zap.Logger
}

type Option func(*Reader)

func WithLogger(log *zap.Logger) Option {
	return func(r *Reader) {
		if log != nil {
			r.log = log
		}
	}
}

// WithFilters enables named filters for Posts
func WithFilters(fp *filter.Pipeline) Option {
	return func(r *Reader) {
		r.filters = fp
	}
}

func New(f fetcher.FeedFetcher, p *parser.Parser, store *cache.FeedStore, settings config.Settings, opts ...Option) *Reader {
	r := &Reader{
		fetcher:  f,
		parser:   p,
		store:    store,
		settings: settings,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AddFeed fetches url and stores the parsed feed, replacing any previous copy
func (r *Reader) AddFeed(ctx context.Context, url string) (feed.Feed, error) {
	return r.update(ctx, url)
}

// Refresh re-fetches every stored feed and every default feed. A feed that
// fails keeps its previous copy; all failures are returned joined.
func (r *Reader) Refresh(ctx context.Context) error {
	var errs []error
	for _, url := range r.refreshURLs() {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		f, err := r.update(ctx, url)
		if err != nil {
			r.log.Warn("failed to refresh feed, keeping cached copy", zap.String("url", url), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		r.log.Debug("feed refreshed", zap.String("url", url), zap.Int("posts", len(f.Posts)))
	}
	return errors.Join(errs...)
}

// refreshURLs lists stored and default feed URLs, sorted and without duplicates
func (r *Reader) refreshURLs() []string {
	r.mu.Lock()
	stored := r.store.GetAllFeeds()
	r.mu.Unlock()

	urls := r.settings.DefaultFeedURLs()
	for _, f := range stored {
		urls = append(urls, f.SourceURL)
	}
	slices.Sort(urls)
	return slices.Compact(urls)
}

func (r *Reader) update(ctx context.Context, url string) (feed.Feed, error) {
	xml, err := r.fetcher.Fetch(ctx, url)
	if err != nil {
		return feed.Feed{}, err
	}

	f, err := r.parser.Parse(url, xml, r.settings.IsDefault(url))
	if err != nil {
		return feed.Feed{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.store.SaveFeed(f); err != nil {
		return feed.Feed{}, fmt.Errorf("failed to save %s: %w", url, err)
	}
	return f, nil
}

// DeleteFeed drops url from the store
func (r *Reader) DeleteFeed(url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.store.DeleteFeed(url); err != nil {
		return fmt.Errorf("failed to delete %s: %w", url, err)
	}
	return nil
}

func (r *Reader) Feed(url string) (feed.Feed, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.GetFeed(url)
}

// Feeds returns every stored feed ordered by source URL
func (r *Reader) Feeds() []feed.Feed {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.GetAllFeeds()
}

// Posts returns the posts of url that pass the named filters. Naming a
// filter missing from the config is an error.
func (r *Reader) Posts(url string, filterNames []string) ([]feed.Post, error) {
	f, ok := r.Feed(url)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFeedNotFound, url)
	}
	if len(filterNames) == 0 {
		return f.Posts, nil
	}
	if r.filters == nil {
		return nil, fmt.Errorf("%w: %s", filter.ErrUnknownFilter, strings.Join(filterNames, ","))
	}
	return r.filters.Apply(f.Posts, filterNames)
}

// Run refreshes immediately and then every interval until ctx is done
func (r *Reader) Run(ctx context.Context, interval time.Duration) {
	r.refreshAndLog(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.log.Info("refresh loop stopped")
			return
		case <-ticker.C:
			r.refreshAndLog(ctx)
		}
	}
}

func (r *Reader) refreshAndLog(ctx context.Context) {
	start := time.Now()
	if err := r.Refresh(ctx); err != nil && ctx.Err() == nil {
		r.log.Error("refresh finished with errors", zap.Error(err))
	}
	r.log.Info("refresh done", zap.Duration("took", time.Since(start)))
}
