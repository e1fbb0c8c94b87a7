package cache

import (
	"slices"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/scipunch/rssreader/feed"
)

// DefaultFeedKey is the key holding the feed snapshot
const DefaultFeedKey = "key_feed_cache"

// FeedStore caches feeds by source URL. Reads are served from memory, which
// is filled from the durable snapshot on first access. Every mutation
// writes the whole set back under a single key.
//
// FeedStore does no locking: callers must serialize access to one instance.
type FeedStore struct {
	kv  KV
	key string
	log *zap.Logger

	hydrate sync.Once
	feeds   map[string]feed.Feed
}

type StoreOption func(*FeedStore)

// WithKey overrides DefaultFeedKey
func WithKey(key string) StoreOption {
	return func(s *FeedStore) {
		if key != "" {
			s.key = key
		}
	}
}

// WithLogger sets the sink for snapshot read failures
func WithLogger(log *zap.Logger) StoreOption {
	return func(s *FeedStore) {
		if log != nil {
			s.log = log
		}
	}
}

func NewFeedStore(kv KV, opts ...StoreOption) *FeedStore {
	s := &FeedStore{
		kv:  kv,
		key: DefaultFeedKey,
		log: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// memory returns the in-memory index, loading the snapshot exactly once
func (s *FeedStore) memory() map[string]feed.Feed {
	s.hydrate.Do(func() {
		s.feeds = s.load()
	})
	return s.feeds
}

// load never fails: a missing, unreadable or corrupt snapshot is an empty set
func (s *FeedStore) load() map[string]feed.Feed {
	feeds := make(map[string]feed.Feed)

	data, found, err := s.kv.Get(s.key)
	if err != nil {
		s.log.Warn("failed to read feed snapshot, starting empty", zap.String("key", s.key), zap.Error(err))
		return feeds
	}
	if !found {
		return feeds
	}

	list, err := DeserializeFeeds([]byte(data))
	if err != nil {
		s.log.Warn("discarding corrupt feed snapshot", zap.String("key", s.key), zap.Error(err))
		return feeds
	}
	for _, f := range list {
		feeds[f.SourceURL] = f
	}

	s.log.Debug("feed snapshot loaded", zap.String("key", s.key), zap.Int("feeds", len(feeds)))
	return feeds
}

// GetFeed looks the feed up in memory
func (s *FeedStore) GetFeed(url string) (feed.Feed, bool) {
	f, ok := s.memory()[url]
	if !ok {
		return feed.Feed{}, false
	}
	return clone(f), true
}

// SaveFeed replaces the feed stored under f.SourceURL and persists the set
func (s *FeedStore) SaveFeed(f feed.Feed) error {
	s.memory()[f.SourceURL] = clone(f)
	return s.persist()
}

// DeleteFeed removes url and persists the remaining set
func (s *FeedStore) DeleteFeed(url string) error {
	delete(s.memory(), url)
	return s.persist()
}

// Clear drops every feed. The snapshot key is deleted when the backend
// supports it, otherwise an empty set is written.
func (s *FeedStore) Clear() error {
	clear(s.memory())
	if d, ok := s.kv.(Deleter); ok {
		return d.Delete(s.key)
	}
	return s.persist()
}

// GetAllFeeds returns every cached feed ordered by source URL
func (s *FeedStore) GetAllFeeds() []feed.Feed {
	feeds := s.memory()

	urls := make([]string, 0, len(feeds))
	for u := range feeds {
		urls = append(urls, u)
	}
	sort.Strings(urls)

	all := make([]feed.Feed, 0, len(urls))
	for _, u := range urls {
		all = append(all, clone(feeds[u]))
	}
	return all
}

func (s *FeedStore) persist() error {
	data, err := SerializeFeeds(s.GetAllFeeds())
	if err != nil {
		return err
	}
	return s.kv.Set(s.key, string(data))
}

// clone copies the posts so callers and the store never share a backing
// array. Nil posts become empty, the same shape a snapshot decodes to.
func clone(f feed.Feed) feed.Feed {
	if f.Posts == nil {
		f.Posts = []feed.Post{}
		return f
	}
	f.Posts = slices.Clone(f.Posts)
	return f
}
