package reader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/scipunch/rssreader/cache"
	"github.com/scipunch/rssreader/config"
	"github.com/scipunch/rssreader/feed"
	"github.com/scipunch/rssreader/filter"
	"github.com/scipunch/rssreader/parser"
)

var fixedNow = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

// fakeFetcher serves canned documents and counts calls per URL
type fakeFetcher struct {
	mu    sync.Mutex
	docs  map[string]string
	errs  map[string]error
	calls map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		docs:  map[string]string{},
		errs:  map[string]error{},
		calls: map[string]int{},
	}
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	if err, ok := f.errs[url]; ok {
		return "", err
	}
	doc, ok := f.docs[url]
	if !ok {
		return "", fmt.Errorf("failed to fetch %s: HTTP 404", url)
	}
	return doc, nil
}

func (f *fakeFetcher) count(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[url]
}

func rssDoc(title string, itemTitles ...string) string {
	items := ""
	for i, it := range itemTitles {
		items += fmt.Sprintf(`<item><title>%s</title><link>https://example.com/%d</link><description>Body of %s</description></item>`, it, i, it)
	}
	return fmt.Sprintf(`<?xml version="1.0"?><rss version="2.0"><channel><title>%s</title><link>https://example.com</link><description>About %s</description>%s</channel></rss>`, title, title, items)
}

func newTestReader(t *testing.T, f *fakeFetcher, defaults []string, opts ...Option) (*Reader, cache.KV) {
	t.Helper()
	kv := cache.NewMemoryKV()
	store := cache.NewFeedStore(kv)
	p := parser.New(parser.WithClock(func() time.Time { return fixedNow }))
	return New(f, p, store, config.NewSettings(defaults), opts...), kv
}

func TestReader_AddFeed(t *testing.T) {
	f := newFakeFetcher()
	f.docs["https://a/rss"] = rssDoc("A", "one", "two")
	r, kv := newTestReader(t, f, []string{"https://default/rss"})

	got, err := r.AddFeed(context.Background(), "https://a/rss")
	if err != nil {
		t.Fatalf("AddFeed failed: %v", err)
	}
	if got.Title != "A" || got.SourceURL != "https://a/rss" || got.IsDefault {
		t.Errorf("Unexpected feed: %+v", got)
	}
	if len(got.Posts) != 2 || got.Posts[0].PublishedAtMs != fixedNow.UnixMilli() {
		t.Errorf("Unexpected posts: %+v", got.Posts)
	}

	stored, ok := r.Feed("https://a/rss")
	if !ok {
		t.Fatal("Expected feed in store")
	}
	if diff := cmp.Diff(got, stored); diff != "" {
		t.Errorf("stored feed mismatch (-want +got):\n%s", diff)
	}

	// Durable as well
	if diff := cmp.Diff([]feed.Feed{got}, cache.NewFeedStore(kv).GetAllFeeds()); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestReader_AddFeedMarksDefaults(t *testing.T) {
	f := newFakeFetcher()
	f.docs["https://default/rss"] = rssDoc("D")
	r, _ := newTestReader(t, f, []string{"https://default/rss"})

	got, err := r.AddFeed(context.Background(), "https://default/rss")
	if err != nil {
		t.Fatalf("AddFeed failed: %v", err)
	}
	if !got.IsDefault {
		t.Error("Expected default feed to be stamped IsDefault")
	}
}

func TestReader_AddFeedErrors(t *testing.T) {
	f := newFakeFetcher()
	f.docs["https://broken/rss"] = `<rss><channel><title>No link</title></channel></rss>`
	r, _ := newTestReader(t, f, nil)

	_, err := r.AddFeed(context.Background(), "https://broken/rss")
	if !errors.Is(err, parser.ErrMalformedFeed) {
		t.Errorf("Expected ErrMalformedFeed, got %v", err)
	}

	if _, err := r.AddFeed(context.Background(), "https://missing/rss"); err == nil {
		t.Error("Expected fetch error")
	}
	if got := r.Feeds(); len(got) != 0 {
		t.Errorf("Failed adds must not store anything, got %d feeds", len(got))
	}
}

func TestReader_Refresh(t *testing.T) {
	f := newFakeFetcher()
	f.docs["https://a/rss"] = rssDoc("A", "old")
	f.docs["https://default/rss"] = rssDoc("D", "first")
	r, _ := newTestReader(t, f, []string{"https://default/rss"})

	if _, err := r.AddFeed(context.Background(), "https://a/rss"); err != nil {
		t.Fatalf("AddFeed failed: %v", err)
	}

	f.docs["https://a/rss"] = rssDoc("A", "new", "newer")
	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	a, _ := r.Feed("https://a/rss")
	if len(a.Posts) != 2 || a.Posts[0].Title != "new" {
		t.Errorf("Expected refreshed posts, got %+v", a.Posts)
	}

	d, ok := r.Feed("https://default/rss")
	if !ok || !d.IsDefault {
		t.Errorf("Expected default feed to be fetched on refresh, got %+v ok=%v", d, ok)
	}
	if n := f.count("https://a/rss"); n != 2 {
		t.Errorf("Expected 2 fetches of a, got %d", n)
	}
}

func TestReader_RefreshKeepsCachedCopyOnFailure(t *testing.T) {
	f := newFakeFetcher()
	f.docs["https://a/rss"] = rssDoc("A", "kept")
	f.docs["https://b/rss"] = rssDoc("B", "old")

	core, logs := observer.New(zapcore.WarnLevel)
	r, _ := newTestReader(t, f, nil, WithLogger(zap.New(core)))
	r.AddFeed(context.Background(), "https://a/rss")
	r.AddFeed(context.Background(), "https://b/rss")
	before, _ := r.Feed("https://a/rss")

	fetchErr := errors.New("connection reset")
	f.errs["https://a/rss"] = fetchErr
	f.docs["https://b/rss"] = rssDoc("B", "new")

	err := r.Refresh(context.Background())
	if !errors.Is(err, fetchErr) {
		t.Fatalf("Expected joined fetch error, got %v", err)
	}

	after, _ := r.Feed("https://a/rss")
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("failed feed changed (-want +got):\n%s", diff)
	}
	b, _ := r.Feed("https://b/rss")
	if b.Posts[0].Title != "new" {
		t.Errorf("Expected b to refresh despite a failing, got %+v", b.Posts)
	}
	if logs.FilterMessage("failed to refresh feed, keeping cached copy").Len() != 1 {
		t.Errorf("Expected one refresh warning, got %v", logs.All())
	}
}

func TestReader_RefreshJoinsAllErrors(t *testing.T) {
	f := newFakeFetcher()
	r, _ := newTestReader(t, f, []string{"https://x/rss", "https://y/rss"})

	errX := errors.New("x down")
	errY := errors.New("y down")
	f.errs["https://x/rss"] = errX
	f.errs["https://y/rss"] = errY

	err := r.Refresh(context.Background())
	if !errors.Is(err, errX) || !errors.Is(err, errY) {
		t.Errorf("Expected both errors, got %v", err)
	}
}

func TestReader_RefreshCancelled(t *testing.T) {
	f := newFakeFetcher()
	f.docs["https://x/rss"] = rssDoc("X")
	r, _ := newTestReader(t, f, []string{"https://x/rss"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := r.Refresh(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if n := f.count("https://x/rss"); n != 0 {
		t.Errorf("Expected no fetch after cancel, got %d", n)
	}
}

func TestReader_DeleteFeed(t *testing.T) {
	f := newFakeFetcher()
	f.docs["https://a/rss"] = rssDoc("A")
	f.docs["https://b/rss"] = rssDoc("B")
	r, _ := newTestReader(t, f, nil)
	r.AddFeed(context.Background(), "https://a/rss")
	r.AddFeed(context.Background(), "https://b/rss")

	if err := r.DeleteFeed("https://a/rss"); err != nil {
		t.Fatalf("DeleteFeed failed: %v", err)
	}

	var urls []string
	for _, fd := range r.Feeds() {
		urls = append(urls, fd.SourceURL)
	}
	if diff := cmp.Diff([]string{"https://b/rss"}, urls); diff != "" {
		t.Errorf("remaining feeds mismatch (-want +got):\n%s", diff)
	}

	// A deleted feed is not refreshed again
	r.Refresh(context.Background())
	if n := f.count("https://a/rss"); n != 1 {
		t.Errorf("Expected deleted feed not to be fetched, got %d fetches", n)
	}
}

func TestReader_Posts(t *testing.T) {
	f := newFakeFetcher()
	f.docs["https://a/rss"] = `<rss version="2.0"><channel>
<title>A</title><link>https://example.com</link><description>About A</description>
<item><title>Keep me</title><link>https://example.com/1</link><description><![CDATA[<p>Plain news</p>]]></description></item>
<item><title>Paid</title><link>https://example.com/2</link><description><![CDATA[<p>Sponsored content</p>]]></description></item>
<item><title>No link</title><description>Orphan</description></item>
</channel></rss>`

	pipeline, err := filter.New(map[string]config.Filter{
		// Descriptions are matched after markup is stripped
		"no_ads":   {ExcludeDescription: []string{"^Sponsored"}},
		"has_link": {RequireLink: true},
	})
	if err != nil {
		t.Fatalf("filter.New failed: %v", err)
	}
	r, _ := newTestReader(t, f, nil, WithFilters(pipeline))
	if _, err := r.AddFeed(context.Background(), "https://a/rss"); err != nil {
		t.Fatalf("AddFeed failed: %v", err)
	}

	postTitles := func(t *testing.T, filters ...string) []string {
		t.Helper()
		posts, err := r.Posts("https://a/rss", filters)
		if err != nil {
			t.Fatalf("Posts(%v) failed: %v", filters, err)
		}
		var titles []string
		for _, p := range posts {
			titles = append(titles, p.Title)
		}
		return titles
	}

	tests := []struct {
		name    string
		filters []string
		want    []string
	}{
		{"no filters", nil, []string{"Keep me", "Paid", "No link"}},
		{"description rule", []string{"no_ads"}, []string{"Keep me", "No link"}},
		{"link rule", []string{"has_link"}, []string{"Keep me", "Paid"}},
		{"both", []string{"no_ads", "has_link"}, []string{"Keep me"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, postTitles(t, tt.filters...)); diff != "" {
				t.Errorf("posts mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if _, err := r.Posts("https://a/rss", []string{"nope"}); !errors.Is(err, filter.ErrUnknownFilter) {
		t.Errorf("Expected ErrUnknownFilter, got %v", err)
	}
	if _, err := r.Posts("https://missing/rss", nil); !errors.Is(err, ErrFeedNotFound) {
		t.Errorf("Expected ErrFeedNotFound, got %v", err)
	}
}

func TestReader_PostsWithoutFilters(t *testing.T) {
	f := newFakeFetcher()
	f.docs["https://a/rss"] = rssDoc("A", "one")
	r, _ := newTestReader(t, f, nil)
	r.AddFeed(context.Background(), "https://a/rss")

	if _, err := r.Posts("https://a/rss", []string{"no_ads"}); !errors.Is(err, filter.ErrUnknownFilter) {
		t.Errorf("Expected ErrUnknownFilter, got %v", err)
	}
	if posts, err := r.Posts("https://a/rss", nil); err != nil || len(posts) != 1 {
		t.Errorf("Expected 1 post, got %d (%v)", len(posts), err)
	}
}

func TestReader_Run(t *testing.T) {
	f := newFakeFetcher()
	f.docs["https://x/rss"] = rssDoc("X")
	r, _ := newTestReader(t, f, []string{"https://x/rss"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for f.count("https://x/rss") < 3 {
		select {
		case <-deadline:
			t.Fatalf("Expected periodic refreshes, got %d", f.count("https://x/rss"))
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
