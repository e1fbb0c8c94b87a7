// Package parser turns RSS 2.0 documents into feed.Feed values.
//
// The document is walked as a stream of XML events: unknown elements are
// skipped whole, so feeds carrying extensions or partial markup still parse
// as long as the channel has a title, a link and a description.
package parser

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/scipunch/rssreader/feed"
)

// Parser is safe for concurrent use; every Parse call owns its cursor.
type Parser struct {
	log   *zap.Logger
	now   func() time.Time
	dates DateResolver
}

type Option func(*Parser)

// WithLogger sets the sink for recoverable anomalies such as bad dates.
func WithLogger(log *zap.Logger) Option {
	return func(p *Parser) {
		if log != nil {
			p.log = log
		}
	}
}

// WithClock sets the clock used for posts without a usable pubDate.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		if now != nil {
			p.now = now
		}
	}
}

func New(opts ...Option) *Parser {
	p := &Parser{
		log: zap.NewNop(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.dates = NewDateResolver(p.log)
	return p
}

// channel collects the raw fields of <channel> before they are validated.
type channel struct {
	title       optional
	link        optional
	description optional
	imageURL    string
	items       []item
}

type item struct {
	title       optional
	link        optional
	description optional
	content     optional
	pubDate     optional
}

// Parse builds a Feed out of an RSS document. It returns a
// *MalformedFeedError when the document has no rss/channel element, the
// channel lacks a title, link or description, or the XML cannot be read.
func (p *Parser) Parse(sourceURL, xml string, isDefault bool) (feed.Feed, error) {
	c := newCursor(strings.NewReader(xml))

	if err := seekRoot(c); err != nil {
		return feed.Feed{}, malformed(sourceURL, "no <rss> element", err)
	}

	ch, err := readRSS(c)
	if err != nil {
		return feed.Feed{}, malformed(sourceURL, "failed to read <channel>", err)
	}
	if ch == nil {
		return feed.Feed{}, malformed(sourceURL, "no <channel> element", nil)
	}

	for _, f := range []struct {
		name  string
		value optional
	}{
		{"title", ch.title},
		{"link", ch.link},
		{"description", ch.description},
	} {
		if !f.value.ok {
			return feed.Feed{}, malformed(sourceURL, "channel has no <"+f.name+">", nil)
		}
	}

	posts := make([]feed.Post, 0, len(ch.items))
	for _, it := range ch.items {
		posts = append(posts, p.buildPost(ch.title.value, it))
	}

	return feed.Feed{
		Title:       ch.title.value,
		Link:        ch.link.value,
		Description: ch.description.value,
		ImageURL:    ch.imageURL,
		Posts:       posts,
		SourceURL:   sourceURL,
		IsDefault:   isDefault,
	}, nil
}

func (p *Parser) buildPost(feedTitle string, it item) feed.Post {
	title := it.title.value
	if !it.title.ok {
		title = feedTitle
	}

	published := p.now().UnixMilli()
	if it.pubDate.ok {
		if ms, ok := p.dates.Parse(it.pubDate.value); ok {
			published = ms
		}
	}

	return feed.Post{
		Title:         title,
		Link:          it.link.value,
		Description:   CleanTextCompact(it.description.value),
		ImageURL:      PostImageURL(it.link.value, it.description.value, it.content.value),
		PublishedAtMs: published,
	}
}

// seekRoot advances to the <rss> start tag, skipping anything before it.
func seekRoot(c *cursor) error {
	for {
		ev, err := c.next()
		if err != nil {
			return err
		}
		switch ev.kind {
		case eventStart:
			if ev.name == "rss" {
				return nil
			}
			if err := c.skipSubtree(); err != nil {
				return err
			}
		case eventEOF:
			return errEndOfDocument
		}
	}
}

// readRSS reads the first <channel> inside <rss>. A nil channel means
// <rss> ended without one.
func readRSS(c *cursor) (*channel, error) {
	for {
		ev, err := c.next()
		if err != nil {
			return nil, err
		}
		switch ev.kind {
		case eventStart:
			if ev.name == "channel" {
				return readChannel(c)
			}
			if err := c.skipSubtree(); err != nil {
				return nil, err
			}
		case eventEnd, eventEOF:
			return nil, nil
		}
	}
}

func readChannel(c *cursor) (*channel, error) {
	ch := &channel{}
	err := c.children(func(name string) error {
		switch name {
		case "title":
			return c.readOptional(&ch.title)
		case "link":
			return c.readOptional(&ch.link)
		case "description":
			return c.readOptional(&ch.description)
		case "image":
			url, err := readImageURL(c)
			if err != nil {
				return err
			}
			ch.imageURL = url
			return nil
		case "item":
			it, err := readItem(c)
			if err != nil {
				return err
			}
			ch.items = append(ch.items, it)
			return nil
		default:
			return c.skipSubtree()
		}
	})
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func readImageURL(c *cursor) (string, error) {
	var url string
	err := c.children(func(name string) error {
		if name != "url" {
			return c.skipSubtree()
		}
		text, err := c.readText()
		url = text
		return err
	})
	return url, err
}

func readItem(c *cursor) (item, error) {
	var it item
	err := c.children(func(name string) error {
		switch name {
		case "title":
			return c.readOptional(&it.title)
		case "link":
			return c.readOptional(&it.link)
		case "description":
			return c.readOptional(&it.description)
		case "content:encoded":
			return c.readOptional(&it.content)
		case "pubDate":
			return c.readOptional(&it.pubDate)
		default:
			return c.skipSubtree()
		}
	})
	return it, err
}
