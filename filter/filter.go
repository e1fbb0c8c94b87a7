// Package filter drops posts that fail named, configurable rules.
package filter

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/scipunch/rssreader/config"
	"github.com/scipunch/rssreader/feed"
)

// ErrUnknownFilter is returned by Apply for a name missing from the config
var ErrUnknownFilter = errors.New("unknown filter")

// check rejects a post when drop returns true
type check struct {
	rule string
	drop func(p feed.Post, now time.Time) bool
}

// Pipeline holds the compiled named filters of the config
type Pipeline struct {
	filters map[string][]check
	log     *zap.Logger
	now     func() time.Time
}

type Option func(*Pipeline)

// WithLogger sets the sink for dropped posts, logged at debug level
func WithLogger(log *zap.Logger) Option {
	return func(p *Pipeline) {
		if log != nil {
			p.log = log
		}
	}
}

// WithClock sets the clock max_age_hours is measured against
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// New compiles every named filter. An invalid pattern fails the whole set.
func New(filters map[string]config.Filter, opts ...Option) (*Pipeline, error) {
	p := &Pipeline{
		filters: make(map[string][]check, len(filters)),
		log:     zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}

	for name, conf := range filters {
		checks, err := compile(conf)
		if err != nil {
			return nil, fmt.Errorf("failed to compile filter '%s': %w", name, err)
		}
		p.filters[name] = checks
	}
	return p, nil
}

func compile(conf config.Filter) ([]check, error) {
	var checks []check

	if conf.RequireLink {
		checks = append(checks, check{"require_link", func(p feed.Post, _ time.Time) bool {
			return p.Link == ""
		}})
	}
	if conf.RequireImage {
		checks = append(checks, check{"require_image", func(p feed.Post, _ time.Time) bool {
			return p.ImageURL == ""
		}})
	}
	if n := conf.MinTitleWords; n > 0 {
		checks = append(checks, check{"min_title_words", func(p feed.Post, _ time.Time) bool {
			return wordCount(p.Title) < n
		}})
	}
	if n := conf.MinDescriptionLength; n > 0 {
		checks = append(checks, check{"min_description_length", func(p feed.Post, _ time.Time) bool {
			return utf8.RuneCountInString(p.Description) < n
		}})
	}
	if conf.MaxAgeHours > 0 {
		maxAge := time.Duration(conf.MaxAgeHours) * time.Hour
		checks = append(checks, check{"max_age_hours", func(p feed.Post, now time.Time) bool {
			return now.Sub(time.UnixMilli(p.PublishedAtMs)) > maxAge
		}})
	}

	for _, pattern := range conf.ExcludeTitle {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude_title pattern: %w", err)
		}
		checks = append(checks, check{"exclude_title[" + pattern + "]", func(p feed.Post, _ time.Time) bool {
			return re.MatchString(p.Title)
		}})
	}
	for _, pattern := range conf.ExcludeDescription {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude_description pattern: %w", err)
		}
		checks = append(checks, check{"exclude_description[" + pattern + "]", func(p feed.Post, _ time.Time) bool {
			return re.MatchString(p.Description)
		}})
	}

	return checks, nil
}

// Names lists the configured filters in lexical order
func (p *Pipeline) Names() []string {
	names := make([]string, 0, len(p.filters))
	for name := range p.filters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply keeps the posts passing every filter in names, in their original
// order. No names keeps everything.
func (p *Pipeline) Apply(posts []feed.Post, names []string) ([]feed.Post, error) {
	var checks []check
	for _, name := range names {
		fc, ok := p.filters[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownFilter, name)
		}
		for _, c := range fc {
			checks = append(checks, check{rule: name + ":" + c.rule, drop: c.drop})
		}
	}
	if len(checks) == 0 {
		return posts, nil
	}

	now := p.now()
	kept := make([]feed.Post, 0, len(posts))
	for _, post := range posts {
		if rule, dropped := firstFailure(checks, post, now); dropped {
			p.log.Debug("post filtered out",
				zap.String("title", post.Title), zap.String("rule", rule), zap.String("url", post.Link))
			continue
		}
		kept = append(kept, post)
	}
	return kept, nil
}

func firstFailure(checks []check, post feed.Post, now time.Time) (string, bool) {
	for _, c := range checks {
		if c.drop(post, now) {
			return c.rule, true
		}
	}
	return "", false
}

// wordCount counts runs of letters and digits
func wordCount(s string) int {
	return len(strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}))
}
