package config

import "sort"

// Settings knows which feed URLs belong to the built-in default set.
type Settings struct {
	defaults map[string]struct{}
}

func NewSettings(defaultFeedURLs []string) Settings {
	defaults := make(map[string]struct{}, len(defaultFeedURLs))
	for _, u := range defaultFeedURLs {
		defaults[u] = struct{}{}
	}
	return Settings{defaults: defaults}
}

// IsDefault reports whether feedURL is one of the default feeds
func (s Settings) IsDefault(feedURL string) bool {
	_, ok := s.defaults[feedURL]
	return ok
}

// DefaultFeedURLs returns the default set in lexical order
func (s Settings) DefaultFeedURLs() []string {
	urls := make([]string, 0, len(s.defaults))
	for u := range s.defaults {
		urls = append(urls, u)
	}
	sort.Strings(urls)
	return urls
}
