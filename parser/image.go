package parser

import (
	"net/url"
	"regexp"
	"strings"
)

var imgSrc = regexp.MustCompile(`<img[^>]+\bsrc=["']([^"']+)["']`)

// FindImageURL returns the src of the first <img> tag in text. A src that
// does not start with "http" replaces the whole path of ownerLink; only the
// scheme and host of ownerLink are kept. It returns "" when text has no
// image or ownerLink has no host.
func FindImageURL(ownerLink, text string) string {
	m := imgSrc.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	src := m[1]
	if strings.HasPrefix(src, "http") {
		return src
	}

	owner, err := url.Parse(ownerLink)
	if err != nil || owner.Host == "" {
		return ""
	}
	if !strings.HasPrefix(src, "/") {
		src = "/" + src
	}
	return owner.Scheme + "://" + owner.Host + src
}

// PostImageURL looks for an image in the description first, then in the
// full content. Posts without a link have no image.
func PostImageURL(link, description, content string) string {
	if link == "" {
		return ""
	}
	if u := FindImageURL(link, description); u != "" {
		return u
	}
	return FindImageURL(link, content)
}
