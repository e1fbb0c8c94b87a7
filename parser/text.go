package parser

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxDescriptionLen is the maximum length of a post description in characters.
const MaxDescriptionLen = 300

var (
	htmlTag   = regexp.MustCompile(`<.+?>`)
	blankLine = regexp.MustCompile(`(?m)^[ \t]*\r?\n`)
)

// CleanText strips HTML tags and blank lines from text and trims it.
func CleanText(text string) string {
	text = htmlTag.ReplaceAllString(text, "")
	text = blankLine.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// CleanTextCompact is CleanText cut to MaxDescriptionLen characters.
func CleanTextCompact(text string) string {
	return truncate(CleanText(text), MaxDescriptionLen)
}

func truncate(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen])
}
