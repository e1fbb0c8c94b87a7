package parser

import (
	"errors"
	"fmt"
)

var errEndOfDocument = errors.New("end of document")

// ErrMalformedFeed matches every *MalformedFeedError with errors.Is.
var ErrMalformedFeed = errors.New("malformed feed")

// MalformedFeedError reports a document that could not be turned into a
// feed: no rss/channel element, a missing required channel field or XML
// that could not be tokenized.
type MalformedFeedError struct {
	SourceURL string
	Reason    string
	Err       error
}

func (e *MalformedFeedError) Error() string {
	msg := fmt.Sprintf("malformed feed '%s': %s", e.SourceURL, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedFeedError) Unwrap() error {
	return e.Err
}

func (e *MalformedFeedError) Is(target error) bool {
	return target == ErrMalformedFeed
}

func malformed(sourceURL, reason string, err error) error {
	return &MalformedFeedError{SourceURL: sourceURL, Reason: reason, Err: err}
}
